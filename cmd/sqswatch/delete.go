// File: cmd/sqswatch/delete.go
// Brief: 'sqswatch delete' tears down monitoring stacks.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/example/sqswatch/internal/logging"
	"github.com/example/sqswatch/internal/provision"
	"github.com/example/sqswatch/internal/state"
)

func newDeleteCommand(region *string, logLevel *string) *cobra.Command {
	var autoApprove bool
	concurrency := 2
	var tf *targetFlags
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete the monitoring stack for each queue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log, err := logging.New(*logLevel)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			targets, watchRegion, err := tf.resolve()
			if err != nil {
				return err
			}
			compiled, err := compileTargets(targets)
			if err != nil {
				return err
			}
			cfg, err := loadAWSConfig(ctx, pickRegion(region, watchRegion))
			if err != nil {
				return err
			}

			fmt.Printf("Deleting %d stack(s) in %s:\n", len(compiled), cfg.Region)
			for _, ct := range compiled {
				fmt.Printf("  %s\n", ct.stack.StackName)
			}
			if err := confirmAction(ctx, os.Stdin, os.Stdout, autoApprove, "This removes alarms and the notification topic. Proceed?"); err != nil {
				return err
			}

			engine := provision.NewFromConfig(cfg, log.Named("engine"))
			ledger, err := state.Open(".", false)
			if err != nil {
				return err
			}
			defer ledger.Close()
			runID, err := ledger.BeginRun(ctx, "delete", cfg.Region, len(compiled))
			if err != nil {
				return err
			}

			results := runStacks(ctx, compiled, concurrency, func(ctx context.Context, ct compiledTarget, emit func(provision.Event)) (string, error) {
				if err := engine.Delete(ctx, ct.stack.StackName, emit); err != nil {
					return "", err
				}
				return "deleted", nil
			})

			succeeded, failed := 0, 0
			for _, r := range results {
				eventType, detail := "delete", r.detail
				if r.err != nil {
					failed++
					eventType, detail = "error", r.err.Error()
					log.Error("delete failed", zap.String("stack", r.stackName), zap.Error(r.err))
				} else {
					succeeded++
				}
				if err := ledger.RecordEvent(ctx, runID, r.stackName, eventType, detail); err != nil {
					log.Warn("ledger write failed", zap.Error(err))
				}
			}
			status := "succeeded"
			if failed > 0 {
				status = "failed"
			}
			if err := ledger.FinishRun(ctx, runID, status, succeeded, failed); err != nil {
				log.Warn("ledger write failed", zap.Error(err))
			}

			printRunResults(results)
			if failed > 0 {
				return fmt.Errorf("%d of %d stack(s) failed", failed, len(results))
			}
			return nil
		},
	}
	tf = addTargetFlags(cmd)
	cmd.Flags().BoolVar(&autoApprove, "auto-approve", false, "Skip the confirmation prompt")
	cmd.Flags().IntVar(&concurrency, "concurrency", concurrency, "Stacks deleted in parallel")
	return cmd
}
