// File: cmd/sqswatch/apply.go
// Brief: 'sqswatch apply' reconciles monitoring stacks through the engine.

package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/example/sqswatch/internal/logging"
	"github.com/example/sqswatch/internal/monitor"
	"github.com/example/sqswatch/internal/provision"
	"github.com/example/sqswatch/internal/state"
	"github.com/example/sqswatch/internal/watchfile"
)

type compiledTarget struct {
	stack    *monitor.Stack
	template string
}

func compileTargets(targets []watchfile.Target) ([]compiledTarget, error) {
	out := make([]compiledTarget, 0, len(targets))
	for _, t := range targets {
		s, err := monitor.Compile(t.Queue, t.Email)
		if err != nil {
			return nil, err
		}
		raw, err := monitor.RenderTemplate(s, monitor.FormatJSON)
		if err != nil {
			return nil, err
		}
		out = append(out, compiledTarget{stack: s, template: string(raw)})
	}
	return out, nil
}

func newApplyCommand(region *string, logLevel *string) *cobra.Command {
	var autoApprove bool
	concurrency := 2
	var tf *targetFlags
	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Create or update the monitoring stack for each queue",
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

			fmt.Printf("Applying %d stack(s) in %s:\n", len(compiled), cfg.Region)
			for _, ct := range compiled {
				fmt.Printf("  %s (queue %s -> %s)\n", ct.stack.StackName, ct.stack.QueueName, ct.stack.Channel.Endpoint)
			}
			if err := confirmAction(ctx, os.Stdin, os.Stdout, autoApprove, "Proceed?"); err != nil {
				return err
			}

			engine := provision.NewFromConfig(cfg, log.Named("engine"))
			ledger, err := state.Open(".", false)
			if err != nil {
				return err
			}
			defer ledger.Close()
			runID, err := ledger.BeginRun(ctx, "apply", cfg.Region, len(compiled))
			if err != nil {
				return err
			}

			results := runStacks(ctx, compiled, concurrency, func(ctx context.Context, ct compiledTarget, emit func(provision.Event)) (string, error) {
				res, err := engine.Reconcile(ctx, ct.stack.StackName, ct.template, emit)
				if err != nil {
					return "", err
				}
				if res.Action == provision.ActionNoop {
					return "no changes", nil
				}
				return string(res.Action) + "d", nil
			})

			succeeded, failed := 0, 0
			for _, r := range results {
				eventType, detail := "apply", r.detail
				if r.err != nil {
					failed++
					eventType, detail = "error", r.err.Error()
					log.Error("apply failed", zap.String("stack", r.stackName), zap.Error(r.err))
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
	cmd.Flags().IntVar(&concurrency, "concurrency", concurrency, "Stacks reconciled in parallel")
	return cmd
}

type stackResult struct {
	stackName string
	detail    string
	err       error
}

// runStacks drives each compiled stack through fn under a weighted
// semaphore. Event lines from parallel stacks interleave; each carries its
// stack name prefix.
func runStacks(ctx context.Context, compiled []compiledTarget, concurrency int, fn func(context.Context, compiledTarget, func(provision.Event)) (string, error)) []stackResult {
	if concurrency < 1 {
		concurrency = 1
	}
	sem := semaphore.NewWeighted(int64(concurrency))
	var mu sync.Mutex
	var wg sync.WaitGroup
	results := make([]stackResult, len(compiled))

	for i, ct := range compiled {
		if err := sem.Acquire(ctx, 1); err != nil {
			results[i] = stackResult{stackName: ct.stack.StackName, err: err}
			continue
		}
		wg.Add(1)
		go func(i int, ct compiledTarget) {
			defer wg.Done()
			defer sem.Release(1)
			emit := func(ev provision.Event) {
				mu.Lock()
				printEngineEvent(ct.stack.StackName, ev)
				mu.Unlock()
			}
			detail, err := fn(ctx, ct, emit)
			results[i] = stackResult{stackName: ct.stack.StackName, detail: detail, err: err}
		}(i, ct)
	}
	wg.Wait()
	return results
}

func printEngineEvent(stackName string, ev provision.Event) {
	status := ev.Status
	switch {
	case strings.HasSuffix(status, "_FAILED"), strings.Contains(status, "ROLLBACK"):
		status = color.RedString(status)
	case strings.HasSuffix(status, "_COMPLETE"):
		status = color.GreenString(status)
	}
	line := fmt.Sprintf("[%s] %s  %s  %s", stackName, ev.Time.Format("15:04:05"), ev.LogicalID, status)
	if ev.Reason != "" {
		line += "  " + ev.Reason
	}
	fmt.Println(line)
}

func printRunResults(results []stackResult) {
	sorted := append([]stackResult(nil), results...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].stackName < sorted[j].stackName })

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer tw.Flush()
	fmt.Fprintln(tw, "STACK\tRESULT\tDETAIL")
	for _, r := range sorted {
		if r.err != nil {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", r.stackName, color.RedString("FAILED"), r.err)
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.stackName, color.GreenString("OK"), r.detail)
	}
}
