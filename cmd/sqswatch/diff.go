// File: cmd/sqswatch/diff.go
// Brief: 'sqswatch diff' drift detection against the live template.

package main

import (
	"fmt"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/spf13/cobra"

	"github.com/example/sqswatch/internal/provision"
)

func newDiffCommand(region *string) *cobra.Command {
	var tf *targetFlags
	cmd := &cobra.Command{
		Use:   "diff",
		Short: "Compare locally compiled templates against what the engine holds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
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
			engine := provision.NewFromConfig(cfg, nil)

			drifted := 0
			for _, ct := range compiled {
				live, err := engine.LiveTemplate(ctx, ct.stack.StackName)
				if err != nil {
					status, statusErr := engine.Status(ctx, ct.stack.StackName)
					if statusErr == nil && status == "" {
						fmt.Printf("%s: not created yet\n", ct.stack.StackName)
						drifted++
						continue
					}
					return err
				}
				if live == ct.template {
					fmt.Printf("%s: in sync\n", ct.stack.StackName)
					continue
				}
				drifted++
				diff := difflib.UnifiedDiff{
					A:        difflib.SplitLines(live),
					B:        difflib.SplitLines(ct.template),
					FromFile: ct.stack.StackName + " (live)",
					ToFile:   ct.stack.StackName + " (local)",
					Context:  3,
				}
				text, err := difflib.GetUnifiedDiffString(diff)
				if err != nil {
					return err
				}
				fmt.Print(text)
			}
			if drifted > 0 {
				return fmt.Errorf("%d of %d stack(s) drifted", drifted, len(compiled))
			}
			return nil
		},
	}
	tf = addTargetFlags(cmd)
	return cmd
}
