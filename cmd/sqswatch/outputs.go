// File: cmd/sqswatch/outputs.go
// Brief: 'sqswatch outputs' resolved stack outputs.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/example/sqswatch/internal/provision"
)

func newOutputsCommand(region *string) *cobra.Command {
	output := "table"
	var tf *targetFlags
	cmd := &cobra.Command{
		Use:   "outputs",
		Short: "Resolve the dashboard URL and notification channel id of applied stacks",
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

			resolved := map[string]map[string]string{}
			for _, ct := range compiled {
				want := make([]string, 0, len(ct.stack.Outputs))
				for _, o := range ct.stack.Outputs {
					want = append(want, o.Name)
				}
				outputs, err := engine.Outputs(ctx, ct.stack.StackName, want)
				if err != nil {
					return err
				}
				resolved[ct.stack.StackName] = outputs
			}

			switch output {
			case "json":
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(resolved)
			case "table":
				tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
				defer tw.Flush()
				fmt.Fprintln(tw, "STACK\tOUTPUT\tVALUE")
				for _, ct := range compiled {
					for _, o := range ct.stack.Outputs {
						fmt.Fprintf(tw, "%s\t%s\t%s\n", ct.stack.StackName, o.Name, resolved[ct.stack.StackName][o.Name])
					}
				}
				return nil
			}
			return fmt.Errorf("unknown output %q (expected table or json)", output)
		},
	}
	tf = addTargetFlags(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", output, "Output format (table, json)")
	return cmd
}
