// File: cmd/sqswatch/metrics.go
// Brief: 'sqswatch metrics' snapshot via the stack's own queries.

package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/sqswatch/internal/inspect"
)

func newMetricsCommand(region *string) *cobra.Command {
	lookback := time.Hour
	var tf *targetFlags
	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Fetch the latest values of each stack's metric queries",
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
			inspector := inspect.NewFromConfig(cfg)

			tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			defer tw.Flush()
			for i, ct := range compiled {
				if i > 0 {
					fmt.Fprintln(tw)
				}
				samples, err := inspector.MetricSnapshot(ctx, ct.stack, lookback)
				if err != nil {
					return err
				}
				fmt.Fprintf(tw, "QUEUE\t%s (last %s)\n", ct.stack.QueueName, lookback)
				fmt.Fprintln(tw, "ID\tSERIES\tVALUE\tAT")
				for _, s := range samples {
					if !s.HasData {
						fmt.Fprintf(tw, "%s\t%s\tno data\t-\n", s.ID, s.Label)
						continue
					}
					fmt.Fprintf(tw, "%s\t%s\t%g\t%s\n", s.ID, s.Label, s.Value, s.Time.Format(time.RFC3339))
				}
			}
			return nil
		},
	}
	tf = addTargetFlags(cmd)
	cmd.Flags().DurationVar(&lookback, "lookback", lookback, "How far back to query")
	return cmd
}
