// File: cmd/sqswatch/runs.go
// Brief: 'sqswatch runs' ledger listing.

package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/sqswatch/internal/state"
)

func newRunsCommand() *cobra.Command {
	limit := 20
	var showEvents string
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded apply and delete runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ledger, err := state.Open(".", true)
			if err != nil {
				return err
			}
			defer ledger.Close()

			if showEvents != "" {
				events, err := ledger.RunEvents(ctx, showEvents)
				if err != nil {
					return err
				}
				if len(events) == 0 {
					return fmt.Errorf("no events for run %s", showEvents)
				}
				tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
				defer tw.Flush()
				fmt.Fprintln(tw, "TIME\tSTACK\tTYPE\tDETAIL")
				for _, ev := range events {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", ev.TS.Format(time.RFC3339), ev.Stack, ev.Type, ev.Detail)
				}
				return nil
			}

			runs, err := ledger.ListRuns(ctx, limit)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			defer tw.Flush()
			fmt.Fprintln(tw, "RUN\tCOMMAND\tREGION\tSTATUS\tSTACKS\tOK\tFAILED\tSTARTED")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
					r.ID, r.Command, r.Region, r.Status, r.Stacks, r.Succeeded, r.Failed, r.StartedAt.Format(time.RFC3339))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", limit, "Most recent runs to list")
	cmd.Flags().StringVar(&showEvents, "events", "", "Show the events of one run id instead")
	return cmd
}
