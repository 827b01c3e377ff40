// File: cmd/sqswatch/status.go
// Brief: 'sqswatch status' live view per monitored queue.

package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/example/sqswatch/internal/inspect"
	"github.com/example/sqswatch/internal/provision"
	"github.com/example/sqswatch/internal/ui"
)

func newStatusCommand(region *string) *cobra.Command {
	var tf *targetFlags
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show stack status, alarm states, and subscription confirmations",
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
			inspector := inspect.NewFromConfig(cfg)

			reasonWidth := 60
			if cols, ok := ui.TerminalWidth(os.Stdout); ok && cols > 80 {
				reasonWidth = cols - 70
			}

			tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			defer tw.Flush()
			for i, ct := range compiled {
				if i > 0 {
					fmt.Fprintln(tw)
				}
				s := ct.stack

				queueExists, err := inspector.QueueExists(ctx, s.QueueName)
				if err != nil {
					return err
				}
				queueNote := "exists"
				if !queueExists {
					queueNote = color.RedString("NOT FOUND")
				}
				fmt.Fprintf(tw, "QUEUE\t%s (%s)\n", s.QueueName, queueNote)

				stackStatus, err := engine.Status(ctx, s.StackName)
				if err != nil {
					return err
				}
				if stackStatus == "" {
					fmt.Fprintf(tw, "STACK\t%s (%s)\n", s.StackName, color.YellowString("not created"))
					continue
				}
				fmt.Fprintf(tw, "STACK\t%s (%s)\n", s.StackName, colorStackStatus(stackStatus))

				outputs, err := engine.Outputs(ctx, s.StackName, nil)
				if err == nil {
					if topicARN := outputs["NotificationChannelId"]; topicARN != "" {
						subs, err := inspector.Subscriptions(ctx, topicARN)
						if err != nil {
							return err
						}
						for _, sub := range subs {
							note := color.GreenString("confirmed")
							if !sub.Confirmed {
								note = color.YellowString("pending confirmation")
							}
							fmt.Fprintf(tw, "CHANNEL\t%s (%s, %s)\n", sub.Endpoint, sub.Protocol, note)
						}
					}
				}

				states, err := inspector.AlarmStates(ctx, s.AlarmNames())
				if err != nil {
					return err
				}
				fmt.Fprintln(tw, "ALARM\tSTATE\tREASON")
				for _, st := range states {
					fmt.Fprintf(tw, "%s\t%s\t%s\n", st.Name, colorAlarmState(st.State), ui.Truncate(st.Reason, reasonWidth))
				}
			}
			return nil
		},
	}
	tf = addTargetFlags(cmd)
	return cmd
}

func colorAlarmState(state string) string {
	switch state {
	case "OK":
		return color.GreenString(state)
	case "ALARM":
		return color.RedString(state)
	case "INSUFFICIENT_DATA":
		return color.YellowString(state)
	}
	return state
}

func colorStackStatus(status string) string {
	switch {
	case strings.HasSuffix(status, "_FAILED"), strings.Contains(status, "ROLLBACK"):
		return color.RedString(status)
	case strings.HasSuffix(status, "_COMPLETE"):
		return color.GreenString(status)
	}
	return color.YellowString(status)
}
