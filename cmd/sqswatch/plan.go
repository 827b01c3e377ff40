// File: cmd/sqswatch/plan.go
// Brief: 'sqswatch plan' resource and policy tables.

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/sqswatch/internal/monitor"
)

func newPlanCommand() *cobra.Command {
	output := "table"
	var tf *targetFlags
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show the resource graph and alarm policies each queue compiles to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			targets, _, err := tf.resolve()
			if err != nil {
				return err
			}
			stacks := make([]*monitor.Stack, 0, len(targets))
			for _, t := range targets {
				s, err := monitor.Compile(t.Queue, t.Email)
				if err != nil {
					return err
				}
				stacks = append(stacks, s)
			}
			switch output {
			case "json":
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(planJSON(stacks))
			case "table":
				for i, s := range stacks {
					if i > 0 {
						fmt.Println()
					}
					if err := monitor.PrintPlanTable(os.Stdout, s); err != nil {
						return err
					}
					fmt.Println()
					if err := monitor.PrintPolicyTable(os.Stdout, s); err != nil {
						return err
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

type planStackJSON struct {
	StackName string                 `json:"stackName"`
	Queue     string                 `json:"queue"`
	Channel   string                 `json:"channel"`
	Resources []monitor.ResourceNode `json:"resources"`
	Alarms    []planAlarmJSON        `json:"alarms"`
}

type planAlarmJSON struct {
	Name        string  `json:"name"`
	Period      int     `json:"periodSeconds"`
	Evaluations int     `json:"evaluationPeriods"`
	Threshold   float64 `json:"threshold"`
	Comparison  string  `json:"comparisonOperator"`
	MissingData string  `json:"missingDataPolicy"`
}

func planJSON(stacks []*monitor.Stack) []planStackJSON {
	out := make([]planStackJSON, 0, len(stacks))
	for _, s := range stacks {
		entry := planStackJSON{
			StackName: s.StackName,
			Queue:     s.QueueName,
			Channel:   s.Channel.Endpoint,
			Resources: s.Graph.Nodes,
		}
		for _, a := range s.Alarms {
			p := a.Policy()
			entry.Alarms = append(entry.Alarms, planAlarmJSON{
				Name:        a.AlarmName(),
				Period:      p.Period,
				Evaluations: p.EvaluationPeriods,
				Threshold:   p.Threshold,
				Comparison:  string(p.Comparison),
				MissingData: string(p.MissingData),
			})
		}
		out = append(out, entry)
	}
	return out
}
