// File: internal/monitor/print.go
// Brief: Human-friendly plan and policy tables.

package monitor

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
)

// PrintPlanTable writes the resource plan for one compiled stack.
func PrintPlanTable(w io.Writer, s *Stack) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintf(tw, "STACK\t%s\n", s.StackName)
	fmt.Fprintf(tw, "QUEUE\t%s\n", s.QueueName)
	fmt.Fprintf(tw, "CHANNEL\t%s (%s)\n", s.Channel.Endpoint, s.Channel.Protocol)
	fmt.Fprintln(tw)

	fmt.Fprintln(tw, "WAVE\tLOGICAL ID\tTYPE\tNAME\tDEPENDS_ON")
	nodes := append([]ResourceNode(nil), s.Graph.Nodes...)
	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].Wave != nodes[j].Wave {
			return nodes[i].Wave < nodes[j].Wave
		}
		return nodes[i].LogicalID < nodes[j].LogicalID
	})
	for _, n := range nodes {
		deps := strings.Join(n.DependsOn, ",")
		if deps == "" {
			deps = "-"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", n.Wave, n.LogicalID, n.Type, n.Name, deps)
	}
	return nil
}

// PrintPolicyTable writes the alarm evaluation policies of a stack.
func PrintPolicyTable(w io.Writer, s *Stack) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintln(tw, "ALARM\tSIGNAL\tPERIOD\tEVALS\tTHRESHOLD\tOP\tMISSING_DATA")
	for _, a := range s.Alarms {
		p := a.Policy()
		fmt.Fprintf(tw, "%s\t%s\t%ds\t%d\t%g\t%s\t%s\n",
			a.AlarmName(), alarmSignal(a), p.Period, p.EvaluationPeriods, p.Threshold, comparatorSymbol(p.Comparison), p.MissingData)
	}
	return nil
}

func alarmSignal(a Alarm) string {
	switch alarm := a.(type) {
	case ThresholdAlarm:
		return fmt.Sprintf("%s(%s)", alarm.Stat, alarm.Series.MetricName)
	case ExpressionAlarm:
		for _, m := range alarm.Metrics {
			if m.ReturnData && m.Expression != "" {
				return m.Expression
			}
		}
	}
	return "-"
}

func comparatorSymbol(op ComparisonOperator) string {
	switch op {
	case CompareGreaterThan:
		return ">"
	case CompareGreaterOrEqual:
		return ">="
	case CompareLessThan:
		return "<"
	case CompareLessOrEqual:
		return "<="
	}
	return string(op)
}
