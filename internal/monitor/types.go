// File: internal/monitor/types.go
// Brief: Typed resources of the monitoring stack descriptor.

// Package monitor compiles a (queue, email) input pair into a declarative
// monitoring stack: one notification channel, one dashboard, three alarms,
// and the derived outputs. Compilation is pure; all effects happen when the
// emitted stack is handed to the provisioning engine.
package monitor

import "fmt"

// MissingDataPolicy governs alarm behavior when no data points arrive in an
// evaluation window.
type MissingDataPolicy string

const (
	MissingDataBreaching    MissingDataPolicy = "breaching"
	MissingDataNotBreaching MissingDataPolicy = "notBreaching"
	MissingDataIgnore       MissingDataPolicy = "ignore"
	MissingDataMissing      MissingDataPolicy = "missing"
)

// DefaultMissingData is the engine default applied when an alarm does not set
// a policy explicitly. Kept as an explicit constant so the asymmetry between
// the divergence alarm and the two threshold alarms stays visible.
const DefaultMissingData = MissingDataMissing

// ComparisonOperator is the provider-side comparison applied between the
// sampled signal and the alarm threshold.
type ComparisonOperator string

const (
	CompareGreaterThan    ComparisonOperator = "GreaterThanThreshold"
	CompareGreaterOrEqual ComparisonOperator = "GreaterThanOrEqualToThreshold"
	CompareLessThan       ComparisonOperator = "LessThanThreshold"
	CompareLessOrEqual    ComparisonOperator = "LessThanOrEqualToThreshold"
)

// Statistic names a provider aggregation applied over one period.
type Statistic string

const (
	StatisticMaximum Statistic = "Maximum"
	StatisticMinimum Statistic = "Minimum"
	StatisticSum     Statistic = "Sum"
	StatisticAverage Statistic = "Average"
)

// NotificationChannel is the single alert sink of a stack. It is created once
// and referenced, never owned, by every alarm.
type NotificationChannel struct {
	LogicalID string
	Endpoint  string
	Protocol  string
}

// MetricSeries identifies one time-indexed series by namespace, metric name,
// and dimension set. Series are read-only here; the monitored queue populates
// them on the provider side.
type MetricSeries struct {
	Namespace  string
	MetricName string
	Dimensions map[string]string
}

// Widget is one dashboard chart: a rectangle on the 24-unit grid plus the
// query it renders.
type Widget struct {
	X      int
	Y      int
	Width  int
	Height int
	Title  string
	Stat   Statistic
	Period int
	View   string
	Series []MetricSeries
}

// Dashboard is the ordered widget list rendered as one console page.
type Dashboard struct {
	LogicalID string
	Name      string
	Widgets   []Widget
}

// Alarm is the tagged-variant view over ThresholdAlarm and ExpressionAlarm.
type Alarm interface {
	ID() string
	AlarmName() string
	ActionRefs() []string
	Policy() AlarmPolicy
}

// AlarmPolicy is the evaluation contract shared by both alarm variants.
type AlarmPolicy struct {
	Period            int
	EvaluationPeriods int
	Threshold         float64
	Comparison        ComparisonOperator
	MissingData       MissingDataPolicy
}

// ThresholdAlarm compares one raw metric series against a threshold.
type ThresholdAlarm struct {
	LogicalID   string
	Name        string
	Description string
	Series      MetricSeries
	Stat        Statistic
	AlarmPolicy
	Actions []string
}

func (a ThresholdAlarm) ID() string           { return a.LogicalID }
func (a ThresholdAlarm) AlarmName() string    { return a.Name }
func (a ThresholdAlarm) ActionRefs() []string { return a.Actions }
func (a ThresholdAlarm) Policy() AlarmPolicy  { return a.AlarmPolicy }

// MetricDefinition is one entry of an expression alarm's metric set: either a
// sampled series (Series set) or a derived series (Expression set). Exactly
// one definition per alarm returns data and drives the alarm state.
type MetricDefinition struct {
	MetricID   string
	Expression string
	Label      string
	Series     *MetricSeries
	Stat       Statistic
	Period     int
	ReturnData bool
}

// ExpressionAlarm composes named metric series through an arithmetic
// expression and compares the derived signal against a threshold.
type ExpressionAlarm struct {
	LogicalID   string
	Name        string
	Description string
	Metrics     []MetricDefinition
	AlarmPolicy
	Actions []string
}

func (a ExpressionAlarm) ID() string           { return a.LogicalID }
func (a ExpressionAlarm) AlarmName() string    { return a.Name }
func (a ExpressionAlarm) ActionRefs() []string { return a.Actions }
func (a ExpressionAlarm) Policy() AlarmPolicy  { return a.AlarmPolicy }

// Output is a named value resolvable only after the engine applied the stack.
type Output struct {
	Name        string
	Description string
	Value       string
}

// Stack is the root aggregate emitted by Compile. It is a pure value:
// compiling the same inputs twice yields structurally identical stacks, which
// the engine's declarative reconciliation depends on.
type Stack struct {
	QueueName string
	Email     string
	StackName string
	Channel   NotificationChannel
	Dashboard Dashboard
	Alarms    []Alarm
	Outputs   []Output
	Graph     *Graph
}

// AlarmNames returns the provider-visible alarm names in declaration order.
func (s *Stack) AlarmNames() []string {
	names := make([]string, 0, len(s.Alarms))
	for _, a := range s.Alarms {
		names = append(names, a.AlarmName())
	}
	return names
}

// AlarmByID returns the alarm with the given logical id.
func (s *Stack) AlarmByID(id string) (Alarm, error) {
	for _, a := range s.Alarms {
		if a.ID() == id {
			return a, nil
		}
	}
	return nil, fmt.Errorf("stack %s has no alarm %q", s.StackName, id)
}
