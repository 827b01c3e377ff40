// File: internal/monitor/compile.go
// Brief: Compiler: (queue, email) -> validated monitoring stack.

package monitor

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	namespaceSQS = "AWS/SQS"

	metricVisible = "ApproximateNumberOfMessagesVisible"
	metricAge     = "ApproximateAgeOfOldestMessage"
	metricSent    = "NumberOfMessagesSent"
	metricDeleted = "NumberOfMessagesDeleted"

	topicLogicalID     = "AlarmNotificationTopic"
	dashboardLogicalID = "MonitoringDashboard"
	depthLogicalID     = "MessageVisibleAlarm"
	ageLogicalID       = "OldestMessageAgeAlarm"
	divergeLogicalID   = "MessageDeletedDivergenceAlarm"
)

// Fixed alarm policies. The minimum statistic on both divergence inputs and
// the full-hour period are inherited threshold-tuning assumptions, kept as-is.
const (
	DepthThreshold     = 10000
	DepthPeriod        = 300
	AgeThreshold       = 3600
	AgePeriod          = 3600
	DivergencePeriod   = 3600
	DivergenceLimit    = 100
	evaluationPeriods  = 1
	divergenceMetricID = "e1"
	sentMetricID       = "m1"
	deletedMetricID    = "m2"
)

// DivergenceExpression is the step function driving the divergence alarm:
// 1 when the sampled sent/deleted counters drift apart by more than the
// limit, 0 otherwise.
var DivergenceExpression = fmt.Sprintf("IF(%s - %s > %d, 1, 0)", sentMetricID, deletedMetricID, DivergenceLimit)

var queueNameRe = regexp.MustCompile(`^[A-Za-z0-9_-]{1,80}$`)

// ValidateQueueName enforces the provider's queue naming constraints before
// anything is emitted.
func ValidateQueueName(queue string) error {
	if strings.TrimSpace(queue) == "" {
		return fmt.Errorf("queue name is required")
	}
	if !queueNameRe.MatchString(queue) {
		return fmt.Errorf("invalid queue name %q (expected 1-80 alphanumeric, hyphen, or underscore characters)", queue)
	}
	return nil
}

func resourcePrefix(queue string) string {
	return fmt.Sprintf("SQS-Queue-%s", queue)
}

// StackName returns the engine-side stack name for a queue. The engine
// rejects underscores in stack names, so they map to hyphens; all other
// monitoring resource names embed the queue name verbatim.
func StackName(queue string) string {
	return strings.ReplaceAll(resourcePrefix(queue)+"-Monitoring", "_", "-")
}

// DashboardName returns the dashboard name for a queue.
func DashboardName(queue string) string {
	return resourcePrefix(queue) + "-Monitoring"
}

func alarmName(queue, suffix string) string {
	return resourcePrefix(queue) + "-" + suffix
}

func queueSeries(queue, metric string) MetricSeries {
	return MetricSeries{
		Namespace:  namespaceSQS,
		MetricName: metric,
		Dimensions: map[string]string{"QueueName": queue},
	}
}

// Compile builds the full monitoring stack for one queue. It is pure and
// deterministic: equal inputs produce structurally identical stacks.
func Compile(queue, email string) (*Stack, error) {
	if err := ValidateQueueName(queue); err != nil {
		return nil, err
	}
	if strings.TrimSpace(email) == "" {
		return nil, fmt.Errorf("notification email is required")
	}

	channel := NotificationChannel{
		LogicalID: topicLogicalID,
		Endpoint:  email,
		Protocol:  "email",
	}
	actions := []string{channel.LogicalID}

	depth := ThresholdAlarm{
		LogicalID:   depthLogicalID,
		Name:        alarmName(queue, "MessageVisibleAlarm"),
		Description: fmt.Sprintf("Alarm if queue %s has more than %d visible messages", queue, DepthThreshold),
		Series:      queueSeries(queue, metricVisible),
		Stat:        StatisticMaximum,
		AlarmPolicy: AlarmPolicy{
			Period:            DepthPeriod,
			EvaluationPeriods: evaluationPeriods,
			Threshold:         DepthThreshold,
			Comparison:        CompareGreaterThan,
			MissingData:       DefaultMissingData,
		},
		Actions: actions,
	}

	age := ThresholdAlarm{
		LogicalID:   ageLogicalID,
		Name:        alarmName(queue, "OldestMessageAgeAlarm"),
		Description: fmt.Sprintf("Alarm if the oldest message in queue %s is older than %d seconds", queue, AgeThreshold),
		Series:      queueSeries(queue, metricAge),
		Stat:        StatisticMaximum,
		AlarmPolicy: AlarmPolicy{
			Period:            AgePeriod,
			EvaluationPeriods: evaluationPeriods,
			Threshold:         AgeThreshold,
			Comparison:        CompareGreaterThan,
			MissingData:       DefaultMissingData,
		},
		Actions: actions,
	}

	sent := queueSeries(queue, metricSent)
	deleted := queueSeries(queue, metricDeleted)
	divergence := ExpressionAlarm{
		LogicalID:   divergeLogicalID,
		Name:        alarmName(queue, "MessageDeletedDivergenceAlarm"),
		Description: fmt.Sprintf("Alarm if queue %s sends over %d more messages than it deletes per hour", queue, DivergenceLimit),
		Metrics: []MetricDefinition{
			{
				MetricID:   divergenceMetricID,
				Expression: DivergenceExpression,
				Label:      "SentDeletedDivergence",
				ReturnData: true,
			},
			{
				MetricID:   sentMetricID,
				Series:     &sent,
				Stat:       StatisticMinimum,
				Period:     DivergencePeriod,
				ReturnData: false,
			},
			{
				MetricID:   deletedMetricID,
				Series:     &deleted,
				Stat:       StatisticMinimum,
				Period:     DivergencePeriod,
				ReturnData: false,
			},
		},
		AlarmPolicy: AlarmPolicy{
			Period:            DivergencePeriod,
			EvaluationPeriods: evaluationPeriods,
			Threshold:         1,
			Comparison:        CompareGreaterOrEqual,
			MissingData:       MissingDataNotBreaching,
		},
		Actions: actions,
	}

	s := &Stack{
		QueueName: queue,
		Email:     email,
		StackName: StackName(queue),
		Channel:   channel,
		Dashboard: buildDashboard(queue),
		Alarms:    []Alarm{depth, age, divergence},
		Outputs: []Output{
			{
				Name:        "DashboardURL",
				Description: "Console URL of the queue monitoring dashboard",
				Value:       fmt.Sprintf("https://console.aws.amazon.com/cloudwatch/home?region=${AWS::Region}#dashboards:name=%s", DashboardName(queue)),
			},
			{
				Name:        "NotificationChannelId",
				Description: "Identifier of the alarm notification topic",
				Value:       fmt.Sprintf("${%s}", topicLogicalID),
			},
		},
	}

	if err := s.validate(); err != nil {
		return nil, err
	}
	graph, err := buildGraph(s)
	if err != nil {
		return nil, err
	}
	s.Graph = graph
	return s, nil
}

func (s *Stack) validate() error {
	for _, a := range s.Alarms {
		refs := a.ActionRefs()
		if len(refs) == 0 {
			return fmt.Errorf("alarm %s has no action targets", a.AlarmName())
		}
		for _, ref := range refs {
			if ref != s.Channel.LogicalID {
				return fmt.Errorf("alarm %s references unknown action target %q", a.AlarmName(), ref)
			}
		}
		if ea, ok := a.(ExpressionAlarm); ok {
			if err := validateExpressionAlarm(ea); err != nil {
				return err
			}
		}
	}
	return validateDashboard(s.Dashboard)
}

func validateExpressionAlarm(a ExpressionAlarm) error {
	defined := map[string]struct{}{}
	returning := 0
	for _, m := range a.Metrics {
		id := strings.TrimSpace(m.MetricID)
		if id == "" {
			return fmt.Errorf("alarm %s has a metric definition without an id", a.Name)
		}
		if _, dup := defined[id]; dup {
			return fmt.Errorf("alarm %s defines metric id %q twice", a.Name, id)
		}
		defined[id] = struct{}{}
		if (m.Expression == "") == (m.Series == nil) {
			return fmt.Errorf("alarm %s metric %s must set exactly one of expression or series", a.Name, id)
		}
		if m.ReturnData {
			returning++
		}
	}
	if returning != 1 {
		return fmt.Errorf("alarm %s must have exactly one returning metric, has %d", a.Name, returning)
	}
	for _, m := range a.Metrics {
		if m.Expression == "" {
			continue
		}
		for _, ref := range metricIDRefs(m.Expression) {
			if _, ok := defined[ref]; !ok {
				return fmt.Errorf("alarm %s expression references undefined metric id %q", a.Name, ref)
			}
		}
	}
	return nil
}

var metricIDRe = regexp.MustCompile(`\b[a-z][a-z0-9_]*\b`)

var expressionKeywords = map[string]struct{}{
	"if": {}, "and": {}, "or": {}, "not": {}, "true": {}, "false": {},
}

// metricIDRefs extracts the metric ids referenced by an expression. Provider
// metric ids are required to start with a lowercase letter, which separates
// them from function names once keywords are dropped.
func metricIDRefs(expr string) []string {
	var refs []string
	for _, tok := range metricIDRe.FindAllString(strings.ToLower(expr), -1) {
		if _, kw := expressionKeywords[tok]; kw {
			continue
		}
		refs = append(refs, tok)
	}
	return refs
}
