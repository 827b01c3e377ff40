// File: internal/inspect/inspect.go
// Brief: Read-side views: alarm states, subscriptions, queue preflight.

// Package inspect answers "what is the engine seeing right now" questions
// without touching any resource: current alarm states, the confirmation
// state of the notification channel's subscriptions, and whether the
// monitored queue exists at all.
package inspect

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/example/sqswatch/internal/monitor"
)

// CloudWatchAPI is the metric/alarm read surface.
type CloudWatchAPI interface {
	DescribeAlarms(ctx context.Context, in *cloudwatch.DescribeAlarmsInput, opts ...func(*cloudwatch.Options)) (*cloudwatch.DescribeAlarmsOutput, error)
	GetMetricData(ctx context.Context, in *cloudwatch.GetMetricDataInput, opts ...func(*cloudwatch.Options)) (*cloudwatch.GetMetricDataOutput, error)
}

// SNSAPI is the subscription read surface.
type SNSAPI interface {
	ListSubscriptionsByTopic(ctx context.Context, in *sns.ListSubscriptionsByTopicInput, opts ...func(*sns.Options)) (*sns.ListSubscriptionsByTopicOutput, error)
}

// SQSAPI is the queue preflight surface.
type SQSAPI interface {
	GetQueueUrl(ctx context.Context, in *sqs.GetQueueUrlInput, opts ...func(*sqs.Options)) (*sqs.GetQueueUrlOutput, error)
}

// Inspector bundles the three read clients.
type Inspector struct {
	CW  CloudWatchAPI
	SNS SNSAPI
	SQS SQSAPI
}

// NewFromConfig builds an inspector on real clients.
func NewFromConfig(cfg aws.Config) *Inspector {
	return &Inspector{
		CW:  cloudwatch.NewFromConfig(cfg),
		SNS: sns.NewFromConfig(cfg),
		SQS: sqs.NewFromConfig(cfg),
	}
}

// AlarmState is the engine-side state of one alarm.
type AlarmState struct {
	Name    string
	State   string
	Reason  string
	Updated time.Time
}

// AlarmStates returns current states for the named alarms. Alarms the engine
// does not know yet are reported as not-created rather than omitted.
func (i *Inspector) AlarmStates(ctx context.Context, names []string) ([]AlarmState, error) {
	out, err := i.CW.DescribeAlarms(ctx, &cloudwatch.DescribeAlarmsInput{AlarmNames: names})
	if err != nil {
		return nil, fmt.Errorf("describe alarms: %w", err)
	}
	byName := map[string]cwtypes.MetricAlarm{}
	for _, a := range out.MetricAlarms {
		byName[aws.ToString(a.AlarmName)] = a
	}
	states := make([]AlarmState, 0, len(names))
	for _, name := range names {
		a, ok := byName[name]
		if !ok {
			states = append(states, AlarmState{Name: name, State: "NOT_CREATED"})
			continue
		}
		states = append(states, AlarmState{
			Name:    name,
			State:   string(a.StateValue),
			Reason:  aws.ToString(a.StateReason),
			Updated: aws.ToTime(a.StateUpdatedTimestamp),
		})
	}
	return states, nil
}

// Subscription is one notification channel endpoint.
type Subscription struct {
	Endpoint  string
	Protocol  string
	Confirmed bool
}

// Subscriptions lists the endpoints of a topic. Email endpoints stay
// unconfirmed until the recipient clicks the confirmation link.
func (i *Inspector) Subscriptions(ctx context.Context, topicARN string) ([]Subscription, error) {
	var subs []Subscription
	var next *string
	for {
		out, err := i.SNS.ListSubscriptionsByTopic(ctx, &sns.ListSubscriptionsByTopicInput{
			TopicArn:  aws.String(topicARN),
			NextToken: next,
		})
		if err != nil {
			return nil, fmt.Errorf("list subscriptions for %s: %w", topicARN, err)
		}
		for _, s := range out.Subscriptions {
			arn := aws.ToString(s.SubscriptionArn)
			subs = append(subs, Subscription{
				Endpoint:  aws.ToString(s.Endpoint),
				Protocol:  aws.ToString(s.Protocol),
				Confirmed: arn != "" && arn != "PendingConfirmation" && arn != "Deleted",
			})
		}
		if out.NextToken == nil {
			return subs, nil
		}
		next = out.NextToken
	}
}

// QueueExists checks that the monitored queue is real before a stack is
// applied against it.
func (i *Inspector) QueueExists(ctx context.Context, queue string) (bool, error) {
	_, err := i.SQS.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{QueueName: aws.String(queue)})
	if err != nil {
		var nf *sqstypes.QueueDoesNotExist
		if errors.As(err, &nf) {
			return false, nil
		}
		return false, fmt.Errorf("get queue url for %s: %w", queue, err)
	}
	return true, nil
}

// Sample is the most recent value of one snapshot series.
type Sample struct {
	ID      string
	Label   string
	Value   float64
	Time    time.Time
	HasData bool
}

// MetricQueries derives the snapshot query set from a compiled stack: one
// returning query per threshold alarm signal plus the expression alarm's
// full metric set, ids included, so the engine evaluates the exact
// expression the descriptor declares.
func MetricQueries(s *monitor.Stack) ([]cwtypes.MetricDataQuery, error) {
	var queries []cwtypes.MetricDataQuery
	thresholdSeq := 0
	for _, a := range s.Alarms {
		switch alarm := a.(type) {
		case monitor.ThresholdAlarm:
			thresholdSeq++
			queries = append(queries, cwtypes.MetricDataQuery{
				Id:         aws.String(fmt.Sprintf("t%d", thresholdSeq)),
				Label:      aws.String(alarm.Name),
				ReturnData: aws.Bool(true),
				MetricStat: metricStat(alarm.Series, alarm.Stat, alarm.Period),
			})
		case monitor.ExpressionAlarm:
			for _, m := range alarm.Metrics {
				q := cwtypes.MetricDataQuery{
					Id:         aws.String(m.MetricID),
					ReturnData: aws.Bool(m.ReturnData),
				}
				if m.Label != "" {
					q.Label = aws.String(m.Label)
				}
				if m.Expression != "" {
					q.Expression = aws.String(m.Expression)
				} else {
					q.MetricStat = metricStat(*m.Series, m.Stat, m.Period)
				}
				queries = append(queries, q)
			}
		default:
			return nil, fmt.Errorf("unknown alarm variant %T", a)
		}
	}
	return queries, nil
}

func metricStat(series monitor.MetricSeries, stat monitor.Statistic, period int) *cwtypes.MetricStat {
	var dims []cwtypes.Dimension
	for name, value := range series.Dimensions {
		dims = append(dims, cwtypes.Dimension{Name: aws.String(name), Value: aws.String(value)})
	}
	return &cwtypes.MetricStat{
		Metric: &cwtypes.Metric{
			Namespace:  aws.String(series.Namespace),
			MetricName: aws.String(series.MetricName),
			Dimensions: dims,
		},
		Period: aws.Int32(int32(period)),
		Stat:   aws.String(string(stat)),
	}
}

// MetricSnapshot fetches the latest values of the stack's own queries over
// the lookback window.
func (i *Inspector) MetricSnapshot(ctx context.Context, s *monitor.Stack, lookback time.Duration) ([]Sample, error) {
	queries, err := MetricQueries(s)
	if err != nil {
		return nil, err
	}
	if lookback <= 0 {
		lookback = time.Hour
	}
	end := time.Now().UTC()
	out, err := i.CW.GetMetricData(ctx, &cloudwatch.GetMetricDataInput{
		StartTime:         aws.Time(end.Add(-lookback)),
		EndTime:           aws.Time(end),
		MetricDataQueries: queries,
	})
	if err != nil {
		return nil, fmt.Errorf("get metric data for %s: %w", s.QueueName, err)
	}

	samples := make([]Sample, 0, len(out.MetricDataResults))
	for _, res := range out.MetricDataResults {
		sample := Sample{
			ID:    aws.ToString(res.Id),
			Label: aws.ToString(res.Label),
		}
		// Results arrive newest first; index 0 is the freshest point.
		if len(res.Values) > 0 {
			sample.Value = res.Values[0]
			sample.HasData = true
			if len(res.Timestamps) > 0 {
				sample.Time = res.Timestamps[0]
			}
		}
		samples = append(samples, sample)
	}
	return samples, nil
}
