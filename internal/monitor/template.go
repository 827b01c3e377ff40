// File: internal/monitor/template.go
// Brief: Renders a compiled stack as a provisioning-engine template.

package monitor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

// TemplateFormat selects the rendered template encoding.
type TemplateFormat string

const (
	FormatJSON TemplateFormat = "json"
	FormatYAML TemplateFormat = "yaml"
)

// ParseTemplateFormat validates a user-supplied format string.
func ParseTemplateFormat(s string) (TemplateFormat, error) {
	switch TemplateFormat(s) {
	case FormatJSON, FormatYAML:
		return TemplateFormat(s), nil
	case "":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("unknown template format %q (expected json or yaml)", s)
}

// RenderTemplate encodes the stack as a CloudFormation template. JSON output
// is byte-deterministic: map keys marshal sorted, so equal stacks render
// equal bytes.
func RenderTemplate(s *Stack, format TemplateFormat) ([]byte, error) {
	body, err := templateBody(s)
	if err != nil {
		return nil, err
	}
	switch format {
	case FormatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(body); err != nil {
			return nil, fmt.Errorf("encode template yaml: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case FormatJSON, "":
		out, err := json.MarshalIndent(body, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encode template json: %w", err)
		}
		return append(out, '\n'), nil
	}
	return nil, fmt.Errorf("unknown template format %q", format)
}

func templateBody(s *Stack) (map[string]any, error) {
	dashboardBody, err := dashboardBodyJSON(s.Dashboard)
	if err != nil {
		return nil, err
	}

	resources := map[string]any{
		s.Channel.LogicalID: map[string]any{
			"Type": typeTopic,
			"Properties": map[string]any{
				"Subscription": []any{
					map[string]any{
						"Endpoint": s.Channel.Endpoint,
						"Protocol": s.Channel.Protocol,
					},
				},
			},
		},
		s.Dashboard.LogicalID: map[string]any{
			"Type": typeDashboard,
			"Properties": map[string]any{
				"DashboardName": s.Dashboard.Name,
				"DashboardBody": map[string]any{"Fn::Sub": dashboardBody},
			},
		},
	}

	for _, a := range s.Alarms {
		res, err := alarmResource(a)
		if err != nil {
			return nil, err
		}
		resources[a.ID()] = res
	}

	outputs := map[string]any{}
	for _, o := range s.Outputs {
		outputs[o.Name] = map[string]any{
			"Description": o.Description,
			"Value":       map[string]any{"Fn::Sub": o.Value},
		}
	}

	return map[string]any{
		"AWSTemplateFormatVersion": "2010-09-09",
		"Description":              fmt.Sprintf("Monitoring resources for SQS queue %s", s.QueueName),
		"Resources":                resources,
		"Outputs":                  outputs,
	}, nil
}

func alarmResource(a Alarm) (map[string]any, error) {
	policy := a.Policy()
	actions := make([]any, 0, len(a.ActionRefs()))
	for _, ref := range a.ActionRefs() {
		actions = append(actions, map[string]any{"Ref": ref})
	}

	props := map[string]any{
		"AlarmName":          a.AlarmName(),
		"ComparisonOperator": string(policy.Comparison),
		"EvaluationPeriods":  policy.EvaluationPeriods,
		"Threshold":          policy.Threshold,
		"AlarmActions":       actions,
	}
	if policy.MissingData != DefaultMissingData {
		props["TreatMissingData"] = string(policy.MissingData)
	}

	switch alarm := a.(type) {
	case ThresholdAlarm:
		props["AlarmDescription"] = alarm.Description
		props["Namespace"] = alarm.Series.Namespace
		props["MetricName"] = alarm.Series.MetricName
		props["Statistic"] = string(alarm.Stat)
		props["Period"] = alarm.Period
		props["Dimensions"] = dimensionList(alarm.Series.Dimensions)
	case ExpressionAlarm:
		props["AlarmDescription"] = alarm.Description
		metrics := make([]any, 0, len(alarm.Metrics))
		for _, m := range alarm.Metrics {
			metrics = append(metrics, metricDefinitionEntry(m))
		}
		props["Metrics"] = metrics
	default:
		return nil, fmt.Errorf("unknown alarm variant %T", a)
	}

	return map[string]any{
		"Type":       typeAlarm,
		"DependsOn":  a.ActionRefs(),
		"Properties": props,
	}, nil
}

func metricDefinitionEntry(m MetricDefinition) map[string]any {
	entry := map[string]any{
		"Id":         m.MetricID,
		"ReturnData": m.ReturnData,
	}
	if m.Label != "" {
		entry["Label"] = m.Label
	}
	if m.Expression != "" {
		entry["Expression"] = m.Expression
		return entry
	}
	entry["MetricStat"] = map[string]any{
		"Metric": map[string]any{
			"Namespace":  m.Series.Namespace,
			"MetricName": m.Series.MetricName,
			"Dimensions": dimensionList(m.Series.Dimensions),
		},
		"Period": m.Period,
		"Stat":   string(m.Stat),
	}
	return entry
}

func dimensionList(dims map[string]string) []any {
	names := make([]string, 0, len(dims))
	for name := range dims {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]any, 0, len(names))
	for _, name := range names {
		out = append(out, map[string]any{"Name": name, "Value": dims[name]})
	}
	return out
}

// dashboardBodyJSON renders the console dashboard body. The body is a JSON
// string nested inside the template; region placeholders stay as ${AWS::Region}
// for the engine to substitute.
func dashboardBodyJSON(d Dashboard) (string, error) {
	widgets := make([]any, 0, len(d.Widgets))
	for _, w := range d.Widgets {
		metrics := make([]any, 0, len(w.Series))
		for _, series := range w.Series {
			row := []any{series.Namespace, series.MetricName}
			names := make([]string, 0, len(series.Dimensions))
			for name := range series.Dimensions {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				row = append(row, name, series.Dimensions[name])
			}
			metrics = append(metrics, row)
		}
		widgets = append(widgets, map[string]any{
			"type":   "metric",
			"x":      w.X,
			"y":      w.Y,
			"width":  w.Width,
			"height": w.Height,
			"properties": map[string]any{
				"metrics": metrics,
				"period":  w.Period,
				"stat":    string(w.Stat),
				"view":    w.View,
				"stacked": false,
				"region":  "${AWS::Region}",
				"title":   w.Title,
			},
		})
	}
	body, err := json.Marshal(map[string]any{"widgets": widgets})
	if err != nil {
		return "", fmt.Errorf("encode dashboard body: %w", err)
	}
	return string(body), nil
}
