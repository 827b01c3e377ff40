package monitor

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func renderJSON(t *testing.T, s *Stack) map[string]any {
	t.Helper()
	raw, err := RenderTemplate(s, FormatJSON)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("unmarshal rendered template: %v", err)
	}
	return doc
}

func section(t *testing.T, doc map[string]any, keys ...string) map[string]any {
	t.Helper()
	cur := doc
	for _, k := range keys {
		next, ok := cur[k].(map[string]any)
		if !ok {
			t.Fatalf("missing section %v", keys)
		}
		cur = next
	}
	return cur
}

func TestRenderTemplate_DeterministicBytes(t *testing.T) {
	a, err := RenderTemplate(mustCompile(t, "orders-queue", "ops@example.com"), FormatJSON)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	b, err := RenderTemplate(mustCompile(t, "orders-queue", "ops@example.com"), FormatJSON)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Fatalf("template bytes differ across identical compiles")
	}
}

func TestRenderTemplate_Resources(t *testing.T) {
	s := mustCompile(t, "orders-queue", "ops@example.com")
	doc := renderJSON(t, s)

	resources := section(t, doc, "Resources")
	if len(resources) != 5 {
		t.Fatalf("resources=%d", len(resources))
	}

	topic := section(t, resources, "AlarmNotificationTopic")
	if topic["Type"] != "AWS::SNS::Topic" {
		t.Fatalf("topic type=%v", topic["Type"])
	}
	subs, ok := section(t, topic, "Properties")["Subscription"].([]any)
	if !ok || len(subs) != 1 {
		t.Fatalf("subscriptions=%v", subs)
	}
	sub := subs[0].(map[string]any)
	if sub["Endpoint"] != "ops@example.com" || sub["Protocol"] != "email" {
		t.Fatalf("subscription=%v", sub)
	}

	for _, id := range []string{"MessageVisibleAlarm", "OldestMessageAgeAlarm", "MessageDeletedDivergenceAlarm"} {
		alarm := section(t, resources, id)
		if alarm["Type"] != "AWS::CloudWatch::Alarm" {
			t.Fatalf("%s type=%v", id, alarm["Type"])
		}
		deps, ok := alarm["DependsOn"].([]any)
		if !ok || len(deps) != 1 || deps[0] != "AlarmNotificationTopic" {
			t.Fatalf("%s dependsOn=%v", id, alarm["DependsOn"])
		}
		actions, ok := section(t, alarm, "Properties")["AlarmActions"].([]any)
		if !ok || len(actions) != 1 {
			t.Fatalf("%s actions=%v", id, actions)
		}
		if ref := actions[0].(map[string]any)["Ref"]; ref != "AlarmNotificationTopic" {
			t.Fatalf("%s action ref=%v", id, ref)
		}
	}

	depth := section(t, resources, "MessageVisibleAlarm", "Properties")
	if depth["MetricName"] != "ApproximateNumberOfMessagesVisible" || depth["Statistic"] != "Maximum" {
		t.Fatalf("depth props=%v", depth)
	}
	if depth["Threshold"].(float64) != 10000 || depth["Period"].(float64) != 300 {
		t.Fatalf("depth props=%v", depth)
	}
	if _, set := depth["TreatMissingData"]; set {
		t.Fatalf("depth alarm should keep the engine default missing-data policy")
	}

	div := section(t, resources, "MessageDeletedDivergenceAlarm", "Properties")
	if div["TreatMissingData"] != "notBreaching" {
		t.Fatalf("divergence missing-data=%v", div["TreatMissingData"])
	}
	if div["ComparisonOperator"] != "GreaterThanOrEqualToThreshold" {
		t.Fatalf("divergence comparator=%v", div["ComparisonOperator"])
	}
	metrics, ok := div["Metrics"].([]any)
	if !ok || len(metrics) != 3 {
		t.Fatalf("divergence metrics=%v", div["Metrics"])
	}
	returning := 0
	for _, entry := range metrics {
		m := entry.(map[string]any)
		if m["ReturnData"] == true {
			returning++
			if m["Expression"] != "IF(m1 - m2 > 100, 1, 0)" {
				t.Fatalf("expression=%v", m["Expression"])
			}
		} else {
			stat := section(t, m, "MetricStat")
			if stat["Stat"] != "Minimum" || stat["Period"].(float64) != 3600 {
				t.Fatalf("metric stat=%v", stat)
			}
		}
	}
	if returning != 1 {
		t.Fatalf("returning metrics=%d", returning)
	}
}

func TestRenderTemplate_DashboardBody(t *testing.T) {
	s := mustCompile(t, "orders-queue", "ops@example.com")
	doc := renderJSON(t, s)

	dash := section(t, doc, "Resources", "MonitoringDashboard", "Properties")
	if dash["DashboardName"] != "SQS-Queue-orders-queue-Monitoring" {
		t.Fatalf("dashboard name=%v", dash["DashboardName"])
	}
	body, ok := section(t, dash, "DashboardBody")["Fn::Sub"].(string)
	if !ok {
		t.Fatalf("dashboard body is not a Fn::Sub string")
	}
	if !strings.Contains(body, "${AWS::Region}") {
		t.Fatalf("dashboard body lost the region placeholder")
	}
	var parsed struct {
		Widgets []struct {
			X          int            `json:"x"`
			Y          int            `json:"y"`
			Width      int            `json:"width"`
			Properties map[string]any `json:"properties"`
		} `json:"widgets"`
	}
	if err := json.Unmarshal([]byte(body), &parsed); err != nil {
		t.Fatalf("dashboard body is not valid JSON: %v", err)
	}
	if len(parsed.Widgets) != 3 {
		t.Fatalf("widgets=%d", len(parsed.Widgets))
	}
	wide := parsed.Widgets[2]
	if wide.Width != 24 || wide.Y != 6 {
		t.Fatalf("sent/deleted widget=%+v", wide)
	}
	metrics, ok := wide.Properties["metrics"].([]any)
	if !ok || len(metrics) != 2 {
		t.Fatalf("sent/deleted series=%v", wide.Properties["metrics"])
	}
	row := metrics[0].([]any)
	if row[0] != "AWS/SQS" || row[1] != "NumberOfMessagesSent" || row[2] != "QueueName" || row[3] != "orders-queue" {
		t.Fatalf("series row=%v", row)
	}
}

func TestRenderTemplate_Outputs(t *testing.T) {
	s := mustCompile(t, "orders-queue", "ops@example.com")
	doc := renderJSON(t, s)

	outputs := section(t, doc, "Outputs")
	url := section(t, outputs, "DashboardURL")["Value"].(map[string]any)["Fn::Sub"].(string)
	if !strings.Contains(url, "${AWS::Region}") || !strings.Contains(url, "SQS-Queue-orders-queue-Monitoring") {
		t.Fatalf("dashboard url=%q", url)
	}
	channel := section(t, outputs, "NotificationChannelId")["Value"].(map[string]any)["Fn::Sub"].(string)
	if channel != "${AlarmNotificationTopic}" {
		t.Fatalf("channel id=%q", channel)
	}
}

func TestRenderTemplate_YAML(t *testing.T) {
	s := mustCompile(t, "orders-queue", "ops@example.com")
	raw, err := RenderTemplate(s, FormatYAML)
	if err != nil {
		t.Fatalf("render yaml: %v", err)
	}
	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("unmarshal yaml: %v", err)
	}
	if _, ok := doc["Resources"].(map[string]any); !ok {
		t.Fatalf("yaml template missing Resources")
	}
}

func TestParseTemplateFormat(t *testing.T) {
	if f, err := ParseTemplateFormat(""); err != nil || f != FormatJSON {
		t.Fatalf("default format=%v err=%v", f, err)
	}
	if _, err := ParseTemplateFormat("toml"); err == nil {
		t.Fatalf("expected error for unknown format")
	}
}
