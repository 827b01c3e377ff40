package monitor

import (
	"reflect"
	"strings"
	"testing"
)

func TestGraph_ChannelBeforeAlarms(t *testing.T) {
	s := mustCompile(t, "orders-queue", "ops@example.com")
	waves := s.Graph.Waves()
	if len(waves) != 2 {
		t.Fatalf("waves=%d", len(waves))
	}
	if want := []string{"AlarmNotificationTopic", "MonitoringDashboard"}; !reflect.DeepEqual(waves[0], want) {
		t.Fatalf("wave0=%v want=%v", waves[0], want)
	}
	if want := []string{"MessageDeletedDivergenceAlarm", "MessageVisibleAlarm", "OldestMessageAgeAlarm"}; !reflect.DeepEqual(waves[1], want) {
		t.Fatalf("wave1=%v want=%v", waves[1], want)
	}
	for _, id := range waves[1] {
		n := s.Graph.ByID[id]
		if len(n.DependsOn) != 1 || n.DependsOn[0] != s.Channel.LogicalID {
			t.Fatalf("%s depends=%v", id, n.DependsOn)
		}
	}
}

func TestGraph_RejectsMissingDependency(t *testing.T) {
	g := &Graph{
		Nodes: []ResourceNode{
			{LogicalID: "a", DependsOn: []string{"ghost"}},
		},
	}
	g.ByID = map[string]*ResourceNode{"a": &g.Nodes[0]}
	if err := g.assignWaves(); err == nil || !strings.Contains(err.Error(), "missing resource") {
		t.Fatalf("err=%v", err)
	}
}

func TestGraph_RejectsCycle(t *testing.T) {
	g := &Graph{
		Nodes: []ResourceNode{
			{LogicalID: "a", DependsOn: []string{"b"}},
			{LogicalID: "b", DependsOn: []string{"a"}},
		},
	}
	g.ByID = map[string]*ResourceNode{"a": &g.Nodes[0], "b": &g.Nodes[1]}
	if err := g.assignWaves(); err == nil || !strings.Contains(err.Error(), "cycle") {
		t.Fatalf("err=%v", err)
	}
}
