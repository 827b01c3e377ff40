// File: internal/monitor/graph.go
// Brief: Resource graph construction and stable execution waves.

package monitor

import (
	"fmt"
	"sort"
)

// ResourceNode is one vertex of the emitted resource graph.
type ResourceNode struct {
	LogicalID string
	Type      string
	Name      string
	DependsOn []string
	Wave      int
}

// Graph is the dependency view of a compiled stack. Waves are the engine's
// topological apply order: everything in wave n is safe to create once all
// of wave n-1 settled.
type Graph struct {
	Nodes []ResourceNode
	ByID  map[string]*ResourceNode
}

const (
	typeTopic     = "AWS::SNS::Topic"
	typeDashboard = "AWS::CloudWatch::Dashboard"
	typeAlarm     = "AWS::CloudWatch::Alarm"
)

func buildGraph(s *Stack) (*Graph, error) {
	nodes := []ResourceNode{
		{LogicalID: s.Channel.LogicalID, Type: typeTopic, Name: s.StackName},
		{LogicalID: s.Dashboard.LogicalID, Type: typeDashboard, Name: s.Dashboard.Name},
	}
	for _, a := range s.Alarms {
		nodes = append(nodes, ResourceNode{
			LogicalID: a.ID(),
			Type:      typeAlarm,
			Name:      a.AlarmName(),
			DependsOn: append([]string(nil), a.ActionRefs()...),
		})
	}
	g := &Graph{Nodes: nodes, ByID: map[string]*ResourceNode{}}
	for i := range g.Nodes {
		n := &g.Nodes[i]
		if _, dup := g.ByID[n.LogicalID]; dup {
			return nil, fmt.Errorf("duplicate logical id %s", n.LogicalID)
		}
		g.ByID[n.LogicalID] = n
	}
	if err := g.assignWaves(); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *Graph) assignWaves() error {
	inDegree := map[string]int{}
	dependents := map[string][]string{}
	for _, n := range g.Nodes {
		inDegree[n.LogicalID] = 0
	}
	for _, n := range g.Nodes {
		for _, dep := range n.DependsOn {
			if _, ok := g.ByID[dep]; !ok {
				return fmt.Errorf("resource %s depends on missing resource %q", n.LogicalID, dep)
			}
			inDegree[n.LogicalID]++
			dependents[dep] = append(dependents[dep], n.LogicalID)
		}
	}
	for k := range dependents {
		sort.Strings(dependents[k])
	}

	var ready []string
	for _, n := range g.Nodes {
		if inDegree[n.LogicalID] == 0 {
			ready = append(ready, n.LogicalID)
		}
	}
	sort.Strings(ready)

	wave := 0
	assigned := 0
	for len(ready) > 0 {
		batch := append([]string(nil), ready...)
		ready = ready[:0]
		for _, id := range batch {
			g.ByID[id].Wave = wave
			assigned++
		}
		for _, id := range batch {
			for _, dep := range dependents[id] {
				inDegree[dep]--
				if inDegree[dep] == 0 {
					ready = append(ready, dep)
				}
			}
		}
		sort.Strings(ready)
		wave++
	}
	if assigned != len(g.Nodes) {
		var stuck []string
		for _, n := range g.Nodes {
			if inDegree[n.LogicalID] > 0 {
				stuck = append(stuck, n.LogicalID)
			}
		}
		sort.Strings(stuck)
		return fmt.Errorf("dependency cycle detected (%d resources): %v", len(stuck), stuck)
	}
	return nil
}

// Waves returns logical ids grouped by wave, each group sorted.
func (g *Graph) Waves() [][]string {
	max := 0
	for _, n := range g.Nodes {
		if n.Wave > max {
			max = n.Wave
		}
	}
	out := make([][]string, max+1)
	for _, n := range g.Nodes {
		out[n.Wave] = append(out[n.Wave], n.LogicalID)
	}
	for i := range out {
		sort.Strings(out[i])
	}
	return out
}
