// File: internal/alarmsim/sim.go
// Brief: Deterministic alarm lifecycle simulator.

// Package alarmsim reproduces the provider's alarm state machine so alarm
// policies can be exercised without the managed monitoring service:
// INSUFFICIENT_DATA -> OK <-> ALARM, with per-alarm missing-data policies.
// Only transitions into ALARM fire actions; leaving ALARM is silent.
package alarmsim

import (
	"fmt"

	"github.com/example/sqswatch/internal/monitor"
)

// State is one discrete alarm state.
type State string

const (
	StateInsufficientData State = "INSUFFICIENT_DATA"
	StateOK               State = "OK"
	StateAlarm            State = "ALARM"
)

// Simulator evaluates one alarm policy over a stream of period samples.
type Simulator struct {
	policy monitor.AlarmPolicy
	state  State

	// Ring of the most recent per-period breach verdicts, sized by the
	// policy's evaluation period count.
	recent []bool
}

// New returns a simulator in the INSUFFICIENT_DATA state.
func New(policy monitor.AlarmPolicy) *Simulator {
	evals := policy.EvaluationPeriods
	if evals < 1 {
		evals = 1
	}
	policy.EvaluationPeriods = evals
	return &Simulator{
		policy: policy,
		state:  StateInsufficientData,
	}
}

// State returns the current alarm state.
func (s *Simulator) State() State { return s.state }

// Step feeds one evaluation period. sample is nil when no data points arrived
// in the window. The returned bool reports whether this step transitioned the
// alarm into ALARM, i.e. whether configured actions fire.
func (s *Simulator) Step(sample *float64) (State, bool) {
	prev := s.state
	if sample == nil {
		s.state = s.missingDataState()
	} else {
		s.push(Compare(*sample, s.policy.Threshold, s.policy.Comparison))
		s.state = s.evaluate()
	}
	fired := s.state == StateAlarm && prev != StateAlarm
	return s.state, fired
}

func (s *Simulator) push(breaching bool) {
	s.recent = append(s.recent, breaching)
	if len(s.recent) > s.policy.EvaluationPeriods {
		s.recent = s.recent[len(s.recent)-s.policy.EvaluationPeriods:]
	}
}

func (s *Simulator) evaluate() State {
	if len(s.recent) < s.policy.EvaluationPeriods {
		return StateInsufficientData
	}
	for _, breaching := range s.recent {
		if !breaching {
			return StateOK
		}
	}
	return StateAlarm
}

func (s *Simulator) missingDataState() State {
	switch s.policy.MissingData {
	case monitor.MissingDataBreaching:
		s.push(true)
		return s.evaluate()
	case monitor.MissingDataNotBreaching:
		s.push(false)
		return s.evaluate()
	case monitor.MissingDataIgnore:
		return s.state
	default:
		// The engine default: the alarm cannot evaluate.
		s.recent = s.recent[:0]
		return StateInsufficientData
	}
}

// Compare applies a comparison operator between a sampled value and the
// threshold. Unknown operators never breach.
func Compare(value, threshold float64, op monitor.ComparisonOperator) bool {
	switch op {
	case monitor.CompareGreaterThan:
		return value > threshold
	case monitor.CompareGreaterOrEqual:
		return value >= threshold
	case monitor.CompareLessThan:
		return value < threshold
	case monitor.CompareLessOrEqual:
		return value <= threshold
	}
	return false
}

// DivergenceSignal is the step function of the divergence alarm: 1 when the
// sampled sent counter exceeds the deleted counter by more than the limit,
// 0 otherwise.
func DivergenceSignal(sentMin, deletedMin float64) float64 {
	if sentMin-deletedMin > monitor.DivergenceLimit {
		return 1
	}
	return 0
}

// Replay runs a sample stream through a fresh simulator and returns the final
// state plus the number of action firings.
func Replay(policy monitor.AlarmPolicy, samples []*float64) (State, int, error) {
	if policy.Comparison == "" {
		return "", 0, fmt.Errorf("alarm policy has no comparison operator")
	}
	sim := New(policy)
	fired := 0
	for _, sample := range samples {
		if _, f := sim.Step(sample); f {
			fired++
		}
	}
	return sim.State(), fired, nil
}
