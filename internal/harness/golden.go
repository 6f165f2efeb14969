package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/tokenstream/internal/ir"
)

// TraceSnapshot is the golden form of a run: the audit log and the step
// outcomes, serialized as canonical JSON.
type TraceSnapshot struct {
	ScenarioName string
	Result       *Result
}

// toCanonicalMap converts the snapshot to map[string]any for
// ir.MarshalCanonical, which only handles primitives, maps and slices.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	trace := make([]any, len(s.Result.Trace))
	for i, ev := range s.Result.Trace {
		m := ev.Fields()
		m["id"] = ev.ID
		trace[i] = m
	}

	steps := make([]any, len(s.Result.Steps))
	for i, st := range s.Result.Steps {
		m := map[string]any{
			"op": st.Op,
			"at": st.At,
		}
		if st.Code != "" {
			m["code"] = st.Code
		}
		if st.Stream != 0 {
			m["stream"] = st.Stream
		}
		if st.Amount != 0 {
			m["amount"] = st.Amount
		}
		if st.Refund != 0 {
			m["refund"] = st.Refund
		}
		if st.Terminated {
			m["terminated"] = true
		}
		steps[i] = m
	}

	return map[string]any{
		"scenario_name": s.ScenarioName,
		"steps":         steps,
		"trace":         trace,
	}
}

// MarshalTrace returns the canonical golden bytes of a run.
func MarshalTrace(scenarioName string, result *Result) ([]byte, error) {
	snapshot := TraceSnapshot{ScenarioName: scenarioName, Result: result}
	return ir.MarshalCanonical(snapshot.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares its trace against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns the result so callers can also check Pass.
func RunWithGolden(t *testing.T, scenario *Scenario, opts ...Option) (*Result, error) {
	t.Helper()

	result, err := Run(scenario, opts...)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against its golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	traceJSON, err := MarshalTrace(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, traceJSON)
	return nil
}
