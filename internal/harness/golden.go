package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/vquery/internal/engine"
	"github.com/roach88/vquery/internal/ir"
)

// TraceSnapshot is the golden view of a scenario run.
type TraceSnapshot struct {
	ScenarioName string              `json:"scenario"`
	Verified     bool                `json:"verified"`
	ErrorCode    string              `json:"error,omitempty"`
	Rows         []ir.IRArray        `json:"rows,omitempty"`
	Trace        []engine.TraceEvent `json:"trace"`
}

// toCanonicalMap converts the snapshot for ir.MarshalCanonical, which only
// handles IR types and primitives.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	traceList := make([]any, len(s.Trace))
	for i, ev := range s.Trace {
		traceList[i] = map[string]any{
			"seq":      ev.Seq,
			"phase":    string(ev.Phase),
			"position": ev.Position,
			"label":    ev.Label,
			"kind":     string(ev.Kind),
			"rows":     ev.Rows,
			"stage":    ev.Stage,
		}
	}

	out := map[string]any{
		"scenario": s.ScenarioName,
		"verified": s.Verified,
		"trace":    traceList,
	}
	if s.ErrorCode != "" {
		out["error"] = s.ErrorCode
	}
	if s.Rows != nil {
		rows := make(ir.IRArray, len(s.Rows))
		for i, r := range s.Rows {
			rows[i] = r
		}
		out["rows"] = rows
	}
	return out
}

func snapshotOf(name string, result *Result) TraceSnapshot {
	return TraceSnapshot{
		ScenarioName: name,
		Verified:     result.Verified,
		ErrorCode:    result.ErrorCode,
		Rows:         result.Rows,
		Trace:        result.Trace,
	}
}

// Snapshot returns the canonical golden bytes for a result.
func Snapshot(name string, result *Result) ([]byte, error) {
	snapshot := snapshotOf(name, result)
	return ir.MarshalCanonical(snapshot.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against its golden file.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	traceJSON, err := Snapshot(name, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, traceJSON)
	return nil
}
