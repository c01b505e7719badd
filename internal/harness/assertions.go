package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/vquery/internal/engine"
)

// AssertionError is returned when an assertion fails.
// It carries the trace so the failure can be read without re-running.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []engine.TraceEvent
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, ev := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s rows=%d %s\n", ev.Seq, ev.Phase, ev.Label, ev.Rows, ev.Stage)
		}
	}
	return buf.String()
}

// assertTraceContains checks for an event matching every field the assertion
// sets.
func assertTraceContains(trace []engine.TraceEvent, a Assertion) error {
	for _, ev := range trace {
		if matchEvent(ev, a) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: describe(a),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

func matchEvent(ev engine.TraceEvent, a Assertion) bool {
	if ev.Phase != a.Phase {
		return false
	}
	if a.Label != "" && ev.Label != a.Label {
		return false
	}
	if a.Kind != "" && string(ev.Kind) != a.Kind {
		return false
	}
	if a.Rows != nil && ev.Rows != *a.Rows {
		return false
	}
	if a.Stage != "" && ev.Stage != a.Stage {
		return false
	}
	return true
}

func describe(a Assertion) string {
	parts := []string{"phase=" + string(a.Phase)}
	if a.Label != "" {
		parts = append(parts, "label="+a.Label)
	}
	if a.Kind != "" {
		parts = append(parts, "kind="+a.Kind)
	}
	if a.Rows != nil {
		parts = append(parts, fmt.Sprintf("rows=%d", *a.Rows))
	}
	if a.Stage != "" {
		parts = append(parts, "stage="+a.Stage)
	}
	return "event " + strings.Join(parts, " ")
}

// assertTraceOrder checks that labels first reach the phase in the given
// order. The phase defaults to execute. Other events may fall in between.
func assertTraceOrder(trace []engine.TraceEvent, a Assertion) error {
	phase := a.Phase
	if phase == "" {
		phase = engine.PhaseExecute
	}

	positions := make(map[string]int)
	for i, ev := range trace {
		if ev.Phase != phase {
			continue
		}
		if _, seen := positions[ev.Label]; !seen {
			positions[ev.Label] = i + 1
		}
	}

	for _, label := range a.Labels {
		if positions[label] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all labels present in %s: %v", phase, a.Labels),
				Actual:   fmt.Sprintf("missing label: %s", label),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(a.Labels); i++ {
		prev, curr := a.Labels[i-1], a.Labels[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("labels in order: %v", a.Labels),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}
	return nil
}

// assertTraceCount checks the number of events in a phase.
func assertTraceCount(trace []engine.TraceEvent, a Assertion) error {
	count := 0
	for _, ev := range trace {
		if ev.Phase == a.Phase && (a.Kind == "" || string(ev.Kind) == a.Kind) {
			count++
		}
	}
	if count != a.Count {
		what := string(a.Phase)
		if a.Kind != "" {
			what += " " + a.Kind
		}
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d %s events", a.Count, what),
			Actual:   fmt.Sprintf("%d events", count),
			Trace:    trace,
		}
	}
	return nil
}

func assertStoredProofs(result *Result, a Assertion) error {
	if result.proofs != a.Count {
		return &AssertionError{
			Type:     AssertStoredProofs,
			Expected: fmt.Sprintf("%d proofs stored for run %s", a.Count, result.RunID),
			Actual:   fmt.Sprintf("%d proofs", result.proofs),
		}
	}
	return nil
}

// EvaluateAssertions evaluates every assertion against the result.
// Returns one message per failed assertion.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, a)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, a)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, a)
		case AssertStoredProofs:
			err = assertStoredProofs(result, a)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, a.Type)
		}
		if err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}
