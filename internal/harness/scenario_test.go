package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vquery/internal/engine"
)

func TestLoadScenario(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/tampered_filter.yaml")
	require.NoError(t, err)

	assert.Equal(t, "tampered_filter", s.Name)
	require.Len(t, s.Tables, 1)
	assert.Equal(t, "T", s.Tables[0].Name)
	require.NotNil(t, s.Tamper)
	assert.Len(t, s.Tamper.Rows, 3)
	assert.False(t, s.Expect.Verified)
	require.Len(t, s.Assertions, 3)
	assert.Equal(t, engine.PhaseProve, s.Assertions[0].Phase)
}

func TestLoadScenarioMissingFile(t *testing.T) {
	_, err := LoadScenario("testdata/scenarios/nope.yaml")
	assert.ErrorContains(t, err, "failed to read scenario file")
}

func TestParseScenarioErrors(t *testing.T) {
	base := "name: s\ndescription: d\nplan: \"plan: {op: \\\"scan\\\", table: \\\"T\\\"}\"\n"
	tests := []struct {
		name string
		src  string
		msg  string
	}{
		{"unknown field", base + "asserts: []\n", "failed to parse YAML"},
		{"missing name", "description: d\nplan: p\n", "name is required"},
		{"missing description", "name: s\nplan: p\n", "description is required"},
		{"missing plan", "name: s\ndescription: d\n", "plan is required"},
		{"duplicate table", base + "tables:\n  - name: T\n  - name: T\n", "duplicate table"},
		{"tamper with error", base + "tamper:\n  rows: []\nexpect:\n  error: X\n", "tamper cannot be combined"},
		{"assertion without type", base + "assertions:\n  - phase: execute\n", "type is required"},
		{"unknown assertion", base + "assertions:\n  - type: final_state\n", "unknown assertion type"},
		{"unknown phase", base + "assertions:\n  - type: trace_count\n    phase: compile\n", "unknown phase"},
		{"contains without phase", base + "assertions:\n  - type: trace_contains\n    label: x\n", "phase is required"},
		{"order without labels", base + "assertions:\n  - type: trace_order\n", "labels list is required"},
		{"negative count", base + "assertions:\n  - type: stored_proofs\n    count: -1\n", "non-negative"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.src))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}
