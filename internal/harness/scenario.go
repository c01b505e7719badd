package harness

import (
	"bytes"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/roach88/vquery/internal/engine"
	"github.com/roach88/vquery/internal/fixture"
)

// Scenario is one conformance case: input tables, a plan, and the expected
// outcome.
type Scenario struct {
	// Name uniquely identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what the scenario validates.
	Description string `yaml:"description"`

	// Tables are committed into the scenario's store before flattening.
	Tables []fixture.Table `yaml:"tables"`

	// Plan is CUE source with a top-level plan field.
	Plan string `yaml:"plan"`

	// Tamper, when set, replaces the root output after the execute phase.
	Tamper *Tamper `yaml:"tamper,omitempty"`

	// Expect is checked against the run's outcome.
	Expect Expect `yaml:"expect"`

	// Assertions validate the trace and the persisted run.
	Assertions []Assertion `yaml:"assertions,omitempty"`

	// RunID is the fixed run ID. Defaults to "scenario-run".
	RunID string `yaml:"run_id,omitempty"`
}

// Tamper describes a forged root output. The rows must fit the root schema.
type Tamper struct {
	Rows [][]any `yaml:"rows"`
}

// Expect is the expected outcome.
type Expect struct {
	// Verified is the expected root verdict.
	Verified bool `yaml:"verified"`

	// Rows, when set, is the expected root output in order.
	Rows [][]any `yaml:"rows,omitempty"`

	// Error is the expected error code; empty means the run must reach
	// verification.
	Error string `yaml:"error,omitempty"`
}

// Assertion validates the trace or the persisted run.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Phase selects events (trace_contains, trace_count, trace_order).
	Phase engine.Phase `yaml:"phase,omitempty"`

	// Label matches the node label (trace_contains).
	Label string `yaml:"label,omitempty"`

	// Kind matches the operator kind (trace_contains, trace_count).
	Kind string `yaml:"kind,omitempty"`

	// Rows matches the output row count (trace_contains).
	Rows *int `yaml:"rows,omitempty"`

	// Stage matches the node stage after the step (trace_contains).
	Stage string `yaml:"stage,omitempty"`

	// Count is the expected number (trace_count, stored_proofs).
	Count int `yaml:"count,omitempty"`

	// Labels is the expected order (trace_order).
	Labels []string `yaml:"labels,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertStoredProofs  = "stored_proofs"
)

const defaultRunID = "scenario-run"

// LoadScenario reads and parses a scenario YAML file.
// Unknown fields are rejected so typos surface as errors.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes and validates a scenario document.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Plan == "" {
		return fmt.Errorf("plan is required")
	}
	if len(s.Tables) > 0 {
		f := fixture.File{Tables: s.Tables}
		if err := f.Validate(); err != nil {
			return err
		}
	}
	if s.Tamper != nil && s.Expect.Error != "" {
		return fmt.Errorf("tamper cannot be combined with an expected error")
	}
	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}
	if a.Phase != "" && !slices.Contains(engine.Phases, a.Phase) {
		return fmt.Errorf("assertions[%d]: unknown phase %q", index, a.Phase)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Phase == "" {
			return fmt.Errorf("assertions[%d]: phase is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Labels) == 0 {
			return fmt.Errorf("assertions[%d]: labels list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Phase == "" {
			return fmt.Errorf("assertions[%d]: phase is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertStoredProofs:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for stored_proofs", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
