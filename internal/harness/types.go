package harness

import (
	"github.com/roach88/vquery/internal/engine"
	"github.com/roach88/vquery/internal/ir"
)

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every expectation and assertion held.
	Pass bool `json:"pass"`

	// Trace is the runner's ordered trace. Empty when flattening failed.
	Trace []engine.TraceEvent `json:"trace"`

	// Errors holds one message per failed expectation or assertion.
	Errors []string `json:"errors,omitempty"`

	// Verified is the root verdict.
	Verified bool `json:"verified"`

	// Rows is the root output, one IR array per row. A scalar root yields a
	// single one-element row.
	Rows []ir.IRArray `json:"rows,omitempty"`

	// ErrorCode is the code of the flattening or stage error that stopped the
	// run, empty when the run reached verification.
	ErrorCode string `json:"error_code,omitempty"`

	// RunID identifies the persisted run.
	RunID string `json:"run_id,omitempty"`

	proofs int
}

// NewResult creates a passing result with an empty trace.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []engine.TraceEvent{},
		Errors: []string{},
	}
}

// AddError records a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
