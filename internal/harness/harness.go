package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/vquery/internal/compiler"
	"github.com/roach88/vquery/internal/engine"
	"github.com/roach88/vquery/internal/fixture"
	"github.com/roach88/vquery/internal/ir"
	"github.com/roach88/vquery/internal/node"
	"github.com/roach88/vquery/internal/plan"
	"github.com/roach88/vquery/internal/proof"
	"github.com/roach88/vquery/internal/store"
	"github.com/roach88/vquery/internal/testutil"
)

// Harness holds the per-scenario dependencies.
type Harness struct {
	store   *store.Store
	backend proof.Backend
	logger  *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory store. The backend seed and run ID
// are fixed so traces are reproducible.
//
// Execution flow:
//  1. Commit the scenario tables into the store
//  2. Compile the plan and flatten it against the store
//  3. Run every phase, applying the tamper after execute
//  4. Persist the run and its proofs
//  5. Check expectations and assertions
//
// The returned error covers harness failures only: a malformed table or
// plan. Flattening and stage errors are outcomes checked against Expect.
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h := &Harness{
		store:   st,
		backend: proof.NewReferenceWithSeed(testutil.Seed),
		logger:  testutil.QuietLogger(),
	}
	return h.run(context.Background(), scenario)
}

func (h *Harness) run(ctx context.Context, scenario *Scenario) (*Result, error) {
	for _, t := range scenario.Tables {
		u, err := t.Build()
		if err != nil {
			return nil, err
		}
		if err := h.store.PutUnit(ctx, t.Name, u); err != nil {
			return nil, fmt.Errorf("failed to store table %q: %w", t.Name, err)
		}
	}

	root, err := plan.CompileString(scenario.Plan)
	if err != nil {
		return nil, fmt.Errorf("failed to compile plan: %w", err)
	}

	result := NewResult()
	arena, err := compiler.Flatten(root, h.store)
	if err != nil {
		result.ErrorCode = errorCode(err)
		h.checkExpect(scenario, result, err)
		return result, nil
	}

	runID := scenario.RunID
	if runID == "" {
		runID = defaultRunID
	}
	opts := []engine.Option{
		engine.WithBackend(h.backend),
		engine.WithLogger(h.logger),
		engine.WithRunIDs(engine.NewFixedGenerator(runID)),
		engine.WithWorkers(2),
	}
	if scenario.Tamper != nil {
		opts = append(opts, engine.WithPhaseHook(tamperHook(scenario.Tamper)))
	}
	runner, err := engine.NewRunner(opts...)
	if err != nil {
		return nil, err
	}

	rep, runErr := runner.Run(ctx, arena)
	if rep == nil {
		result.ErrorCode = errorCode(runErr)
		h.checkExpect(scenario, result, runErr)
		return result, nil
	}

	result.RunID = rep.RunID
	result.Trace = rep.Trace
	result.Verified = rep.Verified
	result.Rows = outputRows(rep.Output)

	planDigest := ir.HashWithDomain(ir.DomainPlan, []byte(scenario.Plan))
	run, proofs := store.RecordsFromRun(planDigest, h.backend.Name(), rep, arena)
	if err := h.store.WriteRun(ctx, run, proofs); err != nil {
		return nil, fmt.Errorf("failed to persist run: %w", err)
	}
	stored, err := h.store.Proofs(ctx, rep.RunID)
	if err != nil {
		return nil, fmt.Errorf("failed to read proofs: %w", err)
	}
	result.proofs = len(stored)

	h.checkExpect(scenario, result, nil)
	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

func (h *Harness) checkExpect(scenario *Scenario, result *Result, runErr error) {
	want := scenario.Expect
	if result.ErrorCode != want.Error {
		msg := fmt.Sprintf("expected error %q, got %q", want.Error, result.ErrorCode)
		if runErr != nil {
			msg += ": " + runErr.Error()
		}
		result.AddError(msg)
		return
	}
	if want.Error != "" {
		return
	}

	if result.Verified != want.Verified {
		result.AddError(fmt.Sprintf("expected verified=%t, got %t", want.Verified, result.Verified))
	}
	if want.Rows == nil {
		return
	}
	rows, err := toRows(want.Rows)
	if err != nil {
		result.AddError(fmt.Sprintf("expect.rows: %v", err))
		return
	}
	if !rowsEqual(rows, result.Rows) {
		result.AddError(fmt.Sprintf("expected rows %s, got %s", formatRows(rows), formatRows(result.Rows)))
	}
}

// tamperHook forges the root output once every node has executed.
func tamperHook(t *Tamper) engine.PhaseHook {
	return func(_ context.Context, phase engine.Phase, a *node.Arena) error {
		if phase != engine.PhaseExecute {
			return nil
		}
		root := a.Root()
		forged := fixture.Table{Name: root.Label, Columns: root.Schema.Columns, Rows: t.Rows}
		u, err := forged.Build()
		if err != nil {
			return fmt.Errorf("tamper: %w", err)
		}
		return root.OverrideOutput(node.Output{Unit: u})
	}
}

// errorCode extracts the code of a flattening or stage error.
func errorCode(err error) string {
	if err == nil {
		return ""
	}
	var fe *compiler.FlattenError
	if errors.As(err, &fe) {
		return string(fe.Code)
	}
	var pe *engine.PipelineError
	if errors.As(err, &pe) {
		return string(pe.Code)
	}
	return "UNKNOWN"
}

func outputRows(out node.Output) []ir.IRArray {
	if out.Scalar != nil {
		return []ir.IRArray{{out.Scalar.Value}}
	}
	if out.Unit == nil {
		return nil
	}
	rows := make([]ir.IRArray, len(out.Unit.Page.Rows))
	for i, r := range out.Unit.Page.Rows {
		rows[i] = ir.IRArray(r.Clone())
	}
	return rows
}

func toRows(raw [][]any) ([]ir.IRArray, error) {
	rows := make([]ir.IRArray, len(raw))
	for i, r := range raw {
		v, err := ir.FromGo(r)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		rows[i] = v.(ir.IRArray)
	}
	return rows, nil
}

func rowsEqual(a, b []ir.IRArray) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !ir.Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

func formatRows(rows []ir.IRArray) string {
	b, err := ir.MarshalCanonical(ir.IRArray(toValues(rows)))
	if err != nil {
		return fmt.Sprintf("%v", rows)
	}
	return string(b)
}

func toValues(rows []ir.IRArray) []ir.IRValue {
	out := make([]ir.IRValue, len(rows))
	for i, r := range rows {
		out[i] = r
	}
	return out
}
