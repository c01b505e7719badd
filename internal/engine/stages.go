package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/vquery/internal/ir"
	"github.com/roach88/vquery/internal/node"
	"github.com/roach88/vquery/internal/proof"
	"github.com/roach88/vquery/internal/table"
)

// Verdict is the outcome of verifying one node.
type Verdict struct {
	Position int
	Label    string
	OK       bool
}

// requireStage checks a node is exactly at want before a stage runs.
// A node behind want is not ready; a node past want already ran the stage.
func requireStage(phase Phase, n *node.Node, want node.Stage) error {
	switch cur := n.Stage(); {
	case cur < want:
		return newNodeError(ErrCodeInputNotReady, phase, n.Position, nil,
			"%s is %s, %s requires %s", n, cur, phase, want)
	case cur > want:
		return newNodeError(ErrCodeStageOrder, phase, n.Position,
			&node.StageError{Position: n.Position, Current: cur, Want: want, To: want + 1},
			"%s already ran %s", n, phase)
	}
	return nil
}

// lookup returns the node at pos or an error naming the phase.
func lookup(a *node.Arena, phase Phase, pos int) (*node.Node, error) {
	n := a.At(pos)
	if n == nil {
		return nil, newNodeError(ErrCodeInputNotReady, phase, pos, nil, "no node at position %d", pos)
	}
	return n, nil
}

// inputUnits resolves the committed inputs of n. Every unit is checked against
// its recorded commitment. Node inputs must have executed.
func inputUnits(a *node.Arena, phase Phase, n *node.Node) ([]*table.Unit, error) {
	units := make([]*table.Unit, len(n.Inputs))
	for i, ref := range n.Inputs {
		var u *table.Unit
		switch {
		case ref.IsSource():
			u = ref.Unit()
		case ref.IsNode():
			up := a.At(ref.Position())
			if up == nil || ref.Position() >= n.Position {
				return nil, newNodeError(ErrCodeInputNotReady, phase, n.Position, node.ErrNotTopological,
					"%s reads %s", n, ref)
			}
			if up.Stage() < node.StageExecuted {
				return nil, newNodeError(ErrCodeInputNotReady, phase, n.Position, nil,
					"input %s is %s", up, up.Stage())
			}
			out := up.Output()
			if out.Unit == nil {
				return nil, newNodeError(ErrCodeInputNotReady, phase, n.Position, nil,
					"input %s produced a scalar, not a unit", up)
			}
			u = out.Unit
		default:
			return nil, newNodeError(ErrCodeInputNotReady, phase, n.Position, nil,
				"input %d of %s is invalid", i, n)
		}
		if err := table.VerifyCommitment(u); err != nil {
			return nil, newNodeError(ErrCodeCommitmentMismatch, phase, n.Position, err,
				"input %s of %s", ref, n)
		}
		units[i] = u
	}
	return units, nil
}

// inputSchemas returns the schema of each input of n without touching data.
func inputSchemas(a *node.Arena, n *node.Node) ([]table.Schema, error) {
	schemas := make([]table.Schema, len(n.Inputs))
	for i, ref := range n.Inputs {
		switch {
		case ref.IsSource() && ref.Unit() != nil:
			schemas[i] = ref.Unit().Schema
		case ref.IsNode() && a.At(ref.Position()) != nil:
			schemas[i] = a.At(ref.Position()).Schema
		default:
			return nil, fmt.Errorf("input %d of %s is invalid", i, n)
		}
	}
	return schemas, nil
}

// Execute applies the node's operation to its inputs and records the committed
// output. Every NodeRef input must have executed.
func (r *Runner) Execute(ctx context.Context, a *node.Arena, pos int) (err error) {
	defer func() { observeStage(PhaseExecute, err) }()
	if err := ctx.Err(); err != nil {
		return err
	}
	n, err := lookup(a, PhaseExecute, pos)
	if err != nil {
		return err
	}
	if err := requireStage(PhaseExecute, n, node.StageCreated); err != nil {
		return err
	}
	inputs, err := inputUnits(a, PhaseExecute, n)
	if err != nil {
		return err
	}

	res, err := apply(n.Op, inputs)
	if err != nil {
		return newNodeError(ErrCodeExecute, PhaseExecute, pos, err, "apply %s", n)
	}

	var out node.Output
	if isScalar(n.Op) {
		out.Scalar, err = table.CommitScalar(res.scalar)
	} else {
		out.Unit, err = table.Commit(table.NewPage(res.rows...), n.Schema)
	}
	if err != nil {
		return newNodeError(ErrCodeExecute, PhaseExecute, pos, err, "commit output of %s", n)
	}
	if err := n.SetOutput(out); err != nil {
		return newNodeError(ErrCodeStageOrder, PhaseExecute, pos, err, "record output of %s", n)
	}

	r.logger.Debug("node executed", "run", r.runID(ctx), "node", n.Label, "rows", out.Rows(),
		"commitment", out.Commitment().Short())
	return nil
}

// KeyGen compiles the node's shape into a circuit and records key material.
// The node must have executed; its data is not read.
func (r *Runner) KeyGen(ctx context.Context, a *node.Arena, pos int) (err error) {
	defer func() { observeStage(PhaseKeyGen, err) }()
	if err := ctx.Err(); err != nil {
		return err
	}
	n, err := lookup(a, PhaseKeyGen, pos)
	if err != nil {
		return err
	}
	if err := requireStage(PhaseKeyGen, n, node.StageExecuted); err != nil {
		return err
	}

	schemas, err := inputSchemas(a, n)
	if err != nil {
		return newNodeError(ErrCodeKeygen, PhaseKeyGen, pos, err, "shape of %s", n)
	}
	circuit, err := compile(n, schemas)
	if err != nil {
		return newNodeError(ErrCodeKeygen, PhaseKeyGen, pos, err, "compile %s", n)
	}

	var kp keyPair
	hit := false
	if r.cacheKeys {
		kp, hit, err = r.cache(ctx).get(r.backend, circuit)
	} else {
		kp.pk, kp.vk, err = r.backend.KeyGen(circuit)
	}
	if err != nil {
		return newNodeError(ErrCodeKeygen, PhaseKeyGen, pos, err, "keygen for %s", n)
	}
	if hit {
		KeyCacheHits.Inc()
	}
	if err := n.SetKeys(kp.pk, kp.vk); err != nil {
		return newNodeError(ErrCodeStageOrder, PhaseKeyGen, pos, err, "record keys of %s", n)
	}

	r.logger.Debug("keys generated", "run", r.runID(ctx), "node", n.Label,
		"circuit", circuit.Digest.Short(), "cached", hit)
	return nil
}

// publicInputs returns the commitments a proof for n is bound to.
func publicInputs(inputs []*table.Unit, out node.Output) proof.PublicInputs {
	pub := proof.PublicInputs{Inputs: make([]ir.Digest, len(inputs)), Output: out.Commitment()}
	for i, u := range inputs {
		pub.Inputs[i] = u.Commitment
	}
	return pub
}

// Prove produces a proof that the node's output is its operation applied to
// its inputs. The node must hold keys and every ancestor must be proved.
func (r *Runner) Prove(ctx context.Context, a *node.Arena, pos int) (err error) {
	defer func() { observeStage(PhaseProve, err) }()
	if err := ctx.Err(); err != nil {
		return err
	}
	n, err := lookup(a, PhaseProve, pos)
	if err != nil {
		return err
	}
	if err := requireStage(PhaseProve, n, node.StageKeyGenerated); err != nil {
		return err
	}
	for _, anc := range a.Ancestors(pos) {
		if up := a.At(anc); up.Stage() < node.StageProved {
			return newNodeError(ErrCodeProve, PhaseProve, pos, ErrInputNotReady,
				"ancestor %s is %s", up, up.Stage())
		}
	}

	inputs, err := inputUnits(a, PhaseProve, n)
	if err != nil {
		return err
	}
	out := n.Output()
	pk, _ := n.Keys()
	witness := proof.Witness{Inputs: inputs, Output: out.Unit, Scalar: out.Scalar}

	p, err := r.backend.Prove(pk, publicInputs(inputs, out), witness)
	if err != nil {
		return newNodeError(ErrCodeProve, PhaseProve, pos, err, "prove %s", n)
	}
	if err := n.SetProof(p); err != nil {
		return newNodeError(ErrCodeStageOrder, PhaseProve, pos, err, "record proof of %s", n)
	}

	r.logger.Debug("node proved", "run", r.runID(ctx), "node", n.Label)
	return nil
}

// Verify checks the node's proof against public inputs recomputed from the
// current inputs and output. A rejected proof returns a Verdict with OK false
// and an error matching ErrVerificationFailed. Verify may be repeated on a
// verified node.
func (r *Runner) Verify(ctx context.Context, a *node.Arena, pos int) (v Verdict, err error) {
	defer func() { observeStage(PhaseVerify, err) }()
	if err := ctx.Err(); err != nil {
		return Verdict{Position: pos}, err
	}
	n, err := lookup(a, PhaseVerify, pos)
	if err != nil {
		return Verdict{Position: pos}, err
	}
	v = Verdict{Position: pos, Label: n.Label}

	stage := n.Stage()
	if stage < node.StageProved {
		return v, newNodeError(ErrCodeInputNotReady, PhaseVerify, pos, nil,
			"%s is %s, verify requires %s", n, stage, node.StageProved)
	}

	ok, cause := r.check(a, n)
	if !ok {
		VerifyTotal.WithLabelValues("rejected").Inc()
		r.logger.Warn("verification failed", "run", r.runID(ctx), "node", n.Label, "error", cause)
		return v, newNodeError(ErrCodeVerificationFailed, PhaseVerify, pos, cause, "%s", n)
	}

	VerifyTotal.WithLabelValues("accepted").Inc()
	if stage == node.StageProved {
		if err := n.MarkVerified(); err != nil && !errors.Is(err, node.ErrStageOrder) {
			return v, err
		}
	}
	v.OK = true
	return v, nil
}

// check runs the backend verifier. Any failure to assemble public inputs is a
// rejection, never a crash.
func (r *Runner) check(a *node.Arena, n *node.Node) (bool, error) {
	inputs, err := inputUnits(a, PhaseVerify, n)
	if err != nil {
		return false, err
	}
	out := n.Output()
	switch {
	case out.Scalar != nil:
		err = table.VerifyScalar(out.Scalar)
	case out.Unit != nil:
		err = table.VerifyCommitment(out.Unit)
	default:
		err = fmt.Errorf("%s has no output", n)
	}
	if err != nil {
		return false, err
	}

	_, vk := n.Keys()
	ok, err := r.backend.Verify(vk, publicInputs(inputs, out), n.Proof())
	if err != nil {
		return false, err
	}
	if !ok {
		return false, errors.New("proof rejected")
	}
	return true, nil
}
