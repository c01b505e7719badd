package store

import (
	"github.com/roach88/vquery/internal/engine"
	"github.com/roach88/vquery/internal/ir"
	"github.com/roach88/vquery/internal/node"
)

// RecordsFromRun builds the persisted form of a finished run: the run summary
// and one proof record per proved node.
func RecordsFromRun(planDigest ir.Digest, backend string, rep *engine.Report, a *node.Arena) (RunRecord, []ProofRecord) {
	run := RunRecord{
		ID:             rep.RunID,
		Seq:            rep.Seq,
		PlanDigest:     planDigest,
		RootCommitment: rep.Commitment(),
		Verified:       rep.Verified,
		Nodes:          rep.Nodes,
		Backend:        backend,
	}

	var proofs []ProofRecord
	for _, n := range a.Nodes() {
		p := n.Proof()
		if p == nil {
			continue
		}
		proofs = append(proofs, ProofRecord{
			RunID:            rep.RunID,
			Position:         n.Position,
			Label:            n.Label,
			Kind:             string(n.Kind()),
			ShapeDigest:      p.Circuit,
			OutputCommitment: n.Output().Commitment(),
			Proof:            p,
		})
	}
	return run, proofs
}
