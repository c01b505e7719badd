package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/vquery/internal/ir"
	"github.com/roach88/vquery/internal/proof"
	"github.com/roach88/vquery/internal/table"
)

// ErrUnitExists is returned when a name is already bound to a different unit.
var ErrUnitExists = errors.New("unit name already bound to different data")

// PutUnit stores u under name. The page and schema are stored once per digest.
// Storing the same unit under the same name again is a no-op; binding the name
// to a different commitment returns ErrUnitExists.
//
// The unit's commitment is checked before anything is written.
func (s *Store) PutUnit(ctx context.Context, name string, u *table.Unit) error {
	if name == "" {
		return fmt.Errorf("put unit: empty name")
	}
	if err := table.VerifyCommitment(u); err != nil {
		return fmt.Errorf("put unit %q: %w", name, err)
	}
	payload, descriptor, err := unitArtifacts(u)
	if err != nil {
		return fmt.Errorf("put unit %q: %w", name, err)
	}
	schemaDigest, err := u.Schema.Digest()
	if err != nil {
		return fmt.Errorf("put unit %q: %w", name, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("put unit %q: begin tx: %w", name, err)
	}
	defer tx.Rollback() // No-op if committed

	var existing string
	err = tx.QueryRowContext(ctx, `SELECT commitment FROM units WHERE name = ?`, name).Scan(&existing)
	switch {
	case err == nil && existing == string(u.Commitment):
		return nil
	case err == nil:
		return fmt.Errorf("put unit %q: %w (stored %s, new %s)",
			name, ErrUnitExists, ir.Digest(existing).Short(), u.Commitment.Short())
	case !isNoRows(err):
		return fmt.Errorf("put unit %q: %w", name, err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO pages (digest, payload) VALUES (?, ?)
		ON CONFLICT(digest) DO NOTHING
	`, string(pageDigest(payload)), payload); err != nil {
		return fmt.Errorf("put unit %q: page: %w", name, err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO schemas (digest, descriptor) VALUES (?, ?)
		ON CONFLICT(digest) DO NOTHING
	`, string(schemaDigest), descriptor); err != nil {
		return fmt.Errorf("put unit %q: schema: %w", name, err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO units (name, page_digest, schema_digest, commitment, row_count)
		VALUES (?, ?, ?, ?, ?)
	`, name, string(pageDigest(payload)), string(schemaDigest), string(u.Commitment), u.Rows()); err != nil {
		return fmt.Errorf("put unit %q: %w", name, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("put unit %q: commit: %w", name, err)
	}
	return nil
}

// RunRecord is the persisted summary of a pipeline run.
type RunRecord struct {
	ID             string
	Seq            int64
	PlanDigest     ir.Digest
	RootCommitment ir.Digest
	Verified       bool
	Nodes          int
	Backend        string
}

// ProofRecord is the persisted proof of one node.
type ProofRecord struct {
	RunID            string
	Position         int
	Label            string
	Kind             string
	ShapeDigest      ir.Digest
	OutputCommitment ir.Digest
	Proof            *proof.Proof
}

// WriteRun stores a run and its proofs atomically.
// Writing a run ID twice is an error.
func (s *Store) WriteRun(ctx context.Context, run RunRecord, proofs []ProofRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write run: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO runs (id, seq, plan_digest, root_commitment, verified, nodes, backend)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		run.Seq,
		string(run.PlanDigest),
		string(run.RootCommitment),
		boolToInt(run.Verified),
		run.Nodes,
		run.Backend,
	); err != nil {
		return fmt.Errorf("write run %s: %w", run.ID, err)
	}

	for _, p := range proofs {
		proofJSON, err := marshalProof(p.Proof)
		if err != nil {
			return fmt.Errorf("write run %s: node %d: %w", run.ID, p.Position, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO proofs (run_id, position, label, kind, shape_digest, output_commitment, proof)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`,
			run.ID,
			p.Position,
			p.Label,
			p.Kind,
			string(p.ShapeDigest),
			string(p.OutputCommitment),
			proofJSON,
		); err != nil {
			return fmt.Errorf("write run %s: node %d: %w", run.ID, p.Position, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write run %s: commit: %w", run.ID, err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
