package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/vquery/internal/ir"
	"github.com/roach88/vquery/internal/plan"
	"github.com/roach88/vquery/internal/table"
)

// Unit loads the unit stored under name. The page, schema descriptor and
// commitment are read independently and reassembled; a unit whose stored
// artifacts no longer match its commitment fails with
// table.ErrCommitmentMismatch.
func (s *Store) Unit(ctx context.Context, name string) (*table.Unit, error) {
	var payload, descriptor []byte
	var commitment string
	err := s.db.QueryRowContext(ctx, `
		SELECT p.payload, sc.descriptor, u.commitment
		FROM units u
		JOIN pages p ON p.digest = u.page_digest
		JOIN schemas sc ON sc.digest = u.schema_digest
		WHERE u.name = ?
	`, name).Scan(&payload, &descriptor, &commitment)
	if isNoRows(err) {
		return nil, fmt.Errorf("unit %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read unit %q: %w", name, err)
	}

	u, err := table.Assemble(payload, descriptor, ir.Digest(commitment))
	if err != nil {
		return nil, fmt.Errorf("unit %q: %w", name, err)
	}
	return u, nil
}

// Resolve implements plan.SourceResolver. A missing unit wraps
// plan.ErrSourceNotFound.
func (s *Store) Resolve(name string) (*table.Unit, error) {
	u, err := s.Unit(context.Background(), name)
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("%w: %q", plan.ErrSourceNotFound, name)
	}
	return u, err
}

// UnitInfo describes a stored unit without loading its rows.
type UnitInfo struct {
	Name       string
	Rows       int
	Commitment ir.Digest
	Schema     table.Schema
}

// Units lists stored units ordered by name.
//
// Returns an empty slice (not nil) if the store holds no units.
func (s *Store) Units(ctx context.Context) ([]UnitInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT u.name, u.row_count, u.commitment, sc.descriptor
		FROM units u
		JOIN schemas sc ON sc.digest = u.schema_digest
		ORDER BY u.name COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query units: %w", err)
	}
	defer rows.Close()

	units := []UnitInfo{}
	for rows.Next() {
		var info UnitInfo
		var commitment string
		var descriptor []byte
		if err := rows.Scan(&info.Name, &info.Rows, &commitment, &descriptor); err != nil {
			return nil, fmt.Errorf("scan unit: %w", err)
		}
		schema, err := table.UnmarshalSchema(descriptor)
		if err != nil {
			return nil, fmt.Errorf("unit %q: %w", info.Name, err)
		}
		info.Commitment = ir.Digest(commitment)
		info.Schema = schema
		units = append(units, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate units: %w", err)
	}
	return units, nil
}

// Runs lists stored runs ordered by seq.
//
// Returns an empty slice (not nil) if no runs exist.
func (s *Store) Runs(ctx context.Context) ([]RunRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, seq, plan_digest, root_commitment, verified, nodes, backend
		FROM runs
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []RunRecord{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// Run loads one run by ID.
func (s *Store) Run(ctx context.Context, id string) (RunRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, seq, plan_digest, root_commitment, verified, nodes, backend
		FROM runs WHERE id = ?
	`, id)
	run, err := scanRun(row)
	if isNoRows(err) {
		return RunRecord{}, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	return run, err
}

// Proofs returns the proofs of a run ordered by node position.
func (s *Store) Proofs(ctx context.Context, runID string) ([]ProofRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, position, label, kind, shape_digest, output_commitment, proof
		FROM proofs
		WHERE run_id = ?
		ORDER BY position ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query proofs: %w", err)
	}
	defer rows.Close()

	proofs := []ProofRecord{}
	for rows.Next() {
		var p ProofRecord
		var shape, output, proofJSON string
		if err := rows.Scan(&p.RunID, &p.Position, &p.Label, &p.Kind, &shape, &output, &proofJSON); err != nil {
			return nil, fmt.Errorf("scan proof: %w", err)
		}
		p.ShapeDigest = ir.Digest(shape)
		p.OutputCommitment = ir.Digest(output)
		if p.Proof, err = unmarshalProof(proofJSON); err != nil {
			return nil, err
		}
		proofs = append(proofs, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate proofs: %w", err)
	}
	return proofs, nil
}

// LastSeq returns the highest run seq in the store, or 0.
// Used to resume the run clock.
func (s *Store) LastSeq(ctx context.Context) (int64, error) {
	var seq int64
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM runs`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("get last seq: %w", err)
	}
	return seq, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (RunRecord, error) {
	var run RunRecord
	var planDigest, root string
	var verified int
	if err := row.Scan(&run.ID, &run.Seq, &planDigest, &root, &verified, &run.Nodes, &run.Backend); err != nil {
		if isNoRows(err) {
			return RunRecord{}, err
		}
		return RunRecord{}, fmt.Errorf("scan run: %w", err)
	}
	run.PlanDigest = ir.Digest(planDigest)
	run.RootCommitment = ir.Digest(root)
	run.Verified = verified == 1
	return run, nil
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
