// Package store provides SQLite-backed storage for committed data units and
// the proofs of pipeline runs.
//
// A unit is stored as three independent artifacts: a page payload, a schema
// descriptor, and the commitment recorded when the unit was created. Pages and
// descriptors are content-addressed and shared between units. Loading a unit
// reassembles the artifacts and re-checks the commitment, so edits made to the
// database behind the store's back are detected on read.
//
// # Tables
//
//   - pages(digest, payload)
//   - schemas(digest, descriptor)
//   - units(name, page_digest, schema_digest, commitment, row_count)
//   - runs(id, seq, plan_digest, root_commitment, verified, nodes, backend)
//   - proofs(run_id, position, label, kind, shape_digest, output_commitment, proof)
//
// Runs are ordered by seq, a logical sequence issued by the engine clock,
// never by timestamps.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
