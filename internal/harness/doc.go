// Package harness runs conformance scenarios against the pipeline runner.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: filter_gt_five
//	description: "Filter keeps rows above five and the root proof verifies"
//	tables:
//	  - name: T
//	    columns: [{name: col0, type: int}]
//	    rows: [[3], [7], [9]]
//	plan: |
//	  plan: {
//	    op: "filter"
//	    predicate: {op: ">", args: [{col: 0}, {lit: 5}]}
//	    input: {op: "scan", table: "T"}
//	  }
//	tamper:
//	  rows: [[3], [7], [9]]
//	expect:
//	  verified: false
//	  rows: [[3], [7], [9]]
//	assertions:
//	  - type: trace_count
//	    phase: prove
//	    count: 2
//
// Tables are committed into a fresh in-memory store, the plan is flattened
// against that store, and the runner executes every phase with a fixed
// backend seed and run ID. A tamper block replaces the root output after the
// execute phase, before keys and proofs exist.
//
// # Assertion Types
//
//   - trace_contains: an event with the given phase, and optionally label,
//     kind, rows and stage
//   - trace_order: labels reach a phase in the given order
//   - trace_count: number of events in a phase, optionally of one kind
//   - stored_proofs: number of proofs persisted for the run
//
// # Golden Traces
//
// RunWithGolden compares a canonical snapshot of the verdict, root rows and
// trace against testdata/golden/<name>.golden. Snapshots hold no digests, so
// they do not change with the backend seed.
package harness
