// Package engine runs flattened query pipelines and proves their results.
//
// A Runner drives every node of an arena through four phases:
//
//  1. Execute: apply the node's operation to its committed inputs and commit
//     the output.
//  2. KeyGen: compile the node's shape (operation, expressions, schemas) into
//     a circuit and derive key material. Row data is never read.
//  3. Prove: prove the committed output is the operation applied to the
//     committed inputs.
//  4. Verify: check the proof against commitments recomputed from the
//     current data.
//
// Phases are separated by a barrier. Execute and Prove process nodes in waves
// of equal dependency depth; KeyGen and Verify process all nodes at once.
// Nodes within a wave run in parallel on a bounded worker pool.
//
// Each stage is also exposed per node (Execute, KeyGen, Prove, Verify) so
// callers can interleave their own steps, for example to simulate a dishonest
// executor between Execute and Prove.
//
// ERRORS:
//
// Stage failures are *PipelineError values. Match them with errors.Is against
// ErrInputNotReady, ErrCommitmentMismatch, ErrKeygen, ErrProve and
// ErrVerificationFailed. A rejected proof is an expected outcome: Run returns
// its report with Verified false alongside the error.
package engine
