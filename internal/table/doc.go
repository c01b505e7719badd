// Package table implements committed data units: a page of rows bound to its
// schema by a deterministic commitment.
//
// A Unit is immutable once created. Commit clones the rows it is given, and every
// operator in the engine produces a fresh Unit instead of editing an input.
// VerifyCommitment recomputes the digest so any change to page bytes or schema
// after commitment is detectable.
//
// Commitment layout:
//
//	schemaDigest = SHA256("vquery/schema/v1" 0x00 canonical(schema descriptor))
//	commitment   = SHA256("vquery/unit/v1" 0x00 schemaDigest 0x00 canonical(page))
//
// The page and the schema descriptor are stored as independent artifacts (see
// internal/store); Assemble recombines them with a stored commitment and
// refuses the result if the commitment does not check out.
package table
