package table

import "errors"

var (
	// ErrCommitmentMismatch is returned when a recomputed commitment differs
	// from the recorded one.
	ErrCommitmentMismatch = errors.New("commitment mismatch")

	// ErrSchemaInvalid is returned for malformed schemas and schema descriptors.
	ErrSchemaInvalid = errors.New("invalid schema")

	// ErrRowInvalid is returned when a row does not conform to the schema.
	ErrRowInvalid = errors.New("row does not match schema")
)
