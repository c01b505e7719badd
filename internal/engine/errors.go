package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/vquery/internal/node"
	"github.com/roach88/vquery/internal/table"
)

// Sentinel errors matched with errors.Is against a *PipelineError.
var (
	ErrCommitmentMismatch = table.ErrCommitmentMismatch
	ErrInputNotReady      = errors.New("input not ready")
	ErrKeygen             = errors.New("key generation failed")
	ErrProve              = errors.New("proving failed")
	ErrVerificationFailed = errors.New("verification failed")
	ErrExecute            = errors.New("execution failed")
	ErrStageOrder         = node.ErrStageOrder
)

// PipelineError represents an error raised by a pipeline stage.
//
// Stage errors abort the remaining phases of the run. They are never retried:
// every stage is deterministic, so a retry without a fix fails the same way.
type PipelineError struct {
	// Code identifies the error category.
	Code PipelineErrorCode

	// Phase is the phase that failed.
	Phase Phase

	// Position is the node position, or -1 for run-level errors.
	Position int

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// PipelineErrorCode categorizes pipeline errors.
type PipelineErrorCode string

const (
	// ErrCodeCommitmentMismatch indicates a data unit failed its integrity check.
	ErrCodeCommitmentMismatch PipelineErrorCode = "COMMITMENT_MISMATCH"

	// ErrCodeInputNotReady indicates a stage ran before the node or one of its
	// inputs reached the required stage.
	ErrCodeInputNotReady PipelineErrorCode = "INPUT_NOT_READY"

	// ErrCodeStageOrder indicates a stage ran twice on the same node.
	ErrCodeStageOrder PipelineErrorCode = "STAGE_ORDER"

	// ErrCodeExecute indicates the operator could not be applied to its inputs.
	ErrCodeExecute PipelineErrorCode = "EXECUTE_ERROR"

	// ErrCodeKeygen indicates key material could not be derived for the shape.
	ErrCodeKeygen PipelineErrorCode = "KEYGEN_ERROR"

	// ErrCodeProve indicates an ancestor lacks a proof, or the witness does
	// not fit the key's shape.
	ErrCodeProve PipelineErrorCode = "PROVE_ERROR"

	// ErrCodeVerificationFailed indicates the proof was rejected.
	ErrCodeVerificationFailed PipelineErrorCode = "VERIFICATION_FAILED"
)

// Error implements the error interface.
func (e *PipelineError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Position >= 0 {
		msg = fmt.Sprintf("%s (phase=%s, node=%d)", msg, e.Phase, e.Position)
	} else if e.Phase != "" {
		msg = fmt.Sprintf("%s (phase=%s)", msg, e.Phase)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *PipelineError) Unwrap() error { return e.Err }

// Is maps codes to sentinel errors.
func (e *PipelineError) Is(target error) bool {
	switch e.Code {
	case ErrCodeCommitmentMismatch:
		return target == ErrCommitmentMismatch
	case ErrCodeInputNotReady:
		return target == ErrInputNotReady
	case ErrCodeStageOrder:
		return target == ErrStageOrder
	case ErrCodeExecute:
		return target == ErrExecute
	case ErrCodeKeygen:
		return target == ErrKeygen
	case ErrCodeProve:
		return target == ErrProve
	case ErrCodeVerificationFailed:
		return target == ErrVerificationFailed
	}
	return false
}

// IsInputNotReady returns true if err is an ordering violation.
// Uses errors.As to handle wrapped errors.
func IsInputNotReady(err error) bool {
	return hasCode(err, ErrCodeInputNotReady)
}

// IsVerificationFailed returns true if err reports a rejected proof.
func IsVerificationFailed(err error) bool {
	return hasCode(err, ErrCodeVerificationFailed)
}

// IsCommitmentMismatch returns true if err reports a failed integrity check.
func IsCommitmentMismatch(err error) bool {
	return hasCode(err, ErrCodeCommitmentMismatch)
}

func hasCode(err error, code PipelineErrorCode) bool {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Code == code
	}
	return false
}

func newNodeError(code PipelineErrorCode, phase Phase, pos int, err error, format string, args ...any) *PipelineError {
	return &PipelineError{
		Code:     code,
		Phase:    phase,
		Position: pos,
		Message:  fmt.Sprintf(format, args...),
		Err:      err,
	}
}
