package compiler

import (
	"errors"
	"fmt"

	"github.com/roach88/vquery/internal/expr"
)

// Sentinel errors matched with errors.Is against a *FlattenError.
var (
	ErrUnsupportedPlanNode = errors.New("unsupported plan node")
	ErrUnresolvedSource    = errors.New("unresolved source")
	ErrPlanCycle           = errors.New("plan contains a cycle")
	ErrInvalidPlan         = errors.New("invalid plan")

	// ErrUnsupportedExpr is the expression converter's sentinel.
	ErrUnsupportedExpr = expr.ErrUnsupportedExpr
)

// FlattenErrorCode categorizes flattening errors.
type FlattenErrorCode string

const (
	// CodeUnsupportedPlanNode marks an operator with no mapping.
	CodeUnsupportedPlanNode FlattenErrorCode = "UNSUPPORTED_PLAN_NODE"

	// CodeUnsupportedExpr marks an expression the restricted language cannot hold.
	CodeUnsupportedExpr FlattenErrorCode = "UNSUPPORTED_EXPR"

	// CodeUnresolvedSource marks a table the resolver cannot locate.
	CodeUnresolvedSource FlattenErrorCode = "UNRESOLVED_SOURCE"

	// CodePlanCycle marks a plan node that reaches itself.
	CodePlanCycle FlattenErrorCode = "PLAN_CYCLE"

	// CodeInvalidPlan marks a malformed plan: wrong child count, type errors,
	// a declared schema that does not match.
	CodeInvalidPlan FlattenErrorCode = "INVALID_PLAN"
)

// FlattenError is returned by Flatten. No nodes are produced when it occurs.
type FlattenError struct {
	Code FlattenErrorCode
	// Path locates the plan node, e.g. "filter/scan(T)".
	Path    string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *FlattenError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Path != "" {
		msg += " (at " + e.Path + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *FlattenError) Unwrap() error { return e.Err }

// Is maps codes to sentinel errors.
func (e *FlattenError) Is(target error) bool {
	switch e.Code {
	case CodeUnsupportedPlanNode:
		return target == ErrUnsupportedPlanNode
	case CodeUnsupportedExpr:
		return target == ErrUnsupportedExpr
	case CodeUnresolvedSource:
		return target == ErrUnresolvedSource
	case CodePlanCycle:
		return target == ErrPlanCycle
	case CodeInvalidPlan:
		return target == ErrInvalidPlan
	}
	return false
}

// IsUnsupportedPlanNode reports whether err is a flattening error for an
// unmapped operator. Uses errors.As to handle wrapped errors.
func IsUnsupportedPlanNode(err error) bool {
	return hasCode(err, CodeUnsupportedPlanNode)
}

// IsUnresolvedSource reports whether err is a flattening error for a missing table.
func IsUnresolvedSource(err error) bool {
	return hasCode(err, CodeUnresolvedSource)
}

// IsUnsupportedExpr reports whether err is a flattening error for an
// unconvertible expression.
func IsUnsupportedExpr(err error) bool {
	return hasCode(err, CodeUnsupportedExpr)
}

func hasCode(err error, code FlattenErrorCode) bool {
	var fe *FlattenError
	if errors.As(err, &fe) {
		return fe.Code == code
	}
	return false
}
