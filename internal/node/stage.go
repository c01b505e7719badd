package node

import (
	"errors"
	"fmt"
)

// Stage is the lifecycle position of a node.
type Stage int

const (
	StageCreated Stage = iota
	StageExecuted
	StageKeyGenerated
	StageProved
	StageVerified
)

var stageNames = [...]string{
	StageCreated:      "created",
	StageExecuted:     "executed",
	StageKeyGenerated: "keygenerated",
	StageProved:       "proved",
	StageVerified:     "verified",
}

func (s Stage) String() string {
	if s < StageCreated || s > StageVerified {
		return fmt.Sprintf("stage(%d)", int(s))
	}
	return stageNames[s]
}

// ErrStageOrder is returned for a transition that skips or reverses a stage.
var ErrStageOrder = errors.New("stage order violation")

// StageError describes a rejected transition.
type StageError struct {
	Position int
	Current  Stage
	Want     Stage
	To       Stage
}

func (e *StageError) Error() string {
	return fmt.Sprintf("node %d: cannot move to %s from %s (requires %s)",
		e.Position, e.To, e.Current, e.Want)
}

// Is makes errors.Is(err, ErrStageOrder) true.
func (e *StageError) Is(target error) bool {
	return target == ErrStageOrder
}
