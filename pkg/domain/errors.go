package domain

import (
	"errors"
	"fmt"
)

// ErrQueryTimeout signals that a gateway query exceeded its execution budget.
// It is an expected condition that triggers the asynchronous fallback, not a
// failure of the query itself.
var ErrQueryTimeout = errors.New("query execution timed out")

// ErrNotFound is returned when a get operation addresses an absent record.
type ErrNotFound struct {
	Entity EntityKind
	ID     string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// ErrConflict reports two writes sharing a primary key with different
// payloads. Duplicate identical writes are silent no-ops; a payload mismatch
// indicates a data-modeling bug and is never swallowed.
type ErrConflict struct {
	Entity EntityKind
	ID     string
}

func (e ErrConflict) Error() string {
	return fmt.Sprintf("%s %s already exists with a different payload", e.Entity, e.ID)
}

// ErrInvalidTransition reports an attempt to move a query job out of a
// terminal state or otherwise against the job state machine.
type ErrInvalidTransition struct {
	From JobStatus
	To   JobStatus
}

func (e ErrInvalidTransition) Error() string {
	return fmt.Sprintf("invalid job transition %s -> %s", e.From, e.To)
}
