package models

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("queue entry not found")
	ErrDuplicateID       = errors.New("queue entry id already exists")
	ErrInvalidState      = errors.New("operation not allowed in current status")
	ErrInvalidTransition = errors.New("status transition not allowed")
	ErrLaneBusy          = errors.New("lane already has a patient in progress")
	ErrLaneEmpty         = errors.New("no waiting patient in lane")
	ErrInvalidLane       = errors.New("invalid lane")
	ErrInvalidPatient    = errors.New("invalid patient snapshot")
)

// StateError is returned when an entry's current status forbids the
// requested operation. errors.Is matches it against ErrInvalidState or
// ErrInvalidTransition depending on how it was built.
type StateError struct {
	Op      string
	ID      string
	Current Status
	Target  Status
	kind    error
}

func NewInvalidStateError(op, id string, current Status) *StateError {
	return &StateError{Op: op, ID: id, Current: current, kind: ErrInvalidState}
}

func NewInvalidTransitionError(id string, from, to Status) *StateError {
	return &StateError{Op: "update status", ID: id, Current: from, Target: to, kind: ErrInvalidTransition}
}

func (e *StateError) Error() string {
	if e.Target != "" {
		return fmt.Sprintf("%s %s: %s -> %s: %v", e.Op, e.ID, e.Current, e.Target, e.kind)
	}
	if e.Current.IsTerminal() {
		return fmt.Sprintf("%s %s: entry is already %s: %v", e.Op, e.ID, e.Current, e.kind)
	}
	return fmt.Sprintf("%s %s: entry is %s: %v", e.Op, e.ID, e.Current, e.kind)
}

func (e *StateError) Unwrap() error {
	return e.kind
}
