package service

import (
	"errors"
	"fmt"
)

// Domain errors surfaced to handlers and the CLI
var (
	ErrComplaintNotFound = errors.New("complaint not found")
	ErrConfigNotFound    = errors.New("no active escalation config for level")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInvalidInput      = errors.New("invalid input")
)

// PersistenceError is a per-complaint failure inside a scan pass. The
// complaint stays due and is retried by the next pass.
type PersistenceError struct {
	ComplaintID int64
	Op          string
	Err         error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to %s complaint %d: %v", e.Op, e.ComplaintID, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func invalidInput(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
