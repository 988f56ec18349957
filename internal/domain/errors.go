package domain

import (
	"errors"
	"fmt"
	"strings"
)

// DecodeError means a message body is not a JSON object.
type DecodeError struct {
	MessageID string
	Cause     error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode message %s: %v", e.MessageID, e.Cause)
}

func (e *DecodeError) Unwrap() error {
	return e.Cause
}

// MissingFieldError means an event lacks a required key.
type MissingFieldError struct {
	MessageID string
	Field     string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("message %s: missing required field %q", e.MessageID, e.Field)
}

// MalformedEventError means a field is present but has an unusable shape.
type MalformedEventError struct {
	Field  string
	Reason string
}

func (e *MalformedEventError) Error() string {
	return fmt.Sprintf("malformed field %q: %s", e.Field, e.Reason)
}

type PersistKind string

const (
	PersistConnectivity PersistKind = "CONNECTIVITY"
	PersistConstraint   PersistKind = "CONSTRAINT"
	PersistUnknown      PersistKind = "UNKNOWN"
)

// PersistError means a batch could not be committed. Nothing from the batch
// is visible in the store.
type PersistError struct {
	Kind  PersistKind
	Rows  int
	Cause error
}

func NewPersistError(kind PersistKind, rows int, cause error) *PersistError {
	return &PersistError{Kind: kind, Rows: rows, Cause: cause}
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist %d rows [%s]: %v", e.Rows, e.Kind, e.Cause)
}

func (e *PersistError) Unwrap() error {
	return e.Cause
}

// Is matches another PersistError of the same kind.
func (e *PersistError) Is(target error) bool {
	var t *PersistError
	if errors.As(target, &t) {
		return t.Kind == e.Kind
	}
	return false
}

// AckError means committed messages could not all be removed from the queue
// and will be redelivered.
type AckError struct {
	Submitted int
	Deleted   int
	Failed    []DeleteFailure
	Cause     error
}

func (e *AckError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "acknowledge: deleted %d of %d messages", e.Deleted, e.Submitted)
	for _, f := range e.Failed {
		fmt.Fprintf(&b, "; %s: %s %s", f.ID, f.Code, f.Message)
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

func (e *AckError) Unwrap() error {
	return e.Cause
}
