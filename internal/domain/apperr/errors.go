// Package apperr defines the error kinds surfaced by the document pipeline.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so callers can decide how to react to it
type Kind string

const (
	// StateConflict is a transition attempted from an illegal current status
	StateConflict Kind = "STATE_CONFLICT"
	// ValidationRequired is a booking attempted on a document that is not VALIDATED
	ValidationRequired Kind = "VALIDATION_REQUIRED"
	// ConnectionError is a transient external failure after the retry budget was spent
	ConnectionError Kind = "CONNECTION_ERROR"
	// ExternalServiceError is a permanent rejection by the accounting system
	ExternalServiceError Kind = "EXTERNAL_SERVICE_ERROR"
	// InvalidInput is malformed caller input
	InvalidInput Kind = "INVALID_INPUT"
	// NotFound is a missing document
	NotFound Kind = "NOT_FOUND"
)

// Error carries a kind, the failing operation and an optional cause
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error of the same kind, so errors.Is(err, apperr.E(kind)) works
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Message == "" && t.Err == nil
}

// New creates an error of the given kind
func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Newf creates an error of the given kind with a formatted message
func Newf(kind Kind, op, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind to an existing error
func Wrap(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// E returns a bare kind marker for use with errors.Is
func E(kind Kind) *Error {
	return &Error{Kind: kind}
}

// KindOf returns the kind of the first *Error in the chain, or "" if none
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
