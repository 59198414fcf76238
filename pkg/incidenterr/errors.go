// Package incidenterr defines the single error type shared by every core
// engine, carrying one of a closed set of kinds plus an optional cause.
package incidenterr

import (
	"errors"
	"fmt"
)

// Kind classifies an Error so callers can branch on it without string
// matching.
type Kind string

const (
	// KindValidation means caller-provided data violates an invariant.
	KindValidation Kind = "validation"
	// KindNotFound means a referenced entity is absent.
	KindNotFound Kind = "not_found"
	// KindConflict means an optimistic-concurrency check failed.
	KindConflict Kind = "conflict"
	// KindTimeout means a bounded await was exceeded.
	KindTimeout Kind = "timeout"
	// KindInternal covers everything else, including wrapped backend errors.
	KindInternal Kind = "internal"
)

// Error is the error type returned by every exported core API.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the wrapped cause to errors.Is/errors.As.
func (e *Error) Unwrap() error { return e.Cause }

// New creates an Error of the given kind with no wrapped cause.
func New(kind Kind, message string) error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates an Error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps cause as an Error of the given kind.
func Wrap(kind Kind, message string, cause error) error {
	if cause == nil {
		return New(kind, message)
	}
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// IsNotFound reports whether err is a KindNotFound Error.
func IsNotFound(err error) bool { return Is(err, KindNotFound) }

// IsConflict reports whether err is a KindConflict Error.
func IsConflict(err error) bool { return Is(err, KindConflict) }

// IsValidation reports whether err is a KindValidation Error.
func IsValidation(err error) bool { return Is(err, KindValidation) }
