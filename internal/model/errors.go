package model

import (
	"errors"
	"fmt"
)

// ErrorKind categorizes a domain error so the API layer (and any
// other caller) can tell field-level problems apart from state
// conflicts, quota refusals, and missing entities without parsing
// messages.
type ErrorKind string

const (
	// KindValidation marks malformed input, rejected before any
	// state change.
	KindValidation ErrorKind = "validation"

	// KindConflict marks an illegal state transition, such as
	// acknowledging a terminal witness or over-returning an item.
	KindConflict ErrorKind = "conflict"

	// KindQuota marks a refused witness invite due to the caller's
	// subscription limit. Remaining carries the unused allowance.
	KindQuota ErrorKind = "quota_exceeded"

	// KindNotFound marks an unknown id. Entities owned by another
	// user report the same kind, deliberately indistinguishable.
	KindNotFound ErrorKind = "not_found"

	// KindFatal marks a failure that aborted the enclosing mutation,
	// such as a history append that could not commit.
	KindFatal ErrorKind = "fatal"
)

// Error is a kinded domain error.
type Error struct {
	Kind    ErrorKind
	Message string

	// Remaining is set for quota errors.
	Remaining int

	// Err is the underlying cause, if any.
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Validationf builds a validation error.
func Validationf(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// Conflictf builds a conflict error.
func Conflictf(format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

// NotFound builds a not-found error for the named entity.
func NotFound(entity string) *Error {
	return &Error{Kind: KindNotFound, Message: entity + " not found"}
}

// QuotaExceeded builds a quota error carrying the remaining allowance.
func QuotaExceeded(remaining int) *Error {
	return &Error{
		Kind:      KindQuota,
		Message:   fmt.Sprintf("witness invite limit reached (%d remaining)", remaining),
		Remaining: remaining,
	}
}

// Fatal wraps an error that must abort the enclosing mutation.
func Fatal(message string, err error) *Error {
	return &Error{Kind: KindFatal, Message: message, Err: err}
}

// IsKind reports whether err is (or wraps) a domain error of the
// given kind.
func IsKind(err error, kind ErrorKind) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind == kind
	}
	return false
}

// AsError unwraps err to a domain error, or nil.
func AsError(err error) *Error {
	var de *Error
	if errors.As(err, &de) {
		return de
	}
	return nil
}
