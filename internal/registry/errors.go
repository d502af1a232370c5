package registry

import (
	"errors"
	"fmt"

	"github.com/roach88/anchorsync/internal/anchor"
)

// ErrorCode categorizes registry errors.
type ErrorCode string

const (
	// ErrCodeUnavailable means the store (or tracking subsystem) is not ready.
	ErrCodeUnavailable ErrorCode = "UNAVAILABLE"

	// ErrCodePersistFailure means the store refused to persist an anchor.
	ErrCodePersistFailure ErrorCode = "PERSIST_FAILURE"

	// ErrCodeUnknownIdentifier means no record exists for an identifier.
	ErrCodeUnknownIdentifier ErrorCode = "UNKNOWN_IDENTIFIER"

	// ErrCodeDuplicateReady means store readiness was delivered twice.
	ErrCodeDuplicateReady ErrorCode = "DUPLICATE_READY"
)

// Error is a registry error with structured fields for logging and matching.
// Errors with the same Code match under errors.Is, so callers can test against
// the sentinels below.
type Error struct {
	Code    ErrorCode
	Message string
	ID      anchor.ID
	Name    string
	Err     error
}

// Sentinels for errors.Is.
var (
	ErrUnavailable       = &Error{Code: ErrCodeUnavailable, Message: "anchor store unavailable"}
	ErrPersistFailed     = &Error{Code: ErrCodePersistFailure, Message: "anchor could not be persisted"}
	ErrUnknownIdentifier = &Error{Code: ErrCodeUnknownIdentifier, Message: "unknown anchor identifier"}
)

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.ID != "" {
		msg += fmt.Sprintf(" (id=%s", e.ID)
		if e.Name != "" {
			msg += fmt.Sprintf(", name=%s", e.Name)
		}
		msg += ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// IsUnknownIdentifier reports whether err is an unknown-identifier error.
func IsUnknownIdentifier(err error) bool {
	return errors.Is(err, ErrUnknownIdentifier)
}

// IsUnavailable reports whether err is an unavailable-store error.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

// IsPersistFailure reports whether err is a persist failure.
func IsPersistFailure(err error) bool {
	return errors.Is(err, ErrPersistFailed)
}

func unknownIdentifier(id anchor.ID) *Error {
	return &Error{Code: ErrCodeUnknownIdentifier, Message: "unknown anchor identifier", ID: id}
}

func unavailable(cause error) *Error {
	return &Error{Code: ErrCodeUnavailable, Message: "anchor store unavailable", Err: cause}
}

func persistFailure(id anchor.ID, name string) *Error {
	return &Error{Code: ErrCodePersistFailure, Message: "anchor could not be persisted", ID: id, Name: name}
}

func duplicateReady() *Error {
	return &Error{Code: ErrCodeDuplicateReady, Message: "store readiness delivered twice; a store load cycle runs at most once"}
}
