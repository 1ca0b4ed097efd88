package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies an operation failure for boundary mapping.
type ErrorKind int

const (
	// KindValidation marks malformed input. Maps to 400.
	KindValidation ErrorKind = iota
	// KindStateConflict marks an action illegal from the current state. Maps to 400.
	KindStateConflict
	// KindNotFound marks an unknown session/player/question id. Maps to 400.
	KindNotFound
	// KindUnauthorized marks a bad or missing token. Maps to 401.
	KindUnauthorized
	// KindForbidden marks a valid token without ownership. Maps to 403.
	KindForbidden
)

// Error is the typed failure returned by every core operation.
type Error struct {
	Kind ErrorKind
	msg  string
}

func (e *Error) Error() string { return e.msg }

func newError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, msg: fmt.Sprintf(format, args...)}
}

// Validationf builds a KindValidation error.
func Validationf(format string, args ...any) error {
	return newError(KindValidation, format, args...)
}

// StateConflictf builds a KindStateConflict error.
func StateConflictf(format string, args ...any) error {
	return newError(KindStateConflict, format, args...)
}

// NotFoundf builds a KindNotFound error.
func NotFoundf(format string, args ...any) error {
	return newError(KindNotFound, format, args...)
}

// Unauthorizedf builds a KindUnauthorized error.
func Unauthorizedf(format string, args ...any) error {
	return newError(KindUnauthorized, format, args...)
}

// Forbiddenf builds a KindForbidden error.
func Forbiddenf(format string, args ...any) error {
	return newError(KindForbidden, format, args...)
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Kind == kind
	}
	return false
}

// KindOf extracts the kind of err; unknown errors are treated as validation
// failures so the boundary never leaks a 500 for a domain refusal.
func KindOf(err error) ErrorKind {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Kind
	}
	return KindValidation
}
