// Package apperr defines the error taxonomy shared by services and handlers.
package apperr

import (
	"errors"
)

// Kind classifies an error for transport mapping.
type Kind string

const (
	KindNotFound     Kind = "not_found"
	KindValidation   Kind = "validation"
	KindConflict     Kind = "conflict"
	KindUnauthorized Kind = "unauthorized"
	KindForbidden    Kind = "forbidden"
	KindUpstream     Kind = "upstream"
	KindPersistence  Kind = "persistence"
)

// Error is a classified error. Message is safe to show to API clients; Err is not.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches sentinel errors by identity first, then by kind and message so that
// wrapped copies created with Wrap still compare equal to their sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if e == t {
		return true
	}
	return e.Kind == t.Kind && e.Message == t.Message
}

func newErr(kind Kind, msg string) *Error { return &Error{Kind: kind, Message: msg} }

// NotFound returns a NotFound error.
func NotFound(msg string) *Error { return newErr(KindNotFound, msg) }

// Validation returns a Validation error.
func Validation(msg string) *Error { return newErr(KindValidation, msg) }

// Conflict returns a Conflict error.
func Conflict(msg string) *Error { return newErr(KindConflict, msg) }

// Unauthorized returns an Unauthorized error.
func Unauthorized(msg string) *Error { return newErr(KindUnauthorized, msg) }

// Forbidden returns a Forbidden error.
func Forbidden(msg string) *Error { return newErr(KindForbidden, msg) }

// Upstream returns an Upstream error.
func Upstream(msg string) *Error { return newErr(KindUpstream, msg) }

// Persistence returns a Persistence error.
func Persistence(msg string) *Error { return newErr(KindPersistence, msg) }

// Wrap attaches a cause to a classified error.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// WithCause returns a copy of sentinel carrying err as its cause.
func WithCause(sentinel *Error, err error) *Error {
	return &Error{Kind: sentinel.Kind, Message: sentinel.Message, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// MessageOf returns the client-safe message of the first *Error in err's chain.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return ""
}

// IsKind reports whether err is classified as kind.
func IsKind(err error, kind Kind) bool { return KindOf(err) == kind }
