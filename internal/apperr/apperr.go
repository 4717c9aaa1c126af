// Package apperr defines the error kinds surfaced by the inventory core.
// Every failure returned to a caller carries exactly one Kind plus a human
// readable message; transport layers map the Kind to a status code.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is a stable, machine readable error category.
type Kind string

const (
	KindNotFound          Kind = "NOT_FOUND"
	KindInvalidInput      Kind = "INVALID_INPUT"
	KindInsufficientStock Kind = "INSUFFICIENT_STOCK"
	KindForbidden         Kind = "FORBIDDEN"
	KindProtectedEntity   Kind = "PROTECTED_ENTITY"
	KindConflict          Kind = "CONFLICT"
	KindAlreadyDeleted    Kind = "ALREADY_DELETED"
	KindNotDeleted        Kind = "NOT_DELETED"
	KindBusy              Kind = "BUSY"
	KindUnavailable       Kind = "UNAVAILABLE"
	KindUnauthorized      Kind = "UNAUTHORIZED"
	KindInternal          Kind = "INTERNAL"
)

// Sentinels usable with errors.Is.
var (
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrInvalidInput      = &Error{Kind: KindInvalidInput}
	ErrInsufficientStock = &Error{Kind: KindInsufficientStock}
	ErrForbidden         = &Error{Kind: KindForbidden}
	ErrProtectedEntity   = &Error{Kind: KindProtectedEntity}
	ErrConflict          = &Error{Kind: KindConflict}
	ErrAlreadyDeleted    = &Error{Kind: KindAlreadyDeleted}
	ErrNotDeleted        = &Error{Kind: KindNotDeleted}
	ErrBusy              = &Error{Kind: KindBusy}
	ErrUnavailable       = &Error{Kind: KindUnavailable}
	ErrUnauthorized      = &Error{Kind: KindUnauthorized}
)

// Error is the concrete error type of the core.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same Kind, so errors.Is(err, apperr.ErrBusy)
// works regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New creates an error of the given kind.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an error of the given kind around a cause.
func Wrap(kind Kind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

func NotFound(format string, args ...interface{}) *Error {
	return New(KindNotFound, format, args...)
}

func InvalidInput(format string, args ...interface{}) *Error {
	return New(KindInvalidInput, format, args...)
}

func Forbidden(format string, args ...interface{}) *Error {
	return New(KindForbidden, format, args...)
}

func Conflict(format string, args ...interface{}) *Error {
	return New(KindConflict, format, args...)
}

func Busy(format string, args ...interface{}) *Error {
	return New(KindBusy, format, args...)
}

// KindOf returns the Kind of the first *Error in err's chain, or
// KindInternal when there is none.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Message returns the human readable message of err.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return err.Error()
}

// Retryable reports whether the operation may succeed when retried as is.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindBusy, KindUnavailable:
		return true
	}
	return false
}
