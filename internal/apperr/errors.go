// Package apperr defines the error taxonomy shared by stores, services and
// the HTTP layer. Callers match with errors.Is / errors.As.
package apperr

import (
	"errors"
	"fmt"
)

// Store-level sentinels. Repositories return these; services translate them
// into user-facing errors.
var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("already exists")
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
	KindRateLimited
	KindDelivery
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindRateLimited:
		return "rate_limited"
	case KindDelivery:
		return "delivery"
	default:
		return "internal"
	}
}

// Error is a classified error. Message is safe to show to clients.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

func Validation(msg string) *Error   { return New(KindValidation, msg) }
func Unauthorized(msg string) *Error { return New(KindUnauthorized, msg) }
func Forbidden(msg string) *Error    { return New(KindForbidden, msg) }
func NotFound(msg string) *Error     { return New(KindNotFound, msg) }
func Conflict(msg string) *Error     { return New(KindConflict, msg) }
func RateLimited(msg string) *Error  { return New(KindRateLimited, msg) }

func Delivery(msg string, err error) *Error { return Wrap(KindDelivery, msg, err) }
func Internal(msg string, err error) *Error { return Wrap(KindInternal, msg, err) }

// KindOf classifies err. Unclassified errors are internal, except the bare
// store sentinels.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrDuplicate):
		return KindConflict
	}
	return KindInternal
}

// MessageOf returns the client-safe message for err.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	switch KindOf(err) {
	case KindNotFound:
		return "Not found"
	case KindConflict:
		return "Already exists"
	}
	return "Something went wrong!"
}
