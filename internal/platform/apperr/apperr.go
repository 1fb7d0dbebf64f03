// Package apperr defines the error taxonomy shared by every ledger module.
// Services return *Error values; the HTTP layer maps Kind to a status code.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error by how the caller should react to it.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindScopeViolation
	KindReferentialConflict
	KindConcurrencyConflict
	KindAuthorization
	KindInsufficientStock
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation_error"
	case KindNotFound:
		return "not_found"
	case KindScopeViolation:
		return "scope_violation"
	case KindReferentialConflict:
		return "referential_conflict"
	case KindConcurrencyConflict:
		return "concurrency_conflict"
	case KindAuthorization:
		return "authorization_error"
	case KindInsufficientStock:
		return "insufficient_stock"
	case KindConflict:
		return "conflict"
	default:
		return "internal_error"
	}
}

// Error is a classified error. Field names the offending input for validation errors.
type Error struct {
	Kind    Kind
	Field   string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Field != "" {
		msg = e.Field + ": " + msg
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error of the same kind, so errors.Is(err, &Error{Kind: KindNotFound}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Field == "" || t.Field == e.Field)
}

// Validation reports malformed or out-of-range input on field.
func Validation(field, format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Field: field, Message: fmt.Sprintf(format, args...)}
}

// NotFound reports a missing product, shop, employee, receipt or ticket.
func NotFound(entity, id string) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("%s %s not found", entity, id)}
}

// ScopeViolation reports an attempt to act outside the caller's scope.
func ScopeViolation(format string, args ...any) *Error {
	return &Error{Kind: KindScopeViolation, Message: fmt.Sprintf(format, args...)}
}

// ReferentialConflict reports a delete of a record still referenced by ledger history.
func ReferentialConflict(format string, args ...any) *Error {
	return &Error{Kind: KindReferentialConflict, Message: fmt.Sprintf(format, args...)}
}

// ConcurrencyConflict reports a lost-update race on a mutable master record.
func ConcurrencyConflict(entity, id string) *Error {
	return &Error{
		Kind:    KindConcurrencyConflict,
		Message: fmt.Sprintf("%s %s was modified concurrently, reload and retry", entity, id),
	}
}

// Authorization reports a principal that cannot be resolved to a usable scope.
func Authorization(format string, args ...any) *Error {
	return &Error{Kind: KindAuthorization, Message: fmt.Sprintf(format, args...)}
}

// InsufficientStock reports a sale that would drive a pair below zero.
func InsufficientStock(format string, args ...any) *Error {
	return &Error{Kind: KindInsufficientStock, Message: fmt.Sprintf(format, args...)}
}

// Conflict reports a duplicate human-readable code or username.
func Conflict(field, format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Field: field, Message: fmt.Sprintf(format, args...)}
}

// Internal wraps an unexpected failure, typically from storage.
func Internal(err error, format string, args ...any) *Error {
	return &Error{Kind: KindInternal, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the Kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries kind k.
func IsKind(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}
