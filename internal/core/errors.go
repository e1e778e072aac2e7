package core

import (
	"errors"
	"fmt"
)

// Kind classifies errors for callers at the API boundary.
type Kind string

const (
	KindAuth       Kind = "auth_error"
	KindValidation Kind = "validation_error"
	KindNotFound   Kind = "not_found_error"
	KindSizeLimit  Kind = "size_limit_error"
	KindStore      Kind = "store_error"
)

// Error is a classified domain error. Message is safe to show to clients.
type Error struct {
	Kind    Kind
	Field   string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func Validation(field, msg string) error {
	return &Error{Kind: KindValidation, Field: field, Message: msg}
}

func NotFound(entity, id string) error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("%s %q not found", entity, id)}
}

func Auth(msg string) error {
	return &Error{Kind: KindAuth, Message: msg}
}

func SizeLimit(limit, got int64) error {
	return &Error{
		Kind:    KindSizeLimit,
		Message: fmt.Sprintf("archive size %d exceeds limit of %d bytes", got, limit),
	}
}

// Store wraps a failure of the relational store.
func Store(op string, err error) error {
	return &Error{Kind: KindStore, Message: op + " failed", Err: err}
}

// KindOf returns the kind of the first classified error in the chain.
// Unclassified errors are reported as store errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindStore
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, k Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == k
}
