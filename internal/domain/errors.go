package domain

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindInvalidInput   ErrorKind = "invalid_input"
	KindUnauthorized   ErrorKind = "unauthorized"
	KindForbidden      ErrorKind = "forbidden"
	KindProviderError  ErrorKind = "provider_error"
	KindNotFound       ErrorKind = "not_found"
	KindInvalidPayload ErrorKind = "invalid_payload"
	KindInternal       ErrorKind = "internal"
)

// Error carries a stable kind for transport-level mapping plus a
// human-readable message. Field is set for invalid-input errors.
type Error struct {
	Kind    ErrorKind
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

func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func WrapError(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func InvalidInput(field, message string) *Error {
	return &Error{Kind: KindInvalidInput, Field: field, Message: message}
}

// KindOf extracts the error kind, defaulting to internal for errors that
// did not originate in the domain layer.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}
