// Package apperr defines the error kinds shared by the store, the upstream
// clients and the HTTP layer.
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindAuth
	KindUpstream
	KindStorage
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindAuth:
		return "auth"
	case KindUpstream:
		return "upstream"
	case KindStorage:
		return "storage"
	default:
		return "internal"
	}
}

// Error carries a kind and a stable code that clients can branch on.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	if e.Message == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func Validation(code, message string) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: message}
}

func NotFound(code, message string) *Error {
	return &Error{Kind: KindNotFound, Code: code, Message: message}
}

func Auth(code, message string) *Error {
	return &Error{Kind: KindAuth, Code: code, Message: message}
}

func Upstream(code string, err error) *Error {
	return &Error{Kind: KindUpstream, Code: code, Message: "upstream request failed", Err: err}
}

func Storage(message string, err error) *Error {
	return &Error{Kind: KindStorage, Code: "storage_error", Message: message, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// CodeOf returns the stable code of err, falling back to "internal_error".
func CodeOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) && appErr.Code != "" {
		return appErr.Code
	}
	return "internal_error"
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
