// Package apperr defines the error taxonomy surfaced to API callers.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	KindInternal Kind = iota
	KindInvalidInput
	KindForbidden
	KindNotFound
	KindConflict
	KindUpstream
)

// Code returns the stable numeric code reported to callers.
func (k Kind) Code() int {
	switch k {
	case KindInvalidInput:
		return 40000
	case KindForbidden:
		return 40300
	case KindNotFound:
		return 40400
	case KindConflict:
		return 40900
	case KindUpstream:
		return 50200
	default:
		return 50000
	}
}

// HTTPStatus maps the kind onto a response status. Upstream is reported as 500.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid input"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not found"
	case KindConflict:
		return "conflict"
	case KindUpstream:
		return "upstream failure"
	default:
		return "internal error"
	}
}

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

func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

func InvalidInput(format string, args ...any) *Error { return New(KindInvalidInput, format, args...) }
func Forbidden(format string, args ...any) *Error    { return New(KindForbidden, format, args...) }
func NotFound(format string, args ...any) *Error     { return New(KindNotFound, format, args...) }
func Conflict(format string, args ...any) *Error     { return New(KindConflict, format, args...) }

func Internal(err error, format string, args ...any) *Error {
	return Wrap(KindInternal, err, format, args...)
}

func Upstream(err error, format string, args ...any) *Error {
	return Wrap(KindUpstream, err, format, args...)
}

// KindOf returns the kind of the first *Error in the chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func IsKind(err error, kind Kind) bool {
	if err == nil {
		return false
	}
	return KindOf(err) == kind
}

// Public converts err into what a caller may see. Upstream and unclassified
// failures become a generic Internal error so the cause is never exposed.
func Public(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		switch e.Kind {
		case KindUpstream, KindInternal:
			return &Error{Kind: KindInternal, Message: "internal error"}
		}
		return &Error{Kind: e.Kind, Message: e.Message}
	}
	return &Error{Kind: KindInternal, Message: "internal error"}
}
