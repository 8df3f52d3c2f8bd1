// Package apperr defines the error kinds shared by the service layers.
//
// Callers branch on Kind instead of matching error strings:
//
//	switch apperr.KindOf(err) {
//	case apperr.KindValidation:
//		// 400
//	case apperr.KindNotFound:
//		// 404
//	}
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	KindUnknown Kind = iota
	// KindConfiguration marks programmer errors such as using the auth
	// context outside a mounted provider. Not recoverable at runtime.
	KindConfiguration
	// KindSessionQuery marks a failed session lookup. Recovered locally by
	// treating the caller as anonymous.
	KindSessionQuery
	KindValidation
	KindUnauthorized
	KindNotFound
	KindConflict
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindSessionQuery:
		return "session_query"
	case KindValidation:
		return "validation"
	case KindUnauthorized:
		return "unauthorized"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Error is an error tagged with a Kind and the operation that produced it.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func Configuration(op, msg string) *Error {
	return New(KindConfiguration, op, errors.New(msg))
}

func SessionQuery(op string, err error) *Error {
	return New(KindSessionQuery, op, err)
}

func Validation(op string, err error) *Error {
	return New(KindValidation, op, err)
}

func NotFound(op string, err error) *Error {
	return New(KindNotFound, op, err)
}

func Conflict(op string, err error) *Error {
	return New(KindConflict, op, err)
}

func Unauthorized(op string, err error) *Error {
	return New(KindUnauthorized, op, err)
}

func Internal(op string, err error) *Error {
	return New(KindInternal, op, err)
}

// KindOf returns the kind of the outermost *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// HTTPStatus maps an error to the status code handlers respond with.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
