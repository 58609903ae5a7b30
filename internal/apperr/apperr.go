// Package apperr classifies failures so handlers can choose an HTTP status
// and a user-facing message without inspecting error strings.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindInternal            Kind = "internal"
	KindValidation          Kind = "validation"
	KindAuthentication      Kind = "authentication"
	KindUnauthenticated     Kind = "unauthenticated"
	KindNotFound            Kind = "not_found"
	KindProviderUnavailable Kind = "provider_unavailable"
	KindProviderRejected    Kind = "provider_rejected"
	KindConfiguration       Kind = "configuration"
	KindStorage             Kind = "storage"
)

type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	case e.Op != "":
		return e.Op + ": " + e.Msg
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg}
}

func Wrap(kind Kind, op, msg string, err error) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg, Err: err}
}

func Validation(msg string) *Error { return New(KindValidation, "", msg) }

func Validationf(format string, args ...any) *Error {
	return New(KindValidation, "", fmt.Sprintf(format, args...))
}

func Storage(op string, err error) *Error {
	return Wrap(KindStorage, op, "storage failure", err)
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation, KindAuthentication, KindProviderRejected:
		return http.StatusBadRequest
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindProviderUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage is what the caller of the HTTP API gets to see. Validation
// and provider rejections are returned verbatim; everything else is generic.
func PublicMessage(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return "something went wrong, please try again"
	}

	switch e.Kind {
	case KindValidation, KindProviderRejected, KindNotFound:
		return e.Msg
	case KindAuthentication:
		return "payment verification failed"
	case KindUnauthenticated:
		return "unauthorized"
	case KindProviderUnavailable:
		return "payment service temporarily unavailable, please retry"
	default:
		return "something went wrong, please try again"
	}
}

// Retryable reports whether repeating the whole request may succeed.
func Retryable(err error) bool {
	return KindOf(err) == KindProviderUnavailable
}
