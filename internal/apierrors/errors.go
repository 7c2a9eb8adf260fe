// Package apierrors defines the caller-facing error type returned by the
// identity service and rendered by both transports.
package apierrors

import (
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/grpc/codes"
)

type Kind string

const (
	KindInvalidRequest Kind = "invalid_request"
	KindUnauthorized   Kind = "unauthorized"
	KindNotFound       Kind = "not_found"
	KindTokenMalformed Kind = "token_malformed"
	KindTokenExpired   Kind = "token_expired"
	KindInternal       Kind = "internal_error"
)

// APIError carries a safe message for clients and the underlying cause for logs.
type APIError struct {
	Kind       Kind
	Message    string
	GRPCCode   codes.Code
	HTTPStatus int
	Err        error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *APIError) Unwrap() error {
	return e.Err
}

func NewErrInvalidRequest(message string, cause error) *APIError {
	return &APIError{
		Kind:       KindInvalidRequest,
		Message:    message,
		GRPCCode:   codes.InvalidArgument,
		HTTPStatus: http.StatusBadRequest,
		Err:        cause,
	}
}

// NewErrUnauthorized never carries a cause so that every failed login looks the same.
func NewErrUnauthorized() *APIError {
	return &APIError{
		Kind:       KindUnauthorized,
		Message:    "invalid email or password",
		GRPCCode:   codes.Unauthenticated,
		HTTPStatus: http.StatusUnauthorized,
	}
}

func NewErrNotFound(message string, cause error) *APIError {
	return &APIError{
		Kind:       KindNotFound,
		Message:    message,
		GRPCCode:   codes.NotFound,
		HTTPStatus: http.StatusNotFound,
		Err:        cause,
	}
}

func NewErrTokenMalformed(cause error) *APIError {
	return &APIError{
		Kind:       KindTokenMalformed,
		Message:    "authorization token is invalid",
		GRPCCode:   codes.Unauthenticated,
		HTTPStatus: http.StatusUnauthorized,
		Err:        cause,
	}
}

func NewErrTokenExpired(cause error) *APIError {
	return &APIError{
		Kind:       KindTokenExpired,
		Message:    "authorization token has expired",
		GRPCCode:   codes.Unauthenticated,
		HTTPStatus: http.StatusUnauthorized,
		Err:        cause,
	}
}

func NewErrMissingAuthorizationToken() *APIError {
	return NewErrTokenMalformed(errors.New("missing authorization token"))
}

func NewErrInternal(cause error) *APIError {
	return &APIError{
		Kind:       KindInternal,
		Message:    "internal server error",
		GRPCCode:   codes.Internal,
		HTTPStatus: http.StatusInternalServerError,
		Err:        cause,
	}
}

// From returns err as an APIError, wrapping anything else as internal.
func From(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return NewErrInternal(err)
}

// KindOf returns the kind of err, or KindInternal for non API errors.
func KindOf(err error) Kind {
	return From(err).Kind
}
