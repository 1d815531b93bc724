// Package model holds the error vocabulary shared by the sitemap builder,
// the catalog providers and the HTTP layer.
package model

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for the failure kinds a sitemap request can end in.
// Use errors.Is() to check against these.
var (
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrPageNotFound        = errors.New("page not found")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrSerialization       = errors.New("serialization error")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrRateLimited         = errors.New("rate limited")
)

// APIError is a classified error carrying the HTTP status it maps to.
// Implements error interface and supports unwrapping.
type APIError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Err        error  `json:"-"`
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// NewInvalidArgumentError creates a 400 error for caller bugs such as a zero
// page size or an unsupported locale. Not retryable.
func NewInvalidArgumentError(field, reason string) *APIError {
	return &APIError{
		Code:       "INVALID_ARGUMENT",
		Message:    fmt.Sprintf("invalid %s: %s", field, reason),
		StatusCode: http.StatusBadRequest,
		Err:        ErrInvalidArgument,
	}
}

// NewPageNotFoundError creates a 404 error for out-of-range pagination.
// This is an expected outcome, not a failure.
func NewPageNotFoundError(resource string) *APIError {
	return &APIError{
		Code:       "PAGE_NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		StatusCode: http.StatusNotFound,
		Err:        ErrPageNotFound,
	}
}

// NewUpstreamError creates a 503 error for catalog provider failures.
func NewUpstreamError(service string, err error) *APIError {
	return &APIError{
		Code:       "UPSTREAM_UNAVAILABLE",
		Message:    fmt.Sprintf("%s request failed", service),
		StatusCode: http.StatusServiceUnavailable,
		Err:        fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err),
	}
}

// NewUnauthorizedError creates an error for rejected store credentials.
// From the crawler's point of view the catalog is unavailable, so it also
// matches ErrUpstreamUnavailable.
func NewUnauthorizedError(reason string) *APIError {
	return &APIError{
		Code:       "UNAUTHORIZED",
		Message:    reason,
		StatusCode: http.StatusServiceUnavailable,
		Err:        errors.Join(ErrUnauthorized, ErrUpstreamUnavailable),
	}
}

// NewRateLimitError creates an error for upstream rate limiting.
func NewRateLimitError(service string) *APIError {
	return &APIError{
		Code:       "RATE_LIMITED",
		Message:    fmt.Sprintf("%s rate limit exceeded, please retry later", service),
		StatusCode: http.StatusServiceUnavailable,
		Err:        errors.Join(ErrRateLimited, ErrUpstreamUnavailable),
	}
}

// NewSerializationError creates a 500 error for documents that cannot be
// written as well-formed XML. Seeing one means a bug upstream of the renderer.
func NewSerializationError(reason string) *APIError {
	return &APIError{
		Code:       "SERIALIZATION_ERROR",
		Message:    reason,
		StatusCode: http.StatusInternalServerError,
		Err:        ErrSerialization,
	}
}

// NewInternalError creates a 500 error for unexpected failures.
func NewInternalError(err error) *APIError {
	return &APIError{
		Code:       "INTERNAL_ERROR",
		Message:    "an internal error occurred",
		StatusCode: http.StatusInternalServerError,
		Err:        err,
	}
}

// IsRetryable reports whether the caller may retry the whole request.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrUpstreamUnavailable)
}

// StatusCode returns the HTTP status for err, 500 when err is unclassified.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return http.StatusInternalServerError
}
