package model

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestAPIError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *APIError
		want string
	}{
		{
			name: "without wrapped error",
			err: &APIError{
				Code:    "TEST_ERROR",
				Message: "something went wrong",
			},
			want: "TEST_ERROR: something went wrong",
		},
		{
			name: "with wrapped error",
			err: &APIError{
				Code:    "TEST_ERROR",
				Message: "something went wrong",
				Err:     errors.New("underlying cause"),
			},
			want: "TEST_ERROR: something went wrong (underlying cause)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.err.Error()
			if got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAPIError_Unwrap(t *testing.T) {
	underlying := errors.New("underlying error")
	err := &APIError{Code: "TEST", Message: "test", Err: underlying}

	if err.Unwrap() != underlying {
		t.Errorf("Unwrap() = %v, want %v", err.Unwrap(), underlying)
	}

	errNoWrap := &APIError{Code: "TEST", Message: "test"}
	if errNoWrap.Unwrap() != nil {
		t.Error("Unwrap() should return nil when no wrapped error")
	}
}

func TestNewInvalidArgumentError(t *testing.T) {
	err := NewInvalidArgumentError("page_size", "must be positive")

	if err.Code != "INVALID_ARGUMENT" {
		t.Errorf("Code = %q, want INVALID_ARGUMENT", err.Code)
	}
	if err.Message != "invalid page_size: must be positive" {
		t.Errorf("Message = %q", err.Message)
	}
	if err.StatusCode != http.StatusBadRequest {
		t.Errorf("StatusCode = %d, want 400", err.StatusCode)
	}
	if IsRetryable(err) {
		t.Error("invalid argument must not be retryable")
	}
}

func TestNewPageNotFoundError(t *testing.T) {
	err := NewPageNotFoundError("sitemap-products-4.xml")

	if err.Message != "sitemap-products-4.xml not found" {
		t.Errorf("Message = %q", err.Message)
	}
	if err.StatusCode != http.StatusNotFound {
		t.Errorf("StatusCode = %d, want 404", err.StatusCode)
	}
	if errors.Is(err, ErrUpstreamUnavailable) {
		t.Error("page not found must be distinguishable from upstream failure")
	}
}

func TestNewUpstreamError(t *testing.T) {
	underlying := errors.New("connection refused")
	err := NewUpstreamError("WooCommerce", underlying)

	if err.Code != "UPSTREAM_UNAVAILABLE" {
		t.Errorf("Code = %q, want UPSTREAM_UNAVAILABLE", err.Code)
	}
	if err.Message != "WooCommerce request failed" {
		t.Errorf("Message = %q", err.Message)
	}
	if err.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("StatusCode = %d, want 503", err.StatusCode)
	}
	if !IsRetryable(err) {
		t.Error("upstream error should be retryable")
	}
}

func TestNewRateLimitError(t *testing.T) {
	err := NewRateLimitError("WooCommerce")

	if err.Message != "WooCommerce rate limit exceeded, please retry later" {
		t.Errorf("Message = %q", err.Message)
	}
	if !errors.Is(err, ErrRateLimited) {
		t.Error("should match ErrRateLimited")
	}
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Error("should also match ErrUpstreamUnavailable")
	}
}

func TestNewInternalError(t *testing.T) {
	underlying := errors.New("nil map")
	err := NewInternalError(underlying)

	if err.StatusCode != http.StatusInternalServerError {
		t.Errorf("StatusCode = %d, want 500", err.StatusCode)
	}
	if err.Err != underlying {
		t.Error("wrapped error should be preserved")
	}
}

func TestErrorsIs(t *testing.T) {
	tests := []struct {
		name     string
		err      *APIError
		sentinel error
	}{
		{"InvalidArgument", NewInvalidArgumentError("x", "y"), ErrInvalidArgument},
		{"PageNotFound", NewPageNotFoundError("x"), ErrPageNotFound},
		{"Upstream", NewUpstreamError("x", nil), ErrUpstreamUnavailable},
		{"Unauthorized", NewUnauthorizedError("x"), ErrUnauthorized},
		{"UnauthorizedUpstream", NewUnauthorizedError("x"), ErrUpstreamUnavailable},
		{"RateLimit", NewRateLimitError("x"), ErrRateLimited},
		{"Serialization", NewSerializationError("x"), ErrSerialization},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.sentinel) {
				t.Errorf("errors.Is(%T, %v) = false, want true", tt.err, tt.sentinel)
			}
		})
	}
}

func TestStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid", NewInvalidArgumentError("x", "y"), 400},
		{"not found", NewPageNotFoundError("x"), 404},
		{"upstream", NewUpstreamError("x", errors.New("boom")), 503},
		{"wrapped", fmt.Errorf("building index: %w", NewPageNotFoundError("x")), 404},
		{"plain", errors.New("boom"), 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StatusCode(tt.err); got != tt.want {
				t.Errorf("StatusCode() = %d, want %d", got, tt.want)
			}
		})
	}
}
