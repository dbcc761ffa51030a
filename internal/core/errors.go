// Package core provides core types and interfaces for the generation gateway.
package core

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

// ErrorType represents the type of error that occurred
type ErrorType string

const (
	// ErrorTypeConfiguration indicates a missing or invalid credential/setting
	ErrorTypeConfiguration ErrorType = "configuration_error"
	// ErrorTypeCapabilityUnsupported indicates an operation the adapter cannot perform
	ErrorTypeCapabilityUnsupported ErrorType = "capability_unsupported"
	// ErrorTypeVendorAPI indicates a vendor failure or a terminal async Error status
	ErrorTypeVendorAPI ErrorType = "vendor_api_error"
	// ErrorTypeRateLimit indicates the vendor rejected the request at capacity (429)
	ErrorTypeRateLimit ErrorType = "rate_limit_error"
	// ErrorTypeModeration indicates the vendor refused the content
	ErrorTypeModeration ErrorType = "moderation_error"
	// ErrorTypeTimeout indicates polling exhausted its attempts or the caller gave up waiting
	ErrorTypeTimeout ErrorType = "timeout_error"
	// ErrorTypeInvalidRequest indicates a malformed request rejected before any vendor call
	ErrorTypeInvalidRequest ErrorType = "invalid_request_error"
)

// GatewayError is the base error type for all gateway errors
type GatewayError struct {
	Type       ErrorType `json:"type"`
	Message    string    `json:"message"`
	StatusCode int       `json:"status_code,omitempty"`
	Provider   string    `json:"provider,omitempty"`
	Model      string    `json:"model,omitempty"`
	// Original error for debugging (not exposed to clients)
	Err error `json:"-"`
}

// Error implements the error interface
func (e *GatewayError) Error() string {
	var b strings.Builder
	if e.Provider != "" {
		b.WriteString("[" + e.Provider + "] ")
	}
	b.WriteString(string(e.Type))
	if e.Model != "" {
		b.WriteString(" (model " + e.Model + ")")
	}
	b.WriteString(": ")
	b.WriteString(e.Message)
	return b.String()
}

// Unwrap implements the error unwrapping interface
func (e *GatewayError) Unwrap() error {
	return e.Err
}

// Retryable reports whether a caller may retry the operation under its own policy.
// Timeouts must be retried with a fresh submission, not by re-polling the job.
func (e *GatewayError) Retryable() bool {
	switch e.Type {
	case ErrorTypeVendorAPI, ErrorTypeRateLimit, ErrorTypeTimeout:
		return true
	default:
		return false
	}
}

// HTTPStatusCode returns the appropriate HTTP status code for this error
func (e *GatewayError) HTTPStatusCode() int {
	if e.StatusCode != 0 {
		return e.StatusCode
	}
	switch e.Type {
	case ErrorTypeRateLimit:
		return http.StatusTooManyRequests
	case ErrorTypeInvalidRequest, ErrorTypeCapabilityUnsupported:
		return http.StatusBadRequest
	case ErrorTypeModeration:
		return http.StatusUnprocessableEntity
	case ErrorTypeTimeout:
		return http.StatusGatewayTimeout
	case ErrorTypeVendorAPI:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// WithModel returns the error after recording the model identifier, keeping any already set.
func (e *GatewayError) WithModel(model string) *GatewayError {
	if e.Model == "" {
		e.Model = model
	}
	return e
}

// NewConfigurationError creates an error for a missing credential or setting
func NewConfigurationError(provider, model, message string) *GatewayError {
	return &GatewayError{
		Type:     ErrorTypeConfiguration,
		Message:  message,
		Provider: provider,
		Model:    model,
	}
}

// NewCapabilityUnsupportedError creates an error for an operation the adapter cannot perform
func NewCapabilityUnsupportedError(provider, model, operation string) *GatewayError {
	return &GatewayError{
		Type:     ErrorTypeCapabilityUnsupported,
		Message:  fmt.Sprintf("%s is not supported by this provider", operation),
		Provider: provider,
		Model:    model,
	}
}

// NewVendorAPIError creates an error wrapping a vendor status and message
func NewVendorAPIError(provider, model string, statusCode int, message string, err error) *GatewayError {
	return &GatewayError{
		Type:       ErrorTypeVendorAPI,
		Message:    message,
		StatusCode: statusCode,
		Provider:   provider,
		Model:      model,
		Err:        err,
	}
}

// NewRateLimitError creates a new rate limit error (429)
func NewRateLimitError(provider, model, message string) *GatewayError {
	return &GatewayError{
		Type:       ErrorTypeRateLimit,
		Message:    message,
		StatusCode: http.StatusTooManyRequests,
		Provider:   provider,
		Model:      model,
	}
}

// NewModerationError creates an error for vendor-rejected content
func NewModerationError(provider, model, message string) *GatewayError {
	return &GatewayError{
		Type:     ErrorTypeModeration,
		Message:  message,
		Provider: provider,
		Model:    model,
	}
}

// NewTimeoutError creates an error for exhausted polling
func NewTimeoutError(provider, model, message string, err error) *GatewayError {
	return &GatewayError{
		Type:     ErrorTypeTimeout,
		Message:  message,
		Provider: provider,
		Model:    model,
		Err:      err,
	}
}

// NewInvalidRequestError creates a new invalid request error (400)
func NewInvalidRequestError(message string, err error) *GatewayError {
	return &GatewayError{
		Type:       ErrorTypeInvalidRequest,
		Message:    message,
		StatusCode: http.StatusBadRequest,
		Err:        err,
	}
}

// AsGatewayError extracts a *GatewayError from an error chain.
func AsGatewayError(err error) (*GatewayError, bool) {
	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		return gwErr, true
	}
	return nil, false
}

// IsType reports whether err is a GatewayError of the given type.
func IsType(err error, t ErrorType) bool {
	gwErr, ok := AsGatewayError(err)
	return ok && gwErr.Type == t
}

// VendorMessage pulls a human-readable message out of a vendor error body.
// Falls back to the raw body when no known field is present.
func VendorMessage(body []byte) string {
	if gjson.ValidBytes(body) {
		for _, path := range []string{"error.message", "error", "message", "detail.0.msg", "detail"} {
			if v := gjson.GetBytes(body, path); v.Exists() && v.Type == gjson.String && v.String() != "" {
				return v.String()
			}
		}
	}
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		return http.StatusText(http.StatusBadGateway)
	}
	return msg
}

// ParseProviderError parses an error response from a provider and returns an appropriate GatewayError.
// 429 maps to a rate limit error; every other non-2xx status is a vendor API error.
func ParseProviderError(provider, model string, statusCode int, body []byte, originalErr error) *GatewayError {
	message := VendorMessage(body)
	if statusCode == http.StatusTooManyRequests {
		err := NewRateLimitError(provider, model, message)
		err.Err = originalErr
		return err
	}
	return NewVendorAPIError(provider, model, statusCode, message, originalErr)
}
