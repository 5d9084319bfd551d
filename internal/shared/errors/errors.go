package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error types for different domains
type ErrorType string

const (
	ErrorTypeValidation      ErrorType = "VALIDATION_ERROR"
	ErrorTypeNotFound        ErrorType = "NOT_FOUND_ERROR"
	ErrorTypePayloadTooLarge ErrorType = "PAYLOAD_TOO_LARGE_ERROR"
	ErrorTypeRateLimited     ErrorType = "RATE_LIMITED_ERROR"
)

// Common application errors
var (
	ErrInvalidJSON   = errors.New("invalid JSON body")
	ErrBodyTooLarge  = errors.New("request body too large")
	ErrTooManyParams = errors.New("too many parameters")
)

// AppError represents a custom application error with context
type AppError struct {
	Type     ErrorType `json:"type"`
	Message  string    `json:"message"`
	HTTPCode int       `json:"-"`
	Cause    error     `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// NewAppError creates a new application error
func NewAppError(errorType ErrorType, message string, httpCode int) *AppError {
	return &AppError{
		Type:     errorType,
		Message:  message,
		HTTPCode: httpCode,
	}
}

// WithCause adds the underlying cause
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// Common error constructors

// NewValidationError creates a validation error
func NewValidationError(message string) *AppError {
	return NewAppError(ErrorTypeValidation, message, http.StatusBadRequest)
}

// NewNotFoundError creates a not found error
func NewNotFoundError(message string) *AppError {
	return NewAppError(ErrorTypeNotFound, message, http.StatusNotFound)
}

// NewPayloadTooLargeError creates a 413 error
func NewPayloadTooLargeError(message string) *AppError {
	return NewAppError(ErrorTypePayloadTooLarge, message, http.StatusRequestEntityTooLarge)
}

// NewRateLimitError creates a 429 error
func NewRateLimitError(message string) *AppError {
	return NewAppError(ErrorTypeRateLimited, message, http.StatusTooManyRequests)
}

// AsAppError finds the first AppError in err's chain
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsClientError reports whether err carries a 4xx status that may be shown to the caller
func IsClientError(err error) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.HTTPCode >= 400 && appErr.HTTPCode < 500
}
