package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents different types of errors in the system
type ErrorType string

const (
	// ErrorTypeNotFound indicates a resource was not found
	ErrorTypeNotFound ErrorType = "NOT_FOUND"

	// ErrorTypeValidation indicates a validation error
	ErrorTypeValidation ErrorType = "VALIDATION"

	// ErrorTypeConflict indicates a conflict with existing data
	ErrorTypeConflict ErrorType = "CONFLICT"

	// ErrorTypeInternal indicates an internal server error
	ErrorTypeInternal ErrorType = "INTERNAL"

	// ErrorTypeExternal indicates an error from external service
	ErrorTypeExternal ErrorType = "EXTERNAL"

	// ErrorTypeTransient indicates a retryable network or upstream failure
	ErrorTypeTransient ErrorType = "TRANSIENT"

	// ErrorTypeRateLimited indicates the upstream rejected the call with 429 or 504
	ErrorTypeRateLimited ErrorType = "RATE_LIMITED"

	// ErrorTypeSegmentExhausted indicates a query segment used up its attempts
	ErrorTypeSegmentExhausted ErrorType = "SEGMENT_EXHAUSTED"

	// ErrorTypeWriteFailed indicates a single facility record could not be persisted
	ErrorTypeWriteFailed ErrorType = "WRITE_FAILED"

	// ErrorTypeUnavailable indicates a backing store cannot be reached at all
	ErrorTypeUnavailable ErrorType = "UNAVAILABLE"
)

// AppError represents an application error
type AppError struct {
	Type    ErrorType
	Message string
	Err     error
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements the unwrap interface
func (e *AppError) Unwrap() error {
	return e.Err
}

// IsType reports whether err, or anything it wraps, is an AppError of type t.
func IsType(err error, t ErrorType) bool {
	var appErr *AppError
	for err != nil {
		if !errors.As(err, &appErr) {
			return false
		}
		if appErr.Type == t {
			return true
		}
		err = appErr.Err
	}
	return false
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeNotFound,
		Message: message,
	}
}

// NewValidationError creates a new validation error
func NewValidationError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeValidation,
		Message: message,
	}
}

// NewConflictError creates a new conflict error
func NewConflictError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeConflict,
		Message: message,
		Err:     err,
	}
}

// NewInternalError creates a new internal error
func NewInternalError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeInternal,
		Message: message,
		Err:     err,
	}
}

// NewExternalError creates a new external service error
func NewExternalError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeExternal,
		Message: message,
		Err:     err,
	}
}

// NewTransientError marks a failure that should be retried against the same endpoint
func NewTransientError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeTransient,
		Message: message,
		Err:     err,
	}
}

// NewRateLimitedError marks a failure that should rotate to another endpoint
func NewRateLimitedError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeRateLimited,
		Message: message,
		Err:     err,
	}
}

// NewSegmentExhaustedError is returned once a segment has no attempts left
func NewSegmentExhaustedError(segmentKey string, attempts int, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeSegmentExhausted,
		Message: fmt.Sprintf("segment %s failed after %d attempts", segmentKey, attempts),
		Err:     err,
	}
}

// NewWriteFailedError wraps a per-record persistence failure
func NewWriteFailedError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeWriteFailed,
		Message: message,
		Err:     err,
	}
}

// NewUnavailableError marks a store that cannot be reached
func NewUnavailableError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeUnavailable,
		Message: message,
		Err:     err,
	}
}
