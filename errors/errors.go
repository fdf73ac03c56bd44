package errors

import (
	"errors"
	"fmt"
)

// Core error definitions for the login security package.
// These errors provide specific context for different failure scenarios

// Login attempt errors
var (
	// ErrAttemptNotFound indicates the requested login attempt was not found
	ErrAttemptNotFound = errors.New("login attempt not found")

	// ErrInvalidAttempt indicates a login attempt is missing required data
	ErrInvalidAttempt = errors.New("invalid login attempt")

	// ErrInvalidIPAddress indicates the provided IP address could not be parsed
	ErrInvalidIPAddress = errors.New("invalid IP address")
)

// Risk analysis errors
var (
	// ErrSummaryNotFound indicates no risk summary exists for the user
	ErrSummaryNotFound = errors.New("risk summary not found")

	// ErrHistoryUnavailable indicates login history could not be loaded
	ErrHistoryUnavailable = errors.New("login history unavailable")

	// ErrInvalidRiskLevel indicates an unknown risk level value
	ErrInvalidRiskLevel = errors.New("invalid risk level")
)

// Validation-related errors
var (
	// ErrValidationFailed indicates general validation failure
	ErrValidationFailed = errors.New("validation failed")

	// ErrRequiredFieldMissing indicates a required field is missing
	ErrRequiredFieldMissing = errors.New("required field is missing")

	// ErrFieldTooLong indicates a field exceeds maximum length
	ErrFieldTooLong = errors.New("field exceeds maximum length")
)

// Service-level errors
var (
	// ErrServiceUnavailable indicates the service is temporarily unavailable
	ErrServiceUnavailable = errors.New("service temporarily unavailable")

	// ErrConfigurationError indicates a configuration error
	ErrConfigurationError = errors.New("configuration error")
)

// Repository and storage errors
var (
	// ErrRepositoryFailure indicates a repository operation failed
	ErrRepositoryFailure = errors.New("repository operation failed")

	// ErrDatabaseConnection indicates database connection failed
	ErrDatabaseConnection = errors.New("database connection failed")

	// ErrCacheMiss indicates a cache miss occurred
	ErrCacheMiss = errors.New("cache miss")

	// ErrCacheFailure indicates a cache operation failed
	ErrCacheFailure = errors.New("cache operation failed")
)

// ErrorCode represents standardized error codes for API responses
type ErrorCode string

const (
	// Login attempt error codes
	CodeAttemptNotFound  ErrorCode = "ATTEMPT_NOT_FOUND"
	CodeInvalidAttempt   ErrorCode = "INVALID_ATTEMPT"
	CodeInvalidIPAddress ErrorCode = "INVALID_IP_ADDRESS"

	// Risk analysis error codes
	CodeSummaryNotFound    ErrorCode = "SUMMARY_NOT_FOUND"
	CodeHistoryUnavailable ErrorCode = "HISTORY_UNAVAILABLE"
	CodeInvalidRiskLevel   ErrorCode = "INVALID_RISK_LEVEL"

	// Validation error codes
	CodeValidationFailed     ErrorCode = "VALIDATION_FAILED"
	CodeRequiredFieldMissing ErrorCode = "REQUIRED_FIELD_MISSING"
	CodeFieldTooLong         ErrorCode = "FIELD_TOO_LONG"

	// System error codes
	CodeInternalError      ErrorCode = "INTERNAL_ERROR"
	CodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	CodeConfigurationError ErrorCode = "CONFIGURATION_ERROR"
)

// AppError represents a structured application error with context
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
	Cause   error     `json:"-"` // Don't serialize the underlying error
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for error wrapping
func (e *AppError) Unwrap() error {
	return e.Cause
}

// NewAppErrorWithCause creates a new AppError with an underlying cause
func NewAppErrorWithCause(code ErrorCode, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Helper functions to create common errors with proper codes

// NewSummaryNotFoundError creates a risk summary not found error
func NewSummaryNotFoundError(userID string) *AppError {
	return &AppError{
		Code:    CodeSummaryNotFound,
		Message: "Risk summary not found",
		Details: fmt.Sprintf("User ID: %s", userID),
		Cause:   ErrSummaryNotFound,
	}
}

// NewValidationError creates a validation error
func NewValidationError(field, reason string) *AppError {
	return &AppError{
		Code:    CodeValidationFailed,
		Message: "Validation failed",
		Details: fmt.Sprintf("Field: %s, Reason: %s", field, reason),
		Cause:   ErrValidationFailed,
	}
}

// NewRequiredFieldError creates a required field missing error
func NewRequiredFieldError(field string) *AppError {
	return &AppError{
		Code:    CodeRequiredFieldMissing,
		Message: "Required field is missing",
		Details: fmt.Sprintf("Field: %s", field),
		Cause:   ErrRequiredFieldMissing,
	}
}

// NewFieldTooLongError creates a field length error
func NewFieldTooLongError(field string, maxLength int) *AppError {
	return &AppError{
		Code:    CodeFieldTooLong,
		Message: "Field exceeds maximum length",
		Details: fmt.Sprintf("Field: %s, Max: %d characters", field, maxLength),
		Cause:   ErrFieldTooLong,
	}
}

// NewServiceUnavailableError reports a backing store that cannot serve requests
func NewServiceUnavailableError(resource string, cause error) *AppError {
	return &AppError{
		Code:    CodeServiceUnavailable,
		Message: "Service temporarily unavailable",
		Details: fmt.Sprintf("Resource: %s", resource),
		Cause:   fmt.Errorf("%w: %w", ErrServiceUnavailable, cause),
	}
}

// NewConfigurationError creates a configuration error for an invalid setting
func NewConfigurationError(setting, reason string) *AppError {
	return &AppError{
		Code:    CodeConfigurationError,
		Message: "Invalid configuration",
		Details: fmt.Sprintf("Setting: %s, Reason: %s", setting, reason),
		Cause:   ErrConfigurationError,
	}
}

// NewInvalidIPAddressError creates an invalid IP address error
func NewInvalidIPAddressError(ip string) *AppError {
	return &AppError{
		Code:    CodeInvalidIPAddress,
		Message: "Invalid IP address",
		Details: fmt.Sprintf("IP: %s", ip),
		Cause:   ErrInvalidIPAddress,
	}
}

// NewHistoryUnavailableError wraps a failed history query
func NewHistoryUnavailableError(cause error) *AppError {
	return &AppError{
		Code:    CodeHistoryUnavailable,
		Message: "Login history unavailable",
		Cause:   fmt.Errorf("%w: %w", ErrHistoryUnavailable, cause),
	}
}

// IsErrorType checks if an error is of a specific type
func IsErrorType(err error, target error) bool {
	return errors.Is(err, target)
}

// GetErrorCode extracts the error code from an error
func GetErrorCode(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternalError
}
