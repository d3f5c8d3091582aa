package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType represents different types of errors in the system
type ErrorType string

const (
	// ErrorTypeNotFound indicates a lookup found no entry for the key
	ErrorTypeNotFound ErrorType = "NOT_FOUND"

	// ErrorTypeValidation indicates invalid configuration or arguments
	ErrorTypeValidation ErrorType = "VALIDATION"

	// ErrorTypeMalformedInput indicates input that could not be parsed (URL, IP, query)
	ErrorTypeMalformedInput ErrorType = "MALFORMED_INPUT"

	// ErrorTypeUnavailable indicates a lookup service or transport could not be reached
	ErrorTypeUnavailable ErrorType = "UNAVAILABLE"

	// ErrorTypePayload indicates a response body that is missing or has the wrong shape
	ErrorTypePayload ErrorType = "PAYLOAD"

	// ErrorTypeInternal indicates an internal error
	ErrorTypeInternal ErrorType = "INTERNAL"

	// ErrorTypeExternal indicates an error status returned by an external service
	ErrorTypeExternal ErrorType = "EXTERNAL"
)

// AppError represents an application error
type AppError struct {
	Type       ErrorType
	Message    string
	StatusCode int
	Err        error
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

// NewNotFoundError creates a new not found error
func NewNotFoundError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeNotFound,
		Message: message,
	}
}

// NewValidationError creates a new validation error
func NewValidationError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeValidation,
		Message: message,
		Err:     err,
	}
}

// NewMalformedInputError creates a new malformed input error
func NewMalformedInputError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeMalformedInput,
		Message: message,
		Err:     err,
	}
}

// NewUnavailableError creates a new service unavailable error
func NewUnavailableError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeUnavailable,
		Message: message,
		Err:     err,
	}
}

// NewPayloadError creates a new payload error
func NewPayloadError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypePayload,
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

// NewExternalError creates a new external service error carrying the HTTP status
func NewExternalError(message string, statusCode int, err error) *AppError {
	return &AppError{
		Type:       ErrorTypeExternal,
		Message:    message,
		StatusCode: statusCode,
		Err:        err,
	}
}

// TypeOf returns the type of the first AppError in err's chain, or "" if there is none.
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Type
	}
	return ""
}

// IsType reports whether err's tree contains an AppError of the given type.
// Joined and wrapped errors are searched member by member.
func IsType(err error, errType ErrorType) bool {
	if err == nil {
		return false
	}
	if appErr, ok := err.(*AppError); ok {
		if appErr.Type == errType {
			return true
		}
		return IsType(appErr.Err, errType)
	}
	switch u := err.(type) {
	case interface{ Unwrap() []error }:
		for _, inner := range u.Unwrap() {
			if IsType(inner, errType) {
				return true
			}
		}
	case interface{ Unwrap() error }:
		return IsType(u.Unwrap(), errType)
	}
	return false
}
