package errors

import (
	"errors"
	"fmt"
)

// ErrorType defines different categories of errors
type ErrorType string

const (
	ErrorTypeInvalid     ErrorType = "INVALID"
	ErrorTypeNotFound    ErrorType = "NOT_FOUND"
	ErrorTypeConflict    ErrorType = "CONFLICT"
	ErrorTypeUnavailable ErrorType = "UNAVAILABLE"
	ErrorTypePublish     ErrorType = "PUBLISH"
	ErrorTypeConsume     ErrorType = "CONSUME"
	ErrorTypeInternal    ErrorType = "INTERNAL"
)

// AppError is the custom error type for the application
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

// Unwrap allows errors.Is and errors.As to work
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewInvalid creates a validation error
func NewInvalid(message string) error {
	return &AppError{Type: ErrorTypeInvalid, Message: message}
}

// NewInvalidf creates a validation error with formatting
func NewInvalidf(format string, args ...interface{}) error {
	return &AppError{Type: ErrorTypeInvalid, Message: fmt.Sprintf(format, args...)}
}

// NewNotFound creates a not found error
func NewNotFound(message string) error {
	return &AppError{Type: ErrorTypeNotFound, Message: message}
}

// NewNotFoundf creates a not found error with formatting
func NewNotFoundf(format string, args ...interface{}) error {
	return &AppError{Type: ErrorTypeNotFound, Message: fmt.Sprintf(format, args...)}
}

// NewConflict creates a uniqueness conflict error
func NewConflict(message string) error {
	return &AppError{Type: ErrorTypeConflict, Message: message}
}

// NewUnavailable creates an error for a downstream store or broker being down
func NewUnavailable(message string, err error) error {
	return &AppError{Type: ErrorTypeUnavailable, Message: message, Err: err}
}

// NewPublish creates a broker publish error
func NewPublish(message string, err error) error {
	return &AppError{Type: ErrorTypePublish, Message: message, Err: err}
}

// NewConsume creates a broker consume error
func NewConsume(message string, err error) error {
	return &AppError{Type: ErrorTypeConsume, Message: message, Err: err}
}

// NewInternal creates an internal error
func NewInternal(message string, err error) error {
	return &AppError{Type: ErrorTypeInternal, Message: message, Err: err}
}

// Wrap wraps an error with additional context, preserving its type
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return &AppError{
			Type:    appErr.Type,
			Message: fmt.Sprintf("%s: %s", message, appErr.Message),
			Err:     appErr.Err,
		}
	}

	return &AppError{Type: ErrorTypeInternal, Message: message, Err: err}
}

func isType(err error, t ErrorType) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Type == t
}

// IsInvalid checks if an error is a validation error
func IsInvalid(err error) bool { return isType(err, ErrorTypeInvalid) }

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool { return isType(err, ErrorTypeNotFound) }

// IsConflict checks if an error is a uniqueness conflict
func IsConflict(err error) bool { return isType(err, ErrorTypeConflict) }

// IsUnavailable checks if an error marks a downstream dependency as down
func IsUnavailable(err error) bool { return isType(err, ErrorTypeUnavailable) }

// IsPublish checks if an error is a broker publish failure
func IsPublish(err error) bool { return isType(err, ErrorTypePublish) }

// IsConsume checks if an error is a broker consume failure
func IsConsume(err error) bool { return isType(err, ErrorTypeConsume) }

// IsInternal checks if an error is an internal error
func IsInternal(err error) bool { return isType(err, ErrorTypeInternal) }
