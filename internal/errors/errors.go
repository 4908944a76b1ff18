package errors

import (
	"fmt"
)

// TreedexError is the structured error type for Treedex.
// It provides rich context for error handling, logging, and user presentation.
type TreedexError struct {
	// Code is the unique error code (e.g., "ERR_101_DUPLICATE_CATALOG_TYPE").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Schema, Storage, Query, Internal).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error
}

// Error implements the error interface.
func (e *TreedexError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *TreedexError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with TreedexError.
func (e *TreedexError) Is(target error) bool {
	if t, ok := target.(*TreedexError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *TreedexError) WithDetail(key, value string) *TreedexError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// New creates a new TreedexError with the given code and message.
// Category and severity are derived from the code.
func New(code string, message string, cause error) *TreedexError {
	return &TreedexError{
		Code:     code,
		Message:  message,
		Category: categoryFromCode(code),
		Severity: severityFromCode(code),
		Cause:    cause,
	}
}

// Newf creates a new TreedexError with a formatted message.
func Newf(code string, format string, args ...any) *TreedexError {
	return New(code, fmt.Sprintf(format, args...), nil)
}

// Wrap creates a TreedexError from an existing error.
// The error's message becomes the TreedexError message.
func Wrap(code string, err error) *TreedexError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// SchemaError creates a schema/registration error.
func SchemaError(message string, cause error) *TreedexError {
	return New(ErrCodeInvalidIndexSpec, message, cause)
}

// StorageError creates a persistence-layer error.
func StorageError(message string, cause error) *TreedexError {
	return New(ErrCodeStoreOpen, message, cause)
}

// QueryError creates a query construction error.
func QueryError(message string, cause error) *TreedexError {
	return New(ErrCodeInvalidQuery, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *TreedexError {
	return New(ErrCodeInternal, message, cause)
}

// IsFatal checks if an error has fatal severity.
// Fatal errors should abort the current operation.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if te, ok := err.(*TreedexError); ok {
		return te.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from a TreedexError.
// Returns empty string if not a TreedexError.
func GetCode(err error) string {
	if te, ok := err.(*TreedexError); ok {
		return te.Code
	}
	return ""
}

// GetCategory extracts the category from a TreedexError.
// Returns empty string if not a TreedexError.
func GetCategory(err error) Category {
	if te, ok := err.(*TreedexError); ok {
		return te.Category
	}
	return ""
}
