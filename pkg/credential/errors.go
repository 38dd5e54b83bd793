package credential

import (
	"errors"
	"fmt"
)

// Error codes surfaced by this package.
const (
	// ErrCodeSchemaValidation indicates claims do not satisfy the schema.
	ErrCodeSchemaValidation = "SCHEMA_VALIDATION_FAILED"

	// ErrCodeSchemaExists indicates an attempt to re-register a schema.
	ErrCodeSchemaExists = "SCHEMA_EXISTS"

	// ErrCodeUnauthorized indicates the wrong actor attempted an operation.
	ErrCodeUnauthorized = "UNAUTHORIZED"

	// ErrCodeNotFound indicates an unknown credential or schema id.
	ErrCodeNotFound = "NOT_FOUND"
)

// Error is a coded credential error.
type Error struct {
	Code    string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches errors by code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// NewError creates a coded error.
func NewError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Sentinel errors for errors.Is checks.
var (
	ErrSchemaExists = NewError(ErrCodeSchemaExists, "schema already registered")
	ErrUnauthorized = NewError(ErrCodeUnauthorized, "actor is not authorized")
	ErrNotFound     = NewError(ErrCodeNotFound, "not found")
)

// SchemaValidationError reports the first offending property found while
// validating claims against a schema.
type SchemaValidationError struct {
	Property string
	Reason   string
}

// Error implements the error interface.
func (e *SchemaValidationError) Error() string {
	return fmt.Sprintf("%s: property %q %s", ErrCodeSchemaValidation, e.Property, e.Reason)
}

// Is matches any other SchemaValidationError.
func (e *SchemaValidationError) Is(target error) bool {
	var t *SchemaValidationError
	return errors.As(target, &t)
}
