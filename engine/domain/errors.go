package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for validation and pipeline failures.
var (
	ErrMissingField      = errors.New("missing required field")
	ErrInvalidInteger    = errors.New("invalid integer")
	ErrMissingColumn     = errors.New("missing required column")
	ErrEmptyQuery        = errors.New("empty query")
	ErrMalformedResponse = errors.New("malformed assessment response")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	ErrLengthMismatch    = errors.New("embedding count does not match input count")
)

// ValidationError wraps a sentinel with context.
type ValidationError struct {
	Field   string
	Value   string
	Wrapped error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s (value=%q)", e.Wrapped, e.Field, e.Value)
}

func (e *ValidationError) Unwrap() error { return e.Wrapped }

// NewValidationError creates a ValidationError.
func NewValidationError(field, value string, wrapped error) *ValidationError {
	return &ValidationError{Field: field, Value: value, Wrapped: wrapped}
}

// RowError locates a failure in a tabular input. Line is 1-based and counts
// the header.
type RowError struct {
	Line int
	Err  error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }
