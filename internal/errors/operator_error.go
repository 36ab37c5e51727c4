// Package errors provides standardized error types for window operator
// construction and execution. It defines OperatorError for consistent error
// handling across all public APIs, with operation context, an error kind for
// distinguishing specification mistakes from bad data, and error wrapping
// support.
package errors

import (
	"errors"
	"fmt"
)

// Kind classifies an OperatorError.
type Kind int

const (
	// KindSpecification marks errors in the window/frame specification itself
	// (bad bound combinations, non-integer offset types, negative constant
	// offsets). These are detected during operator construction, before any
	// row is processed.
	KindSpecification Kind = iota
	// KindData marks errors caused by the data flowing through the operator
	// (null or negative per-row frame offsets). These abort the query during
	// processing.
	KindData
	// KindInternal marks invariant violations inside the operator. These
	// indicate a bug, not a user mistake.
	KindInternal
)

// String returns a human-readable name for the kind.
func (k Kind) String() string {
	switch k {
	case KindSpecification:
		return "specification"
	case KindData:
		return "data"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// OperatorError represents standardized errors across all window operator
// operations.
type OperatorError struct {
	Op      string // Operation name (e.g., "ResolveFrame", "GetOutput")
	Column  string // Column name if applicable
	Message string // Human-readable error description
	Kind    Kind   // Error classification
	Cause   error  // Underlying error cause
}

// Error implements the error interface.
func (e *OperatorError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("%s: %s error on column '%s': %s", e.Op, e.Kind, e.Column, e.Message)
	}
	return fmt.Sprintf("%s: %s error: %s", e.Op, e.Kind, e.Message)
}

// Unwrap returns the underlying cause for error wrapping support.
func (e *OperatorError) Unwrap() error {
	return e.Cause
}

// Is implements error equality checking for errors.Is().
func (e *OperatorError) Is(target error) bool {
	if oe, ok := target.(*OperatorError); ok {
		return e.Op == oe.Op && e.Column == oe.Column && e.Kind == oe.Kind && e.Message == oe.Message
	}
	return false
}

// IsSpecification reports whether err is, or wraps, an OperatorError of kind
// KindSpecification.
func IsSpecification(err error) bool {
	var oe *OperatorError
	return errors.As(err, &oe) && oe.Kind == KindSpecification
}

// IsData reports whether err is, or wraps, an OperatorError of kind KindData.
func IsData(err error) bool {
	var oe *OperatorError
	return errors.As(err, &oe) && oe.Kind == KindData
}

// Common error constructors for consistent error creation

// NewSpecificationError creates an error for invalid window or frame
// specifications.
func NewSpecificationError(op, message string) *OperatorError {
	return &OperatorError{
		Op:      op,
		Message: message,
		Kind:    KindSpecification,
	}
}

// NewColumnNotFoundError creates an error for references to non-existent
// columns.
func NewColumnNotFoundError(op, column string) *OperatorError {
	return &OperatorError{
		Op:      op,
		Column:  column,
		Message: "column does not exist",
		Kind:    KindSpecification,
	}
}

// NewUnsupportedTypeError creates an error for unsupported data types.
func NewUnsupportedTypeError(op, typeName string) *OperatorError {
	return &OperatorError{
		Op:      op,
		Message: fmt.Sprintf("unsupported type: %s", typeName),
		Kind:    KindSpecification,
	}
}

// NewDataError creates an error for invalid values encountered while
// processing rows.
func NewDataError(op, column, message string) *OperatorError {
	return &OperatorError{
		Op:      op,
		Column:  column,
		Message: message,
		Kind:    KindData,
	}
}

// NewInternalError creates an error for internal operation failures.
func NewInternalError(op string, cause error) *OperatorError {
	return &OperatorError{
		Op:      op,
		Message: "internal error occurred",
		Kind:    KindInternal,
		Cause:   cause,
	}
}

// Predefined error variables for common cases
var (
	// ErrEmptyBatch indicates operations on batches with no rows or columns.
	ErrEmptyBatch = &OperatorError{
		Op:      "validation",
		Message: "operation not supported on empty batch",
		Kind:    KindSpecification,
	}

	// ErrMismatchedLength indicates column length mismatches in a batch.
	ErrMismatchedLength = &OperatorError{
		Op:      "validation",
		Message: "columns must have the same length",
		Kind:    KindSpecification,
	}
)
