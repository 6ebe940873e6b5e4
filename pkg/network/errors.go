package network

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors, one per error kind
var (
	ErrConflict          = errors.New("index conflict")
	ErrInvalidTopology   = errors.New("invalid topology")
	ErrStructural        = errors.New("structural error")
	ErrColumnMismatch    = errors.New("column mismatch")
	ErrDanglingReference = errors.New("dangling reference")
)

// NetworkError provides structured error information for network operations.
type NetworkError struct {
	Op      string      // Operation that failed (e.g., "reindex", "fuse_buses")
	Type    ElementType // Element type the operation acted on
	Indices []int       // Offending row indices (if applicable)
	Column  string      // Column name (for reference and column errors)
	Target  *ElementRef // Referenced row (for dangling references)
	Cause   error       // Underlying error
	Context string      // Additional context
}

// Error implements the error interface.
func (e *NetworkError) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.Type != "" {
		b.WriteString(" ")
		b.WriteString(string(e.Type))
	}
	if len(e.Indices) > 0 {
		fmt.Fprintf(&b, " %v", e.Indices)
	}
	if e.Column != "" {
		fmt.Fprintf(&b, " (column %s)", e.Column)
	}
	if e.Target != nil {
		fmt.Fprintf(&b, " -> %s", e.Target)
	}
	if e.Context != "" {
		fmt.Fprintf(&b, " (%s)", e.Context)
	}
	fmt.Fprintf(&b, ": %v", e.Cause)
	return b.String()
}

// Unwrap returns the underlying cause for error chain support.
func (e *NetworkError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target error matches this error or its cause.
func (e *NetworkError) Is(target error) bool {
	if target == nil {
		return false
	}
	return errors.Is(e.Cause, target)
}

// ErrorBuilder provides a fluent interface for building NetworkErrors.
type ErrorBuilder struct {
	err NetworkError
}

// NewError creates a new error builder with the given operation.
func NewError(op string) *ErrorBuilder {
	return &ErrorBuilder{err: NetworkError{Op: op}}
}

// Element sets the element type and offending indices.
func (b *ErrorBuilder) Element(et ElementType, indices ...int) *ErrorBuilder {
	b.err.Type = et
	if len(indices) > 0 {
		b.err.Indices = append([]int(nil), indices...)
	}
	return b
}

// Column sets the column name.
func (b *ErrorBuilder) Column(name string) *ErrorBuilder {
	b.err.Column = name
	return b
}

// Target sets the referenced row.
func (b *ErrorBuilder) Target(ref ElementRef) *ErrorBuilder {
	b.err.Target = &ref
	return b
}

// Context sets additional context information.
func (b *ErrorBuilder) Context(ctx string) *ErrorBuilder {
	b.err.Context = ctx
	return b
}

// Cause sets the underlying error cause.
func (b *ErrorBuilder) Cause(err error) *ErrorBuilder {
	b.err.Cause = err
	return b
}

// Build returns the constructed NetworkError.
func (b *ErrorBuilder) Build() *NetworkError {
	e := b.err
	return &e
}

// Err returns the error as an error interface.
func (b *ErrorBuilder) Err() error {
	return b.Build()
}

// Convenience functions for common error patterns

// ConflictError reports an index mapping or insert that would alias rows.
func ConflictError(op string, et ElementType, indices ...int) error {
	return NewError(op).Element(et, indices...).Cause(ErrConflict).Err()
}

// InvalidTopologyError reports a traversal query whose premise is false.
func InvalidTopologyError(op string, et ElementType, index int, context string) error {
	return NewError(op).Element(et, index).Context(context).Cause(ErrInvalidTopology).Err()
}

// StructuralError reports an operation on an index or type absent from the network.
func StructuralError(op string, et ElementType, indices ...int) error {
	return NewError(op).Element(et, indices...).Cause(ErrStructural).Err()
}

// ColumnMismatchError reports diverging column sets of one table.
func ColumnMismatchError(et ElementType, onlyLeft, onlyRight []string) *NetworkError {
	return NewError("compare").Element(et).
		Context(fmt.Sprintf("only left: %v, only right: %v", onlyLeft, onlyRight)).
		Cause(ErrColumnMismatch).Build()
}

// DanglingReferenceError describes a reference whose target row does not exist.
func DanglingReferenceError(et ElementType, index int, column string, target ElementRef) *NetworkError {
	return NewError("check_references").Element(et, index).Column(column).
		Target(target).Cause(ErrDanglingReference).Build()
}

// IsConflict returns true if the error is an index conflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsStructural returns true if the error targets an absent index or type.
func IsStructural(err error) bool {
	return errors.Is(err, ErrStructural)
}

// IsInvalidTopology returns true if a traversal premise was false.
func IsInvalidTopology(err error) bool {
	return errors.Is(err, ErrInvalidTopology)
}
