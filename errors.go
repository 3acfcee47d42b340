package fabrica

import (
	"errors"
	"fmt"
)

// Standard sentinel errors for statement construction and execution.
var (
	// ErrUnsupportedFeature is returned when a statement requests behavior
	// the target dialect does not provide.
	ErrUnsupportedFeature = errors.New("fabrica: feature not supported by dialect")

	// ErrInternal is returned when a structural invariant of the statement
	// graph is violated. It always indicates a bug in the calling layer.
	ErrInternal = errors.New("fabrica: internal error")
)

// UnsupportedFeatureError reports a user-facing configuration or capability
// failure, such as a right outer join on a dialect without one, or an unknown
// table-naming strategy.
type UnsupportedFeatureError struct {
	dialect string
	feature string
}

// Error returns the error string.
func (e *UnsupportedFeatureError) Error() string {
	if e.dialect != "" {
		return fmt.Sprintf("fabrica: %s not supported by dialect %q", e.feature, e.dialect)
	}
	return fmt.Sprintf("fabrica: %s not supported", e.feature)
}

// Is reports whether the target error matches UnsupportedFeatureError.
// This allows errors.Is(err, ErrUnsupportedFeature) to return true.
func (e *UnsupportedFeatureError) Is(err error) bool {
	return err == ErrUnsupportedFeature
}

// Dialect returns the dialect that rejected the feature, if known.
func (e *UnsupportedFeatureError) Dialect() string {
	return e.dialect
}

// Feature returns a description of the rejected feature.
func (e *UnsupportedFeatureError) Feature() string {
	return e.feature
}

// NewUnsupportedFeatureError returns a new UnsupportedFeatureError for the
// given dialect and feature description.
func NewUnsupportedFeatureError(dialect, feature string) *UnsupportedFeatureError {
	return &UnsupportedFeatureError{dialect: dialect, feature: feature}
}

// IsUnsupportedFeature returns true if the error is an UnsupportedFeatureError.
func IsUnsupportedFeature(err error) bool {
	if err == nil {
		return false
	}
	var e *UnsupportedFeatureError
	return errors.As(err, &e) || errors.Is(err, ErrUnsupportedFeature)
}

// InternalError reports a violated structural invariant: a join key arity
// mismatch, a duplicate sub-join, a mutation against a statement with no
// table index, and similar conditions that cannot be produced by well-formed
// callers.
type InternalError struct {
	op     string
	reason string
}

// Error returns the error string.
func (e *InternalError) Error() string {
	if e.op != "" {
		return fmt.Sprintf("fabrica: internal error in %s: %s", e.op, e.reason)
	}
	return fmt.Sprintf("fabrica: internal error: %s", e.reason)
}

// Is reports whether the target error matches InternalError.
// This allows errors.Is(err, ErrInternal) to return true.
func (e *InternalError) Is(err error) bool {
	return err == ErrInternal
}

// Op returns the operation that detected the violation.
func (e *InternalError) Op() string {
	return e.op
}

// Reason returns a description of the violated invariant.
func (e *InternalError) Reason() string {
	return e.reason
}

// NewInternalError returns a new InternalError for the given operation.
func NewInternalError(op, reason string) *InternalError {
	return &InternalError{op: op, reason: reason}
}

// IsInternal returns true if the error is an InternalError.
func IsInternal(err error) bool {
	if err == nil {
		return false
	}
	var e *InternalError
	return errors.As(err, &e) || errors.Is(err, ErrInternal)
}

// ConstraintError represents a database constraint violation surfaced while
// executing a rendered statement.
type ConstraintError struct {
	name string
	wrap error
}

// Error returns the error string.
func (e *ConstraintError) Error() string {
	if e.name != "" {
		return fmt.Sprintf("fabrica: constraint %q failed: %v", e.name, e.wrap)
	}
	return fmt.Sprintf("fabrica: constraint failed: %v", e.wrap)
}

// Unwrap returns the underlying driver error.
func (e *ConstraintError) Unwrap() error {
	return e.wrap
}

// Name returns the violated constraint name, if the driver reported one.
func (e *ConstraintError) Name() string {
	return e.name
}

// NewConstraintError returns a new ConstraintError wrapping a driver error.
func NewConstraintError(name string, wrap error) *ConstraintError {
	return &ConstraintError{name: name, wrap: wrap}
}

// IsConstraintError returns true if the error is a ConstraintError.
func IsConstraintError(err error) bool {
	if err == nil {
		return false
	}
	var e *ConstraintError
	return errors.As(err, &e)
}
