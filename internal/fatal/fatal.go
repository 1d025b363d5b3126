// Package fatal implements the fault taxonomy of the numeric core.
//
// Violated preconditions in the matrix engine, the dispatch layer and the
// component graph are not recoverable: the numeric state of the run is already
// unsound. They are raised with panic(*Error) at the call site that detected
// them, carrying the operation name and the offending values. Callers that
// need to contain a fault (tests, the CLI) recover the value and match it
// with errors.Is against the sentinel kinds below.
package fatal

import (
	"errors"
	"fmt"
)

// Fault kinds.
var (
	ErrShapeMismatch   = errors.New("shape mismatch")
	ErrContiguity      = errors.New("contiguity violation")
	ErrNonFinite       = errors.New("non-finite value")
	ErrAllocation      = errors.New("allocation failure")
	ErrTypeMismatch    = errors.New("type mismatch")
	ErrUsage           = errors.New("usage error")
	ErrDevice          = errors.New("device failure")
	ErrInvalidArgument = errors.New("invalid argument")
)

// Error is the value carried by a fatal panic.
type Error struct {
	Op     string // Operation that detected the fault (e.g. "matrix.Gemm")
	Kind   error  // One of the Err* sentinels
	Detail string // Expected vs actual values
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Detail)
}

// Unwrap returns the fault kind so errors.Is matches sentinels.
func (e *Error) Unwrap() error {
	return e.Kind
}

// Raise panics with a fatal error of the given kind.
func Raise(op string, kind error, format string, args ...any) {
	panic(&Error{Op: op, Kind: kind, Detail: fmt.Sprintf(format, args...)})
}

// Shape raises ErrShapeMismatch reporting expected vs actual.
func Shape(op string, expected, actual any) {
	Raise(op, ErrShapeMismatch, "expected %v, got %v", expected, actual)
}

// Contiguity raises ErrContiguity naming the requirement.
func Contiguity(op, what string) {
	Raise(op, ErrContiguity, "%s must be simple (contiguous)", what)
}

// NonFinite raises ErrNonFinite.
func NonFinite(op, what string) {
	Raise(op, ErrNonFinite, "no finite numbers at %s", what)
}

// Usage raises ErrUsage.
func Usage(op, format string, args ...any) {
	Raise(op, ErrUsage, format, args...)
}

// Recover converts a fatal panic into an error. It is meant to be deferred by
// the outermost caller of a run:
//
//	defer fatal.Recover(&err)
//
// Panics that do not carry an *Error are re-raised.
func Recover(errp *error) {
	r := recover()
	if r == nil {
		return
	}
	if fe, ok := r.(*Error); ok {
		*errp = fe
		return
	}
	panic(r)
}
