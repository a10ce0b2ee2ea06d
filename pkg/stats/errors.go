package stats

import (
	"errors"
	"fmt"
)

// Error kinds returned by the interval solver. Use errors.Is to test for them.
var (
	ErrInvalidCount      = errors.New("invalid_count")
	ErrInvalidBackground = errors.New("invalid_background")
	ErrInvalidConfidence = errors.New("invalid_confidence")
	ErrConvergence       = errors.New("convergence_failure")

	ErrShapeMismatch = errors.New("shape_mismatch")
	ErrInvalidArray  = errors.New("invalid_array")
)

// InputError reports a rejected argument before any numeric work was done.
type InputError struct {
	Kind  error
	Param string
	Value float64
	// Reason overrides the default explanation for Kind.
	Reason string
}

func (e *InputError) Error() string {
	reason := e.Reason
	switch {
	case reason != "":
	case e.Kind == ErrInvalidCount:
		reason = "must be a nonnegative integer"
	case e.Kind == ErrInvalidBackground:
		reason = "must be nonnegative"
	case e.Kind == ErrInvalidConfidence:
		reason = "must be between 0 and 1, noninclusive"
	}
	return fmt.Sprintf("%s: %s=%g %s", e.Kind, e.Param, e.Value, reason)
}

func (e *InputError) Unwrap() error { return e.Kind }

// ConvergenceError is returned when the search gives up before enclosing CL.
type ConvergenceError struct {
	N, B, CL   float64
	Iterations int
	Conf       float64
	Reason     string
}

func (e *ConvergenceError) Error() string {
	return fmt.Sprintf("%s: N=%g B=%g CL=%g after %d iterations (conf=%.6g): %s",
		ErrConvergence, e.N, e.B, e.CL, e.Iterations, e.Conf, e.Reason)
}

func (e *ConvergenceError) Unwrap() error { return ErrConvergence }

// ElementError identifies the broadcast element whose solve failed.
type ElementError struct {
	Index []int
	Err   error
}

func (e *ElementError) Error() string {
	return fmt.Sprintf("element %v: %v", e.Index, e.Err)
}

func (e *ElementError) Unwrap() error { return e.Err }
