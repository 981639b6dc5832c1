package dynamo

import (
	"errors"
	"fmt"
)

// Domain errors for integration runs.
var (
	// ErrInvalidConfig indicates a malformed tolerance or run setting.
	ErrInvalidConfig = errors.New("dynamo: invalid configuration")

	// ErrInvalidTableau indicates inconsistent Butcher tableau shapes or an implicit entry.
	ErrInvalidTableau = errors.New("dynamo: invalid butcher tableau")

	// ErrInvalidState indicates a state vector containing NaN or Inf.
	ErrInvalidState = errors.New("dynamo: invalid state (NaN or Inf detected)")

	// ErrStepTooSmall indicates the adaptive timestep shrank below the usable minimum.
	ErrStepTooSmall = errors.New("dynamo: adaptive timestep below minimum")

	// ErrMaxRetries indicates too many consecutive rejected attempts for one step.
	ErrMaxRetries = errors.New("dynamo: maximum step retries exceeded")

	// ErrDimensionMismatch indicates f returned a vector of the wrong dimension.
	ErrDimensionMismatch = errors.New("dynamo: dimension mismatch between state and derivative")
)

// SimulationError wraps an error with the position of the run where it happened.
type SimulationError struct {
	Step    int
	Time    float64
	Dt      float64
	State   State
	Wrapped error
}

func (e *SimulationError) Error() string {
	return fmt.Sprintf("step %d (t=%.6g, dt=%.3g): %v", e.Step, e.Time, e.Dt, e.Wrapped)
}

func (e *SimulationError) Unwrap() error {
	return e.Wrapped
}

func invalidConfig(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}
