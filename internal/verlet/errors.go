package verlet

import (
	"errors"
	"fmt"
)

// Domain errors for simulation operations.
var (
	// ErrInvalidTimestep indicates a negative or non-finite dt.
	ErrInvalidTimestep = errors.New("verlet: invalid timestep (negative, NaN or Inf)")

	// ErrCapacityExceeded indicates a spawn at MaxParticles under the reject policy.
	ErrCapacityExceeded = errors.New("verlet: particle capacity exceeded")

	// ErrInvalidParticle indicates a spawn request with a bad radius or position.
	ErrInvalidParticle = errors.New("verlet: invalid particle")

	// ErrInvalidConfig indicates a System configuration outside valid bounds.
	ErrInvalidConfig = errors.New("verlet: invalid configuration")

	// ErrNonFinite indicates a particle position became NaN or Inf.
	ErrNonFinite = errors.New("verlet: non-finite particle state")
)

// StepError wraps an error with simulation context.
type StepError struct {
	Step    int
	Dt      float64
	Wrapped error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (dt=%g): %v", e.Step, e.Dt, e.Wrapped)
}

func (e *StepError) Unwrap() error {
	return e.Wrapped
}
