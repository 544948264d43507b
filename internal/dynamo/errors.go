package dynamo

import (
	"errors"
	"fmt"
)

// Domain errors for ODE integration.
var (
	// ErrIntegrationDivergence indicates the state became non-finite or the
	// integration could not terminate within its budget.
	ErrIntegrationDivergence = errors.New("dynamo: integration diverged")

	// ErrStepTooSmall indicates the adaptive step fell below the minimum.
	ErrStepTooSmall = fmt.Errorf("%w: adaptive step below minimum", ErrIntegrationDivergence)

	// ErrStepBudget indicates the step budget was exhausted.
	ErrStepBudget = fmt.Errorf("%w: step budget exhausted", ErrIntegrationDivergence)

	// ErrInvalidState indicates a state vector with NaN or Inf entries.
	ErrInvalidState = fmt.Errorf("%w: invalid state (NaN or Inf detected)", ErrIntegrationDivergence)

	// ErrDimensionMismatch indicates mismatched state and system dimensions.
	ErrDimensionMismatch = errors.New("dynamo: dimension mismatch between state and system")
)

// SimulationError wraps an error with integration context.
type SimulationError struct {
	Step    int
	Time    float64
	State   State
	Wrapped error
}

func (e *SimulationError) Error() string {
	return fmt.Sprintf("%v at step %d (t=%.6g, state=%v)", e.Wrapped, e.Step, e.Time, e.State)
}

func (e *SimulationError) Unwrap() error {
	return e.Wrapped
}
