package reactor

import (
	"errors"
	"fmt"
)

var (
	// ErrActuatorLimitExceeded is returned when a commanded coolant
	// adjustment exceeds MaxCoolantDelta in magnitude.
	ErrActuatorLimitExceeded = errors.New("reactor: coolant adjustment exceeds actuator limit")

	// ErrInvalidConfig is returned by Reset for an unknown trajectory mode,
	// an out-of-range noise fraction or negative timing parameters.
	ErrInvalidConfig = errors.New("reactor: invalid episode configuration")

	// ErrHalted is returned by Step once the episode has halted.
	ErrHalted = errors.New("reactor: episode is halted, reset required")

	// ErrDiverged indicates the integrator failed or produced a non-finite state.
	ErrDiverged = errors.New("reactor: integration diverged")
)

// StepError reports a failed Step together with where it happened.
type StepError struct {
	Step  int
	Time  float64
	Delta float64
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (t=%.4f, delta=%+.4f): %v", e.Step, e.Time, e.Delta, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}
