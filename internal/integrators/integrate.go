package integrators

import (
	"errors"
	"fmt"
	"math"

	"github.com/san-kum/cstrsim/internal/dynamo"
)

// Options bound the step sizes used by Integrate.
type Options struct {
	// Tolerance is the relative local error target for adaptive integrators.
	Tolerance float64
	// InitialDt is the first trial step of an adaptive integration.
	InitialDt float64
	MinDt     float64
	// MaxDt caps adaptive steps and sets the step of fixed-step integrators.
	MaxDt float64
}

func DefaultOptions() Options {
	return Options{
		Tolerance: 1e-8,
		InitialDt: 0.01,
		MinDt:     1e-10,
		MaxDt:     0.05,
	}
}

// Integrate advances x from t0 to t1 holding the control u constant. Adaptive
// integrators are driven with step rejection; fixed-step integrators take the
// smallest number of equal steps not exceeding opts.MaxDt.
func Integrate(integ dynamo.Integrator, dyn dynamo.System, x0 dynamo.State, u dynamo.Control, t0, t1 float64, opts Options) (dynamo.State, error) {
	span := t1 - t0
	if !(span > 0) {
		return nil, fmt.Errorf("%w: [%g, %g]", dynamo.ErrInvalidSpan, t0, t1)
	}
	if len(x0) != dyn.StateDim() {
		return nil, fmt.Errorf("%w: state has %d components, system expects %d",
			dynamo.ErrDimensionMismatch, len(x0), dyn.StateDim())
	}
	if opts.MaxDt <= 0 {
		opts.MaxDt = span
	}

	if adaptive, ok := integ.(dynamo.AdaptiveIntegrator); ok {
		return integrateAdaptive(adaptive, dyn, x0, u, t0, t1, opts)
	}

	steps := int(math.Ceil(span / opts.MaxDt))
	dt := span / float64(steps)
	x := x0.Clone()
	for i := 0; i < steps; i++ {
		t := t0 + float64(i)*dt
		x = integ.Step(dyn, x, u, t, dt)
		if !x.IsValid() {
			return nil, &dynamo.IntegrationError{Time: t, Dt: dt, State: x, Wrapped: dynamo.ErrInvalidState}
		}
	}
	return x, nil
}

func integrateAdaptive(integ dynamo.AdaptiveIntegrator, dyn dynamo.System, x0 dynamo.State, u dynamo.Control, t0, t1 float64, opts Options) (dynamo.State, error) {
	tol := opts.Tolerance
	if tol <= 0 {
		tol = DefaultOptions().Tolerance
	}
	dt := opts.InitialDt
	if dt <= 0 || dt > opts.MaxDt {
		dt = opts.MaxDt
	}

	x := x0.Clone()
	t := t0
	eps := 1e-12 * math.Max(1, math.Abs(t1))
	for t1-t > eps {
		if t+dt > t1 {
			dt = t1 - t
		}

		next, proposed, err := integ.StepAdaptive(dyn, x, u, t, dt, tol)
		if err != nil {
			if !errors.Is(err, errStepRejected) {
				return nil, &dynamo.IntegrationError{Time: t, Dt: dt, State: x, Wrapped: err}
			}
			if proposed < opts.MinDt {
				return nil, &dynamo.IntegrationError{Time: t, Dt: proposed, State: x, Wrapped: dynamo.ErrStepTooSmall}
			}
			dt = proposed
			continue
		}
		if !next.IsValid() {
			return nil, &dynamo.IntegrationError{Time: t, Dt: dt, State: next, Wrapped: dynamo.ErrInvalidState}
		}

		x = next
		t += dt
		dt = math.Min(proposed, opts.MaxDt)
	}
	return x, nil
}
