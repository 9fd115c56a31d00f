package reactor

import (
	"fmt"
	"math"

	"github.com/san-kum/cstrsim/internal/dynamo"
	"github.com/san-kum/cstrsim/internal/integrators"
	"github.com/san-kum/cstrsim/internal/physics"
)

// Solver advances a ReactorState over one control interval.
type Solver struct {
	plant *physics.CSTR
	integ dynamo.Integrator
	opts  integrators.Options
}

// NewSolver returns a solver using integ, or Dormand-Prince when integ is nil.
func NewSolver(plant *physics.CSTR, integ dynamo.Integrator) *Solver {
	if integ == nil {
		integ = integrators.NewRK45()
	}
	opts := integrators.DefaultOptions()
	// RK4 loses stability above this step during a runaway spike.
	opts.MaxDt = 0.01
	return &Solver{
		plant: plant,
		integ: integ,
		opts:  opts,
	}
}

func (s *Solver) Plant() *physics.CSTR { return s.plant }

// Advance integrates the plant over interval split into substeps equal
// sub-intervals. delta acts as a coolant bias during the first sub-interval
// only and is then added to the coolant temperature. A delta beyond
// MaxCoolantDelta is rejected and st is returned unchanged.
func (s *Solver) Advance(st ReactorState, delta, interval float64, substeps int) (ReactorState, error) {
	if math.IsNaN(delta) || math.Abs(delta) > MaxCoolantDelta {
		return st, fmt.Errorf("%w: |%g| > %g", ErrActuatorLimitExceeded, delta, MaxCoolantDelta)
	}
	if substeps < 1 {
		substeps = 1
	}

	h := interval / float64(substeps)
	opts := s.opts
	opts.MaxDt = math.Min(opts.MaxDt, h)
	opts.InitialDt = math.Min(opts.InitialDt, h)

	x := dynamo.State{st.Concentration, st.Temperature}
	t := 0.0
	for i := 0; i < substeps; i++ {
		bias := 0.0
		if i == 0 {
			bias = delta
		}
		next, err := integrators.Integrate(s.integ, s.plant, x, dynamo.Control{st.Coolant, bias}, t, t+h, opts)
		if err != nil {
			return st, fmt.Errorf("%w: sub-step %d: %w", ErrDiverged, i, err)
		}
		x = next
		t += h
	}

	return ReactorState{
		Concentration: x[0],
		Temperature:   x[1],
		Coolant:       st.Coolant + delta,
		LastDelta:     delta,
	}, nil
}
