package integrators

import (
	"errors"
	"math"
	"testing"

	"github.com/san-kum/cstrsim/internal/dynamo"
)

type decay struct{ rate float64 }

func (d *decay) StateDim() int   { return 1 }
func (d *decay) ControlDim() int { return 1 }
func (d *decay) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	return dynamo.State{-d.rate*x[0] + u[0]}
}

type blowup struct{}

func (b *blowup) StateDim() int   { return 1 }
func (b *blowup) ControlDim() int { return 0 }
func (b *blowup) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	return dynamo.State{math.NaN()}
}

func TestIntegrate_MatchesAnalytic(t *testing.T) {
	dyn := &decay{rate: 2.0}
	x0 := dynamo.State{1.0}
	u := dynamo.Control{1.0}
	// x(t) = 0.5 + 0.5 e^{-2t}
	want := 0.5 + 0.5*math.Exp(-2.0)

	fine := DefaultOptions()
	fine.MaxDt = 0.01

	tests := []struct {
		name  string
		integ dynamo.Integrator
		opts  Options
		tol   float64
	}{
		// Global RK4 error at the default 0.05 step is ~1.2e-7.
		{"rk4", NewRK4(), fine, 1e-7},
		{"rk4_default_step", NewRK4(), DefaultOptions(), 1e-6},
		{"rk45", NewRK45(), DefaultOptions(), 1e-7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x, err := Integrate(tt.integ, dyn, x0, u, 0, 1, tt.opts)
			if err != nil {
				t.Fatalf("Integrate: %v", err)
			}
			if math.Abs(x[0]-want) > tt.tol {
				t.Errorf("got %.10f, want %.10f", x[0], want)
			}
			if x0[0] != 1.0 {
				t.Error("Integrate mutated the initial state")
			}
		})
	}
}

func TestIntegrate_InvalidSpan(t *testing.T) {
	dyn := &decay{rate: 1}
	for _, span := range [][2]float64{{0, 0}, {1, 0}} {
		_, err := Integrate(NewRK4(), dyn, dynamo.State{1}, dynamo.Control{0}, span[0], span[1], DefaultOptions())
		if !errors.Is(err, dynamo.ErrInvalidSpan) {
			t.Errorf("span %v: expected ErrInvalidSpan, got %v", span, err)
		}
	}
}

func TestIntegrate_DimensionMismatch(t *testing.T) {
	_, err := Integrate(NewRK4(), &decay{rate: 1}, dynamo.State{1, 2}, dynamo.Control{0}, 0, 1, DefaultOptions())
	if !errors.Is(err, dynamo.ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestIntegrate_DetectsDivergence(t *testing.T) {
	_, err := Integrate(NewRK4(), &blowup{}, dynamo.State{1}, nil, 0, 1, DefaultOptions())
	if !errors.Is(err, dynamo.ErrInvalidState) {
		t.Errorf("rk4: expected ErrInvalidState, got %v", err)
	}

	_, err = Integrate(NewRK45(), &blowup{}, dynamo.State{1}, nil, 0, 1, DefaultOptions())
	if !errors.Is(err, dynamo.ErrStepTooSmall) {
		t.Errorf("rk45: expected ErrStepTooSmall, got %v", err)
	}

	var ie *dynamo.IntegrationError
	if !errors.As(err, &ie) {
		t.Error("expected an IntegrationError")
	}
}
