package reactor

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/interp"
)

// Default transition timing in hours.
const (
	DefaultTransitionStart = 22.0
	DefaultTransitionEnd   = 74.0
	DefaultHorizon         = 90.0
)

// The transition starts from the rounded low-state concentration.
const transitionStartConcentration = 8.57

// Schedule produces reference trajectories: flat at the low-temperature
// steady state until Start, a linear ramp to the high-temperature steady
// state until End, flat until Horizon and held beyond it.
type Schedule struct {
	Start   float64
	End     float64
	Horizon float64

	knots []float64
	conc  interp.PiecewiseLinear
	temp  interp.PiecewiseLinear
}

func NewSchedule(start, end, horizon float64) (*Schedule, error) {
	if !(start > 0 && end > start && horizon > end) {
		return nil, fmt.Errorf("%w: schedule needs 0 < start < end < horizon, got %g, %g, %g",
			ErrInvalidConfig, start, end, horizon)
	}

	s := &Schedule{
		Start:   start,
		End:     end,
		Horizon: horizon,
		knots:   []float64{0, start, end, horizon},
	}
	err := s.conc.Fit(s.knots, []float64{
		transitionStartConcentration, transitionStartConcentration,
		HighSteadyConcentration, HighSteadyConcentration,
	})
	if err != nil {
		return nil, fmt.Errorf("fit concentration schedule: %w", err)
	}
	err = s.temp.Fit(s.knots, []float64{
		LowSteadyTemperature, LowSteadyTemperature,
		HighSteadyTemperature, HighSteadyTemperature,
	})
	if err != nil {
		return nil, fmt.Errorf("fit temperature schedule: %w", err)
	}
	return s, nil
}

func DefaultSchedule() *Schedule {
	s, err := NewSchedule(DefaultTransitionStart, DefaultTransitionEnd, DefaultHorizon)
	if err != nil {
		panic(err)
	}
	return s
}

// Profile evaluates the transition trajectory at t, clamped to [0, Horizon].
func (s *Schedule) Profile(t float64) Reference {
	x := math.Max(0, math.Min(t, s.Horizon))
	return Reference{
		Concentration: s.conc.Predict(x),
		Temperature:   s.temp.Predict(x),
	}
}

// Reference returns the setpoint for mode at elapsed time t.
func (s *Schedule) Reference(mode Mode, t float64) Reference {
	switch mode {
	case ModeImmediateTransition:
		return s.Profile(t + s.Start)
	case ModeTransition:
		return s.Profile(t)
	case ModeHighSteady:
		return Reference{Concentration: HighSteadyConcentration, Temperature: HighSteadyTemperature}
	case ModeLowSteady:
		return Reference{Concentration: LowSteadyConcentration, Temperature: LowSteadyTemperature}
	}
	return Reference{}
}
