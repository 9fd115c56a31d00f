package control

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/san-kum/cstrsim/internal/reactor"
)

// Classifier estimates the probability of thermal runaway for the feature
// vector [Cr, Tr, Tc, delta].
type Classifier interface {
	PredictProba(features []float64) (float64, error)
}

const (
	DefaultGateTemperature = 340.0
	DefaultGateThreshold   = 0.3
)

// Gate filters another controller's adjustments through a runaway
// classifier. Above ActivationTemperature an adjustment whose predicted
// runaway probability reaches Threshold is walked back in steps of 10% of
// its magnitude until the classifier accepts it or it leaves the actuator
// range.
type Gate struct {
	Inner                 reactor.Controller
	Classifier            Classifier
	ActivationTemperature float64
	Threshold             float64

	log *zap.Logger
}

func NewGate(inner reactor.Controller, clf Classifier, log *zap.Logger) *Gate {
	if log == nil {
		log = zap.NewNop()
	}
	return &Gate{
		Inner:                 inner,
		Classifier:            clf,
		ActivationTemperature: DefaultGateTemperature,
		Threshold:             DefaultGateThreshold,
		log:                   log,
	}
}

func (g *Gate) Compute(obs reactor.Observation) (float64, error) {
	d, err := g.Inner.Compute(obs)
	if err != nil {
		return 0, err
	}
	if obs.Tr < g.ActivationTemperature {
		return d, nil
	}

	unsafe, err := g.unsafe(obs, d)
	if err != nil {
		return 0, err
	}
	if !unsafe {
		return d, nil
	}
	if d == 0 {
		return 0, nil
	}

	step := 0.1 * math.Abs(d) * sign(d)
	candidate := d
	for math.Abs(candidate) <= reactor.MaxCoolantDelta {
		candidate -= step
		unsafe, err = g.unsafe(obs, candidate)
		if err != nil {
			return 0, err
		}
		if !unsafe {
			break
		}
	}
	candidate = clamp(candidate)

	g.log.Info("safety gate overrode adjustment",
		zap.Float64("Tr", obs.Tr),
		zap.Float64("proposed", d),
		zap.Float64("applied", candidate),
	)
	return candidate, nil
}

func (g *Gate) unsafe(obs reactor.Observation, d float64) (bool, error) {
	p, err := g.Classifier.PredictProba([]float64{obs.Cr, obs.Tr, obs.Tc, d})
	if err != nil {
		return false, fmt.Errorf("safety classifier: %w", err)
	}
	return p >= g.Threshold, nil
}

func (g *Gate) Reset() {
	if r, ok := g.Inner.(interface{ Reset() }); ok {
		r.Reset()
	}
}

func sign(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	}
	return 0
}
