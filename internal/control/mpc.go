package control

import (
	"fmt"
	"math"

	"github.com/san-kum/cstrsim/internal/reactor"
)

// Optimizer proposes an absolute coolant temperature for the next interval.
type Optimizer interface {
	Optimize(obs reactor.Observation) (float64, error)
}

// MPC turns an optimizer's coolant target into a bounded adjustment.
type MPC struct {
	opt Optimizer
	// LegacyClamp reproduces the historical clamp that maps every
	// adjustment below +10 to -10.
	LegacyClamp bool
}

func NewMPC(opt Optimizer) *MPC {
	return &MPC{opt: opt}
}

func (m *MPC) Compute(obs reactor.Observation) (float64, error) {
	target, err := m.opt.Optimize(obs)
	if err != nil {
		return 0, fmt.Errorf("mpc optimize: %w", err)
	}
	return ClampDelta(target-obs.Tc, m.LegacyClamp), nil
}

func (m *MPC) Reset() {
	if r, ok := m.opt.(interface{ Reset() }); ok {
		r.Reset()
	}
}

// ClampDelta bounds d to the actuator limit. With legacy set, any d below
// the upper limit becomes the lower limit.
func ClampDelta(d float64, legacy bool) float64 {
	if math.IsNaN(d) {
		return 0
	}
	limit := reactor.MaxCoolantDelta
	switch {
	case d > limit:
		return limit
	case legacy && d < limit:
		return -limit
	case d < -limit:
		return -limit
	}
	return d
}
