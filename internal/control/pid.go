package control

import (
	"math"

	"github.com/san-kum/cstrsim/internal/reactor"
)

// PID tracks the reference temperature by adjusting the coolant. Dt is the
// control interval the controller is sampled at.
type PID struct {
	Kp       float64
	Ki       float64
	Kd       float64
	Dt       float64
	integral float64
	prevErr  float64
	first    bool
}

func NewPID(kp, ki, kd, dt float64) *PID {
	if dt <= 0 {
		dt = 1
	}
	return &PID{
		Kp:    kp,
		Ki:    ki,
		Kd:    kd,
		Dt:    dt,
		first: true,
	}
}

func (p *PID) Compute(obs reactor.Observation) (float64, error) {
	err := obs.Tref - obs.Tr

	derivative := 0.0
	if !p.first {
		derivative = (err - p.prevErr) / p.Dt
	}
	p.prevErr = err
	p.first = false

	u := p.Kp*err + p.Ki*(p.integral+err*p.Dt) + p.Kd*derivative
	clamped := clamp(u)
	// no integration while saturated
	if clamped == u {
		p.integral += err * p.Dt
	}
	return clamped, nil
}

// Reset clears integral and derivative state
func (p *PID) Reset() {
	p.integral = 0
	p.prevErr = 0
	p.first = true
}

// GetParams returns tunable parameters for live adjustment
func (p *PID) GetParams() map[string]float64 {
	return map[string]float64{
		"Kp": p.Kp,
		"Ki": p.Ki,
		"Kd": p.Kd,
	}
}

// SetParam adjusts a PID parameter
func (p *PID) SetParam(name string, value float64) {
	switch name {
	case "Kp":
		p.Kp = value
	case "Ki":
		p.Ki = value
	case "Kd":
		p.Kd = value
	}
}

func clamp(d float64) float64 {
	if math.IsNaN(d) {
		return 0
	}
	return math.Max(-reactor.MaxCoolantDelta, math.Min(reactor.MaxCoolantDelta, d))
}
