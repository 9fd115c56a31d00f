package physics

import (
	"errors"
	"fmt"
	"math"

	"github.com/san-kum/cstrsim/internal/dynamo"
)

// ErrInvalidConstants is returned by Constants.Validate.
var ErrInvalidConstants = errors.New("physics: invalid process constants")

// Constants are the physical parameters of the reactor in kmol, m3, h, kcal
// and K. HeatOfReaction is negative for an exothermic reaction.
type Constants struct {
	FlowRate          float64 `yaml:"flow_rate" json:"F"`
	Volume            float64 `yaml:"volume" json:"V"`
	PreExponential    float64 `yaml:"k0" json:"k0"`
	ActivationEnergy  float64 `yaml:"activation_energy" json:"E"`
	GasConstant       float64 `yaml:"gas_constant" json:"R"`
	HeatOfReaction    float64 `yaml:"heat_of_reaction" json:"dH"`
	RhoCp             float64 `yaml:"rho_cp" json:"rhoCp"`
	UA                float64 `yaml:"ua" json:"UA"`
	FeedConcentration float64 `yaml:"feed_concentration" json:"Caf"`
	FeedTemperature   float64 `yaml:"feed_temperature" json:"Tf"`
}

func DefaultConstants() Constants {
	return Constants{
		FlowRate:          1,
		Volume:            1,
		PreExponential:    34930800,
		ActivationEnergy:  11843,
		GasConstant:       1.98588,
		HeatOfReaction:    -5960,
		RhoCp:             500,
		UA:                150,
		FeedConcentration: 10,
		FeedTemperature:   298.2,
	}
}

func (c Constants) Validate() error {
	positive := []struct {
		name  string
		value float64
	}{
		{"flow_rate", c.FlowRate},
		{"volume", c.Volume},
		{"k0", c.PreExponential},
		{"activation_energy", c.ActivationEnergy},
		{"gas_constant", c.GasConstant},
		{"rho_cp", c.RhoCp},
		{"ua", c.UA},
		{"feed_concentration", c.FeedConcentration},
		{"feed_temperature", c.FeedTemperature},
	}
	for _, p := range positive {
		if !(p.value > 0) {
			return fmt.Errorf("%w: %s must be positive, got %g", ErrInvalidConstants, p.name, p.value)
		}
	}
	if !(c.HeatOfReaction < 0) {
		return fmt.Errorf("%w: heat_of_reaction must be negative, got %g", ErrInvalidConstants, c.HeatOfReaction)
	}
	return nil
}

// CSTR is the reactor dynamics model.
type CSTR struct {
	c Constants
}

func NewCSTR(c Constants) *CSTR {
	return &CSTR{c: c}
}

func (r *CSTR) Constants() Constants { return r.c }

func (r *CSTR) StateDim() int   { return 2 }
func (r *CSTR) ControlDim() int { return 2 }

// Derive implements dynamo.System. x = [Cr, Tr], u = [Tc, bias].
func (r *CSTR) Derive(x dynamo.State, u dynamo.Control, _ float64) dynamo.State {
	tc, bias := 0.0, 0.0
	if len(u) > 0 {
		tc = u[0]
	}
	if len(u) > 1 {
		bias = u[1]
	}
	dc, dt := r.Rates(x[0], x[1], tc, bias)
	return dynamo.State{dc, dt}
}

// ReactionRate is k0 exp(-E/(R T)) C in kmol/(m3 h).
func (r *CSTR) ReactionRate(concentration, temperature float64) float64 {
	c := r.c
	return c.PreExponential * math.Exp(-c.ActivationEnergy/(c.GasConstant*temperature)) * concentration
}

// Rates returns dCr/dt and dTr/dt for the given operating point.
func (r *CSTR) Rates(concentration, temperature, coolant, bias float64) (float64, float64) {
	c := r.c
	rate := r.ReactionRate(concentration, temperature)
	dilution := c.FlowRate / c.Volume

	dConc := dilution*(c.FeedConcentration-concentration) - rate
	dTemp := dilution*(c.FeedTemperature-temperature) -
		(c.HeatOfReaction/c.RhoCp)*rate -
		(c.UA/(c.RhoCp*c.Volume))*(temperature-(coolant+bias))

	return dConc, dTemp
}

// SteadyCoolant returns the coolant temperature for which dTr/dt is zero at
// the given concentration and temperature.
func (r *CSTR) SteadyCoolant(concentration, temperature float64) float64 {
	c := r.c
	rate := r.ReactionRate(concentration, temperature)
	heat := (c.FlowRate/c.Volume)*(c.FeedTemperature-temperature) - (c.HeatOfReaction/c.RhoCp)*rate
	return temperature - heat*c.RhoCp*c.Volume/c.UA
}

func (r *CSTR) GetParams() map[string]float64 {
	c := r.c
	return map[string]float64{
		"F":     c.FlowRate,
		"V":     c.Volume,
		"k0":    c.PreExponential,
		"E":     c.ActivationEnergy,
		"R":     c.GasConstant,
		"dH":    c.HeatOfReaction,
		"rhoCp": c.RhoCp,
		"UA":    c.UA,
		"Caf":   c.FeedConcentration,
		"Tf":    c.FeedTemperature,
	}
}
