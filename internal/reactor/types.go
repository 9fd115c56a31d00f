package reactor

import (
	"fmt"
	"strconv"
	"strings"
)

// Mode selects the reference trajectory and the initial condition of an
// episode.
type Mode int

const (
	// ModeDisabled reports a zero reference while the reactor starts at its
	// low-temperature steady state. Tracking is intentionally disabled.
	ModeDisabled Mode = iota
	// ModeImmediateTransition follows the transition schedule shifted so the
	// ramp starts at t=0.
	ModeImmediateTransition
	// ModeHighSteady holds the high-temperature steady state.
	ModeHighSteady
	// ModeLowSteady holds the low-temperature steady state.
	ModeLowSteady
	// ModeTransition follows the transition schedule from t=0.
	ModeTransition
)

var modeNames = map[Mode]string{
	ModeDisabled:            "disabled",
	ModeImmediateTransition: "immediate-transition",
	ModeHighSteady:          "high-steady",
	ModeLowSteady:           "low-steady",
	ModeTransition:          "transition",
}

func (m Mode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return "mode(" + strconv.Itoa(int(m)) + ")"
}

func (m Mode) Valid() bool {
	_, ok := modeNames[m]
	return ok
}

// ParseMode accepts either the numeric selector or the mode name.
func ParseMode(s string) (Mode, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if n, err := strconv.Atoi(s); err == nil {
		m := Mode(n)
		if !m.Valid() {
			return 0, fmt.Errorf("%w: unknown trajectory mode %d", ErrInvalidConfig, n)
		}
		return m, nil
	}
	for m, name := range modeNames {
		if name == s {
			return m, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown trajectory mode %q", ErrInvalidConfig, s)
}

type Phase int

const (
	PhaseReady Phase = iota
	PhaseRunning
	PhaseHalted
)

func (p Phase) String() string {
	switch p {
	case PhaseReady:
		return "ready"
	case PhaseRunning:
		return "running"
	case PhaseHalted:
		return "halted"
	}
	return "unknown"
}

type HaltReason int

const (
	HaltNone HaltReason = iota
	HaltThermalRunaway
	HaltConcentrationCollapse
	HaltActuatorLimit
	HaltDiverged
)

func (r HaltReason) String() string {
	switch r {
	case HaltNone:
		return "none"
	case HaltThermalRunaway:
		return "thermal runaway"
	case HaltConcentrationCollapse:
		return "concentration collapse"
	case HaltActuatorLimit:
		return "actuator limit exceeded"
	case HaltDiverged:
		return "numerical divergence"
	}
	return "unknown"
}

// Safety limits.
const (
	ThermalRunawayTemperature = 400.0 // K
	MaxCoolantDelta           = 10.0  // K per control interval
)

// Step bounds. An interval longer than the transition horizon or more
// sub-steps than this would make a single Step unbounded in cost.
const (
	MaxInterval = 100.0
	MaxSubsteps = 1000
)

// Canonical operating points.
const (
	LowSteadyConcentration  = 8.5698
	LowSteadyTemperature    = 311.2612
	HighSteadyConcentration = 2.0
	HighSteadyTemperature   = 373.1311
)

// EpisodeConfig holds the per-episode parameters applied by Reset. Start from
// DefaultEpisodeConfig; zero Interval and Substeps are replaced by their
// defaults.
type EpisodeConfig struct {
	Mode          Mode    `yaml:"mode" json:"mode"`
	NoiseFraction float64 `yaml:"noise" json:"noise"`
	Interval      float64 `yaml:"interval" json:"interval"`
	Substeps      int     `yaml:"substeps" json:"substeps"`

	// InitialCoolant overrides the steady coolant temperature computed for
	// the initial state when positive.
	InitialCoolant float64 `yaml:"initial_coolant,omitempty" json:"initial_coolant,omitempty"`

	// ProcessNoise feeds the noisy values back into the physical state
	// instead of only perturbing the observation.
	ProcessNoise bool `yaml:"process_noise,omitempty" json:"process_noise,omitempty"`
}

func DefaultEpisodeConfig() EpisodeConfig {
	return EpisodeConfig{
		Mode:          ModeTransition,
		NoiseFraction: 0,
		Interval:      1,
		Substeps:      2,
	}
}

func (c EpisodeConfig) withDefaults() EpisodeConfig {
	def := DefaultEpisodeConfig()
	if c.Interval == 0 {
		c.Interval = def.Interval
	}
	if c.Substeps == 0 {
		c.Substeps = def.Substeps
	}
	return c
}

func (c EpisodeConfig) Validate() error {
	if !c.Mode.Valid() {
		return fmt.Errorf("%w: unknown trajectory mode %d", ErrInvalidConfig, int(c.Mode))
	}
	if !(c.NoiseFraction >= 0 && c.NoiseFraction <= 1) {
		return fmt.Errorf("%w: noise fraction %g outside [0, 1]", ErrInvalidConfig, c.NoiseFraction)
	}
	if !(c.Interval >= 0 && c.Interval <= MaxInterval) {
		return fmt.Errorf("%w: interval %g outside (0, %g]", ErrInvalidConfig, c.Interval, MaxInterval)
	}
	if c.Substeps < 0 || c.Substeps > MaxSubsteps {
		return fmt.Errorf("%w: substeps %d outside [1, %d]", ErrInvalidConfig, c.Substeps, MaxSubsteps)
	}
	if c.InitialCoolant < 0 {
		return fmt.Errorf("%w: initial coolant must be positive, got %g", ErrInvalidConfig, c.InitialCoolant)
	}
	return nil
}

// ReactorState is the physical, noise-free state of the process.
type ReactorState struct {
	Concentration float64 `json:"Cr"`
	Temperature   float64 `json:"Tr"`
	Coolant       float64 `json:"Tc"`
	LastDelta     float64 `json:"dTc"`
}

// Reference is the setpoint the controller should track.
type Reference struct {
	Concentration float64 `json:"Cref"`
	Temperature   float64 `json:"Tref"`
}

// Observation is the externally visible state returned by Reset, Step and
// State.
type Observation struct {
	Cr   float64 `json:"Cr"`
	Tr   float64 `json:"Tr"`
	Tc   float64 `json:"Tc"`
	Cref float64 `json:"Cref"`
	Tref float64 `json:"Tref"`
}

// Action is a control command for one interval.
type Action struct {
	CoolantDelta float64 `json:"Tc_adjust"`
}
