package reactor

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/san-kum/cstrsim/internal/dynamo"
	"github.com/san-kum/cstrsim/internal/physics"
)

// Episode is the reset/step/halt state machine around one reactor.
type Episode struct {
	id       string
	consts   physics.Constants
	plant    *physics.CSTR
	integ    dynamo.Integrator
	solver   *Solver
	schedule *Schedule
	rng      RandSource
	noise    *NoiseInjector
	log      *zap.Logger

	cfg     EpisodeConfig
	state   ReactorState
	ref     Reference
	obs     Observation
	elapsed float64
	steps   int
	phase   Phase
	reason  HaltReason
}

type Option func(*Episode)

func WithConstants(c physics.Constants) Option {
	return func(e *Episode) { e.consts = c }
}

// WithRand sets the noise source. The default is seeded from the clock.
func WithRand(r RandSource) Option {
	return func(e *Episode) { e.rng = r }
}

func WithLogger(l *zap.Logger) Option {
	return func(e *Episode) {
		if l != nil {
			e.log = l
		}
	}
}

// WithIntegrator replaces the Dormand-Prince default. The integrator must
// not be shared with another Episode.
func WithIntegrator(i dynamo.Integrator) Option {
	return func(e *Episode) { e.integ = i }
}

func WithSchedule(s *Schedule) Option {
	return func(e *Episode) { e.schedule = s }
}

// New builds an episode and resets it with DefaultEpisodeConfig.
func New(opts ...Option) (*Episode, error) {
	e := &Episode{
		consts: physics.DefaultConstants(),
		log:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if err := e.consts.Validate(); err != nil {
		return nil, err
	}
	if e.rng == nil {
		e.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if e.schedule == nil {
		e.schedule = DefaultSchedule()
	}
	e.plant = physics.NewCSTR(e.consts)
	e.solver = NewSolver(e.plant, e.integ)

	if _, err := e.Reset(DefaultEpisodeConfig()); err != nil {
		return nil, err
	}
	return e, nil
}

// Reset starts a new episode. An invalid config is rejected and leaves the
// current episode untouched.
func (e *Episode) Reset(cfg EpisodeConfig) (Observation, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return e.obs, err
	}

	c, t := LowSteadyConcentration, LowSteadyTemperature
	if cfg.Mode == ModeHighSteady {
		c, t = HighSteadyConcentration, HighSteadyTemperature
	}
	tc := cfg.InitialCoolant
	if tc == 0 {
		tc = e.plant.SteadyCoolant(c, t)
	}

	e.id = uuid.NewString()
	e.cfg = cfg
	e.state = ReactorState{Concentration: c, Temperature: t, Coolant: tc}
	e.noise = NewNoiseInjector(cfg.NoiseFraction, e.rng)
	e.elapsed = 0
	e.steps = 0
	e.phase = PhaseReady
	e.reason = HaltNone
	e.ref = e.schedule.Reference(cfg.Mode, 0)
	e.obs = e.observe(c, t)

	e.log.Debug("episode reset",
		zap.String("episode", e.id),
		zap.Stringer("mode", cfg.Mode),
		zap.Float64("noise", cfg.NoiseFraction),
		zap.Float64("interval", cfg.Interval),
		zap.Int("substeps", cfg.Substeps),
		zap.Float64("Tc0", tc),
	)
	return e.obs, nil
}

// Step advances the episode by one control interval.
func (e *Episode) Step(a Action) (Observation, error) {
	delta := a.CoolantDelta
	if e.Halted() {
		return e.obs, e.stepError(delta, ErrHalted)
	}

	ref := e.schedule.Reference(e.cfg.Mode, e.elapsed)

	next, err := e.solver.Advance(e.state, delta, e.cfg.Interval, e.cfg.Substeps)
	if err != nil {
		switch {
		case errors.Is(err, ErrActuatorLimitExceeded):
			e.log.Warn("actuator limit exceeded",
				zap.String("episode", e.id),
				zap.Int("step", e.steps),
				zap.Float64("delta", delta),
			)
			e.halt(HaltActuatorLimit)
		default:
			e.halt(HaltDiverged)
		}
		return e.obs, e.stepError(delta, err)
	}

	c, t := e.noise.Apply(next.Concentration, next.Temperature)
	if e.cfg.ProcessNoise {
		next.Concentration, next.Temperature = c, t
	}
	e.state = next
	e.ref = ref
	e.obs = e.observe(c, t)
	e.elapsed += e.cfg.Interval
	e.steps++
	e.phase = PhaseRunning

	e.Halted()
	return e.obs, nil
}

func (e *Episode) State() Observation { return e.obs }

// Halted evaluates the safety limits on the physical state and moves the
// episode to PhaseHalted when one is violated. Once halted it stays halted
// until Reset.
func (e *Episode) Halted() bool {
	if e.phase == PhaseHalted {
		return true
	}
	st := e.state
	switch {
	case math.IsNaN(st.Concentration) || math.IsNaN(st.Temperature) ||
		math.IsInf(st.Concentration, 0) || math.IsInf(st.Temperature, 0):
		e.halt(HaltDiverged)
	case st.Temperature >= ThermalRunawayTemperature:
		e.halt(HaltThermalRunaway)
	case st.Concentration <= 0:
		e.halt(HaltConcentrationCollapse)
	case math.Abs(st.LastDelta) > MaxCoolantDelta:
		e.halt(HaltActuatorLimit)
	default:
		return false
	}
	return true
}

func (e *Episode) halt(reason HaltReason) {
	if e.phase == PhaseHalted {
		return
	}
	e.phase = PhaseHalted
	e.reason = reason
	e.log.Warn("episode halted",
		zap.String("episode", e.id),
		zap.Stringer("reason", reason),
		zap.Int("step", e.steps),
		zap.Float64("time", e.elapsed),
		zap.Float64("Cr", e.state.Concentration),
		zap.Float64("Tr", e.state.Temperature),
		zap.Float64("Tc", e.state.Coolant),
	)
}

func (e *Episode) observe(c, t float64) Observation {
	return Observation{
		Cr:   c,
		Tr:   t,
		Tc:   e.state.Coolant,
		Cref: e.ref.Concentration,
		Tref: e.ref.Temperature,
	}
}

func (e *Episode) stepError(delta float64, err error) error {
	return &StepError{Step: e.steps, Time: e.elapsed, Delta: delta, Err: err}
}

func (e *Episode) ID() string                   { return e.id }
func (e *Episode) Config() EpisodeConfig        { return e.cfg }
func (e *Episode) Physical() ReactorState       { return e.state }
func (e *Episode) Reference() Reference         { return e.ref }
func (e *Episode) Elapsed() float64             { return e.elapsed }
func (e *Episode) Steps() int                   { return e.steps }
func (e *Episode) Phase() Phase                 { return e.phase }
func (e *Episode) HaltReason() HaltReason       { return e.reason }
func (e *Episode) Constants() physics.Constants { return e.consts }

func (e *Episode) String() string {
	return fmt.Sprintf("episode %s [%s] t=%.2f Cr=%.4f Tr=%.4f Tc=%.4f",
		e.id, e.phase, e.elapsed, e.obs.Cr, e.obs.Tr, e.obs.Tc)
}
