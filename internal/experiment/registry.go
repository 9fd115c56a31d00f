package experiment

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/san-kum/cstrsim/internal/control"
	"github.com/san-kum/cstrsim/internal/dynamo"
	"github.com/san-kum/cstrsim/internal/integrators"
	"github.com/san-kum/cstrsim/internal/metrics"
	"github.com/san-kum/cstrsim/internal/physics"
	"github.com/san-kum/cstrsim/internal/reactor"
)

// GateSuffix wraps any registered controller in the classifier safety gate,
// e.g. "brain+gate".
const GateSuffix = "+gate"

// ControllerFactory builds a controller from numeric parameters.
type ControllerFactory func(params map[string]float64) (reactor.Controller, error)

type Registry struct {
	integrators map[string]func() dynamo.Integrator
	controllers map[string]ControllerFactory

	constants  physics.Constants
	brainURL   string
	classifier control.Classifier
	log        *zap.Logger
}

type RegistryOption func(*Registry)

func WithBrainURL(url string) RegistryOption {
	return func(r *Registry) { r.brainURL = url }
}

func WithClassifier(c control.Classifier) RegistryOption {
	return func(r *Registry) { r.classifier = c }
}

func WithProcessConstants(c physics.Constants) RegistryOption {
	return func(r *Registry) { r.constants = c }
}

func WithLogger(l *zap.Logger) RegistryOption {
	return func(r *Registry) {
		if l != nil {
			r.log = l
		}
	}
}

func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		integrators: make(map[string]func() dynamo.Integrator),
		controllers: make(map[string]ControllerFactory),
		constants:   physics.DefaultConstants(),
		log:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}

	r.integrators["rk4"] = func() dynamo.Integrator { return integrators.NewRK4() }
	r.integrators["rk45"] = func() dynamo.Integrator { return integrators.NewRK45() }

	for _, name := range control.FixedPolicies() {
		name := name
		r.controllers[name] = func(map[string]float64) (reactor.Controller, error) {
			return control.NewFixedPolicy(name)
		}
	}
	r.controllers["none"] = func(map[string]float64) (reactor.Controller, error) {
		return control.NewNone(), nil
	}
	r.controllers["random"] = func(params map[string]float64) (reactor.Controller, error) {
		return control.NewRandom(int64(params["seed"])), nil
	}
	r.controllers["manual"] = func(map[string]float64) (reactor.Controller, error) {
		return control.NewManual(), nil
	}
	r.controllers["pid"] = func(params map[string]float64) (reactor.Controller, error) {
		kp, ok := params["kp"]
		if !ok {
			kp = 0.5
		}
		return control.NewPID(kp, params["ki"], params["kd"], params["dt"]), nil
	}
	r.controllers["feedback"] = func(params map[string]float64) (reactor.Controller, error) {
		s := control.NewDefaultStateFeedback()
		if v, ok := params["kc"]; ok {
			s.K[0] = v
		}
		if v, ok := params["kt"]; ok {
			s.K[1] = v
		}
		return s, nil
	}
	r.controllers["mpc"] = func(params map[string]float64) (reactor.Controller, error) {
		la := control.NewLookahead(r.constants)
		if h := int(params["horizon"]); h > 0 {
			la.Horizon = h
		}
		if dt := params["dt"]; dt > 0 {
			la.Interval = dt
		}
		m := control.NewMPC(la)
		m.LegacyClamp = params["legacy"] != 0
		return m, nil
	}
	r.controllers["brain"] = func(map[string]float64) (reactor.Controller, error) {
		if r.brainURL == "" {
			return nil, errors.New("brain controller needs an exported brain url")
		}
		return control.NewBrain(r.brainURL), nil
	}

	return r
}

func (r *Registry) GetIntegrator(name string) (dynamo.Integrator, error) {
	fn, ok := r.integrators[name]
	if !ok {
		return nil, fmt.Errorf("unknown integrator: %s", name)
	}
	return fn(), nil
}

func (r *Registry) GetController(name string, params map[string]float64) (reactor.Controller, error) {
	if base, ok := strings.CutSuffix(name, GateSuffix); ok {
		if r.classifier == nil {
			return nil, fmt.Errorf("controller %s needs a safety classifier", name)
		}
		inner, err := r.GetController(base, params)
		if err != nil {
			return nil, err
		}
		return control.NewGate(inner, r.classifier, r.log), nil
	}

	fn, ok := r.controllers[name]
	if !ok {
		return nil, fmt.Errorf("unknown controller: %s", name)
	}
	return fn(params)
}

// Register adds or replaces a controller factory.
func (r *Registry) Register(name string, f ControllerFactory) {
	r.controllers[name] = f
}

func (r *Registry) ListControllers() []string {
	names := make([]string, 0, len(r.controllers))
	for name := range r.controllers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) ListIntegrators() []string {
	names := make([]string, 0, len(r.integrators))
	for name := range r.integrators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) Constants() physics.Constants { return r.constants }

// NewEpisode builds an episode for cfg with its own random source.
func (r *Registry) NewEpisode(cfg Config) (*reactor.Episode, error) {
	name := cfg.Integrator
	if name == "" {
		name = "rk45"
	}
	integ, err := r.GetIntegrator(name)
	if err != nil {
		return nil, err
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return reactor.New(
		reactor.WithConstants(r.constants),
		reactor.WithIntegrator(integ),
		reactor.WithRand(rand.New(rand.NewSource(seed))),
		reactor.WithLogger(r.log),
	)
}

// Build assembles a ready-to-run experiment with the standard metrics.
func (r *Registry) Build(cfg Config) (*Experiment, error) {
	ep, err := r.NewEpisode(cfg)
	if err != nil {
		return nil, err
	}

	params := make(map[string]float64, len(cfg.Params)+2)
	for k, v := range cfg.Params {
		params[k] = v
	}
	if _, ok := params["seed"]; !ok {
		params["seed"] = float64(cfg.Seed)
	}
	if _, ok := params["dt"]; !ok && cfg.Episode.Interval > 0 {
		params["dt"] = cfg.Episode.Interval
	}

	ctrl, err := r.GetController(cfg.Controller, params)
	if err != nil {
		return nil, err
	}

	exp := New(cfg)
	if err := exp.Setup(ep, ctrl, metrics.Standard(), r.log); err != nil {
		return nil, err
	}
	return exp, nil
}
