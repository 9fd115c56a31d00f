package experiment

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/san-kum/cstrsim/internal/metrics"
	"github.com/san-kum/cstrsim/internal/reactor"
)

// DefaultIterations is the number of control intervals in an episode.
const DefaultIterations = 90

type Config struct {
	Controller string                `yaml:"controller" json:"controller"`
	Integrator string                `yaml:"integrator" json:"integrator"`
	Params     map[string]float64    `yaml:"params,omitempty" json:"params,omitempty"`
	Episode    reactor.EpisodeConfig `yaml:"episode" json:"episode"`
	Iterations int                   `yaml:"iterations" json:"iterations"`
	Seed       int64                 `yaml:"seed" json:"seed"`
}

func DefaultConfig() Config {
	return Config{
		Controller: "do_nothing",
		Integrator: "rk45",
		Params:     map[string]float64{},
		Episode:    reactor.DefaultEpisodeConfig(),
		Iterations: DefaultIterations,
	}
}

type Experiment struct {
	cfg    Config
	runner *Runner
}

func New(cfg Config) *Experiment {
	if cfg.Iterations <= 0 {
		cfg.Iterations = DefaultIterations
	}
	return &Experiment{cfg: cfg}
}

func (e *Experiment) Setup(ep *reactor.Episode, ctrl reactor.Controller, ms []metrics.Metric, log *zap.Logger) error {
	if ep == nil || ctrl == nil {
		return fmt.Errorf("experiment needs an episode and a controller")
	}
	e.runner = NewRunner(ep, ctrl, log)
	for _, m := range ms {
		e.runner.AddMetric(m)
	}
	return nil
}

func (e *Experiment) Run(ctx context.Context) (*Result, error) {
	if e.runner == nil {
		return nil, fmt.Errorf("experiment not setup")
	}
	return e.runner.Run(ctx, e.cfg.Episode, e.cfg.Iterations)
}

func (e *Experiment) Config() Config { return e.cfg }

// GetRunner returns the underlying runner for adding observers
func (e *Experiment) GetRunner() *Runner {
	return e.runner
}
