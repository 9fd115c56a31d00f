package automation

import (
	"context"
	"fmt"
	"os"

	"gonum.org/v1/gonum/stat"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/cstrsim/internal/experiment"
	"github.com/san-kum/cstrsim/internal/reactor"
)

// Progress is called after each completed episode.
type Progress func(done, total int)

// Scenario is an assessment: a list of episode configurations run with the
// same controller.
type Scenario struct {
	Name        string        `yaml:"name"`
	Description string        `yaml:"description"`
	Iterations  int           `yaml:"iterations"`
	Episodes    []EpisodeSpec `yaml:"episode_configurations"`
	// Legacy JSON assessment files use camelCase.
	LegacyEpisodes []EpisodeSpec `yaml:"episodeConfigurations"`
}

// EpisodeSpec is one episode configuration in the keys used by assessment
// files and episode-start requests. Missing fields keep their defaults.
type EpisodeSpec struct {
	Mode           *int     `yaml:"Cref_signal" json:"Cref_signal,omitempty"`
	Noise          *float64 `yaml:"noise_percentage" json:"noise_percentage,omitempty"`
	StepTime       *float64 `yaml:"step_time" json:"step_time,omitempty"`
	Substeps       *int     `yaml:"edo_solver_n_its" json:"edo_solver_n_its,omitempty"`
	InitialCoolant float64  `yaml:"initial_coolant" json:"initial_coolant,omitempty"`
	ProcessNoise   bool     `yaml:"process_noise" json:"process_noise,omitempty"`
}

func (s EpisodeSpec) Config() reactor.EpisodeConfig {
	cfg := reactor.DefaultEpisodeConfig()
	if s.Mode != nil {
		cfg.Mode = reactor.Mode(*s.Mode)
	}
	if s.Noise != nil {
		cfg.NoiseFraction = *s.Noise
	}
	if s.StepTime != nil {
		cfg.Interval = *s.StepTime
	}
	if s.Substeps != nil {
		cfg.Substeps = *s.Substeps
	}
	cfg.InitialCoolant = s.InitialCoolant
	cfg.ProcessNoise = s.ProcessNoise
	return cfg
}

// LoadScenario loads an assessment from a YAML (or JSON) file
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}
	if len(scenario.Episodes) == 0 {
		scenario.Episodes = scenario.LegacyEpisodes
	}
	scenario.LegacyEpisodes = nil
	if len(scenario.Episodes) == 0 {
		return nil, fmt.Errorf("scenario %s has no episode configurations", path)
	}
	if scenario.Iterations <= 0 {
		scenario.Iterations = experiment.DefaultIterations
	}
	for i, ep := range scenario.Episodes {
		if err := ep.Config().Validate(); err != nil {
			return nil, fmt.Errorf("scenario %s episode %d: %w", path, i+1, err)
		}
	}

	return &scenario, nil
}

// EpisodeResult pairs an episode configuration with its outcome.
type EpisodeResult struct {
	Index  int
	Config reactor.EpisodeConfig
	Result *experiment.Result
}

// Summary aggregates tracking errors over a set of episodes.
type Summary struct {
	Episodes  int
	CrRMSMean float64
	CrRMSStd  float64
	TrRMSMean float64
	TrRMSStd  float64
	Runaways  int
	Halted    int
}

// RunScenario executes every episode of the scenario sequentially with the
// controller named in base.
func RunScenario(ctx context.Context, sc *Scenario, registry *experiment.Registry, base experiment.Config, progress Progress) ([]EpisodeResult, Summary, error) {
	results := make([]EpisodeResult, 0, len(sc.Episodes))

	for i, spec := range sc.Episodes {
		cfg := base
		cfg.Episode = spec.Config()
		cfg.Iterations = sc.Iterations
		if base.Seed != 0 {
			cfg.Seed = base.Seed + int64(i)
		}

		exp, err := registry.Build(cfg)
		if err != nil {
			return results, Summary{}, fmt.Errorf("episode %d: %w", i+1, err)
		}
		res, err := exp.Run(ctx)
		if err != nil {
			return results, Summary{}, fmt.Errorf("episode %d run: %w", i+1, err)
		}

		results = append(results, EpisodeResult{Index: i, Config: cfg.Episode, Result: res})
		if progress != nil {
			progress(i+1, len(sc.Episodes))
		}
	}

	return results, Summarize(results), nil
}

// Summarize computes mean and standard deviation of the RMS tracking errors.
func Summarize(results []EpisodeResult) Summary {
	s := Summary{Episodes: len(results)}
	if len(results) == 0 {
		return s
	}

	cr := make([]float64, 0, len(results))
	tr := make([]float64, 0, len(results))
	for _, r := range results {
		cr = append(cr, r.Result.Metrics["cr_rms"])
		tr = append(tr, r.Result.Metrics["tr_rms"])
		if r.Result.Halted {
			s.Halted++
			if r.Result.HaltReason == reactor.HaltThermalRunaway.String() {
				s.Runaways++
			}
		}
	}

	if len(results) == 1 {
		s.CrRMSMean, s.TrRMSMean = cr[0], tr[0]
		return s
	}
	s.CrRMSMean, s.CrRMSStd = stat.MeanStdDev(cr, nil)
	s.TrRMSMean, s.TrRMSStd = stat.MeanStdDev(tr, nil)
	return s
}
