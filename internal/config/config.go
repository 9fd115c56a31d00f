package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/cstrsim/internal/experiment"
	"github.com/san-kum/cstrsim/internal/physics"
	"github.com/san-kum/cstrsim/internal/reactor"
)

const (
	DefaultIterations = experiment.DefaultIterations
	DefaultKp         = 0.5
	DefaultKi         = 0.02
	DefaultKd         = 0.0
	DefaultHorizon    = 3
)

type Config struct {
	Controller       string                `yaml:"controller"`
	Integrator       string                `yaml:"integrator"`
	Iterations       int                   `yaml:"iterations"`
	Seed             int64                 `yaml:"seed"`
	Episode          reactor.EpisodeConfig `yaml:"episode"`
	ControllerParams ControllerConfig      `yaml:"controller_params"`
	Constants        physics.Constants     `yaml:"constants"`
	BrainURL         string                `yaml:"brain_url,omitempty"`
	Classifier       string                `yaml:"classifier,omitempty"`
	DataDir          string                `yaml:"data_dir,omitempty"`
}

type ControllerConfig struct {
	Kp      float64 `yaml:"kp"`
	Ki      float64 `yaml:"ki"`
	Kd      float64 `yaml:"kd"`
	Kc      float64 `yaml:"kc"`
	Kt      float64 `yaml:"kt"`
	Horizon int     `yaml:"horizon"`
	Legacy  bool    `yaml:"legacy_clamp"`
}

func DefaultConfig() *Config {
	return &Config{
		Controller: "do_nothing",
		Integrator: "rk45",
		Iterations: DefaultIterations,
		Episode:    reactor.DefaultEpisodeConfig(),
		Constants:  physics.DefaultConstants(),
		ControllerParams: ControllerConfig{
			Kp:      DefaultKp,
			Ki:      DefaultKi,
			Kd:      DefaultKd,
			Kc:      -1.5,
			Kt:      0.6,
			Horizon: DefaultHorizon,
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) GetControllerParams() map[string]float64 {
	legacy := 0.0
	if c.ControllerParams.Legacy {
		legacy = 1
	}
	return map[string]float64{
		"kp":      c.ControllerParams.Kp,
		"ki":      c.ControllerParams.Ki,
		"kd":      c.ControllerParams.Kd,
		"kc":      c.ControllerParams.Kc,
		"kt":      c.ControllerParams.Kt,
		"horizon": float64(c.ControllerParams.Horizon),
		"legacy":  legacy,
		"dt":      c.Episode.Interval,
		"seed":    float64(c.Seed),
	}
}

// Experiment converts the file-level configuration into a runnable one.
func (c *Config) Experiment() experiment.Config {
	return experiment.Config{
		Controller: c.Controller,
		Integrator: c.Integrator,
		Params:     c.GetControllerParams(),
		Episode:    c.Episode,
		Iterations: c.Iterations,
		Seed:       c.Seed,
	}
}
