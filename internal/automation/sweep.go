package automation

import (
	"context"
	"fmt"

	"github.com/san-kum/cstrsim/internal/experiment"
)

// ParameterSweep runs the same experiment across a range of one parameter.
// Param is an episode field (noise, interval, substeps) or a controller
// parameter.
type ParameterSweep struct {
	Param    string
	Min      float64
	Max      float64
	NumSteps int
}

type SweepResult struct {
	Value   float64
	Metrics map[string]float64
	Halted  bool
	Steps   int
}

// RunSweep executes a parameter sweep
func RunSweep(ctx context.Context, sweep ParameterSweep, registry *experiment.Registry, base experiment.Config, progress Progress) ([]SweepResult, error) {
	if sweep.NumSteps < 1 {
		return nil, fmt.Errorf("sweep needs at least one step")
	}
	results := make([]SweepResult, 0, sweep.NumSteps)

	paramStep := 0.0
	if sweep.NumSteps > 1 {
		paramStep = (sweep.Max - sweep.Min) / float64(sweep.NumSteps-1)
	}

	for i := 0; i < sweep.NumSteps; i++ {
		val := sweep.Min + float64(i)*paramStep
		cfg := base
		cfg.Params = make(map[string]float64, len(base.Params)+1)
		for k, v := range base.Params {
			cfg.Params[k] = v
		}

		switch sweep.Param {
		case "noise":
			cfg.Episode.NoiseFraction = val
		case "interval":
			cfg.Episode.Interval = val
		case "substeps":
			cfg.Episode.Substeps = int(val)
		default:
			cfg.Params[sweep.Param] = val
		}

		exp, err := registry.Build(cfg)
		if err != nil {
			return results, fmt.Errorf("sweep %s=%g: %w", sweep.Param, val, err)
		}
		res, err := exp.Run(ctx)
		if err != nil {
			return results, fmt.Errorf("sweep %s=%g: %w", sweep.Param, val, err)
		}

		results = append(results, SweepResult{
			Value:   val,
			Metrics: res.Metrics,
			Halted:  res.Halted,
			Steps:   res.Steps,
		})
		if progress != nil {
			progress(i+1, sweep.NumSteps)
		}
	}

	return results, nil
}
