package automation

import (
	"context"
	"fmt"
	"sync"

	"github.com/san-kum/cstrsim/internal/dynamo"
	"github.com/san-kum/cstrsim/internal/experiment"
)

// MonteCarloConfig runs Runs independent episodes of base, each seeded with
// Seed+i.
type MonteCarloConfig struct {
	Base experiment.Config
	Runs int
	Seed int64
}

type MonteCarloResult struct {
	Summary
	Runs []*experiment.Result
}

// RunMonteCarlo executes the runs in parallel. Every run owns its episode,
// controller and random source, so results are reproducible for a given seed
// regardless of scheduling.
func RunMonteCarlo(ctx context.Context, cfg MonteCarloConfig, registry *experiment.Registry, progress Progress) (*MonteCarloResult, error) {
	if cfg.Runs < 1 {
		return nil, fmt.Errorf("monte carlo needs at least one run")
	}

	results := make([]*experiment.Result, cfg.Runs)
	errs := make([]error, cfg.Runs)

	var (
		mu   sync.Mutex
		done int
	)

	dynamo.ParallelFor(cfg.Runs, 1, func(start, end int) {
		for i := start; i < end; i++ {
			run := cfg.Base
			run.Seed = cfg.Seed + int64(i) + 1

			exp, err := registry.Build(run)
			if err != nil {
				errs[i] = err
				continue
			}
			results[i], errs[i] = exp.Run(ctx)

			if progress != nil {
				mu.Lock()
				done++
				progress(done, cfg.Runs)
				mu.Unlock()
			}
		}
	})

	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("run %d: %w", i, err)
		}
	}

	episodes := make([]EpisodeResult, cfg.Runs)
	for i, r := range results {
		episodes[i] = EpisodeResult{Index: i, Config: cfg.Base.Episode, Result: r}
	}

	return &MonteCarloResult{
		Summary: Summarize(episodes),
		Runs:    results,
	}, nil
}
