package optim

import (
	"context"
	"errors"
	"math"

	"github.com/san-kum/cstrsim/internal/experiment"
)

// GridSearch evaluates every combination of parameter values and keeps the
// one minimising a result metric.
type GridSearch struct {
	paramNames []string
	ranges     [][]float64
}

func NewGridSearch(params []string, ranges [][]float64) *GridSearch {
	return &GridSearch{paramNames: params, ranges: ranges}
}

// Candidate is one evaluated parameter combination.
type Candidate struct {
	Params map[string]float64
	Value  float64
	Halted bool
}

// Search returns the best parameters and their metric value. Combinations
// whose episode halts are scored +Inf so a safe controller always wins.
func (g *GridSearch) Search(
	ctx context.Context,
	buildExperiment func(params map[string]float64) (*experiment.Experiment, error),
	metricName string,
) (map[string]float64, float64, error) {
	if len(g.paramNames) != len(g.ranges) {
		return nil, 0, errors.New("grid search: one range per parameter required")
	}

	best := math.Inf(1)
	var bestParams map[string]float64
	var firstErr error

	g.searchRecursive(ctx, 0, make(map[string]float64), func(c Candidate, err error) {
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			return
		}
		if bestParams == nil || c.Value < best {
			best = c.Value
			bestParams = c.Params
		}
	}, buildExperiment, metricName)

	if err := ctx.Err(); err != nil {
		return bestParams, best, err
	}
	if bestParams == nil {
		if firstErr != nil {
			return nil, 0, firstErr
		}
		return nil, 0, errors.New("grid search: empty grid")
	}
	return bestParams, best, nil
}

func (g *GridSearch) searchRecursive(
	ctx context.Context,
	depth int,
	current map[string]float64,
	visit func(Candidate, error),
	buildExperiment func(map[string]float64) (*experiment.Experiment, error),
	metricName string,
) {
	if ctx.Err() != nil {
		return
	}
	if depth == len(g.paramNames) {
		exp, err := buildExperiment(current)
		if err != nil {
			visit(Candidate{}, err)
			return
		}

		result, err := exp.Run(ctx)
		if err != nil {
			visit(Candidate{}, err)
			return
		}

		val, ok := result.Metrics[metricName]
		if !ok {
			visit(Candidate{}, errors.New("grid search: unknown metric "+metricName))
			return
		}
		if result.Halted {
			val = math.Inf(1)
		}
		visit(Candidate{Params: current, Value: val, Halted: result.Halted}, nil)
		return
	}

	paramName := g.paramNames[depth]
	for _, val := range g.ranges[depth] {
		newParams := make(map[string]float64)
		for k, v := range current {
			newParams[k] = v
		}
		newParams[paramName] = val

		g.searchRecursive(ctx, depth+1, newParams, visit, buildExperiment, metricName)
	}
}

// Linspace returns n evenly spaced values over [min, max].
func Linspace(min, max float64, n int) []float64 {
	if n <= 1 {
		return []float64{min}
	}
	out := make([]float64, n)
	step := (max - min) / float64(n-1)
	for i := range out {
		out[i] = min + float64(i)*step
	}
	return out
}
