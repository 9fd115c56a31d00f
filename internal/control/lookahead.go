package control

import (
	"math"

	"github.com/san-kum/cstrsim/internal/physics"
	"github.com/san-kum/cstrsim/internal/reactor"
)

// Lookahead is a model-based Optimizer. It simulates each candidate coolant
// target over Horizon intervals with the reactor model and picks the one with
// the smallest normalized tracking cost against the current reference.
type Lookahead struct {
	Horizon  int
	Interval float64
	Substeps int
	Step     float64
	WeightC  float64
	WeightT  float64

	solver *reactor.Solver
}

func NewLookahead(c physics.Constants) *Lookahead {
	return &Lookahead{
		Horizon:  3,
		Interval: 1,
		Substeps: 2,
		Step:     0.5,
		WeightC:  1,
		WeightT:  1,
		solver:   reactor.NewSolver(physics.NewCSTR(c), nil),
	}
}

func (l *Lookahead) Optimize(obs reactor.Observation) (float64, error) {
	best, bestCost := obs.Tc, math.Inf(1)
	for d := -reactor.MaxCoolantDelta; d <= reactor.MaxCoolantDelta+1e-9; d += l.Step {
		cost, err := l.cost(obs, d)
		if err != nil {
			continue
		}
		if cost < bestCost {
			best, bestCost = obs.Tc+d, cost
		}
	}
	return best, nil
}

func (l *Lookahead) cost(obs reactor.Observation, d float64) (float64, error) {
	st := reactor.ReactorState{Concentration: obs.Cr, Temperature: obs.Tr, Coolant: obs.Tc}
	total := 0.0
	for k := 0; k < l.Horizon; k++ {
		delta := 0.0
		if k == 0 {
			delta = d
		}
		next, err := l.solver.Advance(st, delta, l.Interval, l.Substeps)
		if err != nil {
			return 0, err
		}
		st = next
		ec := (st.Concentration - obs.Cref) / reactor.ConcentrationRange
		et := (st.Temperature - obs.Tref) / reactor.TemperatureRange
		total += l.WeightC*ec*ec + l.WeightT*et*et
		if st.Temperature >= reactor.ThermalRunawayTemperature {
			total += 1e6
		}
	}
	return total, nil
}
