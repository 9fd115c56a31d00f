package experiment

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/san-kum/cstrsim/internal/metrics"
	"github.com/san-kum/cstrsim/internal/reactor"
)

// Observer is notified after every completed step.
type Observer interface {
	OnStep(obs reactor.Observation, delta float64, t float64)
}

type ObserverFunc func(obs reactor.Observation, delta float64, t float64)

func (f ObserverFunc) OnStep(obs reactor.Observation, delta float64, t float64) { f(obs, delta, t) }

// Result is the record of one episode. Observations and Times include the
// initial observation, so they hold one entry more than Actions. An
// adjustment the episode refused is kept in RejectedAction, not in Actions.
type Result struct {
	Observations   []reactor.Observation `json:"observations"`
	Actions        []float64             `json:"actions"`
	Times          []float64             `json:"times"`
	Metrics        map[string]float64    `json:"metrics"`
	Halted         bool                  `json:"halted"`
	HaltReason     string                `json:"halt_reason,omitempty"`
	Steps          int                   `json:"steps"`
	RejectedAction *float64              `json:"rejected_action,omitempty"`
}

// Runner drives one episode with a controller.
type Runner struct {
	ep        *reactor.Episode
	ctrl      reactor.Controller
	metrics   []metrics.Metric
	observers []Observer
	log       *zap.Logger
}

func NewRunner(ep *reactor.Episode, ctrl reactor.Controller, log *zap.Logger) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{
		ep:   ep,
		ctrl: ctrl,
		log:  log,
	}
}

func (r *Runner) AddMetric(m metrics.Metric)     { r.metrics = append(r.metrics, m) }
func (r *Runner) AddObserver(o Observer)         { r.observers = append(r.observers, o) }
func (r *Runner) Episode() *reactor.Episode      { return r.ep }
func (r *Runner) Controller() reactor.Controller { return r.ctrl }

// Run resets the episode with cfg and steps it until it halts or iterations
// intervals have elapsed. Controller failures are logged and replaced by a
// zero adjustment. Halting is part of the result, not an error.
func (r *Runner) Run(ctx context.Context, cfg reactor.EpisodeConfig, iterations int) (*Result, error) {
	obs, err := r.ep.Reset(cfg)
	if err != nil {
		return nil, err
	}
	if rc, ok := r.ctrl.(interface{ Reset() }); ok {
		rc.Reset()
	}
	for _, m := range r.metrics {
		m.Reset()
	}

	result := &Result{
		Observations: make([]reactor.Observation, 0, iterations+1),
		Actions:      make([]float64, 0, iterations),
		Times:        make([]float64, 0, iterations+1),
		Metrics:      make(map[string]float64),
	}
	result.Observations = append(result.Observations, obs)
	result.Times = append(result.Times, r.ep.Elapsed())

	for i := 0; i < iterations; i++ {
		select {
		case <-ctx.Done():
			r.finish(result)
			return result, ctx.Err()
		default:
		}

		if r.ep.Halted() {
			break
		}

		delta, err := r.ctrl.Compute(obs)
		if err != nil {
			r.log.Warn("controller failed, holding coolant",
				zap.String("episode", r.ep.ID()),
				zap.Int("step", i),
				zap.Error(err),
			)
			delta = 0
		}

		next, err := r.ep.Step(reactor.Action{CoolantDelta: delta})
		if err != nil {
			if errors.Is(err, reactor.ErrActuatorLimitExceeded) || errors.Is(err, reactor.ErrDiverged) {
				result.RejectedAction = &delta
				break
			}
			r.finish(result)
			return result, fmt.Errorf("step %d: %w", i, err)
		}
		obs = next
		t := r.ep.Elapsed()

		for _, m := range r.metrics {
			m.Observe(obs, delta, t)
		}
		for _, o := range r.observers {
			o.OnStep(obs, delta, t)
		}

		result.Observations = append(result.Observations, obs)
		result.Actions = append(result.Actions, delta)
		result.Times = append(result.Times, t)
		result.Steps++
	}

	r.finish(result)
	return result, nil
}

func (r *Runner) finish(result *Result) {
	for _, m := range r.metrics {
		result.Metrics[m.Name()] = m.Value()
	}
	result.Halted = r.ep.Halted()
	if result.Halted {
		result.HaltReason = r.ep.HaltReason().String()
	}
}
