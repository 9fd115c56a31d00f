package experiment

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/san-kum/cstrsim/internal/control"
	"github.com/san-kum/cstrsim/internal/metrics"
	"github.com/san-kum/cstrsim/internal/reactor"
)

func newEpisode(t *testing.T) *reactor.Episode {
	t.Helper()
	ep, err := reactor.New()
	if err != nil {
		t.Fatalf("reactor.New: %v", err)
	}
	return ep
}

func lowSteady() reactor.EpisodeConfig {
	cfg := reactor.DefaultEpisodeConfig()
	cfg.Mode = reactor.ModeLowSteady
	return cfg
}

func TestRunnerSteadyEpisode(t *testing.T) {
	r := NewRunner(newEpisode(t), control.NewNone(), nil)
	r.AddMetric(metrics.NewConcentrationRMS())
	r.AddMetric(metrics.NewTemperatureRMS())

	calls := 0
	r.AddObserver(ObserverFunc(func(reactor.Observation, float64, float64) { calls++ }))

	res, err := r.Run(context.Background(), lowSteady(), DefaultIterations)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if res.Steps != 90 || len(res.Actions) != 90 {
		t.Errorf("expected 90 steps, got %d (%d actions)", res.Steps, len(res.Actions))
	}
	if len(res.Observations) != 91 || len(res.Times) != 91 {
		t.Errorf("expected 91 observations, got %d", len(res.Observations))
	}
	if res.Times[90] != 90 {
		t.Errorf("final time = %v, want 90", res.Times[90])
	}
	if res.Halted {
		t.Errorf("steady episode halted: %s", res.HaltReason)
	}
	if calls != 90 {
		t.Errorf("observer called %d times, want 90", calls)
	}
	if res.Metrics["cr_rms"] > 0.01 || res.Metrics["tr_rms"] > 0.1 {
		t.Errorf("steady tracking error too large: %v", res.Metrics)
	}
}

func TestRunnerStopsOnRunaway(t *testing.T) {
	ctrl, _ := control.NewFixedPolicy("increase_Tc")
	r := NewRunner(newEpisode(t), ctrl, nil)

	res, err := r.Run(context.Background(), lowSteady(), DefaultIterations)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if !res.Halted || res.HaltReason != reactor.HaltThermalRunaway.String() {
		t.Fatalf("expected thermal runaway, got halted=%v reason=%q", res.Halted, res.HaltReason)
	}
	if res.Steps >= DefaultIterations {
		t.Errorf("episode should stop early, ran %d steps", res.Steps)
	}
}

func TestRunnerActuatorViolation(t *testing.T) {
	r := NewRunner(newEpisode(t), control.NewFixed(15), nil)

	res, err := r.Run(context.Background(), lowSteady(), 10)
	if err != nil {
		t.Fatalf("actuator violation should end the episode, not fail the run: %v", err)
	}
	if !res.Halted || res.HaltReason != reactor.HaltActuatorLimit.String() {
		t.Errorf("halted=%v reason=%q", res.Halted, res.HaltReason)
	}
	if res.Steps != 0 || len(res.Actions) != 0 || len(res.Observations) != 1 || len(res.Times) != 1 {
		t.Errorf("steps=%d actions=%d observations=%d times=%d",
			res.Steps, len(res.Actions), len(res.Observations), len(res.Times))
	}
	if res.RejectedAction == nil || *res.RejectedAction != 15 {
		t.Errorf("expected rejected action 15, got %v", res.RejectedAction)
	}
}

func TestRunnerRejectedActionAfterSteps(t *testing.T) {
	calls := 0
	ctrl := reactor.ControllerFunc(func(reactor.Observation) (float64, error) {
		calls++
		if calls == 3 {
			return -20, nil
		}
		return 1, nil
	})
	r := NewRunner(newEpisode(t), ctrl, nil)

	res, err := r.Run(context.Background(), lowSteady(), 10)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if res.Steps != 2 || len(res.Actions) != 2 {
		t.Fatalf("steps=%d actions=%d, want 2 applied", res.Steps, len(res.Actions))
	}
	if len(res.Observations) != len(res.Actions)+1 || len(res.Times) != len(res.Actions)+1 {
		t.Errorf("observations=%d times=%d for %d actions",
			len(res.Observations), len(res.Times), len(res.Actions))
	}
	if res.RejectedAction == nil || *res.RejectedAction != -20 {
		t.Errorf("expected rejected action -20, got %v", res.RejectedAction)
	}
}

func TestRunnerControllerFailure(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	failing := reactor.ControllerFunc(func(reactor.Observation) (float64, error) {
		return 7, errors.New("brain offline")
	})
	r := NewRunner(newEpisode(t), failing, zap.New(core))

	res, err := r.Run(context.Background(), lowSteady(), 5)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	for i, a := range res.Actions {
		if a != 0 {
			t.Errorf("action %d = %v, want 0 after controller failure", i, a)
		}
	}
	if n := logs.FilterMessage("controller failed, holding coolant").Len(); n != 5 {
		t.Errorf("logged %d controller failures, want 5", n)
	}
}

func TestRunnerCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := NewRunner(newEpisode(t), control.NewNone(), nil)
	res, err := r.Run(ctx, lowSteady(), 10)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if res == nil || res.Steps != 0 {
		t.Errorf("expected an empty partial result, got %+v", res)
	}
}

func TestRunnerInvalidConfig(t *testing.T) {
	r := NewRunner(newEpisode(t), control.NewNone(), nil)
	_, err := r.Run(context.Background(), reactor.EpisodeConfig{Mode: 9}, 10)
	if !errors.Is(err, reactor.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestExperimentNotSetup(t *testing.T) {
	if _, err := New(DefaultConfig()).Run(context.Background()); err == nil {
		t.Error("expected error for experiment without setup")
	}
}
