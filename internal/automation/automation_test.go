package automation

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/san-kum/cstrsim/internal/experiment"
	"github.com/san-kum/cstrsim/internal/reactor"
)

func TestLoadScenario(t *testing.T) {
	sc, err := LoadScenario("testdata/assess.yaml")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if sc.Iterations != 30 || len(sc.Episodes) != 3 {
		t.Fatalf("iterations=%d episodes=%d", sc.Iterations, len(sc.Episodes))
	}

	first := sc.Episodes[0].Config()
	if first.Mode != reactor.ModeLowSteady || first.Interval != 1 || first.Substeps != 2 {
		t.Errorf("defaults not applied: %+v", first)
	}
	second := sc.Episodes[1].Config()
	if second.Mode != reactor.ModeTransition || second.NoiseFraction != 0.02 {
		t.Errorf("second episode = %+v", second)
	}
}

func TestLoadLegacyScenario(t *testing.T) {
	sc, err := LoadScenario("testdata/assess_legacy.json")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if sc.Iterations != experiment.DefaultIterations {
		t.Errorf("iterations = %d, want default", sc.Iterations)
	}
	if len(sc.Episodes) != 2 {
		t.Fatalf("episodes = %d", len(sc.Episodes))
	}
	if cfg := sc.Episodes[1].Config(); cfg.Interval != 0.5 || cfg.NoiseFraction != 0.05 {
		t.Errorf("legacy episode = %+v", cfg)
	}
}

func TestLoadScenarioInvalid(t *testing.T) {
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("episode_configurations:\n  - Cref_signal: 8\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadScenario(bad); !errors.Is(err, reactor.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}

	empty := filepath.Join(dir, "empty.yaml")
	if err := os.WriteFile(empty, []byte("name: nothing\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadScenario(empty); err == nil {
		t.Error("expected error for scenario without episodes")
	}
}

func TestRunScenario(t *testing.T) {
	sc, err := LoadScenario("testdata/assess.yaml")
	if err != nil {
		t.Fatal(err)
	}

	base := experiment.DefaultConfig()
	base.Seed = 1

	var calls []int
	results, summary, err := RunScenario(context.Background(), sc, experiment.NewRegistry(), base,
		func(done, total int) {
			if total != 3 {
				t.Errorf("total = %d", total)
			}
			calls = append(calls, done)
		})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(results) != 3 || summary.Episodes != 3 {
		t.Fatalf("results=%d summary=%+v", len(results), summary)
	}
	if len(calls) != 3 || calls[2] != 3 {
		t.Errorf("progress calls = %v", calls)
	}
	for _, r := range results {
		if r.Result.Steps != 30 {
			t.Errorf("episode %d ran %d steps", r.Index, r.Result.Steps)
		}
	}
	if summary.CrRMSMean <= 0 || summary.CrRMSStd <= 0 {
		t.Errorf("unexpected summary %+v", summary)
	}
}

func TestSummarize(t *testing.T) {
	mk := func(cr, tr float64, reason string) EpisodeResult {
		return EpisodeResult{Result: &experiment.Result{
			Metrics:    map[string]float64{"cr_rms": cr, "tr_rms": tr},
			Halted:     reason != "",
			HaltReason: reason,
		}}
	}
	s := Summarize([]EpisodeResult{
		mk(1, 10, ""),
		mk(3, 30, reactor.HaltThermalRunaway.String()),
		mk(2, 20, reactor.HaltActuatorLimit.String()),
	})

	if s.CrRMSMean != 2 || s.TrRMSMean != 20 {
		t.Errorf("means = %v, %v", s.CrRMSMean, s.TrRMSMean)
	}
	if s.CrRMSStd != 1 || s.TrRMSStd != 10 {
		t.Errorf("std = %v, %v", s.CrRMSStd, s.TrRMSStd)
	}
	if s.Halted != 2 || s.Runaways != 1 {
		t.Errorf("halted=%d runaways=%d", s.Halted, s.Runaways)
	}

	if one := Summarize([]EpisodeResult{mk(4, 5, "")}); one.CrRMSMean != 4 || one.CrRMSStd != 0 {
		t.Errorf("single summary = %+v", one)
	}
}

func TestRunSweep(t *testing.T) {
	base := experiment.DefaultConfig()
	base.Iterations = 10
	base.Seed = 2
	base.Episode.Mode = reactor.ModeLowSteady

	results, err := RunSweep(context.Background(), ParameterSweep{Param: "noise", Min: 0, Max: 0.1, NumSteps: 3},
		experiment.NewRegistry(), base, nil)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("results = %d", len(results))
	}
	if results[1].Value != 0.05 {
		t.Errorf("middle value = %v", results[1].Value)
	}
	if !(results[0].Metrics["cr_rms"] < results[2].Metrics["cr_rms"]) {
		t.Errorf("noise should increase tracking error: %v vs %v",
			results[0].Metrics["cr_rms"], results[2].Metrics["cr_rms"])
	}

	if _, err := RunSweep(context.Background(), ParameterSweep{Param: "noise"}, experiment.NewRegistry(), base, nil); err == nil {
		t.Error("expected error for zero steps")
	}
}

func TestRunMonteCarlo(t *testing.T) {
	base := experiment.DefaultConfig()
	base.Controller = "random"
	base.Iterations = 15
	base.Episode.NoiseFraction = 0.05

	cfg := MonteCarloConfig{Base: base, Runs: 8, Seed: 100}

	var done int
	a, err := RunMonteCarlo(context.Background(), cfg, experiment.NewRegistry(), func(d, total int) { done = d })
	if err != nil {
		t.Fatalf("monte carlo: %v", err)
	}
	if len(a.Runs) != 8 || a.Episodes != 8 || done != 8 {
		t.Fatalf("runs=%d episodes=%d done=%d", len(a.Runs), a.Episodes, done)
	}

	b, err := RunMonteCarlo(context.Background(), cfg, experiment.NewRegistry(), nil)
	if err != nil {
		t.Fatal(err)
	}
	for i := range a.Runs {
		if a.Runs[i].Metrics["cr_rms"] != b.Runs[i].Metrics["cr_rms"] {
			t.Errorf("run %d not reproducible: %v vs %v", i, a.Runs[i].Metrics["cr_rms"], b.Runs[i].Metrics["cr_rms"])
		}
	}

	if _, err := RunMonteCarlo(context.Background(), MonteCarloConfig{Base: base}, experiment.NewRegistry(), nil); err == nil {
		t.Error("expected error for zero runs")
	}
}
