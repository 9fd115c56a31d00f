package optim

import (
	"context"
	"math"
	"testing"

	"github.com/san-kum/cstrsim/internal/experiment"
	"github.com/san-kum/cstrsim/internal/reactor"
)

func buildFixed(t *testing.T) func(map[string]float64) (*experiment.Experiment, error) {
	t.Helper()
	reg := experiment.NewRegistry()
	reg.Register("constant", func(p map[string]float64) (reactor.Controller, error) {
		d := p["delta"]
		return reactor.ControllerFunc(func(reactor.Observation) (float64, error) { return d, nil }), nil
	})
	return func(params map[string]float64) (*experiment.Experiment, error) {
		cfg := experiment.DefaultConfig()
		cfg.Controller = "constant"
		cfg.Params = params
		cfg.Iterations = 20
		cfg.Seed = 1
		cfg.Episode.Mode = reactor.ModeLowSteady
		return reg.Build(cfg)
	}
}

func TestGridSearchFindsSteadyAction(t *testing.T) {
	g := NewGridSearch([]string{"delta"}, [][]float64{{-2, 0, 2}})

	best, val, err := g.Search(context.Background(), buildFixed(t), "tr_rms")
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if best["delta"] != 0 {
		t.Errorf("best delta = %v, want 0", best["delta"])
	}
	if val > 0.1 {
		t.Errorf("best tr_rms = %v", val)
	}
}

func TestGridSearchPenalisesHalts(t *testing.T) {
	// +10 every interval runs away; -1 cools but stays safe
	g := NewGridSearch([]string{"delta"}, [][]float64{{10, -1}})

	best, _, err := g.Search(context.Background(), buildFixed(t), "control_effort")
	if err != nil {
		t.Fatal(err)
	}
	if best["delta"] != -1 {
		t.Errorf("best delta = %v, want -1", best["delta"])
	}
}

func TestGridSearchErrors(t *testing.T) {
	g := NewGridSearch([]string{"delta"}, [][]float64{{0}})
	if _, _, err := g.Search(context.Background(), buildFixed(t), "nope"); err == nil {
		t.Error("expected error for unknown metric")
	}

	mismatched := NewGridSearch([]string{"a", "b"}, [][]float64{{1}})
	if _, _, err := mismatched.Search(context.Background(), buildFixed(t), "tr_rms"); err == nil {
		t.Error("expected error for mismatched ranges")
	}
}

func TestLinspace(t *testing.T) {
	got := Linspace(0, 1, 5)
	want := []float64{0, 0.25, 0.5, 0.75, 1}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-12 {
			t.Errorf("Linspace[%d] = %v, want %v", i, got[i], want[i])
		}
	}
	if len(Linspace(3, 4, 1)) != 1 {
		t.Error("single point")
	}
}
