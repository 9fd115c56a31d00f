package config

import (
	"sort"

	"github.com/san-kum/cstrsim/internal/reactor"
)

func preset(controller string, mode reactor.Mode, mutate func(*Config)) *Config {
	cfg := DefaultConfig()
	cfg.Controller = controller
	cfg.Episode.Mode = mode
	if mutate != nil {
		mutate(cfg)
	}
	return cfg
}

var Presets = map[string]*Config{
	"steady-low":  preset("do_nothing", reactor.ModeLowSteady, nil),
	"steady-high": preset("do_nothing", reactor.ModeHighSteady, nil),
	"transition":  preset("pid", reactor.ModeTransition, nil),
	"immediate":   preset("pid", reactor.ModeImmediateTransition, nil),
	"noisy": preset("pid", reactor.ModeTransition, func(c *Config) {
		c.Episode.NoiseFraction = 0.05
	}),
	"feedback": preset("feedback", reactor.ModeTransition, nil),
	"mpc":      preset("mpc", reactor.ModeTransition, nil),
	"runaway":  preset("increase_Tc", reactor.ModeLowSteady, nil),
	"random": preset("random", reactor.ModeTransition, func(c *Config) {
		c.Seed = 1
	}),
	// Reproduces the original training harness: fixed 292 K initial coolant,
	// noise feeding back into the state and the historical MPC clamp.
	"legacy": preset("mpc", reactor.ModeTransition, func(c *Config) {
		c.Episode.InitialCoolant = 292
		c.Episode.ProcessNoise = true
		c.ControllerParams.Legacy = true
	}),
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(name string) *Config {
	cfg, ok := Presets[name]
	if !ok {
		return nil
	}
	c := *cfg
	return &c
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
