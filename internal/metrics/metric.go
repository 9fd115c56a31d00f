package metrics

import "github.com/san-kum/cstrsim/internal/reactor"

// Metric accumulates a scalar score over the observations of one episode.
type Metric interface {
	Name() string
	Observe(obs reactor.Observation, delta float64, t float64)
	Value() float64
	Reset()
}

// Standard returns the metrics recorded for every run.
func Standard() []Metric {
	return []Metric{
		NewConcentrationRMS(),
		NewTemperatureRMS(),
		NewControlEffort(),
		NewSafety(reactor.ThermalRunawayTemperature - 10),
		NewPeakTemperature(),
	}
}
