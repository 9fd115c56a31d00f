package metrics

import (
	"math"

	"github.com/san-kum/cstrsim/internal/reactor"
)

// Safety is the fraction of observations with the reactor temperature below
// threshold.
type Safety struct {
	name       string
	threshold  float64
	violations int
	samples    int
}

func NewSafety(threshold float64) *Safety {
	return &Safety{
		name:      "safety",
		threshold: threshold,
	}
}

func (s *Safety) Name() string {
	return s.name
}

func (s *Safety) Observe(obs reactor.Observation, _ float64, _ float64) {
	s.samples++
	if obs.Tr >= s.threshold || math.IsNaN(obs.Tr) {
		s.violations++
	}
}

func (s *Safety) Value() float64 {
	if s.samples == 0 {
		return 1.0
	}
	return 1.0 - float64(s.violations)/float64(s.samples)
}

func (s *Safety) Reset() {
	s.violations = 0
	s.samples = 0
}

// PeakTemperature is the highest reactor temperature observed.
type PeakTemperature struct {
	peak float64
	seen bool
}

func NewPeakTemperature() *PeakTemperature {
	return &PeakTemperature{}
}

func (p *PeakTemperature) Name() string { return "max_tr" }

func (p *PeakTemperature) Observe(obs reactor.Observation, _ float64, _ float64) {
	if !p.seen || obs.Tr > p.peak {
		p.peak = obs.Tr
		p.seen = true
	}
}

func (p *PeakTemperature) Value() float64 { return p.peak }

func (p *PeakTemperature) Reset() {
	p.peak = 0
	p.seen = false
}
