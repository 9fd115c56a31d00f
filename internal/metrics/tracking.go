package metrics

import (
	"math"

	"github.com/san-kum/cstrsim/internal/reactor"
)

// TrackingRMS is the root mean square of the gap between a measured value
// and its reference.
type TrackingRMS struct {
	name    string
	pick    func(reactor.Observation) (float64, float64)
	sumSq   float64
	samples int
}

func NewConcentrationRMS() *TrackingRMS {
	return &TrackingRMS{
		name: "cr_rms",
		pick: func(o reactor.Observation) (float64, float64) { return o.Cr, o.Cref },
	}
}

func NewTemperatureRMS() *TrackingRMS {
	return &TrackingRMS{
		name: "tr_rms",
		pick: func(o reactor.Observation) (float64, float64) { return o.Tr, o.Tref },
	}
}

func (m *TrackingRMS) Name() string { return m.name }

func (m *TrackingRMS) Observe(obs reactor.Observation, _ float64, _ float64) {
	v, ref := m.pick(obs)
	m.sumSq += (v - ref) * (v - ref)
	m.samples++
}

func (m *TrackingRMS) Value() float64 {
	if m.samples == 0 {
		return 0
	}
	return math.Sqrt(m.sumSq / float64(m.samples))
}

func (m *TrackingRMS) Reset() {
	m.sumSq = 0
	m.samples = 0
}
