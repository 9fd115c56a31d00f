package control

import "github.com/san-kum/cstrsim/internal/reactor"

// StateFeedback computes u = -K [Cr - Cref, Tr - Tref], clamped to the
// actuator limit.
type StateFeedback struct {
	K [2]float64
}

var defaultFeedbackGains = [2]float64{-1.5, 0.6}

func NewStateFeedback(k [2]float64) *StateFeedback {
	return &StateFeedback{K: k}
}

func NewDefaultStateFeedback() *StateFeedback {
	return NewStateFeedback(defaultFeedbackGains)
}

func (s *StateFeedback) Compute(obs reactor.Observation) (float64, error) {
	u := -s.K[0]*(obs.Cr-obs.Cref) - s.K[1]*(obs.Tr-obs.Tref)
	return clamp(u), nil
}

func (s *StateFeedback) GetParams() map[string]float64 {
	return map[string]float64{"Kc": s.K[0], "Kt": s.K[1]}
}

func (s *StateFeedback) SetParam(name string, value float64) {
	switch name {
	case "Kc":
		s.K[0] = value
	case "Kt":
		s.K[1] = value
	}
}
