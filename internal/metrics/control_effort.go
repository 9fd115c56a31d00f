package metrics

import (
	"math"

	"github.com/san-kum/cstrsim/internal/reactor"
)

// ControlEffort is the mean absolute coolant adjustment.
type ControlEffort struct {
	name    string
	sum     float64
	samples int
}

func NewControlEffort() *ControlEffort {
	return &ControlEffort{
		name: "control_effort",
	}
}

func (c *ControlEffort) Name() string {
	return c.name
}

func (c *ControlEffort) Observe(_ reactor.Observation, delta float64, _ float64) {
	c.sum += math.Abs(delta)
	c.samples++
}

func (c *ControlEffort) Value() float64 {
	if c.samples == 0 {
		return 0
	}
	return c.sum / float64(c.samples)
}

func (c *ControlEffort) Reset() {
	c.sum = 0
	c.samples = 0
}
