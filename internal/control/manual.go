package control

import (
	"math"
	"sync"

	"github.com/san-kum/cstrsim/internal/reactor"
)

// ManualController returns an adjustment set by the operator. It is safe to
// set the adjustment from another goroutine while an episode runs.
type ManualController struct {
	mu    sync.Mutex
	delta float64
	// Hold keeps the adjustment for subsequent intervals; otherwise it is
	// consumed by the next Compute.
	Hold bool
}

func NewManual() *ManualController {
	return &ManualController{}
}

// SetDelta clamps d to the actuator limit and stores it.
func (c *ManualController) SetDelta(d float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.delta = math.Max(-reactor.MaxCoolantDelta, math.Min(reactor.MaxCoolantDelta, d))
}

// Nudge adds d to the pending adjustment.
func (c *ManualController) Nudge(d float64) {
	c.mu.Lock()
	cur := c.delta
	c.mu.Unlock()
	c.SetDelta(cur + d)
}

func (c *ManualController) Delta() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.delta
}

func (c *ManualController) Compute(reactor.Observation) (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	d := c.delta
	if !c.Hold {
		c.delta = 0
	}
	return d, nil
}

func (c *ManualController) Reset() {
	c.SetDelta(0)
}
