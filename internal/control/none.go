package control

import "github.com/san-kum/cstrsim/internal/reactor"

// None never adjusts the coolant.
type None struct{}

func NewNone() *None {
	return &None{}
}

func (n *None) Compute(reactor.Observation) (float64, error) {
	return 0, nil
}
