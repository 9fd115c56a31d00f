package control

import (
	"fmt"
	"sort"

	"github.com/san-kum/cstrsim/internal/reactor"
)

var fixedPolicies = map[string]float64{
	"do_nothing":  0,
	"lower_Tc":    -reactor.MaxCoolantDelta,
	"increase_Tc": reactor.MaxCoolantDelta,
}

// Fixed applies the same adjustment every interval.
type Fixed struct {
	Delta float64
}

func NewFixed(delta float64) *Fixed {
	return &Fixed{Delta: delta}
}

// NewFixedPolicy returns one of the named fixed policies.
func NewFixedPolicy(name string) (*Fixed, error) {
	d, ok := fixedPolicies[name]
	if !ok {
		return nil, fmt.Errorf("unknown fixed policy: %s", name)
	}
	return NewFixed(d), nil
}

func FixedPolicies() []string {
	names := make([]string, 0, len(fixedPolicies))
	for n := range fixedPolicies {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (f *Fixed) Compute(reactor.Observation) (float64, error) {
	return f.Delta, nil
}
