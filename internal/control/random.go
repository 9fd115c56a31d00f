package control

import (
	"math/rand"

	"github.com/san-kum/cstrsim/internal/reactor"
)

// Random draws integer adjustments uniformly from [-10, 10).
type Random struct {
	rng *rand.Rand
}

func NewRandom(seed int64) *Random {
	return &Random{rng: rand.New(rand.NewSource(seed))}
}

func (r *Random) Compute(reactor.Observation) (float64, error) {
	return float64(r.rng.Intn(20) - 10), nil
}
