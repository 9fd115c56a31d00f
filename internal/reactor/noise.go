package reactor

// RandSource yields uniform samples in [0, 1). *rand.Rand satisfies it.
type RandSource interface {
	Float64() float64
}

// Noise amplitudes at fraction 1, the span between the two steady states.
const (
	ConcentrationRange = LowSteadyConcentration - HighSteadyConcentration
	TemperatureRange   = HighSteadyTemperature - LowSteadyTemperature
)

// NoiseInjector offsets a clean state by independent uniform draws in
// [-f*range, f*range] per component.
type NoiseInjector struct {
	fraction float64
	rng      RandSource
}

func NewNoiseInjector(fraction float64, rng RandSource) *NoiseInjector {
	return &NoiseInjector{fraction: fraction, rng: rng}
}

func (n *NoiseInjector) Fraction() float64 { return n.fraction }

// Apply returns the perturbed concentration and temperature. No entropy is
// consumed when the fraction is zero.
func (n *NoiseInjector) Apply(concentration, temperature float64) (float64, float64) {
	if n.fraction == 0 || n.rng == nil {
		return concentration, temperature
	}
	dc := n.fraction * (2*n.rng.Float64() - 1) * ConcentrationRange
	dt := n.fraction * (2*n.rng.Float64() - 1) * TemperatureRange
	return concentration + dc, temperature + dt
}
