package analysis

import (
	"math"
	"strings"

	"github.com/san-kum/cstrsim/internal/dynamo"
	"github.com/san-kum/cstrsim/internal/physics"
)

// Temperature window scanned for equilibria, in K.
const (
	scanMin   = 250.0
	scanMax   = 500.0
	scanSteps = 5000
)

// SteadyState is an equilibrium of the open-loop reactor.
type SteadyState struct {
	Concentration float64
	Temperature   float64
	Coolant       float64
	Stable        bool
	Eigenvalues   []complex128
	// Residual is the norm of (dC/dt, dT/dt) at the located point.
	Residual float64
}

// equilibriumConcentration solves the mass balance for C at temperature T.
func equilibriumConcentration(plant *physics.CSTR, temperature float64) float64 {
	c := plant.Constants()
	q := c.FlowRate / c.Volume
	k := plant.ReactionRate(1, temperature)
	return q * c.FeedConcentration / (q + k)
}

func energyResidual(plant *physics.CSTR, temperature, coolant float64) float64 {
	_, dT := plant.Rates(equilibriumConcentration(plant, temperature), temperature, coolant, 0)
	return dT
}

// SteadyStates returns every equilibrium for the coolant temperature, in
// ascending reactor temperature.
func SteadyStates(plant *physics.CSTR, coolant float64) []SteadyState {
	var states []SteadyState

	h := (scanMax - scanMin) / scanSteps
	prevT := scanMin
	prev := energyResidual(plant, prevT, coolant)
	for i := 1; i <= scanSteps; i++ {
		t := scanMin + float64(i)*h
		v := energyResidual(plant, t, coolant)
		if prev == 0 || prev*v < 0 {
			root := bisect(plant, coolant, prevT, t, prev)
			c := equilibriumConcentration(plant, root)
			lin := Linearize(plant, c, root, coolant)
			states = append(states, SteadyState{
				Concentration: c,
				Temperature:   root,
				Coolant:       coolant,
				Stable:        lin.Stable,
				Eigenvalues:   lin.Eigenvalues,
				Residual:      plant.Derive(dynamo.State{c, root}, dynamo.Control{coolant, 0}, 0).Norm(),
			})
		}
		prevT, prev = t, v
	}
	return states
}

func bisect(plant *physics.CSTR, coolant, a, b, fa float64) float64 {
	for i := 0; i < 100 && b-a > 1e-10; i++ {
		m := 0.5 * (a + b)
		fm := energyResidual(plant, m, coolant)
		if fa*fm <= 0 {
			b = m
		} else {
			a, fa = m, fm
		}
	}
	return 0.5 * (a + b)
}

// MapPoint holds the equilibria found for one coolant temperature.
type MapPoint struct {
	Coolant float64
	States  []SteadyState
}

// SteadyStateMap sweeps the coolant temperature and records every
// equilibrium.
func SteadyStateMap(plant *physics.CSTR, coolantMin, coolantMax float64, steps int) []MapPoint {
	if steps < 2 {
		steps = 2
	}
	step := (coolantMax - coolantMin) / float64(steps-1)

	points := make([]MapPoint, 0, steps)
	for i := 0; i < steps; i++ {
		tc := coolantMin + float64(i)*step
		points = append(points, MapPoint{Coolant: tc, States: SteadyStates(plant, tc)})
	}
	return points
}

// MultiplicityBand returns the coolant range of the map where more than one
// steady state exists. ok is false when every point has a single state.
func MultiplicityBand(points []MapPoint) (lo, hi float64, ok bool) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, p := range points {
		if len(p.States) > 1 {
			lo = math.Min(lo, p.Coolant)
			hi = math.Max(hi, p.Coolant)
			ok = true
		}
	}
	return lo, hi, ok
}

// MapToASCII draws reactor temperature against coolant temperature. Stable
// equilibria are drawn with '*', unstable ones with 'o'.
func MapToASCII(points []MapPoint, width, height int) string {
	if len(points) == 0 || width <= 0 || height <= 0 {
		return ""
	}

	minVal, maxVal := math.Inf(1), math.Inf(-1)
	for _, p := range points {
		for _, s := range p.States {
			minVal = math.Min(minVal, s.Temperature)
			maxVal = math.Max(maxVal, s.Temperature)
		}
	}
	if math.IsInf(minVal, 1) {
		return ""
	}
	if maxVal == minVal {
		maxVal = minVal + 1
	}

	canvas := make([][]rune, height)
	for i := range canvas {
		canvas[i] = []rune(strings.Repeat(" ", width))
	}

	for i, p := range points {
		col := i * width / len(points)
		if col >= width {
			col = width - 1
		}
		for _, s := range p.States {
			row := height - 1 - int((s.Temperature-minVal)/(maxVal-minVal)*float64(height-1))
			if row < 0 || row >= height {
				continue
			}
			if s.Stable {
				canvas[row][col] = '*'
			} else if canvas[row][col] != '*' {
				canvas[row][col] = 'o'
			}
		}
	}

	var b strings.Builder
	for _, row := range canvas {
		b.WriteString(string(row))
		b.WriteByte('\n')
	}
	return b.String()
}
