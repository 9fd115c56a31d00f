package analysis

import (
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/cstrsim/internal/dynamo"
	"github.com/san-kum/cstrsim/internal/physics"
)

const jacobianStep = 1e-6

// Linearization is the local behaviour of the reactor around a point.
type Linearization struct {
	Jacobian    *mat.Dense
	Eigenvalues []complex128
	Stable      bool
}

// Linearize computes the Jacobian of (dC/dt, dT/dt) with respect to (C, T)
// by forward differences and classifies the point by its eigenvalues. The
// point is stable when every eigenvalue has a negative real part.
func Linearize(plant *physics.CSTR, concentration, temperature, coolant float64) Linearization {
	x := dynamo.State{concentration, temperature}
	u := dynamo.Control{coolant, 0}
	f0 := plant.Derive(x, u, 0)

	j := mat.NewDense(2, 2, nil)
	for col, dir := range []dynamo.State{{jacobianStep, 0}, {0, jacobianStep}} {
		df := plant.Derive(x.Add(dir), u, 0).Sub(f0).Scale(1 / jacobianStep)
		j.SetCol(col, df)
	}

	lin := Linearization{Jacobian: j}
	var eig mat.Eigen
	if !eig.Factorize(j, mat.EigenNone) {
		return lin
	}
	lin.Eigenvalues = eig.Values(nil)
	lin.Stable = true
	for _, v := range lin.Eigenvalues {
		if real(v) >= 0 {
			lin.Stable = false
		}
	}
	return lin
}
