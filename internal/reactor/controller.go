package reactor

// Controller chooses the coolant adjustment for the next interval from the
// current observation. Optimizers, trained policies and classifiers are all
// consumed through it.
type Controller interface {
	Compute(obs Observation) (float64, error)
}

// ControllerFunc adapts a function to Controller.
type ControllerFunc func(obs Observation) (float64, error)

func (f ControllerFunc) Compute(obs Observation) (float64, error) { return f(obs) }
