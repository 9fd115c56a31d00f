// Package analysis characterizes the open-loop reactor.
//
//   - [SteadyStates]: every equilibrium for a fixed coolant temperature
//   - [SteadyStateMap]: the equilibrium temperature curve over a coolant range,
//     showing the band where three steady states coexist
//   - [Linearize]: Jacobian eigenvalues and local stability at an operating point
//   - [DominantPeriod]: strongest oscillation in a recorded trajectory
//
// The middle branch of the map is a saddle: a controller holding the reactor
// there works against the open-loop dynamics.
//
//	states := analysis.SteadyStates(plant, 297.98)
//	for _, s := range states {
//	    fmt.Println(s.Temperature, s.Stable)
//	}
package analysis
