// Package dynamo provides the numerical primitives the reactor simulation is
// built on.
//
// The package defines the interfaces and types shared by the process models
// and the ODE integrators:
//
//   - [State]: vector representing system state
//   - [System]: interface for ODE systems (dX/dt = f(X, u, t))
//   - [Integrator]: fixed-step numerical integrator
//   - [AdaptiveIntegrator]: integrator with an embedded error estimate
//
// # Example
//
//	plant := physics.NewCSTR(physics.DefaultConstants())
//	integ := integrators.NewRK45()
//	x, err := integrators.Integrate(integ, plant, dynamo.State{8.57, 311.26}, u, 0, 0.5, integrators.DefaultOptions())
//
// # Thread Safety
//
// States are plain slices and are never shared by the integrators. Integrator
// values may hold scratch buffers and must not be used from several goroutines
// at once; give each concurrent episode its own.
package dynamo
