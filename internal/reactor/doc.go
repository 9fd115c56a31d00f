// Package reactor is the CSTR simulation core: the step solver, the
// measurement noise injector, the setpoint scheduler and the episode state
// machine that owns them.
//
// An Episode moves through three phases:
//
//	Ready    after Reset, before the first Step
//	Running  after at least one Step while the safety limits hold
//	Halted   thermal runaway, concentration collapse, actuator violation
//	         or numerical divergence; Step fails until the next Reset
//
// Each control tick the scheduler produces the reference, the solver
// advances the physical state over one control interval, and the noise
// injector perturbs the result to produce the observation returned to the
// caller.
//
// An Episode is not safe for concurrent use. Batched simulations create one
// Episode (and one random source) per goroutine; the process constants are
// shared read-only.
package reactor
