// Package physics provides the process models simulated by cstrsim.
//
// [CSTR] implements [dynamo.System] for a jacketed continuous stirred tank
// reactor running a first-order exothermic reaction. The state is
// [concentration, temperature]; the control is [coolant temperature, bias],
// where the bias is an additive perturbation of the coolant temperature
// that only lasts for part of a control interval.
//
// The model is a pure function of its [Constants], which are never mutated
// once a CSTR is built:
//
//	plant := physics.NewCSTR(physics.DefaultConstants())
//	dx := plant.Derive(dynamo.State{8.5698, 311.2612}, dynamo.Control{297.98, 0}, 0)
package physics
