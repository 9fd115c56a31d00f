// Package control provides coolant controllers for the reactor.
//
// Every controller implements [reactor.Controller], returning the coolant
// temperature adjustment for the next control interval:
//
//   - [None], [Fixed]: state-independent policies (do_nothing, lower_Tc, increase_Tc)
//   - [Random]: integer adjustments drawn uniformly from [-10, 10)
//   - [ManualController]: an adjustment set from outside, e.g. the live view
//   - [PID]: temperature tracking on Tr - Tref
//   - [StateFeedback]: linear feedback on the concentration and temperature errors
//   - [Brain]: an exported policy served over HTTP
//   - [MPC]: an injected optimizer returning a coolant target
//   - [Gate]: a classifier-driven safety filter around another controller
//
// Controllers holding state implement Reset, which the experiment runner
// calls before every episode. Tunable controllers expose GetParams and
// SetParam for grid search.
package control
