// Package dynamo provides the ODE primitives shared by the collapse and
// growth solvers.
//
// The package defines the small vocabulary every integration in mgsim is
// written in:
//
//   - [State]: vector representing the ODE state, e.g. (delta, d delta/da)
//   - [System]: interface for first-order systems dX/da = f(X, a)
//   - [Stepper]: single-step numerical integrator
//   - [AdaptiveStepper]: stepper with an embedded error estimate
//   - [ForEach]: bounded parallel fan-out over independent work items
//
// # Errors
//
// Integrations never hand back NaN silently. A state that stops being finite,
// or a run that exhausts its step budget, is reported as
// [ErrIntegrationDivergence] (possibly wrapped in a [SimulationError]).
//
// # Thread Safety
//
// Systems and steppers are created per integration call. Nothing in this
// package keeps mutable state between calls, so independent integrations
// may run concurrently.
package dynamo
