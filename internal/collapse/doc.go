// Package collapse integrates the spherical top-hat collapse of a matter
// overdensity in a (possibly modified-gravity) background and derives the
// critical linear overdensity delta_c at a given collapse time.
//
// A Solver is configured once and is safe for concurrent use. Every
// integration allocates its own state, so independent collapses of the
// same model may run in parallel.
package collapse
