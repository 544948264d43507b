// Package cosmo evaluates the background expansion and the effective
// gravitational coupling of the supported cosmologies.
//
// A [Background] is built once from immutable [Params] and a [ModelSpec] and
// then answers:
//
//   - [Background.H], [Background.DH]: Hubble rate and its a-derivative
//   - [Background.OmegaM], [Background.OmegaL]: density ratios at a
//   - [Background.Mu]: effective coupling mu(a) for linear growth and collapse
//
// Model dispatch is an enum switch. Unknown models fail with
// [ErrUnsupportedModel]; incomplete inputs (nDGP without a screening regime,
// K-mouflage without a background table) fail with
// [ErrInvalidParameterCombination].
package cosmo
