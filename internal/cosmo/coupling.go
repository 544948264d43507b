package cosmo

import "math"

// Screening carries the regime and, for the nonlinear regime, the
// Vainshtein screening variable x = R / r_V.
type Screening struct {
	Regime Regime
	X      float64
}

func Linear() Screening { return Screening{Regime: RegimeLinear} }

func Nonlinear(x float64) Screening { return Screening{Regime: RegimeNonlinear, X: x} }

// Mu returns the effective gravitational coupling G_eff/G at a.
func (b *Background) Mu(a float64, s Screening) (float64, error) {
	switch b.spec.Coupling {
	case CouplingLCDM:
		return 1, nil
	case CouplingE11:
		return 1 + b.spec.Par1*b.OmegaL(a), nil
	case CouplingGmu:
		x := 1 - a
		return 1 + b.spec.Par1*x - b.spec.Par1*x*x, nil
	case CouplingDES:
		ol := b.OmegaL(a)
		return 1 + b.spec.Par1*ol + b.spec.Par2*ol*ol, nil
	case CouplingWCDM:
		h := b.H(a)
		om := b.omegaMAt(a, h)
		ol := 1 - om - b.omegaRAt(a, h)
		w, gamma := b.spec.Par1, b.spec.Par2
		return 2.0 / 3.0 * math.Pow(om, gamma-1) *
			(math.Pow(om, gamma) + 2 - 3*gamma + 3*(gamma-0.5)*(om+(1+w)*ol)), nil
	case CouplingNDGP:
		return b.muNDGP(a, s)
	case CouplingKmoufl:
		beta, k0 := b.spec.Par1, b.spec.Par2
		h := b.H(a)
		amp := 1 + beta*a
		kinetic := 0.5 * amp * amp * (h * a) * (h * a) * b.kmflNorm
		return 1 + 2*beta*beta/(1+2*k0*kinetic), nil
	}
	return 0, unsupported("coupling model", b.spec.Coupling)
}

// NDGPBeta is the nDGP brane-bending coefficient
// beta = 1 + 2 H rc (1 + (dH/dt) / (3 H^2)).
func (b *Background) NDGPBeta(a float64) float64 {
	h := b.H(a)
	hdot := a * h * b.DH(a)
	return 1 + 2*h*b.rc*(1+hdot/(3*h*h))
}

func (b *Background) muNDGP(a float64, s Screening) (float64, error) {
	beta := b.NDGPBeta(a)
	switch s.Regime {
	case RegimeLinear:
		return 1 + 1/(3*beta), nil
	case RegimeNonlinear:
		if math.IsNaN(s.X) || !(s.X > 0) {
			return 0, invalidCombination("nonlinear nDGP coupling needs a screening variable x > 0, got %v", s.X)
		}
		eps := math.Pow(s.X, -3)
		return 1 + 2/(3*beta)*vainshteinShape(eps), nil
	case RegimeUnset:
		return 0, invalidCombination("nDGP coupling needs a collapse regime (linear or nonlinear)")
	}
	return 0, invalidCombination("unknown collapse regime %v", s.Regime)
}

// vainshteinShape is (sqrt(1+eps)-1)/eps, which tends to 1/2 as eps -> 0.
func vainshteinShape(eps float64) float64 {
	if eps < 1e-6 {
		return 0.5 - eps/8 + eps*eps/16
	}
	return (math.Sqrt(1+eps) - 1) / eps
}

// VainshteinX returns the screening variable x for a top-hat of overdensity
// delta in nDGP, from x^-3 = 2 OmegaM0 delta / (9 beta^2 OmegaRC a^3).
// Non-positive delta is unscreened and returns +Inf.
func (b *Background) VainshteinX(a, delta float64) float64 {
	if !(delta > 0) || b.couplingORC == 0 {
		return math.Inf(1)
	}
	beta := b.NDGPBeta(a)
	eps := 2 * b.params.OmegaM0 * delta / (9 * beta * beta * b.couplingORC * a * a * a)
	return math.Pow(eps, -1.0/3.0)
}
