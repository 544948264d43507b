package cosmo

import (
	"math"
)

// Curve is a tabulated expansion history H(a) with its derivative.
type Curve interface {
	H(a float64) float64
	DH(a float64) float64
}

// CurveTable resolves tabulated backgrounds for models without a closed
// form. K-mouflage is keyed by (beta, K0).
type CurveTable interface {
	Nearest(beta, k0 float64) (Curve, error)
}

type Option func(*Background)

// WithTable supplies the tabulated backgrounds used by kmoufl.
func WithTable(t CurveTable) Option {
	return func(b *Background) { b.table = t }
}

// Background evaluates H(a) and dH/da for one (Params, ModelSpec) pair. It is
// immutable after construction and safe for concurrent use.
type Background struct {
	params Params
	spec   ModelSpec
	table  CurveTable
	curve  Curve

	omegaDE     float64
	omegaRC     float64
	omegaL0     float64
	rc          float64
	couplingORC float64
	wDE         float64
	sqrtORC     float64
	kmflNorm    float64
}

// NewBackground validates the model and precomputes the per-model constants.
func NewBackground(p Params, spec ModelSpec, opts ...Option) (*Background, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	b := &Background{params: p, spec: spec, omegaDE: p.OmegaL0()}
	for _, opt := range opts {
		opt(b)
	}

	switch spec.Expansion {
	case ExpansionLCDM:
	case ExpansionWCDM:
		if math.IsNaN(spec.Par1) || math.IsInf(spec.Par1, 0) {
			return nil, invalidCombination("wCDM needs a finite w, got %v", spec.Par1)
		}
		b.wDE = spec.Par1
	case ExpansionNDGP:
		omegaRC, err := ndgpOmegaRC(p, spec.Par1)
		if err != nil {
			return nil, err
		}
		b.omegaRC = omegaRC
		b.sqrtORC = math.Sqrt(omegaRC)
		b.omegaL0 = 1 - p.OmegaM0 - p.OmegaR0 + 2*b.sqrtORC
	case ExpansionKmoufl:
		if b.table == nil {
			return nil, invalidCombination("kmoufl expansion needs a background table")
		}
		curve, err := b.table.Nearest(spec.Par1, spec.Par2)
		if err != nil {
			return nil, err
		}
		b.curve = curve
	default:
		return nil, unsupported("expansion model", spec.Expansion)
	}

	switch spec.Coupling {
	case CouplingLCDM, CouplingE11, CouplingGmu, CouplingDES, CouplingWCDM, CouplingKmoufl:
	case CouplingNDGP:
		if !(spec.Par1 > 0) {
			return nil, invalidCombination("nDGP coupling needs a crossover scale rc > 0 (Mpc), got %v", spec.Par1)
		}
		b.rc = spec.Par1 / p.SpeedOfLight
		b.couplingORC = 1 / (4 * p.H0 * p.H0 * b.rc * b.rc)
	default:
		return nil, unsupported("coupling model", spec.Coupling)
	}
	if spec.Coupling == CouplingKmoufl {
		b.kmflNorm = 1 / (p.OmegaL0() * p.H0 * p.H0)
	}

	return b, nil
}

// ndgpOmegaRC returns 1/(4 H0^2 (rc/c)^2) for a crossover scale rc = par1 in
// Mpc. par1 = +Inf is the GR limit.
func ndgpOmegaRC(p Params, par1 float64) (float64, error) {
	if !(par1 > 0) {
		return 0, invalidCombination("nDGP needs a crossover scale rc > 0 (Mpc), got %v", par1)
	}
	rc := par1 / p.SpeedOfLight
	return 1 / (4 * p.H0 * p.H0 * rc * rc), nil
}

func (b *Background) Params() Params { return b.params }
func (b *Background) Spec() ModelSpec { return b.spec }

// H is the Hubble rate in km/s/Mpc.
func (b *Background) H(a float64) float64 {
	p := b.params
	switch b.spec.Expansion {
	case ExpansionLCDM:
		return p.H0 * math.Sqrt(b.omegaDE+p.OmegaM0/(a*a*a)+p.OmegaR0/(a*a*a*a))
	case ExpansionWCDM:
		return p.H0 * math.Sqrt(b.omegaDE*math.Pow(a, -3*(1+b.wDE))+p.OmegaM0/(a*a*a)+p.OmegaR0/(a*a*a*a))
	case ExpansionNDGP:
		return p.H0*math.Sqrt(p.OmegaM0/(a*a*a)+p.OmegaR0/(a*a*a*a)+b.omegaRC+b.omegaL0) - p.H0*b.sqrtORC
	case ExpansionKmoufl:
		return b.curve.H(a)
	}
	return math.NaN()
}

// DH is dH/da.
func (b *Background) DH(a float64) float64 {
	p := b.params
	a4 := a * a * a * a
	dMatterRad := -3*p.OmegaM0/a4 - 4*p.OmegaR0/(a4*a)
	switch b.spec.Expansion {
	case ExpansionLCDM:
		e2 := b.omegaDE + p.OmegaM0/(a*a*a) + p.OmegaR0/a4
		return p.H0 * dMatterRad / (2 * math.Sqrt(e2))
	case ExpansionWCDM:
		de := b.omegaDE * math.Pow(a, -3*(1+b.wDE))
		e2 := de + p.OmegaM0/(a*a*a) + p.OmegaR0/a4
		return p.H0 * (dMatterRad - 3*(1+b.wDE)*de/a) / (2 * math.Sqrt(e2))
	case ExpansionNDGP:
		e2 := p.OmegaM0/(a*a*a) + p.OmegaR0/a4 + b.omegaRC + b.omegaL0
		return p.H0 * dMatterRad / (2 * math.Sqrt(e2))
	case ExpansionKmoufl:
		return b.curve.DH(a)
	}
	return math.NaN()
}

// E is H(a)/H0.
func (b *Background) E(a float64) float64 { return b.H(a) / b.params.H0 }

// OmegaM is the matter density ratio rho_m / (3 H^2) at a.
func (b *Background) OmegaM(a float64) float64 {
	return b.omegaMAt(a, b.H(a))
}

// OmegaL is the effective dark-energy ratio 1 - OmegaM - OmegaR at a.
func (b *Background) OmegaL(a float64) float64 {
	h := b.H(a)
	return 1 - b.omegaMAt(a, h) - b.omegaRAt(a, h)
}

func (b *Background) omegaMAt(a, h float64) float64 {
	p := b.params
	return p.H0 * p.H0 * p.OmegaM0 / (a * a * a * h * h)
}

func (b *Background) omegaRAt(a, h float64) float64 {
	p := b.params
	return p.H0 * p.H0 * p.OmegaR0 / (a * a * a * a * h * h)
}
