package collapse

import (
	"math"

	"github.com/san-kum/mgsim/internal/cosmo"
	"github.com/san-kum/mgsim/internal/dynamo"
)

// growthSystem is the top-hat overdensity equation in the scale factor,
// state (delta, d delta/da). With nonlinear set it carries the
// delta(1+delta) source and the 4/3 delta'^2/(1+delta) term.
//
// A coupling error cannot leave Derive, so the first one is kept in err and
// the derivative is poisoned with NaN, which makes the driver reject the
// step and stop.
type growthSystem struct {
	bg        *cosmo.Background
	nonlinear bool
	screening cosmo.Regime
	vainsh    bool
	omegaM0   float64
	h0sq      float64

	err error
}

func newGrowthSystem(bg *cosmo.Background, nonlinear bool) *growthSystem {
	p := bg.Params()
	spec := bg.Spec()
	s := &growthSystem{
		bg:        bg,
		nonlinear: nonlinear,
		screening: cosmo.RegimeLinear,
		omegaM0:   p.OmegaM0,
		h0sq:      p.H0 * p.H0,
	}
	if nonlinear {
		s.screening = spec.Regime
		s.vainsh = spec.Coupling == cosmo.CouplingNDGP && spec.Regime == cosmo.RegimeNonlinear
	}
	return s
}

func (s *growthSystem) StateDim() int { return 2 }

func (s *growthSystem) Derive(x dynamo.State, a float64) dynamo.State {
	delta, v := x[0], x[1]

	sc := cosmo.Screening{Regime: s.screening}
	if s.vainsh {
		sc.X = s.bg.VainshteinX(a, delta)
	}
	mu, err := s.bg.Mu(a, sc)
	if err != nil {
		if s.err == nil {
			s.err = err
		}
		return dynamo.State{math.NaN(), math.NaN()}
	}

	h := s.bg.H(a)
	a2 := a * a
	source := 3 * s.omegaM0 * mu * s.h0sq / (2 * a2 * a2 * a * h * h)
	friction := -(3/a + s.bg.DH(a)/h) * v

	if !s.nonlinear {
		return dynamo.State{v, friction + source*delta}
	}
	return dynamo.State{v, friction + source*delta*(1+delta) + 4*v*v/(3*(1+delta))}
}
