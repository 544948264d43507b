package observables

import (
	"fmt"
	"math"

	"github.com/san-kum/mgsim/internal/cosmo"
	"github.com/san-kum/mgsim/internal/variance"
)

// ProgenitorRatio is q in the extended Press-Schechter history.
const ProgenitorRatio = 2.2

// AccretionHistory is the extended Press-Schechter mass accretion history
// of a halo of mass Mh0 today:
//
//	Mh(z) = Mh0 exp(-z / sqrt(S(Mh0/q) - S(Mh0))),  S = sigma^2,
//
// with sigma taken from the z = 0 linear spectrum.
type AccretionHistory struct {
	Mh0   float64
	alpha float64
}

func NewAccretionHistory(s variance.Spectrum, rhoM, mh0 float64) (*AccretionHistory, error) {
	if !(mh0 > 0) || math.IsInf(mh0, 0) {
		return nil, fmt.Errorf("%w: halo mass must be positive, got %v", variance.ErrInvalidInput, mh0)
	}
	sLo, err := variance.SigmaM(s, rhoM, mh0/ProgenitorRatio)
	if err != nil {
		return nil, err
	}
	sHi, err := variance.SigmaM(s, rhoM, mh0)
	if err != nil {
		return nil, err
	}
	dS := sLo*sLo - sHi*sHi
	if !(dS > 0) {
		return nil, fmt.Errorf("%w: variance does not decrease with mass around %g", variance.ErrInvalidInput, mh0)
	}
	return &AccretionHistory{Mh0: mh0, alpha: 1 / math.Sqrt(dS)}, nil
}

func (h *AccretionHistory) Mass(z float64) float64 {
	return h.Mh0 * math.Exp(-h.alpha*z)
}

// AccretionRate is dMh/dt = -(1+z) H(z) dMh/dz in Msun/yr (for masses in
// Msun), with H from the background.
func (h *AccretionHistory) AccretionRate(bg *cosmo.Background, z float64) float64 {
	hz := bg.H(1/(1+z)) * cosmo.KmsMpcToInvYr
	return (1 + z) * hz * h.alpha * h.Mass(z)
}
