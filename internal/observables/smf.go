package observables

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/interp"
)

const (
	// MaxHaloMass is the upper limit of halo-mass integrals and searches.
	MaxHaloMass = 1e18
	// MinHaloMass is the lower limit of the halo-mass search.
	MinHaloMass = 1e4

	densityGridPoints = 100
)

// MassFunction evaluates dn/dM of haloes on an arbitrary ascending mass
// grid, e.g. massfunc.STMassFunction bound to one model and epoch.
type MassFunction func(ctx context.Context, masses []float64) ([]float64, error)

// StellarMassFunction maps a halo mass function onto stellar mass:
// phi(M*) = (dn/dMh Mh) / (dln M*/dln Mh), tabulated at M*(Mh) and
// interpolated log-linearly onto mstar. Beyond the tabulated range the
// end segments are extrapolated.
func StellarMassFunction(sf StarFormation, a float64, masses, dndm, mstar []float64) ([]float64, error) {
	n := len(masses)
	if n < 2 || len(dndm) != n {
		return nil, fmt.Errorf("observables: need matching halo mass and abundance grids of length >= 2")
	}

	lnMs := make([]float64, n)
	lnPhi := make([]float64, n)
	for i, mh := range masses {
		ms := sf.StellarMass(mh, a)
		phi := dndm[i] * mh / sf.LogSlope(mh, a)
		if !(ms > 0) || !(phi > 0) || math.IsInf(phi, 0) {
			return nil, fmt.Errorf("observables: non-physical stellar mass function at Mh=%g (M*=%g, phi=%g)", mh, ms, phi)
		}
		lnMs[i] = math.Log(ms)
		lnPhi[i] = math.Log(phi)
		if i > 0 && !(lnMs[i] > lnMs[i-1]) {
			return nil, fmt.Errorf("%w: M*(%g) <= M*(%g)", ErrNonMonotonic, mh, masses[i-1])
		}
	}

	var fit interp.PiecewiseLinear
	if err := fit.Fit(lnMs, lnPhi); err != nil {
		return nil, err
	}
	out := make([]float64, len(mstar))
	for i, m := range mstar {
		x := math.Log(m)
		var y float64
		switch {
		case x < lnMs[0]:
			y = lnPhi[0] + (x-lnMs[0])*(lnPhi[1]-lnPhi[0])/(lnMs[1]-lnMs[0])
		case x > lnMs[n-1]:
			y = lnPhi[n-1] + (x-lnMs[n-1])*(lnPhi[n-1]-lnPhi[n-2])/(lnMs[n-1]-lnMs[n-2])
		default:
			y = fit.Predict(x)
		}
		out[i] = math.Exp(y)
	}
	return out, nil
}

// HostHaloMass solves M*(Mh) = mstar for Mh by bisection in ln Mh over
// [MinHaloMass, MaxHaloMass].
func HostHaloMass(sf StarFormation, a, mstar float64) (float64, error) {
	f := func(lnMh float64) float64 { return math.Log(sf.StellarMass(math.Exp(lnMh), a)) - math.Log(mstar) }
	lo, hi := math.Log(MinHaloMass), math.Log(MaxHaloMass)
	flo, fhi := f(lo), f(hi)
	if math.IsNaN(flo) || math.IsNaN(fhi) || flo*fhi > 0 {
		return 0, fmt.Errorf("%w: M*=%g outside [%g, %g]", ErrNoSolution, mstar,
			sf.StellarMass(MinHaloMass, a), sf.StellarMass(MaxHaloMass, a))
	}
	for i := 0; i < 200 && hi-lo > 1e-12; i++ {
		mid := 0.5 * (lo + hi)
		fm := f(mid)
		if fm == 0 {
			return math.Exp(mid), nil
		}
		if (fm < 0) == (flo < 0) {
			lo, flo = mid, fm
		} else {
			hi = mid
		}
	}
	return math.Exp(0.5 * (lo + hi)), nil
}

// StellarMassDensity is the stellar mass density in galaxies above each
// mstar: rho*(>M*) = (M*/Mh) int_Mh^MaxHaloMass M dn/dM dM, with Mh the host
// halo mass of M*.
func StellarMassDensity(ctx context.Context, sf StarFormation, a float64, hmf MassFunction, mstar []float64) ([]float64, error) {
	out := make([]float64, len(mstar))
	for i, ms := range mstar {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		mh, err := HostHaloMass(sf, a, ms)
		if err != nil {
			return nil, err
		}
		grid := floats.LogSpan(make([]float64, densityGridPoints), mh, MaxHaloMass)
		dndm, err := hmf(ctx, grid)
		if err != nil {
			return nil, err
		}
		lnM := make([]float64, len(grid))
		integrand := make([]float64, len(grid))
		for j, m := range grid {
			lnM[j] = math.Log(m)
			integrand[j] = m * m * dndm[j]
		}
		out[i] = ms / mh * integrate.Simpsons(lnM, integrand)
	}
	return out, nil
}
