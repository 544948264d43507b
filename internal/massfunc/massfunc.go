// Package massfunc evaluates the Sheth-Tormen halo mass function from a
// variance table and a critical collapse overdensity.
package massfunc

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/integrate"

	"github.com/san-kum/mgsim/internal/variance"
)

var ErrNumericalFault = errors.New("massfunc: numerical fault")

// FaultError reports the mass-grid entry that produced a negative or
// non-finite abundance.
type FaultError struct {
	Index int
	Mass  float64
	Value float64
}

func (e *FaultError) Error() string {
	return fmt.Sprintf("%v: dn/dM = %v at mass index %d (M = %g)", ErrNumericalFault, e.Value, e.Index, e.Mass)
}

func (e *FaultError) Unwrap() error { return ErrNumericalFault }

const (
	stAmplitude = 0.3222
	stSlope     = 0.3
)

// FirstCrossing is the Sheth-Tormen multiplicity
// 0.3222 sqrt(2 nu/pi) (1 + nu^-0.3) exp(-nu/2), with nu = (delta_c/sigma)^2.
func FirstCrossing(nu float64) float64 {
	return stAmplitude * math.Sqrt(2*nu/math.Pi) * (1 + math.Pow(nu, -stSlope)) * math.Exp(-nu/2)
}

// FromTable returns dn/dM = -(rhoM/M) (dsigma/dM / sigma) f(nu) on the
// table's mass grid. A negative or non-finite entry is an error, never
// clipped.
func FromTable(tab *variance.Table, rhoM, deltaC float64) ([]float64, error) {
	if !(deltaC > 0) || math.IsInf(deltaC, 0) {
		return nil, fmt.Errorf("%w: critical overdensity %v", ErrNumericalFault, deltaC)
	}
	out := make([]float64, tab.Len())
	for i, m := range tab.Masses {
		sig := tab.Sigma[i]
		nu := (deltaC / sig) * (deltaC / sig)
		v := -(rhoM / m) * tab.DSigmaDM[i] / sig * FirstCrossing(nu)
		if !(v >= 0) || math.IsInf(v, 0) {
			return nil, &FaultError{Index: i, Mass: m, Value: v}
		}
		out[i] = v
	}
	return out, nil
}

// CriticalDensity yields delta_c for collapse at scale factor a.
// *collapse.Solver satisfies it.
type CriticalDensity interface {
	DeltaC(ctx context.Context, a float64) (float64, error)
}

// STMassFunction computes delta_c once for a, tabulates sigma over masses,
// and evaluates the mass function.
func STMassFunction(ctx context.Context, dc CriticalDensity, s variance.Spectrum, rhoM float64, masses []float64, a float64) ([]float64, error) {
	deltaC, err := dc.DeltaC(ctx, a)
	if err != nil {
		return nil, fmt.Errorf("delta_c at a=%g: %w", a, err)
	}
	tab, err := variance.NewTable(ctx, s, rhoM, masses, 0)
	if err != nil {
		return nil, err
	}
	return FromTable(tab, rhoM, deltaC)
}

// DnDlnM converts dn/dM to dn/dlnM = M dn/dM.
func DnDlnM(masses, dndm []float64) []float64 {
	out := make([]float64, len(masses))
	for i, m := range masses {
		out[i] = m * dndm[i]
	}
	return out
}

// NumberDensityAbove integrates dn/dM from mMin to the top of the
// ascending mass grid, in ln M. The integrand at mMin is interpolated
// log-linearly between grid points.
func NumberDensityAbove(masses, dndm []float64, mMin float64) (float64, error) {
	n := len(masses)
	if n < 2 || len(dndm) != n {
		return 0, fmt.Errorf("%w: need matching mass and abundance grids of length >= 2", ErrNumericalFault)
	}
	if mMin >= masses[n-1] {
		return 0, nil
	}
	if mMin < masses[0] {
		mMin = masses[0]
	}

	i := sort.SearchFloat64s(masses, mMin)
	x := []float64{math.Log(mMin)}
	y := []float64{mMin * interpAt(masses, dndm, mMin, i)}
	if masses[i] == mMin {
		i++
	}
	for ; i < n; i++ {
		x = append(x, math.Log(masses[i]))
		y = append(y, masses[i]*dndm[i])
	}
	if len(x) < 3 {
		return integrate.Trapezoidal(x, y), nil
	}
	return integrate.Simpsons(x, y), nil
}

// interpAt interpolates dn/dM at m in log-log space; i is the first grid
// index with masses[i] >= m.
func interpAt(masses, dndm []float64, m float64, i int) float64 {
	if masses[i] == m || i == 0 {
		return dndm[i]
	}
	lo, hi := dndm[i-1], dndm[i]
	if !(lo > 0 && hi > 0) {
		t := (m - masses[i-1]) / (masses[i] - masses[i-1])
		return lo + t*(hi-lo)
	}
	t := math.Log(m/masses[i-1]) / math.Log(masses[i]/masses[i-1])
	return math.Exp(math.Log(lo) + t*(math.Log(hi)-math.Log(lo)))
}
