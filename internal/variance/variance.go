// Package variance computes the rms linear density fluctuation sigma(R) of
// a power spectrum smoothed with the filter W(kR) = 1/(1+(kR)^4.8), and its
// derivative with respect to halo mass.
package variance

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/integrate"

	"github.com/san-kum/mgsim/internal/dynamo"
)

var ErrInvalidInput = errors.New("variance: invalid input")

const (
	// FilterSlope is the exponent of the smooth-k filter.
	FilterSlope = 4.8
	// FilterScale relates the filter radius to the Lagrangian radius of a mass.
	FilterScale = 3.3
	// massStep is the relative forward step used for dsigma/dM.
	massStep = 1e-4
)

// Spectrum is a tabulated linear power spectrum with k strictly increasing.
// Units must agree with the mean density passed alongside it. Only
// NewSpectrum builds a usable Spectrum; the zero value is rejected.
type Spectrum struct {
	k    []float64
	p    []float64
	logK []float64
}

func NewSpectrum(k, p []float64) (Spectrum, error) {
	switch {
	case len(k) < 3:
		return Spectrum{}, fmt.Errorf("%w: need at least 3 samples, got %d", ErrInvalidInput, len(k))
	case len(p) != len(k):
		return Spectrum{}, fmt.Errorf("%w: %d wavenumbers but %d powers", ErrInvalidInput, len(k), len(p))
	}
	s := Spectrum{
		k:    append([]float64(nil), k...),
		p:    append([]float64(nil), p...),
		logK: make([]float64, len(k)),
	}
	for i := range k {
		if !(k[i] > 0) || math.IsInf(k[i], 0) {
			return Spectrum{}, fmt.Errorf("%w: k[%d]=%v must be positive and finite", ErrInvalidInput, i, k[i])
		}
		if i > 0 && !(k[i] > k[i-1]) {
			return Spectrum{}, fmt.Errorf("%w: k not strictly increasing at %d", ErrInvalidInput, i)
		}
		if !(p[i] >= 0) || math.IsInf(p[i], 0) {
			return Spectrum{}, fmt.Errorf("%w: P[%d]=%v must be finite and >= 0", ErrInvalidInput, i, p[i])
		}
		s.logK[i] = math.Log10(k[i])
	}
	return s, nil
}

// K and P return the tabulated samples. The slices are shared and must not
// be modified.
func (s Spectrum) K() []float64 { return s.k }
func (s Spectrum) P() []float64 { return s.p }
func (s Spectrum) Len() int     { return len(s.k) }

func (s Spectrum) check() error {
	if len(s.k) < 3 || len(s.p) != len(s.k) || len(s.logK) != len(s.k) {
		return fmt.Errorf("%w: spectrum not built by NewSpectrum (%d k, %d P)", ErrInvalidInput, len(s.k), len(s.p))
	}
	return nil
}

// Scale returns a copy of s with every power multiplied by f.
func (s Spectrum) Scale(f float64) Spectrum {
	out := Spectrum{k: s.k, p: make([]float64, len(s.p)), logK: s.logK}
	for i, p := range s.p {
		out.p[i] = f * p
	}
	return out
}

func Window(kR float64) float64 {
	return 1 / (1 + math.Pow(kR, FilterSlope))
}

// Sigma is sqrt(int W^2(kR) P(k) k^2/(2 pi^2) dk), integrated with
// Simpson's rule in log10 k over the tabulated range.
func Sigma(s Spectrum, r float64) (float64, error) {
	if err := s.check(); err != nil {
		return 0, err
	}
	if !(r > 0) || math.IsInf(r, 0) {
		return 0, fmt.Errorf("%w: radius must be positive and finite, got %v", ErrInvalidInput, r)
	}
	return sigma(s, r), nil
}

func sigma(s Spectrum, r float64) float64 {
	f := make([]float64, len(s.k))
	for i, k := range s.k {
		w := Window(k * r)
		f[i] = s.p[i] * w * w * k * k * k * math.Ln10 / (2 * math.Pi * math.Pi)
	}
	return math.Sqrt(integrate.Simpsons(s.logK, f))
}

// Radius is the filter radius assigned to mass M at mean matter density rhoM.
func Radius(rhoM, m float64) float64 {
	return math.Cbrt(3 * m / (4 * math.Pi * rhoM * FilterScale * FilterScale * FilterScale))
}

func SigmaM(s Spectrum, rhoM, m float64) (float64, error) {
	if err := checkMass(rhoM, m); err != nil {
		return 0, err
	}
	return Sigma(s, Radius(rhoM, m))
}

// DSigmaDM is the forward difference (sigma(1.0001 M) - sigma(M)) / (0.0001 M).
func DSigmaDM(s Spectrum, rhoM, m float64) (float64, error) {
	sig, err := SigmaM(s, rhoM, m)
	if err != nil {
		return 0, err
	}
	return dSigmaDM(s, rhoM, m, sig), nil
}

func sigmaM(s Spectrum, rhoM, m float64) float64 { return sigma(s, Radius(rhoM, m)) }

func dSigmaDM(s Spectrum, rhoM, m, sig float64) float64 {
	return fd.Derivative(func(x float64) float64 { return sigmaM(s, rhoM, x) }, m, &fd.Settings{
		Formula:     fd.Forward,
		Step:        massStep * m,
		OriginKnown: true,
		OriginValue: sig,
	})
}

func checkMass(rhoM, m float64) error {
	if !(rhoM > 0) || math.IsInf(rhoM, 0) {
		return fmt.Errorf("%w: mean density must be positive, got %v", ErrInvalidInput, rhoM)
	}
	if !(m > 0) || math.IsInf(m, 0) {
		return fmt.Errorf("%w: mass must be positive and finite, got %v", ErrInvalidInput, m)
	}
	return nil
}

// Table is sigma and dsigma/dM tabulated over a mass grid.
type Table struct {
	Masses   []float64
	Sigma    []float64
	DSigmaDM []float64
}

func (t *Table) Len() int { return len(t.Masses) }

// NewTable evaluates sigma and its derivative at every mass, in parallel
// across at most workers goroutines (<= 0 means GOMAXPROCS).
func NewTable(ctx context.Context, s Spectrum, rhoM float64, masses []float64, workers int) (*Table, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	if len(masses) == 0 {
		return nil, fmt.Errorf("%w: empty mass grid", ErrInvalidInput)
	}
	for i, m := range masses {
		if err := checkMass(rhoM, m); err != nil {
			return nil, fmt.Errorf("mass[%d]: %w", i, err)
		}
	}

	t := &Table{
		Masses:   append([]float64(nil), masses...),
		Sigma:    make([]float64, len(masses)),
		DSigmaDM: make([]float64, len(masses)),
	}
	err := dynamo.ForEach(ctx, len(masses), workers, func(_ context.Context, i int) error {
		sig := sigmaM(s, rhoM, masses[i])
		t.Sigma[i] = sig
		t.DSigmaDM[i] = dSigmaDM(s, rhoM, masses[i], sig)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}
