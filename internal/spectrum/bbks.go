package spectrum

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/integrate"

	"github.com/san-kum/mgsim/internal/cosmo"
	"github.com/san-kum/mgsim/internal/variance"
)

// GrowthFunc returns the linear growth D(a)/D(1) of a model.
type GrowthFunc func(ctx context.Context, a float64, spec cosmo.ModelSpec) (float64, error)

// BBKS is the Bardeen et al. (1986) spectrum with the Sugiyama (1995) shape
// parameter, normalised to Sigma8 today and scaled by the model's linear
// growth squared. k is in h/Mpc and P in (Mpc/h)^3.
type BBKS struct {
	Params cosmo.Params
	NS     float64
	Sigma8 float64
	// KMin, KMax and Points set the log-spaced k grid.
	KMin, KMax float64
	Points     int
	// Growth defaults to D = a when nil.
	Growth GrowthFunc

	today variance.Spectrum
}

func NewBBKS(p cosmo.Params, ns, sigma8 float64, growth GrowthFunc) (*BBKS, error) {
	b := &BBKS{Params: p, NS: ns, Sigma8: sigma8, KMin: 1e-4, KMax: 1e3, Points: 2001, Growth: growth}
	if err := b.init(); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *BBKS) init() error {
	if err := b.Params.Validate(); err != nil {
		return err
	}
	if !(b.Sigma8 > 0) || !(b.KMin > 0) || !(b.KMax > b.KMin) || b.Points < 3 {
		return fmt.Errorf("%w: bad BBKS settings (sigma8=%v, k in [%v, %v], %d points)",
			variance.ErrInvalidInput, b.Sigma8, b.KMin, b.KMax, b.Points)
	}
	k := floats.LogSpan(make([]float64, b.Points), b.KMin, b.KMax)
	pk := make([]float64, b.Points)
	for i := range k {
		t := b.transfer(k[i])
		pk[i] = math.Pow(k[i], b.NS) * t * t
	}
	norm := b.Sigma8 / TopHatSigma(k, pk, 8)
	floats.Scale(norm*norm, pk)

	var err error
	b.today, err = variance.NewSpectrum(k, pk)
	return err
}

func (b *BBKS) transfer(k float64) float64 {
	p := b.Params
	h := p.LittleH()
	gamma := p.OmegaM0 * h * math.Exp(-p.OmegaB0*(1+math.Sqrt(2*h)/p.OmegaM0))
	q := k / gamma
	if q < 1e-9 {
		return 1
	}
	poly := 1 + 3.89*q + math.Pow(16.1*q, 2) + math.Pow(5.46*q, 3) + math.Pow(6.71*q, 4)
	return math.Log(1+2.34*q) / (2.34 * q) * math.Pow(poly, -0.25)
}

func (b *BBKS) PowerSpectrum(ctx context.Context, a float64, spec cosmo.ModelSpec) (variance.Spectrum, error) {
	if !(a > 0) || math.IsInf(a, 0) {
		return variance.Spectrum{}, fmt.Errorf("%w: scale factor %v", variance.ErrInvalidInput, a)
	}
	d := a
	if b.Growth != nil {
		var err error
		if d, err = b.Growth(ctx, a, spec); err != nil {
			return variance.Spectrum{}, err
		}
	}
	if math.IsNaN(d) || math.IsInf(d, 0) {
		return variance.Spectrum{}, fmt.Errorf("%w: growth factor %v at a=%g", variance.ErrInvalidInput, d, a)
	}
	return b.today.Scale(d * d), nil
}

// TopHatSigma is the rms fluctuation in a real-space top-hat sphere of
// radius r, the convention behind sigma8.
func TopHatSigma(k, p []float64, r float64) float64 {
	logK := make([]float64, len(k))
	f := make([]float64, len(k))
	for i, kk := range k {
		x := kk * r
		var w float64
		if x < 1e-3 {
			w = 1 - x*x/10
		} else {
			w = 3 * (math.Sin(x) - x*math.Cos(x)) / (x * x * x)
		}
		logK[i] = math.Log(kk)
		f[i] = p[i] * w * w * kk * kk * kk / (2 * math.Pi * math.Pi)
	}
	return math.Sqrt(integrate.Simpsons(logK, f))
}
