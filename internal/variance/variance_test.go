package variance

import (
	"context"
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/floats"
)

func powerLaw(t *testing.T, amp, n float64) Spectrum {
	t.Helper()
	k := floats.LogSpan(make([]float64, 2001), 1e-4, 1e4)
	p := make([]float64, len(k))
	for i := range k {
		// A turnover keeps the integral finite at both ends.
		p[i] = amp * math.Pow(k[i], n) / (1 + math.Pow(k[i]/0.02, 3))
	}
	s, err := NewSpectrum(k, p)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestNewSpectrum_Validation(t *testing.T) {
	tests := []struct {
		name string
		k, p []float64
	}{
		{"too short", []float64{1, 2}, []float64{1, 1}},
		{"mismatch", []float64{1, 2, 3}, []float64{1, 1}},
		{"non-increasing", []float64{1, 3, 2}, []float64{1, 1, 1}},
		{"zero k", []float64{0, 1, 2}, []float64{1, 1, 1}},
		{"negative P", []float64{1, 2, 3}, []float64{1, -1, 1}},
		{"NaN P", []float64{1, 2, 3}, []float64{1, math.NaN(), 1}},
		{"Inf P", []float64{1, 2, 3}, []float64{1, math.Inf(1), 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewSpectrum(tt.k, tt.p); !errors.Is(err, ErrInvalidInput) {
				t.Errorf("got %v", err)
			}
		})
	}
}

func mustSigma(t *testing.T, s Spectrum, r float64) float64 {
	t.Helper()
	sig, err := Sigma(s, r)
	if err != nil {
		t.Fatal(err)
	}
	return sig
}

func mustSigmaM(t *testing.T, s Spectrum, rhoM, m float64) float64 {
	t.Helper()
	return mustSigma(t, s, Radius(rhoM, m))
}

func TestSigma_ScalesWithAmplitude(t *testing.T) {
	s := powerLaw(t, 1e4, 1)
	r := 8.0
	base := mustSigma(t, s, r)
	if got := mustSigma(t, s.Scale(4), r); math.Abs(got-2*base) > 1e-12*base {
		t.Errorf("sigma(4P) = %g, want %g", got, 2*base)
	}
}

func TestSigma_DecreasesWithRadius(t *testing.T) {
	s := powerLaw(t, 1e4, 1)
	prev := math.Inf(1)
	for _, r := range []float64{0.1, 0.5, 1, 4, 8, 20} {
		sig := mustSigma(t, s, r)
		if !(sig < prev) || !(sig > 0) {
			t.Fatalf("sigma(%g) = %g, previous %g", r, sig, prev)
		}
		prev = sig
	}
}

func TestSigma_FlatSpectrumAnalytic(t *testing.T) {
	// For P = 2 pi^2 the integral is int W^2 k^2 dk = R^-3 int_0^inf u^2/(1+u^4.8)^2 du.
	k := floats.LogSpan(make([]float64, 4001), 1e-6, 1e4)
	p := make([]float64, len(k))
	for i := range p {
		p[i] = 2 * math.Pi * math.Pi
	}
	s, err := NewSpectrum(k, p)
	if err != nil {
		t.Fatal(err)
	}
	ref := mustSigma(t, s, 1)
	for _, r := range []float64{0.5, 2, 3} {
		want := ref * math.Pow(r, -1.5)
		if got := mustSigma(t, s, r); math.Abs(got-want) > 1e-6*want {
			t.Errorf("sigma(%g) = %g, want %g", r, got, want)
		}
	}
}

func TestRadius(t *testing.T) {
	rhoM := 8.6e10
	m := 1e12
	r := Radius(rhoM, m)
	vol := 4 * math.Pi / 3 * math.Pow(r*FilterScale, 3)
	if math.Abs(vol*rhoM-m) > 1e-9*m {
		t.Errorf("radius %g does not enclose the mass", r)
	}
}

func TestDSigmaDM(t *testing.T) {
	s := powerLaw(t, 1e4, 1)
	rhoM := 8.6e10
	for _, m := range []float64{1e9, 1e12, 1e14} {
		got, err := DSigmaDM(s, rhoM, m)
		if err != nil {
			t.Fatal(err)
		}
		want := (mustSigmaM(t, s, rhoM, 1.0001*m) - mustSigmaM(t, s, rhoM, m)) / (1e-4 * m)
		if got >= 0 {
			t.Errorf("dsigma/dM(%g) = %g, want negative", m, got)
		}
		if math.Abs(got-want) > 1e-9*math.Abs(want) {
			t.Errorf("dsigma/dM(%g) = %g, want %g", m, got, want)
		}
	}
}

func TestNewTable(t *testing.T) {
	s := powerLaw(t, 1e4, 1)
	rhoM := 8.6e10
	masses := floats.LogSpan(make([]float64, 16), 1e8, 1e15)

	tab, err := NewTable(context.Background(), s, rhoM, masses, 4)
	if err != nil {
		t.Fatal(err)
	}
	if tab.Len() != len(masses) {
		t.Fatalf("len %d", tab.Len())
	}
	for i, m := range masses {
		if want := mustSigmaM(t, s, rhoM, m); tab.Sigma[i] != want {
			t.Errorf("sigma[%d] = %g, want %g", i, tab.Sigma[i], want)
		}
		want, err := DSigmaDM(s, rhoM, m)
		if err != nil {
			t.Fatal(err)
		}
		if tab.DSigmaDM[i] != want {
			t.Errorf("dsigma[%d] = %g, want %g", i, tab.DSigmaDM[i], want)
		}
	}

	if _, err := NewTable(context.Background(), s, rhoM, []float64{1e10, -1}, 1); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("negative mass: got %v", err)
	}
	if _, err := NewTable(context.Background(), s, 0, masses, 1); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("zero density: got %v", err)
	}
	if _, err := NewTable(context.Background(), s, rhoM, nil, 1); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("empty mass grid: got %v", err)
	}
}

func TestUnbuiltSpectrumIsRejected(t *testing.T) {
	var zero Spectrum
	if _, err := Sigma(zero, 8); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Sigma: got %v", err)
	}
	if _, err := SigmaM(zero, 8.6e10, 1e12); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("SigmaM: got %v", err)
	}
	if _, err := DSigmaDM(zero, 8.6e10, 1e12); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("DSigmaDM: got %v", err)
	}
	if _, err := NewTable(context.Background(), zero, 8.6e10, []float64{1e12}, 2); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("NewTable: got %v", err)
	}

	s := powerLaw(t, 1e4, 1)
	if _, err := Sigma(s, -1); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("negative radius: got %v", err)
	}
	if _, err := SigmaM(s, 8.6e10, math.NaN()); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("NaN mass: got %v", err)
	}
}

func TestSpectrumAccessorsCopyInput(t *testing.T) {
	k := []float64{0.1, 1, 10}
	p := []float64{100, 10, 1}
	s, err := NewSpectrum(k, p)
	if err != nil {
		t.Fatal(err)
	}
	k[0], p[0] = 5, 5
	if s.K()[0] != 0.1 || s.P()[0] != 100 || s.Len() != 3 {
		t.Errorf("spectrum shares caller slices: %v %v", s.K(), s.P())
	}
}

func TestNewTable_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewTable(ctx, powerLaw(t, 1, 1), 1, []float64{1, 2, 3}, 1)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("got %v", err)
	}
}
