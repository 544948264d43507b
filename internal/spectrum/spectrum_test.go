package spectrum

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/mgsim/internal/cosmo"
	"github.com/san-kum/mgsim/internal/variance"
)

type countingProvider struct {
	calls   atomic.Int32
	release chan struct{}
	err     error
}

func (p *countingProvider) PowerSpectrum(ctx context.Context, a float64, _ cosmo.ModelSpec) (variance.Spectrum, error) {
	p.calls.Add(1)
	if p.release != nil {
		<-p.release
	}
	if p.err != nil {
		return variance.Spectrum{}, p.err
	}
	return variance.NewSpectrum([]float64{0.1, 1, 10}, []float64{a, a, a})
}

func TestCache_SharesConcurrentCalls(t *testing.T) {
	src := &countingProvider{release: make(chan struct{})}
	c := NewCache(src, nil)

	var wg sync.WaitGroup
	results := make([]variance.Spectrum, 8)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := c.PowerSpectrum(context.Background(), 0.5, cosmo.LCDM())
			assert.NoError(t, err)
			results[i] = s
		}()
	}
	// Let the goroutines pile up on the in-flight call before releasing it.
	require.Eventually(t, func() bool { return src.calls.Load() == 1 }, time.Second, time.Millisecond)
	close(src.release)
	wg.Wait()

	assert.LessOrEqual(t, src.calls.Load(), int32(8))
	for _, s := range results {
		assert.Equal(t, []float64{0.5, 0.5, 0.5}, s.P())
	}

	before := src.calls.Load()
	_, err := c.PowerSpectrum(context.Background(), 0.5, cosmo.LCDM())
	require.NoError(t, err)
	assert.Equal(t, before, src.calls.Load(), "cached spectrum must not hit the provider")
	assert.Equal(t, 1, c.Len())
}

func TestCache_KeysByScaleFactorAndModel(t *testing.T) {
	src := &countingProvider{}
	c := NewCache(src, nil)
	ctx := context.Background()

	e11 := cosmo.ModelSpec{Expansion: cosmo.ExpansionLCDM, Coupling: cosmo.CouplingE11, Par1: 0.1}
	for _, req := range []struct {
		a    float64
		spec cosmo.ModelSpec
	}{
		{0.5, cosmo.LCDM()}, {0.25, cosmo.LCDM()}, {0.5, e11}, {0.5, cosmo.LCDM()},
	} {
		_, err := c.PowerSpectrum(ctx, req.a, req.spec)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(3), src.calls.Load())
	assert.Equal(t, 3, c.Len())
}

func TestCache_DoesNotCacheErrors(t *testing.T) {
	boom := errors.New("boltzmann code crashed")
	src := &countingProvider{err: boom}
	c := NewCache(src, nil)

	_, err := c.PowerSpectrum(context.Background(), 1, cosmo.LCDM())
	assert.ErrorIs(t, err, boom)
	_, err = c.PowerSpectrum(context.Background(), 1, cosmo.LCDM())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int32(2), src.calls.Load())
	assert.Zero(t, c.Len())
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestTableProvider(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "pk_z0.csv", "k,P\n0.01,100\n0.1,1000\n1,50\n")
	bad := writeFile(t, dir, "pk_bad.csv", "k,P\n0.01,100\n0.1,-3\n1,50\n")

	p := NewTableProvider(TableEntry{A: 1, Path: good}, TableEntry{A: 0.5, Path: bad})
	ctx := context.Background()

	s, err := p.PowerSpectrum(ctx, 1, cosmo.LCDM())
	require.NoError(t, err)
	assert.Equal(t, []float64{0.01, 0.1, 1}, s.K())
	assert.Equal(t, []float64{100, 1000, 50}, s.P())

	_, err = p.PowerSpectrum(ctx, 0.5, cosmo.LCDM())
	assert.ErrorIs(t, err, variance.ErrInvalidInput)

	_, err = p.PowerSpectrum(ctx, 0.3, cosmo.LCDM())
	assert.ErrorIs(t, err, ErrNoSpectrum)
}

func TestBBKS_NormalisedToSigma8(t *testing.T) {
	b, err := NewBBKS(cosmo.Planck18(), 0.9665, 0.81, nil)
	require.NoError(t, err)

	s, err := b.PowerSpectrum(context.Background(), 1, cosmo.LCDM())
	require.NoError(t, err)
	assert.InEpsilon(t, 0.81, TopHatSigma(s.K(), s.P(), 8), 1e-9)

	half, err := b.PowerSpectrum(context.Background(), 0.5, cosmo.LCDM())
	require.NoError(t, err)
	assert.InEpsilon(t, 0.25*s.P()[100], half.P()[100], 1e-12)
}

func TestBBKS_UsesGrowth(t *testing.T) {
	var seen cosmo.ModelSpec
	growth := func(_ context.Context, a float64, spec cosmo.ModelSpec) (float64, error) {
		seen = spec
		return 2, nil
	}
	b, err := NewBBKS(cosmo.Planck18(), 1, 0.8, growth)
	require.NoError(t, err)

	e11 := cosmo.ModelSpec{Expansion: cosmo.ExpansionLCDM, Coupling: cosmo.CouplingE11, Par1: 0.1}
	s, err := b.PowerSpectrum(context.Background(), 0.3, e11)
	require.NoError(t, err)
	assert.Equal(t, e11, seen)
	assert.InEpsilon(t, 0.8*2, TopHatSigma(s.K(), s.P(), 8), 1e-9)

	failing := func(context.Context, float64, cosmo.ModelSpec) (float64, error) { return 0, errors.New("no growth") }
	b.Growth = failing
	_, err = b.PowerSpectrum(context.Background(), 0.3, e11)
	assert.EqualError(t, err, "no growth")
}

func TestBBKS_TransferShape(t *testing.T) {
	b, err := NewBBKS(cosmo.Planck18(), 1, 0.8, nil)
	require.NoError(t, err)
	assert.InDelta(t, 1, b.transfer(1e-6), 1e-4)
	assert.Less(t, b.transfer(10), b.transfer(0.1))

	_, err = NewBBKS(cosmo.Planck18(), 1, 0, nil)
	assert.ErrorIs(t, err, variance.ErrInvalidInput)
}
