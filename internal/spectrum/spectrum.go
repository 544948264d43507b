// Package spectrum supplies linear matter power spectra per (scale factor,
// model). Spectra normally come from an external Boltzmann code as CSV
// tables; an analytic BBKS spectrum is available for quick runs.
package spectrum

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/san-kum/mgsim/internal/cosmo"
	"github.com/san-kum/mgsim/internal/storage"
	"github.com/san-kum/mgsim/internal/variance"
)

var ErrNoSpectrum = errors.New("spectrum: no spectrum for request")

type Provider interface {
	PowerSpectrum(ctx context.Context, a float64, spec cosmo.ModelSpec) (variance.Spectrum, error)
}

type cacheKey struct {
	a    float64
	spec cosmo.ModelSpec
}

// Cache memoises a Provider by (a, ModelSpec). Concurrent requests for the
// same key share one upstream call. Failed calls are not cached.
type Cache struct {
	src    Provider
	logger *slog.Logger

	mu      sync.RWMutex
	entries map[cacheKey]variance.Spectrum
	group   singleflight.Group
}

func NewCache(src Provider, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{src: src, logger: logger, entries: make(map[cacheKey]variance.Spectrum)}
}

func (c *Cache) PowerSpectrum(ctx context.Context, a float64, spec cosmo.ModelSpec) (variance.Spectrum, error) {
	key := cacheKey{a, spec}
	c.mu.RLock()
	s, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		c.logger.Debug("spectrum cache hit", "a", a, "model", spec.String())
		return s, nil
	}

	v, err, _ := c.group.Do(fmt.Sprintf("%g|%s", a, spec), func() (any, error) {
		s, err := c.src.PowerSpectrum(ctx, a, spec)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.entries[key] = s
		c.mu.Unlock()
		c.logger.Debug("spectrum cached", "a", a, "model", spec.String(), "points", s.Len())
		return s, nil
	})
	if err != nil {
		return variance.Spectrum{}, err
	}
	return v.(variance.Spectrum), nil
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// TableEntry is a tabulated spectrum at one scale factor. The CSV needs
// columns "k" and "P".
type TableEntry struct {
	A    float64 `yaml:"a"`
	Path string  `yaml:"path"`
}

// TableProvider serves spectra precomputed for a single model. The model
// argument is not inspected; the caller pairs the files with the model.
type TableProvider struct {
	entries []TableEntry
}

func NewTableProvider(entries ...TableEntry) *TableProvider {
	return &TableProvider{entries: append([]TableEntry(nil), entries...)}
}

// matchTolerance is the relative slack when matching a requested scale
// factor to a tabulated one.
const matchTolerance = 1e-6

func (p *TableProvider) PowerSpectrum(ctx context.Context, a float64, _ cosmo.ModelSpec) (variance.Spectrum, error) {
	if err := ctx.Err(); err != nil {
		return variance.Spectrum{}, err
	}
	for _, e := range p.entries {
		if math.Abs(e.A-a) <= matchTolerance*a {
			return ReadFile(e.Path)
		}
	}
	return variance.Spectrum{}, fmt.Errorf("%w: no table at a=%g", ErrNoSpectrum, a)
}

// ReadFile loads a "k","P" CSV table as a validated spectrum.
func ReadFile(path string) (variance.Spectrum, error) {
	tab, err := storage.ReadTableFile(path)
	if err != nil {
		return variance.Spectrum{}, err
	}
	k, err := tab.Column("k")
	if err != nil {
		return variance.Spectrum{}, fmt.Errorf("%s: %w", path, err)
	}
	pk, err := tab.Column("P")
	if err != nil {
		return variance.Spectrum{}, fmt.Errorf("%s: %w", path, err)
	}
	s, err := variance.NewSpectrum(k, pk)
	if err != nil {
		return variance.Spectrum{}, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}
