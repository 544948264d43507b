package experiment

import (
	"fmt"
	"sort"
	"strings"

	"github.com/san-kum/mgsim/internal/config"
	"github.com/san-kum/mgsim/internal/spectrum"
)

type spectrumBuilder func(cfg *config.Config, growth spectrum.GrowthFunc) (spectrum.Provider, error)

// Registry maps spectrum source names to provider constructors.
type Registry struct {
	spectra map[string]spectrumBuilder
}

func NewRegistry() *Registry {
	r := &Registry{spectra: make(map[string]spectrumBuilder)}

	r.spectra[config.SpectrumBBKS] = func(cfg *config.Config, growth spectrum.GrowthFunc) (spectrum.Provider, error) {
		return spectrum.NewBBKS(cfg.Cosmology, cfg.Spectrum.NS, cfg.Spectrum.Sigma8, growth)
	}
	r.spectra[config.SpectrumTable] = func(cfg *config.Config, _ spectrum.GrowthFunc) (spectrum.Provider, error) {
		return spectrum.NewTableProvider(cfg.Spectrum.Tables...), nil
	}

	return r
}

func (r *Registry) GetSpectrum(cfg *config.Config, growth spectrum.GrowthFunc) (spectrum.Provider, error) {
	fn, ok := r.spectra[cfg.Spectrum.Source]
	if !ok {
		return nil, fmt.Errorf("unknown spectrum source: %s (known: %s)", cfg.Spectrum.Source, strings.Join(r.ListSpectra(), ", "))
	}
	return fn(cfg, growth)
}

// ListSpectra returns the registered spectrum source names, sorted.
func (r *Registry) ListSpectra() []string {
	names := make([]string, 0, len(r.spectra))
	for name := range r.spectra {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
