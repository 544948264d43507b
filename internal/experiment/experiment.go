// Package experiment assembles one configured pipeline: background,
// collapse solver, spectrum source and derived observables.
package experiment

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/mgsim/internal/collapse"
	"github.com/san-kum/mgsim/internal/config"
	"github.com/san-kum/mgsim/internal/cosmo"
	"github.com/san-kum/mgsim/internal/kmoufl"
	"github.com/san-kum/mgsim/internal/massfunc"
	"github.com/san-kum/mgsim/internal/observables"
	"github.com/san-kum/mgsim/internal/spectrum"
	"github.com/san-kum/mgsim/internal/variance"
)

type Option func(*Experiment)

func WithLogger(l *slog.Logger) Option {
	return func(e *Experiment) { e.logger = l }
}

// WithProgress forwards inverse-table scan progress to fn.
func WithProgress(fn func(done, total int)) Option {
	return func(e *Experiment) { e.progress = fn }
}

type Experiment struct {
	cfg      config.Config
	logger   *slog.Logger
	progress func(done, total int)

	bg      *cosmo.Background
	solver  *collapse.Solver
	spectra *spectrum.Cache
	sf      observables.StarFormation

	mu      sync.Mutex
	inverse *collapse.InverseTable
	deltaC  map[float64]float64
}

func New(cfg *config.Config, opts ...Option) (*Experiment, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Experiment{cfg: *cfg, logger: slog.Default(), deltaC: make(map[float64]float64)}
	for _, opt := range opts {
		opt(e)
	}

	var bgOpts []cosmo.Option
	if len(cfg.Kmoufl) > 0 {
		grid, err := kmoufl.Load(cfg.Kmoufl, e.logger)
		if err != nil {
			return nil, err
		}
		bgOpts = append(bgOpts, cosmo.WithTable(grid))
		if cfg.Model.Expansion == cosmo.ExpansionKmoufl {
			k0s, betas := grid.K0s(), grid.Betas()
			if outside(k0s, cfg.Model.Par2) || outside(betas, cfg.Model.Par1) {
				e.logger.Warn("kmoufl parameters outside the tabulated grid, using the nearest cell",
					"k0", cfg.Model.Par2, "k0_range", []float64{k0s[0], k0s[len(k0s)-1]},
					"beta", cfg.Model.Par1, "beta_range", []float64{betas[0], betas[len(betas)-1]})
			}
		}
	}
	bg, err := cosmo.NewBackground(cfg.Cosmology, cfg.Model, bgOpts...)
	if err != nil {
		return nil, err
	}
	e.bg = bg

	solverOpts := []collapse.Option{collapse.WithLogger(e.logger)}
	if e.progress != nil {
		solverOpts = append(solverOpts, collapse.WithProgress(e.progress))
	}
	solver, err := collapse.New(bg, cfg.Solver, solverOpts...)
	if err != nil {
		return nil, err
	}
	e.solver = solver

	src, err := NewRegistry().GetSpectrum(cfg, e.growth)
	if err != nil {
		return nil, err
	}
	e.spectra = spectrum.NewCache(src, e.logger)

	sf, err := observables.NewStarFormation(cfg.StarFormation, cfg.Cosmology)
	if err != nil {
		return nil, err
	}
	e.sf = sf

	e.logger.Debug("experiment ready", "model", cfg.Model.String(), "spectrum", cfg.Spectrum.Source)
	return e, nil
}

func (e *Experiment) Config() config.Config                    { return e.cfg }
func (e *Experiment) Background() *cosmo.Background            { return e.bg }
func (e *Experiment) Solver() *collapse.Solver                 { return e.solver }
func (e *Experiment) StarFormation() observables.StarFormation { return e.sf }
func (e *Experiment) MeanDensity() float64                     { return e.cfg.Cosmology.MeanMatterDensity() }

func (e *Experiment) growth(ctx context.Context, a float64, _ cosmo.ModelSpec) (float64, error) {
	return e.solver.GrowthFactor(ctx, a)
}

// Inverse returns the inverse collapse table, building it on first use. A
// failed build is not remembered.
func (e *Experiment) Inverse(ctx context.Context) (*collapse.InverseTable, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.inverse != nil {
		return e.inverse, nil
	}
	inv, err := e.solver.BuildInverse(ctx)
	if err != nil {
		return nil, err
	}
	if n := inv.Dropped(); n > 0 {
		e.logger.Info("inverse table dropped samples", "dropped", n, "kept", inv.Len())
	}
	e.inverse = inv
	return inv, nil
}

// DeltaC is the critical linear overdensity for collapse at a. It reuses the
// experiment's inverse table and remembers values per scale factor.
func (e *Experiment) DeltaC(ctx context.Context, a float64) (float64, error) {
	e.mu.Lock()
	dc, ok := e.deltaC[a]
	e.mu.Unlock()
	if ok {
		return dc, nil
	}

	inv, err := e.Inverse(ctx)
	if err != nil {
		return 0, err
	}
	dc, err = e.solver.DeltaCFromInverse(ctx, inv, a)
	if err != nil {
		return 0, err
	}
	e.mu.Lock()
	e.deltaC[a] = dc
	e.mu.Unlock()
	return dc, nil
}

func (e *Experiment) Spectrum(ctx context.Context, a float64) (variance.Spectrum, error) {
	return e.spectra.PowerSpectrum(ctx, a, e.cfg.Model)
}

func (e *Experiment) MassGrid() []float64 {
	g := e.cfg.Grid
	return floats.LogSpan(make([]float64, g.MassPoints), g.MassMin, g.MassMax)
}

func (e *Experiment) StellarGrid() []float64 {
	g := e.cfg.Grid
	return floats.LogSpan(make([]float64, g.StellarPoints), g.StellarMin, g.StellarMax)
}

// HaloMassFunction evaluates the Sheth-Tormen dn/dM at a on masses.
func (e *Experiment) HaloMassFunction(ctx context.Context, a float64, masses []float64) ([]float64, error) {
	s, err := e.Spectrum(ctx, a)
	if err != nil {
		return nil, err
	}
	return massfunc.STMassFunction(ctx, e, s, e.MeanDensity(), masses, a)
}

// StellarMassFunction returns the stellar mass grid and phi(M*) at a.
func (e *Experiment) StellarMassFunction(ctx context.Context, a float64) ([]float64, []float64, error) {
	masses := e.MassGrid()
	dndm, err := e.HaloMassFunction(ctx, a, masses)
	if err != nil {
		return nil, nil, err
	}
	mstar := e.StellarGrid()
	phi, err := observables.StellarMassFunction(e.sf, a, masses, dndm, mstar)
	if err != nil {
		return nil, nil, err
	}
	return mstar, phi, nil
}

// StellarMassDensity returns the stellar mass grid and rho*(>M*) at a.
func (e *Experiment) StellarMassDensity(ctx context.Context, a float64) ([]float64, []float64, error) {
	if _, err := e.Inverse(ctx); err != nil {
		return nil, nil, err
	}
	mstar := e.StellarGrid()
	hmf := func(ctx context.Context, masses []float64) ([]float64, error) {
		return e.HaloMassFunction(ctx, a, masses)
	}
	rho, err := observables.StellarMassDensity(ctx, e.sf, a, hmf, mstar)
	if err != nil {
		return nil, nil, err
	}
	return mstar, rho, nil
}

// AccretionHistory builds the EPS history of a halo of mass mh0 today.
func (e *Experiment) AccretionHistory(ctx context.Context, mh0 float64) (*observables.AccretionHistory, error) {
	s, err := e.Spectrum(ctx, 1)
	if err != nil {
		return nil, err
	}
	h, err := observables.NewAccretionHistory(s, e.MeanDensity(), mh0)
	if err != nil {
		return nil, fmt.Errorf("accretion history for Mh0=%g: %w", mh0, err)
	}
	return h, nil
}

// outside reports whether v lies beyond the span of the ascending axis.
func outside(axis []float64, v float64) bool {
	return len(axis) > 0 && (v < axis[0] || v > axis[len(axis)-1])
}
