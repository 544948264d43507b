package config

import (
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/san-kum/mgsim/internal/collapse"
	"github.com/san-kum/mgsim/internal/cosmo"
	"github.com/san-kum/mgsim/internal/kmoufl"
	"github.com/san-kum/mgsim/internal/observables"
	"github.com/san-kum/mgsim/internal/spectrum"
	"gopkg.in/yaml.v3"
)

const (
	DefaultMassMin       = 1e8
	DefaultMassMax       = 1e16
	DefaultMassPoints    = 200
	DefaultStellarMin    = 1e7
	DefaultStellarMax    = 1e12
	DefaultStellarPoints = 50
	DefaultNS            = 0.9665
	DefaultSigma8        = 0.8102
	DefaultDataDir       = ".mgsim"
)

const (
	SpectrumBBKS  = "bbks"
	SpectrumTable = "table"
)

var ErrInvalid = errors.New("config: invalid")

type Config struct {
	Cosmology     cosmo.Params         `yaml:"cosmology"`
	Model         cosmo.ModelSpec      `yaml:"model"`
	Solver        collapse.Config      `yaml:"solver"`
	Grid          GridConfig           `yaml:"grid"`
	Spectrum      SpectrumConfig       `yaml:"spectrum"`
	StarFormation observables.SFRModel `yaml:"star_formation"`
	Kmoufl        []kmoufl.Source      `yaml:"kmoufl,omitempty"`
	DataDir       string               `yaml:"data_dir"`
}

// GridConfig holds the log-spaced halo and stellar mass grids, in Msun/h.
type GridConfig struct {
	MassMin       float64 `yaml:"mass_min"`
	MassMax       float64 `yaml:"mass_max"`
	MassPoints    int     `yaml:"mass_points"`
	StellarMin    float64 `yaml:"stellar_min"`
	StellarMax    float64 `yaml:"stellar_max"`
	StellarPoints int     `yaml:"stellar_points"`
}

// SpectrumConfig selects the linear power spectrum source. Tables are only
// read when Source is "table".
type SpectrumConfig struct {
	Source string                `yaml:"source"`
	NS     float64               `yaml:"ns"`
	Sigma8 float64               `yaml:"sigma8"`
	Tables []spectrum.TableEntry `yaml:"tables,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		Cosmology: cosmo.Planck18(),
		Model:     cosmo.LCDM(),
		Solver:    collapse.DefaultConfig(),
		Grid: GridConfig{
			MassMin:       DefaultMassMin,
			MassMax:       DefaultMassMax,
			MassPoints:    DefaultMassPoints,
			StellarMin:    DefaultStellarMin,
			StellarMax:    DefaultStellarMax,
			StellarPoints: DefaultStellarPoints,
		},
		Spectrum: SpectrumConfig{
			Source: SpectrumBBKS,
			NS:     DefaultNS,
			Sigma8: DefaultSigma8,
		},
		StarFormation: observables.PhenomenologicalRegular,
		DataDir:       DefaultDataDir,
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks the sections that are not validated by their own
// packages when the pipeline is assembled.
func (c *Config) Validate() error {
	if err := c.Cosmology.Validate(); err != nil {
		return err
	}
	if err := c.Solver.Validate(); err != nil {
		return err
	}
	if err := c.Grid.validate(); err != nil {
		return err
	}
	switch c.Spectrum.Source {
	case SpectrumBBKS:
		if !(c.Spectrum.Sigma8 > 0) {
			return fmt.Errorf("%w: spectrum.sigma8 must be positive, got %v", ErrInvalid, c.Spectrum.Sigma8)
		}
	case SpectrumTable:
		if len(c.Spectrum.Tables) == 0 {
			return fmt.Errorf("%w: spectrum.source is table but no tables are listed", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown spectrum source %q", ErrInvalid, c.Spectrum.Source)
	}
	if c.Model.Expansion == cosmo.ExpansionKmoufl && len(c.Kmoufl) == 0 {
		return fmt.Errorf("%w: kmoufl expansion needs kmoufl background tables", ErrInvalid)
	}
	return nil
}

func (g GridConfig) validate() error {
	check := func(name string, lo, hi float64, n int) error {
		if !(lo > 0) || !(hi > lo) || math.IsInf(hi, 0) {
			return fmt.Errorf("%w: grid.%s range must satisfy 0 < min < max, got [%v, %v]", ErrInvalid, name, lo, hi)
		}
		if n < 3 {
			return fmt.Errorf("%w: grid.%s needs at least 3 points, got %d", ErrInvalid, name, n)
		}
		return nil
	}
	if err := check("mass", g.MassMin, g.MassMax, g.MassPoints); err != nil {
		return err
	}
	return check("stellar", g.StellarMin, g.StellarMax, g.StellarPoints)
}
