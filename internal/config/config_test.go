package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/san-kum/mgsim/internal/cosmo"
	"github.com/san-kum/mgsim/internal/observables"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, cosmo.LCDM(), cfg.Model)
	assert.Equal(t, SpectrumBBKS, cfg.Spectrum.Source)
	assert.Greater(t, cfg.Grid.MassMax, cfg.Grid.MassMin)
	assert.Equal(t, observables.PhenomenologicalRegular, cfg.StarFormation)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mgsim.yaml")
	cfg := GetPreset("ndgp", "n1")
	require.NotNil(t, cfg)
	cfg.StarFormation = observables.Behroozi
	cfg.Grid.MassPoints = 64

	require.NoError(t, Save(path, cfg))
	loaded, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, cfg.Model, loaded.Model)
	assert.Equal(t, cfg.Cosmology, loaded.Cosmology)
	assert.Equal(t, cfg.Solver, loaded.Solver)
	assert.Equal(t, observables.Behroozi, loaded.StarFormation)
	assert.Equal(t, 64, loaded.Grid.MassPoints)
}

func TestLoad_KeepsDefaultsForMissingSections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.yaml")
	content := `model:
  expansion: nDGP
  coupling: nDGP
  par1: 3000
  regime: linear
grid:
  mass_points: 50
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, cosmo.ExpansionNDGP, cfg.Model.Expansion)
	assert.Equal(t, cosmo.RegimeLinear, cfg.Model.Regime)
	assert.Equal(t, 50, cfg.Grid.MassPoints)
	assert.Equal(t, DefaultMassMin, cfg.Grid.MassMin)
	assert.Equal(t, cosmo.Planck18(), cfg.Cosmology)
	assert.Equal(t, DefaultSigma8, cfg.Spectrum.Sigma8)
}

func TestLoad_RejectsUnknownModel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("model:\n  coupling: f(R)\n"), 0644))

	_, err := Load(path)
	assert.ErrorIs(t, err, cosmo.ErrUnsupportedModel)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown spectrum source", func(c *Config) { c.Spectrum.Source = "camb" }},
		{"table without entries", func(c *Config) { c.Spectrum.Source = SpectrumTable }},
		{"non-positive sigma8", func(c *Config) { c.Spectrum.Sigma8 = 0 }},
		{"inverted mass grid", func(c *Config) { c.Grid.MassMin, c.Grid.MassMax = 1e15, 1e10 }},
		{"too few stellar points", func(c *Config) { c.Grid.StellarPoints = 2 }},
		{"kmoufl without tables", func(c *Config) {
			c.Model = cosmo.ModelSpec{Expansion: cosmo.ExpansionKmoufl, Coupling: cosmo.CouplingKmoufl, Par1: 0.2, Par2: 1}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalid)
		})
	}

	cfg := DefaultConfig()
	cfg.Cosmology.OmegaM0 = 1.5
	assert.ErrorIs(t, cfg.Validate(), cosmo.ErrInvalidParams)
}

func TestGetPreset(t *testing.T) {
	cfg := GetPreset("ndgp", "n1")
	require.NotNil(t, cfg)
	assert.Equal(t, cosmo.CouplingNDGP, cfg.Model.Coupling)
	assert.Equal(t, 3000.0, cfg.Model.Par1)
	assert.Equal(t, cosmo.RegimeNonlinear, cfg.Model.Regime)

	cfg.Model.Par1 = 1
	assert.Equal(t, 3000.0, GetPreset("ndgp", "n1").Model.Par1, "presets must not share state")
}

func TestGetPreset_NotFound(t *testing.T) {
	assert.Nil(t, GetPreset("ndgp", "nonexistent"))
	assert.Nil(t, GetPreset("nonexistent", "n1"))
}

func TestListPresets(t *testing.T) {
	assert.Equal(t, []string{"gr-limit", "n1", "n1-linear", "n5"}, ListPresets("ndgp"))
	assert.Nil(t, ListPresets("nonexistent"))
	assert.Contains(t, Families(), "lcdm")
}

func TestPresetsBuildBackgrounds(t *testing.T) {
	for _, family := range Families() {
		for _, name := range ListPresets(family) {
			cfg := GetPreset(family, name)
			_, err := cosmo.NewBackground(cfg.Cosmology, cfg.Model)
			assert.NoError(t, err, "%s/%s", family, name)
		}
	}
}
