package config

import (
	"math"
	"sort"

	"github.com/san-kum/mgsim/internal/cosmo"
)

// Presets are named model choices grouped by family. Everything else in a
// preset config comes from DefaultConfig.
var Presets = map[string]map[string]cosmo.ModelSpec{
	"lcdm": {
		"planck18": cosmo.LCDM(),
	},
	"ndgp": {
		"n1":        {Expansion: cosmo.ExpansionNDGP, Coupling: cosmo.CouplingNDGP, Par1: 3000, Regime: cosmo.RegimeNonlinear},
		"n1-linear": {Expansion: cosmo.ExpansionNDGP, Coupling: cosmo.CouplingNDGP, Par1: 3000, Regime: cosmo.RegimeLinear},
		"n5":        {Expansion: cosmo.ExpansionNDGP, Coupling: cosmo.CouplingNDGP, Par1: 1000, Regime: cosmo.RegimeNonlinear},
		"gr-limit":  {Expansion: cosmo.ExpansionNDGP, Coupling: cosmo.CouplingNDGP, Par1: math.Inf(1), Regime: cosmo.RegimeLinear},
	},
	"e11": {
		"weak":   {Expansion: cosmo.ExpansionLCDM, Coupling: cosmo.CouplingE11, Par1: -0.1},
		"strong": {Expansion: cosmo.ExpansionLCDM, Coupling: cosmo.CouplingE11, Par1: 0.5},
	},
	"gmu": {
		"late": {Expansion: cosmo.ExpansionLCDM, Coupling: cosmo.CouplingGmu, Par1: 0.2},
	},
	"des": {
		"y1": {Expansion: cosmo.ExpansionLCDM, Coupling: cosmo.CouplingDES, Par1: 0.3, Par2: -0.1},
	},
	"wcdm": {
		"phantom":      {Expansion: cosmo.ExpansionWCDM, Coupling: cosmo.CouplingWCDM, Par1: -1.1, Par2: 0.55},
		"quintessence": {Expansion: cosmo.ExpansionWCDM, Coupling: cosmo.CouplingWCDM, Par1: -0.9, Par2: 0.55},
	},
}

func GetPreset(family, preset string) *Config {
	familyPresets, ok := Presets[family]
	if !ok {
		return nil
	}
	spec, ok := familyPresets[preset]
	if !ok {
		return nil
	}
	cfg := DefaultConfig()
	cfg.Model = spec
	return cfg
}

func ListPresets(family string) []string {
	familyPresets, ok := Presets[family]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(familyPresets))
	for name := range familyPresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func Families() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
