package cosmo

import (
	"fmt"
	"strings"
)

// ExpansionModel selects the background expansion history H(a).
type ExpansionModel int

const (
	ExpansionUnknown ExpansionModel = iota
	ExpansionLCDM
	ExpansionWCDM
	ExpansionNDGP
	ExpansionKmoufl
)

var expansionNames = map[ExpansionModel]string{
	ExpansionLCDM:   "LCDM",
	ExpansionWCDM:   "wCDM",
	ExpansionNDGP:   "nDGP",
	ExpansionKmoufl: "kmoufl",
}

func (m ExpansionModel) String() string {
	if name, ok := expansionNames[m]; ok {
		return name
	}
	return fmt.Sprintf("ExpansionModel(%d)", int(m))
}

func ParseExpansionModel(s string) (ExpansionModel, error) {
	for m, name := range expansionNames {
		if strings.EqualFold(s, name) {
			return m, nil
		}
	}
	return ExpansionUnknown, unsupported("expansion model", s)
}

func (m ExpansionModel) MarshalText() ([]byte, error) {
	if _, ok := expansionNames[m]; !ok {
		return nil, unsupported("expansion model", int(m))
	}
	return []byte(m.String()), nil
}

func (m *ExpansionModel) UnmarshalText(text []byte) error {
	parsed, err := ParseExpansionModel(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// CouplingModel selects the effective gravitational coupling mu(a).
type CouplingModel int

const (
	CouplingUnknown CouplingModel = iota
	CouplingLCDM
	CouplingE11
	CouplingGmu
	CouplingDES
	CouplingWCDM
	CouplingNDGP
	CouplingKmoufl
)

var couplingNames = map[CouplingModel]string{
	CouplingLCDM:   "LCDM",
	CouplingE11:    "E11",
	CouplingGmu:    "gmu",
	CouplingDES:    "DES",
	CouplingWCDM:   "wCDM",
	CouplingNDGP:   "nDGP",
	CouplingKmoufl: "kmoufl",
}

// Names used by the MGCLASS parametrizations for the same couplings.
var couplingAliases = map[string]CouplingModel{
	"plk_late":     CouplingE11,
	"z_flex_late":  CouplingGmu,
	"z_xpans_late": CouplingDES,
	"gi":           CouplingWCDM,
}

func (m CouplingModel) String() string {
	if name, ok := couplingNames[m]; ok {
		return name
	}
	return fmt.Sprintf("CouplingModel(%d)", int(m))
}

func ParseCouplingModel(s string) (CouplingModel, error) {
	for m, name := range couplingNames {
		if strings.EqualFold(s, name) {
			return m, nil
		}
	}
	if m, ok := couplingAliases[strings.ToLower(s)]; ok {
		return m, nil
	}
	return CouplingUnknown, unsupported("coupling model", s)
}

func (m CouplingModel) MarshalText() ([]byte, error) {
	if _, ok := couplingNames[m]; !ok {
		return nil, unsupported("coupling model", int(m))
	}
	return []byte(m.String()), nil
}

func (m *CouplingModel) UnmarshalText(text []byte) error {
	parsed, err := ParseCouplingModel(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Regime selects between the linear and the screened (nonlinear) nDGP
// coupling. Other couplings ignore it.
type Regime int

const (
	RegimeUnset Regime = iota
	RegimeLinear
	RegimeNonlinear
)

func (r Regime) String() string {
	switch r {
	case RegimeLinear:
		return "linear"
	case RegimeNonlinear:
		return "nonlinear"
	case RegimeUnset:
		return ""
	default:
		return fmt.Sprintf("Regime(%d)", int(r))
	}
}

func ParseRegime(s string) (Regime, error) {
	switch strings.ToLower(s) {
	case "":
		return RegimeUnset, nil
	case "linear":
		return RegimeLinear, nil
	case "nonlinear":
		return RegimeNonlinear, nil
	default:
		return RegimeUnset, invalidCombination("unknown collapse regime %q", s)
	}
}

func (r Regime) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

func (r *Regime) UnmarshalText(text []byte) error {
	parsed, err := ParseRegime(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// ModelSpec fully determines background and perturbation behaviour. It is
// comparable, so it can key caches together with a scale factor.
//
// Parameter meaning per model:
//
//	wCDM expansion:   Par1 = w
//	nDGP:             Par1 = crossover scale rc in Mpc
//	kmoufl:           Par1 = beta, Par2 = K0
//	E11, gmu:         Par1 = amplitude
//	DES:              Par1, Par2 = linear and quadratic OmegaL amplitudes
//	wCDM coupling:    Par1 = w, Par2 = growth index gamma
type ModelSpec struct {
	Expansion ExpansionModel `yaml:"expansion"`
	Coupling  CouplingModel  `yaml:"coupling"`
	Par1      float64        `yaml:"par1"`
	Par2      float64        `yaml:"par2"`
	Regime    Regime         `yaml:"regime,omitempty"`
}

func LCDM() ModelSpec {
	return ModelSpec{Expansion: ExpansionLCDM, Coupling: CouplingLCDM}
}

func (s ModelSpec) String() string {
	out := fmt.Sprintf("%s/%s(par1=%g, par2=%g)", s.Expansion, s.Coupling, s.Par1, s.Par2)
	if s.Regime != RegimeUnset {
		out += " " + s.Regime.String()
	}
	return out
}
