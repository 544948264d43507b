// Package observables turns halo statistics into galaxy observables: the
// stellar-to-halo mass relation, the stellar mass function and density,
// and the extended Press-Schechter mass accretion history.
package observables

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/diff/fd"

	"github.com/san-kum/mgsim/internal/cosmo"
)

var (
	ErrUnknownSFRModel = errors.New("observables: unknown star formation model")
	ErrNoSolution      = errors.New("observables: no halo mass hosts the stellar mass")
	ErrNonMonotonic    = errors.New("observables: stellar mass is not monotonic in halo mass")
)

// SFRModel selects the star formation efficiency epsilon(Mh, a).
type SFRModel int

const (
	PhenomenologicalRegular SFRModel = iota
	PhenomenologicalExtreme
	Behroozi
	DoublePower
)

var sfrNames = map[SFRModel]string{
	PhenomenologicalRegular: "phenomenological_regular",
	PhenomenologicalExtreme: "phenomenological_extreme",
	Behroozi:                "Behroozi",
	DoublePower:             "double_power",
}

func (m SFRModel) String() string {
	if name, ok := sfrNames[m]; ok {
		return name
	}
	return fmt.Sprintf("SFRModel(%d)", int(m))
}

func ParseSFRModel(s string) (SFRModel, error) {
	for m, name := range sfrNames {
		if strings.EqualFold(s, name) {
			return m, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownSFRModel, s)
}

func (m SFRModel) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *SFRModel) UnmarshalText(text []byte) error {
	parsed, err := ParseSFRModel(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// StarFormation relates halo mass to stellar mass through
// M* = epsilon(Mh, a) (OmegaB0/OmegaM0) Mh.
type StarFormation struct {
	Model  SFRModel
	Params cosmo.Params
}

func NewStarFormation(model SFRModel, p cosmo.Params) (StarFormation, error) {
	if _, ok := sfrNames[model]; !ok {
		return StarFormation{}, fmt.Errorf("%w: %v", ErrUnknownSFRModel, model)
	}
	if err := p.Validate(); err != nil {
		return StarFormation{}, err
	}
	return StarFormation{Model: model, Params: p}, nil
}

// Efficiency is the fraction of the halo's baryons turned into stars.
func (sf StarFormation) Efficiency(mh, a float64) float64 {
	z := 1/a - 1
	fb := sf.Params.BaryonFraction()
	switch sf.Model {
	case PhenomenologicalRegular:
		if z < 10 {
			return 0.15 - 0.03*(z-6)
		}
		return 0.03
	case PhenomenologicalExtreme:
		return 1
	case Behroozi:
		return behrooziStellarMass(mh, a) / mh / fb
	case DoublePower:
		const (
			mp      = 2.8e11
			epsPeak = 0.05
			gLo     = 0.49
			gHi     = -0.61
		)
		x := mh / mp
		return epsPeak / (math.Pow(x, gLo) + math.Pow(x, gHi)) / fb
	}
	return math.NaN()
}

// behrooziStellarMass is the Behroozi et al. (2013) stellar-halo mass
// relation.
func behrooziStellarMass(mh, a float64) float64 {
	z := 1/a - 1
	nu := math.Exp(-4 * a * a)
	log10M1 := 11.514 + (-1.793*(a-1)-0.251*z)*nu
	log10Eps := -1.777 + (-0.006*(a-1))*nu - 0.119*(a-1)
	f := behrooziShape(a, z, nu)
	return math.Pow(10, log10Eps+log10M1+f(math.Log10(mh)-log10M1)-f(0))
}

func behrooziShape(a, z, nu float64) func(x float64) float64 {
	alpha := -1.412 + 0.731*(a-1)*nu
	delta := 3.508 + (2.608*(a-1)-0.043*z)*nu
	gamma := 0.316 + (1.319*(a-1)+0.279*z)*nu
	return func(x float64) float64 {
		return -math.Log10(math.Pow(10, alpha*x)+1) +
			delta*math.Pow(math.Log10(1+math.Exp(x)), gamma)/(1+math.Exp(math.Pow(10, -x)))
	}
}

func (sf StarFormation) StellarMass(mh, a float64) float64 {
	return sf.Efficiency(mh, a) * sf.Params.BaryonFraction() * mh
}

// LogSlope is dln M*/dln Mh, by central differences in ln Mh.
func (sf StarFormation) LogSlope(mh, a float64) float64 {
	f := func(lnMh float64) float64 { return math.Log(sf.StellarMass(math.Exp(lnMh), a)) }
	return fd.Derivative(f, math.Log(mh), &fd.Settings{Formula: fd.Central, Step: 1e-4})
}
