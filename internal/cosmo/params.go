package cosmo

import (
	"fmt"
	"math"
)

// RhoCritH2 is the critical density today in h^2 Msun / Mpc^3.
const RhoCritH2 = 2.77536627e11

// KmsMpcToInvYr converts a rate in km/s/Mpc to 1/yr.
const KmsMpcToInvYr = 1.0227121650537077e-12

// Params holds the process-wide cosmological constants. It is a plain value
// and is never mutated after start-up.
type Params struct {
	H0           float64 `yaml:"h0"`
	OmegaM0      float64 `yaml:"omega_m0"`
	OmegaR0      float64 `yaml:"omega_r0"`
	OmegaB0      float64 `yaml:"omega_b0"`
	SpeedOfLight float64 `yaml:"speed_of_light"`
}

// Planck18 returns the reference parameter set (omega_b=0.02242,
// omega_cdm=0.11933, h=0.6766).
func Planck18() Params {
	h := 0.6766
	return Params{
		H0:           100 * h,
		OmegaM0:      (0.02242 + 0.11933) / (h * h),
		OmegaR0:      8.493e-5,
		OmegaB0:      0.02242 / (h * h),
		SpeedOfLight: 299792.458,
	}
}

func (p Params) Validate() error {
	switch {
	case !(p.H0 > 0) || math.IsInf(p.H0, 0):
		return fmt.Errorf("%w: H0 must be positive, got %v", ErrInvalidParams, p.H0)
	case !(p.OmegaM0 > 0 && p.OmegaM0 < 1):
		return fmt.Errorf("%w: omega_m0 must be in (0, 1), got %v", ErrInvalidParams, p.OmegaM0)
	case !(p.OmegaR0 >= 0) || p.OmegaM0+p.OmegaR0 >= 1:
		return fmt.Errorf("%w: omega_r0 must be >= 0 with omega_m0+omega_r0 < 1, got %v", ErrInvalidParams, p.OmegaR0)
	case !(p.OmegaB0 >= 0 && p.OmegaB0 <= p.OmegaM0):
		return fmt.Errorf("%w: omega_b0 must be in [0, omega_m0], got %v", ErrInvalidParams, p.OmegaB0)
	case !(p.SpeedOfLight > 0):
		return fmt.Errorf("%w: speed_of_light must be positive, got %v", ErrInvalidParams, p.SpeedOfLight)
	}
	return nil
}

// LittleH is H0 / (100 km/s/Mpc).
func (p Params) LittleH() float64 { return p.H0 / 100 }

// OmegaL0 is the dark-energy density today for a flat universe.
func (p Params) OmegaL0() float64 { return 1 - p.OmegaM0 - p.OmegaR0 }

// BaryonFraction is omega_b0 / omega_m0.
func (p Params) BaryonFraction() float64 { return p.OmegaB0 / p.OmegaM0 }

// MeanMatterDensity is the comoving matter density in h^2 Msun / Mpc^3.
func (p Params) MeanMatterDensity() float64 { return RhoCritH2 * p.OmegaM0 }
