package collapse

import (
	"errors"
	"fmt"
	"math"

	"github.com/san-kum/mgsim/internal/integrators"
)

var (
	ErrInvalidConfig = errors.New("collapse: invalid configuration")
	ErrInvalidInput  = errors.New("collapse: invalid input")

	// ErrOutsideTable marks a collapse time the inverse table cannot
	// reach by extrapolation. Widening [DeltaMin, DeltaMax] moves the
	// sampled range.
	ErrOutsideTable = fmt.Errorf("%w: collapse time outside the inverse table", ErrInvalidInput)
)

const (
	DefaultAInit     = 1e-5
	DefaultDt        = 1e-4
	DefaultThreshold = 1e7
	DefaultACeiling  = 2.0
	DefaultSamples   = 1000
	DefaultDeltaMin  = 1e-4
	DefaultDeltaMax  = 1e-1
)

// Config controls the collapse integrations. Dt is the reporting step in
// scale factor: integrations advance reporting point by reporting point and
// cancellation is checked between them.
type Config struct {
	AInit     float64 `yaml:"a_init"`
	Dt        float64 `yaml:"dt"`
	Threshold float64 `yaml:"threshold"`
	ACeiling  float64 `yaml:"a_ceiling"`

	// Initial overdensities sampled log-uniformly for the inverse table.
	Samples  int     `yaml:"samples"`
	DeltaMin float64 `yaml:"delta_min"`
	DeltaMax float64 `yaml:"delta_max"`

	Method    string  `yaml:"method"`
	Tolerance float64 `yaml:"tolerance"`
	MaxSteps  int     `yaml:"max_steps"`

	// Workers bounds the parallel collapses of a scan; <= 0 means GOMAXPROCS.
	Workers int `yaml:"workers"`
}

func DefaultConfig() Config {
	ic := integrators.DefaultConfig()
	return Config{
		AInit:     DefaultAInit,
		Dt:        DefaultDt,
		Threshold: DefaultThreshold,
		ACeiling:  DefaultACeiling,
		Samples:   DefaultSamples,
		DeltaMin:  DefaultDeltaMin,
		DeltaMax:  DefaultDeltaMax,
		Method:    integrators.MethodRK45,
		Tolerance: ic.Tolerance,
		MaxSteps:  ic.MaxSteps,
	}
}

func (c Config) Validate() error {
	positive := func(name string, v float64) error {
		if !(v > 0) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s must be positive and finite, got %v", ErrInvalidConfig, name, v)
		}
		return nil
	}
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"a_init", c.AInit},
		{"dt", c.Dt},
		{"threshold", c.Threshold},
		{"a_ceiling", c.ACeiling},
		{"delta_min", c.DeltaMin},
		{"delta_max", c.DeltaMax},
		{"tolerance", c.Tolerance},
	} {
		if err := positive(f.name, f.v); err != nil {
			return err
		}
	}
	switch {
	case c.ACeiling <= c.AInit:
		return fmt.Errorf("%w: a_ceiling %v must exceed a_init %v", ErrInvalidConfig, c.ACeiling, c.AInit)
	case c.DeltaMax <= c.DeltaMin:
		return fmt.Errorf("%w: delta_max %v must exceed delta_min %v", ErrInvalidConfig, c.DeltaMax, c.DeltaMin)
	case c.Samples < 3:
		return fmt.Errorf("%w: need at least 3 samples, got %d", ErrInvalidConfig, c.Samples)
	case c.MaxSteps <= 0:
		return fmt.Errorf("%w: max_steps must be positive, got %d", ErrInvalidConfig, c.MaxSteps)
	}
	if _, err := integrators.New(c.Method); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}
