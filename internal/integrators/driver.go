package integrators

import (
	"fmt"
	"math"
	"strings"

	"github.com/san-kum/mgsim/internal/dynamo"
)

const (
	MethodRK45 = "rk45"
	MethodRK4  = "rk4"
)

// Config controls how a Driver advances a system between reporting points.
type Config struct {
	// Tolerance is the relative error tolerance for adaptive steppers.
	Tolerance float64
	// MaxSteps bounds the number of attempted steps over the driver's life.
	MaxSteps int
	// MinStepFraction is the smallest step allowed, relative to |t|.
	MinStepFraction float64
	// FixedFraction caps fixed steps at FixedFraction*|t|.
	FixedFraction float64
}

func DefaultConfig() Config {
	return Config{
		Tolerance:       1e-8,
		MaxSteps:        5_000_000,
		MinStepFraction: 1e-14,
		FixedFraction:   1e-2,
	}
}

// New returns a fresh stepper for the named method.
func New(method string) (dynamo.Stepper, error) {
	switch strings.ToLower(method) {
	case "", MethodRK45:
		return NewRK45(), nil
	case MethodRK4:
		return NewRK4(), nil
	default:
		return nil, fmt.Errorf("unknown integrator: %s", method)
	}
}

// Driver advances a single integration. It remembers the last accepted step
// size and the number of steps taken, so it must not be shared between
// integrations.
type Driver struct {
	stepper dynamo.Stepper
	cfg     Config
	h       float64
	steps   int
}

func NewDriver(stepper dynamo.Stepper, cfg Config) *Driver {
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = DefaultConfig().Tolerance
	}
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = DefaultConfig().MaxSteps
	}
	if cfg.MinStepFraction <= 0 {
		cfg.MinStepFraction = DefaultConfig().MinStepFraction
	}
	if cfg.FixedFraction <= 0 {
		cfg.FixedFraction = DefaultConfig().FixedFraction
	}
	return &Driver{stepper: stepper, cfg: cfg}
}

// Advance integrates sys from t to tEnd. If stop is non-nil it is evaluated
// after every accepted step and Advance returns as soon as it reports true,
// with the state and time of that step.
func (d *Driver) Advance(sys dynamo.System, x dynamo.State, t, tEnd float64, stop func(x dynamo.State, t float64) bool) (dynamo.State, float64, bool, error) {
	if len(x) != sys.StateDim() {
		return x, t, false, dynamo.ErrDimensionMismatch
	}
	if adaptive, ok := d.stepper.(dynamo.AdaptiveStepper); ok {
		return d.advanceAdaptive(adaptive, sys, x, t, tEnd, stop)
	}
	return d.advanceFixed(sys, x, t, tEnd, stop)
}

func (d *Driver) advanceAdaptive(stepper dynamo.AdaptiveStepper, sys dynamo.System, x dynamo.State, t, tEnd float64, stop func(dynamo.State, float64) bool) (dynamo.State, float64, bool, error) {
	if d.h <= 0 {
		d.h = tEnd - t
		if t != 0 {
			d.h = math.Min(d.h, 1e-2*math.Abs(t))
		}
	}

	for t < tEnd {
		if d.steps >= d.cfg.MaxSteps {
			return x, t, false, &dynamo.SimulationError{Step: d.steps, Time: t, State: x.Clone(), Wrapped: dynamo.ErrStepBudget}
		}
		if d.h < d.minStep(t) {
			return x, t, false, &dynamo.SimulationError{Step: d.steps, Time: t, State: x.Clone(), Wrapped: dynamo.ErrStepTooSmall}
		}

		h := d.h
		last := false
		if t+h >= tEnd {
			h = tEnd - t
			last = true
		}

		next, ratio, hNext := stepper.StepAdaptive(sys, x, t, h, d.cfg.Tolerance)
		d.steps++

		valid := next.IsValid()
		if !valid || !(ratio <= 1) {
			d.h = math.Min(hNext, 0.5*h)
			if d.h < d.minStep(t) {
				cause := dynamo.ErrStepTooSmall
				if !valid {
					cause = dynamo.ErrInvalidState
				}
				return x, t, false, &dynamo.SimulationError{Step: d.steps, Time: t, State: x.Clone(), Wrapped: cause}
			}
			continue
		}

		x = next
		if last {
			t = tEnd
			d.h = math.Max(d.h, hNext)
		} else {
			t += h
			d.h = hNext
		}

		if stop != nil && stop(x, t) {
			return x, t, true, nil
		}
	}
	return x, t, false, nil
}

func (d *Driver) advanceFixed(sys dynamo.System, x dynamo.State, t, tEnd float64, stop func(dynamo.State, float64) bool) (dynamo.State, float64, bool, error) {
	for t < tEnd {
		if d.steps >= d.cfg.MaxSteps {
			return x, t, false, &dynamo.SimulationError{Step: d.steps, Time: t, State: x.Clone(), Wrapped: dynamo.ErrStepBudget}
		}

		h := tEnd - t
		if t != 0 {
			h = math.Min(h, d.cfg.FixedFraction*math.Abs(t))
		}
		last := t+h >= tEnd

		next := d.stepper.Step(sys, x, t, h)
		d.steps++
		if !next.IsValid() {
			return x, t, false, &dynamo.SimulationError{Step: d.steps, Time: t, State: x.Clone(), Wrapped: dynamo.ErrInvalidState}
		}

		x = next
		if last {
			t = tEnd
		} else {
			t += h
		}

		if stop != nil && stop(x, t) {
			return x, t, true, nil
		}
	}
	return x, t, false, nil
}

func (d *Driver) minStep(t float64) float64 {
	return d.cfg.MinStepFraction * math.Max(math.Abs(t), 1e-300)
}
