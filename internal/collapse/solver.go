package collapse

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/san-kum/mgsim/internal/cosmo"
	"github.com/san-kum/mgsim/internal/dynamo"
	"github.com/san-kum/mgsim/internal/integrators"
)

// Point is one sample of an overdensity trajectory.
type Point struct {
	A     float64
	Delta float64
}

type Trajectory []Point

// Event is the outcome of a nonlinear collapse. The zero Event means the
// overdensity did not reach the threshold before the scale-factor ceiling.
type Event struct {
	A         float64
	Delta     float64
	Collapsed bool
}

type Option func(*Solver)

func WithLogger(l *slog.Logger) Option {
	return func(s *Solver) { s.logger = l }
}

// WithProgress installs a callback invoked after every collapse of an
// inverse-table scan. It is called from worker goroutines and must be safe
// for concurrent use.
func WithProgress(fn func(done, total int)) Option {
	return func(s *Solver) { s.progress = fn }
}

type Solver struct {
	bg       *cosmo.Background
	cfg      Config
	logger   *slog.Logger
	progress func(done, total int)
}

func New(bg *cosmo.Background, cfg Config, opts ...Option) (*Solver, error) {
	if bg == nil {
		return nil, fmt.Errorf("%w: nil background", ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	spec := bg.Spec()
	if spec.Coupling == cosmo.CouplingNDGP && spec.Regime == cosmo.RegimeUnset {
		return nil, fmt.Errorf("%w: nDGP collapse needs a regime (linear or nonlinear)", cosmo.ErrInvalidParameterCombination)
	}

	s := &Solver{bg: bg, cfg: cfg, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Solver) Config() Config                { return s.cfg }
func (s *Solver) Background() *cosmo.Background { return s.bg }

func (s *Solver) driver() *integrators.Driver {
	stepper, _ := integrators.New(s.cfg.Method)
	ic := integrators.DefaultConfig()
	ic.Tolerance = s.cfg.Tolerance
	ic.MaxSteps = s.cfg.MaxSteps
	return integrators.NewDriver(stepper, ic)
}

// reportingPoint is the n-th point of the reporting grid. Computing it from
// n rather than accumulating Dt keeps the grid free of drift.
func (s *Solver) reportingPoint(n int) float64 {
	return s.cfg.AInit + float64(n)*s.cfg.Dt
}

// Collapse integrates the nonlinear equation from AInit with
// delta = deltaI and d delta/da = deltaI/AInit. It reports the first
// accepted integration step at which delta reaches the threshold, or the
// zero Event once the scale factor passes the ceiling.
func (s *Solver) Collapse(ctx context.Context, deltaI float64) (Event, error) {
	if !(deltaI >= 0) || math.IsInf(deltaI, 0) {
		return Event{}, fmt.Errorf("%w: initial overdensity must be finite and >= 0, got %v", ErrInvalidInput, deltaI)
	}
	if deltaI >= s.cfg.Threshold {
		return Event{A: s.cfg.AInit, Delta: deltaI, Collapsed: true}, nil
	}

	sys := newGrowthSystem(s.bg, true)
	drv := s.driver()
	threshold := s.cfg.Threshold
	stop := func(x dynamo.State, _ float64) bool { return x[0] >= threshold }

	x := dynamo.State{deltaI, deltaI / s.cfg.AInit}
	a := s.cfg.AInit
	for n := 1; ; n++ {
		if err := ctx.Err(); err != nil {
			return Event{}, err
		}
		next, t, stopped, err := drv.Advance(sys, x, a, s.reportingPoint(n), stop)
		if err != nil {
			return Event{}, s.integrationError(sys, deltaI, err)
		}
		if stopped {
			return Event{A: t, Delta: next[0], Collapsed: true}, nil
		}
		x, a = next, t
		if a > s.cfg.ACeiling {
			return Event{}, nil
		}
	}
}

// integrationError prefers a coupling failure recorded by the system over
// the divergence it provoked.
func (s *Solver) integrationError(sys *growthSystem, deltaI float64, err error) error {
	if sys.err != nil {
		return sys.err
	}
	return fmt.Errorf("delta_i=%g: %w", deltaI, err)
}
