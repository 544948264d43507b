package collapse

import (
	"context"
	"fmt"
	"math"

	"github.com/san-kum/mgsim/internal/dynamo"
)

// Linear integrates the linearised equation from AInit to a with the same
// initial conditions as Collapse. The trajectory holds a point every Dt and
// ends exactly at a.
func (s *Solver) Linear(ctx context.Context, deltaI, a float64) (Trajectory, error) {
	traj := make(Trajectory, 0, int((a-s.cfg.AInit)/s.cfg.Dt)+2)
	err := s.runLinear(ctx, deltaI, a, func(p Point) { traj = append(traj, p) })
	if err != nil {
		return nil, err
	}
	return traj, nil
}

func (s *Solver) runLinear(ctx context.Context, deltaI, target float64, visit func(Point)) error {
	if math.IsNaN(deltaI) || math.IsInf(deltaI, 0) {
		return fmt.Errorf("%w: initial overdensity must be finite, got %v", ErrInvalidInput, deltaI)
	}
	if !(target >= s.cfg.AInit) || math.IsInf(target, 0) {
		return fmt.Errorf("%w: scale factor %v is before a_init %v", ErrInvalidInput, target, s.cfg.AInit)
	}

	x := dynamo.State{deltaI, deltaI / s.cfg.AInit}
	a := s.cfg.AInit
	if target == a {
		visit(Point{A: a, Delta: deltaI})
		return nil
	}

	sys := newGrowthSystem(s.bg, false)
	drv := s.driver()
	for n := 1; a < target; n++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := math.Min(s.reportingPoint(n), target)
		var err error
		x, a, _, err = drv.Advance(sys, x, a, end, nil)
		if err != nil {
			return s.integrationError(sys, deltaI, err)
		}
		visit(Point{A: a, Delta: x[0]})
	}
	return nil
}

func (s *Solver) linearAt(ctx context.Context, deltaI, a float64) (float64, error) {
	var last Point
	if err := s.runLinear(ctx, deltaI, a, func(p Point) { last = p }); err != nil {
		return 0, err
	}
	return last.Delta, nil
}

// DeltaC is the critical linear overdensity for collapse at ac: the linear
// evolution, to ac, of the initial overdensity that collapses at ac.
func (s *Solver) DeltaC(ctx context.Context, ac float64) (float64, error) {
	inv, err := s.BuildInverse(ctx)
	if err != nil {
		return 0, err
	}
	return s.DeltaCFromInverse(ctx, inv, ac)
}

// DeltaCFromInverse is DeltaC with a previously built inverse table.
func (s *Solver) DeltaCFromInverse(ctx context.Context, inv *InverseTable, ac float64) (float64, error) {
	if !(ac > s.cfg.AInit) || math.IsInf(ac, 0) {
		return 0, fmt.Errorf("%w: collapse scale factor must exceed a_init, got %v", ErrInvalidInput, ac)
	}
	deltaI, err := s.InitialOverdensityFromInverse(ctx, inv, ac)
	if err != nil {
		return 0, err
	}
	return s.linearAt(ctx, deltaI, ac)
}

// GrowthFactor is the linear growth D(a)/D(1) of the model.
func (s *Solver) GrowthFactor(ctx context.Context, a float64) (float64, error) {
	if !(a > s.cfg.AInit) || math.IsInf(a, 0) {
		return 0, fmt.Errorf("%w: scale factor must exceed a_init, got %v", ErrInvalidInput, a)
	}
	const deltaI = 1e-5
	da, err := s.linearAt(ctx, deltaI, a)
	if err != nil {
		return 0, err
	}
	d1, err := s.linearAt(ctx, deltaI, 1)
	if err != nil {
		return 0, err
	}
	return da / d1, nil
}
