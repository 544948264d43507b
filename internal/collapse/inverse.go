package collapse

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync/atomic"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/interp"

	"github.com/san-kum/mgsim/internal/dynamo"
)

// RoundTripTolerance is the relative mismatch allowed between a requested
// collapse time and the collapse of an extrapolated delta_i.
const RoundTripTolerance = 1e-2

// InverseTable maps a collapse scale factor back to the initial
// overdensity that collapses then. It is immutable once built.
type InverseTable struct {
	ac      []float64
	deltaI  []float64
	dropped int
	fit     interp.FritschButland
}

// BuildInverse collapses Samples log-spaced initial overdensities in
// [DeltaMin, DeltaMax] and fits a monotone interpolant a_c -> delta_i
// through the ones that collapse.
func (s *Solver) BuildInverse(ctx context.Context) (*InverseTable, error) {
	n := s.cfg.Samples
	deltas := floats.LogSpan(make([]float64, n), s.cfg.DeltaMin, s.cfg.DeltaMax)
	events := make([]Event, n)

	s.logger.Debug("collapse scan started",
		"model", s.bg.Spec().String(), "samples", n,
		"delta_min", s.cfg.DeltaMin, "delta_max", s.cfg.DeltaMax)

	var done atomic.Int64
	err := dynamo.ForEach(ctx, n, s.cfg.Workers, func(ctx context.Context, i int) error {
		ev, err := s.Collapse(ctx, deltas[i])
		if err != nil {
			return err
		}
		events[i] = ev
		if s.progress != nil {
			s.progress(int(done.Add(1)), n)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	inv, err := newInverseTable(deltas, events)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("collapse scan finished",
		"collapsed", len(inv.ac), "dropped", inv.dropped,
		"a_min", inv.ac[0], "a_max", inv.ac[len(inv.ac)-1])
	return inv, nil
}

type sample struct{ ac, deltaI float64 }

func newInverseTable(deltas []float64, events []Event) (*InverseTable, error) {
	samples := make([]sample, 0, len(events))
	for i, ev := range events {
		if ev.Collapsed {
			samples = append(samples, sample{ev.A, deltas[i]})
		}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i].ac < samples[j].ac })

	inv := &InverseTable{}
	for _, sm := range samples {
		if k := len(inv.ac); k > 0 && sm.ac <= inv.ac[k-1] {
			continue
		}
		inv.ac = append(inv.ac, sm.ac)
		inv.deltaI = append(inv.deltaI, sm.deltaI)
	}
	inv.dropped = len(events) - len(inv.ac)

	if len(inv.ac) < 3 {
		return nil, fmt.Errorf("%w: only %d of %d sampled overdensities collapsed with distinct times",
			dynamo.ErrIntegrationDivergence, len(inv.ac), len(events))
	}
	if err := inv.fit.Fit(inv.ac, inv.deltaI); err != nil {
		return nil, err
	}
	return inv, nil
}

// InitialOverdensity interpolates delta_i at collapse scale factor ac,
// extrapolating linearly from the end segments outside the sampled range.
// An extrapolation that leaves delta_i non-positive fails with
// ErrOutsideTable.
func (t *InverseTable) InitialOverdensity(ac float64) (float64, error) {
	n := len(t.ac)
	var deltaI float64
	switch {
	case ac < t.ac[0]:
		deltaI = t.deltaI[0] + (ac-t.ac[0])*(t.deltaI[1]-t.deltaI[0])/(t.ac[1]-t.ac[0])
	case ac > t.ac[n-1]:
		deltaI = t.deltaI[n-1] + (ac-t.ac[n-1])*(t.deltaI[n-1]-t.deltaI[n-2])/(t.ac[n-1]-t.ac[n-2])
	default:
		return t.fit.Predict(ac), nil
	}
	if !(deltaI > 0) || math.IsInf(deltaI, 0) {
		return 0, fmt.Errorf("%w: a_c=%g extrapolates to delta_i=%g from the sampled range [%g, %g]",
			ErrOutsideTable, ac, deltaI, t.ac[0], t.ac[n-1])
	}
	return deltaI, nil
}

// Contains reports whether ac lies inside the sampled collapse range.
func (t *InverseTable) Contains(ac float64) bool {
	return ac >= t.ac[0] && ac <= t.ac[len(t.ac)-1]
}

// Range is the span of sampled collapse scale factors.
func (t *InverseTable) Range() (lo, hi float64) { return t.ac[0], t.ac[len(t.ac)-1] }

// Len is the number of collapsing samples in the table.
func (t *InverseTable) Len() int { return len(t.ac) }

// Dropped counts samples left out because they never collapsed or shared a
// collapse time with an earlier sample.
func (t *InverseTable) Dropped() int { return t.dropped }

// Points returns copies of the tabulated (a_c, delta_i) pairs, a_c ascending.
func (t *InverseTable) Points() (ac, deltaI []float64) {
	return append([]float64(nil), t.ac...), append([]float64(nil), t.deltaI...)
}

// InitialOverdensity builds a fresh inverse table and evaluates it at ac.
// Use BuildInverse directly to reuse the table across collapse times.
func (s *Solver) InitialOverdensity(ctx context.Context, ac float64) (float64, error) {
	inv, err := s.BuildInverse(ctx)
	if err != nil {
		return 0, err
	}
	return s.InitialOverdensityFromInverse(ctx, inv, ac)
}

// InitialOverdensityFromInverse evaluates inv at ac. Outside the sampled
// range the extrapolated delta_i is collapsed once more and must land
// within RoundTripTolerance of ac, else ErrOutsideTable is returned.
func (s *Solver) InitialOverdensityFromInverse(ctx context.Context, inv *InverseTable, ac float64) (float64, error) {
	deltaI, err := inv.InitialOverdensity(ac)
	if err != nil || inv.Contains(ac) {
		return deltaI, err
	}
	ev, err := s.Collapse(ctx, deltaI)
	if err != nil {
		return 0, err
	}
	if !ev.Collapsed || math.Abs(ev.A-ac) > RoundTripTolerance*ac {
		lo, hi := inv.Range()
		return 0, fmt.Errorf("%w: delta_i=%g extrapolated for a_c=%g collapses at a=%g (sampled range [%g, %g])",
			ErrOutsideTable, deltaI, ac, ev.A, lo, hi)
	}
	return deltaI, nil
}
