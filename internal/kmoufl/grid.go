// Package kmoufl holds tabulated K-mouflage expansion histories, computed
// externally by a Boltzmann code on a grid of (K0, beta), and resolves a
// model to its nearest grid cell.
package kmoufl

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"gonum.org/v1/gonum/interp"

	"github.com/san-kum/mgsim/internal/cosmo"
	"github.com/san-kum/mgsim/internal/storage"
)

var (
	ErrEmptyGrid    = errors.New("kmoufl: empty grid")
	ErrMissingCell  = errors.New("kmoufl: grid cell not tabulated")
	ErrInvalidCurve = errors.New("kmoufl: invalid tabulated curve")
)

// Cell is one tabulated background H(a), dH/da. Both are interpolated
// piecewise-linearly in a and extrapolated linearly beyond the table.
type Cell struct {
	K0   float64
	Beta float64

	a     []float64
	h, dh []float64
	hFit  interp.PiecewiseLinear
	dhFit interp.PiecewiseLinear
}

// NewCell builds a cell from samples with a strictly increasing. When dh is
// nil it is estimated from h with a second-order gradient.
func NewCell(k0, beta float64, a, h, dh []float64) (*Cell, error) {
	if len(a) < 3 || len(h) != len(a) || (dh != nil && len(dh) != len(a)) {
		return nil, fmt.Errorf("%w: need >= 3 samples of equal length (a=%d, H=%d, dH=%d)", ErrInvalidCurve, len(a), len(h), len(dh))
	}
	for i := range a {
		if !(a[i] > 0) || math.IsInf(a[i], 0) || math.IsNaN(h[i]) || math.IsInf(h[i], 0) {
			return nil, fmt.Errorf("%w: bad sample %d (a=%v, H=%v)", ErrInvalidCurve, i, a[i], h[i])
		}
		if i > 0 && !(a[i] > a[i-1]) {
			return nil, fmt.Errorf("%w: a not strictly increasing at sample %d", ErrInvalidCurve, i)
		}
	}
	if dh == nil {
		dh = Gradient(a, h)
	}

	c := &Cell{
		K0:   k0,
		Beta: beta,
		a:    append([]float64(nil), a...),
		h:    append([]float64(nil), h...),
		dh:   append([]float64(nil), dh...),
	}
	if err := c.hFit.Fit(c.a, c.h); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCurve, err)
	}
	if err := c.dhFit.Fit(c.a, c.dh); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCurve, err)
	}
	return c, nil
}

func (c *Cell) H(a float64) float64  { return extrapolate(&c.hFit, c.a, c.h, a) }
func (c *Cell) DH(a float64) float64 { return extrapolate(&c.dhFit, c.a, c.dh, a) }

func extrapolate(fit *interp.PiecewiseLinear, xs, ys []float64, x float64) float64 {
	n := len(xs)
	switch {
	case x < xs[0]:
		return ys[0] + (x-xs[0])*(ys[1]-ys[0])/(xs[1]-xs[0])
	case x > xs[n-1]:
		return ys[n-1] + (x-xs[n-1])*(ys[n-1]-ys[n-2])/(xs[n-1]-xs[n-2])
	}
	return fit.Predict(x)
}

// Gradient estimates dy/dx on a non-uniform grid: second-order central
// differences inside, first-order one-sided at the ends.
func Gradient(x, y []float64) []float64 {
	n := len(x)
	out := make([]float64, n)
	out[0] = (y[1] - y[0]) / (x[1] - x[0])
	out[n-1] = (y[n-1] - y[n-2]) / (x[n-1] - x[n-2])
	for i := 1; i < n-1; i++ {
		hs := x[i] - x[i-1]
		hd := x[i+1] - x[i]
		out[i] = (hs*hs*y[i+1] + (hd*hd-hs*hs)*y[i] - hd*hd*y[i-1]) / (hs * hd * (hd + hs))
	}
	return out
}

type key struct{ k0, beta float64 }

// Grid is an immutable collection of cells. It implements cosmo.CurveTable.
type Grid struct {
	k0s   []float64
	betas []float64
	cells map[key]*Cell
}

var _ cosmo.CurveTable = (*Grid)(nil)

func NewGrid(cells ...*Cell) (*Grid, error) {
	if len(cells) == 0 {
		return nil, ErrEmptyGrid
	}
	g := &Grid{cells: make(map[key]*Cell, len(cells))}
	for _, c := range cells {
		k := key{c.K0, c.Beta}
		if _, dup := g.cells[k]; dup {
			return nil, fmt.Errorf("%w: duplicate cell K0=%g beta=%g", ErrInvalidCurve, c.K0, c.Beta)
		}
		g.cells[k] = c
		g.k0s = insertUnique(g.k0s, c.K0)
		g.betas = insertUnique(g.betas, c.Beta)
	}
	return g, nil
}

func insertUnique(xs []float64, v float64) []float64 {
	i := sort.SearchFloat64s(xs, v)
	if i < len(xs) && xs[i] == v {
		return xs
	}
	xs = append(xs, 0)
	copy(xs[i+1:], xs[i:])
	xs[i] = v
	return xs
}

// nearest returns the grid value closest to v; ties go to the smaller value.
func nearest(xs []float64, v float64) float64 {
	best := xs[0]
	for _, x := range xs[1:] {
		if math.Abs(x-v) < math.Abs(best-v) {
			best = x
		}
	}
	return best
}

// Cell returns the nearest cell along each axis independently.
func (g *Grid) Cell(beta, k0 float64) (*Cell, error) {
	k := key{nearest(g.k0s, k0), nearest(g.betas, beta)}
	c, ok := g.cells[k]
	if !ok {
		return nil, fmt.Errorf("%w: K0=%g beta=%g", ErrMissingCell, k.k0, k.beta)
	}
	return c, nil
}

func (g *Grid) Nearest(beta, k0 float64) (cosmo.Curve, error) {
	c, err := g.Cell(beta, k0)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (g *Grid) K0s() []float64   { return append([]float64(nil), g.k0s...) }
func (g *Grid) Betas() []float64 { return append([]float64(nil), g.betas...) }

// Source locates one tabulated background on disk. The CSV must have
// columns "a" and "H"; a "dH" column is optional.
type Source struct {
	K0   float64 `yaml:"k0"`
	Beta float64 `yaml:"beta"`
	Path string  `yaml:"path"`
}

// Load reads every source and assembles a grid.
func Load(sources []Source, logger *slog.Logger) (*Grid, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cells := make([]*Cell, 0, len(sources))
	for _, src := range sources {
		tab, err := storage.ReadTableFile(src.Path)
		if err != nil {
			return nil, err
		}
		cell, err := CellFromTable(src.K0, src.Beta, tab)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", src.Path, err)
		}
		cells = append(cells, cell)
	}
	g, err := NewGrid(cells...)
	if err != nil {
		return nil, err
	}
	logger.Debug("kmoufl grid loaded", "cells", len(cells), "k0", g.k0s, "beta", g.betas)
	return g, nil
}

func CellFromTable(k0, beta float64, tab *storage.Table) (*Cell, error) {
	a, err := tab.Column("a")
	if err != nil {
		return nil, err
	}
	h, err := tab.Column("H")
	if err != nil {
		return nil, err
	}
	var dh []float64
	if tab.Has("dH") {
		if dh, err = tab.Column("dH"); err != nil {
			return nil, err
		}
	}
	return NewCell(k0, beta, a, h, dh)
}
