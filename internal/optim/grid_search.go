// Package optim scans model parameters over a grid.
package optim

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/san-kum/mgsim/internal/dynamo"
)

var (
	ErrInvalidGrid = errors.New("optim: invalid grid")
	ErrNoCandidate = errors.New("optim: no candidate evaluated successfully")
)

type GridSearch struct {
	paramNames []string
	ranges     [][]float64
}

func NewGridSearch(params []string, ranges [][]float64) (*GridSearch, error) {
	if len(params) == 0 || len(params) != len(ranges) {
		return nil, fmt.Errorf("%w: %d parameters for %d ranges", ErrInvalidGrid, len(params), len(ranges))
	}
	for i, r := range ranges {
		if len(r) == 0 {
			return nil, fmt.Errorf("%w: no values for %s", ErrInvalidGrid, params[i])
		}
	}
	return &GridSearch{paramNames: params, ranges: ranges}, nil
}

func (g *GridSearch) Params() []string { return append([]string(nil), g.paramNames...) }

// Candidates is the cartesian product of the ranges, first parameter
// outermost.
func (g *GridSearch) Candidates() []map[string]float64 {
	var out []map[string]float64
	g.collect(0, make(map[string]float64), &out)
	return out
}

func (g *GridSearch) collect(depth int, current map[string]float64, out *[]map[string]float64) {
	if depth == len(g.paramNames) {
		*out = append(*out, current)
		return
	}
	paramName := g.paramNames[depth]
	for _, val := range g.ranges[depth] {
		newParams := make(map[string]float64, len(current)+1)
		for k, v := range current {
			newParams[k] = v
		}
		newParams[paramName] = val
		g.collect(depth+1, newParams, out)
	}
}

// Evaluation is one grid point. Err is set when the point could not be
// evaluated; such points never win.
type Evaluation struct {
	Params map[string]float64
	Value  float64
	Err    error
}

// Search evaluates every candidate on up to workers goroutines and returns
// the one minimising objective(value) together with all evaluations in
// candidate order. Failed candidates are kept in the list and skipped.
func (g *GridSearch) Search(
	ctx context.Context,
	workers int,
	eval func(ctx context.Context, params map[string]float64) (float64, error),
	objective func(value float64) float64,
) (Evaluation, []Evaluation, error) {
	candidates := g.Candidates()
	results := make([]Evaluation, len(candidates))
	err := dynamo.ForEach(ctx, len(candidates), workers, func(ctx context.Context, i int) error {
		v, err := eval(ctx, candidates[i])
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		results[i] = Evaluation{Params: candidates[i], Value: v, Err: err}
		return nil
	})
	if err != nil {
		return Evaluation{}, nil, err
	}

	bestIdx := -1
	best := math.Inf(1)
	for i, r := range results {
		if r.Err != nil {
			continue
		}
		if score := objective(r.Value); score < best {
			best, bestIdx = score, i
		}
	}
	if bestIdx < 0 {
		return Evaluation{}, results, ErrNoCandidate
	}
	return results[bestIdx], results, nil
}

// ParseParam parses "name=v1,v2,..." or "name=lo:hi:n" (n evenly spaced
// values, inclusive).
func ParseParam(s string) (string, []float64, error) {
	name, spec, ok := strings.Cut(s, "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" || spec == "" {
		return "", nil, fmt.Errorf("%w: expected name=values, got %q", ErrInvalidGrid, s)
	}

	if parts := strings.Split(spec, ":"); len(parts) == 3 {
		lo, err1 := strconv.ParseFloat(parts[0], 64)
		hi, err2 := strconv.ParseFloat(parts[1], 64)
		n, err3 := strconv.Atoi(parts[2])
		if err := errors.Join(err1, err2, err3); err != nil {
			return "", nil, fmt.Errorf("%w: %s: %v", ErrInvalidGrid, s, err)
		}
		if n < 2 {
			return "", nil, fmt.Errorf("%w: %s: need at least 2 points", ErrInvalidGrid, s)
		}
		values := make([]float64, n)
		for i := range values {
			values[i] = lo + (hi-lo)*float64(i)/float64(n-1)
		}
		return name, values, nil
	}

	var values []float64
	for _, field := range strings.Split(spec, ",") {
		v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err != nil {
			return "", nil, fmt.Errorf("%w: %s: %v", ErrInvalidGrid, s, err)
		}
		values = append(values, v)
	}
	return name, values, nil
}
