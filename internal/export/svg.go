// Package export renders result tables for use outside the terminal.
package export

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/san-kum/mgsim/internal/storage"
)

var ErrNotPlottable = errors.New("export: not enough plottable points")

// Axis picks a table column and whether it is drawn on a log10 scale.
type Axis struct {
	Column string
	Log    bool
}

type point struct{ x, y float64 }

// TableSVG writes y against x from tab as an SVG line plot. Rows where a
// log axis value is not positive or a value is not finite are skipped.
func TableSVG(w io.Writer, tab *storage.Table, x, y Axis, width, height int, strokeColor string) error {
	xs, err := tab.Column(x.Column)
	if err != nil {
		return err
	}
	ys, err := tab.Column(y.Column)
	if err != nil {
		return err
	}

	points := make([]point, 0, len(xs))
	for i := range xs {
		px, okX := axisValue(xs[i], x.Log)
		py, okY := axisValue(ys[i], y.Log)
		if okX && okY {
			points = append(points, point{px, py})
		}
	}
	if len(points) < 2 {
		return fmt.Errorf("%w: %s vs %s has %d", ErrNotPlottable, y.Column, x.Column, len(points))
	}

	minX, maxX := points[0].x, points[0].x
	minY, maxY := points[0].y, points[0].y
	for _, p := range points {
		minX, maxX = math.Min(minX, p.x), math.Max(maxX, p.x)
		minY, maxY = math.Min(minY, p.y), math.Max(maxY, p.y)
	}

	// Add padding
	rangeX := maxX - minX
	rangeY := maxY - minY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}
	minX -= rangeX * 0.1
	maxX += rangeX * 0.1
	minY -= rangeY * 0.1
	maxY += rangeY * 0.1
	rangeX = maxX - minX
	rangeY = maxY - minY

	var sb strings.Builder
	fmt.Fprintf(&sb, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
<text x="8" y="16" fill="#888899" font-family="monospace" font-size="12">%s vs %s</text>
<path fill="none" stroke="%s" stroke-width="1.5" d="M`,
		width, height, width, height, axisLabel(y), axisLabel(x), strokeColor)

	for i, p := range points {
		px := (p.x - minX) / rangeX * float64(width)
		py := float64(height) - (p.y-minY)/rangeY*float64(height)
		if i == 0 {
			fmt.Fprintf(&sb, "%.1f,%.1f", px, py)
		} else {
			fmt.Fprintf(&sb, " L%.1f,%.1f", px, py)
		}
	}

	sb.WriteString(`"/>
</svg>
`)
	_, err = io.WriteString(w, sb.String())
	return err
}

func axisValue(v float64, log bool) (float64, bool) {
	if log {
		if !(v > 0) {
			return 0, false
		}
		v = math.Log10(v)
	}
	return v, !math.IsNaN(v) && !math.IsInf(v, 0)
}

func axisLabel(a Axis) string {
	if a.Log {
		return "log10 " + a.Column
	}
	return a.Column
}
