package main

import (
	"fmt"
	"math"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/mgsim/internal/config"
	"github.com/san-kum/mgsim/internal/export"
	"github.com/san-kum/mgsim/internal/storage"
	"github.com/san-kum/mgsim/internal/tui"
)

// result is one command's output table plus what is needed to save it.
type result struct {
	command string
	title   string
	cfg     *config.Config
	table   *storage.Table
	params  map[string]float64
	plots   []string
}

func (r result) emit() error {
	fmt.Println(tui.Header(r.title, "model="+r.cfg.Model.String()))
	fmt.Println()
	if err := printTable(r.table); err != nil {
		return err
	}
	if plot {
		for _, col := range r.plots {
			if err := plotColumn(r.table, col); err != nil {
				return err
			}
		}
	}
	if svgPath != "" && len(r.plots) > 0 {
		if err := writeSVG(svgPath, r.table, r.plots[0]); err != nil {
			return err
		}
		fmt.Println()
		fmt.Println(tui.KV("svg", svgPath))
	}
	if save {
		st := storage.New(r.cfg.DataDir)
		if err := st.Init(); err != nil {
			return err
		}
		id, err := st.Save(r.command, r.cfg.Model.String(), r.params, r.table)
		if err != nil {
			return err
		}
		fmt.Println()
		fmt.Println(tui.KV("run id", id))
	}
	return nil
}

func printTable(t *storage.Table) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, strings.ToUpper(strings.Join(t.Columns, "\t")))
	for _, row := range t.Rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = fmt.Sprintf("%.6g", v)
		}
		fmt.Fprintln(w, strings.Join(cells, "\t"))
	}
	return w.Flush()
}

// plotColumn draws a column against row index. Columns spanning more than
// two decades are plotted as log10.
func plotColumn(t *storage.Table, name string) error {
	data, err := t.Column(name)
	if err != nil {
		return err
	}
	caption := name
	if spansDecades(data) {
		logged := make([]float64, 0, len(data))
		for _, v := range data {
			logged = append(logged, math.Log10(v))
		}
		data = logged
		caption = "log10 " + name
	}
	if len(data) == 0 {
		return nil
	}
	fmt.Println()
	fmt.Println(asciigraph.Plot(data,
		asciigraph.Height(10),
		asciigraph.Width(80),
		asciigraph.Caption(caption),
	))
	return nil
}

func spansDecades(data []float64) bool {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range data {
		if !(v > 0) {
			return false
		}
		lo, hi = math.Min(lo, v), math.Max(hi, v)
	}
	return len(data) > 0 && hi/lo > 100
}

// writeSVG plots column against the table's first column, on log axes for
// columns spanning decades.
func writeSVG(path string, t *storage.Table, column string) error {
	xs, err := t.Column(t.Columns[0])
	if err != nil {
		return err
	}
	ys, err := t.Column(column)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	x := export.Axis{Column: t.Columns[0], Log: spansDecades(xs)}
	y := export.Axis{Column: column, Log: spansDecades(ys)}
	if err := export.TableSVG(f, t, x, y, 800, 500, "#00ff88"); err != nil {
		return err
	}
	return f.Close()
}
