package main

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/spf13/cobra"

	"github.com/san-kum/mgsim/internal/config"
	"github.com/san-kum/mgsim/internal/experiment"
	"github.com/san-kum/mgsim/internal/optim"
	"github.com/san-kum/mgsim/internal/storage"
	"github.com/san-kum/mgsim/internal/tui"
)

// scanSetters are the configuration values a scan may vary.
var scanSetters = map[string]func(*config.Config, float64){
	"par1":     func(c *config.Config, v float64) { c.Model.Par1 = v },
	"par2":     func(c *config.Config, v float64) { c.Model.Par2 = v },
	"omega_m0": func(c *config.Config, v float64) { c.Cosmology.OmegaM0 = v },
	"h0":       func(c *config.Config, v float64) { c.Cosmology.H0 = v },
}

func scanCmd() *cobra.Command {
	var params []string
	var a, z, target float64
	var scanWorkers int
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "scan delta_c over a grid of model parameters",
		Example: "  mgsim scan --preset ndgp/n1 --param par1=500,1000,3000 --a 1\n" +
			"  mgsim scan --coupling E11 --param par1=-0.5:0.5:11 --target 1.70",
		RunE: func(cmd *cobra.Command, args []string) error {
			epoch, err := scaleFactor(cmd, a, z)
			if err != nil {
				return err
			}
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if len(params) == 0 {
				return fmt.Errorf("at least one --param is required")
			}

			names := make([]string, 0, len(params))
			ranges := make([][]float64, 0, len(params))
			for _, p := range params {
				name, values, err := optim.ParseParam(p)
				if err != nil {
					return err
				}
				if _, ok := scanSetters[name]; !ok {
					return fmt.Errorf("cannot scan %q (valid: %v)", name, scannable())
				}
				names = append(names, name)
				ranges = append(ranges, values)
			}
			grid, err := optim.NewGridSearch(names, ranges)
			if err != nil {
				return err
			}

			eval := func(ctx context.Context, values map[string]float64) (float64, error) {
				c := *cfg
				for name, v := range values {
					scanSetters[name](&c, v)
				}
				e, err := experiment.New(&c)
				if err != nil {
					return 0, err
				}
				return e.DeltaC(ctx, epoch)
			}
			objective := func(v float64) float64 { return v }
			if cmd.Flags().Changed("target") {
				objective = func(v float64) float64 { return math.Abs(v - target) }
			}

			best, all, searchErr := grid.Search(cmd.Context(), scanWorkers, eval, objective)
			if len(all) == 0 {
				return searchErr
			}

			tab := storage.NewTable(append(grid.Params(), "delta_c")...)
			for _, ev := range all {
				if ev.Err != nil {
					fmt.Println(tui.Warn(fmt.Sprintf("skipped %v: %v", ev.Params, ev.Err)))
					continue
				}
				row := make([]float64, 0, len(names)+1)
				for _, name := range grid.Params() {
					row = append(row, ev.Params[name])
				}
				tab.Append(append(row, ev.Value)...)
			}
			if err := (result{
				command: "scan",
				title:   fmt.Sprintf("delta_c at z=%.3g over %d grid points", 1/epoch-1, len(all)),
				cfg:     cfg,
				table:   tab,
				params:  map[string]float64{"a": epoch},
				plots:   []string{"delta_c"},
			}).emit(); err != nil {
				return err
			}
			if searchErr != nil {
				return searchErr
			}
			fmt.Println()
			fmt.Println(tui.KV("best", fmt.Sprintf("%v delta_c=%.6f", best.Params, best.Value)))
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&params, "param", nil, "parameter grid as name=v1,v2 or name=lo:hi:n (repeatable)")
	cmd.Flags().Float64Var(&target, "target", 0, "pick the point whose delta_c is closest to this value")
	cmd.Flags().IntVar(&scanWorkers, "scan-workers", 1, "grid points evaluated in parallel")
	addEpochFlags(cmd, &a, &z)
	return cmd
}

func scannable() []string {
	names := make([]string, 0, len(scanSetters))
	for name := range scanSetters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
