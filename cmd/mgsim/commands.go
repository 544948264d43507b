package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/montanaflynn/stats"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/mgsim/internal/collapse"
	"github.com/san-kum/mgsim/internal/config"
	"github.com/san-kum/mgsim/internal/cosmo"
	"github.com/san-kum/mgsim/internal/experiment"
	"github.com/san-kum/mgsim/internal/massfunc"
	"github.com/san-kum/mgsim/internal/storage"
	"github.com/san-kum/mgsim/internal/tui"
)

// scaleFactor reads --a, or --z when it was given.
func scaleFactor(cmd *cobra.Command, a, z float64) (float64, error) {
	if cmd.Flags().Changed("z") {
		a = 1 / (1 + z)
	}
	if !(a > 0) || math.IsInf(a, 0) {
		return 0, fmt.Errorf("scale factor must be positive, got %v", a)
	}
	return a, nil
}

func addEpochFlags(cmd *cobra.Command, a, z *float64) {
	cmd.Flags().Float64Var(a, "a", 1, "scale factor")
	cmd.Flags().Float64Var(z, "z", 0, "redshift (overrides --a)")
}

func scaleGrid(aMin, aMax float64, points int) ([]float64, error) {
	if !(aMin > 0) || !(aMax > aMin) || points < 2 {
		return nil, fmt.Errorf("need 0 < a-min < a-max and at least 2 points")
	}
	return floats.LogSpan(make([]float64, points), aMin, aMax), nil
}

func backgroundCmd() *cobra.Command {
	var aMin, aMax float64
	var points int
	cmd := &cobra.Command{
		Use:   "background",
		Short: "tabulate the expansion history H(a)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			e, err := experiment.New(cfg)
			if err != nil {
				return err
			}
			grid, err := scaleGrid(aMin, aMax, points)
			if err != nil {
				return err
			}
			bg := e.Background()
			tab := storage.NewTable("a", "z", "H", "dH_da", "E", "Omega_m", "Omega_L")
			for _, a := range grid {
				tab.Append(a, 1/a-1, bg.H(a), bg.DH(a), bg.E(a), bg.OmegaM(a), bg.OmegaL(a))
			}
			return result{
				command: "background",
				title:   "expansion history",
				cfg:     cfg,
				table:   tab,
				params:  map[string]float64{"a_min": aMin, "a_max": aMax},
				plots:   []string{"E", "Omega_m"},
			}.emit()
		},
	}
	cmd.Flags().Float64Var(&aMin, "a-min", 1e-3, "smallest scale factor")
	cmd.Flags().Float64Var(&aMax, "a-max", 1, "largest scale factor")
	cmd.Flags().IntVar(&points, "points", 30, "number of scale factors")
	return cmd
}

func muCmd() *cobra.Command {
	var aMin, aMax, x float64
	var points int
	cmd := &cobra.Command{
		Use:   "mu",
		Short: "tabulate the effective gravitational coupling mu(a)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			e, err := experiment.New(cfg)
			if err != nil {
				return err
			}
			grid, err := scaleGrid(aMin, aMax, points)
			if err != nil {
				return err
			}
			screening := cosmo.Linear()
			if cmd.Flags().Changed("x") {
				screening = cosmo.Nonlinear(x)
			}
			bg := e.Background()
			tab := storage.NewTable("a", "z", "mu")
			for _, a := range grid {
				mu, err := bg.Mu(a, screening)
				if err != nil {
					return err
				}
				tab.Append(a, 1/a-1, mu)
			}
			return result{
				command: "mu",
				title:   "gravitational coupling",
				cfg:     cfg,
				table:   tab,
				params:  map[string]float64{"a_min": aMin, "a_max": aMax, "x": x},
				plots:   []string{"mu"},
			}.emit()
		},
	}
	cmd.Flags().Float64Var(&aMin, "a-min", 0.1, "smallest scale factor")
	cmd.Flags().Float64Var(&aMax, "a-max", 1, "largest scale factor")
	cmd.Flags().IntVar(&points, "points", 20, "number of scale factors")
	cmd.Flags().Float64Var(&x, "x", 0, "Vainshtein screening variable R/r_V (nonlinear nDGP)")
	return cmd
}

func collapseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collapse <delta_i>",
		Short: "integrate the nonlinear collapse of one initial overdensity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deltaI, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return fmt.Errorf("invalid delta_i %q: %w", args[0], err)
			}
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			e, err := experiment.New(cfg)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			start := time.Now()
			ev, err := e.Solver().Collapse(ctx, deltaI)
			if err != nil {
				return err
			}

			fmt.Println(tui.Header("spherical collapse", "model="+cfg.Model.String()))
			fmt.Println(tui.KV("delta_i", fmt.Sprintf("%g", deltaI)))
			if !ev.Collapsed {
				fmt.Println(tui.Warn(fmt.Sprintf("no collapse before a=%g", cfg.Solver.ACeiling)))
				return nil
			}
			fmt.Println(tui.KV("a_c", fmt.Sprintf("%.6f", ev.A)))
			fmt.Println(tui.KV("z_c", fmt.Sprintf("%.6f", 1/ev.A-1)))
			fmt.Println(tui.KV("delta at threshold", fmt.Sprintf("%.4g", ev.Delta)))
			fmt.Println(tui.KV("elapsed", time.Since(start).Round(time.Millisecond).String()))

			if !plot && !save {
				return nil
			}
			traj, err := e.Solver().Linear(ctx, deltaI, ev.A)
			if err != nil {
				return err
			}
			tab := storage.NewTable("a", "delta_lin")
			stride := max(1, len(traj)/200)
			for i, p := range traj {
				if i%stride == 0 || i == len(traj)-1 {
					tab.Append(p.A, p.Delta)
				}
			}
			fmt.Println()
			return result{
				command: "collapse",
				title:   "linear trajectory to collapse",
				cfg:     cfg,
				table:   tab,
				params:  map[string]float64{"delta_i": deltaI, "a_c": ev.A},
				plots:   []string{"delta_lin"},
			}.emit()
		},
	}
	return cmd
}

func deltacCmd() *cobra.Command {
	var inverse bool
	cmd := &cobra.Command{
		Use:   "deltac <a>...",
		Short: "critical linear overdensity for collapse at each scale factor",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scales := make([]float64, len(args))
			for i, arg := range args {
				a, err := strconv.ParseFloat(arg, 64)
				if err != nil {
					return fmt.Errorf("invalid scale factor %q: %w", arg, err)
				}
				scales[i] = a
			}
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			tab := storage.NewTable("a", "z", "delta_c", "delta_i")
			params := make(map[string]float64)
			var points *storage.Table
			err = runExperiment(cmd, cfg, "inverse collapse table", func(ctx context.Context, e *experiment.Experiment) error {
				inv, err := e.Inverse(ctx)
				if err != nil {
					return err
				}
				params["a_c_min"], params["a_c_max"] = inv.Range()
				params["collapsed"] = float64(inv.Len())
				params["dropped"] = float64(inv.Dropped())
				if inverse {
					points = storage.NewTable("a_c", "delta_i")
					ac, deltaI := inv.Points()
					for i := range ac {
						points.Append(ac[i], deltaI[i])
					}
				}
				for _, a := range scales {
					dc, err := e.DeltaC(ctx, a)
					if err != nil {
						return err
					}
					deltaI, err := e.Solver().InitialOverdensityFromInverse(ctx, inv, a)
					if err != nil {
						return err
					}
					tab.Append(a, 1/a-1, dc, deltaI)
				}
				return nil
			})
			if err != nil {
				return err
			}
			fmt.Println(tui.KV("sampled a_c", fmt.Sprintf("[%.4g, %.4g]", params["a_c_min"], params["a_c_max"])))
			fmt.Println(tui.KV("collapsed", fmt.Sprintf("%d of %d", int(params["collapsed"]), cfg.Solver.Samples)))
			fmt.Println()
			if points != nil {
				if err := printTable(points); err != nil {
					return err
				}
				fmt.Println()
			}
			return result{
				command: "deltac",
				title:   "critical overdensity",
				cfg:     cfg,
				table:   tab,
				params:  params,
				plots:   []string{"delta_c"},
			}.emit()
		},
	}
	cmd.Flags().BoolVar(&inverse, "inverse", false, "also print the sampled (a_c, delta_i) table")
	return cmd
}

func hmfCmd() *cobra.Command {
	var a, z float64
	cmd := &cobra.Command{
		Use:   "hmf",
		Short: "Sheth-Tormen halo mass function",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := scaleFactor(cmd, a, z)
			if err != nil {
				return err
			}
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			tab := storage.NewTable("M", "dn_dM", "dn_dlnM", "n_gt_M")
			err = runExperiment(cmd, cfg, "halo mass function", func(ctx context.Context, e *experiment.Experiment) error {
				masses := e.MassGrid()
				dndm, err := e.HaloMassFunction(ctx, a, masses)
				if err != nil {
					return err
				}
				dndlnm := massfunc.DnDlnM(masses, dndm)
				for i, m := range masses {
					above, err := massfunc.NumberDensityAbove(masses, dndm, m)
					if err != nil {
						return err
					}
					tab.Append(m, dndm[i], dndlnm[i], above)
				}
				return nil
			})
			if err != nil {
				return err
			}
			return result{
				command: "hmf",
				title:   fmt.Sprintf("halo mass function at z=%.3g", 1/a-1),
				cfg:     cfg,
				table:   tab,
				params:  map[string]float64{"a": a},
				plots:   []string{"dn_dlnM"},
			}.emit()
		},
	}
	addEpochFlags(cmd, &a, &z)
	return cmd
}

func smfCmd() *cobra.Command {
	var a, z float64
	cmd := &cobra.Command{
		Use:   "smf",
		Short: "stellar mass function from the halo mass function",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := scaleFactor(cmd, a, z)
			if err != nil {
				return err
			}
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			tab := storage.NewTable("M_star", "phi")
			err = runExperiment(cmd, cfg, "stellar mass function", func(ctx context.Context, e *experiment.Experiment) error {
				mstar, phi, err := e.StellarMassFunction(ctx, a)
				if err != nil {
					return err
				}
				for i := range mstar {
					tab.Append(mstar[i], phi[i])
				}
				return nil
			})
			if err != nil {
				return err
			}
			return result{
				command: "smf",
				title:   fmt.Sprintf("stellar mass function at z=%.3g (%s)", 1/a-1, cfg.StarFormation),
				cfg:     cfg,
				table:   tab,
				params:  map[string]float64{"a": a},
				plots:   []string{"phi"},
			}.emit()
		},
	}
	addEpochFlags(cmd, &a, &z)
	return cmd
}

func smdCmd() *cobra.Command {
	var a, z float64
	cmd := &cobra.Command{
		Use:   "smd",
		Short: "cumulative stellar mass density above each stellar mass",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := scaleFactor(cmd, a, z)
			if err != nil {
				return err
			}
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			tab := storage.NewTable("M_star", "rho_star")
			err = runExperiment(cmd, cfg, "stellar mass density", func(ctx context.Context, e *experiment.Experiment) error {
				mstar, rho, err := e.StellarMassDensity(ctx, a)
				if err != nil {
					return err
				}
				for i := range mstar {
					tab.Append(mstar[i], rho[i])
				}
				return nil
			})
			if err != nil {
				return err
			}
			return result{
				command: "smd",
				title:   fmt.Sprintf("stellar mass density at z=%.3g (%s)", 1/a-1, cfg.StarFormation),
				cfg:     cfg,
				table:   tab,
				params:  map[string]float64{"a": a},
				plots:   []string{"rho_star"},
			}.emit()
		},
	}
	addEpochFlags(cmd, &a, &z)
	return cmd
}

func mahCmd() *cobra.Command {
	var mh0, zMax float64
	var points int
	cmd := &cobra.Command{
		Use:   "mah",
		Short: "extended Press-Schechter halo mass accretion history",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !(zMax > 0) || points < 2 {
				return fmt.Errorf("need z-max > 0 and at least 2 points")
			}
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			e, err := experiment.New(cfg)
			if err != nil {
				return err
			}
			hist, err := e.AccretionHistory(cmd.Context(), mh0)
			if err != nil {
				return err
			}
			tab := storage.NewTable("z", "M_h", "dMh_dt")
			for _, z := range floats.Span(make([]float64, points), 0, zMax) {
				tab.Append(z, hist.Mass(z), hist.AccretionRate(e.Background(), z))
			}
			return result{
				command: "mah",
				title:   fmt.Sprintf("accretion history of a %.3g Msun/h halo", mh0),
				cfg:     cfg,
				table:   tab,
				params:  map[string]float64{"mh0": mh0, "z_max": zMax},
				plots:   []string{"M_h", "dMh_dt"},
			}.emit()
		},
	}
	cmd.Flags().Float64Var(&mh0, "mh0", 1e12, "halo mass today (Msun/h)")
	cmd.Flags().Float64Var(&zMax, "z-max", 10, "largest redshift")
	cmd.Flags().IntVar(&points, "points", 21, "number of redshifts")
	return cmd
}

func benchCmd() *cobra.Command {
	var runs int
	cmd := &cobra.Command{
		Use:   "bench <delta_i>",
		Short: "time repeated nonlinear collapses",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deltaI, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return fmt.Errorf("invalid delta_i %q: %w", args[0], err)
			}
			if runs < 1 {
				return fmt.Errorf("runs must be positive, got %d", runs)
			}
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			e, err := experiment.New(cfg)
			if err != nil {
				return err
			}

			ms := make([]float64, 0, runs)
			var ev collapse.Event
			for i := 0; i < runs; i++ {
				start := time.Now()
				ev, err = e.Solver().Collapse(cmd.Context(), deltaI)
				if err != nil {
					return err
				}
				ms = append(ms, float64(time.Since(start).Microseconds())/1000)
			}
			return printBench(cfg, deltaI, ev, ms)
		},
	}
	cmd.Flags().IntVar(&runs, "runs", 20, "number of collapses")
	return cmd
}

func printBench(cfg *config.Config, deltaI float64, ev collapse.Event, ms []float64) error {
	mean, err := stats.Mean(ms)
	if err != nil {
		return err
	}
	median, err := stats.Median(ms)
	if err != nil {
		return err
	}
	p95, err := stats.Percentile(ms, 95)
	if err != nil {
		return err
	}
	sd, err := stats.StandardDeviation(ms)
	if err != nil {
		return err
	}

	fmt.Println(tui.Header("collapse benchmark", "model="+cfg.Model.String(), fmt.Sprintf("method=%s", cfg.Solver.Method)))
	fmt.Println(tui.KV("delta_i", fmt.Sprintf("%g", deltaI)))
	fmt.Println(tui.KV("a_c", fmt.Sprintf("%.6f (collapsed=%v)", ev.A, ev.Collapsed)))
	fmt.Println(tui.KV("runs", strconv.Itoa(len(ms))))
	fmt.Println(tui.KV("mean", fmt.Sprintf("%.3f ms", mean)))
	fmt.Println(tui.KV("median", fmt.Sprintf("%.3f ms", median)))
	fmt.Println(tui.KV("p95", fmt.Sprintf("%.3f ms", p95)))
	fmt.Println(tui.KV("stddev", fmt.Sprintf("%.3f ms", sd)))
	return nil
}

func presetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "presets [family]",
		Short: "list model presets",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			families := config.Families()
			if len(args) == 1 {
				families = args[:1]
			}
			for _, family := range families {
				names := config.ListPresets(family)
				if len(names) == 0 {
					fmt.Printf("no presets for family: %s\n", family)
					continue
				}
				fmt.Printf("%s:\n", family)
				for _, name := range names {
					fmt.Printf("  %s/%s  %s\n", family, name, config.Presets[family][name])
				}
			}
			if len(args) == 0 {
				fmt.Println()
				fmt.Println(tui.KV("spectrum sources", strings.Join(experiment.NewRegistry().ListSpectra(), ", ")))
			}
			return nil
		},
	}
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "manage configuration files",
	}
	var force bool
	initCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "write the resolved configuration to a yaml file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "mgsim.yaml"
			if len(args) == 1 {
				path = args[0]
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s exists (use --force to overwrite)", path)
			}
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := config.Save(path, cfg); err != nil {
				return err
			}
			fmt.Printf("wrote %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	cmd.AddCommand(initCmd)
	return cmd
}
