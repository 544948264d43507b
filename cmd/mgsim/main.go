package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/san-kum/mgsim/internal/config"
	"github.com/san-kum/mgsim/internal/cosmo"
	"github.com/san-kum/mgsim/internal/experiment"
	"github.com/san-kum/mgsim/internal/tui"
	"github.com/spf13/cobra"
)

var (
	configFile string
	preset     string
	dataDir    string
	logLevel   string
	logFormat  string
	workers    int

	expansion string
	coupling  string
	par1      float64
	par2      float64
	regime    string

	showProgress bool
	plot         bool
	save         bool
	svgPath      string
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		slog.Error("command failed", "err", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "mgsim",
		Short:         "spherical collapse and halo statistics in modified gravity",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupLogging(logLevel, logFormat)
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configFile, "config", "", "config file path (yaml)")
	pf.StringVar(&preset, "preset", "", "model preset as family/name (see 'mgsim presets')")
	pf.StringVar(&dataDir, "data", "", "data directory for saved runs")
	pf.StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	pf.StringVar(&logFormat, "log-format", "text", "log format (text, json)")
	pf.IntVar(&workers, "workers", 0, "parallel collapses (0 = all cores)")
	pf.StringVar(&expansion, "expansion", "", "expansion model (LCDM, wCDM, nDGP, kmoufl)")
	pf.StringVar(&coupling, "coupling", "", "coupling model (LCDM, E11, gmu, DES, wCDM, nDGP, kmoufl)")
	pf.Float64Var(&par1, "par1", 0, "first model parameter")
	pf.Float64Var(&par2, "par2", 0, "second model parameter")
	pf.StringVar(&regime, "regime", "", "nDGP collapse regime (linear, nonlinear)")
	pf.BoolVar(&showProgress, "progress", false, "show a progress bar during collapse scans")
	pf.BoolVar(&plot, "plot", false, "plot the result in the terminal")
	pf.BoolVar(&save, "save", false, "save the result table to the data directory")
	pf.StringVar(&svgPath, "svg", "", "write the first plotted column as an SVG line plot")

	rootCmd.AddCommand(
		backgroundCmd(),
		muCmd(),
		collapseCmd(),
		deltacCmd(),
		hmfCmd(),
		smfCmd(),
		smdCmd(),
		mahCmd(),
		benchCmd(),
		presetsCmd(),
		configCmd(),
		listCmd(),
		showCmd(),
		exportCmd(),
		scanCmd(),
	)
	return rootCmd
}

func setupLogging(level, format string) error {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	opts := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler
	switch strings.ToLower(format) {
	case "text":
		handler = slog.NewTextHandler(os.Stderr, opts)
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, opts)
	default:
		return fmt.Errorf("invalid log format %q", format)
	}
	slog.SetDefault(slog.New(handler))
	return nil
}

// loadConfig resolves the run configuration: defaults, then a preset, then
// the config file, then any flags set on the command line.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()

	if preset != "" {
		family, name, ok := strings.Cut(preset, "/")
		if !ok {
			return nil, fmt.Errorf("preset must be family/name, got %q", preset)
		}
		cfg = config.GetPreset(family, name)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets(family))
		}
	}

	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		if preset != "" {
			loaded.Model = cfg.Model
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("expansion") {
		m, err := cosmo.ParseExpansionModel(expansion)
		if err != nil {
			return nil, err
		}
		cfg.Model.Expansion = m
	}
	if flags.Changed("coupling") {
		m, err := cosmo.ParseCouplingModel(coupling)
		if err != nil {
			return nil, err
		}
		cfg.Model.Coupling = m
	}
	if flags.Changed("par1") {
		cfg.Model.Par1 = par1
	}
	if flags.Changed("par2") {
		cfg.Model.Par2 = par2
	}
	if flags.Changed("regime") {
		r, err := cosmo.ParseRegime(regime)
		if err != nil {
			return nil, err
		}
		cfg.Model.Regime = r
	}
	if flags.Changed("workers") {
		cfg.Solver.Workers = workers
	}
	if flags.Changed("data") {
		cfg.DataDir = dataDir
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// runExperiment builds the pipeline and hands it to fn, behind a progress
// bar when --progress is set.
func runExperiment(cmd *cobra.Command, cfg *config.Config, title string, fn func(ctx context.Context, e *experiment.Experiment) error) error {
	if !showProgress {
		e, err := experiment.New(cfg)
		if err != nil {
			return err
		}
		return fn(cmd.Context(), e)
	}
	return tui.RunScan(cmd.Context(), title, func(ctx context.Context, report func(done, total int)) error {
		e, err := experiment.New(cfg, experiment.WithProgress(report))
		if err != nil {
			return err
		}
		return fn(ctx, e)
	})
}
