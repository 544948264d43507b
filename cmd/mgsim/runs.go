package main

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/san-kum/mgsim/internal/config"
	"github.com/san-kum/mgsim/internal/export"
	"github.com/san-kum/mgsim/internal/storage"
	"github.com/san-kum/mgsim/internal/tui"
)

func runsDir(cmd *cobra.Command) string {
	if cmd.Flags().Changed("data") {
		return dataDir
	}
	return config.DefaultDataDir
}

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "list saved runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			st := storage.New(runsDir(cmd))
			runs, err := st.List()
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Println("no runs found")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tCOMMAND\tMODEL\tTIME\tROWS")
			for _, run := range runs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n",
					run.ID,
					run.Command,
					run.Model,
					run.Timestamp.Format("2006-01-02 15:04:05"),
					run.Rows,
				)
			}
			return w.Flush()
		},
	}
}

func showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <run_id> [column]...",
		Short: "print a saved run, plotting the named columns with --plot",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st := storage.New(runsDir(cmd))
			meta, err := st.Load(args[0])
			if err != nil {
				return err
			}
			tab, err := st.LoadTable(args[0])
			if err != nil {
				return err
			}

			keys := make([]string, 0, len(meta.Params))
			for k := range meta.Params {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			details := []string{"model=" + meta.Model}
			for _, k := range keys {
				details = append(details, fmt.Sprintf("%s=%g", k, meta.Params[k]))
			}
			fmt.Println(tui.Header(strings.Join([]string{meta.Command, meta.ID}, " "), details...))
			fmt.Println()
			if err := printTable(tab); err != nil {
				return err
			}
			if plot {
				for _, col := range args[1:] {
					if err := plotColumn(tab, col); err != nil {
						return err
					}
				}
			}
			return nil
		},
	}
}

func exportCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export <run_id>",
		Short: "export a saved run as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st := storage.New(runsDir(cmd))
			meta, err := st.Load(args[0])
			if err != nil {
				return err
			}
			tab, err := st.LoadTable(args[0])
			if err != nil {
				return err
			}
			if out == "" {
				return export.JSON(os.Stdout, meta, tab)
			}
			f, err := os.Create(out)
			if err != nil {
				return err
			}
			defer f.Close()
			if err := export.JSON(f, meta, tab); err != nil {
				return err
			}
			return f.Close()
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout)")
	return cmd
}
