package cli

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/MJE43/montecarlo-pi/internal/report"
	"github.com/MJE43/montecarlo-pi/internal/store"
)

func newRunsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect recorded runs and sweeps",
	}
	cmd.AddCommand(newRunsListCmd(a), newRunsShowCmd(a), newRunsSweepCmd(a))
	return cmd
}

func newRunsListCmd(a *app) *cobra.Command {
	var (
		query  store.RunsQuery
		format string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := report.ParseFormat(format)
			if err != nil {
				return err
			}
			db, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			list, err := db.ListRuns(cmd.Context(), query)
			if err != nil {
				return err
			}
			if err := runsTable(list.Runs).Write(cmd.OutOrStdout(), f); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Page %d of %d (%s runs)\n",
				list.Page, list.TotalPages, humanize.Comma(int64(list.TotalCount)))
			return nil
		},
	}

	cmd.Flags().StringVar(&query.Method, "method", "", "only runs of this estimator")
	cmd.Flags().IntVar(&query.Page, "page", 1, "page number")
	cmd.Flags().IntVar(&query.PerPage, "per-page", 20, "runs per page")
	cmd.Flags().StringVarP(&format, "format", "f", string(report.FormatMarkdown), "latex, markdown or tsv")
	return cmd
}

func runsTable(runs []store.Run) report.Table {
	t := report.Table{
		Headers: []string{"ID", "Method", "Seed", "Tries", "Hits", "Estimate", "Mode", "Workers", "Created"},
		Rows:    make([][]string, len(runs)),
	}
	for i, r := range runs {
		estimate := "nan"
		if r.Estimate != nil {
			estimate = report.Number(*r.Estimate, report.DefaultPlaces)
		}
		t.Rows[i] = []string{
			r.ID,
			r.Method,
			strconv.FormatInt(r.Seed, 10),
			humanize.Comma(int64(r.Tries)),
			humanize.Comma(int64(r.Hits)),
			estimate,
			r.Mode,
			strconv.Itoa(r.Workers),
			humanize.Time(r.CreatedAt),
		}
	}
	return t
}

func writeIndented(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newRunsShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Print a recorded run as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			run, err := db.GetRun(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("run %s: %w", args[0], err)
			}
			return writeIndented(cmd, run)
		},
	}
}

func newRunsSweepCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep ID",
		Short: "Print a recorded sweep and its points as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			sw, err := db.GetSweep(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("sweep %s: %w", args[0], err)
			}
			return writeIndented(cmd, sw)
		},
	}
}
