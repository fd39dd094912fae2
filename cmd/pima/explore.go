package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yamesant/pima-indians-diabetes-analysis/internal/data"
	"github.com/yamesant/pima-indians-diabetes-analysis/internal/report"
)

func newExploreCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "explore",
		Short: "Load, clean and describe the observations and plot their histograms",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.resolve(cmd)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			log := logger.With(zap.String("run_id", report.NewRunID()))
			_, err = explore(cfg, log, cmd.OutOrStdout())
			return err
		},
	}
}

func printDescription(w io.Writer, s data.Summary) {
	fmt.Fprintf(w, "Observations: %d\n", s.Rows)
	for _, label := range s.Classes() {
		n := s.ClassDistribution[label]
		fmt.Fprintf(w, "  %-4s %4d (%.1f%%)\n", label, n, 100*float64(n)/float64(s.Rows))
	}
	fmt.Fprintln(w, strings.Repeat("-", 72))
	fmt.Fprintf(w, "%-18s %10s %10s %10s %8s %8s\n", "Measurement", "Min", "Max", "Mean", "Missing", "Zeros")
	fmt.Fprintln(w, strings.Repeat("-", 72))
	for _, c := range s.Columns {
		fmt.Fprintf(w, "%-18s %10s %10s %10s %8d %8d\n",
			c.Name, report.Round(c.Min, 2), report.Round(c.Max, 2), report.Round(c.Mean, 2), c.Missing, c.Zeros)
	}
}
