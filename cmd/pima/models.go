package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yamesant/pima-indians-diabetes-analysis/internal/config"
	"github.com/yamesant/pima-indians-diabetes-analysis/internal/models"
)

func newModelsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "Show the model catalog and the workflows the configuration builds",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.resolve(cmd)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck
			return printModels(cmd.OutOrStdout(), cfg)
		},
	}
}

func printModels(w io.Writer, cfg *config.Config) error {
	fmt.Fprintln(w, "Model catalog:")
	fmt.Fprintln(w, strings.Repeat("-", 80))
	for _, spec := range models.CatalogWith(cfg.Models) {
		na := "handles missing values"
		if !spec.NARobust {
			na = "requires imputation"
		}
		fmt.Fprintf(w, "%-20s %-20s %s\n", spec.ID, spec.Name, na)

		keys := make([]string, 0, len(spec.Params))
		for k := range spec.Params {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(w, "    %-16s %v\n", k, spec.Params[k])
		}
	}

	workflows, rejections, err := buildWorkflows(cfg)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "\nWorkflows (%d):\n", len(workflows))
	for _, wf := range workflows {
		fmt.Fprintf(w, "  %s\n", wf.ID)
	}
	if len(rejections) > 0 {
		fmt.Fprintf(w, "\nRejected (%d):\n", len(rejections))
		for _, r := range rejections {
			fmt.Fprintf(w, "  %-28s %s\n", r.ID, r.Reason)
		}
	}
	return nil
}
