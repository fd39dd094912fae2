package main

import (
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yamesant/pima-indians-diabetes-analysis/internal/config"
	"github.com/yamesant/pima-indians-diabetes-analysis/internal/data"
	"github.com/yamesant/pima-indians-diabetes-analysis/internal/evaluation"
	"github.com/yamesant/pima-indians-diabetes-analysis/internal/experiment"
	"github.com/yamesant/pima-indians-diabetes-analysis/internal/models"
	"github.com/yamesant/pima-indians-diabetes-analysis/internal/preprocessing"
	"github.com/yamesant/pima-indians-diabetes-analysis/internal/report"
	"github.com/yamesant/pima-indians-diabetes-analysis/internal/visualise"
)

func newRunCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the full analysis: explore, cross-validate, rank and evaluate",
		Example: `  pima run --data data/diabetes.csv
  pima run --config pima.yaml --workers 8 --no-plots`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd, opts)
		},
	}
}

func runPipeline(cmd *cobra.Command, opts *options) error {
	cfg, logger, err := opts.resolve(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	runID := report.NewRunID()
	log := logger.With(zap.String("run_id", runID))
	out := cmd.OutOrStdout()
	started := time.Now()

	cleaned, err := explore(cfg, log, out)
	if err != nil {
		return err
	}

	trainIdx, testIdx, err := evaluation.NewStratifiedSplitter(cfg.Split.TrainFraction, cfg.Seed).Split(cleaned.Labels())
	if err != nil {
		return fmt.Errorf("split: %w", err)
	}
	train, err := cleaned.Subset(trainIdx)
	if err != nil {
		return err
	}
	test, err := cleaned.Subset(testIdx)
	if err != nil {
		return err
	}
	assign, err := evaluation.NewStratifiedKFold(cfg.Split.Folds, cfg.Seed).Assign(train.Labels())
	if err != nil {
		return fmt.Errorf("assign folds: %w", err)
	}
	log.Info("data split",
		zap.Int("train_rows", train.NRows()),
		zap.Int("test_rows", test.NRows()),
		zap.Int("folds", cfg.Split.Folds))

	workflows, rejections, err := buildWorkflows(cfg)
	if err != nil {
		return err
	}
	for _, r := range rejections {
		log.Warn("workflow rejected", zap.String("workflow", r.ID), zap.String("reason", r.Reason))
	}
	if len(workflows) == 0 {
		return fmt.Errorf("no compatible workflows for recipes %v and algorithms %v", cfg.Recipes, cfg.Algorithms)
	}

	runner := experiment.NewRunner(cfg.Models, cfg.Split.Folds, cfg.Workers, cfg.Seed, log)
	res, err := runner.Run(cmd.Context(), train, assign, workflows)
	if err != nil {
		return fmt.Errorf("cross-validation: %w", err)
	}
	for status, n := range runner.Jobs.Counts() {
		log.Info("workflow jobs", zap.String("status", string(status)), zap.Int("count", n))
	}
	cvJobs := runner.Jobs.ListJobs()
	for _, job := range cvJobs {
		log.Debug("workflow job finished",
			zap.String("workflow", job.Workflow),
			zap.String("status", string(job.GetStatus())),
			zap.Float64("progress", job.GetProgress()),
			zap.Duration("elapsed", job.Duration()))
	}

	metricsPath := filepath.Join(cfg.OutputDir, "metrics.csv")
	if err := experiment.ExportMetrics(res.Records, metricsPath); err != nil {
		return err
	}
	log.Info("metrics exported", zap.String("path", metricsPath))

	summaries := report.Aggregate(res.Records)
	ids := make([]string, len(workflows))
	for i, wf := range workflows {
		ids[i] = wf.ID
	}
	ranked := report.Rank(summaries, ids...)
	notes := report.Incomplete(res, rejections, summaries)
	fmt.Fprintln(out)
	report.PrintTable(out, runID, ranked, notes)

	info := report.RunInfo{
		RunID:     runID,
		Dataset:   cfg.DataPath,
		CreatedAt: started,
		Seed:      cfg.Seed,
		Folds:     cfg.Split.Folds,
		TrainRows: train.NRows(),
		TestRows:  test.NRows(),
		Workflows: len(workflows),
		Ranked:    ranked,
		Notes:     notes,
		Jobs:      cvJobs,
	}

	if best, ok := report.Best(ranked); ok {
		wf := findWorkflow(workflows, best.WorkflowID)
		final, err := report.FinalEvaluation(wf, train, test, cfg.Models, cfg.Seed)
		if err != nil {
			return err
		}
		info.Final = final
		report.PrintFinal(out, final)
		log.Info("final evaluation",
			zap.String("workflow", wf.ID),
			zap.Float64("test_accuracy", final.Test.Accuracy))

		if cfg.Plots.Enabled {
			if err := renderReportPlots(cfg.OutputDir, ranked, res, final, log); err != nil {
				return err
			}
		}
	} else {
		log.Warn("no workflow produced a defined accuracy; skipping final evaluation")
	}

	if err := config.Save(cfg, filepath.Join(cfg.OutputDir, "config.yaml")); err != nil {
		return err
	}
	summaryPath := filepath.Join(cfg.OutputDir, "summary.txt")
	if err := report.WriteSummary(info, summaryPath); err != nil {
		return err
	}
	log.Info("run finished", zap.String("path", summaryPath), zap.Duration("elapsed", time.Since(started)))
	return nil
}

func buildWorkflows(cfg *config.Config) ([]experiment.Workflow, []experiment.Rejection, error) {
	recipes := make([]preprocessing.RecipeKind, 0, len(cfg.Recipes))
	for _, name := range cfg.Recipes {
		kind, err := preprocessing.ParseRecipeKind(name)
		if err != nil {
			return nil, nil, err
		}
		recipes = append(recipes, kind)
	}
	specs := make([]models.Spec, 0, len(cfg.Algorithms))
	for _, id := range cfg.Algorithms {
		spec, err := models.Lookup(id)
		if err != nil {
			return nil, nil, err
		}
		specs = append(specs, spec)
	}
	workflows, rejections := experiment.BuildWorkflows(recipes, specs)
	return workflows, rejections, nil
}

func findWorkflow(workflows []experiment.Workflow, id string) experiment.Workflow {
	for _, wf := range workflows {
		if wf.ID == id {
			return wf
		}
	}
	panic("unknown workflow " + id)
}

func renderReportPlots(dir string, ranked []report.Ranked, res *experiment.Results, final *report.FinalResult, log *zap.Logger) error {
	plots := filepath.Join(dir, "plots")
	id := final.Workflow.ID

	if err := report.RenderComparison(ranked, filepath.Join(plots, "comparison.png")); err != nil {
		return err
	}
	heatmaps := []struct {
		name  string
		title string
		cm    *evaluation.ClassificationMetrics
	}{
		{"confusion_cv.png", id + ": pooled out-of-fold", evaluation.FromConfusion(res.Confusion[id])},
		{"confusion_train.png", id + ": final fit, train", final.Train},
		{"confusion_test.png", id + ": final fit, test", final.Test},
	}
	for _, h := range heatmaps {
		if err := report.RenderConfusion(h.cm.Confusion, h.title, filepath.Join(plots, h.name)); err != nil {
			return err
		}
	}
	log.Info("report plots written", zap.String("path", plots))
	return nil
}

// explore loads, validates and cleans the observations, prints their
// description and renders the raw and cleaned histograms.
func explore(cfg *config.Config, log *zap.Logger, out io.Writer) (*data.Table, error) {
	raw, err := data.LoadObservations(cfg.DataPath)
	if err != nil {
		return nil, err
	}
	validator := data.NewDataValidator()
	if err := validator.ValidateLabels(raw); err != nil {
		return nil, fmt.Errorf("data validation failed: %w", err)
	}
	log.Info("observations loaded", zap.String("path", cfg.DataPath), zap.Int("rows", raw.NRows()))

	cleaned, err := data.Clean(raw)
	if err != nil {
		return nil, err
	}
	for name, n := range cleaned.MissingCounts() {
		if n > 0 {
			log.Debug("missing values", zap.String("column", name), zap.Int("count", n))
		}
	}
	printDescription(out, validator.Describe(cleaned))

	if cfg.Plots.Enabled {
		for _, h := range []struct {
			name  string
			table *data.Table
		}{{"histograms_raw.png", raw}, {"histograms_cleaned.png", cleaned}} {
			path := filepath.Join(cfg.OutputDir, "plots", h.name)
			if err := visualise.RenderHistograms(h.table, data.Outcome, path, cfg.Plots.Bins); err != nil {
				return nil, err
			}
			log.Info("histograms written", zap.String("path", path))
		}
	}
	return cleaned, nil
}
