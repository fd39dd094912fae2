package report

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/yamesant/pima-indians-diabetes-analysis/internal/jobs"
)

// NewRunID returns the identifier stamped on every artifact of a run.
func NewRunID() string {
	return uuid.NewString()
}

// RunInfo is the metadata written to summary.txt.
type RunInfo struct {
	RunID     string
	Dataset   string
	CreatedAt time.Time
	Seed      int64
	Folds     int
	TrainRows int
	TestRows  int
	Workflows int
	Ranked    []Ranked
	Notes     []Note
	Jobs      []*jobs.Job
	Final     *FinalResult
}

// Round renders v with the given number of decimal places, or NA.
func Round(v float64, places int32) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "NA"
	}
	return decimal.NewFromFloat(v).Round(places).StringFixed(places)
}

// WriteSummary writes the plain-text run summary.
func WriteSummary(info RunInfo, filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return fmt.Errorf("mkdir summary dir: %w", err)
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Run: %s\n", info.RunID)
	fmt.Fprintf(&buf, "Dataset: %s\n", info.Dataset)
	fmt.Fprintf(&buf, "Created: %s\n", info.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(&buf, "Seed: %d\n", info.Seed)
	fmt.Fprintf(&buf, "Train Rows: %d\n", info.TrainRows)
	fmt.Fprintf(&buf, "Test Rows: %d\n", info.TestRows)
	fmt.Fprintf(&buf, "Folds: %d\n", info.Folds)
	fmt.Fprintf(&buf, "Workflows: %d\n", info.Workflows)

	fmt.Fprintf(&buf, "\nRanking:\n")
	for _, r := range info.Ranked {
		acc := r.Accuracy()
		rank := "-"
		if r.Rank > 0 {
			rank = fmt.Sprintf("%d", r.Rank)
		}
		mean, stderr := "NA", "NA"
		if acc.N > 0 {
			mean, stderr = Round(acc.Mean, 4), Round(acc.StdErr, 4)
		}
		fmt.Fprintf(&buf, "  %s. %s accuracy %s ± %s (%d folds)\n",
			rank, r.WorkflowID, mean, stderr, acc.N)
	}

	if len(info.Notes) > 0 {
		fmt.Fprintf(&buf, "\nIncomplete:\n")
		for _, n := range info.Notes {
			fmt.Fprintf(&buf, "  %s: %s\n", n.WorkflowID, n.Reason)
		}
	}

	if len(info.Jobs) > 0 {
		fmt.Fprintf(&buf, "\nJobs:\n")
		for _, job := range info.Jobs {
			done, failed := job.FoldCounts()
			fmt.Fprintf(&buf, "  %-28s %-9s %d/%d folds %v\n",
				job.Workflow, job.GetStatus(), done, job.Folds, job.Duration().Round(time.Millisecond))
			if failed == 0 {
				continue
			}
			for _, line := range job.GetLogs() {
				fmt.Fprintf(&buf, "    %s\n", line)
			}
		}
	}

	if f := info.Final; f != nil {
		fmt.Fprintf(&buf, "\nBest Workflow: %s\n", f.Workflow.ID)
		fmt.Fprintf(&buf, "Recipe: %s\n", f.Workflow.Recipe)
		fmt.Fprintf(&buf, "Model: %s\n", f.Fit.Model.GetName())
		params := f.Fit.Model.GetParams()
		keys := make([]string, 0, len(params))
		for k := range params {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&buf, "  %s: %v\n", k, params[k])
		}
		fmt.Fprintf(&buf, "Features: %d\n", len(f.Fit.Features))
		fmt.Fprintf(&buf, "Test Accuracy: %s\n", Round(f.Test.Accuracy, 4))
		fmt.Fprintf(&buf, "Test Precision: %s\n", Round(f.Test.Precision, 4))
		fmt.Fprintf(&buf, "Test Recall: %s\n", Round(f.Test.Recall, 4))
		fmt.Fprintf(&buf, "Test F1 Score: %s\n", Round(f.Test.F1, 4))
		fmt.Fprintf(&buf, "Training Time: %v\n", f.TrainingTime)
	}

	if err := os.WriteFile(filename, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	return nil
}
