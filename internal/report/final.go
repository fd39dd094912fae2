package report

import (
	"fmt"
	"time"

	"github.com/yamesant/pima-indians-diabetes-analysis/internal/data"
	"github.com/yamesant/pima-indians-diabetes-analysis/internal/evaluation"
	"github.com/yamesant/pima-indians-diabetes-analysis/internal/experiment"
	"github.com/yamesant/pima-indians-diabetes-analysis/internal/models"
)

// FinalResult is the best workflow refitted on the full train partition.
type FinalResult struct {
	Workflow     experiment.Workflow
	Fit          *experiment.FitResult
	Train        *evaluation.ClassificationMetrics
	Test         *evaluation.ClassificationMetrics
	TrainingTime time.Duration
}

// FinalEvaluation fits wf once on train and scores it on both partitions.
// The test partition is only ever predicted, never fitted.
func FinalEvaluation(wf experiment.Workflow, train, test *data.Table, cfg models.Config, seed int64) (*FinalResult, error) {
	start := time.Now()
	fit, err := wf.Fit(train, cfg, seed)
	if err != nil {
		return nil, fmt.Errorf("final fit %s: %w", wf.ID, err)
	}
	elapsed := time.Since(start)

	res := &FinalResult{Workflow: wf, Fit: fit, TrainingTime: elapsed}
	if res.Train, err = score(fit, train); err != nil {
		return nil, fmt.Errorf("score %s on train: %w", wf.ID, err)
	}
	if res.Test, err = score(fit, test); err != nil {
		return nil, fmt.Errorf("score %s on test: %w", wf.ID, err)
	}
	return res, nil
}

func score(fit *experiment.FitResult, t *data.Table) (*evaluation.ClassificationMetrics, error) {
	pred, err := fit.Predict(t)
	if err != nil {
		return nil, err
	}
	return evaluation.CalculateMetrics(t.Labels(), pred)
}
