package report

import (
	"bytes"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yamesant/pima-indians-diabetes-analysis/internal/data"
	"github.com/yamesant/pima-indians-diabetes-analysis/internal/evaluation"
	"github.com/yamesant/pima-indians-diabetes-analysis/internal/experiment"
	"github.com/yamesant/pima-indians-diabetes-analysis/internal/jobs"
	"github.com/yamesant/pima-indians-diabetes-analysis/internal/models"
	"github.com/yamesant/pima-indians-diabetes-analysis/internal/preprocessing"
	"github.com/yamesant/pima-indians-diabetes-analysis/internal/testutil"
)

func accuracyRecords(id string, values ...float64) []experiment.MetricRecord {
	out := make([]experiment.MetricRecord, 0, len(values))
	for i, v := range values {
		rec := experiment.MetricRecord{WorkflowID: id, Metric: evaluation.MetricAccuracy, Fold: i, Value: v}
		if math.IsNaN(v) {
			rec.Value, rec.Missing = 0, true
		}
		out = append(out, rec)
	}
	return out
}

func TestAggregate(t *testing.T) {
	records := accuracyRecords("b_tree", 0.7, 0.8, 0.9)
	records = append(records,
		experiment.MetricRecord{WorkflowID: "b_tree", Metric: evaluation.MetricRecall, Fold: 0, Missing: true},
		experiment.MetricRecord{WorkflowID: "b_tree", Metric: evaluation.MetricRecall, Fold: 1, Value: 0.5},
		experiment.MetricRecord{WorkflowID: "a_tree", Metric: evaluation.MetricAccuracy, Fold: 0, Value: 0.6},
	)

	got := Aggregate(records)
	require.Len(t, got, 3)

	assert.Equal(t, "a_tree", got[0].WorkflowID)
	assert.Equal(t, 0.6, got[0].Mean)
	assert.True(t, math.IsNaN(got[0].StdErr), "one fold has no standard error")

	acc := got[1]
	assert.Equal(t, evaluation.MetricAccuracy, acc.Metric)
	assert.Equal(t, 3, acc.N)
	assert.InDelta(t, 0.8, acc.Mean, 1e-12)
	assert.InDelta(t, 0.1/math.Sqrt(3), acc.StdErr, 1e-12)

	recall := got[2]
	assert.Equal(t, evaluation.MetricRecall, recall.Metric)
	assert.Equal(t, 1, recall.N)
	assert.Equal(t, 1, recall.Missing)
	assert.Equal(t, 0.5, recall.Mean)
}

func TestRank(t *testing.T) {
	var records []experiment.MetricRecord
	// dyadic values keep the means exactly equal
	records = append(records, accuracyRecords("imputer_decision_tree", 0.625, 0.875)...)
	records = append(records, accuracyRecords("null_random_forest", 0.5, 1.0)...)
	records = append(records, accuracyRecords("imputer_random_forest", 0.875, 0.9375)...)
	records = append(records, accuracyRecords("null_boosted_trees", 0.75, 0.75)...)
	records = append(records, accuracyRecords("imputer_boosted_trees", 0.75, 0.75)...)
	records = append(records, accuracyRecords("null_logistic_regression", math.NaN(), math.NaN())...)

	ranked := Rank(Aggregate(records))
	require.Len(t, ranked, 6)

	var order []string
	for _, r := range ranked {
		order = append(order, r.WorkflowID)
	}
	assert.Equal(t, []string{
		"imputer_random_forest",
		"imputer_boosted_trees",
		"null_boosted_trees",
		"imputer_decision_tree",
		"null_random_forest",
		"null_logistic_regression",
	}, order)

	for i := 0; i < 5; i++ {
		assert.Equal(t, i+1, ranked[i].Rank)
	}
	assert.Zero(t, ranked[5].Rank)

	best, ok := Best(ranked)
	require.True(t, ok)
	assert.Equal(t, "imputer_random_forest", best.WorkflowID)

	_, ok = Best(Rank(Aggregate(accuracyRecords("x", math.NaN()))))
	assert.False(t, ok)
}

func TestRank_WorkflowWithOnlyFailedFolds(t *testing.T) {
	res := &experiment.Results{
		Records: accuracyRecords("a", 0.75),
		Failures: []*experiment.FoldFailure{
			{WorkflowID: "b", Fold: 0, Err: errors.New("single class")},
			{WorkflowID: "b", Fold: 1, Err: errors.New("single class")},
		},
	}
	summaries := Aggregate(res.Records)

	ranked := Rank(summaries, "a", "b")
	require.Len(t, ranked, 2)
	assert.Equal(t, "a", ranked[0].WorkflowID)
	assert.Equal(t, 1, ranked[0].Rank)
	assert.Equal(t, "b", ranked[1].WorkflowID)
	assert.Zero(t, ranked[1].Rank)
	assert.Zero(t, ranked[1].Accuracy().N)

	notes := Incomplete(res, nil, summaries)
	assert.Equal(t, []Note{{WorkflowID: "b", Reason: "2 fold(s) failed"}}, notes)

	color.NoColor = true
	var buf bytes.Buffer
	PrintTable(&buf, "run-2", ranked, notes)
	assert.Regexp(t, `(?m)^-\s+b\s+NA\s+NA\s+NA\s*$`, buf.String())
}

func TestRank_Deterministic(t *testing.T) {
	records := append(accuracyRecords("b", 0.8, 0.7), accuracyRecords("a", 0.7, 0.8)...)
	first := Rank(Aggregate(records))
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, Rank(Aggregate(records)))
	}
	assert.Equal(t, "a", first[0].WorkflowID)
}

func TestIncomplete(t *testing.T) {
	res := &experiment.Results{
		Failures: []*experiment.FoldFailure{
			{WorkflowID: "null_boosted_trees", Fold: 0, Err: errors.New("boom")},
			{WorkflowID: "null_boosted_trees", Fold: 3, Err: errors.New("boom")},
		},
	}
	rejections := []experiment.Rejection{{ID: "null_linear_svm", Reason: "needs imputed data"}}
	summaries := []Summary{
		{WorkflowID: "imputer_decision_tree", Metric: evaluation.MetricPrecision, N: 8, Missing: 2},
		{WorkflowID: "imputer_decision_tree", Metric: evaluation.MetricAccuracy, N: 10},
	}

	notes := Incomplete(res, rejections, summaries)
	require.Len(t, notes, 3)
	assert.Equal(t, "imputer_decision_tree", notes[0].WorkflowID)
	assert.Contains(t, notes[0].Reason, "precision undefined on 2")
	assert.Equal(t, "null_boosted_trees", notes[1].WorkflowID)
	assert.Contains(t, notes[1].Reason, "2 fold(s) failed")
	assert.Equal(t, "null_linear_svm", notes[2].WorkflowID)
	assert.Contains(t, notes[2].Reason, "rejected")

	assert.Empty(t, Incomplete(nil, nil, nil))
}

func splitTables(t *testing.T) (*data.Table, *data.Table) {
	t.Helper()
	raw, err := data.LoadObservations(testutil.WritePimaCSV(t, t.TempDir(), testutil.DatasetOptions{Rows: 240, Seed: 9}))
	require.NoError(t, err)
	cleaned, err := data.Clean(raw)
	require.NoError(t, err)

	trainIdx, testIdx, err := evaluation.NewStratifiedSplitter(0.75, 42).Split(cleaned.Labels())
	require.NoError(t, err)
	train, err := cleaned.Subset(trainIdx)
	require.NoError(t, err)
	test, err := cleaned.Subset(testIdx)
	require.NoError(t, err)
	return train, test
}

func TestFinalEvaluation(t *testing.T) {
	train, test := splitTables(t)
	spec, err := models.Lookup("logistic_regression")
	require.NoError(t, err)
	wf, err := experiment.NewWorkflow(preprocessing.RecipeImputer, spec)
	require.NoError(t, err)

	final, err := FinalEvaluation(wf, train, test, models.DefaultConfig(), 42)
	require.NoError(t, err)

	assert.Equal(t, wf.ID, final.Workflow.ID)
	assert.Equal(t, test.NRows(), final.Test.NumSamples)
	assert.Equal(t, train.NRows(), final.Train.NumSamples)
	assert.GreaterOrEqual(t, final.Test.Accuracy, 0.0)
	assert.LessOrEqual(t, final.Test.Accuracy, 1.0)
	assert.Contains(t, final.Fit.Features, preprocessing.IndicatorName(data.SerumInsulin))

	again, err := FinalEvaluation(wf, train, test, models.DefaultConfig(), 42)
	require.NoError(t, err)
	assert.Equal(t, final.Test.Confusion, again.Test.Confusion)
}

func TestRenderPlots(t *testing.T) {
	dir := t.TempDir()
	records := append(accuracyRecords("imputer_decision_tree", 0.75, 0.85), accuracyRecords("null_random_forest", 0.7, 0.9)...)
	records = append(records, experiment.MetricRecord{WorkflowID: "null_random_forest", Metric: evaluation.MetricRecall, Value: 0.6})
	ranked := Rank(Aggregate(records))

	path := filepath.Join(dir, "comparison.png")
	require.NoError(t, RenderComparison(ranked, path))
	assert.FileExists(t, path)

	assert.Error(t, RenderComparison(nil, filepath.Join(dir, "empty.png")))

	cm, err := evaluation.NewConfusionMatrix(
		[]string{data.LabelYes, data.LabelNo, data.LabelNo, data.LabelYes},
		[]string{data.LabelYes, data.LabelNo, data.LabelYes, data.LabelNo},
	)
	require.NoError(t, err)
	heat := filepath.Join(dir, "confusion", "test.png")
	require.NoError(t, RenderConfusion(cm, "test", heat))
	info, err := os.Stat(heat)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestPrintTable(t *testing.T) {
	color.NoColor = true
	records := append(accuracyRecords("imputer_decision_tree", 0.75, 0.85), accuracyRecords("null_logistic_regression", math.NaN())...)
	ranked := Rank(Aggregate(records))
	notes := []Note{{WorkflowID: "null_logistic_regression", Reason: "10 fold(s) failed"}}

	var buf bytes.Buffer
	PrintTable(&buf, "run-1", ranked, notes)
	out := buf.String()

	assert.Contains(t, out, "run-1")
	assert.Contains(t, out, "0.8000 ± 0.0500")
	assert.Contains(t, out, "Incomplete workflows:")
	assert.Contains(t, out, "10 fold(s) failed")
	assert.Contains(t, out, "NA")
}

func TestRound(t *testing.T) {
	assert.Equal(t, "0.6667", Round(2.0/3, 4))
	assert.Equal(t, "0.50", Round(0.5, 2))
	assert.Equal(t, "NA", Round(math.NaN(), 4))
}

func TestWriteSummary(t *testing.T) {
	train, test := splitTables(t)
	spec, err := models.Lookup("decision_tree")
	require.NoError(t, err)
	wf, err := experiment.NewWorkflow(preprocessing.RecipeNull, spec)
	require.NoError(t, err)
	final, err := FinalEvaluation(wf, train, test, models.DefaultConfig(), 1)
	require.NoError(t, err)

	runID := NewRunID()
	path := filepath.Join(t.TempDir(), "summary.txt")
	err = WriteSummary(RunInfo{
		RunID:     runID,
		Dataset:   "diabetes.csv",
		CreatedAt: time.Now(),
		Seed:      1,
		Folds:     10,
		TrainRows: train.NRows(),
		TestRows:  test.NRows(),
		Ranked:    Rank(Aggregate(accuracyRecords(wf.ID, 0.625, 0.875))),
		Notes:     []Note{{WorkflowID: "null_linear_svm", Reason: "rejected"}},
		Final:     final,
	}, path)
	require.NoError(t, err)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(b)
	assert.Contains(t, out, "Run: "+runID)
	assert.Contains(t, out, "1. null_decision_tree accuracy 0.7500 ± 0.1250 (2 folds)")
	assert.Contains(t, out, "Best Workflow: null_decision_tree")
	assert.Contains(t, out, "max_depth")
	assert.Contains(t, out, "null_linear_svm: rejected")
}

func TestWriteSummary_Jobs(t *testing.T) {
	m := jobs.NewManager()
	good := m.CreateJob("null_decision_tree", 2)
	good.Start()
	good.FoldDone(0, nil)
	good.FoldDone(1, nil)
	bad := m.CreateJob("null_random_forest", 2)
	bad.Start()
	bad.FoldDone(0, nil)
	bad.FoldDone(1, errors.New("single class in training folds"))

	path := filepath.Join(t.TempDir(), "out", "summary.txt")
	err := WriteSummary(RunInfo{
		RunID:     "run-3",
		Folds:     2,
		Workflows: 3,
		Ranked:    Rank(Aggregate(accuracyRecords("null_decision_tree", 0.5, 1.0)), "null_decision_tree", "null_boosted_trees"),
		Jobs:      m.ListJobs(),
	}, path)
	require.NoError(t, err)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(b)
	assert.Contains(t, out, "-. null_boosted_trees accuracy NA ± NA (0 folds)")
	assert.Contains(t, out, "Jobs:")
	assert.Regexp(t, `null_decision_tree\s+completed\s+2/2 folds`, out)
	assert.Regexp(t, `null_random_forest\s+partial\s+2/2 folds`, out)
	assert.Contains(t, out, "fold 1 failed: single class in training folds")
	// only the job with a failing fold lists its fold log
	assert.Equal(t, 1, strings.Count(out, "fold 0 done"))
	assert.NotContains(t, out, "Best Workflow:")
}

func TestWriteSummary_ReportsWriteError(t *testing.T) {
	dir := t.TempDir()
	err := WriteSummary(RunInfo{RunID: "run-4"}, dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "write summary")
}
