package experiment

import (
	"context"
	"encoding/csv"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/yamesant/pima-indians-diabetes-analysis/internal/data"
	"github.com/yamesant/pima-indians-diabetes-analysis/internal/evaluation"
	"github.com/yamesant/pima-indians-diabetes-analysis/internal/jobs"
	"github.com/yamesant/pima-indians-diabetes-analysis/internal/models"
	"github.com/yamesant/pima-indians-diabetes-analysis/internal/preprocessing"
	"github.com/yamesant/pima-indians-diabetes-analysis/internal/testutil"
)

var bothRecipes = []preprocessing.RecipeKind{preprocessing.RecipeNull, preprocessing.RecipeImputer}

func fastConfig() models.Config {
	cfg := models.DefaultConfig()
	cfg.RandomForest.Trees = 15
	cfg.RandomForest.Workers = 1
	return cfg
}

func cleanedTable(t *testing.T, opts testutil.DatasetOptions) *data.Table {
	t.Helper()
	raw, err := data.LoadObservations(testutil.WritePimaCSV(t, t.TempDir(), opts))
	require.NoError(t, err)
	cleaned, err := data.Clean(raw)
	require.NoError(t, err)
	return cleaned
}

func assignFolds(t *testing.T, table *data.Table, k int) []int {
	t.Helper()
	assign, err := evaluation.NewStratifiedKFold(k, 42).Assign(table.Labels())
	require.NoError(t, err)
	return assign
}

func TestBuildWorkflows_RejectsNASensitiveWithNullRecipe(t *testing.T) {
	workflows, rejections := BuildWorkflows(bothRecipes, models.Catalog())

	require.Len(t, workflows, 9)
	require.Len(t, rejections, 1)
	assert.Equal(t, "null_linear_svm", rejections[0].ID)
	assert.NotEmpty(t, rejections[0].Reason)

	ids := make(map[string]bool)
	for _, wf := range workflows {
		ids[wf.ID] = true
	}
	assert.True(t, ids["imputer_linear_svm"])
	assert.True(t, ids["null_random_forest"])
	assert.False(t, ids["null_linear_svm"])
	assert.Equal(t, "null_decision_tree", workflows[0].ID)

	svm, err := models.Lookup("linear_svm")
	require.NoError(t, err)
	_, err = NewWorkflow(preprocessing.RecipeNull, svm)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrIncompatible))

	wf, err := NewWorkflow(preprocessing.RecipeImputer, svm)
	require.NoError(t, err)
	assert.Equal(t, "imputer_linear_svm", wf.ID)
}

func TestWorkflow_NullAndImputerAgreeWithoutMissingValues(t *testing.T) {
	table := cleanedTable(t, testutil.DatasetOptions{Rows: 240, Seed: 21, NoZeros: true})
	for name, n := range table.MissingCounts() {
		require.Zero(t, n, name)
	}

	train, test, err := evaluation.NewStratifiedSplitter(0.75, 42).Split(table.Labels())
	require.NoError(t, err)
	trainTable, err := table.Subset(train)
	require.NoError(t, err)
	testTable, err := table.Subset(test)
	require.NoError(t, err)

	for _, spec := range models.Catalog() {
		if !spec.NARobust {
			continue
		}
		t.Run(spec.ID, func(t *testing.T) {
			var predictions [][]string
			for _, recipe := range bothRecipes {
				wf, err := NewWorkflow(recipe, spec)
				require.NoError(t, err)
				fitted, err := wf.Fit(trainTable, fastConfig(), 42)
				require.NoError(t, err)
				pred, err := fitted.Predict(testTable)
				require.NoError(t, err)
				predictions = append(predictions, pred)
			}
			assert.Equal(t, predictions[0], predictions[1])
		})
	}
}

func TestRunner_DeterministicAcrossWorkers(t *testing.T) {
	table := cleanedTable(t, testutil.DatasetOptions{Rows: 150, Seed: 5})
	assign := assignFolds(t, table, 3)
	workflows, _ := BuildWorkflows(bothRecipes, models.Catalog())

	serial, err := NewRunner(fastConfig(), 3, 1, 42, nil).Run(context.Background(), table, assign, workflows)
	require.NoError(t, err)
	parallel, err := NewRunner(fastConfig(), 3, 4, 42, nil).Run(context.Background(), table, assign, workflows)
	require.NoError(t, err)

	assert.Empty(t, serial.Failures)
	assert.Len(t, serial.Records, len(workflows)*3*len(evaluation.FoldMetrics))
	assert.Equal(t, serial.Records, parallel.Records)
	assert.Equal(t, serial.Confusion, parallel.Confusion)

	for _, rec := range serial.Records {
		if rec.Metric == evaluation.MetricAccuracy {
			assert.False(t, rec.Missing)
			assert.True(t, rec.Value >= 0 && rec.Value <= 1)
		}
	}

	total := 0
	for _, row := range serial.Confusion["imputer_logistic_regression"] {
		for _, n := range row {
			total += n
		}
	}
	assert.Equal(t, table.NRows(), total)
}

type panicModel struct {
	models.BaseModel
}

func (panicModel) Fit([][]float64, []int) error { panic("diverged") }
func (panicModel) Predict(X [][]float64) []int  { return make([]int, len(X)) }

func TestRunner_FailureIsolation(t *testing.T) {
	table := cleanedTable(t, testutil.DatasetOptions{Rows: 120, Seed: 8})
	assign := assignFolds(t, table, 3)
	workflows, _ := BuildWorkflows(bothRecipes, models.Catalog())

	core, logs := observer.New(zapcore.WarnLevel)
	r := NewRunner(fastConfig(), 3, 2, 42, zap.New(core))
	r.newModel = func(kind models.Kind, cfg models.Config, seed int64) (models.Model, error) {
		if kind == models.KindBoostedTrees {
			return &panicModel{}, nil
		}
		return models.New(kind, cfg, seed)
	}

	res, err := r.Run(context.Background(), table, assign, workflows)
	require.NoError(t, err)

	require.Len(t, res.Failures, 6)
	for _, f := range res.Failures {
		assert.Contains(t, []string{"null_boosted_trees", "imputer_boosted_trees"}, f.WorkflowID)
		assert.Contains(t, f.Error(), "panic")
		var ff *FoldFailure
		assert.True(t, errors.As(error(f), &ff))
	}
	assert.Len(t, res.Records, (len(workflows)-2)*3*len(evaluation.FoldMetrics))
	assert.Equal(t, 6, logs.FilterMessage("fold failed").Len())

	for _, job := range r.Jobs.ListJobs() {
		assert.False(t, job.StartTime.IsZero(), job.Workflow)
		assert.Equal(t, 1.0, job.GetProgress(), job.Workflow)
		assert.GreaterOrEqual(t, job.Duration(), time.Duration(0))
		lines := job.GetLogs()
		require.Len(t, lines, 3)
		if job.Workflow == "null_boosted_trees" || job.Workflow == "imputer_boosted_trees" {
			assert.Equal(t, jobs.JobFailed, job.GetStatus())
			for _, line := range lines {
				assert.Contains(t, line, "failed: panic: diverged")
			}
		} else {
			assert.Equal(t, jobs.JobCompleted, job.GetStatus(), job.Workflow)
		}
	}
}

func TestRunner_RecipeFailureOnlyAffectsItsWorkflows(t *testing.T) {
	n := 30
	cols := make(map[string][]float64)
	labels := make([]string, n)
	for _, name := range data.Measurements {
		cols[name] = make([]float64, n)
		for i := range cols[name] {
			cols[name][i] = float64(i%7 + 1)
		}
	}
	for i := range labels {
		labels[i] = data.LabelNo
		if i%3 == 0 {
			labels[i] = data.LabelYes
			cols[data.PlasmaGlucose][i] += 10
		}
		cols[data.SerumInsulin][i] = math.NaN()
	}
	table, err := data.NewTable(cols, labels)
	require.NoError(t, err)

	workflows, _ := BuildWorkflows(bothRecipes, models.Catalog())
	res, err := NewRunner(fastConfig(), 3, 3, 1, nil).Run(context.Background(), table, assignFolds(t, table, 3), workflows)
	require.NoError(t, err)

	// Imputing an all-missing column fails, and so does a logistic fit
	// with no complete rows. Tree models still fit on the raw data.
	failed := make(map[string]int)
	for _, f := range res.Failures {
		failed[f.WorkflowID]++
		if f.WorkflowID != "null_logistic_regression" {
			assert.Contains(t, f.Err.Error(), data.SerumInsulin)
		}
	}
	assert.Equal(t, map[string]int{
		"null_logistic_regression":    3,
		"imputer_decision_tree":       3,
		"imputer_random_forest":       3,
		"imputer_boosted_trees":       3,
		"imputer_logistic_regression": 3,
		"imputer_linear_svm":          3,
	}, failed)
	assert.Len(t, res.Records, 3*3*len(evaluation.FoldMetrics))
}

func TestRunner_DegenerateFoldRecordsMissingMetric(t *testing.T) {
	table := cleanedTable(t, testutil.DatasetOptions{Rows: 60, Seed: 13})
	labels := table.Labels()

	// Fold 0 holds only No rows, so recall is undefined there.
	assign := make([]int, len(labels))
	noInFold0 := 0
	for i, label := range labels {
		assign[i] = 1
		if label == data.LabelNo && noInFold0 < 10 {
			assign[i] = 0
			noInFold0++
		}
	}

	wf, err := NewWorkflow(preprocessing.RecipeNull, mustLookup(t, "decision_tree"))
	require.NoError(t, err)
	res, err := NewRunner(fastConfig(), 2, 1, 3, nil).Run(context.Background(), table, assign, []Workflow{wf})
	require.NoError(t, err)
	require.Empty(t, res.Failures)

	var recall MetricRecord
	for _, rec := range res.Records {
		if rec.Metric == evaluation.MetricRecall && rec.Fold == 0 {
			recall = rec
		}
	}
	assert.True(t, recall.Missing)
	assert.Zero(t, recall.Value)
}

func TestRunner_InvalidAssignment(t *testing.T) {
	table := cleanedTable(t, testutil.DatasetOptions{Rows: 20, Seed: 1})
	r := NewRunner(fastConfig(), 2, 1, 1, nil)
	_, err := r.Run(context.Background(), table, []int{0, 1}, nil)
	assert.Error(t, err)

	bad := make([]int, table.NRows())
	bad[0] = 5
	_, err = r.Run(context.Background(), table, bad, nil)
	assert.Error(t, err)
}

func TestRunner_CancelledContext(t *testing.T) {
	table := cleanedTable(t, testutil.DatasetOptions{Rows: 40, Seed: 2})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	wf, _ := NewWorkflow(preprocessing.RecipeNull, mustLookup(t, "decision_tree"))
	res, err := NewRunner(fastConfig(), 2, 1, 1, nil).Run(ctx, table, assignFolds(t, table, 2), []Workflow{wf})
	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, res.Failures, 2)
	assert.ErrorIs(t, res.Failures[0], context.Canceled)
}

func TestExportMetrics(t *testing.T) {
	records := []MetricRecord{
		{WorkflowID: "null_decision_tree", Metric: "accuracy", Fold: 0, Value: 0.75},
		{WorkflowID: "null_decision_tree", Metric: "precision", Fold: 0, Missing: true},
	}
	path := filepath.Join(t.TempDir(), "metrics.csv")
	require.NoError(t, ExportMetrics(records, path))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	require.Len(t, rows, 3)
	assert.Equal(t, []string{"workflow", "metric", "fold", "value"}, rows[0])
	assert.Equal(t, []string{"null_decision_tree", "accuracy", "1", "0.750000"}, rows[1])
	assert.Equal(t, "NA", rows[2][3])
}

func TestSortRecords(t *testing.T) {
	records := []MetricRecord{
		{WorkflowID: "b", Metric: "accuracy", Fold: 0},
		{WorkflowID: "a", Metric: "recall", Fold: 1},
		{WorkflowID: "a", Metric: "recall", Fold: 0},
		{WorkflowID: "a", Metric: "accuracy", Fold: 2},
	}
	SortRecords(records)
	assert.Equal(t, "a", records[0].WorkflowID)
	assert.Equal(t, "accuracy", records[0].Metric)
	assert.Equal(t, 0, records[1].Fold)
	assert.Equal(t, 1, records[2].Fold)
	assert.Equal(t, "b", records[3].WorkflowID)
}

func mustLookup(t *testing.T, id string) models.Spec {
	t.Helper()
	spec, err := models.Lookup(id)
	require.NoError(t, err)
	return spec
}
