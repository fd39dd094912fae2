package experiment

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sjwhitworth/golearn/evaluation"
	"go.uber.org/zap"

	"github.com/yamesant/pima-indians-diabetes-analysis/internal/data"
	metrics "github.com/yamesant/pima-indians-diabetes-analysis/internal/evaluation"
	"github.com/yamesant/pima-indians-diabetes-analysis/internal/jobs"
	"github.com/yamesant/pima-indians-diabetes-analysis/internal/logging"
	"github.com/yamesant/pima-indians-diabetes-analysis/internal/models"
)

// MetricRecord is one metric of one workflow on one held-out fold. Missing
// is set when the metric is undefined on that fold; Value is then zero.
type MetricRecord struct {
	WorkflowID string
	Metric     string
	Fold       int
	Value      float64
	Missing    bool
}

// FoldFailure is a fit or prediction that failed on one fold.
type FoldFailure struct {
	WorkflowID string
	Fold       int
	Err        error
}

func (f *FoldFailure) Error() string {
	return fmt.Sprintf("workflow %s fold %d: %v", f.WorkflowID, f.Fold, f.Err)
}

func (f *FoldFailure) Unwrap() error {
	return f.Err
}

// Results holds the cross-validation outcome of every workflow.
type Results struct {
	Workflows []Workflow
	Records   []MetricRecord
	Failures  []*FoldFailure
	// Confusion pools the out-of-fold predictions of each workflow.
	Confusion map[string]evaluation.ConfusionMatrix
}

// Runner cross-validates workflows on a training table.
type Runner struct {
	Config     models.Config
	Folds      int
	MaxWorkers int
	Seed       int64
	Logger     *zap.Logger
	Jobs       *jobs.Manager

	newModel modelFactory
}

func NewRunner(cfg models.Config, folds, workers int, seed int64, logger *zap.Logger) *Runner {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		Config:     cfg,
		Folds:      folds,
		MaxWorkers: workers,
		Seed:       seed,
		Logger:     logger,
		Jobs:       jobs.NewManager(),
		newModel:   models.New,
	}
}

// FoldSeed is the seed of the model fitted while fold is held out.
func FoldSeed(seed int64, fold int) int64 {
	return seed*1_000_003 + int64(fold) + 1
}

type foldTask struct {
	slot     int
	workflow Workflow
	fold     int
	job      *jobs.Job
}

type foldOutcome struct {
	records   []MetricRecord
	confusion evaluation.ConfusionMatrix
	failure   *FoldFailure
}

// Run fits every workflow on each k-1 folds of train and scores it on the
// held-out fold. A failing fold is recorded and never stops the others.
// The returned results do not depend on MaxWorkers.
func (r *Runner) Run(ctx context.Context, train *data.Table, assign []int, workflows []Workflow) (*Results, error) {
	if len(assign) != train.NRows() {
		return nil, fmt.Errorf("fold assignment has %d rows, table has %d", len(assign), train.NRows())
	}
	for i, f := range assign {
		if f < 0 || f >= r.Folds {
			return nil, fmt.Errorf("row %d assigned to fold %d, want [0,%d)", i, f, r.Folds)
		}
	}
	folds := metrics.Folds(assign, r.Folds)

	tasks := make([]foldTask, 0, len(workflows)*r.Folds)
	for _, wf := range workflows {
		job := r.Jobs.CreateJob(wf.ID, r.Folds)
		for f := 0; f < r.Folds; f++ {
			tasks = append(tasks, foldTask{slot: len(tasks), workflow: wf, fold: f, job: job})
		}
	}

	outcomes := make([]foldOutcome, len(tasks))
	workers := r.MaxWorkers
	if workers > len(tasks) {
		workers = len(tasks)
	}

	start := time.Now()
	r.Logger.Info("cross-validation started",
		zap.Int("workflows", len(workflows)),
		zap.Int("folds", r.Folds),
		zap.Int("workers", workers))

	queue := make(chan foldTask, len(tasks))
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range queue {
				task.job.Start()
				out := r.runFold(ctx, train, assign, folds[task.fold], task)
				outcomes[task.slot] = out
				var err error
				if out.failure != nil {
					err = out.failure.Err
				}
				task.job.FoldDone(task.fold, err)
			}
		}()
	}
	for _, task := range tasks {
		queue <- task
	}
	close(queue)
	wg.Wait()

	res := &Results{
		Workflows: workflows,
		Confusion: make(map[string]evaluation.ConfusionMatrix),
	}
	for i, out := range outcomes {
		id := tasks[i].workflow.ID
		if out.failure != nil {
			res.Failures = append(res.Failures, out.failure)
			continue
		}
		res.Records = append(res.Records, out.records...)
		if res.Confusion[id] == nil {
			res.Confusion[id] = evaluation.ConfusionMatrix{}
		}
		metrics.MergeConfusion(res.Confusion[id], out.confusion)
	}
	SortRecords(res.Records)

	r.Logger.Info("cross-validation finished",
		zap.Int("records", len(res.Records)),
		zap.Int("failures", len(res.Failures)),
		zap.Duration("elapsed", time.Since(start)))

	return res, ctx.Err()
}

func (r *Runner) runFold(ctx context.Context, train *data.Table, assign []int, heldOut []int, task foldTask) (out foldOutcome) {
	log := logging.Workflow(r.Logger, task.workflow.ID).With(zap.Int("fold", task.fold))
	fail := func(err error) foldOutcome {
		log.Warn("fold failed", zap.Error(err))
		return foldOutcome{failure: &FoldFailure{WorkflowID: task.workflow.ID, Fold: task.fold, Err: err}}
	}
	defer func() {
		if p := recover(); p != nil {
			out = fail(fmt.Errorf("panic: %v", p))
		}
	}()

	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	fitTable, err := train.Subset(metrics.TrainRows(assign, task.fold))
	if err != nil {
		return fail(err)
	}
	evalTable, err := train.Subset(heldOut)
	if err != nil {
		return fail(err)
	}

	fitted, err := task.workflow.fit(r.newModel, fitTable, r.Config, FoldSeed(r.Seed, task.fold))
	if err != nil {
		return fail(err)
	}
	predicted, err := fitted.Predict(evalTable)
	if err != nil {
		return fail(err)
	}
	m, err := metrics.CalculateMetrics(evalTable.Labels(), predicted)
	if err != nil {
		return fail(err)
	}

	for _, name := range metrics.FoldMetrics {
		rec := MetricRecord{WorkflowID: task.workflow.ID, Metric: name, Fold: task.fold}
		if v, ok := m.Value(name); ok {
			rec.Value = v
		} else {
			rec.Missing = true
			log.Debug("metric undefined on fold", zap.String("metric", name))
		}
		out.records = append(out.records, rec)
	}
	out.confusion = m.Confusion

	log.Debug("fold done", zap.Float64("accuracy", m.Accuracy), zap.Int("rows", evalTable.NRows()))
	return out
}

// SortRecords orders records by workflow, metric and fold.
func SortRecords(records []MetricRecord) {
	sort.Slice(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.WorkflowID != b.WorkflowID {
			return a.WorkflowID < b.WorkflowID
		}
		if a.Metric != b.Metric {
			return a.Metric < b.Metric
		}
		return a.Fold < b.Fold
	})
}
