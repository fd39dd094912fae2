package report

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/yamesant/pima-indians-diabetes-analysis/internal/evaluation"
	"github.com/yamesant/pima-indians-diabetes-analysis/internal/experiment"
)

// Summary aggregates one metric of one workflow across folds. Mean and
// StdErr are NaN when fewer than one (Mean) or two (StdErr) folds have a
// defined value.
type Summary struct {
	WorkflowID string
	Metric     string
	Mean       float64
	StdErr     float64
	N          int
	Missing    int
}

type summaryKey struct {
	workflow string
	metric   string
}

// Aggregate computes the mean and standard error of every workflow and
// metric over the folds where the metric is defined.
func Aggregate(records []experiment.MetricRecord) []Summary {
	values := make(map[summaryKey][]float64)
	missing := make(map[summaryKey]int)
	seen := make(map[summaryKey]bool)
	var keys []summaryKey
	for _, r := range records {
		k := summaryKey{r.WorkflowID, r.Metric}
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
		if r.Missing {
			missing[k]++
			continue
		}
		values[k] = append(values[k], r.Value)
	}

	sort.Slice(keys, func(i, j int) bool {
		if keys[i].workflow != keys[j].workflow {
			return keys[i].workflow < keys[j].workflow
		}
		return keys[i].metric < keys[j].metric
	})

	out := make([]Summary, 0, len(keys))
	for _, k := range keys {
		out = append(out, summarise(k, values[k], missing[k]))
	}
	return out
}

func summarise(k summaryKey, vals []float64, missing int) Summary {
	s := Summary{
		WorkflowID: k.workflow,
		Metric:     k.metric,
		Mean:       math.NaN(),
		StdErr:     math.NaN(),
		N:          len(vals),
		Missing:    missing,
	}
	switch {
	case s.N == 1:
		s.Mean = vals[0]
	case s.N > 1:
		mean, std := stat.MeanStdDev(vals, nil)
		s.Mean = mean
		s.StdErr = std / math.Sqrt(float64(s.N))
	}
	return s
}

// Ranked is the row of one workflow in the comparison table. Rank is zero
// for workflows without a single defined accuracy.
type Ranked struct {
	Rank       int
	WorkflowID string
	Metrics    map[string]Summary
}

// Accuracy is the summary the ranking is based on.
func (r Ranked) Accuracy() Summary {
	return r.Metrics[evaluation.MetricAccuracy]
}

// Rank orders workflows by mean accuracy descending, then accuracy standard
// error ascending, then workflow ID. Unranked workflows follow by ID. Each of
// workflowIDs gets a row even when it produced no summaries at all.
func Rank(summaries []Summary, workflowIDs ...string) []Ranked {
	byID := make(map[string]*Ranked)
	var ids []string
	row := func(id string) *Ranked {
		r, ok := byID[id]
		if !ok {
			r = &Ranked{WorkflowID: id, Metrics: make(map[string]Summary)}
			byID[id] = r
			ids = append(ids, id)
		}
		return r
	}
	for _, s := range summaries {
		row(s.WorkflowID).Metrics[s.Metric] = s
	}
	for _, id := range workflowIDs {
		row(id)
	}

	var ranked, unranked []Ranked
	for _, id := range ids {
		r := *byID[id]
		if r.Accuracy().N == 0 {
			unranked = append(unranked, r)
			continue
		}
		ranked = append(ranked, r)
	}

	sort.Slice(ranked, func(i, j int) bool {
		a, b := ranked[i].Accuracy(), ranked[j].Accuracy()
		if a.Mean != b.Mean {
			return a.Mean > b.Mean
		}
		if ea, eb := nanLast(a.StdErr), nanLast(b.StdErr); ea != eb {
			return ea < eb
		}
		return a.WorkflowID < b.WorkflowID
	})
	sort.Slice(unranked, func(i, j int) bool {
		return unranked[i].WorkflowID < unranked[j].WorkflowID
	})
	for i := range ranked {
		ranked[i].Rank = i + 1
	}
	return append(ranked, unranked...)
}

func nanLast(v float64) float64 {
	if math.IsNaN(v) {
		return math.Inf(1)
	}
	return v
}

// Best returns the top ranked workflow.
func Best(ranked []Ranked) (Ranked, bool) {
	if len(ranked) == 0 || ranked[0].Rank != 1 {
		return Ranked{}, false
	}
	return ranked[0], true
}

// Note explains why a workflow's results are incomplete.
type Note struct {
	WorkflowID string
	Reason     string
}

// Incomplete lists the workflows that were rejected, had failing folds or
// have metrics undefined on some folds.
func Incomplete(res *experiment.Results, rejections []experiment.Rejection, summaries []Summary) []Note {
	var notes []Note
	for _, r := range rejections {
		notes = append(notes, Note{WorkflowID: r.ID, Reason: "rejected: " + r.Reason})
	}

	if res != nil {
		failed := make(map[string]int)
		var ids []string
		for _, f := range res.Failures {
			if failed[f.WorkflowID] == 0 {
				ids = append(ids, f.WorkflowID)
			}
			failed[f.WorkflowID]++
		}
		for _, id := range ids {
			notes = append(notes, Note{WorkflowID: id, Reason: fmt.Sprintf("%d fold(s) failed", failed[id])})
		}
	}

	for _, s := range summaries {
		if s.Missing > 0 {
			notes = append(notes, Note{
				WorkflowID: s.WorkflowID,
				Reason:     fmt.Sprintf("%s undefined on %d fold(s)", s.Metric, s.Missing),
			})
		}
	}

	sort.SliceStable(notes, func(i, j int) bool {
		return notes[i].WorkflowID < notes[j].WorkflowID
	})
	return notes
}
