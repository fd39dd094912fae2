package evaluation

import (
	"fmt"
	"math"

	"github.com/sjwhitworth/golearn/evaluation"

	"github.com/yamesant/pima-indians-diabetes-analysis/internal/data"
)

const (
	MetricAccuracy  = "accuracy"
	MetricPrecision = "precision"
	MetricRecall    = "recall"
	MetricF1        = "f1"
)

// FoldMetrics are recorded for every cross-validation fold.
var FoldMetrics = []string{MetricAccuracy, MetricPrecision, MetricRecall}

// PositiveClass is the label precision, recall and F1 are computed for.
const PositiveClass = data.LabelYes

// ClassificationMetrics holds the binary metrics of one prediction set.
// A metric whose denominator is zero is NaN.
type ClassificationMetrics struct {
	Accuracy   float64
	Precision  float64
	Recall     float64
	F1         float64
	Confusion  evaluation.ConfusionMatrix
	NumSamples int
}

// NewConfusionMatrix counts truth (outer key) against prediction (inner
// key). Both outcome labels are always present as rows.
func NewConfusionMatrix(yTrue, yPred []string) (evaluation.ConfusionMatrix, error) {
	if len(yTrue) != len(yPred) {
		return nil, fmt.Errorf("%d true labels but %d predictions", len(yTrue), len(yPred))
	}
	cm := evaluation.ConfusionMatrix{
		data.LabelYes: {data.LabelYes: 0, data.LabelNo: 0},
		data.LabelNo:  {data.LabelYes: 0, data.LabelNo: 0},
	}
	for i := range yTrue {
		row, ok := cm[yTrue[i]]
		if !ok {
			return nil, fmt.Errorf("row %d: unknown label %q", i, yTrue[i])
		}
		if _, ok := row[yPred[i]]; !ok {
			return nil, fmt.Errorf("row %d: unknown prediction %q", i, yPred[i])
		}
		row[yPred[i]]++
	}
	return cm, nil
}

// MergeConfusion adds the counts of src into dst.
func MergeConfusion(dst, src evaluation.ConfusionMatrix) {
	for truth, row := range src {
		if dst[truth] == nil {
			dst[truth] = make(map[string]int)
		}
		for pred, n := range row {
			dst[truth][pred] += n
		}
	}
}

func CalculateMetrics(yTrue, yPred []string) (*ClassificationMetrics, error) {
	cm, err := NewConfusionMatrix(yTrue, yPred)
	if err != nil {
		return nil, err
	}
	return FromConfusion(cm), nil
}

// FromConfusion derives the metrics of an existing confusion matrix.
func FromConfusion(cm evaluation.ConfusionMatrix) *ClassificationMetrics {
	total := 0
	for _, row := range cm {
		for _, n := range row {
			total += n
		}
	}

	m := &ClassificationMetrics{
		Accuracy:   math.NaN(),
		Precision:  math.NaN(),
		Recall:     math.NaN(),
		F1:         math.NaN(),
		Confusion:  cm,
		NumSamples: total,
	}
	if total == 0 {
		return m
	}

	m.Accuracy = evaluation.GetAccuracy(cm)
	tp := evaluation.GetTruePositives(PositiveClass, cm)
	if tp+evaluation.GetFalsePositives(PositiveClass, cm) > 0 {
		m.Precision = evaluation.GetPrecision(PositiveClass, cm)
	}
	if tp+evaluation.GetFalseNegatives(PositiveClass, cm) > 0 {
		m.Recall = evaluation.GetRecall(PositiveClass, cm)
	}
	if !math.IsNaN(m.Precision) && !math.IsNaN(m.Recall) && m.Precision+m.Recall > 0 {
		m.F1 = evaluation.GetF1Score(PositiveClass, cm)
	}
	return m
}

// Value returns the named metric and whether it is defined.
func (m *ClassificationMetrics) Value(name string) (float64, bool) {
	var v float64
	switch name {
	case MetricAccuracy:
		v = m.Accuracy
	case MetricPrecision:
		v = m.Precision
	case MetricRecall:
		v = m.Recall
	case MetricF1:
		v = m.F1
	default:
		return math.NaN(), false
	}
	return v, !math.IsNaN(v)
}

func (m *ClassificationMetrics) FormatMetrics() string {
	result := fmt.Sprintf("Accuracy: %.4f\n", m.Accuracy)
	result += fmt.Sprintf("Precision (%s): %.4f, Recall: %.4f, F1: %.4f\n",
		PositiveClass, m.Precision, m.Recall, m.F1)
	result += evaluation.GetSummary(m.Confusion)
	return result
}
