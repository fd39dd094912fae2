package data

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

type DataValidator struct{}

func NewDataValidator() *DataValidator {
	return &DataValidator{}
}

// ValidateLabels checks that both outcome labels are present, which the
// stratified split needs.
func (dv *DataValidator) ValidateLabels(t *Table) error {
	if t.NRows() == 0 {
		return fmt.Errorf("table is empty")
	}

	classCount := make(map[string]int)
	for _, label := range t.Labels() {
		classCount[label]++
	}

	if len(classCount) < 2 {
		return fmt.Errorf("dataset must have at least 2 classes, found %d", len(classCount))
	}

	return nil
}

type ColumnStats struct {
	Name    string
	Min     float64
	Max     float64
	Mean    float64
	Missing int
	Zeros   int
}

type Summary struct {
	Rows              int
	ClassDistribution map[string]int
	Columns           []ColumnStats
}

// Classes returns the labels in the summary sorted by name.
func (s Summary) Classes() []string {
	out := make([]string, 0, len(s.ClassDistribution))
	for label := range s.ClassDistribution {
		out = append(out, label)
	}
	sort.Strings(out)
	return out
}

// Describe computes per-column statistics over the observed values.
func (dv *DataValidator) Describe(t *Table) Summary {
	s := Summary{
		Rows:              t.NRows(),
		ClassDistribution: make(map[string]int),
	}
	for _, label := range t.Labels() {
		s.ClassDistribution[label]++
	}

	missing := t.MissingCounts()
	for _, name := range Measurements {
		col := t.mustColumn(name)
		observed := make([]float64, 0, len(col))
		zeros := 0
		for _, v := range col {
			if math.IsNaN(v) {
				continue
			}
			if v == 0 {
				zeros++
			}
			observed = append(observed, v)
		}

		cs := ColumnStats{Name: name, Missing: missing[name], Zeros: zeros}
		if len(observed) > 0 {
			cs.Min = floats.Min(observed)
			cs.Max = floats.Max(observed)
			cs.Mean = stat.Mean(observed, nil)
		} else {
			cs.Min, cs.Max, cs.Mean = math.NaN(), math.NaN(), math.NaN()
		}
		s.Columns = append(s.Columns, cs)
	}
	return s
}
