package models

import (
	"errors"
	"fmt"
	"math"
)

// ErrMissingValues is returned by models that cannot fit on missing values.
var ErrMissingValues = errors.New("missing values in design matrix")

// Model is a binary classifier over a numeric design matrix. Missing values
// are NaN; classes are 0 (No) and 1 (Yes).
type Model interface {
	Fit(X [][]float64, y []int) error
	Predict(X [][]float64) []int
	GetName() string
	GetParams() map[string]any
}

type BaseModel struct {
	Name   string
	Params map[string]any
}

func (bm *BaseModel) GetName() string {
	return bm.Name
}

func (bm *BaseModel) GetParams() map[string]any {
	return bm.Params
}

func checkTraining(X [][]float64, y []int) error {
	if len(X) == 0 {
		return fmt.Errorf("empty training set")
	}
	if len(X) != len(y) {
		return fmt.Errorf("X has %d rows but y has %d labels", len(X), len(y))
	}
	p := len(X[0])
	if p == 0 {
		return fmt.Errorf("design matrix has no features")
	}
	for i, row := range X {
		if len(row) != p {
			return fmt.Errorf("row %d has %d features, want %d", i, len(row), p)
		}
	}
	for i, label := range y {
		if label != 0 && label != 1 {
			return fmt.Errorf("row %d: label %d is not a binary class", i, label)
		}
	}
	return nil
}

func hasMissing(X [][]float64) bool {
	for _, row := range X {
		for _, v := range row {
			if math.IsNaN(v) {
				return true
			}
		}
	}
	return false
}

func majority(counts [2]int) int {
	if counts[1] > counts[0] {
		return 1
	}
	return 0
}
