package preprocessing

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// Scaler standardises features to zero mean and unit variance. Statistics
// are computed over observed values; a missing value maps to 0, the mean.
type Scaler struct {
	IsFitted    bool
	FeatureMean []float64
	FeatureStd  []float64
}

func NewScaler() *Scaler {
	return &Scaler{}
}

func (s *Scaler) Fit(X [][]float64) error {
	if len(X) == 0 {
		return fmt.Errorf("empty dataset")
	}

	nFeatures := len(X[0])
	s.FeatureMean = make([]float64, nFeatures)
	s.FeatureStd = make([]float64, nFeatures)

	col := make([]float64, 0, len(X))
	for j := 0; j < nFeatures; j++ {
		col = col[:0]
		for i := range X {
			if !math.IsNaN(X[i][j]) {
				col = append(col, X[i][j])
			}
		}
		if len(col) == 0 {
			s.FeatureMean[j], s.FeatureStd[j] = 0, 1
			continue
		}
		mean, variance := stat.PopMeanVariance(col, nil)
		std := math.Sqrt(variance)
		if std == 0 || math.IsNaN(std) {
			std = 1
		}
		s.FeatureMean[j] = mean
		s.FeatureStd[j] = std
	}

	s.IsFitted = true
	return nil
}

func (s *Scaler) Transform(X [][]float64) ([][]float64, error) {
	if !s.IsFitted {
		return nil, fmt.Errorf("scaler must be fitted before transform")
	}

	result := make([][]float64, len(X))
	for i := range X {
		if len(X[i]) != len(s.FeatureMean) {
			return nil, fmt.Errorf("row %d has %d features, scaler was fitted on %d", i, len(X[i]), len(s.FeatureMean))
		}
		result[i] = make([]float64, len(X[i]))
		for j, v := range X[i] {
			if math.IsNaN(v) {
				continue
			}
			result[i][j] = (v - s.FeatureMean[j]) / s.FeatureStd[j]
		}
	}

	return result, nil
}

func (s *Scaler) FitTransform(X [][]float64) ([][]float64, error) {
	if err := s.Fit(X); err != nil {
		return nil, err
	}
	return s.Transform(X)
}
