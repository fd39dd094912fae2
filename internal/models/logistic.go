package models

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/yamesant/pima-indians-diabetes-analysis/internal/preprocessing"
)

// LogisticRegression is fitted by iteratively reweighted least squares on
// standardised features. Rows with a missing value are left out of the fit;
// at prediction time a missing value takes the training mean.
type LogisticRegression struct {
	BaseModel
	MaxIter   int
	Tolerance float64
	Ridge     float64
	// Coefficients are on the standardised scale, intercept first.
	Coefficients []float64
	Iterations   int
	RowsUsed     int

	scaler *preprocessing.Scaler
}

func NewLogisticRegression(maxIter int, tolerance, ridge float64) *LogisticRegression {
	if maxIter <= 0 {
		maxIter = 25
	}
	if tolerance <= 0 {
		tolerance = 1e-8
	}

	return &LogisticRegression{
		MaxIter:   maxIter,
		Tolerance: tolerance,
		Ridge:     ridge,
		BaseModel: BaseModel{
			Name: "LogisticRegression",
			Params: map[string]any{
				"max_iter":  maxIter,
				"tolerance": tolerance,
				"ridge":     ridge,
			},
		},
	}
}

func (lr *LogisticRegression) Fit(X [][]float64, y []int) error {
	if err := checkTraining(X, y); err != nil {
		return err
	}

	var complete [][]float64
	var target []float64
	for i, row := range X {
		if hasMissing([][]float64{row}) {
			continue
		}
		complete = append(complete, row)
		target = append(target, float64(y[i]))
	}
	if len(complete) == 0 {
		return fmt.Errorf("logistic regression: no complete rows to fit")
	}

	lr.scaler = preprocessing.NewScaler()
	scaled, err := lr.scaler.FitTransform(complete)
	if err != nil {
		return fmt.Errorf("logistic regression: %w", err)
	}

	n, p := len(scaled), len(scaled[0])+1
	design := mat.NewDense(n, p, nil)
	for i, row := range scaled {
		design.Set(i, 0, 1)
		for j, v := range row {
			design.Set(i, j+1, v)
		}
	}

	beta := mat.NewVecDense(p, nil)
	eta := mat.NewVecDense(n, nil)
	z := mat.NewVecDense(n, nil)
	weighted := mat.NewDense(n, p, nil)

	lr.Iterations = 0
	for iter := 0; iter < lr.MaxIter; iter++ {
		eta.MulVec(design, beta)
		for i := 0; i < n; i++ {
			e := eta.AtVec(i)
			mu := sigmoid(e)
			w := math.Max(mu*(1-mu), 1e-10)
			z.SetVec(i, e+(target[i]-mu)/w)
			for j := 0; j < p; j++ {
				weighted.Set(i, j, w*design.At(i, j))
			}
		}

		var normal mat.Dense
		normal.Mul(design.T(), weighted)
		for j := 0; j < p; j++ {
			normal.Set(j, j, normal.At(j, j)+lr.Ridge)
		}
		var rhs mat.VecDense
		rhs.MulVec(weighted.T(), z)

		var next mat.VecDense
		if err := next.SolveVec(&normal, &rhs); err != nil {
			// An ill-conditioned system still yields a usable step.
			var cond mat.Condition
			if !errors.As(err, &cond) {
				return fmt.Errorf("logistic regression: iteration %d: %w", iter+1, err)
			}
		}

		lr.Iterations = iter + 1
		delta := floats.Distance(next.RawVector().Data, beta.RawVector().Data, math.Inf(1))
		beta.CopyVec(&next)
		if delta < lr.Tolerance {
			break
		}
	}

	lr.Coefficients = make([]float64, p)
	copy(lr.Coefficients, beta.RawVector().Data)
	lr.RowsUsed = n
	return nil
}

// Probabilities returns P(Yes) for each row.
func (lr *LogisticRegression) Probabilities(X [][]float64) []float64 {
	scaled, err := lr.scaler.Transform(X)
	if err != nil {
		panic(fmt.Sprintf("logistic regression: %v", err))
	}
	probs := make([]float64, len(scaled))
	for i, row := range scaled {
		probs[i] = sigmoid(lr.Coefficients[0] + floats.Dot(lr.Coefficients[1:], row))
	}
	return probs
}

func (lr *LogisticRegression) Predict(X [][]float64) []int {
	predictions := make([]int, len(X))
	for i, p := range lr.Probabilities(X) {
		if p > 0.5 {
			predictions[i] = 1
		}
	}
	return predictions
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
