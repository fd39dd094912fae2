package models

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"

	"github.com/yamesant/pima-indians-diabetes-analysis/internal/preprocessing"
)

// LinearSVM is an L2-regularised, squared-hinge-loss linear classifier
// solved by dual coordinate descent on standardised features with a bias
// term. It does not accept missing values.
type LinearSVM struct {
	BaseModel
	C         float64
	MaxIter   int
	Tolerance float64
	Seed      int64
	// Weights holds one weight per feature followed by the bias.
	Weights    []float64
	Iterations int

	scaler *preprocessing.Scaler
}

func NewLinearSVM(c float64, maxIter int, tolerance float64, seed int64) *LinearSVM {
	if c <= 0 {
		c = 1
	}
	if maxIter <= 0 {
		maxIter = 1000
	}
	if tolerance <= 0 {
		tolerance = 0.1
	}

	return &LinearSVM{
		C:         c,
		MaxIter:   maxIter,
		Tolerance: tolerance,
		Seed:      seed,
		BaseModel: BaseModel{
			Name: "LinearSVM",
			Params: map[string]any{
				"cost":      c,
				"max_iter":  maxIter,
				"tolerance": tolerance,
			},
		},
	}
}

func (svm *LinearSVM) Fit(X [][]float64, y []int) error {
	if err := checkTraining(X, y); err != nil {
		return err
	}
	if hasMissing(X) {
		return fmt.Errorf("linear svm: %w", ErrMissingValues)
	}

	svm.scaler = preprocessing.NewScaler()
	scaled, err := svm.scaler.FitTransform(X)
	if err != nil {
		return fmt.Errorf("linear svm: %w", err)
	}

	n := len(scaled)
	rows := make([][]float64, n)
	sign := make([]float64, n)
	diag := 1 / (2 * svm.C)
	qd := make([]float64, n)
	for i, row := range scaled {
		rows[i] = append(row, 1)
		sign[i] = -1
		if y[i] == 1 {
			sign[i] = 1
		}
		qd[i] = floats.Dot(rows[i], rows[i]) + diag
	}

	w := make([]float64, len(rows[0]))
	alpha := make([]float64, n)
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	r := rand.New(rand.NewSource(svm.Seed))

	svm.Iterations = 0
	for iter := 0; iter < svm.MaxIter; iter++ {
		r.Shuffle(n, func(a, b int) { order[a], order[b] = order[b], order[a] })

		pgMax, pgMin := math.Inf(-1), math.Inf(1)
		for _, i := range order {
			g := sign[i]*floats.Dot(w, rows[i]) - 1 + diag*alpha[i]
			pg := g
			if alpha[i] == 0 {
				pg = math.Min(g, 0)
			}
			pgMax = math.Max(pgMax, pg)
			pgMin = math.Min(pgMin, pg)

			if math.Abs(pg) > 1e-12 {
				old := alpha[i]
				alpha[i] = math.Max(alpha[i]-g/qd[i], 0)
				floats.AddScaled(w, (alpha[i]-old)*sign[i], rows[i])
			}
		}

		svm.Iterations = iter + 1
		if pgMax-pgMin <= svm.Tolerance {
			break
		}
	}

	svm.Weights = w
	return nil
}

// Decision returns the signed distance-like score of each row.
func (svm *LinearSVM) Decision(X [][]float64) []float64 {
	scaled, err := svm.scaler.Transform(X)
	if err != nil {
		panic(fmt.Sprintf("linear svm: %v", err))
	}
	p := len(svm.Weights) - 1
	scores := make([]float64, len(scaled))
	for i, row := range scaled {
		scores[i] = floats.Dot(svm.Weights[:p], row) + svm.Weights[p]
	}
	return scores
}

func (svm *LinearSVM) Predict(X [][]float64) []int {
	predictions := make([]int, len(X))
	for i, s := range svm.Decision(X) {
		if s > 0 {
			predictions[i] = 1
		}
	}
	return predictions
}
