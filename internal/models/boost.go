package models

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
)

type regNode struct {
	leaf        bool
	weight      float64
	feature     int
	threshold   float64
	missingLeft bool
	left        *regNode
	right       *regNode
}

func (n *regNode) predict(sample []float64) float64 {
	for !n.leaf {
		v := sample[n.feature]
		switch {
		case math.IsNaN(v):
			if n.missingLeft {
				n = n.left
			} else {
				n = n.right
			}
		case v < n.threshold:
			n = n.left
		default:
			n = n.right
		}
	}
	return n.weight
}

// GradientBoosting fits an additive model of regression trees to the
// logistic loss with second-order split gains. At every split the direction
// taken by missing values is the one that maximises the gain.
type GradientBoosting struct {
	BaseModel
	Rounds         int
	MaxDepth       int
	LearningRate   float64
	Lambda         float64
	MinChildWeight float64
	Trees          []*regNode
}

func NewGradientBoosting(rounds, maxDepth int, learningRate, lambda, minChildWeight float64) *GradientBoosting {
	if rounds <= 0 {
		rounds = 15
	}
	if maxDepth <= 0 {
		maxDepth = 6
	}
	if learningRate <= 0 {
		learningRate = 0.3
	}

	return &GradientBoosting{
		Rounds:         rounds,
		MaxDepth:       maxDepth,
		LearningRate:   learningRate,
		Lambda:         lambda,
		MinChildWeight: minChildWeight,
		BaseModel: BaseModel{
			Name:   "GradientBoosting",
			Params: boostParams(rounds, maxDepth, learningRate, lambda, minChildWeight),
		},
	}
}

func boostParams(rounds, maxDepth int, learningRate, lambda, minChildWeight float64) map[string]any {
	return map[string]any{
		"rounds":           rounds,
		"max_depth":        maxDepth,
		"learning_rate":    learningRate,
		"lambda":           lambda,
		"min_child_weight": minChildWeight,
	}
}

func (gb *GradientBoosting) Fit(X [][]float64, y []int) error {
	if err := checkTraining(X, y); err != nil {
		return err
	}

	n := len(X)
	margin := make([]float64, n)
	grad := make([]float64, n)
	hess := make([]float64, n)
	step := make([]float64, n)
	rows := make([]int, n)
	for i := range rows {
		rows[i] = i
	}

	gb.Trees = make([]*regNode, 0, gb.Rounds)
	for round := 0; round < gb.Rounds; round++ {
		for i := range margin {
			p := sigmoid(margin[i])
			grad[i] = p - float64(y[i])
			hess[i] = p * (1 - p)
		}

		tree := gb.grow(X, grad, hess, rows, 0)
		gb.Trees = append(gb.Trees, tree)

		for i, sample := range X {
			step[i] = tree.predict(sample)
		}
		floats.Add(margin, step)
	}
	return nil
}

// Margin returns the raw additive score of each row; positive means Yes.
func (gb *GradientBoosting) Margin(X [][]float64) []float64 {
	margins := make([]float64, len(X))
	for i, sample := range X {
		for _, tree := range gb.Trees {
			margins[i] += tree.predict(sample)
		}
	}
	return margins
}

func (gb *GradientBoosting) Predict(X [][]float64) []int {
	predictions := make([]int, len(X))
	for i, m := range gb.Margin(X) {
		if m > 0 {
			predictions[i] = 1
		}
	}
	return predictions
}

func (gb *GradientBoosting) leaf(g, h float64) *regNode {
	return &regNode{leaf: true, weight: -g / (h + gb.Lambda) * gb.LearningRate}
}

func (gb *GradientBoosting) score(g, h float64) float64 {
	return g * g / (h + gb.Lambda)
}

type gradientValue struct {
	value float64
	g, h  float64
}

func (gb *GradientBoosting) grow(X [][]float64, grad, hess []float64, rows []int, depth int) *regNode {
	var G, H float64
	for _, r := range rows {
		G += grad[r]
		H += hess[r]
	}
	if depth >= gb.MaxDepth || len(rows) < 2 {
		return gb.leaf(G, H)
	}

	parent := gb.score(G, H)
	bestGain := 0.0
	var best *regNode

	observed := make([]gradientValue, 0, len(rows))
	for feature := range X[0] {
		observed = observed[:0]
		var gMiss, hMiss float64
		for _, r := range rows {
			v := X[r][feature]
			if math.IsNaN(v) {
				gMiss += grad[r]
				hMiss += hess[r]
				continue
			}
			observed = append(observed, gradientValue{value: v, g: grad[r], h: hess[r]})
		}
		if len(observed) < 2 {
			continue
		}
		sort.Slice(observed, func(i, j int) bool { return observed[i].value < observed[j].value })

		var gL, hL float64
		for i := 0; i < len(observed)-1; i++ {
			gL += observed[i].g
			hL += observed[i].h
			if observed[i].value == observed[i+1].value {
				continue
			}
			gR, hR := G-gMiss-gL, H-hMiss-hL

			for _, missingLeft := range []bool{false, true} {
				gl, hl, gr, hr := gL, hL, gR+gMiss, hR+hMiss
				if missingLeft {
					gl, hl, gr, hr = gL+gMiss, hL+hMiss, gR, hR
				}
				if hl < gb.MinChildWeight || hr < gb.MinChildWeight {
					continue
				}
				gain := gb.score(gl, hl) + gb.score(gr, hr) - parent
				if gain > bestGain {
					bestGain = gain
					best = &regNode{
						feature:     feature,
						threshold:   (observed[i].value + observed[i+1].value) / 2,
						missingLeft: missingLeft,
					}
				}
			}
		}
	}

	if best == nil {
		return gb.leaf(G, H)
	}

	var left, right []int
	for _, r := range rows {
		v := X[r][best.feature]
		if (math.IsNaN(v) && best.missingLeft) || (!math.IsNaN(v) && v < best.threshold) {
			left = append(left, r)
		} else {
			right = append(right, r)
		}
	}
	best.left = gb.grow(X, grad, hess, left, depth+1)
	best.right = gb.grow(X, grad, hess, right, depth+1)
	return best
}
