package models

import (
	"math"
	"math/rand"
	"sort"
)

type TreeNode struct {
	IsLeaf    bool
	Class     int
	Feature   int
	Threshold float64
	// MissingLeft routes rows with a missing split value to Left.
	MissingLeft bool
	Left        *TreeNode
	Right       *TreeNode
	Samples     int
	Impurity    float64
}

// DecisionTree is a CART classifier using Gini impurity. A split is kept
// only when it lowers the total impurity of the tree by at least Complexity
// times the impurity of the root. Rows whose split value is missing follow
// the child that received more training rows.
type DecisionTree struct {
	BaseModel
	Root       *TreeNode
	MaxDepth   int
	MinSplit   int
	MinLeaf    int
	Complexity float64
	// MaxFeatures > 0 draws that many candidate features at every split.
	MaxFeatures int

	rng     *rand.Rand
	minGain float64
}

func NewDecisionTree(maxDepth, minSplit, minLeaf int, complexity float64) *DecisionTree {
	if maxDepth <= 0 {
		maxDepth = 30
	}
	if minSplit < 2 {
		minSplit = 2
	}
	if minLeaf <= 0 {
		minLeaf = 1
	}

	return &DecisionTree{
		MaxDepth:   maxDepth,
		MinSplit:   minSplit,
		MinLeaf:    minLeaf,
		Complexity: complexity,
		BaseModel: BaseModel{
			Name:   "DecisionTree",
			Params: treeParams(maxDepth, minSplit, minLeaf, complexity),
		},
	}
}

func treeParams(maxDepth, minSplit, minLeaf int, complexity float64) map[string]any {
	return map[string]any{
		"max_depth":  maxDepth,
		"min_split":  minSplit,
		"min_leaf":   minLeaf,
		"complexity": complexity,
	}
}

func (dt *DecisionTree) Fit(X [][]float64, y []int) error {
	if err := checkTraining(X, y); err != nil {
		return err
	}
	if dt.MaxFeatures > 0 && dt.rng == nil {
		dt.rng = rand.New(rand.NewSource(1))
	}

	rows := make([]int, len(y))
	for i := range rows {
		rows[i] = i
	}
	counts := classCounts(y, rows)
	dt.minGain = dt.Complexity * impurityMass(counts)
	dt.Root = dt.buildTree(X, y, rows, 0)
	return nil
}

func (dt *DecisionTree) Predict(X [][]float64) []int {
	predictions := make([]int, len(X))
	for i, sample := range X {
		predictions[i] = dt.predictSample(sample, dt.Root)
	}
	return predictions
}

func (dt *DecisionTree) predictSample(sample []float64, node *TreeNode) int {
	for !node.IsLeaf {
		v := sample[node.Feature]
		switch {
		case math.IsNaN(v):
			if node.MissingLeft {
				node = node.Left
			} else {
				node = node.Right
			}
		case v < node.Threshold:
			node = node.Left
		default:
			node = node.Right
		}
	}
	return node.Class
}

// Depth returns the number of split levels below the root.
func (dt *DecisionTree) Depth() int {
	return nodeDepth(dt.Root)
}

func nodeDepth(n *TreeNode) int {
	if n == nil || n.IsLeaf {
		return 0
	}
	l, r := nodeDepth(n.Left), nodeDepth(n.Right)
	if l > r {
		return l + 1
	}
	return r + 1
}

func (dt *DecisionTree) buildTree(X [][]float64, y []int, rows []int, depth int) *TreeNode {
	counts := classCounts(y, rows)
	node := &TreeNode{
		IsLeaf:   true,
		Class:    majority(counts),
		Samples:  len(rows),
		Impurity: gini(counts),
	}

	if depth >= dt.MaxDepth ||
		len(rows) < dt.MinSplit ||
		counts[0] == 0 || counts[1] == 0 {
		return node
	}

	split, ok := dt.findBestSplit(X, y, rows, counts)
	if !ok || split.gain < dt.minGain {
		return node
	}

	var left, right []int
	for _, r := range rows {
		v := X[r][split.feature]
		if (math.IsNaN(v) && split.missingLeft) || (!math.IsNaN(v) && v < split.threshold) {
			left = append(left, r)
		} else {
			right = append(right, r)
		}
	}

	node.IsLeaf = false
	node.Feature = split.feature
	node.Threshold = split.threshold
	node.MissingLeft = split.missingLeft
	node.Left = dt.buildTree(X, y, left, depth+1)
	node.Right = dt.buildTree(X, y, right, depth+1)
	return node
}

type treeSplit struct {
	feature     int
	threshold   float64
	missingLeft bool
	gain        float64
}

type labelledValue struct {
	value float64
	label int
}

func (dt *DecisionTree) findBestSplit(X [][]float64, y []int, rows []int, counts [2]int) (treeSplit, bool) {
	parent := impurityMass(counts)
	best := treeSplit{}
	found := false

	observed := make([]labelledValue, 0, len(rows))
	for _, feature := range dt.candidateFeatures(len(X[0])) {
		observed = observed[:0]
		var missing [2]int
		for _, r := range rows {
			v := X[r][feature]
			if math.IsNaN(v) {
				missing[y[r]]++
				continue
			}
			observed = append(observed, labelledValue{value: v, label: y[r]})
		}
		if len(observed) < 2 {
			continue
		}
		sort.Slice(observed, func(i, j int) bool { return observed[i].value < observed[j].value })

		var total [2]int
		for _, o := range observed {
			total[o.label]++
		}

		var left [2]int
		for i := 0; i < len(observed)-1; i++ {
			left[observed[i].label]++
			if observed[i].value == observed[i+1].value {
				continue
			}
			right := [2]int{total[0] - left[0], total[1] - left[1]}
			nLeft, nRight := i+1, len(observed)-i-1

			l, r := left, right
			missingLeft := nLeft >= nRight
			if missingLeft {
				l[0] += missing[0]
				l[1] += missing[1]
			} else {
				r[0] += missing[0]
				r[1] += missing[1]
			}
			if l[0]+l[1] < dt.MinLeaf || r[0]+r[1] < dt.MinLeaf {
				continue
			}

			gain := parent - impurityMass(l) - impurityMass(r)
			if gain > best.gain {
				best = treeSplit{
					feature:     feature,
					threshold:   (observed[i].value + observed[i+1].value) / 2,
					missingLeft: missingLeft,
					gain:        gain,
				}
				found = true
			}
		}
	}

	return best, found
}

func (dt *DecisionTree) candidateFeatures(nFeatures int) []int {
	features := make([]int, nFeatures)
	for i := range features {
		features[i] = i
	}
	if dt.MaxFeatures <= 0 || dt.MaxFeatures >= nFeatures {
		return features
	}

	for i := 0; i < dt.MaxFeatures; i++ {
		j := i + dt.rng.Intn(nFeatures-i)
		features[i], features[j] = features[j], features[i]
	}
	chosen := features[:dt.MaxFeatures]
	sort.Ints(chosen)
	return chosen
}

func classCounts(y []int, rows []int) [2]int {
	var counts [2]int
	for _, r := range rows {
		counts[y[r]]++
	}
	return counts
}

func gini(counts [2]int) float64 {
	n := float64(counts[0] + counts[1])
	if n == 0 {
		return 0
	}
	p0, p1 := float64(counts[0])/n, float64(counts[1])/n
	return 1 - p0*p0 - p1*p1
}

// impurityMass is the Gini impurity weighted by the number of rows.
func impurityMass(counts [2]int) float64 {
	return float64(counts[0]+counts[1]) * gini(counts)
}
