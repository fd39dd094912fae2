package models

import (
	"fmt"
	"math/rand"
	"sync"
)

// unlimitedDepth lets forest trees grow until their leaves are pure or
// smaller than the minimum leaf size.
const unlimitedDepth = 1 << 30

type RandomForest struct {
	BaseModel
	NTrees      int
	MaxFeatures int
	MinLeaf     int
	MaxWorkers  int
	Seed        int64
	Trees       []*DecisionTree
}

func NewRandomForest(nTrees, maxFeatures, minLeaf, workers int, seed int64) *RandomForest {
	if nTrees <= 0 {
		nTrees = 500
	}
	if minLeaf <= 0 {
		minLeaf = 1
	}
	if workers <= 0 {
		workers = 1
	}

	return &RandomForest{
		NTrees:      nTrees,
		MaxFeatures: maxFeatures,
		MinLeaf:     minLeaf,
		MaxWorkers:  workers,
		Seed:        seed,
		BaseModel: BaseModel{
			Name:   "RandomForest",
			Params: forestParams(nTrees, maxFeatures, minLeaf),
		},
	}
}

func forestParams(nTrees, maxFeatures, minLeaf int) map[string]any {
	mtry := any("sqrt")
	if maxFeatures > 0 {
		mtry = maxFeatures
	}
	return map[string]any{
		"n_trees":  nTrees,
		"mtry":     mtry,
		"min_leaf": minLeaf,
	}
}

// Fit grows NTrees trees on bootstrap samples. Tree i draws its sample and
// its split candidates from its own treeSeed, so the fitted forest does not
// depend on MaxWorkers.
func (rf *RandomForest) Fit(X [][]float64, y []int) error {
	if err := checkTraining(X, y); err != nil {
		return err
	}

	mtry := rf.MaxFeatures
	if mtry <= 0 {
		mtry = sqrtFeatures(len(X[0]))
	}

	rf.Trees = make([]*DecisionTree, rf.NTrees)
	errs := make([]error, rf.NTrees)

	workers := rf.MaxWorkers
	if workers > rf.NTrees {
		workers = rf.NTrees
	}

	jobs := make(chan int, rf.NTrees)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				rf.Trees[i], errs[i] = rf.trainSingleTree(X, y, i, mtry)
			}
		}()
	}

	for i := 0; i < rf.NTrees; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return fmt.Errorf("tree %d training failed: %w", i, err)
		}
	}
	return nil
}

// treeSeed spreads forest seeds apart so that tree i of one forest never
// shares a bootstrap stream with a tree of a forest seeded one higher.
func treeSeed(seed int64, i int) int64 {
	return seed*7919 + int64(i)
}

func (rf *RandomForest) trainSingleTree(X [][]float64, y []int, i, mtry int) (*DecisionTree, error) {
	r := rand.New(rand.NewSource(treeSeed(rf.Seed, i)))

	n := len(X)
	XBoot := make([][]float64, n)
	yBoot := make([]int, n)
	for k := 0; k < n; k++ {
		idx := r.Intn(n)
		XBoot[k] = X[idx]
		yBoot[k] = y[idx]
	}

	tree := NewDecisionTree(unlimitedDepth, 2, rf.MinLeaf, 0)
	tree.MaxFeatures = mtry
	tree.rng = r
	if err := tree.Fit(XBoot, yBoot); err != nil {
		return nil, err
	}
	return tree, nil
}

// Predict returns the majority vote of the trees; a tied vote is No.
func (rf *RandomForest) Predict(X [][]float64) []int {
	predictions := make([]int, len(X))
	for i, sample := range X {
		yes := 0
		for _, tree := range rf.Trees {
			yes += tree.predictSample(sample, tree.Root)
		}
		if 2*yes > len(rf.Trees) {
			predictions[i] = 1
		}
	}
	return predictions
}
