package evaluation

import (
	"fmt"
	"math/rand"
)

// StratifiedKFold assigns every row to one of Folds folds, keeping the
// label proportions of each fold close to those of the whole set.
type StratifiedKFold struct {
	Folds int
	Seed  int64
}

func NewStratifiedKFold(folds int, seed int64) *StratifiedKFold {
	return &StratifiedKFold{
		Folds: folds,
		Seed:  seed,
	}
}

// Assign returns the fold id of each row. Rows of each label are shuffled
// and dealt round-robin, continuing from where the previous label stopped,
// so fold sizes differ by at most one.
func (kf *StratifiedKFold) Assign(labels []string) ([]int, error) {
	n := len(labels)
	if kf.Folds < 2 || kf.Folds > n {
		return nil, fmt.Errorf("invalid number of folds: %d (must be between 2 and %d)", kf.Folds, n)
	}

	assign := make([]int, n)
	rng := rand.New(rand.NewSource(kf.Seed))
	next := 0
	for _, indices := range groupByLabel(labels) {
		rng.Shuffle(len(indices), func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})
		for _, idx := range indices {
			assign[idx] = next % kf.Folds
			next++
		}
	}
	return assign, nil
}

// Folds returns the held-out rows of each fold, ascending.
func Folds(assign []int, k int) [][]int {
	folds := make([][]int, k)
	for i, f := range assign {
		folds[f] = append(folds[f], i)
	}
	return folds
}

// TrainRows returns the rows outside the given fold, ascending.
func TrainRows(assign []int, fold int) []int {
	rows := make([]int, 0, len(assign))
	for i, f := range assign {
		if f != fold {
			rows = append(rows, i)
		}
	}
	return rows
}
