package evaluation

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// StratifiedSplitter partitions rows into train and test sets so that every
// label keeps roughly TrainFraction of its rows in the training set.
type StratifiedSplitter struct {
	TrainFraction float64
	Seed          int64
}

func NewStratifiedSplitter(trainFraction float64, seed int64) *StratifiedSplitter {
	return &StratifiedSplitter{
		TrainFraction: trainFraction,
		Seed:          seed,
	}
}

// Split returns ascending row indices for the train and test sets. Labels
// are visited in sorted order so the result depends only on the seed.
func (s *StratifiedSplitter) Split(labels []string) (train, test []int, err error) {
	if len(labels) == 0 {
		return nil, nil, fmt.Errorf("cannot split empty dataset")
	}
	if s.TrainFraction <= 0 || s.TrainFraction >= 1 {
		return nil, nil, fmt.Errorf("train fraction must be between 0 and 1, got %v", s.TrainFraction)
	}

	rng := rand.New(rand.NewSource(s.Seed))
	for _, indices := range groupByLabel(labels) {
		rng.Shuffle(len(indices), func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})

		n := len(indices)
		trainCount := int(math.Round(float64(n) * s.TrainFraction))
		if n >= 2 {
			if trainCount >= n {
				trainCount = n - 1
			}
			if trainCount < 1 {
				trainCount = 1
			}
		}

		train = append(train, indices[:trainCount]...)
		test = append(test, indices[trainCount:]...)
	}

	sort.Ints(train)
	sort.Ints(test)
	return train, test, nil
}

// groupByLabel returns the row indices of each label, labels in sorted
// order and rows ascending within a label.
func groupByLabel(labels []string) [][]int {
	byLabel := make(map[string][]int)
	for i, label := range labels {
		byLabel[label] = append(byLabel[label], i)
	}

	keys := make([]string, 0, len(byLabel))
	for k := range byLabel {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	groups := make([][]int, len(keys))
	for i, k := range keys {
		groups[i] = byLabel[k]
	}
	return groups
}
