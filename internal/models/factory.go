package models

import (
	"fmt"
	"math"
)

type Kind int

const (
	KindDecisionTree Kind = iota
	KindRandomForest
	KindBoostedTrees
	KindLogisticRegression
	KindLinearSVM
)

func (k Kind) String() string {
	for _, s := range catalog {
		if s.Kind == k {
			return s.ID
		}
	}
	return fmt.Sprintf("model(%d)", int(k))
}

// Spec describes one catalogue entry. NARobust models can be fitted on
// designs that still contain missing values.
type Spec struct {
	Kind     Kind
	ID       string
	Name     string
	NARobust bool
	Params   map[string]any
}

var catalog = []Spec{
	{Kind: KindDecisionTree, ID: "decision_tree", Name: "Decision tree", NARobust: true},
	{Kind: KindRandomForest, ID: "random_forest", Name: "Random forest", NARobust: true},
	{Kind: KindBoostedTrees, ID: "boosted_trees", Name: "Boosted trees", NARobust: true},
	{Kind: KindLogisticRegression, ID: "logistic_regression", Name: "Logistic regression", NARobust: true},
	{Kind: KindLinearSVM, ID: "linear_svm", Name: "Linear SVM", NARobust: false},
}

// Catalog returns the model specs with default hyper-parameters.
func Catalog() []Spec {
	return CatalogWith(DefaultConfig())
}

// CatalogWith returns the model specs with hyper-parameters taken from cfg.
func CatalogWith(cfg Config) []Spec {
	specs := make([]Spec, len(catalog))
	for i, s := range catalog {
		s.Params = cfg.params(s.Kind)
		specs[i] = s
	}
	return specs
}

func CatalogIDs() []string {
	ids := make([]string, len(catalog))
	for i, s := range catalog {
		ids[i] = s.ID
	}
	return ids
}

func Lookup(id string) (Spec, error) {
	for _, s := range catalog {
		if s.ID == id {
			return s, nil
		}
	}
	return Spec{}, fmt.Errorf("unknown algorithm: %s", id)
}

// New builds an unfitted model of the given kind. seed drives every random
// choice the model makes while fitting.
func New(kind Kind, cfg Config, seed int64) (Model, error) {
	switch kind {
	case KindDecisionTree:
		c := cfg.DecisionTree
		return NewDecisionTree(c.MaxDepth, c.MinSplit, c.MinLeaf, c.Complexity), nil
	case KindRandomForest:
		c := cfg.RandomForest
		return NewRandomForest(c.Trees, c.MaxFeatures, c.MinLeaf, c.Workers, seed), nil
	case KindBoostedTrees:
		c := cfg.BoostedTrees
		return NewGradientBoosting(c.Rounds, c.MaxDepth, c.LearningRate, c.Lambda, c.MinChildWeight), nil
	case KindLogisticRegression:
		c := cfg.LogisticRegression
		return NewLogisticRegression(c.MaxIter, c.Tolerance, c.Ridge), nil
	case KindLinearSVM:
		c := cfg.LinearSVM
		return NewLinearSVM(c.C, c.MaxIter, c.Tolerance, seed), nil
	default:
		return nil, fmt.Errorf("unknown model kind: %d", int(kind))
	}
}

type TreeConfig struct {
	MaxDepth   int     `mapstructure:"max_depth" yaml:"max_depth"`
	MinSplit   int     `mapstructure:"min_split" yaml:"min_split"`
	MinLeaf    int     `mapstructure:"min_leaf" yaml:"min_leaf"`
	Complexity float64 `mapstructure:"complexity" yaml:"complexity"`
}

type ForestConfig struct {
	Trees int `mapstructure:"trees" yaml:"trees"`
	// MaxFeatures is the number of candidate features per split; 0 means
	// floor(sqrt(p)).
	MaxFeatures int `mapstructure:"max_features" yaml:"max_features"`
	MinLeaf     int `mapstructure:"min_leaf" yaml:"min_leaf"`
	Workers     int `mapstructure:"workers" yaml:"workers"`
}

type BoostConfig struct {
	Rounds         int     `mapstructure:"rounds" yaml:"rounds"`
	MaxDepth       int     `mapstructure:"max_depth" yaml:"max_depth"`
	LearningRate   float64 `mapstructure:"learning_rate" yaml:"learning_rate"`
	Lambda         float64 `mapstructure:"lambda" yaml:"lambda"`
	MinChildWeight float64 `mapstructure:"min_child_weight" yaml:"min_child_weight"`
}

type LogisticConfig struct {
	MaxIter   int     `mapstructure:"max_iter" yaml:"max_iter"`
	Tolerance float64 `mapstructure:"tolerance" yaml:"tolerance"`
	Ridge     float64 `mapstructure:"ridge" yaml:"ridge"`
}

type SVMConfig struct {
	C         float64 `mapstructure:"c" yaml:"c"`
	MaxIter   int     `mapstructure:"max_iter" yaml:"max_iter"`
	Tolerance float64 `mapstructure:"tolerance" yaml:"tolerance"`
}

// Config holds the hyper-parameters of every catalogue model.
type Config struct {
	DecisionTree       TreeConfig     `mapstructure:"decision_tree" yaml:"decision_tree"`
	RandomForest       ForestConfig   `mapstructure:"random_forest" yaml:"random_forest"`
	BoostedTrees       BoostConfig    `mapstructure:"boosted_trees" yaml:"boosted_trees"`
	LogisticRegression LogisticConfig `mapstructure:"logistic_regression" yaml:"logistic_regression"`
	LinearSVM          SVMConfig      `mapstructure:"linear_svm" yaml:"linear_svm"`
}

func DefaultConfig() Config {
	return Config{
		DecisionTree: TreeConfig{
			MaxDepth:   30,
			MinSplit:   20,
			MinLeaf:    7,
			Complexity: 0.01,
		},
		RandomForest: ForestConfig{
			Trees:   500,
			MinLeaf: 1,
			Workers: 2,
		},
		BoostedTrees: BoostConfig{
			Rounds:         15,
			MaxDepth:       6,
			LearningRate:   0.3,
			Lambda:         1,
			MinChildWeight: 1,
		},
		LogisticRegression: LogisticConfig{
			MaxIter:   25,
			Tolerance: 1e-8,
			Ridge:     1e-6,
		},
		LinearSVM: SVMConfig{
			C:         1,
			MaxIter:   1000,
			Tolerance: 0.1,
		},
	}
}

func (c Config) Validate() error {
	t := c.DecisionTree
	if t.MaxDepth < 1 || t.MinSplit < 2 || t.MinLeaf < 1 {
		return fmt.Errorf("decision_tree: max_depth, min_split and min_leaf must be positive (min_split at least 2)")
	}
	if t.Complexity < 0 {
		return fmt.Errorf("decision_tree: complexity must not be negative, got %v", t.Complexity)
	}

	f := c.RandomForest
	if f.Trees < 1 {
		return fmt.Errorf("random_forest: trees must be positive, got %d", f.Trees)
	}
	if f.MaxFeatures < 0 || f.MinLeaf < 1 || f.Workers < 1 {
		return fmt.Errorf("random_forest: max_features must not be negative, min_leaf and workers must be positive")
	}

	b := c.BoostedTrees
	if b.Rounds < 1 || b.MaxDepth < 1 {
		return fmt.Errorf("boosted_trees: rounds and max_depth must be positive")
	}
	if b.LearningRate <= 0 || b.LearningRate > 1 {
		return fmt.Errorf("boosted_trees: learning_rate must be in (0, 1], got %v", b.LearningRate)
	}
	if b.Lambda < 0 || b.MinChildWeight < 0 {
		return fmt.Errorf("boosted_trees: lambda and min_child_weight must not be negative")
	}

	l := c.LogisticRegression
	if l.MaxIter < 1 || l.Tolerance <= 0 || l.Ridge < 0 {
		return fmt.Errorf("logistic_regression: max_iter and tolerance must be positive, ridge must not be negative")
	}

	s := c.LinearSVM
	if s.C <= 0 || s.MaxIter < 1 || s.Tolerance <= 0 {
		return fmt.Errorf("linear_svm: c, max_iter and tolerance must be positive")
	}
	return nil
}

func (c Config) params(kind Kind) map[string]any {
	m, err := New(kind, c, 0)
	if err != nil {
		return nil
	}
	return m.GetParams()
}

func sqrtFeatures(p int) int {
	m := int(math.Floor(math.Sqrt(float64(p))))
	if m < 1 {
		m = 1
	}
	return m
}
