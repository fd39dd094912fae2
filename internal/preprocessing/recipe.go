package preprocessing

import (
	"fmt"
	"math"
	"sort"

	"github.com/yamesant/pima-indians-diabetes-analysis/internal/data"
)

type RecipeKind int

const (
	// RecipeNull passes the measurements through untouched, missing values
	// included.
	RecipeNull RecipeKind = iota
	// RecipeImputer adds missingness indicators and median-imputes the
	// sentinel columns.
	RecipeImputer
)

func (k RecipeKind) String() string {
	switch k {
	case RecipeNull:
		return "null"
	case RecipeImputer:
		return "imputer"
	default:
		return fmt.Sprintf("recipe(%d)", int(k))
	}
}

// ImputesMissing reports whether baked designs from this recipe are free of
// missing values.
func (k RecipeKind) ImputesMissing() bool {
	return k == RecipeImputer
}

func ParseRecipeKind(s string) (RecipeKind, error) {
	switch s {
	case "null":
		return RecipeNull, nil
	case "imputer":
		return RecipeImputer, nil
	default:
		return 0, fmt.Errorf("unknown recipe: %s", s)
	}
}

// Design is a baked feature matrix ready for a model.
type Design struct {
	Features []string
	X        [][]float64
	Labels   []string
}

// Recipe is a preprocessing transform estimated from training rows only.
type Recipe interface {
	Kind() RecipeKind
	Fit(train *data.Table) (Prepared, error)
}

// Prepared is a fitted recipe. Bake applies the same transform to any table.
type Prepared interface {
	Bake(t *data.Table) (*Design, error)
}

func NewRecipe(kind RecipeKind) (Recipe, error) {
	switch kind {
	case RecipeNull:
		return nullRecipe{}, nil
	case RecipeImputer:
		return imputerRecipe{columns: data.SentinelColumns}, nil
	default:
		return nil, fmt.Errorf("unknown recipe kind: %d", int(kind))
	}
}

type nullRecipe struct{}

func (nullRecipe) Kind() RecipeKind { return RecipeNull }

func (nullRecipe) Fit(*data.Table) (Prepared, error) {
	return nullPrepared{}, nil
}

type nullPrepared struct{}

func (nullPrepared) Bake(t *data.Table) (*Design, error) {
	X, err := t.Matrix(data.Measurements)
	if err != nil {
		return nil, err
	}
	features := make([]string, len(data.Measurements))
	copy(features, data.Measurements)
	return &Design{Features: features, X: X, Labels: t.Labels()}, nil
}

type imputerRecipe struct {
	columns []string
}

func (imputerRecipe) Kind() RecipeKind { return RecipeImputer }

// Fit estimates one median per imputed column from the training table.
func (r imputerRecipe) Fit(train *data.Table) (Prepared, error) {
	p := &ImputerPrepared{
		Medians: make(map[string]float64, len(r.columns)),
	}
	for _, name := range r.columns {
		col, err := train.Column(name)
		if err != nil {
			return nil, err
		}
		observed := make([]float64, 0, len(col))
		for _, v := range col {
			if !math.IsNaN(v) {
				observed = append(observed, v)
			}
		}
		if len(observed) == 0 {
			return nil, fmt.Errorf("cannot impute %s: no observed values in training data", name)
		}
		if len(observed) < len(col) {
			p.Indicators = append(p.Indicators, name)
		}
		p.Medians[name] = Median(observed)
	}
	return p, nil
}

// ImputerPrepared holds the training medians and the columns that get a
// missingness indicator.
type ImputerPrepared struct {
	Medians    map[string]float64
	Indicators []string
}

func IndicatorName(column string) string {
	return column + "_missing"
}

func (p *ImputerPrepared) Bake(t *data.Table) (*Design, error) {
	X, err := t.Matrix(data.Measurements)
	if err != nil {
		return nil, err
	}

	features := make([]string, 0, len(data.Measurements)+len(p.Indicators))
	features = append(features, data.Measurements...)
	for _, name := range p.Indicators {
		features = append(features, IndicatorName(name))
	}

	index := make(map[string]int, len(data.Measurements))
	for j, name := range data.Measurements {
		index[name] = j
	}

	for i, row := range X {
		flags := make([]float64, len(p.Indicators))
		for k, name := range p.Indicators {
			if math.IsNaN(row[index[name]]) {
				flags[k] = 1
			}
		}
		for name, median := range p.Medians {
			j := index[name]
			if math.IsNaN(row[j]) {
				row[j] = median
			}
		}
		X[i] = append(row, flags...)
	}

	return &Design{Features: features, X: X, Labels: t.Labels()}, nil
}

// Median returns the sample median, averaging the two middle values for an
// even count. values is not modified.
func Median(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
