package data

import (
	"fmt"
	"math"

	dataframe "github.com/rocketlaunchr/dataframe-go"
)

const (
	Pregnancies     = "pregnancies"
	PlasmaGlucose   = "plasma_glucose"
	DiastolicBP     = "diastolic_bp"
	TricepsSkinfold = "triceps_skinfold"
	SerumInsulin    = "serum_insulin"
	BMI             = "bmi"
	Pedigree        = "pedigree"
	Age             = "age"

	// Outcome is the renamed class column.
	Outcome = "diabetes"

	LabelYes = "Yes"
	LabelNo  = "No"
)

// Measurements lists the measurement columns in file order.
var Measurements = []string{
	Pregnancies,
	PlasmaGlucose,
	DiastolicBP,
	TricepsSkinfold,
	SerumInsulin,
	BMI,
	Pedigree,
	Age,
}

// SentinelColumns are the measurements where a recorded zero means the
// value was not measured.
var SentinelColumns = []string{
	BMI,
	DiastolicBP,
	PlasmaGlucose,
	SerumInsulin,
	TricepsSkinfold,
}

// Table is the observation table: one row per patient, the eight
// measurements as float64 series (NaN marks a missing value) and the
// outcome label series.
type Table struct {
	frame *dataframe.DataFrame
}

// NewTable builds a table from column-major measurement values and labels.
// Every measurement column must be present and have len(labels) values.
func NewTable(columns map[string][]float64, labels []string) (*Table, error) {
	series := make([]dataframe.Series, 0, len(Measurements)+1)
	for _, name := range Measurements {
		values, ok := columns[name]
		if !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
		if len(values) != len(labels) {
			return nil, fmt.Errorf("column %q has %d values, want %d", name, len(values), len(labels))
		}
		series = append(series, newFloatSeries(name, values))
	}

	vals := make([]interface{}, len(labels))
	for i, label := range labels {
		if label != LabelYes && label != LabelNo {
			return nil, fmt.Errorf("row %d: invalid %s label %q", i, Outcome, label)
		}
		vals[i] = label
	}
	series = append(series, dataframe.NewSeriesString(Outcome, nil, vals...))

	return &Table{frame: dataframe.NewDataFrame(series...)}, nil
}

func newFloatSeries(name string, values []float64) *dataframe.SeriesFloat64 {
	vals := make([]interface{}, len(values))
	for i, v := range values {
		if math.IsNaN(v) {
			vals[i] = nil
		} else {
			vals[i] = v
		}
	}
	return dataframe.NewSeriesFloat64(name, nil, vals...)
}

func (t *Table) NRows() int {
	return t.frame.NRows()
}

func (t *Table) series(name string) (dataframe.Series, error) {
	idx, err := t.frame.NameToColumn(name)
	if err != nil {
		return nil, fmt.Errorf("unknown column %q", name)
	}
	return t.frame.Series[idx], nil
}

// Column returns a copy of a measurement column. Missing values are NaN.
func (t *Table) Column(name string) ([]float64, error) {
	s, err := t.series(name)
	if err != nil {
		return nil, err
	}
	fs, ok := s.(*dataframe.SeriesFloat64)
	if !ok {
		return nil, fmt.Errorf("column %q is not numeric", name)
	}
	out := make([]float64, len(fs.Values))
	copy(out, fs.Values)
	return out, nil
}

func (t *Table) mustColumn(name string) []float64 {
	col, err := t.Column(name)
	if err != nil {
		panic(err)
	}
	return col
}

// Labels returns the outcome label of every row.
func (t *Table) Labels() []string {
	s, err := t.series(Outcome)
	if err != nil {
		panic(err)
	}
	ss := s.(*dataframe.SeriesString)
	out := make([]string, ss.NRows())
	for i := range out {
		if v, ok := ss.Value(i).(string); ok {
			out[i] = v
		}
	}
	return out
}

func (t *Table) columns() map[string][]float64 {
	cols := make(map[string][]float64, len(Measurements))
	for _, name := range Measurements {
		cols[name] = t.mustColumn(name)
	}
	return cols
}

// Subset returns a new table holding the given rows in the given order.
func (t *Table) Subset(rows []int) (*Table, error) {
	n := t.NRows()
	labels := t.Labels()
	cols := t.columns()

	subCols := make(map[string][]float64, len(cols))
	for name := range cols {
		subCols[name] = make([]float64, len(rows))
	}
	subLabels := make([]string, len(rows))

	for i, r := range rows {
		if r < 0 || r >= n {
			return nil, fmt.Errorf("row index %d out of range [0,%d)", r, n)
		}
		for name, col := range cols {
			subCols[name][i] = col[r]
		}
		subLabels[i] = labels[r]
	}
	return NewTable(subCols, subLabels)
}

// Matrix returns the named columns as a row-major matrix.
func (t *Table) Matrix(columns []string) ([][]float64, error) {
	cols := make([][]float64, len(columns))
	for j, name := range columns {
		col, err := t.Column(name)
		if err != nil {
			return nil, err
		}
		cols[j] = col
	}
	X := make([][]float64, t.NRows())
	for i := range X {
		X[i] = make([]float64, len(columns))
		for j := range columns {
			X[i][j] = cols[j][i]
		}
	}
	return X, nil
}

// MissingCounts reports the number of missing values per measurement.
func (t *Table) MissingCounts() map[string]int {
	out := make(map[string]int, len(Measurements))
	for _, name := range Measurements {
		s, err := t.series(name)
		if err != nil {
			continue
		}
		n, err := s.NilCount()
		if err != nil {
			continue
		}
		out[name] = n
	}
	return out
}
