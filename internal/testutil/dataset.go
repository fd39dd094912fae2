// Package testutil generates synthetic Pima-like observation files for tests.
package testutil

import (
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// Header mirrors the column order of the published dataset.
const Header = "Pregnancies,Glucose,BloodPressure,SkinThickness,Insulin,BMI,DiabetesPedigreeFunction,Age,class"

type DatasetOptions struct {
	Rows int
	Seed int64
	// NoZeros suppresses the zero-coded missing values in the sentinel columns.
	NoZeros bool
}

// zero-coding rates roughly follow the real file: insulin and skin
// thickness are unrecorded for a large share of patients.
var zeroRates = [8]float64{0, 0.01, 0.05, 0.30, 0.45, 0.02, 0, 0}

// PimaCSV returns a CSV document with a header and opts.Rows data rows.
func PimaCSV(opts DatasetOptions) string {
	if opts.Rows <= 0 {
		opts.Rows = 200
	}
	r := rand.New(rand.NewSource(opts.Seed))

	var b strings.Builder
	b.WriteString(Header)
	b.WriteByte('\n')

	for i := 0; i < opts.Rows; i++ {
		diabetic := r.Float64() < 0.35
		shift := 0.0
		if diabetic {
			shift = 1
		}

		row := [8]float64{
			math.Floor(math.Abs(r.NormFloat64()*3 + 3 + shift*1.5)),
			math.Round(r.NormFloat64()*25 + 110 + shift*30),
			math.Round(r.NormFloat64()*12 + 70 + shift*3),
			math.Round(math.Abs(r.NormFloat64()*9 + 27 + shift*4)),
			math.Round(math.Abs(r.NormFloat64()*80 + 120 + shift*60)),
			math.Round((r.NormFloat64()*6+31+shift*4)*10) / 10,
			math.Round(math.Abs(r.NormFloat64()*0.3+0.4+shift*0.15)*1000) / 1000,
			math.Floor(math.Abs(r.NormFloat64()*10) + 21 + shift*8),
		}
		for j := range row {
			if !opts.NoZeros && r.Float64() < zeroRates[j] {
				row[j] = 0
			}
			if opts.NoZeros && row[j] == 0 && zeroRates[j] > 0 {
				row[j] = 1
			}
		}

		fields := make([]string, 0, 9)
		for _, v := range row {
			fields = append(fields, fmt.Sprintf("%g", v))
		}
		if diabetic {
			fields = append(fields, "1")
		} else {
			fields = append(fields, "0")
		}
		b.WriteString(strings.Join(fields, ","))
		b.WriteByte('\n')
	}
	return b.String()
}

// WritePimaCSV writes a synthetic dataset into dir and returns its path.
func WritePimaCSV(tb testing.TB, dir string, opts DatasetOptions) string {
	tb.Helper()
	path := filepath.Join(dir, "diabetes.csv")
	if err := os.WriteFile(path, []byte(PimaCSV(opts)), 0o644); err != nil {
		tb.Fatalf("write dataset: %v", err)
	}
	return path
}

// WriteFile writes arbitrary content into dir and returns its path.
func WriteFile(tb testing.TB, dir, name, content string) string {
	tb.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		tb.Fatalf("write %s: %v", name, err)
	}
	return path
}
