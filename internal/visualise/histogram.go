package visualise

import (
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/yamesant/pima-indians-diabetes-analysis/internal/data"
)

const (
	gridRows = 2
	gridCols = 4
)

var groupColors = map[string]color.Color{
	data.LabelNo:  color.RGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff},
	data.LabelYes: color.RGBA{R: 0xff, G: 0x7f, B: 0x0e, A: 0xff},
}

// groupOrder is the order of the dodged halves inside a bin.
var groupOrder = []string{data.LabelNo, data.LabelYes}

// LongRow is one measurement of one patient.
type LongRow struct {
	Row         int
	Measurement string
	Value       float64
	Group       string
}

// LongForm stacks the measurement columns into one row per patient and
// measurement. Missing values stay in the output as NaN.
func LongForm(t *data.Table, group string) ([]LongRow, error) {
	if group != data.Outcome {
		return nil, fmt.Errorf("unknown grouping column %q", group)
	}
	labels := t.Labels()
	rows := make([]LongRow, 0, len(labels)*len(data.Measurements))
	for _, name := range data.Measurements {
		values, err := t.Column(name)
		if err != nil {
			return nil, err
		}
		for i, v := range values {
			rows = append(rows, LongRow{Row: i, Measurement: name, Value: v, Group: labels[i]})
		}
	}
	return rows, nil
}

// Facet holds the binned counts of one measurement, split by group. All
// groups share the bin edges Min + k*Width.
type Facet struct {
	Measurement string
	Min         float64
	Width       float64
	Counts      map[string][]float64
	Skipped     int
}

// Observed is the number of non-missing values binned in the facet.
func (f Facet) Observed() int {
	n := 0.0
	for _, c := range f.Counts {
		n += floats.Sum(c)
	}
	return int(n)
}

// Facets bins each measurement of the long form. Missing values are
// skipped and counted.
func Facets(rows []LongRow, bins int) ([]Facet, error) {
	if bins < 1 {
		return nil, fmt.Errorf("bins must be positive, got %d", bins)
	}
	byName := make(map[string][]LongRow, len(data.Measurements))
	for _, r := range rows {
		byName[r.Measurement] = append(byName[r.Measurement], r)
	}

	facets := make([]Facet, 0, len(data.Measurements))
	for _, name := range data.Measurements {
		f := Facet{Measurement: name, Counts: make(map[string][]float64)}
		for _, g := range groupOrder {
			f.Counts[g] = make([]float64, bins)
		}

		lo, hi := math.Inf(1), math.Inf(-1)
		for _, r := range byName[name] {
			if math.IsNaN(r.Value) {
				continue
			}
			lo = math.Min(lo, r.Value)
			hi = math.Max(hi, r.Value)
		}
		if math.IsInf(lo, 1) {
			f.Skipped = len(byName[name])
			facets = append(facets, f)
			continue
		}
		if hi == lo {
			lo -= 0.5
			hi += 0.5
		}
		f.Min = lo
		f.Width = (hi - lo) / float64(bins)

		for _, r := range byName[name] {
			if math.IsNaN(r.Value) {
				f.Skipped++
				continue
			}
			k := int((r.Value - lo) / f.Width)
			if k >= bins {
				k = bins - 1
			}
			counts, ok := f.Counts[r.Group]
			if !ok {
				return nil, fmt.Errorf("row %d: unknown group %q", r.Row, r.Group)
			}
			counts[k]++
		}
		facets = append(facets, f)
	}
	return facets, nil
}

// dodged builds one histogram per group, each taking its share of every bin.
func (f Facet) dodged() []*plotter.Histogram {
	share := f.Width / float64(len(groupOrder))
	out := make([]*plotter.Histogram, 0, len(groupOrder))
	for gi, g := range groupOrder {
		h := &plotter.Histogram{
			Width:     share,
			FillColor: groupColors[g],
			LineStyle: plotter.DefaultLineStyle,
		}
		h.LineStyle.Width = vg.Points(0.25)
		for k, c := range f.Counts[g] {
			left := f.Min + float64(k)*f.Width + float64(gi)*share
			h.Bins = append(h.Bins, plotter.HistogramBin{Min: left, Max: left + share, Weight: c})
		}
		out = append(out, h)
	}
	return out
}

func facetPlot(f Facet, legend bool) *plot.Plot {
	p := plot.New()
	p.Title.Text = f.Measurement
	p.Y.Label.Text = "count"
	if f.Width == 0 {
		p.Title.Text += " (no data)"
		return p
	}
	for gi, h := range f.dodged() {
		p.Add(h)
		if legend {
			p.Legend.Add(groupOrder[gi], h)
		}
	}
	p.Legend.Top = true
	p.Y.Min = 0
	return p
}

// RenderHistograms writes a 2x4 grid of histograms, one per measurement,
// with bars dodged by outcome label. Each facet scales its own axes.
func RenderHistograms(t *data.Table, group, path string, bins int) error {
	rows, err := LongForm(t, group)
	if err != nil {
		return err
	}
	facets, err := Facets(rows, bins)
	if err != nil {
		return err
	}

	plots := make([][]*plot.Plot, gridRows)
	for r := range plots {
		plots[r] = make([]*plot.Plot, gridCols)
		for c := range plots[r] {
			i := r*gridCols + c
			plots[r][c] = facetPlot(facets[i], i == 0)
		}
	}

	img := vgimg.New(16*vg.Inch, 8*vg.Inch)
	dc := draw.New(img)
	tiles := draw.Tiles{
		Rows:      gridRows,
		Cols:      gridCols,
		PadX:      vg.Millimeter * 4,
		PadY:      vg.Millimeter * 4,
		PadTop:    vg.Millimeter * 2,
		PadBottom: vg.Millimeter * 2,
		PadLeft:   vg.Millimeter * 2,
		PadRight:  vg.Millimeter * 2,
	}
	canvases := plot.Align(plots, tiles, dc)
	for r := range plots {
		for c := range plots[r] {
			plots[r][c].Draw(canvases[r][c])
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir plot dir: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	png := vgimg.PngCanvas{Canvas: img}
	if _, err := png.WriteTo(file); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
