package report

import (
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/sjwhitworth/golearn/evaluation"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/yamesant/pima-indians-diabetes-analysis/internal/data"
	metrics "github.com/yamesant/pima-indians-diabetes-analysis/internal/evaluation"
)

var metricColors = map[string]color.Color{
	metrics.MetricAccuracy:  color.RGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff},
	metrics.MetricPrecision: color.RGBA{R: 0x2c, G: 0xa0, B: 0x2c, A: 0xff},
	metrics.MetricRecall:    color.RGBA{R: 0xd6, G: 0x27, B: 0x28, A: 0xff},
}

// errorPoints satisfies plotter.YErrorBars' input.
type errorPoints struct {
	plotter.XYs
	plotter.YErrors
}

// RenderComparison plots the mean of each fold metric with a one standard
// error bar, one column per ranked workflow.
func RenderComparison(ranked []Ranked, path string) error {
	p := plot.New()
	p.Title.Text = "Cross-validated metrics (mean ± 1 s.e.)"
	p.Y.Label.Text = "value"
	p.Y.Min, p.Y.Max = 0, 1
	p.Legend.Top = true
	p.Add(plotter.NewGrid())

	var names []string
	for _, r := range ranked {
		if r.Rank > 0 {
			names = append(names, r.WorkflowID)
		}
	}
	if len(names) == 0 {
		return fmt.Errorf("no ranked workflows to plot")
	}

	for j, name := range metrics.FoldMetrics {
		offset := (float64(j) - 1) * 0.2
		var pts errorPoints
		for i, r := range ranked[:len(names)] {
			s := r.Metrics[name]
			if math.IsNaN(s.Mean) {
				continue
			}
			e := s.StdErr
			if math.IsNaN(e) {
				e = 0
			}
			pts.XYs = append(pts.XYs, plotter.XY{X: float64(i) + offset, Y: s.Mean})
			pts.YErrors = append(pts.YErrors, struct{ Low, High float64 }{e, e})
		}
		if len(pts.XYs) == 0 {
			continue
		}

		sc, err := plotter.NewScatter(pts)
		if err != nil {
			return fmt.Errorf("scatter %s: %w", name, err)
		}
		sc.GlyphStyle.Color = metricColors[name]
		sc.GlyphStyle.Radius = vg.Points(3)
		sc.GlyphStyle.Shape = draw.CircleGlyph{}

		bars, err := plotter.NewYErrorBars(pts)
		if err != nil {
			return fmt.Errorf("error bars %s: %w", name, err)
		}
		bars.LineStyle.Color = metricColors[name]

		p.Add(sc, bars)
		p.Legend.Add(name, sc)
	}

	p.NominalX(names...)
	p.X.Tick.Label.Rotation = math.Pi / 6

	width := vg.Length(2+len(names)) * vg.Inch
	return save(p, width, 6*vg.Inch, path)
}

// confusionGrid lays a confusion matrix out with predictions on the x axis
// and truth on the y axis, No before Yes.
type confusionGrid struct {
	cm evaluation.ConfusionMatrix
}

var gridLabels = []string{data.LabelNo, data.LabelYes}

func (g confusionGrid) Dims() (c, r int)   { return len(gridLabels), len(gridLabels) }
func (g confusionGrid) X(c int) float64    { return float64(c) }
func (g confusionGrid) Y(r int) float64    { return float64(r) }
func (g confusionGrid) Z(c, r int) float64 { return float64(g.cm[gridLabels[r]][gridLabels[c]]) }

// RenderConfusion draws cm as a heat map with the count in every cell.
func RenderConfusion(cm evaluation.ConfusionMatrix, title, path string) error {
	grid := confusionGrid{cm: cm}
	hm := plotter.NewHeatMap(grid, palette.Heat(12, 1))
	if hm.Min == hm.Max {
		hm.Max = hm.Min + 1
	}

	var cells plotter.XYLabels
	cols, rows := grid.Dims()
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			cells.XYs = append(cells.XYs, plotter.XY{X: grid.X(c), Y: grid.Y(r)})
			cells.Labels = append(cells.Labels, strconv.Itoa(int(grid.Z(c, r))))
		}
	}
	labels, err := plotter.NewLabels(cells)
	if err != nil {
		return fmt.Errorf("cell labels: %w", err)
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "predicted"
	p.Y.Label.Text = "truth"
	p.Add(hm, labels)
	p.NominalX(gridLabels...)
	p.NominalY(gridLabels...)

	return save(p, 5*vg.Inch, 5*vg.Inch, path)
}

func save(p *plot.Plot, w, h vg.Length, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir plot dir: %w", err)
	}
	if err := p.Save(w, h, path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}
