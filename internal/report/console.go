package report

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/fatih/color"

	"github.com/yamesant/pima-indians-diabetes-analysis/internal/evaluation"
)

type consoleColors struct {
	green  func(a ...interface{}) string
	red    func(a ...interface{}) string
	yellow func(a ...interface{}) string
	cyan   func(a ...interface{}) string
}

func newConsoleColors() consoleColors {
	return consoleColors{
		green:  color.New(color.FgGreen).SprintFunc(),
		red:    color.New(color.FgRed).SprintFunc(),
		yellow: color.New(color.FgYellow).SprintFunc(),
		cyan:   color.New(color.FgCyan).SprintFunc(),
	}
}

func formatCell(s Summary) string {
	switch {
	case s.N == 0:
		return "NA"
	case math.IsNaN(s.StdErr):
		return fmt.Sprintf("%.4f", s.Mean)
	default:
		return fmt.Sprintf("%.4f ± %.4f", s.Mean, s.StdErr)
	}
}

// PrintTable writes the ranked comparison table followed by the notes on
// incomplete workflows.
func PrintTable(w io.Writer, runID string, ranked []Ranked, notes []Note) {
	c := newConsoleColors()
	flagged := make(map[string]bool, len(notes))
	for _, n := range notes {
		flagged[n.WorkflowID] = true
	}

	fmt.Fprintln(w, c.cyan(fmt.Sprintf("Workflow comparison (run %s)", runID)))
	fmt.Fprintln(w, strings.Repeat("-", 96))
	fmt.Fprintf(w, "%-5s %-34s %-18s %-18s %-18s\n", "Rank", "Workflow",
		evaluation.MetricAccuracy, evaluation.MetricPrecision, evaluation.MetricRecall)
	fmt.Fprintln(w, strings.Repeat("-", 96))

	for _, r := range ranked {
		rank := "-"
		if r.Rank > 0 {
			rank = fmt.Sprintf("%d", r.Rank)
		}
		name := fmt.Sprintf("%-34s", r.WorkflowID)
		switch {
		case r.Rank == 1:
			name = c.green(name)
		case r.Rank == 0:
			name = c.red(name)
		case flagged[r.WorkflowID]:
			name = c.yellow(name)
		}
		fmt.Fprintf(w, "%-5s %s %-18s %-18s %-18s\n", rank, name,
			formatCell(r.Metrics[evaluation.MetricAccuracy]),
			formatCell(r.Metrics[evaluation.MetricPrecision]),
			formatCell(r.Metrics[evaluation.MetricRecall]))
	}

	if len(notes) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%s\n", c.yellow("Incomplete workflows:"))
	for _, n := range notes {
		fmt.Fprintf(w, "  %s %-34s %s\n", c.yellow("!"), n.WorkflowID, n.Reason)
	}
}

// PrintFinal writes the test-set evaluation of the refitted best workflow.
func PrintFinal(w io.Writer, f *FinalResult) {
	c := newConsoleColors()
	fmt.Fprintf(w, "\n%s %s\n", c.cyan("Final evaluation:"), f.Workflow.ID)
	fmt.Fprintln(w, strings.Repeat("-", 60))
	fmt.Fprintf(w, "%-10s %-10s %-10s %-10s %-10s\n", "", "accuracy", "precision", "recall", "f1")
	for _, row := range []struct {
		name string
		m    *evaluation.ClassificationMetrics
	}{{"train", f.Train}, {"test", f.Test}} {
		fmt.Fprintf(w, "%-10s %-10.4f %-10.4f %-10.4f %-10.4f\n",
			row.name, row.m.Accuracy, row.m.Precision, row.m.Recall, row.m.F1)
	}
	fmt.Fprintf(w, "\n%s\n", c.cyan("Test confusion matrix:"))
	fmt.Fprintln(w, f.Test.FormatMetrics())
}
