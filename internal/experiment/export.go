package experiment

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// ExportMetrics writes one CSV line per metric record. Undefined values are
// written as NA.
func ExportMetrics(records []MetricRecord, filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return fmt.Errorf("mkdir metrics dir: %w", err)
	}
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"workflow", "metric", "fold", "value"}); err != nil {
		return err
	}

	for _, rec := range records {
		value := "NA"
		if !rec.Missing {
			value = strconv.FormatFloat(rec.Value, 'f', 6, 64)
		}
		if err := writer.Write([]string{
			rec.WorkflowID,
			rec.Metric,
			strconv.Itoa(rec.Fold + 1),
			value,
		}); err != nil {
			return err
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("write %s: %w", filename, err)
	}
	return file.Close()
}
