package data

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInputNotFound is returned when the observation file does not exist.
var ErrInputNotFound = errors.New("input file not found")

// SchemaError reports a file that does not match the fixed 9-column layout.
type SchemaError struct {
	Path   string
	Column string
	Row    int
	Reason string
}

func (e *SchemaError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: schema mismatch", e.Path)
	if e.Column != "" {
		fmt.Fprintf(&b, " in column %q", e.Column)
	}
	if e.Row > 0 {
		fmt.Fprintf(&b, " at row %d", e.Row)
	}
	b.WriteString(": ")
	b.WriteString(e.Reason)
	return b.String()
}

var outcomeCodes = map[string]string{
	"1": LabelYes,
	"0": LabelNo,
}

type CSVReader struct {
	filename string
}

func NewCSVReader(filename string) *CSVReader {
	return &CSVReader{filename: filename}
}

// LoadObservations reads the observation file, renames the class column
// and maps its codes to labels.
func LoadObservations(filename string) (*Table, error) {
	return NewCSVReader(filename).LoadData()
}

func (cr *CSVReader) LoadData() (*Table, error) {
	file, err := os.Open(cr.filename)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrInputNotFound, cr.filename)
		}
		return nil, fmt.Errorf("failed to open %s: %w", cr.filename, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	headers, err := reader.Read()
	if err == io.EOF {
		return nil, &SchemaError{Path: cr.filename, Reason: "file is empty"}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read headers from %s: %w", cr.filename, err)
	}

	want := len(Measurements) + 1
	if len(headers) != want {
		return nil, &SchemaError{
			Path:   cr.filename,
			Reason: fmt.Sprintf("expected %d columns, header has %d", want, len(headers)),
		}
	}
	classHeader := strings.TrimSpace(headers[len(headers)-1])

	columns := make(map[string][]float64, len(Measurements))
	var labels []string

	row := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		row++
		if err != nil {
			return nil, fmt.Errorf("error reading %s row %d: %w", cr.filename, row, err)
		}
		if len(record) != want {
			return nil, &SchemaError{
				Path:   cr.filename,
				Row:    row,
				Reason: fmt.Sprintf("expected %d columns, got %d", want, len(record)),
			}
		}

		for j, name := range Measurements {
			val, err := decimal.NewFromString(strings.TrimSpace(record[j]))
			if err != nil {
				return nil, &SchemaError{
					Path:   cr.filename,
					Column: strings.TrimSpace(headers[j]),
					Row:    row,
					Reason: fmt.Sprintf("non-numeric value %q", record[j]),
				}
			}
			f, _ := val.Float64()
			columns[name] = append(columns[name], f)
		}

		code := strings.TrimSpace(record[len(record)-1])
		label, ok := outcomeCodes[code]
		if !ok {
			return nil, &SchemaError{
				Path:   cr.filename,
				Column: classHeader,
				Row:    row,
				Reason: fmt.Sprintf("outcome code %q is not 1 or 0", code),
			}
		}
		labels = append(labels, label)
	}

	if len(labels) == 0 {
		return nil, &SchemaError{Path: cr.filename, Reason: "no data rows"}
	}

	return NewTable(columns, labels)
}
