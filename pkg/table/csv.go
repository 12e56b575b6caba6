package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

var (
	// ErrEmptyHeader is returned when a CSV input has no header row
	ErrEmptyHeader = errors.New("empty header")
)

// ReadCSV reads a header row followed by data rows. A column is numeric when
// every non-empty cell parses as a float; empty numeric cells become NaN.
func ReadCSV(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptyHeader
		}

		return nil, fmt.Errorf("read header: %w", err)
	}

	if len(header) == 0 {
		return nil, ErrEmptyHeader
	}

	cells := make([][]string, len(header))

	row := 0
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", row+2, err)
		}

		// Skip blank lines
		if len(record) == 1 && record[0] == "" {
			continue
		}

		if len(record) != len(header) {
			return nil, fmt.Errorf("row %d: expected %d columns, got %d", row+2, len(header), len(record))
		}

		for j, s := range record {
			cells[j] = append(cells[j], s)
		}
		row++
	}

	t := New()
	for j, name := range header {
		values := cells[j]
		if values == nil {
			values = []string{}
		}

		if floats, ok := numericColumn(values); ok {
			if err := t.AddNumeric(name, floats); err != nil {
				return nil, err
			}

			continue
		}

		if err := t.AddText(name, values); err != nil {
			return nil, err
		}
	}

	return t, nil
}

// WriteCSV writes the table with a header row. Numbers use the shortest
// representation that parses back to the same float64.
func (t *Table) WriteCSV(w io.Writer) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(t.Columns()); err != nil {
		return err
	}

	record := make([]string, len(t.columns))
	for i := 0; i < t.Len(); i++ {
		for j, col := range t.columns {
			if col.Numeric {
				record[j] = formatFloat(col.Floats[i])
			} else {
				record[j] = col.Strings[i]
			}
		}

		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()

	return writer.Error()
}

func numericColumn(values []string) ([]float64, bool) {
	floats := make([]float64, len(values))
	seen := false

	for i, s := range values {
		s = strings.TrimSpace(s)
		if s == "" {
			floats[i] = math.NaN()
			continue
		}

		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, false
		}

		floats[i] = v
		seen = true
	}

	// An all-empty column carries no type information; keep it as text
	if !seen && len(values) > 0 {
		return nil, false
	}

	return floats, true
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return math.NaN()
	}

	return v
}

func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}

	return strconv.FormatFloat(v, 'f', -1, 64)
}
