// Package table provides the in-memory tabular structure exchanged between
// loaders, the feature builder and exporters
package table

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrDuplicateColumn is returned when a column name is added twice
	ErrDuplicateColumn = errors.New("duplicate column")
	// ErrLengthMismatch is returned when a column's length differs from the table's row count
	ErrLengthMismatch = errors.New("column length does not match row count")
)

// Column is a single named column. Numeric columns use Floats with NaN marking
// a missing value; text columns use Strings.
type Column struct {
	Name    string
	Numeric bool
	Floats  []float64
	Strings []string
}

// Len returns the number of cells in the column
func (c *Column) Len() int {
	if c.Numeric {
		return len(c.Floats)
	}

	return len(c.Strings)
}

// Table is an ordered set of equally long columns
type Table struct {
	columns []*Column
	index   map[string]int
	rows    int
}

// New creates an empty table
func New() *Table {
	return &Table{
		index: make(map[string]int),
		rows:  -1,
	}
}

// AddNumeric appends a numeric column
func (t *Table) AddNumeric(name string, values []float64) error {
	return t.add(&Column{Name: name, Numeric: true, Floats: values})
}

// AddText appends a text column
func (t *Table) AddText(name string, values []string) error {
	return t.add(&Column{Name: name, Strings: values})
}

func (t *Table) add(col *Column) error {
	if _, exists := t.index[col.Name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateColumn, col.Name)
	}

	if t.rows >= 0 && col.Len() != t.rows {
		return fmt.Errorf("%w: column %q has %d values, table has %d rows", ErrLengthMismatch, col.Name, col.Len(), t.rows)
	}

	t.rows = col.Len()
	t.index[col.Name] = len(t.columns)
	t.columns = append(t.columns, col)

	return nil
}

// Len returns the number of rows
func (t *Table) Len() int {
	if t.rows < 0 {
		return 0
	}

	return t.rows
}

// Columns returns the column names in table order
func (t *Table) Columns() []string {
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.Name
	}

	return names
}

// Has reports whether the named column exists
func (t *Table) Has(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Column returns the named column
func (t *Table) Column(name string) (*Column, bool) {
	i, ok := t.index[name]
	if !ok {
		return nil, false
	}

	return t.columns[i], true
}

// Float returns the numeric value at row i of the named column, parsing text
// cells and returning NaN when the value is absent or unparseable.
func (t *Table) Float(name string, i int) float64 {
	col, ok := t.Column(name)
	if !ok {
		return math.NaN()
	}

	if col.Numeric {
		return col.Floats[i]
	}

	return parseFloat(col.Strings[i])
}

// Text returns the cell at row i of the named column formatted as text
func (t *Table) Text(name string, i int) string {
	col, ok := t.Column(name)
	if !ok {
		return ""
	}

	if col.Numeric {
		return formatFloat(col.Floats[i])
	}

	return col.Strings[i]
}
