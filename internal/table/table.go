// Package table holds an in-memory row/column table and reads and writes
// it as .xlsx or .csv files.
package table

import (
	"fmt"
	"strings"
)

// Table is an ordered sequence of rows with named columns. A cell is
// either a string or absent (nil), which covers both missing trailing
// cells and empty spreadsheet cells.
type Table struct {
	columns []string
	index   map[string]int
	rows    [][]*string
}

// New creates an empty table with the given header. Later duplicates of
// a column name are kept but are not addressable by name.
func New(columns []string) *Table {
	t := &Table{
		columns: append([]string(nil), columns...),
		index:   make(map[string]int, len(columns)),
	}
	for i, c := range t.columns {
		if _, dup := t.index[c]; !dup {
			t.index[c] = i
		}
	}
	return t
}

// Columns returns the column names in order.
func (t *Table) Columns() []string {
	return append([]string(nil), t.columns...)
}

// HasColumn reports whether name is a column.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.rows)
}

// AppendRow adds a row. Cells beyond the header are dropped and missing
// cells are absent.
func (t *Table) AppendRow(cells []*string) {
	row := make([]*string, len(t.columns))
	copy(row, cells)
	t.rows = append(t.rows, row)
}

// AppendStrings adds a row of present values; "" is stored as absent.
func (t *Table) AppendStrings(values ...string) {
	cells := make([]*string, len(values))
	for i := range values {
		if values[i] != "" {
			v := values[i]
			cells[i] = &v
		}
	}
	t.AppendRow(cells)
}

// Value returns the cell at (row, column). ok is false when the column
// does not exist, the row is out of range, or the cell is absent.
func (t *Table) Value(row int, column string) (value string, ok bool) {
	col, found := t.index[column]
	if !found || row < 0 || row >= len(t.rows) {
		return "", false
	}
	cell := t.rows[row][col]
	if cell == nil {
		return "", false
	}
	return *cell, true
}

// EnsureColumn appends name as a new column or, if it already exists,
// resets every cell in it to the empty string.
func (t *Table) EnsureColumn(name string) {
	col, ok := t.index[name]
	if !ok {
		col = len(t.columns)
		t.columns = append(t.columns, name)
		t.index[name] = col
		for i := range t.rows {
			t.rows[i] = append(t.rows[i], nil)
		}
	}
	for i := range t.rows {
		empty := ""
		t.rows[i][col] = &empty
	}
}

// Set writes value into (row, column).
func (t *Table) Set(row int, column, value string) error {
	col, ok := t.index[column]
	if !ok {
		return fmt.Errorf("unknown column %q", column)
	}
	if row < 0 || row >= len(t.rows) {
		return fmt.Errorf("row %d out of range [0, %d)", row, len(t.rows))
	}
	t.rows[row][col] = &value
	return nil
}

// Record returns row i as strings, absent cells rendered as "".
func (t *Table) Record(i int) []string {
	out := make([]string, len(t.columns))
	for j, cell := range t.rows[i] {
		if cell != nil {
			out[j] = *cell
		}
	}
	return out
}

// MissingColumns returns the names in want that are not columns of t.
func (t *Table) MissingColumns(want []string) []string {
	var missing []string
	for _, c := range want {
		if !t.HasColumn(c) {
			missing = append(missing, c)
		}
	}
	return missing
}

// String renders a short description for logs.
func (t *Table) String() string {
	return fmt.Sprintf("table(%d rows; %s)", len(t.rows), strings.Join(t.columns, ", "))
}
