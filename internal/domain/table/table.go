// Package table holds the tabular model for uploaded client records together
// with its CSV and XLSX readers and the CSV writer used for exports.
package table

import (
	"fmt"
	"slices"
	"strings"
)

// Row is one record, ordered like the table columns.
type Row []Value

// Table is an ordered set of rows sharing a named column schema.
type Table struct {
	columns []string
	index   map[string]int
	rows    []Row
}

// New creates an empty table. Blank header cells are named "Unnamed: <i>"
// and repeated names get a ".<n>" suffix so every column stays addressable.
func New(columns []string) *Table {
	t := &Table{
		columns: make([]string, len(columns)),
		index:   make(map[string]int, len(columns)),
	}
	for i, c := range columns {
		name := strings.TrimSpace(c)
		if name == "" {
			name = fmt.Sprintf("Unnamed: %d", i)
		}
		if _, taken := t.index[name]; taken {
			base := name
			for n := 1; ; n++ {
				candidate := fmt.Sprintf("%s.%d", base, n)
				if _, taken := t.index[candidate]; !taken {
					name = candidate
					break
				}
			}
		}
		t.columns[i] = name
		t.index[name] = i
	}
	return t
}

// Columns returns a copy of the column names.
func (t *Table) Columns() []string { return slices.Clone(t.columns) }

// Width returns the number of columns.
func (t *Table) Width() int { return len(t.columns) }

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.rows) }

// Row returns the i-th row. The returned slice must not be modified.
func (t *Table) Row(i int) Row { return t.rows[i] }

// ColumnIndex looks up a column by name.
func (t *Table) ColumnIndex(name string) (int, bool) {
	i, ok := t.index[name]
	return i, ok
}

// Column returns every value of the named column, in row order.
func (t *Table) Column(name string) ([]Value, bool) {
	j, ok := t.index[name]
	if !ok {
		return nil, false
	}
	out := make([]Value, len(t.rows))
	for i, r := range t.rows {
		out[i] = r[j]
	}
	return out, true
}

// Append adds a row at the end.
func (t *Table) Append(row Row) error {
	if len(row) != len(t.columns) {
		return fmt.Errorf("%w: got %d values, want %d", ErrRowWidth, len(row), len(t.columns))
	}
	t.rows = append(t.rows, slices.Clone(row))
	return nil
}

// Head returns a copy holding at most the first n rows.
func (t *Table) Head(n int) *Table {
	if n < 0 {
		n = 0
	}
	if n > len(t.rows) {
		n = len(t.rows)
	}
	out := t.cloneSchema()
	out.rows = make([]Row, n)
	for i := range n {
		out.rows[i] = slices.Clone(t.rows[i])
	}
	return out
}

// Clone returns a deep copy.
func (t *Table) Clone() *Table { return t.Head(len(t.rows)) }

// SetColumn writes values into the named column. An existing column is
// overwritten in place; otherwise the column is appended on the right.
func (t *Table) SetColumn(name string, values []Value) error {
	if len(values) != len(t.rows) {
		return fmt.Errorf("%w: %q has %d values for %d rows", ErrLengthMismatch, name, len(values), len(t.rows))
	}
	if j, ok := t.index[name]; ok {
		for i := range t.rows {
			t.rows[i][j] = values[i]
		}
		return nil
	}
	t.index[name] = len(t.columns)
	t.columns = append(t.columns, name)
	for i := range t.rows {
		t.rows[i] = append(t.rows[i], values[i])
	}
	return nil
}

func (t *Table) cloneSchema() *Table {
	out := &Table{
		columns: slices.Clone(t.columns),
		index:   make(map[string]int, len(t.index)),
	}
	for k, v := range t.index {
		out.index[k] = v
	}
	return out
}
