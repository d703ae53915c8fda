// Package dataset loads the three run inputs into typed in-memory tables.
package dataset

import (
	"userstats/internal/storage"
)

// Column is a loaded column with its inferred logical type.
type Column struct {
	Name string
	Type storage.ColumnType
}

// Table is a whole input held in memory. Row values are nil, int64, float64,
// bool or string, aligned with Columns.
type Table struct {
	Name    string
	Columns []Column
	Rows    [][]any

	// Key names the lookup column, or "" for positional tables.
	Key string

	keyIdx int
	index  map[string]int
}

// ColumnIndex returns the position of name, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// ColumnNames returns the column names in file order.
func (t *Table) ColumnNames() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.Rows) }

// Lookup returns the row whose key column normalizes to key. When the key
// column holds duplicates the first row wins.
func (t *Table) Lookup(key string) ([]any, bool) {
	if t.index == nil {
		return nil, false
	}
	i, ok := t.index[key]
	if !ok {
		return nil, false
	}
	return t.Rows[i], true
}

// Duplicates returns how many rows were shadowed by an earlier row with the
// same key.
func (t *Table) Duplicates() int {
	if t.index == nil {
		return 0
	}
	n := 0
	for _, r := range t.Rows {
		if r[t.keyIdx] != nil {
			n++
		}
	}
	return n - len(t.index)
}

// buildIndex indexes the key column. Rows with a nil key are not indexed.
func (t *Table) buildIndex() {
	t.keyIdx = t.ColumnIndex(t.Key)
	t.index = make(map[string]int, len(t.Rows))
	for i, r := range t.Rows {
		v := r[t.keyIdx]
		if v == nil {
			continue
		}
		k := storage.NormalizeKey(v)
		if _, seen := t.index[k]; !seen {
			t.index[k] = i
		}
	}
}

// Datasets groups the three loaded inputs of a run.
type Datasets struct {
	Experiments *Table
	Compounds   *Table
	Users       *Table
}
