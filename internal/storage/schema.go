// TableSpec lives here so the pipeline and the backend packages can share it
// without import cycles.
package storage

import (
	"fmt"
	"strings"
)

// ColumnType is the logical type of a column. Backends map it to a native SQL
// type when they create the destination table.
type ColumnType string

const (
	TypeInteger ColumnType = "integer"
	TypeFloat   ColumnType = "float"
	TypeBoolean ColumnType = "boolean"
	TypeText    ColumnType = "text"
)

// TableSpec describes a destination table.
type TableSpec struct {
	Schema  string       `json:"schema,omitempty" yaml:"schema,omitempty"`
	Name    string       `json:"name" yaml:"name"`
	Columns []ColumnSpec `json:"columns" yaml:"columns"`
}

// ColumnSpec describes one destination column.
type ColumnSpec struct {
	Name     string     `json:"name" yaml:"name"`
	Type     ColumnType `json:"type" yaml:"type"`
	Nullable bool       `json:"nullable" yaml:"nullable"`
}

// QualifiedName returns "schema.name", or just name when Schema is empty.
func (t TableSpec) QualifiedName() string {
	if t.Schema == "" {
		return t.Name
	}
	return t.Schema + "." + t.Name
}

// ColumnNames returns the column names in table order.
func (t TableSpec) ColumnNames() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}

// Validate checks the spec is usable for DDL generation.
func (t TableSpec) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("table name is empty")
	}
	if len(t.Columns) == 0 {
		return fmt.Errorf("table %s: no columns", t.QualifiedName())
	}
	seen := make(map[string]bool, len(t.Columns))
	for _, c := range t.Columns {
		n := strings.ToLower(strings.TrimSpace(c.Name))
		if n == "" {
			return fmt.Errorf("table %s: column name is empty", t.QualifiedName())
		}
		if seen[n] {
			return fmt.Errorf("table %s: column %q specified more than once", t.QualifiedName(), c.Name)
		}
		seen[n] = true
		switch c.Type {
		case TypeInteger, TypeFloat, TypeBoolean, TypeText:
		default:
			return fmt.Errorf("table %s: column %s: unsupported type %q", t.QualifiedName(), c.Name, c.Type)
		}
	}
	return nil
}

// CheckRows verifies every row has exactly one value per column.
func (t TableSpec) CheckRows(rows [][]any) error {
	for i, r := range rows {
		if len(r) != len(t.Columns) {
			return fmt.Errorf("table %s: row %d has %d values, want %d", t.QualifiedName(), i, len(r), len(t.Columns))
		}
	}
	return nil
}
