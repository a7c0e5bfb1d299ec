// internal/query/row.go
package query

import (
	"time"

	"github.com/lib/pq"
)

// Row is an ordered, immutable mapping from column name to Value.
type Row struct {
	columns []string
	values  map[string]Value
}

// NewRow builds a row from an ordered column list and a value map.
// Columns missing from values read as null.
func NewRow(columns []string, values map[string]Value) Row {
	cols := make([]string, len(columns))
	copy(cols, columns)
	vals := make(map[string]Value, len(values))
	for k, v := range values {
		vals[k] = v
	}
	return Row{columns: cols, values: vals}
}

// Columns returns the column names in order.
func (r Row) Columns() []string {
	cols := make([]string, len(r.columns))
	copy(cols, r.columns)
	return cols
}

// Value returns the value for a column and whether the column exists.
func (r Row) Value(name string) (Value, bool) {
	for _, c := range r.columns {
		if c == name {
			return r.values[name], true
		}
	}
	return Value{}, false
}

// IsEmpty reports whether the row has no columns (e.g. a not-yet-inserted row).
func (r Row) IsEmpty() bool {
	return len(r.columns) == 0
}

// Result holds the outcome of one successful statement execution.
type Result struct {
	Rows         []Row
	RowCount     int
	IsSelect     bool
	AffectedRows int64
	Elapsed      time.Duration
}

// TableRef identifies a table across catalogs and schemas.
type TableRef struct {
	Catalog string
	Schema  string
	Name    string
}

// Qualified renders the schema-qualified, quoted table name. The schema
// segment is omitted when empty; embedded quotes are doubled.
func (t TableRef) Qualified() string {
	if t.Schema == "" {
		return pq.QuoteIdentifier(t.Name)
	}
	return pq.QuoteIdentifier(t.Schema) + "." + pq.QuoteIdentifier(t.Name)
}

// String renders the unquoted identity, used as a session key.
func (t TableRef) String() string {
	s := t.Name
	if t.Schema != "" {
		s = t.Schema + "." + s
	}
	if t.Catalog != "" {
		s = t.Catalog + "." + s
	}
	return s
}
