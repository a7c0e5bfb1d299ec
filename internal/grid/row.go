// internal/grid/row.go
package grid

import (
	"github.com/google/uuid"

	"github.com/hgwr/TableGlass-sub001/internal/query"
)

// Cell is one editable cell: the last-known persisted value and the
// user's current text.
type Cell struct {
	Original *query.Value
	Text     string
}

// IsModified reports whether the text differs from the canonical
// projection of the original value.
func (c Cell) IsModified() bool {
	orig := ""
	if c.Original != nil {
		orig = c.Original.Display()
	}
	return orig != c.Text
}

// Row is one row of the editing working set. The ID is a locally
// generated handle, stable across a successful save and distinct from
// any server-assigned key.
type Row struct {
	ID        string
	Source    query.Row // last-known persisted row; empty when IsNew
	Cells     map[string]Cell
	IsNew     bool
	IsSaving  bool
	LastError string
}

// HasChanges reports whether the row is new or any cell is modified.
func (r Row) HasChanges() bool {
	if r.IsNew {
		return true
	}
	for _, c := range r.Cells {
		if c.IsModified() {
			return true
		}
	}
	return false
}

// rowFromPersisted wraps a fetched row, cells seeded from the persisted
// values. id may be empty to allocate a fresh handle.
func rowFromPersisted(id string, columns []query.ColumnSpec, persisted query.Row) Row {
	if id == "" {
		id = uuid.NewString()
	}
	cells := make(map[string]Cell, len(columns))
	for _, col := range columns {
		var cell Cell
		if v, ok := persisted.Value(col.Name); ok {
			val := v
			cell.Original = &val
			cell.Text = val.Display()
		}
		cells[col.Name] = cell
	}
	return Row{ID: id, Source: persisted, Cells: cells}
}

// blankRow builds a not-yet-inserted row, cells seeded from column
// defaults where present.
func blankRow(columns []query.ColumnSpec) Row {
	cells := make(map[string]Cell, len(columns))
	for _, col := range columns {
		var cell Cell
		if col.Default != nil {
			cell.Text = col.Default.Display()
		}
		cells[col.Name] = cell
	}
	return Row{ID: uuid.NewString(), Cells: cells, IsNew: true}
}

// cloneRow deep-copies a row so snapshots never alias controller state.
func cloneRow(r Row) Row {
	cells := make(map[string]Cell, len(r.Cells))
	for k, v := range r.Cells {
		if v.Original != nil {
			orig := *v.Original
			v.Original = &orig
		}
		cells[k] = v
	}
	r.Cells = cells
	return r
}
