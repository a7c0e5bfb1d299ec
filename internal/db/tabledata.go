// internal/db/tabledata.go
//
// Shared row-level operations behind the grid TableDataService contract.
// Each driver supplies its *sql.DB, dialect and column metadata; the SQL
// built here is the same shape everywhere.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/hgwr/TableGlass-sub001/internal/grid"
	"github.com/hgwr/TableGlass-sub001/internal/query"
)

// fetchPage reads one page of rows, requesting one row beyond the page
// size to learn whether more pages exist. Rows are ordered by the first
// column so paging stays stable across fetches.
func fetchPage(ctx context.Context, sqldb *sql.DB, d dialect, table query.TableRef, specs []query.ColumnSpec, pageIndex, pageSize int) (*grid.Page, error) {
	if len(specs) == 0 {
		return nil, WrapQueryError(fmt.Errorf("no columns for table %s", table))
	}

	names := make([]string, len(specs))
	quoted := make([]string, len(specs))
	for i, s := range specs {
		names[i] = s.Name
		quoted[i] = d.quoteIdent(s.Name)
	}

	stmt := fmt.Sprintf("SELECT %s FROM %s ORDER BY %s LIMIT %d OFFSET %d",
		strings.Join(quoted, ", "), d.tableName(table), quoted[0],
		pageSize+1, pageIndex*pageSize)

	rows, err := sqldb.QueryContext(ctx, stmt)
	if err != nil {
		return nil, WrapQueryError(err)
	}
	defer rows.Close()

	var fetched []query.Row
	for rows.Next() {
		row, err := scanRow(rows, names, specs)
		if err != nil {
			return nil, WrapQueryError(err)
		}
		fetched = append(fetched, row)
	}
	if err := rows.Err(); err != nil {
		return nil, WrapQueryError(err)
	}

	hasMore := len(fetched) > pageSize
	if hasMore {
		fetched = fetched[:pageSize]
	}
	return &grid.Page{Columns: specs, Rows: fetched, HasMore: hasMore}, nil
}

// insertRow inserts values and returns the persisted row. Dialects with
// RETURNING re-read the row from the database; others materialize it
// from the submitted values.
func insertRow(ctx context.Context, sqldb *sql.DB, d dialect, table query.TableRef, specs []query.ColumnSpec, values map[string]query.Value) (query.Row, error) {
	var cols, quoted, holders []string
	var args []any
	for _, s := range specs {
		v, ok := values[s.Name]
		if !ok {
			continue
		}
		cols = append(cols, s.Name)
		quoted = append(quoted, d.quoteIdent(s.Name))
		holders = append(holders, d.placeholder(len(args)+1))
		args = append(args, v.Arg())
	}
	if len(cols) == 0 {
		return query.Row{}, WrapQueryError(fmt.Errorf("no values to insert"))
	}

	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		d.tableName(table), strings.Join(quoted, ", "), strings.Join(holders, ", "))

	if d.returning {
		stmt += returningClause(d, specs)
		row, err := queryOneRow(ctx, sqldb, stmt, args, specs)
		if err != nil {
			return query.Row{}, err
		}
		return row, nil
	}

	if _, err := sqldb.ExecContext(ctx, stmt); err != nil {
		return query.Row{}, WrapQueryError(err)
	}
	return materializeRow(specs, values, query.Row{}), nil
}

// updateRow updates the changed columns of the row identified by
// null-safe equality on every column of the last-known persisted row.
func updateRow(ctx context.Context, sqldb *sql.DB, d dialect, table query.TableRef, specs []query.ColumnSpec, existing query.Row, changed map[string]query.Value) (query.Row, error) {
	var sets []string
	var args []any
	for _, s := range specs {
		v, ok := changed[s.Name]
		if !ok {
			continue
		}
		sets = append(sets, fmt.Sprintf("%s = %s", d.quoteIdent(s.Name), d.placeholder(len(args)+1)))
		args = append(args, v.Arg())
	}
	if len(sets) == 0 {
		return query.Row{}, WrapQueryError(fmt.Errorf("no values to update"))
	}

	where, args := whereCurrentRow(d, existing, args)
	stmt := fmt.Sprintf("UPDATE %s SET %s WHERE %s",
		d.tableName(table), strings.Join(sets, ", "), where)

	if d.returning {
		stmt += returningClause(d, specs)
		row, err := queryOneRow(ctx, sqldb, stmt, args, specs)
		if err != nil {
			return query.Row{}, err
		}
		return row, nil
	}

	res, err := sqldb.ExecContext(ctx, stmt, args...)
	if err != nil {
		return query.Row{}, WrapQueryError(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return query.Row{}, WrapQueryError(fmt.Errorf("row not found; it may have been changed by another session"))
	}
	return materializeRow(specs, changed, existing), nil
}

// deleteRow deletes the row identified by null-safe equality on every
// column of the last-known persisted row.
func deleteRow(ctx context.Context, sqldb *sql.DB, d dialect, table query.TableRef, existing query.Row) error {
	where, args := whereCurrentRow(d, existing, nil)
	stmt := fmt.Sprintf("DELETE FROM %s WHERE %s", d.tableName(table), where)

	res, err := sqldb.ExecContext(ctx, stmt, args...)
	if err != nil {
		return WrapQueryError(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return WrapQueryError(fmt.Errorf("row not found; it may have been changed by another session"))
	}
	return nil
}

// whereCurrentRow builds a predicate matching the persisted row: IS NULL
// for null columns, placeholder equality otherwise. args carries any
// placeholder arguments already consumed by the caller.
func whereCurrentRow(d dialect, existing query.Row, args []any) (string, []any) {
	var preds []string
	for _, name := range existing.Columns() {
		v, _ := existing.Value(name)
		if v.IsNull() {
			preds = append(preds, fmt.Sprintf("%s IS NULL", d.quoteIdent(name)))
			continue
		}
		preds = append(preds, fmt.Sprintf("%s = %s", d.quoteIdent(name), d.placeholder(len(args)+1)))
		args = append(args, v.Arg())
	}
	if len(preds) == 0 {
		// Refuse to touch every row of the table.
		preds = append(preds, "1 = 0")
	}
	return strings.Join(preds, " AND "), args
}

func returningClause(d dialect, specs []query.ColumnSpec) string {
	quoted := make([]string, len(specs))
	for i, s := range specs {
		quoted[i] = d.quoteIdent(s.Name)
	}
	return " RETURNING " + strings.Join(quoted, ", ")
}

func queryOneRow(ctx context.Context, sqldb *sql.DB, stmt string, args []any, specs []query.ColumnSpec) (query.Row, error) {
	rows, err := sqldb.QueryContext(ctx, stmt, args...)
	if err != nil {
		return query.Row{}, WrapQueryError(err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return query.Row{}, WrapQueryError(err)
		}
		return query.Row{}, WrapQueryError(fmt.Errorf("row not found; it may have been changed by another session"))
	}

	names := make([]string, len(specs))
	for i, s := range specs {
		names[i] = s.Name
	}
	row, err := scanRow(rows, names, specs)
	if err != nil {
		return query.Row{}, WrapQueryError(err)
	}
	return row, nil
}

func scanRow(rows *sql.Rows, names []string, specs []query.ColumnSpec) (query.Row, error) {
	raw := make([]any, len(names))
	ptrs := make([]any, len(names))
	for i := range raw {
		ptrs[i] = &raw[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return query.Row{}, err
	}
	vals := make(map[string]query.Value, len(names))
	for i, name := range names {
		vals[name] = valueForColumn(raw[i], specs[i])
	}
	return query.NewRow(names, vals), nil
}

// materializeRow overlays submitted values on a base row, used when the
// dialect cannot RETURNING the persisted row.
func materializeRow(specs []query.ColumnSpec, values map[string]query.Value, base query.Row) query.Row {
	names := make([]string, len(specs))
	vals := make(map[string]query.Value, len(specs))
	for i, s := range specs {
		names[i] = s.Name
		if v, ok := values[s.Name]; ok {
			vals[s.Name] = v
		} else if v, ok := base.Value(s.Name); ok {
			vals[s.Name] = v
		} else {
			vals[s.Name] = query.Null()
		}
	}
	return query.NewRow(names, vals)
}
