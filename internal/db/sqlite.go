// internal/db/sqlite.go
package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hgwr/TableGlass-sub001/internal/grid"
	"github.com/hgwr/TableGlass-sub001/internal/query"
)

// SQLiteDriver implements Driver for SQLite
type SQLiteDriver struct {
	db *sql.DB
}

// Connect establishes connection to SQLite
func (d *SQLiteDriver) Connect(params ConnectParams) error {
	// For SQLite the database string is the filepath
	dsn := strings.TrimPrefix(params.Database, "sqlite://")

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return WrapConnectionError(err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return WrapConnectionError(fmt.Errorf("pragma foreign_keys: %w", err))
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 10000"); err != nil {
		return WrapConnectionError(fmt.Errorf("pragma busy_timeout: %w", err))
	}

	d.db = db
	return nil
}

// Close closes the database connection
func (d *SQLiteDriver) Close() error {
	if d.db != nil {
		return d.db.Close()
	}
	return nil
}

// Execute runs a single statement and returns results
func (d *SQLiteDriver) Execute(ctx context.Context, sqlText string) (*query.Result, error) {
	return executeStatement(ctx, d.db, sqlText)
}

// Ping checks if database is reachable
func (d *SQLiteDriver) Ping(ctx context.Context) error {
	if d.db == nil {
		return WrapConnectionError(fmt.Errorf("not connected"))
	}
	return d.db.PingContext(ctx)
}

// Type returns the driver type
func (d *SQLiteDriver) Type() DriverType {
	return SQLite
}

// Tables returns every user table
func (d *SQLiteDriver) Tables(ctx context.Context) ([]query.TableRef, error) {
	stmt := "SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%' ORDER BY name"
	rows, err := d.db.QueryContext(ctx, stmt)
	if err != nil {
		return nil, WrapQueryError(err)
	}
	defer rows.Close()

	var tables []query.TableRef
	for rows.Next() {
		var t query.TableRef
		if err := rows.Scan(&t.Name); err != nil {
			return nil, WrapQueryError(err)
		}
		tables = append(tables, t)
	}
	return tables, rows.Err()
}

// Columns returns column metadata for a table
func (d *SQLiteDriver) Columns(ctx context.Context, table query.TableRef) ([]query.ColumnSpec, error) {
	stmt := fmt.Sprintf("PRAGMA table_info(%s)", sqliteDialect.quoteIdent(table.Name))
	rows, err := d.db.QueryContext(ctx, stmt)
	if err != nil {
		return nil, WrapQueryError(err)
	}
	defer rows.Close()

	var columns []query.ColumnSpec
	for rows.Next() {
		var cid, notNull, pk int
		var name, typeName string
		var defaultExpr sql.NullString
		if err := rows.Scan(&cid, &name, &typeName, &notNull, &defaultExpr, &pk); err != nil {
			return nil, WrapQueryError(err)
		}
		spec := query.ColumnSpec{
			Name:     name,
			Type:     query.DataTypeFromString(typeName),
			Nullable: notNull == 0,
		}
		if defaultExpr.Valid {
			spec.Default = literalDefault(defaultExpr.String, spec.Type)
		}
		columns = append(columns, spec)
	}
	return columns, rows.Err()
}

// FetchPage reads one page of rows for the editing grid
func (d *SQLiteDriver) FetchPage(ctx context.Context, table query.TableRef, pageIndex, pageSize int) (*grid.Page, error) {
	specs, err := d.Columns(ctx, table)
	if err != nil {
		return nil, err
	}
	return fetchPage(ctx, d.db, sqliteDialect, table, specs, pageIndex, pageSize)
}

// InsertRow inserts a row and returns the persisted row
func (d *SQLiteDriver) InsertRow(ctx context.Context, table query.TableRef, values map[string]query.Value) (query.Row, error) {
	specs, err := d.Columns(ctx, table)
	if err != nil {
		return query.Row{}, err
	}
	return insertRow(ctx, d.db, sqliteDialect, table, specs, values)
}

// UpdateRow applies changed values to an existing row
func (d *SQLiteDriver) UpdateRow(ctx context.Context, table query.TableRef, existing query.Row, changed map[string]query.Value) (query.Row, error) {
	specs, err := d.Columns(ctx, table)
	if err != nil {
		return query.Row{}, err
	}
	return updateRow(ctx, d.db, sqliteDialect, table, specs, existing, changed)
}

// DeleteRow deletes an existing row
func (d *SQLiteDriver) DeleteRow(ctx context.Context, table query.TableRef, existing query.Row) error {
	return deleteRow(ctx, d.db, sqliteDialect, table, existing)
}
