// internal/db/postgres.go
package db

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/hgwr/TableGlass-sub001/internal/grid"
	"github.com/hgwr/TableGlass-sub001/internal/query"
)

// PostgresDriver implements Driver for PostgreSQL
type PostgresDriver struct {
	db     *sql.DB
	tunnel *SSHTunnel
}

// Connect establishes connection to PostgreSQL
func (d *PostgresDriver) Connect(params ConnectParams) error {
	u := &url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(params.User, params.Password),
		Host:   fmt.Sprintf("%s:%d", params.Host, params.Port),
		Path:   "/" + params.Database,
	}

	connConfig, err := pgx.ParseConfig(u.String())
	if err != nil {
		return WrapConnectionError(err)
	}

	if params.SSHConfig != nil && params.SSHConfig.Host != "" {
		tunnel, err := NewSSHTunnel(params.SSHConfig)
		if err != nil {
			return WrapConnectionError(fmt.Errorf("failed to create SSH tunnel: %w", err))
		}
		d.tunnel = tunnel

		// Let the SSH server resolve the hostname, not the local machine.
		connConfig.LookupFunc = func(ctx context.Context, host string) ([]string, error) {
			return []string{host}, nil
		}
		connConfig.DialFunc = func(ctx context.Context, network, addr string) (net.Conn, error) {
			remoteAddr := fmt.Sprintf("%s:%d", params.Host, params.Port)
			return tunnel.DialContext(ctx, network, remoteAddr)
		}
	}

	dbStr := stdlib.RegisterConnConfig(connConfig)
	db, err := sql.Open("pgx", dbStr)
	if err != nil {
		if d.tunnel != nil {
			d.tunnel.Close()
		}
		return WrapConnectionError(err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		if d.tunnel != nil {
			d.tunnel.Close()
		}
		return WrapConnectionError(err)
	}

	d.db = db
	return nil
}

// Close closes the database connection and SSH tunnel
func (d *PostgresDriver) Close() error {
	var dbErr error
	if d.db != nil {
		dbErr = d.db.Close()
	}
	if d.tunnel != nil {
		if err := d.tunnel.Close(); err != nil {
			if dbErr != nil {
				return fmt.Errorf("db close err: %v, tunnel close err: %w", dbErr, err)
			}
			return err
		}
	}
	return dbErr
}

// Execute runs a single statement and returns results
func (d *PostgresDriver) Execute(ctx context.Context, sqlText string) (*query.Result, error) {
	return executeStatement(ctx, d.db, sqlText)
}

// Ping checks if database is reachable
func (d *PostgresDriver) Ping(ctx context.Context) error {
	if d.db == nil {
		return WrapConnectionError(fmt.Errorf("not connected"))
	}
	return d.db.PingContext(ctx)
}

// Type returns the driver type
func (d *PostgresDriver) Type() DriverType {
	return Postgres
}

// Tables returns every table in all non-system schemas
func (d *PostgresDriver) Tables(ctx context.Context) ([]query.TableRef, error) {
	stmt := `
		SELECT n.nspname, c.relname
		FROM pg_class c
		JOIN pg_namespace n ON n.oid = c.relnamespace
		WHERE n.nspname NOT IN ('information_schema', 'pg_catalog', 'pg_toast')
		AND c.relkind IN ('r', 'v', 'm', 'f', 'p')
		ORDER BY 1, 2`
	rows, err := d.db.QueryContext(ctx, stmt)
	if err != nil {
		return nil, WrapQueryError(err)
	}
	defer rows.Close()

	var tables []query.TableRef
	for rows.Next() {
		var t query.TableRef
		if err := rows.Scan(&t.Schema, &t.Name); err != nil {
			return nil, WrapQueryError(err)
		}
		tables = append(tables, t)
	}
	return tables, rows.Err()
}

// Columns returns column metadata for a table
func (d *PostgresDriver) Columns(ctx context.Context, table query.TableRef) ([]query.ColumnSpec, error) {
	stmt := `
		SELECT
			a.attname,
			format_type(a.atttypid, a.atttypmod),
			NOT a.attnotnull,
			COALESCE(pg_get_expr(def.adbin, def.adrelid), '')
		FROM pg_attribute a
		LEFT JOIN pg_attrdef def ON a.attrelid = def.adrelid AND a.attnum = def.adnum
		JOIN pg_class cl ON a.attrelid = cl.oid
		JOIN pg_namespace n ON cl.relnamespace = n.oid
		WHERE n.nspname = $1 AND cl.relname = $2 AND a.attnum > 0 AND NOT a.attisdropped
		ORDER BY a.attnum`

	schema := table.Schema
	if schema == "" {
		schema = "public"
	}
	rows, err := d.db.QueryContext(ctx, stmt, schema, table.Name)
	if err != nil {
		return nil, WrapQueryError(err)
	}
	defer rows.Close()

	var columns []query.ColumnSpec
	for rows.Next() {
		var name, typeName, defaultExpr string
		var nullable bool
		if err := rows.Scan(&name, &typeName, &nullable, &defaultExpr); err != nil {
			return nil, WrapQueryError(err)
		}
		spec := query.ColumnSpec{
			Name:     name,
			Type:     query.DataTypeFromString(typeName),
			Nullable: nullable,
		}
		spec.Default = literalDefault(defaultExpr, spec.Type)
		columns = append(columns, spec)
	}
	return columns, rows.Err()
}

// FetchPage reads one page of rows for the editing grid
func (d *PostgresDriver) FetchPage(ctx context.Context, table query.TableRef, pageIndex, pageSize int) (*grid.Page, error) {
	specs, err := d.Columns(ctx, table)
	if err != nil {
		return nil, err
	}
	return fetchPage(ctx, d.db, postgresDialect, table, specs, pageIndex, pageSize)
}

// InsertRow inserts a row and returns the persisted row
func (d *PostgresDriver) InsertRow(ctx context.Context, table query.TableRef, values map[string]query.Value) (query.Row, error) {
	specs, err := d.Columns(ctx, table)
	if err != nil {
		return query.Row{}, err
	}
	return insertRow(ctx, d.db, postgresDialect, table, specs, values)
}

// UpdateRow applies changed values to an existing row
func (d *PostgresDriver) UpdateRow(ctx context.Context, table query.TableRef, existing query.Row, changed map[string]query.Value) (query.Row, error) {
	specs, err := d.Columns(ctx, table)
	if err != nil {
		return query.Row{}, err
	}
	return updateRow(ctx, d.db, postgresDialect, table, specs, existing, changed)
}

// DeleteRow deletes an existing row
func (d *PostgresDriver) DeleteRow(ctx context.Context, table query.TableRef, existing query.Row) error {
	return deleteRow(ctx, d.db, postgresDialect, table, existing)
}
