// internal/db/mysql.go
package db

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/hgwr/TableGlass-sub001/internal/grid"
	"github.com/hgwr/TableGlass-sub001/internal/query"
)

// MySQLDriver implements Driver for MySQL
type MySQLDriver struct {
	db      *sql.DB
	tunnel  *SSHTunnel
	netName string // Registered network name for SSH
}

// Connect establishes connection to MySQL
func (d *MySQLDriver) Connect(params ConnectParams) error {
	protocol := "tcp"
	address := fmt.Sprintf("%s:%d", params.Host, params.Port)

	if params.SSHConfig != nil && params.SSHConfig.Host != "" {
		tunnel, err := NewSSHTunnel(params.SSHConfig)
		if err != nil {
			return WrapConnectionError(fmt.Errorf("failed to create SSH tunnel: %w", err))
		}
		d.tunnel = tunnel

		// Register a unique network for this connection
		d.netName = fmt.Sprintf("mysql+ssh+%d", time.Now().UnixNano())
		mysql.RegisterDialContext(d.netName, func(ctx context.Context, addr string) (net.Conn, error) {
			return tunnel.Dial("tcp", addr)
		})
		protocol = d.netName
	}

	dsn := fmt.Sprintf("%s:%s@%s(%s)/%s?parseTime=true",
		params.User,
		params.Password,
		protocol,
		address,
		params.Database,
	)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		d.Close()
		return WrapConnectionError(err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	// sql.Open is lazy, verify immediately
	if err := db.Ping(); err != nil {
		db.Close()
		d.Close()
		return WrapConnectionError(err)
	}

	d.db = db
	return nil
}

// Close closes the database connection and SSH tunnel
func (d *MySQLDriver) Close() error {
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
func (d *MySQLDriver) Execute(ctx context.Context, sqlText string) (*query.Result, error) {
	return executeStatement(ctx, d.db, sqlText)
}

// Ping checks if database is reachable
func (d *MySQLDriver) Ping(ctx context.Context) error {
	if d.db == nil {
		return WrapConnectionError(fmt.Errorf("not connected"))
	}
	return d.db.PingContext(ctx)
}

// Type returns the driver type
func (d *MySQLDriver) Type() DriverType {
	return MySQL
}

// Tables returns every table in the current database
func (d *MySQLDriver) Tables(ctx context.Context) ([]query.TableRef, error) {
	stmt := "SELECT table_name FROM information_schema.tables WHERE table_schema = DATABASE() ORDER BY table_name"
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
func (d *MySQLDriver) Columns(ctx context.Context, table query.TableRef) ([]query.ColumnSpec, error) {
	stmt := `
		SELECT
			COLUMN_NAME,
			COLUMN_TYPE,
			IS_NULLABLE = 'YES',
			IFNULL(COLUMN_DEFAULT, ''),
			EXTRA
		FROM INFORMATION_SCHEMA.COLUMNS
		WHERE TABLE_NAME = ? AND TABLE_SCHEMA = DATABASE()
		ORDER BY ORDINAL_POSITION`

	rows, err := d.db.QueryContext(ctx, stmt, table.Name)
	if err != nil {
		return nil, WrapQueryError(err)
	}
	defer rows.Close()

	var columns []query.ColumnSpec
	for rows.Next() {
		var name, typeName, defaultExpr, extra string
		var nullable bool
		if err := rows.Scan(&name, &typeName, &nullable, &defaultExpr, &extra); err != nil {
			return nil, WrapQueryError(err)
		}
		spec := query.ColumnSpec{
			Name:     name,
			Type:     query.DataTypeFromString(typeName),
			Nullable: nullable,
		}
		// auto_increment columns get their value from the engine
		if extra != "auto_increment" {
			spec.Default = literalDefault(defaultExpr, spec.Type)
		}
		columns = append(columns, spec)
	}
	return columns, rows.Err()
}

// FetchPage reads one page of rows for the editing grid
func (d *MySQLDriver) FetchPage(ctx context.Context, table query.TableRef, pageIndex, pageSize int) (*grid.Page, error) {
	specs, err := d.Columns(ctx, table)
	if err != nil {
		return nil, err
	}
	return fetchPage(ctx, d.db, mysqlDialect, table, specs, pageIndex, pageSize)
}

// InsertRow inserts a row and returns the persisted row
func (d *MySQLDriver) InsertRow(ctx context.Context, table query.TableRef, values map[string]query.Value) (query.Row, error) {
	specs, err := d.Columns(ctx, table)
	if err != nil {
		return query.Row{}, err
	}
	return insertRow(ctx, d.db, mysqlDialect, table, specs, values)
}

// UpdateRow applies changed values to an existing row
func (d *MySQLDriver) UpdateRow(ctx context.Context, table query.TableRef, existing query.Row, changed map[string]query.Value) (query.Row, error) {
	specs, err := d.Columns(ctx, table)
	if err != nil {
		return query.Row{}, err
	}
	return updateRow(ctx, d.db, mysqlDialect, table, specs, existing, changed)
}

// DeleteRow deletes an existing row
func (d *MySQLDriver) DeleteRow(ctx context.Context, table query.TableRef, existing query.Row) error {
	return deleteRow(ctx, d.db, mysqlDialect, table, existing)
}
