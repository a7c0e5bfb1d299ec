// internal/db/driver.go
package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hgwr/TableGlass-sub001/internal/grid"
	"github.com/hgwr/TableGlass-sub001/internal/query"
)

// DriverType represents supported database types
type DriverType string

const (
	Postgres DriverType = "postgres"
	MySQL    DriverType = "mysql"
	SQLite   DriverType = "sqlite"
)

// ConnectParams holds database connection details
type ConnectParams struct {
	Host      string
	Port      int
	User      string
	Password  string
	Database  string
	SSHConfig *SSHConfig // Optional SSH tunnel config
}

// Driver is a connected database session. It satisfies both the
// workbench Executor and the grid TableDataService contracts.
type Driver interface {
	Connect(params ConnectParams) error
	Close() error
	Ping(ctx context.Context) error
	Type() DriverType

	Execute(ctx context.Context, sqlText string) (*query.Result, error)

	Tables(ctx context.Context) ([]query.TableRef, error)
	Columns(ctx context.Context, table query.TableRef) ([]query.ColumnSpec, error)

	FetchPage(ctx context.Context, table query.TableRef, pageIndex, pageSize int) (*grid.Page, error)
	InsertRow(ctx context.Context, table query.TableRef, values map[string]query.Value) (query.Row, error)
	UpdateRow(ctx context.Context, table query.TableRef, existing query.Row, changed map[string]query.Value) (query.Row, error)
	DeleteRow(ctx context.Context, table query.TableRef, existing query.Row) error
}

// NewDriver creates a new driver instance by type
func NewDriver(driverType DriverType) (Driver, error) {
	switch driverType {
	case Postgres:
		return &PostgresDriver{}, nil
	case MySQL:
		return &MySQLDriver{}, nil
	case SQLite:
		return &SQLiteDriver{}, nil
	default:
		return nil, fmt.Errorf("unknown driver type: %s", driverType)
	}
}

// executeStatement runs one statement, branching SELECT-like statements
// into a row scan and everything else into an exec.
func executeStatement(ctx context.Context, db *sql.DB, sqlText string) (*query.Result, error) {
	start := time.Now()
	if query.Classify(sqlText) == query.Safe {
		return executeSelect(ctx, db, sqlText, start)
	}
	return executeExec(ctx, db, sqlText, start)
}

func executeSelect(ctx context.Context, db *sql.DB, sqlText string, start time.Time) (*query.Result, error) {
	rows, err := db.QueryContext(ctx, sqlText)
	if err != nil {
		return nil, WrapQueryError(err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, WrapQueryError(err)
	}

	var results []query.Row
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, WrapQueryError(err)
		}
		vals := make(map[string]query.Value, len(columns))
		for i, name := range columns {
			vals[name] = scanValue(values[i])
		}
		results = append(results, query.NewRow(columns, vals))
	}
	if err := rows.Err(); err != nil {
		return nil, WrapQueryError(err)
	}

	return &query.Result{
		Rows:     results,
		RowCount: len(results),
		IsSelect: true,
		Elapsed:  time.Since(start),
	}, nil
}

func executeExec(ctx context.Context, db *sql.DB, sqlText string, start time.Time) (*query.Result, error) {
	result, err := db.ExecContext(ctx, sqlText)
	if err != nil {
		return nil, WrapQueryError(err)
	}
	affected, _ := result.RowsAffected()
	return &query.Result{
		IsSelect:     false,
		AffectedRows: affected,
		Elapsed:      time.Since(start),
	}, nil
}
