// internal/db/dialect.go
package db

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/hgwr/TableGlass-sub001/internal/query"
)

// dialect captures the per-engine SQL differences the row operations
// need: identifier quoting, placeholder style, RETURNING support.
type dialect struct {
	quoteIdent  func(string) string
	placeholder func(n int) string // n is 1-based
	returning   bool
}

var postgresDialect = dialect{
	quoteIdent:  pq.QuoteIdentifier,
	placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
	returning:   true,
}

var sqliteDialect = dialect{
	quoteIdent:  pq.QuoteIdentifier, // double quotes, doubled when embedded
	placeholder: func(n int) string { return "?" },
	returning:   true,
}

var mysqlDialect = dialect{
	quoteIdent: func(s string) string {
		return "`" + strings.ReplaceAll(s, "`", "``") + "`"
	},
	placeholder: func(n int) string { return "?" },
	returning:   false,
}

// tableName renders the quoted, schema-qualified table name.
func (d dialect) tableName(t query.TableRef) string {
	if t.Schema == "" {
		return d.quoteIdent(t.Name)
	}
	return d.quoteIdent(t.Schema) + "." + d.quoteIdent(t.Name)
}

// scanValue converts a generically scanned driver value into a Value,
// with no column type to guide it. []byte is treated as text, which is
// what every supported driver returns for unknown column types.
func scanValue(raw any) query.Value {
	switch v := raw.(type) {
	case nil:
		return query.Null()
	case bool:
		return query.Bool(v)
	case int64:
		return query.Int(v)
	case float64:
		return query.Decimal(decimal.NewFromFloat(v))
	case []byte:
		return query.String(string(v))
	case string:
		return query.String(v)
	case time.Time:
		return query.String(v.Format(time.RFC3339))
	default:
		return query.String(fmt.Sprintf("%v", v))
	}
}

// valueForColumn converts a scanned driver value into a Value guided by
// the column's declared type, so numerics come back as decimals and
// booleans survive drivers that report them as integers.
func valueForColumn(raw any, spec query.ColumnSpec) query.Value {
	if raw == nil {
		return query.Null()
	}
	switch spec.Type.Class {
	case query.Integer:
		switch v := raw.(type) {
		case int64:
			return query.Int(v)
		case []byte:
			if n, err := strconv.ParseInt(string(v), 10, 64); err == nil {
				return query.Int(n)
			}
		case string:
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				return query.Int(n)
			}
		}
	case query.Numeric:
		switch v := raw.(type) {
		case float64:
			return query.Decimal(decimal.NewFromFloat(v))
		case int64:
			return query.Decimal(decimal.NewFromInt(v))
		case []byte:
			if d, err := decimal.NewFromString(string(v)); err == nil {
				return query.Decimal(d)
			}
		case string:
			if d, err := decimal.NewFromString(v); err == nil {
				return query.Decimal(d)
			}
		}
	case query.Boolean:
		switch v := raw.(type) {
		case bool:
			return query.Bool(v)
		case int64:
			return query.Bool(v != 0)
		case []byte:
			s := strings.ToLower(string(v))
			return query.Bool(s == "1" || s == "t" || s == "true")
		}
	case query.Binary:
		if v, ok := raw.([]byte); ok {
			return query.Bytes(v)
		}
	case query.Date:
		if v, ok := raw.(time.Time); ok {
			return query.String(v.Format("2006-01-02"))
		}
	case query.Timestamp:
		if v, ok := raw.(time.Time); ok {
			if spec.Type.WithTimeZone {
				return query.String(v.Format(time.RFC3339))
			}
			return query.String(v.Format("2006-01-02 15:04:05"))
		}
	}
	return scanValue(raw)
}
