// internal/db/defaults.go
package db

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/hgwr/TableGlass-sub001/internal/query"
)

// literalDefault extracts a usable default Value from a driver-reported
// default expression. Only plain literals count: function calls like
// nextval(...) or CURRENT_TIMESTAMP return nil so the database applies
// them itself when the column is omitted.
func literalDefault(expr string, dt query.DataType) *query.Value {
	s := strings.TrimSpace(expr)
	if s == "" || strings.EqualFold(s, "null") {
		return nil
	}

	// Postgres casts literals: 'abc'::text, '0'::integer
	if i := strings.Index(s, "::"); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}

	if strings.HasPrefix(s, "'") && strings.HasSuffix(s, "'") && len(s) >= 2 {
		text := strings.ReplaceAll(s[1:len(s)-1], "''", "'")
		v := valueFromLiteral(text, dt)
		return &v
	}

	switch strings.ToLower(s) {
	case "true":
		v := query.Bool(true)
		return &v
	case "false":
		v := query.Bool(false)
		return &v
	}

	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		switch dt.Class {
		case query.Numeric:
			v := query.Decimal(decimal.NewFromInt(n))
			return &v
		case query.Boolean:
			// SQLite and MySQL report boolean defaults as bare 0/1.
			v := query.Bool(n != 0)
			return &v
		}
		v := query.Int(n)
		return &v
	}
	if d, err := decimal.NewFromString(s); err == nil {
		v := query.Decimal(d)
		return &v
	}

	// Anything else is an expression, not a literal.
	return nil
}

// valueFromLiteral interprets quoted literal text per the column type.
func valueFromLiteral(text string, dt query.DataType) query.Value {
	switch dt.Class {
	case query.Integer:
		if n, err := strconv.ParseInt(text, 10, 64); err == nil {
			return query.Int(n)
		}
	case query.Numeric:
		if d, err := decimal.NewFromString(text); err == nil {
			return query.Decimal(d)
		}
	case query.Boolean:
		switch strings.ToLower(text) {
		case "true", "t", "1":
			return query.Bool(true)
		case "false", "f", "0":
			return query.Bool(false)
		}
	case query.Binary:
		return query.Bytes([]byte(text))
	}
	return query.String(text)
}
