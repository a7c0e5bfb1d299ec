// internal/query/column.go
package query

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// TypeClass is the broad category of a column's data type.
type TypeClass int

const (
	Integer TypeClass = iota
	Numeric
	Boolean
	Text
	Binary
	Timestamp
	Date
	Custom
)

// DataType describes a column type as reported by a driver.
type DataType struct {
	Class        TypeClass
	Precision    int // Numeric; 0 when unspecified
	Scale        int // Numeric; 0 when unspecified
	WithTimeZone bool
	Label        string // Custom; the raw driver-reported name
}

// ColumnSpec describes one column of a table for the lifetime of an
// editing session.
type ColumnSpec struct {
	Name     string
	Type     DataType
	Nullable bool
	Default  *Value
}

var numericArgs = regexp.MustCompile(`\(\s*(\d+)\s*(?:,\s*(\d+)\s*)?\)`)

// DataTypeFromString maps a driver-reported type name ("bigint",
// "numeric(10,2)", "timestamp with time zone", ...) to a DataType.
// Unrecognized names become Custom with the raw name as the label.
func DataTypeFromString(raw string) DataType {
	name := strings.ToLower(strings.TrimSpace(raw))
	base := name
	if i := strings.IndexByte(base, '('); i >= 0 {
		base = strings.TrimSpace(base[:i])
	}

	switch base {
	case "int", "integer", "int2", "int4", "int8", "smallint", "bigint",
		"tinyint", "mediumint", "serial", "bigserial", "smallserial":
		return DataType{Class: Integer}
	case "numeric", "decimal", "real", "float", "float4", "float8",
		"double", "double precision", "money":
		dt := DataType{Class: Numeric}
		if m := numericArgs.FindStringSubmatch(name); m != nil {
			dt.Precision, _ = strconv.Atoi(m[1])
			if m[2] != "" {
				dt.Scale, _ = strconv.Atoi(m[2])
			}
		}
		return dt
	case "bool", "boolean":
		return DataType{Class: Boolean}
	case "text", "varchar", "character varying", "char", "character",
		"nvarchar", "nchar", "clob", "name", "uuid", "json", "jsonb", "xml":
		return DataType{Class: Text}
	case "bytea", "blob", "binary", "varbinary":
		return DataType{Class: Binary}
	case "timestamp", "datetime", "timestamp without time zone":
		return DataType{Class: Timestamp}
	case "timestamptz", "timestamp with time zone":
		return DataType{Class: Timestamp, WithTimeZone: true}
	case "date":
		return DataType{Class: Date}
	}
	return DataType{Class: Custom, Label: raw}
}

// ValidationError reports that a cell's text cannot be coerced to its
// column's type.
type ValidationError struct {
	Column string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("column %q: %s", e.Column, e.Reason)
}

// Coerce converts user-entered cell text into a Value per the column's
// type. Empty text on a nullable or defaulted column maps to the default
// (or null); empty text on a required column with no default fails.
func Coerce(text string, col ColumnSpec) (Value, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		if col.Default != nil {
			return *col.Default, nil
		}
		if col.Nullable {
			return Null(), nil
		}
		return Value{}, &ValidationError{Column: col.Name, Reason: "value required"}
	}

	switch col.Type.Class {
	case Integer:
		n, err := strconv.ParseInt(trimmed, 10, 64)
		if err != nil {
			return Value{}, &ValidationError{Column: col.Name, Reason: fmt.Sprintf("not a valid integer: %q", trimmed)}
		}
		return Int(n), nil
	case Numeric:
		d, err := decimal.NewFromString(trimmed)
		if err != nil {
			return Value{}, &ValidationError{Column: col.Name, Reason: fmt.Sprintf("not a valid number: %q", trimmed)}
		}
		return Decimal(d), nil
	case Boolean:
		switch strings.ToLower(trimmed) {
		case "true", "1":
			return Bool(true), nil
		case "false", "0":
			return Bool(false), nil
		}
		return Value{}, &ValidationError{Column: col.Name, Reason: fmt.Sprintf("not a valid boolean: %q", trimmed)}
	case Binary:
		return Bytes([]byte(text)), nil
	default:
		// Text, Timestamp, Date and Custom pass the trimmed text through;
		// the database validates temporal formats on save.
		return String(trimmed), nil
	}
}
