// internal/query/value.go
package query

import (
	"bytes"
	"strconv"

	"github.com/shopspring/decimal"
)

// Kind discriminates the payload held by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindDecimal
	KindString
	KindBytes
)

// Value is an immutable database cell value. The zero Value is Null.
type Value struct {
	kind     Kind
	boolVal  bool
	intVal   int64
	decVal   decimal.Decimal
	strVal   string
	bytesVal []byte
}

// Null returns the null Value.
func Null() Value {
	return Value{}
}

// Bool wraps a boolean.
func Bool(b bool) Value {
	return Value{kind: KindBool, boolVal: b}
}

// Int wraps a 64-bit integer.
func Int(i int64) Value {
	return Value{kind: KindInt, intVal: i}
}

// Decimal wraps an arbitrary-precision decimal.
func Decimal(d decimal.Decimal) Value {
	return Value{kind: KindDecimal, decVal: d}
}

// String wraps a text value.
func String(s string) Value {
	return Value{kind: KindString, strVal: s}
}

// Bytes wraps a binary value. The slice is copied.
func Bytes(b []byte) Value {
	cp := make([]byte, len(b))
	copy(cp, b)
	return Value{kind: KindBytes, bytesVal: cp}
}

// Kind returns the payload discriminator.
func (v Value) Kind() Kind {
	return v.kind
}

// IsNull reports whether the value is null.
func (v Value) IsNull() bool {
	return v.kind == KindNull
}

// Display returns the canonical, locale-independent textual projection.
// Null projects to the empty string.
func (v Value) Display() string {
	switch v.kind {
	case KindNull:
		return ""
	case KindBool:
		if v.boolVal {
			return "true"
		}
		return "false"
	case KindInt:
		return strconv.FormatInt(v.intVal, 10)
	case KindDecimal:
		return v.decVal.String()
	case KindString:
		return v.strVal
	case KindBytes:
		return string(v.bytesVal)
	}
	return ""
}

// Equal reports value equality. Decimals compare numerically, so 1.0 == 1.00.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.boolVal == o.boolVal
	case KindInt:
		return v.intVal == o.intVal
	case KindDecimal:
		return v.decVal.Equal(o.decVal)
	case KindString:
		return v.strVal == o.strVal
	case KindBytes:
		return bytes.Equal(v.bytesVal, o.bytesVal)
	}
	return false
}

// Arg converts the value to a driver-compatible argument for database/sql.
func (v Value) Arg() any {
	switch v.kind {
	case KindNull:
		return nil
	case KindBool:
		return v.boolVal
	case KindInt:
		return v.intVal
	case KindDecimal:
		return v.decVal.String()
	case KindString:
		return v.strVal
	case KindBytes:
		cp := make([]byte, len(v.bytesVal))
		copy(cp, v.bytesVal)
		return cp
	}
	return nil
}
