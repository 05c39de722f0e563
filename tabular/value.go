package tabular

import (
	"strconv"
	"strings"
)

// Kind identifies the runtime type of a cell value.
type Kind uint8

const (
	// KindNull represents a missing or unparseable cell
	KindNull Kind = iota

	// KindString represents textual data
	KindString

	// KindFloat represents floating-point numeric data
	KindFloat

	// KindInt represents integer numeric data
	KindInt
)

// Value is a typed scalar held by one cell of a row. The zero value is null.
type Value struct {
	kind Kind
	str  string
	f    float64
	i    int64
}

// Null returns the null value.
func Null() Value {
	return Value{}
}

// String returns a string-kinded value.
func String(s string) Value {
	return Value{kind: KindString, str: s}
}

// Float returns a float-kinded value.
func Float(f float64) Value {
	return Value{kind: KindFloat, f: f}
}

// Int returns an integer-kinded value.
func Int(i int64) Value {
	return Value{kind: KindInt, i: i}
}

// Kind returns the value's kind.
func (v Value) Kind() Kind {
	return v.kind
}

// IsNull reports whether the value is missing.
func (v Value) IsNull() bool {
	return v.kind == KindNull
}

// IsNumeric reports whether the value holds a number.
func (v Value) IsNumeric() bool {
	return v.kind == KindFloat || v.kind == KindInt
}

// IsEmpty reports whether the value is null or an empty string.
func (v Value) IsEmpty() bool {
	return v.kind == KindNull || (v.kind == KindString && v.str == "")
}

// Text renders the value as a string. Null renders as the empty string,
// which is also how null round-trips through the CSV codec.
func (v Value) Text() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindFloat:
		return strconv.FormatFloat(v.f, 'f', -1, 64)
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	default:
		return ""
	}
}

// AsFloat returns the numeric value and whether the value holds one.
func (v Value) AsFloat() (float64, bool) {
	switch v.kind {
	case KindFloat:
		return v.f, true
	case KindInt:
		return float64(v.i), true
	default:
		return 0, false
	}
}

// CoerceNumeric converts a value to the requested numeric kind. Coercion
// failures come back as (Null, false) rather than an error so callers can
// decide whether to log or ignore them.
func CoerceNumeric(v Value, k Kind) (Value, bool) {
	if v.IsNull() {
		return Null(), true
	}
	switch k {
	case KindFloat:
		if f, ok := v.AsFloat(); ok {
			return Float(f), true
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(v.Text()), 64)
		if err != nil {
			return Null(), false
		}
		return Float(f), true
	case KindInt:
		if v.kind == KindInt {
			return v, true
		}
		s := strings.TrimSpace(v.Text())
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return Int(i), true
		}
		// Whole-valued floats still count as integers ("3.0" -> 3).
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || f != float64(int64(f)) {
			return Null(), false
		}
		return Int(int64(f)), true
	default:
		return Null(), false
	}
}
