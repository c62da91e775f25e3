package catalog

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Value is a single SQL value. It is a tagged union over the catalog types and
// is immutable and comparable, so it can be used as a map key by the storage
// layer's primary key index.
type Value struct {
	typ Type
	i   int64
	f   float64
	s   string
}

func Null() Value { return Value{typ: TypeNull} }

func Int(i int64) Value { return Value{typ: TypeInteger, i: i} }

func Real(f float64) Value { return Value{typ: TypeReal, f: f} }

func Text(s string) Value { return Value{typ: TypeText, s: s} }

func Bool(b bool) Value {
	v := Value{typ: TypeBoolean}
	if b {
		v.i = 1
	}
	return v
}

// Type returns the type of the value. The zero Value has TypeUnknown and is
// treated as NULL.
func (v Value) Type() Type {
	return v.typ
}

func (v Value) IsNull() bool {
	return v.typ == TypeNull || v.typ == TypeUnknown
}

func (v Value) Int() int64 { return v.i }

func (v Value) Real() float64 { return v.f }

func (v Value) Text() string { return v.s }

func (v Value) Bool() bool { return v.i != 0 }

// Float returns the numeric value of an integer or real value.
func (v Value) Float() float64 {
	if v.typ == TypeInteger {
		return float64(v.i)
	}
	return v.f
}

// String formats the value for display.
func (v Value) String() string {
	switch v.typ {
	case TypeInteger:
		return strconv.FormatInt(v.i, 10)
	case TypeReal:
		return strconv.FormatFloat(v.f, 'f', -1, 64)
	case TypeText:
		return v.s
	case TypeBoolean:
		if v.Bool() {
			return "TRUE"
		}
		return "FALSE"
	}
	return "NULL"
}

// SQL formats the value as a SQL literal that lexes back to the same value.
// Reals always carry a decimal point so they do not read back as integers.
func (v Value) SQL() string {
	switch v.typ {
	case TypeReal:
		s := strconv.FormatFloat(v.f, 'f', -1, 64)
		if !strings.Contains(s, ".") {
			s += ".0"
		}
		return s
	case TypeText:
		return "'" + strings.ReplaceAll(v.s, "'", "''") + "'"
	}
	return v.String()
}

// Any returns the value as a plain Go value: nil, int64, float64, string or
// bool.
func (v Value) Any() any {
	switch v.typ {
	case TypeInteger:
		return v.i
	case TypeReal:
		return v.f
	case TypeText:
		return v.s
	case TypeBoolean:
		return v.Bool()
	}
	return nil
}

// FromAny converts a Go value to a Value. It accepts the types returned by Any
// plus the other sized integers and float32.
func FromAny(a any) (Value, error) {
	switch t := a.(type) {
	case nil:
		return Null(), nil
	case Value:
		return t, nil
	case int:
		return Int(int64(t)), nil
	case int8:
		return Int(int64(t)), nil
	case int16:
		return Int(int64(t)), nil
	case int32:
		return Int(int64(t)), nil
	case int64:
		return Int(t), nil
	case uint8:
		return Int(int64(t)), nil
	case uint16:
		return Int(int64(t)), nil
	case uint32:
		return Int(int64(t)), nil
	case uint64:
		if t > math.MaxInt64 {
			return Value{}, fmt.Errorf("value %d overflows INTEGER", t)
		}
		return Int(int64(t)), nil
	case float32:
		return Real(float64(t)), nil
	case float64:
		return Real(t), nil
	case string:
		return Text(t), nil
	case []byte:
		return Text(string(t)), nil
	case bool:
		return Bool(t), nil
	}
	return Value{}, fmt.Errorf("unsupported value type %T", a)
}

// Convert returns the value stored as type to. Integers widen to reals and NULL
// converts to anything. It reports false when the value is not assignable.
func Convert(v Value, to Type) (Value, bool) {
	if v.IsNull() {
		return Null(), true
	}
	if to == TypeUnknown || to == TypeNull || v.typ == to {
		return v, true
	}
	if to == TypeReal && v.typ == TypeInteger {
		return Real(float64(v.i)), true
	}
	return v, false
}
