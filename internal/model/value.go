package model

import (
	"encoding/json"
	"math"
	"strconv"
	"time"
)

// Kind tags the variant held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindInt
	KindFloat
	KindString
	KindEnum
	KindEpoch
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindEnum:
		return "enum"
	case KindEpoch:
		return "epoch"
	default:
		return "null"
	}
}

// Value is a closed tagged union over the field types a schema can declare.
// The zero Value is null.
type Value struct {
	kind Kind
	i    int64
	f    float64
	s    string
}

func IntValue(v int64) Value     { return Value{kind: KindInt, i: v} }
func FloatValue(v float64) Value { return Value{kind: KindFloat, f: v} }
func StringValue(v string) Value { return Value{kind: KindString, s: v} }

// EnumValue holds the raw (not display) value of an enum field.
func EnumValue(raw string) Value { return Value{kind: KindEnum, s: raw} }

// EpochValue holds seconds since the Unix epoch.
func EpochValue(seconds float64) Value { return Value{kind: KindEpoch, f: seconds} }

// NullValue is an explicit missing value.
func NullValue() Value { return Value{} }

func (v Value) Kind() Kind   { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }

// Int returns the integer payload for KindInt values.
func (v Value) Int() int64 { return v.i }

// Float returns the numeric payload of int, float, and epoch values.
func (v Value) Float() float64 {
	if v.kind == KindInt {
		return float64(v.i)
	}
	return v.f
}

// Str returns the string payload of string and enum values.
func (v Value) Str() string { return v.s }

// Numeric reports whether the value can act as an ordering key.
func (v Value) Numeric() (float64, bool) {
	switch v.kind {
	case KindInt, KindFloat, KindEpoch:
		return v.Float(), true
	default:
		return 0, false
	}
}

// Time converts an epoch value to local time.
func (v Value) Time() (time.Time, bool) {
	if v.kind != KindEpoch {
		return time.Time{}, false
	}
	sec, frac := math.Modf(v.f)
	return time.Unix(int64(sec), int64(math.Round(frac*1e6))*int64(time.Microsecond)), true
}

// String renders the raw value; enum display names are resolved by the schema.
func (v Value) String() string {
	switch v.kind {
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat, KindEpoch:
		return strconv.FormatFloat(v.f, 'f', -1, 64)
	case KindString, KindEnum:
		return v.s
	default:
		return ""
	}
}

// Equal compares kind and payload.
func (v Value) Equal(o Value) bool {
	return v.kind == o.kind && v.i == o.i && v.f == o.f && v.s == o.s
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindInt:
		return json.Marshal(v.i)
	case KindFloat, KindEpoch:
		return Float(v.f).MarshalJSON()
	case KindString, KindEnum:
		return json.Marshal(v.s)
	default:
		return []byte("null"), nil
	}
}

// Float encodes float64 without exponent notation and with full precision.
type Float float64

func (f Float) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatFloat(float64(f), 'f', -1, 64)), nil
}
