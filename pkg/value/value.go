// Package value defines the tagged union used for dynamically typed table
// columns: every cell in a segstore table is either a number, a string, or
// missing.
package value

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"strconv"
)

// Kind discriminates the payload carried by a [Value].
type Kind int

const (
	// Missing indicates the absence of a value at a position.
	Missing Kind = iota
	// Number indicates a float64-backed value.
	Number
	// String indicates a string-backed value.
	String
)

func (k Kind) String() string {
	switch k {
	case Missing:
		return "missing"
	case Number:
		return "number"
	case String:
		return "string"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Value is a tagged union over the column types segstore supports. The zero
// Value is the Missing sentinel.
type Value struct {
	kind Kind
	num  float64
	str  string
}

// Num constructs a Number value.
func Num(v float64) Value { return Value{kind: Number, num: v} }

// Str constructs a String value.
func Str(v string) Value { return Value{kind: String, str: v} }

// MissingValue is the canonical absent value.
var MissingValue = Value{kind: Missing}

// Kind reports the value's discriminant.
func (v Value) Kind() Kind { return v.kind }

// IsMissing reports whether v is the Missing sentinel.
func (v Value) IsMissing() bool { return v.kind == Missing }

// Float returns the numeric payload. Panics if Kind() != Number; callers
// must check Kind first, matching the rest of segstore's "check before
// you read" discipline.
func (v Value) Float() float64 {
	if v.kind != Number {
		panic(fmt.Sprintf("value: Float() called on %s value", v.kind))
	}
	return v.num
}

// StringVal returns the string payload. Panics if Kind() != String.
//
// Deliberately not named String(): fmt auto-invokes a Stringer's String()
// for %v/%s, and this accessor panics on two of Value's three kinds.
func (v Value) StringVal() string {
	if v.kind != String {
		panic(fmt.Sprintf("value: StringVal() called on %s value", v.kind))
	}
	return v.str
}

// String implements fmt.Stringer with a representation safe to call on any
// Value regardless of kind, unlike StringVal.
func (v Value) String() string {
	switch v.kind {
	case Missing:
		return "<missing>"
	case Number:
		return strconv.FormatFloat(v.num, 'g', -1, 64)
	case String:
		return v.str
	default:
		return "<invalid>"
	}
}

// valueWire is Value's gob wire representation. Value keeps kind/num/str
// unexported so construction stays funneled through Num/Str/MissingValue;
// gob cannot see unexported fields, so Value implements GobEncoder/
// GobDecoder directly instead of exposing them. Columns backed by
// colstore's chunk layer store Value as their element type, so without
// this, every chunk commit would silently encode an empty struct.
type valueWire struct {
	Kind Kind
	Num  float64
	Str  string
}

// GobEncode implements gob.GobEncoder.
func (v Value) GobEncode() ([]byte, error) {
	var buf bytes.Buffer

	if err := gob.NewEncoder(&buf).Encode(valueWire{Kind: v.kind, Num: v.num, Str: v.str}); err != nil {
		return nil, fmt.Errorf("value: gob encode: %w", err)
	}

	return buf.Bytes(), nil
}

// GobDecode implements gob.GobDecoder.
func (v *Value) GobDecode(data []byte) error {
	var w valueWire

	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&w); err != nil {
		return fmt.Errorf("value: gob decode: %w", err)
	}

	v.kind, v.num, v.str = w.Kind, w.Num, w.Str

	return nil
}

// GoString returns a debug representation usable in test failure output.
func (v Value) GoString() string {
	switch v.kind {
	case Missing:
		return "value.MissingValue"
	case Number:
		return fmt.Sprintf("value.Num(%v)", v.num)
	case String:
		return fmt.Sprintf("value.Str(%q)", v.str)
	default:
		return "value.Value{<invalid>}"
	}
}

// Compare orders two values of the same kind. Missing values compare equal
// to each other and less than any concrete value. Comparing a Number to a
// String is a programming error and panics, since columns are single-typed.
func Compare(a, b Value) int {
	if a.kind == Missing && b.kind == Missing {
		return 0
	}
	if a.kind == Missing {
		return -1
	}
	if b.kind == Missing {
		return 1
	}
	if a.kind != b.kind {
		panic(fmt.Sprintf("value: Compare between %s and %s", a.kind, b.kind))
	}
	switch a.kind {
	case Number:
		switch {
		case a.num < b.num:
			return -1
		case a.num > b.num:
			return 1
		default:
			return 0
		}
	case String:
		switch {
		case a.str < b.str:
			return -1
		case a.str > b.str:
			return 1
		default:
			return 0
		}
	default:
		panic("value: Compare on invalid kind")
	}
}

// Equal reports whether a and b carry the same kind and payload.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case Missing:
		return true
	case Number:
		return a.num == b.num
	case String:
		return a.str == b.str
	default:
		return false
	}
}
