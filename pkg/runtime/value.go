package runtime

import (
	"encoding/json"
	"strconv"
)

// Kind tags a runtime value.
type Kind int

const (
	KindNone       Kind = iota // no value (a frame that never returned)
	KindNumber                 // integer
	KindString                 // string literal
	KindUnresolved             // text that could not be evaluated
)

func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindUnresolved:
		return "unresolved"
	default:
		return "none"
	}
}

// Value is an immutable runtime value. Copying a Value copies it by value,
// which is how arguments cross frame boundaries.
type Value struct {
	Kind Kind
	Num  int64
	Str  string
}

// None is the result of a frame that finished without returning.
var None = Value{}

// Number makes a numeric value.
func Number(n int64) Value { return Value{Kind: KindNumber, Num: n} }

// String makes a string value.
func String(s string) Value { return Value{Kind: KindString, Str: s} }

// Unresolved makes a value holding raw, unevaluated text.
func Unresolved(text string) Value { return Value{Kind: KindUnresolved, Str: text} }

// Bool encodes a comparison result as 1 or 0.
func Bool(b bool) Value {
	if b {
		return Number(1)
	}
	return Number(0)
}

// String renders the value the way print shows it.
func (v Value) String() string {
	switch v.Kind {
	case KindNumber:
		return strconv.FormatInt(v.Num, 10)
	case KindString, KindUnresolved:
		return v.Str
	default:
		return "None"
	}
}

// Truthy reports whether the value counts as true in a condition: nonzero
// numbers and non-empty text.
func (v Value) Truthy() bool {
	switch v.Kind {
	case KindNumber:
		return v.Num != 0
	case KindString, KindUnresolved:
		return v.Str != ""
	default:
		return false
	}
}

// MarshalJSON encodes numbers as JSON numbers, text as strings and None as
// null. Native plugins receive arguments in this form.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindNumber:
		return json.Marshal(v.Num)
	case KindString, KindUnresolved:
		return json.Marshal(v.Str)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts integers, strings and null. Anything else is kept
// as unresolved JSON text.
func (v *Value) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*v = None
		return nil
	}
	var n int64
	if err := json.Unmarshal(data, &n); err == nil {
		*v = Number(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*v = String(s)
		return nil
	}
	*v = Unresolved(string(data))
	return nil
}
