package runtime

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/chazu/emoc/pkg/ir"
)

func TestEval(t *testing.T) {
	env := Env{"n": Number(6), "s": String("ab")}
	tests := []struct {
		src  string
		want Value
	}{
		{"n * 2 + 1", Number(13)},
		{"n / 4", Number(1)},
		{"-7 / 2", Number(-4)},
		{"n > 5", Number(1)},
		{"n <= 5", Number(0)},
		{`s + "c"`, String("abc")},
		{`s == "ab"`, Number(1)},
		{`n == "6"`, Number(0)},
		{`n != "6"`, Number(1)},
		{"n ➖ 1", Number(5)},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			got, err := Eval(ir.ParseExpr(tt.src), env)
			if err != nil {
				t.Fatalf("Eval(%q) error: %v", tt.src, err)
			}
			if got != tt.want {
				t.Errorf("Eval(%q) = %#v, want %#v", tt.src, got, tt.want)
			}
		})
	}
}

func TestEvalErrors(t *testing.T) {
	tests := []struct {
		src  string
		want error
	}{
		{"missing + 1", ErrUnbound},
		{"1 / 0", ErrDivideByZero},
		{`"a" * 2`, ErrType},
		{`"a" - "b"`, ErrType},
		{"1 +", ErrUnparsed},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			_, err := Eval(ir.ParseExpr(tt.src), Env{})
			if !errors.Is(err, tt.want) {
				t.Errorf("Eval(%q) error = %v, want %v", tt.src, err, tt.want)
			}
		})
	}
}

func TestEvalOrRaw(t *testing.T) {
	got := EvalOrRaw(ir.ParseExpr("x ✖️ (y ➕ 1)"), Env{})
	if got.Kind != KindUnresolved || got.Str != "x * (y + 1)" {
		t.Errorf("EvalOrRaw() = %#v", got)
	}
}

func TestValueString(t *testing.T) {
	tests := []struct {
		v    Value
		want string
	}{
		{None, "None"},
		{Number(-3), "-3"},
		{String("hi"), "hi"},
		{Unresolved("a + b"), "a + b"},
	}
	for _, tt := range tests {
		if got := tt.v.String(); got != tt.want {
			t.Errorf("%#v.String() = %q, want %q", tt.v, got, tt.want)
		}
	}
}

func TestValueTruthy(t *testing.T) {
	tests := []struct {
		v    Value
		want bool
	}{
		{None, false},
		{Number(0), false},
		{Number(2), true},
		{String(""), false},
		{String("x"), true},
		{Unresolved("x"), true},
	}
	for _, tt := range tests {
		if got := tt.v.Truthy(); got != tt.want {
			t.Errorf("%#v.Truthy() = %v, want %v", tt.v, got, tt.want)
		}
	}
}

func TestValueJSON(t *testing.T) {
	for _, v := range []Value{None, Number(42), String("hi")} {
		data, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("Marshal(%#v) error: %v", v, err)
		}
		var back Value
		if err := json.Unmarshal(data, &back); err != nil {
			t.Fatalf("Unmarshal(%s) error: %v", data, err)
		}
		if back.Kind != v.Kind || back.String() != v.String() {
			t.Errorf("round trip %#v -> %s -> %#v", v, data, back)
		}
	}

	var v Value
	if err := json.Unmarshal([]byte(`[1, 2]`), &v); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	if v.Kind != KindUnresolved || v.Str != "[1, 2]" {
		t.Errorf("Unmarshal([1, 2]) = %#v", v)
	}
}
