package runtime

import (
	"errors"
	"fmt"

	"github.com/chazu/emoc/pkg/ir"
)

var (
	// ErrUnbound reports a reference to a name with no binding.
	ErrUnbound = errors.New("unbound name")
	// ErrType reports operands an operator cannot combine.
	ErrType = errors.New("unsupported operand types")
	// ErrDivideByZero reports division by zero.
	ErrDivideByZero = errors.New("division by zero")
	// ErrUnparsed reports expression text that never parsed.
	ErrUnparsed = errors.New("unparsed expression")
)

// Env maps names to values within one frame.
type Env map[string]Value

// Eval evaluates e against env.
func Eval(e ir.Expr, env Env) (Value, error) {
	switch x := e.(type) {
	case ir.Num:
		return Number(x.Value), nil
	case ir.Str:
		return String(x.Value), nil
	case ir.Ref:
		if v, ok := env[x.Name]; ok {
			return v, nil
		}
		return None, fmt.Errorf("%w: %s", ErrUnbound, x.Name)
	case ir.Binary:
		l, err := Eval(x.Left, env)
		if err != nil {
			return None, err
		}
		r, err := Eval(x.Right, env)
		if err != nil {
			return None, err
		}
		return Apply(x.Op, l, r)
	case ir.Raw:
		return None, fmt.Errorf("%w: %s", ErrUnparsed, x.Text)
	default:
		return None, fmt.Errorf("%w: %T", ErrUnparsed, e)
	}
}

// EvalOrRaw evaluates e, falling back to its unevaluated text.
func EvalOrRaw(e ir.Expr, env Env) Value {
	v, err := Eval(e, env)
	if err != nil {
		return Unresolved(ir.Plain(e))
	}
	return v
}

// Apply combines two values with op. Numbers support arithmetic and
// comparison; text supports concatenation and comparison; values of
// different kinds only compare for (in)equality.
func Apply(op ir.Op, l, r Value) (Value, error) {
	if l.Kind == KindNumber && r.Kind == KindNumber {
		return applyNumbers(op, l.Num, r.Num)
	}
	if isText(l) && isText(r) {
		return applyText(op, l.Str, r.Str)
	}
	switch op {
	case ir.OpEq:
		return Bool(false), nil
	case ir.OpNe:
		return Bool(true), nil
	}
	return None, fmt.Errorf("%w: %s %s %s", ErrType, l.Kind, op, r.Kind)
}

func isText(v Value) bool {
	return v.Kind == KindString || v.Kind == KindUnresolved
}

func applyNumbers(op ir.Op, l, r int64) (Value, error) {
	if op.IsArithmetic() {
		v, ok := op.Arith(l, r)
		if !ok {
			return None, ErrDivideByZero
		}
		return Number(v), nil
	}
	switch op {
	case ir.OpGt:
		return Bool(l > r), nil
	case ir.OpLt:
		return Bool(l < r), nil
	case ir.OpEq:
		return Bool(l == r), nil
	case ir.OpNe:
		return Bool(l != r), nil
	case ir.OpGe:
		return Bool(l >= r), nil
	case ir.OpLe:
		return Bool(l <= r), nil
	}
	return None, fmt.Errorf("%w: number %s number", ErrType, op)
}

func applyText(op ir.Op, l, r string) (Value, error) {
	switch op {
	case ir.OpAdd:
		return String(l + r), nil
	case ir.OpGt:
		return Bool(l > r), nil
	case ir.OpLt:
		return Bool(l < r), nil
	case ir.OpEq:
		return Bool(l == r), nil
	case ir.OpNe:
		return Bool(l != r), nil
	case ir.OpGe:
		return Bool(l >= r), nil
	case ir.OpLe:
		return Bool(l <= r), nil
	}
	return None, fmt.Errorf("%w: string %s string", ErrType, op)
}
