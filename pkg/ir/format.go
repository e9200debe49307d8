package ir

import (
	"strconv"
	"strings"
)

// Indent is the cosmetic indentation added per block nesting level.
const Indent = "    "

// ExprString renders e in TAC text with glyph operators.
func ExprString(e Expr) string {
	return renderExpr(e, Op.Glyph, false)
}

// Plain renders e with ASCII operators. The runtime uses it for values
// that failed to evaluate.
func Plain(e Expr) string {
	return renderExpr(e, Op.String, false)
}

func renderExpr(e Expr, sym func(Op) string, nested bool) string {
	switch x := e.(type) {
	case nil:
		return ""
	case Num:
		return strconv.FormatInt(x.Value, 10)
	case Str:
		return `"` + x.Value + `"`
	case Ref:
		return x.Name
	case Raw:
		return x.Text
	case Binary:
		s := renderExpr(x.Left, sym, true) + " " + sym(x.Op) + " " + renderExpr(x.Right, sym, true)
		if nested {
			return "(" + s + ")"
		}
		return s
	default:
		return ""
	}
}

// InstrString renders one instruction without indentation.
func InstrString(in Instr) string {
	return renderInstr(in, Op.Glyph)
}

// PlainString renders one instruction with ASCII operators.
func PlainString(in Instr) string {
	return renderInstr(in, Op.String)
}

func renderInstr(in Instr, sym func(Op) string) string {
	switch x := in.(type) {
	case Label:
		return x.Name + ":"
	case Goto:
		return "goto " + x.Target
	case IfFalse:
		return "ifFalse " + renderExpr(x.Cond, sym, false) + " goto " + x.Target
	case Print:
		return "print " + renderExpr(x.Value, sym, false)
	case Assign:
		return x.Dest + " = " + renderExpr(x.Value, sym, false)
	case Call:
		return "call " + callString(x, sym)
	case Return:
		return "return " + renderExpr(x.Value, sym, false)
	case Header:
		if len(x.Params) > 0 {
			return x.Kind.String() + " " + x.Name + "(" + strings.Join(x.Params, ", ") + "):"
		}
		return x.Kind.String() + " " + x.Name + ":"
	case End:
		return "end " + x.Kind.String()
	case Unknown:
		return x.Text
	default:
		return ""
	}
}

func callString(c Call, sym func(Op) string) string {
	var b strings.Builder
	if c.IsMethod() {
		b.WriteString(c.Object + "." + c.Method)
		if len(c.Args) == 0 {
			return b.String()
		}
	} else {
		b.WriteString(c.Name)
	}
	b.WriteByte('(')
	for i, a := range c.Args {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(renderExpr(a, sym, false))
	}
	b.WriteByte(')')
	return b.String()
}

// Lines renders a sequence one instruction per line, indenting block
// bodies by nesting depth.
func Lines(prog []Instr) []string {
	return renderLines(prog, InstrString)
}

// PlainLines is Lines with ASCII operators.
func PlainLines(prog []Instr) []string {
	return renderLines(prog, PlainString)
}

func renderLines(prog []Instr, render func(Instr) string) []string {
	lines := make([]string, 0, len(prog))
	depth := 0
	for _, in := range prog {
		if _, ok := in.(End); ok && depth > 0 {
			depth--
		}
		lines = append(lines, strings.Repeat(Indent, depth)+render(in))
		if _, ok := in.(Header); ok {
			depth++
		}
	}
	return lines
}

// Format renders a sequence as TAC text, one newline-terminated line per
// instruction.
func Format(prog []Instr) string {
	var b strings.Builder
	for _, line := range Lines(prog) {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}
