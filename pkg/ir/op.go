package ir

// Op is one of the canonical operators.
type Op int

const (
	OpAdd Op = iota // plus
	OpSub           // minus
	OpMul           // times
	OpDiv           // over (floor division)
	OpGt            // greater
	OpLt            // less
	OpEq            // equals
	OpNe            // not-equals
	OpGe            // greater-or-equal
	OpLe            // less-or-equal
)

type opInfo struct {
	name   string
	symbol string
	glyph  string
}

var ops = [...]opInfo{
	OpAdd: {"plus", "+", "➕"},
	OpSub: {"minus", "-", "➖"},
	OpMul: {"times", "*", "✖️"},
	OpDiv: {"over", "/", "➗"},
	OpGt:  {"greater", ">", "📈"},
	OpLt:  {"less", "<", "📉"},
	OpEq:  {"equals", "==", "🟰"},
	OpNe:  {"not-equals", "!=", "🚫🟰"},
	OpGe:  {"greater-or-equal", ">=", "📈🟰"},
	OpLe:  {"less-or-equal", "<=", "📉🟰"},
}

// String returns the ASCII symbol, e.g. "+".
func (o Op) String() string {
	if o < 0 || int(o) >= len(ops) {
		return "?"
	}
	return ops[o].symbol
}

// Glyph returns the source-language glyph, e.g. "➕".
func (o Op) Glyph() string {
	if o < 0 || int(o) >= len(ops) {
		return "?"
	}
	return ops[o].glyph
}

// Name returns the canonical operator name, e.g. "plus".
func (o Op) Name() string {
	if o < 0 || int(o) >= len(ops) {
		return "unknown"
	}
	return ops[o].name
}

// IsArithmetic reports whether o is one of + - * /.
func (o Op) IsArithmetic() bool {
	return o >= OpAdd && o <= OpDiv
}

// opLookup maps every accepted spelling to its operator. The times glyph
// is accepted with and without its variation selector.
var opLookup = func() map[string]Op {
	m := map[string]Op{"✖": OpMul}
	for i, info := range ops {
		m[info.name] = Op(i)
		m[info.symbol] = Op(i)
		m[info.glyph] = Op(i)
	}
	return m
}()

// LookupOp decodes a glyph, an ASCII symbol or a canonical name.
func LookupOp(s string) (Op, bool) {
	op, ok := opLookup[s]
	return op, ok
}

// glyphsByLength lists glyph spellings longest first so scanners can match
// "🚫🟰" before "🟰" and "📈🟰" before "📈".
var glyphsByLength = []string{
	"🚫🟰", "📈🟰", "📉🟰", "✖️",
	"➕", "➖", "✖", "➗", "📈", "📉", "🟰",
}

// Arith applies an arithmetic operator to two integers. Division floors
// toward negative infinity; division by zero and non-arithmetic operators
// report !ok.
func (o Op) Arith(l, r int64) (int64, bool) {
	switch o {
	case OpAdd:
		return l + r, true
	case OpSub:
		return l - r, true
	case OpMul:
		return l * r, true
	case OpDiv:
		if r == 0 {
			return 0, false
		}
		return FloorDiv(l, r), true
	default:
		return 0, false
	}
}

// FloorDiv divides rounding toward negative infinity: -7/2 is -4.
func FloorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}
