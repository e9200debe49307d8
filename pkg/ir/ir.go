// Package ir defines the three-address code (TAC) the EmoCode compiler
// lowers programs into, and the lowering itself.
//
// Instructions are tagged values rather than text: the optimizer and the
// runtime switch on instruction and expression types instead of
// re-tokenizing strings. The textual form (see Format and ParseText) is
// only a serialization.
package ir

// Instr is a single TAC instruction.
type Instr interface {
	irInstr()
}

// Expr is an operand or right-hand side.
type Expr interface {
	irExpr()
}

// BlockKind distinguishes function and class blocks.
type BlockKind int

const (
	BlockFunction BlockKind = iota
	BlockClass
)

func (k BlockKind) String() string {
	if k == BlockClass {
		return "class"
	}
	return "function"
}

// === Instructions ===

// Label marks a jump target: "name:".
type Label struct {
	Name string
}

func (Label) irInstr() {}

// Goto jumps unconditionally: "goto L".
type Goto struct {
	Target string
}

func (Goto) irInstr() {}

// IfFalse jumps when Cond is falsy: "ifFalse c goto L".
type IfFalse struct {
	Cond   Expr
	Target string
}

func (IfFalse) irInstr() {}

// Print writes one output line: "print x".
type Print struct {
	Value Expr
}

func (Print) irInstr() {}

// Assign binds Dest: "dest = expr".
type Assign struct {
	Dest  string
	Value Expr
}

func (Assign) irInstr() {}

// Call invokes a function ("call f(a, b)") or, when Object is set, a
// method ("call obj.m"). A call never produces a bindable result.
type Call struct {
	Name   string
	Args   []Expr
	Object string
	Method string
}

func (Call) irInstr() {}

// IsMethod reports whether the call uses the object.method form.
func (c Call) IsMethod() bool {
	return c.Object != ""
}

// Callee returns the name used in diagnostics.
func (c Call) Callee() string {
	if c.IsMethod() {
		return c.Object + "." + c.Method
	}
	return c.Name
}

// Return ends the current frame: "return x".
type Return struct {
	Value Expr
}

func (Return) irInstr() {}

// Header opens a block: "function name(p, q):" or "class name:".
type Header struct {
	Kind   BlockKind
	Name   string
	Params []string
}

func (Header) irInstr() {}

// End closes a block: "end function" or "end class".
type End struct {
	Kind BlockKind
}

func (End) irInstr() {}

// Unknown carries a line the text parser could not classify. The runtime
// treats it as a no-op.
type Unknown struct {
	Text string
}

func (Unknown) irInstr() {}

// === Expressions ===

// Num is an integer literal.
type Num struct {
	Value int64
}

func (Num) irExpr() {}

// Str is a string literal.
type Str struct {
	Value string
}

func (Str) irExpr() {}

// Ref names a variable or temporary.
type Ref struct {
	Name string
}

func (Ref) irExpr() {}

// Binary applies an operator to two operands.
type Binary struct {
	Op    Op
	Left  Expr
	Right Expr
}

func (Binary) irExpr() {}

// Raw is expression text that did not parse. It evaluates to itself.
type Raw struct {
	Text string
}

func (Raw) irExpr() {}

// IsConst reports whether e is an integer literal.
func IsConst(e Expr) bool {
	_, ok := e.(Num)
	return ok
}
