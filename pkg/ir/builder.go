package ir

import (
	"fmt"
	"strconv"

	"github.com/chazu/emoc/pkg/ast"
)

// Builder lowers AST nodes to TAC. A Builder owns the temporary and label
// counters for one lowering pass, so concurrent compilations never share
// numbering.
type Builder struct {
	temps    int
	labels   int
	taken    map[string]bool // names the program uses; temporaries avoid them
	warnings []string
}

// NewBuilder creates a builder with fresh counters.
func NewBuilder() *Builder {
	return &Builder{taken: map[string]bool{}, warnings: []string{}}
}

// Lower lowers a whole program with a fresh Builder.
func Lower(program *ast.Node) []Instr {
	return NewBuilder().Lower(program)
}

// Lower converts a program (or a single statement) to a TAC sequence.
// It is total over well-formed trees; nodes it does not understand are
// skipped and noted in Warnings.
func (b *Builder) Lower(program *ast.Node) []Instr {
	if program == nil {
		return nil
	}
	b.reserve(program)
	if program.Type == ast.TypeProgram {
		return b.buildStatements(program.Body)
	}
	return b.buildStatement(program)
}

// Warnings returns notes about malformed input seen while lowering.
func (b *Builder) Warnings() []string {
	return b.warnings
}

// reserve records every variable and parameter name in n so newTemp never
// hands out a name the program already uses.
func (b *Builder) reserve(n *ast.Node) {
	if n == nil {
		return
	}
	switch n.Type {
	case ast.TypeVar, ast.TypeAssign:
		b.taken[n.Name] = true
	case ast.TypeFunctionDef:
		for _, p := range n.Params {
			b.taken[p] = true
		}
	}
	for _, child := range []*ast.Node{n.Value, n.Left, n.Right, n.Cond} {
		b.reserve(child)
	}
	for _, list := range [][]*ast.Node{n.Then, n.Else, n.Body, n.Args} {
		for _, child := range list {
			b.reserve(child)
		}
	}
}

func (b *Builder) newTemp() string {
	for {
		b.temps++
		name := "t" + strconv.Itoa(b.temps)
		if !b.taken[name] {
			return name
		}
	}
}

func (b *Builder) newLabel() string {
	b.labels++
	return "L" + strconv.Itoa(b.labels)
}

func (b *Builder) warnf(format string, args ...any) {
	b.warnings = append(b.warnings, fmt.Sprintf(format, args...))
}

// buildStatements lowers statements in order.
func (b *Builder) buildStatements(stmts []*ast.Node) []Instr {
	var code []Instr
	for _, stmt := range stmts {
		code = append(code, b.buildStatement(stmt)...)
	}
	return code
}

// buildStatement lowers one statement.
func (b *Builder) buildStatement(n *ast.Node) []Instr {
	if n == nil {
		return nil
	}
	switch n.Type {
	case ast.TypeAssign:
		code, result := b.buildExpr(n.Value)
		return append(code, Assign{Dest: n.Name, Value: result})

	case ast.TypePrint:
		code, result := b.buildExpr(n.Value)
		return append(code, Print{Value: result})

	case ast.TypeReturn:
		code, result := b.buildExpr(n.Value)
		return append(code, Return{Value: result})

	case ast.TypeIf:
		code, cond := b.buildExpr(n.Cond)
		end := b.newLabel()
		code = append(code, IfFalse{Cond: cond, Target: end})
		code = append(code, b.buildStatements(n.Then)...)
		return append(code, Label{Name: end})

	case ast.TypeIfElse:
		code, cond := b.buildExpr(n.Cond)
		elseLabel := b.newLabel()
		end := b.newLabel()
		code = append(code, IfFalse{Cond: cond, Target: elseLabel})
		code = append(code, b.buildStatements(n.Then)...)
		code = append(code, Goto{Target: end}, Label{Name: elseLabel})
		code = append(code, b.buildStatements(n.Else)...)
		return append(code, Label{Name: end})

	case ast.TypeFunctionDef:
		code := []Instr{Header{Kind: BlockFunction, Name: n.Name, Params: n.Params}}
		code = append(code, b.buildStatements(n.Body)...)
		return append(code, End{Kind: BlockFunction})

	case ast.TypeClassDef:
		code := []Instr{Header{Kind: BlockClass, Name: n.Name}}
		code = append(code, b.buildStatements(n.Body)...)
		return append(code, End{Kind: BlockClass})

	case ast.TypeCall:
		return b.buildStatement(n.Value)

	case ast.TypeCallFunction:
		var code []Instr
		var args []Expr
		for _, arg := range n.Args {
			argCode, result := b.buildExpr(arg)
			code = append(code, argCode...)
			args = append(args, result)
		}
		return append(code, Call{Name: n.Name, Args: args})

	case ast.TypeCallMethod:
		// Method arguments are not lowered; the runtime never binds them.
		return []Instr{Call{Object: n.Object, Method: n.Method}}

	case ast.TypeProgram:
		return b.buildStatements(n.Body)

	default:
		b.warnf("skipping %s node in statement position", n.Type)
		return nil
	}
}

// buildExpr lowers an expression, returning the code computing it and the
// operand holding its value.
func (b *Builder) buildExpr(n *ast.Node) ([]Instr, Expr) {
	if n == nil {
		b.warnf("missing expression")
		return nil, Raw{Text: ""}
	}
	switch n.Type {
	case ast.TypeNumber:
		return nil, Num{Value: n.Number}

	case ast.TypeString:
		return nil, Str{Value: n.Text}

	case ast.TypeVar:
		return nil, Ref{Name: n.Name}

	case ast.TypeBinOp, ast.TypeRelOp:
		leftCode, left := b.buildExpr(n.Left)
		rightCode, right := b.buildExpr(n.Right)
		code := append(leftCode, rightCode...)
		temp := b.newTemp()
		op, ok := LookupOp(n.Op)
		if !ok {
			b.warnf("unknown operator %q", n.Op)
			raw := Raw{Text: ExprString(left) + " " + n.Op + " " + ExprString(right)}
			return append(code, Assign{Dest: temp, Value: raw}), Ref{Name: temp}
		}
		return append(code, Assign{Dest: temp, Value: Binary{Op: op, Left: left, Right: right}}), Ref{Name: temp}

	default:
		b.warnf("%s node has no value", n.Type)
		return b.buildStatement(n), Raw{Text: "None"}
	}
}
