// Package check is the semantic gate run before lowering. It walks the tree
// with a scoped symbol table and reports names that cannot resolve and
// operators applied to values of the wrong type.
//
// Function and class definitions are hoisted within their block, matching
// the engine, which lifts every definition before running main code.
// Function bodies see their parameters, their own locals and the hoisted
// definitions, but not the caller's variables, because frames are isolated
// at run time.
package check

import (
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/chazu/emoc/pkg/ast"
	"github.com/chazu/emoc/pkg/ir"
)

// Type is the static type of an expression.
type Type string

const (
	Unknown  Type = "unknown"
	Number   Type = "number"
	String   Type = "string"
	Boolean  Type = "boolean"
	Function Type = "function"
	Class    Type = "class"
)

// Diagnostic is one problem found in a program.
type Diagnostic struct {
	Loc     ast.Location `json:"location"`
	Message string       `json:"message"`
}

func (d Diagnostic) Error() string {
	if d.Loc.Line == 0 {
		return d.Message
	}
	return fmt.Sprintf("line %d, col %d: %s", d.Loc.Line, d.Loc.Col, d.Message)
}

// Options tune the checker.
type Options struct {
	// Externals names functions served outside the program (native
	// handlers). Calls to them are not reported. A "Class.method" entry
	// covers one method; a bare class name covers all of its methods.
	Externals []string
}

type scope struct {
	names   map[string]Type
	methods map[string]map[string]bool // class -> method names
	parent  *scope                     // consulted for definitions only
}

func newScope(parent *scope) *scope {
	return &scope{
		names:   make(map[string]Type),
		methods: make(map[string]map[string]bool),
		parent:  parent,
	}
}

// lookup finds name in s, then definitions in enclosing scopes.
func (s *scope) lookup(name string) (Type, bool) {
	if t, ok := s.names[name]; ok {
		return t, true
	}
	for p := s.parent; p != nil; p = p.parent {
		if t, ok := p.names[name]; ok && (t == Function || t == Class) {
			return t, true
		}
	}
	return Unknown, false
}

func (s *scope) classMethods(name string) (map[string]bool, bool) {
	for c := s; c != nil; c = c.parent {
		if m, ok := c.methods[name]; ok {
			return m, true
		}
	}
	return nil, false
}

// Checker accumulates diagnostics for one program.
type Checker struct {
	externals map[string]bool
	scope     *scope
	diags     []Diagnostic
}

// New creates a checker.
func New(opts Options) *Checker {
	c := &Checker{externals: make(map[string]bool)}
	for _, name := range opts.Externals {
		c.externals[name] = true
	}
	return c
}

// Check reports every diagnostic in prog using default options.
func Check(prog *ast.Node) []Diagnostic {
	return New(Options{}).Check(prog)
}

// Error combines diagnostics into one error, or returns nil.
func Error(diags []Diagnostic) error {
	var result *multierror.Error
	for _, d := range diags {
		result = multierror.Append(result, d)
	}
	return result.ErrorOrNil()
}

// Check walks prog and returns its diagnostics in source order.
func (c *Checker) Check(prog *ast.Node) []Diagnostic {
	c.diags = nil
	c.scope = newScope(nil)
	if prog == nil {
		return nil
	}
	c.block(prog.Body)
	return c.diags
}

func (c *Checker) report(loc ast.Location, format string, args ...any) {
	c.diags = append(c.diags, Diagnostic{Loc: loc, Message: fmt.Sprintf(format, args...)})
}

// block hoists the definitions in stmts, then checks each statement.
func (c *Checker) block(stmts []*ast.Node) {
	for _, n := range stmts {
		switch n.Type {
		case ast.TypeFunctionDef:
			c.scope.names[n.Name] = Function
		case ast.TypeClassDef:
			c.scope.names[n.Name] = Class
			methods := make(map[string]bool)
			for _, m := range n.Body {
				if m.Type == ast.TypeFunctionDef {
					methods[m.Name] = true
				}
			}
			c.scope.methods[n.Name] = methods
		}
	}
	for _, n := range stmts {
		c.stmt(n)
	}
}

func (c *Checker) stmt(n *ast.Node) {
	switch n.Type {
	case ast.TypeAssign:
		c.scope.names[n.Name] = c.expr(n.Value)
	case ast.TypePrint, ast.TypeReturn:
		c.expr(n.Value)
	case ast.TypeIf:
		c.expr(n.Cond)
		c.stmts(n.Then)
	case ast.TypeIfElse:
		c.expr(n.Cond)
		c.stmts(n.Then)
		c.stmts(n.Else)
	case ast.TypeFunctionDef:
		c.function(n)
	case ast.TypeClassDef:
		outer := c.scope
		c.scope = newScope(outer)
		c.block(n.Body)
		c.scope = outer
	case ast.TypeCall:
		c.call(n.Value)
	default:
		c.report(n.Loc, "Unknown node type: %s", n.Type)
	}
}

// stmts checks a branch body. Branches share the enclosing scope.
func (c *Checker) stmts(list []*ast.Node) {
	for _, n := range list {
		switch n.Type {
		case ast.TypeFunctionDef:
			c.scope.names[n.Name] = Function
		case ast.TypeClassDef:
			c.scope.names[n.Name] = Class
		}
		c.stmt(n)
	}
}

func (c *Checker) function(n *ast.Node) {
	outer := c.scope
	c.scope = newScope(outer)
	for _, p := range n.Params {
		c.scope.names[p] = Unknown
	}
	c.block(n.Body)
	c.scope = outer
}

func (c *Checker) call(n *ast.Node) {
	if n == nil {
		return
	}
	switch n.Type {
	case ast.TypeCallFunction:
		t, ok := c.scope.lookup(n.Name)
		switch {
		case ok && t == Function:
		case c.externals[n.Name]:
		case ok && t == Class:
			c.report(n.Loc, "Class %s called as a function", n.Name)
		default:
			c.report(n.Loc, "Undefined function: %s", n.Name)
		}
	case ast.TypeCallMethod:
		if t, ok := c.scope.lookup(n.Object); !ok || t != Class {
			if !c.externals[n.Object+"."+n.Method] && !c.externals[n.Object] {
				c.report(n.Loc, "Undefined object: %s", n.Object)
			}
		} else if methods, ok := c.scope.classMethods(n.Object); ok && !methods[n.Method] {
			c.report(n.Loc, "Undefined method: %s.%s", n.Object, n.Method)
		}
	}
	for _, arg := range n.Args {
		c.expr(arg)
	}
}

func (c *Checker) expr(n *ast.Node) Type {
	if n == nil {
		return Unknown
	}
	switch n.Type {
	case ast.TypeNumber:
		return Number
	case ast.TypeString:
		return String
	case ast.TypeVar:
		t, ok := c.scope.lookup(n.Name)
		if !ok {
			c.report(n.Loc, "Undefined variable: %s", n.Name)
			return Unknown
		}
		return t
	case ast.TypeBinOp:
		return c.binop(n)
	case ast.TypeRelOp:
		l, r := comparable(c.expr(n.Left)), comparable(c.expr(n.Right))
		if l != Unknown && r != Unknown && l != r {
			c.report(n.Loc, "Type mismatch in relational operation: %s %s %s", l, n.Op, r)
		}
		return Boolean
	default:
		c.report(n.Loc, "Unknown node type: %s", n.Type)
		return Unknown
	}
}

func (c *Checker) binop(n *ast.Node) Type {
	l, r := c.expr(n.Left), c.expr(n.Right)
	op, known := ir.LookupOp(n.Op)
	if !known || !op.IsArithmetic() {
		c.report(n.Loc, "Unknown operator: %s", n.Op)
		return Unknown
	}
	if op == ir.OpAdd && l == String && r == String {
		return String
	}
	if !numeric(l) || !numeric(r) {
		c.report(n.Loc, "Type error in binary operation: %s %s %s", l, n.Op, r)
		return Unknown
	}
	if l == Unknown || r == Unknown {
		return Unknown
	}
	return Number
}

// numeric reports whether t may take part in arithmetic. Booleans are the
// numbers 1 and 0 at run time.
func numeric(t Type) bool {
	return t == Number || t == Boolean || t == Unknown
}

func comparable(t Type) Type {
	if t == Boolean {
		return Number
	}
	return t
}
