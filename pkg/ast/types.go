// Package ast defines the EmoCode syntax tree handed to the compiler core.
//
// Trees are produced once by a front end (pkg/parser, or any tool emitting
// the JSON form read by Parse) and are never mutated afterwards.
package ast

// Node is a single tagged syntax tree node. Which fields are meaningful
// depends on Type:
//
//	program       Body
//	assign        Name, Value
//	number        Number
//	string        Text
//	var           Name
//	binop, relop  Op, Left, Right
//	print         Value
//	if            Cond, Then
//	if_else       Cond, Then, Else
//	function_def  Name, Params, Body
//	class_def     Name, Body
//	return        Value
//	call          Value (a call_function or call_method node)
//	call_function Name, Args
//	call_method   Object, Method, Args
type Node struct {
	Type   string   `json:"type"`
	Name   string   `json:"name,omitempty"`
	Op     string   `json:"op,omitempty"`
	Number int64    `json:"number,omitempty"`
	Text   string   `json:"text,omitempty"`
	Value  *Node    `json:"value,omitempty"`
	Left   *Node    `json:"left,omitempty"`
	Right  *Node    `json:"right,omitempty"`
	Cond   *Node    `json:"cond,omitempty"`
	Then   []*Node  `json:"then,omitempty"`
	Else   []*Node  `json:"else,omitempty"`
	Body   []*Node  `json:"body,omitempty"`
	Params []string `json:"params,omitempty"`
	Args   []*Node  `json:"args,omitempty"`
	Object string   `json:"object,omitempty"`
	Method string   `json:"method,omitempty"`
	Loc    Location `json:"location"`
}

// Location represents a position in the source file.
type Location struct {
	Line int `json:"line"`
	Col  int `json:"col"`
}

// Node type constants
const (
	TypeProgram      = "program"
	TypeAssign       = "assign"
	TypeNumber       = "number"
	TypeString       = "string"
	TypeVar          = "var"
	TypeBinOp        = "binop"
	TypeRelOp        = "relop"
	TypePrint        = "print"
	TypeIf           = "if"
	TypeIfElse       = "if_else"
	TypeFunctionDef  = "function_def"
	TypeClassDef     = "class_def"
	TypeReturn       = "return"
	TypeCall         = "call"
	TypeCallFunction = "call_function"
	TypeCallMethod   = "call_method"
)

// IsExpr reports whether the node can appear in expression position.
func (n *Node) IsExpr() bool {
	if n == nil {
		return false
	}
	switch n.Type {
	case TypeNumber, TypeString, TypeVar, TypeBinOp, TypeRelOp:
		return true
	}
	return false
}

// Program builds a program node.
func Program(stmts ...*Node) *Node {
	return &Node{Type: TypeProgram, Body: stmts}
}

// Assign builds name = value.
func Assign(name string, value *Node) *Node {
	return &Node{Type: TypeAssign, Name: name, Value: value}
}

// Num builds an integer literal.
func Num(n int64) *Node {
	return &Node{Type: TypeNumber, Number: n}
}

// Str builds a string literal.
func Str(s string) *Node {
	return &Node{Type: TypeString, Text: s}
}

// Var builds a variable reference.
func Var(name string) *Node {
	return &Node{Type: TypeVar, Name: name}
}

// BinOp builds an arithmetic operation. op may be a glyph (➕), an ASCII
// symbol (+) or a canonical name (plus).
func BinOp(op string, left, right *Node) *Node {
	return &Node{Type: TypeBinOp, Op: op, Left: left, Right: right}
}

// RelOp builds a comparison.
func RelOp(op string, left, right *Node) *Node {
	return &Node{Type: TypeRelOp, Op: op, Left: left, Right: right}
}

// Print builds a print statement.
func Print(value *Node) *Node {
	return &Node{Type: TypePrint, Value: value}
}

// If builds a conditional without an else branch.
func If(cond *Node, then ...*Node) *Node {
	return &Node{Type: TypeIf, Cond: cond, Then: then}
}

// IfElse builds a two-armed conditional.
func IfElse(cond *Node, then, els []*Node) *Node {
	return &Node{Type: TypeIfElse, Cond: cond, Then: then, Else: els}
}

// Function builds a function definition.
func Function(name string, params []string, body ...*Node) *Node {
	return &Node{Type: TypeFunctionDef, Name: name, Params: params, Body: body}
}

// Class builds a class definition.
func Class(name string, body ...*Node) *Node {
	return &Node{Type: TypeClassDef, Name: name, Body: body}
}

// Return builds a return statement.
func Return(value *Node) *Node {
	return &Node{Type: TypeReturn, Value: value}
}

// Call wraps a call expression as a statement.
func Call(expr *Node) *Node {
	return &Node{Type: TypeCall, Value: expr}
}

// CallFunction builds name(args...).
func CallFunction(name string, args ...*Node) *Node {
	return &Node{Type: TypeCallFunction, Name: name, Args: args}
}

// CallMethod builds object.method(args...).
func CallMethod(object, method string, args ...*Node) *Node {
	return &Node{Type: TypeCallMethod, Object: object, Method: method, Args: args}
}
