package ast

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// ErrMalformed is wrapped by every structural error reported by Validate.
var ErrMalformed = errors.New("malformed AST")

// Parse reads AST JSON from a reader and returns the program node.
func Parse(r io.Reader) (*Node, error) {
	var node Node
	decoder := json.NewDecoder(r)
	if err := decoder.Decode(&node); err != nil {
		return nil, fmt.Errorf("failed to parse AST: %w", err)
	}
	if err := Validate(&node); err != nil {
		return nil, err
	}
	return &node, nil
}

// ParseBytes parses AST JSON from a byte slice.
func ParseBytes(data []byte) (*Node, error) {
	var node Node
	if err := json.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("failed to parse AST: %w", err)
	}
	if err := Validate(&node); err != nil {
		return nil, err
	}
	return &node, nil
}

// Validate checks the shape of a tree: known tags, required children
// present, expressions where expressions belong. It says nothing about
// whether names are defined; that is pkg/check's job.
func Validate(n *Node) error {
	if n == nil {
		return fmt.Errorf("%w: nil node", ErrMalformed)
	}
	switch n.Type {
	case TypeProgram:
		return validateStmts(n.Body)
	case TypeNumber, TypeString:
		return nil
	case TypeVar:
		return requireName(n, n.Name)
	case TypeAssign:
		if err := requireName(n, n.Name); err != nil {
			return err
		}
		return validateExpr(n, n.Value)
	case TypeBinOp, TypeRelOp:
		if n.Op == "" {
			return fmt.Errorf("%w: %s without operator", ErrMalformed, n.Type)
		}
		if err := validateExpr(n, n.Left); err != nil {
			return err
		}
		return validateExpr(n, n.Right)
	case TypePrint, TypeReturn:
		return validateExpr(n, n.Value)
	case TypeIf, TypeIfElse:
		if err := validateExpr(n, n.Cond); err != nil {
			return err
		}
		if err := validateStmts(n.Then); err != nil {
			return err
		}
		return validateStmts(n.Else)
	case TypeFunctionDef:
		if err := requireName(n, n.Name); err != nil {
			return err
		}
		return validateStmts(n.Body)
	case TypeClassDef:
		if err := requireName(n, n.Name); err != nil {
			return err
		}
		return validateStmts(n.Body)
	case TypeCall:
		if n.Value == nil {
			return fmt.Errorf("%w: call without expression", ErrMalformed)
		}
		if n.Value.Type != TypeCallFunction && n.Value.Type != TypeCallMethod {
			return fmt.Errorf("%w: call wraps %q", ErrMalformed, n.Value.Type)
		}
		return Validate(n.Value)
	case TypeCallFunction:
		if err := requireName(n, n.Name); err != nil {
			return err
		}
		for _, arg := range n.Args {
			if err := validateExpr(n, arg); err != nil {
				return err
			}
		}
		return nil
	case TypeCallMethod:
		if n.Object == "" || n.Method == "" {
			return fmt.Errorf("%w: call_method needs object and method", ErrMalformed)
		}
		for _, arg := range n.Args {
			if err := validateExpr(n, arg); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown node type %q", ErrMalformed, n.Type)
	}
}

func validateStmts(stmts []*Node) error {
	for _, s := range stmts {
		if s == nil {
			return fmt.Errorf("%w: nil statement", ErrMalformed)
		}
		if s.IsExpr() {
			return fmt.Errorf("%w: expression %q in statement position", ErrMalformed, s.Type)
		}
		if err := Validate(s); err != nil {
			return err
		}
	}
	return nil
}

func validateExpr(parent, e *Node) error {
	if e == nil {
		return fmt.Errorf("%w: %s missing operand", ErrMalformed, parent.Type)
	}
	if !e.IsExpr() {
		return fmt.Errorf("%w: %s operand is a %q", ErrMalformed, parent.Type, e.Type)
	}
	return Validate(e)
}

func requireName(n *Node, name string) error {
	if name == "" {
		return fmt.Errorf("%w: %s without name", ErrMalformed, n.Type)
	}
	return nil
}
