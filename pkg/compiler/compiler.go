// Package compiler wires the front end, the semantic gate, lowering and the
// optimizer into one pipeline.
package compiler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/chazu/emoc/pkg/ast"
	"github.com/chazu/emoc/pkg/check"
	"github.com/chazu/emoc/pkg/ir"
	"github.com/chazu/emoc/pkg/logger"
	"github.com/chazu/emoc/pkg/optimizer"
	"github.com/chazu/emoc/pkg/parser"
	"github.com/chazu/emoc/pkg/runtime"
)

// ErrCheck is returned when the semantic gate rejects a program.
var ErrCheck = errors.New("semantic check failed")

// Options control compilation.
type Options struct {
	NoCheck   bool              // skip the semantic gate
	Check     check.Options     // gate settings
	Optimizer optimizer.Options // optimizer settings
}

// Unit is one compiled program.
type Unit struct {
	AST         *ast.Node
	Raw         []ir.Instr // lowered TAC
	Optimized   []ir.Instr // TAC after constant propagation
	Warnings    []string   // lowering warnings
	Diagnostics []check.Diagnostic
	Changes     int // instructions the optimizer rewrote
}

// TAC returns the optimized listing.
func (u *Unit) TAC() string {
	return ir.Format(u.Optimized)
}

// Compile checks, lowers and optimizes node. When the gate reports
// diagnostics the unit is returned with them and an error wrapping
// ErrCheck; nothing is lowered.
func Compile(node *ast.Node, opts Options) (*Unit, error) {
	u := &Unit{AST: node}

	if !opts.NoCheck {
		logger.LogPhase("check")
		u.Diagnostics = check.New(opts.Check).Check(node)
		if err := check.Error(u.Diagnostics); err != nil {
			return u, fmt.Errorf("%w: %w", ErrCheck, err)
		}
	}

	logger.LogPhase("lower")
	b := ir.NewBuilder()
	u.Raw = b.Lower(node)
	u.Warnings = b.Warnings()
	logger.LogPhaseComplete("lower", len(u.Raw))

	logger.LogPhase("optimize")
	o := optimizer.New(opts.Optimizer)
	u.Optimized = o.Run(u.Raw)
	u.Changes = o.Changes()
	logger.LogPhaseComplete("optimize", len(u.Optimized))

	return u, nil
}

// ParseSource parses EmoCode source text.
func ParseSource(src string) (*ast.Node, error) {
	logger.LogPhase("parse")
	node, err := parser.Parse(src)
	if err != nil {
		return nil, fmt.Errorf("parsing: %w", err)
	}
	return node, nil
}

// LoadAST decodes a JSON syntax tree.
func LoadAST(data []byte) (*ast.Node, error) {
	return ast.ParseBytes(data)
}

// Load reads a program named name. Files ending in .json hold a syntax
// tree; anything else is source. Unnamed input ("" or "-") is treated as
// JSON when it starts with "{".
func Load(name string, data []byte) (*ast.Node, error) {
	switch {
	case strings.EqualFold(filepath.Ext(name), ".json"):
		return LoadAST(data)
	case (name == "" || name == "-") && bytes.HasPrefix(bytes.TrimSpace(data), []byte("{")):
		return LoadAST(data)
	default:
		return ParseSource(string(data))
	}
}

// Execute runs the optimized program, writing output to out.
func Execute(ctx context.Context, u *Unit, out io.Writer, cfg *runtime.Config) error {
	logger.LogPhase("execute")
	return runtime.New(out, cfg).Run(ctx, u.Optimized)
}

// Output runs the optimized program with default settings and returns its
// output lines.
func Output(u *Unit) []string {
	return runtime.Execute(u.Optimized)
}
