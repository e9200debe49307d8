// Package optimizer implements constant propagation and folding over TAC.
//
// The pass is a single forward walk with a map of names whose integer value
// is known at the current point. It is not flow-sensitive; see Options for
// how control-flow joins are treated.
package optimizer

import (
	"maps"

	"github.com/chazu/emoc/pkg/ir"
	"github.com/chazu/emoc/pkg/logger"
)

// Options tunes the pass.
type Options struct {
	// KeepAcrossLabels keeps known constants alive past labels. Labels are
	// the join points of lowered control flow, so keeping constants there
	// can propagate a value from one branch into code reached from the
	// other. Off by default.
	KeepAcrossLabels bool
}

// Optimizer runs the constant propagation pass.
type Optimizer struct {
	opts    Options
	consts  map[string]int64
	saved   []map[string]int64
	changes int
}

// New creates an optimizer with the given options.
func New(opts Options) *Optimizer {
	return &Optimizer{opts: opts}
}

// Optimize runs the pass with default options.
func Optimize(prog []ir.Instr) []ir.Instr {
	return New(Options{}).Run(prog)
}

// Changes returns how many instructions the last Run rewrote.
func (o *Optimizer) Changes() int {
	return o.changes
}

// Run optimizes prog and returns a new sequence. prog is not modified.
func (o *Optimizer) Run(prog []ir.Instr) []ir.Instr {
	o.consts = map[string]int64{}
	o.saved = nil
	o.changes = 0

	out := make([]ir.Instr, 0, len(prog))
	for _, in := range prog {
		next := o.instr(in)
		if ir.InstrString(next) != ir.InstrString(in) {
			o.changes++
		}
		out = append(out, next)
	}

	logger.LogOptimization("constprop", o.changes)
	return out
}

func (o *Optimizer) instr(in ir.Instr) ir.Instr {
	switch x := in.(type) {
	case ir.Label:
		if !o.opts.KeepAcrossLabels {
			clear(o.consts)
		}
		return x

	case ir.Call:
		// Calls run in isolated frames and cannot change caller bindings.
		return x

	case ir.Header:
		o.saved = append(o.saved, o.consts)
		o.consts = map[string]int64{}
		return x

	case ir.End:
		if n := len(o.saved); n > 0 {
			o.consts = o.saved[n-1]
			o.saved = o.saved[:n-1]
		}
		return x

	case ir.Goto:
		return x

	case ir.IfFalse:
		x.Cond = o.subst(x.Cond)
		return x

	case ir.Print:
		x.Value = o.subst(x.Value)
		return x

	case ir.Return:
		x.Value = o.subst(x.Value)
		return x

	case ir.Assign:
		return o.assign(x)

	default:
		return in
	}
}

func (o *Optimizer) assign(a ir.Assign) ir.Instr {
	rhs := o.subst(a.Value)
	if folded, ok := Fold(rhs); ok {
		rhs = folded
	}
	if n, ok := rhs.(ir.Num); ok {
		o.consts[a.Dest] = n.Value
	} else {
		delete(o.consts, a.Dest)
	}
	a.Value = rhs
	return a
}

// subst replaces every reference to a known constant by its literal.
// Matching is on whole names, never substrings.
func (o *Optimizer) subst(e ir.Expr) ir.Expr {
	switch x := e.(type) {
	case ir.Ref:
		if v, ok := o.consts[x.Name]; ok {
			return ir.Num{Value: v}
		}
		return x
	case ir.Binary:
		x.Left = o.subst(x.Left)
		x.Right = o.subst(x.Right)
		return x
	default:
		return e
	}
}

// Fold evaluates a single arithmetic operation over two integer literals.
// Comparisons, compound expressions and division by zero are left alone.
func Fold(e ir.Expr) (ir.Expr, bool) {
	b, ok := e.(ir.Binary)
	if !ok || !b.Op.IsArithmetic() {
		return e, false
	}
	l, lok := b.Left.(ir.Num)
	r, rok := b.Right.(ir.Num)
	if !lok || !rok {
		return e, false
	}
	v, ok := b.Op.Arith(l.Value, r.Value)
	if !ok {
		return e, false
	}
	return ir.Num{Value: v}, true
}

// Snapshot returns a copy of the constants known at the end of the last
// Run. Tests and the REPL use it for inspection.
func (o *Optimizer) Snapshot() map[string]int64 {
	return maps.Clone(o.consts)
}
