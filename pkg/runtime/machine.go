// Package runtime executes optimized TAC.
//
// A run partitions the instruction stream into definitions (function and
// class blocks) and main code, then interprets main code. Every call runs
// in a fresh frame pushed on an explicit stack; frames share nothing but
// read-only access to the definitions table. The machine never aborts on
// bad input: unknown names, labels and callees degrade to diagnostics.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chazu/emoc/pkg/ir"
	"github.com/chazu/emoc/pkg/logger"
)

// ErrUndefined is returned by Invoke for a name with no definition.
var ErrUndefined = errors.New("not defined")

// DefaultMaxDepth bounds nested calls when Config.MaxDepth is zero.
const DefaultMaxDepth = 256

// Config holds machine options.
type Config struct {
	MaxDepth    int              // frames allowed on the stack (default DefaultMaxDepth)
	MaxSteps    int              // instructions per frame, 0 for no limit
	Handlers    *HandlerRegistry // natives for otherwise undefined callees
	Diagnostics io.Writer        // where diagnostics go; nil means the output stream
}

// Definition is a function or class block lifted out of the main code.
type Definition struct {
	Header ir.Header
	Body   []ir.Instr
}

// Machine runs TAC programs.
type Machine struct {
	out   io.Writer
	diag  io.Writer
	cfg   Config
	defs  map[string]Definition
	stack []*frame
	err   error
}

type frame struct {
	name   string
	code   []ir.Instr
	labels map[string]int
	env    Env
}

func newFrame(name string, code []ir.Instr, env Env) *frame {
	labels := make(map[string]int)
	for i, in := range code {
		if l, ok := in.(ir.Label); ok {
			labels[l.Name] = i
		}
	}
	if env == nil {
		env = Env{}
	}
	return &frame{name: name, code: code, labels: labels, env: env}
}

// jump returns the index of target, or pc+1 when the label is unknown.
func (f *frame) jump(target string, pc int) int {
	if i, ok := f.labels[target]; ok {
		return i
	}
	return pc + 1
}

// New creates a machine writing program output to out. A nil cfg uses
// defaults.
func New(out io.Writer, cfg *Config) *Machine {
	m := &Machine{out: out}
	if cfg != nil {
		m.cfg = *cfg
	}
	if m.cfg.MaxDepth <= 0 {
		m.cfg.MaxDepth = DefaultMaxDepth
	}
	m.diag = m.cfg.Diagnostics
	if m.diag == nil {
		m.diag = out
	}
	return m
}

// Run executes prog with a default machine.
func Run(ctx context.Context, out io.Writer, prog []ir.Instr) error {
	return New(out, nil).Run(ctx, prog)
}

// Execute runs prog and returns everything it printed, one entry per line.
func Execute(prog []ir.Instr) []string {
	var b strings.Builder
	_ = Run(context.Background(), &b, prog)
	if b.Len() == 0 {
		return nil
	}
	return strings.Split(strings.TrimSuffix(b.String(), "\n"), "\n")
}

// Partition splits prog into definitions and main code. A block runs from
// its header to the first terminator of the same kind; nested definitions
// are not recognized. A later definition replaces an earlier one.
func Partition(prog []ir.Instr) (map[string]Definition, []ir.Instr) {
	defs := make(map[string]Definition)
	var main []ir.Instr
	for pc := 0; pc < len(prog); pc++ {
		h, ok := prog[pc].(ir.Header)
		if !ok {
			main = append(main, prog[pc])
			continue
		}
		body := []ir.Instr{}
		pc++
		for pc < len(prog) && !isEnd(prog[pc], h.Kind) {
			body = append(body, prog[pc])
			pc++
		}
		defs[h.Name] = Definition{Header: h, Body: body}
	}
	return defs, main
}

func isEnd(in ir.Instr, kind ir.BlockKind) bool {
	e, ok := in.(ir.End)
	return ok && e.Kind == kind
}

// Run executes prog. It returns only context cancellation or an error
// writing output; everything else is reported as a diagnostic.
func (m *Machine) Run(ctx context.Context, prog []ir.Instr) error {
	m.err = nil
	m.stack = m.stack[:0]
	var main []ir.Instr
	m.defs, main = Partition(prog)

	logger.Debug("Starting run", "definitions", len(m.defs), "instructions", len(main))

	result, returned, err := m.invoke(ctx, newFrame("main", main, nil))
	if err != nil {
		return err
	}
	if returned {
		m.diagnose("Function returned: %s", result)
	}
	return m.err
}

// Invoke runs one definition of prog directly with args, without running
// main code. name is a function name or "Class.method". Method arguments
// are ignored, as they are for calls made by a program.
func (m *Machine) Invoke(ctx context.Context, prog []ir.Instr, name string, args []Value) (Value, error) {
	m.err = nil
	m.stack = m.stack[:0]
	m.defs, _ = Partition(prog)

	var f *frame
	if class, method, ok := strings.Cut(name, "."); ok {
		def, found := m.defs[class]
		if !found || def.Header.Kind != ir.BlockClass {
			return None, fmt.Errorf("class %s: %w", class, ErrUndefined)
		}
		body, found := methodBody(def.Body, method)
		if !found {
			return None, fmt.Errorf("method %s: %w", name, ErrUndefined)
		}
		f = newFrame(name, body, nil)
	} else {
		def, found := m.defs[name]
		if !found || def.Header.Kind != ir.BlockFunction {
			return None, fmt.Errorf("function %s: %w", name, ErrUndefined)
		}
		env := Env{}
		for i := 0; i < len(def.Header.Params) && i < len(args); i++ {
			env[def.Header.Params[i]] = args[i]
		}
		f = newFrame(name, def.Body, env)
	}

	result, _, err := m.invoke(ctx, f)
	if err != nil {
		return None, err
	}
	return result, m.err
}

// Definitions returns the table built by the last Run.
func (m *Machine) Definitions() map[string]Definition {
	return m.defs
}

// invoke pushes f, runs it to completion and pops it.
func (m *Machine) invoke(ctx context.Context, f *frame) (Value, bool, error) {
	m.stack = append(m.stack, f)
	defer func() { m.stack = m.stack[:len(m.stack)-1] }()
	return m.exec(ctx, f)
}

// exec interprets one frame. The bool result reports whether a return
// instruction ended it.
func (m *Machine) exec(ctx context.Context, f *frame) (Value, bool, error) {
	steps := 0
	for pc := 0; pc < len(f.code); {
		if err := ctx.Err(); err != nil {
			return None, false, err
		}
		if m.err != nil {
			return None, false, m.err
		}
		steps++
		if m.cfg.MaxSteps > 0 && steps > m.cfg.MaxSteps {
			m.diagnose("Step limit exceeded in %s", f.name)
			return None, false, nil
		}

		switch in := f.code[pc].(type) {
		case ir.IfFalse:
			if !m.condition(f, in.Cond).Truthy() {
				pc = f.jump(in.Target, pc)
				continue
			}
		case ir.Goto:
			pc = f.jump(in.Target, pc)
			continue
		case ir.Print:
			m.println(m.printable(f, in.Value))
		case ir.Assign:
			f.env[in.Dest] = EvalOrRaw(in.Value, f.env)
		case ir.Return:
			return EvalOrRaw(in.Value, f.env), true, nil
		case ir.Call:
			if err := m.call(ctx, f, in); err != nil {
				return None, false, err
			}
		default:
			// Labels, stray block lines and unknown instructions.
		}
		pc++
	}
	return None, false, nil
}

// condition resolves a branch condition. Unbound names count as 0.
func (m *Machine) condition(f *frame, e ir.Expr) Value {
	if r, ok := e.(ir.Ref); ok {
		if v, ok := f.env[r.Name]; ok {
			return v
		}
		return Number(0)
	}
	v, err := Eval(e, f.env)
	if err != nil {
		return Number(0)
	}
	return v
}

// printable resolves a print operand. Unbound names print as themselves.
func (m *Machine) printable(f *frame, e ir.Expr) string {
	if r, ok := e.(ir.Ref); ok {
		if v, ok := f.env[r.Name]; ok {
			return v.String()
		}
		return r.Name
	}
	return EvalOrRaw(e, f.env).String()
}

// argument resolves a call argument in the caller's frame. Bound names are
// copied by value; unbound names stay as raw text.
func (m *Machine) argument(f *frame, e ir.Expr) Value {
	if r, ok := e.(ir.Ref); ok {
		if v, ok := f.env[r.Name]; ok {
			return v
		}
		return Unresolved(r.Name)
	}
	return EvalOrRaw(e, f.env)
}

func (m *Machine) call(ctx context.Context, f *frame, c ir.Call) error {
	logger.LogCall(c.Callee(), len(m.stack), len(c.Args))
	if c.IsMethod() {
		return m.callMethod(ctx, c)
	}
	return m.callFunction(ctx, f, c)
}

func (m *Machine) callFunction(ctx context.Context, caller *frame, c ir.Call) error {
	def, ok := m.defs[c.Name]
	if !ok || def.Header.Kind != ir.BlockFunction {
		if h := m.cfg.Handlers.Lookup(c.Name); h != nil {
			args := make([]Value, len(c.Args))
			for i, a := range c.Args {
				args[i] = m.argument(caller, a)
			}
			m.native(c.Name, h, args)
			return nil
		}
		m.diagnose("Function %s not defined", c.Name)
		return nil
	}
	if len(m.stack) >= m.cfg.MaxDepth {
		m.diagnose("Call depth exceeded calling %s", c.Name)
		return nil
	}

	env := Env{}
	params := def.Header.Params
	for i := 0; i < len(params) && i < len(c.Args); i++ {
		env[params[i]] = m.argument(caller, c.Args[i])
	}

	result, _, err := m.invoke(ctx, newFrame(c.Name, def.Body, env))
	if err != nil {
		return err
	}
	m.diagnose("Function returned: %s", result)
	return nil
}

// callMethod looks the method up by name inside the class body and runs it
// in a fresh frame. Method arguments are never bound.
func (m *Machine) callMethod(ctx context.Context, c ir.Call) error {
	def, ok := m.defs[c.Object]
	if !ok || def.Header.Kind != ir.BlockClass {
		if h := m.cfg.Handlers.Lookup(c.Callee()); h != nil {
			m.native(c.Callee(), h, nil)
			return nil
		}
		m.diagnose("Class %s not defined", c.Object)
		return nil
	}

	body, found := methodBody(def.Body, c.Method)
	if !found {
		m.diagnose("Method %s not found in %s", c.Method, c.Object)
		return nil
	}
	if len(m.stack) >= m.cfg.MaxDepth {
		m.diagnose("Call depth exceeded calling %s", c.Callee())
		return nil
	}

	result, _, err := m.invoke(ctx, newFrame(c.Callee(), body, nil))
	if err != nil {
		return err
	}
	m.diagnose("Function returned: %s", result)
	return nil
}

// methodBody collects the lines between "function name" and the next
// "end function" in a class body.
func methodBody(class []ir.Instr, name string) ([]ir.Instr, bool) {
	for i, in := range class {
		h, ok := in.(ir.Header)
		if !ok || h.Kind != ir.BlockFunction || h.Name != name {
			continue
		}
		body := []ir.Instr{}
		for _, line := range class[i+1:] {
			if isEnd(line, ir.BlockFunction) {
				break
			}
			body = append(body, line)
		}
		return body, true
	}
	return nil, false
}

func (m *Machine) native(name string, h HandlerFunc, args []Value) {
	result, err := h(args)
	if err != nil {
		m.diagnose("Function %s failed: %v", name, err)
		return
	}
	m.diagnose("Function returned: %s", result)
}

func (m *Machine) println(s string) {
	if m.err != nil {
		return
	}
	if _, err := io.WriteString(m.out, s+"\n"); err != nil {
		m.err = fmt.Errorf("writing output: %w", err)
	}
}

func (m *Machine) diagnose(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	logger.LogDiagnostic(msg)
	if m.err != nil {
		return
	}
	if _, err := io.WriteString(m.diag, msg+"\n"); err != nil {
		m.err = fmt.Errorf("writing diagnostics: %w", err)
	}
}
