package optimizer

import (
	"reflect"
	"testing"

	"github.com/chazu/emoc/pkg/ast"
	"github.com/chazu/emoc/pkg/ir"
)

func TestPropagateAndFold(t *testing.T) {
	prog := ir.Lower(ast.Program(
		ast.Assign("a", ast.Num(2)),
		ast.Assign("b", ast.Num(3)),
		ast.Assign("c", ast.BinOp("➕", ast.Var("a"), ast.Var("b"))),
		ast.Print(ast.Var("c")),
	))

	got := ir.Format(Optimize(prog))
	want := "a = 2\nb = 3\nt1 = 5\nc = 5\nprint 5\n"
	if got != want {
		t.Errorf("Optimize() =\n%s\nwant:\n%s", got, want)
	}
}

func TestFloorDivision(t *testing.T) {
	tests := []struct {
		line string
		want string
	}{
		{"t = 7 / 2", "t = 3"},
		{"t = -7 / 2", "t = -4"},
		{"t = 7 / -2", "t = -4"},
		{"t = -7 / -2", "t = 3"},
		{"t = 6 ➗ 3", "t = 2"},
		{"t = 7 / 0", "t = 7 ➗ 0"},
		{"t = 4 ➖ 9", "t = -5"},
		{"t = 4 ✖️ 9", "t = 36"},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got := Optimize(ir.ParseText(tt.line))
			if len(got) != 1 || ir.InstrString(got[0]) != tt.want {
				t.Errorf("Optimize(%q) = %q, want %q", tt.line, ir.Format(got), tt.want)
			}
		})
	}
}

func TestComparisonsAreNotFolded(t *testing.T) {
	got := Optimize(ir.ParseText("x = 5\nt1 = x 📈 3\nifFalse t1 goto L1\nL1:"))
	if s := ir.InstrString(got[1]); s != "t1 = 5 📈 3" {
		t.Errorf("comparison line = %q", s)
	}
	if s := ir.InstrString(got[2]); s != "ifFalse t1 goto L1" {
		t.Errorf("branch line = %q", s)
	}
}

func TestWholeNameSubstitution(t *testing.T) {
	got := Optimize(ir.ParseText("t1 = 4\nt10 = 2\nt11 = t1 + t10\nprint t11\nprint t1x"))
	want := "t1 = 4\nt10 = 2\nt11 = 6\nprint 6\nprint t1x\n"
	if s := ir.Format(got); s != want {
		t.Errorf("Optimize() =\n%s\nwant:\n%s", s, want)
	}
}

func TestReassignmentForgetsConstant(t *testing.T) {
	got := Optimize(ir.ParseText("x = 1\nx = y + 1\nprint x"))
	if s := ir.InstrString(got[2]); s != "print x" {
		t.Errorf("print line = %q, want print x", s)
	}
}

func TestCallsPassThrough(t *testing.T) {
	got := Optimize(ir.ParseText("a = 3\ncall f(a, 4)\nprint a"))
	if s := ir.InstrString(got[1]); s != "call f(a, 4)" {
		t.Errorf("call line = %q", s)
	}
	if s := ir.InstrString(got[2]); s != "print 3" {
		t.Errorf("calls must not invalidate constants, got %q", s)
	}
}

func TestLabelsEndPropagation(t *testing.T) {
	src := "x = 1\nifFalse c goto L1\nx = 2\nL1:\nprint x"

	sound := Optimize(ir.ParseText(src))
	if s := ir.InstrString(sound[4]); s != "print x" {
		t.Errorf("default pass propagated across a join: %q", s)
	}

	unsound := New(Options{KeepAcrossLabels: true}).Run(ir.ParseText(src))
	if s := ir.InstrString(unsound[4]); s != "print 2" {
		t.Errorf("KeepAcrossLabels should keep the last constant, got %q", s)
	}
}

func TestFunctionBodiesStartFresh(t *testing.T) {
	src := "x = 9\nfunction f(x):\n    return x\nend function\nprint x"
	got := Optimize(ir.ParseText(src))

	if s := ir.InstrString(got[2]); s != "return x" {
		t.Errorf("parameter substituted from caller constant: %q", s)
	}
	if s := ir.InstrString(got[4]); s != "print 9" {
		t.Errorf("main constants should survive the block, got %q", s)
	}
}

func TestUnchangedWithoutConstants(t *testing.T) {
	prog := ir.ParseText("t1 = a + b\nprint t1\ncall g(t1)\nL1:\ngoto L1")
	o := New(Options{})
	got := o.Run(prog)
	if !reflect.DeepEqual(got, prog) {
		t.Errorf("Run() changed code:\n%s", ir.Format(got))
	}
	if o.Changes() != 0 {
		t.Errorf("Changes() = %d, want 0", o.Changes())
	}
}

func TestIdempotent(t *testing.T) {
	programs := map[string][]ir.Instr{
		"chain": ir.ParseText("a = 2\nb = a\nc = b * 3\nd = c - a\nprint d"),
		"branches": ir.Lower(ast.Program(
			ast.Assign("x", ast.Num(4)),
			ast.IfElse(ast.RelOp(">", ast.Var("x"), ast.Num(3)),
				[]*ast.Node{ast.Assign("y", ast.BinOp("+", ast.Var("x"), ast.Num(1)))},
				[]*ast.Node{ast.Assign("y", ast.Num(0))},
			),
			ast.Print(ast.Var("y")),
		)),
		"function": ir.ParseText("n = 2\nfunction f(a):\n    t1 = a + n\n    return t1\nend function\ncall f(n)\nprint n"),
		"compound": ir.ParseText("k = 3\nt = k + 2 * k\nprint t\nr = 10 / 0\nprint r"),
	}

	for name, prog := range programs {
		t.Run(name, func(t *testing.T) {
			once := Optimize(prog)
			twice := Optimize(once)
			if !reflect.DeepEqual(once, twice) {
				t.Errorf("not idempotent:\n%s\nvs\n%s", ir.Format(once), ir.Format(twice))
			}
		})
	}
}
