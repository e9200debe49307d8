package compiler

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/chazu/emoc/pkg/ast"
	"github.com/chazu/emoc/pkg/ir"
	"github.com/chazu/emoc/pkg/optimizer"
	"github.com/chazu/emoc/pkg/runtime"
)

// TestGolden compiles and runs every testdata/<case>/input.ec and compares
// the output with expected.txt, and the TAC with expected.tac when present.
func TestGolden(t *testing.T) {
	dirs, err := filepath.Glob(filepath.Join("..", "..", "testdata", "*", "input.ec"))
	if err != nil {
		t.Fatal(err)
	}
	if len(dirs) == 0 {
		t.Fatal("no golden cases found")
	}

	for _, input := range dirs {
		dir := filepath.Dir(input)
		t.Run(filepath.Base(dir), func(t *testing.T) {
			src, err := os.ReadFile(input)
			if err != nil {
				t.Fatal(err)
			}
			node, err := Load(input, src)
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			u, err := Compile(node, Options{})
			if err != nil {
				t.Fatalf("Compile() error = %v", err)
			}

			want, err := os.ReadFile(filepath.Join(dir, "expected.txt"))
			if err != nil {
				t.Fatal(err)
			}
			var out bytes.Buffer
			if err := Execute(context.Background(), u, &out, nil); err != nil {
				t.Fatalf("Execute() error = %v", err)
			}
			if out.String() != string(want) {
				t.Errorf("output =\n%s\nwant:\n%s", out.String(), want)
			}

			tac, err := os.ReadFile(filepath.Join(dir, "expected.tac"))
			if errors.Is(err, os.ErrNotExist) {
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got := u.TAC(); got != string(tac) {
				t.Errorf("TAC =\n%s\nwant:\n%s", got, tac)
			}
		})
	}
}

// interpret evaluates a call-free program directly over the syntax tree.
func interpret(t *testing.T, prog *ast.Node) []string {
	t.Helper()
	env := runtime.Env{}
	var out []string

	var eval func(n *ast.Node) runtime.Value
	eval = func(n *ast.Node) runtime.Value {
		switch n.Type {
		case ast.TypeNumber:
			return runtime.Number(n.Number)
		case ast.TypeString:
			return runtime.String(n.Text)
		case ast.TypeVar:
			v, ok := env[n.Name]
			if !ok {
				t.Fatalf("reference interpreter: unbound %s", n.Name)
			}
			return v
		case ast.TypeBinOp, ast.TypeRelOp:
			op, ok := ir.LookupOp(n.Op)
			if !ok {
				t.Fatalf("reference interpreter: operator %q", n.Op)
			}
			v, err := runtime.Apply(op, eval(n.Left), eval(n.Right))
			if err != nil {
				t.Fatalf("reference interpreter: %v", err)
			}
			return v
		}
		t.Fatalf("reference interpreter: %s in expression position", n.Type)
		return runtime.None
	}

	var run func(stmts []*ast.Node)
	run = func(stmts []*ast.Node) {
		for _, s := range stmts {
			switch s.Type {
			case ast.TypeAssign:
				env[s.Name] = eval(s.Value)
			case ast.TypePrint:
				out = append(out, eval(s.Value).String())
			case ast.TypeIf:
				if eval(s.Cond).Truthy() {
					run(s.Then)
				}
			case ast.TypeIfElse:
				if eval(s.Cond).Truthy() {
					run(s.Then)
				} else {
					run(s.Else)
				}
			default:
				t.Fatalf("reference interpreter: unsupported %s", s.Type)
			}
		}
	}
	run(prog.Body)
	return out
}

var callFree = map[string]string{
	"fold":  "a = 2; b = 3; c = a ➕ b; 🖨️(c);",
	"chain": "x = 6; y = x * 7; z = y - x / 4; 🖨️(z); 🖨️(y);",
	"branch taken": `x = 1; c = 1;
		🤔 (c) { x = 2; }
		🖨️(x);`,
	"branch skipped": `x = 1; c = 0;
		🤔 (c) { x = 2; }
		🖨️(x);`,
	"both arms assign": `x = 3;
		🤔 (x 📈 2) { y = 10; } 🔄 { y = 20; }
		z = y ➕ 1;
		🖨️(z);`,
	"reassigned after branch": `x = 5;
		🤔 (x 🟰 5) { x = x * 2; }
		x = x + 1;
		🖨️(x);`,
	"else if": `n = 7;
		🤔 (n 📉 5) { 🖨️("low"); } 🔄 🤔 (n 📉 10) { 🖨️("mid"); } 🔄 { 🖨️("high"); }`,
	"strings": `s = "a"; 🤔 (s 🟰 "a") { s = s + "b"; } 🖨️(s);`,
	"division": "q = -9 / 4; r = 9 ➗ -4; 🖨️(q); 🖨️(r);",
	"temp-like names": "t1 = 10; x = 2 ➕ 3; 🖨️(t1); 🖨️(x); t2 = t1 * x; 🖨️(t2);",
}

// TestOptimizedMatchesReference checks that lowering and optimizing a
// program never changes what it prints.
func TestOptimizedMatchesReference(t *testing.T) {
	for name, src := range callFree {
		t.Run(name, func(t *testing.T) {
			node, err := ParseSource(src)
			if err != nil {
				t.Fatalf("ParseSource() error = %v", err)
			}
			want := interpret(t, node)

			u, err := Compile(node, Options{})
			if err != nil {
				t.Fatalf("Compile() error = %v", err)
			}
			if got := runtime.Execute(u.Raw); !reflect.DeepEqual(got, want) {
				t.Errorf("unoptimized output = %q, want %q", got, want)
			}
			if got := Output(u); !reflect.DeepEqual(got, want) {
				t.Errorf("optimized output = %q, want %q\nTAC:\n%s", got, want, u.TAC())
			}
		})
	}
}

func TestKeepAcrossLabelsLeaksBranchConstants(t *testing.T) {
	node, err := ParseSource(callFree["branch skipped"])
	if err != nil {
		t.Fatal(err)
	}
	u, err := Compile(node, Options{Optimizer: optimizer.Options{KeepAcrossLabels: true}})
	if err != nil {
		t.Fatal(err)
	}
	// The constant from the untaken branch reaches the print.
	if got := Output(u); !reflect.DeepEqual(got, []string{"2"}) {
		t.Errorf("Output() = %q, want [2]", got)
	}
}

func TestOptimizeIsIdempotent(t *testing.T) {
	for name, src := range callFree {
		t.Run(name, func(t *testing.T) {
			node, err := ParseSource(src)
			if err != nil {
				t.Fatal(err)
			}
			u, err := Compile(node, Options{})
			if err != nil {
				t.Fatal(err)
			}
			again := optimizer.Optimize(u.Optimized)
			if ir.Format(again) != u.TAC() {
				t.Errorf("second pass changed the program:\n%s\nvs\n%s", ir.Format(again), u.TAC())
			}
		})
	}
}

func TestCompileRejectsInvalidProgram(t *testing.T) {
	node, err := ParseSource("🖨️(ghost); call nowhere();")
	if err != nil {
		t.Fatal(err)
	}
	u, err := Compile(node, Options{})
	if !errors.Is(err, ErrCheck) {
		t.Fatalf("Compile() error = %v, want ErrCheck", err)
	}
	if len(u.Diagnostics) != 2 {
		t.Errorf("Diagnostics = %v, want 2", u.Diagnostics)
	}
	if u.Optimized != nil {
		t.Errorf("rejected program was lowered: %v", u.Optimized)
	}
	if !strings.Contains(err.Error(), "Undefined variable: ghost") {
		t.Errorf("error %q does not mention the undefined variable", err)
	}
}

func TestCompileNoCheck(t *testing.T) {
	node, err := ParseSource("call nowhere(); 🖨️(ghost);")
	if err != nil {
		t.Fatal(err)
	}
	u, err := Compile(node, Options{NoCheck: true})
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	want := []string{"Function nowhere not defined", "ghost"}
	if got := Output(u); !reflect.DeepEqual(got, want) {
		t.Errorf("Output() = %q, want %q", got, want)
	}
}

func TestCompileReportsChanges(t *testing.T) {
	node, err := ParseSource(callFree["fold"])
	if err != nil {
		t.Fatal(err)
	}
	u, err := Compile(node, Options{})
	if err != nil {
		t.Fatal(err)
	}
	// t1 = a ➕ b, c = t1 and print c are rewritten.
	if u.Changes != 3 {
		t.Errorf("Changes = %d, want 3", u.Changes)
	}
	if len(u.Raw) != len(u.Optimized) {
		t.Errorf("optimizer changed instruction count: %d -> %d", len(u.Raw), len(u.Optimized))
	}
}

func TestLoad(t *testing.T) {
	tree := `{"type":"program","body":[{"type":"print","value":{"type":"number","number":42}}]}`

	tests := []struct {
		name string
		file string
		data string
	}{
		{"json file", "prog.json", tree},
		{"json on stdin", "-", "  " + tree},
		{"unnamed json", "", tree},
		{"source file", "prog.ec", "🖨️(42);"},
		{"source on stdin", "-", "🖨️(42);"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node, err := Load(tt.file, []byte(tt.data))
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			u, err := Compile(node, Options{})
			if err != nil {
				t.Fatal(err)
			}
			if got := Output(u); !reflect.DeepEqual(got, []string{"42"}) {
				t.Errorf("Output() = %q, want [42]", got)
			}
		})
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load("bad.json", []byte(`{"type":"program","body":[{"type":"nonsense"}]}`)); err == nil {
		t.Error("Load() accepted an invalid tree")
	}
	if _, err := Load("bad.ec", []byte("x = ;")); err == nil {
		t.Error("Load() accepted invalid source")
	}
}

func TestExecuteWithConfig(t *testing.T) {
	node, err := ParseSource("call abs(-5);")
	if err != nil {
		t.Fatal(err)
	}
	u, err := Compile(node, Options{NoCheck: true})
	if err != nil {
		t.Fatal(err)
	}

	handlers := runtime.NewHandlerRegistry()
	runtime.RegisterBuiltins(handlers)

	var out, diag bytes.Buffer
	cfg := &runtime.Config{Handlers: handlers, Diagnostics: &diag}
	if err := Execute(context.Background(), u, &out, cfg); err != nil {
		t.Fatal(err)
	}
	if out.Len() != 0 {
		t.Errorf("stdout = %q, want empty", out.String())
	}
	if diag.String() != "Function returned: 5\n" {
		t.Errorf("diagnostics = %q", diag.String())
	}
}
