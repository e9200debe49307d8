package main

import (
	"context"
	"reflect"
	"testing"

	"github.com/chazu/emoc/pkg/ast"
	"github.com/chazu/emoc/pkg/config"
)

func TestSessionShowsOnlyNewOutput(t *testing.T) {
	s := &session{cfg: config.Default()}
	ctx := context.Background()

	steps := []struct {
		entry string
		want  []string
	}{
		{`x = 2;`, nil},
		{`🖨️(x ➕ 1);`, []string{"3"}},
		{`🎭 twice(n) { 🔙 n * 2; }`, nil},
		{`call twice(x);`, []string{"Function returned: 4"}},
		{`call abs(-7);`, []string{"Function returned: 7"}},
	}
	for _, step := range steps {
		_, out, err := s.eval(ctx, step.entry)
		if err != nil {
			t.Fatalf("eval(%q) error = %v", step.entry, err)
		}
		if !reflect.DeepEqual(out, step.want) {
			t.Errorf("eval(%q) = %q, want %q", step.entry, out, step.want)
		}
	}
}

func TestSessionRejectsBadEntry(t *testing.T) {
	s := &session{cfg: config.Default()}
	ctx := context.Background()

	if _, _, err := s.eval(ctx, `🖨️(ghost);`); err == nil {
		t.Fatal("undefined variable accepted")
	}
	if _, _, err := s.eval(ctx, `x = ;`); err == nil {
		t.Fatal("syntax error accepted")
	}
	if len(s.source) != 0 {
		t.Errorf("rejected entries kept: %q", s.source)
	}

	s.showTAC = true
	tac, out, err := s.eval(ctx, `🖨️("ok");`)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(out, []string{"ok"}) || !reflect.DeepEqual(tac, []string{`print "ok"`}) {
		t.Errorf("eval() = %q, %q", tac, out)
	}

	s.reset()
	if len(s.source) != 0 || s.printed != 0 {
		t.Error("reset() kept state")
	}
}

func TestOpenBraces(t *testing.T) {
	tests := []struct {
		src  string
		want int
	}{
		{`x = 1;`, 0},
		{`🎭 f() {`, 1},
		{"🎭 f() {\n🤔 (1) {", 2},
		{"🎭 f() {\n}", 0},
		{`🖨️("{");`, 0},
		{`"unterminated {`, 0},
	}
	for _, tt := range tests {
		if got := openBraces(tt.src); got != tt.want {
			t.Errorf("openBraces(%q) = %d, want %d", tt.src, got, tt.want)
		}
	}
}

func TestCacheable(t *testing.T) {
	cfg := config.Default()
	if !cacheable(cfg) {
		t.Error("default settings should use the cache")
	}
	for _, mutate := range []func(*config.Config){
		func(c *config.Config) { c.NoCache = true },
		func(c *config.Config) { c.NoCheck = true },
		func(c *config.Config) { c.KeepAcrossLabels = true },
		func(c *config.Config) { c.Builtins = false },
		func(c *config.Config) { c.NativeDir = "/opt/emoc/plugins" },
	} {
		c := config.Default()
		mutate(&c)
		if cacheable(c) {
			t.Errorf("cacheable(%+v) = true", c)
		}
	}
}

func TestCountDefinitions(t *testing.T) {
	prog := ast.Program(
		ast.Function("f", nil),
		ast.Class("C", ast.Function("m", nil), ast.Function("n", nil)),
		ast.Print(ast.Num(1)),
	)
	if got := countDefinitions(prog); got != 4 {
		t.Errorf("countDefinitions() = %d, want 4", got)
	}
}
