// Package codegen generates Go programs from optimized TAC.
//
// The generated code embeds the TAC listing line by line and hands it to
// pkg/runtime at start-up, so a compiled EmoCode program is an ordinary Go
// binary (Generate) or a c-shared plugin (GeneratePlugin).
package codegen

import (
	"bytes"
	"fmt"

	"github.com/dave/jennifer/jen"

	"github.com/chazu/emoc/pkg/ir"
)

const (
	irPath      = "github.com/chazu/emoc/pkg/ir"
	runtimePath = "github.com/chazu/emoc/pkg/runtime"
	nativePath  = "github.com/chazu/emoc/pkg/native"
)

// Result contains the generated code and any warnings.
type Result struct {
	Code     string
	Warnings []string
}

// Options control generation.
type Options struct {
	Source    string // source file name recorded in the header comment
	MaxDepth  int    // runtime.Config.MaxDepth; 0 keeps the runtime default
	MaxSteps  int    // runtime.Config.MaxSteps
	Builtins  bool   // register runtime.RegisterBuiltins
	NativeDir string // resolve undefined calls from plugins in this directory
}

type generator struct {
	prog     []ir.Instr
	opts     Options
	warnings []string
}

// Generate produces a standalone main package that runs prog.
func Generate(prog []ir.Instr, opts Options) *Result {
	g := &generator{prog: prog, opts: opts}
	g.scan()

	f := jen.NewFile("main")
	g.header(f)
	g.generateProgram(f)
	f.Line()
	g.generateMain(f)

	return g.render(f)
}

// scan records warnings for lines the runtime will ignore.
func (g *generator) scan() {
	for _, in := range g.prog {
		if u, ok := in.(ir.Unknown); ok {
			g.warnings = append(g.warnings, fmt.Sprintf("unrecognized instruction %q will be skipped", u.Text))
		}
	}
}

func (g *generator) header(f *jen.File) {
	f.HeaderComment("Code generated by emoc. DO NOT EDIT.")
	if g.opts.Source != "" {
		f.PackageComment("Compiled from " + g.opts.Source + ".")
	}
}

// generateProgram emits the TAC listing and its parsed form.
func (g *generator) generateProgram(f *jen.File) {
	lines := ir.Lines(g.prog)
	f.Comment("program is the optimized TAC listing.")
	f.Var().Id("program").Op("=").Index().String().ValuesFunc(func(grp *jen.Group) {
		for _, line := range lines {
			grp.Line().Lit(line)
		}
		if len(lines) > 0 {
			grp.Line()
		}
	})
	f.Line()
	f.Var().Id("prog").Op("=").Qual(irPath, "ParseText").Call(
		jen.Qual("strings", "Join").Call(jen.Id("program"), jen.Lit("\n")),
	)
}

func (g *generator) generateMain(f *jen.File) {
	body := []jen.Code{}
	body = append(body, g.handlerStatements()...)
	body = append(body,
		jen.Id("m").Op(":=").Qual(runtimePath, "New").Call(jen.Qual("os", "Stdout"), g.runtimeConfig(jen.Qual("os", "Stdout"))),
		jen.If(
			jen.Err().Op(":=").Id("m").Dot("Run").Call(jen.Qual("context", "Background").Call(), jen.Id("prog")),
			jen.Err().Op("!=").Nil(),
		).Block(
			jen.Qual("fmt", "Fprintf").Call(jen.Qual("os", "Stderr"), jen.Lit("Error: %v\n"), jen.Err()),
			jen.Qual("os", "Exit").Call(jen.Lit(1)),
		),
	)
	f.Func().Id("main").Params().Block(body...)
}

// runtimeConfig builds the &runtime.Config{...} literal.
func (g *generator) runtimeConfig(diagnostics jen.Code) *jen.Statement {
	fields := jen.Dict{
		jen.Id("Diagnostics"): diagnostics,
	}
	if g.opts.MaxDepth > 0 {
		fields[jen.Id("MaxDepth")] = jen.Lit(g.opts.MaxDepth)
	}
	if g.opts.MaxSteps > 0 {
		fields[jen.Id("MaxSteps")] = jen.Lit(g.opts.MaxSteps)
	}
	if g.needsHandlers() {
		fields[jen.Id("Handlers")] = jen.Id("handlers")
	}
	return jen.Op("&").Qual(runtimePath, "Config").Values(fields)
}

func (g *generator) render(f *jen.File) *Result {
	var buf bytes.Buffer
	if err := f.Render(&buf); err != nil {
		return &Result{
			Code:     "",
			Warnings: append(g.warnings, "render error: "+err.Error()),
		}
	}
	return &Result{
		Code:     buf.String(),
		Warnings: g.warnings,
	}
}
