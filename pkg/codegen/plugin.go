// This file contains plugin mode generation for c-shared libraries.

package codegen

import (
	"github.com/dave/jennifer/jen"

	"github.com/chazu/emoc/pkg/ir"
)

// GeneratePlugin produces Go source for a c-shared plugin serving the
// functions and methods defined in prog through the Invoke export read by
// pkg/native. Main code is not run.
// The output can be built with: go build -buildmode=c-shared -o name.so
func GeneratePlugin(prog []ir.Instr, opts Options) *Result {
	g := &generator{prog: prog, opts: opts}
	g.scan()

	defs := 0
	for _, in := range prog {
		if _, ok := in.(ir.Header); ok {
			defs++
		}
	}
	if defs == 0 {
		g.warnings = append(g.warnings, "program defines no functions or classes; every Invoke will fail")
	}

	f := jen.NewFile("main")
	f.CgoPreamble("#include <stdlib.h>")
	g.header(f)
	g.generateProgram(f)
	f.Line()
	g.generatePluginExports(f)
	f.Line()
	g.generateReply(f)
	f.Line()

	// Empty main (required for c-shared but unused)
	f.Func().Id("main").Params().Block()

	return g.render(f)
}

// generatePluginExports emits
//
//	//export Invoke
//	func Invoke(name *C.char, argsJSON *C.char) *C.char
func (g *generator) generatePluginExports(f *jen.File) {
	body := []jen.Code{
		jen.Var().Id("args").Index().Qual(runtimePath, "Value"),
		jen.If(
			jen.Err().Op(":=").Qual("encoding/json", "Unmarshal").Call(
				jen.Index().Byte().Parens(jen.Qual("C", "GoString").Call(jen.Id("argsJSON"))),
				jen.Op("&").Id("args"),
			),
			jen.Err().Op("!=").Nil(),
		).Block(
			jen.Return(jen.Id("reply").Call(jen.Qual(runtimePath, "None"), jen.Err())),
		),
	}
	body = append(body, g.handlerStatements()...)
	body = append(body,
		jen.Id("m").Op(":=").Qual(runtimePath, "New").Call(jen.Qual("os", "Stdout"), g.runtimeConfig(jen.Qual("io", "Discard"))),
		jen.List(jen.Id("v"), jen.Err()).Op(":=").Id("m").Dot("Invoke").Call(
			jen.Qual("context", "Background").Call(),
			jen.Id("prog"),
			jen.Qual("C", "GoString").Call(jen.Id("name")),
			jen.Id("args"),
		),
		jen.Return(jen.Id("reply").Call(jen.Id("v"), jen.Err())),
	)

	f.Comment("//export Invoke")
	f.Func().Id("Invoke").Params(
		jen.Id("name").Op("*").Qual("C", "char"),
		jen.Id("argsJSON").Op("*").Qual("C", "char"),
	).Op("*").Qual("C", "char").Block(body...)
}

// generateReply emits the helper encoding {"result": v} or {"error": msg}.
func (g *generator) generateReply(f *jen.File) {
	f.Func().Id("reply").Params(
		jen.Id("v").Qual(runtimePath, "Value"),
		jen.Err().Error(),
	).Op("*").Qual("C", "char").Block(
		jen.Id("out").Op(":=").Map(jen.String()).Interface().Values(jen.Dict{
			jen.Lit("result"): jen.Id("v"),
		}),
		jen.If(jen.Err().Op("!=").Nil()).Block(
			jen.Id("out").Op("=").Map(jen.String()).Interface().Values(jen.Dict{
				jen.Lit("error"): jen.Err().Dot("Error").Call(),
			}),
		),
		jen.List(jen.Id("data"), jen.Id("_")).Op(":=").Qual("encoding/json", "Marshal").Call(jen.Id("out")),
		jen.Return(jen.Qual("C", "CString").Call(jen.String().Parens(jen.Id("data")))),
	)
}
