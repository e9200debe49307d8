// This file emits the handler registry generated programs use for calls
// the program itself does not define.

package codegen

import (
	"github.com/dave/jennifer/jen"
)

func (g *generator) needsHandlers() bool {
	return g.opts.Builtins || g.opts.NativeDir != ""
}

// handlerStatements declares and fills "handlers" when the program needs
// builtins or plugins.
func (g *generator) handlerStatements() []jen.Code {
	if !g.needsHandlers() {
		return nil
	}
	stmts := []jen.Code{
		jen.Id("handlers").Op(":=").Qual(runtimePath, "NewHandlerRegistry").Call(),
	}
	if g.opts.Builtins {
		stmts = append(stmts, jen.Qual(runtimePath, "RegisterBuiltins").Call(jen.Id("handlers")))
	}
	if g.opts.NativeDir != "" {
		stmts = append(stmts, jen.Id("handlers").Dot("AddResolver").Call(
			jen.Qual(nativePath, "NewLoader").Call(jen.Lit(g.opts.NativeDir)),
		))
	}
	return stmts
}
