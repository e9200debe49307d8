package codegen_test

import (
	"strings"
	"testing"

	"github.com/chazu/emoc/pkg/codegen"
	"github.com/chazu/emoc/pkg/ir"
)

const sample = `function add(x, y):
    return x ➕ y
end function
a = 5
print a
call add(3, 4)
`

func TestGenerate(t *testing.T) {
	result := codegen.Generate(ir.ParseText(sample), codegen.Options{Source: "add.ec"})
	if len(result.Warnings) > 0 {
		t.Fatalf("unexpected warnings: %v", result.Warnings)
	}

	for _, want := range []string{
		"// Code generated by emoc. DO NOT EDIT.",
		"// Compiled from add.ec.",
		"package main",
		`"function add(x, y):"`,
		`"    return x ➕ y"`,
		`"call add(3, 4)"`,
		`ir.ParseText(strings.Join(program, "\n"))`,
		"runtime.New(os.Stdout, &runtime.Config{",
		"Diagnostics: os.Stdout,",
		"m.Run(context.Background(), prog)",
		`"github.com/chazu/emoc/pkg/runtime"`,
	} {
		if !strings.Contains(result.Code, want) {
			t.Errorf("generated code missing %q\n%s", want, result.Code)
		}
	}
	if strings.Contains(result.Code, "handlers") {
		t.Error("handlers should only be emitted when requested")
	}
}

func TestGenerateHandlers(t *testing.T) {
	result := codegen.Generate(ir.ParseText("call abs(-1)\n"), codegen.Options{
		Builtins:  true,
		NativeDir: "/opt/emoc/plugins",
		MaxDepth:  64,
		MaxSteps:  1000,
	})

	for _, want := range []string{
		"handlers := runtime.NewHandlerRegistry()",
		"runtime.RegisterBuiltins(handlers)",
		`handlers.AddResolver(native.NewLoader("/opt/emoc/plugins"))`,
		"Handlers:",
		"MaxDepth:",
		"64",
		"MaxSteps:",
		"1000",
	} {
		if !strings.Contains(result.Code, want) {
			t.Errorf("generated code missing %q\n%s", want, result.Code)
		}
	}
}

func TestGenerateWarnsOnUnknown(t *testing.T) {
	result := codegen.Generate(ir.ParseText("frobnicate\nprint 1\n"), codegen.Options{})
	if len(result.Warnings) != 1 || !strings.Contains(result.Warnings[0], "frobnicate") {
		t.Errorf("Warnings = %v", result.Warnings)
	}
	if result.Code == "" {
		t.Error("code should still be generated")
	}
}

func TestGenerateEmpty(t *testing.T) {
	result := codegen.Generate(nil, codegen.Options{})
	if !strings.Contains(result.Code, "func main()") {
		t.Errorf("generated code missing main\n%s", result.Code)
	}
}

func TestGeneratePlugin(t *testing.T) {
	result := codegen.GeneratePlugin(ir.ParseText(sample), codegen.Options{})
	if len(result.Warnings) > 0 {
		t.Fatalf("unexpected warnings: %v", result.Warnings)
	}
	for _, want := range []string{
		`import "C"`,
		"//export Invoke",
		"func Invoke(name *C.char, argsJSON *C.char) *C.char",
		"json.Unmarshal([]byte(C.GoString(argsJSON)), &args)",
		"m.Invoke(context.Background(), prog, C.GoString(name), args)",
		"Diagnostics: io.Discard",
		`"error": err.Error()`,
		"C.CString(string(data))",
		"func main() {}",
	} {
		if !strings.Contains(result.Code, want) {
			t.Errorf("plugin code missing %q\n%s", want, result.Code)
		}
	}
}

func TestGeneratePluginWithoutDefinitions(t *testing.T) {
	result := codegen.GeneratePlugin(ir.ParseText("print 1\n"), codegen.Options{})
	if len(result.Warnings) != 1 || !strings.Contains(result.Warnings[0], "defines no functions") {
		t.Errorf("Warnings = %v", result.Warnings)
	}
}
