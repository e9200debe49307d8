// Package main exposes the emoc front end and middle end with JSON output,
// for debugging and for comparing the optimized program against the
// unoptimized one.
//
// Usage:
//
//	emoc-inspect tokenize <file.ec>    # Output JSON tokens
//	emoc-inspect parse <file.ec>       # Output JSON AST
//	emoc-inspect check <file>          # Output JSON diagnostics
//	emoc-inspect tac <file>            # Output raw and optimized TAC as JSON
//	emoc-inspect compare <file>        # Run both and report any difference
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"reflect"

	"github.com/chazu/emoc/pkg/check"
	"github.com/chazu/emoc/pkg/compiler"
	"github.com/chazu/emoc/pkg/ir"
	"github.com/chazu/emoc/pkg/lexer"
	"github.com/chazu/emoc/pkg/parser"
	"github.com/chazu/emoc/pkg/runtime"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	commands := map[string]func(string) error{
		"tokenize": cmdTokenize,
		"parse":    cmdParse,
		"check":    cmdCheck,
		"tac":      cmdTAC,
		"compare":  cmdCompare,
	}

	switch command {
	case "-h", "--help", "help":
		printUsage()
		return
	}

	run, ok := commands[command]
	if !ok {
		fmt.Fprintf(os.Stderr, "Error: unknown command '%s'\n", command)
		printUsage()
		os.Exit(1)
	}
	if len(os.Args) < 3 {
		fmt.Fprintln(os.Stderr, "Error: missing file argument")
		printUsage()
		os.Exit(1)
	}
	if err := run(os.Args[2]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`emoc-inspect - Inspect emoc compiler stages

Usage:
  emoc-inspect tokenize <file.ec>    Output JSON tokens
  emoc-inspect parse <file.ec>       Output JSON AST
  emoc-inspect check <file>          Output JSON diagnostics
  emoc-inspect tac <file>            Output raw and optimized TAC as JSON
  emoc-inspect compare <file>        Run raw and optimized TAC and diff output
  emoc-inspect help                  Show this help message

Files ending in .json are read as syntax trees.

Examples:
  emoc-inspect tokenize hello.ec
  emoc-inspect parse hello.ec | jq .
  emoc-inspect compare hello.ec`)
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling: %w", err)
	}
	fmt.Println(string(out))
	return nil
}

// cmdTokenize reads a file and outputs JSON tokens, comments included.
func cmdTokenize(filename string) error {
	content, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("reading file: %w", err)
	}

	jsonOutput, err := lexer.New(string(content)).KeepComments().TokenizeJSON()
	if err != nil {
		return fmt.Errorf("tokenizing: %w", err)
	}
	fmt.Println(jsonOutput)
	return nil
}

// cmdParse reads a file, tokenizes, parses, and outputs the JSON AST. Parse
// errors are reported alongside whatever tree was recovered.
func cmdParse(filename string) error {
	content, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("reading file: %w", err)
	}

	tokens, err := lexer.New(string(content)).Tokenize()
	if err != nil {
		return fmt.Errorf("tokenizing: %w", err)
	}

	prog, parseErrors := parser.ParseTokens(tokens)
	if len(parseErrors) > 0 {
		result := map[string]interface{}{
			"error":  true,
			"errors": parseErrors,
		}
		if prog != nil {
			result["partial"] = prog
		}
		return printJSON(result)
	}
	return printJSON(prog)
}

func load(filename string) (*compiler.Unit, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	node, err := compiler.Load(filename, content)
	if err != nil {
		return nil, err
	}
	return compiler.Compile(node, compiler.Options{NoCheck: true})
}

// cmdCheck outputs the semantic diagnostics of a program.
func cmdCheck(filename string) error {
	content, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("reading file: %w", err)
	}
	node, err := compiler.Load(filename, content)
	if err != nil {
		return err
	}
	diags := check.Check(node)
	if diags == nil {
		diags = []check.Diagnostic{}
	}
	return printJSON(map[string]interface{}{
		"ok":          len(diags) == 0,
		"diagnostics": diags,
	})
}

// cmdTAC outputs both TAC listings and the lowering warnings.
func cmdTAC(filename string) error {
	u, err := load(filename)
	if err != nil {
		return err
	}
	return printJSON(map[string]interface{}{
		"raw":       ir.Lines(u.Raw),
		"optimized": ir.Lines(u.Optimized),
		"changes":   u.Changes,
		"warnings":  u.Warnings,
	})
}

// compare runs the raw and the optimized TAC of a program and returns both
// outputs.
func compare(filename string) (raw, optimized []string, err error) {
	u, err := load(filename)
	if err != nil {
		return nil, nil, err
	}
	return runtime.Execute(u.Raw), runtime.Execute(u.Optimized), nil
}

// cmdCompare reports whether the raw and the optimized output differ.
func cmdCompare(filename string) error {
	raw, optimized, err := compare(filename)
	if err != nil {
		return err
	}
	same := reflect.DeepEqual(raw, optimized)

	if err := printJSON(map[string]interface{}{
		"same":      same,
		"raw":       raw,
		"optimized": optimized,
	}); err != nil {
		return err
	}
	if !same {
		return fmt.Errorf("optimized output differs from unoptimized output")
	}
	return nil
}
