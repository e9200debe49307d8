// emoc - EmoCode compiler and runner
package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/chazu/emoc/pkg/ast"
	"github.com/chazu/emoc/pkg/check"
	"github.com/chazu/emoc/pkg/codegen"
	"github.com/chazu/emoc/pkg/compiler"
	"github.com/chazu/emoc/pkg/config"
	"github.com/chazu/emoc/pkg/ir"
	"github.com/chazu/emoc/pkg/logger"
	"github.com/chazu/emoc/pkg/store"
)

const (
	appName    = "emoc"
	versionStr = "0.1.0"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cmd := os.Args[1]
	switch cmd {
	case "run":
		os.Exit(cmdRun(os.Args[2:]))
	case "tac":
		os.Exit(cmdTAC(os.Args[2:]))
	case "check":
		os.Exit(cmdCheck(os.Args[2:]))
	case "build":
		os.Exit(cmdBuild(os.Args[2:]))
	case "history":
		os.Exit(cmdHistory(os.Args[2:]))
	case "forget":
		os.Exit(cmdForget(os.Args[2:]))
	case "repl":
		os.Exit(cmdRepl(os.Args[2:]))
	case "version":
		fmt.Printf("%s version %s\n", appName, versionStr)
	case "-h", "--help", "help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "%s: unknown command %q\n", appName, cmd)
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Printf(`EmoCode compiler %s

Usage:
  %s run [flags] <file>               Compile and run a program.
  %s tac [flags] [-raw] [-ascii] <file>  Print the three-address code.
  %s check [flags] <file>             Report semantic errors.
  %s build [flags] [-mode m] [-o out] <file>
                                        Generate Go source (binary or plugin).
  %s history [flags] [-n N] [file]    List recorded runs, newest first.
  %s history [flags] show <run-id>    Print one recorded run.
  %s forget [flags] <file>            Drop a program's cached artifact.
  %s repl [flags]                     Start the REPL.
  %s version                          Print the version.

<file> is EmoCode source, or a JSON syntax tree when it ends in .json.
Use - to read standard input.

Run '%s <command> -h' for the flags of a command.
`, versionStr, appName, appName, appName, appName, appName, appName, appName, appName, appName, appName)
}

// -----------------------------------------------------------------------------
// shared setup
// -----------------------------------------------------------------------------

// setup parses args into a flag set carrying every config flag plus the
// command's own, and installs the logger. The returned closer must be
// called before exit.
func setup(name string, args []string, extra func(fs *flag.FlagSet)) (config.Config, *flag.FlagSet, io.Closer, bool) {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
		return cfg, nil, nil, false
	}

	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	cfg.RegisterFlags(fs)
	if extra != nil {
		extra(fs)
	}
	if err := fs.Parse(args); err != nil {
		return cfg, nil, nil, false
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
		return cfg, nil, nil, false
	}

	closer, err := logger.Init(cfg.Logger(os.Stderr))
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
		return cfg, nil, nil, false
	}
	return cfg, fs, closer, true
}

// readInput reads the named file, or standard input for "-".
func readInput(name string) ([]byte, error) {
	if name == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(name)
}

func fileArg(fs *flag.FlagSet) (string, bool) {
	if fs.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: %s %s [flags] <file>\n", appName, fs.Name())
		return "", false
	}
	return fs.Arg(0), true
}

func compileOptions(cfg config.Config) compiler.Options {
	externals, err := cfg.Externals()
	if err != nil {
		logger.Warn("Could not list native plugins", "error", err)
	}
	return compiler.Options{
		NoCheck:   cfg.NoCheck,
		Check:     check.Options{Externals: externals},
		Optimizer: cfg.Optimizer(),
	}
}

// compileFile loads and compiles name, printing diagnostics and lowering
// warnings to stderr.
func compileFile(name string, data []byte, cfg config.Config) (*compiler.Unit, bool) {
	node, err := compiler.Load(name, data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", name, err)
		return nil, false
	}
	u, err := compiler.Compile(node, compileOptions(cfg))
	if err != nil {
		reportDiagnostics(name, u, err)
		return nil, false
	}
	for _, w := range u.Warnings {
		fmt.Fprintf(os.Stderr, "Warning: %s\n", w)
	}
	return u, true
}

func reportDiagnostics(name string, u *compiler.Unit, err error) {
	if u == nil || len(u.Diagnostics) == 0 {
		fmt.Fprintf(os.Stderr, "%s: %v\n", name, err)
		return
	}
	for _, d := range u.Diagnostics {
		fmt.Fprintf(os.Stderr, "%s:%d:%d: %s\n", name, d.Loc.Line, d.Loc.Col, d.Message)
	}
}

// cacheable reports whether compiled TAC may be shared through the store.
// The key covers only the source text, so runs with settings that change
// the TAC, skip the gate or change which external calls the gate accepts
// bypass the cache.
func cacheable(cfg config.Config) bool {
	if cfg.NoCache || cfg.NoCheck || cfg.KeepAcrossLabels {
		return false
	}
	return cfg.Builtins && cfg.NativeDir == ""
}

func openStore(cfg config.Config) (*store.Store, error) {
	return store.New(&store.Config{DBPath: cfg.CacheDB})
}

// signalContext returns a context cancelled by SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// -----------------------------------------------------------------------------
// run
// -----------------------------------------------------------------------------

func cmdRun(args []string) int {
	cfg, fs, closer, ok := setup("run", args, nil)
	if !ok {
		return 2
	}
	defer closer.Close()

	name, ok := fileArg(fs)
	if !ok {
		return 2
	}
	data, err := readInput(name)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: cannot read %s: %v\n", appName, name, err)
		return 1
	}

	var st *store.Store
	if cacheable(cfg) {
		st, err = openStore(cfg)
		if err != nil {
			logger.Warn("Artifact store unavailable", "error", err)
		} else {
			defer st.Close()
		}
	}

	key := store.Key(data)
	var prog []ir.Instr
	if st != nil {
		if a, err := st.LoadArtifact(key); err == nil {
			logger.Info("Using cached artifact", "key", key)
			prog = ir.ParseText(a.TAC)
		}
	}
	if prog == nil {
		u, ok := compileFile(name, data, cfg)
		if !ok {
			return 1
		}
		prog = u.Optimized
		if st != nil {
			if _, err := st.SaveArtifact(string(data), u.TAC(), u.Warnings); err != nil {
				logger.Warn("Could not cache artifact", "error", err)
			}
		}
	}

	ctx, cancel := signalContext()
	defer cancel()

	var captured bytes.Buffer
	out := io.Writer(os.Stdout)
	if st != nil {
		out = io.MultiWriter(os.Stdout, &captured)
	}
	runErr := compiler.Execute(ctx, &compiler.Unit{Optimized: prog}, out, cfg.Runtime(nil))

	if st != nil {
		if id, err := st.RecordRun(key, captured.String(), runErr); err != nil {
			logger.Warn("Could not record run", "error", err)
		} else {
			logger.Debug("Recorded run", "id", id)
		}
	}

	if runErr != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", appName, runErr)
		return 1
	}
	return 0
}

// -----------------------------------------------------------------------------
// tac
// -----------------------------------------------------------------------------

func cmdTAC(args []string) int {
	var raw, ascii bool
	cfg, fs, closer, ok := setup("tac", args, func(fs *flag.FlagSet) {
		fs.BoolVar(&raw, "raw", false, "print the TAC before optimization")
		fs.BoolVar(&ascii, "ascii", false, "print operators in ASCII")
	})
	if !ok {
		return 2
	}
	defer closer.Close()

	name, ok := fileArg(fs)
	if !ok {
		return 2
	}
	data, err := readInput(name)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: cannot read %s: %v\n", appName, name, err)
		return 1
	}
	u, ok := compileFile(name, data, cfg)
	if !ok {
		return 1
	}

	prog := u.Optimized
	if raw {
		prog = u.Raw
	}
	lines := ir.Lines(prog)
	if ascii {
		lines = ir.PlainLines(prog)
	}
	for _, line := range lines {
		fmt.Println(line)
	}
	if !raw {
		logger.Info("Optimized", "changes", u.Changes)
	}
	return 0
}

// -----------------------------------------------------------------------------
// check
// -----------------------------------------------------------------------------

func cmdCheck(args []string) int {
	cfg, fs, closer, ok := setup("check", args, nil)
	if !ok {
		return 2
	}
	defer closer.Close()

	name, ok := fileArg(fs)
	if !ok {
		return 2
	}
	data, err := readInput(name)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: cannot read %s: %v\n", appName, name, err)
		return 1
	}
	node, err := compiler.Load(name, data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", name, err)
		return 1
	}
	opts := compileOptions(cfg)
	opts.NoCheck = false
	u, err := compiler.Compile(node, opts)
	if err != nil {
		reportDiagnostics(name, u, err)
		return 1
	}
	fmt.Printf("%s: ok (%d definitions, %d instructions)\n", name, countDefinitions(node), len(u.Optimized))
	return 0
}

func countDefinitions(n *ast.Node) int {
	count := 0
	for _, s := range n.Body {
		switch s.Type {
		case ast.TypeFunctionDef:
			count++
		case ast.TypeClassDef:
			count += 1 + countDefinitions(s)
		}
	}
	return count
}

// -----------------------------------------------------------------------------
// build
// -----------------------------------------------------------------------------

func cmdBuild(args []string) int {
	var mode, output string
	var dryRun bool
	cfg, fs, closer, ok := setup("build", args, func(fs *flag.FlagSet) {
		fs.StringVar(&mode, "mode", "binary", "output mode: binary (standalone) or plugin (c-shared library)")
		fs.StringVar(&output, "o", "", "write Go source here instead of stdout")
		fs.BoolVar(&dryRun, "dry-run", false, "show what would be generated without outputting")
	})
	if !ok {
		return 2
	}
	defer closer.Close()

	name, ok := fileArg(fs)
	if !ok {
		return 2
	}
	data, err := readInput(name)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: cannot read %s: %v\n", appName, name, err)
		return 1
	}
	u, ok := compileFile(name, data, cfg)
	if !ok {
		return 1
	}

	opts := codegen.Options{
		Source:    filepath.Base(name),
		MaxDepth:  cfg.MaxDepth,
		MaxSteps:  cfg.MaxSteps,
		Builtins:  cfg.Builtins,
		NativeDir: cfg.NativeDir,
	}
	var result *codegen.Result
	switch mode {
	case "binary":
		result = codegen.Generate(u.Optimized, opts)
	case "plugin":
		result = codegen.GeneratePlugin(u.Optimized, opts)
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown mode %q (use 'binary' or 'plugin')\n", mode)
		return 2
	}

	for _, w := range result.Warnings {
		fmt.Fprintf(os.Stderr, "Warning: %s\n", w)
	}
	if result.Code == "" {
		return 1
	}
	if dryRun {
		fmt.Fprintf(os.Stderr, "Dry run - would generate %d bytes of Go code\n", len(result.Code))
		return 0
	}
	if output == "" {
		fmt.Print(result.Code)
		return 0
	}
	if err := os.WriteFile(output, []byte(result.Code), 0644); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
		return 1
	}
	return 0
}

// -----------------------------------------------------------------------------
// history / forget
// -----------------------------------------------------------------------------

func cmdHistory(args []string) int {
	var limit int
	cfg, fs, closer, ok := setup("history", args, func(fs *flag.FlagSet) {
		fs.IntVar(&limit, "n", 10, "number of runs to list, 0 for all")
	})
	if !ok {
		return 2
	}
	defer closer.Close()

	st, err := openStore(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
		return 1
	}
	defer st.Close()

	if fs.NArg() == 2 && fs.Arg(0) == "show" {
		r, err := st.LoadRun(fs.Arg(1))
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
			return 1
		}
		fmt.Printf("run %s of %s at %s\n", r.ID, shortKey(r.Key), r.CreatedAt.Local().Format("2006-01-02 15:04:05"))
		if r.Error != "" {
			fmt.Printf("error: %s\n", r.Error)
		}
		fmt.Print(r.Output)
		return 0
	}

	key := ""
	if fs.NArg() == 1 {
		data, err := readInput(fs.Arg(0))
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
			return 1
		}
		key = store.Key(data)
	} else if fs.NArg() > 1 {
		fmt.Fprintf(os.Stderr, "usage: %s history [flags] [file | show <run-id>]\n", appName)
		return 2
	}

	runs, err := st.Runs(key, limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
		return 1
	}
	for _, r := range runs {
		status := "ok"
		if r.Error != "" {
			status = "error"
		}
		lines := strings.Count(r.Output, "\n")
		fmt.Printf("%s  %s  %s  %-5s  %d lines\n", r.ID, shortKey(r.Key), r.CreatedAt.Local().Format("2006-01-02 15:04:05"), status, lines)
	}
	return 0
}

func cmdForget(args []string) int {
	cfg, fs, closer, ok := setup("forget", args, nil)
	if !ok {
		return 2
	}
	defer closer.Close()

	name, ok := fileArg(fs)
	if !ok {
		return 2
	}
	data, err := readInput(name)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: cannot read %s: %v\n", appName, name, err)
		return 1
	}
	st, err := openStore(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
		return 1
	}
	defer st.Close()

	key := store.Key(data)
	if _, err := st.LoadArtifact(key); errors.Is(err, store.ErrNotFound) {
		fmt.Printf("%s: not cached\n", name)
		return 0
	}
	if err := st.DeleteArtifact(key); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
		return 1
	}
	fmt.Printf("%s: forgot %s\n", name, shortKey(key))
	return 0
}

func shortKey(key string) string {
	if len(key) > 12 {
		return key[:12]
	}
	return key
}
