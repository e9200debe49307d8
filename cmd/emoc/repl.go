package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"

	"github.com/chazu/emoc/pkg/compiler"
	"github.com/chazu/emoc/pkg/config"
	"github.com/chazu/emoc/pkg/ir"
	"github.com/chazu/emoc/pkg/lexer"
)

const (
	historyFile = ".emoc_history"
	promptMain  = "🙂 "
	promptCont  = "... "
)

var (
	banner   = fmt.Sprintf("EmoCode %s REPL\nCtrl+C cancels input, Ctrl+D exits. Type :help for commands.", versionStr)
	helpText = `REPL commands:
  :tac     Toggle printing the TAC of each entry
  :list    Show the session so far
  :reset   Forget every earlier entry
  :quit    Exit the REPL
`
)

func red(s string) string  { return "\x1b[31m" + s + "\x1b[0m" }
func blue(s string) string { return "\x1b[94m" + s + "\x1b[0m" }

// session accumulates accepted entries. Each entry is compiled together with
// everything before it and rerun; only output past what earlier entries
// printed is shown.
type session struct {
	cfg     config.Config
	source  []string
	printed int
	showTAC bool
}

// eval compiles and runs the session extended by entry. The entry is kept
// only if it compiles.
func (s *session) eval(ctx context.Context, entry string) (tac []string, out []string, err error) {
	src := strings.Join(append(append([]string{}, s.source...), entry), "\n")
	node, err := compiler.ParseSource(src)
	if err != nil {
		return nil, nil, err
	}
	u, err := compiler.Compile(node, compileOptions(s.cfg))
	if err != nil {
		if len(u.Diagnostics) > 0 {
			msgs := make([]string, len(u.Diagnostics))
			for i, d := range u.Diagnostics {
				msgs[i] = d.Message
			}
			return nil, nil, errors.New(strings.Join(msgs, "\n"))
		}
		return nil, nil, err
	}

	var buf bytes.Buffer
	if err := compiler.Execute(ctx, u, &buf, s.cfg.Runtime(nil)); err != nil {
		return nil, nil, err
	}
	s.source = append(s.source, entry)

	lines := splitOutput(buf.String())
	if s.printed < len(lines) {
		out = lines[s.printed:]
	}
	s.printed = len(lines)

	if s.showTAC {
		tac = ir.Lines(u.Optimized)
	}
	return tac, out, nil
}

func (s *session) reset() {
	s.source = nil
	s.printed = 0
}

func splitOutput(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(s, "\n"), "\n")
}

func cmdRepl(args []string) int {
	cfg, _, closer, ok := setup("repl", args, nil)
	if !ok {
		return 2
	}
	defer closer.Close()

	fmt.Println(banner)

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}
	defer func() {
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	ctx, cancel := signalContext()
	defer cancel()

	s := &session{cfg: cfg}
	for {
		code, ok := readEntry(ln, promptMain, promptCont)
		if !ok {
			fmt.Println()
			break
		}
		trimmed := strings.TrimSpace(code)
		if trimmed == "" {
			continue
		}

		if strings.HasPrefix(trimmed, ":") {
			switch strings.ToLower(trimmed) {
			case ":quit", ":q":
				return 0
			case ":help":
				fmt.Print(helpText)
			case ":tac":
				s.showTAC = !s.showTAC
				fmt.Printf("TAC display %s\n", onOff(s.showTAC))
			case ":list":
				for _, entry := range s.source {
					fmt.Println(entry)
				}
			case ":reset":
				s.reset()
				fmt.Println("session cleared")
			default:
				fmt.Println("unknown command. Type :help for commands.")
			}
			continue
		}

		tac, out, err := s.eval(ctx, code)
		if err != nil {
			fmt.Fprintln(os.Stderr, red(err.Error()))
			if ctx.Err() != nil {
				return 1
			}
			continue
		}
		for _, line := range tac {
			fmt.Println(blue(line))
		}
		for _, line := range out {
			fmt.Println(line)
		}
		ln.AppendHistory(strings.ReplaceAll(code, "\n", " "))
	}
	return 0
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

// readEntry reads lines until braces balance, so a block can span several
// lines.
func readEntry(ln *liner.State, prompt, cont string) (string, bool) {
	var b strings.Builder
	for {
		p := prompt
		if b.Len() > 0 {
			p = cont
		}
		line, err := ln.Prompt(p)
		if errors.Is(err, io.EOF) {
			return "", false
		}
		if errors.Is(err, liner.ErrPromptAborted) {
			return "", true
		}
		if err != nil {
			return "", false
		}

		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)
		if openBraces(b.String()) <= 0 {
			return b.String(), true
		}
	}
}

// openBraces counts unclosed braces in src. Source that does not lex is
// reported as complete so the error surfaces.
func openBraces(src string) int {
	tokens, err := lexer.Tokenize(src)
	if err != nil {
		return 0
	}
	depth := 0
	for _, tok := range tokens {
		switch tok.Type {
		case lexer.LBRACE:
			depth++
		case lexer.RBRACE:
			depth--
		}
	}
	return depth
}
