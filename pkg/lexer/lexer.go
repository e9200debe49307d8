// Package lexer provides tokenization for EmoCode.
//
// The scanner works on runes so identifiers may mix ASCII letters with
// emoji. Fixed spellings (keywords, operators and punctuation) are matched
// longest first, and an identifier ends where one of them begins.
//
// Token Types:
//
//	IDENTIFIER  - Names (e.g., x, 😀, 🚗2)
//	NUMBER      - Integer literals (e.g., 42)
//	STRING      - Double-quoted strings, backslash escapes kept verbatim
//	IF ELSE ... - Keyword glyphs (🤔 🔄 🖨️ 🔙 🎭 🏛 call)
//	PLUS ...    - Operators, as glyphs (➕ 📈🟰) or ASCII (+ >=)
//
// Output Format (JSON array):
//
//	[{"type": "IDENTIFIER", "value": "x", "line": 1, "col": 0}, ...]
package lexer

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Error reports a character the lexer cannot accept.
type Error struct {
	Line    int
	Column  int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("line %d, col %d: %s", e.Line, e.Column, e.Message)
}

// Lexer tokenizes EmoCode source code.
type Lexer struct {
	input    string // The source code being tokenized
	pos      int    // Current byte offset in input
	line     int    // Current line number (1-indexed)
	col      int    // Current column in runes (0-indexed)
	tokens   []Token
	comments bool // keep COMMENT tokens
}

// New creates a new Lexer for the given input.
func New(input string) *Lexer {
	return &Lexer{
		input:  input,
		line:   1,
		tokens: make([]Token, 0),
	}
}

// NewFromReader creates a new Lexer from an io.Reader.
func NewFromReader(r io.Reader) (*Lexer, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	return New(string(data)), nil
}

// KeepComments makes Tokenize emit COMMENT tokens instead of dropping them.
func (l *Lexer) KeepComments() *Lexer {
	l.comments = true
	return l
}

// Tokenize processes the entire input and returns all tokens, ending with
// EOF.
func (l *Lexer) Tokenize() ([]Token, error) {
	for !l.isAtEnd() {
		if err := l.scanToken(); err != nil {
			return nil, err
		}
	}
	l.addTokenAt(EOF, "", l.line, l.col)
	return l.tokens, nil
}

// TokenizeJSON processes the input and returns tokens as a JSON array.
func (l *Lexer) TokenizeJSON() (string, error) {
	tokens, err := l.Tokenize()
	if err != nil {
		return "", err
	}
	data, err := json.Marshal(tokens)
	if err != nil {
		return "", fmt.Errorf("failed to marshal tokens: %w", err)
	}
	return string(data), nil
}

// Tokenize is a convenience wrapper around New(src).Tokenize().
func Tokenize(src string) ([]Token, error) {
	return New(src).Tokenize()
}

// spellings holds the keys of glyphs, longest first.
var spellings = func() []string {
	s := make([]string, 0, len(glyphs))
	for k := range glyphs {
		s = append(s, k)
	}
	sort.Slice(s, func(i, j int) bool {
		if len(s[i]) != len(s[j]) {
			return len(s[i]) > len(s[j])
		}
		return s[i] < s[j]
	})
	return s
}()

func (l *Lexer) isAtEnd() bool {
	return l.pos >= len(l.input)
}

func (l *Lexer) peek() rune {
	if l.isAtEnd() {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.pos:])
	return r
}

func (l *Lexer) advance() rune {
	r, size := utf8.DecodeRuneInString(l.input[l.pos:])
	l.pos += size
	if r == '\n' {
		l.line++
		l.col = 0
	} else {
		l.col++
	}
	return r
}

func (l *Lexer) addTokenAt(typ TokenType, value string, line, col int) {
	l.tokens = append(l.tokens, NewToken(typ, value, line, col))
}

// matchGlyph returns the fixed spelling at the current position, if any.
func (l *Lexer) matchGlyph() (string, TokenType, bool) {
	rest := l.input[l.pos:]
	for _, s := range spellings {
		if strings.HasPrefix(rest, s) {
			return s, glyphs[s], true
		}
	}
	return "", "", false
}

// scanToken scans a single token from the current position.
func (l *Lexer) scanToken() error {
	line, col := l.line, l.col
	r := l.peek()

	switch {
	case r == ' ' || r == '\t' || r == '\r' || r == '\n':
		l.advance()
		return nil
	case r == '#':
		l.scanComment(line, col)
		return nil
	case r == '"':
		return l.scanString(line, col)
	case r >= '0' && r <= '9':
		l.scanNumber(line, col)
		return nil
	}

	if s, typ, ok := l.matchGlyph(); ok {
		for range utf8.RuneCountInString(s) {
			l.advance()
		}
		l.addTokenAt(typ, s, line, col)
		return nil
	}

	if isIdentStart(r) {
		l.scanIdentifier(line, col)
		return nil
	}

	return &Error{Line: line, Column: col, Message: fmt.Sprintf("illegal character %q", r)}
}

func (l *Lexer) scanComment(line, col int) {
	start := l.pos
	for !l.isAtEnd() && l.peek() != '\n' {
		l.advance()
	}
	if l.comments {
		l.addTokenAt(COMMENT, l.input[start:l.pos], line, col)
	}
}

func (l *Lexer) scanString(line, col int) error {
	l.advance() // opening quote
	start := l.pos
	for {
		if l.isAtEnd() || l.peek() == '\n' {
			return &Error{Line: line, Column: col, Message: "unterminated string"}
		}
		r := l.advance()
		if r == '\\' && !l.isAtEnd() && l.peek() != '\n' {
			l.advance()
			continue
		}
		if r == '"' {
			break
		}
	}
	l.addTokenAt(STRING, l.input[start:l.pos-1], line, col)
	return nil
}

func (l *Lexer) scanNumber(line, col int) {
	start := l.pos
	for r := l.peek(); r >= '0' && r <= '9'; r = l.peek() {
		l.advance()
	}
	l.addTokenAt(NUMBER, l.input[start:l.pos], line, col)
}

func (l *Lexer) scanIdentifier(line, col int) {
	start := l.pos
	for !l.isAtEnd() {
		r := l.peek()
		if !isIdentPart(r) {
			break
		}
		// An embedded glyph such as 📈 ends the name.
		if l.pos > start {
			if _, _, ok := l.matchGlyph(); ok {
				break
			}
		}
		l.advance()
	}
	name := l.input[start:l.pos]
	if name == "call" {
		l.addTokenAt(CALL, name, line, col)
		return
	}
	l.addTokenAt(IDENTIFIER, name, line, col)
}

// isIdentStart accepts ASCII letters, underscore and any non-ASCII rune
// that is not whitespace. Glyphs are matched before this is consulted.
func isIdentStart(r rune) bool {
	if r < utf8.RuneSelf {
		return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
	}
	return !unicode.IsSpace(r)
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || (r >= '0' && r <= '9')
}
