package lexer

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func types(tokens []Token) []TokenType {
	out := make([]TokenType, len(tokens))
	for i, t := range tokens {
		out[i] = t.Type
	}
	return out
}

func equalTypes(a, b []TokenType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestTokenize_Types(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []TokenType
	}{
		{"empty input", "", []TokenType{EOF}},
		{"whitespace only", " \t\r\n", []TokenType{EOF}},
		{"assignment", "x = 5;", []TokenType{IDENTIFIER, ASSIGN, NUMBER, SEMI, EOF}},
		{"emoji assignment", "😀 = 5;", []TokenType{IDENTIFIER, ASSIGN, NUMBER, SEMI, EOF}},
		{"glyph operators", "➕ ➖ ✖️ ➗", []TokenType{PLUS, MINUS, STAR, SLASH, EOF}},
		{"bare times", "✖", []TokenType{STAR, EOF}},
		{"ascii operators", "+ - * /", []TokenType{PLUS, MINUS, STAR, SLASH, EOF}},
		{"glyph comparisons", "📈 📉 🟰 🚫🟰 📈🟰 📉🟰", []TokenType{GT, LT, EQ, NE, GE, LE, EOF}},
		{"ascii comparisons", "> < == != >= <=", []TokenType{GT, LT, EQ, NE, GE, LE, EOF}},
		{"keywords", "🤔 🔄 🖨️ 🔙 🎭 🏛 call", []TokenType{IF, ELSE, PRINT, RETURN, FUNCTION, CLASS, CALL, EOF}},
		{"print without selector", "🖨", []TokenType{PRINT, EOF}},
		{"reserved glyphs", "➿ 🔁 📥 🔀 🔂 ❌ 🚪", []TokenType{FOR, WHILE, INPUT, SWITCH, CASE, BREAK, DEFAULT, EOF}},
		{"punctuation", "(){};,.", []TokenType{LPAREN, RPAREN, LBRACE, RBRACE, SEMI, COMMA, DOT, EOF}},
		{"method call", "call 🚗.🚦;", []TokenType{CALL, IDENTIFIER, DOT, IDENTIFIER, SEMI, EOF}},
		{"comment dropped", "# nothing here\nx", []TokenType{IDENTIFIER, EOF}},
		{"glyph ends identifier", "a📈b", []TokenType{IDENTIFIER, GT, IDENTIFIER, EOF}},
		{"operator without spaces", "a➕1", []TokenType{IDENTIFIER, PLUS, NUMBER, EOF}},
		{"call prefix is a name", "caller", []TokenType{IDENTIFIER, EOF}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens, err := Tokenize(tt.input)
			if err != nil {
				t.Fatalf("Tokenize() error: %v", err)
			}
			if got := types(tokens); !equalTypes(got, tt.expected) {
				t.Errorf("Tokenize(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestTokenize_Values(t *testing.T) {
	tokens, err := Tokenize(`🚗2 = "hi \"there\"" ➕ 42;`)
	if err != nil {
		t.Fatalf("Tokenize() error: %v", err)
	}
	want := []Token{
		{Type: IDENTIFIER, Value: "🚗2", Line: 1, Column: 0},
		{Type: ASSIGN, Value: "=", Line: 1, Column: 3},
		{Type: STRING, Value: `hi \"there\"`, Line: 1, Column: 5},
		{Type: PLUS, Value: "➕", Line: 1, Column: 20},
		{Type: NUMBER, Value: "42", Line: 1, Column: 22},
		{Type: SEMI, Value: ";", Line: 1, Column: 24},
		{Type: EOF, Value: "", Line: 1, Column: 25},
	}
	if len(tokens) != len(want) {
		t.Fatalf("got %d tokens, want %d: %v", len(tokens), len(want), tokens)
	}
	for i := range want {
		if tokens[i] != want[i] {
			t.Errorf("token %d = %+v, want %+v", i, tokens[i], want[i])
		}
	}
}

func TestTokenize_Lines(t *testing.T) {
	tokens, err := Tokenize("x = 1;\n  # note\n  🖨️(x);")
	if err != nil {
		t.Fatalf("Tokenize() error: %v", err)
	}
	tok := tokens[4]
	if tok.Type != PRINT || tok.Line != 3 || tok.Column != 2 {
		t.Errorf("print token = %+v, want PRINT at 3:2", tok)
	}
}

func TestTokenize_KeepComments(t *testing.T) {
	tokens, err := New("# hello\nx").KeepComments().Tokenize()
	if err != nil {
		t.Fatalf("Tokenize() error: %v", err)
	}
	if tokens[0].Type != COMMENT || tokens[0].Value != "# hello" {
		t.Errorf("first token = %+v, want comment", tokens[0])
	}
}

func TestTokenize_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"unterminated string", `x = "abc`, "unterminated string"},
		{"string across lines", "x = \"ab\ncd\"", "unterminated string"},
		{"illegal character", "x = 1 @ 2;", "illegal character '@'"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Tokenize(tt.input)
			var lexErr *Error
			if !errors.As(err, &lexErr) {
				t.Fatalf("Tokenize() error = %v, want *Error", err)
			}
			if !strings.Contains(lexErr.Message, tt.want) {
				t.Errorf("message = %q, want %q", lexErr.Message, tt.want)
			}
		})
	}
}

func TestTokenizeJSON(t *testing.T) {
	out, err := New("x").TokenizeJSON()
	if err != nil {
		t.Fatalf("TokenizeJSON() error: %v", err)
	}
	var tokens []Token
	if err := json.Unmarshal([]byte(out), &tokens); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(tokens) != 2 || tokens[0].Value != "x" {
		t.Errorf("tokens = %+v", tokens)
	}
}

func TestNewFromReader(t *testing.T) {
	l, err := NewFromReader(strings.NewReader("🔙 1;"))
	if err != nil {
		t.Fatalf("NewFromReader() error: %v", err)
	}
	tokens, err := l.Tokenize()
	if err != nil {
		t.Fatalf("Tokenize() error: %v", err)
	}
	if got := types(tokens); !equalTypes(got, []TokenType{RETURN, NUMBER, SEMI, EOF}) {
		t.Errorf("types = %v", got)
	}
}

func TestTokenPredicates(t *testing.T) {
	if !(Token{Type: GE}).IsComparison() || (Token{Type: PLUS}).IsComparison() {
		t.Error("IsComparison mismatch")
	}
	if !(Token{Type: SLASH}).IsOperator() || (Token{Type: ASSIGN}).IsOperator() {
		t.Error("IsOperator mismatch")
	}
	if !(Token{Type: WHILE}).IsReserved() || (Token{Type: IF}).IsReserved() {
		t.Error("IsReserved mismatch")
	}
}
