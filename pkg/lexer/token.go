// Package lexer provides tokenization for EmoCode.
package lexer

// TokenType represents the type of a token.
type TokenType string

const (
	// Basic tokens
	IDENTIFIER TokenType = "IDENTIFIER" // Names, emoji included (e.g., x, 😀, 🚗2)
	NUMBER     TokenType = "NUMBER"     // Integer literals (e.g., 42)
	STRING     TokenType = "STRING"     // Double-quoted strings, value without quotes
	COMMENT    TokenType = "COMMENT"    // # to end of line

	// Keywords
	IF       TokenType = "IF"       // 🤔
	ELSE     TokenType = "ELSE"     // 🔄
	PRINT    TokenType = "PRINT"    // 🖨️
	RETURN   TokenType = "RETURN"   // 🔙
	FUNCTION TokenType = "FUNCTION" // 🎭
	CLASS    TokenType = "CLASS"    // 🏛
	CALL     TokenType = "CALL"     // call

	// Reserved glyphs with no statement form yet
	FOR     TokenType = "FOR"     // ➿
	WHILE   TokenType = "WHILE"   // 🔁
	INPUT   TokenType = "INPUT"   // 📥
	SWITCH  TokenType = "SWITCH"  // 🔀
	CASE    TokenType = "CASE"    // 🔂
	BREAK   TokenType = "BREAK"   // ❌
	DEFAULT TokenType = "DEFAULT" // 🚪

	// Operators
	ASSIGN TokenType = "ASSIGN" // =
	PLUS   TokenType = "PLUS"   // ➕ or +
	MINUS  TokenType = "MINUS"  // ➖ or -
	STAR   TokenType = "STAR"   // ✖️ or *
	SLASH  TokenType = "SLASH"  // ➗ or /
	EQ     TokenType = "EQ"     // 🟰 or ==
	NE     TokenType = "NE"     // 🚫🟰 or !=
	GT     TokenType = "GT"     // 📈 or >
	GE     TokenType = "GE"     // 📈🟰 or >=
	LT     TokenType = "LT"     // 📉 or <
	LE     TokenType = "LE"     // 📉🟰 or <=

	// Punctuation
	LPAREN TokenType = "LPAREN" // (
	RPAREN TokenType = "RPAREN" // )
	LBRACE TokenType = "LBRACE" // {
	RBRACE TokenType = "RBRACE" // }
	SEMI   TokenType = "SEMI"   // ;
	COMMA  TokenType = "COMMA"  // ,
	DOT    TokenType = "DOT"    // .

	EOF TokenType = "EOF"
)

// Token represents a single token from the lexer.
type Token struct {
	Type   TokenType `json:"type"`
	Value  string    `json:"value"`
	Line   int       `json:"line"`
	Column int       `json:"col"`
}

// NewToken creates a new token with the given properties.
func NewToken(typ TokenType, value string, line, col int) Token {
	return Token{
		Type:   typ,
		Value:  value,
		Line:   line,
		Column: col,
	}
}

// IsOperator returns true if the token is an arithmetic or comparison
// operator.
func (t Token) IsOperator() bool {
	switch t.Type {
	case PLUS, MINUS, STAR, SLASH, EQ, NE, GT, GE, LT, LE:
		return true
	}
	return false
}

// IsComparison returns true for the comparison operators.
func (t Token) IsComparison() bool {
	switch t.Type {
	case EQ, NE, GT, GE, LT, LE:
		return true
	}
	return false
}

// IsReserved returns true for glyphs the language reserves but does not
// give a meaning yet.
func (t Token) IsReserved() bool {
	switch t.Type {
	case FOR, WHILE, INPUT, SWITCH, CASE, BREAK, DEFAULT:
		return true
	}
	return false
}

// glyphs maps every fixed spelling to its token type. Longer spellings are
// tried first so 📈🟰 wins over 📈.
var glyphs = map[string]TokenType{
	"🤔":  IF,
	"🔄":  ELSE,
	"🖨️": PRINT,
	"🖨":  PRINT,
	"🔙":  RETURN,
	"🎭":  FUNCTION,
	"🏛️": CLASS,
	"🏛":  CLASS,
	"➿":  FOR,
	"🔁":  WHILE,
	"📥":  INPUT,
	"🔀":  SWITCH,
	"🔂":  CASE,
	"❌":  BREAK,
	"🚪":  DEFAULT,

	"➕":   PLUS,
	"➖":   MINUS,
	"✖️":  STAR,
	"✖":   STAR,
	"➗":   SLASH,
	"🟰":   EQ,
	"🚫🟰":  NE,
	"📈":   GT,
	"📈🟰":  GE,
	"📉":   LT,
	"📉🟰":  LE,
	"==":  EQ,
	"!=":  NE,
	">=":  GE,
	"<=":  LE,
	"+":   PLUS,
	"-":   MINUS,
	"*":   STAR,
	"/":   SLASH,
	">":   GT,
	"<":   LT,
	"=":   ASSIGN,
	"(":   LPAREN,
	")":   RPAREN,
	"{":   LBRACE,
	"}":   RBRACE,
	";":   SEMI,
	",":   COMMA,
	".":   DOT,
}
