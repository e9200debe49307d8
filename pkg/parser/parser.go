// Package parser converts EmoCode token streams into syntax trees.
//
// Grammar:
//
//	program   = { statement } EOF
//	statement = IDENT "=" expr ";"
//	          | PRINT expr ";"
//	          | RETURN expr ";"
//	          | IF expr block [ ELSE ( block | IF ... ) ]
//	          | FUNCTION IDENT "(" [ IDENT { "," IDENT } ] ")" block
//	          | CLASS IDENT block
//	          | CALL IDENT ( "(" args ")" | "." IDENT [ "(" args ")" ] ) ";"
//	block     = "{" { statement } "}"
//	expr      = additive { compare additive }
//	additive  = term { ( "+" | "-" ) term }
//	term      = unary { ( "*" | "/" ) unary }
//	unary     = "-" unary | primary
//	primary   = NUMBER | STRING | IDENT | "(" expr ")"
//
// Errors are collected rather than fatal: after a bad statement the parser
// skips to the next statement boundary and keeps going.
package parser

import (
	"fmt"
	"strconv"

	"github.com/hashicorp/go-multierror"

	"github.com/chazu/emoc/pkg/ast"
	"github.com/chazu/emoc/pkg/lexer"
)

// ParseError represents a parse error with context.
type ParseError struct {
	Type    string       `json:"type"`    // Error type
	Message string       `json:"message"` // Error message
	Token   *lexer.Token `json:"token"`   // Token that caused the error
	Context string       `json:"context"` // Parsing context
}

func (e *ParseError) Error() string {
	if e.Token != nil {
		return fmt.Sprintf("%s at line %d, col %d: %s (context: %s)",
			e.Type, e.Token.Line, e.Token.Column, e.Message, e.Context)
	}
	return fmt.Sprintf("%s: %s (context: %s)", e.Type, e.Message, e.Context)
}

// canonical maps operator tokens to the glyph recorded in the tree.
var canonical = map[lexer.TokenType]string{
	lexer.PLUS:  "➕",
	lexer.MINUS: "➖",
	lexer.STAR:  "✖️",
	lexer.SLASH: "➗",
	lexer.GT:    "📈",
	lexer.LT:    "📉",
	lexer.EQ:    "🟰",
	lexer.NE:    "🚫🟰",
	lexer.GE:    "📈🟰",
	lexer.LE:    "📉🟰",
}

// Parser holds the state for parsing one token stream.
type Parser struct {
	tokens []lexer.Token
	pos    int
	errors []ParseError
	failed bool // an error was recorded in the current statement
}

// NewParser creates a parser for tokens. A missing EOF token is supplied.
func NewParser(tokens []lexer.Token) *Parser {
	if n := len(tokens); n == 0 || tokens[n-1].Type != lexer.EOF {
		line := 1
		if n > 0 {
			line = tokens[n-1].Line
		}
		tokens = append(tokens[:n:n], lexer.NewToken(lexer.EOF, "", line, 0))
	}
	return &Parser{tokens: tokens}
}

// ParseTokens parses tokens into a program node.
func ParseTokens(tokens []lexer.Token) (*ast.Node, []ParseError) {
	return NewParser(tokens).Parse()
}

// Parse tokenizes and parses src. All parse errors are combined into the
// returned error.
func Parse(src string) (*ast.Node, error) {
	tokens, err := lexer.Tokenize(src)
	if err != nil {
		return nil, fmt.Errorf("tokenizing: %w", err)
	}
	prog, errs := ParseTokens(tokens)
	if len(errs) > 0 {
		var result *multierror.Error
		for i := range errs {
			result = multierror.Append(result, &errs[i])
		}
		return prog, result
	}
	return prog, nil
}

// Parse parses the whole stream. The program is returned even when errors
// were recorded; it holds every statement that parsed.
func (p *Parser) Parse() (*ast.Node, []ParseError) {
	prog := ast.Program()
	prog.Loc = p.loc()
	for !p.check(lexer.EOF) {
		if stmt := p.statement(); stmt != nil {
			prog.Body = append(prog.Body, stmt)
		}
	}
	return prog, p.errors
}

// =============================================================================
// Utilities
// =============================================================================

func (p *Parser) current() *lexer.Token {
	return &p.tokens[p.pos]
}

func (p *Parser) check(typ lexer.TokenType) bool {
	return p.current().Type == typ
}

func (p *Parser) advance() *lexer.Token {
	tok := p.current()
	if tok.Type != lexer.EOF {
		p.pos++
	}
	return tok
}

func (p *Parser) match(typ lexer.TokenType) bool {
	if p.check(typ) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) loc() ast.Location {
	tok := p.current()
	return ast.Location{Line: tok.Line, Col: tok.Column}
}

// expect consumes a token of type typ or records an error.
func (p *Parser) expect(typ lexer.TokenType, what, context string) (*lexer.Token, bool) {
	if p.check(typ) {
		return p.advance(), true
	}
	p.addError("syntax_error", fmt.Sprintf("expected %s, found %s", what, describe(p.current())), context)
	return nil, false
}

func (p *Parser) addError(errType, message, context string) {
	p.errors = append(p.errors, ParseError{
		Type:    errType,
		Message: message,
		Token:   p.current(),
		Context: context,
	})
	p.failed = true
}

// synchronize skips to just after the next ";" or balanced "{...}", or to
// the next token that can start or close a statement.
func (p *Parser) synchronize() {
	for !p.check(lexer.EOF) {
		switch p.current().Type {
		case lexer.SEMI:
			p.advance()
			return
		case lexer.LBRACE:
			p.skipBlock()
			return
		case lexer.RBRACE, lexer.IF, lexer.PRINT, lexer.RETURN,
			lexer.FUNCTION, lexer.CLASS, lexer.CALL:
			return
		}
		p.advance()
	}
}

func (p *Parser) skipBlock() {
	depth := 0
	for !p.check(lexer.EOF) {
		switch p.advance().Type {
		case lexer.LBRACE:
			depth++
		case lexer.RBRACE:
			depth--
			if depth == 0 {
				return
			}
		}
	}
}

func describe(tok *lexer.Token) string {
	if tok.Type == lexer.EOF {
		return "end of input"
	}
	return fmt.Sprintf("%q", tok.Value)
}

// =============================================================================
// Statements
// =============================================================================

// statement parses one statement. Errors recovered inside nested blocks do
// not discard the enclosing statement.
func (p *Parser) statement() *ast.Node {
	outer := p.failed
	p.failed = false
	pos := p.pos
	stmt := p.parseStatement()
	failed := p.failed
	p.failed = outer
	if failed {
		if p.pos == pos {
			p.advance()
		}
		p.synchronize()
		return nil
	}
	return stmt
}

func (p *Parser) parseStatement() *ast.Node {
	loc := p.loc()
	tok := p.current()

	var n *ast.Node
	switch {
	case tok.Type == lexer.IDENTIFIER:
		n = p.parseAssign()
	case tok.Type == lexer.PRINT:
		p.advance()
		n = ast.Print(p.expression())
		p.expect(lexer.SEMI, `";"`, "print")
	case tok.Type == lexer.RETURN:
		p.advance()
		n = ast.Return(p.expression())
		p.expect(lexer.SEMI, `";"`, "return")
	case tok.Type == lexer.IF:
		n = p.parseIf()
	case tok.Type == lexer.FUNCTION:
		n = p.parseFunction()
	case tok.Type == lexer.CLASS:
		n = p.parseClass()
	case tok.Type == lexer.CALL:
		n = p.parseCall()
	case tok.IsReserved():
		p.addError("unsupported", fmt.Sprintf("%s (%s) is reserved and has no meaning yet", tok.Value, tok.Type), "statement")
		return nil
	default:
		p.addError("syntax_error", fmt.Sprintf("unexpected %s at start of statement", describe(tok)), "statement")
		return nil
	}
	if n != nil {
		n.Loc = loc
	}
	return n
}

func (p *Parser) parseAssign() *ast.Node {
	name := p.advance().Value
	if _, ok := p.expect(lexer.ASSIGN, `"="`, "assignment"); !ok {
		return nil
	}
	value := p.expression()
	p.expect(lexer.SEMI, `";"`, "assignment")
	return ast.Assign(name, value)
}

func (p *Parser) parseIf() *ast.Node {
	p.advance()
	cond := p.expression()
	then := p.block("if")
	if !p.match(lexer.ELSE) {
		return ast.If(cond, then...)
	}
	if p.check(lexer.IF) {
		loc := p.loc()
		nested := p.parseIf()
		if nested != nil {
			nested.Loc = loc
		}
		return ast.IfElse(cond, then, []*ast.Node{nested})
	}
	return ast.IfElse(cond, then, p.block("else"))
}

func (p *Parser) parseFunction() *ast.Node {
	p.advance()
	name, ok := p.expect(lexer.IDENTIFIER, "function name", "function")
	if !ok {
		return nil
	}
	if _, ok := p.expect(lexer.LPAREN, `"("`, "function "+name.Value); !ok {
		return nil
	}
	params := []string{}
	if !p.check(lexer.RPAREN) {
		for {
			param, ok := p.expect(lexer.IDENTIFIER, "parameter name", "function "+name.Value)
			if !ok {
				return nil
			}
			params = append(params, param.Value)
			if !p.match(lexer.COMMA) {
				break
			}
		}
	}
	if _, ok := p.expect(lexer.RPAREN, `")"`, "function "+name.Value); !ok {
		return nil
	}
	return ast.Function(name.Value, params, p.block("function "+name.Value)...)
}

func (p *Parser) parseClass() *ast.Node {
	p.advance()
	name, ok := p.expect(lexer.IDENTIFIER, "class name", "class")
	if !ok {
		return nil
	}
	return ast.Class(name.Value, p.block("class "+name.Value)...)
}

func (p *Parser) parseCall() *ast.Node {
	p.advance()
	loc := p.loc()
	first, ok := p.expect(lexer.IDENTIFIER, "callee name", "call")
	if !ok {
		return nil
	}

	var target *ast.Node
	if p.match(lexer.DOT) {
		method, ok := p.expect(lexer.IDENTIFIER, "method name", "call")
		if !ok {
			return nil
		}
		var args []*ast.Node
		if p.check(lexer.LPAREN) {
			args = p.arguments()
		}
		target = ast.CallMethod(first.Value, method.Value, args...)
	} else {
		if !p.check(lexer.LPAREN) {
			p.addError("syntax_error", fmt.Sprintf("expected \"(\" or \".\" after %s, found %s", first.Value, describe(p.current())), "call")
			return nil
		}
		target = ast.CallFunction(first.Value, p.arguments()...)
	}
	target.Loc = loc
	p.expect(lexer.SEMI, `";"`, "call")
	return ast.Call(target)
}

func (p *Parser) arguments() []*ast.Node {
	p.advance() // (
	var args []*ast.Node
	if p.match(lexer.RPAREN) {
		return args
	}
	for {
		args = append(args, p.expression())
		if !p.match(lexer.COMMA) {
			break
		}
	}
	p.expect(lexer.RPAREN, `")"`, "arguments")
	return args
}

// block parses "{ statements }". Errors inside the block are recorded and
// the block continues with the next statement.
func (p *Parser) block(context string) []*ast.Node {
	if _, ok := p.expect(lexer.LBRACE, `"{"`, context); !ok {
		return nil
	}
	var body []*ast.Node
	for !p.check(lexer.RBRACE) && !p.check(lexer.EOF) {
		if stmt := p.statement(); stmt != nil {
			body = append(body, stmt)
		}
	}
	p.expect(lexer.RBRACE, `"}"`, context)
	return body
}

// =============================================================================
// Expressions
// =============================================================================

func (p *Parser) expression() *ast.Node {
	left := p.additive()
	for p.current().IsComparison() {
		loc := p.loc()
		op := canonical[p.advance().Type]
		left = ast.RelOp(op, left, p.additive())
		left.Loc = loc
	}
	return left
}

func (p *Parser) additive() *ast.Node {
	left := p.term()
	for p.check(lexer.PLUS) || p.check(lexer.MINUS) {
		loc := p.loc()
		op := canonical[p.advance().Type]
		left = ast.BinOp(op, left, p.term())
		left.Loc = loc
	}
	return left
}

func (p *Parser) term() *ast.Node {
	left := p.unary()
	for p.check(lexer.STAR) || p.check(lexer.SLASH) {
		loc := p.loc()
		op := canonical[p.advance().Type]
		left = ast.BinOp(op, left, p.unary())
		left.Loc = loc
	}
	return left
}

// unary folds a minus in front of a number literal into the literal and
// rewrites any other negation as 0 - x.
func (p *Parser) unary() *ast.Node {
	if !p.check(lexer.MINUS) {
		return p.primary()
	}
	loc := p.loc()
	p.advance()
	operand := p.unary()
	var n *ast.Node
	if operand.Type == ast.TypeNumber {
		n = ast.Num(-operand.Number)
	} else {
		n = ast.BinOp(canonical[lexer.MINUS], ast.Num(0), operand)
	}
	n.Loc = loc
	return n
}

func (p *Parser) primary() *ast.Node {
	loc := p.loc()
	tok := p.current()

	var n *ast.Node
	switch tok.Type {
	case lexer.NUMBER:
		p.advance()
		v, err := strconv.ParseInt(tok.Value, 10, 64)
		if err != nil {
			p.addError("syntax_error", fmt.Sprintf("number %s out of range", tok.Value), "expression")
		}
		n = ast.Num(v)
	case lexer.STRING:
		p.advance()
		n = ast.Str(tok.Value)
	case lexer.IDENTIFIER:
		p.advance()
		n = ast.Var(tok.Value)
	case lexer.LPAREN:
		p.advance()
		n = p.expression()
		p.expect(lexer.RPAREN, `")"`, "expression")
		return n
	default:
		p.addError("syntax_error", fmt.Sprintf("expected expression, found %s", describe(tok)), "expression")
		n = ast.Num(0)
	}
	n.Loc = loc
	return n
}
