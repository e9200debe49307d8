package ir

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ParseText reads TAC text back into instructions. It never fails: lines
// it cannot classify become Unknown, expressions it cannot parse become
// Raw. Blank lines are dropped.
func ParseText(src string) []Instr {
	var prog []Instr
	for _, line := range strings.Split(src, "\n") {
		if in := ParseLine(line); in != nil {
			prog = append(prog, in)
		}
	}
	return prog
}

// ParseLine classifies a single TAC line. It returns nil for blank lines.
func ParseLine(line string) Instr {
	s := strings.TrimSpace(line)
	if s == "" {
		return nil
	}

	// "x = ..." wins over keyword forms so variables may shadow keywords.
	if dest, rhs, ok := splitAssign(s); ok {
		return Assign{Dest: dest, Value: ParseExpr(rhs)}
	}

	switch {
	case s == "end function":
		return End{Kind: BlockFunction}
	case s == "end class":
		return End{Kind: BlockClass}
	case strings.HasPrefix(s, "function ") && strings.HasSuffix(s, ":"):
		if h, ok := parseHeader(BlockFunction, s[len("function "):len(s)-1]); ok {
			return h
		}
	case strings.HasPrefix(s, "class ") && strings.HasSuffix(s, ":"):
		if h, ok := parseHeader(BlockClass, s[len("class "):len(s)-1]); ok {
			return h
		}
	case strings.HasPrefix(s, "ifFalse "):
		rest := s[len("ifFalse "):]
		if i := strings.LastIndex(rest, " goto "); i >= 0 {
			target := strings.TrimSpace(rest[i+len(" goto "):])
			if isIdent(target) {
				return IfFalse{Cond: ParseExpr(rest[:i]), Target: target}
			}
		}
	case strings.HasPrefix(s, "goto "):
		target := strings.TrimSpace(s[len("goto "):])
		if isIdent(target) {
			return Goto{Target: target}
		}
	case strings.HasPrefix(s, "print "):
		return Print{Value: ParseExpr(s[len("print "):])}
	case strings.HasPrefix(s, "return "):
		return Return{Value: ParseExpr(s[len("return "):])}
	case strings.HasPrefix(s, "call "):
		if c, ok := parseCall(s[len("call "):]); ok {
			return c
		}
	case strings.HasSuffix(s, ":") && isIdent(s[:len(s)-1]):
		return Label{Name: s[:len(s)-1]}
	}
	return Unknown{Text: s}
}

func splitAssign(s string) (string, string, bool) {
	i := strings.Index(s, " = ")
	if i <= 0 {
		return "", "", false
	}
	dest := strings.TrimSpace(s[:i])
	if !isIdent(dest) {
		return "", "", false
	}
	return dest, strings.TrimSpace(s[i+len(" = "):]), true
}

func parseHeader(kind BlockKind, s string) (Header, bool) {
	s = strings.TrimSpace(s)
	open := strings.IndexByte(s, '(')
	if open < 0 {
		if !isIdent(s) {
			return Header{}, false
		}
		return Header{Kind: kind, Name: s}, true
	}
	if !strings.HasSuffix(s, ")") {
		return Header{}, false
	}
	name := strings.TrimSpace(s[:open])
	if !isIdent(name) {
		return Header{}, false
	}
	h := Header{Kind: kind, Name: name}
	for _, p := range strings.Split(s[open+1:len(s)-1], ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if !isIdent(p) {
			return Header{}, false
		}
		h.Params = append(h.Params, p)
	}
	return h, true
}

func parseCall(s string) (Call, bool) {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), ";"))
	toks, ok := scan(s)
	if !ok || len(toks) == 0 || toks[0].kind != tokIdent {
		return Call{}, false
	}
	p := &exprParser{toks: toks}
	first := p.next().text

	var c Call
	if p.peek().kind == tokDot {
		p.next()
		if p.peek().kind != tokIdent {
			return Call{}, false
		}
		c.Object, c.Method = first, p.next().text
		if p.peek().kind == tokEOF {
			return c, true
		}
	} else {
		c.Name = first
	}

	if p.peek().kind != tokLParen {
		return Call{}, false
	}
	p.next()
	if p.peek().kind == tokRParen {
		p.next()
	} else {
		for {
			arg, ok := p.expr()
			if !ok {
				return Call{}, false
			}
			c.Args = append(c.Args, arg)
			if p.peek().kind == tokComma {
				p.next()
				continue
			}
			if p.peek().kind != tokRParen {
				return Call{}, false
			}
			p.next()
			break
		}
	}
	if p.peek().kind != tokEOF {
		return Call{}, false
	}
	return c, true
}

// ParseExpr parses expression text. Both glyph and ASCII operators are
// accepted. Text that does not parse completely comes back as Raw.
func ParseExpr(s string) Expr {
	s = strings.TrimSpace(s)
	toks, ok := scan(s)
	if !ok {
		return Raw{Text: s}
	}
	p := &exprParser{toks: toks}
	e, ok := p.expr()
	if !ok || p.peek().kind != tokEOF {
		return Raw{Text: s}
	}
	return e
}

// === Expression scanning ===

type tokKind int

const (
	tokEOF tokKind = iota
	tokNum
	tokStr
	tokIdent
	tokOp
	tokMinus
	tokLParen
	tokRParen
	tokComma
	tokDot
)

type token struct {
	kind tokKind
	text string
	op   Op
}

func scan(s string) ([]token, bool) {
	var toks []token
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		switch {
		case r == ' ' || r == '\t':
			i += size
		case r == '"':
			j := i + 1
			for j < len(s) && s[j] != '"' {
				if s[j] == '\\' && j+1 < len(s) {
					j++
				}
				j++
			}
			if j >= len(s) {
				return nil, false
			}
			toks = append(toks, token{kind: tokStr, text: s[i+1 : j]})
			i = j + 1
		case r >= '0' && r <= '9':
			j := i
			for j < len(s) && s[j] >= '0' && s[j] <= '9' {
				j++
			}
			toks = append(toks, token{kind: tokNum, text: s[i:j]})
			i = j
		case r == '(':
			toks = append(toks, token{kind: tokLParen, text: "("})
			i += size
		case r == ')':
			toks = append(toks, token{kind: tokRParen, text: ")"})
			i += size
		case r == ',':
			toks = append(toks, token{kind: tokComma, text: ","})
			i += size
		case r == '.':
			toks = append(toks, token{kind: tokDot, text: "."})
			i += size
		case r == '-':
			toks = append(toks, token{kind: tokMinus, text: "-", op: OpSub})
			i += size
		default:
			if text, op, ok := matchOp(s[i:]); ok {
				toks = append(toks, token{kind: tokOp, text: text, op: op})
				i += len(text)
				continue
			}
			if !isIdentRune(r) {
				return nil, false
			}
			j := i
			for j < len(s) {
				r2, n := utf8.DecodeRuneInString(s[j:])
				if !isIdentRune(r2) {
					break
				}
				if _, _, isOp := matchOp(s[j:]); isOp {
					break
				}
				j += n
			}
			toks = append(toks, token{kind: tokIdent, text: s[i:j]})
			i = j
		}
	}
	return toks, true
}

// matchOp matches an operator at the start of s, preferring the longest
// spelling.
func matchOp(s string) (string, Op, bool) {
	for _, g := range glyphsByLength {
		if strings.HasPrefix(s, g) {
			op, _ := LookupOp(g)
			return g, op, true
		}
	}
	for _, sym := range []string{"==", "!=", ">=", "<=", "+", "*", "/", ">", "<"} {
		if strings.HasPrefix(s, sym) {
			op, _ := LookupOp(sym)
			return sym, op, true
		}
	}
	return "", 0, false
}

// isIdentRune accepts ASCII letters, digits, underscore, and any non-ASCII
// rune that is not whitespace, so emoji names like 😀 are identifiers.
func isIdentRune(r rune) bool {
	if r < utf8.RuneSelf {
		return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
	}
	return !unicode.IsSpace(r)
}

// isIdent reports whether s is a single identifier token.
func isIdent(s string) bool {
	if s == "" || (s[0] >= '0' && s[0] <= '9') {
		return false
	}
	toks, ok := scan(s)
	return ok && len(toks) == 1 && toks[0].kind == tokIdent
}

// === Expression parsing ===

type exprParser struct {
	toks []token
	pos  int
}

func (p *exprParser) peek() token {
	if p.pos >= len(p.toks) {
		return token{kind: tokEOF}
	}
	return p.toks[p.pos]
}

func (p *exprParser) next() token {
	t := p.peek()
	if p.pos < len(p.toks) {
		p.pos++
	}
	return t
}

// expr := additive (relop additive)*
func (p *exprParser) expr() (Expr, bool) {
	left, ok := p.additive()
	if !ok {
		return nil, false
	}
	for {
		t := p.peek()
		if t.kind != tokOp || t.op.IsArithmetic() {
			return left, true
		}
		p.next()
		right, ok := p.additive()
		if !ok {
			return nil, false
		}
		left = Binary{Op: t.op, Left: left, Right: right}
	}
}

// additive := term (("+" | "-") term)*
func (p *exprParser) additive() (Expr, bool) {
	left, ok := p.term()
	if !ok {
		return nil, false
	}
	for {
		t := p.peek()
		isAdd := t.kind == tokMinus || (t.kind == tokOp && (t.op == OpAdd || t.op == OpSub))
		if !isAdd {
			return left, true
		}
		p.next()
		right, ok := p.term()
		if !ok {
			return nil, false
		}
		left = Binary{Op: t.op, Left: left, Right: right}
	}
}

// term := unary (("*" | "/") unary)*
func (p *exprParser) term() (Expr, bool) {
	left, ok := p.unary()
	if !ok {
		return nil, false
	}
	for {
		t := p.peek()
		if t.kind != tokOp || (t.op != OpMul && t.op != OpDiv) {
			return left, true
		}
		p.next()
		right, ok := p.unary()
		if !ok {
			return nil, false
		}
		left = Binary{Op: t.op, Left: left, Right: right}
	}
}

// unary := "-" unary | primary
func (p *exprParser) unary() (Expr, bool) {
	if p.peek().kind != tokMinus {
		return p.primary()
	}
	p.next()
	if p.peek().kind == tokNum {
		n, err := strconv.ParseInt("-"+p.next().text, 10, 64)
		if err != nil {
			return nil, false
		}
		return Num{Value: n}, true
	}
	operand, ok := p.unary()
	if !ok {
		return nil, false
	}
	return Binary{Op: OpSub, Left: Num{Value: 0}, Right: operand}, true
}

// primary := number | string | identifier | "(" expr ")"
func (p *exprParser) primary() (Expr, bool) {
	t := p.next()
	switch t.kind {
	case tokNum:
		n, err := strconv.ParseInt(t.text, 10, 64)
		if err != nil {
			return nil, false
		}
		return Num{Value: n}, true
	case tokStr:
		return Str{Value: t.text}, true
	case tokIdent:
		return Ref{Name: t.text}, true
	case tokLParen:
		e, ok := p.expr()
		if !ok || p.next().kind != tokRParen {
			return nil, false
		}
		return e, true
	default:
		return nil, false
	}
}
