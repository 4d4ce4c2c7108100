// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ast

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// MaxDepth bounds list and tuple nesting.
const MaxDepth = 64

var errUnexpectedEOF = errors.New("unexpected end of input")

// ParseError is a syntax error with the position it was detected at.
type ParseError struct {
	Message string
	Span    Span
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Span.StartLine, e.Span.StartColumn, e.Message)
}

type parser struct {
	src    string
	pos    int
	line   uint32
	col    uint32
	nextID uint64
	depth  int
}

// Parse parses every top-level expression of [src].
func Parse(src string) ([]*Expr, error) {
	p := &parser{src: src, line: 1, col: 1, nextID: 1}
	var exprs []*Expr
	for {
		if err := p.skipSpace(); err != nil {
			return nil, err
		}
		if p.eof() {
			return exprs, nil
		}
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, e)
	}
}

// ParseOne parses [src] which must contain exactly one expression.
func ParseOne(src string) (*Expr, error) {
	exprs, err := Parse(src)
	if err != nil {
		return nil, err
	}
	if len(exprs) != 1 {
		return nil, &ParseError{
			Message: fmt.Sprintf("expected a single expression, found %d", len(exprs)),
			Span:    Span{StartLine: 1, StartColumn: 1},
		}
	}
	return exprs[0], nil
}

func (p *parser) eof() bool { return p.pos >= len(p.src) }

func (p *parser) peek() byte {
	if p.eof() {
		return 0
	}
	return p.src[p.pos]
}

func (p *parser) peekAt(off int) byte {
	if p.pos+off >= len(p.src) {
		return 0
	}
	return p.src[p.pos+off]
}

func (p *parser) advance() rune {
	r, size := utf8.DecodeRuneInString(p.src[p.pos:])
	p.pos += size
	if r == '\n' {
		p.line++
		p.col = 1
	} else {
		p.col++
	}
	return r
}

func (p *parser) errorf(line, col uint32, format string, args ...interface{}) error {
	return &ParseError{
		Message: fmt.Sprintf(format, args...),
		Span:    Span{StartLine: line, StartColumn: col, EndLine: p.line, EndColumn: p.col},
	}
}

func (p *parser) skipSpace() error {
	for !p.eof() {
		c := p.peek()
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			p.advance()
		case c == ';':
			for !p.eof() && p.peek() != '\n' {
				p.advance()
			}
		default:
			return nil
		}
	}
	return nil
}

func (p *parser) node(kind Kind, line, col uint32) *Expr {
	e := &Expr{
		ID:   p.nextID,
		Kind: kind,
		Span: Span{StartLine: line, StartColumn: col},
	}
	p.nextID++
	return e
}

func (p *parser) finish(e *Expr) *Expr {
	e.Span.EndLine = p.line
	if p.col > 1 {
		e.Span.EndColumn = p.col - 1
	} else {
		e.Span.EndColumn = p.col
	}
	return e
}

func (p *parser) parseExpr() (*Expr, error) {
	line, col := p.line, p.col
	c := p.peek()
	switch {
	case c == '(':
		return p.parseList(line, col)
	case c == '{':
		return p.parseTuple(line, col)
	case c == ')' || c == '}':
		p.advance()
		return nil, p.errorf(line, col, "unexpected '%c'", c)
	case c == '"':
		s, err := p.parseString(false)
		if err != nil {
			return nil, err
		}
		e := p.node(ASCIILit, line, col)
		e.Text = s
		return p.finish(e), nil
	case c == 'u' && p.peekAt(1) == '"':
		p.advance()
		s, err := p.parseString(true)
		if err != nil {
			return nil, err
		}
		e := p.node(UTF8Lit, line, col)
		e.Text = s
		return p.finish(e), nil
	case c == '\'':
		p.advance()
		return p.parsePrincipal(line, col)
	case c == '.' && isIdentStart(p.peekAt(1)):
		p.advance()
		return p.parseRelative(line, col)
	case c == '<' && isAlpha(p.peekAt(1)):
		if e, ok := p.tryTraitRef(line, col); ok {
			return e, nil
		}
	}
	return p.parseAtom(line, col)
}

func (p *parser) parseList(line, col uint32) (*Expr, error) {
	p.depth++
	defer func() { p.depth-- }()
	if p.depth > MaxDepth {
		return nil, p.errorf(line, col, "nesting depth exceeds %d", MaxDepth)
	}
	p.advance()
	e := p.node(List, line, col)
	for {
		if err := p.skipSpace(); err != nil {
			return nil, err
		}
		if p.eof() {
			return nil, p.errorf(line, col, "%s: unclosed list", errUnexpectedEOF)
		}
		if p.peek() == ')' {
			p.advance()
			return p.finish(e), nil
		}
		if p.peek() == '}' {
			return nil, p.errorf(p.line, p.col, "expected ')' but found '}'")
		}
		child, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		e.Children = append(e.Children, child)
	}
}

func (p *parser) parseTuple(line, col uint32) (*Expr, error) {
	p.depth++
	defer func() { p.depth-- }()
	if p.depth > MaxDepth {
		return nil, p.errorf(line, col, "nesting depth exceeds %d", MaxDepth)
	}
	p.advance()
	e := p.node(Tuple, line, col)
	for {
		if err := p.skipSpace(); err != nil {
			return nil, err
		}
		if p.eof() {
			return nil, p.errorf(line, col, "%s: unclosed tuple", errUnexpectedEOF)
		}
		if p.peek() == '}' {
			p.advance()
			return p.finish(e), nil
		}
		kline, kcol := p.line, p.col
		if !isIdentStart(p.peek()) {
			return nil, p.errorf(kline, kcol, "expected tuple key")
		}
		key := p.node(Atom, kline, kcol)
		key.Text = p.scanIdent()
		p.finish(key)
		if err := p.skipSpace(); err != nil {
			return nil, err
		}
		if p.peek() != ':' {
			return nil, p.errorf(p.line, p.col, "expected ':' after tuple key %q", key.Text)
		}
		p.advance()
		if err := p.skipSpace(); err != nil {
			return nil, err
		}
		if p.eof() {
			return nil, p.errorf(line, col, "%s: unclosed tuple", errUnexpectedEOF)
		}
		val, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		e.Children = append(e.Children, key, val)
		if err := p.skipSpace(); err != nil {
			return nil, err
		}
		if p.peek() == ',' {
			p.advance()
		}
	}
}

func (p *parser) parseString(utf bool) (string, error) {
	line, col := p.line, p.col
	p.advance() // opening quote
	var b strings.Builder
	for {
		if p.eof() {
			return "", p.errorf(line, col, "%s: unterminated string", errUnexpectedEOF)
		}
		r := p.advance()
		switch {
		case r == '"':
			return b.String(), nil
		case r == '\\':
			if p.eof() {
				return "", p.errorf(line, col, "%s: unterminated escape", errUnexpectedEOF)
			}
			esc := p.advance()
			switch esc {
			case '"', '\\':
				b.WriteRune(esc)
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			case '0':
				b.WriteByte(0)
			case 'u':
				if !utf {
					return "", p.errorf(p.line, p.col, "unicode escape in ascii string")
				}
				r, err := p.parseUnicodeEscape()
				if err != nil {
					return "", err
				}
				b.WriteRune(r)
			default:
				return "", p.errorf(p.line, p.col, "invalid escape '\\%c'", esc)
			}
		case !utf && (r > 0x7e || (r < 0x20 && r != '\n' && r != '\t' && r != '\r')):
			return "", p.errorf(p.line, p.col, "invalid character %q in ascii string", r)
		default:
			b.WriteRune(r)
		}
	}
}

func (p *parser) parseUnicodeEscape() (rune, error) {
	line, col := p.line, p.col
	if p.peek() != '{' {
		return 0, p.errorf(line, col, "expected '{' after \\u")
	}
	p.advance()
	start := p.pos
	for !p.eof() && p.peek() != '}' {
		p.advance()
	}
	if p.eof() {
		return 0, p.errorf(line, col, "%s: unterminated unicode escape", errUnexpectedEOF)
	}
	digits := p.src[start:p.pos]
	p.advance()
	v, err := strconv.ParseUint(digits, 16, 32)
	if err != nil || len(digits) == 0 || len(digits) > 6 || !utf8.ValidRune(rune(v)) {
		return 0, p.errorf(line, col, "invalid unicode escape \\u{%s}", digits)
	}
	return rune(v), nil
}

func (p *parser) parsePrincipal(line, col uint32) (*Expr, error) {
	start := p.pos
	for !p.eof() && isAlnum(p.peek()) {
		p.advance()
	}
	addr := p.src[start:p.pos]
	if addr == "" {
		return nil, p.errorf(line, col, "expected principal after '")
	}
	e := p.node(PrincipalLit, line, col)
	e.Text = addr
	if p.peek() == '.' && isIdentStart(p.peekAt(1)) {
		p.advance()
		e.Name = p.scanContractName()
		if p.peek() == '.' && isIdentStart(p.peekAt(1)) {
			p.advance()
			e.Kind = FieldLit
			e.Field = p.scanIdent()
		}
	}
	return p.finish(e), nil
}

func (p *parser) parseRelative(line, col uint32) (*Expr, error) {
	e := p.node(ContractRefLit, line, col)
	e.Name = p.scanContractName()
	if p.peek() == '.' && isIdentStart(p.peekAt(1)) {
		p.advance()
		e.Kind = FieldLit
		e.Field = p.scanIdent()
	}
	return p.finish(e), nil
}

func (p *parser) tryTraitRef(line, col uint32) (*Expr, bool) {
	i := p.pos + 1
	for i < len(p.src) && isIdentChar(p.src[i]) && p.src[i] != '>' {
		i++
	}
	if i >= len(p.src) || p.src[i] != '>' || i == p.pos+1 {
		return nil, false
	}
	name := p.src[p.pos+1 : i]
	for p.pos <= i {
		p.advance()
	}
	e := p.node(TraitRef, line, col)
	e.Text = name
	return p.finish(e), true
}

func (p *parser) parseAtom(line, col uint32) (*Expr, error) {
	c := p.peek()
	switch {
	case c == '0' && p.peekAt(1) == 'x':
		p.advance()
		p.advance()
		start := p.pos
		for !p.eof() && isHex(p.peek()) {
			p.advance()
		}
		digits := p.src[start:p.pos]
		if !p.atDelimiter() {
			return nil, p.errorf(line, col, "invalid buffer literal")
		}
		if len(digits)%2 != 0 {
			return nil, p.errorf(line, col, "buffer literal has odd number of hex digits")
		}
		b, err := hex.DecodeString(digits)
		if err != nil {
			return nil, p.errorf(line, col, "invalid buffer literal: %s", err)
		}
		e := p.node(BufferLit, line, col)
		e.Bytes = b
		return p.finish(e), nil
	case isDigit(c) || (c == '-' && isDigit(p.peekAt(1))):
		start := p.pos
		p.advance()
		for !p.eof() && isDigit(p.peek()) {
			p.advance()
		}
		if !p.atDelimiter() {
			return nil, p.errorf(line, col, "invalid integer literal %q", p.src[start:p.pos]+string(p.peek()))
		}
		e := p.node(IntLit, line, col)
		e.Text = p.src[start:p.pos]
		return p.finish(e), nil
	case c == 'u' && isDigit(p.peekAt(1)):
		p.advance()
		start := p.pos
		for !p.eof() && isDigit(p.peek()) {
			p.advance()
		}
		if !p.atDelimiter() {
			return nil, p.errorf(line, col, "invalid unsigned integer literal")
		}
		e := p.node(UIntLit, line, col)
		e.Text = p.src[start:p.pos]
		return p.finish(e), nil
	case isIdentStart(c):
		e := p.node(Atom, line, col)
		e.Text = p.scanIdent()
		if !p.atDelimiter() {
			return nil, p.errorf(line, col, "unexpected character %q after %q", p.peek(), e.Text)
		}
		return p.finish(e), nil
	}
	p.advance()
	return nil, p.errorf(line, col, "unexpected character %q", c)
}

func (p *parser) atDelimiter() bool {
	if p.eof() {
		return true
	}
	switch p.peek() {
	case ' ', '\t', '\n', '\r', '(', ')', '{', '}', ',', ';', ':':
		return true
	}
	return false
}

func (p *parser) scanIdent() string {
	start := p.pos
	for !p.eof() && isIdentChar(p.peek()) {
		p.advance()
	}
	return p.src[start:p.pos]
}

func (p *parser) scanContractName() string {
	start := p.pos
	for !p.eof() && (isAlnum(p.peek()) || p.peek() == '-' || p.peek() == '_') {
		p.advance()
	}
	return p.src[start:p.pos]
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
func isAlpha(c byte) bool { return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') }
func isAlnum(c byte) bool { return isAlpha(c) || isDigit(c) }
func isHex(c byte) bool   { return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F') }

func isIdentStart(c byte) bool {
	return isAlpha(c) || strings.IndexByte("-+*/<>=!?_", c) >= 0
}

func isIdentChar(c byte) bool {
	return isAlnum(c) || strings.IndexByte("-+*/<>=!?_", c) >= 0
}
