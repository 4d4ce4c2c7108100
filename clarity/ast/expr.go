// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package ast turns Clarity source text into a tree of expressions carrying
// source positions. It performs no semantic validation.
package ast

import (
	"fmt"
	"strings"
)

// Kind tags the syntactic category of an Expr.
type Kind uint8

const (
	Atom Kind = iota // bare identifier, keyword or operator
	List             // ( ... )
	Tuple            // { key: value, ... }
	IntLit
	UIntLit
	BufferLit
	ASCIILit
	UTF8Lit
	PrincipalLit   // 'SP... or 'SP....name
	ContractRefLit // .name, relative to the deployer
	TraitRef       // <name>
	FieldLit       // 'SP....name.trait or .name.trait
)

var kindNames = [...]string{
	Atom:           "atom",
	List:           "list",
	Tuple:          "tuple",
	IntLit:         "int",
	UIntLit:        "uint",
	BufferLit:      "buffer",
	ASCIILit:       "string-ascii",
	UTF8Lit:        "string-utf8",
	PrincipalLit:   "principal",
	ContractRefLit: "contract-reference",
	TraitRef:       "trait-reference",
	FieldLit:       "field",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", k)
}

// Span is a 1-based, inclusive source range.
type Span struct {
	StartLine   uint32 `json:"start_line"`
	StartColumn uint32 `json:"start_column"`
	EndLine     uint32 `json:"end_line"`
	EndColumn   uint32 `json:"end_column"`
}

func (s Span) String() string {
	return fmt.Sprintf("%d:%d", s.StartLine, s.StartColumn)
}

// Expr is one node of a parsed contract.
//
// Literal payloads stay textual: IntLit/UIntLit carry decimal digits (with the
// sign for IntLit) in Text, BufferLit carries Bytes, string literals carry the
// decoded contents in Text, PrincipalLit carries the address in Text and the
// contract name (if any) in Name, FieldLit additionally carries the trait name
// in Field.
type Expr struct {
	ID       uint64  `json:"id"`
	Kind     Kind    `json:"kind"`
	Text     string  `json:"text,omitempty"`
	Bytes    []byte  `json:"bytes,omitempty"`
	Name     string  `json:"name,omitempty"`
	Field    string  `json:"field,omitempty"`
	Children []*Expr `json:"children,omitempty"`
	Span     Span    `json:"span"`
}

// IsAtom reports whether e is the identifier [name].
func (e *Expr) IsAtom(name string) bool {
	return e != nil && e.Kind == Atom && e.Text == name
}

// Head returns the leading atom of a list expression, or "" if there is none.
func (e *Expr) Head() string {
	if e == nil || e.Kind != List || len(e.Children) == 0 || e.Children[0].Kind != Atom {
		return ""
	}
	return e.Children[0].Text
}

// Args returns the list elements after the head.
func (e *Expr) Args() []*Expr {
	if e == nil || len(e.Children) == 0 {
		return nil
	}
	return e.Children[1:]
}

// Walk visits e and all its descendants in pre-order. Returning false from fn
// skips the children of the current node.
func (e *Expr) Walk(fn func(*Expr) bool) {
	if e == nil || !fn(e) {
		return
	}
	for _, c := range e.Children {
		c.Walk(fn)
	}
}

// String renders the expression back to Clarity syntax.
func (e *Expr) String() string {
	var b strings.Builder
	e.write(&b)
	return b.String()
}

func (e *Expr) write(b *strings.Builder) {
	switch e.Kind {
	case Atom, IntLit:
		b.WriteString(e.Text)
	case UIntLit:
		b.WriteString("u")
		b.WriteString(e.Text)
	case BufferLit:
		b.WriteString("0x")
		b.WriteString(fmt.Sprintf("%x", e.Bytes))
	case ASCIILit:
		b.WriteString(QuoteASCII(e.Text))
	case UTF8Lit:
		b.WriteString("u")
		b.WriteString(QuoteUTF8(e.Text))
	case PrincipalLit:
		b.WriteString("'")
		b.WriteString(e.Text)
		if e.Name != "" {
			b.WriteString(".")
			b.WriteString(e.Name)
		}
	case ContractRefLit:
		b.WriteString(".")
		b.WriteString(e.Name)
	case FieldLit:
		if e.Text != "" {
			b.WriteString("'")
			b.WriteString(e.Text)
		}
		b.WriteString(".")
		b.WriteString(e.Name)
		b.WriteString(".")
		b.WriteString(e.Field)
	case TraitRef:
		b.WriteString("<")
		b.WriteString(e.Text)
		b.WriteString(">")
	case List:
		b.WriteString("(")
		for i, c := range e.Children {
			if i > 0 {
				b.WriteString(" ")
			}
			c.write(b)
		}
		b.WriteString(")")
	case Tuple:
		b.WriteString("{ ")
		for i := 0; i+1 < len(e.Children); i += 2 {
			if i > 0 {
				b.WriteString(", ")
			}
			e.Children[i].write(b)
			b.WriteString(": ")
			e.Children[i+1].write(b)
		}
		b.WriteString(" }")
	}
}

// QuoteASCII renders s as a Clarity ASCII string literal.
func QuoteASCII(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		case '\r':
			b.WriteString(`\r`)
		case 0:
			b.WriteString(`\0`)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte('"')
	return b.String()
}

// QuoteUTF8 renders s as the body of a Clarity UTF-8 string literal; every
// non-ASCII rune is written as a \u{...} escape.
func QuoteUTF8(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch {
		case r == '"':
			b.WriteString(`\"`)
		case r == '\\':
			b.WriteString(`\\`)
		case r == '\n':
			b.WriteString(`\n`)
		case r == '\t':
			b.WriteString(`\t`)
		case r == '\r':
			b.WriteString(`\r`)
		case r < 0x20 || r > 0x7e:
			fmt.Fprintf(&b, `\u{%x}`, r)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}
