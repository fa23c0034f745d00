// Package parser is a small recursive-descent parser for the schema
// language. It recognises the constructs the semantic passes care about
// (schemas, documents, structs, fields, rank profiles, functions, fieldsets
// and document summaries) and keeps every other statement as an opaque
// node. Syntax errors never abort the parse: they are recorded and the
// affected nodes are marked dirty.
package parser

import (
	"fmt"

	"github.com/jward/schemals/internal/tree"
)

// Parse parses content and returns the root schema node together with the
// syntax errors found. The root is never nil.
func Parse(content string) (*Node, []Error) {
	toks, errs := lex(content)
	p := &parser{
		src:  &source{text: content, lines: tree.NewLineIndex(content)},
		toks: toks,
		errs: errs,
	}
	root := p.file()
	return root, p.errs
}

type parser struct {
	src  *source
	toks []token
	pos  int
	errs []Error
}

func (p *parser) peek() *token {
	if p.pos >= len(p.toks) {
		return nil
	}
	return &p.toks[p.pos]
}

func (p *parser) peekAt(n int) *token {
	if p.pos+n >= len(p.toks) {
		return nil
	}
	return &p.toks[p.pos+n]
}

func (p *parser) atKeyword(words ...string) bool {
	t := p.peek()
	if t == nil || t.kind != KindKeyword {
		return false
	}
	for _, w := range words {
		if t.text == w {
			return true
		}
	}
	return false
}

func (p *parser) atPunct(s string) bool {
	t := p.peek()
	return t != nil && t.kind == KindPunct && t.text == s
}

// offset is where a missing construct is reported: the end of the last
// consumed token.
func (p *parser) offset() int {
	if p.pos == 0 || len(p.toks) == 0 {
		if t := p.peek(); t != nil {
			return t.begin
		}
		return 0
	}
	return p.toks[p.pos-1].end
}

func (p *parser) start(typ string) *Node {
	at := p.offset()
	if t := p.peek(); t != nil {
		at = t.begin
	}
	return &Node{typ: typ, begin: at, end: at, src: p.src}
}

func (p *parser) next() *Node {
	t := p.toks[p.pos]
	p.pos++
	return &Node{typ: TypeToken, kind: t.kind, dirty: t.dirty, begin: t.begin, end: t.end, src: p.src}
}

func (p *parser) errorf(begin, end int, format string, args ...any) {
	p.errs = append(p.errs, Error{Begin: begin, End: end, Message: fmt.Sprintf(format, args...)})
}

// missing records an error and returns a zero-width dirty node of typ.
func (p *parser) missing(typ string, what string) *Node {
	at := p.offset()
	found := "end of file"
	if t := p.peek(); t != nil {
		found = fmt.Sprintf("'%s'", t.text)
	}
	p.errorf(at, at, "expected %s, found %s", what, found)
	return &Node{typ: typ, dirty: true, begin: at, end: at, src: p.src}
}

func (p *parser) file() *Node {
	root := &Node{typ: TypeSchema, src: p.src}
	if p.atKeyword("schema", "search") {
		root.add(p.next())
		root.add(p.identifier())
		if p.atKeyword("inherits") {
			root.add(p.inherits(TypeInheritsSchema))
		}
		root.add(p.body())
	} else {
		if t := p.peek(); t != nil {
			p.errorf(t.begin, t.end, "expected 'schema', found '%s'", t.text)
		} else {
			p.errorf(0, 0, "expected 'schema', found end of file")
		}
		root.dirty = true
		for p.peek() != nil {
			if p.atPunct("}") {
				root.add(p.stray())
				continue
			}
			root.add(p.statement())
		}
	}
	for p.peek() != nil {
		root.add(p.stray())
	}
	root.begin, root.end = 0, len(p.src.text)
	return root
}

// stray consumes one unexpected token.
func (p *parser) stray() *Node {
	t := p.peek()
	p.errorf(t.begin, t.end, "unexpected '%s'", t.text)
	n := p.start(TypeOpaque)
	n.add(p.next())
	n.dirty = true
	return n
}

func (p *parser) identifier() *Node {
	t := p.peek()
	if t == nil || t.kind != KindIdentifier {
		return p.missing(TypeIdentifier, "identifier")
	}
	n := p.start(TypeIdentifier)
	n.add(p.next())
	return n
}

// inherits parses "inherits A, B, ...".
func (p *parser) inherits(typ string) *Node {
	n := p.start(typ)
	n.add(p.next())
	n.add(p.identifier())
	for p.atPunct(",") {
		n.add(p.next())
		n.add(p.identifier())
	}
	return n
}

func (p *parser) body() *Node {
	if !p.atPunct("{") {
		return p.missing(TypeBody, "'{'")
	}
	n := p.start(TypeBody)
	n.add(p.next())
	for p.peek() != nil && !p.atPunct("}") {
		n.add(p.statement())
	}
	if p.peek() == nil {
		n.add(p.missing(TypeToken, "'}'"))
		return n
	}
	n.add(p.next())
	return n
}

func (p *parser) statement() *Node {
	t := p.peek()
	if t.kind == KindKeyword {
		switch t.text {
		case "document":
			return p.definition(TypeDocument, true)
		case "struct":
			return p.definition(TypeStruct, true)
		case "rank-profile":
			return p.definition(TypeRankProfile, true)
		case "fieldset":
			return p.definition(TypeFieldset, false)
		case "document-summary":
			return p.definition(TypeDocumentSummary, true)
		case "field":
			return p.field()
		case "function":
			return p.function()
		}
	}
	if t.kind == KindIdentifier {
		if next := p.peekAt(1); next != nil && next.kind == KindPunct && (next.text == ":" || next.text == "{") {
			switch t.text {
			case "expression":
				return p.embedded(TypeExpression, TypeExpressionBody)
			case "indexing":
				return p.embedded(TypeIndexing, TypeIndexingBody)
			}
		}
	}
	return p.opaque()
}

// definition parses "keyword NAME [inherits A, B] { ... }".
func (p *parser) definition(typ string, allowInherits bool) *Node {
	n := p.start(typ)
	n.add(p.next())
	n.add(p.identifier())
	if allowInherits && p.atKeyword("inherits") {
		n.add(p.inherits(TypeInherits))
	}
	n.add(p.body())
	return n
}

// field parses "field NAME type T [{ ... }]". The type expression is kept
// as plain tokens.
func (p *parser) field() *Node {
	n := p.start(TypeField)
	n.add(p.next())
	n.add(p.identifier())
	p.headerTokens(n)
	if p.atPunct("{") {
		n.add(p.body())
	}
	return n
}

// function parses "function [inline] NAME(params) { ... }".
func (p *parser) function() *Node {
	n := p.start(TypeFunction)
	n.add(p.next())
	if p.atKeyword("inline") {
		n.add(p.next())
	}
	n.add(p.identifier())
	p.headerTokens(n)
	n.add(p.body())
	return n
}

// headerTokens consumes tokens on the current line up to an opening brace.
func (p *parser) headerTokens(n *Node) {
	for t := p.peek(); t != nil; t = p.peek() {
		if t.newline || (t.kind == KindPunct && (t.text == "{" || t.text == "}")) {
			return
		}
		n.add(p.next())
	}
}

// embedded parses "expression: ..." or "expression { ... }". The tokens of
// the sub-language region are grouped under a body node of bodyType.
func (p *parser) embedded(typ, bodyType string) *Node {
	n := p.start(typ)
	n.add(p.next())
	if p.atPunct(":") {
		n.add(p.next())
		b := p.start(bodyType)
		for t := p.peek(); t != nil; t = p.peek() {
			if t.newline || (t.kind == KindPunct && t.text == "}") {
				break
			}
			b.add(p.next())
		}
		n.add(b)
		return n
	}

	n.add(p.next())
	b := p.start(bodyType)
	depth := 0
	for t := p.peek(); t != nil; t = p.peek() {
		if t.kind == KindPunct && t.text == "}" {
			if depth == 0 {
				break
			}
			depth--
		}
		if t.kind == KindPunct && t.text == "{" {
			depth++
		}
		b.add(p.next())
	}
	n.add(b)
	if p.peek() == nil {
		n.add(p.missing(TypeToken, "'}'"))
		return n
	}
	n.add(p.next())
	return n
}

// opaque consumes a statement the parser does not model: the rest of the
// line, or a balanced brace block if one opens on it.
func (p *parser) opaque() *Node {
	n := p.start(TypeOpaque)
	depth := 0
	for t := p.peek(); t != nil; t = p.peek() {
		if depth == 0 && len(n.children) > 0 && t.newline {
			break
		}
		if t.kind == KindPunct && t.text == "}" {
			if depth == 0 {
				break
			}
			depth--
			n.add(p.next())
			if depth == 0 {
				break
			}
			continue
		}
		if t.kind == KindPunct && t.text == "{" {
			depth++
		}
		n.add(p.next())
	}
	if depth > 0 {
		n.add(p.missing(TypeToken, "'}'"))
	}
	return n
}
