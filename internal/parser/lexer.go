package parser

import (
	"unicode/utf8"

	"github.com/jward/schemals/internal/tree"
)

// Token kinds produced by the lexer.
const (
	KindIdentifier tree.TokenKind = "IDENTIFIER"
	KindKeyword    tree.TokenKind = "KEYWORD"
	KindPunct      tree.TokenKind = "PUNCT"
	KindString     tree.TokenKind = "STRING"
	KindNumber     tree.TokenKind = "NUMBER"
	KindOther      tree.TokenKind = "OTHER"
)

var keywords = map[string]bool{
	"schema":           true,
	"search":           true,
	"document":         true,
	"struct":           true,
	"field":            true,
	"type":             true,
	"inherits":         true,
	"rank-profile":     true,
	"function":         true,
	"inline":           true,
	"fieldset":         true,
	"document-summary": true,
}

type token struct {
	kind  tree.TokenKind
	text  string
	begin int
	end   int
	// newline is set when a line break separates the token from the
	// previous one.
	newline bool
	dirty   bool
}

// lex splits src into tokens. Whitespace and # comments are dropped. Lexing
// never fails; malformed input yields dirty tokens.
func lex(src string) ([]token, []Error) {
	var (
		toks    []token
		errs    []Error
		newline bool
	)
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == '\n':
			newline = true
			i++
			continue
		case c == ' ' || c == '\t' || c == '\r':
			i++
			continue
		case c == '#':
			for i < len(src) && src[i] != '\n' {
				i++
			}
			continue
		}

		start := i
		t := token{begin: start, newline: newline}
		newline = false
		switch {
		case isIdentStart(c):
			i++
			for i < len(src) && isIdentPart(src[i]) {
				i++
			}
			t.kind = KindIdentifier
			if keywords[src[start:i]] {
				t.kind = KindKeyword
			}
		case isDigit(c):
			i++
			for i < len(src) && (isDigit(src[i]) || src[i] == '.' || src[i] == 'e' || src[i] == 'E') {
				i++
			}
			t.kind = KindNumber
		case c == '"' || c == '\'':
			t.kind = KindString
			var closed bool
			i, closed = scanString(src, i)
			if !closed {
				t.dirty = true
				errs = append(errs, Error{Begin: start, End: i, Message: "unterminated string"})
			}
		case isPunct(c):
			i++
			t.kind = KindPunct
		default:
			_, size := utf8.DecodeRuneInString(src[i:])
			i += size
			t.kind = KindOther
		}
		t.end = i
		t.text = src[start:i]
		toks = append(toks, t)
	}
	return toks, errs
}

// scanString returns the offset just past the closing quote of the string
// starting at i. An unterminated string ends at the line break.
func scanString(src string, i int) (int, bool) {
	quote := src[i]
	i++
	for i < len(src) {
		switch src[i] {
		case '\\':
			if i+1 < len(src) && src[i+1] != '\n' {
				i += 2
				continue
			}
		case quote:
			return i + 1, true
		case '\n':
			return i, false
		}
		i++
	}
	return len(src), false
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c) || c == '-'
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isPunct(c byte) bool {
	switch c {
	case '{', '}', '(', ')', '[', ']', ',', ':', ';', '.', '=', '+', '-', '*', '/', '<', '>', '!', '|', '&', '?', '%', '^', '~', '@', '$':
		return true
	}
	return false
}
