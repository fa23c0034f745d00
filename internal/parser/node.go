package parser

import (
	"fmt"

	"github.com/jward/schemals/internal/tree"
)

// Node types produced by the parser.
const (
	TypeSchema          = "schema"
	TypeDocument        = "document"
	TypeStruct          = "struct"
	TypeField           = "field"
	TypeRankProfile     = "rankProfile"
	TypeFunction        = "function"
	TypeFieldset        = "fieldset"
	TypeDocumentSummary = "documentSummary"
	TypeIdentifier      = "identifier"
	TypeInherits        = "inherits"
	TypeInheritsSchema  = "inheritsSchema"
	TypeBody            = "body"
	TypeOpaque          = "opaque"
	TypeToken           = "token"
	TypeExpression      = "expression"
	TypeExpressionBody  = "expressionBody"
	TypeIndexing        = "indexing"
	TypeIndexingBody    = "indexingBody"
)

// Error is a syntax error at a byte range of the parsed text.
type Error struct {
	Begin   int
	End     int
	Message string
}

func (e Error) Error() string {
	return fmt.Sprintf("offset %d: %s", e.Begin, e.Message)
}

// source is shared by every node of one parse.
type source struct {
	text  string
	lines *tree.LineIndex
}

// Node is a parse node of the primary schema grammar. It implements
// tree.RawNode.
type Node struct {
	typ      string
	kind     tree.TokenKind
	dirty    bool
	begin    int
	end      int
	children []*Node
	src      *source
}

var _ tree.RawNode = (*Node)(nil)

func (n *Node) Type() string { return n.typ }
func (n *Node) TokenKind() tree.TokenKind { return n.kind }
func (n *Node) IsDirty() bool { return n.dirty }
func (n *Node) BeginOffset() int { return n.begin }
func (n *Node) EndOffset() int { return n.end }
func (n *Node) SetBeginOffset(offset int) { n.begin = offset }
func (n *Node) SetEndOffset(offset int) { n.end = offset }
func (n *Node) TokenSource() tree.TokenSource { return n.src.lines }

func (n *Node) Children() []tree.RawNode {
	out := make([]tree.RawNode, len(n.children))
	for i, c := range n.children {
		out[i] = c
	}
	return out
}

func (n *Node) Source() string {
	begin, end := n.begin, n.end
	if begin < 0 {
		begin = 0
	}
	if end > len(n.src.text) {
		end = len(n.src.text)
	}
	if end < begin {
		return ""
	}
	return n.src.text[begin:end]
}

// Lines returns the line table of the parsed text.
func (n *Node) Lines() *tree.LineIndex { return n.src.lines }

func (n *Node) add(child *Node) {
	if child == nil {
		return
	}
	if len(n.children) == 0 && n.end == n.begin {
		n.begin = child.begin
	}
	n.children = append(n.children, child)
	if child.end > n.end {
		n.end = child.end
	}
	if child.dirty {
		n.dirty = true
	}
}
