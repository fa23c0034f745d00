package tree

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
	"go.lsp.dev/protocol"
)

// SitterNode adapts a tree-sitter node to RawNode so any tree-sitter
// grammar can supply an embedded sub-language region. Tree-sitter offsets
// are immutable, so edit-splicing works on a private copy.
type SitterNode struct {
	node     *sitter.Node
	src      []byte
	lines    *LineIndex
	grammar  *sitter.Language
	typeName string
	begin    int
	end      int
}

var _ RawNode = (*SitterNode)(nil)

// NewSitterNode wraps node, whose tree was parsed from src with grammar.
func NewSitterNode(node *sitter.Node, src []byte, grammar *sitter.Language) *SitterNode {
	return newSitterNode(node, src, NewLineIndex(string(src)), grammar)
}

func newSitterNode(node *sitter.Node, src []byte, lines *LineIndex, grammar *sitter.Language) *SitterNode {
	return &SitterNode{
		node:     node,
		src:      src,
		lines:    lines,
		grammar:  grammar,
		typeName: node.Type(),
		begin:    int(node.StartByte()),
		end:      int(node.EndByte()),
	}
}

func (s *SitterNode) Type() string { return s.typeName }

func (s *SitterNode) TokenKind() TokenKind {
	if s.node.ChildCount() > 0 {
		return ""
	}
	return TokenKind(s.typeName)
}

func (s *SitterNode) Children() []RawNode {
	count := int(s.node.ChildCount())
	children := make([]RawNode, 0, count)
	for i := 0; i < count; i++ {
		child := s.node.Child(i)
		if child == nil {
			continue
		}
		children = append(children, newSitterNode(child, s.src, s.lines, s.grammar))
	}
	return children
}

func (s *SitterNode) IsDirty() bool {
	return s.node.IsError() || s.node.IsMissing() || s.node.HasError()
}

func (s *SitterNode) BeginOffset() int { return s.begin }
func (s *SitterNode) EndOffset() int { return s.end }
func (s *SitterNode) SetBeginOffset(offset int) { s.begin = offset }
func (s *SitterNode) SetEndOffset(offset int) { s.end = offset }
func (s *SitterNode) TokenSource() TokenSource { return s.lines }

// Node returns the wrapped tree-sitter node.
func (s *SitterNode) Node() *sitter.Node { return s.node }

// Grammar returns the grammar the node was parsed with.
func (s *SitterNode) Grammar() *sitter.Language { return s.grammar }

// SourceBytes returns the whole sub-language source the node's tree was
// parsed from.
func (s *SitterNode) SourceBytes() []byte { return s.src }

func (s *SitterNode) Source() string {
	begin, end := clampOffsets(s.begin, s.end, len(s.src))
	return string(s.src[begin:end])
}

func clampOffsets(begin, end, size int) (int, int) {
	if begin < 0 {
		begin = 0
	}
	if end > size {
		end = size
	}
	if end < begin {
		end = begin
	}
	return begin, end
}

// ParseSubLanguage parses src with a tree-sitter grammar and wraps the
// result as language, positioned at offset in the enclosing file.
func ParseSubLanguage(ctx context.Context, grammar *sitter.Language, src []byte, language Language, offset protocol.Position) (*Node, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(grammar)

	t, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter parse: %w", err)
	}
	return Wrap(NewSitterNode(t.RootNode(), src, grammar), language, offset), nil
}
