package tree

import (
	"sort"
	"unicode/utf16"

	"go.lsp.dev/protocol"
)

// TokenKind is the grammar-specific kind of a leaf token. The empty kind
// means "not a token".
type TokenKind string

// RawNode is the shape every grammar's parse node must have to be wrapped
// into a unified tree. Offsets are byte offsets into the text the grammar
// parsed; they are mutable so live edits can be spliced in.
type RawNode interface {
	// Type is the grammar production or token name.
	Type() string
	TokenKind() TokenKind
	Children() []RawNode
	IsDirty() bool
	BeginOffset() int
	EndOffset() int
	SetBeginOffset(offset int)
	SetEndOffset(offset int)
	Source() string
	TokenSource() TokenSource
}

// TokenSource maps byte offsets in a parsed text to editor positions.
type TokenSource interface {
	PositionAt(offset int) protocol.Position
}

// LineIndex is a TokenSource over a string. Characters are counted in
// UTF-16 code units, as editors expect.
type LineIndex struct {
	text       string
	lineStarts []int
}

var _ TokenSource = (*LineIndex)(nil)

// NewLineIndex builds a line table for text.
func NewLineIndex(text string) *LineIndex {
	starts := []int{0}
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &LineIndex{text: text, lineStarts: starts}
}

// PositionAt returns the position of a byte offset, clamped to the text.
func (l *LineIndex) PositionAt(offset int) protocol.Position {
	if offset < 0 {
		offset = 0
	}
	if offset > len(l.text) {
		offset = len(l.text)
	}
	line := sort.Search(len(l.lineStarts), func(i int) bool {
		return l.lineStarts[i] > offset
	}) - 1
	start := l.lineStarts[line]
	var character uint32
	for _, r := range l.text[start:offset] {
		character += uint32(utf16.RuneLen(r))
	}
	return protocol.Position{Line: uint32(line), Character: character}
}

// OffsetAt is the inverse of PositionAt. Positions past the end of a line
// clamp to the line end.
func (l *LineIndex) OffsetAt(pos protocol.Position) int {
	if int(pos.Line) >= len(l.lineStarts) {
		return len(l.text)
	}
	offset := l.lineStarts[pos.Line]
	var character uint32
	for i, r := range l.text[offset:] {
		if r == '\n' || character >= pos.Character {
			return offset + i
		}
		character += uint32(utf16.RuneLen(r))
	}
	return len(l.text)
}

// LineCount returns the number of lines in the text.
func (l *LineIndex) LineCount() int {
	return len(l.lineStarts)
}

// translate shifts a position parsed inside an embedded region into the
// coordinate space of the enclosing file. Only the first line of the region
// is shifted horizontally.
func translate(offset, pos protocol.Position) protocol.Position {
	if pos.Line == 0 {
		pos.Character += offset.Character
	}
	pos.Line += offset.Line
	return pos
}

func rawRange(raw RawNode, offset protocol.Position) protocol.Range {
	ts := raw.TokenSource()
	if ts == nil {
		return protocol.Range{Start: offset, End: offset}
	}
	return protocol.Range{
		Start: translate(offset, ts.PositionAt(raw.BeginOffset())),
		End:   translate(offset, ts.PositionAt(raw.EndOffset())),
	}
}
