package tree

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.lsp.dev/protocol"
)

// fakeNode is a minimal RawNode over a shared source text.
type fakeNode struct {
	typ      string
	kind     TokenKind
	dirty    bool
	begin    int
	end      int
	children []RawNode
	text     *string
	lines    *LineIndex
}

func (f *fakeNode) Type() string { return f.typ }
func (f *fakeNode) TokenKind() TokenKind { return f.kind }
func (f *fakeNode) Children() []RawNode { return f.children }
func (f *fakeNode) IsDirty() bool { return f.dirty }
func (f *fakeNode) BeginOffset() int { return f.begin }
func (f *fakeNode) EndOffset() int { return f.end }
func (f *fakeNode) SetBeginOffset(o int) { f.begin = o }
func (f *fakeNode) SetEndOffset(o int) { f.end = o }
func (f *fakeNode) TokenSource() TokenSource { return f.lines }
func (f *fakeNode) Source() string { return (*f.text)[f.begin:f.end] }

// tokenize builds a two-level fake tree: a root spanning text and one leaf
// per whitespace-separated word.
func tokenize(text string) *fakeNode {
	lines := NewLineIndex(text)
	root := &fakeNode{typ: "root", begin: 0, end: len(text), text: &text, lines: lines}
	start := -1
	for i := 0; i <= len(text); i++ {
		atSpace := i == len(text) || text[i] == ' ' || text[i] == '\n'
		if !atSpace && start == -1 {
			start = i
		}
		if atSpace && start != -1 {
			root.children = append(root.children, &fakeNode{
				typ: "word", kind: "WORD", begin: start, end: i, text: &text, lines: lines,
			})
			start = -1
		}
	}
	return root
}

func leaves(n *Node) []*Node {
	var out []*Node
	n.Walk(func(c *Node) bool {
		if c.IsLeaf() {
			out = append(out, c)
		}
		return true
	})
	return out
}

func TestWrap_LeafSequenceReconstructsText(t *testing.T) {
	t.Parallel()
	root := WrapPrimary(tokenize("schema music {\n}"))

	var words []string
	for _, l := range leaves(root) {
		words = append(words, l.Text())
	}
	assert.Equal(t, []string{"schema", "music", "{", "}"}, words)
	assert.Equal(t, "schema music {\n}", root.Text())
	assert.Equal(t, LanguagePrimary, root.Language())
	assert.Nil(t, root.Parent())
}

func TestWrap_SkipsNilChildren(t *testing.T) {
	t.Parallel()
	raw := tokenize("a b")
	raw.children = append([]RawNode{nil}, raw.children...)
	root := WrapPrimary(raw)
	assert.Equal(t, 2, root.Len())
}

func TestWrap_TokenKindOnlyOnLeaves(t *testing.T) {
	t.Parallel()
	raw := tokenize("a b")
	raw.kind = "SHOULD_NOT_APPEAR"
	root := WrapPrimary(raw)
	assert.Equal(t, TokenKind(""), root.TokenKind())
	assert.Equal(t, TokenKind("WORD"), root.Child(0).TokenKind())
}

func TestWrap_DirtyPrimaryLeafHasNoTokenKind(t *testing.T) {
	t.Parallel()
	raw := tokenize("a")
	raw.children[0].(*fakeNode).dirty = true
	root := WrapPrimary(raw)
	leaf := root.Child(0)
	assert.True(t, leaf.IsDirty())
	assert.Equal(t, TokenKind(""), leaf.TokenKind())
	assert.Equal(t, TokenKind("WORD"), leaf.DirtyTokenKind())
}

func TestWrap_OffsetTranslatesEmbeddedRegion(t *testing.T) {
	t.Parallel()
	raw := tokenize("a +\nb")
	root := Wrap(raw, LanguageRankExpression, protocol.Position{Line: 4, Character: 20})

	a := root.Child(0)
	assert.Equal(t, protocol.Position{Line: 4, Character: 20}, a.Range().Start)
	assert.Equal(t, protocol.Position{Line: 4, Character: 21}, a.Range().End)

	// Only the first line of the region is shifted horizontally.
	b := root.Child(2)
	assert.Equal(t, protocol.Position{Line: 5, Character: 0}, b.Range().Start)
	assert.Equal(t, LanguageRankExpression, b.Language())
}

func TestSynthetic(t *testing.T) {
	t.Parallel()
	n := NewSynthetic(protocol.Range{}, "placeholder", "identifier")
	assert.Equal(t, LanguageSynthetic, n.Language())
	assert.Equal(t, "placeholder", n.Text())
	assert.Nil(t, n.Raw())

	require.NoError(t, n.SetSimulatedType("identifierStr"))
	assert.True(t, n.IsType("identifierStr"))

	// Boundary edits are ignored without a raw node.
	before := n.Range()
	n.SetNewStartCharacter(10)
	n.SetNewEndCharacter(12)
	assert.Equal(t, before, n.Range())
}

func TestSetSimulatedType_RejectsParsedNodes(t *testing.T) {
	t.Parallel()
	root := WrapPrimary(tokenize("a"))
	err := root.SetSimulatedType("x")
	require.ErrorIs(t, err, ErrNotSynthetic)
	assert.Equal(t, "root", root.Type())
}

func TestAttachSymbol(t *testing.T) {
	t.Parallel()
	root := WrapPrimary(tokenize("music song"))
	schemaNode := root.Child(0)
	docNode := root.Child(1)

	schema, err := schemaNode.AttachSymbol(TypeSchema, "file:///music.sd", nil, "")
	require.NoError(t, err)
	assert.Equal(t, "music", schema.ShortIdentifier())
	assert.Equal(t, StatusUnresolved, schema.Status())
	assert.Same(t, schemaNode, schema.Node())

	doc, err := docNode.AttachSymbol(TypeDocument, "file:///music.sd", schema, "")
	require.NoError(t, err)
	assert.Equal(t, "music.song", doc.LongIdentifier())

	_, err = docNode.AttachSymbol(TypeField, "file:///music.sd", nil, "other")
	require.ErrorIs(t, err, ErrSymbolAlreadySet)

	got, ok := docNode.Symbol()
	require.True(t, ok)
	assert.Same(t, doc, got, "failed attach must not replace the symbol")
}

func TestSymbolSetters_NoSymbolIsNoop(t *testing.T) {
	t.Parallel()
	n := WrapPrimary(tokenize("a")).Child(0)
	n.SetSymbolStatus(StatusReference)
	n.SetSymbolType(TypeField)
	n.SetSymbolScope(nil)
	_, ok := n.Symbol()
	assert.False(t, ok)

	_, err := n.AttachSymbol(TypeField, "f", nil, "")
	require.NoError(t, err)
	n.SetSymbolStatus(StatusBuiltinReference)
	n.SetSymbolType(TypeRankProfile)
	sym, _ := n.Symbol()
	assert.Equal(t, StatusBuiltinReference, sym.Status())
	assert.Equal(t, TypeRankProfile, sym.Type())

	n.RemoveSymbol()
	assert.False(t, n.HasSymbol())
}

// nested builds:
//
//	root
//	├── x
//	│   ├── x1
//	│   └── x2
//	└── y
func nested() (root, x, x1, x2, y *Node) {
	mk := func(text string) *Node {
		return NewSynthetic(protocol.Range{}, text, text)
	}
	root, x, x1, x2, y = mk("root"), mk("x"), mk("x1"), mk("x2"), mk("y")
	x.AddChildren([]*Node{x1, x2})
	root.AddChildren([]*Node{x, y})
	return
}

func TestNavigation(t *testing.T) {
	t.Parallel()
	root, x, x1, x2, y := nested()

	assert.Same(t, x2, x1.NextSibling())
	assert.Nil(t, x2.NextSibling())
	assert.Nil(t, x1.PreviousSibling())
	assert.Same(t, y, x.Sibling(1))
	assert.Nil(t, x.Sibling(2))
	assert.Nil(t, root.Sibling(0))

	// Next crosses back into the parent when siblings run out.
	assert.Same(t, y, x2.Next())
	assert.Nil(t, y.Next())
	assert.Nil(t, root.Next())

	// Previous returns the parent for a first child.
	assert.Same(t, x, x1.Previous())
	assert.Same(t, x1, x2.Previous())
	assert.Same(t, x, y.Previous())

	assert.Same(t, root, x1.ParentN(2))
	assert.Same(t, x1, x1.ParentN(0))
	assert.Nil(t, x1.ParentN(5))

	assert.Same(t, x1, root.FindFirstLeaf())
	assert.True(t, y.IsLeaf())
	assert.False(t, x.IsLeaf())
	assert.Nil(t, root.Child(-1))
	assert.Nil(t, root.Child(2))
}

func TestInsertAndClearChildren(t *testing.T) {
	t.Parallel()
	root, x, _, _, y := nested()
	z := NewSynthetic(protocol.Range{}, "z", "z")
	root.InsertChildAfter(0, z)

	assert.Equal(t, []*Node{x, z, y}, root.Children())
	assert.Same(t, root, z.Parent())

	root.ClearChildren()
	assert.Equal(t, 0, root.Len())
	assert.Nil(t, x.Parent())
}

func TestSetNewBoundaries(t *testing.T) {
	t.Parallel()
	text := "field title type string"
	raw := tokenize(text)
	root := WrapPrimary(raw)
	title := root.Child(1)
	require.Equal(t, "title", title.Text())

	title.SetNewStartCharacter(7)
	assert.Equal(t, uint32(7), title.Range().Start.Character)
	assert.Equal(t, "itle", title.Text())

	title.SetNewEndCharacter(9)
	assert.Equal(t, uint32(9), title.Range().End.Character)
	assert.Equal(t, "it", title.Text())
}

func TestString(t *testing.T) {
	t.Parallel()
	n := WrapPrimary(tokenize("music")).Child(0)
	_, err := n.AttachSymbol(TypeSchema, "f", nil, "")
	require.NoError(t, err)
	s := n.String()
	assert.True(t, strings.HasPrefix(s, "Node('music', [word] at 0:0"))
	assert.Contains(t, s, "SYMBOL SCHEMA UNRESOLVED: music")
}

func TestLineIndex(t *testing.T) {
	t.Parallel()
	li := NewLineIndex("ab\ncdé\n")
	assert.Equal(t, 3, li.LineCount())
	assert.Equal(t, protocol.Position{Line: 0, Character: 0}, li.PositionAt(0))
	assert.Equal(t, protocol.Position{Line: 1, Character: 1}, li.PositionAt(4))
	// é is two bytes but one UTF-16 unit.
	assert.Equal(t, protocol.Position{Line: 1, Character: 3}, li.PositionAt(7))
	assert.Equal(t, protocol.Position{Line: 2, Character: 0}, li.PositionAt(100))

	assert.Equal(t, 4, li.OffsetAt(protocol.Position{Line: 1, Character: 1}))
	assert.Equal(t, 7, li.OffsetAt(protocol.Position{Line: 1, Character: 50}))
	assert.Equal(t, 8, li.OffsetAt(protocol.Position{Line: 9}))
}

func TestSymbolTypeNames(t *testing.T) {
	t.Parallel()
	for _, typ := range []SymbolType{TypeSchema, TypeDocument, TypeStruct, TypeField, TypeRankProfile, TypeFunction} {
		got, ok := ParseSymbolType(typ.String())
		require.True(t, ok)
		assert.Equal(t, typ, got)
	}
	_, ok := ParseSymbolType("NOPE")
	assert.False(t, ok)
}
