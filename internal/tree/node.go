package tree

import (
	"errors"
	"fmt"
	"strings"

	"go.lsp.dev/protocol"
)

// Language identifies which grammar produced a node.
type Language uint8

const (
	LanguagePrimary Language = iota
	LanguageIndexing
	LanguageRankExpression
	LanguageSynthetic
)

func (l Language) String() string {
	switch l {
	case LanguagePrimary:
		return "primary"
	case LanguageIndexing:
		return "indexing"
	case LanguageRankExpression:
		return "rank-expression"
	case LanguageSynthetic:
		return "synthetic"
	default:
		return "unknown"
	}
}

var (
	// ErrSymbolAlreadySet is returned when a symbol is attached to a node
	// that already carries one.
	ErrSymbolAlreadySet = errors.New("node already has a symbol")
	// ErrNotSynthetic is returned when a simulated grammar type is set on a
	// node that came from a real parser.
	ErrNotSynthetic = errors.New("node is not synthetic")
)

// Node is one node of the unified syntax tree. A node owns its children;
// the parent pointer is a back-reference only.
type Node struct {
	language  Language
	typeName  string
	rng       protocol.Range
	dirty     bool
	tokenKind TokenKind

	symbol *Symbol

	// Children are ordered and do not overlap.
	children []*Node
	parent   *Node

	raw    RawNode
	offset protocol.Position

	// Synthetic nodes only.
	content   string
	simulated string
}

// WrapPrimary wraps a node of the primary schema grammar.
func WrapPrimary(raw RawNode) *Node {
	return Wrap(raw, LanguagePrimary, protocol.Position{})
}

// Wrap recursively wraps raw and all of its non-nil children. Ranges are
// translated by offset, which is where the embedded region begins in the
// enclosing file.
func Wrap(raw RawNode, language Language, offset protocol.Position) *Node {
	n := &Node{
		language: language,
		typeName: raw.Type(),
		rng:      rawRange(raw, offset),
		dirty:    raw.IsDirty(),
		raw:      raw,
		offset:   offset,
	}
	for _, child := range raw.Children() {
		if child == nil {
			continue
		}
		n.AddChild(Wrap(child, language, offset))
	}
	if n.IsLeaf() {
		// Primary tokens recovered from a parse error have no reliable kind.
		if language != LanguagePrimary || !n.dirty {
			n.tokenKind = raw.TokenKind()
		}
	}
	return n
}

// NewSynthetic creates a node that did not come from any grammar, such as
// an error-recovery placeholder.
func NewSynthetic(rng protocol.Range, content, identifier string) *Node {
	return &Node{
		language: LanguageSynthetic,
		typeName: identifier,
		rng:      rng,
		content:  content,
	}
}

// Language returns the grammar the node came from.
func (n *Node) Language() Language { return n.language }

// Type returns the grammar production or token name. Synthetic nodes return
// the type they simulate, if one was set.
func (n *Node) Type() string {
	if n.language == LanguageSynthetic && n.simulated != "" {
		return n.simulated
	}
	return n.typeName
}

// IsType reports whether the node is (or simulates) the given grammar type.
func (n *Node) IsType(name string) bool {
	return n.Type() == name
}

// SetSimulatedType tells a synthetic node which grammar type it stands in for.
func (n *Node) SetSimulatedType(name string) error {
	if n.language != LanguageSynthetic {
		return fmt.Errorf("set simulated type %q on %s: %w", name, n, ErrNotSynthetic)
	}
	n.simulated = name
	return nil
}

// Range returns the node's range in file coordinates.
func (n *Node) Range() protocol.Range { return n.rng }

// IsDirty reports whether the parser produced this node by error recovery.
func (n *Node) IsDirty() bool { return n.dirty }

// TokenKind returns the token kind of a clean leaf, or "".
func (n *Node) TokenKind() TokenKind { return n.tokenKind }

// DirtyTokenKind returns the raw token kind even for dirty nodes.
func (n *Node) DirtyTokenKind() TokenKind {
	if n.raw == nil || !n.IsLeaf() {
		return n.tokenKind
	}
	return n.raw.TokenKind()
}

// Raw returns the underlying grammar node; nil for synthetic nodes.
func (n *Node) Raw() RawNode { return n.raw }

// Text returns the source text covered by the node.
func (n *Node) Text() string {
	switch n.language {
	case LanguagePrimary, LanguageIndexing, LanguageRankExpression:
		if n.raw == nil {
			return ""
		}
		return n.raw.Source()
	case LanguageSynthetic:
		return n.content
	}
	return ""
}

// ContainsOtherLanguageData reports whether a primary node carries an
// embedded region of the given sub-language.
func (n *Node) ContainsOtherLanguageData(language Language) bool {
	if n.language != LanguagePrimary {
		return false
	}
	for _, c := range n.children {
		if c.language == language {
			return true
		}
	}
	return false
}

// --- Symbols ---

// AttachSymbol creates the node's symbol. scope may be nil; an empty
// shortIdentifier means the node text.
func (n *Node) AttachSymbol(typ SymbolType, fileURI string, scope *Symbol, shortIdentifier string) (*Symbol, error) {
	if n.symbol != nil {
		return nil, fmt.Errorf("attach %s symbol to %s: %w", typ, n, ErrSymbolAlreadySet)
	}
	if shortIdentifier == "" {
		shortIdentifier = n.Text()
	}
	n.symbol = &Symbol{
		node:            n,
		typ:             typ,
		status:          StatusUnresolved,
		fileURI:         fileURI,
		shortIdentifier: shortIdentifier,
		scope:           scope,
	}
	return n.symbol, nil
}

// Symbol returns the node's symbol, if any.
func (n *Node) Symbol() (*Symbol, bool) {
	return n.symbol, n.symbol != nil
}

// HasSymbol reports whether a symbol is attached.
func (n *Node) HasSymbol() bool { return n.symbol != nil }

// RemoveSymbol detaches the node's symbol.
func (n *Node) RemoveSymbol() { n.symbol = nil }

// SetSymbolStatus is a no-op on nodes without a symbol.
func (n *Node) SetSymbolStatus(status SymbolStatus) {
	if n.symbol != nil {
		n.symbol.status = status
	}
}

// SetSymbolType is a no-op on nodes without a symbol.
func (n *Node) SetSymbolType(typ SymbolType) {
	if n.symbol != nil {
		n.symbol.typ = typ
	}
}

// SetSymbolScope is a no-op on nodes without a symbol.
func (n *Node) SetSymbolScope(scope *Symbol) {
	if n.symbol != nil {
		n.symbol.scope = scope
	}
}

// --- Tree structure ---

// AddChild appends child and makes n its parent.
func (n *Node) AddChild(child *Node) {
	child.parent = n
	n.children = append(n.children, child)
}

// AddChildren appends all children in order.
func (n *Node) AddChildren(children []*Node) {
	for _, c := range children {
		n.AddChild(c)
	}
}

// InsertChildAfter inserts child directly after the child at index.
func (n *Node) InsertChildAfter(index int, child *Node) {
	child.parent = n
	n.children = append(n.children, nil)
	copy(n.children[index+2:], n.children[index+1:])
	n.children[index+1] = child
}

// ClearChildren detaches all children.
func (n *Node) ClearChildren() {
	for _, c := range n.children {
		c.parent = nil
	}
	n.children = nil
}

func (n *Node) Parent() *Node { return n.parent }

// ParentN walks levels steps up. ParentN(0) is n itself.
func (n *Node) ParentN(levels int) *Node {
	cur := n
	for ; levels > 0 && cur != nil; levels-- {
		cur = cur.parent
	}
	return cur
}

func (n *Node) Len() int { return len(n.children) }

// Child returns the i-th child, or nil when out of range.
func (n *Node) Child(i int) *Node {
	if i < 0 || i >= len(n.children) {
		return nil
	}
	return n.children[i]
}

// Children returns the node's children. The slice must not be modified.
func (n *Node) Children() []*Node { return n.children }

// IndexOf returns the position of child among n's children, or -1.
func (n *Node) IndexOf(child *Node) int {
	for i, c := range n.children {
		if c == child {
			return i
		}
	}
	return -1
}

// Sibling returns the sibling at a relative offset, or nil past the ends.
func (n *Node) Sibling(relative int) *Node {
	if n.parent == nil {
		return nil
	}
	i := n.parent.IndexOf(n)
	if i == -1 {
		return nil
	}
	return n.parent.Child(i + relative)
}

func (n *Node) PreviousSibling() *Node { return n.Sibling(-1) }

func (n *Node) NextSibling() *Node { return n.Sibling(1) }

// Previous returns the previous sibling, or the parent when n is the first
// child.
func (n *Node) Previous() *Node {
	if n.parent == nil {
		return nil
	}
	i := n.parent.IndexOf(n)
	switch {
	case i == -1:
		return nil
	case i == 0:
		return n.parent
	}
	return n.parent.children[i-1]
}

// Next returns the next sibling, falling back to the parent's next node
// when n is the last child.
func (n *Node) Next() *Node {
	if n.parent == nil {
		return nil
	}
	i := n.parent.IndexOf(n)
	switch {
	case i == -1:
		return nil
	case i == len(n.parent.children)-1:
		return n.parent.Next()
	}
	return n.parent.children[i+1]
}

func (n *Node) IsLeaf() bool { return len(n.children) == 0 }

// FindFirstLeaf descends through the first child until it reaches a leaf.
func (n *Node) FindFirstLeaf() *Node {
	cur := n
	for len(cur.children) > 0 {
		cur = cur.children[0]
	}
	return cur
}

// Walk visits n and its descendants in pre-order. Returning false from fn
// skips the node's subtree.
func (n *Node) Walk(fn func(*Node) bool) {
	if !fn(n) {
		return
	}
	for _, c := range n.children {
		c.Walk(fn)
	}
}

// --- Live edits ---

// SetNewStartCharacter moves the node's start to character on its start
// line. Synthetic nodes ignore boundary edits.
func (n *Node) SetNewStartCharacter(character uint32) {
	if n.raw == nil {
		return
	}
	delta := int(character) - int(n.rng.Start.Character)
	n.raw.SetBeginOffset(n.raw.BeginOffset() + delta)
	n.rng = rawRange(n.raw, n.offset)
}

// SetNewEndCharacter moves the node's end to character on its end line.
func (n *Node) SetNewEndCharacter(character uint32) {
	if n.raw == nil {
		return
	}
	delta := int(character) - int(n.rng.End.Character)
	n.raw.SetEndOffset(n.raw.EndOffset() + delta)
	n.rng = rawRange(n.raw, n.offset)
}

func (n *Node) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Node('%s', [%s] at %d:%d", n.Text(), n.Type(), n.rng.Start.Line, n.rng.Start.Character)
	if n.symbol != nil {
		fmt.Fprintf(&b, " [SYMBOL %s %s: %s]", n.symbol.typ, n.symbol.status, n.symbol.LongIdentifier())
	}
	b.WriteString(")")
	return b.String()
}
