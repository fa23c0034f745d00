package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.lsp.dev/protocol"

	"github.com/jward/schemals/internal/tree"
)

const (
	fileA = "file:///ws/a.sd"
	fileB = "file:///ws/b.sd"
	fileC = "file:///ws/c.sd"
)

func define(t *testing.T, idx *SchemaIndex, fileURI string, typ tree.SymbolType, name string, scope *tree.Symbol) *tree.Symbol {
	t.Helper()
	n := tree.NewSynthetic(protocol.Range{}, name, "identifier")
	sym, err := n.AttachSymbol(typ, fileURI, scope, "")
	require.NoError(t, err)
	sym.SetStatus(tree.StatusDefinition)
	idx.InsertSymbolDefinition(sym)
	return sym
}

func TestFindSchemaDocumentWithName(t *testing.T) {
	t.Parallel()
	idx := New(nil)
	idx.RegisterSchemaDocument(fileA, "music")

	doc, ok := idx.FindSchemaDocumentWithName("music")
	require.True(t, ok)
	assert.Equal(t, Document{FileURI: fileA, Name: "music"}, doc)

	_, ok = idx.FindSchemaDocumentWithName("books")
	assert.False(t, ok)
}

func TestFindSymbol_LocalOnly(t *testing.T) {
	t.Parallel()
	idx := New(nil)
	s := define(t, idx, fileA, tree.TypeStruct, "address", nil)
	define(t, idx, fileB, tree.TypeStruct, "person", nil)

	got, ok := idx.FindSymbol(fileA, tree.TypeStruct, "address")
	require.True(t, ok)
	assert.Same(t, s, got)

	_, ok = idx.FindSymbol(fileA, tree.TypeStruct, "person")
	assert.False(t, ok)
	_, ok = idx.FindSymbol(fileA, tree.TypeField, "address")
	assert.False(t, ok)
}

func TestFindAllSymbolsWithSchemaScope_LocalFirst(t *testing.T) {
	t.Parallel()
	idx := New(nil)
	// Definitions in ancestor files are inserted before the local ones.
	remote1 := define(t, idx, fileB, tree.TypeRankProfile, "base", nil)
	remote2 := define(t, idx, fileC, tree.TypeRankProfile, "base", nil)
	local1 := define(t, idx, fileA, tree.TypeRankProfile, "base", nil)
	local2 := define(t, idx, fileA, tree.TypeRankProfile, "base", nil)

	require.True(t, idx.TryRegisterDocumentInheritance(fileA, fileB))
	require.True(t, idx.TryRegisterDocumentInheritance(fileB, fileC))

	got := idx.FindAllSymbolsWithSchemaScope(fileA, tree.TypeRankProfile, "base")
	assert.Equal(t, []*tree.Symbol{local1, local2, remote1, remote2}, got)

	// Files outside the inheritance chain are invisible.
	assert.Equal(t, []*tree.Symbol{remote2}, idx.FindAllSymbolsWithSchemaScope(fileC, tree.TypeRankProfile, "base"))
	assert.Empty(t, idx.FindAllSymbolsWithSchemaScope(fileA, tree.TypeRankProfile, "other"))
}

func TestDocumentInheritance(t *testing.T) {
	t.Parallel()
	idx := New(nil)
	require.True(t, idx.TryRegisterDocumentInheritance(fileA, fileB))
	assert.False(t, idx.TryRegisterDocumentInheritance(fileB, fileA))
	assert.Equal(t, 1, idx.Stats().DocumentEdges)

	assert.True(t, idx.DocumentInheritsFrom(fileA, fileB))
	assert.False(t, idx.DocumentInheritsFrom(fileB, fileA))
	assert.False(t, idx.DocumentInheritsFrom(fileA, fileA))

	// Repair writes bypass the cycle check.
	idx.SetSchemaInherits(fileC, fileA)
	assert.Equal(t, []string{fileA}, idx.DocumentParents(fileC))
}

func TestGetAllStructFieldSymbols_SelfThenAncestors(t *testing.T) {
	t.Parallel()
	idx := New(nil)
	base := define(t, idx, fileA, tree.TypeStruct, "base", nil)
	baseID := define(t, idx, fileA, tree.TypeField, "id", base)
	mid := define(t, idx, fileA, tree.TypeStruct, "mid", nil)
	midName := define(t, idx, fileA, tree.TypeField, "name", mid)
	leaf := define(t, idx, fileA, tree.TypeStruct, "leaf", nil)
	leafX := define(t, idx, fileA, tree.TypeField, "x", leaf)

	require.True(t, idx.TryRegisterStructInheritance(leaf, mid))
	require.True(t, idx.TryRegisterStructInheritance(mid, base))
	assert.False(t, idx.TryRegisterStructInheritance(base, leaf))

	assert.Equal(t, []*tree.Symbol{leafX, midName, baseID}, idx.GetAllStructFieldSymbols(leaf))
	assert.Equal(t, []*tree.Symbol{baseID}, idx.GetAllStructFieldSymbols(base))
	assert.Equal(t, []*tree.Symbol{mid}, idx.StructParents(leaf))
}

func TestRankProfileQueries(t *testing.T) {
	t.Parallel()
	idx := New(nil)
	schema := define(t, idx, fileA, tree.TypeSchema, "music", nil)
	p1 := define(t, idx, fileA, tree.TypeRankProfile, "p1", schema)
	a := define(t, idx, fileA, tree.TypeRankProfile, "a", schema)
	fa := define(t, idx, fileA, tree.TypeFunction, "f", a)
	define(t, idx, fileA, tree.TypeFunction, "g", p1)

	require.True(t, idx.TryRegisterRankProfileInheritance(p1, a))
	assert.False(t, idx.TryRegisterRankProfileInheritance(a, p1))
	assert.False(t, idx.TryRegisterRankProfileInheritance(a, a))

	assert.Equal(t, []*tree.Symbol{p1, a}, idx.GetAllRankProfileParents(p1))
	assert.Equal(t, []*tree.Symbol{fa}, idx.GetAllRankProfileFunctions(a))
	assert.Len(t, idx.GetAllRankProfileFunctions(p1), 1, "inherited functions are not direct")
}

func TestInsertSymbolReference(t *testing.T) {
	t.Parallel()
	idx := New(nil)
	n := tree.NewSynthetic(protocol.Range{}, "base", "identifier")
	idx.InsertSymbolReference(fileA, n)
	assert.Empty(t, idx.SymbolReferences(fileA), "nodes without symbols are ignored")

	sym, err := n.AttachSymbol(tree.TypeStruct, fileA, nil, "")
	require.NoError(t, err)
	idx.InsertSymbolReference(fileA, n)
	idx.InsertSymbolReference(fileA, n)
	assert.Equal(t, []*tree.Symbol{sym}, idx.SymbolReferences(fileA))
}

func TestReset(t *testing.T) {
	t.Parallel()
	idx := New(nil)
	idx.RegisterSchemaDocument(fileA, "a")
	idx.RegisterSchemaDocument(fileB, "b")
	baseB := define(t, idx, fileB, tree.TypeStruct, "base", nil)
	derivedA := define(t, idx, fileA, tree.TypeStruct, "derived", nil)
	require.True(t, idx.TryRegisterStructInheritance(derivedA, baseB))
	require.True(t, idx.TryRegisterDocumentInheritance(fileA, fileB))
	require.True(t, idx.TryRegisterDocumentInheritance(fileC, fileA))

	assert.Equal(t, []string{fileA, fileC}, idx.DependentFiles(fileB))
	assert.Equal(t, []string{fileA}, idx.SymbolDependentFiles(fileB))
	assert.Empty(t, idx.SymbolDependentFiles(fileA))

	idx.Reset(fileA)

	_, ok := idx.FindSchemaDocumentWithName("a")
	assert.False(t, ok)
	assert.Empty(t, idx.SymbolDefinitions(fileA))
	_, ok = idx.FindSymbol(fileA, tree.TypeStruct, "derived")
	assert.False(t, ok)
	assert.Empty(t, idx.DocumentParents(fileA))
	assert.Equal(t, 0, idx.Stats().StructEdges)
	assert.Equal(t, []string{fileB}, idx.Files())

	// Documents that inherited the reset file keep their edge; the file is
	// rebuilt under the same URI.
	assert.Equal(t, []string{fileA}, idx.DocumentParents(fileC))

	// Resetting an unknown file is harmless.
	idx.Reset("file:///nowhere.sd")
}

func TestDefinitionsNamedAndDump(t *testing.T) {
	t.Parallel()
	idx := New(nil)
	idx.RegisterSchemaDocument(fileA, "music")
	s := define(t, idx, fileA, tree.TypeSchema, "music", nil)
	define(t, idx, fileA, tree.TypeDocument, "music", s)
	define(t, idx, fileB, tree.TypeStruct, "music", nil)

	assert.Len(t, idx.DefinitionsNamed("music"), 3)
	dump := idx.Dump()
	assert.Contains(t, dump, "(schema music)")
	assert.Contains(t, dump, "def DOCUMENT music.music")
}
