// Package index holds the workspace-wide symbol database: per-file symbol
// definitions and references, and the document, struct and rank-profile
// inheritance graphs.
//
// Every lookup is total. A missing entry is reported as a zero value, an
// empty slice or false, never as an error. The index is not safe for
// concurrent use; one writer feeds it one file update at a time.
package index

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/jward/schemals/internal/tree"
)

// Document identifies the schema document defined by one file.
type Document struct {
	FileURI string
	Name    string
}

type definitionKey struct {
	fileURI    string
	typ        tree.SymbolType
	identifier string
}

type fileTable struct {
	document    *Document
	definitions []*tree.Symbol
	references  []*tree.Symbol
	referenced  map[*tree.Symbol]bool
}

// SchemaIndex is the symbol database of one workspace session.
type SchemaIndex struct {
	logger *slog.Logger

	files     map[string]*fileTable
	fileOrder []string

	definitions map[definitionKey][]*tree.Symbol

	documentGraph    *Graph[string]
	structGraph      *Graph[*tree.Symbol]
	rankProfileGraph *Graph[*tree.Symbol]
}

// New creates an empty index. A nil logger discards output.
func New(logger *slog.Logger) *SchemaIndex {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SchemaIndex{
		logger:           logger,
		files:            make(map[string]*fileTable),
		definitions:      make(map[definitionKey][]*tree.Symbol),
		documentGraph:    NewGraph[string](),
		structGraph:      NewGraph[*tree.Symbol](),
		rankProfileGraph: NewGraph[*tree.Symbol](),
	}
}

func (idx *SchemaIndex) table(fileURI string) *fileTable {
	t, ok := idx.files[fileURI]
	if !ok {
		t = &fileTable{referenced: make(map[*tree.Symbol]bool)}
		idx.files[fileURI] = t
		idx.fileOrder = append(idx.fileOrder, fileURI)
	}
	return t
}

// Reset removes everything the index knows about fileURI. Edges into the
// file's symbols from other files are cut; edges from other documents to
// this document survive because document identity is the file URI.
func (idx *SchemaIndex) Reset(fileURI string) {
	t, ok := idx.files[fileURI]
	if !ok {
		idx.documentGraph.RemoveOutgoing(fileURI)
		return
	}
	for _, sym := range t.definitions {
		idx.structGraph.RemoveNode(sym)
		idx.rankProfileGraph.RemoveNode(sym)
	}
	for key := range idx.definitions {
		if key.fileURI == fileURI {
			delete(idx.definitions, key)
		}
	}
	idx.documentGraph.RemoveOutgoing(fileURI)
	delete(idx.files, fileURI)
	for i, f := range idx.fileOrder {
		if f == fileURI {
			idx.fileOrder = append(idx.fileOrder[:i], idx.fileOrder[i+1:]...)
			break
		}
	}
	idx.logger.Debug("index reset", "file", fileURI)
}

// Files returns the URIs of all indexed files in registration order.
func (idx *SchemaIndex) Files() []string {
	return append([]string(nil), idx.fileOrder...)
}

// --- Documents ---

// RegisterSchemaDocument records that fileURI defines the schema name.
func (idx *SchemaIndex) RegisterSchemaDocument(fileURI, name string) {
	idx.table(fileURI).document = &Document{FileURI: fileURI, Name: name}
}

// FindSchemaDocumentWithName returns the first registered document named name.
func (idx *SchemaIndex) FindSchemaDocumentWithName(name string) (Document, bool) {
	for _, f := range idx.fileOrder {
		if d := idx.files[f].document; d != nil && d.Name == name {
			return *d, true
		}
	}
	return Document{}, false
}

// SchemaDocument returns the document defined by fileURI.
func (idx *SchemaIndex) SchemaDocument(fileURI string) (Document, bool) {
	t, ok := idx.files[fileURI]
	if !ok || t.document == nil {
		return Document{}, false
	}
	return *t.document, true
}

// --- Definitions and references ---

// InsertSymbolDefinition adds sym to its file's definitions.
func (idx *SchemaIndex) InsertSymbolDefinition(sym *tree.Symbol) {
	t := idx.table(sym.FileURI())
	t.definitions = append(t.definitions, sym)
	key := definitionKey{fileURI: sym.FileURI(), typ: sym.Type(), identifier: sym.ShortIdentifier()}
	idx.definitions[key] = append(idx.definitions[key], sym)
}

// InsertSymbolReference records that the symbol on node is a reference
// occurring in fileURI. A node without a symbol is ignored, as is a symbol
// that is already recorded.
func (idx *SchemaIndex) InsertSymbolReference(fileURI string, node *tree.Node) {
	sym, ok := node.Symbol()
	if !ok {
		return
	}
	t := idx.table(fileURI)
	if t.referenced[sym] {
		return
	}
	t.referenced[sym] = true
	t.references = append(t.references, sym)
}

// SymbolDefinitions returns the definitions of fileURI in declaration order.
func (idx *SchemaIndex) SymbolDefinitions(fileURI string) []*tree.Symbol {
	t, ok := idx.files[fileURI]
	if !ok {
		return nil
	}
	return append([]*tree.Symbol(nil), t.definitions...)
}

// SymbolReferences returns the reference occurrences in fileURI in the
// order they were recorded.
func (idx *SchemaIndex) SymbolReferences(fileURI string) []*tree.Symbol {
	t, ok := idx.files[fileURI]
	if !ok {
		return nil
	}
	return append([]*tree.Symbol(nil), t.references...)
}

// FindSymbol looks up a definition in fileURI only.
func (idx *SchemaIndex) FindSymbol(fileURI string, typ tree.SymbolType, identifier string) (*tree.Symbol, bool) {
	candidates := idx.definitions[definitionKey{fileURI: fileURI, typ: typ, identifier: identifier}]
	if len(candidates) == 0 {
		return nil, false
	}
	return candidates[0], true
}

// FindAllSymbolsWithSchemaScope returns every definition visible from
// fileURI through its document inheritance chain. Definitions in fileURI
// come first, then those of each ancestor document nearest first; within a
// file the order is declaration order.
func (idx *SchemaIndex) FindAllSymbolsWithSchemaScope(fileURI string, typ tree.SymbolType, identifier string) []*tree.Symbol {
	var out []*tree.Symbol
	for _, f := range idx.documentGraph.AllParents(fileURI) {
		out = append(out, idx.definitions[definitionKey{fileURI: f, typ: typ, identifier: identifier}]...)
	}
	return out
}

// DefinitionsNamed returns all definitions with the given short identifier
// in any file, ordered by file registration then declaration.
func (idx *SchemaIndex) DefinitionsNamed(identifier string) []*tree.Symbol {
	var out []*tree.Symbol
	for _, f := range idx.fileOrder {
		for _, sym := range idx.files[f].definitions {
			if sym.ShortIdentifier() == identifier {
				out = append(out, sym)
			}
		}
	}
	return out
}

// --- Inheritance ---

// TryRegisterDocumentInheritance adds childURI→parentURI unless it would
// close a cycle.
func (idx *SchemaIndex) TryRegisterDocumentInheritance(childURI, parentURI string) bool {
	return idx.documentGraph.TryAddInheritance(childURI, parentURI)
}

// SetSchemaInherits writes childURI→parentURI without a cycle check.
func (idx *SchemaIndex) SetSchemaInherits(childURI, parentURI string) {
	idx.documentGraph.AddInheritance(childURI, parentURI)
}

// TryRegisterStructInheritance adds child→parent unless it would close a cycle.
func (idx *SchemaIndex) TryRegisterStructInheritance(child, parent *tree.Symbol) bool {
	return idx.structGraph.TryAddInheritance(child, parent)
}

// TryRegisterRankProfileInheritance adds child→parent unless it would
// close a cycle.
func (idx *SchemaIndex) TryRegisterRankProfileInheritance(child, parent *tree.Symbol) bool {
	return idx.rankProfileGraph.TryAddInheritance(child, parent)
}

// DocumentParents returns the direct parent documents of fileURI.
func (idx *SchemaIndex) DocumentParents(fileURI string) []string {
	return idx.documentGraph.ParentsOf(fileURI)
}

// DocumentInheritsFrom reports whether childURI transitively inherits parentURI.
func (idx *SchemaIndex) DocumentInheritsFrom(childURI, parentURI string) bool {
	return childURI != parentURI && idx.documentGraph.Reaches(childURI, parentURI)
}

// StructParents returns the direct parents of a struct.
func (idx *SchemaIndex) StructParents(structSymbol *tree.Symbol) []*tree.Symbol {
	return idx.structGraph.ParentsOf(structSymbol)
}

// GetAllStructParents returns structSymbol and all of its ancestors.
func (idx *SchemaIndex) GetAllStructParents(structSymbol *tree.Symbol) []*tree.Symbol {
	return idx.structGraph.AllParents(structSymbol)
}

// GetAllStructFieldSymbols returns the fields declared on structSymbol and
// every struct it inherits, self first then ancestors nearest first.
func (idx *SchemaIndex) GetAllStructFieldSymbols(structSymbol *tree.Symbol) []*tree.Symbol {
	var out []*tree.Symbol
	for _, s := range idx.structGraph.AllParents(structSymbol) {
		out = append(out, idx.scopedDefinitions(s, tree.TypeField)...)
	}
	return out
}

// GetAllRankProfileParents returns profile and all of its ancestors.
func (idx *SchemaIndex) GetAllRankProfileParents(profile *tree.Symbol) []*tree.Symbol {
	return idx.rankProfileGraph.AllParents(profile)
}

// GetAllRankProfileFunctions returns the functions declared directly in
// profile.
func (idx *SchemaIndex) GetAllRankProfileFunctions(profile *tree.Symbol) []*tree.Symbol {
	return idx.scopedDefinitions(profile, tree.TypeFunction)
}

func (idx *SchemaIndex) scopedDefinitions(scope *tree.Symbol, typ tree.SymbolType) []*tree.Symbol {
	t, ok := idx.files[scope.FileURI()]
	if !ok {
		return nil
	}
	var out []*tree.Symbol
	for _, sym := range t.definitions {
		if sym.Type() == typ && sym.Scope() == scope {
			out = append(out, sym)
		}
	}
	return out
}

// InheritanceEdges lists the edges whose child is defined in fileURI, for
// every graph.
func (idx *SchemaIndex) InheritanceEdges(fileURI string) (documents []Edge[string], structs, rankProfiles []Edge[*tree.Symbol]) {
	documents = idx.documentGraph.Edges([]string{fileURI})
	defs := idx.SymbolDefinitions(fileURI)
	structs = idx.structGraph.Edges(defs)
	rankProfiles = idx.rankProfileGraph.Edges(defs)
	return documents, structs, rankProfiles
}

// DependentFiles returns the files whose inheritance reaches into fileURI:
// documents inheriting it and files with structs or rank profiles that
// inherit one of its definitions. The result is sorted and excludes fileURI.
func (idx *SchemaIndex) DependentFiles(fileURI string) []string {
	set := idx.symbolDependents(fileURI)
	for _, f := range idx.documentGraph.AllChildren(fileURI) {
		set[f] = true
	}
	return sortedFiles(set, fileURI)
}

// SymbolDependentFiles returns the files holding struct or rank-profile
// edges into the definitions of fileURI. Resetting fileURI cuts those
// edges, so these files must be resolved again with it.
func (idx *SchemaIndex) SymbolDependentFiles(fileURI string) []string {
	return sortedFiles(idx.symbolDependents(fileURI), fileURI)
}

func (idx *SchemaIndex) symbolDependents(fileURI string) map[string]bool {
	set := make(map[string]bool)
	for _, def := range idx.SymbolDefinitions(fileURI) {
		for _, c := range idx.structGraph.AllChildren(def) {
			set[c.FileURI()] = true
		}
		for _, c := range idx.rankProfileGraph.AllChildren(def) {
			set[c.FileURI()] = true
		}
	}
	return set
}

func sortedFiles(set map[string]bool, exclude string) []string {
	delete(set, exclude)
	out := make([]string, 0, len(set))
	for f := range set {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// Stats summarises the index contents.
type Stats struct {
	Files            int
	Definitions      int
	References       int
	DocumentEdges    int
	StructEdges      int
	RankProfileEdges int
}

func (idx *SchemaIndex) Stats() Stats {
	s := Stats{
		Files:            len(idx.files),
		DocumentEdges:    idx.documentGraph.EdgeCount(),
		StructEdges:      idx.structGraph.EdgeCount(),
		RankProfileEdges: idx.rankProfileGraph.EdgeCount(),
	}
	for _, t := range idx.files {
		s.Definitions += len(t.definitions)
		s.References += len(t.references)
	}
	return s
}

// Dump renders the index for debugging.
func (idx *SchemaIndex) Dump() string {
	var b strings.Builder
	for _, f := range idx.fileOrder {
		t := idx.files[f]
		b.WriteString(f)
		if t.document != nil {
			b.WriteString(" (schema " + t.document.Name + ")")
		}
		b.WriteString("\n")
		for _, sym := range t.definitions {
			b.WriteString("  def " + sym.Type().String() + " " + sym.LongIdentifier() + "\n")
		}
		for _, sym := range t.references {
			b.WriteString("  ref " + sym.Type().String() + " " + sym.ShortIdentifier() + "\n")
		}
		for _, p := range idx.documentGraph.ParentsOf(f) {
			b.WriteString("  inherits " + p + "\n")
		}
	}
	return b.String()
}
