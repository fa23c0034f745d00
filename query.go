package schemals

import (
	"go.lsp.dev/protocol"

	"github.com/jward/schemals/internal/tree"
)

// QueryBuilder provides workspace symbol queries over the live index.
// Queries backed by the SQLite snapshot live in query_store.go.
type QueryBuilder struct {
	engine *Engine
}

// Location is a range in a file.
type Location struct {
	FileURI string
	Range   protocol.Range
}

// SymbolInfo describes one symbol of the index.
type SymbolInfo struct {
	Name     string
	LongName string
	Type     tree.SymbolType
	Status   tree.SymbolStatus
	Location Location
}

func symbolInfo(sym *tree.Symbol) SymbolInfo {
	info := SymbolInfo{
		Name:     sym.ShortIdentifier(),
		LongName: sym.LongIdentifier(),
		Type:     sym.Type(),
		Status:   sym.Status(),
		Location: Location{FileURI: sym.FileURI()},
	}
	if n := sym.Node(); n != nil {
		info.Location.Range = n.Range()
	}
	return info
}

func symbolInfos(syms []*tree.Symbol) []SymbolInfo {
	out := make([]SymbolInfo, 0, len(syms))
	for _, sym := range syms {
		out = append(out, symbolInfo(sym))
	}
	return out
}

// DefinitionsNamed returns every definition with the given short name, in
// file registration then declaration order.
func (q *QueryBuilder) DefinitionsNamed(name string) []SymbolInfo {
	q.engine.mu.Lock()
	defer q.engine.mu.Unlock()
	return symbolInfos(q.engine.index.DefinitionsNamed(name))
}

// Definitions returns the definitions of a file, optionally restricted to
// one symbol type. tree.TypeUnknown matches every type.
func (q *QueryBuilder) Definitions(fileURI string, typ tree.SymbolType) []SymbolInfo {
	q.engine.mu.Lock()
	defer q.engine.mu.Unlock()
	var out []SymbolInfo
	for _, sym := range q.engine.index.SymbolDefinitions(fileURI) {
		if typ == tree.TypeUnknown || sym.Type() == typ {
			out = append(out, symbolInfo(sym))
		}
	}
	return out
}

// References returns the resolved references recorded for a file.
func (q *QueryBuilder) References(fileURI string) []SymbolInfo {
	q.engine.mu.Lock()
	defer q.engine.mu.Unlock()
	return symbolInfos(q.engine.index.SymbolReferences(fileURI))
}

// ParentsOf returns the URIs of the documents fileURI directly inherits.
func (q *QueryBuilder) ParentsOf(fileURI string) []string {
	q.engine.mu.Lock()
	defer q.engine.mu.Unlock()
	return q.engine.index.DocumentParents(fileURI)
}

// Dependents returns the files whose inheritance reaches into fileURI.
func (q *QueryBuilder) Dependents(fileURI string) []string {
	q.engine.mu.Lock()
	defer q.engine.mu.Unlock()
	return q.engine.index.DependentFiles(fileURI)
}

// Ancestors returns the transitive parents of the struct or rank profile
// name defined in fileURI, nearest first. Other types have no symbol
// inheritance and return nil.
func (q *QueryBuilder) Ancestors(fileURI string, typ tree.SymbolType, name string) []SymbolInfo {
	q.engine.mu.Lock()
	defer q.engine.mu.Unlock()
	idx := q.engine.index
	sym, ok := idx.FindSymbol(fileURI, typ, name)
	if !ok {
		return nil
	}
	var all []*tree.Symbol
	switch typ {
	case tree.TypeStruct:
		all = idx.GetAllStructParents(sym)
	case tree.TypeRankProfile:
		all = idx.GetAllRankProfileParents(sym)
	default:
		return nil
	}
	return symbolInfos(all[1:])
}

// RankProfileFunctions returns the functions visible in a rank profile:
// its own followed by those of each ancestor, nearest first.
func (q *QueryBuilder) RankProfileFunctions(fileURI, profile string) []SymbolInfo {
	q.engine.mu.Lock()
	defer q.engine.mu.Unlock()
	idx := q.engine.index
	sym, ok := idx.FindSymbol(fileURI, tree.TypeRankProfile, profile)
	if !ok {
		return nil
	}
	var out []SymbolInfo
	for _, p := range idx.GetAllRankProfileParents(sym) {
		out = append(out, symbolInfos(idx.GetAllRankProfileFunctions(p))...)
	}
	return out
}

// DefinitionAt finds the definition of the symbol at pos. A definition
// resolves to itself; a reference to its target.
func (q *QueryBuilder) DefinitionAt(fileURI string, pos protocol.Position) (SymbolInfo, bool) {
	q.engine.mu.Lock()
	defer q.engine.mu.Unlock()
	sym, ok := q.engine.symbolAt(fileURI, pos)
	if !ok {
		return SymbolInfo{}, false
	}
	def, ok := q.engine.definitionOf(sym)
	if !ok {
		return SymbolInfo{}, false
	}
	return symbolInfo(def), true
}

// ReferencesTo returns every reference in the workspace that resolves to
// the definition of the symbol at pos.
func (q *QueryBuilder) ReferencesTo(fileURI string, pos protocol.Position) []SymbolInfo {
	q.engine.mu.Lock()
	defer q.engine.mu.Unlock()
	e := q.engine
	sym, ok := e.symbolAt(fileURI, pos)
	if !ok {
		return nil
	}
	target, ok := e.definitionOf(sym)
	if !ok {
		return nil
	}

	var out []SymbolInfo
	for _, f := range e.index.Files() {
		for _, ref := range e.index.SymbolReferences(f) {
			if def, ok := e.definitionOf(ref); ok && def == target {
				out = append(out, symbolInfo(ref))
			}
		}
	}
	return out
}

// symbolAt returns the innermost symbol whose node covers pos.
func (e *Engine) symbolAt(fileURI string, pos protocol.Position) (*tree.Symbol, bool) {
	doc, ok := e.documents[fileURI]
	if !ok || doc.root == nil {
		return nil, false
	}
	var found *tree.Symbol
	doc.root.Walk(func(n *tree.Node) bool {
		if !contains(n.Range(), pos) {
			return false
		}
		if sym, ok := n.Symbol(); ok {
			found = sym
		}
		return true
	})
	return found, found != nil
}

// definitionOf resolves a reference symbol to its definition the way the
// analysis passes look targets up.
func (e *Engine) definitionOf(sym *tree.Symbol) (*tree.Symbol, bool) {
	switch sym.Status() {
	case tree.StatusDefinition:
		return sym, true
	case tree.StatusReference:
	default:
		return nil, false
	}

	idx := e.index
	name := sym.ShortIdentifier()
	switch sym.Type() {
	case tree.TypeDocument, tree.TypeSchema:
		d, ok := idx.FindSchemaDocumentWithName(name)
		if !ok {
			return nil, false
		}
		if def, ok := idx.FindSymbol(d.FileURI, sym.Type(), name); ok {
			return def, true
		}
		return idx.FindSymbol(d.FileURI, tree.TypeSchema, name)
	case tree.TypeStruct:
		return idx.FindSymbol(sym.FileURI(), tree.TypeStruct, name)
	default:
		candidates := idx.FindAllSymbolsWithSchemaScope(sym.FileURI(), sym.Type(), name)
		if len(candidates) == 0 {
			return nil, false
		}
		return candidates[0], true
	}
}

func contains(r protocol.Range, pos protocol.Position) bool {
	if pos.Line < r.Start.Line || pos.Line > r.End.Line {
		return false
	}
	if pos.Line == r.Start.Line && pos.Character < r.Start.Character {
		return false
	}
	if pos.Line == r.End.Line && pos.Character > r.End.Character {
		return false
	}
	return true
}
