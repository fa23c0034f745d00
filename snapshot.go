package schemals

import (
	"strings"

	"go.lsp.dev/protocol"

	"github.com/jward/schemals/internal/diag"
	"github.com/jward/schemals/internal/index"
	"github.com/jward/schemals/internal/store"
	"github.com/jward/schemals/internal/tree"
)

// snapshot is the persisted form of one analysed document, taken from the
// index after its passes have run.
type snapshot struct {
	uri        string
	schemaName string
	version    int32
	hash       string
	lineCount  int

	symbols []*store.Symbol
	// scopes[i] is the index in symbols of the scope of symbols[i], or -1.
	scopes      []int
	references  []*store.Reference
	edges       []*store.InheritanceEdge
	diagnostics []*store.Diagnostic

	signature string
}

func (e *Engine) takeSnapshot(doc *SchemaDocument) *snapshot {
	snap := &snapshot{
		uri:       doc.fileURI,
		version:   doc.version,
		hash:      store.ContentHash(doc.content),
		lineCount: strings.Count(doc.content, "\n") + 1,
	}
	if d, ok := e.index.SchemaDocument(doc.fileURI); ok {
		snap.schemaName = d.Name
	}

	defs := e.index.SymbolDefinitions(doc.fileURI)
	position := make(map[*tree.Symbol]int, len(defs))
	for i, sym := range defs {
		position[sym] = i
		row := &store.Symbol{
			Name:     sym.ShortIdentifier(),
			LongName: sym.LongIdentifier(),
			Kind:     sym.Type().String(),
			Status:   sym.Status().String(),
		}
		setSymbolRange(row, sym.Node().Range())
		snap.symbols = append(snap.symbols, row)
		scope := -1
		if sym.Scope() != nil {
			if j, ok := position[sym.Scope()]; ok {
				scope = j
			}
		}
		snap.scopes = append(snap.scopes, scope)
	}

	for _, sym := range e.index.SymbolReferences(doc.fileURI) {
		r := sym.Node().Range()
		snap.references = append(snap.references, &store.Reference{
			Name:      sym.ShortIdentifier(),
			Kind:      sym.Type().String(),
			Status:    sym.Status().String(),
			StartLine: int(r.Start.Line),
			StartCol:  int(r.Start.Character),
			EndLine:   int(r.End.Line),
			EndCol:    int(r.End.Character),
		})
	}

	documents, structs, rankProfiles := e.index.InheritanceEdges(doc.fileURI)
	for _, edge := range documents {
		snap.edges = append(snap.edges, &store.InheritanceEdge{
			Graph:      store.GraphDocument,
			ChildFile:  edge.Child,
			ChildName:  e.schemaName(edge.Child),
			ParentFile: edge.Parent,
			ParentName: e.schemaName(edge.Parent),
		})
	}
	for _, g := range []struct {
		name  string
		edges []index.Edge[*tree.Symbol]
	}{
		{store.GraphStruct, structs},
		{store.GraphRankProfile, rankProfiles},
	} {
		for _, edge := range g.edges {
			snap.edges = append(snap.edges, &store.InheritanceEdge{
				Graph:      g.name,
				ChildFile:  edge.Child.FileURI(),
				ChildName:  edge.Child.LongIdentifier(),
				ParentFile: edge.Parent.FileURI(),
				ParentName: edge.Parent.LongIdentifier(),
			})
		}
	}

	for _, d := range doc.diagnostics {
		snap.diagnostics = append(snap.diagnostics, &store.Diagnostic{
			Severity:  diag.SeverityName(d.Severity),
			Message:   d.Message,
			Note:      d.Note,
			StartLine: int(d.Range.Start.Line),
			StartCol:  int(d.Range.Start.Character),
			EndLine:   int(d.Range.End.Line),
			EndCol:    int(d.Range.End.Character),
		})
	}

	snap.signature = store.ComputeSignatureHash(snap.schemaName, snap.symbols, snap.edges)
	return snap
}

func (e *Engine) schemaName(fileURI string) string {
	if d, ok := e.index.SchemaDocument(fileURI); ok {
		return d.Name
	}
	return ""
}

func setSymbolRange(row *store.Symbol, r protocol.Range) {
	row.StartLine = int(r.Start.Line)
	row.StartCol = int(r.Start.Character)
	row.EndLine = int(r.End.Line)
	row.EndCol = int(r.End.Character)
}

// write inserts the snapshot rows for fileID into ds. Symbols are inserted
// in declaration order, so a scope always has its ID before the symbols it
// contains.
func (s *snapshot) write(ds store.DataStore, fileID int64) error {
	ids := make([]int64, len(s.symbols))
	for i, row := range s.symbols {
		sym := *row
		sym.FileID = &fileID
		if j := s.scopes[i]; j >= 0 {
			parent := ids[j]
			sym.ParentSymbolID = &parent
		}
		id, err := ds.InsertSymbol(&sym)
		if err != nil {
			return err
		}
		ids[i] = id
	}
	for _, row := range s.references {
		ref := *row
		ref.FileID = fileID
		if _, err := ds.InsertReference(&ref); err != nil {
			return err
		}
	}
	for _, row := range s.edges {
		edge := *row
		edge.FileID = fileID
		if _, err := ds.InsertInheritance(&edge); err != nil {
			return err
		}
	}
	for _, row := range s.diagnostics {
		d := *row
		d.FileID = fileID
		if _, err := ds.InsertDiagnostic(&d); err != nil {
			return err
		}
	}
	return nil
}
