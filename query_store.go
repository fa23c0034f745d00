package schemals

import (
	"errors"
	"fmt"

	"github.com/jward/schemals/internal/store"
)

// ErrNoStore is returned by snapshot queries on an Engine without a
// database.
var ErrNoStore = errors.New("schemals: no database configured")

// StoredSymbolLocation pairs a persisted symbol with the URI of its file.
type StoredSymbolLocation struct {
	FileURI string
	Symbol  *store.Symbol
}

func (q *QueryBuilder) snapshotStore() (*store.Store, error) {
	if q.engine.store == nil {
		return nil, ErrNoStore
	}
	return q.engine.store, nil
}

// StoredFiles returns every file of the snapshot, ordered by URI.
func (q *QueryBuilder) StoredFiles() ([]*store.File, error) {
	s, err := q.snapshotStore()
	if err != nil {
		return nil, err
	}
	return s.Files()
}

// StoredSymbols returns the persisted definitions with the given short
// name.
func (q *QueryBuilder) StoredSymbols(name string) ([]StoredSymbolLocation, error) {
	s, err := q.snapshotStore()
	if err != nil {
		return nil, err
	}
	syms, err := s.SymbolsByName(name)
	if err != nil {
		return nil, fmt.Errorf("stored symbols: %w", err)
	}
	files, err := s.Files()
	if err != nil {
		return nil, fmt.Errorf("stored symbols: %w", err)
	}
	uris := make(map[int64]string, len(files))
	for _, f := range files {
		uris[f.ID] = f.URI
	}

	out := make([]StoredSymbolLocation, 0, len(syms))
	for _, sym := range syms {
		loc := StoredSymbolLocation{Symbol: sym}
		if sym.FileID != nil {
			loc.FileURI = uris[*sym.FileID]
		}
		out = append(out, loc)
	}
	return out, nil
}

// StoredParents returns the persisted document inheritance edges of
// fileURI. A file missing from the snapshot has none.
func (q *QueryBuilder) StoredParents(fileURI string) ([]*store.InheritanceEdge, error) {
	s, err := q.snapshotStore()
	if err != nil {
		return nil, err
	}
	f, err := s.FileByURI(fileURI)
	if err != nil {
		return nil, fmt.Errorf("stored parents: %w", err)
	}
	if f == nil {
		return nil, nil
	}
	return s.InheritanceParents(store.GraphDocument, fileURI, f.SchemaName)
}

// StoredDependents returns the URIs of files owning an edge into fileURI.
func (q *QueryBuilder) StoredDependents(fileURI string) ([]string, error) {
	s, err := q.snapshotStore()
	if err != nil {
		return nil, err
	}
	return s.FilesDependingOn(fileURI)
}

// StoredDiagnostics returns the persisted diagnostics of fileURI.
func (q *QueryBuilder) StoredDiagnostics(fileURI string) ([]*store.Diagnostic, error) {
	s, err := q.snapshotStore()
	if err != nil {
		return nil, err
	}
	f, err := s.FileByURI(fileURI)
	if err != nil {
		return nil, fmt.Errorf("stored diagnostics: %w", err)
	}
	if f == nil {
		return nil, nil
	}
	return s.DiagnosticsByFile(f.ID)
}
