package store

// DataStore is the write side of a snapshot. Both Store (direct SQLite)
// and BatchedStore (in-memory buffering for parallel snapshots) implement
// it.
type DataStore interface {
	// Inserts each return the assigned ID.
	InsertSymbol(sym *Symbol) (int64, error)
	InsertReference(ref *Reference) (int64, error)
	InsertInheritance(edge *InheritanceEdge) (int64, error)
	InsertDiagnostic(d *Diagnostic) (int64, error)

	SymbolsByFile(fileID int64) ([]*Symbol, error)
}

// Compile-time check: *Store satisfies DataStore.
var _ DataStore = (*Store)(nil)
