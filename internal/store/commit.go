package store

import "fmt"

// CommitBatch inserts all buffered data from a BatchedStore into SQLite
// within a single transaction. Fake (negative) symbol IDs are remapped to
// real ones so that parent_symbol_id links inside the batch survive.
//
// Symbols go first, in buffer order, so a scope is always inserted before
// the symbols it contains. References, edges and diagnostics only point at
// files, which are already real.
func (s *Store) CommitBatch(batch *BatchedStore) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("commit batch: begin: %w", err)
	}
	defer tx.Rollback()

	batch.mu.Lock()
	defer batch.mu.Unlock()

	fakeToReal := make(map[int64]int64)

	for _, sym := range batch.Symbols {
		if sym.ParentSymbolID != nil && *sym.ParentSymbolID < 0 {
			realID, ok := fakeToReal[*sym.ParentSymbolID]
			if !ok {
				return fmt.Errorf("commit batch: symbol %q: parent %d not yet inserted", sym.LongName, *sym.ParentSymbolID)
			}
			sym.ParentSymbolID = &realID
		}
		realID, err := insertSymbol(tx, &sym)
		if err != nil {
			return fmt.Errorf("commit batch: symbol %q: %w", sym.LongName, err)
		}
		fakeToReal[sym.ID] = realID
	}

	for _, ref := range batch.References {
		if _, err := insertReference(tx, &ref); err != nil {
			return fmt.Errorf("commit batch: reference %q: %w", ref.Name, err)
		}
	}

	for _, edge := range batch.Inheritance {
		if _, err := insertInheritance(tx, &edge); err != nil {
			return fmt.Errorf("commit batch: %s edge %s -> %s: %w", edge.Graph, edge.ChildName, edge.ParentName, err)
		}
	}

	for _, d := range batch.Diagnostics {
		if _, err := insertDiagnostic(tx, &d); err != nil {
			return fmt.Errorf("commit batch: diagnostic: %w", err)
		}
	}

	return tx.Commit()
}
