package store

import (
	"database/sql"
	"fmt"
)

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func insertID(res sql.Result, err error, what string) (int64, error) {
	if err != nil {
		return 0, fmt.Errorf("insert %s: %w", what, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// --- Symbol operations ---

const symbolColumns = `id, file_id, name, long_name, kind, status,
	start_line, start_col, end_line, end_col, parent_symbol_id`

func (s *Store) InsertSymbol(sym *Symbol) (int64, error) {
	id, err := insertSymbol(s.db, sym)
	if err != nil {
		return 0, err
	}
	sym.ID = id
	return id, nil
}

func insertSymbol(ex execer, sym *Symbol) (int64, error) {
	res, err := ex.Exec(
		`INSERT INTO symbols (file_id, name, long_name, kind, status,
			start_line, start_col, end_line, end_col, parent_symbol_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sym.FileID, sym.Name, sym.LongName, sym.Kind, sym.Status,
		sym.StartLine, sym.StartCol, sym.EndLine, sym.EndCol, sym.ParentSymbolID,
	)
	return insertID(res, err, "symbol")
}

func (s *Store) SymbolByID(id int64) (*Symbol, error) {
	sym, err := scanSymbol(s.db.QueryRow("SELECT "+symbolColumns+" FROM symbols WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("symbol by id: %w", err)
	}
	return sym, nil
}

func (s *Store) SymbolsByFile(fileID int64) ([]*Symbol, error) {
	return s.querySymbols("SELECT "+symbolColumns+" FROM symbols WHERE file_id = ? ORDER BY id", fileID)
}

// SymbolsByName matches the short name of a symbol.
func (s *Store) SymbolsByName(name string) ([]*Symbol, error) {
	return s.querySymbols("SELECT "+symbolColumns+" FROM symbols WHERE name = ? ORDER BY id", name)
}

// SymbolsByKind returns symbols of the given kinds, or of every kind when
// none are given.
func (s *Store) SymbolsByKind(kinds ...string) ([]*Symbol, error) {
	if len(kinds) == 0 {
		return s.querySymbols("SELECT " + symbolColumns + " FROM symbols ORDER BY id")
	}
	return s.querySymbols(
		"SELECT "+symbolColumns+" FROM symbols WHERE kind IN ("+placeholderList(len(kinds))+") ORDER BY id",
		stringsToArgs(kinds)...,
	)
}

func (s *Store) querySymbols(query string, args ...any) ([]*Symbol, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query symbols: %w", err)
	}
	defer rows.Close()
	var syms []*Symbol
	for rows.Next() {
		sym, err := scanSymbol(rows)
		if err != nil {
			return nil, fmt.Errorf("scan symbol: %w", err)
		}
		syms = append(syms, sym)
	}
	return syms, rows.Err()
}

func scanSymbol(sc scanner) (*Symbol, error) {
	sym := &Symbol{}
	var fileID, parentID sql.NullInt64
	if err := sc.Scan(&sym.ID, &fileID, &sym.Name, &sym.LongName, &sym.Kind, &sym.Status,
		&sym.StartLine, &sym.StartCol, &sym.EndLine, &sym.EndCol, &parentID); err != nil {
		return nil, err
	}
	if fileID.Valid {
		sym.FileID = &fileID.Int64
	}
	if parentID.Valid {
		sym.ParentSymbolID = &parentID.Int64
	}
	return sym, nil
}

// --- Reference operations ---

const referenceColumns = "id, file_id, name, kind, status, start_line, start_col, end_line, end_col"

func (s *Store) InsertReference(ref *Reference) (int64, error) {
	id, err := insertReference(s.db, ref)
	if err != nil {
		return 0, err
	}
	ref.ID = id
	return id, nil
}

func insertReference(ex execer, ref *Reference) (int64, error) {
	res, err := ex.Exec(
		`INSERT INTO references_ (file_id, name, kind, status, start_line, start_col, end_line, end_col)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ref.FileID, ref.Name, ref.Kind, ref.Status, ref.StartLine, ref.StartCol, ref.EndLine, ref.EndCol,
	)
	return insertID(res, err, "reference")
}

func (s *Store) ReferencesByFile(fileID int64) ([]*Reference, error) {
	return s.queryReferences("SELECT "+referenceColumns+" FROM references_ WHERE file_id = ? ORDER BY id", fileID)
}

func (s *Store) ReferencesByName(name string) ([]*Reference, error) {
	return s.queryReferences("SELECT "+referenceColumns+" FROM references_ WHERE name = ? ORDER BY id", name)
}

func (s *Store) queryReferences(query string, args ...any) ([]*Reference, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query references: %w", err)
	}
	defer rows.Close()
	var refs []*Reference
	for rows.Next() {
		r := &Reference{}
		if err := rows.Scan(&r.ID, &r.FileID, &r.Name, &r.Kind, &r.Status,
			&r.StartLine, &r.StartCol, &r.EndLine, &r.EndCol); err != nil {
			return nil, fmt.Errorf("scan reference: %w", err)
		}
		refs = append(refs, r)
	}
	return refs, rows.Err()
}
