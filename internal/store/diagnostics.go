package store

import (
	"database/sql"
	"fmt"
)

func (s *Store) InsertDiagnostic(d *Diagnostic) (int64, error) {
	id, err := insertDiagnostic(s.db, d)
	if err != nil {
		return 0, err
	}
	d.ID = id
	return id, nil
}

func insertDiagnostic(ex execer, d *Diagnostic) (int64, error) {
	res, err := ex.Exec(
		`INSERT INTO diagnostics (file_id, severity, message, note, start_line, start_col, end_line, end_col)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		d.FileID, d.Severity, d.Message, d.Note, d.StartLine, d.StartCol, d.EndLine, d.EndCol,
	)
	return insertID(res, err, "diagnostic")
}

// DiagnosticsByFile returns a file's diagnostics in position order.
func (s *Store) DiagnosticsByFile(fileID int64) ([]*Diagnostic, error) {
	rows, err := s.db.Query(
		`SELECT id, file_id, severity, message, note, start_line, start_col, end_line, end_col
		 FROM diagnostics WHERE file_id = ? ORDER BY start_line, start_col, id`, fileID)
	if err != nil {
		return nil, fmt.Errorf("diagnostics by file: %w", err)
	}
	defer rows.Close()
	var diags []*Diagnostic
	for rows.Next() {
		d := &Diagnostic{}
		var note sql.NullString
		if err := rows.Scan(&d.ID, &d.FileID, &d.Severity, &d.Message, &note,
			&d.StartLine, &d.StartCol, &d.EndLine, &d.EndCol); err != nil {
			return nil, fmt.Errorf("scan diagnostic: %w", err)
		}
		d.Note = note.String
		diags = append(diags, d)
	}
	return diags, rows.Err()
}

// DiagnosticCounts returns the number of stored diagnostics per severity.
func (s *Store) DiagnosticCounts() (map[string]int, error) {
	rows, err := s.db.Query("SELECT severity, COUNT(*) FROM diagnostics GROUP BY severity")
	if err != nil {
		return nil, fmt.Errorf("diagnostic counts: %w", err)
	}
	defer rows.Close()
	counts := make(map[string]int)
	for rows.Next() {
		var sev string
		var n int
		if err := rows.Scan(&sev, &n); err != nil {
			return nil, fmt.Errorf("scan diagnostic count: %w", err)
		}
		counts[sev] = n
	}
	return counts, rows.Err()
}
