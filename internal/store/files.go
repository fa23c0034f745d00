package store

import (
	"database/sql"
	"fmt"
)

const fileColumns = "id, uri, schema_name, version, hash, signature_hash, line_count, last_indexed"

func (s *Store) InsertFile(f *File) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO files (uri, schema_name, version, hash, signature_hash, line_count, last_indexed)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		f.URI, f.SchemaName, f.Version, f.Hash, f.SignatureHash, f.LineCount, f.LastIndexed,
	)
	if err != nil {
		return 0, fmt.Errorf("insert file: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	f.ID = id
	return id, nil
}

// UpdateFile rewrites every column of the row identified by f.ID.
func (s *Store) UpdateFile(f *File) error {
	_, err := s.db.Exec(
		`UPDATE files SET uri = ?, schema_name = ?, version = ?, hash = ?, signature_hash = ?,
			line_count = ?, last_indexed = ? WHERE id = ?`,
		f.URI, f.SchemaName, f.Version, f.Hash, f.SignatureHash, f.LineCount, f.LastIndexed, f.ID,
	)
	if err != nil {
		return fmt.Errorf("update file: %w", err)
	}
	return nil
}

// FileByURI returns the file stored under uri, or nil when there is none.
func (s *Store) FileByURI(uri string) (*File, error) {
	f, err := scanFile(s.db.QueryRow("SELECT "+fileColumns+" FROM files WHERE uri = ?", uri))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file by uri: %w", err)
	}
	return f, nil
}

// FileBySchemaName returns the first file declaring schema name, or nil.
func (s *Store) FileBySchemaName(name string) (*File, error) {
	f, err := scanFile(s.db.QueryRow("SELECT "+fileColumns+" FROM files WHERE schema_name = ? ORDER BY id LIMIT 1", name))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file by schema name: %w", err)
	}
	return f, nil
}

// Files returns every stored file ordered by URI.
func (s *Store) Files() ([]*File, error) {
	rows, err := s.db.Query("SELECT " + fileColumns + " FROM files ORDER BY uri")
	if err != nil {
		return nil, fmt.Errorf("files: %w", err)
	}
	defer rows.Close()
	var files []*File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

func scanFile(sc scanner) (*File, error) {
	f := &File{}
	var schemaName, hash, sigHash sql.NullString
	var lineCount sql.NullInt64
	var lastIndexed sql.NullTime
	if err := sc.Scan(&f.ID, &f.URI, &schemaName, &f.Version, &hash, &sigHash, &lineCount, &lastIndexed); err != nil {
		return nil, err
	}
	f.SchemaName = schemaName.String
	f.Hash = hash.String
	f.SignatureHash = sigHash.String
	f.LineCount = int(lineCount.Int64)
	f.LastIndexed = lastIndexed.Time
	return f, nil
}
