package store

import "fmt"

const edgeColumns = "id, file_id, graph, child_file, child_name, parent_file, parent_name"

func (s *Store) InsertInheritance(edge *InheritanceEdge) (int64, error) {
	id, err := insertInheritance(s.db, edge)
	if err != nil {
		return 0, err
	}
	edge.ID = id
	return id, nil
}

func insertInheritance(ex execer, e *InheritanceEdge) (int64, error) {
	res, err := ex.Exec(
		`INSERT INTO inheritance (file_id, graph, child_file, child_name, parent_file, parent_name)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.FileID, e.Graph, e.ChildFile, e.ChildName, e.ParentFile, e.ParentName,
	)
	return insertID(res, err, "inheritance edge")
}

// InheritanceParents returns the direct parents of a node in graph. An
// empty childFile matches any file.
func (s *Store) InheritanceParents(graph, childFile, childName string) ([]*InheritanceEdge, error) {
	if childFile == "" {
		return s.queryEdges("SELECT "+edgeColumns+" FROM inheritance WHERE graph = ? AND child_name = ? ORDER BY id",
			graph, childName)
	}
	return s.queryEdges("SELECT "+edgeColumns+" FROM inheritance WHERE graph = ? AND child_file = ? AND child_name = ? ORDER BY id",
		graph, childFile, childName)
}

// InheritanceChildren returns the direct children of a node in graph. An
// empty parentFile matches any file.
func (s *Store) InheritanceChildren(graph, parentFile, parentName string) ([]*InheritanceEdge, error) {
	if parentFile == "" {
		return s.queryEdges("SELECT "+edgeColumns+" FROM inheritance WHERE graph = ? AND parent_name = ? ORDER BY id",
			graph, parentName)
	}
	return s.queryEdges("SELECT "+edgeColumns+" FROM inheritance WHERE graph = ? AND parent_file = ? AND parent_name = ? ORDER BY id",
		graph, parentFile, parentName)
}

// InheritanceByFile returns the edges owned by a file.
func (s *Store) InheritanceByFile(fileID int64) ([]*InheritanceEdge, error) {
	return s.queryEdges("SELECT "+edgeColumns+" FROM inheritance WHERE file_id = ? ORDER BY id", fileID)
}

// FilesDependingOn returns the URIs of files owning an edge whose parent
// lives in uri, excluding uri itself.
func (s *Store) FilesDependingOn(uri string) ([]string, error) {
	rows, err := s.db.Query(
		`SELECT DISTINCT f.uri FROM inheritance i
		 JOIN files f ON f.id = i.file_id
		 WHERE i.parent_file = ? AND f.uri != ?
		 ORDER BY f.uri`, uri, uri)
	if err != nil {
		return nil, fmt.Errorf("files depending on %s: %w", uri, err)
	}
	defer rows.Close()
	var uris []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("scan file uri: %w", err)
		}
		uris = append(uris, u)
	}
	return uris, rows.Err()
}

func (s *Store) queryEdges(query string, args ...any) ([]*InheritanceEdge, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query inheritance: %w", err)
	}
	defer rows.Close()
	var edges []*InheritanceEdge
	for rows.Next() {
		e := &InheritanceEdge{}
		if err := rows.Scan(&e.ID, &e.FileID, &e.Graph, &e.ChildFile, &e.ChildName, &e.ParentFile, &e.ParentName); err != nil {
			return nil, fmt.Errorf("scan inheritance edge: %w", err)
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}
