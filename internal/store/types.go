package store

import "time"

// Inheritance graph names stored in inheritance.graph.
const (
	GraphDocument    = "document"
	GraphStruct      = "struct"
	GraphRankProfile = "rank_profile"
)

type File struct {
	ID            int64
	URI           string
	SchemaName    string
	Version       int32
	Hash          string
	SignatureHash string
	LineCount     int
	LastIndexed   time.Time
}

// Symbol is a persisted definition. Positions are zero-based LSP
// line/character pairs.
type Symbol struct {
	ID             int64
	FileID         *int64
	Name           string
	LongName       string
	Kind           string
	Status         string
	StartLine      int
	StartCol       int
	EndLine        int
	EndCol         int
	ParentSymbolID *int64
}

// Reference is a persisted use of a name, such as an inherits target.
type Reference struct {
	ID        int64
	FileID    int64
	Name      string
	Kind      string
	Status    string
	StartLine int
	StartCol  int
	EndLine   int
	EndCol    int
}

// InheritanceEdge records child inheriting from parent in one of the three
// graphs. For the document graph the names are schema names; otherwise
// they are long identifiers.
type InheritanceEdge struct {
	ID         int64
	FileID     int64
	Graph      string
	ChildFile  string
	ChildName  string
	ParentFile string
	ParentName string
}

type Diagnostic struct {
	ID        int64
	FileID    int64
	Severity  string
	Message   string
	Note      string
	StartLine int
	StartCol  int
	EndLine   int
	EndCol    int
}
