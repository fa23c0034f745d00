package main

// CLIResult is the top-level JSON envelope for all commands.
type CLIResult struct {
	Command    string `json:"command"`
	Results    any    `json:"results"`
	TotalCount *int   `json:"total_count,omitempty"`
	Error      string `json:"error,omitempty"`
}

// CLIDiagnostic is a JSON-friendly diagnostic with one-based positions.
type CLIDiagnostic struct {
	Severity  string `json:"severity"`
	Message   string `json:"message"`
	Note      string `json:"note,omitempty"`
	StartLine int    `json:"start_line"`
	StartCol  int    `json:"start_col"`
	EndLine   int    `json:"end_line"`
	EndCol    int    `json:"end_col"`
}

// CLIFileDiagnostics groups the diagnostics of one file.
type CLIFileDiagnostics struct {
	File        string          `json:"file"`
	Diagnostics []CLIDiagnostic `json:"diagnostics"`
}

// CLISymbol is a JSON-friendly persisted definition.
type CLISymbol struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	LongName  string `json:"long_name"`
	Kind      string `json:"kind"`
	File      string `json:"file,omitempty"`
	StartLine int    `json:"start_line"`
	StartCol  int    `json:"start_col"`
	EndLine   int    `json:"end_line"`
	EndCol    int    `json:"end_col"`
}

// CLIEdge is a JSON-friendly inheritance edge.
type CLIEdge struct {
	Graph      string `json:"graph"`
	ChildFile  string `json:"child_file"`
	ChildName  string `json:"child_name"`
	ParentFile string `json:"parent_file"`
	ParentName string `json:"parent_name"`
}

// CLIFile is a JSON-friendly indexed file.
type CLIFile struct {
	ID         int64  `json:"id"`
	URI        string `json:"uri"`
	SchemaName string `json:"schema_name"`
	Version    int32  `json:"version"`
	LineCount  int    `json:"line_count"`
}
