// Package schemals is the semantic core of a language server for schema
// files. It builds one unified syntax tree per file over the primary
// schema grammar and any embedded sub-language grammars, attaches symbols,
// and resolves document, struct and rank-profile inheritance across the
// workspace while reporting cycles, redeclarations and ambiguous
// references as diagnostics.
//
// # Pipeline
//
// Every update runs the same passes over a batch of files:
//
//  1. Parse: the primary parser and the configured tree-sitter grammars for
//     embedded expression and indexing regions run in parallel, one worker
//     per file.
//
//  2. Identify: definitions are attached to declared names and inherits
//     clauses are queued.
//
//  3. Resolve: document inheritance for the whole batch is registered
//     first, then struct and rank-profile inheritance in document order,
//     then the remaining references.
//
//  4. Rules: Risor scripts in the rules directory may report extra
//     diagnostics.
//
//  5. Snapshot: when a database is configured, symbols, references,
//     inheritance edges and diagnostics are written to SQLite.
//
// # Usage
//
//	e, err := schemals.New("index.db", "rules")
//	if err != nil { ... }
//	defer e.Close()
//
//	ctx := context.Background()
//	doc, err := e.OpenDocument(ctx, "file:///ws/music.sd", src, 1)
//	for _, d := range e.Diagnostics(doc.FileURI()) { ... }
//
//	q := e.Query()
//	def, ok := q.DefinitionAt("file:///ws/music.sd", pos)
//
// # Incremental updates
//
// Updates are serialised by the Engine. When a file changes, the files
// holding inheritance edges into its definitions are resolved again with
// it. When its signature changes (the set of definitions and edges other
// files can observe), the files inheriting its document and the files with
// unresolved references are resolved again too. See [WithResolveDependents].
package schemals
