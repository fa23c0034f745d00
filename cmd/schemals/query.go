package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"

	"github.com/jward/schemals"
	"github.com/jward/schemals/internal/diag"
	"github.com/jward/schemals/internal/store"
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query the schema index",
	Long:  "Run queries against an indexed workspace. Line and column arguments are 0-based; text output is 1-based for diagnostics only.",
}

func init() {
	queryCmd.AddCommand(filesCmd)
	queryCmd.AddCommand(symbolsCmd)
	queryCmd.AddCommand(parentsCmd)
	queryCmd.AddCommand(dependentsCmd)
	queryCmd.AddCommand(diagnosticsCmd)
	queryCmd.AddCommand(definitionCmd)
}

// --- Helpers ---

// openIndex opens an Engine on the existing database from the --db flag
// or the configured store path.
func openIndex() (*schemals.Engine, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting cwd: %w", err)
	}
	repoRoot := findRepoRoot(cwd)
	cfg, err := loadConfig(repoRoot)
	if err != nil {
		return nil, err
	}
	dbPath := resolveDBPath(repoRoot, cfg)

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("database not found: %s (run 'schemals index' first)", dbPath)
	}
	return schemals.New(dbPath, "", schemals.WithLogger(newLogger(cfg)))
}

// resolveFileURI converts a file argument to a file URI. Arguments that
// already carry a scheme are returned unchanged.
func resolveFileURI(file string) (string, error) {
	if strings.HasPrefix(file, uri.FileScheme+"://") {
		return file, nil
	}
	abs, err := filepath.Abs(file)
	if err != nil {
		return "", fmt.Errorf("resolving file path %q: %w", file, err)
	}
	return string(uri.File(abs)), nil
}

// parseIntArg parses a positional argument as an integer with a clear error.
func parseIntArg(value, name string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: must be a non-negative integer", name, value)
	}
	if n < 0 {
		return 0, fmt.Errorf("invalid %s %q: must be non-negative", name, value)
	}
	return n, nil
}

// outputResult writes the result in the selected format.
func outputResult(result CLIResult) error {
	if flagFormat == "text" {
		return outputResultText(result)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// outputError writes an error in the selected format and returns it so RunE
// can propagate it to Cobra. In JSON mode the error is written to stdout as a
// CLIResult envelope. In text mode it goes to stderr.
func outputError(command string, err error) error {
	errorHandled = true
	if flagFormat == "text" {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		return err
	}
	result := CLIResult{
		Command: command,
		Error:   err.Error(),
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(result)
	return err
}

func countPtr(n int) *int { return &n }

func symbolToCLI(loc schemals.StoredSymbolLocation) CLISymbol {
	s := loc.Symbol
	return CLISymbol{
		ID:        s.ID,
		Name:      s.Name,
		LongName:  s.LongName,
		Kind:      s.Kind,
		File:      loc.FileURI,
		StartLine: s.StartLine,
		StartCol:  s.StartCol,
		EndLine:   s.EndLine,
		EndCol:    s.EndCol,
	}
}

func edgeToCLI(e *store.InheritanceEdge) CLIEdge {
	return CLIEdge{
		Graph:      e.Graph,
		ChildFile:  e.ChildFile,
		ChildName:  e.ChildName,
		ParentFile: e.ParentFile,
		ParentName: e.ParentName,
	}
}

func fileToCLI(f *store.File) CLIFile {
	return CLIFile{
		ID:         f.ID,
		URI:        f.URI,
		SchemaName: f.SchemaName,
		Version:    f.Version,
		LineCount:  f.LineCount,
	}
}

// fileDiagnosticsToCLI converts live diagnostics, shifting positions to
// one-based.
func fileDiagnosticsToCLI(fileURI string, diags []diag.Diagnostic) CLIFileDiagnostics {
	out := CLIFileDiagnostics{File: fileURI, Diagnostics: []CLIDiagnostic{}}
	for _, d := range diags {
		out.Diagnostics = append(out.Diagnostics, CLIDiagnostic{
			Severity:  diag.SeverityName(d.Severity),
			Message:   d.Message,
			Note:      d.Note,
			StartLine: int(d.Range.Start.Line) + 1,
			StartCol:  int(d.Range.Start.Character) + 1,
			EndLine:   int(d.Range.End.Line) + 1,
			EndCol:    int(d.Range.End.Character) + 1,
		})
	}
	return out
}

// storedDiagnosticsToCLI converts persisted diagnostics the same way.
func storedDiagnosticsToCLI(fileURI string, diags []*store.Diagnostic) CLIFileDiagnostics {
	out := CLIFileDiagnostics{File: fileURI, Diagnostics: []CLIDiagnostic{}}
	for _, d := range diags {
		out.Diagnostics = append(out.Diagnostics, CLIDiagnostic{
			Severity:  d.Severity,
			Message:   d.Message,
			Note:      d.Note,
			StartLine: d.StartLine + 1,
			StartCol:  d.StartCol + 1,
			EndLine:   d.EndLine + 1,
			EndCol:    d.EndCol + 1,
		})
	}
	return out
}

// --- files ---

var filesCmd = &cobra.Command{
	Use:   "files",
	Short: "List indexed files",
	Args:  cobra.NoArgs,
	RunE:  runFiles,
}

func runFiles(cmd *cobra.Command, args []string) error {
	engine, err := openIndex()
	if err != nil {
		return outputError("files", err)
	}
	defer engine.Close()

	files, err := engine.Query().StoredFiles()
	if err != nil {
		return outputError("files", err)
	}
	results := make([]CLIFile, 0, len(files))
	for _, f := range files {
		results = append(results, fileToCLI(f))
	}
	return outputResult(CLIResult{Command: "files", Results: results, TotalCount: countPtr(len(results))})
}

// --- symbols ---

var symbolsCmd = &cobra.Command{
	Use:   "symbols <name>",
	Short: "Find definitions by short name",
	Args:  cobra.ExactArgs(1),
	RunE:  runSymbols,
}

func runSymbols(cmd *cobra.Command, args []string) error {
	engine, err := openIndex()
	if err != nil {
		return outputError("symbols", err)
	}
	defer engine.Close()

	syms, err := engine.Query().StoredSymbols(args[0])
	if err != nil {
		return outputError("symbols", err)
	}
	results := make([]CLISymbol, 0, len(syms))
	for _, s := range syms {
		results = append(results, symbolToCLI(s))
	}
	return outputResult(CLIResult{Command: "symbols", Results: results, TotalCount: countPtr(len(results))})
}

// --- parents ---

var parentsCmd = &cobra.Command{
	Use:   "parents <file>",
	Short: "List the documents a file inherits",
	Args:  cobra.ExactArgs(1),
	RunE:  runParents,
}

func runParents(cmd *cobra.Command, args []string) error {
	fileURI, err := resolveFileURI(args[0])
	if err != nil {
		return outputError("parents", err)
	}
	engine, err := openIndex()
	if err != nil {
		return outputError("parents", err)
	}
	defer engine.Close()

	edges, err := engine.Query().StoredParents(fileURI)
	if err != nil {
		return outputError("parents", err)
	}
	results := make([]CLIEdge, 0, len(edges))
	for _, e := range edges {
		results = append(results, edgeToCLI(e))
	}
	return outputResult(CLIResult{Command: "parents", Results: results, TotalCount: countPtr(len(results))})
}

// --- dependents ---

var dependentsCmd = &cobra.Command{
	Use:   "dependents <file>",
	Short: "List files whose inheritance reaches into a file",
	Args:  cobra.ExactArgs(1),
	RunE:  runDependents,
}

func runDependents(cmd *cobra.Command, args []string) error {
	fileURI, err := resolveFileURI(args[0])
	if err != nil {
		return outputError("dependents", err)
	}
	engine, err := openIndex()
	if err != nil {
		return outputError("dependents", err)
	}
	defer engine.Close()

	deps, err := engine.Query().StoredDependents(fileURI)
	if err != nil {
		return outputError("dependents", err)
	}
	if deps == nil {
		deps = []string{}
	}
	return outputResult(CLIResult{Command: "dependents", Results: deps, TotalCount: countPtr(len(deps))})
}

// --- diagnostics ---

var diagnosticsCmd = &cobra.Command{
	Use:   "diagnostics <file>",
	Short: "Show the diagnostics recorded for a file",
	Args:  cobra.ExactArgs(1),
	RunE:  runDiagnostics,
}

func runDiagnostics(cmd *cobra.Command, args []string) error {
	fileURI, err := resolveFileURI(args[0])
	if err != nil {
		return outputError("diagnostics", err)
	}
	engine, err := openIndex()
	if err != nil {
		return outputError("diagnostics", err)
	}
	defer engine.Close()

	diags, err := engine.Query().StoredDiagnostics(fileURI)
	if err != nil {
		return outputError("diagnostics", err)
	}
	results := []CLIFileDiagnostics{storedDiagnosticsToCLI(fileURI, diags)}
	return outputResult(CLIResult{Command: "diagnostics", Results: results})
}

// --- definition ---

var definitionCmd = &cobra.Command{
	Use:   "definition <file> <line> <col>",
	Short: "Find the definition of the symbol at a position",
	Long:  "Analyses the schema files of the workspace in memory and resolves the symbol at the 0-based position.",
	Args:  cobra.ExactArgs(3),
	RunE:  runDefinition,
}

func runDefinition(cmd *cobra.Command, args []string) error {
	line, err := parseIntArg(args[1], "line")
	if err != nil {
		return outputError("definition", err)
	}
	col, err := parseIntArg(args[2], "col")
	if err != nil {
		return outputError("definition", err)
	}
	abs, err := filepath.Abs(args[0])
	if err != nil {
		return outputError("definition", err)
	}

	root := findRepoRoot(filepath.Dir(abs))
	cfg, err := loadConfig(root)
	if err != nil {
		return outputError("definition", err)
	}
	dir := rulesDir(root, cfg)
	engine, err := schemals.New("", dir, engineOptions(cfg, dir)...)
	if err != nil {
		return outputError("definition", err)
	}
	defer engine.Close()

	files, err := collectSchemaFiles(root)
	if err != nil {
		return outputError("definition", err)
	}
	if err := engine.AnalyzeFiles(cmd.Context(), appendPath(files, abs)); err != nil {
		return outputError("definition", err)
	}

	pos := protocol.Position{Line: uint32(line), Character: uint32(col)}
	results := []CLISymbol{}
	if def, ok := engine.Query().DefinitionAt(string(uri.File(abs)), pos); ok {
		r := def.Location.Range
		results = append(results, CLISymbol{
			Name:      def.Name,
			LongName:  def.LongName,
			Kind:      def.Type.String(),
			File:      def.Location.FileURI,
			StartLine: int(r.Start.Line),
			StartCol:  int(r.Start.Character),
			EndLine:   int(r.End.Line),
			EndCol:    int(r.End.Character),
		})
	}
	return outputResult(CLIResult{Command: "definition", Results: results, TotalCount: countPtr(len(results))})
}

func appendPath(paths []string, path string) []string {
	for _, p := range paths {
		if p == path {
			return paths
		}
	}
	return append(paths, path)
}
