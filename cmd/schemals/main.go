package main

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jward/schemals"
	"github.com/jward/schemals/internal/config"
	"github.com/jward/schemals/internal/diag"
	"github.com/jward/schemals/internal/logging"
	"github.com/jward/schemals/rules"
)

var (
	flagDB       string
	flagFormat   string
	flagConfig   string
	flagLogLevel string
)

// schemaExt is the extension of schema files picked up by directory walks.
const schemaExt = ".sd"

// errorHandled is set by outputError so main() doesn't double-print.
var errorHandled bool

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errorHandled {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "schemals",
	Short:         "Static analysis for search schema files",
	Long:          "schemals parses schema files, resolves inheritance across a workspace and reports diagnostics. The index command writes a SQLite snapshot for queries.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return validateFormat(flagFormat)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "database path (default: store.path from config, relative to repo root)")
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", "json", "output format: json|text")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default: .schemals.yaml in repo root)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level override: debug|info|warn|error")

	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(queryCmd)
}

var checkCmd = &cobra.Command{
	Use:   "check <file>...",
	Short: "Analyse schema files and print their diagnostics",
	Long:  "Parses and resolves the given files as one workspace without writing a database. Exits non-zero when any error is reported.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	wd, err := os.Getwd()
	if err != nil {
		return outputError("check", err)
	}
	root := findRepoRoot(wd)
	cfg, err := loadConfig(root)
	if err != nil {
		return outputError("check", err)
	}

	dir := rulesDir(root, cfg)
	engine, err := schemals.New("", dir, engineOptions(cfg, dir)...)
	if err != nil {
		return outputError("check", fmt.Errorf("creating engine: %w", err))
	}
	defer engine.Close()

	paths, err := expandPaths(args)
	if err != nil {
		return outputError("check", err)
	}
	analyzeErr := engine.AnalyzeFiles(cmd.Context(), paths)

	var results []CLIFileDiagnostics
	failed := false
	for _, fileURI := range engine.Documents() {
		diags := engine.Diagnostics(fileURI)
		if diag.HasErrors(diags) {
			failed = true
		}
		results = append(results, fileDiagnosticsToCLI(fileURI, diags))
	}

	if err := outputResult(CLIResult{Command: "check", Results: results}); err != nil {
		return err
	}
	if analyzeErr != nil {
		return outputError("check", analyzeErr)
	}
	if failed {
		errorHandled = true
		return fmt.Errorf("errors found")
	}
	return nil
}

var flagForce bool

var indexCmd = &cobra.Command{
	Use:   "index [path]",
	Short: "Index a schema workspace",
	Long:  "Analyses every schema file under path and writes symbols, inheritance edges and diagnostics to the SQLite database.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runIndex,
}

func init() {
	indexCmd.Flags().BoolVar(&flagForce, "force", false, "delete database and reindex from scratch")
}

func runIndex(cmd *cobra.Command, args []string) error {
	start := time.Now()

	targetDir, err := resolveTargetDir(args)
	if err != nil {
		return err
	}

	repoRoot := findRepoRoot(targetDir)
	cfg, err := loadConfig(repoRoot)
	if err != nil {
		return err
	}
	dbPath := resolveDBPath(repoRoot, cfg)

	dbDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dbDir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dbDir, err)
	}

	if flagForce {
		if err := os.Remove(dbPath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing database for --force: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Cleared database: %s\n", dbPath)
	}

	dir := rulesDir(repoRoot, cfg)
	engine, err := schemals.New(dbPath, dir, engineOptions(cfg, dir)...)
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}
	defer engine.Close()
	if engine.RulesChanged() {
		fmt.Fprintln(os.Stderr, "Rules changed since the last index")
	}

	files, err := collectSchemaFiles(targetDir)
	if err != nil {
		return err
	}
	if err := engine.AnalyzeFiles(cmd.Context(), files); err != nil {
		return fmt.Errorf("indexing: %w", err)
	}

	stats := engine.Stats()
	fmt.Fprintf(os.Stderr, "Indexed %d file(s) in %s in %s (%d definitions)\n",
		len(files), targetDir, time.Since(start).Round(time.Millisecond), stats.Definitions)
	fmt.Fprintf(os.Stderr, "Database: %s\n", dbPath)
	return nil
}

// loadConfig reads --config when given, otherwise .schemals.yaml from
// root. --log-level overrides the configured level.
func loadConfig(root string) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if flagConfig != "" {
		cfg, err = config.LoadFile(flagConfig)
	} else {
		cfg, err = config.Load(root)
	}
	if err != nil {
		return nil, err
	}
	if flagLogLevel != "" {
		cfg.Logging.Level = flagLogLevel
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	return logging.New(os.Stderr, logging.LevelFromString(cfg.Logging.Level), logging.Format(cfg.Logging.Format))
}

// engineOptions builds the Engine options from cfg. Without a rules
// directory the built-in rules run.
func engineOptions(cfg *config.Config, dir string) []schemals.Option {
	opts := []schemals.Option{
		schemals.WithLogger(newLogger(cfg)),
		schemals.WithAnalysisConfig(cfg.Analysis),
	}
	if dir == "" {
		opts = append(opts, schemals.WithRulesFS(rules.FS))
	}
	return opts
}

// rulesDir returns the configured rules directory when it exists.
func rulesDir(root string, cfg *config.Config) string {
	dir := config.ResolvePath(root, cfg.Rules.Dir)
	if dir == "" {
		return ""
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return ""
	}
	return dir
}

// resolveTargetDir returns the absolute path of the directory to index.
func resolveTargetDir(args []string) (string, error) {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving path %q: %w", dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("directory not found: %s", abs)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("not a directory: %s", abs)
	}
	return abs, nil
}

// findRepoRoot walks up from startDir looking for a .git directory or a
// .schemals.yaml file. Returns startDir if neither is found.
func findRepoRoot(startDir string) string {
	dir := startDir
	for {
		if info, err := os.Stat(filepath.Join(dir, ".git")); err == nil && info.IsDir() {
			return dir
		}
		if _, err := os.Stat(filepath.Join(dir, config.FileName)); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return startDir
		}
		dir = parent
	}
}

// resolveDBPath returns the database path from the --db flag or the
// configured store path.
func resolveDBPath(repoRoot string, cfg *config.Config) string {
	if flagDB != "" {
		return config.ResolvePath(repoRoot, flagDB)
	}
	return config.ResolvePath(repoRoot, cfg.Store.Path)
}

// collectSchemaFiles returns every schema file under dir in lexical order,
// skipping hidden directories.
func collectSchemaFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) == schemaExt {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", dir, err)
	}
	sort.Strings(files)
	return files, nil
}

// expandPaths replaces directory arguments by the schema files they
// contain.
func expandPaths(args []string) ([]string, error) {
	var out []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil || !info.IsDir() {
			out = append(out, arg)
			continue
		}
		files, err := collectSchemaFiles(arg)
		if err != nil {
			return nil, err
		}
		out = append(out, files...)
	}
	return out, nil
}
