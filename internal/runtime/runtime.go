package runtime

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/risor-io/risor"
	"github.com/risor-io/risor/importer"
	"github.com/risor-io/risor/object"

	"github.com/jward/schemals/internal/diag"
	"github.com/jward/schemals/internal/index"
	"github.com/jward/schemals/internal/tree"
)

// RuleExt is the file extension of rule scripts.
const RuleExt = ".risor"

// Runtime embeds a Risor VM and runs workspace rule scripts against an
// analysed schema file. Rules read the file's symbols and inheritance
// through host functions and call report to add diagnostics.
type Runtime struct {
	rulesDir string
	fsys     fs.FS
	logger   *slog.Logger
}

// RuntimeOption configures a Runtime.
type RuntimeOption func(*Runtime)

// WithRuntimeFS configures the Runtime to load rules from an fs.FS
// instead of from disk. Also configures the Risor importer to use
// FSImporter for import statement resolution.
func WithRuntimeFS(fsys fs.FS) RuntimeOption {
	return func(r *Runtime) {
		r.fsys = fsys
	}
}

// WithRuntimeLogger sets the logger behind the log global.
func WithRuntimeLogger(l *slog.Logger) RuntimeOption {
	return func(r *Runtime) {
		r.logger = l
	}
}

// NewRuntime creates a Runtime that loads rules from rulesDir.
func NewRuntime(rulesDir string, opts ...RuntimeOption) *Runtime {
	r := &Runtime{
		rulesDir: rulesDir,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RuleInput is the analysed file a rule runs against.
type RuleInput struct {
	FileURI string
	Root    *tree.Node
	Index   *index.SchemaIndex
}

// Rules lists the rule scripts at the top level of the rules source,
// sorted by name. Without a source there are no rules.
func (r *Runtime) Rules() ([]string, error) {
	var names []string
	switch {
	case r.fsys != nil:
		matches, err := fs.Glob(r.fsys, "*"+RuleExt)
		if err != nil {
			return nil, fmt.Errorf("runtime: listing rules: %w", err)
		}
		names = matches
	case r.rulesDir != "":
		entries, err := os.ReadDir(r.rulesDir)
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("runtime: listing rules in %s: %w", r.rulesDir, err)
		}
		for _, e := range entries {
			if !e.IsDir() && strings.HasSuffix(e.Name(), RuleExt) {
				names = append(names, e.Name())
			}
		}
	}
	sort.Strings(names)
	return names, nil
}

// RunRules runs every rule against in. A failing rule does not stop the
// others; its error is joined into the returned error.
func (r *Runtime) RunRules(ctx context.Context, in *RuleInput) ([]diag.Diagnostic, error) {
	rules, err := r.Rules()
	if err != nil {
		return nil, err
	}
	var diags []diag.Diagnostic
	var errs []error
	for _, rule := range rules {
		if err := ctx.Err(); err != nil {
			return diags, err
		}
		got, err := r.RunScript(ctx, rule, in)
		diags = append(diags, got...)
		if err != nil {
			errs = append(errs, err)
		}
	}
	return diags, errors.Join(errs...)
}

// RunScript loads and executes one rule script.
func (r *Runtime) RunScript(ctx context.Context, scriptPath string, in *RuleInput) ([]diag.Diagnostic, error) {
	src, err := r.LoadScript(scriptPath)
	if err != nil {
		return nil, err
	}
	return r.eval(ctx, src, scriptPath, in, nil)
}

// RunSource executes Risor source code directly with all standard globals
// plus any extra globals. in may be nil, in which case only the node
// helpers and log are available.
func (r *Runtime) RunSource(ctx context.Context, source string, in *RuleInput, extraGlobals map[string]any) ([]diag.Diagnostic, error) {
	return r.eval(ctx, source, "<inline>", in, extraGlobals)
}

func (r *Runtime) eval(ctx context.Context, source, label string, in *RuleInput, extraGlobals map[string]any) ([]diag.Diagnostic, error) {
	sink := &reportSink{}
	globals := r.buildGlobals(in, sink, label)
	for k, v := range extraGlobals {
		globals[k] = v
	}

	var opts []risor.Option
	for name, val := range globals {
		opts = append(opts, risor.WithGlobal(name, val))
	}

	// Imported modules compile against the same globals as the rule,
	// Risor's builtins included.
	if imp := r.buildImporter(risor.NewConfig(opts...).GlobalNames()); imp != nil {
		opts = append(opts, risor.WithImporter(imp))
	}

	if _, err := risor.Eval(ctx, source, opts...); err != nil {
		return sink.diags, fmt.Errorf("runtime: rule %s: %w", label, err)
	}
	return sink.diags, nil
}

// buildImporter returns a Risor importer configured for the Runtime's rule source.
// Returns nil if neither fs.FS nor rulesDir is configured.
func (r *Runtime) buildImporter(globalNames []string) importer.Importer {
	if r.fsys != nil {
		return importer.NewFSImporter(importer.FSImporterOptions{
			GlobalNames: globalNames,
			SourceFS:    r.fsys,
			Extensions:  []string{RuleExt},
		})
	}
	if r.rulesDir != "" {
		return importer.NewLocalImporter(importer.LocalImporterOptions{
			GlobalNames: globalNames,
			SourceDir:   r.rulesDir,
			Extensions:  []string{RuleExt},
		})
	}
	return nil
}

// LoadScript reads a rule file and returns its source code.
// When an fs.FS is configured, uses fs.ReadFile on that filesystem.
// Otherwise, uses os.ReadFile with rulesDir as the base directory.
func (r *Runtime) LoadScript(path string) (string, error) {
	if r.fsys != nil {
		fsPath := strings.TrimPrefix(filepath.ToSlash(path), "/")
		data, err := fs.ReadFile(r.fsys, fsPath)
		if err != nil {
			return "", fmt.Errorf("runtime: loading rule %s from fs: %w", fsPath, err)
		}
		return string(data), nil
	}

	fullPath := path
	if !filepath.IsAbs(path) {
		fullPath = filepath.Join(r.rulesDir, path)
	}

	data, err := os.ReadFile(fullPath)
	if err != nil {
		return "", fmt.Errorf("runtime: loading rule %s: %w", fullPath, err)
	}
	return string(data), nil
}

// buildGlobals constructs the full set of globals exposed to rule scripts.
func (r *Runtime) buildGlobals(in *RuleInput, sink *reportSink, label string) map[string]any {
	globals := map[string]any{
		"node_text":     makeNodeTextFn(),
		"node_type":     makeNodeTypeFn(),
		"node_range":    makeNodeRangeFn(),
		"node_children": makeNodeChildrenFn(),
		"node_child":    makeNodeChildFn(),
		"query":         makeQueryFn(),
		"log":           mustProxy(&logObject{logger: r.logger.With("rule", label)}),
	}

	if in != nil && in.Index != nil {
		globals["file_uri"] = in.FileURI
		schemaName := ""
		if doc, ok := in.Index.SchemaDocument(in.FileURI); ok {
			schemaName = doc.Name
		}
		globals["schema_name"] = schemaName
		globals["definitions"] = makeDefinitionsFn(in)
		globals["references"] = makeReferencesFn(in)
		globals["parents"] = makeParentsFn(in)
		globals["embedded"] = makeEmbeddedFn(in)
		globals["report"] = makeReportFn(sink)
	}
	return globals
}

func mustProxy(v any) object.Object {
	p, err := object.NewProxy(v)
	if err != nil {
		panic(fmt.Sprintf("runtime: proxy error: %v", err))
	}
	return p
}
