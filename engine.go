package schemals

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/uuid"
	sitter "github.com/smacker/go-tree-sitter"
	"go.lsp.dev/uri"

	"github.com/jward/schemals/internal/analysis"
	"github.com/jward/schemals/internal/config"
	"github.com/jward/schemals/internal/diag"
	"github.com/jward/schemals/internal/index"
	"github.com/jward/schemals/internal/logging"
	"github.com/jward/schemals/internal/runtime"
	"github.com/jward/schemals/internal/store"
	"github.com/jward/schemals/internal/tree"
)

// rulesHashKey is the metadata key of the rules hash.
const rulesHashKey = "rules_hash"

// Engine is one workspace session: the documents, the symbol index built
// from them, and the optional SQLite snapshot and rule runtime. All
// updates are serialised behind one mutex.
type Engine struct {
	mu sync.Mutex

	index   *index.SchemaIndex
	store   *store.Store     // nil without a database
	runtime *runtime.Runtime // nil without rules
	logger  *slog.Logger

	rulesDir string
	rulesFS  fs.FS

	documents map[string]*SchemaDocument

	reportDirty       bool
	resolveDependents bool
	workers           int

	subLanguages map[tree.Language]*sitter.Language
	// grammarNames are resolved into subLanguages by New.
	grammarNames map[tree.Language]string
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger the Engine and its passes write to.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithRulesFS configures the Engine to load Risor rules from the given
// filesystem instead of from the rulesDir path on disk. This enables
// embedding rules via go:embed.
func WithRulesFS(fsys fs.FS) Option {
	return func(e *Engine) {
		e.rulesFS = fsys
	}
}

// WithReportDirty reports every dirty leaf as a syntax error in addition
// to the parser's own errors.
func WithReportDirty(report bool) Option {
	return func(e *Engine) {
		e.reportDirty = report
	}
}

// WithResolveDependents controls whether files depending on an edited
// file are resolved again when its signature changes (default true).
// Files holding edges into the edited file's definitions are always
// resolved again, since resetting the file cuts those edges.
func WithResolveDependents(resolve bool) Option {
	return func(e *Engine) {
		e.resolveDependents = resolve
	}
}

// WithWorkers bounds the parse worker pool. Zero means one per CPU.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		e.workers = n
	}
}

// WithSubLanguage parses embedded regions of language with grammar.
// language must be tree.LanguageRankExpression or tree.LanguageIndexing.
func WithSubLanguage(language tree.Language, grammar *sitter.Language) Option {
	return func(e *Engine) {
		e.subLanguages[language] = grammar
	}
}

// WithAnalysisConfig applies the analysis section of a configuration.
// Grammar names are looked up when the Engine is created.
func WithAnalysisConfig(cfg config.AnalysisConfig) Option {
	return func(e *Engine) {
		e.reportDirty = cfg.ReportDirty
		e.resolveDependents = cfg.ResolveDependents
		e.workers = cfg.Workers
		if cfg.ExpressionGrammar != "" {
			e.grammarNames[tree.LanguageRankExpression] = cfg.ExpressionGrammar
		}
		if cfg.IndexingGrammar != "" {
			e.grammarNames[tree.LanguageIndexing] = cfg.IndexingGrammar
		}
	}
}

// New creates an Engine. dbPath locates the SQLite snapshot and may be
// empty to keep the workspace in memory only. rulesDir locates Risor rule
// scripts and may be empty when WithRulesFS is used or no rules are
// wanted.
func New(dbPath string, rulesDir string, opts ...Option) (*Engine, error) {
	e := &Engine{
		rulesDir:          rulesDir,
		logger:            logging.Discard(),
		documents:         make(map[string]*SchemaDocument),
		resolveDependents: true,
		subLanguages:      make(map[tree.Language]*sitter.Language),
		grammarNames:      make(map[tree.Language]string),
	}
	for _, opt := range opts {
		opt(e)
	}

	for lang, name := range e.grammarNames {
		grammar, ok := runtime.GrammarByName(name)
		if !ok {
			return nil, fmt.Errorf("schemals: unknown %s grammar %q", lang, name)
		}
		e.subLanguages[lang] = grammar
	}

	e.index = index.New(logging.Component(e.logger, "index"))

	if e.rulesDir != "" || e.rulesFS != nil {
		rtOpts := []runtime.RuntimeOption{runtime.WithRuntimeLogger(logging.Component(e.logger, "rules"))}
		if e.rulesFS != nil {
			rtOpts = append(rtOpts, runtime.WithRuntimeFS(e.rulesFS))
		}
		e.runtime = runtime.NewRuntime(e.rulesDir, rtOpts...)
	}

	if dbPath != "" {
		s, err := store.NewStore(dbPath)
		if err != nil {
			return nil, fmt.Errorf("schemals: create store: %w", err)
		}
		if err := s.Migrate(); err != nil {
			s.Close()
			return nil, fmt.Errorf("schemals: migrate: %w", err)
		}
		e.store = s
	}

	return e, nil
}

// Close releases the Engine's database resources.
func (e *Engine) Close() error {
	if e.store == nil {
		return nil
	}
	return e.store.Close()
}

// Store returns the underlying Store, or nil without a database.
func (e *Engine) Store() *store.Store {
	return e.store
}

// Query returns a new QueryBuilder over the workspace.
func (e *Engine) Query() *QueryBuilder {
	return &QueryBuilder{engine: e}
}

// Stats summarises the symbol index.
func (e *Engine) Stats() index.Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.index.Stats()
}

// rulesHash computes a SHA-256 hash over every rule script, by name then
// content. Returns "" without rules.
func (e *Engine) rulesHash() string {
	if e.runtime == nil {
		return ""
	}
	paths, err := e.runtime.Rules()
	if err != nil {
		return ""
	}
	h := sha256.New()
	for _, p := range paths {
		src, err := e.runtime.LoadScript(p)
		if err != nil {
			continue
		}
		h.Write([]byte(p))
		h.Write([]byte(src))
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

// RulesChanged reports whether the rule scripts differ from those that
// produced the stored snapshot. Returns true if the database has no
// stored hash (first run) or if the hash doesn't match, and false without
// a database.
func (e *Engine) RulesChanged() bool {
	if e.store == nil {
		return false
	}
	stored, err := e.store.Metadata(rulesHashKey)
	if err != nil || stored == "" {
		return true
	}
	return e.rulesHash() != stored
}

// --- Documents ---

// OpenDocument adds or replaces a document, marks it open and analyses it.
func (e *Engine) OpenDocument(ctx context.Context, fileURI, content string, version int32) (*SchemaDocument, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	doc := e.setContent(fileURI, content, version)
	doc.open = true
	return doc, e.refresh(ctx, []*SchemaDocument{doc})
}

// UpdateDocument replaces the content of a document, adding it if it is
// not yet part of the workspace, and analyses it. The newest update
// always wins: the tree and inheritance queue are rebuilt from scratch.
func (e *Engine) UpdateDocument(ctx context.Context, fileURI, content string, version int32) (*SchemaDocument, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	doc := e.setContent(fileURI, content, version)
	return doc, e.refresh(ctx, []*SchemaDocument{doc})
}

// CloseDocument marks a document closed. It stays part of the workspace.
func (e *Engine) CloseDocument(fileURI string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if doc, ok := e.documents[fileURI]; ok {
		doc.open = false
	}
}

// RemoveDocument drops a document from the workspace and resolves the
// files that depended on it again.
func (e *Engine) RemoveDocument(ctx context.Context, fileURI string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.documents[fileURI]; !ok {
		return nil
	}

	delete(e.documents, fileURI)
	affected := e.knownDocuments(e.index.DependentFiles(fileURI))
	for _, d := range e.knownDocuments(e.unresolvedDocuments()) {
		affected = appendUnique(affected, d)
	}
	e.index.Reset(fileURI)

	if e.store != nil {
		f, err := e.store.FileByURI(fileURI)
		if err != nil {
			return fmt.Errorf("remove %s: lookup file: %w", fileURI, err)
		}
		if f != nil {
			if err := e.store.DeleteFile(f.ID); err != nil {
				return fmt.Errorf("remove %s: %w", fileURI, err)
			}
		}
	}

	if len(affected) == 0 {
		return nil
	}
	_, err := e.analyse(ctx, e.logger.With("run", uuid.New().String()), e.closure(affected))
	return err
}

// Document returns the document for fileURI.
func (e *Engine) Document(fileURI string) (*SchemaDocument, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	doc, ok := e.documents[fileURI]
	return doc, ok
}

// Documents returns the URIs of all documents, sorted.
func (e *Engine) Documents() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	uris := make([]string, 0, len(e.documents))
	for u := range e.documents {
		uris = append(uris, u)
	}
	sort.Strings(uris)
	return uris
}

// Diagnostics returns the diagnostics of the last analysis of fileURI.
func (e *Engine) Diagnostics(fileURI string) []diag.Diagnostic {
	e.mu.Lock()
	defer e.mu.Unlock()
	doc, ok := e.documents[fileURI]
	if !ok {
		return nil
	}
	return append([]diag.Diagnostic(nil), doc.diagnostics...)
}

// AnalyzeFiles reads the given files from disk and analyses them as one
// batch, so their order does not matter. Files that cannot be read are
// reported and skipped; processing continues.
func (e *Engine) AnalyzeFiles(ctx context.Context, paths []string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var errs []error
	var docs []*SchemaDocument
	for _, path := range paths {
		abs, err := filepath.Abs(path)
		if err != nil {
			errs = append(errs, fmt.Errorf("analyze %s: %w", path, err))
			continue
		}
		content, err := os.ReadFile(abs)
		if err != nil {
			errs = append(errs, fmt.Errorf("analyze %s: read file: %w", path, err))
			continue
		}
		fileURI := string(uri.File(abs))
		version := int32(0)
		if prev, ok := e.documents[fileURI]; ok {
			version = prev.version
		}
		docs = append(docs, e.setContent(fileURI, string(content), version))
	}

	if len(docs) > 0 {
		if err := e.refresh(ctx, docs); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("analysis had %d error(s): %w", len(errs), errs[0])
	}
	return nil
}

func (e *Engine) setContent(fileURI, content string, version int32) *SchemaDocument {
	doc, ok := e.documents[fileURI]
	if !ok {
		doc = &SchemaDocument{engine: e, fileURI: fileURI}
		e.documents[fileURI] = doc
	}
	doc.content = content
	doc.version = version
	return doc
}

// --- Analysis ---

// refresh analyses docs together with the files whose edges point into
// them, then the files affected by any signature change.
func (e *Engine) refresh(ctx context.Context, docs []*SchemaDocument) error {
	log := e.logger.With("run", uuid.New().String())
	batch := e.closure(docs)
	changed, err := e.analyse(ctx, log, batch)
	if err != nil || !e.resolveDependents || len(changed) == 0 {
		return err
	}

	done := make(map[string]bool, len(batch))
	for _, d := range batch {
		done[d.fileURI] = true
	}
	var next []*SchemaDocument
	for _, d := range changed {
		for _, dep := range e.knownDocuments(e.index.DependentFiles(d.fileURI)) {
			if !done[dep.fileURI] {
				next = appendUnique(next, dep)
			}
		}
	}
	for _, dep := range e.knownDocuments(e.unresolvedDocuments()) {
		if !done[dep.fileURI] {
			next = appendUnique(next, dep)
		}
	}
	if len(next) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	log.Debug("resolving dependents", "changed", len(changed), "dependents", len(next))
	_, err = e.analyse(ctx, log, e.closure(next))
	return err
}

// closure extends docs with every known document holding struct or
// rank-profile edges into one of them, transitively.
func (e *Engine) closure(docs []*SchemaDocument) []*SchemaDocument {
	out := append([]*SchemaDocument(nil), docs...)
	for i := 0; i < len(out); i++ {
		for _, dep := range e.knownDocuments(e.index.SymbolDependentFiles(out[i].fileURI)) {
			out = appendUnique(out, dep)
		}
	}
	return out
}

// analyse runs every pass over docs as one batch and returns the
// documents whose signature changed.
//
// Parsing runs in parallel and checks ctx; once the index has been reset
// the remaining passes run to completion.
func (e *Engine) analyse(ctx context.Context, log *slog.Logger, docs []*SchemaDocument) ([]*SchemaDocument, error) {
	parsed, err := e.parseParallel(ctx, docs)
	if err != nil {
		return nil, err
	}

	for _, doc := range docs {
		e.index.Reset(doc.fileURI)
	}

	var errs []error
	diags := make(map[*SchemaDocument][]diag.Diagnostic, len(docs))
	var identified []*SchemaDocument
	for _, res := range parsed {
		doc := res.doc
		pc := analysis.NewParseContext(doc.fileURI, e.index, logging.Component(log, "analysis"))
		pc.SetReportDirty(e.reportDirty)
		doc.root = res.root
		doc.ctx = pc

		found, err := analysis.Identify(pc, res.root)
		diags[doc] = append(res.diags, found...)
		if err != nil {
			log.Error("identify failed", "file", doc.fileURI, "error", err)
			errs = append(errs, err)
			continue
		}
		identified = append(identified, doc)
	}

	for _, doc := range identified {
		diags[doc] = append(diags[doc], analysis.ResolveDocumentInheritances(doc.ctx)...)
	}
	for _, doc := range e.documentOrder(identified) {
		diags[doc] = append(diags[doc], analysis.ResolveInheritances(doc.ctx)...)
	}
	for _, doc := range identified {
		refs := analysis.ResolveReferences(doc.ctx)
		doc.unresolved = len(refs) > 0
		diags[doc] = append(diags[doc], refs...)
	}

	if e.runtime != nil {
		for _, doc := range identified {
			found, err := e.runtime.RunRules(ctx, &runtime.RuleInput{
				FileURI: doc.fileURI,
				Root:    doc.root,
				Index:   e.index,
			})
			diags[doc] = append(diags[doc], found...)
			if err != nil {
				log.Warn("rules failed", "file", doc.fileURI, "error", err)
				errs = append(errs, fmt.Errorf("rules %s: %w", doc.fileURI, err))
			}
		}
	}

	var changed []*SchemaDocument
	snaps := make([]*snapshot, 0, len(docs))
	for _, doc := range docs {
		doc.diagnostics = diags[doc]
		snap := e.takeSnapshot(doc)
		if snap.signature != doc.signature {
			changed = append(changed, doc)
		}
		doc.signature = snap.signature
		snaps = append(snaps, snap)
	}
	log.Debug("analysed", "files", len(docs), "changed", len(changed))

	if e.store != nil {
		if err := e.persistParallel(snaps); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return changed, fmt.Errorf("analysis had %d error(s): %w", len(errs), errs[0])
	}
	return changed, nil
}

// documentOrder sorts docs so that every document comes after the
// documents it inherits, keeping the batch order otherwise. Struct and
// rank-profile lookups then see complete ancestor graphs.
func (e *Engine) documentOrder(docs []*SchemaDocument) []*SchemaDocument {
	byURI := make(map[string]*SchemaDocument, len(docs))
	for _, d := range docs {
		byURI[d.fileURI] = d
	}
	visited := make(map[string]bool, len(docs))
	out := make([]*SchemaDocument, 0, len(docs))
	var visit func(fileURI string)
	visit = func(fileURI string) {
		if visited[fileURI] {
			return
		}
		visited[fileURI] = true
		for _, p := range e.index.DocumentParents(fileURI) {
			visit(p)
		}
		if d, ok := byURI[fileURI]; ok {
			out = append(out, d)
		}
	}
	for _, d := range docs {
		visit(d.fileURI)
	}
	return out
}

func (e *Engine) knownDocuments(uris []string) []*SchemaDocument {
	var out []*SchemaDocument
	for _, u := range uris {
		if d, ok := e.documents[u]; ok {
			out = append(out, d)
		}
	}
	return out
}

func (e *Engine) unresolvedDocuments() []string {
	var uris []string
	for u, d := range e.documents {
		if d.unresolved {
			uris = append(uris, u)
		}
	}
	sort.Strings(uris)
	return uris
}

func appendUnique(docs []*SchemaDocument, doc *SchemaDocument) []*SchemaDocument {
	for _, d := range docs {
		if d == doc {
			return docs
		}
	}
	return append(docs, doc)
}
