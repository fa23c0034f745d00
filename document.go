package schemals

import (
	"context"

	"github.com/jward/schemals/internal/analysis"
	"github.com/jward/schemals/internal/diag"
	"github.com/jward/schemals/internal/tree"
)

// DocumentManager is the per-file contract the editor-facing layer talks
// to. Content updates trigger a full parse and resolve of the file.
type DocumentManager interface {
	UpdateFileContent(ctx context.Context, content string) error
	UpdateFileContentVersion(ctx context.Context, content string, version int32) error
	ReparseContent(ctx context.Context) error
	SetIsOpen(open bool)
	IsOpen() bool
	RootNode() *tree.Node
	FileURI() string
	CurrentContent() string
	Version() int32
}

var _ DocumentManager = (*SchemaDocument)(nil)

// SchemaDocument is one schema file of the workspace. Its tree and
// diagnostics are replaced wholesale on every analysis.
type SchemaDocument struct {
	engine *Engine

	fileURI string
	content string
	version int32
	open    bool

	root        *tree.Node
	ctx         *analysis.ParseContext
	diagnostics []diag.Diagnostic

	// signature is the hash of what other files can observe of this one.
	signature string
	// unresolved is set when the last analysis left inherits targets
	// undefined; such files are retried when another file's signature
	// changes.
	unresolved bool
}

// UpdateFileContent replaces the content and analyses the file again.
func (d *SchemaDocument) UpdateFileContent(ctx context.Context, content string) error {
	d.engine.mu.Lock()
	v := d.version
	d.engine.mu.Unlock()
	return d.UpdateFileContentVersion(ctx, content, v)
}

// UpdateFileContentVersion replaces the content and version and analyses
// the file again.
func (d *SchemaDocument) UpdateFileContentVersion(ctx context.Context, content string, version int32) error {
	_, err := d.engine.UpdateDocument(ctx, d.fileURI, content, version)
	return err
}

// ReparseContent analyses the current content again.
func (d *SchemaDocument) ReparseContent(ctx context.Context) error {
	d.engine.mu.Lock()
	defer d.engine.mu.Unlock()
	return d.engine.refresh(ctx, []*SchemaDocument{d})
}

func (d *SchemaDocument) SetIsOpen(open bool) {
	d.engine.mu.Lock()
	defer d.engine.mu.Unlock()
	d.open = open
}

func (d *SchemaDocument) IsOpen() bool {
	d.engine.mu.Lock()
	defer d.engine.mu.Unlock()
	return d.open
}

// RootNode returns the unified syntax tree of the last analysis.
func (d *SchemaDocument) RootNode() *tree.Node {
	d.engine.mu.Lock()
	defer d.engine.mu.Unlock()
	return d.root
}

func (d *SchemaDocument) FileURI() string { return d.fileURI }

func (d *SchemaDocument) CurrentContent() string {
	d.engine.mu.Lock()
	defer d.engine.mu.Unlock()
	return d.content
}

func (d *SchemaDocument) Version() int32 {
	d.engine.mu.Lock()
	defer d.engine.mu.Unlock()
	return d.version
}

// Diagnostics returns the diagnostics of the last analysis.
func (d *SchemaDocument) Diagnostics() []diag.Diagnostic {
	d.engine.mu.Lock()
	defer d.engine.mu.Unlock()
	return append([]diag.Diagnostic(nil), d.diagnostics...)
}
