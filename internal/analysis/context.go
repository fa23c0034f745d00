// Package analysis implements the semantic passes run over one file's
// unified syntax tree: symbol identification, inheritance resolution and
// reference resolution. The passes share a ParseContext and mutate the
// workspace index; user-facing problems are returned as diagnostics.
package analysis

import (
	"log/slog"
	"path"
	"path/filepath"
	"strings"

	"go.lsp.dev/uri"

	"github.com/jward/schemals/internal/index"
	"github.com/jward/schemals/internal/tree"
)

// ParseContext carries the per-file state of one parse/resolve cycle.
type ParseContext struct {
	fileURI string
	index   *index.SchemaIndex
	logger  *slog.Logger

	reportDirty bool

	unresolvedInheritance []*tree.Node
	unresolvedReferences  []*tree.Node
	inheritsSchema        *tree.Node

	// documentParents holds the parent documents registered by the
	// document stage of inheritance resolution.
	documentParents map[string]bool
}

// NewParseContext creates the context for analysing fileURI against idx. A
// nil logger discards output.
func NewParseContext(fileURI string, idx *index.SchemaIndex, logger *slog.Logger) *ParseContext {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &ParseContext{
		fileURI: fileURI,
		index:   idx,
		logger:  logger.With("file", fileURI),
	}
}

func (c *ParseContext) FileURI() string { return c.fileURI }
func (c *ParseContext) Index() *index.SchemaIndex { return c.index }
func (c *ParseContext) Logger() *slog.Logger { return c.logger }

// SetReportDirty makes Identify report every dirty leaf as a syntax error.
// Useful for grammars that do not report their own errors.
func (c *ParseContext) SetReportDirty(report bool) { c.reportDirty = report }

// AddUnresolvedInheritanceNode queues an inherits identifier. The node must
// carry a symbol whose type selects the graph it belongs to.
func (c *ParseContext) AddUnresolvedInheritanceNode(n *tree.Node) {
	c.unresolvedInheritance = append(c.unresolvedInheritance, n)
	c.unresolvedReferences = append(c.unresolvedReferences, n)
}

func (c *ParseContext) UnresolvedInheritanceNodes() []*tree.Node {
	return c.unresolvedInheritance
}

func (c *ParseContext) ClearUnresolvedInheritanceNodes() {
	c.unresolvedInheritance = nil
}

// SetInheritsSchemaNode records the identifier of "schema X inherits Y".
func (c *ParseContext) SetInheritsSchemaNode(n *tree.Node) {
	c.inheritsSchema = n
	c.unresolvedReferences = append(c.unresolvedReferences, n)
}

func (c *ParseContext) InheritsSchemaNode() *tree.Node { return c.inheritsSchema }

// Reset drops all queued state so the context can be reused for a new
// parse of the same file.
func (c *ParseContext) Reset() {
	c.unresolvedInheritance = nil
	c.unresolvedReferences = nil
	c.inheritsSchema = nil
	c.documentParents = nil
}

// FileName returns the base name of a file URI, or of the raw string when
// it is not a file URI.
func FileName(fileURI string) string {
	if strings.HasPrefix(fileURI, uri.FileScheme+"://") {
		return filepath.Base(uri.URI(fileURI).Filename())
	}
	return path.Base(fileURI)
}
