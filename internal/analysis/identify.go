package analysis

import (
	"fmt"

	"github.com/jward/schemals/internal/diag"
	"github.com/jward/schemals/internal/parser"
	"github.com/jward/schemals/internal/tree"
)

// Identify walks a primary-language tree once, attaching definition symbols
// to declared names and queueing inherits clauses on ctx. It returns
// diagnostics for dirty nodes when ctx reports them, and an error only when
// the tree already carries symbols from an earlier pass.
func Identify(ctx *ParseContext, root *tree.Node) ([]diag.Diagnostic, error) {
	w := &identifier{ctx: ctx}
	if err := w.visit(root, nil); err != nil {
		return w.diags, fmt.Errorf("identify %s: %w", ctx.fileURI, err)
	}
	return w.diags, nil
}

type identifier struct {
	ctx    *ParseContext
	schema *tree.Symbol
	diags  []diag.Diagnostic
}

func (w *identifier) visit(n *tree.Node, scope *tree.Symbol) error {
	if w.ctx.reportDirty && n.IsLeaf() && n.IsDirty() {
		w.diags = append(w.diags, diag.Error(n.Range(), fmt.Sprintf("Syntax error near '%s'", n.Text())))
	}
	if n.Language() != tree.LanguagePrimary {
		return w.children(n, scope)
	}

	switch n.Type() {
	case parser.TypeSchema:
		sym, err := w.define(n, tree.TypeSchema, nil)
		if err != nil {
			return err
		}
		if sym != nil {
			w.schema = sym
			w.ctx.index.RegisterSchemaDocument(w.ctx.fileURI, sym.ShortIdentifier())
		}
		for _, c := range n.Children() {
			if c.IsType(parser.TypeInheritsSchema) {
				if err := w.inheritsSchema(c); err != nil {
					return err
				}
			}
		}
		return w.children(n, sym)

	case parser.TypeDocument:
		return w.declaration(n, tree.TypeDocument, w.schema, tree.TypeDocument)
	case parser.TypeStruct:
		return w.declaration(n, tree.TypeStruct, scope, tree.TypeStruct)
	case parser.TypeRankProfile:
		return w.declaration(n, tree.TypeRankProfile, w.schema, tree.TypeRankProfile)
	case parser.TypeFunction:
		return w.declaration(n, tree.TypeFunction, scope, tree.TypeUnknown)
	case parser.TypeField:
		return w.declaration(n, tree.TypeField, scope, tree.TypeUnknown)
	case parser.TypeFieldset:
		return w.declaration(n, tree.TypeFieldset, scope, tree.TypeUnknown)
	case parser.TypeDocumentSummary:
		return w.declaration(n, tree.TypeDocumentSummary, scope, tree.TypeUnknown)
	}
	return w.children(n, scope)
}

func (w *identifier) children(n *tree.Node, scope *tree.Symbol) error {
	for _, c := range n.Children() {
		if err := w.visit(c, scope); err != nil {
			return err
		}
	}
	return nil
}

// declaration defines the name of n and, when inherited is not
// TypeUnknown, queues its inherits clause. Children are visited with the
// new symbol as scope.
func (w *identifier) declaration(n *tree.Node, typ tree.SymbolType, scope *tree.Symbol, inherited tree.SymbolType) error {
	sym, err := w.define(n, typ, scope)
	if err != nil {
		return err
	}
	if inherited != tree.TypeUnknown {
		for _, c := range n.Children() {
			if !c.IsType(parser.TypeInherits) {
				continue
			}
			for _, id := range identifiers(c) {
				if _, err := id.AttachSymbol(inherited, w.ctx.fileURI, nil, ""); err != nil {
					return err
				}
				w.ctx.AddUnresolvedInheritanceNode(id)
			}
		}
	}
	if sym == nil {
		sym = scope
	}
	return w.children(n, sym)
}

// define attaches a definition symbol to the name of declaration n. A
// declaration whose name is missing gets no symbol.
func (w *identifier) define(n *tree.Node, typ tree.SymbolType, scope *tree.Symbol) (*tree.Symbol, error) {
	name := nameOf(n)
	if name == nil {
		return nil, nil
	}
	sym, err := name.AttachSymbol(typ, w.ctx.fileURI, scope, "")
	if err != nil {
		return nil, err
	}
	sym.SetStatus(tree.StatusDefinition)
	w.ctx.index.InsertSymbolDefinition(sym)
	return sym, nil
}

func (w *identifier) inheritsSchema(n *tree.Node) error {
	ids := identifiers(n)
	if len(ids) == 0 {
		return nil
	}
	if _, err := ids[0].AttachSymbol(tree.TypeSchema, w.ctx.fileURI, nil, ""); err != nil {
		return err
	}
	w.ctx.SetInheritsSchemaNode(ids[0])
	return nil
}

// nameOf returns the identifier child naming declaration n.
func nameOf(n *tree.Node) *tree.Node {
	for _, c := range n.Children() {
		if c.IsType(parser.TypeIdentifier) {
			if usable(c) {
				return c
			}
			return nil
		}
	}
	return nil
}

// identifiers returns the usable identifier children of an inherits clause.
func identifiers(n *tree.Node) []*tree.Node {
	var out []*tree.Node
	for _, c := range n.Children() {
		if c.IsType(parser.TypeIdentifier) && usable(c) {
			out = append(out, c)
		}
	}
	return out
}

func usable(id *tree.Node) bool {
	return !id.IsDirty() && id.Text() != ""
}
