package analysis

import (
	"github.com/jward/schemals/internal/diag"
	"github.com/jward/schemals/internal/tree"
)

// ResolveReferences runs after ResolveInheritances. Every inherits
// identifier still unresolved is looked up again; found targets become
// references and missing ones are reported. Identifiers the inheritance
// pass already settled are left as they are.
func ResolveReferences(ctx *ParseContext) []diag.Diagnostic {
	var diags []diag.Diagnostic
	for _, n := range ctx.unresolvedReferences {
		sym, ok := n.Symbol()
		if !ok || sym.Status() != tree.StatusUnresolved {
			continue
		}
		// Left unresolved when the inheriting profile has no name.
		if sym.Type() == tree.TypeRankProfile && n.Text() == builtinRankProfile {
			sym.SetStatus(tree.StatusBuiltinReference)
			continue
		}
		if !referenceExists(ctx, sym.Type(), n.Text()) {
			diags = append(diags, diag.Error(n.Range(), "Undefined symbol "+n.Text()))
			continue
		}
		sym.SetStatus(tree.StatusReference)
		ctx.index.InsertSymbolReference(ctx.fileURI, n)
	}
	ctx.unresolvedReferences = nil
	return diags
}

func referenceExists(ctx *ParseContext, typ tree.SymbolType, name string) bool {
	switch typ {
	case tree.TypeDocument, tree.TypeSchema:
		_, ok := ctx.index.FindSchemaDocumentWithName(name)
		return ok
	case tree.TypeStruct:
		_, ok := ctx.index.FindSymbol(ctx.fileURI, tree.TypeStruct, name)
		return ok
	case tree.TypeRankProfile:
		return len(ctx.index.FindAllSymbolsWithSchemaScope(ctx.fileURI, tree.TypeRankProfile, name)) > 0
	default:
		return len(ctx.index.FindAllSymbolsWithSchemaScope(ctx.fileURI, typ, name)) > 0
	}
}
