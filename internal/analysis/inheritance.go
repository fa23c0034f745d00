package analysis

import (
	"fmt"
	"strings"

	"github.com/jward/schemals/internal/diag"
	"github.com/jward/schemals/internal/tree"
)

// builtinRankProfile is inherited implicitly and never enters the graph.
const builtinRankProfile = "default"

// ResolveDocumentInheritances registers the document inheritance queued on
// ctx and removes it from the queue. Resolving every file of a workspace
// this way before calling ResolveInheritances on any of them makes the
// full document scope visible to struct and rank-profile lookups.
func ResolveDocumentInheritances(ctx *ParseContext) []diag.Diagnostic {
	var diags []diag.Diagnostic
	if ctx.documentParents == nil {
		ctx.documentParents = make(map[string]bool)
	}

	var rest []*tree.Node
	for _, n := range ctx.unresolvedInheritance {
		sym, ok := n.Symbol()
		if !ok || sym.Type() != tree.TypeDocument {
			rest = append(rest, n)
			continue
		}
		if parentURI, ok := resolveDocumentInheritance(ctx, n, &diags); ok {
			ctx.documentParents[parentURI] = true
		}
	}
	ctx.unresolvedInheritance = rest
	return diags
}

// ResolveInheritances drains the inheritance queue of ctx into the index.
// Document inheritance is registered first so that struct and rank-profile
// lookups see the file's full scope. Targets that cannot be found are
// skipped; ResolveReferences reports them. The queue is empty afterwards,
// so a second call without a new parse returns nothing.
func ResolveInheritances(ctx *ParseContext) []diag.Diagnostic {
	diags := ResolveDocumentInheritances(ctx)

	for _, n := range ctx.UnresolvedInheritanceNodes() {
		sym, ok := n.Symbol()
		if !ok {
			continue
		}
		switch sym.Type() {
		case tree.TypeStruct:
			resolveStructInheritance(ctx, n, &diags)
		case tree.TypeRankProfile:
			resolveRankProfileInheritance(ctx, n, &diags)
		}
	}

	if n := ctx.InheritsSchemaNode(); n != nil {
		name := n.Text()
		if parent, ok := ctx.index.FindSchemaDocumentWithName(name); ok {
			if !ctx.documentParents[parent.FileURI] {
				diags = append(diags, diag.Error(n.Range(),
					"The schema document must explicitly inherit from "+name+" because the containing schema does so."))
				ctx.index.SetSchemaInherits(ctx.fileURI, parent.FileURI)
			}
			ctx.index.InsertSymbolReference(ctx.fileURI, n)
		}
		ctx.inheritsSchema = nil
	}

	ctx.ClearUnresolvedInheritanceNodes()
	return diags
}

func resolveDocumentInheritance(ctx *ParseContext, n *tree.Node, diags *[]diag.Diagnostic) (string, bool) {
	name := n.Text()
	parent, ok := ctx.index.FindSchemaDocumentWithName(name)
	if !ok {
		return "", false
	}
	if !ctx.index.TryRegisterDocumentInheritance(ctx.fileURI, parent.FileURI) {
		// TODO: name the full inheritance chain in the message.
		*diags = append(*diags, diag.Error(n.Range(),
			"Cannot inherit from "+name+" because "+name+" inherits from this document."))
		return "", false
	}
	n.SetSymbolStatus(tree.StatusReference)
	ctx.index.InsertSymbolReference(ctx.fileURI, n)
	return parent.FileURI, true
}

// definitionOf returns the symbol of the declaration an inherits
// identifier belongs to: the name just before its inherits clause.
func definitionOf(n *tree.Node) (*tree.Symbol, bool) {
	clause := n.Parent()
	if clause == nil {
		return nil, false
	}
	def := clause.PreviousSibling()
	if def == nil {
		return nil, false
	}
	return def.Symbol()
}

func resolveStructInheritance(ctx *ParseContext, n *tree.Node, diags *[]diag.Diagnostic) {
	child, ok := definitionOf(n)
	if !ok {
		return
	}
	parent, ok := ctx.index.FindSymbol(ctx.fileURI, tree.TypeStruct, n.Text())
	if !ok {
		return
	}

	if !ctx.index.TryRegisterStructInheritance(child, parent) {
		p := parent.ShortIdentifier()
		*diags = append(*diags, diag.Error(n.Range(),
			"Cannot inherit from "+p+" because "+p+" inherits from this struct."))
	}

	seen := make(map[string]bool)
	for _, field := range ctx.index.GetAllStructFieldSymbols(child) {
		key := strings.ToLower(field.ShortIdentifier())
		if seen[key] {
			*diags = append(*diags, diag.Error(field.Node().Range(), fmt.Sprintf(
				"struct %s cannot inherit from %s and redeclare field %s",
				child.ShortIdentifier(), parent.ShortIdentifier(), field.ShortIdentifier())))
		}
		seen[key] = true
	}
}

func resolveRankProfileInheritance(ctx *ParseContext, n *tree.Node, diags *[]diag.Diagnostic) {
	child, ok := definitionOf(n)
	if !ok || child.Status() != tree.StatusDefinition {
		return
	}

	name := n.Text()
	if name == builtinRankProfile {
		n.SetSymbolStatus(tree.StatusBuiltinReference)
		return
	}

	candidates := ctx.index.FindAllSymbolsWithSchemaScope(ctx.fileURI, tree.TypeRankProfile, name)
	if len(candidates) == 0 {
		return
	}
	if len(candidates) > 1 && candidates[0].FileURI() != ctx.fileURI {
		var note strings.Builder
		note.WriteString("\nNote:")
		for _, c := range candidates {
			note.WriteString("\nDefined in " + FileName(c.FileURI()))
		}
		*diags = append(*diags, diag.Warning(n.Range(), name+" is ambiguous in this context.").WithNote(note.String()))
	}

	// Candidates are ordered local first, so a truly ambiguous reference
	// resolves to the nearest definition.
	parent := candidates[0]
	if !ctx.index.TryRegisterRankProfileInheritance(child, parent) {
		p := parent.ShortIdentifier()
		*diags = append(*diags, diag.Error(n.Range(),
			"Cannot inherit from "+p+" because "+p+" inherits from this rank profile."))
		return
	}

	seen := make(map[string]string)
	for _, ancestor := range ctx.index.GetAllRankProfileParents(child) {
		if ancestor == child {
			continue
		}
		functions := ctx.index.GetAllRankProfileFunctions(ancestor)
		ctx.logger.Debug("inherited rank profile", "profile", ancestor.LongIdentifier(), "functions", len(functions))
		for _, fn := range functions {
			ctx.logger.Debug("inherited function", "function", fn.LongIdentifier())
			short := fn.ShortIdentifier()
			if first, dup := seen[short]; dup {
				*diags = append(*diags, diag.Error(n.Range(), fmt.Sprintf(
					"Cannot inherit from %s because %s defines function %s which is already defined in %s",
					parent.ShortIdentifier(), parent.ShortIdentifier(), short, first)))
				continue
			}
			seen[short] = ancestor.LongIdentifier()
		}
	}
}
