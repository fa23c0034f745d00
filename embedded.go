package schemals

import (
	"context"
	"strings"

	"github.com/jward/schemals/internal/diag"
	"github.com/jward/schemals/internal/parser"
	"github.com/jward/schemals/internal/tree"
)

// embeddedRegions maps the primary node types that hold sub-language text
// to the language of that text.
var embeddedRegions = map[string]tree.Language{
	parser.TypeExpressionBody: tree.LanguageRankExpression,
	parser.TypeIndexingBody:   tree.LanguageIndexing,
}

// spliceSubLanguages parses every embedded region of root that has a
// configured grammar and replaces the region's token children with the
// sub-language tree. Regions keep their primary-language text and range.
func (e *Engine) spliceSubLanguages(ctx context.Context, root *tree.Node) []diag.Diagnostic {
	if len(e.subLanguages) == 0 {
		return nil
	}

	var regions []*tree.Node
	root.Walk(func(n *tree.Node) bool {
		if _, ok := embeddedRegions[n.Type()]; ok {
			regions = append(regions, n)
			return false
		}
		return true
	})

	var diags []diag.Diagnostic
	for _, region := range regions {
		lang := embeddedRegions[region.Type()]
		grammar, ok := e.subLanguages[lang]
		if !ok {
			continue
		}
		text := region.Text()
		if strings.TrimSpace(text) == "" {
			continue
		}
		sub, err := tree.ParseSubLanguage(ctx, grammar, []byte(text), lang, region.Range().Start)
		if err != nil {
			e.logger.Warn("sub-language parse failed", "language", lang.String(), "error", err)
			continue
		}
		region.ClearChildren()
		region.AddChild(sub)
		if sub.IsDirty() && !e.reportDirty {
			diags = append(diags, diag.Warning(region.Range(), "Syntax error in embedded "+lang.String()+" region"))
		}
	}
	return diags
}
