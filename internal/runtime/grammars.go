package runtime

import (
	"sort"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/c"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
)

// Ranking and indexing expressions are C-like infix expressions, so these
// grammars parse them well enough for structural queries.
var (
	grammars     map[string]*sitter.Language
	grammarsOnce sync.Once
)

func initGrammars() {
	grammarsOnce.Do(func() {
		grammars = map[string]*sitter.Language{
			"c":          c.GetLanguage(),
			"javascript": javascript.GetLanguage(),
			"python":     python.GetLanguage(),
		}
	})
}

// GrammarByName returns a registered tree-sitter grammar. Returns
// (nil, false) for an unknown name.
func GrammarByName(name string) (*sitter.Language, bool) {
	initGrammars()
	g, ok := grammars[name]
	return g, ok
}

// GrammarNames lists the registered grammars in sorted order.
func GrammarNames() []string {
	initGrammars()
	names := make([]string, 0, len(grammars))
	for name := range grammars {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
