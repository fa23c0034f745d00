package runtime

import (
	"context"
	"fmt"

	"github.com/risor-io/risor/object"
	"go.lsp.dev/protocol"

	"github.com/jward/schemals/internal/diag"
	"github.com/jward/schemals/internal/parser"
	"github.com/jward/schemals/internal/tree"
)

// Rule host functions. Risor scripts cannot construct Go structs, so
// symbols come back as maps and report takes a map.

type reportSink struct {
	diags []diag.Diagnostic
}

// definitions(type?) → []map
//
// Lists the file's definitions, optionally filtered by symbol type name
// such as "RANK_PROFILE".
func makeDefinitionsFn(in *RuleInput) *object.Builtin {
	return object.NewBuiltin("definitions", func(ctx context.Context, args ...object.Object) object.Object {
		filter, errObj := optionalSymbolType("definitions", args)
		if errObj != nil {
			return errObj
		}
		return symbolsToList(in.Index.SymbolDefinitions(in.FileURI), filter)
	})
}

// references(type?) → []map
func makeReferencesFn(in *RuleInput) *object.Builtin {
	return object.NewBuiltin("references", func(ctx context.Context, args ...object.Object) object.Object {
		filter, errObj := optionalSymbolType("references", args)
		if errObj != nil {
			return errObj
		}
		return symbolsToList(in.Index.SymbolReferences(in.FileURI), filter)
	})
}

// parents(type, name) → []string
//
// For STRUCT and RANK_PROFILE returns the transitive ancestors of a
// definition visible from this file, nearest first, as long identifiers.
// For DOCUMENT and SCHEMA the name is ignored and the schema names the
// file inherits directly are returned.
func makeParentsFn(in *RuleInput) *object.Builtin {
	return object.NewBuiltin("parents", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("parents", 2, len(args))
		}
		typeName, err := toString(args[0])
		if err != nil {
			return object.Errorf("parents: %v", err)
		}
		name, err := toString(args[1])
		if err != nil {
			return object.Errorf("parents: %v", err)
		}
		typ, ok := tree.ParseSymbolType(typeName)
		if !ok {
			return object.Errorf("parents: unknown symbol type %q", typeName)
		}

		var names []string
		switch typ {
		case tree.TypeDocument, tree.TypeSchema:
			for _, uri := range in.Index.DocumentParents(in.FileURI) {
				if doc, ok := in.Index.SchemaDocument(uri); ok {
					names = append(names, doc.Name)
				}
			}
		case tree.TypeStruct, tree.TypeRankProfile:
			sym, ok := in.Index.FindSymbol(in.FileURI, typ, name)
			if !ok {
				return object.NewList([]object.Object{})
			}
			var ancestors []*tree.Symbol
			if typ == tree.TypeStruct {
				ancestors = in.Index.GetAllStructParents(sym)
			} else {
				ancestors = in.Index.GetAllRankProfileParents(sym)
			}
			for _, a := range ancestors {
				if a != sym {
					names = append(names, a.LongIdentifier())
				}
			}
		default:
			return object.Errorf("parents: %s has no inheritance", typ)
		}

		results := make([]object.Object, 0, len(names))
		for _, n := range names {
			results = append(results, object.NewString(n))
		}
		return object.NewList(results)
	})
}

// embedded() → []map
//
// Lists the embedded expression and indexing regions of the file with
// their text, range and region node. A region whose grammar is configured
// holds the spliced sub-language tree, which query and node_child walk.
func makeEmbeddedFn(in *RuleInput) *object.Builtin {
	return object.NewBuiltin("embedded", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 0 {
			return object.NewArgsError("embedded", 0, len(args))
		}
		results := []object.Object{}
		if in.Root == nil {
			return object.NewList(results)
		}
		in.Root.Walk(func(n *tree.Node) bool {
			var kind string
			switch {
			case n.IsType(parser.TypeExpressionBody):
				kind = "expression"
			case n.IsType(parser.TypeIndexingBody):
				kind = "indexing"
			default:
				return true
			}
			m := rangeMap(n.Range())
			m["kind"] = object.NewString(kind)
			m["text"] = object.NewString(n.Text())
			m["language"] = object.NewString(embeddedLanguage(n).String())
			m["node"] = newNodeHandle(n)
			results = append(results, object.NewMap(m))
			return false
		})
		return object.NewList(results)
	})
}

// embeddedLanguage reports the language of the region's content, which is
// still primary until a sub-language tree has been spliced in.
func embeddedLanguage(n *tree.Node) tree.Language {
	for _, c := range n.Children() {
		if c.Language() != tree.LanguagePrimary {
			return c.Language()
		}
	}
	return n.Language()
}

// report(map) → nil
//
// Keys: message (required), severity ("error", "warning", "information",
// "hint"; default "warning"), note, line, col, end_line, end_col.
func makeReportFn(sink *reportSink) *object.Builtin {
	return object.NewBuiltin("report", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("report", 1, len(args))
		}
		m, err := extractMap(args[0])
		if err != nil {
			return object.Errorf("report: %v", err)
		}
		msg := getString(m, "message")
		if msg == "" {
			return object.Errorf("report: message is required")
		}
		sev, ok := parseSeverity(getStringDefault(m, "severity", "warning"))
		if !ok {
			return object.Errorf("report: unknown severity %q", getString(m, "severity"))
		}

		start := protocol.Position{Line: uint32(getInt(m, "line")), Character: uint32(getInt(m, "col"))}
		end := start
		if _, ok := m["end_line"]; ok {
			end = protocol.Position{Line: uint32(getInt(m, "end_line")), Character: uint32(getInt(m, "end_col"))}
		}
		sink.diags = append(sink.diags, diag.Diagnostic{
			Range:    protocol.Range{Start: start, End: end},
			Message:  msg,
			Severity: sev,
			Note:     getString(m, "note"),
		})
		return object.Nil
	})
}

func parseSeverity(s string) (protocol.DiagnosticSeverity, bool) {
	switch s {
	case "error":
		return protocol.DiagnosticSeverityError, true
	case "warning":
		return protocol.DiagnosticSeverityWarning, true
	case "information":
		return protocol.DiagnosticSeverityInformation, true
	case "hint":
		return protocol.DiagnosticSeverityHint, true
	}
	return 0, false
}

func optionalSymbolType(name string, args []object.Object) (tree.SymbolType, object.Object) {
	switch len(args) {
	case 0:
		return tree.TypeUnknown, nil
	case 1:
		s, err := toString(args[0])
		if err != nil {
			return tree.TypeUnknown, object.Errorf("%s: %v", name, err)
		}
		typ, ok := tree.ParseSymbolType(s)
		if !ok {
			return tree.TypeUnknown, object.Errorf("%s: unknown symbol type %q", name, s)
		}
		return typ, nil
	}
	return tree.TypeUnknown, object.Errorf("%s: expected at most 1 argument, got %d", name, len(args))
}

// symbolsToList converts symbols to a Risor list of maps. TypeUnknown
// keeps every symbol.
func symbolsToList(syms []*tree.Symbol, filter tree.SymbolType) object.Object {
	results := []object.Object{}
	for _, sym := range syms {
		if filter != tree.TypeUnknown && sym.Type() != filter {
			continue
		}
		m := rangeMap(sym.Node().Range())
		m["name"] = object.NewString(sym.ShortIdentifier())
		m["long_name"] = object.NewString(sym.LongIdentifier())
		m["type"] = object.NewString(sym.Type().String())
		m["status"] = object.NewString(sym.Status().String())
		m["file_uri"] = object.NewString(sym.FileURI())
		results = append(results, object.NewMap(m))
	}
	return object.NewList(results)
}

func rangeMap(r protocol.Range) map[string]object.Object {
	return map[string]object.Object{
		"line":     object.NewInt(int64(r.Start.Line)),
		"col":      object.NewInt(int64(r.Start.Character)),
		"end_line": object.NewInt(int64(r.End.Line)),
		"end_col":  object.NewInt(int64(r.End.Character)),
	}
}

func extractMap(obj object.Object) (map[string]object.Object, error) {
	m, ok := obj.(*object.Map)
	if !ok {
		return nil, fmt.Errorf("expected map, got %s", obj.Type())
	}
	return m.Value(), nil
}

func getString(m map[string]object.Object, key string) string {
	v, ok := m[key]
	if !ok {
		return ""
	}
	if s, ok := v.(*object.String); ok {
		return s.Value()
	}
	return ""
}

func getStringDefault(m map[string]object.Object, key, def string) string {
	v := getString(m, key)
	if v == "" {
		return def
	}
	return v
}

func getInt(m map[string]object.Object, key string) int {
	v, ok := m[key]
	if !ok {
		return 0
	}
	if i, ok := v.(*object.Int); ok {
		return int(i.Value())
	}
	if f, ok := v.(*object.Float); ok {
		return int(f.Value())
	}
	return 0
}

func toString(obj object.Object) (string, error) {
	if s, ok := obj.(*object.String); ok {
		return s.Value(), nil
	}
	return "", fmt.Errorf("expected string, got %s", obj.Type())
}
