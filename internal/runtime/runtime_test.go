package runtime

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.lsp.dev/protocol"

	"github.com/jward/schemals/internal/analysis"
	"github.com/jward/schemals/internal/index"
	"github.com/jward/schemals/internal/parser"
	"github.com/jward/schemals/internal/tree"
)

const musicSource = `schema music {
    document music {
        struct person {
            field name type string {}
        }
        struct artist inherits person {
            field label type string {}
        }
    }
    rank-profile base {
        function f() {
            expression: attribute(popularity)
        }
    }
    rank-profile legacy inherits base {
        function g() {
            expression: bm25(title) + f
        }
    }
}
`

// analyse parses and resolves src as the only file of a fresh index.
func analyse(t *testing.T, src string) *RuleInput {
	t.Helper()
	return analyseTree(t, parse(t, src))
}

// analyseSpliced is analyse with the ranking expressions parsed as
// JavaScript and spliced into their regions first.
func analyseSpliced(t *testing.T, src string) *RuleInput {
	t.Helper()
	root := parse(t, src)
	root.Walk(func(n *tree.Node) bool {
		if !n.IsType(parser.TypeExpressionBody) {
			return true
		}
		g, ok := GrammarByName("javascript")
		require.True(t, ok)
		sub, err := tree.ParseSubLanguage(context.Background(), g, []byte(n.Text()), tree.LanguageRankExpression, n.Range().Start)
		require.NoError(t, err)
		n.ClearChildren()
		n.AddChild(sub)
		return false
	})
	return analyseTree(t, root)
}

func parse(t *testing.T, src string) *tree.Node {
	t.Helper()
	raw, errs := parser.Parse(src)
	require.Empty(t, errs)
	return tree.WrapPrimary(raw)
}

func analyseTree(t *testing.T, root *tree.Node) *RuleInput {
	t.Helper()
	fileURI := "file:///ws/music.sd"

	idx := index.New(nil)
	ctx := analysis.NewParseContext(fileURI, idx, nil)
	_, err := analysis.Identify(ctx, root)
	require.NoError(t, err)
	require.Empty(t, analysis.ResolveInheritances(ctx))
	require.Empty(t, analysis.ResolveReferences(ctx))
	return &RuleInput{FileURI: fileURI, Root: root, Index: idx}
}

// --- Rule discovery ---

func TestRules_SortedFromFS(t *testing.T) {
	t.Parallel()
	mapFS := fstest.MapFS{
		"b.risor":     &fstest.MapFile{Data: []byte(`x := 1`)},
		"a.risor":     &fstest.MapFile{Data: []byte(`x := 2`)},
		"lib/x.risor": &fstest.MapFile{Data: []byte(`x := 3`)},
		"README.md":   &fstest.MapFile{Data: []byte(`rules`)},
	}
	rt := NewRuntime("", WithRuntimeFS(mapFS))
	rules, err := rt.Rules()
	require.NoError(t, err)
	assert.Equal(t, []string{"a.risor", "b.risor"}, rules)
}

func TestRules_FromDisk(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "z.risor"), []byte(`x := 1`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte(`x`), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.risor"), 0755))

	rules, err := NewRuntime(dir).Rules()
	require.NoError(t, err)
	assert.Equal(t, []string{"z.risor"}, rules)
}

func TestRules_MissingDirIsEmpty(t *testing.T) {
	t.Parallel()
	rules, err := NewRuntime(filepath.Join(t.TempDir(), "absent")).Rules()
	require.NoError(t, err)
	assert.Empty(t, rules)

	rules, err = NewRuntime("").Rules()
	require.NoError(t, err)
	assert.Empty(t, rules)
}

// --- Rule host functions ---

func TestRunSource_DefinitionsAndReport(t *testing.T) {
	t.Parallel()
	in := analyse(t, musicSource)
	rt := NewRuntime("")

	script := `
assert(file_uri == "file:///ws/music.sd", 'unexpected file_uri {file_uri}')
assert(schema_name == "music", 'unexpected schema_name {schema_name}')

profiles := definitions("RANK_PROFILE")
assert(len(profiles) == 2, 'expected 2 profiles, got {len(profiles)}')

for _, p := range profiles {
    if p["name"] == "legacy" {
        report({
            "message": "rank profile legacy is deprecated",
            "severity": "hint",
            "line": p["line"],
            "col": p["col"],
            "end_line": p["end_line"],
            "end_col": p["end_col"],
        })
    }
}
assert(len(definitions()) > len(profiles), "unfiltered definitions should include more")
`
	diags, err := rt.RunSource(context.Background(), script, in, nil)
	require.NoError(t, err)
	require.Len(t, diags, 1)
	assert.Equal(t, "rank profile legacy is deprecated", diags[0].Message)
	assert.Equal(t, protocol.DiagnosticSeverityHint, diags[0].Severity)
	assert.Equal(t, uint32(14), diags[0].Range.Start.Line)
	assert.Equal(t, uint32(17), diags[0].Range.Start.Character)
	assert.Equal(t, uint32(23), diags[0].Range.End.Character)
}

func TestRunSource_ReferencesAndParents(t *testing.T) {
	t.Parallel()
	in := analyse(t, musicSource)
	rt := NewRuntime("")

	script := `
refs := references("RANK_PROFILE")
assert(len(refs) == 1, 'expected 1 rank profile reference, got {len(refs)}')
assert(refs[0]["status"] == "REFERENCE", "reference should be resolved")

ps := parents("RANK_PROFILE", "legacy")
assert(len(ps) == 1, 'expected 1 parent, got {len(ps)}')
assert(ps[0] == "music.base", 'unexpected parent {ps[0]}')

ss := parents("STRUCT", "artist")
assert(len(ss) == 1, 'expected 1 struct parent, got {len(ss)}')

assert(len(parents("STRUCT", "missing")) == 0, "missing struct has no parents")
assert(len(parents("DOCUMENT", "")) == 0, "music inherits no documents")
`
	_, err := rt.RunSource(context.Background(), script, in, nil)
	require.NoError(t, err)
}

func TestRunSource_ParentsRejectsFlatTypes(t *testing.T) {
	t.Parallel()
	in := analyse(t, musicSource)
	_, err := NewRuntime("").RunSource(context.Background(), `parents("FIELD", "name")`, in, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FIELD has no inheritance")
}

func TestRunSource_EmbeddedRegions(t *testing.T) {
	t.Parallel()
	in := analyse(t, musicSource)

	script := `
regions := embedded()
assert(len(regions) == 2, 'expected 2 regions, got {len(regions)}')
assert(regions[0]["kind"] == "expression", "expected an expression region")
assert(regions[0]["text"] == "attribute(popularity)", "unexpected first region text")
assert(regions[1]["text"] == "bm25(title) + f", "unexpected second region text")
assert(regions[1]["language"] == "primary", "regions are primary until spliced")
`
	_, err := NewRuntime("").RunSource(context.Background(), script, in, nil)
	require.NoError(t, err)
}

func TestRunSource_QuerySplicedExpressions(t *testing.T) {
	t.Parallel()
	in := analyseSpliced(t, musicSource)

	script := `
calls := []
for _, region := range embedded() {
    assert(region["language"] == "rank-expression", "region is spliced")
    for _, m := range query("(call_expression function: (identifier) @fn)", region["node"]) {
        calls.append(node_text(m["fn"]))
        pos := node_range(m["fn"])
        report({"message": "call " + node_text(m["fn"]), "line": pos["line"], "col": pos["col"]})
    }
}
assert(len(calls) == 2, 'expected 2 calls, got {len(calls)}')
`
	diags, err := NewRuntime("").RunSource(context.Background(), script, in, nil)
	require.NoError(t, err)
	require.Len(t, diags, 2)
	assert.Equal(t, "call attribute", diags[0].Message)
	assert.Equal(t, protocol.Position{Line: 11, Character: 24}, diags[0].Range.Start)
	assert.Equal(t, "call bm25", diags[1].Message)
	assert.Equal(t, protocol.Position{Line: 16, Character: 24}, diags[1].Range.Start)
}

func TestRunSource_NodeHelpersWalkSplicedTree(t *testing.T) {
	t.Parallel()
	in := analyseSpliced(t, musicSource)

	script := `
region := embedded()[1]["node"]
assert(node_type(region) == "expressionBody", 'unexpected region type {node_type(region)}')
assert(node_text(region) == "bm25(title) + f", "region keeps its text")

sub := node_children(region)
assert(len(sub) == 1, "one spliced tree under the region")
assert(node_type(sub[0]) == "program", 'unexpected root {node_type(sub[0])}')

matches := query("(call_expression) @c", sub[0])
assert(len(matches) == 1, 'expected 1 call, got {len(matches)}')
bm25 := matches[0]["c"]
arguments := node_child(bm25, "arguments")
assert(node_text(arguments) == "(title)", 'unexpected arguments {node_text(arguments)}')
assert(node_child(bm25, "no_such_field") == nil, "missing field is nil")
assert(node_child(region, "arguments") == nil, "primary nodes have no fields")
`
	_, err := NewRuntime("").RunSource(context.Background(), script, in, nil)
	require.NoError(t, err)
}

func TestRunSource_QueryNeedsSplicedTree(t *testing.T) {
	t.Parallel()
	in := analyse(t, musicSource)
	_, err := NewRuntime("").RunSource(context.Background(), `query("(identifier) @x", embedded()[0]["node"])`, in, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no sub-language tree")
}

func TestRunSource_QueryInvalidPattern(t *testing.T) {
	t.Parallel()
	in := analyseSpliced(t, musicSource)
	_, err := NewRuntime("").RunSource(context.Background(), `query("(not_a_real_node_type @x)", embedded()[0]["node"])`, in, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid pattern")
}

func TestRunSource_NodeHelpersRejectNonNodes(t *testing.T) {
	t.Parallel()
	_, err := NewRuntime("").RunSource(context.Background(), `node_text("bm25")`, nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "node_text: expected node")
}

func TestRunSource_ReportValidation(t *testing.T) {
	t.Parallel()
	in := analyse(t, musicSource)
	rt := NewRuntime("")

	cases := []struct {
		name   string
		script string
		want   string
	}{
		{"missing message", `report({"line": 1})`, "message is required"},
		{"bad severity", `report({"message": "m", "severity": "fatal"})`, `unknown severity "fatal"`},
		{"not a map", `report("m")`, "expected map"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := rt.RunSource(context.Background(), tc.script, in, nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestRunSource_DefaultSeverityAndPoint(t *testing.T) {
	t.Parallel()
	in := analyse(t, musicSource)
	diags, err := NewRuntime("").RunSource(context.Background(), `report({"message": "m", "line": 2, "col": 4, "note": "n"})`, in, nil)
	require.NoError(t, err)
	require.Len(t, diags, 1)
	assert.Equal(t, protocol.DiagnosticSeverityWarning, diags[0].Severity)
	assert.Equal(t, diags[0].Range.Start, diags[0].Range.End)
	assert.Equal(t, "n", diags[0].Note)
}

func TestRunSource_WithoutInputHasNoRuleGlobals(t *testing.T) {
	t.Parallel()
	rt := NewRuntime("")
	_, err := rt.RunSource(context.Background(), `x := 1 + 2
assert(x == 3, "expected 3")`, nil, nil)
	require.NoError(t, err)

	_, err = rt.RunSource(context.Background(), `definitions()`, nil, nil)
	require.Error(t, err)
}

func TestRunSource_ExtraGlobals(t *testing.T) {
	t.Parallel()
	_, err := NewRuntime("").RunSource(context.Background(), `assert(limit == 3, "limit")`, nil, map[string]any{"limit": 3})
	require.NoError(t, err)
}

// --- Running rule files ---

func TestRunRules_CollectsAndJoinsErrors(t *testing.T) {
	t.Parallel()
	in := analyse(t, musicSource)
	mapFS := fstest.MapFS{
		"a_good.risor": &fstest.MapFile{Data: []byte(`report({"message": "from good"})`)},
		"b_bad.risor":  &fstest.MapFile{Data: []byte(`report({"message": "before failure"})
assert(false, "boom")`)},
		"c_good.risor": &fstest.MapFile{Data: []byte(`report({"message": "still runs"})`)},
	}
	rt := NewRuntime("", WithRuntimeFS(mapFS))

	diags, err := rt.RunRules(context.Background(), in)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "b_bad.risor")

	var messages []string
	for _, d := range diags {
		messages = append(messages, d.Message)
	}
	assert.Equal(t, []string{"from good", "before failure", "still runs"}, messages)
}

func TestRunRules_CancelledContext(t *testing.T) {
	t.Parallel()
	in := analyse(t, musicSource)
	mapFS := fstest.MapFS{"a.risor": &fstest.MapFile{Data: []byte(`report({"message": "m"})`)}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	diags, err := NewRuntime("", WithRuntimeFS(mapFS)).RunRules(ctx, in)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, diags)
}

func TestLoadScript_FromDiskAndFS(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	content := `z := 7`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "test.risor"), []byte(content), 0644))

	got, err := NewRuntime(dir).LoadScript("test.risor")
	require.NoError(t, err)
	assert.Equal(t, content, got)

	mapFS := fstest.MapFS{"rules/x.risor": &fstest.MapFile{Data: []byte(content)}}
	got, err = NewRuntime("", WithRuntimeFS(mapFS)).LoadScript("/rules/x.risor")
	require.NoError(t, err)
	assert.Equal(t, content, got)

	_, err = NewRuntime(dir).LoadScript("missing.risor")
	require.Error(t, err)
}

// --- Importer wiring ---

func TestImport_FSImporter(t *testing.T) {
	t.Parallel()
	// Risor's FSImporter resolves "lib_helpers" by trying name + ".risor",
	// so the file must be at the flat path "lib_helpers.risor" in the FS.
	mapFS := fstest.MapFS{
		"lib_helpers.risor": &fstest.MapFile{Data: []byte(`
func deprecated(name) {
	return name + " is deprecated"
}

func profile_count() {
	return len(definitions("RANK_PROFILE"))
}
`)},
	}
	in := analyse(t, musicSource)
	rt := NewRuntime("", WithRuntimeFS(mapFS))

	script := `
import lib_helpers
assert(lib_helpers.profile_count() == 2, "builtins resolve in imported modules")
report({"message": lib_helpers.deprecated("legacy")})
`
	diags, err := rt.RunSource(context.Background(), script, in, nil)
	require.NoError(t, err)
	require.Len(t, diags, 1)
	assert.Equal(t, "legacy is deprecated", diags[0].Message)
}

func TestImport_GlobalsAvailableInImportedModules(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	// The imported module uses host globals, which only compiles when the
	// importer is told their names.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "helper.risor"), []byte(`
func profile_count() {
	log.Info("counting profiles")
	return len(definitions("RANK_PROFILE"))
}
`), 0644))

	in := analyse(t, musicSource)
	script := `
import helper
assert(helper.profile_count() == 2, "expected 2 profiles")
`
	_, err := NewRuntime(dir).RunSource(context.Background(), script, in, nil)
	require.NoError(t, err)
}

func TestGrammarNames(t *testing.T) {
	t.Parallel()
	assert.Equal(t, []string{"c", "javascript", "python"}, GrammarNames())
	g, ok := GrammarByName("javascript")
	assert.True(t, ok)
	assert.NotNil(t, g)
	_, ok = GrammarByName("go")
	assert.False(t, ok)
}
