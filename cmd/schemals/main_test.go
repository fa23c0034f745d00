package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.lsp.dev/protocol"

	"github.com/jward/schemals/internal/config"
	"github.com/jward/schemals/internal/diag"
)

func TestFindRepoRoot_DirectGitDir(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0o755))

	assert.Equal(t, root, findRepoRoot(root))
}

func TestFindRepoRoot_NestedSubdirectory(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0o755))
	deep := filepath.Join(root, "sub", "deep")
	require.NoError(t, os.MkdirAll(deep, 0o755))

	assert.Equal(t, root, findRepoRoot(deep))
}

func TestFindRepoRoot_ConfigFile(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, config.FileName), []byte("logging:\n  level: debug\n"), 0o644))
	deep := filepath.Join(root, "schemas")
	require.NoError(t, os.MkdirAll(deep, 0o755))

	assert.Equal(t, root, findRepoRoot(deep))
}

func TestFindRepoRoot_NoMarker(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	assert.Equal(t, dir, findRepoRoot(dir))
}

func TestCollectSchemaFiles(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	for _, name := range []string{"b.sd", "a.sd", "notes.txt", "sub/c.sd", ".schemals/hidden.sd"} {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("schema x {\n}\n"), 0o644))
	}

	files, err := collectSchemaFiles(root)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(root, "a.sd"),
		filepath.Join(root, "b.sd"),
		filepath.Join(root, "sub", "c.sd"),
	}, files)
}

func TestExpandPaths(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	dir := filepath.Join(root, "schemas")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.sd"), []byte("schema a {\n}\n"), 0o644))

	paths, err := expandPaths([]string{dir, "missing.sd"})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.sd"), "missing.sd"}, paths)
}

func TestValidateFormat(t *testing.T) {
	t.Parallel()
	assert.NoError(t, validateFormat("json"))
	assert.NoError(t, validateFormat("text"))
	assert.Error(t, validateFormat("yaml"))
}

func TestParseIntArg(t *testing.T) {
	t.Parallel()
	n, err := parseIntArg("12", "line")
	require.NoError(t, err)
	assert.Equal(t, 12, n)

	_, err = parseIntArg("-1", "line")
	assert.ErrorContains(t, err, "non-negative")
	_, err = parseIntArg("x", "col")
	assert.ErrorContains(t, err, `invalid col "x"`)
}

func TestResolveFileURI(t *testing.T) {
	t.Parallel()
	got, err := resolveFileURI("file:///ws/a.sd")
	require.NoError(t, err)
	assert.Equal(t, "file:///ws/a.sd", got)

	got, err = resolveFileURI("/ws/b.sd")
	require.NoError(t, err)
	assert.Equal(t, "file:///ws/b.sd", got)
}

func TestResolveDBPath(t *testing.T) {
	// Not parallel: mutates flagDB.
	cfg := config.DefaultConfig()
	assert.Equal(t, filepath.Join("/repo", ".schemals", "index.db"), resolveDBPath("/repo", cfg))

	flagDB = "other.db"
	defer func() { flagDB = "" }()
	assert.Equal(t, filepath.Join("/repo", "other.db"), resolveDBPath("/repo", cfg))
}

func TestFileDiagnosticsToCLI(t *testing.T) {
	t.Parallel()
	rng := protocol.Range{
		Start: protocol.Position{Line: 2, Character: 4},
		End:   protocol.Position{Line: 2, Character: 9},
	}
	got := fileDiagnosticsToCLI("file:///ws/a.sd", []diag.Diagnostic{diag.Error(rng, "Undefined symbol")})
	require.Len(t, got.Diagnostics, 1)
	d := got.Diagnostics[0]
	assert.Equal(t, "error", d.Severity)
	assert.Equal(t, 3, d.StartLine)
	assert.Equal(t, 5, d.StartCol)
	assert.Equal(t, 10, d.EndCol)

	empty := fileDiagnosticsToCLI("file:///ws/b.sd", nil)
	assert.NotNil(t, empty.Diagnostics)
}

func TestWriteResultText(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	err := writeResultText(&buf, CLIResult{Command: "check", Results: []CLIFileDiagnostics{{
		File: "file:///ws/a.sd",
		Diagnostics: []CLIDiagnostic{
			{Severity: "warning", Message: "Unused", StartLine: 1, StartCol: 2},
		},
	}}})
	require.NoError(t, err)
	assert.Equal(t, "file:///ws/a.sd:1:2: warning: Unused\n", buf.String())

	buf.Reset()
	require.NoError(t, writeResultText(&buf, CLIResult{Results: []string{"file:///ws/a.sd", "file:///ws/b.sd"}}))
	assert.Equal(t, "file:///ws/a.sd\nfile:///ws/b.sd\n", buf.String())

	buf.Reset()
	require.NoError(t, writeResultText(&buf, CLIResult{Results: []CLISymbol{{ID: 1, Name: "base", Kind: "RANK_PROFILE"}}}))
	assert.Contains(t, buf.String(), "RANK_PROFILE")

	assert.Error(t, writeResultText(&buf, CLIResult{Results: 42}))
}
