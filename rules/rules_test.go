package rules_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.lsp.dev/protocol"

	"github.com/jward/schemals"
	"github.com/jward/schemals/rules"
)

func analyse(t *testing.T, fileURI, content string) []schemals.Diagnostic {
	t.Helper()
	e, err := schemals.New("", "", schemals.WithRulesFS(rules.FS))
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	_, err = e.OpenDocument(context.Background(), fileURI, content, 1)
	require.NoError(t, err)
	return e.Diagnostics(fileURI)
}

func TestSchemaFileName_Mismatch(t *testing.T) {
	t.Parallel()
	diags := analyse(t, "file:///ws/music.sd", "schema songs {\n    document songs {\n    }\n}\n")
	require.Len(t, diags, 1)
	assert.Equal(t, "Schema name 'songs' should match file name 'music.sd'", diags[0].Message)
	assert.Equal(t, protocol.DiagnosticSeverityWarning, diags[0].Severity)
	assert.Equal(t, uint32(0), diags[0].Range.Start.Line)
	assert.Equal(t, uint32(7), diags[0].Range.Start.Character)
}

func TestSchemaFileName_Match(t *testing.T) {
	t.Parallel()
	diags := analyse(t, "file:///ws/music.sd", "schema music {\n    document music {\n    }\n}\n")
	assert.Empty(t, diags)
}

func TestSchemaFileName_OtherExtensionIgnored(t *testing.T) {
	t.Parallel()
	diags := analyse(t, "file:///ws/music.txt", "schema songs {\n    document songs {\n    }\n}\n")
	assert.Empty(t, diags)
}
