package diag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.lsp.dev/protocol"
)

func TestToProtocol(t *testing.T) {
	t.Parallel()
	rng := protocol.Range{Start: protocol.Position{Line: 2, Character: 4}, End: protocol.Position{Line: 2, Character: 9}}
	d := Warning(rng, "base is ambiguous in this context.").
		WithNote("\nDefined in a.sd").
		WithNote("\nDefined in b.sd")

	p := d.ToProtocol()
	assert.Equal(t, protocol.DiagnosticSeverityWarning, p.Severity)
	assert.Equal(t, rng, p.Range)
	assert.Equal(t, Source, p.Source)
	assert.Equal(t, "base is ambiguous in this context.\nDefined in a.sd\nDefined in b.sd", p.Message)
}

func TestString(t *testing.T) {
	t.Parallel()
	d := Error(protocol.Range{Start: protocol.Position{Line: 0, Character: 3}}, "Undefined symbol x")
	assert.Equal(t, "1:4: error: Undefined symbol x", d.String())

	d = d.WithNote("\nDefined in a.sd")
	assert.Equal(t, "1:4: error: Undefined symbol x\n    Defined in a.sd", d.String())
}

func TestHasErrors(t *testing.T) {
	t.Parallel()
	assert.False(t, HasErrors(nil))
	assert.False(t, HasErrors([]Diagnostic{Warning(protocol.Range{}, "w")}))
	assert.True(t, HasErrors([]Diagnostic{Warning(protocol.Range{}, "w"), Error(protocol.Range{}, "e")}))
	assert.Equal(t, "hint", SeverityName(protocol.DiagnosticSeverityHint))
}
