// Package diag defines the user-facing diagnostic record produced by the
// analysis passes.
package diag

import (
	"fmt"
	"strings"

	"go.lsp.dev/protocol"
)

// Source is the diagnostic source reported to editors.
const Source = "schemals"

// Diagnostic is one problem found in a file. Note holds optional extra
// lines, such as the candidate definitions of an ambiguous reference.
type Diagnostic struct {
	Range    protocol.Range
	Message  string
	Severity protocol.DiagnosticSeverity
	Note     string
}

// Error returns an error-severity diagnostic.
func Error(rng protocol.Range, message string) Diagnostic {
	return Diagnostic{Range: rng, Message: message, Severity: protocol.DiagnosticSeverityError}
}

// Warning returns a warning-severity diagnostic.
func Warning(rng protocol.Range, message string) Diagnostic {
	return Diagnostic{Range: rng, Message: message, Severity: protocol.DiagnosticSeverityWarning}
}

// WithNote returns a copy of d with note appended as an extra line.
func (d Diagnostic) WithNote(note string) Diagnostic {
	d.Note += note
	return d
}

// ToProtocol converts d to its wire form. The note is folded into the
// message since protocol diagnostics have no separate note field.
func (d Diagnostic) ToProtocol() protocol.Diagnostic {
	return protocol.Diagnostic{
		Range:    d.Range,
		Severity: d.Severity,
		Source:   Source,
		Message:  d.Message + d.Note,
	}
}

// SeverityName returns "error", "warning", "info" or "hint".
func SeverityName(s protocol.DiagnosticSeverity) string {
	switch s {
	case protocol.DiagnosticSeverityError:
		return "error"
	case protocol.DiagnosticSeverityWarning:
		return "warning"
	case protocol.DiagnosticSeverityInformation:
		return "info"
	case protocol.DiagnosticSeverityHint:
		return "hint"
	default:
		return "unknown"
	}
}

func (d Diagnostic) String() string {
	s := fmt.Sprintf("%d:%d: %s: %s", d.Range.Start.Line+1, d.Range.Start.Character+1, SeverityName(d.Severity), d.Message)
	if d.Note != "" {
		s += strings.ReplaceAll(d.Note, "\n", "\n    ")
	}
	return s
}

// HasErrors reports whether any diagnostic is an error.
func HasErrors(diags []Diagnostic) bool {
	for _, d := range diags {
		if d.Severity == protocol.DiagnosticSeverityError {
			return true
		}
	}
	return false
}
