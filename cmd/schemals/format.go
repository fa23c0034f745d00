package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
)

// formatDiagnosticsText prints diagnostics as "file:line:col: severity: message".
func formatDiagnosticsText(w io.Writer, files []CLIFileDiagnostics) {
	for _, f := range files {
		for _, d := range f.Diagnostics {
			fmt.Fprintf(w, "%s:%d:%d: %s: %s%s\n", f.File, d.StartLine, d.StartCol, d.Severity, d.Message, d.Note)
		}
	}
}

// formatSymbolsText formats CLISymbol results as aligned columns.
func formatSymbolsText(w io.Writer, syms []CLISymbol) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tKIND\tLONG NAME\tFILE\tLINE")
	for _, s := range syms {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%d\n",
			s.ID, s.Name, s.Kind, s.LongName, s.File, s.StartLine)
	}
	tw.Flush()
}

// formatEdgesText formats CLIEdge results as aligned columns.
func formatEdgesText(w io.Writer, edges []CLIEdge) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "GRAPH\tCHILD\tPARENT\tPARENT FILE")
	for _, e := range edges {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.Graph, e.ChildName, e.ParentName, e.ParentFile)
	}
	tw.Flush()
}

// formatFilesText formats CLIFile results as aligned columns.
func formatFilesText(w io.Writer, files []CLIFile) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSCHEMA\tVERSION\tLINES\tURI")
	for _, f := range files {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%s\n", f.ID, f.SchemaName, f.Version, f.LineCount, f.URI)
	}
	tw.Flush()
}

// formatStringsText prints one value per line.
func formatStringsText(w io.Writer, values []string) {
	for _, v := range values {
		fmt.Fprintln(w, v)
	}
}

// outputResultText dispatches a CLIResult to the right text formatter.
func outputResultText(result CLIResult) error {
	return writeResultText(os.Stdout, result)
}

func writeResultText(w io.Writer, result CLIResult) error {
	switch r := result.Results.(type) {
	case []CLIFileDiagnostics:
		formatDiagnosticsText(w, r)
	case []CLISymbol:
		formatSymbolsText(w, r)
	case []CLIEdge:
		formatEdgesText(w, r)
	case []CLIFile:
		formatFilesText(w, r)
	case []string:
		formatStringsText(w, r)
	case nil:
	default:
		return fmt.Errorf("no text formatter for %T", result.Results)
	}
	return nil
}

// validateFormat checks that the --format value is supported.
func validateFormat(format string) error {
	switch format {
	case "json", "text":
		return nil
	default:
		return fmt.Errorf("invalid format %q: must be json or text", format)
	}
}
