package cli

import (
	"encoding/json"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/mattn/go-isatty"
	"golang.org/x/term"
)

// printJSON writes v as indented JSON to stdout.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// renderTable prints rows as a table. On a terminal the output gets a
// light style; piped output stays plain so it's grep-friendly.
func renderTable(header table.Row, rows []table.Row) {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(header)
	tw.AppendRows(rows)
	if isatty.IsTerminal(os.Stdout.Fd()) {
		tw.SetStyle(table.StyleLight)
	}
	tw.Render()
}

// truncate shortens s for table cells, sized to the terminal when one
// is attached.
func truncate(s string, max int) string {
	if isatty.IsTerminal(os.Stdout.Fd()) {
		if width, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && width > 40 {
			if half := width / 2; half < max {
				max = half
			}
		}
	}
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

// shortID renders the first 8 characters of a UUID for display.
func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
