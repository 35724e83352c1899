package ui

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
)

// Transcript renders phase-prefixed progress output for multi-host runs.
// The line formats are a stable contract consumed by operators and wrapper
// scripts: phase headers, per-host progress, per-edge progress, and a final
// summary block.
type Transcript struct {
	w io.Writer

	headerStyle lipgloss.Style
	hostStyle   lipgloss.Style
	mutedStyle  lipgloss.Style
	okStyle     lipgloss.Style
	warnStyle   lipgloss.Style
}

// NewTranscript creates a transcript writing to w.
func NewTranscript(w io.Writer) *Transcript {
	return &Transcript{
		w:           w,
		headerStyle: lipgloss.NewStyle().Foreground(ColorInfo).Bold(true),
		hostStyle:   lipgloss.NewStyle().Foreground(ColorSecondary),
		mutedStyle:  lipgloss.NewStyle().Foreground(ColorMuted),
		okStyle:     lipgloss.NewStyle().Foreground(ColorSuccess),
		warnStyle:   lipgloss.NewStyle().Foreground(ColorWarning),
	}
}

// Phase writes a phase header: === Phase N: description ===
func (tr *Transcript) Phase(n int, name string) {
	fmt.Fprintf(tr.w, "%s\n", tr.headerStyle.Render(fmt.Sprintf("=== Phase %d: %s ===", n, name)))
}

// Host writes a per-host progress line: [*] host message
func (tr *Transcript) Host(host, message string) {
	fmt.Fprintf(tr.w, "[*] %s %s\n", tr.hostStyle.Render(host), message)
}

// HostNote writes an informational per-host note (e.g. "key already exists").
func (tr *Transcript) HostNote(host, note string) {
	fmt.Fprintf(tr.w, "[*] %s %s\n", tr.hostStyle.Render(host), tr.mutedStyle.Render(note))
}

// Edge writes a per-edge progress line:     - src -> dst
func (tr *Transcript) Edge(src, dst string) {
	fmt.Fprintf(tr.w, "    - %s -> %s\n", src, dst)
}

// EdgeNote writes a per-edge line with a trailing note (e.g. "already present").
func (tr *Transcript) EdgeNote(src, dst, note string) {
	fmt.Fprintf(tr.w, "    - %s -> %s %s\n", src, dst, tr.mutedStyle.Render("("+note+")"))
}

// Success writes a green check line.
func (tr *Transcript) Success(message string) {
	fmt.Fprintf(tr.w, "%s %s\n", tr.okStyle.Render(SymbolSuccess), message)
}

// Warn writes a yellow warning line.
func (tr *Transcript) Warn(message string) {
	fmt.Fprintf(tr.w, "%s %s\n", tr.warnStyle.Render("!"), message)
}

// Newline writes an empty line.
func (tr *Transcript) Newline() {
	fmt.Fprintln(tr.w)
}

// Summary writes the final summary block: a header followed by indented lines.
func (tr *Transcript) Summary(title string, lines []string) {
	fmt.Fprintln(tr.w)
	fmt.Fprintf(tr.w, "%s\n", tr.headerStyle.Render(title))
	for _, line := range lines {
		fmt.Fprintf(tr.w, "  %s\n", line)
	}
}
