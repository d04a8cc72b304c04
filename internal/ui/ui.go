// Package ui styles status messages printed to the terminal.
// Report data is never styled; only diagnostics go through here.
package ui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

var (
	passStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("3")).Bold(true)
	accentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	mutedStyle  = lipgloss.NewStyle().Faint(true)

	// stderrRenderer detects colour support on stderr, independent of stdout.
	stderrRenderer = lipgloss.NewRenderer(os.Stderr)
	errorStyle     = stderrRenderer.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
)

func init() {
	if !IsTerminal(os.Stdout) {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
	if !IsTerminal(os.Stderr) {
		stderrRenderer.SetColorProfile(termenv.Ascii)
	}
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// DisableColor turns all styling into plain text.
func DisableColor() {
	lipgloss.SetColorProfile(termenv.Ascii)
	stderrRenderer.SetColorProfile(termenv.Ascii)
}

// RenderPass styles a success marker.
func RenderPass(s string) string { return passStyle.Render(s) }

// RenderWarn styles a warning marker.
func RenderWarn(s string) string { return warnStyle.Render(s) }

// RenderError styles an error marker written to stderr.
func RenderError(s string) string { return errorStyle.Render(s) }

// RenderAccent styles a heading or highlighted value.
func RenderAccent(s string) string { return accentStyle.Render(s) }

// RenderMuted styles secondary information.
func RenderMuted(s string) string { return mutedStyle.Render(s) }
