// Package cliui provides reusable terminal UI helpers (spinners, step indicators,
// markdown rendering) for rolechat CLI commands.
package cliui

import (
	"fmt"
	"io"
	"time"

	"charm.land/lipgloss/v2"
	"github.com/charmbracelet/glamour"
)

var (
	SuccessMark    = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Render("✓")
	FailMark       = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Render("✗")
	StepStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	DimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	KeyStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("250")).Bold(true)
	ValueStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	NameStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("213"))
	HeaderStyle    = lipgloss.NewStyle().Bold(true).Underline(true)
	WarnStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	UserStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	CharacterStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("213"))
	PendingStyle   = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("245"))
	spinnerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
)

// Step prints an animated spinner while fn runs, then replaces it with
// a ✓ or ✗ checkmark and elapsed time.
func Step(w io.Writer, msg string, fn func() error) error {
	sp := NewSpinner(w, msg)
	sp.Start()

	start := time.Now()
	err := fn()
	elapsed := time.Since(start)

	sp.Stop()

	fmt.Fprintf(w, "  %s %s %s\n",
		Mark(err),
		msg,
		StepStyle.Render(fmt.Sprintf("(%s)", FormatDuration(elapsed))),
	)

	return err
}

// Mark returns a ✓ for nil errors or ✗ for non-nil errors.
func Mark(err error) string {
	if err != nil {
		return FailMark
	}
	return SuccessMark
}

// FormatDuration formats a duration for display (e.g. "12ms" or "3.2s").
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

// RenderMarkdown renders markdown content for terminal display using glamour.
// On failure the content is returned unchanged along with the error.
func RenderMarkdown(content string, width int) (string, error) {
	if width <= 0 {
		width = 80
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return content, err
	}

	rendered, err := r.Render(content)
	if err != nil {
		return content, err
	}

	return rendered, nil
}
