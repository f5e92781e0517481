// Package ui holds the terminal styling for CLI output. Styling is
// dropped automatically when stdout is not a terminal.
package ui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Color palette. Single red accent, muted support colors.
const (
	ColorAccent   = "160" // titles, emphasis
	ColorWhite    = "255"
	ColorGray     = "245" // metadata, labels
	ColorDarkGray = "238" // separators
	ColorYellow   = "220" // warnings
)

// Styles holds the render styles for CLI output.
type Styles struct {
	Title   lipgloss.Style
	Meta    lipgloss.Style
	Excerpt lipgloss.Style
	Score   lipgloss.Style
	Label   lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Rule    lipgloss.Style
}

// DefaultStyles returns the styled palette for terminal output.
func DefaultStyles() Styles {
	return Styles{
		Title:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorAccent)),
		Meta:    lipgloss.NewStyle().Foreground(lipgloss.Color(ColorGray)),
		Excerpt: lipgloss.NewStyle().Foreground(lipgloss.Color(ColorWhite)),
		Score:   lipgloss.NewStyle().Foreground(lipgloss.Color(ColorGray)),
		Label:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorWhite)),
		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color(ColorYellow)),
		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color(ColorAccent)),
		Rule:    lipgloss.NewStyle().Foreground(lipgloss.Color(ColorDarkGray)),
	}
}

// NoColorStyles returns unstyled components for piped output.
func NoColorStyles() Styles {
	return Styles{}
}

// StylesFor picks the palette based on whether f is a terminal.
func StylesFor(f *os.File) Styles {
	if IsTerminal(f) {
		return DefaultStyles()
	}
	return NoColorStyles()
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
