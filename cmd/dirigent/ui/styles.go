// Package ui holds the visual styling for the dirigent console.
package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Semantic colors shared by all components.
var (
	Primary     = lipgloss.Color("#5865F2") // blurple
	Accent      = lipgloss.Color("#57F287") // green
	Destructive = lipgloss.Color("#ED4245") // red
	MutedColor  = lipgloss.Color("245")
	BorderColor = lipgloss.Color("240")
)

// Styles holds the styled components of the console.
type Styles struct {
	Header  lipgloss.Style
	Badge   lipgloss.Style
	Muted   lipgloss.Style
	Bold    lipgloss.Style
	Error   lipgloss.Style
	Success lipgloss.Style
	Spinner lipgloss.Style
	Input   lipgloss.Style
	Divider lipgloss.Style

	UserLabel lipgloss.Style
	BotLabel  lipgloss.Style
}

// DefaultStyles builds the console styles.
func DefaultStyles() Styles {
	return Styles{
		Header: lipgloss.NewStyle().
			Background(Primary).
			Foreground(lipgloss.Color("#ffffff")).
			Padding(0, 2).
			Bold(true),

		Badge: lipgloss.NewStyle().
			Background(Accent).
			Foreground(lipgloss.Color("#000000")).
			Padding(0, 1),

		Muted: lipgloss.NewStyle().
			Foreground(MutedColor),

		Bold: lipgloss.NewStyle().
			Bold(true),

		Error: lipgloss.NewStyle().
			Foreground(Destructive).
			Bold(true),

		Success: lipgloss.NewStyle().
			Foreground(Accent).
			Bold(true),

		Spinner: lipgloss.NewStyle().
			Foreground(Accent),

		Input: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(BorderColor).
			Padding(0, 1),

		Divider: lipgloss.NewStyle().
			Foreground(BorderColor),

		UserLabel: lipgloss.NewStyle().
			Foreground(Primary).
			Bold(true).
			MarginTop(1),

		BotLabel: lipgloss.NewStyle().
			Foreground(Accent).
			Bold(true).
			MarginTop(1),
	}
}

// RenderDivider returns a horizontal rule of the given width.
func (s Styles) RenderDivider(width int) string {
	if width <= 0 {
		return ""
	}
	return s.Divider.Render(strings.Repeat("─", width))
}
