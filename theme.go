package main

import "github.com/charmbracelet/lipgloss"

// Color is an alias for lipgloss.Color for convenience
type Color = lipgloss.Color

// Brand colors
const (
	colorAccent   Color = "86"  // Cyan - title, spinner, selected checkboxes
	colorSubtitle Color = "245" // Light gray - tagline
)

// UI semantic colors
const (
	colorText    Color = "252" // Default text
	colorMuted   Color = "242" // Gray - secondary text, unselected checkboxes
	colorDanger  Color = "203" // Red - errors, sensitive marker
	colorWarning Color = "214" // Orange - sensitive selections, in-flight status
	colorBorder  Color = "238" // Dark gray - table and box borders
)

// Chip and row highlight colors
const (
	colorChipFg Color = "231" // White on purple
	colorChipBg Color = "62"
	colorRowFg  Color = "229" // Cursor row
	colorRowBg  Color = "57"
)

type styles struct {
	base      lipgloss.Style
	header    lipgloss.Style
	title     lipgloss.Style
	subtitle  lipgloss.Style
	status    lipgloss.Style
	muted     lipgloss.Style
	accent    lipgloss.Style
	danger    lipgloss.Style
	warning   lipgloss.Style
	chip      lipgloss.Style
	container lipgloss.Style
}

var ui = styles{
	base: lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(colorBorder),
	container: lipgloss.NewStyle().Padding(0, 1),
	header:    lipgloss.NewStyle().Padding(0, 1),
	title:     lipgloss.NewStyle().Foreground(colorAccent).Bold(true),
	subtitle:  lipgloss.NewStyle().Foreground(colorSubtitle),
	status:    lipgloss.NewStyle().Foreground(colorText),
	muted:     lipgloss.NewStyle().Foreground(colorMuted),
	accent:    lipgloss.NewStyle().Foreground(colorAccent).Bold(true),
	danger:    lipgloss.NewStyle().Foreground(colorDanger).Bold(true),
	warning:   lipgloss.NewStyle().Foreground(colorWarning).Bold(true),
	chip:      lipgloss.NewStyle().Foreground(colorChipFg).Background(colorChipBg).Padding(0, 1),
}
