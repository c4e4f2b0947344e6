package tui

import "github.com/charmbracelet/lipgloss"

// Color palette — warm, readable on dark terminals.
var (
	colorAccent  = lipgloss.Color("#E0A458") // brass
	colorSuccess = lipgloss.Color("#50C878") // emerald
	colorWarning = lipgloss.Color("#FFB347") // pastel orange
	colorError   = lipgloss.Color("#FF6961") // pastel red
	colorMuted   = lipgloss.Color("#808080") // gray
	colorBorder  = lipgloss.Color("#4A3A2C") // subtle border
	colorTitle   = lipgloss.Color("#F5D7A1") // light brass for titles
)

// Tab bar styles.
var (
	styleTabActive = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#1A1A1A")).
			Background(colorAccent).
			Padding(0, 2)

	styleTabInactive = lipgloss.NewStyle().
				Foreground(colorMuted).
				Padding(0, 2)

	styleTabBar = lipgloss.NewStyle().
			BorderBottom(true).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottomForeground(colorBorder).
			MarginBottom(1)
)

// Status indicator styles.
var (
	styleOK   = lipgloss.NewStyle().Foreground(colorSuccess).Bold(true)
	styleWarn = lipgloss.NewStyle().Foreground(colorWarning).Bold(true)
	styleErr  = lipgloss.NewStyle().Foreground(colorError).Bold(true)
	styleDim  = lipgloss.NewStyle().Foreground(colorMuted)
)

// Text styles.
var (
	styleBold   = lipgloss.NewStyle().Bold(true)
	styleLabel  = lipgloss.NewStyle().Foreground(colorMuted).Width(12)
	styleValue  = lipgloss.NewStyle().Bold(true)
	styleHint   = lipgloss.NewStyle().Foreground(colorMuted).Italic(true)
	styleKey    = lipgloss.NewStyle().Foreground(colorAccent).Bold(true)
	styleHeader = lipgloss.NewStyle().Bold(true).Foreground(colorTitle).MarginBottom(1)
)

// Status bar (bottom of screen).
var styleStatusBar = lipgloss.NewStyle().
	Foreground(colorMuted).
	Padding(0, 1)

func statusIcon(status string) string {
	switch status {
	case "closed", "done":
		return styleOK.Render("✓")
	case "open":
		return styleWarn.Render("●")
	case "in_progress", "in-progress":
		return styleOK.Render("▶")
	case "blocked":
		return styleErr.Render("✗")
	default:
		return styleDim.Render("•")
	}
}
