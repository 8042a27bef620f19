package tui

import "github.com/charmbracelet/lipgloss"

// Severity-keyed palette shared by the log viewer, the patterns panel and
// the counts chart, matching the colors a terminal log tool conventionally
// assigns to each level.
var (
	ColorGray   = lipgloss.Color("240")
	ColorWhite  = lipgloss.Color("255")
	ColorBlue   = lipgloss.Color("39")
	ColorGreen  = lipgloss.Color("78")
	ColorYellow = lipgloss.Color("220")
	ColorOrange = lipgloss.Color("208")
	ColorRed    = lipgloss.Color("196")
	ColorPurple = lipgloss.Color("201")
	ColorNavy   = lipgloss.Color("17")
)

func severityColor(level string) lipgloss.Color {
	switch level {
	case "FATAL", "CRITICAL":
		return ColorPurple
	case "ERROR":
		return ColorRed
	case "WARN":
		return ColorOrange
	case "INFO":
		return ColorBlue
	case "DEBUG":
		return ColorGray
	case "TRACE":
		return ColorGray
	default:
		return ColorWhite
	}
}

var (
	sectionStyle = lipgloss.NewStyle().
		Border(lipgloss.NormalBorder()).
		BorderForeground(ColorNavy)

	activeSectionStyle = lipgloss.NewStyle().
		Border(lipgloss.NormalBorder()).
		BorderForeground(ColorBlue)

	deckTitleStyle = lipgloss.NewStyle().
		Foreground(ColorWhite).
		Bold(true)

	helpStyle = lipgloss.NewStyle().
		Foreground(ColorGray).
		Italic(true)

	statusBarStyle = lipgloss.NewStyle().
		Background(ColorNavy).
		Foreground(ColorWhite)

	tabActiveStyle = lipgloss.NewStyle().
		Foreground(ColorWhite).
		Background(ColorBlue).
		Bold(true).
		Padding(0, 1)

	tabInactiveStyle = lipgloss.NewStyle().
		Foreground(ColorGray).
		Padding(0, 1)
)
