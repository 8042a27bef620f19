package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/lipgloss"
)

// renderModalFrame lays out a titled, scrollable, bordered modal centered
// in the given terminal dimensions.
func renderModalFrame(vp *viewport.Model, title, content string, width, height int) string {
	modalWidth := width - 8
	modalHeight := height - 6
	if modalWidth < 20 {
		modalWidth = 20
	}
	if modalHeight < 6 {
		modalHeight = 6
	}

	contentWidth := modalWidth - 4
	contentHeight := modalHeight - 4

	vp.Width = contentWidth
	vp.Height = contentHeight
	vp.SetContent(content)

	contentPane := lipgloss.NewStyle().
		Width(contentWidth).
		Height(contentHeight).
		Border(lipgloss.NormalBorder()).
		BorderForeground(ColorGray).
		Render(vp.View())

	header := lipgloss.NewStyle().
		Width(contentWidth).
		Foreground(ColorBlue).
		Bold(true).
		Render(title)

	statusBar := renderModalStatusBar()

	modal := lipgloss.JoinVertical(lipgloss.Left, header, contentPane, statusBar)

	finalModal := lipgloss.NewStyle().
		Width(modalWidth).
		Height(modalHeight).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorBlue).
		Render(modal)

	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, finalModal)
}

func renderModalStatusBar() string {
	statusItems := []string{"up/down: Scroll", "PgUp/PgDn: Page", "ESC: Close"}
	return lipgloss.NewStyle().Foreground(ColorGray).Render(strings.Join(statusItems, " | "))
}
