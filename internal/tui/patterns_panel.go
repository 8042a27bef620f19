package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/feedtriage/triage/internal/patterns"
)

// renderPatternsPanel renders the mined log-template panel: a horizontal
// bar per template, ranked by frequency, with a rolling percentage.
func renderPatternsPanel(miner *patterns.Miner, width, height int) string {
	clusters, total := miner.GetStats()
	title := "Log Patterns"
	if total > 0 {
		title = fmt.Sprintf("Log Patterns (%d templates from %d logs)", clusters, total)
	}
	header := deckTitleStyle.Render(title)

	lines := height - 1
	if lines < 1 {
		lines = 1
	}
	if total == 0 {
		return lipgloss.JoinVertical(lipgloss.Left, header, helpStyle.Render("Extracting patterns..."))
	}

	top := miner.GetTopPatterns(lines)
	maxCount := 0
	for _, p := range top {
		if p.Count > maxCount {
			maxCount = p.Count
		}
	}
	templateWidth := width - 26
	if templateWidth < 20 {
		templateWidth = 20
	}

	var rows []string
	for i, p := range top {
		barWidth := 12
		fill := 0
		if maxCount > 0 {
			fill = int(float64(p.Count) * float64(barWidth) / float64(maxCount))
		}
		if fill == 0 && p.Count > 0 {
			fill = 1
		}
		bar := strings.Repeat("█", fill) + strings.Repeat("░", barWidth-fill)

		template := p.Template
		if len(template) > templateWidth {
			template = template[:templateWidth-3] + "..."
		}

		barColor := ColorBlue
		if i < 3 {
			barColor = ColorRed
		} else if i < 6 {
			barColor = ColorOrange
		}

		row := fmt.Sprintf("%s %s │ %s",
			lipgloss.NewStyle().Foreground(barColor).Render(bar),
			lipgloss.NewStyle().Foreground(ColorGray).Render(fmt.Sprintf("%5.1f%%", p.Percentage)),
			lipgloss.NewStyle().Foreground(ColorWhite).Render(template),
		)
		rows = append(rows, row)
	}

	return lipgloss.JoinVertical(lipgloss.Left, header, strings.Join(rows, "\n"))
}
