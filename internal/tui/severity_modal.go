package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var severityLevels = []string{"FATAL", "CRITICAL", "ERROR", "WARN", "INFO", "DEBUG", "TRACE", "UNKNOWN"}

// SeverityFilterModal lets the user toggle which severity levels are shown
// in the active tab's log viewer. Changes apply live; Esc restores the
// filter state as it was when the modal opened.
type SeverityFilterModal struct {
	filter   map[string]bool
	original map[string]bool
	selected int
}

// NewSeverityFilterModal opens a modal over filter, a shared
// level->enabled map owned by the page.
func NewSeverityFilterModal(filter map[string]bool) *SeverityFilterModal {
	original := make(map[string]bool, len(filter))
	for k, v := range filter {
		original[k] = v
	}
	return &SeverityFilterModal{filter: filter, original: original}
}

func (s *SeverityFilterModal) ID() string { return "severityfilter" }

func (s *SeverityFilterModal) Update(msg tea.Msg) (bool, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return false, nil
	}
	totalItems := len(severityLevels) + 3 // "Select All", "Select None", separator

	switch keyMsg.String() {
	case "ctrl+c":
		return false, tea.Quit
	case "up", "k":
		if s.selected > 0 {
			s.selected--
			if s.selected == 2 {
				s.selected = 1
			}
		}
	case "down", "j":
		if s.selected < totalItems-1 {
			s.selected++
			if s.selected == 2 {
				s.selected = 3
			}
		}
	case " ":
		s.toggle()
	case "enter":
		if s.selected == 0 {
			s.setAll(true)
		} else if s.selected == 1 {
			s.setAll(false)
		}
		return true, nil
	case "esc", "escape":
		for k, v := range s.original {
			s.filter[k] = v
		}
		return true, nil
	}
	return false, nil
}

func (s *SeverityFilterModal) toggle() {
	switch {
	case s.selected == 0:
		s.setAll(true)
	case s.selected == 1:
		s.setAll(false)
	case s.selected >= 3:
		idx := s.selected - 3
		if idx < len(severityLevels) {
			lvl := severityLevels[idx]
			s.filter[lvl] = !s.filter[lvl]
		}
	}
}

func (s *SeverityFilterModal) setAll(enabled bool) {
	for _, lvl := range severityLevels {
		s.filter[lvl] = enabled
	}
}

func (s *SeverityFilterModal) View(width, height int) string {
	var b strings.Builder
	b.WriteString("Toggle severity levels to show. Space: toggle, Enter: apply, Esc: cancel.\n\n")

	items := []string{"[ Select All ]", "[ Select None ]", "────────────────"}
	items = append(items, severityLevels...)

	for i, item := range items {
		if item == "────────────────" {
			b.WriteString(item + "\n")
			continue
		}
		cursor := "  "
		if i == s.selected {
			cursor = "> "
		}
		if i >= 3 {
			lvl := severityLevels[i-3]
			box := "[ ]"
			if s.filter[lvl] {
				box = "[x]"
			}
			style := lipgloss.NewStyle().Foreground(severityColor(lvl))
			fmt.Fprintf(&b, "%s%s %s\n", cursor, box, style.Render(lvl))
		} else {
			fmt.Fprintf(&b, "%s%s\n", cursor, item)
		}
	}

	content := lipgloss.NewStyle().Width(40).Render(b.String())
	modal := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorBlue).
		Padding(1, 2).
		Render(content)
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, modal)
}
