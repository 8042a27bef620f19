package tui

import (
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

const helpModalContent = `Triage Help

NAVIGATION
  up/down or k/j    Move selection in the log viewer
  Home / End        Jump to the oldest / latest buffered entry
  PgUp / PgDn       Page through the log viewer
  [ / ]             Switch tab (Main, Freeze, Correlate...)
  Enter             Open a Correlate tab on the selected entry's trace
  w                 Close the active tab (Main cannot be closed)

SEARCH
  /                 Edit the search text and greed (fuzziness, 0-10)
  + / -             Raise / lower greed while editing search
  Esc               Cancel editing without applying

FILTERS
  Ctrl+f            Open the severity filter modal
  z                 Open a Freeze tab pinned to the selected entry's producer
  c                 Open a Correlate tab on the selected entry's trace id

OTHER
  p                 Toggle the mined log-pattern panel
  Space             Pause / resume the live tail
  ?                 Toggle this help
  q / Ctrl+C        Quit
`

// HelpModal is a static, scrollable help screen.
type HelpModal struct {
	vp viewport.Model
}

// NewHelpModal creates a help modal with a fresh viewport.
func NewHelpModal() *HelpModal {
	return &HelpModal{vp: viewport.New(0, 0)}
}

func (h *HelpModal) ID() string { return "help" }

func (h *HelpModal) Update(msg tea.Msg) (bool, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "esc", "escape", "?":
			return true, nil
		case "ctrl+c":
			return false, tea.Quit
		}
	}
	var cmd tea.Cmd
	h.vp, cmd = h.vp.Update(msg)
	return false, cmd
}

func (h *HelpModal) View(width, height int) string {
	return renderModalFrame(&h.vp, "Help", helpModalContent, width, height)
}
