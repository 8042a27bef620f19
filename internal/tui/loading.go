package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// renderLoadingPlaceholder renders an animated loading indicator. The frame
// is selected from wall-clock time so it animates on re-render.
func renderLoadingPlaceholder(width, height int) string {
	frame := spinnerFrames[time.Now().UnixMilli()/120%int64(len(spinnerFrames))]
	text := helpStyle.Render(frame + " Loading...")
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, text)
}

// SpinnerTickMsg triggers a re-render for loading spinners.
type SpinnerTickMsg struct{}

func scheduleSpinnerTick() tea.Cmd {
	return tea.Tick(120*time.Millisecond, func(_ time.Time) tea.Msg {
		return SpinnerTickMsg{}
	})
}
