package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the key bindings for the triage page.
type KeyMap struct {
	Quit      key.Binding
	ForceQuit key.Binding
	Help      key.Binding
	Escape    key.Binding

	Up       key.Binding
	Down     key.Binding
	Home     key.Binding
	End      key.Binding
	PageUp   key.Binding
	PageDown key.Binding
	Enter    key.Binding

	NextTab key.Binding
	PrevTab key.Binding

	Search         key.Binding
	GreedUp        key.Binding
	GreedDown      key.Binding
	SeverityFilter key.Binding
	Pause          key.Binding
	Patterns       key.Binding
	Freeze         key.Binding
	Correlate      key.Binding
	CloseTab       key.Binding
}

// DefaultKeyMap returns the default key bindings for the triage page.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Quit:      key.NewBinding(key.WithKeys("q"), key.WithHelp("q", "quit")),
		ForceQuit: key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "force quit")),
		Help:      key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Escape:    key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "close/cancel")),

		Up:       key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:     key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Home:     key.NewBinding(key.WithKeys("home"), key.WithHelp("home", "top")),
		End:      key.NewBinding(key.WithKeys("end"), key.WithHelp("end", "latest")),
		PageUp:   key.NewBinding(key.WithKeys("pgup"), key.WithHelp("pgup", "page up")),
		PageDown: key.NewBinding(key.WithKeys("pgdown"), key.WithHelp("pgdn", "page down")),
		Enter:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "open correlate tab")),

		NextTab: key.NewBinding(key.WithKeys("]", "tab"), key.WithHelp("]", "next tab")),
		PrevTab: key.NewBinding(key.WithKeys("[", "shift+tab"), key.WithHelp("[", "prev tab")),

		Search:         key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
		GreedUp:        key.NewBinding(key.WithKeys("+")),
		GreedDown:      key.NewBinding(key.WithKeys("-")),
		SeverityFilter: key.NewBinding(key.WithKeys("ctrl+f"), key.WithHelp("ctrl+f", "severity filter")),
		Pause:          key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "pause/resume")),
		Patterns:       key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "patterns")),
		Freeze:         key.NewBinding(key.WithKeys("z"), key.WithHelp("z", "freeze on selected producer")),
		Correlate:      key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "correlate on selected field")),
		CloseTab:       key.NewBinding(key.WithKeys("w"), key.WithHelp("w", "close tab")),
	}
}
