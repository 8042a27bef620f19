package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/feedtriage/triage/internal/patterns"
	"github.com/feedtriage/triage/internal/socketrpc"
)

const maxBufferedEntries = 5000

// clientTab is one open server-side tab plus the connection dedicated to
// long-polling its Next notifications. A dedicated connection per tab
// keeps the blocking Next call from starving the page's other RPCs,
// which all share a single foreground connection.
type clientTab struct {
	id           string
	kind         string
	label        string
	listenClient *socketrpc.Client
	entries      []socketrpc.WireEntry
	results      []socketrpc.WireResult
	queried      bool
	lastErr      string
	closed       bool
}

func (t *clientTab) displayEntries() []socketrpc.WireEntry {
	if t.queried {
		out := make([]socketrpc.WireEntry, len(t.results))
		for i, r := range t.results {
			out[i] = r.Entry
		}
		return out
	}
	return t.entries
}

// TriagePage is the single Bubble Tea page for the terminal client: a tab
// bar over Main/Freeze/Correlate tabs, a scrolling log viewer, a search
// box with an adjustable greed, a severity filter modal, a help modal and
// an optional mined-pattern panel, all driven over a socket RPC
// connection rather than a local query engine — the server owns the
// store, the TUI is a pure client of it.
type TriagePage struct {
	socketPath string
	ctrl       *socketrpc.Client

	width, height int

	tabs      []*clientTab
	activeTab int

	keys  KeyMap
	miner *patterns.Miner

	searchInput  textinput.Model
	searchActive bool
	greed        int

	severityFilter map[string]bool
	modals         modalStack

	showPatterns bool
	showCounts   bool
	selected     int
	autoFollow   bool
	paused       bool

	fatalErr string
}

type tabOpenedMsg struct {
	tab *clientTab
	err error
}

type nextEntriesMsg struct {
	tabID   string
	entries []socketrpc.WireEntry
	lag     bool
	err     error
}

type backfillMsg struct {
	tabID   string
	entries []socketrpc.WireEntry
	err     error
}

type queryResultMsg struct {
	tabID   string
	text    string
	results []socketrpc.WireResult
	err     error
}

type tabClosedMsg struct {
	tabID string
	err   error
}

// NewTriagePage creates a page that will dial socketPath once Init runs.
func NewTriagePage(socketPath string) *TriagePage {
	si := textinput.New()
	si.Placeholder = "search text (greed +/- to adjust fuzziness)"
	si.CharLimit = 256

	return &TriagePage{
		socketPath:     socketPath,
		keys:           DefaultKeyMap(),
		miner:          patterns.New(),
		searchInput:    si,
		greed:          5,
		severityFilter: defaultSeverityFilter(),
		autoFollow:     true,
	}
}

func defaultSeverityFilter() map[string]bool {
	m := make(map[string]bool, len(severityLevels))
	for _, l := range severityLevels {
		m[l] = true
	}
	return m
}

func (p *TriagePage) ID() string { return "triage" }

func (p *TriagePage) Init() tea.Cmd {
	return p.openTabCmd("main", "", "", "")
}

// openTabCmd dials the foreground control connection on first use, opens a
// tab of the given kind, and dials a second connection dedicated to that
// tab's Next long-poll loop.
func (p *TriagePage) openTabCmd(kind, producer, fieldKey, fieldValue string) tea.Cmd {
	return func() tea.Msg {
		if p.ctrl == nil {
			c, err := socketrpc.Dial(p.socketPath)
			if err != nil {
				return tabOpenedMsg{err: fmt.Errorf("dial control connection: %w", err)}
			}
			p.ctrl = c
		}
		res, err := p.ctrl.OpenTab(kind, producer, fieldKey, fieldValue)
		if err != nil {
			return tabOpenedMsg{err: err}
		}
		listen, err := socketrpc.Dial(p.socketPath)
		if err != nil {
			return tabOpenedMsg{err: fmt.Errorf("dial listen connection: %w", err)}
		}
		label := kind
		if producer != "" {
			label = producer
		} else if fieldValue != "" {
			label = fieldValue
		}
		ct := &clientTab{id: res.TabID, kind: kind, label: label, listenClient: listen, entries: res.Initial}
		for _, e := range ct.entries {
			p.miner.AddLogMessage(e.Message)
		}
		return tabOpenedMsg{tab: ct}
	}
}

func listenCmd(ct *clientTab) tea.Cmd {
	return func() tea.Msg {
		res, err := ct.listenClient.Next(ct.id)
		return nextEntriesMsg{tabID: ct.id, entries: res.Entries, lag: res.Lag, err: err}
	}
}

func (p *TriagePage) backfillCmd(tabID string) tea.Cmd {
	return func() tea.Msg {
		entries, err := p.ctrl.Backfill(tabID)
		return backfillMsg{tabID: tabID, entries: entries, err: err}
	}
}

func (p *TriagePage) queryCmd(tabID, text string, greed int) tea.Cmd {
	return func() tea.Msg {
		g := greed
		results, err := p.ctrl.Query(tabID, text, &g)
		return queryResultMsg{tabID: tabID, text: text, results: results, err: err}
	}
}

func (p *TriagePage) closeTabCmd(tabID string) tea.Cmd {
	return func() tea.Msg {
		err := p.ctrl.CloseTab(tabID)
		return tabClosedMsg{tabID: tabID, err: err}
	}
}

func (p *TriagePage) activeClientTab() *clientTab {
	if p.activeTab < 0 || p.activeTab >= len(p.tabs) {
		return nil
	}
	return p.tabs[p.activeTab]
}

func (p *TriagePage) tabIndex(id string) int {
	for i, t := range p.tabs {
		if t.id == id {
			return i
		}
	}
	return -1
}

func (p *TriagePage) Update(msg tea.Msg) (tea.Cmd, *PageNav) {
	if p.modals.active() {
		cmd := p.modals.update(msg)
		return cmd, nil
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		p.width, p.height = msg.Width, msg.Height
		return nil, nil

	case tabOpenedMsg:
		if msg.err != nil {
			p.fatalErr = msg.err.Error()
			return nil, nil
		}
		p.tabs = append(p.tabs, msg.tab)
		p.activeTab = len(p.tabs) - 1
		p.selected = max(0, len(msg.tab.entries)-1)
		return listenCmd(msg.tab), nil

	case nextEntriesMsg:
		idx := p.tabIndex(msg.tabID)
		if idx < 0 {
			return nil, nil
		}
		ct := p.tabs[idx]
		if msg.err != nil {
			ct.lastErr = msg.err.Error()
			ct.closed = true
			return nil, nil
		}
		if msg.lag {
			return p.backfillCmd(ct.id), nil
		}
		if !p.paused {
			p.appendEntries(ct, msg.entries)
		}
		return listenCmd(ct), nil

	case backfillMsg:
		idx := p.tabIndex(msg.tabID)
		if idx < 0 {
			return nil, nil
		}
		ct := p.tabs[idx]
		if msg.err != nil {
			ct.lastErr = msg.err.Error()
			return listenCmd(ct), nil
		}
		p.appendEntries(ct, msg.entries)
		return listenCmd(ct), nil

	case queryResultMsg:
		idx := p.tabIndex(msg.tabID)
		if idx < 0 {
			return nil, nil
		}
		ct := p.tabs[idx]
		if msg.err != nil {
			ct.lastErr = msg.err.Error()
			return nil, nil
		}
		ct.results = msg.results
		ct.queried = msg.text != ""
		p.selected = max(0, len(ct.displayEntries())-1)
		return nil, nil

	case tabClosedMsg:
		idx := p.tabIndex(msg.tabID)
		if idx < 0 {
			return nil, nil
		}
		p.tabs[idx].listenClient.Close()
		p.tabs = append(p.tabs[:idx], p.tabs[idx+1:]...)
		if p.activeTab >= len(p.tabs) {
			p.activeTab = len(p.tabs) - 1
		}
		return nil, nil

	case SpinnerTickMsg:
		if len(p.tabs) == 0 {
			return scheduleSpinnerTick(), nil
		}
		return nil, nil

	case tea.KeyMsg:
		return p.handleKey(msg)
	}
	return nil, nil
}

// appendEntries folds new entries into a tab's buffer, keeping it capped,
// and feeds each message into the pattern miner.
func (p *TriagePage) appendEntries(ct *clientTab, entries []socketrpc.WireEntry) {
	if len(entries) == 0 {
		return
	}
	for _, e := range entries {
		p.miner.AddLogMessage(e.Message)
	}
	ct.entries = append(ct.entries, entries...)
	if len(ct.entries) > maxBufferedEntries {
		ct.entries = ct.entries[len(ct.entries)-maxBufferedEntries:]
	}
	if p.autoFollow {
		p.selected = len(ct.displayEntries()) - 1
	}
}

func (p *TriagePage) handleKey(msg tea.KeyMsg) (tea.Cmd, *PageNav) {
	if p.searchActive {
		return p.handleSearchKey(msg)
	}

	ct := p.activeClientTab()

	switch {
	case key.Matches(msg, p.keys.ForceQuit):
		return tea.Quit, nil
	case key.Matches(msg, p.keys.Quit):
		return tea.Quit, nil
	case key.Matches(msg, p.keys.Help):
		p.modals.push(NewHelpModal())
		return nil, nil
	case key.Matches(msg, p.keys.SeverityFilter):
		p.modals.push(NewSeverityFilterModal(p.severityFilter))
		return nil, nil
	case key.Matches(msg, p.keys.Search):
		p.searchActive = true
		p.searchInput.Focus()
		return textinput.Blink, nil
	case key.Matches(msg, p.keys.Pause):
		p.paused = !p.paused
		return nil, nil
	case key.Matches(msg, p.keys.Patterns):
		p.showPatterns = !p.showPatterns
		return nil, nil
	case msg.String() == "C":
		p.showCounts = !p.showCounts
		return nil, nil
	case key.Matches(msg, p.keys.NextTab):
		if len(p.tabs) > 0 {
			p.activeTab = (p.activeTab + 1) % len(p.tabs)
		}
		return nil, nil
	case key.Matches(msg, p.keys.PrevTab):
		if len(p.tabs) > 0 {
			p.activeTab = (p.activeTab - 1 + len(p.tabs)) % len(p.tabs)
		}
		return nil, nil
	case key.Matches(msg, p.keys.CloseTab):
		if ct != nil && ct.kind != "main" {
			return p.closeTabCmd(ct.id), nil
		}
		return nil, nil
	case key.Matches(msg, p.keys.Freeze):
		if e := p.selectedEntry(); e != nil {
			return p.openTabCmd("freeze", e.Producer, "", ""), nil
		}
		return nil, nil
	case key.Matches(msg, p.keys.Correlate), key.Matches(msg, p.keys.Enter):
		if e := p.selectedEntry(); e != nil {
			if v, ok := e.Fields["trace_id"]; ok && v != "" {
				return p.openTabCmd("correlate", "", "trace_id", v), nil
			}
		}
		return nil, nil
	case key.Matches(msg, p.keys.Up):
		p.moveSelection(-1)
		return nil, nil
	case key.Matches(msg, p.keys.Down):
		p.moveSelection(1)
		return nil, nil
	case key.Matches(msg, p.keys.PageUp):
		p.moveSelection(-10)
		return nil, nil
	case key.Matches(msg, p.keys.PageDown):
		p.moveSelection(10)
		return nil, nil
	case key.Matches(msg, p.keys.Home):
		p.selected = 0
		p.autoFollow = false
		return nil, nil
	case key.Matches(msg, p.keys.End):
		if ct != nil {
			p.selected = len(ct.displayEntries()) - 1
		}
		p.autoFollow = true
		return nil, nil
	}
	return nil, nil
}

func (p *TriagePage) handleSearchKey(msg tea.KeyMsg) (tea.Cmd, *PageNav) {
	switch msg.String() {
	case "ctrl+c":
		return tea.Quit, nil
	case "esc", "escape":
		p.searchActive = false
		p.searchInput.Blur()
		return nil, nil
	case "enter":
		p.searchActive = false
		p.searchInput.Blur()
		if ct := p.activeClientTab(); ct != nil {
			return p.queryCmd(ct.id, p.searchInput.Value(), p.greed), nil
		}
		return nil, nil
	case "+":
		if p.greed < 10 {
			p.greed++
		}
		return nil, nil
	case "-":
		if p.greed > 0 {
			p.greed--
		}
		return nil, nil
	}
	var cmd tea.Cmd
	p.searchInput, cmd = p.searchInput.Update(msg)
	return cmd, nil
}

func (p *TriagePage) moveSelection(delta int) {
	ct := p.activeClientTab()
	if ct == nil {
		return
	}
	n := len(ct.displayEntries())
	if n == 0 {
		return
	}
	p.selected += delta
	p.selected = max(0, min(n-1, p.selected))
	p.autoFollow = p.selected == n-1
}

func (p *TriagePage) selectedEntry() *socketrpc.WireEntry {
	ct := p.activeClientTab()
	if ct == nil {
		return nil
	}
	entries := p.filteredEntries(ct)
	if p.selected < 0 || p.selected >= len(entries) {
		return nil
	}
	return &entries[p.selected]
}

// filteredEntries applies the client-side severity filter to a tab's
// displayed entries (search results when a query has been applied, the
// raw resident/live buffer otherwise).
func (p *TriagePage) filteredEntries(ct *clientTab) []socketrpc.WireEntry {
	all := ct.displayEntries()
	out := make([]socketrpc.WireEntry, 0, len(all))
	for _, e := range all {
		if p.severityFilter[e.Level] {
			out = append(out, e)
		}
	}
	return out
}

func (p *TriagePage) View(width, height int) string {
	p.width, p.height = width, height
	if p.fatalErr != "" {
		return lipgloss.NewStyle().Foreground(ColorRed).Render("triage: " + p.fatalErr)
	}
	if len(p.tabs) == 0 {
		return renderLoadingPlaceholder(width, height)
	}

	tabBar := p.renderTabBar()
	status := p.renderStatusLine()
	bodyHeight := height - lipgloss.Height(tabBar) - lipgloss.Height(status)
	if bodyHeight < 3 {
		bodyHeight = 3
	}

	var body string
	switch {
	case p.showPatterns && p.showCounts:
		half := bodyHeight / 2
		body = lipgloss.JoinVertical(lipgloss.Left,
			p.renderLogView(width, bodyHeight-half),
			renderPatternsPanel(p.miner, width/2, half),
		)
	case p.showPatterns:
		logHeight := bodyHeight * 2 / 3
		body = lipgloss.JoinVertical(lipgloss.Left,
			p.renderLogView(width, logHeight),
			renderPatternsPanel(p.miner, width, bodyHeight-logHeight),
		)
	case p.showCounts:
		logHeight := bodyHeight * 2 / 3
		chartHeight := bodyHeight - logHeight
		data := bucketSeverityCounts(p.activeClientTab().entries, time.Minute, width/3)
		body = lipgloss.JoinVertical(lipgloss.Left,
			p.renderLogView(width, logHeight),
			renderCountsChart(data, width, chartHeight),
		)
	default:
		body = p.renderLogView(width, bodyHeight)
	}

	view := lipgloss.JoinVertical(lipgloss.Left, tabBar, body, status)
	if p.modals.active() {
		return p.modals.top().View(width, height)
	}
	return view
}

func (p *TriagePage) renderTabBar() string {
	var parts []string
	for i, t := range p.tabs {
		label := t.label
		if t.kind == "main" {
			label = "Main"
		}
		if i == p.activeTab {
			parts = append(parts, tabActiveStyle.Render(label))
		} else {
			parts = append(parts, tabInactiveStyle.Render(label))
		}
	}
	return strings.Join(parts, " ")
}

func (p *TriagePage) renderStatusLine() string {
	ct := p.activeClientTab()
	var left string
	if p.searchActive {
		left = fmt.Sprintf("search: %s  greed:%d  (+/-, Enter apply, Esc cancel)", p.searchInput.View(), p.greed)
	} else if ct != nil && ct.queried {
		left = fmt.Sprintf("query %q  greed:%d  %d matches", p.searchInput.Value(), p.greed, len(ct.results))
	} else {
		left = "?: help  /: search  Ctrl+f: severity  z: freeze  c: correlate  p: patterns  C: counts  q: quit"
	}
	if ct != nil && ct.lastErr != "" {
		left += "  " + lipgloss.NewStyle().Foreground(ColorRed).Render("error: "+ct.lastErr)
	}
	if ct != nil && ct.closed {
		left += "  " + lipgloss.NewStyle().Foreground(ColorOrange).Render("(disconnected)")
	}
	if p.paused {
		left = "[PAUSED] " + left
	}
	return statusBarStyle.Width(p.width).Render(left)
}

func (p *TriagePage) renderLogView(width, height int) string {
	ct := p.activeClientTab()
	if ct == nil {
		return renderLoadingPlaceholder(width, height)
	}
	entries := p.filteredEntries(ct)
	if len(entries) == 0 {
		return sectionStyle.Width(width - 2).Height(height).Render(helpStyle.Render("Waiting for log entries..."))
	}

	start := max(0, len(entries)-height)
	if p.selected < len(entries) {
		if p.selected < start {
			start = p.selected
		} else if p.selected >= start+height {
			start = p.selected - height + 1
		}
	}
	end := min(len(entries), start+height)

	var lines []string
	for i := start; i < end; i++ {
		e := entries[i]
		lines = append(lines, formatLogLine(e, width-2, i == p.selected))
	}
	content := strings.Join(lines, "\n")
	style := sectionStyle
	if !p.searchActive {
		style = activeSectionStyle
	}
	return style.Width(width - 2).Height(height).Render(content)
}

func formatLogLine(e socketrpc.WireEntry, width int, selected bool) string {
	ts := e.Timestamp.Format("15:04:05.000")
	levelStyle := lipgloss.NewStyle().Foreground(severityColor(e.Level)).Bold(true)
	prefix := fmt.Sprintf("%s %-5s %-16s ", ts, levelStyle.Render(e.Level), truncate(e.Producer, 16))
	msg := truncate(e.Message, max(0, width-lipgloss.Width(prefix)))
	line := prefix + msg
	if selected {
		return lipgloss.NewStyle().Background(ColorNavy).Render(line)
	}
	return line
}

func truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if len(s) <= width {
		return s
	}
	if width <= 3 {
		return s[:width]
	}
	return s[:width-3] + "..."
}
