// ABOUTME: Bubbletea model for the discovery browser TUI
// ABOUTME: Keeps the list of running servers and reacts to feed records and keys
package ui

import (
	"context"
	"fmt"
	"slices"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/collabnet/svnedge-discovery/internal/version"
	"github.com/collabnet/svnedge-discovery/pkg/discovery"
)

// RecordMsg carries one record read from the feed
type RecordMsg struct {
	Record discovery.ServerRecord
}

// FeedClosedMsg is sent once the feed has nothing more to deliver
type FeedClosedMsg struct{}

// LaunchedMsg reports the outcome of opening a server URL
type LaunchedMsg struct {
	URL string
	Err error
}

// Model represents the TUI state
type Model struct {
	// Source
	feed        *discovery.Feed
	serviceType string
	bind        string
	launch      func(url string) error

	// Servers
	servers []discovery.ServerRecord
	cursor  int

	// Stats
	ups   int
	downs int

	// Status line
	status string

	// Debug
	showDebug bool
	lastEvent string

	// Dimensions
	width  int
	height int
}

// Init starts reading the feed
func (m Model) Init() tea.Cmd {
	return waitForRecord(m.feed)
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case RecordMsg:
		m.applyRecord(msg.Record)
		return m, waitForRecord(m.feed)
	case FeedClosedMsg:
		m.status = "Discovery stopped"
	case LaunchedMsg:
		if msg.Err != nil {
			m.status = fmt.Sprintf("Could not open %s: %v", msg.URL, msg.Err)
		} else {
			m.status = "Opened " + msg.URL
		}
	}

	return m, nil
}

// View renders the TUI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	s := ""
	s += m.renderHeader()
	s += m.renderServers()
	s += m.renderStats()

	if m.showDebug {
		s += m.renderDebug()
	}

	s += m.renderHelp()

	return s
}

// renderHeader renders what is being observed
func (m Model) renderHeader() string {
	bind := m.bind
	if bind == "" {
		bind = "all interfaces"
	}

	return fmt.Sprintf(`┌─ %-50s ┐
│ Type:   %-45s │
│ Bind:   %-45s │
├──────────────────────────────────────────────────────┤
`, truncate(version.Product+" "+version.Version, 50), truncate(m.serviceType, 45), truncate(bind, 45))
}

// renderServers renders the running servers with the cursor
func (m Model) renderServers() string {
	if len(m.servers) == 0 {
		return "│ Waiting for servers...                               │\n"
	}

	s := ""
	for i, r := range m.servers {
		marker := " "
		if i == m.cursor {
			marker = ">"
		}
		s += fmt.Sprintf("│ %s %-20s %-29s │\n", marker, truncate(r.ServiceName(), 20), truncate(r.URL(), 29))
	}
	return s
}

// renderStats renders event counters and the status line
func (m Model) renderStats() string {
	return fmt.Sprintf(`├──────────────────────────────────────────────────────┤
│ Running: %-4d Up: %-6d Down: %-17d │
│ %-52s │
`, len(m.servers), m.ups, m.downs, truncate(m.status, 52))
}

// renderHelp renders keyboard shortcuts
func (m Model) renderHelp() string {
	return `│ ↑/↓:Select  enter:Open  d:Debug  q:Quit              │
└──────────────────────────────────────────────────────┘
`
}

// renderDebug renders the selected record and the last event
func (m Model) renderDebug() string {
	s := "│ DEBUG:                                               │\n"
	s += fmt.Sprintf("│   Last: %-44s │\n", truncate(m.lastEvent, 44))
	if sel, ok := m.Selected(); ok {
		s += fmt.Sprintf("│   Addr: %-44s │\n", truncate(sel.HostAddress(), 44))
		for key, v := range sel.Properties() {
			s += fmt.Sprintf("│   %-6s %-44s │\n", truncate(key.String(), 6), truncate(v, 44))
		}
	}
	return s
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.servers)-1 {
			m.cursor++
		}
	case "enter":
		if sel, ok := m.Selected(); ok && m.launch != nil && sel.URL() != "" {
			return m, launchURL(m.launch, sel.URL())
		}
	case "d":
		m.showDebug = !m.showDebug
	}

	return m, nil
}

// applyRecord updates the server list from a feed record
func (m *Model) applyRecord(r discovery.ServerRecord) {
	idx := slices.IndexFunc(m.servers, r.Equal)

	switch r.Event() {
	case discovery.EventRunning:
		m.ups++
		if idx >= 0 {
			m.servers[idx] = r
		} else {
			m.servers = append(m.servers, r)
			slices.SortFunc(m.servers, discovery.ServerRecord.Compare)
		}
	case discovery.EventShutdown:
		m.downs++
		if idx >= 0 {
			m.servers = slices.Delete(m.servers, idx, idx+1)
		}
	}

	if m.cursor >= len(m.servers) {
		m.cursor = max(len(m.servers)-1, 0)
	}
	m.lastEvent = fmt.Sprintf("%s %s", r.Event(), r.ServiceName())
}

// Selected returns the record under the cursor
func (m Model) Selected() (discovery.ServerRecord, bool) {
	if m.cursor < 0 || m.cursor >= len(m.servers) {
		return discovery.ServerRecord{}, false
	}
	return m.servers[m.cursor], true
}

func waitForRecord(feed *discovery.Feed) tea.Cmd {
	if feed == nil {
		return nil
	}
	return func() tea.Msg {
		r, err := feed.Next(context.Background())
		if err != nil {
			return FeedClosedMsg{}
		}
		return RecordMsg{Record: r}
	}
}

func launchURL(launch func(string) error, url string) tea.Cmd {
	return func() tea.Msg {
		return LaunchedMsg{URL: url, Err: launch(url)}
	}
}

func truncate(s string, length int) string {
	runes := []rune(s)
	if len(runes) <= length {
		return s
	}
	return string(runes[:length-3]) + "..."
}
