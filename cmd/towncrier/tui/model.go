package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/townworks/towncrier/pkg/dashboard"
)

// Tab logical IDs.
const (
	tabOverview = 0
	tabMail     = 1
	tabConvoys  = 2
	tabCrew     = 3
)

type tabEntry struct {
	name string
	id   int
}

// Messages.
type snapshotMsg struct {
	snapshot dashboard.Snapshot
	err      error
}
type tickMsg time.Time

// Fetcher runs one dashboard pass. *dashboard.Service satisfies it.
type Fetcher interface {
	Fetch(ctx context.Context) (dashboard.Snapshot, error)
}

// Model is the root TUI model.
type Model struct {
	fetcher  Fetcher
	interval time.Duration

	tabs      []tabEntry
	activeTab int
	width     int
	height    int

	snapshot    *dashboard.Snapshot
	snapshotErr error
	loading     bool
	spinner     spinner.Model
	lastRefresh time.Time

	overview OverviewModel
	mail     ListModel
	convoys  ListModel
	crew     ListModel
}

func NewModel(fetcher Fetcher, interval time.Duration) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(colorAccent)

	return Model{
		fetcher:  fetcher,
		interval: interval,
		tabs: []tabEntry{
			{"Overview", tabOverview},
			{"Mail", tabMail},
			{"Convoys", tabConvoys},
			{"Crew", tabCrew},
		},
		spinner:  s,
		loading:  true,
		overview: NewOverviewModel(),
		mail:     NewListModel("Mail", "No messages in flight."),
		convoys:  NewListModel("Convoys", "No open convoys."),
		crew:     NewListModel("Crew", "No agents on the roster."),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		fetchSnapshotCmd(m.fetcher),
		tickCmd(),
	)
}

func (m Model) tabIndex() int {
	if m.activeTab < len(m.tabs) {
		return m.tabs[m.activeTab].id
	}
	return tabOverview
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.mail.HandleResize(m.width, m.height)
		m.convoys.HandleResize(m.width, m.height)
		m.crew.HandleResize(m.width, m.height)
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "tab":
			m.activeTab = (m.activeTab + 1) % len(m.tabs)
			return m, nil
		case "shift+tab":
			m.activeTab = (m.activeTab - 1 + len(m.tabs)) % len(m.tabs)
			return m, nil
		case "1", "2", "3", "4":
			m.activeTab = int(msg.String()[0] - '1')
			return m, nil
		case "r":
			if !m.loading {
				m.loading = true
				return m, tea.Batch(m.spinner.Tick, fetchSnapshotCmd(m.fetcher))
			}
			return m, nil
		}

		// Delegate scrolling to the active list tab.
		var cmd tea.Cmd
		switch m.tabIndex() {
		case tabMail:
			m.mail, cmd = m.mail.Update(msg)
		case tabConvoys:
			m.convoys, cmd = m.convoys.Update(msg)
		case tabCrew:
			m.crew, cmd = m.crew.Update(msg)
		}
		return m, cmd

	case snapshotMsg:
		m.loading = false
		m.lastRefresh = time.Now()
		if msg.err != nil {
			m.snapshotErr = msg.err
			return m, nil
		}
		m.snapshotErr = nil
		snap := msg.snapshot
		m.snapshot = &snap
		m.mail.SetBeads(snap.Mail)
		m.convoys.SetBeads(snap.Convoys)
		m.crew.SetBeads(snap.Crew)
		return m, nil

	case tickMsg:
		if !m.loading && time.Since(m.lastRefresh) >= m.interval {
			m.loading = true
			return m, tea.Batch(m.spinner.Tick, fetchSnapshotCmd(m.fetcher), tickCmd())
		}
		return m, tickCmd()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	var b strings.Builder

	header := lipgloss.NewStyle().Bold(true).Foreground(colorAccent).Render("📯 TownCrier")
	b.WriteString(header)
	b.WriteString("\n")
	b.WriteString(m.renderTabBar())
	b.WriteString("\n")

	contentWidth := m.width - 2
	if contentWidth < 40 {
		contentWidth = 40
	}

	if m.loading && m.snapshot == nil {
		b.WriteString(fmt.Sprintf("\n  %s Polling the town...\n", m.spinner.View()))
	} else if m.snapshotErr != nil && m.snapshot == nil {
		b.WriteString("\n  " + styleErr.Render("✗ "+m.snapshotErr.Error()) + "\n")
	} else {
		switch m.tabIndex() {
		case tabOverview:
			b.WriteString(m.overview.View(m.snapshot, contentWidth))
		case tabMail:
			b.WriteString(m.mail.View(contentWidth))
		case tabConvoys:
			b.WriteString(m.convoys.View(contentWidth))
		case tabCrew:
			b.WriteString(m.crew.View(contentWidth))
		}
	}

	rendered := b.String()
	lines := strings.Count(rendered, "\n") + 1
	for lines < m.height-1 {
		rendered += "\n"
		lines++
	}
	rendered += m.renderStatusBar()

	return rendered
}

func (m Model) renderTabBar() string {
	var cells []string
	for i, t := range m.tabs {
		if i == m.activeTab {
			cells = append(cells, styleTabActive.Render(t.name))
		} else {
			cells = append(cells, styleTabInactive.Render(t.name))
		}
	}
	row := lipgloss.JoinHorizontal(lipgloss.Top, cells...)
	return styleTabBar.Width(m.width).Render(row)
}

func (m Model) renderStatusBar() string {
	left := ""
	if m.snapshot != nil {
		left = fmt.Sprintf(" Sources: %s", styleValue.Render(fmt.Sprintf("%d", len(m.snapshot.Sources))))
		if m.snapshot.Partial {
			left += "  " + styleWarn.Render("partial")
		}
		if m.snapshotErr != nil {
			left += "  " + styleErr.Render("refresh failed")
		}
		if m.loading {
			left += fmt.Sprintf("  %s", m.spinner.View())
		}
	} else if m.loading {
		left = fmt.Sprintf(" %s Polling...", m.spinner.View())
	}

	right := "Tab: switch  r: refresh  q: quit"
	if !m.lastRefresh.IsZero() {
		ago := time.Since(m.lastRefresh).Truncate(time.Second)
		right = fmt.Sprintf("Updated %s ago | %s", ago, right)
	}

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if gap < 1 {
		gap = 1
	}

	return styleStatusBar.Width(m.width).Render(left + strings.Repeat(" ", gap) + right)
}

func fetchSnapshotCmd(fetcher Fetcher) tea.Cmd {
	return func() tea.Msg {
		snap, err := fetcher.Fetch(context.Background())
		return snapshotMsg{snapshot: snap, err: err}
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(2*time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}
