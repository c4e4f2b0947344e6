package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/townworks/towncrier/pkg/beads"
)

// ListModel renders one aggregated view (mail, convoys or crew) in a
// scrollable viewport.
type ListModel struct {
	title    string
	empty    string
	beads    []beads.Bead
	viewport viewport.Model
	nowFn    func() time.Time
}

func NewListModel(title, empty string) ListModel {
	vp := viewport.New(60, 20)
	vp.SetContent(styleDim.Render("  Waiting for first refresh..."))
	return ListModel{title: title, empty: empty, viewport: vp, nowFn: time.Now}
}

func (m ListModel) Update(msg tea.KeyMsg) (ListModel, tea.Cmd) {
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// SetBeads replaces the list content and scrolls back to the top.
func (m *ListModel) SetBeads(items []beads.Bead) {
	m.beads = items
	m.viewport.SetContent(m.render())
	m.viewport.GotoTop()
}

func (m *ListModel) HandleResize(width, height int) {
	w := width - 6
	if w < 50 {
		w = 50
	}
	h := height - 9
	if h < 5 {
		h = 5
	}
	m.viewport.Width = w
	m.viewport.Height = h
}

func (m ListModel) View(width int) string {
	var b strings.Builder
	b.WriteString(" " + styleHeader.Render(m.title) + "\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n\n")
	b.WriteString(fmt.Sprintf("  %s Refresh   ", styleKey.Render("[r]")))
	b.WriteString(styleHint.Render("Scroll with arrow keys"))
	return b.String()
}

func (m ListModel) render() string {
	if len(m.beads) == 0 {
		return styleDim.Render("  " + m.empty)
	}

	var b strings.Builder
	for _, bead := range m.beads {
		age := formatAge(m.nowFn().Sub(bead.LastTouched()))
		line := fmt.Sprintf("  %s %s  %s",
			statusIcon(bead.Status),
			styleBold.Render(padRight(bead.ID, 14)),
			bead.Title,
		)
		b.WriteString(line)
		b.WriteString("\n")
		meta := fmt.Sprintf("      p%d · %s · %s · %s",
			bead.Priority, bead.Status, bead.Source, age)
		if bead.Assignee != "" {
			meta += " · " + bead.Assignee
		}
		b.WriteString(styleDim.Render(meta))
		b.WriteString("\n")
	}
	return b.String()
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

// formatAge renders a duration the way people read dashboards: the largest
// unit that is non-zero, one unit only.
func formatAge(d time.Duration) string {
	switch {
	case d < 0:
		return "now"
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}
