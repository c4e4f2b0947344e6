package tui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/townworks/towncrier/pkg/beads"
	"github.com/townworks/towncrier/pkg/dashboard"
	"github.com/townworks/towncrier/pkg/town"
)

type stubFetcher struct {
	snap dashboard.Snapshot
	err  error
}

func (s *stubFetcher) Fetch(ctx context.Context) (dashboard.Snapshot, error) {
	return s.snap, s.err
}

func sampleSnapshot() dashboard.Snapshot {
	return dashboard.Snapshot{
		Sources: []town.Source{{ID: "town", DataDir: "/srv/town/.beads"}},
		Mail:    []beads.Bead{{ID: "hq-1", Title: "ping", Status: "open", Source: "town"}},
		Convoys: []beads.Bead{{ID: "hq-2", Title: "haul", Status: "in_progress", Source: "town"}},
		Crew:    []beads.Bead{{ID: "hq-3", Title: "polecat", Status: "open", Source: "town"}},
	}
}

// TestModel_SnapshotUpdatesTabs verifies a snapshot message lands in every
// list tab.
func TestModel_SnapshotUpdatesTabs(t *testing.T) {
	m := NewModel(&stubFetcher{}, time.Minute)

	updated, _ := m.Update(snapshotMsg{snapshot: sampleSnapshot()})
	m = updated.(Model)

	if m.snapshot == nil || len(m.snapshot.Mail) != 1 {
		t.Fatal("expected snapshot stored on model")
	}
	if m.loading {
		t.Error("expected loading cleared after snapshot")
	}
	if !strings.Contains(m.mail.render(), "hq-1") {
		t.Error("mail tab missing bead")
	}
	if !strings.Contains(m.convoys.render(), "hq-2") {
		t.Error("convoys tab missing bead")
	}
	if !strings.Contains(m.crew.render(), "hq-3") {
		t.Error("crew tab missing bead")
	}
}

// TestModel_SnapshotErrorKeepsData verifies a failed refresh does not wipe
// the previous snapshot.
func TestModel_SnapshotErrorKeepsData(t *testing.T) {
	m := NewModel(&stubFetcher{}, time.Minute)

	updated, _ := m.Update(snapshotMsg{snapshot: sampleSnapshot()})
	m = updated.(Model)
	updated, _ = m.Update(snapshotMsg{err: errors.New("bd exploded")})
	m = updated.(Model)

	if m.snapshot == nil || len(m.snapshot.Mail) != 1 {
		t.Error("expected stale snapshot retained after error")
	}
	if m.snapshotErr == nil {
		t.Error("expected error recorded")
	}
}

// TestModel_TabNavigation verifies tab and number keys move the cursor.
func TestModel_TabNavigation(t *testing.T) {
	m := NewModel(&stubFetcher{}, time.Minute)

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyTab})
	m = updated.(Model)
	if m.tabIndex() != tabMail {
		t.Errorf("expected mail tab, got %d", m.tabIndex())
	}

	updated, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("4")})
	m = updated.(Model)
	if m.tabIndex() != tabCrew {
		t.Errorf("expected crew tab, got %d", m.tabIndex())
	}

	updated, _ = m.Update(tea.KeyMsg{Type: tea.KeyShiftTab})
	m = updated.(Model)
	if m.tabIndex() != tabConvoys {
		t.Errorf("expected convoys tab, got %d", m.tabIndex())
	}
}

// TestModel_RefreshKey verifies 'r' triggers a fetch only when idle.
func TestModel_RefreshKey(t *testing.T) {
	m := NewModel(&stubFetcher{}, time.Minute)
	m.loading = false

	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	m = updated.(Model)
	if cmd == nil {
		t.Error("expected refresh command when idle")
	}
	if !m.loading {
		t.Error("expected loading set")
	}

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	if cmd != nil {
		t.Error("expected no refresh while already loading")
	}
}

// TestView_PartialWarning verifies the overview surfaces partial passes.
func TestView_PartialWarning(t *testing.T) {
	snap := sampleSnapshot()
	snap.Partial = true

	out := NewOverviewModel().View(&snap, 80)
	if !strings.Contains(out, "Some sources failed") {
		t.Error("expected partial warning in overview")
	}
}

func TestFormatAge(t *testing.T) {
	cases := []struct {
		d    time.Duration
		want string
	}{
		{30 * time.Second, "30s"},
		{5 * time.Minute, "5m"},
		{3 * time.Hour, "3h"},
		{49 * time.Hour, "2d"},
		{-time.Second, "now"},
	}
	for _, tc := range cases {
		if got := formatAge(tc.d); got != tc.want {
			t.Errorf("formatAge(%s) = %q, want %q", tc.d, got, tc.want)
		}
	}
}
