package main

import (
	"strings"
	"testing"
	"time"

	"github.com/townworks/towncrier/pkg/beads"
)

func TestRenderBeadTable(t *testing.T) {
	updated := time.Now().Add(-10 * time.Minute)
	items := []beads.Bead{
		{ID: "hq-1", Title: "heartbeat late", Status: "open", Priority: 1, Source: "gastown", Assignee: "mayor", UpdatedAt: &updated},
		{ID: "bd-2", Title: "refactor queue", Status: "in_progress", Priority: 2, Source: "town"},
	}

	out := renderBeadTable(items)
	if !strings.Contains(out, "hq-1") || !strings.Contains(out, "heartbeat late") {
		t.Errorf("missing first row: %s", out)
	}
	if !strings.Contains(out, "gastown") {
		t.Errorf("missing source column: %s", out)
	}
	if !strings.Contains(out, "assigned: mayor") {
		t.Errorf("missing assignee line: %s", out)
	}
}

func TestRenderBeadTable_Empty(t *testing.T) {
	if out := renderBeadTable(nil); !strings.Contains(out, "(empty)") {
		t.Errorf("unexpected empty render: %q", out)
	}
}

func TestInvokedCLIName(t *testing.T) {
	if got := invokedCLIName(); !strings.HasPrefix(got, cliName) {
		t.Errorf("unexpected CLI name: %q", got)
	}
}
