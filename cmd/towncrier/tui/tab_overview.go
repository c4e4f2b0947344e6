package tui

import (
	"fmt"
	"strings"

	"github.com/townworks/towncrier/pkg/dashboard"
)

// OverviewModel renders the landing tab: discovered sources and headline
// counts per view.
type OverviewModel struct{}

func NewOverviewModel() OverviewModel { return OverviewModel{} }

func (m OverviewModel) View(snap *dashboard.Snapshot, width int) string {
	if snap == nil {
		return styleDim.Render("\n  No data yet.")
	}

	var b strings.Builder

	b.WriteString(" " + styleHeader.Render("Town Overview") + "\n")
	b.WriteString(fmt.Sprintf(" %s %s\n", styleLabel.Render("Sources:"), styleValue.Render(fmt.Sprintf("%d", len(snap.Sources)))))
	b.WriteString(fmt.Sprintf(" %s %s\n", styleLabel.Render("Mail:"), styleValue.Render(fmt.Sprintf("%d", len(snap.Mail)))))
	b.WriteString(fmt.Sprintf(" %s %s\n", styleLabel.Render("Convoys:"), styleValue.Render(fmt.Sprintf("%d", len(snap.Convoys)))))
	b.WriteString(fmt.Sprintf(" %s %s\n", styleLabel.Render("Crew:"), styleValue.Render(fmt.Sprintf("%d", len(snap.Crew)))))
	if snap.BDVersion != "" {
		b.WriteString(fmt.Sprintf(" %s %s\n", styleLabel.Render("bd:"), styleDim.Render(snap.BDVersion)))
	}
	if snap.Partial {
		b.WriteString("\n " + styleWarn.Render("! Some sources failed this pass; counts may be low.") + "\n")
	}

	b.WriteString("\n " + styleBold.Render("Sources") + "\n")
	for _, src := range snap.Sources {
		b.WriteString(fmt.Sprintf("  %s %s\n", styleOK.Render("✓"), styleBold.Render(src.ID)))
		b.WriteString(styleDim.Render("      "+src.DataDir) + "\n")
	}
	if len(snap.Sources) == 0 {
		b.WriteString(styleDim.Render("  No sources discovered. Is the town root right?") + "\n")
	}

	return b.String()
}
