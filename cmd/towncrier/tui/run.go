package tui

import (
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// Run launches the dashboard TUI, refreshing via fetcher at interval.
func Run(fetcher Fetcher, interval time.Duration) {
	p := tea.NewProgram(
		NewModel(fetcher, interval),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)
	if _, err := p.Run(); err != nil {
		fmt.Printf("Error running dashboard: %v\n", err)
		os.Exit(1)
	}
}
