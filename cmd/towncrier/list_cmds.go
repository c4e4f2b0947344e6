package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/townworks/towncrier/pkg/aggregate"
	"github.com/townworks/towncrier/pkg/beads"
	"github.com/townworks/towncrier/pkg/dashboard"
)

func mailCmd() {
	runListCmd("Mail", func(ctx context.Context, svc *dashboard.Service) (aggregate.Result, error) {
		return svc.Mail(ctx)
	})
}

func convoysCmd() {
	runListCmd("Convoys", func(ctx context.Context, svc *dashboard.Service) (aggregate.Result, error) {
		return svc.Convoys(ctx)
	})
}

func crewCmd() {
	runListCmd("Crew", func(ctx context.Context, svc *dashboard.Service) (aggregate.Result, error) {
		return svc.Crew(ctx)
	})
}

func runListCmd(title string, fetch func(context.Context, *dashboard.Service) (aggregate.Result, error)) {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	svc, err := dashboard.NewService(cfg)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	result, err := fetch(ctx, svc)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("%s %s (%d)\n", logo, title, len(result.Beads))
	if result.Partial {
		fmt.Println("! Some sources failed; this list may be incomplete.")
	}
	fmt.Println()
	fmt.Print(renderBeadTable(result.Beads))
}

func renderBeadTable(items []beads.Bead) string {
	if len(items) == 0 {
		return "  (empty)\n"
	}

	var b strings.Builder
	now := time.Now()
	for _, bead := range items {
		age := now.Sub(bead.LastTouched()).Truncate(time.Minute)
		b.WriteString(fmt.Sprintf("  %-14s p%d  %-12s %-10s %s\n",
			bead.ID, bead.Priority, bead.Status, bead.Source, bead.Title))
		if bead.Assignee != "" {
			b.WriteString(fmt.Sprintf("  %-14s assigned: %s, touched %s ago\n", "", bead.Assignee, age))
		}
	}
	return b.String()
}
