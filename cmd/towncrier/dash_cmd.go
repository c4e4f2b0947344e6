package main

import (
	"fmt"
	"os"

	"github.com/townworks/towncrier/cmd/towncrier/tui"
	"github.com/townworks/towncrier/pkg/dashboard"
)

func dashCmd() {
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

	tui.Run(svc, cfg.Interval())
}
