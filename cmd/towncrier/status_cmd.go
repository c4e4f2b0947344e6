package main

import (
	"fmt"
	"os"

	"github.com/townworks/towncrier/pkg/config"
	"github.com/townworks/towncrier/pkg/dashboard"
)

func statusCmd() {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		return
	}

	configPath := config.GetConfigPath()

	fmt.Printf("%s %s Status\n\n", logo, displayName)

	if _, err := os.Stat(configPath); err == nil {
		fmt.Println("Config:", configPath, "✓")
	} else {
		fmt.Println("Config:", configPath, "✗ (defaults in effect)")
	}

	svc, err := dashboard.NewService(cfg)
	if err != nil {
		fmt.Printf("Town root: ✗ %v\n", err)
		return
	}

	fmt.Println("Town root:", svc.Discovery().Root(), "✓")

	if binPath, err := svc.Client().ResolveBinaryPath(); err == nil {
		fmt.Println("bd binary:", binPath, "✓")
		if v := svc.Client().Version(); v != "" {
			fmt.Println("bd version:", v)
		}
	} else {
		fmt.Println("bd binary: ✗ not found on PATH")
	}

	sources, err := svc.Discovery().Sources()
	if err != nil {
		fmt.Printf("Sources: ✗ %v\n", err)
		return
	}

	fmt.Printf("\nSources (%d):\n", len(sources))
	for _, src := range sources {
		fmt.Printf("  %s\n", src.ID)
		fmt.Printf("    work: %s\n", src.WorkingDir)
		fmt.Printf("    data: %s\n", src.DataDir)
	}
	if len(sources) == 0 {
		fmt.Println("  (none discovered)")
	}
}
