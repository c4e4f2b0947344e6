// TownCrier - Multi-rig town monitoring dashboard
// License: MIT

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/townworks/towncrier/pkg/config"
	"github.com/townworks/towncrier/pkg/logger"
)

var (
	version   = "dev"
	buildTime string
	goVersion string
)

const logo = "📯"
const displayName = "TownCrier"
const cliName = "towncrier"

func invokedCLIName() string {
	if len(os.Args) == 0 {
		return cliName
	}
	base := strings.ToLower(filepath.Base(os.Args[0]))
	if strings.HasPrefix(base, cliName) {
		return base
	}
	return cliName
}

func printVersion() {
	fmt.Printf("%s %s v%s\n", logo, displayName, version)
	if buildTime != "" {
		fmt.Printf("  Build: %s\n", buildTime)
	}
	goVer := goVersion
	if goVer == "" {
		goVer = runtime.Version()
	}
	if goVer != "" {
		fmt.Printf("  Go: %s\n", goVer)
	}
}

func loadConfig() (*config.Config, error) {
	return config.LoadFrom(config.GetConfigPath())
}

func main() {
	if os.Getenv("TOWNCRIER_DEBUG") != "" {
		logger.SetLevel(logger.DEBUG)
	}

	if len(os.Args) < 2 {
		dashCmd()
		return
	}

	command := os.Args[1]

	switch command {
	case "dash":
		dashCmd()
	case "status":
		statusCmd()
	case "mail":
		mailCmd()
	case "convoys":
		convoysCmd()
	case "crew":
		crewCmd()
	case "serve":
		serveCmd()
	case "backup":
		backupCmd()
	case "version", "--version", "-v":
		printVersion()
	case "help", "--help", "-h":
		printHelp()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printHelp()
		os.Exit(1)
	}
}

func printHelp() {
	commandName := invokedCLIName()
	fmt.Printf("%s %s - Town monitoring dashboard v%s\n\n", logo, displayName, version)
	fmt.Printf("Usage: %s <command>\n", commandName)
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  dash        Open the interactive dashboard (default)")
	fmt.Println("  status      Show discovered sources and bd health")
	fmt.Println("  mail        List in-flight messages across the town")
	fmt.Println("  convoys     List open convoys across the town")
	fmt.Println("  crew        List agents on the roster")
	fmt.Println("  serve       Run the polling gateway (HTTP + websocket)")
	fmt.Println("  backup      Archive config and command audit logs")
	fmt.Println("  version     Show version information")
	fmt.Println()
	fmt.Println("Environment:")
	fmt.Println("  TOWNCRIER_TOWN_ROOT   Town root directory")
	fmt.Println("  TOWNCRIER_BD_BINARY   Path to the bd binary")
	fmt.Println("  TOWNCRIER_DEBUG       Enable debug logging")
}
