package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/townworks/towncrier/pkg/dashboard"
	"github.com/townworks/towncrier/pkg/gateway"
	"github.com/townworks/towncrier/pkg/logger"
	"github.com/townworks/towncrier/pkg/poll"
)

func serveCmd() {
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

	poller, err := poll.New(svc.Fetch, poll.Options{
		Interval: cfg.Interval(),
		Cron:     cfg.RefreshCron,
	})
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.InfoC("serve", "shutting down")
		cancel()
	}()

	poller.Start(ctx)
	defer poller.Close()

	srv := gateway.New(cfg.Gateway.Addr, poller)
	fmt.Printf("%s %s gateway on http://%s\n", logo, displayName, cfg.Gateway.Addr)
	if err := srv.Run(ctx); err != nil {
		fmt.Printf("Gateway error: %v\n", err)
		os.Exit(1)
	}
}
