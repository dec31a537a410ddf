package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/playwatch/playwatch/internal/config"
	"github.com/playwatch/playwatch/internal/logging"
	"github.com/playwatch/playwatch/internal/procwatch"
	"github.com/playwatch/playwatch/internal/submit"
	"github.com/playwatch/playwatch/internal/version"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to config file")
	flag.Parse()

	logger := logging.NewLogger("agent")

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	logging.SetLevel(cfg.LogLevel)

	store := config.NewStore(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	watcher, err := config.NewWatcher(*configPath, store)
	if err != nil {
		logger.Warnf("Config reloading disabled: %v", err)
	} else {
		defer watcher.Close()
		go watcher.Start(ctx)
	}

	source, err := procwatch.NewOSSource(cfg)
	if err != nil {
		logger.Fatalf("Failed to open process notification feeds: %v", err)
	}
	defer source.Close()

	monitor := procwatch.NewMonitor(store, source, version.NewResolver(), submit.NewClient())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("Shutting down...")
		cancel()
	}()

	if err := monitor.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatalf("Monitor stopped: %v", err)
	}
}
