package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/playwatch/playwatch/internal/collector"
	"github.com/playwatch/playwatch/internal/logging"
)

func main() {
	configPath := flag.String("config", "server.yaml", "Path to config file")
	listen := flag.String("listen", "", "Override listen address")
	flag.Parse()

	logger := logging.NewLogger("collector")

	cfg, err := collector.LoadConfig(*configPath)
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	logging.SetLevel(cfg.LogLevel)

	if *listen != "" {
		cfg.Listen = *listen
	}

	store, err := collector.OpenStore(cfg.DBPath)
	if err != nil {
		logger.Fatalf("Failed to open database %s: %v", cfg.DBPath, err)
	}
	defer store.Close()

	store.LogCounts(context.Background())

	mux := http.NewServeMux()
	collector.NewServer(store, cfg.Secret).SetupRoutes(mux)

	server := &http.Server{
		Addr:    cfg.Listen,
		Handler: mux,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("Shutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	logger.Infof("Listening on %s", cfg.Listen)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("Server error: %v", err)
	}
}
