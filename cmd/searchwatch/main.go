package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"searchwatch/internal/api"
	"searchwatch/internal/config"
	"searchwatch/internal/ingest"
	"searchwatch/internal/logging"
	"searchwatch/internal/notify"
	"searchwatch/internal/storage"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "", "path to config file (yaml or json)")
	logText := flag.Bool("log-text", false, "log as text instead of JSON")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("searchwatch " + version)
		return
	}

	cfg := config.DefaultConfig()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "config: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	logger := logging.NewLogger(cfg.LogLevel, *logText)

	store, err := storage.NewStore(cfg.Storage)
	if err != nil {
		logger.Error("store open failed", "driver", cfg.Storage.Driver, "err", err)
		os.Exit(1)
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := store.Init(ctx); err != nil {
		logger.Error("store init failed", "err", err)
		os.Exit(1)
	}

	ingest.StartKafka(ctx, cfg.Ingest.Kafka, store, logger)

	notifier := notify.New(cfg.Alerts.WebhookURL, &notify.StoreFallback{Store: store, Logger: logger}, logger)
	server := api.NewServer(cfg, store, notifier, logger, version)
	httpServer := api.Start(ctx, server)

	logger.Info("searchwatch started", "addr", cfg.API.Addr, "driver", cfg.Storage.Driver)
	<-ctx.Done()

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)
}
