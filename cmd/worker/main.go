// Package main is the entry point for the costpilot batch worker.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"costpilot/core/engine"
	"costpilot/core/waste"
	"costpilot/ingest"
	"costpilot/internal/config"
	"costpilot/internal/logging"
	"costpilot/notify"
	"costpilot/store/postgres"
	"costpilot/worker"
)

func main() {
	cfgPath := flag.String("config", "", "config file path")
	flag.Parse()

	if *cfgPath != "" {
		cfg, err := config.Load(*cfgPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
		config.Set(cfg)
	}
	cfg := config.Get()

	if err := logging.Initialize(cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logging: %v\n", err)
		os.Exit(1)
	}
	defer logging.Sync()
	log := logging.Logger

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := postgres.Open(ctx, cfg.Database.DSN, cfg.Database.MaxOpenConns)
	if err != nil {
		log.Fatal("database connection failed", zap.Error(err))
	}
	defer st.Close()
	if err := st.EnsureSchema(ctx); err != nil {
		log.Fatal("schema setup failed", zap.Error(err))
	}

	eng := engine.New(st, cfg.Detection.Threshold(), log)

	// Billing and inventory providers are wired per deployment; with
	// none configured the worker evaluates and scans what is already
	// in the store.
	var ingestSvc *ingest.Service
	var scanner *waste.Scanner

	notifier := notify.New(st, notify.LogSender{Log: log}, notify.Config{
		Enabled:    cfg.Notification.Enabled,
		Recipients: cfg.Notification.Recipients,
	}, log)

	w := worker.New(worker.Options{
		Store:       st,
		Engine:      eng,
		Ingest:      ingestSvc,
		Scanner:     scanner,
		Notifier:    notifier,
		RunInterval: time.Duration(cfg.Worker.RunIntervalHours) * time.Hour,
		SyncDays:    cfg.Worker.SyncDays,
		Log:         log,
	})

	if err := w.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal("worker exited", zap.Error(err))
	}
}
