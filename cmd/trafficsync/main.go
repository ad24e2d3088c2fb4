package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"TrafficSync/internal/app"
	"TrafficSync/internal/config"
	"TrafficSync/internal/logging"
)

func main() {
	once := flag.Bool("once", false, "run a single sync pass and exit")
	flag.Parse()

	cfg := config.Load()
	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)

	application, err := app.New(cfg, logger)
	if err != nil {
		logger.Error("application setup failed", "error", err)
		os.Exit(1)
	}
	defer application.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *once {
		result := application.RunOnce(ctx)
		_ = json.NewEncoder(os.Stdout).Encode(result)
		return
	}

	if err := application.Run(ctx); err != nil {
		logger.Error("application stopped", "error", err)
		os.Exit(1)
	}
}
