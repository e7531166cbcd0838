package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/hakutakaid/SaveRestrict/internal/app"
	"github.com/hakutakaid/SaveRestrict/internal/config"
	"github.com/hakutakaid/SaveRestrict/internal/logger"
)

func main() {
	logger.Init()

	cfg, err := config.Load()
	if err != nil {
		logger.L().Fatalf("Failed to load configuration: %v", err)
	}

	application, err := app.New(cfg)
	if err != nil {
		logger.L().Fatalf("Failed to initialize application: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil {
		logger.L().Errorf("Bot stopped with error: %v", err)
	}

	if err := application.Close(context.Background()); err != nil {
		logger.L().Errorf("Shutdown failed: %v", err)
	}
	logger.L().Info("Shutdown complete")
}
