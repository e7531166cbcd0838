package app

import (
	"context"
	"fmt"

	"github.com/hakutakaid/SaveRestrict/internal/config"
	"github.com/hakutakaid/SaveRestrict/internal/logger"
	"github.com/hakutakaid/SaveRestrict/internal/mongo"
	"github.com/hakutakaid/SaveRestrict/internal/telegram"
)

// App owns the service lifecycle: initialization, running and
// shutdown.
type App struct {
	MongoDB *mongo.Client
	Bot     *telegram.Bot
}

// New initializes every service in order. Any failure aborts startup.
func New(cfg *config.Config) (*App, error) {
	app := &App{}

	mongoClient, err := mongo.InitFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("init MongoDB failed: %w", err)
	}
	app.MongoDB = mongoClient
	logger.L().Info("MongoDB initialized successfully")

	app.Bot, err = telegram.New(cfg, mongoClient.Database())
	if err != nil {
		_ = app.Close(context.Background())
		return nil, fmt.Errorf("init Telegram bot failed: %w", err)
	}

	return app, nil
}

// Run starts the bot and blocks until the context is cancelled.
func (a *App) Run(ctx context.Context) error {
	return a.Bot.Start(ctx)
}

// Close shuts every service down in reverse order.
func (a *App) Close(ctx context.Context) error {
	if a.Bot != nil {
		if err := a.Bot.Stop(ctx); err != nil {
			logger.L().Errorf("Failed to stop Telegram bot: %v", err)
		}
	}
	if a.MongoDB != nil {
		if err := a.MongoDB.Close(ctx); err != nil {
			return fmt.Errorf("close MongoDB failed: %w", err)
		}
	}
	return nil
}
