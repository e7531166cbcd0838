package telegram

import (
	"context"
	"fmt"
	"os"

	"github.com/go-telegram/bot"
	botModels "github.com/go-telegram/bot/models"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/hakutakaid/SaveRestrict/internal/config"
	"github.com/hakutakaid/SaveRestrict/internal/logger"
	"github.com/hakutakaid/SaveRestrict/internal/relay"
	"github.com/hakutakaid/SaveRestrict/internal/security"
	"github.com/hakutakaid/SaveRestrict/internal/telegram/repository"
)

// Bot is the control surface: it receives commands and links over the
// Bot API and drives the relay engine.
type Bot struct {
	bot      *bot.Bot
	cfg      *config.Config
	ownerIDs map[int64]bool

	settings *repository.SettingsRepository
	premium  *repository.PremiumRepository
	batches  *repository.BatchRepository

	cipher       *security.Cipher
	pool         *relay.Pool
	executor     *relay.Executor
	registry     *relay.Registry
	orchestrator *relay.Orchestrator

	workers *WorkerPool
	conv    *conversations
}

// New wires the bot, its repositories and the relay engine.
func New(cfg *config.Config, db *mongo.Database) (*Bot, error) {
	if cfg.BotToken == "" {
		return nil, fmt.Errorf("bot token cannot be empty")
	}

	cipher, err := security.NewCipher(cfg.SessionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to init credential cipher: %w", err)
	}

	settings := repository.NewSettingsRepository(db)
	premium := repository.NewPremiumRepository(db)
	batches := repository.NewBatchRepository(db)

	pool := relay.NewPool(relay.PoolConfig{
		AppID:         cfg.APIID,
		AppHash:       cfg.APIHash,
		BotToken:      cfg.BotToken,
		StringSession: cfg.StringSession,
	}, settings, cipher)

	executor := relay.NewExecutor(relay.ExecutorConfig{
		DownloadDir: cfg.DownloadDir,
		ThumbDir:    cfg.ThumbDir,
		LogGroupID:  cfg.LogGroupID,
	}, settings, relay.NewReporter())

	registry := relay.NewRegistry(batches)

	ownerIDs := make(map[int64]bool, len(cfg.OwnerIDs))
	for _, id := range cfg.OwnerIDs {
		ownerIDs[id] = true
	}

	telegramBot := &Bot{
		cfg:      cfg,
		ownerIDs: ownerIDs,
		settings: settings,
		premium:  premium,
		batches:  batches,
		cipher:   cipher,
		pool:     pool,
		executor: executor,
		registry: registry,
		workers:  NewWorkerPool(cfg.WorkerCount, cfg.QueueSize),
		conv:     newConversations(),
	}
	telegramBot.orchestrator = relay.NewOrchestrator(
		pool, relay.NewFetcher(), executor, registry, telegramBot)

	b, err := bot.New(cfg.BotToken,
		bot.WithDefaultHandler(telegramBot.asyncHandler(telegramBot.handleDefault)))
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	telegramBot.bot = b

	telegramBot.registerHandlers()

	if err := telegramBot.ensureIndexes(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ensure indexes: %w", err)
	}

	// interrupted jobs are not resumed; their snapshots are stale
	relay.PurgeStale(context.Background(), batches)

	for _, dir := range []string{cfg.DownloadDir, cfg.ThumbDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	logger.L().Info("Telegram bot initialized successfully")
	return telegramBot, nil
}

// Start runs the update loop. Blocking; run it in a goroutine.
func (b *Bot) Start(ctx context.Context) error {
	logger.L().Info("Starting Telegram bot...")
	b.bot.Start(ctx)
	logger.L().Info("Telegram bot stopped")
	return nil
}

// Stop drains the worker pool and closes every relay client.
func (b *Bot) Stop(ctx context.Context) error {
	logger.L().Info("Stopping Telegram bot...")
	b.workers.Shutdown()
	b.pool.CloseAll()
	return nil
}

// EditStatus updates a batch progress card. Satisfies
// relay.StatusEditor.
func (b *Bot) EditStatus(ctx context.Context, chatID int64, messageID int, text string) {
	b.editMessage(ctx, chatID, messageID, text)
}

// asyncHandler submits the handler to the worker pool so the polling
// loop never waits on a transfer.
func (b *Bot) asyncHandler(h bot.HandlerFunc) bot.HandlerFunc {
	return func(ctx context.Context, botInstance *bot.Bot, update *botModels.Update) {
		b.workers.Submit(HandlerTask{
			Ctx:         ctx,
			BotInstance: botInstance,
			Update:      update,
			Handler:     h,
		})
	}
}

func (b *Bot) ensureIndexes(ctx context.Context) error {
	if err := b.settings.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("failed to ensure settings indexes: %w", err)
	}
	if err := b.premium.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("failed to ensure premium indexes: %w", err)
	}
	if err := b.batches.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("failed to ensure batch indexes: %w", err)
	}
	logger.L().Debug("Database indexes ensured")
	return nil
}
