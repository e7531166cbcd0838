package telegram

import (
	"context"

	"github.com/go-telegram/bot"
	botModels "github.com/go-telegram/bot/models"

	"github.com/hakutakaid/SaveRestrict/internal/logger"
)

// RequireOwner restricts a handler to the configured bot owners.
func (b *Bot) RequireOwner(next bot.HandlerFunc) bot.HandlerFunc {
	return func(ctx context.Context, botInstance *bot.Bot, update *botModels.Update) {
		if update.Message == nil || update.Message.From == nil {
			return
		}

		if !b.ownerIDs[update.Message.From.ID] {
			logger.L().Warnf("Non-owner user %d attempted to use an owner command", update.Message.From.ID)
			b.sendErrorMessage(ctx, update.Message.Chat.ID, "This command is restricted to the bot owner")
			return
		}

		next(ctx, botInstance, update)
	}
}

// RequirePremium restricts a handler to users with an active premium
// plan. Owners always pass.
func (b *Bot) RequirePremium(next bot.HandlerFunc) bot.HandlerFunc {
	return func(ctx context.Context, botInstance *bot.Bot, update *botModels.Update) {
		if update.Message == nil || update.Message.From == nil {
			return
		}

		userID := update.Message.From.ID
		if !b.ownerIDs[userID] {
			isPremium, err := b.premium.IsPremium(ctx, userID)
			if err != nil || !isPremium {
				b.sendErrorMessage(ctx, update.Message.Chat.ID, "This command needs an active premium plan, see /status")
				return
			}
		}

		next(ctx, botInstance, update)
	}
}
