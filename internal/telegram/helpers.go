package telegram

import (
	"context"

	"github.com/go-telegram/bot"
	botModels "github.com/go-telegram/bot/models"

	"github.com/hakutakaid/SaveRestrict/internal/logger"
)

// sendMessage sends a message with unified error handling.
func (b *Bot) sendMessage(ctx context.Context, chatID int64, text string, replyTo ...int) *botModels.Message {
	params := &bot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	}

	if len(replyTo) > 0 && replyTo[0] > 0 {
		params.ReplyParameters = &botModels.ReplyParameters{
			MessageID: replyTo[0],
		}
	}

	msg, err := b.bot.SendMessage(ctx, params)
	if err != nil {
		logger.L().Errorf("Failed to send message to chat %d: %v", chatID, err)
		return nil
	}
	return msg
}

// sendErrorMessage sends a failure notice.
func (b *Bot) sendErrorMessage(ctx context.Context, chatID int64, message string, replyTo ...int) {
	b.sendMessage(ctx, chatID, "❌ "+message, replyTo...)
}

// sendSuccessMessage sends a success notice.
func (b *Bot) sendSuccessMessage(ctx context.Context, chatID int64, message string, replyTo ...int) {
	b.sendMessage(ctx, chatID, "✅ "+message, replyTo...)
}

// editMessage edits a previously sent message, logging failures.
func (b *Bot) editMessage(ctx context.Context, chatID int64, messageID int, text string) {
	_, err := b.bot.EditMessageText(ctx, &bot.EditMessageTextParams{
		ChatID:    chatID,
		MessageID: messageID,
		Text:      text,
	})
	if err != nil {
		logger.L().Debugf("Failed to edit message %d in chat %d: %v", messageID, chatID, err)
	}
}
