package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	botModels "github.com/go-telegram/bot/models"

	"github.com/hakutakaid/SaveRestrict/internal/logger"
	"github.com/hakutakaid/SaveRestrict/internal/relay"
	"github.com/hakutakaid/SaveRestrict/internal/telegram/models"
)

// registerHandlers registers all command handlers for async execution.
func (b *Bot) registerHandlers() {
	b.bot.RegisterHandler(bot.HandlerTypeMessageText, "/start", bot.MatchTypeExact,
		b.asyncHandler(b.handleStart))
	b.bot.RegisterHandler(bot.HandlerTypeMessageText, "/help", bot.MatchTypeExact,
		b.asyncHandler(b.handleHelp))
	b.bot.RegisterHandler(bot.HandlerTypeMessageText, "/batch", bot.MatchTypeExact,
		b.asyncHandler(b.handleBatch))
	b.bot.RegisterHandler(bot.HandlerTypeMessageText, "/cancel", bot.MatchTypeExact,
		b.asyncHandler(b.handleCancel))
	b.bot.RegisterHandler(bot.HandlerTypeMessageText, "/stop", bot.MatchTypeExact,
		b.asyncHandler(b.handleCancel))
	b.bot.RegisterHandler(bot.HandlerTypeMessageText, "/single", bot.MatchTypePrefix,
		b.asyncHandler(b.handleSingle))
	b.bot.RegisterHandler(bot.HandlerTypeMessageText, "/status", bot.MatchTypeExact,
		b.asyncHandler(b.handleStatus))
	b.bot.RegisterHandler(bot.HandlerTypeMessageText, "/myplan", bot.MatchTypeExact,
		b.asyncHandler(b.handleStatus))
	b.bot.RegisterHandler(bot.HandlerTypeMessageText, "/settings", bot.MatchTypeExact,
		b.asyncHandler(b.handleSettings))

	// owner commands
	b.bot.RegisterHandler(bot.HandlerTypeMessageText, "/add", bot.MatchTypePrefix,
		b.asyncHandler(b.RequireOwner(b.handleAddPremium)))
	b.bot.RegisterHandler(bot.HandlerTypeMessageText, "/rem", bot.MatchTypePrefix,
		b.asyncHandler(b.RequireOwner(b.handleRemovePremium)))

	// premium commands
	b.bot.RegisterHandler(bot.HandlerTypeMessageText, "/transfer", bot.MatchTypePrefix,
		b.asyncHandler(b.RequirePremium(b.handleTransferPremium)))

	logger.L().Debug("All handlers registered with async execution")
}

// handleDefault catches everything that is not a registered command:
// callback queries, conversation replies, thumbnail photos and bare
// message links.
func (b *Bot) handleDefault(ctx context.Context, botInstance *bot.Bot, update *botModels.Update) {
	if update.CallbackQuery != nil {
		b.handleCallback(ctx, update.CallbackQuery)
		return
	}
	if update.Message == nil || update.Message.From == nil {
		return
	}

	userID := update.Message.From.ID
	chatID := update.Message.Chat.ID

	if p := b.conv.peek(userID); p != nil {
		if p.kind == pendingThumb && len(update.Message.Photo) > 0 {
			b.conv.clear(userID)
			b.saveThumbnail(ctx, userID, chatID, update.Message.Photo)
			return
		}
		if update.Message.Text != "" {
			b.conv.take(userID)
			b.handleConversationInput(ctx, userID, chatID, update.Message, p)
			return
		}
		return
	}

	if strings.Contains(update.Message.Text, "t.me/") {
		b.startTransfer(ctx, userID, chatID, update.Message.Text, 1)
	}
}

// handleStart greets the user and lists the commands.
func (b *Bot) handleStart(ctx context.Context, botInstance *bot.Bot, update *botModels.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}

	welcomeText := fmt.Sprintf(
		"👋 Hello, %s!\n\n"+
			"Send me a t.me message link and I will copy its content here, "+
			"even from chats that restrict saving.\n\n"+
			"Commands:\n"+
			"/batch - copy a range of messages\n"+
			"/cancel - stop the running batch\n"+
			"/settings - destination, rename rules, credentials\n"+
			"/status - your plan and limits\n"+
			"/help - details",
		update.Message.From.FirstName,
	)

	b.sendMessage(ctx, update.Message.Chat.ID, welcomeText)
}

// handleHelp explains the link formats and the session requirement.
func (b *Bot) handleHelp(ctx context.Context, botInstance *bot.Bot, update *botModels.Update) {
	if update.Message == nil {
		return
	}

	helpText := "Supported links:\n" +
		"• https://t.me/channel/123 - public chats\n" +
		"• https://t.me/c/1234567/123 - private chats\n" +
		"• https://t.me/b/botname/123 - bot chats\n\n" +
		"Private chats need a logged-in session: open /settings and add " +
		"your session string. Your account must be a member of the source chat.\n\n" +
		"/batch copies a range of messages starting from a link. " +
		fmt.Sprintf("Free accounts copy up to %d messages per batch, premium up to %d.",
			b.cfg.FreeBatchLimit, b.cfg.PremiumBatchLimit)

	b.sendMessage(ctx, update.Message.Chat.ID, helpText)
}

// handleBatch starts the batch conversation.
func (b *Bot) handleBatch(ctx context.Context, botInstance *bot.Bot, update *botModels.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}
	userID := update.Message.From.ID
	chatID := update.Message.Chat.ID

	if b.registry.Get(userID) != nil {
		b.sendErrorMessage(ctx, chatID, "You already have a running batch. Use /cancel to stop it first.")
		return
	}

	b.conv.arm(userID, &pending{kind: pendingBatchLink})
	b.sendMessage(ctx, chatID, "Send the link of the first message to copy.")
}

// handleSingle copies one message: /single <link>.
func (b *Bot) handleSingle(ctx context.Context, botInstance *bot.Bot, update *botModels.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}
	userID := update.Message.From.ID
	chatID := update.Message.Chat.ID

	parts := strings.Fields(update.Message.Text)
	if len(parts) != 2 {
		b.sendErrorMessage(ctx, chatID, "Usage: /single <t.me link>")
		return
	}
	b.startTransfer(ctx, userID, chatID, parts[1], 1)
}

// handleCancel stops the user's running batch and clears any pending
// conversation step.
func (b *Bot) handleCancel(ctx context.Context, botInstance *bot.Bot, update *botModels.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}
	userID := update.Message.From.ID
	chatID := update.Message.Chat.ID

	b.conv.clear(userID)
	if b.registry.Cancel(userID) {
		b.sendSuccessMessage(ctx, chatID, "Cancelling... the batch stops after the current item.")
		return
	}
	b.sendMessage(ctx, chatID, "Nothing to cancel.")
}

// handleStatus reports the user's plan and batch limit.
func (b *Bot) handleStatus(ctx context.Context, botInstance *bot.Bot, update *botModels.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}
	userID := update.Message.From.ID
	chatID := update.Message.Chat.ID

	plan, err := b.premium.Get(ctx, userID)
	if err != nil {
		b.sendErrorMessage(ctx, chatID, "Failed to look up your plan, try again later.")
		return
	}

	if plan == nil {
		b.sendMessage(ctx, chatID, fmt.Sprintf(
			"Plan: Free\nBatch limit: %d messages", b.cfg.FreeBatchLimit))
		return
	}

	remaining := plan.Remaining(time.Now().UTC()).Round(time.Minute)
	b.sendMessage(ctx, chatID, fmt.Sprintf(
		"Plan: Premium 💎\nExpires: %s (%s left)\nBatch limit: %d messages",
		plan.ExpiresAt.Format("2006-01-02 15:04 MST"), remaining, b.cfg.PremiumBatchLimit))
}

// handleAddPremium grants a premium plan: /add <user_id> <amount> <unit>.
func (b *Bot) handleAddPremium(ctx context.Context, botInstance *bot.Bot, update *botModels.Update) {
	chatID := update.Message.Chat.ID

	parts := strings.Fields(update.Message.Text)
	if len(parts) != 4 {
		b.sendErrorMessage(ctx, chatID,
			"Usage: /add <user_id> <amount> <unit>\nUnits: min, hours, days, weeks, month, year, decades")
		return
	}

	targetID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		b.sendErrorMessage(ctx, chatID, "Invalid user ID")
		return
	}
	amount, err := strconv.Atoi(parts[2])
	if err != nil {
		b.sendErrorMessage(ctx, chatID, "Invalid amount")
		return
	}

	duration, err := models.PremiumDuration(amount, parts[3])
	if err != nil {
		b.sendErrorMessage(ctx, chatID, err.Error())
		return
	}

	plan := &models.PremiumUser{
		UserID:    targetID,
		ExpiresAt: time.Now().UTC().Add(duration),
		GrantedBy: update.Message.From.ID,
	}
	if err := b.premium.Upsert(ctx, plan); err != nil {
		logger.L().Errorf("Failed to grant premium to %d: %v", targetID, err)
		b.sendErrorMessage(ctx, chatID, "Failed to store the plan")
		return
	}

	b.sendSuccessMessage(ctx, chatID, fmt.Sprintf(
		"User %d is premium until %s", targetID, plan.ExpiresAt.Format("2006-01-02 15:04 MST")))
	b.sendMessage(ctx, targetID, fmt.Sprintf(
		"💎 You are premium until %s. Batch limit: %d messages.",
		plan.ExpiresAt.Format("2006-01-02 15:04 MST"), b.cfg.PremiumBatchLimit))
}

// handleRemovePremium revokes a plan: /rem <user_id>.
func (b *Bot) handleRemovePremium(ctx context.Context, botInstance *bot.Bot, update *botModels.Update) {
	chatID := update.Message.Chat.ID

	parts := strings.Fields(update.Message.Text)
	if len(parts) != 2 {
		b.sendErrorMessage(ctx, chatID, "Usage: /rem <user_id>")
		return
	}
	targetID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		b.sendErrorMessage(ctx, chatID, "Invalid user ID")
		return
	}

	if err := b.premium.Delete(ctx, targetID); err != nil {
		logger.L().Errorf("Failed to revoke premium for %d: %v", targetID, err)
		b.sendErrorMessage(ctx, chatID, "Failed to revoke the plan")
		return
	}
	b.sendSuccessMessage(ctx, chatID, fmt.Sprintf("Premium revoked for user %d", targetID))
}

// handleTransferPremium moves the caller's remaining plan to another
// user: /transfer <user_id>. A plan can be transferred once.
func (b *Bot) handleTransferPremium(ctx context.Context, botInstance *bot.Bot, update *botModels.Update) {
	userID := update.Message.From.ID
	chatID := update.Message.Chat.ID

	parts := strings.Fields(update.Message.Text)
	if len(parts) != 2 {
		b.sendErrorMessage(ctx, chatID, "Usage: /transfer <user_id>")
		return
	}
	targetID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		b.sendErrorMessage(ctx, chatID, "Invalid user ID")
		return
	}
	if targetID == userID {
		b.sendErrorMessage(ctx, chatID, "You cannot transfer a plan to yourself")
		return
	}

	if err := b.premium.Transfer(ctx, userID, targetID); err != nil {
		b.sendErrorMessage(ctx, chatID, err.Error())
		return
	}

	b.sendSuccessMessage(ctx, chatID, fmt.Sprintf("Plan transferred to user %d", targetID))
	b.sendMessage(ctx, targetID, "💎 A premium plan was transferred to you. Check /status.")
}

// handleConversationInput consumes the reply to the last prompt.
func (b *Bot) handleConversationInput(ctx context.Context, userID, chatID int64, msg *botModels.Message, p *pending) {
	text := strings.TrimSpace(msg.Text)

	switch p.kind {
	case pendingBatchLink:
		link, err := relay.ParseLink(text)
		if err != nil {
			b.sendErrorMessage(ctx, chatID, "That does not look like a t.me message link. Send /batch to retry.")
			return
		}
		if !b.orchestrator.CanAccess(ctx, userID, link) {
			b.sendErrorMessage(ctx, chatID,
				"Failed to access the provided link. For private chats add your session string in /settings and make sure your account is a member. Send /batch to retry.")
			return
		}
		limit, _ := b.batchLimit(ctx, userID)
		b.conv.arm(userID, &pending{kind: pendingBatchCount, link: link, raw: text})
		b.sendMessage(ctx, chatID, fmt.Sprintf("How many messages should I copy? (1-%d)", limit))

	case pendingBatchCount:
		count, err := strconv.Atoi(text)
		if err != nil {
			// re-arm so the user can just send another number
			b.conv.arm(userID, p)
			b.sendErrorMessage(ctx, chatID, "Send a number, or /cancel to abort.")
			return
		}
		b.startBatch(ctx, userID, chatID, p, count)

	case pendingChatID:
		if !validDestination(text) {
			b.sendErrorMessage(ctx, chatID, "Send a numeric chat ID, optionally with a topic: -1001234567890 or -1001234567890/42")
			return
		}
		b.storeSetting(ctx, userID, chatID, "chat_id", text, "Destination chat saved")

	case pendingRenameTag:
		b.storeSetting(ctx, userID, chatID, "rename_tag", text, "Rename tag saved")

	case pendingCaption:
		b.storeSetting(ctx, userID, chatID, "caption", text, "Caption saved")

	case pendingReplacement:
		parts := strings.Fields(text)
		if len(parts) != 2 {
			b.sendErrorMessage(ctx, chatID, "Send two words: the word to replace and its replacement.")
			return
		}
		if err := b.settings.AddReplacement(ctx, userID, parts[0], parts[1]); err != nil {
			logger.L().Errorf("Failed to add replacement for %d: %v", userID, err)
			b.sendErrorMessage(ctx, chatID, "Failed to save, try again later")
			return
		}
		b.sendSuccessMessage(ctx, chatID, fmt.Sprintf("Replacing %q with %q", parts[0], parts[1]))

	case pendingDeleteWords:
		words := strings.Fields(text)
		for _, word := range words {
			if err := b.settings.AddDeleteWord(ctx, userID, word); err != nil {
				logger.L().Errorf("Failed to add delete word for %d: %v", userID, err)
				b.sendErrorMessage(ctx, chatID, "Failed to save, try again later")
				return
			}
		}
		b.sendSuccessMessage(ctx, chatID, fmt.Sprintf("Deleting %d word(s) from names and captions", len(words)))

	case pendingSession:
		b.storeCredential(ctx, userID, chatID, msg.ID, "session", text, "Session saved")
		b.pool.DropUserClient(userID)

	case pendingBotToken:
		b.storeCredential(ctx, userID, chatID, msg.ID, "bot_token", text, "Bot token saved")
		b.pool.DropUserBot(userID)
	}
}

// startBatch validates the count against the user's plan and launches
// the run.
func (b *Bot) startBatch(ctx context.Context, userID, chatID int64, p *pending, count int) {
	limit, isPremium := b.batchLimit(ctx, userID)
	if !countWithinLimit(count, limit) {
		note := ""
		if !isPremium {
			note = " Premium raises the limit, see /status."
		}
		b.conv.arm(userID, p)
		b.sendErrorMessage(ctx, chatID, fmt.Sprintf("Count must be between 1 and %d.%s", limit, note))
		return
	}
	b.launch(ctx, userID, chatID, p.link, p.raw, count)
}

// startTransfer handles a bare link: a batch of one.
func (b *Bot) startTransfer(ctx context.Context, userID, chatID int64, text string, count int) {
	link, err := relay.ParseLink(strings.TrimSpace(text))
	if err != nil {
		b.sendErrorMessage(ctx, chatID, "That does not look like a t.me message link.")
		return
	}
	b.launch(ctx, userID, chatID, link, text, count)
}

func (b *Bot) launch(ctx context.Context, userID, chatID int64, link *relay.Link, raw string, count int) {
	job := &relay.Job{
		UserID:         userID,
		Link:           link,
		SourceLink:     raw,
		Count:          count,
		ProgressChatID: chatID,
	}
	if err := b.registry.Begin(job); err != nil {
		b.sendErrorMessage(ctx, chatID, "You already have a running batch. Use /cancel to stop it first.")
		return
	}

	if card := b.sendMessage(ctx, chatID, "Starting..."); card != nil {
		job.ProgressMsgID = card.ID
	}

	logger.L().Infof("Batch %s started: user=%d count=%d source=%s", job.TaskID, userID, count, link.ChatRef)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.L().Errorf("Batch %s: run panic recovered: user=%d: %v", job.TaskID, userID, r)
				b.sendErrorMessage(ctx, chatID, "Internal error, the batch was aborted")
			}
		}()

		summary := b.orchestrator.Run(ctx, job)
		logger.L().Infof("Batch %s finished: user=%d processed=%d succeeded=%d cancelled=%v",
			job.TaskID, userID, summary.Processed, summary.Succeeded, summary.Cancelled)
	}()
}

// batchLimit returns the user's batch ceiling. Lookup failures fall
// back to the free limit.
func (b *Bot) batchLimit(ctx context.Context, userID int64) (int, bool) {
	isPremium, err := b.premium.IsPremium(ctx, userID)
	if err != nil {
		logger.L().Warnf("Premium lookup failed for %d: %v", userID, err)
		return b.cfg.FreeBatchLimit, false
	}
	if isPremium {
		return b.cfg.PremiumBatchLimit, true
	}
	return b.cfg.FreeBatchLimit, false
}

func (b *Bot) storeSetting(ctx context.Context, userID, chatID int64, field, value, confirmation string) {
	if err := b.settings.SetField(ctx, userID, field, value); err != nil {
		logger.L().Errorf("Failed to set %s for %d: %v", field, userID, err)
		b.sendErrorMessage(ctx, chatID, "Failed to save, try again later")
		return
	}
	b.sendSuccessMessage(ctx, chatID, confirmation)
}

// storeCredential encrypts and stores a secret, then deletes the
// message carrying it.
func (b *Bot) storeCredential(ctx context.Context, userID, chatID int64, messageID int, field, value, confirmation string) {
	encrypted, err := b.cipher.Encrypt(value)
	if err != nil {
		logger.L().Errorf("Failed to encrypt %s for %d: %v", field, userID, err)
		b.sendErrorMessage(ctx, chatID, "Failed to save, try again later")
		return
	}
	if err := b.settings.SetField(ctx, userID, field, encrypted); err != nil {
		logger.L().Errorf("Failed to set %s for %d: %v", field, userID, err)
		b.sendErrorMessage(ctx, chatID, "Failed to save, try again later")
		return
	}

	// do not leave the secret sitting in the chat history
	if _, err := b.bot.DeleteMessage(ctx, &bot.DeleteMessageParams{
		ChatID:    chatID,
		MessageID: messageID,
	}); err != nil {
		logger.L().Debugf("Failed to delete credential message: %v", err)
	}

	b.sendSuccessMessage(ctx, chatID, confirmation)
}

// countWithinLimit reports whether a requested batch size fits the
// user's ceiling.
func countWithinLimit(count, limit int) bool {
	return count >= 1 && count <= limit
}

// validDestination accepts "<chat>" or "<chat>/<topic>" with numeric
// parts.
func validDestination(s string) bool {
	chat, topic, ok := strings.Cut(s, "/")
	if _, err := strconv.ParseInt(chat, 10, 64); err != nil {
		return false
	}
	if ok {
		if _, err := strconv.ParseInt(topic, 10, 32); err != nil {
			return false
		}
	}
	return true
}
