package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-telegram/bot"
	botModels "github.com/go-telegram/bot/models"

	"github.com/hakutakaid/SaveRestrict/internal/logger"
)

// callback data for the settings menu
const (
	cbSetChat     = "settings:chat"
	cbSetRename   = "settings:rename"
	cbSetCaption  = "settings:caption"
	cbSetReplace  = "settings:replace"
	cbSetDelete   = "settings:delete"
	cbSetThumb    = "settings:thumb"
	cbRemoveThumb = "settings:remthumb"
	cbSetSession  = "settings:session"
	cbSetBotToken = "settings:bottoken"
	cbLogout      = "settings:logout"
	cbReset       = "settings:reset"
)

// handleSettings shows the settings menu with the current values.
func (b *Bot) handleSettings(ctx context.Context, botInstance *bot.Bot, update *botModels.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}
	userID := update.Message.From.ID
	chatID := update.Message.Chat.ID

	settings, err := b.settings.Get(ctx, userID)
	if err != nil {
		b.sendErrorMessage(ctx, chatID, "Failed to load your settings, try again later")
		return
	}

	var text strings.Builder
	text.WriteString("⚙️ Settings\n\n")
	text.WriteString(fmt.Sprintf("Destination: %s\n", orDefault(settings.ChatID, "this chat")))
	text.WriteString(fmt.Sprintf("Rename tag: %s\n", orDefault(settings.RenameTag, "none")))
	text.WriteString(fmt.Sprintf("Caption: %s\n", orDefault(settings.Caption, "none")))
	text.WriteString(fmt.Sprintf("Replacements: %d\n", len(settings.Replacements)))
	text.WriteString(fmt.Sprintf("Delete words: %d\n", len(settings.DeleteWords)))
	text.WriteString(fmt.Sprintf("Session: %s\n", storedOrNot(settings.Session)))
	text.WriteString(fmt.Sprintf("Bot token: %s", storedOrNot(settings.BotToken)))

	markup := &botModels.InlineKeyboardMarkup{
		InlineKeyboard: [][]botModels.InlineKeyboardButton{
			{
				{Text: "📍 Set Chat", CallbackData: cbSetChat},
				{Text: "🏷 Rename Tag", CallbackData: cbSetRename},
			},
			{
				{Text: "💬 Caption", CallbackData: cbSetCaption},
				{Text: "🔁 Replace Word", CallbackData: cbSetReplace},
			},
			{
				{Text: "🗑 Delete Words", CallbackData: cbSetDelete},
			},
			{
				{Text: "🖼 Set Thumbnail", CallbackData: cbSetThumb},
				{Text: "❌ Remove Thumbnail", CallbackData: cbRemoveThumb},
			},
			{
				{Text: "🔑 Add Session", CallbackData: cbSetSession},
				{Text: "🤖 Set Bot Token", CallbackData: cbSetBotToken},
			},
			{
				{Text: "🚪 Logout", CallbackData: cbLogout},
				{Text: "♻️ Reset", CallbackData: cbReset},
			},
		},
	}

	if _, err := b.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      chatID,
		Text:        text.String(),
		ReplyMarkup: markup,
	}); err != nil {
		logger.L().Errorf("Failed to send settings menu to %d: %v", chatID, err)
	}
}

// handleCallback routes settings menu presses.
func (b *Bot) handleCallback(ctx context.Context, cq *botModels.CallbackQuery) {
	if _, err := b.bot.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: cq.ID,
	}); err != nil {
		logger.L().Debugf("Failed to answer callback query: %v", err)
	}

	if cq.Message.Message == nil {
		return
	}
	userID := cq.From.ID
	chatID := cq.Message.Message.Chat.ID

	switch cq.Data {
	case cbSetChat:
		b.conv.arm(userID, &pending{kind: pendingChatID})
		b.sendMessage(ctx, chatID, "Send the destination chat ID, optionally with a topic: -1001234567890 or -1001234567890/42")

	case cbSetRename:
		b.conv.arm(userID, &pending{kind: pendingRenameTag})
		b.sendMessage(ctx, chatID, "Send the tag to append to file names.")

	case cbSetCaption:
		b.conv.arm(userID, &pending{kind: pendingCaption})
		b.sendMessage(ctx, chatID, "Send the caption to append to every copy.")

	case cbSetReplace:
		b.conv.arm(userID, &pending{kind: pendingReplacement})
		b.sendMessage(ctx, chatID, "Send two words: the word to replace and its replacement.")

	case cbSetDelete:
		b.conv.arm(userID, &pending{kind: pendingDeleteWords})
		b.sendMessage(ctx, chatID, "Send the words to delete, separated by spaces.")

	case cbSetThumb:
		b.conv.arm(userID, &pending{kind: pendingThumb})
		b.sendMessage(ctx, chatID, "Send the photo to use as the video thumbnail.")

	case cbRemoveThumb:
		b.removeThumbnail(ctx, userID, chatID)

	case cbSetSession:
		b.conv.arm(userID, &pending{kind: pendingSession})
		b.sendMessage(ctx, chatID, "Send your session string. The message is deleted after it is stored.")

	case cbSetBotToken:
		b.conv.arm(userID, &pending{kind: pendingBotToken})
		b.sendMessage(ctx, chatID, "Send your bot token. The message is deleted after it is stored.")

	case cbLogout:
		if err := b.settings.ClearSession(ctx, userID); err != nil {
			logger.L().Errorf("Failed to clear session for %d: %v", userID, err)
			b.sendErrorMessage(ctx, chatID, "Logout failed, try again later")
			return
		}
		b.pool.DropUserClient(userID)
		b.sendSuccessMessage(ctx, chatID, "Logged out, your session was removed")

	case cbReset:
		if err := b.settings.Reset(ctx, userID); err != nil {
			logger.L().Errorf("Failed to reset settings for %d: %v", userID, err)
			b.sendErrorMessage(ctx, chatID, "Reset failed, try again later")
			return
		}
		b.removeThumbnailFile(userID)
		b.sendSuccessMessage(ctx, chatID, "Settings reset. Stored credentials were kept; use Logout to remove them.")
	}
}

// saveThumbnail downloads the largest size of the photo and stores it
// as the user's thumbnail.
func (b *Bot) saveThumbnail(ctx context.Context, userID, chatID int64, photos []botModels.PhotoSize) {
	largest := photos[len(photos)-1]

	file, err := b.bot.GetFile(ctx, &bot.GetFileParams{FileID: largest.FileID})
	if err != nil {
		logger.L().Errorf("Failed to resolve thumbnail file for %d: %v", userID, err)
		b.sendErrorMessage(ctx, chatID, "Failed to fetch the photo, try again")
		return
	}

	resp, err := http.Get(b.bot.FileDownloadLink(file))
	if err != nil {
		logger.L().Errorf("Failed to download thumbnail for %d: %v", userID, err)
		b.sendErrorMessage(ctx, chatID, "Failed to fetch the photo, try again")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logger.L().Errorf("Thumbnail download for %d returned %s", userID, resp.Status)
		b.sendErrorMessage(ctx, chatID, "Failed to fetch the photo, try again")
		return
	}

	path := b.thumbPath(userID)
	out, err := os.Create(path)
	if err != nil {
		logger.L().Errorf("Failed to create thumbnail file %s: %v", path, err)
		b.sendErrorMessage(ctx, chatID, "Failed to store the photo, try again")
		return
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		logger.L().Errorf("Failed to write thumbnail file %s: %v", path, err)
		b.sendErrorMessage(ctx, chatID, "Failed to store the photo, try again")
		return
	}

	b.sendSuccessMessage(ctx, chatID, "Thumbnail saved, it will be used for uploaded videos")
}

func (b *Bot) removeThumbnail(ctx context.Context, userID, chatID int64) {
	if err := os.Remove(b.thumbPath(userID)); err != nil {
		if os.IsNotExist(err) {
			b.sendMessage(ctx, chatID, "No thumbnail stored.")
			return
		}
		logger.L().Errorf("Failed to remove thumbnail for %d: %v", userID, err)
		b.sendErrorMessage(ctx, chatID, "Failed to remove the thumbnail")
		return
	}
	b.sendSuccessMessage(ctx, chatID, "Thumbnail removed")
}

func (b *Bot) removeThumbnailFile(userID int64) {
	if err := os.Remove(b.thumbPath(userID)); err != nil && !os.IsNotExist(err) {
		logger.L().Debugf("Failed to remove thumbnail for %d: %v", userID, err)
	}
}

func (b *Bot) thumbPath(userID int64) string {
	return filepath.Join(b.cfg.ThumbDir, fmt.Sprintf("%d.jpg", userID))
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func storedOrNot(value string) string {
	if value == "" {
		return "not set"
	}
	return "stored"
}
