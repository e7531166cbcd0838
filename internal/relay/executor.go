package relay

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/amarnathcjd/gogram/telegram"
	"github.com/google/uuid"

	"github.com/hakutakaid/SaveRestrict/internal/logger"
	"github.com/hakutakaid/SaveRestrict/internal/media"
	"github.com/hakutakaid/SaveRestrict/internal/telegram/models"
)

// ResultKind classifies a transfer outcome.
type ResultKind int

const (
	// ResultCopied means the media was relayed without downloading.
	ResultCopied ResultKind = iota
	// ResultUploaded means the media went through download and re-upload.
	ResultUploaded
	// ResultText means a text-only message was delivered.
	ResultText
	// ResultSkipped means the message had nothing deliverable.
	ResultSkipped
	// ResultFailed means the transfer was attempted and failed.
	ResultFailed
)

// Result reports a single transfer.
type Result struct {
	Kind   ResultKind
	Reason string
	Err    error
}

// Success reports whether content was delivered.
func (r Result) Success() bool {
	return r.Kind == ResultCopied || r.Kind == ResultUploaded || r.Kind == ResultText
}

// Env carries the clients a single transfer operates with.
type Env struct {
	Status Client // main bot: status card, final copies
	User   Client // session client that fetched the message
	Aux    Client // large-file session client, may be nil
}

// ExecutorConfig tunes the transfer executor.
type ExecutorConfig struct {
	DownloadDir    string
	ThumbDir       string
	LogGroupID     int64 // staging chat for the large-file path
	LargeFileLimit int64 // bytes; above this the aux client uploads
}

// Just under the bot upload ceiling.
const defaultLargeFileLimit = int64(1996 * 1024 * 1024) // 1996 MiB

// Executor delivers one fetched message to the user's destination.
type Executor struct {
	cfg      ExecutorConfig
	settings SettingsStore
	reporter *Reporter
	sleep    func(time.Duration)

	mu         sync.Mutex
	restricted map[string]bool // source chats that rejected a direct copy
}

// NewExecutor creates an Executor.
func NewExecutor(cfg ExecutorConfig, settings SettingsStore, reporter *Reporter) *Executor {
	if cfg.LargeFileLimit == 0 {
		cfg.LargeFileLimit = defaultLargeFileLimit
	}
	return &Executor{
		cfg:        cfg,
		settings:   settings,
		reporter:   reporter,
		sleep:      time.Sleep,
		restricted: make(map[string]bool),
	}
}

// Process transfers a fetched message to the user's configured
// destination. It never panics and never aborts a batch: every failure
// is folded into the Result.
func (e *Executor) Process(ctx context.Context, env Env, msg *telegram.NewMessage, info MediaInfo, userID int64, link *Link) Result {
	settings, err := e.settings.Get(ctx, userID)
	if err != nil {
		return Result{Kind: ResultFailed, Reason: fmt.Sprintf("load settings: %v", err), Err: err}
	}

	dest, topic, err := parseDestination(settings.ChatID, userID)
	if err != nil {
		return Result{Kind: ResultFailed, Reason: "invalid destination chat"}
	}

	rules := Rules{
		DeleteWords:  settings.DeleteWords,
		Replacements: settings.Replacements,
		Tag:          settings.RenameTag,
		Caption:      settings.Caption,
	}

	if info.Kind == KindNone {
		return e.sendText(env, info.Caption, rules, dest, topic)
	}
	if !info.Kind.Deliverable() {
		return Result{Kind: ResultSkipped, Reason: fmt.Sprintf("unsupported media kind %s", info.Kind)}
	}

	if e.canCopyDirectly(settings, link) && env.User != nil {
		res, fellThrough := e.copyDirect(env, msg, info, rules, dest, topic, link)
		if !fellThrough {
			return res
		}
	}

	return e.uploadViaDownload(env, msg, info, rules, dest, topic, userID)
}

// RestrictedChats returns the source chats flagged as copy-restricted.
// Exposed for inspection; the flag set only grows within a process.
func (e *Executor) RestrictedChats() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	chats := make([]string, 0, len(e.restricted))
	for chat := range e.restricted {
		chats = append(chats, chat)
	}
	return chats
}

func (e *Executor) sendText(env Env, text string, rules Rules, dest int64, topic int32) Result {
	text = ApplyTextRules(text, rules)
	if strings.TrimSpace(text) == "" {
		return Result{Kind: ResultSkipped, Reason: "empty message"}
	}
	if _, err := env.Status.SendText(dest, text, topic); err != nil {
		return Result{Kind: ResultFailed, Reason: fmt.Sprintf("send text: %v", err), Err: err}
	}
	return Result{Kind: ResultText}
}

func (e *Executor) canCopyDirectly(settings *models.UserSettings, link *Link) bool {
	if link.Visibility != VisibilityPublic || settings.NeedsFileRename() {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return !e.restricted[link.ChatRef]
}

// copyDirect relays the media by reference, no download. On a
// forwards-restricted failure the source chat is flagged and the
// caller falls through to the download path.
func (e *Executor) copyDirect(env Env, msg *telegram.NewMessage, info MediaInfo, rules Rules, dest int64, topic int32, link *Link) (Result, bool) {
	caption := buildCaption(info.Caption, rules)
	_, err := env.User.SendMedia(dest, msg.Media(), &telegram.MediaOptions{
		Caption: caption,
		ReplyID: topic,
	})
	if err == nil {
		return Result{Kind: ResultCopied}, false
	}

	if isForwardRestricted(err) {
		e.mu.Lock()
		e.restricted[link.ChatRef] = true
		e.mu.Unlock()
		logger.L().Infof("Chat %s restricts copies, switching to download path", link.ChatRef)
	} else {
		logger.L().Debugf("Direct copy failed for %s/%d: %v", link.ChatRef, link.MessageID, err)
	}
	return Result{}, true
}

func (e *Executor) uploadViaDownload(env Env, msg *telegram.NewMessage, info MediaInfo, rules Rules, dest int64, topic int32, userID int64) (res Result) {
	status, err := env.Status.SendText(userID, "Downloading...", 0)
	if err != nil {
		logger.L().Debugf("Status message failed for user %d: %v", userID, err)
	}
	statusID := int32(0)
	if status != nil {
		statusID = status.ID
	}
	// on success the transient status message disappears; on failure it
	// stays behind carrying the error so the user sees what broke
	defer func() {
		if statusID == 0 {
			return
		}
		e.reporter.Forget(userID, statusID)
		if res.Kind == ResultFailed {
			if editErr := env.Status.EditText(userID, statusID, "❌ "+truncate(res.Reason, 200)); editErr != nil {
				logger.L().Debugf("Status edit failed: %v", editErr)
			}
			return
		}
		if delErr := env.Status.DeleteMessage(userID, statusID); delErr != nil {
			logger.L().Debugf("Status cleanup failed: %v", delErr)
		}
	}()

	name := info.FileName
	if name == "" {
		name = uuid.New().String()[:8] + extensionForKind(info.Kind)
	}
	name = RenameFile(name, rules)

	var downloadPM *telegram.ProgressManager
	if statusID != 0 {
		downloadPM = telegram.NewProgressManager(3,
			e.reporter.Callback(env.Status, "Downloading", userID, statusID))
	}
	path, err := env.User.Download(msg, &telegram.DownloadOptions{
		FileName:        filepath.Join(e.cfg.DownloadDir, name),
		ProgressManager: downloadPM,
	})
	if err != nil {
		return Result{Kind: ResultFailed, Reason: fmt.Sprintf("download: %v", err), Err: err}
	}
	screenshot := ""
	defer func() { e.cleanup(path, screenshot) }()

	spec := uploadSpecs[info.Kind]
	meta := media.DefaultMetadata
	if spec.wantsMetadata {
		meta = media.ProbeVideo(path)
	}

	var thumb interface{}
	if spec.wantsThumb {
		if userThumb := media.UserThumb(e.cfg.ThumbDir, userID); userThumb != "" {
			thumb = userThumb
		} else if info.Kind == KindVideo {
			if shot, shotErr := media.Screenshot(path, meta.Duration); shotErr == nil {
				screenshot = shot
				thumb = shot
			}
		}
	}

	opts := &telegram.MediaOptions{
		Caption:       buildCaption(info.Caption, rules),
		FileName:      name,
		Attributes:    spec.attrs(name, meta),
		ForceDocument: spec.forceDocument,
		Thumb:         thumb,
		ReplyID:       topic,
	}

	size := fileSize(path, info.Size)
	if size >= e.cfg.LargeFileLimit {
		return e.uploadLarge(env, path, opts, dest, userID, statusID)
	}

	if statusID != 0 {
		opts.ProgressManager = telegram.NewProgressManager(3,
			e.reporter.Callback(env.Status, "Uploading", userID, statusID))
	}
	if err := e.sendWithFloodRetry(env.Status, dest, path, opts); err != nil {
		return Result{Kind: ResultFailed, Reason: fmt.Sprintf("upload: %v", err), Err: err}
	}
	return Result{Kind: ResultUploaded}
}

// uploadLarge stages the file in the log group with the auxiliary
// session client, then copies it to the destination with the bot.
func (e *Executor) uploadLarge(env Env, path string, opts *telegram.MediaOptions, dest int64, userID int64, statusID int32) Result {
	if env.Aux == nil {
		return Result{Kind: ResultFailed, Reason: "file exceeds bot upload limit and no auxiliary session is configured"}
	}
	if e.cfg.LogGroupID == 0 {
		return Result{Kind: ResultFailed, Reason: "file exceeds bot upload limit and LOG_GROUP_ID is not set"}
	}

	if statusID != 0 {
		opts.ProgressManager = telegram.NewProgressManager(3,
			e.reporter.Callback(env.Status, "Uploading", userID, statusID))
	}
	staged, err := env.Aux.SendMedia(e.cfg.LogGroupID, path, opts)
	if err != nil {
		return Result{Kind: ResultFailed, Reason: fmt.Sprintf("staging upload: %v", err), Err: err}
	}

	fetched, err := env.Status.GetMessage(e.cfg.LogGroupID, staged.ID)
	if err != nil {
		return Result{Kind: ResultFailed, Reason: fmt.Sprintf("fetch staged copy: %v", err), Err: err}
	}
	if _, err := env.Status.SendMedia(dest, fetched.Media(), &telegram.MediaOptions{
		Caption: opts.Caption,
		ReplyID: opts.ReplyID,
	}); err != nil {
		return Result{Kind: ResultFailed, Reason: fmt.Sprintf("deliver staged copy: %v", err), Err: err}
	}
	return Result{Kind: ResultUploaded}
}

// sendWithFloodRetry uploads once and retries a single time after a
// server-mandated wait.
func (e *Executor) sendWithFloodRetry(client Client, dest int64, path string, opts *telegram.MediaOptions) error {
	_, err := client.SendMedia(dest, path, opts)
	if err == nil {
		return nil
	}
	wait, ok := FloodWait(err)
	if !ok {
		return err
	}
	logger.L().Infof("Upload rate limited, sleeping %v", wait+time.Second)
	e.sleep(wait + time.Second)
	_, err = client.SendMedia(dest, path, opts)
	return err
}

// cleanup removes transfer byproducts. Both paths may already be gone;
// the user's persistent thumbnail is never touched here.
func (e *Executor) cleanup(paths ...string) {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			logger.L().Warnf("Cleanup failed for %s: %v", p, err)
		}
	}
}

// parseDestination resolves the stored CHAT_ID value. Empty means the
// user's own chat. "chat/topic" addresses a forum topic.
func parseDestination(raw string, userID int64) (int64, int32, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return userID, 0, nil
	}

	chatPart, topicPart, hasTopic := strings.Cut(raw, "/")
	chat, err := strconv.ParseInt(chatPart, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid chat id %q: %w", chatPart, err)
	}

	var topic int32
	if hasTopic {
		t, err := strconv.ParseInt(topicPart, 10, 32)
		if err != nil || t < 1 {
			return 0, 0, fmt.Errorf("invalid topic id %q", topicPart)
		}
		topic = int32(t)
	}
	return chat, topic, nil
}

func buildCaption(original string, rules Rules) string {
	caption := ApplyTextRules(original, rules)
	if rules.Caption == "" {
		return caption
	}
	if caption == "" {
		return rules.Caption
	}
	return caption + "\n\n" + rules.Caption
}

func extensionForKind(kind MediaKind) string {
	switch kind {
	case KindVideo, KindVideoNote:
		return ".mp4"
	case KindAudio:
		return ".mp3"
	case KindVoice:
		return ".ogg"
	case KindPhoto:
		return ".jpg"
	case KindSticker:
		return ".webp"
	default:
		return ".bin"
	}
}

func fileSize(path string, fallback int64) int64 {
	if st, err := os.Stat(path); err == nil {
		return st.Size()
	}
	return fallback
}

// truncate caps user-facing error text so status edits never exceed
// message limits.
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "…"
}
