package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the full application configuration.
type Config struct {
	BotToken      string  // control bot token (Bot API)
	APIID         int32   // Telegram application ID (MTProto)
	APIHash       string  // Telegram application hash (MTProto)
	StringSession string  // auxiliary session for large-file escalation, optional
	OwnerIDs      []int64 // bot owner user IDs

	MongoURI     string
	MongoDBName  string
	MongoTimeout time.Duration

	LogGroupID        int64 // staging chat for the large-file path
	FreeBatchLimit    int
	PremiumBatchLimit int

	DownloadDir string
	ThumbDir    string

	SessionKey []byte // AES key for credentials at rest, optional

	WorkerCount int
	QueueSize   int
}

// Load reads configuration from the environment. A .env file in the
// working directory is applied first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		BotToken:      strings.TrimSpace(os.Getenv("BOT_TOKEN")),
		APIHash:       strings.TrimSpace(os.Getenv("API_HASH")),
		StringSession: strings.TrimSpace(os.Getenv("STRING_SESSION")),
		MongoURI:      strings.TrimSpace(os.Getenv("MONGODB_URI")),
	}

	if cfg.BotToken == "" {
		return nil, fmt.Errorf("BOT_TOKEN is required")
	}
	if cfg.APIHash == "" {
		return nil, fmt.Errorf("API_HASH is required")
	}
	if cfg.MongoURI == "" {
		return nil, fmt.Errorf("MONGODB_URI is required")
	}

	apiID, err := parseInt("API_ID", 0)
	if err != nil {
		return nil, err
	}
	if apiID == 0 {
		return nil, fmt.Errorf("API_ID is required")
	}
	cfg.APIID = int32(apiID)

	cfg.MongoDBName = os.Getenv("MONGODB_DATABASE")
	if cfg.MongoDBName == "" {
		cfg.MongoDBName = "save_restrict"
	}

	timeoutSec, err := parseInt("MONGODB_TIMEOUT", 10)
	if err != nil {
		return nil, err
	}
	cfg.MongoTimeout = time.Duration(timeoutSec) * time.Second

	logGroup, err := parseInt64("LOG_GROUP_ID", 0)
	if err != nil {
		return nil, err
	}
	cfg.LogGroupID = logGroup

	if cfg.FreeBatchLimit, err = parseInt("FREE_BATCH_LIMIT", 25); err != nil {
		return nil, err
	}
	if cfg.PremiumBatchLimit, err = parseInt("PREMIUM_BATCH_LIMIT", 500); err != nil {
		return nil, err
	}
	if cfg.FreeBatchLimit < 1 || cfg.PremiumBatchLimit < cfg.FreeBatchLimit {
		return nil, fmt.Errorf("batch limits misconfigured: free=%d premium=%d",
			cfg.FreeBatchLimit, cfg.PremiumBatchLimit)
	}

	cfg.DownloadDir = os.Getenv("DOWNLOAD_DIR")
	if cfg.DownloadDir == "" {
		cfg.DownloadDir = "downloads"
	}
	cfg.ThumbDir = os.Getenv("THUMB_DIR")
	if cfg.ThumbDir == "" {
		cfg.ThumbDir = "thumbnails"
	}

	if cfg.WorkerCount, err = parseInt("WORKER_COUNT", 8); err != nil {
		return nil, err
	}
	if cfg.QueueSize, err = parseInt("QUEUE_SIZE", 256); err != nil {
		return nil, err
	}

	ownerIDsStr := os.Getenv("OWNER_IDS")
	if ownerIDsStr != "" {
		cfg.OwnerIDs, err = parseOwnerIDs(ownerIDsStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse OWNER_IDS: %w", err)
		}
	}

	if keyHex := strings.TrimSpace(os.Getenv("SESSION_KEY")); keyHex != "" {
		key, err := hex.DecodeString(keyHex)
		if err != nil {
			return nil, fmt.Errorf("SESSION_KEY must be hex: %w", err)
		}
		if len(key) != 16 && len(key) != 32 {
			return nil, fmt.Errorf("SESSION_KEY must be 16 or 32 bytes, got %d", len(key))
		}
		cfg.SessionKey = key
	}

	return cfg, nil
}

// parseOwnerIDs parses a comma-separated user ID list,
// e.g. "123456789" or "123456789,987654321".
func parseOwnerIDs(s string) ([]int64, error) {
	parts := strings.Split(s, ",")
	ids := make([]int64, 0, len(parts))

	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid owner ID %q: %w", part, err)
		}
		ids = append(ids, id)
	}

	return ids, nil
}

func parseInt(name string, def int) (int, error) {
	s := strings.TrimSpace(os.Getenv(name))
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("failed to parse %s: %w", name, err)
	}
	return v, nil
}

func parseInt64(name string, def int64) (int64, error) {
	s := strings.TrimSpace(os.Getenv(name))
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse %s: %w", name, err)
	}
	return v, nil
}
