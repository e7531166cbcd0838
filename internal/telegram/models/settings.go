package models

import "time"

// UserSettings stores per-user relay preferences and credentials.
// Session and BotToken are encrypted at rest when a session key is
// configured.
type UserSettings struct {
	UserID       int64             `bson:"user_id"`
	ChatID       string            `bson:"chat_id,omitempty"`      // "<chat>" or "<chat>/<topic>"
	RenameTag    string            `bson:"rename_tag,omitempty"`   // appended to renamed files
	Caption      string            `bson:"caption,omitempty"`      // custom caption suffix
	Replacements map[string]string `bson:"replacements,omitempty"` // word -> replacement
	DeleteWords  []string          `bson:"delete_words,omitempty"` // removed from names and captions
	Session      string            `bson:"session,omitempty"`      // user account session string
	BotToken     string            `bson:"bot_token,omitempty"`    // user bot token
	UpdatedAt    time.Time         `bson:"updated_at"`
}

// NeedsFileRename reports whether any rule rewrites file names, which
// forces the download path instead of a direct copy. A custom caption
// alone does not: captions are rebuilt on the copy as well.
func (s *UserSettings) NeedsFileRename() bool {
	if s == nil {
		return false
	}
	return s.RenameTag != "" || len(s.Replacements) > 0 || len(s.DeleteWords) > 0
}
