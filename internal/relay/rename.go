package relay

import (
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Rules are the user's renaming and caption rewriting preferences.
type Rules struct {
	DeleteWords  []string
	Replacements map[string]string
	Tag          string
	Caption      string
}

// Extensions treated as video containers. Renamed videos are always
// delivered as .mp4 so Telegram streams them.
var videoExtensions = map[string]bool{
	".mp4": true, ".mkv": true, ".webm": true, ".avi": true,
	".mov": true, ".flv": true, ".wmv": true, ".m4v": true,
	".3gp": true, ".ts": true,
}

var filenameSanitizer = strings.NewReplacer(
	"<", "_", ">", "_", ":", "_", `"`, "_",
	"/", "_", `\`, "_", "|", "_", "?", "_",
	"*", "_", "'", "_",
)

const maxFilenameLen = 255

// RenameFile applies the user's rename policy to a source filename and
// returns a safe destination name.
func RenameFile(name string, rules Rules) string {
	ext := strings.ToLower(filepath.Ext(name))
	base := strings.TrimSuffix(name, filepath.Ext(name))

	words := strings.Fields(base)
	kept := words[:0]
	for _, w := range words {
		if !containsFold(rules.DeleteWords, w) {
			kept = append(kept, w)
		}
	}
	base = strings.Join(kept, " ")

	for word, repl := range rules.Replacements {
		base = strings.ReplaceAll(base, word, repl)
	}
	base = strings.Join(strings.Fields(base), " ")

	if base == "" {
		base = uuid.New().String()[:8]
	}

	if rules.Tag != "" {
		base = base + " " + rules.Tag
	}

	if videoExtensions[ext] {
		ext = ".mp4"
	}

	final := Sanitize(base + ext)
	return final
}

// ApplyTextRules rewrites message text and captions: replacements
// first, then the delete-word token filter.
func ApplyTextRules(text string, rules Rules) string {
	if text == "" {
		return ""
	}
	for word, repl := range rules.Replacements {
		text = strings.ReplaceAll(text, word, repl)
	}
	if len(rules.DeleteWords) == 0 {
		return text
	}

	words := strings.Fields(text)
	kept := words[:0]
	for _, w := range words {
		if !contains(rules.DeleteWords, w) {
			kept = append(kept, w)
		}
	}
	return strings.Join(kept, " ")
}

// Sanitize strips characters Telegram and common filesystems reject
// and caps the name at 255 bytes.
func Sanitize(name string) string {
	name = filenameSanitizer.Replace(name)
	if len(name) > maxFilenameLen {
		name = name[:maxFilenameLen]
	}
	return name
}

func contains(words []string, w string) bool {
	for _, x := range words {
		if x == w {
			return true
		}
	}
	return false
}

func containsFold(words []string, w string) bool {
	for _, x := range words {
		if strings.EqualFold(x, w) {
			return true
		}
	}
	return false
}
