package relay

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

var (
	// ErrNoBotToken means the user never stored a bot token.
	ErrNoBotToken = errors.New("no bot token configured")
	// ErrNoSession means the user never stored a session string.
	ErrNoSession = errors.New("no session configured")
	// ErrSessionInvalid means the stored credential was revoked and
	// has been cleared.
	ErrSessionInvalid = errors.New("stored credential is no longer valid")
	// ErrBatchActive means the user already has a running batch job.
	ErrBatchActive = errors.New("a batch job is already running for this user")
)

var floodWaitRe = regexp.MustCompile(`FLOOD(?:_PREMIUM)?_WAIT_(\d+)`)

// FloodWait extracts the server-mandated wait from a rate-limit error.
// The boolean is false for any other error.
func FloodWait(err error) (time.Duration, bool) {
	if err == nil {
		return 0, false
	}
	m := floodWaitRe.FindStringSubmatch(err.Error())
	if m == nil {
		return 0, false
	}
	sec, convErr := strconv.Atoi(m[1])
	if convErr != nil {
		return 0, false
	}
	return time.Duration(sec) * time.Second, true
}

// permanent credential failures; rate limits are deliberately absent
var authRevokedMarkers = []string{
	"USER_DEACTIVATED",
	"AUTH_KEY_UNREGISTERED",
	"SESSION_REVOKED",
	"SESSION_EXPIRED",
	"PEER_ID_INVALID",
}

// IsAuthRevoked reports whether the error indicates the credential is
// permanently unusable and should be purged from the store.
func IsAuthRevoked(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, marker := range authRevokedMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// isForwardRestricted matches the failure a protected chat returns on
// a direct copy attempt.
func isForwardRestricted(err error) bool {
	return err != nil && strings.Contains(err.Error(), "CHAT_FORWARDS_RESTRICTED")
}
