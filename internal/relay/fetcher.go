package relay

import (
	"github.com/amarnathcjd/gogram/telegram"

	"github.com/hakutakaid/SaveRestrict/internal/logger"
)

// Fetcher resolves a parsed link into a message. It never returns an
// error: every failure path is logged and yields nil, so callers treat
// an unobtainable message like a deleted one.
type Fetcher struct{}

// NewFetcher creates a Fetcher.
func NewFetcher() *Fetcher {
	return &Fetcher{}
}

// Fetch obtains the message behind the link. Public links go through
// the bot client first and fall back to the session client; private
// links need the session client and fail immediately without one. The
// session client joins the chat and retries once when the first fetch
// fails.
func (f *Fetcher) Fetch(bot, user Client, link *Link) *telegram.NewMessage {
	peer := link.Peer()

	if link.Visibility == VisibilityPrivate {
		if user == nil {
			logger.L().Debugf("Private link %v/%d needs a session client", peer, link.MessageID)
			return nil
		}
		return f.fetchWithJoin(user, peer, link.MessageID)
	}

	if bot != nil {
		msg, err := bot.GetMessage(peer, link.MessageID)
		if err == nil && msg != nil {
			return msg
		}
		logger.L().Debugf("Bot fetch failed for %v/%d: %v", peer, link.MessageID, err)
	}

	if user == nil {
		return nil
	}
	return f.fetchWithJoin(user, peer, link.MessageID)
}

// fetchWithJoin fetches with the session client; on failure it joins
// the chat, refreshes dialogs and retries once.
func (f *Fetcher) fetchWithJoin(user Client, peer interface{}, id int32) *telegram.NewMessage {
	msg, err := user.GetMessage(peer, id)
	if err == nil && msg != nil {
		return msg
	}
	logger.L().Debugf("User fetch failed for %v/%d: %v", peer, id, err)

	// join and retry once; a join failure still gets the retry since
	// the first error may have been a stale dialog cache
	if joinErr := user.Join(peer); joinErr != nil {
		logger.L().Debugf("Join failed for %v: %v", peer, joinErr)
	}
	if refreshErr := user.RefreshDialogs(); refreshErr != nil {
		logger.L().Debugf("Dialog refresh failed: %v", refreshErr)
	}

	msg, err = user.GetMessage(peer, id)
	if err != nil || msg == nil {
		logger.L().Warnf("Message %v/%d unobtainable: %v", peer, id, err)
		return nil
	}
	return msg
}
