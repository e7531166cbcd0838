package relay

import (
	"regexp"
	"strconv"

	"github.com/pkg/errors"
)

// Visibility distinguishes the two fetch strategies.
type Visibility int

const (
	// VisibilityPublic means the chat is addressable by username.
	VisibilityPublic Visibility = iota
	// VisibilityPrivate means the chat is only addressable by its
	// internal channel ID.
	VisibilityPrivate
)

// ErrInvalidLink is returned for text that is not a t.me message link.
var ErrInvalidLink = errors.New("not a valid t.me message link")

// Link is a parsed t.me message reference.
type Link struct {
	ChatRef    string // username, or "-100<id>" for private chats
	MessageID  int32
	Visibility Visibility
}

var (
	privateLinkRe = regexp.MustCompile(`t\.me/(?:c|b)/(\d+)(?:/\d+)*/(\d+)/?$`)
	publicLinkRe  = regexp.MustCompile(`t\.me/([A-Za-z0-9_]{4,32})/(\d+)/?$`)
)

// ParseLink classifies a t.me message link without touching the
// network.
//
//	t.me/c/<internal-id>/<msg>   private channel (topic segments allowed)
//	t.me/b/<internal-id>/<msg>   private bot chat
//	t.me/<username>/<msg>        public chat
func ParseLink(text string) (*Link, error) {
	if m := privateLinkRe.FindStringSubmatch(text); m != nil {
		msgID, err := strconv.ParseInt(m[2], 10, 32)
		if err != nil || msgID < 1 {
			return nil, ErrInvalidLink
		}
		return &Link{
			ChatRef:    "-100" + m[1],
			MessageID:  int32(msgID),
			Visibility: VisibilityPrivate,
		}, nil
	}

	if m := publicLinkRe.FindStringSubmatch(text); m != nil {
		// "c" and "b" are path markers, not usernames
		if m[1] == "c" || m[1] == "b" {
			return nil, ErrInvalidLink
		}
		msgID, err := strconv.ParseInt(m[2], 10, 32)
		if err != nil || msgID < 1 {
			return nil, ErrInvalidLink
		}
		return &Link{
			ChatRef:    m[1],
			MessageID:  int32(msgID),
			Visibility: VisibilityPublic,
		}, nil
	}

	return nil, ErrInvalidLink
}

// Peer returns the chat reference in the form the MTProto layer
// accepts: int64 for private channel IDs, username string otherwise.
func (l *Link) Peer() interface{} {
	if l.Visibility == VisibilityPrivate {
		id, err := strconv.ParseInt(l.ChatRef, 10, 64)
		if err == nil {
			return id
		}
	}
	return l.ChatRef
}

// WithMessageID returns a copy of the link pointing at a different
// message in the same chat.
func (l *Link) WithMessageID(id int32) *Link {
	c := *l
	c.MessageID = id
	return &c
}
