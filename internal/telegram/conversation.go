package telegram

import (
	"sync"

	"github.com/hakutakaid/SaveRestrict/internal/relay"
)

// pendingKind tags what input the bot is waiting for from a user.
type pendingKind int

const (
	pendingNone pendingKind = iota
	pendingBatchLink
	pendingBatchCount
	pendingChatID
	pendingRenameTag
	pendingCaption
	pendingReplacement
	pendingDeleteWords
	pendingSession
	pendingBotToken
	pendingThumb
)

// pending is one user's in-flight conversation step.
type pending struct {
	kind pendingKind
	link *relay.Link // batch flow: the parsed start link
	raw  string      // batch flow: the link as the user sent it
}

// conversations tracks the per-user input state machine. Every prompt
// the bot sends arms exactly one pending step; the next message from
// that user consumes it.
type conversations struct {
	mu sync.Mutex
	m  map[int64]*pending
}

func newConversations() *conversations {
	return &conversations{m: make(map[int64]*pending)}
}

// arm replaces the user's pending step.
func (c *conversations) arm(userID int64, p *pending) {
	c.mu.Lock()
	c.m[userID] = p
	c.mu.Unlock()
}

// take pops and returns the user's pending step, or nil.
func (c *conversations) take(userID int64) *pending {
	c.mu.Lock()
	defer c.mu.Unlock()
	p := c.m[userID]
	delete(c.m, userID)
	return p
}

// peek returns the pending step without consuming it.
func (c *conversations) peek(userID int64) *pending {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.m[userID]
}

// clear drops any pending step.
func (c *conversations) clear(userID int64) {
	c.mu.Lock()
	delete(c.m, userID)
	c.mu.Unlock()
}
