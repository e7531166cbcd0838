package relay

import (
	"context"
	"sync"

	"github.com/amarnathcjd/gogram/telegram"
	"github.com/pkg/errors"

	"github.com/hakutakaid/SaveRestrict/internal/logger"
	"github.com/hakutakaid/SaveRestrict/internal/security"
	"github.com/hakutakaid/SaveRestrict/internal/telegram/models"
)

// CredentialKind selects how a pooled client authorizes.
type CredentialKind int

const (
	// CredentialBot authorizes with a bot token.
	CredentialBot CredentialKind = iota
	// CredentialSession authorizes with an exported session string.
	CredentialSession
)

// Credential is a decrypted secret ready to dial with.
type Credential struct {
	Kind   CredentialKind
	Secret string
}

// Dialer turns a credential into a connected Client. Injected so pool
// behaviour is testable without the network.
type Dialer func(cred Credential) (Client, error)

// SettingsStore is the slice of the settings repository the pool
// needs.
type SettingsStore interface {
	Get(ctx context.Context, userID int64) (*models.UserSettings, error)
	ClearSession(ctx context.Context, userID int64) error
	ClearBotToken(ctx context.Context, userID int64) error
}

// PoolConfig carries the MTProto application identity.
type PoolConfig struct {
	AppID         int32
	AppHash       string
	BotToken      string // main bot, status cards and final copies
	StringSession string // auxiliary client, optional
}

// Pool caches one bot client and one session client per user. Clients
// are built lazily from stored credentials and dropped when Telegram
// reports the credential revoked.
type Pool struct {
	cfg      PoolConfig
	settings SettingsStore
	cipher   *security.Cipher
	dial     Dialer

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
	bots  map[int64]Client
	users map[int64]Client

	auxOnce sync.Once
	aux     Client
	auxErr  error

	mainOnce sync.Once
	main     Client
	mainErr  error
}

// NewPool builds a pool that dials real gogram clients.
func NewPool(cfg PoolConfig, settings SettingsStore, cipher *security.Cipher) *Pool {
	p := newPoolWithDialer(cfg, settings, cipher, nil)
	p.dial = p.gogramDial
	return p
}

func newPoolWithDialer(cfg PoolConfig, settings SettingsStore, cipher *security.Cipher, dial Dialer) *Pool {
	return &Pool{
		cfg:      cfg,
		settings: settings,
		cipher:   cipher,
		dial:     dial,
		locks:    make(map[int64]*sync.Mutex),
		bots:     make(map[int64]Client),
		users:    make(map[int64]Client),
	}
}

// UserBot returns the user's bot-token client, building it on first
// use. ErrNoBotToken when none is stored, ErrSessionInvalid when the
// stored token was revoked (the token is purged). Rate-limit errors
// pass through untouched and nothing is cached or invalidated.
func (p *Pool) UserBot(ctx context.Context, userID int64) (Client, error) {
	lock := p.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	p.mu.Lock()
	cached := p.bots[userID]
	p.mu.Unlock()
	if cached != nil {
		return cached, nil
	}

	settings, err := p.settings.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if settings.BotToken == "" {
		return nil, ErrNoBotToken
	}
	token, err := p.cipher.Decrypt(settings.BotToken)
	if err != nil {
		return nil, errors.Wrap(err, "decrypt bot token")
	}

	client, err := p.dial(Credential{Kind: CredentialBot, Secret: token})
	if err != nil {
		if IsAuthRevoked(err) {
			logger.L().Warnf("Bot token revoked for user %d, purging", userID)
			if clearErr := p.settings.ClearBotToken(ctx, userID); clearErr != nil {
				logger.L().Errorf("Failed to purge bot token for user %d: %v", userID, clearErr)
			}
			return nil, ErrSessionInvalid
		}
		return nil, err
	}

	p.mu.Lock()
	p.bots[userID] = client
	p.mu.Unlock()
	return client, nil
}

// UserClient returns the user's session client, building it on first
// use. Semantics mirror UserBot with ErrNoSession for the missing
// case.
func (p *Pool) UserClient(ctx context.Context, userID int64) (Client, error) {
	lock := p.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	p.mu.Lock()
	cached := p.users[userID]
	p.mu.Unlock()
	if cached != nil {
		return cached, nil
	}

	settings, err := p.settings.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if settings.Session == "" {
		return nil, ErrNoSession
	}
	session, err := p.cipher.Decrypt(settings.Session)
	if err != nil {
		return nil, errors.Wrap(err, "decrypt session")
	}

	client, err := p.dial(Credential{Kind: CredentialSession, Secret: session})
	if err != nil {
		if IsAuthRevoked(err) {
			logger.L().Warnf("Session revoked for user %d, purging", userID)
			if clearErr := p.settings.ClearSession(ctx, userID); clearErr != nil {
				logger.L().Errorf("Failed to purge session for user %d: %v", userID, clearErr)
			}
			return nil, ErrSessionInvalid
		}
		return nil, err
	}
	warmDialogs(client)

	p.mu.Lock()
	p.users[userID] = client
	p.mu.Unlock()
	return client, nil
}

// warmDialogs pulls the dialog list once on a fresh session client so
// private peers resolve on the first fetch.
func warmDialogs(client Client) {
	if err := client.RefreshDialogs(); err != nil {
		logger.L().Debugf("Initial dialog refresh failed: %v", err)
	}
}

// Aux returns the process-wide auxiliary client used for large-file
// escalation, or nil when no STRING_SESSION is configured.
func (p *Pool) Aux() Client {
	if p.cfg.StringSession == "" {
		return nil
	}
	p.auxOnce.Do(func() {
		p.aux, p.auxErr = p.dial(Credential{Kind: CredentialSession, Secret: p.cfg.StringSession})
		if p.auxErr != nil {
			logger.L().Errorf("Failed to start auxiliary client: %v", p.auxErr)
			return
		}
		warmDialogs(p.aux)
	})
	return p.aux
}

// Main returns the process-wide main bot client, or nil when no
// BOT_TOKEN is configured. The main bot posts status cards and sends
// the final copy after a staged large-file upload.
func (p *Pool) Main() Client {
	if p.cfg.BotToken == "" {
		return nil
	}
	p.mainOnce.Do(func() {
		p.main, p.mainErr = p.dial(Credential{Kind: CredentialBot, Secret: p.cfg.BotToken})
		if p.mainErr != nil {
			logger.L().Errorf("Failed to start main bot client: %v", p.mainErr)
		}
	})
	return p.main
}

// DropUserClient closes and forgets the user's session client. Used on
// logout.
func (p *Pool) DropUserClient(userID int64) {
	p.mu.Lock()
	client := p.users[userID]
	delete(p.users, userID)
	p.mu.Unlock()
	if client != nil {
		client.Close()
	}
}

// DropUserBot closes and forgets the user's bot client.
func (p *Pool) DropUserBot(userID int64) {
	p.mu.Lock()
	client := p.bots[userID]
	delete(p.bots, userID)
	p.mu.Unlock()
	if client != nil {
		client.Close()
	}
}

// CloseAll terminates every pooled client.
func (p *Pool) CloseAll() {
	p.mu.Lock()
	clients := make([]Client, 0, len(p.bots)+len(p.users)+1)
	for _, c := range p.bots {
		clients = append(clients, c)
	}
	for _, c := range p.users {
		clients = append(clients, c)
	}
	p.bots = make(map[int64]Client)
	p.users = make(map[int64]Client)
	if p.aux != nil {
		clients = append(clients, p.aux)
		p.aux = nil
	}
	if p.main != nil {
		clients = append(clients, p.main)
		p.main = nil
	}
	p.mu.Unlock()

	for _, c := range clients {
		c.Close()
	}
}

func (p *Pool) userLock(userID int64) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	lock, ok := p.locks[userID]
	if !ok {
		lock = &sync.Mutex{}
		p.locks[userID] = lock
	}
	return lock
}

// gogramDial builds, connects and verifies a real MTProto client.
func (p *Pool) gogramDial(cred Credential) (Client, error) {
	cfg := telegram.ClientConfig{
		AppID:         p.cfg.AppID,
		AppHash:       p.cfg.AppHash,
		MemorySession: true,
	}
	if cred.Kind == CredentialSession {
		cfg.StringSession = cred.Secret
	}

	client, err := telegram.NewClient(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "create client")
	}
	if _, err := client.Conn(); err != nil {
		return nil, errors.Wrap(err, "connect")
	}
	if cred.Kind == CredentialBot {
		if err := client.LoginBot(cred.Secret); err != nil {
			return nil, errors.Wrap(err, "login bot")
		}
	}
	// verify authorization actually works before handing the client out
	if _, err := client.GetMe(); err != nil {
		client.Terminate()
		return nil, errors.Wrap(err, "get me")
	}
	return WrapClient(client), nil
}
