package relay

import (
	"context"
	"sync"

	"github.com/amarnathcjd/gogram/telegram"

	"github.com/hakutakaid/SaveRestrict/internal/telegram/models"
)

// fakeClient scripts the Client interface for tests.
type fakeClient struct {
	mu sync.Mutex

	getMessage func(peer interface{}, id int32) (*telegram.NewMessage, error)
	sendText   func(peer interface{}, text string, replyTo int32) (*telegram.NewMessage, error)
	editText   func(peer interface{}, id int32, text string) error
	sendMedia  func(peer interface{}, media interface{}, opts *telegram.MediaOptions) (*telegram.NewMessage, error)
	download   func(msg *telegram.NewMessage, opts *telegram.DownloadOptions) (string, error)
	join       func(ref interface{}) error

	joined      []interface{}
	refreshed   int
	deleted     []int32
	sentTexts   []string
	editedTexts []string
	sentMedia   []sentMediaCall
	closed      bool
}

type sentMediaCall struct {
	peer  interface{}
	media interface{}
	opts  *telegram.MediaOptions
}

func (f *fakeClient) GetMessage(peer interface{}, id int32) (*telegram.NewMessage, error) {
	if f.getMessage != nil {
		return f.getMessage(peer, id)
	}
	return &telegram.NewMessage{ID: id, Message: &telegram.MessageObj{ID: id}}, nil
}

func (f *fakeClient) SendText(peer interface{}, text string, replyTo int32) (*telegram.NewMessage, error) {
	f.mu.Lock()
	f.sentTexts = append(f.sentTexts, text)
	f.mu.Unlock()
	if f.sendText != nil {
		return f.sendText(peer, text, replyTo)
	}
	return &telegram.NewMessage{ID: 900, Message: &telegram.MessageObj{ID: 900}}, nil
}

func (f *fakeClient) EditText(peer interface{}, id int32, text string) error {
	f.mu.Lock()
	f.editedTexts = append(f.editedTexts, text)
	f.mu.Unlock()
	if f.editText != nil {
		return f.editText(peer, id, text)
	}
	return nil
}

func (f *fakeClient) DeleteMessage(peer interface{}, id int32) error {
	f.mu.Lock()
	f.deleted = append(f.deleted, id)
	f.mu.Unlock()
	return nil
}

func (f *fakeClient) SendMedia(peer interface{}, media interface{}, opts *telegram.MediaOptions) (*telegram.NewMessage, error) {
	f.mu.Lock()
	f.sentMedia = append(f.sentMedia, sentMediaCall{peer: peer, media: media, opts: opts})
	f.mu.Unlock()
	if f.sendMedia != nil {
		return f.sendMedia(peer, media, opts)
	}
	return &telegram.NewMessage{ID: 901, Message: &telegram.MessageObj{ID: 901}}, nil
}

func (f *fakeClient) Download(msg *telegram.NewMessage, opts *telegram.DownloadOptions) (string, error) {
	if f.download != nil {
		return f.download(msg, opts)
	}
	return "", nil
}

func (f *fakeClient) Join(ref interface{}) error {
	f.mu.Lock()
	f.joined = append(f.joined, ref)
	f.mu.Unlock()
	if f.join != nil {
		return f.join(ref)
	}
	return nil
}

func (f *fakeClient) RefreshDialogs() error {
	f.mu.Lock()
	f.refreshed++
	f.mu.Unlock()
	return nil
}

func (f *fakeClient) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

// fakeSettings is an in-memory SettingsStore.
type fakeSettings struct {
	mu              sync.Mutex
	docs            map[int64]*models.UserSettings
	clearedSessions []int64
	clearedTokens   []int64
}

func newFakeSettings() *fakeSettings {
	return &fakeSettings{docs: map[int64]*models.UserSettings{}}
}

func (s *fakeSettings) Get(_ context.Context, userID int64) (*models.UserSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if doc, ok := s.docs[userID]; ok {
		copied := *doc
		return &copied, nil
	}
	return &models.UserSettings{UserID: userID}, nil
}

func (s *fakeSettings) ClearSession(_ context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearedSessions = append(s.clearedSessions, userID)
	if doc, ok := s.docs[userID]; ok {
		doc.Session = ""
	}
	return nil
}

func (s *fakeSettings) ClearBotToken(_ context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearedTokens = append(s.clearedTokens, userID)
	if doc, ok := s.docs[userID]; ok {
		doc.BotToken = ""
	}
	return nil
}

func (s *fakeSettings) set(doc *models.UserSettings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[doc.UserID] = doc
}
