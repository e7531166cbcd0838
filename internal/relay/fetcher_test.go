package relay

import (
	"testing"

	"github.com/amarnathcjd/gogram/telegram"
	"github.com/pkg/errors"
)

func privateLink(t *testing.T) *Link {
	t.Helper()
	link, err := ParseLink("https://t.me/c/1234567890/55")
	if err != nil {
		t.Fatalf("ParseLink failed: %v", err)
	}
	return link
}

func publicLink(t *testing.T) *Link {
	t.Helper()
	link, err := ParseLink("https://t.me/somechannel/42")
	if err != nil {
		t.Fatalf("ParseLink failed: %v", err)
	}
	return link
}

func TestFetchPublicPrefersBot(t *testing.T) {
	want := &telegram.NewMessage{ID: 42, Message: &telegram.MessageObj{ID: 42}}
	bot := &fakeClient{getMessage: func(peer interface{}, id int32) (*telegram.NewMessage, error) {
		if peer != interface{}("somechannel") {
			t.Fatalf("unexpected peer: %v", peer)
		}
		return want, nil
	}}
	user := &fakeClient{getMessage: func(interface{}, int32) (*telegram.NewMessage, error) {
		t.Fatal("session client must not be consulted when the bot succeeds")
		return nil, nil
	}}

	if got := NewFetcher().Fetch(bot, user, publicLink(t)); got != want {
		t.Fatal("expected the bot-fetched message")
	}

	// a bot alone is enough for public chats
	if got := NewFetcher().Fetch(bot, nil, publicLink(t)); got != want {
		t.Fatal("expected the bot fetch to work without a session client")
	}
}

func TestFetchPublicFallsBackToUserClient(t *testing.T) {
	bot := &fakeClient{getMessage: func(interface{}, int32) (*telegram.NewMessage, error) {
		return nil, errors.New("CHANNEL_PRIVATE")
	}}
	want := &telegram.NewMessage{ID: 42, Message: &telegram.MessageObj{ID: 42}}
	user := &fakeClient{getMessage: func(interface{}, int32) (*telegram.NewMessage, error) {
		return want, nil
	}}

	if got := NewFetcher().Fetch(bot, user, publicLink(t)); got != want {
		t.Fatal("expected the user-fetched message")
	}
}

func TestFetchPrivateRequiresUserClient(t *testing.T) {
	bot := &fakeClient{getMessage: func(interface{}, int32) (*telegram.NewMessage, error) {
		t.Fatal("bot client must not be consulted for private links")
		return nil, nil
	}}

	if got := NewFetcher().Fetch(bot, nil, privateLink(t)); got != nil {
		t.Fatal("expected nil for a private link without a session client")
	}
}

func TestFetchPrivateUsesUserClient(t *testing.T) {
	want := &telegram.NewMessage{ID: 55, Message: &telegram.MessageObj{ID: 55}}
	user := &fakeClient{getMessage: func(peer interface{}, id int32) (*telegram.NewMessage, error) {
		if peer != interface{}(int64(-1001234567890)) {
			t.Fatalf("unexpected peer: %v", peer)
		}
		return want, nil
	}}

	if got := NewFetcher().Fetch(nil, user, privateLink(t)); got != want {
		t.Fatal("expected the user-fetched message")
	}
}

func TestFetchJoinsAndRetriesOnce(t *testing.T) {
	want := &telegram.NewMessage{ID: 42, Message: &telegram.MessageObj{ID: 42}}
	calls := 0
	user := &fakeClient{}
	user.getMessage = func(interface{}, int32) (*telegram.NewMessage, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("CHANNEL_INVALID")
		}
		return want, nil
	}

	got := NewFetcher().Fetch(nil, user, publicLink(t))
	if got != want {
		t.Fatal("expected the retried fetch to succeed")
	}
	if len(user.joined) != 1 {
		t.Fatalf("expected one join attempt, got %d", len(user.joined))
	}
	if user.refreshed != 1 {
		t.Fatalf("expected one dialog refresh, got %d", user.refreshed)
	}
	if calls != 2 {
		t.Fatalf("expected exactly 2 fetch attempts, got %d", calls)
	}
}

func TestFetchNeverErrors(t *testing.T) {
	user := &fakeClient{
		getMessage: func(interface{}, int32) (*telegram.NewMessage, error) {
			return nil, errors.New("MSG_ID_INVALID")
		},
		join: func(interface{}) error { return errors.New("INVITE_REQUEST_SENT") },
	}

	if got := NewFetcher().Fetch(nil, user, publicLink(t)); got != nil {
		t.Fatal("expected nil for an unobtainable message")
	}

	if got := NewFetcher().Fetch(nil, nil, publicLink(t)); got != nil {
		t.Fatal("expected nil with no clients at all")
	}
}
