package relay

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/amarnathcjd/gogram/telegram"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/hakutakaid/SaveRestrict/internal/telegram/models"
)

func newTestExecutor(t *testing.T, store SettingsStore) *Executor {
	t.Helper()
	e := NewExecutor(ExecutorConfig{
		DownloadDir: t.TempDir(),
		ThumbDir:    t.TempDir(),
		LogGroupID:  -100555,
	}, store, NewReporter())
	e.sleep = func(time.Duration) {}
	return e
}

// downloadToTempFile makes the fake client materialize a real file so
// cleanup behaviour is observable.
func downloadToTempFile(t *testing.T, content string) (func(*telegram.NewMessage, *telegram.DownloadOptions) (string, error), *string) {
	t.Helper()
	var written string
	fn := func(_ *telegram.NewMessage, opts *telegram.DownloadOptions) (string, error) {
		if err := os.WriteFile(opts.FileName, []byte(content), 0o644); err != nil {
			return "", err
		}
		written = opts.FileName
		return opts.FileName, nil
	}
	return fn, &written
}

func TestProcessRejectsInvalidDestination(t *testing.T) {
	store := newFakeSettings()
	store.set(&models.UserSettings{UserID: 42, ChatID: "not-a-chat"})
	e := newTestExecutor(t, store)

	res := e.Process(context.Background(), Env{Status: &fakeClient{}, User: &fakeClient{}},
		docMessage("", 10), MediaInfo{Kind: KindDocument}, 42, publicLink(t))

	require.Equal(t, ResultFailed, res.Kind)
	require.Contains(t, res.Reason, "destination")
}

func TestProcessDeliversTextWithRules(t *testing.T) {
	store := newFakeSettings()
	store.set(&models.UserSettings{
		UserID:       42,
		Replacements: map[string]string{"foo": "bar"},
		DeleteWords:  []string{"promo"},
	})
	e := newTestExecutor(t, store)
	status := &fakeClient{}

	res := e.Process(context.Background(), Env{Status: status},
		nil, MediaInfo{Kind: KindNone, Caption: "foo release promo"}, 42, publicLink(t))

	require.Equal(t, ResultText, res.Kind)
	require.True(t, res.Success())
	require.Equal(t, []string{"bar release"}, status.sentTexts)
}

func TestProcessSkipsEmptyAndUnsupported(t *testing.T) {
	store := newFakeSettings()
	store.set(&models.UserSettings{UserID: 42, DeleteWords: []string{"promo"}})
	e := newTestExecutor(t, store)

	res := e.Process(context.Background(), Env{Status: &fakeClient{}},
		nil, MediaInfo{Kind: KindNone, Caption: "promo"}, 42, publicLink(t))
	require.Equal(t, ResultSkipped, res.Kind)
	require.False(t, res.Success())

	res = e.Process(context.Background(), Env{Status: &fakeClient{}},
		nil, MediaInfo{Kind: KindUnsupported}, 42, publicLink(t))
	require.Equal(t, ResultSkipped, res.Kind)
}

func TestProcessCopiesDirectlyFromPublicChats(t *testing.T) {
	e := newTestExecutor(t, newFakeSettings())
	status := &fakeClient{}
	user := &fakeClient{}

	msg := docMessage("caption", 10, &telegram.DocumentAttributeFilename{FileName: "a.pdf"})
	res := e.Process(context.Background(), Env{Status: status, User: user},
		msg, Describe(msg), 42, publicLink(t))

	require.Equal(t, ResultCopied, res.Kind)
	require.Len(t, user.sentMedia, 1)
	require.Equal(t, int64(42), user.sentMedia[0].peer) // default destination: own chat
	require.Empty(t, status.sentMedia)                  // no download path involved
}

func TestProcessCaptionOnlySettingsStillCopyDirectly(t *testing.T) {
	store := newFakeSettings()
	store.set(&models.UserSettings{UserID: 42, Caption: "@mychannel"})
	e := newTestExecutor(t, store)
	status := &fakeClient{}
	user := &fakeClient{}

	msg := docMessage("original", 10, &telegram.DocumentAttributeFilename{FileName: "a.pdf"})
	res := e.Process(context.Background(), Env{Status: status, User: user},
		msg, Describe(msg), 42, publicLink(t))

	require.Equal(t, ResultCopied, res.Kind)
	require.Len(t, user.sentMedia, 1)
	require.Equal(t, "original\n\n@mychannel", user.sentMedia[0].opts.Caption)
}

func TestProcessRenameRulesForceDownloadPath(t *testing.T) {
	store := newFakeSettings()
	store.set(&models.UserSettings{UserID: 42, RenameTag: "[x]"})
	e := newTestExecutor(t, store)

	download, written := downloadToTempFile(t, "payload")
	status := &fakeClient{}
	user := &fakeClient{download: download}

	msg := docMessage("", 10, &telegram.DocumentAttributeFilename{FileName: "file draft.mkv"})
	res := e.Process(context.Background(), Env{Status: status, User: user},
		msg, Describe(msg), 42, publicLink(t))

	require.Equal(t, ResultUploaded, res.Kind)
	require.Empty(t, user.sentMedia, "direct copy must be bypassed when rename rules exist")
	require.Len(t, status.sentMedia, 1)

	opts := status.sentMedia[0].opts
	require.True(t, filepath.IsAbs(*written) || *written != "")
	require.Contains(t, opts.FileName, "[x].mp4")

	// downloaded file is cleaned up
	_, statErr := os.Stat(*written)
	require.True(t, os.IsNotExist(statErr))
}

func TestProcessFallsBackWhenCopyRestricted(t *testing.T) {
	e := newTestExecutor(t, newFakeSettings())
	download, written := downloadToTempFile(t, "payload")
	status := &fakeClient{}
	user := &fakeClient{
		sendMedia: func(interface{}, interface{}, *telegram.MediaOptions) (*telegram.NewMessage, error) {
			return nil, errors.New("rpc error: CHAT_FORWARDS_RESTRICTED (403)")
		},
		download: download,
	}

	msg := docMessage("", 10, &telegram.DocumentAttributeFilename{FileName: "a.pdf"})
	res := e.Process(context.Background(), Env{Status: status, User: user},
		msg, Describe(msg), 42, publicLink(t))

	require.Equal(t, ResultUploaded, res.Kind)
	require.Len(t, status.sentMedia, 1)
	require.Equal(t, []string{"somechannel"}, e.RestrictedChats())
	_, statErr := os.Stat(*written)
	require.True(t, os.IsNotExist(statErr))

	// the flag persists: the next transfer from this chat skips the
	// direct attempt entirely
	user.sendMedia = func(interface{}, interface{}, *telegram.MediaOptions) (*telegram.NewMessage, error) {
		t.Fatal("direct copy attempted on a flagged chat")
		return nil, nil
	}
	res = e.Process(context.Background(), Env{Status: status, User: user},
		msg, Describe(msg), 42, publicLink(t))
	require.Equal(t, ResultUploaded, res.Kind)
}

func TestProcessPrivateLinksUseDownloadPath(t *testing.T) {
	e := newTestExecutor(t, newFakeSettings())
	download, _ := downloadToTempFile(t, "payload")
	status := &fakeClient{}
	user := &fakeClient{download: download}

	msg := docMessage("", 10, &telegram.DocumentAttributeFilename{FileName: "a.pdf"})
	res := e.Process(context.Background(), Env{Status: status, User: user},
		msg, Describe(msg), 42, privateLink(t))

	require.Equal(t, ResultUploaded, res.Kind)
	require.Empty(t, user.sentMedia)
}

func TestProcessFailureKeepsStatusMessageWithError(t *testing.T) {
	e := newTestExecutor(t, newFakeSettings())
	status := &fakeClient{}
	user := &fakeClient{download: func(*telegram.NewMessage, *telegram.DownloadOptions) (string, error) {
		return "", errors.New("FILE_REFERENCE_EXPIRED")
	}}

	msg := docMessage("", 10, &telegram.DocumentAttributeFilename{FileName: "a.pdf"})
	res := e.Process(context.Background(), Env{Status: status, User: user},
		msg, Describe(msg), 42, privateLink(t))

	require.Equal(t, ResultFailed, res.Kind)
	require.NotNil(t, res.Err)
	// the transient status message is edited with the error, not deleted
	require.Empty(t, status.deleted)
	require.Len(t, status.editedTexts, 1)
	require.Contains(t, status.editedTexts[0], "❌")
	require.Contains(t, status.editedTexts[0], "FILE_REFERENCE_EXPIRED")
}

func TestProcessSuccessDeletesStatusMessage(t *testing.T) {
	e := newTestExecutor(t, newFakeSettings())
	download, _ := downloadToTempFile(t, "payload")
	status := &fakeClient{}
	user := &fakeClient{download: download}

	msg := docMessage("", 10, &telegram.DocumentAttributeFilename{FileName: "a.pdf"})
	res := e.Process(context.Background(), Env{Status: status, User: user},
		msg, Describe(msg), 42, privateLink(t))

	require.Equal(t, ResultUploaded, res.Kind)
	require.Equal(t, []int32{900}, status.deleted)
	require.Empty(t, status.editedTexts)
}

func TestTruncate(t *testing.T) {
	require.Equal(t, "short", truncate("short", 10))
	long := strings.Repeat("x", 150)
	got := truncate(long, 120)
	require.Len(t, []rune(got), 121)
	require.Equal(t, "…", string([]rune(got)[120]))
}

func TestProcessLargeFileRequiresAux(t *testing.T) {
	store := newFakeSettings()
	e := NewExecutor(ExecutorConfig{
		DownloadDir:    t.TempDir(),
		ThumbDir:       t.TempDir(),
		LogGroupID:     -100555,
		LargeFileLimit: 4, // bytes, to trip on tiny test files
	}, store, NewReporter())
	e.sleep = func(time.Duration) {}

	download, _ := downloadToTempFile(t, "payload-larger-than-limit")
	status := &fakeClient{}
	user := &fakeClient{download: download}

	msg := docMessage("", 10, &telegram.DocumentAttributeFilename{FileName: "big.bin"})
	res := e.Process(context.Background(), Env{Status: status, User: user},
		msg, Describe(msg), 42, privateLink(t))

	require.Equal(t, ResultFailed, res.Kind)
	require.Contains(t, res.Reason, "auxiliary")
}

func TestProcessLargeFileStagesThroughLogGroup(t *testing.T) {
	store := newFakeSettings()
	store.set(&models.UserSettings{UserID: 42, ChatID: "-100777"})
	e := NewExecutor(ExecutorConfig{
		DownloadDir:    t.TempDir(),
		ThumbDir:       t.TempDir(),
		LogGroupID:     -100555,
		LargeFileLimit: 4,
	}, store, NewReporter())
	e.sleep = func(time.Duration) {}

	download, _ := downloadToTempFile(t, "payload-larger-than-limit")
	staged := docMessage("", 30, &telegram.DocumentAttributeFilename{FileName: "big.bin"})
	status := &fakeClient{
		getMessage: func(peer interface{}, id int32) (*telegram.NewMessage, error) {
			require.Equal(t, int64(-100555), peer)
			return staged, nil
		},
	}
	user := &fakeClient{download: download}
	aux := &fakeClient{}

	msg := docMessage("", 10, &telegram.DocumentAttributeFilename{FileName: "big.bin"})
	res := e.Process(context.Background(), Env{Status: status, User: user, Aux: aux},
		msg, Describe(msg), 42, privateLink(t))

	require.Equal(t, ResultUploaded, res.Kind)
	require.Len(t, aux.sentMedia, 1)
	require.Equal(t, int64(-100555), aux.sentMedia[0].peer)
	require.Len(t, status.sentMedia, 1)
	require.Equal(t, int64(-100777), status.sentMedia[0].peer)
}

func TestProcessRetriesUploadOnceOnFloodWait(t *testing.T) {
	e := newTestExecutor(t, newFakeSettings())
	var slept []time.Duration
	e.sleep = func(d time.Duration) { slept = append(slept, d) }

	download, _ := downloadToTempFile(t, "payload")
	attempts := 0
	status := &fakeClient{}
	status.sendMedia = func(interface{}, interface{}, *telegram.MediaOptions) (*telegram.NewMessage, error) {
		attempts++
		if attempts == 1 {
			return nil, errors.New("FLOOD_WAIT_1")
		}
		return &telegram.NewMessage{ID: 902, Message: &telegram.MessageObj{ID: 902}}, nil
	}
	user := &fakeClient{download: download}

	msg := docMessage("", 10, &telegram.DocumentAttributeFilename{FileName: "a.pdf"})
	res := e.Process(context.Background(), Env{Status: status, User: user},
		msg, Describe(msg), 42, privateLink(t))

	require.Equal(t, ResultUploaded, res.Kind)
	require.Equal(t, 2, attempts)
	require.Equal(t, []time.Duration{2 * time.Second}, slept)
}

func TestProcessUsesUserThumbAndNeverDeletesIt(t *testing.T) {
	store := newFakeSettings()
	thumbDir := t.TempDir()
	thumbPath := filepath.Join(thumbDir, "42.jpg")
	require.NoError(t, os.WriteFile(thumbPath, []byte{0xFF, 0xD8}, 0o644))

	e := NewExecutor(ExecutorConfig{
		DownloadDir: t.TempDir(),
		ThumbDir:    thumbDir,
		LogGroupID:  -100555,
	}, store, NewReporter())
	e.sleep = func(time.Duration) {}

	download, _ := downloadToTempFile(t, "payload")
	status := &fakeClient{}
	user := &fakeClient{download: download}

	msg := docMessage("", 10,
		&telegram.DocumentAttributeVideo{SupportsStreaming: true},
		&telegram.DocumentAttributeFilename{FileName: "clip.mkv"},
	)
	res := e.Process(context.Background(), Env{Status: status, User: user},
		msg, Describe(msg), 42, privateLink(t))

	require.Equal(t, ResultUploaded, res.Kind)
	require.Len(t, status.sentMedia, 1)
	require.Equal(t, thumbPath, status.sentMedia[0].opts.Thumb)

	// the persistent thumbnail survives cleanup
	_, err := os.Stat(thumbPath)
	require.NoError(t, err)
}

func TestParseDestination(t *testing.T) {
	chat, topic, err := parseDestination("", 42)
	require.NoError(t, err)
	require.Equal(t, int64(42), chat)
	require.Equal(t, int32(0), topic)

	chat, topic, err = parseDestination("-1001234567890", 42)
	require.NoError(t, err)
	require.Equal(t, int64(-1001234567890), chat)
	require.Equal(t, int32(0), topic)

	chat, topic, err = parseDestination("-1001234567890/7", 42)
	require.NoError(t, err)
	require.Equal(t, int64(-1001234567890), chat)
	require.Equal(t, int32(7), topic)

	_, _, err = parseDestination("garbage", 42)
	require.Error(t, err)

	_, _, err = parseDestination("-100123/zero", 42)
	require.Error(t, err)
}

func TestBuildCaption(t *testing.T) {
	rules := Rules{Caption: "@mychannel", Replacements: map[string]string{"x": "y"}}
	require.Equal(t, "y\n\n@mychannel", buildCaption("x", rules))
	require.Equal(t, "@mychannel", buildCaption("", rules))
	require.Equal(t, "plain", buildCaption("plain", Rules{}))
}
