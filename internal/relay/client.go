package relay

import (
	"github.com/amarnathcjd/gogram/telegram"
)

// Client is the capability surface the relay engine needs from a
// Telegram MTProto connection. Bot-token clients and user-session
// clients satisfy it identically, so callers never branch on the
// client kind.
type Client interface {
	GetMessage(peer interface{}, id int32) (*telegram.NewMessage, error)
	SendText(peer interface{}, text string, replyTo int32) (*telegram.NewMessage, error)
	EditText(peer interface{}, id int32, text string) error
	DeleteMessage(peer interface{}, id int32) error
	SendMedia(peer interface{}, media interface{}, opts *telegram.MediaOptions) (*telegram.NewMessage, error)
	Download(msg *telegram.NewMessage, opts *telegram.DownloadOptions) (string, error)
	Join(ref interface{}) error
	RefreshDialogs() error
	Close()
}

// gogramClient adapts *telegram.Client to the Client interface.
type gogramClient struct {
	c *telegram.Client
}

// WrapClient exposes a connected gogram client through the Client
// interface.
func WrapClient(c *telegram.Client) Client {
	return &gogramClient{c: c}
}

func (g *gogramClient) GetMessage(peer interface{}, id int32) (*telegram.NewMessage, error) {
	return g.c.GetMessageByID(peer, id)
}

func (g *gogramClient) SendText(peer interface{}, text string, replyTo int32) (*telegram.NewMessage, error) {
	return g.c.SendMessage(peer, text, &telegram.SendOptions{ReplyID: replyTo})
}

func (g *gogramClient) EditText(peer interface{}, id int32, text string) error {
	_, err := g.c.EditMessage(peer, id, text)
	return err
}

func (g *gogramClient) DeleteMessage(peer interface{}, id int32) error {
	_, err := g.c.DeleteMessages(peer, []int32{id})
	return err
}

func (g *gogramClient) SendMedia(peer interface{}, media interface{}, opts *telegram.MediaOptions) (*telegram.NewMessage, error) {
	return g.c.SendMedia(peer, media, opts)
}

func (g *gogramClient) Download(msg *telegram.NewMessage, opts *telegram.DownloadOptions) (string, error) {
	return g.c.DownloadMedia(msg, opts)
}

func (g *gogramClient) Join(ref interface{}) error {
	_, err := g.c.JoinChannel(ref)
	return err
}

// RefreshDialogs pulls the dialog list so freshly joined channels
// resolve on the next fetch.
func (g *gogramClient) RefreshDialogs() error {
	_, err := g.c.GetDialogs(&telegram.DialogOptions{Limit: 1})
	return err
}

func (g *gogramClient) Close() {
	g.c.Terminate()
}
