// Package session owns the live WhatsApp connection: its lifecycle state
// machine, QR pairing, health-driven reconnection and the ordered event
// stream the rest of the engine consumes.
package session

import (
	"context"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	wstore "go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/types"
	waLog "go.mau.fi/whatsmeow/util/log"
)

// Session is the narrow surface of the live connection the engine uses.
// The real implementation wraps *whatsmeow.Client; tests substitute fakes.
type Session interface {
	Connect() error
	Disconnect()
	IsConnected() bool
	IsLoggedIn() bool
	OwnJID() types.JID
	AddEventHandler(handler func(interface{}))
	GetQRChannel(ctx context.Context) (<-chan whatsmeow.QRChannelItem, error)
	SendMessage(ctx context.Context, to types.JID, msg *waE2E.Message) (whatsmeow.SendResponse, error)
	Upload(ctx context.Context, data []byte, mediaType whatsmeow.MediaType) (whatsmeow.UploadResponse, error)
	Download(ctx context.Context, msg whatsmeow.DownloadableMessage) ([]byte, error)
}

// Factory creates a fresh Session. Called once per Initialize so that a
// scheduled reconnect always starts from a clean client.
type Factory func(ctx context.Context) (Session, error)

// Client wraps whatsmeow.Client as a Session.
type Client struct {
	wa     *whatsmeow.Client
	device *wstore.Device
}

// NewClient creates a Session backed by a whatsmeow client for the given
// device credentials.
func NewClient(device *wstore.Device, log waLog.Logger) *Client {
	wa := whatsmeow.NewClient(device, log)
	wa.AutoTrustIdentity = true
	return &Client{wa: wa, device: device}
}

func (c *Client) Connect() error {
	return c.wa.Connect()
}

func (c *Client) Disconnect() {
	c.wa.Disconnect()
}

func (c *Client) IsConnected() bool {
	return c.wa.IsConnected()
}

func (c *Client) IsLoggedIn() bool {
	return c.device.ID != nil
}

func (c *Client) OwnJID() types.JID {
	if c.device.ID != nil {
		return *c.device.ID
	}
	return types.JID{}
}

func (c *Client) AddEventHandler(handler func(interface{})) {
	c.wa.AddEventHandler(handler)
}

func (c *Client) GetQRChannel(ctx context.Context) (<-chan whatsmeow.QRChannelItem, error) {
	return c.wa.GetQRChannel(ctx)
}

func (c *Client) SendMessage(ctx context.Context, to types.JID, msg *waE2E.Message) (whatsmeow.SendResponse, error) {
	return c.wa.SendMessage(ctx, to, msg)
}

func (c *Client) Upload(ctx context.Context, data []byte, mediaType whatsmeow.MediaType) (whatsmeow.UploadResponse, error) {
	return c.wa.Upload(ctx, data, mediaType)
}

func (c *Client) Download(ctx context.Context, msg whatsmeow.DownloadableMessage) ([]byte, error) {
	return c.wa.Download(ctx, msg)
}

var _ Session = (*Client)(nil)
