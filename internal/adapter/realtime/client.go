// Package realtime carries row change notifications over a websocket. Client
// is a feed.Transport; Relay serves any feed.Transport to remote clients.
package realtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"golang.org/x/oauth2"

	"fitsync/internal/feed"
)

// Message types.
const (
	TypeSubscribe  = "subscribe"
	TypeSubscribed = "subscribed"
	TypeChange     = "change"
	TypeError      = "error"
)

// Message is one frame of the protocol. The client sends a single subscribe
// frame; the server answers subscribed, then a change frame per row change.
type Message struct {
	Type    string             `json:"type"`
	Owner   string             `json:"owner,omitempty"`
	Change  *feed.Notification `json:"change,omitempty"`
	Message string             `json:"message,omitempty"`
}

// ErrRejected is returned when the server refuses the subscription.
var ErrRejected = errors.New("subscription rejected")

// Client subscribes to a relay.
type Client struct {
	url    string
	tokens oauth2.TokenSource
	log    *slog.Logger
}

var _ feed.Transport = (*Client)(nil)

// NewClient returns a transport for the relay at url. tokens may be nil for
// unauthenticated relays.
func NewClient(url string, tokens oauth2.TokenSource, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{url: url, tokens: tokens, log: log.With("component", "realtime")}
}

// Listen dials the relay and streams owner's changes until ctx is done.
func (c *Client) Listen(ctx context.Context, owner string, ready func(), deliver func(feed.Notification)) error {
	opts := &websocket.DialOptions{HTTPHeader: http.Header{}}
	if c.tokens != nil {
		tok, err := c.tokens.Token()
		if err != nil {
			return fmt.Errorf("realtime token: %w", err)
		}
		opts.HTTPHeader.Set("Authorization", tok.Type()+" "+tok.AccessToken)
	}

	conn, _, err := websocket.Dial(ctx, c.url, opts)
	if err != nil {
		return fmt.Errorf("realtime dial: %w", err)
	}
	defer conn.CloseNow()

	if err := wsjson.Write(ctx, conn, Message{Type: TypeSubscribe, Owner: owner}); err != nil {
		return fmt.Errorf("realtime subscribe: %w", err)
	}

	for {
		var m Message
		if err := wsjson.Read(ctx, conn, &m); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("realtime read: %w", err)
		}
		switch m.Type {
		case TypeSubscribed:
			ready()
		case TypeChange:
			if m.Change != nil {
				deliver(*m.Change)
			}
		case TypeError:
			_ = conn.Close(websocket.StatusNormalClosure, "")
			return fmt.Errorf("%w: %s", ErrRejected, m.Message)
		default:
			c.log.Debug("ignoring frame", "type", m.Type)
		}
	}
}
