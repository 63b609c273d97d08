package realtime

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"fitsync/internal/feed"
)

// Authorizer maps a bearer token to the owner it may subscribe to.
type Authorizer interface {
	Owner(ctx context.Context, token string) (string, error)
}

// Relay is an http.Handler that serves a feed.Transport over websockets.
type Relay struct {
	transport feed.Transport
	auth      Authorizer
	log       *slog.Logger
}

// NewRelay returns a relay. With a nil auth any owner may be subscribed to.
func NewRelay(t feed.Transport, auth Authorizer, log *slog.Logger) *Relay {
	if log == nil {
		log = slog.Default()
	}
	return &Relay{transport: t, auth: auth, log: log.With("component", "relay")}
}

func (rl *Relay) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		rl.log.Warn("websocket upgrade failed", "err", err)
		return
	}
	defer conn.CloseNow()

	helloCtx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	var hello Message
	err = wsjson.Read(helloCtx, conn, &hello)
	cancel()
	if err != nil || hello.Type != TypeSubscribe || hello.Owner == "" {
		rl.reject(r.Context(), conn, "expected subscribe")
		return
	}
	if rl.auth != nil {
		token := strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer"))
		owner, err := rl.auth.Owner(r.Context(), token)
		if err != nil || owner != hello.Owner {
			rl.reject(r.Context(), conn, "forbidden")
			return
		}
	}

	ctx := conn.CloseRead(r.Context())
	log := rl.log.With("owner", hello.Owner)
	log.Info("relay subscribed")

	err = rl.transport.Listen(ctx, hello.Owner,
		func() { _ = wsjson.Write(ctx, conn, Message{Type: TypeSubscribed}) },
		func(n feed.Notification) {
			if err := wsjson.Write(ctx, conn, Message{Type: TypeChange, Change: &n}); err != nil {
				log.Debug("relay write failed", "err", err)
			}
		})
	if err != nil && ctx.Err() == nil {
		log.Warn("relay source failed", "err", err)
		rl.reject(r.Context(), conn, "source unavailable")
		return
	}
	_ = conn.Close(websocket.StatusNormalClosure, "")
}

func (rl *Relay) reject(ctx context.Context, conn *websocket.Conn, reason string) {
	wctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_ = wsjson.Write(wctx, conn, Message{Type: TypeError, Message: reason})
	_ = conn.Close(websocket.StatusPolicyViolation, reason)
}
