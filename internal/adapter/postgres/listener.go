package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"fitsync/internal/feed"
)

// Listener is a feed.Transport over LISTEN/NOTIFY.
type Listener struct {
	connStr      string
	minReconnect time.Duration
	maxReconnect time.Duration
	pingEvery    time.Duration
	log          *slog.Logger
}

var _ feed.Transport = (*Listener)(nil)

// NewListener returns a transport that opens its own connection per
// subscription.
func NewListener(connStr string, log *slog.Logger) *Listener {
	if log == nil {
		log = slog.Default()
	}
	return &Listener{
		connStr:      connStr,
		minReconnect: 10 * time.Second,
		maxReconnect: time.Minute,
		pingEvery:    90 * time.Second,
		log:          log.With("component", "pg_listener"),
	}
}

type envelope struct {
	feed.Notification
	Owner string `json:"owner"`
}

// Listen subscribes to owner's row changes until ctx is done.
func (l *Listener) Listen(ctx context.Context, owner string, ready func(), deliver func(feed.Notification)) error {
	pl := pq.NewListener(l.connStr, l.minReconnect, l.maxReconnect, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			l.log.Warn("listener event", "event", int(ev), "err", err)
		}
	})
	defer pl.Close()

	if err := pl.Listen(notifyChannel); err != nil {
		return fmt.Errorf("listen %s: %w", notifyChannel, err)
	}
	ready()

	ping := time.NewTicker(l.pingEvery)
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case n := <-pl.Notify:
			if n == nil {
				// Reconnected. Changes made while down are picked up by the next pull.
				l.log.Info("listener reconnected")
				continue
			}
			if note, ok := decodeNotification(n.Extra, owner); ok {
				deliver(note)
			}
		case <-ping.C:
			if err := pl.Ping(); err != nil {
				l.log.Warn("listener ping failed", "err", err)
			}
		}
	}
}

// decodeNotification parses a trigger payload and reports whether it belongs
// to owner.
func decodeNotification(payload, owner string) (feed.Notification, bool) {
	var env envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		return feed.Notification{}, false
	}
	if env.Owner != owner {
		return feed.Notification{}, false
	}
	n := env.Notification
	if string(n.Record) == "null" {
		n.Record = nil
	}
	if string(n.OldRecord) == "null" {
		n.OldRecord = nil
	}
	return n, true
}
