// Package netwatch probes remote reachability and reports online/offline
// transitions.
package netwatch

import (
	"context"
	"log/slog"
	"time"
)

// Prober checks whether the remote store is reachable.
type Prober interface {
	Ping(ctx context.Context) error
}

// ProbeFunc adapts a function to Prober.
type ProbeFunc func(ctx context.Context) error

func (f ProbeFunc) Ping(ctx context.Context) error { return f(ctx) }

// Target receives connectivity changes.
type Target interface {
	SetOnline(ctx context.Context, online bool)
}

// Watcher polls a Prober on an interval.
type Watcher struct {
	probe    Prober
	target   Target
	interval time.Duration
	timeout  time.Duration
	log      *slog.Logger
}

// New returns a watcher probing every interval with a 3s timeout per probe.
func New(p Prober, t Target, interval time.Duration, log *slog.Logger) *Watcher {
	if log == nil {
		log = slog.Default()
	}
	return &Watcher{
		probe:    p,
		target:   t,
		interval: interval,
		timeout:  3 * time.Second,
		log:      log.With("component", "netwatch"),
	}
}

// Run probes immediately and then on every tick until ctx is done. The
// target hears about the first result and every change after it.
func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	var last *bool
	for {
		pctx, cancel := context.WithTimeout(ctx, w.timeout)
		err := w.probe.Ping(pctx)
		cancel()
		if ctx.Err() != nil {
			return
		}

		online := err == nil
		if last == nil || *last != online {
			if online {
				w.log.Info("remote reachable")
			} else {
				w.log.Warn("remote unreachable", "err", err)
			}
			w.target.SetOnline(ctx, online)
			last = &online
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}
