package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gofrs/flock"
	"golang.org/x/oauth2"

	"fitsync/internal/adapter/memory"
	"fitsync/internal/adapter/postgres"
	"fitsync/internal/adapter/realtime"
	"fitsync/internal/adapter/sqlite"
	"fitsync/internal/app"
	"fitsync/internal/config"
	"fitsync/internal/cryptox"
	"fitsync/internal/domain"
	"fitsync/internal/feed"
	"fitsync/internal/netwatch"
)

// stack is the wired sync core shared by the commands.
type stack struct {
	cache  *sqlite.DB
	pg     *postgres.DB
	mem    *memory.Remote
	remote domain.RemoteStore
	mgr    *app.SyncManager
}

// openCache opens the local cache and unseals it when a passphrase is set.
func openCache(ctx context.Context, cfg config.Config) (*sqlite.DB, error) {
	cache, err := sqlite.Open(ctx, cfg.CachePath)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	if cfg.Passphrase == "" {
		return cache, nil
	}
	salt, err := cache.Salt(ctx)
	if err != nil {
		_ = cache.Close()
		return nil, fmt.Errorf("cache salt: %w", err)
	}
	sealer, err := cryptox.NewSealer(cfg.Passphrase, salt)
	if err != nil {
		_ = cache.Close()
		return nil, err
	}
	cache.SetSealer(sealer)
	return cache, nil
}

// openStack wires cache, remote store, feed transport and manager. With
// withFeed false the manager runs without a change feed. tokens authorizes
// the realtime transport and may be nil.
func openStack(ctx context.Context, cfg config.Config, log *slog.Logger, withFeed bool, tokens oauth2.TokenSource) (*stack, error) {
	cache, err := openCache(ctx, cfg)
	if err != nil {
		return nil, err
	}
	s := &stack{cache: cache}

	if cfg.DatabaseURL != "" {
		if s.pg, err = postgres.Open(cfg.DatabaseURL); err != nil {
			_ = cache.Close()
			return nil, fmt.Errorf("db open: %w", err)
		}
		s.remote = s.pg
	} else {
		log.Warn("no database_url; syncing against an in-process store")
		s.mem = memory.NewRemote()
		s.remote = s.mem
	}

	var transport feed.Transport
	if withFeed {
		switch cfg.Feed.Transport {
		case config.FeedPostgres:
			transport = postgres.NewListener(cfg.DatabaseURL, log)
		case config.FeedRealtime:
			transport = realtime.NewClient(cfg.Feed.URL, tokens, log)
		case config.FeedMemory:
			if s.mem == nil {
				s.Close()
				return nil, errors.New("memory feed needs the in-process store")
			}
			transport = s.mem
		}
	}

	s.mgr = newManager(cache, s.remote, transport, cfg, log)
	if err := s.mgr.Start(ctx); err != nil {
		log.Warn("starting with an empty queue", "err", err)
	}
	s.mgr.SetOwner(cfg.Owner)
	return s, nil
}

// openLocal wires the cache and an offline manager for commands that only
// queue changes. The manager never goes online, so it has no remote store.
func openLocal(ctx context.Context, cfg config.Config, log *slog.Logger) (*stack, error) {
	cache, err := openCache(ctx, cfg)
	if err != nil {
		return nil, err
	}
	s := &stack{cache: cache, mgr: newManager(cache, nil, nil, cfg, log)}
	if err := s.mgr.Start(ctx); err != nil {
		log.Warn("starting with an empty queue", "err", err)
	}
	s.mgr.SetOwner(cfg.Owner)
	return s, nil
}

func newManager(cache *sqlite.DB, remote domain.RemoteStore, transport feed.Transport, cfg config.Config, log *slog.Logger) *app.SyncManager {
	return app.NewSyncManager(cache, cache, remote, transport, app.SyncOptions{
		Debounce:    cfg.Sync.Debounce,
		Interval:    cfg.Sync.Interval,
		BaseDelay:   cfg.Sync.BaseDelay,
		MaxRetries:  cfg.Sync.MaxRetries,
		CallTimeout: cfg.Sync.CallTimeout,
		Lock:        flock.New(cfg.Sync.LockPath),
		Logger:      log,
	})
}

// prober checks the remote store. The in-process store is always reachable.
func (s *stack) prober() netwatch.Prober {
	if s.pg != nil {
		return s.pg
	}
	return netwatch.ProbeFunc(func(context.Context) error { return nil })
}

func (s *stack) Close() {
	if s.mgr != nil {
		s.mgr.Destroy()
	}
	if s.pg != nil {
		_ = s.pg.Close()
	}
	_ = s.cache.Close()
}
