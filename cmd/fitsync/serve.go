package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"

	adapthttp "fitsync/internal/adapter/http"
	"fitsync/internal/adapter/oidcauth"
	"fitsync/internal/adapter/postgres"
	"fitsync/internal/adapter/realtime"
	"fitsync/internal/app"
	"fitsync/internal/config"
	"fitsync/internal/domain"
	"fitsync/internal/netwatch"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the sync manager and the local HTTP API",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address")
	serveCmd.Flags().String("feed", "", "change feed: postgres, realtime, memory or none")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, log, closer, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		provider *oidcauth.Provider
		tokens   = &oidcauth.Holder{}
	)
	if cfg.OIDC.Enabled() {
		provider, err = oidcauth.NewProvider(ctx, oidcauth.Config{
			Issuer:       cfg.OIDC.Issuer,
			ClientID:     cfg.OIDC.ClientID,
			ClientSecret: cfg.OIDC.ClientSecret,
			RedirectURL:  cfg.OIDC.RedirectURL,
		})
		if err != nil {
			return err
		}
	}

	var ts oauth2.TokenSource
	if provider != nil {
		ts = tokens
	}
	st, err := openStack(ctx, cfg, log, cfg.Feed.Transport != config.FeedNone, ts)
	if err != nil {
		return err
	}
	defer st.Close()

	st.mgr.Subscribe(func(s domain.SyncState) {
		log.Debug("sync state", "status", s.Status, "pending", s.PendingCount, "online", s.IsOnline, "feed", s.FeedConnected)
	})

	ws := app.NewWeightService(st.cache, st.mgr)
	ds := app.NewDailyMetricService(st.cache, st.mgr)
	srv := adapthttp.New(adapthttp.Services{
		Sync:    st.mgr,
		Weight:  ws,
		Daily:   ds,
		Body:    app.NewBodyMetricService(st.cache, st.mgr),
		Profile: app.NewProfileService(st.cache, st.mgr),
		Charts:  app.NewChartsService(ws, ds),
	}, log)
	if provider != nil {
		srv.WithSSO(provider, func(ctx context.Context, sess *oidcauth.Session) {
			if sess == nil {
				tokens.Set(nil)
				return
			}
			tokens.Set(provider.TokenSource(context.WithoutCancel(ctx), sess.Token))
		})
	}
	if cfg.Feed.Relay {
		var auth realtime.Authorizer
		if provider != nil {
			auth = provider
		}
		srv.WithRelay(realtime.NewRelay(postgres.NewListener(cfg.DatabaseURL, log), auth, log))
	}

	httpSrv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", "addr", cfg.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		netwatch.New(st.prober(), st.mgr, cfg.Sync.ProbeInterval, log).Run(gctx)
		return nil
	})

	err = g.Wait()
	log.Info("stopped", "pending", st.mgr.State().PendingCount)
	return err
}
