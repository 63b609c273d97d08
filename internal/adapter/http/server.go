package adapthttp

import (
	"context"
	"log/slog"
	"net/http"

	"fitsync/internal/adapter/oidcauth"
	"fitsync/internal/app"
	"fitsync/internal/domain"
)

// SyncControl is the part of the sync manager the API drives.
type SyncControl interface {
	State() domain.SyncState
	Queued() []domain.QueuedChange
	SyncAll(ctx context.Context) error
	SetOnline(ctx context.Context, online bool)
	Owner() string
	SetOwner(owner string)
}

// SignIn runs the identity provider's authorization code flow.
type SignIn interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*oidcauth.Session, error)
}

// Services are the application services behind the API.
type Services struct {
	Sync    SyncControl
	Weight  *app.WeightService
	Daily   *app.DailyMetricService
	Body    *app.BodyMetricService
	Profile *app.ProfileService
	Charts  *app.ChartsService
}

// Server is the driving HTTP adapter that routes requests to application
// services.
type Server struct {
	Services
	log *slog.Logger

	sso      SignIn
	onSignIn func(ctx context.Context, s *oidcauth.Session)
	relay    http.Handler
}

// New creates a Server wired to the given application services.
func New(svcs Services, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{Services: svcs, log: log.With("component", "http")}
}

// WithSSO enables sign-in through sso. onSignIn receives every completed
// session, and nil on sign-out.
func (s *Server) WithSSO(sso SignIn, onSignIn func(ctx context.Context, sess *oidcauth.Session)) *Server {
	s.sso = sso
	s.onSignIn = onSignIn
	return s
}

// WithRelay serves the change relay at /realtime.
func (s *Server) WithRelay(h http.Handler) *Server {
	s.relay = h
	return s
}

// Handler returns the root http.Handler for the application.
func (s *Server) Handler() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})

	api.HandleFunc("/sync/state", s.handleSyncState)
	api.HandleFunc("/sync/run", s.handleSyncRun)
	api.HandleFunc("/sync/network", s.handleSyncNetwork)
	api.HandleFunc("/sync/queue", s.handleSyncQueue)

	api.HandleFunc("/weight/today", s.handleWeightToday)
	api.HandleFunc("/weight/recent", s.handleWeightRecent)
	api.HandleFunc("/weight/undo-last", s.handleWeightUndoLast)

	api.HandleFunc("/daily/today", s.handleDailyToday)
	api.HandleFunc("/daily/history", s.handleDailyHistory)
	api.HandleFunc("/water/event", s.handleWaterEvent)
	api.HandleFunc("/steps/today", s.handleStepsToday)
	api.HandleFunc("/activity/today", s.handleActivityToday)

	api.HandleFunc("/body-metrics", s.handleBodyMetrics)
	api.HandleFunc("/body-metrics/", s.handleBodyMetric)
	api.HandleFunc("/profile", s.handleProfile)

	api.HandleFunc("/charts/daily", s.handleChartsDaily)

	api.HandleFunc("/auth/config", s.handleAuthConfig)
	api.HandleFunc("/auth/sso/login", s.handleSSOLogin)
	api.HandleFunc("/auth/sso/callback", s.handleSSOCallback)
	api.HandleFunc("/auth/logout", s.handleLogout)

	root := http.NewServeMux()
	root.Handle("/api/", s.loggingMiddleware(withNoCache(http.StripPrefix("/api", api))))
	if s.relay != nil {
		// Long-lived and hijacked; not wrapped.
		root.Handle("/realtime", s.relay)
	}
	return root
}
