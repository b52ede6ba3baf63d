package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/quake-feed-service/internal/domain"
	"github.com/couchcryptid/quake-feed-service/internal/mapview"
	"github.com/couchcryptid/quake-feed-service/internal/observability"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

// Feed is the feed controller surface used by the API.
type Feed interface {
	Snapshot() domain.FeedState
	RefreshNow(ctx context.Context) error
}

// MapSession is the session surface used by the API.
type MapSession interface {
	Select(id string) error
	ClearSelection()
	SetActiveView(name string) error
	ActiveView() string
	SelectedID() string
	Markers() []mapview.Marker
	Viewport() mapview.Viewport
	View() *mapview.View
}

// Deps are the collaborators behind the API routes.
type Deps struct {
	Feed    Feed
	Session MapSession
	Ready   sharedobs.ReadinessChecker
	Metrics *observability.Metrics

	// RefreshLimiter throttles POST /api/v1/refresh. Nil disables throttling.
	RefreshLimiter *rate.Limiter
}

// Server exposes the earthquake API plus health, readiness, and metrics
// endpoints.
type Server struct {
	httpServer *http.Server
	deps       Deps
	logger     *slog.Logger
}

// NewServer creates an HTTP server with the API, /healthz, /readyz, and
// /metrics routes.
func NewServer(addr string, deps Deps, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		deps:   deps,
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(deps.Ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/v1/earthquakes", s.handleEarthquakes)
	mux.HandleFunc("POST /api/v1/refresh", s.handleRefresh)
	mux.HandleFunc("GET /api/v1/map", s.handleMap)
	mux.HandleFunc("PUT /api/v1/selection/{id}", s.handleSelect)
	mux.HandleFunc("DELETE /api/v1/selection", s.handleClearSelection)
	mux.HandleFunc("POST /api/v1/markers/{id}/click", s.handleClick)
	mux.HandleFunc("POST /api/v1/view/ready", s.handleViewReady)
	mux.HandleFunc("POST /api/v1/view/reset", s.handleResetView)
	mux.HandleFunc("PUT /api/v1/view/viewport", s.handlePan)
	mux.HandleFunc("PUT /api/v1/view/active/{name}", s.handleActiveView)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}
