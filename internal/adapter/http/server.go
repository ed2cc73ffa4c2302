// Package http serves the dashboard API, health probes and metrics.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/sensor-dashboard-service/internal/auth"
	"github.com/couchcryptid/sensor-dashboard-service/internal/config"
	"github.com/couchcryptid/sensor-dashboard-service/internal/domain"
	"github.com/couchcryptid/sensor-dashboard-service/internal/observability"
	"github.com/couchcryptid/sensor-dashboard-service/internal/pipeline"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Reader answers on-demand reads against the store.
type Reader interface {
	Catalog() *config.Catalog
	RowsInRange(ctx context.Context, source string, r domain.DateRange) ([]domain.Row, error)
	Browse(ctx context.Context, source string, page, pageSize int) (pipeline.BrowsePage, error)
}

// Snapshots exposes the poller's latest cycle.
type Snapshots interface {
	sharedobs.ReadinessChecker
	Current() *pipeline.Snapshot
}

// Authenticator issues and resolves sessions.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (auth.Session, error)
	Session(token string) (auth.Session, bool)
	Logout(token string)
}

// Deps are the collaborators of the API server.
type Deps struct {
	Reader    Reader
	Snapshots Snapshots
	Auth      Authenticator
	// InputLocation reads zone-less range bounds.
	InputLocation *time.Location
	Logger        *slog.Logger
	Metrics       *observability.Metrics
}

// Server exposes the dashboard API plus health, readiness, and metrics endpoints.
type Server struct {
	httpServer *http.Server
	reader     Reader
	snapshots  Snapshots
	auth       Authenticator
	inputLoc   *time.Location
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewServer creates the HTTP server and registers all routes.
func NewServer(addr string, deps Deps) *Server {
	if deps.InputLocation == nil {
		deps.InputLocation = time.UTC
	}
	r := mux.NewRouter()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      r,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 60 * time.Second, // exports page through whole tables
			IdleTimeout:  60 * time.Second,
		},
		reader:    deps.Reader,
		snapshots: deps.Snapshots,
		auth:      deps.Auth,
		inputLoc:  deps.InputLocation,
		logger:    deps.Logger,
		metrics:   deps.Metrics,
	}

	r.HandleFunc("/healthz", sharedobs.LivenessHandler()).Methods(http.MethodGet)
	r.HandleFunc("/readyz", sharedobs.ReadinessHandler(deps.Snapshots)).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/login", s.handleLogin).Methods(http.MethodPost)
	r.HandleFunc("/logout", s.handleLogout).Methods(http.MethodPost)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(s.requireSession, zstdMiddleware)
	api.HandleFunc("/sources", s.handleSources).Methods(http.MethodGet)
	api.HandleFunc("/sources/{source}/series", s.handleSeries).Methods(http.MethodGet)
	api.HandleFunc("/sources/{source}/rows", s.handleRows).Methods(http.MethodGet)
	api.HandleFunc("/sources/{source}/export", s.handleExport).Methods(http.MethodGet)
	api.HandleFunc("/sources/{source}/chart.png", s.handleSourceChart).Methods(http.MethodGet)
	api.HandleFunc("/groups/{group}/aligned", s.handleAligned).Methods(http.MethodGet)
	api.HandleFunc("/groups/{group}/chart.png", s.handleGroupChart).Methods(http.MethodGet)

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

func writeError(w http.ResponseWriter, status int, msg string) {
	sharedobs.WriteJSON(w, status, map[string]string{"error": msg})
}
