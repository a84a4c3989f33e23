// Package rest is the HTTP interface for the local web client.
package rest

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/ewilliams-labs/cadence/internal/core/services"
	"github.com/ewilliams-labs/cadence/internal/worker"
)

// Services are the core services the handler drives. Monitor may be nil
// when no heart-rate sensor is configured, and Ready when there is nothing
// to probe.
type Services struct {
	Auth      *services.AuthCoordinator
	Orch      *services.Orchestrator
	Publisher *services.Publisher
	Monitor   *services.HeartRateMonitor
	Ready     func(ctx context.Context) error
}

// Handler manages the HTTP interface for our application.
type Handler struct {
	svc      Services
	pool     *worker.Pool
	sessions *Sessions
	log      *zap.Logger
	router   chi.Router

	// inflight holds the IDs of sessions with a queued or running async fetch.
	inflight sync.Map
}

// NewHandler initializes the HTTP adapter and sets up routes.
func NewHandler(svc Services, pool *worker.Pool, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	h := &Handler{
		svc:      svc,
		pool:     pool,
		sessions: NewSessions(svc.Auth, log),
		log:      log.Named("rest"),
		router:   chi.NewRouter(),
	}
	h.routes()
	return h
}

// ServeHTTP satisfies the http.Handler interface.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) routes() {
	h.router.Use(middleware.RequestID)
	h.router.Use(h.accessLog)
	h.router.Use(middleware.Recoverer)

	h.router.Get("/health", h.HealthCheck)
	h.router.Get("/ready", h.ReadyCheck)

	h.router.Group(func(r chi.Router) {
		r.Use(h.withSession)

		r.Get("/", h.Index)
		r.Get("/login", h.Login)
		r.Post("/logout", h.Logout)

		r.Put("/activity", h.SetActivity)
		r.Put("/preferences", h.SetPreferences)

		r.Post("/recommendations", h.TriggerRecommendations)
		r.Get("/recommendations", h.GetRecommendations)
		r.Post("/heart-rate", h.HeartRate)

		r.Post("/playlist", h.CreatePlaylist)
		r.Get("/playlists", h.ListPlaylists)
	})
}

// HealthCheck is a simple endpoint to verify the API is running.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ReadyCheck reports whether the recommendation backend is reachable.
func (h *Handler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	if h.svc.Ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := h.svc.Ready(ctx); err != nil {
			h.log.Warn("backend not ready", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (h *Handler) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		h.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
