// Package rest serves the liveness endpoints. Handlers read only cached
// state and must answer promptly regardless of in-flight transfers, so
// nothing here ever goes through the session bridge.
package rest

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/lcarvalho/tgrelay/internal/logctx"
	"github.com/lcarvalho/tgrelay/internal/session"
	"github.com/lcarvalho/tgrelay/internal/telemetry"
)

// HealthHandler exposes the service status over HTTP.
type HealthHandler struct {
	startedAt    time.Time
	sessionState func() session.State
	maxFileSize  int64
	telemetry    *telemetry.Telemetry
}

func NewHealthHandler(sessionState func() session.State, maxFileSize int64, tel *telemetry.Telemetry) *HealthHandler {
	return &HealthHandler{
		startedAt:    time.Now(),
		sessionState: sessionState,
		maxFileSize:  maxFileSize,
		telemetry:    tel,
	}
}

// Routes returns the router for the health check endpoints.
func (h *HealthHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(telemetry.NewHTTPMiddleware(h.telemetry).Middleware)

	r.Get("/", h.Root)
	r.Get("/health", h.Health)
	r.Get("/ping", h.Ping)
	r.Handle("/metrics", h.telemetry.Handler())

	return r
}

// Root reports service identity and the cached session state.
func (h *HealthHandler) Root(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, map[string]any{
		"service":        "tgrelay",
		"status":         "running",
		"session_state":  string(h.sessionState()),
		"max_file_size":  h.maxFileSize,
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
	})
}

// Health is the liveness probe.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, map[string]any{"status": "ok"})
}

// Ping answers plain text for dumb uptime monitors.
func (h *HealthHandler) Ping(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if _, err := w.Write([]byte("pong")); err != nil {
		logctx.LoggerFromContext(r.Context()).Error("failed to write response", "error", err)
	}
}

func (h *HealthHandler) writeJSON(w http.ResponseWriter, r *http.Request, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logctx.LoggerFromContext(r.Context()).Error("failed to encode response", "error", err)
	}
}
