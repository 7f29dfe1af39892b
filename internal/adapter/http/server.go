package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/couchcryptid/radar-rain-alert/internal/domain"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Watcher is the part of the watch loop the server reports on.
type Watcher interface {
	// CheckReadiness returns nil once at least one radar check has completed.
	CheckReadiness(ctx context.Context) error
	// LastResult returns the most recent completed check, if any.
	LastResult() (domain.RunResult, bool)
}

// Server exposes health, readiness, last-result, and metrics HTTP endpoints.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /last, and /metrics routes.
func NewServer(addr string, watcher Watcher, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", handleReady(watcher))
	mux.HandleFunc("GET /last", handleLast(watcher))
	mux.Handle("GET /metrics", promhttp.Handler())

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

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// handleReady reports 503 until the first check completes, then the time, age
// and outcome of the latest check.
func handleReady(watcher Watcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := watcher.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}

		body := map[string]string{"status": "ready"}
		if last, ok := watcher.LastResult(); ok && !last.CheckedAt.IsZero() {
			body["last_checked_at"] = last.CheckedAt.UTC().Format(time.RFC3339)
			body["last_check_age"] = time.Since(last.CheckedAt).Round(time.Second).String()
			body["last_detected"] = strconv.FormatBool(last.Detected)
		}
		writeJSON(w, http.StatusOK, body)
	}
}

func handleLast(watcher Watcher) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		result, ok := watcher.LastResult()
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"status": "no completed check yet"})
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort health response
}
