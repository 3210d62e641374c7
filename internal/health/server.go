// Package health exposes liveness and readiness endpoints for container orchestrators.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"expense_tracker_bot/internal/logging"
)

const (
	mongoPingTimeout  = 2 * time.Second
	readHeaderTimeout = 2 * time.Second
)

// Pinger is the store behavior readiness depends on.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options configures the health server.
type Options struct {
	Port    int
	Store   Pinger
	Started time.Time
	Logger  *logrus.Entry
	Now     func() time.Time
}

// Server hosts the health endpoints and owns the underlying HTTP server.
type Server struct {
	server  *http.Server
	logger  *logrus.Entry
	store   Pinger
	started time.Time
	now     func() time.Time
}

type response struct {
	Status        string `json:"status"`
	Mongo         string `json:"mongo,omitempty"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// NewServer constructs a health server exposing GET /livez and GET /healthz.
func NewServer(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = logging.Logger()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Started.IsZero() {
		opts.Started = opts.Now()
	}

	srv := &Server{
		logger:  opts.Logger,
		store:   opts.Store,
		started: opts.Started,
		now:     opts.Now,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /livez", srv.handleLive)
	mux.HandleFunc("GET /healthz", srv.handleReady)

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", opts.Port),
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	return srv
}

// ListenAndServe starts the health server and blocks until shutdown.
func (s *Server) ListenAndServe() error {
	s.logger.WithFields(logging.Fields{
		"event": "health_listen",
		"addr":  s.server.Addr,
	}).Info("starting health server")

	err := s.server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("health server listen: %w", err)
	}

	s.logger.WithField("event", "health_stopped").Info("health server stopped")
	return nil
}

// Shutdown gracefully stops the health server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s == nil || s.server == nil {
		return nil
	}

	return s.server.Shutdown(ctx)
}

func (s *Server) uptime() int64 {
	return int64(s.now().Sub(s.started) / time.Second)
}

func (s *Server) handleLive(w http.ResponseWriter, _ *http.Request) {
	s.write(w, http.StatusOK, response{Status: "ok", UptimeSeconds: s.uptime()})
}

// handleReady reports 503 while Mongo is unreachable so the process is taken
// out of rotation without being restarted.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	resp := response{Status: "ok", UptimeSeconds: s.uptime()}

	if s.store == nil {
		s.logger.WithField("event", "health_mongo_missing").Warn("store is not configured for health endpoint")
		resp.Status, resp.Mongo = "degraded", "error"
		s.write(w, http.StatusServiceUnavailable, resp)
		return
	}

	pingCtx, cancel := context.WithTimeout(r.Context(), mongoPingTimeout)
	err := s.store.Ping(pingCtx)
	cancel()

	if err != nil {
		s.logger.WithField("event", "health_mongo_error").WithError(err).Warn("mongo ping failed during health check")
		resp.Status, resp.Mongo = "degraded", "error"
		s.write(w, http.StatusServiceUnavailable, resp)
		return
	}

	s.write(w, http.StatusOK, resp)
}

func (s *Server) write(w http.ResponseWriter, status int, resp response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.WithField("event", "health_write_error").WithError(err).Error("failed to encode health response")
	}
}
