package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"
)

// MetricsSource exposes a Prometheus handler.
type MetricsSource interface {
	Handler() http.Handler
}

type httpServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon

	listener net.Listener
	server   *http.Server
}

func newHTTPServer(bind string, d *Daemon, logger *slog.Logger) *httpServer {
	bind = strings.TrimSpace(bind)
	if bind == "" || d == nil {
		return nil
	}

	mux := http.NewServeMux()
	srv := &httpServer{
		bind:   bind,
		logger: logger,
		daemon: d,
	}
	if d.metrics != nil {
		mux.Handle("/metrics", d.metrics.Handler())
	}
	mux.HandleFunc("/healthz", srv.handleHealth)
	mux.HandleFunc("/status", srv.handleStatus)

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

func (s *httpServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("metrics listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("metrics server error", slog.String("error", err.Error()))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("metrics server listening", slog.String("address", listener.Addr().String()))
	return nil
}

func (s *httpServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *httpServer) address() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *httpServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if !s.daemon.running.Load() {
		s.writeError(w, http.StatusServiceUnavailable, "daemon stopping")
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}

type statusPayload struct {
	Running         bool      `json:"running"`
	LockFile        string    `json:"lockFile"`
	Database        string    `json:"database"`
	CleanupSchedule string    `json:"cleanupSchedule"`
	NextCleanup     time.Time `json:"nextCleanup,omitzero"`
	LastMaintenance struct {
		StartedAt    time.Time `json:"startedAt,omitzero"`
		Records      int       `json:"records"`
		CacheEntries int       `json:"cacheEntries"`
		Logs         int       `json:"logs"`
		Errors       []string  `json:"errors,omitempty"`
	} `json:"lastMaintenance"`
}

func (s *httpServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	status := s.daemon.Status()
	payload := statusPayload{
		Running:         status.Running,
		LockFile:        status.LockFilePath,
		Database:        status.DatabasePath,
		CleanupSchedule: status.CleanupSchedule,
		NextCleanup:     status.NextCleanup,
	}
	payload.LastMaintenance.StartedAt = status.LastMaintenance.StartedAt
	payload.LastMaintenance.Records = status.LastMaintenance.Records
	payload.LastMaintenance.CacheEntries = status.LastMaintenance.CacheEntries
	payload.LastMaintenance.Logs = status.LastMaintenance.Logs
	payload.LastMaintenance.Errors = status.LastMaintenance.Errors
	s.writeJSON(w, http.StatusOK, payload)
}

func (s *httpServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("failed to encode response", slog.String("error", err.Error()))
	}
}

func (s *httpServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
