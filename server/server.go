// Package server handles HTTP endpoints and request routing for the
// watch list control surface.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"twitter-watcher/pkg/watcher"
)

// Resolver maps a Twitter handle to its stable numeric user ID.
type Resolver interface {
	ResolveUser(ctx context.Context, handle string) (string, error)
}

// Watchlist is the registry view the control surface needs.
type Watchlist interface {
	Insert(acct watcher.Account) bool
	Remove(handle string) bool
	Lookup(handle string) (watcher.Account, bool)
	Snapshot() []watcher.Account
	ReplaceAll(entries []watcher.Account) int
}

// Poller is the background loop's control interface.
type Poller interface {
	Tick(ctx context.Context) error
	SetIntervalSeconds(seconds int) error
	IntervalSeconds() int
	LastTick() time.Time
	Enabled() bool
}

// Server handles HTTP requests.
type Server struct {
	store      Watchlist
	resolver   Resolver
	poller     Poller
	logger     *slog.Logger
	checkpoint func(ctx context.Context)
}

// Config holds server configuration.
type Config struct {
	Store      Watchlist
	Resolver   Resolver // nil when Twitter credentials are absent
	Poller     Poller
	Logger     *slog.Logger
	Checkpoint func(ctx context.Context) // optional, called after registry mutations
}

// New creates a new HTTP server handler.
func New(cfg *Config) *Server {
	return &Server{
		store:      cfg.Store,
		resolver:   cfg.Resolver,
		poller:     cfg.Poller,
		logger:     cfg.Logger,
		checkpoint: cfg.Checkpoint,
	}
}

// Handler returns the service mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/pollz", s.handlePoll)
	mux.HandleFunc("/rpc/twitter_watcher", s.handleRPC)
	mux.HandleFunc("/rpc/backup/export", s.handleExport)
	mux.HandleFunc("/rpc/backup/restore", s.handleRestore)
	return mux
}

// ListenAndServe starts the HTTP server and shuts it down when ctx is
// cancelled. In-flight requests get a short grace period.
func (s *Server) ListenAndServe(ctx context.Context, port string) error {
	// Configure server with timeouts to prevent resource exhaustion
	server := &http.Server{
		Addr:              ":" + port,
		Handler:           s.Handler(),
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("HTTP server shutdown failed", "error", err)
		}
	}()

	s.logger.Info("Starting HTTP server", "port", port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// response is the envelope every control-surface call returns.
type response struct {
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Success bool   `json:"success"`
}

func (s *Server) writeSuccess(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(response{Success: true, Data: data}); err != nil {
		s.logger.Warn("Failed to write response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(response{Success: false, Error: msg}); err != nil {
		s.logger.Warn("Failed to write response", "error", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := fmt.Fprint(w, `{"status":"healthy"}`); err != nil {
		s.logger.Warn("Failed to write health response", "error", err)
	}
}

func (s *Server) handlePoll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.logger.Info("Poll endpoint triggered")

	if err := s.poller.Tick(r.Context()); err != nil {
		s.logger.Error("Poll check failed", "error", err)
		s.writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	s.writeSuccess(w, map[string]string{"status": "completed"})
}

// saveSnapshot checkpoints the registry after a mutation. Best effort.
func (s *Server) saveSnapshot(ctx context.Context) {
	if s.checkpoint != nil {
		s.checkpoint(ctx)
	}
}
