package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"twitter-watcher/pkg/watcher"
	"twitter-watcher/poll"
)

// rpcRequest is the action-routed control request body.
type rpcRequest struct {
	Action   string      `json:"action"`
	Username string      `json:"username"`
	Interval json.Number `json:"interval"`
}

// handleRPC is the unified tool endpoint with action routing.
func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// A malformed body routes to the unknown-action error below, the
	// same way a missing body does.
	var req rpcRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	switch req.Action {
	case "add":
		s.handleAdd(w, r, req)
	case "remove":
		s.handleRemove(w, r, req)
	case "list":
		s.handleList(w)
	case "set_interval":
		s.handleSetInterval(w, req)
	default:
		s.writeError(w, http.StatusBadRequest,
			fmt.Sprintf("Unknown action %q. Use: add, remove, list, set_interval", req.Action))
	}
}

// cleanHandle trims whitespace and any leading @ from a submitted handle.
func cleanHandle(username string) string {
	return strings.TrimLeft(strings.TrimSpace(username), "@")
}

func (s *Server) handleAdd(w http.ResponseWriter, r *http.Request, req rpcRequest) {
	username := cleanHandle(req.Username)
	if username == "" {
		s.writeError(w, http.StatusBadRequest, "'username' is required for 'add' action")
		return
	}

	if existing, ok := s.store.Lookup(username); ok {
		s.writeSuccess(w, map[string]any{
			"username": existing.Handle,
			"message":  "Already watching this account",
		})
		return
	}

	if s.resolver == nil {
		s.writeError(w, http.StatusBadRequest, "Twitter API credentials not configured")
		return
	}

	userID, err := s.resolver.ResolveUser(r.Context(), username)
	if err != nil {
		s.logger.Warn("Failed to resolve Twitter user", "username", username, "error", err)
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("Could not resolve Twitter user @%s", username))
		return
	}

	acct := watcher.Account{
		Handle:  username,
		UserID:  userID,
		AddedAt: time.Now().UTC(),
	}
	if !s.store.Insert(acct) {
		// Lost a race with a concurrent add for the same handle.
		s.writeSuccess(w, map[string]any{
			"username": username,
			"message":  "Already watching this account",
		})
		return
	}

	s.logger.Info("Account added to watch list", "username", username, "user_id", userID)
	s.saveSnapshot(r.Context())

	s.writeSuccess(w, map[string]any{
		"username": username,
		"user_id":  userID,
		"message":  fmt.Sprintf("Now watching @%s", username),
	})
}

func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request, req rpcRequest) {
	username := cleanHandle(req.Username)
	if username == "" {
		s.writeError(w, http.StatusBadRequest, "'username' is required for 'remove' action")
		return
	}

	existed := s.store.Remove(username)
	if existed {
		s.logger.Info("Account removed from watch list", "username", username)
		s.saveSnapshot(r.Context())
	}

	message := "Was not watching this account"
	if existed {
		message = fmt.Sprintf("Stopped watching @%s", username)
	}
	s.writeSuccess(w, map[string]any{
		"username": username,
		"existed":  existed,
		"message":  message,
	})
}

func (s *Server) handleList(w http.ResponseWriter) {
	entries := s.store.Snapshot()

	data := map[string]any{
		"count":         len(entries),
		"poll_interval": s.poller.IntervalSeconds(),
		"entries":       entries,
	}
	if last := s.poller.LastTick(); !last.IsZero() {
		data["last_poll_at"] = last.Format(time.RFC3339)
	}
	s.writeSuccess(w, data)
}

func (s *Server) handleSetInterval(w http.ResponseWriter, req rpcRequest) {
	if req.Interval == "" {
		s.writeError(w, http.StatusBadRequest, "'interval' is required for 'set_interval' action")
		return
	}
	seconds, err := req.Interval.Int64()
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "'interval' must be an integer")
		return
	}

	if err := s.poller.SetIntervalSeconds(int(seconds)); err != nil {
		if errors.Is(err, poll.ErrBelowMinimum) {
			s.writeError(w, http.StatusBadRequest,
				fmt.Sprintf("Minimum poll interval is %d seconds", int(poll.MinInterval/time.Second)))
			return
		}
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.writeSuccess(w, map[string]any{
		"interval": seconds,
		"message":  fmt.Sprintf("Poll interval set to %ds", seconds),
	})
}
