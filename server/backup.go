package server

import (
	"encoding/json"
	"io"
	"net/http"

	"twitter-watcher/pkg/watcher"
)

// handleExport dumps the watch list for backup, in registry order.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	entries := s.store.Snapshot()
	s.logger.Info("Watch list exported", "count", len(entries))
	s.writeSuccess(w, entries)
}

// handleRestore clears the watch list and bulk-loads it from the payload.
// The payload is either a bare JSON array of entries or an envelope
// {"data": [...]}; anything else is rejected before any mutation.
func (s *Server) handleRestore(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	var entries []watcher.Account
	if err := json.Unmarshal(body, &entries); err != nil {
		var envelope struct {
			Data []watcher.Account `json:"data"`
		}
		if err := json.Unmarshal(body, &envelope); err != nil {
			s.writeError(w, http.StatusBadRequest, "Invalid JSON payload")
			return
		}
		entries = envelope.Data
	}

	loaded := s.store.ReplaceAll(entries)
	s.logger.Info("Watch list restored", "payload_entries", len(entries), "loaded", loaded)
	s.saveSnapshot(r.Context())

	s.writeSuccess(w, map[string]any{"restored": len(entries)})
}
