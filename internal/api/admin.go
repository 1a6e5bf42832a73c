package api

import (
	"net/http"

	"go.uber.org/zap"
)

// ClearResponse acknowledges a wipe
type ClearResponse struct {
	Cleared bool `json:"cleared"`
}

// SnapshotResponse acknowledges a manual snapshot save
type SnapshotResponse struct {
	Saved bool   `json:"saved"`
	Path  string `json:"path"`
}

// handleClear wipes every tier
// POST /api/clear
func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.store.Clear()
	s.writeJSON(w, http.StatusOK, ClearResponse{Cleared: true})
}

// handleSweep runs a decay pass immediately and reports the result
// POST /api/sweep
func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.store.Sweep()
	s.writeJSON(w, http.StatusOK, s.store.Stats())
}

// handleSnapshot saves the store to the snapshot database
// POST /api/snapshot
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if s.snapshots == nil {
		http.Error(w, "Snapshot persistence is not configured", http.StatusBadRequest)
		return
	}

	if err := s.snapshots.Save(s.store.Snapshot()); err != nil {
		s.logger.Error("snapshot save failed", zap.Error(err))
		http.Error(w, "Failed to save snapshot", http.StatusInternalServerError)
		return
	}

	s.writeJSON(w, http.StatusOK, SnapshotResponse{Saved: true, Path: s.snapshots.Path()})
}
