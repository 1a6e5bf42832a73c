package api

import (
	"net/http"

	"github.com/a-marczewski/petmem/internal/memory"
)

// EventRequest is a raw event submission
type EventRequest struct {
	Kind   string            `json:"kind"`
	Fields map[string]string `json:"fields"`
}

// EventResponse reports the stored event and whether it was promoted
type EventResponse struct {
	ID       string `json:"id"`
	Promoted bool   `json:"promoted"`
}

// ChatRequest is a chat line from the companion UI
type ChatRequest struct {
	Text string `json:"text"`
	Who  string `json:"who"`
}

// VisionRequest is a screen observation summary
type VisionRequest struct {
	Summary string `json:"summary"`
	Path    string `json:"path"`
}

// ActivityRequest reports the application the user is focused on
type ActivityRequest struct {
	App       string `json:"app"`
	Category  string `json:"category"`
	Surprised bool   `json:"surprised"`
	Curious   bool   `json:"curious"`
}

// QueuedResponse acknowledges an asynchronous submission
type QueuedResponse struct {
	Queued bool `json:"queued"`
}

// handleEvents ingests a raw event synchronously
// POST /api/events
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req EventRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if req.Kind == "" {
		http.Error(w, "kind is required", http.StatusBadRequest)
		return
	}

	ev, promoted := s.store.Add(memory.Kind(req.Kind), req.Fields)
	s.writeJSON(w, http.StatusOK, EventResponse{ID: ev.ID, Promoted: promoted})
}

// handleChat queues a chat event
// POST /api/chat
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ChatRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if req.Text == "" {
		http.Error(w, "text is required", http.StatusBadRequest)
		return
	}
	if req.Who == "" {
		req.Who = "user"
	}

	s.offer(w, memory.ChatPayload{Who: req.Who, Text: req.Text})
}

// handleVision queues a vision event
// POST /api/vision
func (s *Server) handleVision(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req VisionRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if req.Summary == "" {
		http.Error(w, "summary is required", http.StatusBadRequest)
		return
	}

	s.offer(w, memory.VisionPayload{Summary: req.Summary, Path: req.Path})
}

// handleActivity queues an app activity event
// POST /api/activity
func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ActivityRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if req.App == "" {
		http.Error(w, "app is required", http.StatusBadRequest)
		return
	}

	s.offer(w, memory.AppActivityPayload{
		App:       req.App,
		Category:  req.Category,
		Surprised: req.Surprised,
		Curious:   req.Curious,
	})
}

func (s *Server) offer(w http.ResponseWriter, p memory.Payload) {
	if !s.bridge.Offer(p) {
		http.Error(w, "Event queue full", http.StatusServiceUnavailable)
		return
	}
	s.writeJSON(w, http.StatusAccepted, QueuedResponse{Queued: true})
}
