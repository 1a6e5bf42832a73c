package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/a-marczewski/petmem/internal/memory"
)

// EventView is the wire form of a stored event
type EventView struct {
	ID         string            `json:"id"`
	Kind       string            `json:"kind"`
	Fields     map[string]string `json:"fields"`
	Timestamp  time.Time         `json:"timestamp"`
	Importance *float64          `json:"importance,omitempty"`
}

// ContextResponse carries the prompt-ready context block
type ContextResponse struct {
	Summary string `json:"summary"`
	Lines   int    `json:"lines"`
	Tokens  int    `json:"tokens"`
}

// EventsResponse is a list of events
type EventsResponse struct {
	Events []EventView `json:"events"`
}

// ArchiveDayResponse is one archived day
type ArchiveDayResponse struct {
	Date           string      `json:"date"`
	EventCount     int         `json:"event_count"`
	FirstTimestamp time.Time   `json:"first_timestamp"`
	RollingSummary string      `json:"rolling_summary"`
	Events         []EventView `json:"events"`
}

// StatsResponse reports store counters plus server-side gauges
type StatsResponse struct {
	memory.Stats
	ContextTokens int   `json:"context_tokens"`
	BridgeDropped int64 `json:"bridge_dropped"`
	UptimeSeconds int64 `json:"uptime_seconds"`
}

func eventView(ev memory.Event) EventView {
	return EventView{
		ID:        ev.ID,
		Kind:      string(ev.Kind),
		Fields:    ev.Payload.Fields(),
		Timestamp: ev.Timestamp,
	}
}

func scoredEventView(ev memory.ScoredEvent) EventView {
	view := eventView(ev.Event)
	importance := ev.Importance
	view.Importance = &importance
	return view
}

// handleContext returns the context block for prompt assembly
// GET /api/context?max_lines=15
func (s *Server) handleContext(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	maxLines := s.config().SummaryMaxLines
	if raw := r.URL.Query().Get("max_lines"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			http.Error(w, "Invalid max_lines", http.StatusBadRequest)
			return
		}
		maxLines = n
	}

	summary := s.store.ContextSummary(maxLines)

	lines := 0
	if summary != "" {
		lines = strings.Count(summary, "\n") + 1
	}

	s.writeJSON(w, http.StatusOK, ContextResponse{
		Summary: summary,
		Lines:   lines,
		Tokens:  memory.EstimateTokens(summary),
	})
}

// handleRecent lists events from the recent tier
// GET /api/recent?count=10&kind=chat&window=30m
func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	count := 0
	if raw := r.URL.Query().Get("count"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			http.Error(w, "Invalid count", http.StatusBadRequest)
			return
		}
		count = n
	}

	var window time.Duration
	if raw := r.URL.Query().Get("window"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			http.Error(w, "Invalid window", http.StatusBadRequest)
			return
		}
		window = d
	}

	kind := memory.Kind(r.URL.Query().Get("kind"))

	var events []memory.Event
	if kind != "" || window > 0 {
		events = s.store.RecentByKind(kind, window, count)
	} else {
		events = s.store.Recent(count)
	}

	response := EventsResponse{Events: make([]EventView, len(events))}
	for i, ev := range events {
		response.Events[i] = eventView(ev)
	}

	s.writeJSON(w, http.StatusOK, response)
}

// handleImportant lists the important tier, highest scores first
// GET /api/important?count=10
func (s *Server) handleImportant(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	count := 0
	if raw := r.URL.Query().Get("count"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			http.Error(w, "Invalid count", http.StatusBadRequest)
			return
		}
		count = n
	}

	events := s.store.Important(count)
	response := EventsResponse{Events: make([]EventView, len(events))}
	for i, ev := range events {
		response.Events[i] = scoredEventView(ev)
	}

	s.writeJSON(w, http.StatusOK, response)
}

// handleArchive returns one archived day
// GET /api/archive/2026-08-24
func (s *Server) handleArchive(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	date := strings.TrimPrefix(r.URL.Path, "/api/archive/")
	if date == "" || strings.Contains(date, "/") {
		http.Error(w, "Date required, e.g. /api/archive/2026-08-24", http.StatusBadRequest)
		return
	}

	bucket, ok := s.store.ArchiveForDate(date)
	if !ok {
		http.Error(w, "No archive for that date", http.StatusNotFound)
		return
	}

	response := ArchiveDayResponse{
		Date:           bucket.Date,
		EventCount:     bucket.EventCount,
		FirstTimestamp: bucket.FirstTimestamp,
		RollingSummary: bucket.RollingSummary,
		Events:         make([]EventView, len(bucket.Events)),
	}
	for i, ev := range bucket.Events {
		response.Events[i] = eventView(ev)
	}

	s.writeJSON(w, http.StatusOK, response)
}

// handleStats reports tier sizes and derived gauges
// GET /api/stats
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := StatsResponse{
		Stats:         s.store.Stats(),
		ContextTokens: memory.EstimateTokens(s.store.ContextSummary(s.config().SummaryMaxLines)),
	}
	if s.bridge != nil {
		response.BridgeDropped = s.bridge.Dropped()
	}
	if !s.startTime.IsZero() {
		response.UptimeSeconds = int64(time.Since(s.startTime).Seconds())
	}

	s.writeJSON(w, http.StatusOK, response)
}
