package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/a-marczewski/petmem/internal/bridge"
	"github.com/a-marczewski/petmem/internal/config"
	"github.com/a-marczewski/petmem/internal/memory"
	"github.com/a-marczewski/petmem/internal/snapshot"
	"github.com/a-marczewski/petmem/internal/version"
)

const maxRequestBytes = 1 << 20

// Server exposes the memory store over a local HTTP API
type Server struct {
	store      *memory.Store
	bridge     *bridge.Bridge
	snapshots  *snapshot.DB // nil when persistence is disabled
	logger     *zap.Logger
	cfg        atomic.Pointer[config.Config]
	httpServer *http.Server
	startTime  time.Time
}

// NewServer creates a new API server
func NewServer(cfg *config.Config, store *memory.Store, br *bridge.Bridge, snapshots *snapshot.DB, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		store:     store,
		bridge:    br,
		snapshots: snapshots,
		logger:    logger,
	}
	s.cfg.Store(cfg)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/events", s.handleEvents)
	mux.HandleFunc("/api/chat", s.handleChat)
	mux.HandleFunc("/api/vision", s.handleVision)
	mux.HandleFunc("/api/activity", s.handleActivity)
	mux.HandleFunc("/api/context", s.handleContext)
	mux.HandleFunc("/api/recent", s.handleRecent)
	mux.HandleFunc("/api/important", s.handleImportant)
	mux.HandleFunc("/api/archive/", s.handleArchive)
	mux.HandleFunc("/api/stats", s.handleStats)
	mux.HandleFunc("/api/clear", s.handleClear)
	mux.HandleFunc("/api/sweep", s.handleSweep)
	mux.HandleFunc("/api/snapshot", s.handleSnapshot)

	s.httpServer = &http.Server{
		Addr:         cfg.ListenAddr(),
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.startTime = time.Now()
	s.logger.Info("starting api server", zap.String("addr", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down api server")
	return s.httpServer.Shutdown(ctx)
}

// Handler returns the route handler, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// UpdateConfig swaps the active configuration. Address changes require a
// restart; tunables like the summary line cap take effect immediately.
func (s *Server) UpdateConfig(cfg *config.Config) {
	s.cfg.Store(cfg)
	s.logger.Info("configuration reloaded",
		zap.Int("summary_max_lines", cfg.SummaryMaxLines),
		zap.String("config_path", cfg.ConfigPath))
}

func (s *Server) config() *config.Config {
	return s.cfg.Load()
}

// HealthResponse reports service liveness
type HealthResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := HealthResponse{
		Status:  "ok",
		Version: version.Version,
	}
	if !s.startTime.IsZero() {
		response.UptimeSeconds = int64(time.Since(s.startTime).Seconds())
	}

	s.writeJSON(w, http.StatusOK, response)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
	}
}

func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return false
	}
	return true
}
