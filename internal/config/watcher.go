package config

import (
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// debounceDelay coalesces editor write bursts into a single reload
const debounceDelay = 300 * time.Millisecond

// ChangeHandler receives the freshly loaded configuration
type ChangeHandler func(*Config)

// Watcher reloads the configuration file when it changes on disk and
// hands the result to registered handlers
type Watcher struct {
	path    string
	logger  *zap.Logger
	watcher *fsnotify.Watcher

	mu       sync.Mutex
	handlers []ChangeHandler
	timer    *time.Timer

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewWatcher creates a watcher for the given config file path
func NewWatcher(path string, logger *zap.Logger) (*Watcher, error) {
	if path == "" {
		return nil, fmt.Errorf("config watcher needs a file path")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fs watcher: %w", err)
	}

	return &Watcher{
		path:    path,
		logger:  logger,
		watcher: fsw,
		stopCh:  make(chan struct{}),
	}, nil
}

// OnChange registers a handler invoked after each successful reload
func (w *Watcher) OnChange(handler ChangeHandler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers = append(w.handlers, handler)
}

// Start begins watching. It returns once the watch is registered.
func (w *Watcher) Start() error {
	if err := w.watcher.Add(w.path); err != nil {
		return fmt.Errorf("watch %s: %w", w.path, err)
	}

	go w.watchLoop()
	w.logger.Info("watching config file", zap.String("path", w.path))
	return nil
}

func (w *Watcher) watchLoop() {
	for {
		select {
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.scheduleReload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watch error", zap.Error(err))
		}
	}
}

func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(debounceDelay, w.reload)
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		w.logger.Error("config reload failed", zap.Error(err))
		return
	}
	if err := cfg.Validate(); err != nil {
		w.logger.Error("reloaded config is invalid", zap.Error(err))
		return
	}

	w.logger.Info("config reloaded", zap.String("path", w.path))

	w.mu.Lock()
	handlers := make([]ChangeHandler, len(w.handlers))
	copy(handlers, w.handlers)
	w.mu.Unlock()

	for _, handler := range handlers {
		handler(cfg)
	}
}

// Stop ends the watch. It is safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		w.watcher.Close()
	})

	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
}
