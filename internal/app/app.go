package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/a-marczewski/petmem/internal/bridge"
	"github.com/a-marczewski/petmem/internal/config"
	"github.com/a-marczewski/petmem/internal/logging"
	"github.com/a-marczewski/petmem/internal/memory"
	"github.com/a-marczewski/petmem/internal/snapshot"
)

// NewApp initializes and returns a new App instance. An empty configPath
// falls back to the default config file when one exists.
func NewApp(configPath string) (*App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// Relative log files land under the data directory
	logFile := cfg.LogFile
	if logFile != "" && !filepath.IsAbs(logFile) {
		logFile = filepath.Join(config.DataDir(), "logs", logFile)
	}

	logger, err := logging.NewLogger(cfg.LogLevel, cfg.LogFormat, logFile)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	store, err := memory.New(cfg.MemoryConfig(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize memory store: %w", err)
	}

	br := bridge.New(store, cfg.BridgeQueueSize, logger)

	var snapDB *snapshot.DB
	var scheduler *snapshot.Scheduler
	if cfg.SnapshotPath != "" {
		snapDB, err = snapshot.Open(cfg.SnapshotPath, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open snapshot database: %w", err)
		}

		if snap, err := snapDB.Load(); err != nil {
			logger.Warn("failed to load stored snapshot, starting fresh", zap.Error(err))
		} else if snap.Counter > 0 || len(snap.Archive) > 0 {
			store.RestoreSnapshot(snap)
		}

		scheduler, err = snapshot.NewScheduler(snapDB, store, cfg.SnapshotSchedule, logger)
		if err != nil {
			snapDB.Close()
			return nil, err
		}
	}

	runner := memory.NewRunner(store, cfg.MaintenanceInterval(), logger)

	ctx, cancel := context.WithCancel(context.Background())

	return &App{
		Core: CoreModule{
			Config: cfg,
			Logger: logger,
		},
		Store:     store,
		Bridge:    br,
		Runner:    runner,
		Snapshots: snapDB,
		Scheduler: scheduler,
		Ctx:       ctx,
		Cancel:    cancel,
	}, nil
}

// Close gracefully shuts down the application resources. The bridge is
// drained before the final snapshot so queued events are not lost.
func (a *App) Close() {
	if a.Cancel != nil {
		a.Cancel()
	}

	if a.Scheduler != nil {
		a.Scheduler.Stop()
	}
	if a.Bridge != nil {
		a.Bridge.Stop()
	}
	if a.Runner != nil {
		a.Runner.Stop()
	}

	if a.Snapshots != nil {
		if err := a.Snapshots.Save(a.Store.Snapshot()); err != nil {
			a.Core.Logger.Error("Failed to save final snapshot", zap.Error(err))
		} else {
			a.Core.Logger.Info("Final snapshot saved", zap.String("path", a.Snapshots.Path()))
		}
		if err := a.Snapshots.Close(); err != nil {
			a.Core.Logger.Error("Failed to close snapshot database", zap.Error(err))
		}
	}

	if a.Core.Logger != nil {
		if err := a.Core.Logger.Sync(); err != nil {
			// Sync on stderr fails on some platforms, ignore the known cases
			if !strings.Contains(err.Error(), "sync /dev/stderr: invalid argument") &&
				!strings.Contains(err.Error(), "bad file descriptor") &&
				!strings.Contains(err.Error(), "inappropriate ioctl for device") {
				fmt.Fprintf(os.Stderr, "Error syncing logger: %v\n", err)
			}
		}
	}
}

// ContextWithLogger returns a new context carrying the application's logger
func (a *App) ContextWithLogger(ctx context.Context) context.Context {
	return logging.ContextWithLogger(ctx, a.Core.Logger)
}
