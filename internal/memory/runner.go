package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Runner sweeps a store on a wall-clock interval so that decay and
// archival keep happening while the event stream is quiet
type Runner struct {
	store    *Store
	interval time.Duration
	logger   *zap.Logger

	started  atomic.Bool
	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
}

// NewRunner creates a Runner. A nil logger disables logging.
func NewRunner(store *Store, interval time.Duration, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		store:    store,
		interval: interval,
		logger:   logger,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Run sweeps the store until the context is cancelled or Stop is
// called. It blocks, so it is normally started in its own goroutine.
// An interval of zero or less disables periodic sweeping.
func (r *Runner) Run(ctx context.Context) {
	r.started.Store(true)
	defer close(r.doneCh)

	if r.interval <= 0 {
		r.logger.Debug("maintenance runner disabled")
		return
	}

	r.logger.Info("maintenance runner started", zap.Duration("interval", r.interval))

	timer := time.NewTimer(r.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Debug("maintenance runner stopping")
			return
		case <-r.stopCh:
			r.logger.Debug("maintenance runner stopping")
			return
		case <-timer.C:
			r.store.Sweep()
			timer.Reset(r.interval)
		}
	}
}

// Stop signals the runner and waits for Run to return. Stopping a
// runner that was never started is a no-op.
func (r *Runner) Stop() {
	r.stopOnce.Do(func() {
		close(r.stopCh)
	})
	if r.started.Load() {
		<-r.doneCh
	}
}
