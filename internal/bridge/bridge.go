package bridge

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/a-marczewski/petmem/internal/memory"
)

// Bridge decouples event producers from the store. Producers offer
// payloads without blocking and a single worker ingests them in order,
// so bursts from the capture side never stall on a sweep.
type Bridge struct {
	store  *memory.Store
	logger *zap.Logger

	queue   chan memory.Payload
	dropped atomic.Int64

	started   atomic.Bool
	startOnce sync.Once
	stopOnce  sync.Once
	stopCh    chan struct{}
	doneCh    chan struct{}
}

// New creates a Bridge with the given queue capacity.
// A nil logger disables logging.
func New(store *memory.Store, queueSize int, logger *zap.Logger) *Bridge {
	if queueSize < 1 {
		queueSize = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bridge{
		store:  store,
		logger: logger,
		queue:  make(chan memory.Payload, queueSize),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start launches the worker goroutine. Calling it again has no effect.
func (b *Bridge) Start(ctx context.Context) {
	b.startOnce.Do(func() {
		b.started.Store(true)
		go b.run(ctx)
	})
}

func (b *Bridge) run(ctx context.Context) {
	defer close(b.doneCh)

	b.logger.Info("bridge started", zap.Int("queue_capacity", cap(b.queue)))

	for {
		select {
		case <-ctx.Done():
			b.drain()
			return
		case <-b.stopCh:
			b.drain()
			return
		case p := <-b.queue:
			b.store.AddEvent(p)
		}
	}
}

// drain ingests whatever is still queued at shutdown
func (b *Bridge) drain() {
	for {
		select {
		case p := <-b.queue:
			b.store.AddEvent(p)
		default:
			return
		}
	}
}

// Offer enqueues a payload without blocking. It reports false when the
// queue is full, in which case the event is counted as dropped.
func (b *Bridge) Offer(p memory.Payload) bool {
	select {
	case b.queue <- p:
		return true
	default:
		b.dropped.Add(1)
		b.logger.Warn("bridge queue full, event dropped",
			zap.String("kind", string(p.Kind())))
		return false
	}
}

// Dropped is the number of events rejected because the queue was full
func (b *Bridge) Dropped() int64 {
	return b.dropped.Load()
}

// Stop ends the worker after draining the queue. It is safe to call
// more than once and returns once the worker has exited.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		close(b.stopCh)
	})
	if b.started.Load() {
		<-b.doneCh
	}
}
