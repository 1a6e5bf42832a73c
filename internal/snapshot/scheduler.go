package snapshot

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/a-marczewski/petmem/internal/memory"
)

// stopTimeout bounds how long Stop waits for a running save
const stopTimeout = 5 * time.Second

// Scheduler saves snapshots of a store on a cron schedule.
// Schedules use six fields with a seconds column, e.g. "0 */5 * * * *".
type Scheduler struct {
	db     *DB
	store  *memory.Store
	cron   *cron.Cron
	logger *zap.Logger
}

// NewScheduler validates the schedule and prepares the snapshot job
func NewScheduler(db *DB, store *memory.Store, schedule string, logger *zap.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Scheduler{
		db:     db,
		store:  store,
		cron:   cron.New(cron.WithSeconds()),
		logger: logger,
	}

	if _, err := s.cron.AddFunc(schedule, s.save); err != nil {
		return nil, fmt.Errorf("invalid snapshot schedule %q: %w", schedule, err)
	}

	return s, nil
}

func (s *Scheduler) save() {
	if err := s.db.Save(s.store.Snapshot()); err != nil {
		s.logger.Error("scheduled snapshot failed", zap.Error(err))
		return
	}
	s.logger.Debug("scheduled snapshot saved")
}

// Start begins running the schedule in the background
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("snapshot scheduler started", zap.String("path", s.db.Path()))
}

// Stop halts the schedule and waits for an in-flight save to finish
func (s *Scheduler) Stop() {
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(stopTimeout):
		s.logger.Warn("timed out waiting for snapshot job to finish")
	}
}
