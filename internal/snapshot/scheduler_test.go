package snapshot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSchedulerRejectsBadSchedule(t *testing.T) {
	db := openTestDB(t)
	store := newTestStore(t)

	_, err := NewScheduler(db, store, "not a schedule", nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid snapshot schedule")
}

func TestSchedulerSavesOnSchedule(t *testing.T) {
	db := openTestDB(t)
	store := newTestStore(t)
	store.AddChat("remember to water the fern", "user")

	// every second
	sched, err := NewScheduler(db, store, "* * * * * *", nil)
	require.NoError(t, err)

	sched.Start()
	defer sched.Stop()

	require.Eventually(t, func() bool {
		snap, err := db.Load()
		return err == nil && len(snap.Recent) == 1
	}, 5*time.Second, 100*time.Millisecond)
}

func TestSchedulerStopIsQuiet(t *testing.T) {
	db := openTestDB(t)
	store := newTestStore(t)

	sched, err := NewScheduler(db, store, "0 */5 * * * *", nil)
	require.NoError(t, err)

	sched.Start()

	done := make(chan struct{})
	go func() {
		sched.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}
}
