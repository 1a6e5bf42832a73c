package memory

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Store is the tiered event memory of the desktop companion. Events
// enter a bounded recent tier; those scoring above the promotion
// threshold are copied into the important tier, where importance decays
// over time and long-faded events spill into a per-day archive.
//
// All methods are safe for concurrent use.
type Store struct {
	cfg    Config
	logger *zap.Logger

	mu        sync.Mutex
	recent    []Event
	important []ScoredEvent
	archive   map[string]*DayBucket
	counter   int64
}

// New creates an empty Store with the given tuning.
// A nil logger disables logging.
func New(cfg Config, logger *zap.Logger) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid memory config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		cfg:     cfg,
		logger:  logger,
		archive: make(map[string]*DayBucket),
	}, nil
}

// Add ingests an event of the given kind from a flat field map and
// reports whether it was promoted to the important tier
func (s *Store) Add(kind Kind, fields map[string]string) (Event, bool) {
	return s.AddEvent(NewPayload(kind, fields))
}

// AddEvent ingests a typed payload and reports whether it was promoted
func (s *Store) AddEvent(p Payload) (Event, bool) {
	return s.addAt(p, time.Now())
}

func (s *Store) addAt(p Payload, now time.Time) (Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ev := Event{
		ID:        uuid.NewString(),
		Kind:      p.Kind(),
		Payload:   p,
		Timestamp: now,
	}

	s.recent = append(s.recent, ev)
	if len(s.recent) > s.cfg.RecentMax {
		s.recent = s.recent[len(s.recent)-s.cfg.RecentMax:]
	}

	score := Score(ev.Kind, p.Fields())
	promoted := score > s.cfg.ImportanceThreshold
	if promoted {
		s.important = append(s.important, ScoredEvent{Event: ev, Importance: score})
		s.trimImportantLocked()
	}

	s.counter++
	if s.counter%int64(s.cfg.SweepInterval) == 0 {
		s.sweepLocked(now)
	}

	s.logger.Debug("event ingested",
		zap.String("id", ev.ID),
		zap.String("kind", string(ev.Kind)),
		zap.Float64("score", score),
		zap.Bool("promoted", promoted))

	return ev, promoted
}

// AddChat records an utterance. An empty who is attributed to "user".
func (s *Store) AddChat(text, who string) (Event, bool) {
	if who == "" {
		who = "user"
	}
	return s.AddEvent(ChatPayload{Who: who, Text: text})
}

// AddVision records a screen observation with an optional capture path
func (s *Store) AddVision(summary, path string) (Event, bool) {
	return s.AddEvent(VisionPayload{Summary: summary, Path: path})
}

// AddAppActivity records which application the user is active in
func (s *Store) AddAppActivity(app, category string, surprised, curious bool) (Event, bool) {
	return s.AddEvent(AppActivityPayload{
		App:       app,
		Category:  category,
		Surprised: surprised,
		Curious:   curious,
	})
}

// AddLocation records the companion's position on the desktop grid
func (s *Store) AddLocation(x, y, z int) (Event, bool) {
	return s.AddEvent(LocationPayload{X: x, Y: y, Z: z})
}

// AddInventory records an item the companion gained or lost
func (s *Store) AddInventory(item string, count int, action string) (Event, bool) {
	return s.AddEvent(InventoryPayload{Item: item, Count: count, Action: action})
}

// AddSkill records progress on a learned skill
func (s *Store) AddSkill(name string, level int) (Event, bool) {
	return s.AddEvent(SkillPayload{Name: name, Level: level})
}

// AddPreference records a stated like or dislike of the user
func (s *Store) AddPreference(topic, sentiment string) (Event, bool) {
	return s.AddEvent(PreferencePayload{Topic: topic, Sentiment: sentiment})
}

// Recent returns up to count events from the recent tier in
// chronological order. A count of zero or less returns all of them.
func (s *Store) Recent(count int) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	events := s.recent
	if count > 0 && count < len(events) {
		events = events[len(events)-count:]
	}
	out := make([]Event, len(events))
	copy(out, events)
	return out
}

// RecentByKind filters the recent tier by kind and age. An empty kind
// matches every kind, a window of zero or less disables the age filter,
// and a limit of zero or less keeps every match. Results are in
// chronological order.
func (s *Store) RecentByKind(kind Kind, window time.Duration, limit int) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	var cutoff time.Time
	if window > 0 {
		cutoff = time.Now().Add(-window)
	}

	var matched []Event
	for i := len(s.recent) - 1; i >= 0; i-- {
		ev := s.recent[i]
		if kind != "" && ev.Kind != kind {
			continue
		}
		if !cutoff.IsZero() && ev.Timestamp.Before(cutoff) {
			continue
		}
		matched = append(matched, ev)
		if limit > 0 && len(matched) == limit {
			break
		}
	}

	// collected newest first, flip back to chronological
	for i, j := 0, len(matched)-1; i < j; i, j = i+1, j-1 {
		matched[i], matched[j] = matched[j], matched[i]
	}
	return matched
}

// Important returns up to count events from the important tier sorted by
// importance, highest first. A count of zero or less returns all of them.
func (s *Store) Important(count int) []ScoredEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]ScoredEvent, len(s.important))
	copy(out, s.important)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Importance > out[j].Importance
	})
	if count > 0 && count < len(out) {
		out = out[:count]
	}
	return out
}

// ArchiveForDate returns the archive bucket for a YYYY-MM-DD local date
func (s *Store) ArchiveForDate(date string) (DayBucket, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bucket, ok := s.archive[date]
	if !ok {
		return DayBucket{}, false
	}
	return bucket.clone(), true
}

// Stats reports the current tier sizes and the lifetime event count
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Stats{
		RecentItems:    len(s.recent),
		ImportantItems: len(s.important),
		ArchiveDays:    len(s.archive),
		TotalEvents:    s.counter,
		MemoryRatio:    float64(len(s.important)) / float64(len(s.recent)+1),
	}
}

// Clear drops all tiers and resets the event counter
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.recent = nil
	s.important = nil
	s.archive = make(map[string]*DayBucket)
	s.counter = 0

	s.logger.Info("memory cleared")
}

// Snapshot copies the full store state for persistence
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Recent:    make([]Event, len(s.recent)),
		Important: make([]ScoredEvent, len(s.important)),
		Counter:   s.counter,
	}
	copy(snap.Recent, s.recent)
	copy(snap.Important, s.important)

	dates := make([]string, 0, len(s.archive))
	for date := range s.archive {
		dates = append(dates, date)
	}
	sort.Strings(dates)
	for _, date := range dates {
		snap.Archive = append(snap.Archive, s.archive[date].clone())
	}
	return snap
}

// RestoreSnapshot replaces the store state with a previously taken
// snapshot, re-applying the configured tier capacities
func (s *Store) RestoreSnapshot(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.recent = make([]Event, len(snap.Recent))
	copy(s.recent, snap.Recent)
	if len(s.recent) > s.cfg.RecentMax {
		s.recent = s.recent[len(s.recent)-s.cfg.RecentMax:]
	}

	s.important = make([]ScoredEvent, len(snap.Important))
	copy(s.important, snap.Important)
	s.trimImportantLocked()

	s.archive = make(map[string]*DayBucket, len(snap.Archive))
	for _, bucket := range snap.Archive {
		restored := bucket.clone()
		restored.fragments = make(map[string]struct{})
		for _, ev := range restored.Events {
			if ev.Kind != KindChat {
				continue
			}
			fields := ev.Payload.Fields()
			restored.fragments[chatFragment(fields["who"], fields["text"])] = struct{}{}
		}
		s.archive[restored.Date] = &restored
	}

	s.counter = snap.Counter

	s.logger.Info("memory restored from snapshot",
		zap.Int("recent", len(s.recent)),
		zap.Int("important", len(s.important)),
		zap.Int("archive_days", len(s.archive)))
}

func (b *DayBucket) clone() DayBucket {
	out := DayBucket{
		Date:           b.Date,
		EventCount:     b.EventCount,
		FirstTimestamp: b.FirstTimestamp,
		RollingSummary: b.RollingSummary,
	}
	out.Events = make([]Event, len(b.Events))
	copy(out.Events, b.Events)
	return out
}
