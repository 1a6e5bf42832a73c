package memory

import (
	"math"
	"sort"
	"time"

	"go.uber.org/zap"
)

// Sweep runs a maintenance pass over the important tier immediately.
// Sweeps also run inline every SweepInterval ingested events.
func (s *Store) Sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked(time.Now())
}

// sweepAt runs a sweep against a fixed clock reading
func (s *Store) sweepAt(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked(now)
}

// sweepLocked decays the important tier in place. Each stored
// importance is multiplied by 0.5 per half-life of total event age.
// Events still above the residual floor keep the decayed value; faded
// events older than ArchiveAfter move to the archive; the rest are
// dropped. Callers must hold s.mu.
func (s *Store) sweepLocked(now time.Time) {
	kept := s.important[:0]
	var archived, dropped int

	for _, mem := range s.important {
		age := now.Sub(mem.Timestamp)
		if age < 0 {
			age = 0
		}
		decayed := mem.Importance * math.Pow(0.5, age.Seconds()/s.cfg.DecayHalfLife.Seconds())
		switch {
		case decayed > s.cfg.ResidualFloor:
			mem.Importance = decayed
			kept = append(kept, mem)
		case age > s.cfg.ArchiveAfter:
			s.archiveLocked(mem.Event)
			archived++
		default:
			dropped++
		}
	}
	s.important = kept

	if archived > 0 || dropped > 0 {
		s.logger.Info("sweep complete",
			zap.Int("kept", len(kept)),
			zap.Int("archived", archived),
			zap.Int("dropped", dropped))
	}
}

// archiveLocked files an event into its day bucket, extending the
// bucket's rolling summary for chat events. Callers must hold s.mu.
func (s *Store) archiveLocked(ev Event) {
	date := ev.Timestamp.Format(archiveDateFormat)
	bucket, ok := s.archive[date]
	if !ok {
		bucket = &DayBucket{
			Date:           date,
			FirstTimestamp: ev.Timestamp,
			fragments:      make(map[string]struct{}),
		}
		s.archive[date] = bucket
	}

	bucket.Events = append(bucket.Events, ev)
	bucket.EventCount++

	if ev.Kind == KindChat {
		fields := ev.Payload.Fields()
		frag := chatFragment(fields["who"], fields["text"])
		if _, seen := bucket.fragments[frag]; !seen {
			bucket.fragments[frag] = struct{}{}
			bucket.RollingSummary += frag + "; "
		}
	}
}

// chatFragment is the form a chat event takes in a day's rolling summary
func chatFragment(who, text string) string {
	return who + ": " + truncateRunes(text, 50)
}

// trimImportant discards the lowest-importance events once the tier
// exceeds its capacity
func (s *Store) trimImportant() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trimImportantLocked()
}

func (s *Store) trimImportantLocked() {
	if len(s.important) <= s.cfg.ImportantMax {
		return
	}
	sort.SliceStable(s.important, func(i, j int) bool {
		return s.important[i].Importance > s.important[j].Importance
	})
	discarded := len(s.important) - s.cfg.ImportantMax
	s.important = s.important[:s.cfg.ImportantMax]
	s.logger.Debug("important tier trimmed", zap.Int("discarded", discarded))
}
