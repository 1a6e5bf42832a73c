package memory

import (
	"fmt"
	"time"
)

// Config bounds the memory tiers and tunes promotion, decay and archival
type Config struct {
	// RecentMax caps the recent tier; the oldest event is evicted first
	RecentMax int

	// ImportantMax caps the important tier; lowest-scoring events are trimmed
	ImportantMax int

	// ImportanceThreshold is the score an event must exceed to be promoted
	ImportanceThreshold float64

	// SweepInterval triggers a maintenance sweep every N ingested events
	SweepInterval int

	// DecayHalfLife is the interval over which stored importance halves
	DecayHalfLife time.Duration

	// ResidualFloor is the decayed importance at or below which an event
	// leaves the important tier
	ResidualFloor float64

	// ArchiveAfter is the age past which a faded event is archived
	// rather than dropped
	ArchiveAfter time.Duration
}

// DefaultConfig returns the tuning used by the desktop companion
func DefaultConfig() Config {
	return Config{
		RecentMax:           20,
		ImportantMax:        100,
		ImportanceThreshold: 0.4,
		SweepInterval:       100,
		DecayHalfLife:       time.Hour,
		ResidualFloor:       0.1,
		ArchiveAfter:        24 * time.Hour,
	}
}

// Validate checks that the configuration is usable
func (c Config) Validate() error {
	if c.RecentMax < 1 {
		return fmt.Errorf("recent max must be at least 1, got %d", c.RecentMax)
	}
	if c.ImportantMax < 1 {
		return fmt.Errorf("important max must be at least 1, got %d", c.ImportantMax)
	}
	if c.ImportanceThreshold < 0 || c.ImportanceThreshold > 1 {
		return fmt.Errorf("importance threshold must be between 0 and 1, got %.2f", c.ImportanceThreshold)
	}
	if c.SweepInterval < 1 {
		return fmt.Errorf("sweep interval must be at least 1, got %d", c.SweepInterval)
	}
	if c.DecayHalfLife <= 0 {
		return fmt.Errorf("decay half-life must be positive, got %s", c.DecayHalfLife)
	}
	if c.ResidualFloor < 0 || c.ResidualFloor >= 1 {
		return fmt.Errorf("residual floor must be at least 0 and below 1, got %.2f", c.ResidualFloor)
	}
	if c.ArchiveAfter <= 0 {
		return fmt.Errorf("archive age must be positive, got %s", c.ArchiveAfter)
	}
	return nil
}
