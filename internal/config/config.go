package config

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/a-marczewski/petmem/internal/memory"
)

const (
	DefaultHost                       = "127.0.0.1"
	DefaultPort                       = 7420
	DefaultRecentMax                  = 20
	DefaultImportantMax               = 100
	DefaultImportanceThreshold        = 0.4
	DefaultSweepIntervalEvents        = 100
	DefaultDecayHalfLifeSeconds       = 3600
	DefaultResidualFloor              = 0.1
	DefaultArchiveAfterSeconds        = 86400
	DefaultMaintenanceIntervalSeconds = 60
	DefaultSummaryMaxLines            = 15
	DefaultBridgeQueueSize            = 256
	DefaultSnapshotSchedule           = "0 */5 * * * *" // every five minutes
	DefaultLogLevel                   = "info"
	DefaultLogFormat                  = "console"

	// DefaultConfigFile is tried when no --config flag is given
	DefaultConfigFile = "petmem.toml"
)

// Config holds the application configuration
type Config struct {
	Host string
	Port int

	RecentMax                  int
	ImportantMax               int
	ImportanceThreshold        float64
	SweepIntervalEvents        int
	DecayHalfLifeSeconds       int
	ResidualFloor              float64
	ArchiveAfterSeconds        int
	MaintenanceIntervalSeconds int

	SummaryMaxLines int

	BridgeQueueSize int

	// SnapshotPath is the sqlite file state is persisted to.
	// Empty disables persistence entirely.
	SnapshotPath     string
	SnapshotSchedule string

	LogLevel  string
	LogFormat string
	LogFile   string

	ConfigPath string
}

type fileConfig struct {
	Server struct {
		Host string `toml:"host"`
		Port int    `toml:"port"`
	} `toml:"server"`
	Memory struct {
		RecentMax                  int     `toml:"recent_max"`
		ImportantMax               int     `toml:"important_max"`
		ImportanceThreshold        float64 `toml:"importance_threshold"`
		SweepIntervalEvents        int     `toml:"sweep_interval_events"`
		DecayHalfLifeSeconds       int     `toml:"decay_half_life_seconds"`
		ResidualFloor              float64 `toml:"residual_floor"`
		ArchiveAfterSeconds        int     `toml:"archive_after_seconds"`
		MaintenanceIntervalSeconds int     `toml:"maintenance_interval_seconds"`
	} `toml:"memory"`
	Summary struct {
		MaxLines int `toml:"max_lines"`
	} `toml:"summary"`
	Bridge struct {
		QueueSize int `toml:"queue_size"`
	} `toml:"bridge"`
	Snapshot struct {
		Path     string `toml:"path"`
		Schedule string `toml:"schedule"`
	} `toml:"snapshot"`
	Logging struct {
		Level  string `toml:"level"`
		Format string `toml:"format"`
		File   string `toml:"file"`
	} `toml:"logging"`
}

// Load builds configuration from defaults, an optional TOML file and
// PETMEM_* environment variables, in that order. An empty path tries
// petmem.toml in the working directory; a missing default file is fine,
// a missing explicit file is an error.
func Load(path string) (*Config, error) {
	cfg := &Config{
		Host:                       DefaultHost,
		Port:                       DefaultPort,
		RecentMax:                  DefaultRecentMax,
		ImportantMax:               DefaultImportantMax,
		ImportanceThreshold:        DefaultImportanceThreshold,
		SweepIntervalEvents:        DefaultSweepIntervalEvents,
		DecayHalfLifeSeconds:       DefaultDecayHalfLifeSeconds,
		ResidualFloor:              DefaultResidualFloor,
		ArchiveAfterSeconds:        DefaultArchiveAfterSeconds,
		MaintenanceIntervalSeconds: DefaultMaintenanceIntervalSeconds,
		SummaryMaxLines:            DefaultSummaryMaxLines,
		BridgeQueueSize:            DefaultBridgeQueueSize,
		SnapshotSchedule:           DefaultSnapshotSchedule,
		LogLevel:                   DefaultLogLevel,
		LogFormat:                  DefaultLogFormat,
	}

	explicit := path != ""
	if path == "" {
		path = DefaultConfigFile
	}

	if data, err := os.ReadFile(path); err == nil {
		var parsed fileConfig
		if err := toml.Unmarshal(data, &parsed); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}

		if parsed.Server.Host != "" {
			cfg.Host = parsed.Server.Host
		}
		if parsed.Server.Port != 0 {
			cfg.Port = parsed.Server.Port
		}
		if parsed.Memory.RecentMax != 0 {
			cfg.RecentMax = parsed.Memory.RecentMax
		}
		if parsed.Memory.ImportantMax != 0 {
			cfg.ImportantMax = parsed.Memory.ImportantMax
		}
		if parsed.Memory.ImportanceThreshold > 0 {
			cfg.ImportanceThreshold = parsed.Memory.ImportanceThreshold
		}
		if parsed.Memory.SweepIntervalEvents != 0 {
			cfg.SweepIntervalEvents = parsed.Memory.SweepIntervalEvents
		}
		if parsed.Memory.DecayHalfLifeSeconds != 0 {
			cfg.DecayHalfLifeSeconds = parsed.Memory.DecayHalfLifeSeconds
		}
		if parsed.Memory.ResidualFloor > 0 {
			cfg.ResidualFloor = parsed.Memory.ResidualFloor
		}
		if parsed.Memory.ArchiveAfterSeconds != 0 {
			cfg.ArchiveAfterSeconds = parsed.Memory.ArchiveAfterSeconds
		}
		if parsed.Memory.MaintenanceIntervalSeconds != 0 {
			cfg.MaintenanceIntervalSeconds = parsed.Memory.MaintenanceIntervalSeconds
		}
		if parsed.Summary.MaxLines != 0 {
			cfg.SummaryMaxLines = parsed.Summary.MaxLines
		}
		if parsed.Bridge.QueueSize != 0 {
			cfg.BridgeQueueSize = parsed.Bridge.QueueSize
		}
		if parsed.Snapshot.Path != "" {
			cfg.SnapshotPath = parsed.Snapshot.Path
		}
		if parsed.Snapshot.Schedule != "" {
			cfg.SnapshotSchedule = parsed.Snapshot.Schedule
		}
		if parsed.Logging.Level != "" {
			cfg.LogLevel = parsed.Logging.Level
		}
		if parsed.Logging.Format != "" {
			cfg.LogFormat = parsed.Logging.Format
		}
		if parsed.Logging.File != "" {
			cfg.LogFile = parsed.Logging.File
		}

		cfg.ConfigPath = path
	} else if explicit {
		return nil, fmt.Errorf("read config: %w", err)
	}

	if host := os.Getenv("PETMEM_HOST"); host != "" {
		cfg.Host = host
	}
	if port := os.Getenv("PETMEM_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Port = p
		}
	}
	if v := os.Getenv("PETMEM_RECENT_MAX"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RecentMax = n
		}
	}
	if v := os.Getenv("PETMEM_IMPORTANT_MAX"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.ImportantMax = n
		}
	}
	if v := os.Getenv("PETMEM_IMPORTANCE_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.ImportanceThreshold = f
		}
	}
	if v := os.Getenv("PETMEM_SWEEP_INTERVAL_EVENTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.SweepIntervalEvents = n
		}
	}
	if v := os.Getenv("PETMEM_DECAY_HALF_LIFE_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.DecayHalfLifeSeconds = n
		}
	}
	if v := os.Getenv("PETMEM_RESIDUAL_FLOOR"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.ResidualFloor = f
		}
	}
	if v := os.Getenv("PETMEM_ARCHIVE_AFTER_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.ArchiveAfterSeconds = n
		}
	}
	if v := os.Getenv("PETMEM_MAINTENANCE_INTERVAL_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaintenanceIntervalSeconds = n
		}
	}
	if v := os.Getenv("PETMEM_SUMMARY_MAX_LINES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.SummaryMaxLines = n
		}
	}
	if v := os.Getenv("PETMEM_BRIDGE_QUEUE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.BridgeQueueSize = n
		}
	}
	if v := os.Getenv("PETMEM_SNAPSHOT_PATH"); v != "" {
		cfg.SnapshotPath = v
	}
	if v := os.Getenv("PETMEM_SNAPSHOT_SCHEDULE"); v != "" {
		cfg.SnapshotSchedule = v
	}
	if v := os.Getenv("PETMEM_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("PETMEM_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	if v := os.Getenv("PETMEM_LOG_FILE"); v != "" {
		cfg.LogFile = v
	}

	cfg.LogLevel = normalizeToken(cfg.LogLevel)
	cfg.LogFormat = normalizeToken(cfg.LogFormat)

	return cfg, nil
}

func normalizeToken(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}

// MemoryConfig translates the flat settings into the store's tuning
func (c *Config) MemoryConfig() memory.Config {
	return memory.Config{
		RecentMax:           c.RecentMax,
		ImportantMax:        c.ImportantMax,
		ImportanceThreshold: c.ImportanceThreshold,
		SweepInterval:       c.SweepIntervalEvents,
		DecayHalfLife:       time.Duration(c.DecayHalfLifeSeconds) * time.Second,
		ResidualFloor:       c.ResidualFloor,
		ArchiveAfter:        time.Duration(c.ArchiveAfterSeconds) * time.Second,
	}
}

// MaintenanceInterval is the wall-clock sweep cadence.
// Zero disables the background runner.
func (c *Config) MaintenanceInterval() time.Duration {
	return time.Duration(c.MaintenanceIntervalSeconds) * time.Second
}

// ListenAddr is the host:port the HTTP API binds to
func (c *Config) ListenAddr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Context key for storing config in context
type configContextKey struct{}

// WithConfig adds the config to the context
func WithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configContextKey{}, cfg)
}

// FromContext retrieves the config from the context
func FromContext(ctx context.Context) *Config {
	if cfg, ok := ctx.Value(configContextKey{}).(*Config); ok {
		return cfg
	}
	return nil
}

// Validate verifies the configuration is usable.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Host) == "" {
		return fmt.Errorf("host is empty")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port out of range: %d", c.Port)
	}
	if err := c.MemoryConfig().Validate(); err != nil {
		return err
	}
	if c.MaintenanceIntervalSeconds < 0 {
		return fmt.Errorf("maintenance interval cannot be negative")
	}
	if c.SummaryMaxLines <= 0 {
		return fmt.Errorf("summary max lines must be positive")
	}
	if c.BridgeQueueSize <= 0 {
		return fmt.Errorf("bridge queue size must be positive")
	}
	if c.SnapshotPath != "" && strings.TrimSpace(c.SnapshotSchedule) == "" {
		return fmt.Errorf("snapshot path set but schedule is empty")
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		return fmt.Errorf("log format must be json or console, got %q", c.LogFormat)
	}
	return nil
}
