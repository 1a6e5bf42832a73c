package snapshot

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/a-marczewski/petmem/internal/memory"
)

const (
	SchemaVersion = 1
)

const (
	tierRecent    = "recent"
	tierImportant = "important"
)

// DB persists store snapshots in a sqlite file
type DB struct {
	conn   *sql.DB
	path   string
	logger *zap.Logger
}

// Open creates or opens the snapshot database at path, creating parent
// directories as needed. A nil logger disables logging.
func Open(path string, logger *zap.Logger) (*DB, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create snapshot directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite3", path+"?_busy_timeout=10000&_journal_mode=WAL")
	if err != nil {
		return nil, err
	}

	db := &DB{conn: conn, path: path, logger: logger}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, err
	}

	return db, nil
}

// migrate applies database migrations
func (db *DB) migrate() error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var version int
	if err := tx.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return err
	}

	for version < SchemaVersion {
		version++
		switch version {
		case 1:
			if err := applySchemaV1(tx); err != nil {
				return fmt.Errorf("failed to apply schema v%d: %w", version, err)
			}
		default:
			return fmt.Errorf("unknown schema version: %d", version)
		}
	}

	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", SchemaVersion)); err != nil {
		return err
	}

	return tx.Commit()
}

// applySchemaV1 applies the initial schema
func applySchemaV1(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS events (
			id TEXT NOT NULL,
			tier TEXT NOT NULL CHECK(tier IN ('recent', 'important')),
			position INTEGER NOT NULL,
			kind TEXT NOT NULL,
			fields TEXT NOT NULL,
			timestamp INTEGER NOT NULL,
			importance REAL,
			PRIMARY KEY (tier, position)
		)
	`)
	if err != nil {
		return err
	}

	_, err = tx.Exec(`
		CREATE TABLE IF NOT EXISTS archive_days (
			date TEXT PRIMARY KEY,
			event_count INTEGER NOT NULL,
			first_timestamp INTEGER NOT NULL,
			rolling_summary TEXT NOT NULL DEFAULT ''
		)
	`)
	if err != nil {
		return err
	}

	_, err = tx.Exec(`
		CREATE TABLE IF NOT EXISTS archive_events (
			date TEXT NOT NULL REFERENCES archive_days(date) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			id TEXT NOT NULL,
			kind TEXT NOT NULL,
			fields TEXT NOT NULL,
			timestamp INTEGER NOT NULL,
			PRIMARY KEY (date, position)
		)
	`)
	if err != nil {
		return err
	}

	_, err = tx.Exec(`
		CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)
	`)
	return err
}

// Save replaces the stored snapshot with snap in a single transaction
func (db *DB) Save(snap memory.Snapshot) error {
	started := time.Now()

	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		"DELETE FROM events",
		"DELETE FROM archive_events",
		"DELETE FROM archive_days",
		"DELETE FROM meta",
	} {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}

	eventStmt, err := tx.Prepare(`
		INSERT INTO events (id, tier, position, kind, fields, timestamp, importance)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer eventStmt.Close()

	for i, ev := range snap.Recent {
		fields, err := encodeFields(ev.Payload.Fields())
		if err != nil {
			return err
		}
		if _, err := eventStmt.Exec(ev.ID, tierRecent, i, string(ev.Kind), fields, ev.Timestamp.UnixNano(), nil); err != nil {
			return err
		}
	}
	for i, ev := range snap.Important {
		fields, err := encodeFields(ev.Payload.Fields())
		if err != nil {
			return err
		}
		if _, err := eventStmt.Exec(ev.ID, tierImportant, i, string(ev.Kind), fields, ev.Timestamp.UnixNano(), ev.Importance); err != nil {
			return err
		}
	}

	dayStmt, err := tx.Prepare(`
		INSERT INTO archive_days (date, event_count, first_timestamp, rolling_summary)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer dayStmt.Close()

	archStmt, err := tx.Prepare(`
		INSERT INTO archive_events (date, position, id, kind, fields, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer archStmt.Close()

	for _, bucket := range snap.Archive {
		if _, err := dayStmt.Exec(bucket.Date, bucket.EventCount, bucket.FirstTimestamp.UnixNano(), bucket.RollingSummary); err != nil {
			return err
		}
		for i, ev := range bucket.Events {
			fields, err := encodeFields(ev.Payload.Fields())
			if err != nil {
				return err
			}
			if _, err := archStmt.Exec(bucket.Date, i, ev.ID, string(ev.Kind), fields, ev.Timestamp.UnixNano()); err != nil {
				return err
			}
		}
	}

	if _, err := tx.Exec(`INSERT INTO meta (key, value) VALUES ('event_counter', ?)`,
		strconv.FormatInt(snap.Counter, 10)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	db.logger.Debug("snapshot saved",
		zap.Int("recent", len(snap.Recent)),
		zap.Int("important", len(snap.Important)),
		zap.Int("archive_days", len(snap.Archive)),
		zap.Duration("took", time.Since(started)))

	return nil
}

// Load reads the stored snapshot. A fresh database yields an empty one.
func (db *DB) Load() (memory.Snapshot, error) {
	var snap memory.Snapshot

	rows, err := db.conn.Query(`
		SELECT id, tier, kind, fields, timestamp, importance
		FROM events
		ORDER BY tier, position
	`)
	if err != nil {
		return snap, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id, tier, kind, fields string
			ts                     int64
			importance             sql.NullFloat64
		)
		if err := rows.Scan(&id, &tier, &kind, &fields, &ts, &importance); err != nil {
			return snap, err
		}

		ev, err := decodeEvent(id, kind, fields, ts)
		if err != nil {
			return snap, err
		}

		switch tier {
		case tierRecent:
			snap.Recent = append(snap.Recent, ev)
		case tierImportant:
			snap.Important = append(snap.Important, memory.ScoredEvent{Event: ev, Importance: importance.Float64})
		}
	}
	if err := rows.Err(); err != nil {
		return snap, err
	}

	dayRows, err := db.conn.Query(`
		SELECT date, event_count, first_timestamp, rolling_summary
		FROM archive_days
		ORDER BY date
	`)
	if err != nil {
		return snap, err
	}
	defer dayRows.Close()

	byDate := make(map[string]int)
	for dayRows.Next() {
		var (
			date, summary string
			count         int
			firstTs       int64
		)
		if err := dayRows.Scan(&date, &count, &firstTs, &summary); err != nil {
			return snap, err
		}
		byDate[date] = len(snap.Archive)
		snap.Archive = append(snap.Archive, memory.DayBucket{
			Date:           date,
			EventCount:     count,
			FirstTimestamp: time.Unix(0, firstTs),
			RollingSummary: summary,
		})
	}
	if err := dayRows.Err(); err != nil {
		return snap, err
	}

	archRows, err := db.conn.Query(`
		SELECT date, id, kind, fields, timestamp
		FROM archive_events
		ORDER BY date, position
	`)
	if err != nil {
		return snap, err
	}
	defer archRows.Close()

	for archRows.Next() {
		var (
			date, id, kind, fields string
			ts                     int64
		)
		if err := archRows.Scan(&date, &id, &kind, &fields, &ts); err != nil {
			return snap, err
		}

		ev, err := decodeEvent(id, kind, fields, ts)
		if err != nil {
			return snap, err
		}

		idx, ok := byDate[date]
		if !ok {
			return snap, fmt.Errorf("archive event %s references unknown day %s", id, date)
		}
		snap.Archive[idx].Events = append(snap.Archive[idx].Events, ev)
	}
	if err := archRows.Err(); err != nil {
		return snap, err
	}

	var counter string
	err = db.conn.QueryRow(`SELECT value FROM meta WHERE key = 'event_counter'`).Scan(&counter)
	switch {
	case err == sql.ErrNoRows:
	case err != nil:
		return snap, err
	default:
		snap.Counter, _ = strconv.ParseInt(counter, 10, 64)
	}

	return snap, nil
}

func encodeFields(fields map[string]string) (string, error) {
	data, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("encode event fields: %w", err)
	}
	return string(data), nil
}

func decodeEvent(id, kind, fieldsJSON string, ts int64) (memory.Event, error) {
	var fields map[string]string
	if err := json.Unmarshal([]byte(fieldsJSON), &fields); err != nil {
		return memory.Event{}, fmt.Errorf("decode event %s: %w", id, err)
	}

	k := memory.Kind(kind)
	return memory.Event{
		ID:        id,
		Kind:      k,
		Payload:   memory.NewPayload(k, fields),
		Timestamp: time.Unix(0, ts),
	}, nil
}

// Path is the sqlite file backing this database
func (db *DB) Path() string {
	return db.path
}

// GetConnection returns the underlying database connection
func (db *DB) GetConnection() *sql.DB {
	return db.conn
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}
