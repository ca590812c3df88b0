// Package sqlite provides a SQLite-backed implementation of the history store port.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // Import the driver anonymously

	"github.com/ewilliams-labs/moodmix/internal/core/ports"
)

// Adapter implements the history store port for SQLite.
type Adapter struct {
	db *sql.DB

	// mu serializes inserts so that timestamps are strictly increasing across both tables.
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

var _ ports.HistoryStore = (*Adapter)(nil)

// Option configures an Adapter.
type Option func(*Adapter)

// WithClock replaces the wall clock used for entry timestamps.
func WithClock(now func() time.Time) Option {
	return func(a *Adapter) {
		if now != nil {
			a.now = now
		}
	}
}

// NewAdapter creates a connection and runs the schema migration.
func NewAdapter(storagePath string, opts ...Option) (*Adapter, error) {
	db, err := sql.Open("sqlite3", storagePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}
	// A single connection keeps :memory: databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite db: %w", err)
	}

	adapter := &Adapter{db: db, now: time.Now}
	for _, opt := range opts {
		opt(adapter)
	}

	if err := adapter.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	if err := adapter.loadLastTimestamp(); err != nil {
		db.Close()
		return nil, err
	}

	return adapter, nil
}

// Close ensures the DB connection is closed gracefully
func (a *Adapter) Close() error {
	return a.db.Close()
}

// Ping reports whether the database is reachable.
func (a *Adapter) Ping(ctx context.Context) error {
	return a.db.PingContext(ctx)
}

// nextTimestamp returns a unix-nano timestamp strictly greater than any issued before.
// Callers must hold a.mu.
func (a *Adapter) nextTimestamp() int64 {
	ts := a.now().UnixNano()
	if ts <= a.last {
		ts = a.last + 1
	}
	a.last = ts
	return ts
}

func (a *Adapter) loadLastTimestamp() error {
	var last sql.NullInt64
	err := a.db.QueryRow(`
		SELECT MAX(ts) FROM (
			SELECT MAX(created_at) AS ts FROM search_history
			UNION ALL
			SELECT MAX(created_at) AS ts FROM song_discovery_history
		)
	`).Scan(&last)
	if err != nil {
		return fmt.Errorf("failed to read last timestamp: %w", err)
	}
	if last.Valid {
		a.last = last.Int64
	}
	return nil
}

func (a *Adapter) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS search_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		created_at INTEGER NOT NULL,
		mood TEXT NOT NULL,
		features TEXT NOT NULL,
		tracks TEXT NOT NULL,
		audio_features_map TEXT,
		evaluation TEXT
	);

	CREATE TABLE IF NOT EXISTS song_discovery_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		created_at INTEGER NOT NULL,
		source_track TEXT NOT NULL,
		source_artist TEXT NOT NULL,
		source_track_id TEXT NOT NULL,
		source_features TEXT,
		source_audio_features TEXT,
		similar_tracks TEXT NOT NULL,
		mood_description TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_search_history_created_at ON search_history(created_at);
	CREATE INDEX IF NOT EXISTS idx_song_discovery_history_created_at ON song_discovery_history(created_at);
	`
	_, err := a.db.Exec(query)
	return err
}
