package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/codebuildervaibhav/sponsorskip/internal/types"
)

// AdStore persists resolved segment sets keyed by transcript fingerprint
type AdStore struct {
	db *sql.DB
}

// NewAdStore opens (or creates) the SQLite database at dbPath
func NewAdStore(dbPath string) (*AdStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Create table if not exists
	createTableSQL := `
	CREATE TABLE IF NOT EXISTS ads (
		sha256 TEXT PRIMARY KEY,
		segments TEXT NOT NULL,
		segment_count INTEGER NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_ads_created_at ON ads(created_at);
	`

	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	return &AdStore{db: db}, nil
}

// Get returns the segments stored for a fingerprint. found is false on a miss.
func (s *AdStore) Get(ctx context.Context, sha256 string) (segments []types.Segment, found bool, err error) {
	var raw string
	err = s.db.QueryRowContext(ctx, `SELECT segments FROM ads WHERE sha256 = ?`, sha256).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get ads: %w", err)
	}

	if err := json.Unmarshal([]byte(raw), &segments); err != nil {
		return nil, false, fmt.Errorf("failed to decode stored ads for %s: %w", sha256, err)
	}
	if segments == nil {
		segments = []types.Segment{}
	}
	return segments, true, nil
}

// Save stores segments for a fingerprint, replacing any previous entry
func (s *AdStore) Save(ctx context.Context, sha256 string, segments []types.Segment) error {
	if segments == nil {
		segments = []types.Segment{}
	}
	raw, err := json.Marshal(segments)
	if err != nil {
		return fmt.Errorf("failed to encode ads: %w", err)
	}

	query := `
	INSERT INTO ads (sha256, segments, segment_count, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(sha256) DO UPDATE SET
		segments = excluded.segments,
		segment_count = excluded.segment_count,
		updated_at = excluded.updated_at
	`

	now := time.Now().UTC()
	if _, err := s.db.ExecContext(ctx, query, sha256, string(raw), len(segments), now, now); err != nil {
		return fmt.Errorf("failed to save ads: %w", err)
	}
	return nil
}

// Count returns the number of cached transcripts
func (s *AdStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ads`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count ads: %w", err)
	}
	return n, nil
}

// Prune deletes entries not updated since before and returns how many were removed
func (s *AdStore) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM ads WHERE updated_at < ?`, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to prune ads: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to prune ads: %w", err)
	}
	return n, nil
}

// Close closes the database connection
func (s *AdStore) Close() error {
	return s.db.Close()
}
