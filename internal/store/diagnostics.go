// Package store persists diagnostic artifacts: snapshots captured when
// publishing fails, and the publish attempt history.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"coursenerd/internal/logging"
)

// DiagnosticsStore provides SQLite-backed storage for snapshots and
// publish attempts.
type DiagnosticsStore struct {
	mu sync.RWMutex

	db     *sql.DB
	dbPath string
}

// SavedSnapshot is a persisted page snapshot.
type SavedSnapshot struct {
	ID        string
	Label     string
	Content   string
	CreatedAt time.Time
}

// PublishAttempt is one recorded publish outcome.
type PublishAttempt struct {
	ID         int64
	Subject    string
	ForumURL   string
	Success    bool
	ErrorKind  string
	Detail     string
	SnapshotID string
	CreatedAt  time.Time
}

// NewDiagnosticsStore opens (or creates) the store at dbPath.
func NewDiagnosticsStore(dbPath string) (*DiagnosticsStore, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &DiagnosticsStore{
		db:     db,
		dbPath: dbPath,
	}

	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// initialize creates the database schema.
func (s *DiagnosticsStore) initialize() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS snapshots (
			snapshot_id TEXT PRIMARY KEY,
			label TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create snapshots table: %w", err)
	}

	_, err = s.db.Exec(`
		CREATE TABLE IF NOT EXISTS publish_attempts (
			attempt_id INTEGER PRIMARY KEY AUTOINCREMENT,
			subject TEXT,
			forum_url TEXT,
			success INTEGER NOT NULL DEFAULT 0,
			error_kind TEXT,
			detail TEXT,
			snapshot_id TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create publish_attempts table: %w", err)
	}

	_, _ = s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_snapshots_label ON snapshots(label)`)
	_, _ = s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_attempts_created ON publish_attempts(created_at)`)

	return nil
}

// Close closes the database connection.
func (s *DiagnosticsStore) Close() error {
	return s.db.Close()
}

// SaveSnapshot persists a snapshot and returns its reference id.
func (s *DiagnosticsStore) SaveSnapshot(ctx context.Context, label, content string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO snapshots (snapshot_id, label, content, created_at)
		VALUES (?, ?, ?, ?)
	`, id, label, content, time.Now())
	if err != nil {
		return "", fmt.Errorf("failed to save snapshot: %w", err)
	}

	logging.Store("saved snapshot %s (%s, %d bytes)", id, label, len(content))
	return id, nil
}

// Snapshot retrieves a saved snapshot by id. Returns nil when not found.
func (s *DiagnosticsStore) Snapshot(ctx context.Context, id string) (*SavedSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var snap SavedSnapshot
	var createdAt sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT snapshot_id, label, content, created_at
		FROM snapshots WHERE snapshot_id = ?
	`, id).Scan(&snap.ID, &snap.Label, &snap.Content, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if createdAt.Valid {
		snap.CreatedAt = createdAt.Time
	}

	return &snap, nil
}

// RecordPublishAttempt appends a publish outcome to the history.
func (s *DiagnosticsStore) RecordPublishAttempt(ctx context.Context, a PublishAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO publish_attempts (subject, forum_url, success, error_kind, detail, snapshot_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, a.Subject, a.ForumURL, boolToInt(a.Success), a.ErrorKind, a.Detail, a.SnapshotID, time.Now())
	if err != nil {
		return fmt.Errorf("failed to record publish attempt: %w", err)
	}
	return nil
}

// RecentAttempts returns the most recent publish attempts, newest first.
func (s *DiagnosticsStore) RecentAttempts(ctx context.Context, limit int) ([]PublishAttempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT attempt_id, subject, forum_url, success, error_kind, detail, snapshot_id, created_at
		FROM publish_attempts
		ORDER BY attempt_id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []PublishAttempt
	for rows.Next() {
		var a PublishAttempt
		var success int
		var errorKind, detail, snapshotID sql.NullString
		var createdAt sql.NullTime

		if err := rows.Scan(&a.ID, &a.Subject, &a.ForumURL, &success,
			&errorKind, &detail, &snapshotID, &createdAt); err != nil {
			return nil, err
		}

		a.Success = success != 0
		a.ErrorKind = errorKind.String
		a.Detail = detail.String
		a.SnapshotID = snapshotID.String
		if createdAt.Valid {
			a.CreatedAt = createdAt.Time
		}

		attempts = append(attempts, a)
	}

	return attempts, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
