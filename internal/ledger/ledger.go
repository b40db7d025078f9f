// Package ledger persists the engagement history in SQLite. The ledger is
// the single source of truth for deduplication and daily quota accounting:
// it must survive process restarts and keep counts consistent when runs for
// different platforms write concurrently.
package ledger

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"sengage/internal/platform"
)

// DayBucketFormat buckets entries by local calendar day for quota accounting.
const DayBucketFormat = "2006-01-02"

// Entry is one persisted record of an attempted engagement action.
// An entry with StatusSuccess for a (platform, candidate_id) pair is final:
// the orchestrator never engages that candidate again.
type Entry struct {
	ID          int64
	Platform    platform.Platform
	CandidateID string
	Author      string
	Status      platform.ActionStatus
	Source      string // comment provenance: llm or template
	Comment     string
	ErrorDetail string
	DayBucket   string
	CreatedAt   time.Time
}

// Ledger is the durable engagement store backed by SQLite.
//
// The mutex makes the read-then-write pairs the orchestrator depends on
// (HasSucceeded+Record, CountToday+Record) serializable within a process;
// SQLite's WAL mode plus a single writer connection covers cross-process
// appends.
type Ledger struct {
	db     *sql.DB
	mu     sync.Mutex
	dbPath string

	// now is swappable in tests to pin the day bucket.
	now func() time.Time
}

// Open initializes the SQLite database at the given path. Parent directories
// are created as needed; ":memory:" is accepted for tests.
func Open(path string) (*Ledger, error) {
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create ledger directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy_timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil && path != ":memory:" {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	l := &Ledger{db: db, dbPath: path, now: time.Now}
	if err := l.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return l, nil
}

func (l *Ledger) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS engagements (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		platform     TEXT NOT NULL,
		candidate_id TEXT NOT NULL,
		author       TEXT NOT NULL DEFAULT '',
		status       TEXT NOT NULL,
		source       TEXT NOT NULL DEFAULT '',
		comment      TEXT NOT NULL DEFAULT '',
		error        TEXT NOT NULL DEFAULT '',
		day_bucket   TEXT NOT NULL,
		created_at   DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_engagements_candidate
		ON engagements(platform, candidate_id);
	CREATE INDEX IF NOT EXISTS idx_engagements_day
		ON engagements(platform, day_bucket, status);
	CREATE INDEX IF NOT EXISTS idx_engagements_created
		ON engagements(created_at);
	`
	if _, err := l.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize ledger schema: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// Path returns the database path the ledger was opened with.
func (l *Ledger) Path() string { return l.dbPath }

// Record appends one entry. DayBucket and CreatedAt are stamped here so all
// writers agree on the bucketing rule.
func (l *Ledger) Record(e Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	if e.DayBucket == "" {
		e.DayBucket = e.CreatedAt.Format(DayBucketFormat)
	}

	_, err := l.db.Exec(`
		INSERT INTO engagements
			(platform, candidate_id, author, status, source, comment, error, day_bucket, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(e.Platform), e.CandidateID, e.Author, string(e.Status),
		e.Source, e.Comment, e.ErrorDetail, e.DayBucket, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record engagement: %w", err)
	}
	return nil
}

// HasSucceeded reports whether a success entry exists for the candidate.
func (l *Ledger) HasSucceeded(p platform.Platform, candidateID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var n int
	err := l.db.QueryRow(`
		SELECT COUNT(*) FROM engagements
		WHERE platform = ? AND candidate_id = ? AND status = ?`,
		string(p), candidateID, string(platform.StatusSuccess)).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check engagement history: %w", err)
	}
	return n > 0, nil
}

// CountToday returns the number of successful engagements recorded for the
// platform in today's day bucket.
func (l *Ledger) CountToday(p platform.Platform) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.countDayLocked(p, l.now().Format(DayBucketFormat))
}

func (l *Ledger) countDayLocked(p platform.Platform, bucket string) (int, error) {
	var n int
	err := l.db.QueryRow(`
		SELECT COUNT(*) FROM engagements
		WHERE platform = ? AND day_bucket = ? AND status = ?`,
		string(p), bucket, string(platform.StatusSuccess)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count today's engagements: %w", err)
	}
	return n, nil
}

// Query returns all entries created at or after since, oldest first.
func (l *Ledger) Query(since time.Time) ([]Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rows, err := l.db.Query(`
		SELECT id, platform, candidate_id, author, status, source, comment, error, day_bucket, created_at
		FROM engagements
		WHERE created_at >= ?
		ORDER BY created_at ASC, id ASC`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query engagements: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var plat, status string
		if err := rows.Scan(&e.ID, &plat, &e.CandidateID, &e.Author, &status,
			&e.Source, &e.Comment, &e.ErrorDetail, &e.DayBucket, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan engagement row: %w", err)
		}
		e.Platform = platform.Platform(plat)
		e.Status = platform.ActionStatus(status)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Recent returns the most recent entries, newest first.
func (l *Ledger) Recent(limit int) ([]Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rows, err := l.db.Query(`
		SELECT id, platform, candidate_id, author, status, source, comment, error, day_bucket, created_at
		FROM engagements
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent engagements: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var plat, status string
		if err := rows.Scan(&e.ID, &plat, &e.CandidateID, &e.Author, &status,
			&e.Source, &e.Comment, &e.ErrorDetail, &e.DayBucket, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan engagement row: %w", err)
		}
		e.Platform = platform.Platform(plat)
		e.Status = platform.ActionStatus(status)
		out = append(out, e)
	}
	return out, rows.Err()
}
