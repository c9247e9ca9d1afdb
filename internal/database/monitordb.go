package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/replywatch/internal/model"
)

// ErrStateCorrupt is returned by LoadState when a stored monitor state
// exists but cannot be decoded. Callers degrade to first-check semantics
// on this error; it is distinct from the (nil, nil) absent case so the
// degradation can be logged as a recovery rather than a first check.
var ErrStateCorrupt = errors.New("stored monitor state is corrupt")

// MonitorDB provides SQLite-based storage for monitor states and check
// report history.
//
// Design decision: One database file holds every monitored tweet rather
// than one file per tweet. The state table is tiny (one row per tweet),
// history queries span tweets, and a single file keeps backup/restore
// trivial.
type MonitorDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures MonitorDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent performance.
	// This is recommended for most use cases.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a MonitorDB at the specified directory.
// If CreateIfNotExists is true, the directory and database file are created.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*MonitorDB, error) {
	dbPath := filepath.Join(dbDir, "replywatch.db")

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// modernc.org/sqlite connection string: mode=rw prevents creating new
	// files, mode=rwc allows creation.
	var dsn string
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	} else {
		dsn = dbPath + "?mode=rw"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite supports only one writer; the monitor is single-writer by
	// contract anyway (one checking process per tweet).
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	mdb := &MonitorDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := mdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return mdb, nil
}

// Close closes the database connection.
func (mdb *MonitorDB) Close() error {
	return mdb.db.Close()
}

// Path returns the path of the underlying database file.
func (mdb *MonitorDB) Path() string {
	return mdb.dbPath
}

// createTables creates the database schema if it doesn't exist.
func (mdb *MonitorDB) createTables() error {
	schema := `
	-- Monitor states hold the latest snapshot per monitored tweet.
	-- One row per tweet; each check replaces the row wholesale.
	CREATE TABLE IF NOT EXISTS monitor_states (
		state_key TEXT PRIMARY KEY,
		tweet_id TEXT NOT NULL,
		username TEXT NOT NULL,
		state_json TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_states_tweet ON monitor_states(tweet_id);

	-- Check reports keep the append-only history of check results as JSON.
	-- The count columns are denormalized so history listings need no decode.
	CREATE TABLE IF NOT EXISTS check_reports (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		tweet_id TEXT NOT NULL,
		checked_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		report_json TEXT NOT NULL,
		total_replies INTEGER DEFAULT 0,
		new_count INTEGER DEFAULT 0,
		question_count INTEGER DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_reports_tweet ON check_reports(tweet_id);
	CREATE INDEX IF NOT EXISTS idx_reports_checked ON check_reports(checked_at);
	`

	_, err := mdb.db.ExecContext(context.Background(), schema)
	return err
}

// LoadState retrieves the persisted state for a monitored tweet.
// Returns (nil, nil) when no state exists (first check). Returns an
// error wrapping ErrStateCorrupt when a row exists but its JSON cannot
// be decoded; callers treat that as absent state after logging it.
func (mdb *MonitorDB) LoadState(ctx context.Context, ref model.TweetRef) (*model.MonitorState, error) {
	query := `
	SELECT state_json FROM monitor_states
	WHERE state_key = ?
	`

	var stateJSON string
	err := mdb.db.QueryRowContext(ctx, query, ref.StateKey()).Scan(&stateJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load monitor state: %w", err)
	}

	var state model.MonitorState
	if err := json.Unmarshal([]byte(stateJSON), &state); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStateCorrupt, err)
	}

	return &state, nil
}

// SaveState persists the state for a monitored tweet, replacing any
// prior row. A failure here is surfaced, never swallowed: a check that
// could not persist would re-report the same replies forever.
func (mdb *MonitorDB) SaveState(ctx context.Context, ref model.TweetRef, state *model.MonitorState) error {
	stateJSON, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to serialize monitor state: %w", err)
	}

	query := `
	INSERT INTO monitor_states (state_key, tweet_id, username, state_json, updated_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(state_key) DO UPDATE SET
		state_json = excluded.state_json,
		updated_at = excluded.updated_at
	`

	_, err = mdb.db.ExecContext(ctx, query,
		ref.StateKey(),
		ref.ID(),
		ref.Username(),
		string(stateJSON),
		state.LastChecked.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save monitor state: %w", err)
	}

	return nil
}

// SaveReport appends a check report to the history.
func (mdb *MonitorDB) SaveReport(ctx context.Context, report *model.CheckReport) error {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to serialize report: %w", err)
	}

	query := `
	INSERT INTO check_reports (tweet_id, checked_at, report_json, total_replies, new_count, question_count)
	VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err = mdb.db.ExecContext(ctx, query,
		report.TweetID,
		report.CheckedAt.UTC().Format(time.RFC3339),
		string(reportJSON),
		report.TotalReplies,
		report.NewCount,
		report.QuestionCount,
	)
	if err != nil {
		return fmt.Errorf("failed to save check report: %w", err)
	}

	return nil
}

// GetLatestReport retrieves the most recent check report for a tweet.
// Returns (nil, nil) when no report exists.
func (mdb *MonitorDB) GetLatestReport(ctx context.Context, ref model.TweetRef) (*model.CheckReport, error) {
	query := `
	SELECT report_json FROM check_reports
	WHERE tweet_id = ?
	ORDER BY checked_at DESC, id DESC
	LIMIT 1
	`

	var reportJSON string
	err := mdb.db.QueryRowContext(ctx, query, ref.ID()).Scan(&reportJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get check report: %w", err)
	}

	var report model.CheckReport
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}

	return &report, nil
}

// GetReportHistory retrieves up to limit check reports for a tweet,
// newest first. A limit of 0 or less means no limit.
func (mdb *MonitorDB) GetReportHistory(ctx context.Context, ref model.TweetRef, limit int) ([]*model.CheckReport, error) {
	query := `
	SELECT report_json FROM check_reports
	WHERE tweet_id = ?
	ORDER BY checked_at DESC, id DESC
	`
	args := []any{ref.ID()}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := mdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get report history: %w", err)
	}
	defer rows.Close()

	var reports []*model.CheckReport
	for rows.Next() {
		var reportJSON string
		if err := rows.Scan(&reportJSON); err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}

		var report model.CheckReport
		if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
			continue // Skip malformed reports
		}
		reports = append(reports, &report)
	}

	return reports, rows.Err()
}

// CheckMetadata contains summary information about one stored check.
// This is used for displaying history without loading full reports.
type CheckMetadata struct {
	// ID is the unique identifier of the check report in the database.
	ID int64

	// TweetID is the monitored tweet's status ID.
	TweetID string

	// CheckedAt is when the check was performed.
	CheckedAt time.Time

	// TotalReplies is the snapshot size at check time.
	TotalReplies int

	// NewCount is how many replies were newly detected.
	NewCount int

	// QuestionCount is how many new replies were flagged as questions.
	QuestionCount int
}

// GetHistoryMetadata retrieves check metadata for a tweet, newest first.
// This is more efficient than GetReportHistory when only the summary
// columns are needed. A limit of 0 or less means no limit.
func (mdb *MonitorDB) GetHistoryMetadata(ctx context.Context, ref model.TweetRef, limit int) ([]CheckMetadata, error) {
	query := `
	SELECT id, tweet_id, checked_at, total_replies, new_count, question_count
	FROM check_reports
	WHERE tweet_id = ?
	ORDER BY checked_at DESC, id DESC
	`
	args := []any{ref.ID()}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := mdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get history metadata: %w", err)
	}
	defer rows.Close()

	var results []CheckMetadata
	for rows.Next() {
		var meta CheckMetadata
		var checkedAt string

		if err := rows.Scan(&meta.ID, &meta.TweetID, &checkedAt,
			&meta.TotalReplies, &meta.NewCount, &meta.QuestionCount); err != nil {
			return nil, fmt.Errorf("failed to scan metadata: %w", err)
		}

		meta.CheckedAt = parseTimestamp(checkedAt)
		results = append(results, meta)
	}

	return results, rows.Err()
}

// ListMonitoredTweets returns the state keys of every tweet with stored
// state, sorted for stable output.
func (mdb *MonitorDB) ListMonitoredTweets(ctx context.Context) ([]string, error) {
	query := `
	SELECT DISTINCT state_key FROM monitor_states
	ORDER BY state_key
	`

	rows, err := mdb.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list monitored tweets: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan state key: %w", err)
		}
		keys = append(keys, key)
	}

	return keys, rows.Err()
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	"2006-01-02 15:04:05",     // SQLite default datetime format
	"2006-01-02T15:04:05Z",    // ISO 8601 with Z suffix
	"2006-01-02T15:04:05",     // ISO 8601 without timezone
	time.RFC3339,              // Full RFC3339 format
	time.RFC3339Nano,          // RFC3339 with nanoseconds
	"2006-01-02 15:04:05.999", // SQLite with milliseconds
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// SQLite may return timestamps in different formats depending on configuration.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
