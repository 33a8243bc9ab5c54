// Package history archives completed run reports in a local SQLite database.
// Each tool invocation produces one row keyed by the run ID; the tracker's
// live state is never persisted, only the final report.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"gopkg.in/yaml.v3"

	"github.com/edwardmakesthings/pyweaver/internal/processor"
)

const schemaVersion = 1

const schemaSQL = `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER PRIMARY KEY,
	applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS runs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL UNIQUE,
	tool TEXT NOT NULL,
	root TEXT NOT NULL,
	success INTEGER NOT NULL,
	message TEXT,
	files_processed INTEGER NOT NULL DEFAULT 0,
	total_items INTEGER NOT NULL DEFAULT 0,
	ignored_items INTEGER NOT NULL DEFAULT 0,
	error_items INTEGER NOT NULL DEFAULT 0,
	errors TEXT NOT NULL DEFAULT '[]',
	warnings TEXT NOT NULL DEFAULT '[]',
	duration_ms INTEGER NOT NULL DEFAULT 0,
	timestamp DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_runs_tool ON runs(tool);
CREATE INDEX IF NOT EXISTS idx_runs_timestamp ON runs(timestamp);
`

// Run is one archived report row.
type Run struct {
	ID             int64     `yaml:"-"`
	RunID          string    `yaml:"run_id"`
	Tool           string    `yaml:"tool"`
	Root           string    `yaml:"root"`
	Success        bool      `yaml:"success"`
	Message        string    `yaml:"message,omitempty"`
	FilesProcessed int       `yaml:"files_processed"`
	TotalItems     int       `yaml:"total_items"`
	IgnoredItems   int       `yaml:"ignored_items"`
	ErrorItems     int       `yaml:"error_items"`
	Errors         []string  `yaml:"errors,omitempty"`
	Warnings       []string  `yaml:"warnings,omitempty"`
	Duration       int64     `yaml:"duration_ms"`
	Timestamp      time.Time `yaml:"timestamp"`
}

// Store manages the SQLite run archive.
type Store struct {
	db     *sql.DB
	dbPath string
}

// NewStore opens (creating if needed) the archive at dbPath and applies the
// schema. The parent directory is created for file-based databases.
func NewStore(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// busy_timeout must come first so later statements wait on locks instead
	// of failing immediately when another pyweaver process holds the file.
	pragmas := []string{
		"PRAGMA busy_timeout=5000",
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
	}
	for _, pragma := range pragmas {
		if err := execWithRetry(db, pragma, 5, 10*time.Millisecond); err != nil {
			db.Close()
			return nil, fmt.Errorf("set %s: %w", pragma, err)
		}
	}

	store := &Store{db: db, dbPath: dbPath}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return store, nil
}

// execWithRetry retries a statement with exponential backoff on lock errors.
func execWithRetry(db *sql.DB, stmt string, maxRetries int, baseDelay time.Duration) error {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		_, err := db.Exec(stmt)
		if err == nil {
			return nil
		}
		if !strings.Contains(err.Error(), "database is locked") {
			return err
		}
		lastErr = err
		time.Sleep(baseDelay * time.Duration(1<<attempt))
	}
	return lastErr
}

func (s *Store) initSchema() error {
	if err := execWithRetry(s.db, schemaSQL, 5, 10*time.Millisecond); err != nil {
		return err
	}

	var version sql.NullInt64
	err := s.db.QueryRow(`SELECT MAX(version) FROM schema_version`).Scan(&version)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if !version.Valid || version.Int64 < schemaVersion {
		if _, err := s.db.Exec(`INSERT INTO schema_version (version) VALUES (?)`, schemaVersion); err != nil {
			return fmt.Errorf("record schema version: %w", err)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Record archives one completed run for the named tool and root.
func (s *Store) Record(ctx context.Context, result *processor.Result, tool, root string) error {
	errorsJSON, err := json.Marshal(stringsOrEmpty(result.Errors))
	if err != nil {
		return fmt.Errorf("marshal errors: %w", err)
	}
	warningsJSON, err := json.Marshal(stringsOrEmpty(result.Warnings))
	if err != nil {
		return fmt.Errorf("marshal warnings: %w", err)
	}

	query := `INSERT INTO runs
		(run_id, tool, root, success, message, files_processed, total_items, ignored_items, error_items, errors, warnings, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = s.db.ExecContext(ctx, query,
		result.RunID,
		tool,
		root,
		result.Success,
		result.Message,
		result.FilesProcessed,
		result.Stats.Total,
		result.Stats.Ignored,
		result.Stats.Errors,
		string(errorsJSON),
		string(warningsJSON),
		result.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// List returns up to limit runs, most recent first. A non-positive limit
// returns everything.
func (s *Store) List(ctx context.Context, limit int) ([]*Run, error) {
	query := `SELECT id, run_id, tool, root, success, message, files_processed, total_items, ignored_items, error_items, errors, warnings, duration_ms, timestamp
		FROM runs
		ORDER BY id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run rows: %w", err)
	}
	return runs, nil
}

// Show retrieves one run by its run ID.
func (s *Store) Show(ctx context.Context, runID string) (*Run, error) {
	query := `SELECT id, run_id, tool, root, success, message, files_processed, total_items, ignored_items, error_items, errors, warnings, duration_ms, timestamp
		FROM runs
		WHERE run_id = ?`

	rows, err := s.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("query run: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("query run: %w", err)
		}
		return nil, fmt.Errorf("run %s not found", runID)
	}
	return scanRun(rows)
}

// ExportYAML writes the given runs to w as a YAML document.
func (s *Store) ExportYAML(w io.Writer, runs []*Run) error {
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	if err := enc.Encode(map[string][]*Run{"runs": runs}); err != nil {
		return fmt.Errorf("encode runs: %w", err)
	}
	return nil
}

func scanRun(rows *sql.Rows) (*Run, error) {
	run := &Run{}
	var message sql.NullString
	var errorsJSON, warningsJSON string
	err := rows.Scan(
		&run.ID,
		&run.RunID,
		&run.Tool,
		&run.Root,
		&run.Success,
		&message,
		&run.FilesProcessed,
		&run.TotalItems,
		&run.IgnoredItems,
		&run.ErrorItems,
		&errorsJSON,
		&warningsJSON,
		&run.Duration,
		&run.Timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("scan run row: %w", err)
	}
	if message.Valid {
		run.Message = message.String
	}
	if err := json.Unmarshal([]byte(errorsJSON), &run.Errors); err != nil {
		return nil, fmt.Errorf("unmarshal errors: %w", err)
	}
	if err := json.Unmarshal([]byte(warningsJSON), &run.Warnings); err != nil {
		return nil, fmt.Errorf("unmarshal warnings: %w", err)
	}
	return run, nil
}

func stringsOrEmpty(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
