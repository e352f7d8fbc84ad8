// Package history persists completed generations in a bounded,
// newest-first ledger backed by SQLite.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	_ "modernc.org/sqlite"
)

// DefaultLimit caps the ledger at the most recent entries; the oldest entry
// is evicted whenever an insert exceeds it.
const DefaultLimit = 100

// previewLimit bounds the stored text preview in runes.
const previewLimit = 100

// Entry is one persisted generation. Entries are immutable after creation.
type Entry struct {
	ID         int64     `json:"id"`
	Text       string    `json:"text"`
	Language   string    `json:"language"`
	VoiceName  string    `json:"voiceName"`
	VoiceID    string    `json:"voiceId"`
	EngineID   string    `json:"engineId"`
	Duration   float64   `json:"duration"`
	OutputPath string    `json:"outputPath"`
	CreatedAt  time.Time `json:"timestamp"`
}

// Store is a SQLite-backed generation ledger. The single database handle
// serializes writes; Store is safe for concurrent use.
type Store struct {
	db    *sql.DB
	limit int
	log   *log.Logger
	clock func() time.Time
}

// Open creates or opens the history database at path. A limit of zero or
// less falls back to DefaultLimit.
func Open(path string, limit int, logger *log.Logger) (*Store, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if logger == nil {
		logger = log.Default()
	}

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create history dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}

	s := &Store{db: db, limit: limit, log: logger, clock: time.Now}
	if err := s.initSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS generations (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    text TEXT NOT NULL,
    language TEXT NOT NULL,
    voice_name TEXT,
    voice_id TEXT,
    engine_id TEXT NOT NULL,
    duration REAL NOT NULL DEFAULT 0,
    output_path TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_generations_created ON generations(created_at);
`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("init history schema: %w", err)
	}
	return nil
}

// Append inserts a new entry at the head of the ledger, assigning its id
// and timestamp, and evicts the oldest entries beyond the cap. The stored
// text is truncated to a short preview.
func (s *Store) Append(ctx context.Context, e Entry) (Entry, error) {
	e.Text = truncatePreview(e.Text)
	e.CreatedAt = s.clock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Entry{}, fmt.Errorf("append history: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO generations (text, language, voice_name, voice_id, engine_id, duration, output_path, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Text, e.Language, e.VoiceName, e.VoiceID, e.EngineID, e.Duration, e.OutputPath, e.CreatedAt)
	if err != nil {
		return Entry{}, fmt.Errorf("append history: %w", err)
	}
	e.ID, err = res.LastInsertId()
	if err != nil {
		return Entry{}, fmt.Errorf("append history: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM generations WHERE id NOT IN
		 (SELECT id FROM generations ORDER BY id DESC LIMIT ?)`, s.limit); err != nil {
		return Entry{}, fmt.Errorf("evict history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Entry{}, fmt.Errorf("append history: %w", err)
	}
	s.log.Debug("history entry recorded", "id", e.ID, "engine", e.EngineID)
	return e, nil
}

// List returns all entries, newest first.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, text, language, voice_name, voice_id, engine_id, duration, output_path, created_at
		 FROM generations ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Text, &e.Language, &e.VoiceName, &e.VoiceID,
			&e.EngineID, &e.Duration, &e.OutputPath, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	return entries, nil
}

// Remove deletes the entry with the given id. It reports whether an entry
// existed.
func (s *Store) Remove(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM generations WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("remove history entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("remove history entry: %w", err)
	}
	return n > 0, nil
}

// Clear empties the ledger unconditionally.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM generations`); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// truncatePreview shortens text to the preview cap, appending an ellipsis
// marker when anything was cut. Counts runes, not bytes.
func truncatePreview(text string) string {
	runes := []rune(text)
	if len(runes) <= previewLimit {
		return text
	}
	return string(runes[:previewLimit]) + "..."
}
