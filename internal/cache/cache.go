// Package cache persists repository summaries in a local SQLite database so
// repeated requests for the same repository skip the GitHub and LLM round
// trips until the entry expires.
package cache

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/elevy30/ai-nebius-git-summarize/internal/summarizer"
)

const (
	defaultJournalMode = "WAL"
	defaultBusyTimeout = 5000
)

const createTableStatement = `
CREATE TABLE IF NOT EXISTS summaries (
	owner        TEXT NOT NULL,
	repo         TEXT NOT NULL,
	summary_json TEXT NOT NULL,
	created_at   TEXT NOT NULL,
	PRIMARY KEY (owner, repo)
)`

// Entry is a cached summary together with its storage time.
type Entry struct {
	Summary   summarizer.Summary
	CreatedAt time.Time
}

// Store caches summaries keyed by owner/repo with time-based expiry.
type Store struct {
	db  *sql.DB
	ttl time.Duration
}

// Open creates or opens the summary cache at path. A TTL of zero or below
// disables expiry. The parent directory is created when missing.
func Open(path string, ttl time.Duration) (*Store, error) {
	directory := filepath.Dir(path)
	if mkdirErr := os.MkdirAll(directory, 0o755); mkdirErr != nil {
		return nil, fmt.Errorf("create cache directory %q: %w", directory, mkdirErr)
	}

	dataSourceName := fmt.Sprintf("%s?_journal_mode=%s&_busy_timeout=%d", path, defaultJournalMode, defaultBusyTimeout)
	db, openErr := sql.Open("sqlite3", dataSourceName)
	if openErr != nil {
		return nil, fmt.Errorf("open cache %q: %w", path, openErr)
	}
	if pingErr := db.Ping(); pingErr != nil {
		db.Close()
		return nil, fmt.Errorf("ping cache %q: %w", path, pingErr)
	}
	if _, execErr := db.Exec(createTableStatement); execErr != nil {
		db.Close()
		return nil, fmt.Errorf("create summaries table: %w", execErr)
	}
	return &Store{db: db, ttl: ttl}, nil
}

// Close releases the underlying database handle.
func (store *Store) Close() error {
	return store.db.Close()
}

// Store upserts the summary for owner/repo with the current timestamp.
func (store *Store) Store(owner string, repo string, summary summarizer.Summary) error {
	summaryJSON, marshalErr := json.Marshal(summary)
	if marshalErr != nil {
		return fmt.Errorf("encode summary for %s/%s: %w", owner, repo, marshalErr)
	}
	_, execErr := store.db.Exec(
		`INSERT OR REPLACE INTO summaries (owner, repo, summary_json, created_at) VALUES (?, ?, ?, ?)`,
		owner, repo, string(summaryJSON), time.Now().UTC().Format(time.RFC3339),
	)
	if execErr != nil {
		return fmt.Errorf("store summary for %s/%s: %w", owner, repo, execErr)
	}
	return nil
}

// Lookup returns the cached entry for owner/repo when present and not
// expired. Expired rows are evicted on sight and reported as misses.
func (store *Store) Lookup(owner string, repo string) (Entry, bool, error) {
	var summaryJSON string
	var createdAtText string
	scanErr := store.db.QueryRow(
		`SELECT summary_json, created_at FROM summaries WHERE owner = ? AND repo = ?`,
		owner, repo,
	).Scan(&summaryJSON, &createdAtText)
	if scanErr == sql.ErrNoRows {
		return Entry{}, false, nil
	}
	if scanErr != nil {
		return Entry{}, false, fmt.Errorf("read summary for %s/%s: %w", owner, repo, scanErr)
	}

	createdAt, parseErr := time.Parse(time.RFC3339, createdAtText)
	if parseErr != nil {
		return Entry{}, false, fmt.Errorf("parse cache timestamp for %s/%s: %w", owner, repo, parseErr)
	}

	if store.ttl > 0 && time.Since(createdAt) > store.ttl {
		if _, deleteErr := store.db.Exec(`DELETE FROM summaries WHERE owner = ? AND repo = ?`, owner, repo); deleteErr != nil {
			return Entry{}, false, fmt.Errorf("evict expired summary for %s/%s: %w", owner, repo, deleteErr)
		}
		return Entry{}, false, nil
	}

	var summary summarizer.Summary
	if unmarshalErr := json.Unmarshal([]byte(summaryJSON), &summary); unmarshalErr != nil {
		return Entry{}, false, fmt.Errorf("decode cached summary for %s/%s: %w", owner, repo, unmarshalErr)
	}
	return Entry{Summary: summary, CreatedAt: createdAt}, true, nil
}
