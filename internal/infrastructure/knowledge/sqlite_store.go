package knowledge

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/doeshing/genosma/internal/domain"
	"github.com/doeshing/genosma/internal/pkg/similarity"
	"github.com/doeshing/genosma/internal/ports"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// SQLiteStore persists knowledge entries in a SQLite database.
// Appends are serialised; lookups may run concurrently with each other.
type SQLiteStore struct {
	db   *sql.DB
	path string
	mu   sync.RWMutex
}

// NewSQLiteStore creates (or opens) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), domain.DirectoryPermissions); err != nil {
		return nil, fmt.Errorf("knowledge: create data dir: %w", err)
	}
	db, err := openDB("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("knowledge: open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("knowledge: pragma %q: %w", p, err)
		}
	}

	store := &SQLiteStore{db: db, path: path}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("knowledge: migration: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS entries (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			request_text TEXT NOT NULL,
			plan_json    TEXT NOT NULL,
			outcome      TEXT NOT NULL,
			created_at   TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_entries_created ON entries(created_at);
	`)
	return err
}

// Append implements ports.KnowledgeStore.
func (s *SQLiteStore) Append(ctx context.Context, entry domain.KnowledgeEntry) error {
	if err := validateEntry(entry); err != nil {
		return err
	}
	planJSON, err := json.Marshal(entry.Plan)
	if err != nil {
		return fmt.Errorf("knowledge: encode plan: %w", err)
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO entries (request_text, plan_json, outcome, created_at) VALUES (?, ?, ?, ?)`,
		entry.RequestText,
		string(planJSON),
		string(entry.Outcome),
		entry.Timestamp.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("knowledge: insert: %w", err)
	}
	return nil
}

// FindSimilar implements ports.KnowledgeStore.
func (s *SQLiteStore) FindSimilar(ctx context.Context, requestText string, threshold float64) (domain.KnowledgeMatch, bool, error) {
	entries, err := s.load(ctx, "SELECT request_text, plan_json, outcome, created_at FROM entries ORDER BY id ASC")
	if err != nil {
		return domain.KnowledgeMatch{}, false, err
	}
	return bestMatch(entries, requestText, threshold)
}

// List returns up to limit entries, newest first.
func (s *SQLiteStore) List(ctx context.Context, limit int) ([]domain.KnowledgeEntry, error) {
	query := "SELECT request_text, plan_json, outcome, created_at FROM entries ORDER BY id DESC"
	var args []interface{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	return s.load(ctx, query, args...)
}

func (s *SQLiteStore) load(ctx context.Context, query string, args ...interface{}) ([]domain.KnowledgeEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("knowledge: query: %w", err)
	}
	defer rows.Close()

	var entries []domain.KnowledgeEntry
	for rows.Next() {
		var entry domain.KnowledgeEntry
		var planJSON, outcome, ts string
		if err := rows.Scan(&entry.RequestText, &planJSON, &outcome, &ts); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(planJSON), &entry.Plan); err != nil {
			return nil, fmt.Errorf("knowledge: decode plan: %w", err)
		}
		entry.Outcome = domain.Outcome(outcome)
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			entry.Timestamp = t
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Path returns the sqlite database path.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

var _ ports.KnowledgeRepository = (*SQLiteStore)(nil)

func validateEntry(entry domain.KnowledgeEntry) error {
	if entry.RequestText == "" {
		return fmt.Errorf("knowledge: %w", domain.ErrEmptyRequest)
	}
	if !entry.Outcome.Persistable(true) {
		return fmt.Errorf("knowledge: outcome %s is not stored", entry.Outcome)
	}
	if err := entry.Plan.Validate(); err != nil {
		return fmt.Errorf("knowledge: %w", err)
	}
	return nil
}

// bestMatch scores entries in insertion order so the newest wins a tie.
func bestMatch(entries []domain.KnowledgeEntry, requestText string, threshold float64) (domain.KnowledgeMatch, bool, error) {
	candidates := make([]string, len(entries))
	for i, entry := range entries {
		candidates[i] = entry.RequestText
	}
	idx, score, ok := similarity.Best(requestText, candidates, threshold)
	if !ok {
		return domain.KnowledgeMatch{}, false, nil
	}
	return domain.KnowledgeMatch{Entry: entries[idx], Score: score}, true, nil
}
