// Package store keeps the search history for one client run in SQLite.
package store

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Store is the search history table. Safe for concurrent use.
type Store struct {
	mu sync.RWMutex
	db *sql.DB
}

// Entry is one issued search.
type Entry struct {
	QueryID      string
	Query        string
	VisualWeight float64
	TextWeight   float64
	Results      int // -1 when the search failed
	SearchedAt   time.Time
}

const schema = `
CREATE TABLE IF NOT EXISTS searches (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	query_id      TEXT NOT NULL,
	query         TEXT NOT NULL,
	visual_weight REAL NOT NULL,
	text_weight   REAL NOT NULL,
	results       INTEGER NOT NULL,
	searched_at   DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_searches_query ON searches(query);
`

// Open opens the history at path. ":memory:" selects a private database
// that is gone once the Store is closed; file databases run in WAL mode.
func Open(path string) (*Store, error) {
	dsn, memory := path, path == ":memory:"
	if memory {
		// Named and shared so pooled connections agree on one database
		// while two Stores in a process stay separate.
		dsn = "file:deepsearch-" + uuid.NewString() + "?mode=memory&cache=shared"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	if memory {
		db.SetMaxOpenConns(1)
	}

	setup := []string{schema}
	if !memory {
		setup = append([]string{"PRAGMA journal_mode=WAL"}, setup...)
	}
	for _, stmt := range setup {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: init %s: %w", path, err)
		}
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// Record appends a search to the history.
func (s *Store) Record(e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.SearchedAt.IsZero() {
		e.SearchedAt = time.Now()
	}
	_, err := s.db.Exec(`
		INSERT INTO searches (query_id, query, visual_weight, text_weight, results, searched_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, e.QueryID, e.Query, e.VisualWeight, e.TextWeight, e.Results, e.SearchedAt)
	if err != nil {
		return fmt.Errorf("store: record %s: %w", e.QueryID, err)
	}
	return nil
}

// Recent returns up to limit searches, newest first.
func (s *Store) Recent(limit int) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT query_id, query, visual_weight, text_weight, results, searched_at
		FROM searches
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: recent: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.QueryID, &e.Query, &e.VisualWeight, &e.TextWeight, &e.Results, &e.SearchedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// RecentQueries returns up to limit distinct query texts, most recently
// searched first.
func (s *Store) RecentQueries(limit int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT query FROM searches
		GROUP BY query
		ORDER BY MAX(id) DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: recent queries: %w", err)
	}
	defer rows.Close()

	var queries []string
	for rows.Next() {
		var q string
		if err := rows.Scan(&q); err != nil {
			return nil, err
		}
		queries = append(queries, q)
	}
	return queries, rows.Err()
}

// Clear forgets every search.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec("DELETE FROM searches")
	return err
}
