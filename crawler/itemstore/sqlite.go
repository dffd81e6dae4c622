// Package itemstore provides an optional persistent crawler.ItemSink backed
// by SQLite, for callers who want discovered feed items to survive past the
// crawl process rather than living only in the default in-memory sink.
package itemstore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/feedcrawler/core/crawler"
)

const schema = `
CREATE TABLE IF NOT EXISTS items (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	payload     TEXT NOT NULL,
	discovered_at TIMESTAMP NOT NULL
);
`

// SQLiteItemStore persists every crawler.Item handed to it as a JSON blob
// in a single SQLite table, with one writer connection, mirroring the
// pack's sqlite-backed crawl storage.
type SQLiteItemStore struct {
	db *sql.DB
	mu sync.Mutex
}

// Open creates (or reuses) the SQLite database at path and ensures its
// schema exists.
func Open(path string) (*SQLiteItemStore, error) {
	dsn := fmt.Sprintf("%s?_journal=WAL&_synchronous=NORMAL&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("itemstore: open %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("itemstore: ping %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("itemstore: create schema: %w", err)
	}
	return &SQLiteItemStore{db: db}, nil
}

// ProcessItem implements crawler.ItemSink by JSON-marshaling item and
// inserting one row per call.
func (s *SQLiteItemStore) ProcessItem(item crawler.Item) error {
	payload, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("itemstore: marshal item: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.Exec(`INSERT INTO items (payload, discovered_at) VALUES (?, ?)`, string(payload), time.Now().UTC())
	return err
}

// Count returns how many items have been persisted.
func (s *SQLiteItemStore) Count() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM items`).Scan(&n)
	return n, err
}

// Close releases the underlying database connection.
func (s *SQLiteItemStore) Close() error {
	return s.db.Close()
}

var _ crawler.ItemSink = (*SQLiteItemStore)(nil)
