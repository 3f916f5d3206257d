// Package store provides SQLite persistence for sift.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/siftnews/sift/internal/feeds"
	"github.com/siftnews/sift/internal/ranking"
)

// ErrNotFound is returned when an operation targets an id the store does
// not hold.
var ErrNotFound = errors.New("item not found")

// ErrUnknownTab is returned for tab names other than liked, disliked, all.
var ErrUnknownTab = errors.New("unknown tab")

// Batched queries chunk their id lists to stay under the SQLite bound
// parameter limit.
const filterChunkSize = 500

// Options configures a Store.
type Options struct {
	// HistoryLimit is the retained classified-row ceiling per category.
	HistoryLimit int

	// PoolSize is the number of idle connections kept for reuse. The
	// pool never blocks: demand beyond the pool opens fresh connections.
	PoolSize int

	// Priorities orders the pending tabs. Defaults to ranking.Default.
	Priorities ranking.Priorities
}

// Store handles SQLite persistence. NOT an interface - concrete type.
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type Store struct {
	db           *sql.DB
	mu           sync.RWMutex
	historyLimit int
	priorities   ranking.Priorities

	// now is stubbed in tests that pin classification timestamps.
	now func() int64
}

// Open creates a new Store with the given database path.
// Creates the table if it doesn't exist.
// Uses WAL mode for better concurrent read performance (file-based DBs only).
func Open(dbPath string, opts Options) (*Store, error) {
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 300
	}
	if opts.PoolSize <= 0 {
		opts.PoolSize = 4
	}
	if len(opts.Priorities) == 0 {
		opts.Priorities = ranking.Default()
	}

	connStr := dbPath
	if dbPath == ":memory:" {
		// Shared cache so all pooled connections see the same database
		connStr = "file::memory:?cache=shared"
	}

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if dbPath == ":memory:" {
		// A single connection avoids separate in-memory databases
		db.SetMaxOpenConns(1)
	} else {
		// Keep PoolSize connections warm; overflow opens ad hoc
		// connections instead of blocking callers.
		db.SetMaxIdleConns(opts.PoolSize)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if dbPath != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable WAL mode: %w", err)
		}
	}

	s := &Store{
		db:           db,
		historyLimit: opts.HistoryLimit,
		priorities:   opts.Priorities,
		now:          func() int64 { return time.Now().Unix() },
	}

	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return s, nil
}

// createTables creates the required table and indexes if they don't exist.
func (s *Store) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS items (
		id TEXT PRIMARY KEY,
		source_url TEXT,
		title TEXT NOT NULL,
		url TEXT,
		description TEXT,
		tags TEXT,
		created_at INTEGER NOT NULL,
		category INTEGER,
		sorted_at INTEGER
	);

	CREATE INDEX IF NOT EXISTS idx_items_category_sorted ON items(category, sorted_at DESC);
	CREATE INDEX IF NOT EXISTS idx_items_sorted ON items(sorted_at DESC);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
// Thread-safe: acquires write lock to prevent closing during in-flight operations.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// FilterNew returns the candidate ids not yet present in the store,
// preserving candidate order. One batched existence query per chunk,
// never a round trip per id.
func (s *Store) FilterNew(ids []string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(ids) == 0 {
		return nil, nil
	}

	known := make(map[string]bool, len(ids))
	for start := 0; start < len(ids); start += filterChunkSize {
		end := start + filterChunkSize
		if end > len(ids) {
			end = len(ids)
		}
		chunk := ids[start:end]

		query := "SELECT id FROM items WHERE id IN (?" +
			strings.Repeat(",?", len(chunk)-1) + ")"
		args := make([]any, len(chunk))
		for i, id := range chunk {
			args[i] = id
		}

		rows, err := s.db.Query(query, args...)
		if err != nil {
			return nil, fmt.Errorf("existence query: %w", err)
		}
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return nil, err
			}
			known[id] = true
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()
	}

	fresh := make([]string, 0, len(ids))
	for _, id := range ids {
		if !known[id] {
			fresh = append(fresh, id)
		}
	}
	return fresh, nil
}

// InsertClassified inserts newly classified rows with the given category
// and no sorted_at. A duplicate id surfaces the constraint error; it is a
// state bug, not a condition to paper over.
// Thread-safe: acquires write lock.
func (s *Store) InsertClassified(items []feeds.Item, category feeds.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(items) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO items (id, source_url, title, url, description, tags, created_at, category, sorted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, NULL)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, item := range items {
		tags, err := json.Marshal(item.Tags)
		if err != nil {
			return fmt.Errorf("encode tags for %s: %w", item.ID, err)
		}
		if _, err := stmt.Exec(
			item.ID,
			item.SourceURL,
			item.Title,
			item.URL,
			item.Description,
			string(tags),
			item.CreatedAt,
			int(category),
		); err != nil {
			return fmt.Errorf("insert %s: %w", item.ID, err)
		}
	}

	return tx.Commit()
}

// Exemplars returns up to limit items carrying the category, most recent
// first. Swiped items rank by swipe time, not-yet-swiped ones by publish
// time. Pending rows count: a batch committed in one oracle round must be
// visible as feedback to the next round of the same run.
// Thread-safe: acquires read lock.
func (s *Store) Exemplars(category feeds.Category, limit int) ([]feeds.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, source_url, title, url, description, tags, created_at, category, sorted_at
		FROM items
		WHERE category = ?
		ORDER BY COALESCE(sorted_at, created_at) DESC
		LIMIT ?
	`
	return s.queryItems(query, int(category), limit)
}

// Tab returns the ordered item page for one tab.
//
// "liked" and "disliked" are the pending tabs: oracle-classified items
// not yet swiped, ordered by source priority then publish time.
// "all" is history: swiped items by classification time, newest first.
func (s *Store) Tab(name string, limit int) ([]feeds.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch name {
	case "all":
		query := `
			SELECT id, source_url, title, url, description, tags, created_at, category, sorted_at
			FROM items
			WHERE sorted_at IS NOT NULL
			ORDER BY sorted_at DESC
			LIMIT ?
		`
		return s.queryItems(query, limit)
	case "liked", "disliked":
		category := feeds.Disliked
		if name == "liked" {
			category = feeds.Liked
		}
		tierExpr, tierArgs := s.priorities.TierExpr()
		query := `
			SELECT id, source_url, title, url, description, tags, created_at, category, sorted_at
			FROM items
			WHERE category = ? AND sorted_at IS NULL
			ORDER BY ` + tierExpr + ` ASC, created_at DESC
			LIMIT ?
		`
		args := append([]any{int(category)}, tierArgs...)
		args = append(args, limit)
		return s.queryItems(query, args...)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownTab, name)
}

// Reclassify assigns a new category to an item. The first reclassification
// stamps sorted_at; later ones change only the category, so an item's
// position in history is fixed by its original classification time.
// Thread-safe: acquires write lock.
func (s *Store) Reclassify(id string, category feeds.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(
		"UPDATE items SET category = ?, sorted_at = COALESCE(sorted_at, ?) WHERE id = ?",
		int(category), s.now(), id,
	)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// EvictOverflow deletes classified rows of the category beyond the newest
// historyLimit by sorted_at. Pending rows are never touched. Eviction is
// always double-checked: the delete runs twice so an off-by-one from a
// concurrent writer between passes still lands under the ceiling.
// Thread-safe: acquires write lock.
func (s *Store) EvictOverflow(category feeds.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		DELETE FROM items
		WHERE category = ? AND sorted_at IS NOT NULL AND id NOT IN (
			SELECT id FROM items
			WHERE category = ? AND sorted_at IS NOT NULL
			ORDER BY sorted_at DESC
			LIMIT ?
		)
	`
	for pass := 0; pass < 2; pass++ {
		if _, err := s.db.Exec(query, int(category), int(category), s.historyLimit); err != nil {
			return fmt.Errorf("evict pass %d: %w", pass+1, err)
		}
	}
	return nil
}

// queryItems is a helper that executes a query and scans results into Items.
// Caller must hold s.mu (read lock is sufficient).
func (s *Store) queryItems(query string, args ...any) ([]feeds.Item, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []feeds.Item
	for rows.Next() {
		var item feeds.Item
		var tags sql.NullString
		var category, sortedAt sql.NullInt64
		err := rows.Scan(
			&item.ID,
			&item.SourceURL,
			&item.Title,
			&item.URL,
			&item.Description,
			&tags,
			&item.CreatedAt,
			&category,
			&sortedAt,
		)
		if err != nil {
			return nil, err
		}
		if tags.Valid && tags.String != "" {
			if err := json.Unmarshal([]byte(tags.String), &item.Tags); err != nil {
				return nil, fmt.Errorf("decode tags for %s: %w", item.ID, err)
			}
		}
		if category.Valid {
			c := feeds.Category(category.Int64)
			item.Category = &c
		}
		if sortedAt.Valid {
			t := sortedAt.Int64
			item.SortedAt = &t
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return items, nil
}
