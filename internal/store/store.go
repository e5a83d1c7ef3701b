// Package store persists the feedback corpus and small key/value state
// (such as the logged-in user) in a local SQLite database.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"sentilytics/internal/logging"
	"sentilytics/internal/types"
)

// ErrNotFound reports that the requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Store wraps the SQLite database holding feedback and kv state.
// A single connection is used; SQLite serializes writers anyway and a
// single conn avoids SQLITE_BUSY churn under WAL.
type Store struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
}

// Open initializes the SQLite database at the given path, creating the
// parent directory and schema as needed.
func Open(path string) (*Store, error) {
	logging.Store("Opening store at path: %s", path)

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to create directory %s: %v", dir, err)
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to open database at %s: %v", path, err)
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.StoreDebug("Failed to set sqlite busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.StoreDebug("Failed to set sqlite journal_mode=WAL: %v", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL"); err != nil {
		logging.StoreDebug("Failed to set sqlite synchronous=NORMAL: %v", err)
	}

	s := &Store{db: db, dbPath: path}
	if err := s.initialize(); err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to initialize schema: %v", err)
		db.Close()
		return nil, err
	}

	logging.StoreDebug("Store schema ready")
	return s, nil
}

// initialize creates the required tables.
func (s *Store) initialize() error {
	feedbackTable := `
	CREATE TABLE IF NOT EXISTS feedback (
		id TEXT PRIMARY KEY,
		user_name TEXT NOT NULL,
		user_email TEXT NOT NULL,
		rating INTEGER NOT NULL,
		comment TEXT NOT NULL,
		category TEXT NOT NULL,
		sentiment TEXT NOT NULL DEFAULT '',
		ai_summary TEXT NOT NULL DEFAULT '',
		response TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_feedback_created ON feedback(created_at);
	CREATE INDEX IF NOT EXISTS idx_feedback_email ON feedback(user_email);`

	kvTable := `
	CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL
	);`

	for _, stmt := range []string{feedbackTable, kvTable} {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	logging.StoreDebug("Closing store at %s", s.dbPath)
	return s.db.Close()
}

// Add inserts one feedback record.
func (s *Store) Add(rec types.FeedbackRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO feedback (id, user_name, user_email, rating, comment, category, sentiment, ai_summary, response, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.UserName, rec.UserEmail, rec.Rating, rec.Comment,
		string(rec.Category), string(rec.Sentiment), rec.AISummary, rec.Response, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert feedback %s: %w", rec.ID, err)
	}
	logging.StoreDebug("Inserted feedback %s (category=%s rating=%d)", rec.ID, rec.Category, rec.Rating)
	return nil
}

// Update rewrites the mutable analysis and response columns of a record.
func (s *Store) Update(rec types.FeedbackRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`
		UPDATE feedback SET sentiment = ?, ai_summary = ?, response = ? WHERE id = ?`,
		string(rec.Sentiment), rec.AISummary, rec.Response, rec.ID)
	if err != nil {
		return fmt.Errorf("failed to update feedback %s: %w", rec.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("feedback %s: %w", rec.ID, ErrNotFound)
	}
	return nil
}

// SetResponse sets or overwrites the admin response on a record.
func (s *Store) SetResponse(id, response string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`UPDATE feedback SET response = ? WHERE id = ?`, response, id)
	if err != nil {
		return fmt.Errorf("failed to set response on %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("feedback %s: %w", id, ErrNotFound)
	}
	logging.Store("Response set on feedback %s", id)
	return nil
}

// Delete removes one record by id.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`DELETE FROM feedback WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete feedback %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("feedback %s: %w", id, ErrNotFound)
	}
	logging.Store("Deleted feedback %s", id)
	return nil
}

// Get returns one record by id, or ErrNotFound.
func (s *Store) Get(id string) (types.FeedbackRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(`
		SELECT id, user_name, user_email, rating, comment, category, sentiment, ai_summary, response, created_at
		FROM feedback WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.FeedbackRecord{}, fmt.Errorf("feedback %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return types.FeedbackRecord{}, fmt.Errorf("failed to load feedback %s: %w", id, err)
	}
	return rec, nil
}

// List returns the full corpus, most recent first. Records sharing a
// timestamp keep insertion order via rowid.
func (s *Store) List() ([]types.FeedbackRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, user_name, user_email, rating, comment, category, sentiment, ai_summary, response, created_at
		FROM feedback ORDER BY created_at DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list feedback: %w", err)
	}
	defer rows.Close()

	var out []types.FeedbackRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan feedback row: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate feedback rows: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (types.FeedbackRecord, error) {
	var rec types.FeedbackRecord
	var category, sentiment string
	err := row.Scan(&rec.ID, &rec.UserName, &rec.UserEmail, &rec.Rating, &rec.Comment,
		&category, &sentiment, &rec.AISummary, &rec.Response, &rec.CreatedAt)
	if err != nil {
		return types.FeedbackRecord{}, err
	}
	rec.Category = types.Category(category)
	rec.Sentiment = types.Sentiment(sentiment)
	return rec, nil
}

// SaveKV stores a value under a key, replacing any previous value.
func (s *Store) SaveKV(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`INSERT OR REPLACE INTO kv (key, value) VALUES (?, ?)`, key, value)
	if err != nil {
		return fmt.Errorf("failed to save kv %s: %w", key, err)
	}
	return nil
}

// LoadKV returns the value under a key and whether it exists.
func (s *Store) LoadKV(key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var value []byte
	err := s.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to load kv %s: %w", key, err)
	}
	return value, true, nil
}

// DeleteKV removes a key; missing keys are not an error.
func (s *Store) DeleteKV(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec(`DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete kv %s: %w", key, err)
	}
	return nil
}
