// Package store caches compiled TAC and records program runs in SQLite.
package store

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/chazu/emoc/pkg/logger"
)

var (
	// ErrNotFound is returned when an artifact or run does not exist.
	ErrNotFound = errors.New("not found")
)

const schema = `
CREATE TABLE IF NOT EXISTS artifacts (
	key  TEXT PRIMARY KEY,
	data TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS runs (
	id   TEXT PRIMARY KEY,
	data TEXT NOT NULL
);
`

// Artifact is a compiled program keyed by the hash of its source.
type Artifact struct {
	Key       string    `json:"-"`
	Source    string    `json:"source"`
	TAC       string    `json:"tac"`
	Warnings  []string  `json:"warnings,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Run is one recorded execution of an artifact.
type Run struct {
	ID        string    `json:"-"`
	Key       string    `json:"key"`
	Output    string    `json:"output"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type cacheEntry struct {
	artifact   *Artifact
	loadedAt   time.Time
	accessedAt time.Time
}

// Store manages the artifact cache and run history.
type Store struct {
	db      *sql.DB
	dbPath  string
	cache   map[string]*cacheEntry
	cacheMu sync.RWMutex
}

// Config holds store configuration options.
type Config struct {
	DBPath string // Path to the database (defaults to $EMOC_CACHE_DB, then ~/.emoc/cache.db)
}

// DefaultPath returns the database path used when none is configured.
func DefaultPath() (string, error) {
	if p := os.Getenv("EMOC_CACHE_DB"); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home dir: %w", err)
	}
	return filepath.Join(home, ".emoc", "cache.db"), nil
}

// New opens (creating if needed) the store. If cfg is nil, defaults are
// used.
func New(cfg *Config) (*Store, error) {
	s := &Store{cache: make(map[string]*cacheEntry)}

	if cfg != nil && cfg.DBPath != "" {
		s.dbPath = cfg.DBPath
	} else {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		s.dbPath = p
	}
	if err := os.MkdirAll(filepath.Dir(s.dbPath), 0755); err != nil {
		return nil, fmt.Errorf("creating database dir: %w", err)
	}

	db, err := sql.Open("sqlite3", s.dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	s.db = db

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Debug("Opened store", "path", s.dbPath)
	return s, nil
}

// Path returns the database path.
func (s *Store) Path() string {
	return s.dbPath
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.cacheMu.Lock()
	s.cache = nil
	s.cacheMu.Unlock()

	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Key returns the cache key for source text.
func Key(source []byte) string {
	sum := sha256.Sum256(source)
	return hex.EncodeToString(sum[:])
}

// LoadArtifact loads an artifact from cache or database.
func (s *Store) LoadArtifact(key string) (*Artifact, error) {
	s.cacheMu.Lock()
	if entry, ok := s.cache[key]; ok {
		entry.accessedAt = time.Now()
		s.cacheMu.Unlock()
		return entry.artifact, nil
	}
	s.cacheMu.Unlock()

	var data string
	err := s.db.QueryRow("SELECT data FROM artifacts WHERE key = ?", key).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("artifact %s: %w", key, ErrNotFound)
		}
		return nil, fmt.Errorf("querying artifact: %w", err)
	}

	var a Artifact
	if err := json.Unmarshal([]byte(data), &a); err != nil {
		return nil, fmt.Errorf("unmarshaling artifact: %w", err)
	}
	a.Key = key

	s.remember(&a)
	return &a, nil
}

// SaveArtifact stores compiled TAC for source and returns the artifact.
func (s *Store) SaveArtifact(source, tac string, warnings []string) (*Artifact, error) {
	a := &Artifact{
		Key:       Key([]byte(source)),
		Source:    source,
		TAC:       tac,
		Warnings:  warnings,
		CreatedAt: time.Now().UTC(),
	}
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshaling artifact: %w", err)
	}

	_, err = s.db.Exec(
		"INSERT OR REPLACE INTO artifacts (key, data) VALUES (?, json(?))",
		a.Key, string(data),
	)
	if err != nil {
		return nil, fmt.Errorf("saving artifact: %w", err)
	}

	s.remember(a)
	return a, nil
}

func (s *Store) remember(a *Artifact) {
	now := time.Now()
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	if s.cache == nil {
		return
	}
	s.cache[a.Key] = &cacheEntry{artifact: a, loadedAt: now, accessedAt: now}
}

// DeleteArtifact removes an artifact and evicts it from the cache.
func (s *Store) DeleteArtifact(key string) error {
	s.Evict(key)
	if _, err := s.db.Exec("DELETE FROM artifacts WHERE key = ?", key); err != nil {
		return fmt.Errorf("deleting artifact: %w", err)
	}
	return nil
}

// RecordRun stores the output of one execution and returns its ID.
func (s *Store) RecordRun(key, output string, runErr error) (string, error) {
	r := Run{
		Key:       key,
		Output:    output,
		CreatedAt: time.Now().UTC(),
	}
	if runErr != nil {
		r.Error = runErr.Error()
	}
	data, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("marshaling run: %w", err)
	}

	id := "run_" + uuid.New().String()
	if _, err := s.db.Exec("INSERT INTO runs (id, data) VALUES (?, json(?))", id, string(data)); err != nil {
		return "", fmt.Errorf("saving run: %w", err)
	}
	return id, nil
}

// LoadRun loads a run record by ID.
func (s *Store) LoadRun(id string) (*Run, error) {
	var data string
	err := s.db.QueryRow("SELECT data FROM runs WHERE id = ?", id).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("querying run: %w", err)
	}
	var r Run
	if err := json.Unmarshal([]byte(data), &r); err != nil {
		return nil, fmt.Errorf("unmarshaling run: %w", err)
	}
	r.ID = id
	return &r, nil
}

// Runs returns the most recent runs, newest first. A limit of 0 returns
// all of them. A non-empty key restricts the result to one artifact.
func (s *Store) Runs(key string, limit int) ([]Run, error) {
	query := "SELECT id, data FROM runs"
	var args []any
	if key != "" {
		query += " WHERE json_extract(data, '$.key') = ?"
		args = append(args, key)
	}
	query += " ORDER BY rowid DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var id, data string
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		var r Run
		if err := json.Unmarshal([]byte(data), &r); err != nil {
			return nil, fmt.Errorf("unmarshaling run %s: %w", id, err)
		}
		r.ID = id
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// CacheStats returns the number of cached artifacts.
func (s *Store) CacheStats() int {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	return len(s.cache)
}

// ClearCache removes all entries from the in-memory cache.
func (s *Store) ClearCache() {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.cache = make(map[string]*cacheEntry)
}

// Evict removes one artifact from the in-memory cache.
func (s *Store) Evict(key string) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	delete(s.cache, key)
}

// IsCached returns whether an artifact is currently in the cache.
func (s *Store) IsCached(key string) bool {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	_, ok := s.cache[key]
	return ok
}
