// Package store handles SQLite persistence.
//
// State is kept as JSON documents in a single key/value table. Each document
// is rewritten in full whenever it changes.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/verte-zerg/cubetime/internal/model"

	_ "modernc.org/sqlite" // SQLite driver.
)

// Keys of the persisted documents.
const (
	KeySolves           = "solves"
	KeySessions         = "sessions"
	KeyScrambleSettings = "scramble_settings"
	KeyActiveSession    = "active_session"
)

// Store wraps SQLite access for key/value documents.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// A single connection keeps writes from the persister and reads from
	// CLI commands serialized.
	db.SetMaxOpenConns(1)
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS kv (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Get returns the raw document stored under key. ok is false when the key is absent.
func (s *Store) Get(ctx context.Context, key string) (value []byte, ok bool, err error) {
	var raw string
	err = s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read %s: %w", key, err)
	}
	return []byte(raw), true, nil
}

// Put replaces the document stored under key.
func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, string(value), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting an absent key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// getJSON decodes key into dst. It reports false, leaving dst untouched, when
// the key is missing or cannot be read or decoded.
func (s *Store) getJSON(ctx context.Context, key string, dst any) bool {
	raw, ok, err := s.Get(ctx, key)
	if err != nil {
		slog.Warn("store: read failed, using default", "key", key, "err", err)
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		slog.Warn("store: malformed document, using default", "key", key, "err", err)
		return false
	}
	return true
}

func (s *Store) putJSON(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.Put(ctx, key, raw)
}

// LoadSolves returns the solve history, or an empty list on any fault.
func (s *Store) LoadSolves(ctx context.Context) []model.Solve {
	var solves []model.Solve
	if !s.getJSON(ctx, KeySolves, &solves) || solves == nil {
		return []model.Solve{}
	}
	return solves
}

// LoadSessions returns the session list, or an empty list on any fault.
func (s *Store) LoadSessions(ctx context.Context) []model.Session {
	var sessions []model.Session
	if !s.getJSON(ctx, KeySessions, &sessions) || sessions == nil {
		return []model.Session{}
	}
	for i := range sessions {
		if sessions[i].SolveIDs == nil {
			sessions[i].SolveIDs = []string{}
		}
	}
	return sessions
}

// LoadScrambleSettings returns the stored settings, or fallback on any fault.
func (s *Store) LoadScrambleSettings(ctx context.Context, fallback model.ScrambleSettings) model.ScrambleSettings {
	var settings model.ScrambleSettings
	if !s.getJSON(ctx, KeyScrambleSettings, &settings) {
		return fallback
	}
	if settings.ExcludedMoves == nil {
		settings.ExcludedMoves = []string{}
	}
	return settings.WithLength(settings.Length)
}

// LoadActiveSession returns the selected session id, or "".
func (s *Store) LoadActiveSession(ctx context.Context) string {
	var id string
	if !s.getJSON(ctx, KeyActiveSession, &id) {
		return ""
	}
	return id
}

// SaveSolves persists the full solve history.
func (s *Store) SaveSolves(ctx context.Context, solves []model.Solve) error {
	return s.putJSON(ctx, KeySolves, solves)
}

// SaveSessions persists the full session list.
func (s *Store) SaveSessions(ctx context.Context, sessions []model.Session) error {
	return s.putJSON(ctx, KeySessions, sessions)
}

// SaveScrambleSettings persists the scramble settings.
func (s *Store) SaveScrambleSettings(ctx context.Context, settings model.ScrambleSettings) error {
	return s.putJSON(ctx, KeyScrambleSettings, settings)
}

// SaveActiveSession persists the selected session id.
func (s *Store) SaveActiveSession(ctx context.Context, id string) error {
	return s.putJSON(ctx, KeyActiveSession, id)
}
