package localstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"fitsutra/internal/domain/session"
)

// Store is a small SQLite-backed key/value store, the persistence analog of
// the browser localStorage the web client keeps its session in. Single
// writer from the UI thread's perspective; no locking beyond SQLite's own.
type Store struct {
	db     *sql.DB
	sealer *Sealer
}

// Open opens (or creates) the local store at the given path.
// PRE: path is writable
// POST: the local_kv table exists
func Open(path string) (*Store, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open local store: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("local store unreachable: %w", err)
	}
	schema := `
	CREATE TABLE IF NOT EXISTS local_kv (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL,
		updated_at TEXT NOT NULL
	);`
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to init local store schema: %w", err)
	}
	return &Store{db: db}, nil
}

// WithSealer enables at-rest sealing of stored values.
func (s *Store) WithSealer(sealer *Sealer) *Store {
	s.sealer = sealer
	return s
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get retrieves the raw value under key. ok is false when the key is absent.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, "SELECT value FROM local_kv WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if s.sealer != nil {
		opened, err := s.sealer.Open(value)
		if err != nil {
			return nil, false, fmt.Errorf("failed to unseal value: %w", err)
		}
		return opened, true, nil
	}
	return value, true, nil
}

// Put overwrites the value under key atomically (single-row upsert).
func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	if s.sealer != nil {
		value = s.sealer.Seal(value)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO local_kv (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC().Format(time.RFC3339))
	return err
}

// Delete removes the value under key. Deleting an absent key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM local_kv WHERE key = ?", key)
	return err
}

// SessionStore persists the one authentication session under the fixed
// storage key. Absence of a session is a valid terminal state, not an error.
type SessionStore struct {
	kv *Store
}

// NewSessionStore wraps a Store for session persistence.
func NewSessionStore(kv *Store) *SessionStore {
	return &SessionStore{kv: kv}
}

// Load deserializes the persisted session. Returns ok=false on a missing
// key, malformed JSON, or any read failure. It never raises.
func (ss *SessionStore) Load(ctx context.Context) (session.Session, bool) {
	raw, found, err := ss.kv.Get(ctx, session.StorageKey)
	if err != nil {
		slog.Warn("session_load_failed", "error", err.Error())
		return session.Session{}, false
	}
	if !found {
		return session.Session{}, false
	}
	var sess session.Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return session.Session{}, false
	}
	if !sess.Valid() {
		return session.Session{}, false
	}
	return sess, true
}

// Save overwrites the persisted session.
// POST: exactly one session is persisted
func (ss *SessionStore) Save(ctx context.Context, sess session.Session) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to serialize session: %w", err)
	}
	return ss.kv.Put(ctx, session.StorageKey, raw)
}

// Clear removes the persisted session.
func (ss *SessionStore) Clear(ctx context.Context) error {
	return ss.kv.Delete(ctx, session.StorageKey)
}
