package sqlitestore

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	autherrors "github.com/jrsteele09/go-auth-session/internal/errors"
	"github.com/jrsteele09/go-auth-session/sessions"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

var _ sessions.Store = (*SQLiteStore)(nil)

const schema = `CREATE TABLE IF NOT EXISTS session_kv (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
)`

// SQLiteStore persists session values in a SQLite file so that several
// processes on one machine share a single session and activity record.
type SQLiteStore struct {
	db *sql.DB
}

// Open creates the database file and schema if needed
func Open(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" && path != ":memory:" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("failed to create store folder: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}
	// one connection keeps :memory: databases coherent and serialises writers
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure session store: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create session schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Get(key sessions.Key) (string, bool) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM session_kv WHERE key = ?`, string(key)).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false
	}
	if err != nil {
		log.Warn().Err(err).Str("key", string(key)).Msg("Failed to read session value")
		return "", false
	}
	return value, true
}

func (s *SQLiteStore) Set(key sessions.Key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO session_kv (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		string(key), value,
	)
	return autherrors.Wrapf(err, "failed to write %s", key)
}

func (s *SQLiteStore) Remove(key sessions.Key) error {
	_, err := s.db.Exec(`DELETE FROM session_kv WHERE key = ?`, string(key))
	return autherrors.Wrapf(err, "failed to remove %s", key)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
