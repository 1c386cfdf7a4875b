// Package store persists the CLI's "browser session" in SQLite: the
// session-scoped key/value pairs behind webenv.Storage, the sealed cookie
// jar, and the sealing salt. One database file is one session.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/aussiebroadwan/formauth/pkg/cryptox"
)

type Store struct {
	db  *sql.DB
	dsn string
}

func NewStore(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	if _, err := db.ExecContext(context.Background(), `PRAGMA foreign_keys = ON;`); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db, dsn: dsn}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Ping verifies the database connection is still alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Get, Set and Remove implement webenv.Storage. Like the sessionStorage
// they stand in for, they are best-effort: a storage failure degrades the
// session (a flash message or return target is lost), it does not abort the
// flow.

func (s *Store) Get(key string) string {
	var value string
	err := s.db.QueryRow(`SELECT value FROM session_values WHERE key = ?`, key).Scan(&value)
	if err != nil {
		return ""
	}
	return value
}

func (s *Store) Set(key, value string) {
	_, _ = s.db.Exec(`
		INSERT INTO session_values (key, value, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value)
}

func (s *Store) Remove(key string) {
	_, _ = s.db.Exec(`DELETE FROM session_values WHERE key = ?`, key)
}

// SaveJar replaces the sealed cookie jar blob.
func (s *Store) SaveJar(ctx context.Context, sealed []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cookie_jar (id, sealed, updated_at)
		VALUES (1, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (id) DO UPDATE SET sealed = excluded.sealed, updated_at = excluded.updated_at`,
		sealed)
	if err != nil {
		return fmt.Errorf("save cookie jar: %w", err)
	}
	return nil
}

// LoadJar returns the sealed cookie jar blob, or nil when none has been
// saved yet.
func (s *Store) LoadJar(ctx context.Context) ([]byte, error) {
	var sealed []byte
	err := s.db.QueryRowContext(ctx, `SELECT sealed FROM cookie_jar WHERE id = 1`).Scan(&sealed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load cookie jar: %w", err)
	}
	return sealed, nil
}

// SealSalt returns the session's key-derivation salt, generating and
// persisting one on first use so the sealing key stays stable across
// invocations.
func (s *Store) SealSalt(ctx context.Context) ([]byte, error) {
	var salt []byte
	err := s.db.QueryRowContext(ctx, `SELECT salt FROM seal_meta WHERE id = 1`).Scan(&salt)
	if err == nil {
		return salt, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("load seal salt: %w", err)
	}

	salt, err = cryptox.NewSalt()
	if err != nil {
		return nil, err
	}
	if _, err := s.db.ExecContext(ctx, `INSERT INTO seal_meta (id, salt) VALUES (1, ?)`, salt); err != nil {
		return nil, fmt.Errorf("persist seal salt: %w", err)
	}
	return salt, nil
}
