// Package sqlitestore persists the token set in a local SQLite database,
// one row per profile.
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/nrudenko/authcore/errs"
	"github.com/nrudenko/authcore/model"
	"github.com/nrudenko/authcore/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS auth_tokens (
	profile       TEXT PRIMARY KEY,
	access_token  TEXT NOT NULL,
	id_token      TEXT NOT NULL,
	refresh_token TEXT NOT NULL,
	expires_in    INTEGER NOT NULL,
	issued_at     INTEGER NOT NULL
);`

// Store keeps one token set per profile.
type Store struct {
	db      *sql.DB
	profile string
}

var _ store.TokenStore = (*Store)(nil)

// Open opens (creating if necessary) the database at path and ensures the
// schema. The profile names the row this store reads and writes.
func Open(path, profile string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", errs.ErrStorage, path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: init schema: %v", errs.ErrStorage, err)
	}
	return &Store{db: db, profile: profile}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// Get loads the persisted token set, or nil when the profile has none.
func (s *Store) Get(ctx context.Context) (*model.AuthTokens, error) {
	const q = `
SELECT access_token, id_token, refresh_token, expires_in, issued_at
FROM auth_tokens WHERE profile=?1`
	row := s.db.QueryRowContext(ctx, q, s.profile)
	var t model.AuthTokens
	var issued int64
	err := row.Scan(&t.AccessToken, &t.IDToken, &t.RefreshToken, &t.ExpiresIn, &issued)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: select auth_tokens: %v", errs.ErrStorage, err)
	}
	t.IssuedAt = time.Unix(0, issued).UTC()
	return &t, nil
}

// Set upserts the profile's token set.
func (s *Store) Set(ctx context.Context, tokens model.AuthTokens) error {
	const q = `
INSERT INTO auth_tokens (profile, access_token, id_token, refresh_token, expires_in, issued_at)
VALUES (?1, ?2, ?3, ?4, ?5, ?6)
ON CONFLICT(profile) DO UPDATE SET
	access_token=excluded.access_token,
	id_token=excluded.id_token,
	refresh_token=excluded.refresh_token,
	expires_in=excluded.expires_in,
	issued_at=excluded.issued_at`
	_, err := s.db.ExecContext(ctx, q,
		s.profile, tokens.AccessToken, tokens.IDToken, tokens.RefreshToken,
		tokens.ExpiresIn, tokens.IssuedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("%w: upsert auth_tokens: %v", errs.ErrStorage, err)
	}
	return nil
}

// Clear removes the profile's row. Clearing an empty store is not an error.
func (s *Store) Clear(ctx context.Context) error {
	const q = `DELETE FROM auth_tokens WHERE profile=?1`
	if _, err := s.db.ExecContext(ctx, q, s.profile); err != nil {
		return fmt.Errorf("%w: delete auth_tokens: %v", errs.ErrStorage, err)
	}
	return nil
}
