package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/nrudenko/authcore/errs"
	"github.com/nrudenko/authcore/model"
	"github.com/nrudenko/authcore/store"
)

// TokenStore implements store.TokenStore over an auth_tokens table keyed by
// profile.
type TokenStore struct {
	db      *DB
	profile string
}

var _ store.TokenStore = (*TokenStore)(nil)

// NewTokenStore constructs a token store bound to one profile row.
func NewTokenStore(db *DB, profile string) *TokenStore {
	return &TokenStore{db: db, profile: profile}
}

// Get loads the persisted token set, or nil when the profile has none.
func (s *TokenStore) Get(ctx context.Context) (*model.AuthTokens, error) {
	const q = `
SELECT access_token, id_token, refresh_token, expires_in, issued_at
FROM auth_tokens WHERE profile=$1`
	row := s.db.Pool.QueryRow(ctx, q, s.profile)
	var t model.AuthTokens
	if err := row.Scan(&t.AccessToken, &t.IDToken, &t.RefreshToken, &t.ExpiresIn, &t.IssuedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: select auth_tokens: %v", errs.ErrStorage, err)
	}
	return &t, nil
}

// Set upserts the profile's token set.
func (s *TokenStore) Set(ctx context.Context, tokens model.AuthTokens) error {
	const q = `
INSERT INTO auth_tokens (profile, access_token, id_token, refresh_token, expires_in, issued_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (profile) DO UPDATE SET
	access_token = EXCLUDED.access_token,
	id_token = EXCLUDED.id_token,
	refresh_token = EXCLUDED.refresh_token,
	expires_in = EXCLUDED.expires_in,
	issued_at = EXCLUDED.issued_at,
	updated_at = now()`
	_, err := s.db.Pool.Exec(ctx, q,
		s.profile, tokens.AccessToken, tokens.IDToken, tokens.RefreshToken,
		tokens.ExpiresIn, tokens.IssuedAt)
	if err != nil {
		return fmt.Errorf("%w: upsert auth_tokens: %v", errs.ErrStorage, err)
	}
	return nil
}

// Clear removes the profile's row. Clearing an empty store is not an error.
func (s *TokenStore) Clear(ctx context.Context) error {
	const q = `DELETE FROM auth_tokens WHERE profile=$1`
	if _, err := s.db.Pool.Exec(ctx, q, s.profile); err != nil {
		return fmt.Errorf("%w: delete auth_tokens: %v", errs.ErrStorage, err)
	}
	return nil
}
