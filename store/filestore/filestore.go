// Package filestore persists the token set as a JSON file, optionally
// sealed at rest with a passphrase-derived key.
package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/nrudenko/authcore/errs"
	"github.com/nrudenko/authcore/model"
	"github.com/nrudenko/authcore/store"
)

// tokenFile is the on-disk shape. Expiry stays relative to issuance so a
// set loaded later recomputes its absolute expiry locally.
type tokenFile struct {
	AccessToken  string    `json:"access_token"`
	IDToken      string    `json:"id_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresIn    int64     `json:"expires_in"`
	IssuedAt     time.Time `json:"issued_at"`
}

// Store writes the token set to a single file with 0600 permissions.
type Store struct {
	path string
	seal *sealer // nil when sealing is disabled
}

var _ store.TokenStore = (*Store)(nil)

// New creates a plaintext file store at path.
func New(path string) *Store { return &Store{path: path} }

// NewSealed creates a file store whose payload is sealed with a key derived
// from passphrase.
func NewSealed(path string, passphrase []byte) *Store {
	return &Store{path: path, seal: newSealer(passphrase)}
}

// Get loads the persisted token set, or nil when the file does not exist.
func (s *Store) Get(_ context.Context) (*model.AuthTokens, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", errs.ErrStorage, s.path, err)
	}
	if s.seal != nil {
		raw, err = s.seal.open(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: unseal %s: %v", errs.ErrStorage, s.path, err)
		}
	}
	var tf tokenFile
	if err := json.Unmarshal(raw, &tf); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", errs.ErrStorage, s.path, err)
	}
	return &model.AuthTokens{
		AccessToken:  tf.AccessToken,
		IDToken:      tf.IDToken,
		RefreshToken: tf.RefreshToken,
		ExpiresIn:    tf.ExpiresIn,
		IssuedAt:     tf.IssuedAt,
	}, nil
}

// Set replaces the persisted token set.
func (s *Store) Set(_ context.Context, tokens model.AuthTokens) error {
	raw, err := json.Marshal(tokenFile{
		AccessToken:  tokens.AccessToken,
		IDToken:      tokens.IDToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresIn:    tokens.ExpiresIn,
		IssuedAt:     tokens.IssuedAt,
	})
	if err != nil {
		return fmt.Errorf("%w: encode: %v", errs.ErrStorage, err)
	}
	if s.seal != nil {
		raw, err = s.seal.seal(raw)
		if err != nil {
			return fmt.Errorf("%w: seal: %v", errs.ErrStorage, err)
		}
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("%w: mkdir: %v", errs.ErrStorage, err)
	}
	if err := os.WriteFile(s.path, raw, 0o600); err != nil {
		return fmt.Errorf("%w: write %s: %v", errs.ErrStorage, s.path, err)
	}
	return nil
}

// Clear removes the file. A missing file is not an error.
func (s *Store) Clear(_ context.Context) error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: remove %s: %v", errs.ErrStorage, s.path, err)
	}
	return nil
}
