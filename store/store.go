// Package store defines the token persistence contract implemented by
// concrete backends.
package store

import (
	"context"
	"sync"

	"github.com/nrudenko/authcore/model"
)

// TokenStore is a pure blob store for the current token set. It performs no
// validation of token contents. Get returns (nil, nil) when nothing is
// persisted. The Token Manager is the only writer.
type TokenStore interface {
	// Get loads the persisted token set, or nil when none exists.
	Get(ctx context.Context) (*model.AuthTokens, error)
	// Set replaces the persisted token set.
	Set(ctx context.Context, tokens model.AuthTokens) error
	// Clear removes the persisted token set. Clearing an empty store is not an error.
	Clear(ctx context.Context) error
}

// MemStore keeps the token set in memory. Useful for tests and processes
// that do not need the session to survive a restart.
type MemStore struct {
	mu     sync.Mutex
	tokens *model.AuthTokens
}

var _ TokenStore = (*MemStore)(nil)

// NewMemStore constructs an empty in-memory store.
func NewMemStore() *MemStore { return &MemStore{} }

// Get returns a copy of the held token set, or nil.
func (s *MemStore) Get(_ context.Context) (*model.AuthTokens, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tokens == nil {
		return nil, nil
	}
	cpy := *s.tokens
	return &cpy, nil
}

// Set replaces the held token set.
func (s *MemStore) Set(_ context.Context, tokens model.AuthTokens) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = &tokens
	return nil
}

// Clear drops the held token set.
func (s *MemStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = nil
	return nil
}
