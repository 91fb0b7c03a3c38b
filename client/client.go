// Package client composes the credential lifecycle components behind a
// single injectable facade.
package client

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nrudenko/authcore/authz"
	"github.com/nrudenko/authcore/eventbus"
	"github.com/nrudenko/authcore/model"
	"github.com/nrudenko/authcore/store"
	"github.com/nrudenko/authcore/token"
)

// Config wires the external collaborators into the facade.
type Config struct {
	// Store persists the token set; required.
	Store store.TokenStore
	// Refresh exchanges a refresh token for a new set; required.
	Refresh token.RefreshFunc
	// Decode extracts identity claims from an ID token, e.g. claims.Decode;
	// required.
	Decode token.DecodeFunc

	// Logger defaults to a no-op logger.
	Logger *zap.Logger
	// RefreshMargin defaults to token.DefaultRefreshMargin.
	RefreshMargin time.Duration
	// CacheTTL defaults to authz.DefaultCacheTTL.
	CacheTTL time.Duration
	// AutoRefresh arms the proactive refresh timer on construction.
	AutoRefresh bool
}

// Client is the public query/subscribe surface over the token manager and
// authorization cache. Construct one per process and inject it where
// needed; there is no package-level singleton.
type Client struct {
	bus     *eventbus.Bus
	manager *token.Manager
	cache   *authz.Cache

	mu      sync.Mutex
	current model.AuthState
	closed  bool
}

// New validates cfg, loads any persisted session, and starts background
// refresh when configured.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.Store == nil {
		return nil, errors.New("client: token store is required")
	}
	if cfg.Refresh == nil {
		return nil, errors.New("client: refresh function is required")
	}
	if cfg.Decode == nil {
		return nil, errors.New("client: decode function is required")
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	bus := eventbus.New(log)
	mopts := []token.Option{
		token.WithBus(bus),
		token.WithLogger(log),
		token.WithDecode(cfg.Decode),
	}
	if cfg.RefreshMargin > 0 {
		mopts = append(mopts, token.WithRefreshMargin(cfg.RefreshMargin))
	}
	mgr := token.NewManager(cfg.Store, cfg.Refresh, mopts...)

	copts := []authz.Option{authz.WithLogger(log)}
	if cfg.CacheTTL > 0 {
		copts = append(copts, authz.WithTTL(cfg.CacheTTL))
	}
	cache := authz.NewCache(mgr.GetTokens, authz.DecodeFunc(cfg.Decode), copts...)

	c := &Client{
		bus:     bus,
		manager: mgr,
		cache:   cache,
		current: model.AuthState{Status: model.StatusUnauthenticated},
	}

	// Cache invalidation and state tracking ride the same bus as consumer
	// callbacks; registered first so later subscribers observe the updated
	// snapshot and an already-invalidated cache.
	bus.On(token.TopicAuthStateChange, func(payload any) {
		state, ok := payload.(model.AuthState)
		if !ok {
			return
		}
		cache.InvalidateCache()
		c.mu.Lock()
		c.current = state
		c.mu.Unlock()
	})

	mgr.Load(ctx)
	c.mu.Lock()
	c.current = mgr.State()
	c.mu.Unlock()

	if cfg.AutoRefresh {
		mgr.StartAutoRefresh()
	}
	return c, nil
}

// Close stops background refresh. Idempotent.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()
	c.manager.StopAutoRefresh()
}

// OnAuthStateChange calls cb immediately with the current state, then on
// every subsequent change. The immediate callback reflects the state at
// subscription time, so late subscribers are never blind to an existing
// session. The returned unsubscribe is idempotent.
func (c *Client) OnAuthStateChange(cb func(model.AuthState)) func() {
	c.mu.Lock()
	state := c.current
	c.mu.Unlock()
	unsub := c.bus.On(token.TopicAuthStateChange, func(payload any) {
		if s, ok := payload.(model.AuthState); ok {
			cb(s)
		}
	})
	cb(state)
	return unsub
}

// CurrentAuthState returns the latest observed auth state.
func (c *Client) CurrentAuthState() model.AuthState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// GetTokens returns the current valid token set, refreshing first when due.
func (c *Client) GetTokens(ctx context.Context) (*model.AuthTokens, error) {
	return c.manager.GetTokens(ctx)
}

// SignIn installs a token set obtained by the application shell.
func (c *Client) SignIn(ctx context.Context, tokens model.AuthTokens) error {
	return c.manager.SetTokens(ctx, tokens)
}

// SignOut clears the session.
func (c *Client) SignOut(ctx context.Context) error {
	return c.manager.ClearTokens(ctx)
}

// HasRole reports hierarchy-aware role membership for the current session.
func (c *Client) HasRole(ctx context.Context, role model.Role) (bool, error) {
	return c.cache.HasRole(ctx, role)
}

// HasPermission reports whether the current session grants perm.
func (c *Client) HasPermission(ctx context.Context, perm authz.Permission) (bool, error) {
	return c.cache.HasPermission(ctx, perm)
}

// RequireRole fails fast with errs.ErrInsufficientRole.
func (c *Client) RequireRole(ctx context.Context, role model.Role) error {
	return c.cache.RequireRole(ctx, role)
}

// RequirePermission fails fast with errs.ErrPermissionDenied.
func (c *Client) RequirePermission(ctx context.Context, perm authz.Permission) error {
	return c.cache.RequirePermission(ctx, perm)
}

// HasOrgRole is an unresolved extension point and always denies.
func (c *Client) HasOrgRole(ctx context.Context, orgID string, role model.Role) (bool, error) {
	return c.cache.HasOrgRole(ctx, orgID, role)
}
