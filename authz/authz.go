// Package authz answers hierarchy-aware role and permission queries against
// the current token, caching per-name decisions with a TTL.
package authz

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nrudenko/authcore/errs"
	"github.com/nrudenko/authcore/model"
	"github.com/nrudenko/authcore/obs"
)

// DefaultCacheTTL bounds how long a cached authorization decision is served.
const DefaultCacheTTL = 300 * time.Second

// TokensFunc supplies the current token set. The cache reads tokens
// opportunistically and never writes them.
type TokensFunc func(ctx context.Context) (*model.AuthTokens, error)

// DecodeFunc extracts identity claims from an ID token.
type DecodeFunc func(idToken string) (model.User, error)

// cacheEntry is one cached decision; it is never served past expiresAt and
// is purged lazily on lookup.
type cacheEntry struct {
	value     bool
	expiresAt time.Time
}

// Cache derives roles and permissions from the current token. Results are
// keyed by role/permission name only, so the owner must invalidate on every
// token change to avoid leaking authority across identities.
type Cache struct {
	tokens TokensFunc
	decode DecodeFunc
	ttl    time.Duration
	log    *zap.Logger
	now    func() time.Time

	mu    sync.Mutex
	roles map[model.Role]cacheEntry
	perms map[Permission]cacheEntry
}

// Option configures a Cache.
type Option func(*Cache)

// WithTTL overrides DefaultCacheTTL.
func WithTTL(ttl time.Duration) Option { return func(c *Cache) { c.ttl = ttl } }

// WithLogger sets the logger; the default discards everything.
func WithLogger(log *zap.Logger) Option {
	return func(c *Cache) {
		if log != nil {
			c.log = log
		}
	}
}

// withClock overrides the wall clock in tests.
func withClock(now func() time.Time) Option { return func(c *Cache) { c.now = now } }

// NewCache constructs a cache over the given token accessor and decoder.
func NewCache(tokens TokensFunc, decode DecodeFunc, opts ...Option) *Cache {
	c := &Cache{
		tokens: tokens,
		decode: decode,
		ttl:    DefaultCacheTTL,
		log:    zap.NewNop(),
		now:    time.Now,
		roles:  make(map[model.Role]cacheEntry),
		perms:  make(map[Permission]cacheEntry),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// HasRole reports hierarchy-aware membership: holding a role grants every
// role it subsumes. Resolution failures deny (fail closed) without error.
func (c *Cache) HasRole(ctx context.Context, role model.Role) (bool, error) {
	c.mu.Lock()
	if e, ok := c.roles[role]; ok {
		if c.now().Before(e.expiresAt) {
			c.mu.Unlock()
			obs.CacheLookup("role", "hit")
			return e.value, nil
		}
		delete(c.roles, role)
	}
	c.mu.Unlock()
	obs.CacheLookup("role", "miss")

	held := c.resolveRoles(ctx)
	_, ok := held[role]
	c.mu.Lock()
	c.roles[role] = cacheEntry{value: ok, expiresAt: c.now().Add(c.ttl)}
	c.mu.Unlock()
	return ok, nil
}

// HasPermission resolves via the role→permission grants; the effective set
// is the union over every held role's closure, so no role can reduce
// another's grants. Resolution failures deny (fail closed) without error.
func (c *Cache) HasPermission(ctx context.Context, perm Permission) (bool, error) {
	c.mu.Lock()
	if e, ok := c.perms[perm]; ok {
		if c.now().Before(e.expiresAt) {
			c.mu.Unlock()
			obs.CacheLookup("permission", "hit")
			return e.value, nil
		}
		delete(c.perms, perm)
	}
	c.mu.Unlock()
	obs.CacheLookup("permission", "miss")

	held := c.resolveRoles(ctx)
	ok := false
	for r := range held {
		for _, p := range rolePerms[r] {
			if p == perm {
				ok = true
				break
			}
		}
		if ok {
			break
		}
	}
	c.mu.Lock()
	c.perms[perm] = cacheEntry{value: ok, expiresAt: c.now().Add(c.ttl)}
	c.mu.Unlock()
	return ok, nil
}

// RequireRole is HasRole with fail-fast semantics.
func (c *Cache) RequireRole(ctx context.Context, role model.Role) error {
	ok, err := c.HasRole(ctx, role)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", errs.ErrInsufficientRole, role)
	}
	return nil
}

// RequirePermission is HasPermission with fail-fast semantics.
func (c *Cache) RequirePermission(ctx context.Context, perm Permission) error {
	ok, err := c.HasPermission(ctx, perm)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", errs.ErrPermissionDenied, perm)
	}
	return nil
}

// HasOrgRole reports organization-scoped role membership. The resolution
// source (local claim vs. backend lookup) is an unresolved extension point;
// until one is chosen this always denies.
func (c *Cache) HasOrgRole(_ context.Context, _ string, _ model.Role) (bool, error) {
	return false, nil
}

// InvalidateCache drops both caches. Must run on every token change.
func (c *Cache) InvalidateCache() {
	c.mu.Lock()
	c.roles = make(map[model.Role]cacheEntry)
	c.perms = make(map[Permission]cacheEntry)
	c.mu.Unlock()
}

// resolveRoles returns the closure of roles held by the current token. Any
// failure resolves to no roles.
func (c *Cache) resolveRoles(ctx context.Context) map[model.Role]struct{} {
	held := make(map[model.Role]struct{})
	t, err := c.tokens(ctx)
	if err != nil {
		c.log.Warn("token read failed, denying", zap.Error(err))
		return held
	}
	if t == nil {
		return held
	}
	u, err := c.decode(t.IDToken)
	if err != nil {
		c.log.Warn("claims decode failed, denying", zap.Error(err))
		return held
	}
	for _, r := range u.Roles {
		for sub := range roleClosure[r] {
			held[sub] = struct{}{}
		}
	}
	return held
}
