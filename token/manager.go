// Package token owns the current token set: persistence, proactive refresh
// scheduling, and de-duplication of concurrent refresh attempts.
package token

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nrudenko/authcore/errs"
	"github.com/nrudenko/authcore/eventbus"
	"github.com/nrudenko/authcore/model"
	"github.com/nrudenko/authcore/obs"
	"github.com/nrudenko/authcore/store"
)

// TopicAuthStateChange carries model.AuthState payloads on the event bus.
const TopicAuthStateChange = "authStateChange"

// DefaultRefreshMargin is subtracted from expiry when scheduling proactive
// refresh, absorbing network latency of the refresh call itself.
const DefaultRefreshMargin = 60 * time.Second

// RefreshFunc exchanges a refresh token for a new token set. Any error is a
// refresh failure; timeout and retry policy belong to the implementation.
type RefreshFunc func(ctx context.Context, refreshToken string) (model.AuthTokens, error)

// DecodeFunc extracts the user identity from an ID token.
type DecodeFunc func(idToken string) (model.User, error)

// refreshCall is one in-flight refresh shared by every waiter. At most one
// exists per token generation.
type refreshCall struct {
	done   chan struct{}
	tokens *model.AuthTokens
	err    error
}

// Manager is the single owner of the in-memory token set and the only
// writer to the token store.
type Manager struct {
	store   store.TokenStore
	refresh RefreshFunc
	decode  DecodeFunc
	bus     *eventbus.Bus
	log     *zap.Logger
	margin  time.Duration
	now     func() time.Time

	mu       sync.Mutex
	tokens   *model.AuthTokens
	user     model.User
	gen      uint64 // bumped on every token set change
	inflight *refreshCall
	timer    *time.Timer
	auto     bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithBus publishes auth state changes to bus.
func WithBus(bus *eventbus.Bus) Option { return func(m *Manager) { m.bus = bus } }

// WithLogger sets the logger; the default discards everything.
func WithLogger(log *zap.Logger) Option {
	return func(m *Manager) {
		if log != nil {
			m.log = log
		}
	}
}

// WithRefreshMargin overrides DefaultRefreshMargin.
func WithRefreshMargin(margin time.Duration) Option {
	return func(m *Manager) { m.margin = margin }
}

// WithDecode derives the user identity published with Authenticated states.
func WithDecode(decode DecodeFunc) Option { return func(m *Manager) { m.decode = decode } }

// withClock overrides the wall clock in tests.
func withClock(now func() time.Time) Option { return func(m *Manager) { m.now = now } }

// NewManager constructs a manager with required dependencies.
func NewManager(st store.TokenStore, refresh RefreshFunc, opts ...Option) *Manager {
	m := &Manager{
		store:   st,
		refresh: refresh,
		log:     zap.NewNop(),
		margin:  DefaultRefreshMargin,
		now:     time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Load pulls the persisted token set into memory. A store read failure is
// treated as "no tokens available".
func (m *Manager) Load(ctx context.Context) {
	t, err := m.store.Get(ctx)
	if err != nil {
		m.log.Warn("token store read failed", zap.Error(err))
		return
	}
	if t == nil {
		return
	}
	m.mu.Lock()
	m.setLocked(*t)
	m.mu.Unlock()
}

// State returns a snapshot of the current auth state.
func (m *Manager) State() model.AuthState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stateLocked()
}

// GetTokens returns the current token set, first joining or starting the
// single in-flight refresh when the set is past its proactive refresh
// point. It never returns a set known to be expired. With no session it
// returns (nil, nil).
func (m *Manager) GetTokens(ctx context.Context) (*model.AuthTokens, error) {
	m.mu.Lock()
	if m.inflight == nil {
		if m.tokens == nil {
			m.mu.Unlock()
			return nil, nil
		}
		if m.now().Before(m.tokens.RefreshAt(m.margin)) {
			cpy := *m.tokens
			m.mu.Unlock()
			return &cpy, nil
		}
	}
	call := m.ensureRefreshLocked()
	if call == nil {
		// Stale set with no refresh token: the session is over.
		if err := m.store.Clear(ctx); err != nil {
			m.log.Warn("token store clear failed", zap.Error(err))
		}
		m.clearLocked()
		state := m.stateLocked()
		m.mu.Unlock()
		m.emitState(state)
		return nil, nil
	}
	m.mu.Unlock()

	select {
	case <-ctx.Done():
		// The flight keeps running for other waiters; only this wait ends.
		return nil, ctx.Err()
	case <-call.done:
	}
	if call.err != nil {
		return nil, call.err
	}
	cpy := *call.tokens
	return &cpy, nil
}

// SetTokens persists the set, swaps the in-memory state, reschedules the
// proactive refresh timer, and emits the Authenticated state. The persist
// completes before the event so a listener reading back synchronously
// observes the new set.
func (m *Manager) SetTokens(ctx context.Context, tokens model.AuthTokens) error {
	if tokens.IssuedAt.IsZero() {
		tokens.IssuedAt = m.now()
	}
	m.mu.Lock()
	if err := m.store.Set(ctx, tokens); err != nil {
		m.mu.Unlock()
		if !errors.Is(err, errs.ErrStorage) {
			err = fmt.Errorf("%w: %v", errs.ErrStorage, err)
		}
		return err
	}
	m.setLocked(tokens)
	state := m.stateLocked()
	m.mu.Unlock()
	m.emitState(state)
	return nil
}

// ClearTokens drops the session from the store and memory, cancels the
// refresh timer, and emits Unauthenticated. Memory is cleared even when the
// store clear fails so a broken store cannot pin a stale session.
func (m *Manager) ClearTokens(ctx context.Context) error {
	m.mu.Lock()
	storeErr := m.store.Clear(ctx)
	m.clearLocked()
	state := m.stateLocked()
	m.mu.Unlock()
	m.emitState(state)
	if storeErr != nil && !errors.Is(storeErr, errs.ErrStorage) {
		storeErr = fmt.Errorf("%w: %v", errs.ErrStorage, storeErr)
	}
	return storeErr
}

// StartAutoRefresh arms the proactive refresh timer for the current set.
// Idempotent.
func (m *Manager) StartAutoRefresh() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.auto {
		return
	}
	m.auto = true
	m.scheduleLocked()
}

// StopAutoRefresh cancels any pending timer. Idempotent and safe when none
// is scheduled.
func (m *Manager) StopAutoRefresh() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.auto = false
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

// setLocked installs a new token set: swaps state, bumps the generation,
// detaches any in-flight refresh of the old generation, and reschedules the
// timer. Caller holds m.mu.
func (m *Manager) setLocked(t model.AuthTokens) {
	cpy := t
	m.tokens = &cpy
	m.user = m.decodeUser(t.IDToken)
	m.gen++
	m.inflight = nil
	m.scheduleLocked()
}

// clearLocked drops the session, detaches any in-flight refresh, and
// cancels the timer. Caller holds m.mu.
func (m *Manager) clearLocked() {
	m.tokens = nil
	m.user = model.User{}
	m.gen++
	m.inflight = nil
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

func (m *Manager) decodeUser(idToken string) model.User {
	if m.decode == nil || idToken == "" {
		return model.User{}
	}
	u, err := m.decode(idToken)
	if err != nil {
		m.log.Warn("id token decode failed", zap.Error(err))
		return model.User{}
	}
	return u
}

func (m *Manager) stateLocked() model.AuthState {
	if m.tokens == nil {
		return model.AuthState{Status: model.StatusUnauthenticated}
	}
	cpy := *m.tokens
	return model.AuthState{Status: model.StatusAuthenticated, User: m.user, Tokens: &cpy}
}

func (m *Manager) emitState(state model.AuthState) {
	obs.SetAuthenticated(state.Status == model.StatusAuthenticated)
	if m.bus != nil {
		m.bus.Emit(TopicAuthStateChange, state)
	}
}

// scheduleLocked arms the proactive refresh timer for the current set.
// Caller holds m.mu.
func (m *Manager) scheduleLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	if !m.auto || m.tokens == nil || m.tokens.RefreshToken == "" {
		return
	}
	// Malformed expiry metadata: refresh synchronously on next access
	// instead of arming a timer in the past.
	if m.tokens.ExpiresIn <= 0 {
		return
	}
	delay := m.tokens.RefreshAt(m.margin).Sub(m.now())
	if delay < 0 {
		delay = 0
	}
	gen := m.gen
	m.timer = time.AfterFunc(delay, func() { m.timerFired(gen) })
}

// timerFired runs in the timer goroutine. A late fire (process suspend) is
// treated like a timely one: refresh unconditionally for the generation the
// timer was armed for.
func (m *Manager) timerFired(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.auto || m.gen != gen {
		return
	}
	m.ensureRefreshLocked()
}

// ensureRefreshLocked joins the in-flight refresh or starts one. Caller
// holds m.mu. Returns nil when there is nothing to refresh with.
func (m *Manager) ensureRefreshLocked() *refreshCall {
	if m.inflight != nil {
		obs.RefreshJoined()
		return m.inflight
	}
	if m.tokens == nil || m.tokens.RefreshToken == "" {
		return nil
	}
	call := &refreshCall{done: make(chan struct{})}
	m.inflight = call
	prev := m.stateLocked()
	prev.Status = model.StatusRefreshing
	go m.runRefresh(m.tokens.RefreshToken, m.gen, prev, call)
	return call
}

// runRefresh performs one refresh attempt in its own goroutine and settles
// the shared call so every waiter observes the same outcome.
func (m *Manager) runRefresh(refreshToken string, gen uint64, transient model.AuthState, call *refreshCall) {
	if m.bus != nil {
		m.bus.Emit(TopicAuthStateChange, transient)
	}
	fresh, err := m.refresh(context.Background(), refreshToken)
	if err != nil {
		m.log.Warn("token refresh failed", zap.Error(err))
		obs.RefreshFinished("failure")
		m.failRefresh(gen, call, err)
		return
	}
	if fresh.IssuedAt.IsZero() {
		fresh.IssuedAt = m.now()
	}
	obs.RefreshFinished("success")
	m.finishRefresh(gen, call, fresh)
}

// finishRefresh persists and installs the refreshed set, then settles the
// call and emits. A result for a superseded generation settles waiters but
// touches neither memory nor the store.
func (m *Manager) finishRefresh(gen uint64, call *refreshCall, fresh model.AuthTokens) {
	m.mu.Lock()
	applied := m.gen == gen
	if applied {
		if err := m.store.Set(context.Background(), fresh); err != nil {
			// The session stays alive on a failed persist; the set is valid
			// in memory and will be written again on the next change.
			m.log.Error("persist refreshed tokens failed", zap.Error(err))
		}
		m.setLocked(fresh)
	}
	if m.inflight == call {
		m.inflight = nil
	}
	state := m.stateLocked()
	m.mu.Unlock()

	// Emit before settling the call so the state change is observable
	// before any pending GetTokens resolves.
	call.tokens = &fresh
	if applied {
		m.emitState(state)
	}
	close(call.done)
}

// failRefresh clears the session: a rejected refresh means the refresh
// token itself is no longer good. No internal retry.
func (m *Manager) failRefresh(gen uint64, call *refreshCall, cause error) {
	m.mu.Lock()
	applied := m.gen == gen
	if applied {
		if err := m.store.Clear(context.Background()); err != nil {
			m.log.Warn("token store clear failed", zap.Error(err))
		}
		m.clearLocked()
	}
	if m.inflight == call {
		m.inflight = nil
	}
	state := m.stateLocked()
	m.mu.Unlock()

	call.err = fmt.Errorf("%w: %v", errs.ErrRefreshFailed, cause)
	if applied {
		m.emitState(state)
	}
	close(call.done)
}
