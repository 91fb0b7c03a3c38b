// Package model defines domain values shared by the credential lifecycle components.
package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
)

// AuthTokens is one authenticated session's token set. ExpiresIn is relative
// to IssuedAt, which is captured locally when the set is obtained; absolute
// expiry is always recomputed so a persisted set tolerates clock differences
// between loads.
type AuthTokens struct {
	AccessToken  string
	IDToken      string
	RefreshToken string
	ExpiresIn    int64 // seconds from issuance
	IssuedAt     time.Time
}

// ExpiresAt returns the absolute expiry instant.
func (t AuthTokens) ExpiresAt() time.Time {
	return t.IssuedAt.Add(time.Duration(t.ExpiresIn) * time.Second)
}

// RefreshAt returns the instant a proactive refresh becomes due.
func (t AuthTokens) RefreshAt(margin time.Duration) time.Time {
	return t.ExpiresAt().Add(-margin)
}

// Expired reports whether the set is past expiry at the given instant.
// Zero or negative ExpiresIn counts as already expired.
func (t AuthTokens) Expired(now time.Time) bool {
	if t.ExpiresIn <= 0 {
		return true
	}
	return !now.Before(t.ExpiresAt())
}

// AuthStatus tags the authentication state.
type AuthStatus int

const (
	// StatusUnauthenticated means no session is held.
	StatusUnauthenticated AuthStatus = iota
	// StatusAuthenticated means a valid token set is held.
	StatusAuthenticated
	// StatusRefreshing marks the transient window while a refresh is in
	// flight; consumers that do not care may treat it as Authenticated.
	StatusRefreshing
)

// String returns the status name.
func (s AuthStatus) String() string {
	switch s {
	case StatusAuthenticated:
		return "authenticated"
	case StatusRefreshing:
		return "refreshing"
	default:
		return "unauthenticated"
	}
}

// AuthState is the tagged union published on every authentication
// transition. Exactly one status holds at any instant; User and Tokens are
// only meaningful for Authenticated and Refreshing.
type AuthState struct {
	Status AuthStatus
	User   User
	Tokens *AuthTokens
}

// Role is a validated role name decoded from token claims.
type Role string

// Known roles. Unknown group strings are rejected at the decode boundary
// rather than passed through.
const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleEditor  Role = "editor"
	RoleViewer  Role = "viewer"
)

// ParseRole validates a raw group string against the known roles.
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleAdmin, RoleManager, RoleEditor, RoleViewer:
		return r, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// User is the identity extracted from an ID token.
type User struct {
	ID    uuid.UUID
	Email string
	Roles []Role
}
