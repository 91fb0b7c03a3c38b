// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across the credential lifecycle.
var (
	// ErrRefreshFailed indicates the injected refresh function rejected.
	// The session is cleared; retry policy belongs to the caller.
	ErrRefreshFailed = errors.New("refresh failed")

	// ErrPermissionDenied is returned by fail-fast permission checks.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrInsufficientRole is returned by fail-fast role checks.
	ErrInsufficientRole = errors.New("insufficient role")

	// ErrStorage indicates the token store rejected a read or write.
	// Reads degrade to "no tokens available"; writes are surfaced.
	ErrStorage = errors.New("storage error")

	// ErrMalformedToken indicates claims could not be extracted from a
	// token. Authorization fails closed on it.
	ErrMalformedToken = errors.New("malformed token")

	// ErrNoSession indicates an operation required a session and none is
	// held. Queries report it as absence, not as this error; commands that
	// cannot proceed without a session wrap it.
	ErrNoSession = errors.New("no session")
)
