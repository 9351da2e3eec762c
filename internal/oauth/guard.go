package oauth

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"

	"ticktick-mcp/pkg/logging"
)

// RefreshMargin is the safety window before expiry inside which the guard
// refreshes proactively, so in-flight API calls never race token expiry.
const RefreshMargin = 60 * time.Second

// SessionGuard is the single choke point between business operations and
// the remote API. Every remote call passes through WithSession, which
// blocks unauthenticated calls and refreshes near-expiry tokens before
// they can turn into confusing downstream 401s.
type SessionGuard struct {
	manager *Manager
	store   *TokenStore
	group   singleflight.Group
	margin  time.Duration
}

// NewSessionGuard creates a guard over the manager's token store.
func NewSessionGuard(manager *Manager) *SessionGuard {
	return &SessionGuard{
		manager: manager,
		store:   manager.Store(),
		margin:  RefreshMargin,
	}
}

// WithSession invokes op with a valid bearer token, or fails with
// AuthRequiredError when no valid or refreshable token exists. The
// operation's own result passes through unchanged.
//
// Concurrent callers hitting the expiry window share a single refresh via
// singleflight: duplicate refresh-token use can trigger provider-side
// invalidation, so at most one refresh request is ever in flight.
func (g *SessionGuard) WithSession(ctx context.Context, op func(ctx context.Context, accessToken string) error) error {
	rec, err := g.store.Load()
	if err != nil {
		return err
	}
	if rec == nil {
		return &AuthRequiredError{Reason: "no stored token; run start_authentication"}
	}

	if rec.ExpiresWithin(g.margin) {
		logging.Debug("OAuth", "token expires within %s; refreshing before call", g.margin)
		if _, err, _ := g.group.Do("refresh", func() (interface{}, error) {
			// Re-check inside the flight: a caller that raced past the
			// expiry check after another flight finished must not issue a
			// second refresh against an already-fresh token.
			if cur, err := g.store.Load(); err == nil && cur != nil && !cur.ExpiresWithin(g.margin) {
				return nil, nil
			}
			return nil, g.manager.Refresh(ctx)
		}); err != nil {
			return &AuthRequiredError{Reason: "token refresh failed", Err: err}
		}

		rec, err = g.store.Load()
		if err != nil {
			return err
		}
		if rec == nil {
			return &AuthRequiredError{Reason: "token cleared during refresh"}
		}
	}

	return op(ctx, rec.AccessToken)
}
