package oauth

import (
	"errors"
	"fmt"
	"time"
)

// ErrNoPendingAuth is returned by FinishAuthentication when no
// authorization flow has been started (or the previous one was consumed).
var ErrNoPendingAuth = errors.New("no pending authorization; start authentication first")

// ConfigError indicates missing or invalid OAuth configuration.
// It is fatal to any authentication attempt and is never retried.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

// PortInUseError indicates the callback listener could not bind its port.
// Callers should fall back to manual code entry instead of retrying.
type PortInUseError struct {
	Address string
	Err     error
}

func (e *PortInUseError) Error() string {
	return fmt.Sprintf("callback address %s is unavailable: %v", e.Address, e.Err)
}

func (e *PortInUseError) Unwrap() error {
	return e.Err
}

// CallbackTimeoutError indicates no redirect arrived within the wait window.
// The pending authorization stays valid, so a manual FinishAuthentication
// with a copied code is still possible.
type CallbackTimeoutError struct {
	Timeout time.Duration
}

func (e *CallbackTimeoutError) Error() string {
	return fmt.Sprintf("no authorization callback received within %s", e.Timeout)
}

// StateMismatchError indicates the anti-forgery state check failed.
// The flow must be restarted from StartAuthentication.
type StateMismatchError struct{}

func (e *StateMismatchError) Error() string {
	return "state parameter does not match the pending authorization"
}

// TokenExchangeError indicates the provider rejected a code exchange or a
// refresh grant. Authorization codes are single-use, so this is terminal
// for the current attempt.
type TokenExchangeError struct {
	Grant string // "authorization_code" or "refresh_token"
	Err   error
}

func (e *TokenExchangeError) Error() string {
	return fmt.Sprintf("provider rejected %s grant: %v", e.Grant, e.Err)
}

func (e *TokenExchangeError) Unwrap() error {
	return e.Err
}

// NotRefreshableError indicates the stored token carries no refresh token,
// so a full re-authentication is required.
type NotRefreshableError struct{}

func (e *NotRefreshableError) Error() string {
	return "stored token has no refresh token; re-authentication required"
}

// AuthRequiredError is raised by the session guard to every business
// operation when no valid or refreshable token exists. Callers must
// special-case it and prompt re-authentication rather than treat it as a
// generic API failure.
type AuthRequiredError struct {
	Reason string
	Err    error
}

func (e *AuthRequiredError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("authentication required: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("authentication required: %s", e.Reason)
}

func (e *AuthRequiredError) Unwrap() error {
	return e.Err
}

// NetworkError indicates a transport-level failure (DNS, connection reset,
// timeout) during a token endpoint call, as opposed to a provider
// rejection. The caller layer may retry once with backoff.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network failure during %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// IsAuthRequired reports whether err carries an AuthRequiredError anywhere
// in its chain.
func IsAuthRequired(err error) bool {
	var authErr *AuthRequiredError
	return errors.As(err, &authErr)
}
