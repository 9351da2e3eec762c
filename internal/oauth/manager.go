package oauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"ticktick-mcp/pkg/logging"
)

// PendingAuthTTL is how long a started authorization stays valid before a
// manual code exchange is rejected as stale.
const PendingAuthTTL = 10 * time.Minute

// exchangeTimeout bounds every token endpoint call so network failures
// fail fast instead of hanging the caller.
const exchangeTimeout = 30 * time.Second

// Mode selects how the authorization flow captures the redirect.
type Mode string

const (
	// ModeListener spins up the local callback server in the background
	// and completes the flow automatically when the browser redirects.
	ModeListener Mode = "listener"

	// ModeManual returns the authorization URL only; the caller must
	// later supply the code via FinishAuthentication.
	ModeManual Mode = "manual"
)

// State is the session state reported by Status.
type State int

const (
	// StateUnauthenticated means no token record exists.
	StateUnauthenticated State = iota

	// StatePendingAuthorization means a flow was started and the code has
	// not been exchanged yet.
	StatePendingAuthorization

	// StateAuthenticated means a token record exists.
	StateAuthenticated
)

// String returns the string representation of the session state.
func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StatePendingAuthorization:
		return "pending_authorization"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// Config configures the session manager. It is read-only input supplied
// from the environment or config file; the manager never mutates it.
type Config struct {
	// ClientID and ClientSecret identify the registered OAuth app.
	ClientID     string
	ClientSecret string

	// AccountType selects the provider region.
	AccountType AccountType

	// RedirectURI must match the URI registered with the provider,
	// byte for byte. Defaults to http://localhost:8000/callback.
	RedirectURI string

	// CallbackTimeout is how long listener mode waits for the redirect.
	// Defaults to DefaultCallbackTimeout.
	CallbackTimeout time.Duration

	// Endpoints overrides the region defaults. Used for self-hosted
	// mirrors and provider stubs.
	Endpoints *Endpoints
}

// DefaultRedirectURI is the redirect URI used when none is configured.
const DefaultRedirectURI = "http://localhost:8000/callback"

// StartResult is returned by StartAuthentication.
type StartResult struct {
	// AuthorizationURL is the URL the user must open in a browser.
	AuthorizationURL string

	// State is the anti-forgery token embedded in the URL.
	State string

	// Listening reports whether a background callback listener was bound.
	Listening bool
}

// Status describes the current session. Produced by Manager.Status, which
// never fails.
type Status struct {
	State        State
	AccountName  string
	AccountType  AccountType
	ExpiresAt    time.Time
	Refreshable  bool
	PendingSince time.Time
	LastError    string
}

type pendingAuth struct {
	state       string
	redirectURI string
	createdAt   time.Time
	listener    *CallbackServer
	cancel      context.CancelFunc
}

func (p *pendingAuth) expired() bool {
	return time.Since(p.createdAt) > PendingAuthTTL
}

// Manager orchestrates the end-to-end authorization flow: build URL,
// capture the redirect (or accept a manual code), exchange the code for
// tokens, persist them, refresh on demand, and report status.
//
// One Manager exists per process and is passed explicitly to every
// consumer; its mutable state sits behind a single mutex. At most one
// pending authorization is tracked at a time: starting a new flow stops
// any prior callback listener and discards the prior pending state.
type Manager struct {
	mu         sync.Mutex
	cfg        Config
	endpoints  Endpoints
	store      *TokenStore
	httpClient *http.Client
	pending    *pendingAuth
	lastErr    error
}

// NewManager creates a session manager. Fails with ConfigError when the
// client credentials or account type are missing or invalid.
func NewManager(cfg Config, store *TokenStore) (*Manager, error) {
	if cfg.ClientID == "" {
		return nil, &ConfigError{Field: "client_id", Reason: "must not be empty"}
	}
	if cfg.ClientSecret == "" {
		return nil, &ConfigError{Field: "client_secret", Reason: "must not be empty"}
	}
	if cfg.RedirectURI == "" {
		cfg.RedirectURI = DefaultRedirectURI
	}
	if _, err := parseRedirectURI(cfg.RedirectURI); err != nil {
		return nil, err
	}
	if cfg.CallbackTimeout <= 0 {
		cfg.CallbackTimeout = DefaultCallbackTimeout
	}

	endpoints, err := EndpointsFor(cfg.AccountType)
	if err != nil {
		return nil, err
	}
	if cfg.Endpoints != nil {
		endpoints = *cfg.Endpoints
	}

	return &Manager{
		cfg:        cfg,
		endpoints:  endpoints,
		store:      store,
		httpClient: &http.Client{Timeout: exchangeTimeout},
	}, nil
}

// Endpoints returns the provider endpoints the manager operates against.
func (m *Manager) Endpoints() Endpoints {
	return m.endpoints
}

// Store returns the underlying token store.
func (m *Manager) Store() *TokenStore {
	return m.store
}

// StartAuthentication begins a new authorization flow and returns the
// authorization URL immediately. Any prior pending authorization is
// discarded and its listener stopped first, so a retried login can never
// fail on a port still held by the previous attempt.
//
// In ModeListener the redirect is awaited on a background goroutine that
// funnels into the same FinishAuthentication path used by manual entry;
// callers observe the outcome by polling Status. A bind failure is
// returned as PortInUseError so the caller can fall back to ModeManual.
func (m *Manager) StartAuthentication(ctx context.Context, mode Mode) (*StartResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.clearPendingLocked()
	m.lastErr = nil

	authURL, state, err := buildAuthorizationURL(m.endpoints, m.cfg.ClientID, m.cfg.RedirectURI)
	if err != nil {
		return nil, err
	}

	pending := &pendingAuth{
		state:       state,
		redirectURI: m.cfg.RedirectURI,
		createdAt:   time.Now(),
	}

	switch mode {
	case ModeManual:
		m.pending = pending
		logging.Info("OAuth", "authorization started (manual mode, account=%s)", m.cfg.AccountType)
		return &StartResult{AuthorizationURL: authURL, State: state, Listening: false}, nil

	case ModeListener:
		addr, path, err := callbackAddr(m.cfg.RedirectURI)
		if err != nil {
			return nil, err
		}

		listener := NewCallbackServer(addr, path, state)
		waitCtx, cancel := context.WithCancel(context.Background())
		if err := listener.Start(waitCtx); err != nil {
			cancel()
			return nil, err
		}

		pending.listener = listener
		pending.cancel = cancel
		m.pending = pending

		go m.awaitCallback(waitCtx, listener, m.cfg.CallbackTimeout)

		logging.Info("OAuth", "authorization started (listener mode, account=%s, callback=%s)", m.cfg.AccountType, addr)
		return &StartResult{AuthorizationURL: authURL, State: state, Listening: true}, nil

	default:
		return nil, fmt.Errorf("unknown authentication mode: %q", mode)
	}
}

// awaitCallback runs on its own goroutine in listener mode. It waits for
// the redirect and funnels the captured code through the same exchange
// path used by manual entry.
func (m *Manager) awaitCallback(ctx context.Context, listener *CallbackServer, timeout time.Duration) {
	result, err := listener.Wait(ctx, timeout)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			// The attempt was superseded or the process is shutting down.
			logging.Debug("OAuth", "callback wait cancelled")
			return
		}
		// On timeout the pending authorization stays valid: the user may
		// still hold the code and finish manually.
		m.mu.Lock()
		m.lastErr = err
		m.mu.Unlock()
		logging.Warn("OAuth", "callback wait ended without a code: %v", err)
		return
	}

	if result.IsError() {
		// The user denied consent or the provider rejected the request;
		// the flow is over.
		err := fmt.Errorf("provider returned %s: %s", result.Error, result.ErrorDescription)
		m.mu.Lock()
		m.lastErr = err
		m.clearPendingLocked()
		m.mu.Unlock()
		logging.Warn("OAuth", "authorization denied by provider: %v", err)
		return
	}

	if err := m.FinishAuthentication(context.Background(), result.Code, result.State); err != nil {
		m.mu.Lock()
		m.lastErr = err
		m.mu.Unlock()
		logging.Error("OAuth", err, "automatic code exchange failed")
	}
}

// FinishAuthentication exchanges an authorization code for tokens and
// persists the resulting record. When a pending authorization exists it
// must not be stale, and a provided state must match it exactly
// (StateMismatchError otherwise; the mismatched attempt does not consume
// the pending authorization). Without a pending authorization — e.g. a
// code pasted into a fresh process — the configured redirect URI is used.
//
// On provider rejection the stored record, if any, is left untouched and
// TokenExchangeError is returned; authorization codes are single-use and
// never retried.
func (m *Manager) FinishAuthentication(ctx context.Context, code, state string) error {
	if code == "" {
		return errors.New("authorization code must not be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	redirectURI := m.cfg.RedirectURI
	if m.pending != nil {
		if m.pending.expired() {
			m.clearPendingLocked()
			return fmt.Errorf("authorization attempt expired after %s: %w", PendingAuthTTL, ErrNoPendingAuth)
		}
		if state != "" && state != m.pending.state {
			return &StateMismatchError{}
		}
		redirectURI = m.pending.redirectURI
	} else if state != "" {
		return ErrNoPendingAuth
	}

	tok, err := m.exchangeCode(ctx, redirectURI, code)
	if err != nil {
		logging.Error("OAuth", err, "code exchange failed")
		return err
	}

	rec := &Record{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		ExpiresAt:    tok.Expiry,
		AccountType:  m.cfg.AccountType,
		CreatedAt:    time.Now(),
	}
	if err := m.store.Save(rec); err != nil {
		return err
	}

	m.clearPendingLocked()
	m.lastErr = nil
	logging.Info("OAuth", "authentication complete (account=%s)", m.cfg.AccountType)
	return nil
}

// Refresh obtains a new access token with the refresh grant and persists
// it in place. When the provider rejects the refresh token the record is
// deleted and the session drops to unauthenticated: a revoked refresh
// token is never retried. Transport failures keep the record intact and
// surface as NetworkError.
func (m *Manager) Refresh(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, err := m.store.Load()
	if err != nil {
		return err
	}
	if rec == nil {
		return &AuthRequiredError{Reason: "no stored token"}
	}
	if rec.RefreshToken == "" {
		return &NotRefreshableError{}
	}

	tok, err := m.refreshToken(ctx, rec.RefreshToken)
	if err != nil {
		var exchangeErr *TokenExchangeError
		if errors.As(err, &exchangeErr) {
			if delErr := m.store.Delete(); delErr != nil {
				logging.Error("OAuth", delErr, "failed to clear rejected token")
			}
			logging.Warn("OAuth", "refresh token rejected; stored token cleared")
		}
		return err
	}

	refreshToken := tok.RefreshToken
	if refreshToken == "" {
		refreshToken = rec.RefreshToken
	}
	updated := &Record{
		AccessToken:  tok.AccessToken,
		RefreshToken: refreshToken,
		TokenType:    tok.TokenType,
		ExpiresAt:    tok.Expiry,
		AccountType:  rec.AccountType,
		CreatedAt:    rec.CreatedAt,
	}
	if err := m.store.Save(updated); err != nil {
		return err
	}

	logging.Debug("OAuth", "access token refreshed (expires=%s)", updated.ExpiresAt.Format(time.RFC3339))
	return nil
}

// Logout deletes the stored token and discards any pending authorization.
// Idempotent.
func (m *Manager) Logout() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.clearPendingLocked()
	m.lastErr = nil
	return m.store.Delete()
}

// Status reports the current session state. It never fails and performs
// no network calls; storage errors degrade to unauthenticated with the
// error recorded in LastError.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := Status{State: StateUnauthenticated}
	if m.lastErr != nil {
		st.LastError = m.lastErr.Error()
	}

	rec, err := m.store.Load()
	if err != nil {
		st.LastError = err.Error()
		return st
	}
	if rec != nil && rec.AccessToken != "" {
		st.State = StateAuthenticated
		st.AccountType = rec.AccountType
		if ep, err := EndpointsFor(rec.AccountType); err == nil {
			st.AccountName = ep.Name
		}
		st.ExpiresAt = rec.ExpiresAt
		st.Refreshable = rec.RefreshToken != ""
		return st
	}

	if m.pending != nil && !m.pending.expired() {
		st.State = StatePendingAuthorization
		st.PendingSince = m.pending.createdAt
	}
	return st
}

// LastError returns the typed error from the most recent background flow
// failure, or nil. Status exposes the same information as a string; this
// accessor exists so callers can map the error type to an exit code.
func (m *Manager) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// Close stops any active callback listener and releases its port. Called
// on process shutdown.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clearPendingLocked()
}

// clearPendingLocked discards the pending authorization and stops its
// listener. Requires m.mu held.
func (m *Manager) clearPendingLocked() {
	if m.pending == nil {
		return
	}
	if m.pending.cancel != nil {
		m.pending.cancel()
	}
	if m.pending.listener != nil {
		m.pending.listener.Stop()
	}
	m.pending = nil
}

// oauthConfig builds the oauth2 configuration for the token endpoint.
// TickTick expects the client credentials as HTTP Basic auth.
func (m *Manager) oauthConfig(redirectURI string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     m.cfg.ClientID,
		ClientSecret: m.cfg.ClientSecret,
		RedirectURL:  redirectURI,
		Scopes:       Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   m.endpoints.AuthURL,
			TokenURL:  m.endpoints.TokenURL,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}
}

func (m *Manager) exchangeCode(ctx context.Context, redirectURI, code string) (*oauth2.Token, error) {
	ctx, cancel := context.WithTimeout(ctx, exchangeTimeout)
	defer cancel()
	ctx = context.WithValue(ctx, oauth2.HTTPClient, m.httpClient)

	// TickTick requires the scope parameter on the exchange request too.
	tok, err := m.oauthConfig(redirectURI).Exchange(ctx, code,
		oauth2.SetAuthURLParam("scope", strings.Join(Scopes, " ")))
	if err != nil {
		return nil, classifyTokenError("authorization_code", err)
	}
	return tok, nil
}

func (m *Manager) refreshToken(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	ctx, cancel := context.WithTimeout(ctx, exchangeTimeout)
	defer cancel()
	ctx = context.WithValue(ctx, oauth2.HTTPClient, m.httpClient)

	src := m.oauthConfig(m.cfg.RedirectURI).TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, classifyTokenError("refresh_token", err)
	}
	return tok, nil
}

// classifyTokenError separates provider rejections (terminal, not
// retried) from transport failures (retryable by the caller layer).
func classifyTokenError(grant string, err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return &TokenExchangeError{Grant: grant, Err: err}
	}
	return &NetworkError{Op: grant + " grant", Err: err}
}
