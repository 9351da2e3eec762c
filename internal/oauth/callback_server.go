package oauth

import (
	"context"
	_ "embed"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"ticktick-mcp/pkg/logging"
)

// DefaultCallbackTimeout is how long the listener waits for the browser
// redirect before giving up and releasing the port.
const DefaultCallbackTimeout = 5 * time.Minute

//go:embed templates/callback_success.html
var callbackSuccessHTML string

//go:embed templates/callback_error.html
var callbackErrorHTML string

// CallbackResult represents one captured OAuth redirect. It exists only
// for the duration of the callback request and is never persisted.
type CallbackResult struct {
	// Code is the authorization code from the provider.
	Code string

	// State is the state parameter echoed by the provider.
	State string

	// Error is the error code if the user denied consent or the provider
	// rejected the request.
	Error string

	// ErrorDescription is a human-readable error description.
	ErrorDescription string
}

// IsError returns true if the callback result represents a provider error.
func (r *CallbackResult) IsError() bool {
	return r.Error != ""
}

// CallbackServer is a short-lived local HTTP server that captures exactly
// one valid OAuth redirect, then shuts down. Requests on other paths get
// a 404 and the server keeps waiting; so do callbacks whose state does
// not match the pending authorization, which defends against replayed or
// cross-request redirects.
type CallbackServer struct {
	addr          string
	path          string
	expectedState string

	server   *http.Server
	listener net.Listener
	resultCh chan *CallbackResult
	errorCh  chan error
	once     sync.Once
	stopOnce sync.Once
}

// NewCallbackServer creates a callback server that binds addr (host:port)
// and accepts redirects on path. expectedState is the pending
// authorization's state; callbacks carrying any other state are ignored.
func NewCallbackServer(addr, path, expectedState string) *CallbackServer {
	if path == "" {
		path = "/callback"
	}
	return &CallbackServer{
		addr:          addr,
		path:          path,
		expectedState: expectedState,
		resultCh:      make(chan *CallbackResult, 1),
		errorCh:       make(chan error, 1),
	}
}

// Start binds the listener and begins serving. A bind failure is surfaced
// immediately as PortInUseError: it usually means a stale listener from a
// previous attempt still owns the port, and the caller should fall back
// to manual code entry rather than retry silently.
// The server stops when the context is cancelled.
func (s *CallbackServer) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return &PortInUseError{Address: s.addr, Err: err}
	}

	s.listener = listener

	mux := http.NewServeMux()
	mux.HandleFunc(s.path, s.handleCallback)

	s.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			select {
			case s.errorCh <- err:
			default:
			}
		}
	}()

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	logging.Debug("OAuth", "callback listener bound on %s%s", s.addr, s.path)
	return nil
}

// Wait blocks until a valid callback arrives, the timeout elapses, or the
// context is cancelled. On timeout the port is released and
// CallbackTimeoutError is returned; the pending authorization itself
// stays usable for a manual code exchange.
func (s *CallbackServer) Wait(ctx context.Context, timeout time.Duration) (*CallbackResult, error) {
	if timeout <= 0 {
		timeout = DefaultCallbackTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case result := <-s.resultCh:
		return result, nil
	case err := <-s.errorCh:
		s.Stop()
		return nil, err
	case <-timer.C:
		s.Stop()
		return nil, &CallbackTimeoutError{Timeout: timeout}
	case <-ctx.Done():
		s.Stop()
		return nil, ctx.Err()
	}
}

// Addr returns the bound address, useful when the configured port was 0.
func (s *CallbackServer) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

func (s *CallbackServer) handleCallback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	result := &CallbackResult{
		Code:             query.Get("code"),
		State:            query.Get("state"),
		Error:            query.Get("error"),
		ErrorDescription: query.Get("error_description"),
	}

	// Mismatched or missing state on a non-error callback is not treated
	// as success and does not consume the listener: keep waiting for the
	// genuine redirect.
	if !result.IsError() {
		if result.Code == "" || result.State != s.expectedState {
			logging.Warn("OAuth", "ignoring callback with unexpected state or missing code from %s", r.RemoteAddr)
			http.NotFound(w, r)
			return
		}
	}

	delivered := false
	s.once.Do(func() {
		delivered = true
		s.deliver(w, result)
	})

	if !delivered {
		http.Error(w, "Callback already processed", http.StatusBadRequest)
	}
}

// deliver renders the confirmation page and hands the result to the
// waiter. Called exactly once.
func (s *CallbackServer) deliver(w http.ResponseWriter, result *CallbackResult) {
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("Content-Security-Policy", "default-src 'self'; style-src 'unsafe-inline'")
	w.Header().Set("Referrer-Policy", "no-referrer")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	var tmpl *template.Template
	var data interface{}

	if result.IsError() {
		tmpl = template.Must(template.New("error").Parse(callbackErrorHTML))
		data = map[string]string{
			"Error":       result.Error,
			"Description": result.ErrorDescription,
		}
	} else {
		tmpl = template.Must(template.New("success").Parse(callbackSuccessHTML))
		data = map[string]string{}
	}

	if err := tmpl.Execute(w, data); err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}

	select {
	case s.resultCh <- result:
	default:
	}

	// Give the browser a moment to read the response before unbinding.
	go func() {
		time.Sleep(1 * time.Second)
		s.Stop()
	}()
}

// Stop shuts the server down and releases the bound port. Safe to call
// multiple times and from multiple goroutines.
func (s *CallbackServer) Stop() {
	s.stopOnce.Do(func() {
		if s.server != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = s.server.Shutdown(ctx)
		}
		if s.listener != nil {
			_ = s.listener.Close()
		}
	})
}

// callbackAddr derives the listen address and path from a redirect URI.
// The original registration is typically http://localhost:8000/callback.
func callbackAddr(redirectURI string) (addr, path string, err error) {
	u, err := parseRedirectURI(redirectURI)
	if err != nil {
		return "", "", err
	}

	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = "80"
	}
	path = u.Path
	if path == "" {
		path = "/callback"
	}
	return net.JoinHostPort(host, port), path, nil
}

func parseRedirectURI(redirectURI string) (*url.URL, error) {
	if redirectURI == "" {
		return nil, &ConfigError{Field: "redirect_uri", Reason: "must not be empty"}
	}
	u, err := url.Parse(redirectURI)
	if err != nil {
		return nil, &ConfigError{Field: "redirect_uri", Reason: fmt.Sprintf("not a valid URL: %v", err)}
	}
	if u.Hostname() == "" {
		return nil, &ConfigError{Field: "redirect_uri", Reason: "missing host"}
	}
	return u, nil
}
