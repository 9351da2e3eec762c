package oauth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startTestCallbackServer(t *testing.T, expectedState string) (*CallbackServer, string) {
	t.Helper()

	srv := NewCallbackServer("127.0.0.1:0", "/callback", expectedState)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, srv.Start(ctx))
	t.Cleanup(srv.Stop)

	return srv, "http://" + srv.Addr()
}

func get(t *testing.T, url string) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestCallbackServer_CapturesMatchingCallback(t *testing.T) {
	srv, base := startTestCallbackServer(t, "expected-state")

	resp := get(t, base+"/callback?code=abc123&state=expected-state")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "Authentication complete")

	result, err := srv.Wait(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, "abc123", result.Code)
	assert.Equal(t, "expected-state", result.State)
	assert.False(t, result.IsError())
}

func TestCallbackServer_IgnoresMismatchedState(t *testing.T) {
	srv, base := startTestCallbackServer(t, "expected-state")

	// A forged or replayed callback must not be treated as success.
	resp := get(t, base+"/callback?code=evil&state=wrong-state")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// The listener is still waiting: the genuine redirect is accepted.
	resp = get(t, base+"/callback?code=good&state=expected-state")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	result, err := srv.Wait(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, "good", result.Code)
}

func TestCallbackServer_IgnoresMissingCode(t *testing.T) {
	_, base := startTestCallbackServer(t, "expected-state")

	resp := get(t, base+"/callback?state=expected-state")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCallbackServer_UnmatchedPathKeepsWaiting(t *testing.T) {
	srv, base := startTestCallbackServer(t, "expected-state")

	resp := get(t, base+"/favicon.ico")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = get(t, base+"/callback?code=abc&state=expected-state")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	result, err := srv.Wait(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, "abc", result.Code)
}

func TestCallbackServer_ProviderErrorShortCircuits(t *testing.T) {
	srv, base := startTestCallbackServer(t, "expected-state")

	resp := get(t, base+"/callback?error=access_denied&error_description=user+cancelled")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	result, err := srv.Wait(context.Background(), time.Second)
	require.NoError(t, err)
	assert.True(t, result.IsError())
	assert.Equal(t, "access_denied", result.Error)
	assert.Equal(t, "user cancelled", result.ErrorDescription)
}

func TestCallbackServer_SecondCallbackRejected(t *testing.T) {
	srv, base := startTestCallbackServer(t, "expected-state")

	resp := get(t, base+"/callback?code=first&state=expected-state")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	result, err := srv.Wait(context.Background(), time.Second)
	require.NoError(t, err)
	require.Equal(t, "first", result.Code)

	resp = get(t, base+"/callback?code=second&state=expected-state")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCallbackServer_TimeoutReleasesPort(t *testing.T) {
	srv, _ := startTestCallbackServer(t, "expected-state")
	addr := srv.Addr()

	_, err := srv.Wait(context.Background(), 200*time.Millisecond)
	var timeoutErr *CallbackTimeoutError
	require.True(t, errors.As(err, &timeoutErr), "expected CallbackTimeoutError, got %v", err)

	// The port must be rebindable immediately after the timeout.
	require.Eventually(t, func() bool {
		l, err := net.Listen("tcp", addr)
		if err != nil {
			return false
		}
		l.Close()
		return true
	}, 2*time.Second, 50*time.Millisecond)
}

func TestCallbackServer_PortInUse(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()

	srv := NewCallbackServer(l.Addr().String(), "/callback", "state")
	err = srv.Start(context.Background())

	var portErr *PortInUseError
	require.True(t, errors.As(err, &portErr), "expected PortInUseError, got %v", err)
	assert.Contains(t, portErr.Error(), fmt.Sprint(l.Addr().(*net.TCPAddr).Port))
}

func TestCallbackServer_ContextCancelStops(t *testing.T) {
	srv := NewCallbackServer("127.0.0.1:0", "/callback", "state")
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, srv.Start(ctx))
	addr := srv.Addr()

	cancel()

	require.Eventually(t, func() bool {
		l, err := net.Listen("tcp", addr)
		if err != nil {
			return false
		}
		l.Close()
		return true
	}, 2*time.Second, 50*time.Millisecond)
}

func TestCallbackAddr(t *testing.T) {
	tests := []struct {
		name         string
		redirectURI  string
		expectedAddr string
		expectedPath string
		expectErr    bool
	}{
		{"default registration", "http://localhost:8000/callback", "localhost:8000", "/callback", false},
		{"custom port and path", "http://127.0.0.1:9999/oauth/done", "127.0.0.1:9999", "/oauth/done", false},
		{"no port defaults to 80", "http://localhost/callback", "localhost:80", "/callback", false},
		{"no path defaults to /callback", "http://localhost:8000", "localhost:8000", "/callback", false},
		{"empty", "", "", "", true},
		{"missing host", "not a url", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			addr, path, err := callbackAddr(tt.redirectURI)
			if tt.expectErr {
				var cfgErr *ConfigError
				require.True(t, errors.As(err, &cfgErr))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expectedAddr, addr)
			assert.Equal(t, tt.expectedPath, path)
		})
	}
}
