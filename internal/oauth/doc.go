// Package oauth implements the authentication and session lifecycle for
// the TickTick Open API: the OAuth 2.0 authorization-code flow, an
// ephemeral local callback listener that captures the browser redirect,
// persistent token storage with refresh, and the session guard every
// remote call must pass through.
//
// # Flow
//
// Manager.StartAuthentication builds the authorization URL and, in
// listener mode, binds a short-lived local HTTP server on the redirect
// URI's port. The user opens the URL in a browser; the provider redirects
// to the listener, which hands the code back to the manager. The manager
// exchanges the code at the token endpoint, persists the record through
// TokenStore, and the session becomes authenticated. Manual mode skips
// the listener: the caller pastes the code into FinishAuthentication.
// Both paths share the same exchange logic.
//
// # Guard
//
// SessionGuard.WithSession wraps every business operation. It rejects
// unauthenticated calls with AuthRequiredError and refreshes tokens that
// are within RefreshMargin of expiry, deduplicating concurrent refreshes
// with singleflight.
//
// The package is single-tenant by design: one token record per
// installation, one pending authorization at a time, one callback
// listener process-wide.
package oauth
