package oauth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
)

// stateByteLength is the number of random bytes in a state parameter.
// 32 bytes = 256 bits of entropy, well above the 128-bit minimum
// recommended for anti-forgery tokens.
const stateByteLength = 32

// GenerateState generates a random state parameter for OAuth.
// The state binds the provider's callback to the request that initiated
// it and defends against cross-request forgery.
func GenerateState() (string, error) {
	b := make([]byte, stateByteLength)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// BuildAuthorizationURL constructs the browser-facing authorization URL
// for the given region and returns it together with the fresh state value
// embedded in it. The redirect URI must match, byte for byte, the URI
// registered with the provider and the one later sent on the token
// exchange.
func BuildAuthorizationURL(account AccountType, clientID, redirectURI string) (string, string, error) {
	if clientID == "" {
		return "", "", &ConfigError{Field: "client_id", Reason: "must not be empty"}
	}
	if redirectURI == "" {
		return "", "", &ConfigError{Field: "redirect_uri", Reason: "must not be empty"}
	}

	ep, err := EndpointsFor(account)
	if err != nil {
		return "", "", err
	}
	return buildAuthorizationURL(ep, clientID, redirectURI)
}

// buildAuthorizationURL is the endpoint-parameterized form used by the
// manager, which may carry an endpoint override.
func buildAuthorizationURL(ep Endpoints, clientID, redirectURI string) (string, string, error) {
	if clientID == "" {
		return "", "", &ConfigError{Field: "client_id", Reason: "must not be empty"}
	}
	if redirectURI == "" {
		return "", "", &ConfigError{Field: "redirect_uri", Reason: "must not be empty"}
	}

	state, err := GenerateState()
	if err != nil {
		return "", "", err
	}

	params := url.Values{}
	params.Set("client_id", clientID)
	params.Set("redirect_uri", redirectURI)
	params.Set("response_type", "code")
	params.Set("scope", strings.Join(Scopes, " "))
	params.Set("state", state)

	return ep.AuthURL + "?" + params.Encode(), state, nil
}
