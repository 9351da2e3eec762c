package oauth

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"ticktick-mcp/pkg/logging"
)

// DefaultStoreDir is the default directory for the token file,
// relative to the user's home directory.
const DefaultStoreDir = ".config/ticktick-mcp"

// tokenFileName is the name of the single token record file.
const tokenFileName = "token.json"

// Record is the persisted token record. Exactly one record exists per
// installation: it is either absent (unauthenticated) or fully populated.
//
// SECURITY: this record holds bearer credentials. The file is written
// with 0600 permissions and token values are never logged.
type Record struct {
	// AccessToken is the opaque bearer credential.
	AccessToken string `json:"access_token"`

	// RefreshToken is the refresh credential. May be empty for providers
	// that do not issue one.
	RefreshToken string `json:"refresh_token,omitempty"`

	// TokenType is typically "Bearer".
	TokenType string `json:"token_type"`

	// ExpiresAt is the absolute expiry of the access token, derived from
	// the provider's expires_in at exchange time.
	ExpiresAt time.Time `json:"expires_at"`

	// AccountType selects the API base URLs. Immutable after creation.
	AccountType AccountType `json:"account_type"`

	// CreatedAt is when the record was first written.
	CreatedAt time.Time `json:"created_at"`
}

// ExpiresWithin reports whether the access token expires within the given
// margin from now. A zero ExpiresAt means the provider reported no expiry
// and the token is treated as non-expiring.
func (r *Record) ExpiresWithin(margin time.Duration) bool {
	if r.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().Add(margin).After(r.ExpiresAt)
}

// TokenStore persists the single token record to a JSON file.
// Writes are atomic (temp file + rename) so a crash mid-write can never
// leave a half-written record behind.
type TokenStore struct {
	mu     sync.RWMutex
	path   string
	cached *Record
	loaded bool
}

// NewTokenStore creates a token store rooted at dir. If dir is empty the
// default under the user's home directory is used. The directory is
// created with owner-only permissions.
func NewTokenStore(dir string) (*TokenStore, error) {
	if dir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		dir = filepath.Join(homeDir, DefaultStoreDir)
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create token storage directory: %w", err)
	}

	return &TokenStore{path: filepath.Join(dir, tokenFileName)}, nil
}

// Path returns the token file path.
func (s *TokenStore) Path() string {
	return s.path
}

// Load returns the stored record, or (nil, nil) when no record exists.
// The record is cached after the first read; Save and Delete keep the
// cache consistent.
func (s *TokenStore) Load() (*Record, error) {
	s.mu.RLock()
	if s.loaded {
		rec := s.cached
		s.mu.RUnlock()
		return rec, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loaded {
		return s.cached, nil
	}

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		s.cached = nil
		s.loaded = true
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read token file: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal token file: %w", err)
	}

	s.cached = &rec
	s.loaded = true
	return &rec, nil
}

// Save atomically replaces the stored record. The record is marshalled to
// a temp file in the same directory and renamed over the target, so
// readers always observe either the previous or the new record in full.
func (s *TokenStore) Save(rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal token record: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, tokenFileName+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp token file: %w", err)
	}
	tmpName := tmp.Name()

	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to restrict token file permissions: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write token file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close token file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace token file: %w", err)
	}

	s.cached = rec
	s.loaded = true

	logging.Info("OAuth", "token stored (account=%s, expires=%s, refreshable=%t)",
		rec.AccountType, rec.ExpiresAt.Format(time.RFC3339), rec.RefreshToken != "")
	return nil
}

// Delete removes the stored record. Idempotent: deleting an absent record
// is not an error.
func (s *TokenStore) Delete() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cached = nil
	s.loaded = true

	err := os.Remove(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to delete token file: %w", err)
	}

	logging.Info("OAuth", "token deleted")
	return nil
}
