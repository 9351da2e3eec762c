// Package config loads the OAuth client configuration for the TickTick
// connection: account region, client credentials, redirect URI, and
// logging preferences.
//
// Precedence, lowest to highest: defaults, ~/.config/ticktick-mcp/
// config.yaml, environment variables (TICKTICK_*). A .env file in the
// working directory is loaded into the environment first, mirroring how
// OAuth app credentials are usually handed around during setup.
//
// The configuration is read-only input to the auth core; this package
// never stores tokens.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"ticktick-mcp/internal/oauth"
	"ticktick-mcp/pkg/logging"
)

// ConfigFileName is the name of the YAML configuration file.
const ConfigFileName = "config.yaml"

// DefaultDirName is the configuration directory relative to the user's
// home directory. It also holds the token file.
const DefaultDirName = ".config/ticktick-mcp"

// Config holds the OAuth client settings.
type Config struct {
	// AccountType selects the provider region: "china" or "global".
	AccountType string `yaml:"account_type"`

	// ClientID and ClientSecret identify the registered OAuth app.
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`

	// RedirectURI must match the URI registered with the provider.
	RedirectURI string `yaml:"redirect_uri,omitempty"`

	// CallbackTimeoutSeconds bounds the wait for the browser redirect.
	CallbackTimeoutSeconds int `yaml:"callback_timeout_seconds,omitempty"`

	// LogLevel controls log verbosity: debug, info, warn, error.
	LogLevel string `yaml:"log_level,omitempty"`
}

// Dir returns the configuration directory, creating nothing.
func Dir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, DefaultDirName), nil
}

// Path returns the configuration file path.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ConfigFileName), nil
}

// Load reads the configuration with the documented precedence. A missing
// config file is not an error; validation happens separately so status
// commands can still report "not configured" gracefully.
func Load() (*Config, error) {
	// Populate the environment from a local .env if present.
	if err := godotenv.Load(); err == nil {
		logging.Debug("Config", "loaded environment from .env")
	}

	path, err := Path()
	if err != nil {
		return nil, err
	}
	return LoadFrom(path)
}

// LoadFrom reads the configuration from an explicit file path, then
// applies environment overrides. Used directly by tests and by the
// config watcher.
func LoadFrom(path string) (*Config, error) {
	cfg := &Config{
		AccountType: "global",
		RedirectURI: oauth.DefaultRedirectURI,
		LogLevel:    "info",
	}

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if cfg.AccountType == "" {
		cfg.AccountType = "global"
	}
	if cfg.RedirectURI == "" {
		cfg.RedirectURI = oauth.DefaultRedirectURI
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TICKTICK_ACCOUNT_TYPE"); v != "" {
		cfg.AccountType = v
	}
	if v := os.Getenv("TICKTICK_CLIENT_ID"); v != "" {
		cfg.ClientID = v
	}
	if v := os.Getenv("TICKTICK_CLIENT_SECRET"); v != "" {
		cfg.ClientSecret = v
	}
	if v := os.Getenv("TICKTICK_REDIRECT_URI"); v != "" {
		cfg.RedirectURI = v
	}
	if v := os.Getenv("TICKTICK_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
}

// Validate checks that the configuration can drive an auth flow.
func (c *Config) Validate() error {
	if c.ClientID == "" {
		return &oauth.ConfigError{Field: "client_id", Reason: "must not be empty"}
	}
	if c.ClientSecret == "" {
		return &oauth.ConfigError{Field: "client_secret", Reason: "must not be empty"}
	}
	if !oauth.AccountType(c.AccountType).Valid() {
		return &oauth.ConfigError{Field: "account_type", Reason: "must be \"china\" or \"global\""}
	}
	return nil
}

// IsConfigured reports whether the config carries usable credentials.
func (c *Config) IsConfigured() bool {
	return c.Validate() == nil
}

// CallbackTimeout returns the configured callback wait as a duration,
// or zero to use the core default.
func (c *Config) CallbackTimeout() time.Duration {
	if c.CallbackTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.CallbackTimeoutSeconds) * time.Second
}

// OAuthConfig converts to the auth core's configuration.
func (c *Config) OAuthConfig() oauth.Config {
	return oauth.Config{
		ClientID:        c.ClientID,
		ClientSecret:    c.ClientSecret,
		AccountType:     oauth.AccountType(c.AccountType),
		RedirectURI:     c.RedirectURI,
		CallbackTimeout: c.CallbackTimeout(),
	}
}

// Save writes the configuration to the default path with owner-only
// permissions: the file holds the client secret.
func Save(cfg *Config) error {
	dir, err := Dir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	path := filepath.Join(dir, ConfigFileName)
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	logging.Info("Config", "configuration saved to %s", path)
	return nil
}
