package cmd

import (
	"os"

	"golang.org/x/term"

	"ticktick-mcp/internal/config"
	"ticktick-mcp/internal/formatting"
	"ticktick-mcp/internal/oauth"
	"ticktick-mcp/internal/ticktick"
	"ticktick-mcp/pkg/logging"
)

// app bundles the wired components every command needs.
type app struct {
	cfg     *config.Config
	manager *oauth.Manager
	client  *ticktick.Client
}

// newApp loads the configuration, initializes logging, and wires the
// session manager and API client. Fails with ConfigError when the
// credentials are missing or invalid.
func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logging.InitForCLI(logging.ParseLevel(cfg.LogLevel), os.Stderr)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	store, err := oauth.NewTokenStore("")
	if err != nil {
		return nil, err
	}
	manager, err := oauth.NewManager(cfg.OAuthConfig(), store)
	if err != nil {
		return nil, err
	}
	client := ticktick.NewClient(oauth.NewSessionGuard(manager), manager.Endpoints().APIBaseURL)

	return &app{cfg: cfg, manager: manager, client: client}, nil
}

// outputOptions returns rendering options for the current terminal.
func outputOptions() formatting.Options {
	return formatting.Options{
		Color: term.IsTerminal(int(os.Stdout.Fd())),
	}
}
