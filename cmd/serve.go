package cmd

import (
	"github.com/spf13/cobra"

	"ticktick-mcp/internal/config"
	"ticktick-mcp/internal/mcpserver"
	"ticktick-mcp/pkg/logging"
)

// newServeCmd creates the command that runs the MCP stdio server.
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the TickTick MCP server on stdio",
		Long: `Serves MCP over stdio for AI assistant integrations. All logging
goes to stderr; stdout carries only the JSON-RPC stream.

The configuration file is watched while serving, so changed credentials
are noticed without a restart (they apply to the next authentication).`,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.manager.Close()

	// Watch the config file so operators see credential edits picked up
	// in the logs. A changed client id only affects flows started after
	// the reload; the running manager keeps its wiring.
	if path, err := config.Path(); err == nil {
		watcher := config.NewWatcher(path, func(cfg *config.Config) {
			logging.InitForCLI(logging.ParseLevel(cfg.LogLevel), cmd.ErrOrStderr())
			if err := cfg.Validate(); err != nil {
				logging.Warn("Serve", "reloaded configuration is invalid: %v", err)
				return
			}
			logging.Info("Serve", "configuration reloaded; new credentials apply to the next authentication")
		})
		if err := watcher.Start(); err != nil {
			logging.Warn("Serve", "config watching disabled: %v", err)
		} else {
			defer watcher.Stop()
		}
	}

	server := mcpserver.NewServer(a.manager, a.client, GetVersion())
	return server.Run(cmd.Context())
}
