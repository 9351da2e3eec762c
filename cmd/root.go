package cmd

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"ticktick-mcp/internal/oauth"
)

// Exit codes for CLI commands. Scripts rely on these to distinguish
// "run auth login first" from genuine failures.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, invalid arguments).
	ExitCodeError = 1
	// ExitCodeAuthRequired indicates authentication is required but not available.
	ExitCodeAuthRequired = 2
	// ExitCodeAuthFailed indicates the OAuth flow failed.
	ExitCodeAuthFailed = 3
)

// rootCmd is the base command for the ticktick-mcp application.
var rootCmd = &cobra.Command{
	Use:   "ticktick-mcp",
	Short: "TickTick task management over MCP",
	Long: `ticktick-mcp connects AI assistants and the command line to TickTick.
It manages the OAuth authentication lifecycle and exposes projects and
tasks both as MCP tools (serve) and as plain CLI commands.`,
	// SilenceUsage prevents Cobra from printing the usage message on
	// errors the application already reports itself.
	SilenceUsage: true,
}

// SetVersion sets the version for the root command. Called from main with
// the build-time version.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute is the main entry point for the CLI application.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "ticktick-mcp version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(getExitCode(err))
	}
}

// getExitCode maps error types to semantic exit codes for scripting.
func getExitCode(err error) int {
	if oauth.IsAuthRequired(err) {
		return ExitCodeAuthRequired
	}

	var exchangeErr *oauth.TokenExchangeError
	if errors.As(err, &exchangeErr) {
		return ExitCodeAuthFailed
	}
	var stateErr *oauth.StateMismatchError
	if errors.As(err, &stateErr) {
		return ExitCodeAuthFailed
	}
	var timeoutErr *oauth.CallbackTimeoutError
	if errors.As(err, &timeoutErr) {
		return ExitCodeAuthFailed
	}
	if errors.Is(err, oauth.ErrNoPendingAuth) {
		return ExitCodeAuthFailed
	}

	return ExitCodeError
}

func init() {
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newAuthCmd())
	rootCmd.AddCommand(newProjectsCmd())
	rootCmd.AddCommand(newTasksCmd())
	rootCmd.AddCommand(newSelfUpdateCmd())
}
