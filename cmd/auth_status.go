package cmd

import (
	"github.com/spf13/cobra"

	"ticktick-mcp/internal/formatting"
	"ticktick-mcp/internal/oauth"
)

// newAuthStatusCmd creates the command that reports the session state.
func newAuthStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the current authentication state",
		Long: `Prints whether a TickTick session exists and when the access token
expires. Exits with code 2 when not authenticated, so scripts can gate
on it.`,
		RunE: runAuthStatus,
	}
}

func runAuthStatus(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.manager.Close()

	status := a.manager.Status()
	formatting.RenderStatus(cmd.OutOrStdout(), status, outputOptions())

	if status.State != oauth.StateAuthenticated {
		return &oauth.AuthRequiredError{Reason: "no active session"}
	}
	return nil
}
