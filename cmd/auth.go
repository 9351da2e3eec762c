package cmd

import (
	"github.com/spf13/cobra"
)

// newAuthCmd creates the parent command for authentication subcommands.
func newAuthCmd() *cobra.Command {
	authCmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage TickTick authentication",
		Long: `Manage the OAuth session with TickTick.

Exit codes:
  0  success
  1  general error
  2  authentication required
  3  authentication flow failed`,
	}

	authCmd.AddCommand(newAuthLoginCmd())
	authCmd.AddCommand(newAuthStatusCmd())
	authCmd.AddCommand(newAuthLogoutCmd())

	return authCmd
}
