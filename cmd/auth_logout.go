package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newAuthLogoutCmd creates the command that deletes the stored token.
func newAuthLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Delete the stored TickTick token",
		Long: `Deletes the locally stored token and discards any pending
authorization. Idempotent: logging out while logged out succeeds.`,
		RunE: runAuthLogout,
	}
}

func runAuthLogout(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.manager.Close()

	if err := a.manager.Logout(); err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
	return nil
}
