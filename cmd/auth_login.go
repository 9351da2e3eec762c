package cmd

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"ticktick-mcp/internal/config"
	"ticktick-mcp/internal/formatting"
	"ticktick-mcp/internal/oauth"
)

// newAuthLoginCmd creates the command that runs the OAuth login flow.
func newAuthLoginCmd() *cobra.Command {
	var manual bool

	loginCmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate with TickTick",
		Long: `Starts the OAuth flow. By default a local callback listener is bound
and the flow completes automatically once access is approved in the
browser. With --manual (or when the callback port is taken) the code
must be pasted from the redirect URL instead.

On first use, missing client credentials are prompted for and saved to
the configuration file. Register an OAuth app at
https://developer.ticktick.com to obtain them.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuthLogin(cmd, manual)
		},
	}

	loginCmd.Flags().BoolVar(&manual, "manual", false, "paste the authorization code instead of using the callback listener")

	return loginCmd
}

func runAuthLogin(cmd *cobra.Command, manual bool) error {
	if err := ensureConfigured(cmd); err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.manager.Close()

	if manual {
		return manualLogin(cmd, a)
	}

	err = listenerLogin(cmd, a)
	var portErr *oauth.PortInUseError
	if errors.As(err, &portErr) {
		fmt.Fprintf(cmd.OutOrStdout(), "Callback port unavailable (%v); falling back to manual entry.\n", portErr)
		return manualLogin(cmd, a)
	}
	return err
}

// ensureConfigured prompts for and saves client credentials when none are
// configured yet. Non-interactive invocations fail with the ConfigError.
func ensureConfigured(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.IsConfigured() {
		return nil
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return cfg.Validate()
	}

	fmt.Fprintln(cmd.OutOrStdout(), "No TickTick credentials configured yet.")
	fmt.Fprintln(cmd.OutOrStdout(), "Register an OAuth app at https://developer.ticktick.com and enter its credentials.")

	rl, err := readline.New("> ")
	if err != nil {
		return fmt.Errorf("failed to open prompt: %w", err)
	}
	defer rl.Close()

	if cfg.ClientID == "" {
		rl.SetPrompt("Client ID: ")
		line, err := rl.Readline()
		if err != nil {
			return fmt.Errorf("aborted: %w", err)
		}
		cfg.ClientID = strings.TrimSpace(line)
	}
	if cfg.ClientSecret == "" {
		secret, err := rl.ReadPassword("Client secret: ")
		if err != nil {
			return fmt.Errorf("aborted: %w", err)
		}
		cfg.ClientSecret = strings.TrimSpace(string(secret))
	}
	if !oauth.AccountType(cfg.AccountType).Valid() {
		rl.SetPrompt("Account region (global/china) [global]: ")
		line, err := rl.Readline()
		if err != nil {
			return fmt.Errorf("aborted: %w", err)
		}
		if region := strings.TrimSpace(line); region != "" {
			cfg.AccountType = region
		} else {
			cfg.AccountType = "global"
		}
	}

	if err := cfg.Validate(); err != nil {
		return err
	}
	return config.Save(cfg)
}

// listenerLogin runs the automatic flow: bind the callback listener, hand
// the URL to the user, and poll until the background exchange finishes.
func listenerLogin(cmd *cobra.Command, a *app) error {
	result, err := a.manager.StartAuthentication(cmd.Context(), oauth.ModeListener)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Open this URL in your browser and approve access:")
	fmt.Fprintf(out, "\n  %s\n\n", result.AuthorizationURL)

	timeout := a.cfg.CallbackTimeout()
	if timeout <= 0 {
		timeout = oauth.DefaultCallbackTimeout
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(cmd.ErrOrStderr()))
	s.Suffix = " Waiting for authorization in the browser..."
	s.Start()

	deadline := time.Now().Add(timeout + 2*time.Second)
	for time.Now().Before(deadline) {
		select {
		case <-cmd.Context().Done():
			s.Stop()
			return cmd.Context().Err()
		case <-time.After(300 * time.Millisecond):
		}

		status := a.manager.Status()
		if status.State == oauth.StateAuthenticated {
			s.Stop()
			fmt.Fprintln(out, "Authentication complete.")
			formatting.RenderStatus(out, status, outputOptions())
			return nil
		}
		if lastErr := a.manager.LastError(); lastErr != nil {
			var timeoutErr *oauth.CallbackTimeoutError
			if errors.As(lastErr, &timeoutErr) {
				// The pending authorization is still valid; offer the
				// manual path before giving up.
				s.Stop()
				fmt.Fprintln(out, "No callback received. If you already approved access, paste the code from the redirect URL.")
				return manualFinish(cmd, a)
			}
			s.Stop()
			return lastErr
		}
	}

	s.Stop()
	return &oauth.CallbackTimeoutError{Timeout: timeout}
}

// manualLogin runs the paste-the-code flow.
func manualLogin(cmd *cobra.Command, a *app) error {
	result, err := a.manager.StartAuthentication(cmd.Context(), oauth.ModeManual)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Open this URL in your browser and approve access:")
	fmt.Fprintf(out, "\n  %s\n\n", result.AuthorizationURL)
	fmt.Fprintln(out, "After approving you will be redirected to a URL containing a code parameter.")

	return manualFinish(cmd, a)
}

// manualFinish prompts for the pasted code (or full redirect URL) and
// completes the exchange.
func manualFinish(cmd *cobra.Command, a *app) error {
	rl, err := readline.New("Paste the code or full redirect URL: ")
	if err != nil {
		return fmt.Errorf("failed to open prompt: %w", err)
	}
	defer rl.Close()

	line, err := rl.Readline()
	if err != nil {
		return fmt.Errorf("aborted: %w", err)
	}

	code, state := parsePastedCode(line)
	if code == "" {
		return fmt.Errorf("no authorization code provided")
	}

	if err := a.manager.FinishAuthentication(cmd.Context(), code, state); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Authentication complete.")
	formatting.RenderStatus(out, a.manager.Status(), outputOptions())
	return nil
}

// parsePastedCode accepts either a bare authorization code or the full
// redirect URL and extracts code and state.
func parsePastedCode(input string) (code, state string) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", ""
	}
	if strings.Contains(input, "://") {
		if u, err := url.Parse(input); err == nil {
			q := u.Query()
			return q.Get("code"), q.Get("state")
		}
	}
	return input, ""
}
