package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"ticktick-mcp/internal/oauth"
)

func (s *Server) registerAuthTools() {
	statusTool := mcp.NewTool("ticktick_status",
		mcp.WithDescription("Report the current TickTick authentication state: authenticated, pending authorization, or unauthenticated. Never fails and performs no network calls."),
	)
	s.mcpServer.AddTool(statusTool, s.handleStatus)

	startTool := mcp.NewTool("start_authentication",
		mcp.WithDescription("Begin the TickTick OAuth flow. Returns an authorization URL the user must open in a browser. When a local callback listener can be bound the flow completes automatically after the user approves; otherwise pass the redirected code to finish_authentication."),
	)
	s.mcpServer.AddTool(startTool, s.handleStartAuthentication)

	finishTool := mcp.NewTool("finish_authentication",
		mcp.WithDescription("Complete the OAuth flow with an authorization code copied from the provider redirect. Only needed when the automatic callback listener could not be used."),
		mcp.WithString("code",
			mcp.Required(),
			mcp.Description("The authorization code from the redirect URL's code parameter"),
		),
		mcp.WithString("state",
			mcp.Description("The state parameter from the redirect URL, if present"),
		),
	)
	s.mcpServer.AddTool(finishTool, s.handleFinishAuthentication)

	logoutTool := mcp.NewTool("logout",
		mcp.WithDescription("Delete the stored TickTick token and discard any pending authorization. Idempotent."),
	)
	s.mcpServer.AddTool(logoutTool, s.handleLogout)
}

type statusPayload struct {
	State       string `json:"state"`
	Account     string `json:"account,omitempty"`
	ExpiresAt   string `json:"expires_at,omitempty"`
	Refreshable bool   `json:"refreshable,omitempty"`
	LastError   string `json:"last_error,omitempty"`
	Hint        string `json:"hint,omitempty"`
}

func (s *Server) handleStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status := s.manager.Status()

	payload := statusPayload{
		State:     status.State.String(),
		LastError: status.LastError,
	}
	switch status.State {
	case oauth.StateAuthenticated:
		payload.Account = status.AccountName
		if !status.ExpiresAt.IsZero() {
			payload.ExpiresAt = status.ExpiresAt.Format(time.RFC3339)
		}
		payload.Refreshable = status.Refreshable
	case oauth.StatePendingAuthorization:
		payload.Hint = "Waiting for the user to approve in the browser, or pass the code to finish_authentication."
	default:
		payload.Hint = "Use start_authentication to begin the OAuth flow."
	}

	return jsonResult(payload)
}

type startPayload struct {
	AuthorizationURL string `json:"authorization_url"`
	Listening        bool   `json:"listening"`
	Instructions     string `json:"instructions"`
}

func (s *Server) handleStartAuthentication(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := s.manager.StartAuthentication(ctx, oauth.ModeListener)

	var portErr *oauth.PortInUseError
	if errors.As(err, &portErr) {
		// The registered redirect port is taken; fall back to manual entry.
		result, err = s.manager.StartAuthentication(ctx, oauth.ModeManual)
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to start authentication: %v", err)), nil
	}

	payload := startPayload{
		AuthorizationURL: result.AuthorizationURL,
		Listening:        result.Listening,
	}
	if result.Listening {
		payload.Instructions = "Ask the user to open the authorization URL in a browser and approve access. The flow completes automatically; check ticktick_status afterwards."
	} else {
		payload.Instructions = "Ask the user to open the authorization URL, approve access, and paste the code parameter from the redirect URL into finish_authentication."
	}

	return jsonResult(payload)
}

func (s *Server) handleFinishAuthentication(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	code, err := request.RequireString("code")
	if err != nil {
		return mcp.NewToolResultError("code argument is required"), nil
	}
	state := request.GetString("state", "")

	if err := s.manager.FinishAuthentication(ctx, code, state); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Authentication failed: %v", err)), nil
	}

	return mcp.NewToolResultText("Authentication complete. TickTick tools are now available."), nil
}

func (s *Server) handleLogout(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.manager.Logout(); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Logout failed: %v", err)), nil
	}
	return mcp.NewToolResultText("Logged out. The stored token was deleted."), nil
}
