// Package mcpserver exposes TickTick authentication and task management
// as MCP tools over stdio. The authentication tools drive the OAuth flow
// conversationally; the task and project tools require an authenticated
// session and tell the caller to authenticate when there is none.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"ticktick-mcp/internal/oauth"
	"ticktick-mcp/internal/ticktick"
	"ticktick-mcp/pkg/logging"
)

// Server is the MCP server for TickTick.
type Server struct {
	mcpServer *server.MCPServer
	manager   *oauth.Manager
	client    *ticktick.Client
}

// NewServer creates the MCP server and registers all tools.
func NewServer(manager *oauth.Manager, client *ticktick.Client, version string) *Server {
	mcpServer := server.NewMCPServer(
		"ticktick-mcp",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithPromptCapabilities(false),
	)

	s := &Server{
		mcpServer: mcpServer,
		manager:   manager,
		client:    client,
	}

	s.registerAuthTools()
	s.registerProjectTools()
	s.registerTaskTools()
	s.registerQueryTools()

	return s
}

// Run serves MCP over stdio until the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	logging.Info("MCPServer", "serving MCP over stdio")
	return server.ServeStdio(s.mcpServer)
}

// jsonResult marshals v as an indented JSON tool result.
func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// apiError converts a client error into a tool result. Authentication
// failures get an actionable message pointing at the auth tools instead
// of a bare API error.
func apiError(err error) *mcp.CallToolResult {
	if oauth.IsAuthRequired(err) {
		return mcp.NewToolResultError(
			"Not authenticated with TickTick. Use the start_authentication tool to begin the OAuth flow.")
	}
	return mcp.NewToolResultError(err.Error())
}
