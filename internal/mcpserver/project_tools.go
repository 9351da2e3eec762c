package mcpserver

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"ticktick-mcp/internal/ticktick"
)

func (s *Server) registerProjectTools() {
	listTool := mcp.NewTool("get_all_projects",
		mcp.WithDescription("List all TickTick projects visible to the authorized account."),
	)
	s.mcpServer.AddTool(listTool, s.handleGetAllProjects)

	infoTool := mcp.NewTool("get_project_info",
		mcp.WithDescription("Get one project together with its undone tasks and kanban columns."),
		mcp.WithString("project_id",
			mcp.Required(),
			mcp.Description("The project id"),
		),
	)
	s.mcpServer.AddTool(infoTool, s.handleGetProjectInfo)

	createTool := mcp.NewTool("create_project",
		mcp.WithDescription("Create a new TickTick project."),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("The project name"),
		),
		mcp.WithString("color",
			mcp.Description("Project color as a hex string, e.g. #F18181"),
		),
		mcp.WithString("view_mode",
			mcp.Description("View mode: list, kanban, or timeline (default list)"),
		),
	)
	s.mcpServer.AddTool(createTool, s.handleCreateProject)

	deleteTool := mcp.NewTool("delete_project",
		mcp.WithDescription("Delete a project and every task in it. This cannot be undone."),
		mcp.WithString("project_id",
			mcp.Required(),
			mcp.Description("The project id"),
		),
	)
	s.mcpServer.AddTool(deleteTool, s.handleDeleteProject)
}

func (s *Server) handleGetAllProjects(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projects, err := s.client.ListProjects(ctx)
	if err != nil {
		return apiError(err), nil
	}
	return jsonResult(projects)
}

func (s *Server) handleGetProjectInfo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectID, err := request.RequireString("project_id")
	if err != nil {
		return mcp.NewToolResultError("project_id argument is required"), nil
	}

	data, err := s.client.GetProjectData(ctx, projectID)
	if err != nil {
		return apiError(err), nil
	}
	return jsonResult(data)
}

func (s *Server) handleCreateProject(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := request.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError("name argument is required"), nil
	}

	project := &ticktick.Project{
		Name:     name,
		Color:    request.GetString("color", ""),
		ViewMode: request.GetString("view_mode", ""),
	}

	created, err := s.client.CreateProject(ctx, project)
	if err != nil {
		return apiError(err), nil
	}
	return jsonResult(created)
}

func (s *Server) handleDeleteProject(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectID, err := request.RequireString("project_id")
	if err != nil {
		return mcp.NewToolResultError("project_id argument is required"), nil
	}

	if err := s.client.DeleteProject(ctx, projectID); err != nil {
		return apiError(err), nil
	}
	return mcp.NewToolResultText("Project " + projectID + " deleted."), nil
}
