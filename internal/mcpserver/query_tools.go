package mcpserver

import (
	"context"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"ticktick-mcp/internal/ticktick"
)

// taskDateLayout is the date format the Open API uses on tasks.
const taskDateLayout = "2006-01-02T15:04:05Z0700"

func (s *Server) registerQueryTools() {
	queryTool := mcp.NewTool("query_tasks",
		mcp.WithDescription("Search undone tasks across all projects, optionally filtered by project, priority, or a title/content substring."),
		mcp.WithString("project_id",
			mcp.Description("Restrict the search to one project"),
		),
		mcp.WithString("priority",
			mcp.Description("Only tasks with this priority: none, low, medium, or high"),
		),
		mcp.WithString("search",
			mcp.Description("Case-insensitive substring matched against title and content"),
		),
		mcp.WithString("due_before",
			mcp.Description("Only tasks due before this date, e.g. 2026-09-05T00:00:00+0000"),
		),
		mcp.WithString("due_after",
			mcp.Description("Only tasks due after this date, e.g. 2026-09-01T00:00:00+0000"),
		),
	)
	s.mcpServer.AddTool(queryTool, s.handleQueryTasks)
}

func (s *Server) handleQueryTasks(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var priorityFilter *int
	if p := request.GetString("priority", ""); p != "" {
		priority, err := ticktick.ParsePriority(p)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		priorityFilter = &priority
	}
	search := strings.ToLower(request.GetString("search", ""))

	var dueBefore, dueAfter time.Time
	if v := request.GetString("due_before", ""); v != "" {
		parsed, err := time.Parse(taskDateLayout, v)
		if err != nil {
			return mcp.NewToolResultError("due_before must look like 2026-09-05T00:00:00+0000"), nil
		}
		dueBefore = parsed
	}
	if v := request.GetString("due_after", ""); v != "" {
		parsed, err := time.Parse(taskDateLayout, v)
		if err != nil {
			return mcp.NewToolResultError("due_after must look like 2026-09-01T00:00:00+0000"), nil
		}
		dueAfter = parsed
	}

	var projectIDs []string
	if projectID := request.GetString("project_id", ""); projectID != "" {
		projectIDs = []string{projectID}
	} else {
		projects, err := s.client.ListProjects(ctx)
		if err != nil {
			return apiError(err), nil
		}
		for _, p := range projects {
			projectIDs = append(projectIDs, p.ID)
		}
	}

	matches := []ticktick.Task{}
	for _, projectID := range projectIDs {
		data, err := s.client.GetProjectData(ctx, projectID)
		if err != nil {
			return apiError(err), nil
		}
		for _, task := range data.Tasks {
			if priorityFilter != nil && task.Priority != *priorityFilter {
				continue
			}
			if search != "" &&
				!strings.Contains(strings.ToLower(task.Title), search) &&
				!strings.Contains(strings.ToLower(task.Content), search) {
				continue
			}
			if !dueBefore.IsZero() || !dueAfter.IsZero() {
				if task.DueDate == "" {
					continue
				}
				due, err := time.Parse(taskDateLayout, task.DueDate)
				if err != nil {
					continue
				}
				if !dueBefore.IsZero() && !due.Before(dueBefore) {
					continue
				}
				if !dueAfter.IsZero() && !due.After(dueAfter) {
					continue
				}
			}
			matches = append(matches, task)
		}
	}

	return jsonResult(matches)
}
