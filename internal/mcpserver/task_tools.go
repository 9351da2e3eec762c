package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"ticktick-mcp/internal/ticktick"
)

func (s *Server) registerTaskTools() {
	createTool := mcp.NewTool("create_task",
		mcp.WithDescription("Create a task in a TickTick project."),
		mcp.WithString("project_id",
			mcp.Required(),
			mcp.Description("The project to create the task in"),
		),
		mcp.WithString("title",
			mcp.Required(),
			mcp.Description("The task title"),
		),
		mcp.WithString("content",
			mcp.Description("Free-form task notes"),
		),
		mcp.WithString("priority",
			mcp.Description("Task priority: none, low, medium, or high"),
		),
		mcp.WithString("start_date",
			mcp.Description("Start date in the format 2026-09-05T09:00:00+0000"),
		),
		mcp.WithString("due_date",
			mcp.Description("Due date in the format 2026-09-05T09:00:00+0000"),
		),
		mcp.WithBoolean("is_all_day",
			mcp.Description("Whether the task is an all-day task"),
		),
	)
	s.mcpServer.AddTool(createTool, s.handleCreateTask)

	updateTool := mcp.NewTool("update_task",
		mcp.WithDescription("Update fields of an existing task. Only the provided fields change."),
		mcp.WithString("project_id",
			mcp.Required(),
			mcp.Description("The project the task belongs to"),
		),
		mcp.WithString("task_id",
			mcp.Required(),
			mcp.Description("The task id"),
		),
		mcp.WithString("title",
			mcp.Description("New title"),
		),
		mcp.WithString("content",
			mcp.Description("New notes"),
		),
		mcp.WithString("priority",
			mcp.Description("New priority: none, low, medium, or high"),
		),
		mcp.WithString("due_date",
			mcp.Description("New due date in the format 2026-09-05T09:00:00+0000"),
		),
	)
	s.mcpServer.AddTool(updateTool, s.handleUpdateTask)

	completeTool := mcp.NewTool("complete_task",
		mcp.WithDescription("Mark a task as done."),
		mcp.WithString("project_id",
			mcp.Required(),
			mcp.Description("The project the task belongs to"),
		),
		mcp.WithString("task_id",
			mcp.Required(),
			mcp.Description("The task id"),
		),
	)
	s.mcpServer.AddTool(completeTool, s.handleCompleteTask)

	deleteTool := mcp.NewTool("delete_task",
		mcp.WithDescription("Delete a task. This cannot be undone."),
		mcp.WithString("project_id",
			mcp.Required(),
			mcp.Description("The project the task belongs to"),
		),
		mcp.WithString("task_id",
			mcp.Required(),
			mcp.Description("The task id"),
		),
	)
	s.mcpServer.AddTool(deleteTool, s.handleDeleteTask)

	subtaskTool := mcp.NewTool("create_subtask",
		mcp.WithDescription("Add a checklist subtask to an existing task."),
		mcp.WithString("project_id",
			mcp.Required(),
			mcp.Description("The project the parent task belongs to"),
		),
		mcp.WithString("task_id",
			mcp.Required(),
			mcp.Description("The parent task id"),
		),
		mcp.WithString("title",
			mcp.Required(),
			mcp.Description("The subtask title"),
		),
	)
	s.mcpServer.AddTool(subtaskTool, s.handleCreateSubtask)
}

// requireTaskRef extracts the project_id/task_id pair common to most
// task tools.
func requireTaskRef(request mcp.CallToolRequest) (projectID, taskID string, errResult *mcp.CallToolResult) {
	projectID, err := request.RequireString("project_id")
	if err != nil {
		return "", "", mcp.NewToolResultError("project_id argument is required")
	}
	taskID, err = request.RequireString("task_id")
	if err != nil {
		return "", "", mcp.NewToolResultError("task_id argument is required")
	}
	return projectID, taskID, nil
}

func (s *Server) handleCreateTask(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectID, err := request.RequireString("project_id")
	if err != nil {
		return mcp.NewToolResultError("project_id argument is required"), nil
	}
	title, err := request.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError("title argument is required"), nil
	}

	priority, err := ticktick.ParsePriority(request.GetString("priority", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	task := &ticktick.Task{
		ProjectID: projectID,
		Title:     title,
		Content:   request.GetString("content", ""),
		Priority:  priority,
		StartDate: request.GetString("start_date", ""),
		DueDate:   request.GetString("due_date", ""),
		IsAllDay:  request.GetBool("is_all_day", false),
	}

	created, err := s.client.CreateTask(ctx, task)
	if err != nil {
		return apiError(err), nil
	}
	return jsonResult(created)
}

func (s *Server) handleUpdateTask(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectID, taskID, errResult := requireTaskRef(request)
	if errResult != nil {
		return errResult, nil
	}

	// Fetch first so unspecified fields keep their current values.
	task, err := s.client.GetTask(ctx, projectID, taskID)
	if err != nil {
		return apiError(err), nil
	}

	if title := request.GetString("title", ""); title != "" {
		task.Title = title
	}
	if content := request.GetString("content", ""); content != "" {
		task.Content = content
	}
	if due := request.GetString("due_date", ""); due != "" {
		task.DueDate = due
	}
	if p := request.GetString("priority", ""); p != "" {
		priority, err := ticktick.ParsePriority(p)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		task.Priority = priority
	}

	updated, err := s.client.UpdateTask(ctx, task)
	if err != nil {
		return apiError(err), nil
	}
	return jsonResult(updated)
}

func (s *Server) handleCompleteTask(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectID, taskID, errResult := requireTaskRef(request)
	if errResult != nil {
		return errResult, nil
	}

	if err := s.client.CompleteTask(ctx, projectID, taskID); err != nil {
		return apiError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Task %s completed.", taskID)), nil
}

func (s *Server) handleDeleteTask(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectID, taskID, errResult := requireTaskRef(request)
	if errResult != nil {
		return errResult, nil
	}

	if err := s.client.DeleteTask(ctx, projectID, taskID); err != nil {
		return apiError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Task %s deleted.", taskID)), nil
}

func (s *Server) handleCreateSubtask(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectID, taskID, errResult := requireTaskRef(request)
	if errResult != nil {
		return errResult, nil
	}
	title, err := request.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError("title argument is required"), nil
	}

	task, err := s.client.GetTask(ctx, projectID, taskID)
	if err != nil {
		return apiError(err), nil
	}

	task.Items = append(task.Items, ticktick.ChecklistItem{Title: title})

	updated, err := s.client.UpdateTask(ctx, task)
	if err != nil {
		return apiError(err), nil
	}
	return jsonResult(updated)
}
