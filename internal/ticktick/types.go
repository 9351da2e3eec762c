// Package ticktick is a minimal client for the TickTick Open API v1,
// covering projects and tasks. Every request runs through the session
// guard, so callers never see an expired access token.
package ticktick

import (
	"fmt"
	"strings"
)

// Task priority levels as the API encodes them.
const (
	PriorityNone   = 0
	PriorityLow    = 1
	PriorityMedium = 3
	PriorityHigh   = 5
)

// ParsePriority maps the human-readable priority names used on the CLI
// and MCP surface to the API's numeric encoding.
func ParsePriority(s string) (int, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return PriorityNone, nil
	case "low":
		return PriorityLow, nil
	case "medium":
		return PriorityMedium, nil
	case "high":
		return PriorityHigh, nil
	}
	return 0, fmt.Errorf("unknown priority %q: want none, low, medium, or high", s)
}

// PriorityName is the inverse of ParsePriority. Unknown values render
// numerically so nothing is silently dropped.
func PriorityName(p int) string {
	switch p {
	case PriorityNone:
		return "none"
	case PriorityLow:
		return "low"
	case PriorityMedium:
		return "medium"
	case PriorityHigh:
		return "high"
	}
	return fmt.Sprintf("priority(%d)", p)
}

// Task status values.
const (
	StatusNormal    = 0
	StatusCompleted = 2
)

// Project is a TickTick project (task list).
type Project struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Color     string `json:"color,omitempty"`
	SortOrder int64  `json:"sortOrder,omitempty"`
	Closed    bool   `json:"closed,omitempty"`
	GroupID   string `json:"groupId,omitempty"`
	ViewMode  string `json:"viewMode,omitempty"`
	Kind      string `json:"kind,omitempty"`
}

// Column is a kanban column within a project.
type Column struct {
	ID        string `json:"id"`
	ProjectID string `json:"projectId"`
	Name      string `json:"name"`
	SortOrder int64  `json:"sortOrder,omitempty"`
}

// ChecklistItem is a subtask of a task.
type ChecklistItem struct {
	ID            string `json:"id,omitempty"`
	Title         string `json:"title"`
	Status        int    `json:"status,omitempty"`
	CompletedTime string `json:"completedTime,omitempty"`
	IsAllDay      bool   `json:"isAllDay,omitempty"`
	SortOrder     int64  `json:"sortOrder,omitempty"`
	StartDate     string `json:"startDate,omitempty"`
	TimeZone      string `json:"timeZone,omitempty"`
}

// Task is a TickTick task. Dates use the API's "2006-01-02T15:04:05-0700"
// format and are kept as strings; the client does not interpret them.
type Task struct {
	ID            string          `json:"id,omitempty"`
	ProjectID     string          `json:"projectId"`
	Title         string          `json:"title"`
	Content       string          `json:"content,omitempty"`
	Desc          string          `json:"desc,omitempty"`
	IsAllDay      bool            `json:"isAllDay,omitempty"`
	StartDate     string          `json:"startDate,omitempty"`
	DueDate       string          `json:"dueDate,omitempty"`
	TimeZone      string          `json:"timeZone,omitempty"`
	Reminders     []string        `json:"reminders,omitempty"`
	RepeatFlag    string          `json:"repeatFlag,omitempty"`
	Priority      int             `json:"priority,omitempty"`
	Status        int             `json:"status,omitempty"`
	CompletedTime string          `json:"completedTime,omitempty"`
	SortOrder     int64           `json:"sortOrder,omitempty"`
	Items         []ChecklistItem `json:"items,omitempty"`
}

// Completed reports whether the task is done.
func (t *Task) Completed() bool {
	return t.Status == StatusCompleted
}

// ProjectData is a project with its undone tasks and columns, as returned
// by the project data endpoint.
type ProjectData struct {
	Project Project  `json:"project"`
	Tasks   []Task   `json:"tasks"`
	Columns []Column `json:"columns"`
}
