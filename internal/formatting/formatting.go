// Package formatting renders projects, tasks, and authentication status
// for the CLI. Tables are used for lists, plain text for single records.
package formatting

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"ticktick-mcp/internal/oauth"
	"ticktick-mcp/internal/ticktick"
)

// Options configures rendering.
type Options struct {
	// Color enables ANSI colors. Off for non-TTY output.
	Color bool
}

func (o Options) sprint(c text.Color, s string) string {
	if !o.Color {
		return s
	}
	return c.Sprint(s)
}

// RenderProjects writes a project list table.
func RenderProjects(w io.Writer, projects []ticktick.Project, opts Options) {
	if len(projects) == 0 {
		fmt.Fprintln(w, "No projects found.")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{
		opts.sprint(text.FgHiCyan, "ID"),
		opts.sprint(text.FgHiCyan, "NAME"),
		opts.sprint(text.FgHiCyan, "VIEW"),
		opts.sprint(text.FgHiCyan, "CLOSED"),
	})
	for _, p := range projects {
		view := p.ViewMode
		if view == "" {
			view = "list"
		}
		closed := ""
		if p.Closed {
			closed = "yes"
		}
		t.AppendRow(table.Row{p.ID, p.Name, view, closed})
	}
	t.Render()
	fmt.Fprintf(w, "%d projects\n", len(projects))
}

// RenderTasks writes a task list table.
func RenderTasks(w io.Writer, tasks []ticktick.Task, opts Options) {
	if len(tasks) == 0 {
		fmt.Fprintln(w, "No tasks found.")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{
		opts.sprint(text.FgHiCyan, "ID"),
		opts.sprint(text.FgHiCyan, "TITLE"),
		opts.sprint(text.FgHiCyan, "PRIORITY"),
		opts.sprint(text.FgHiCyan, "DUE"),
		opts.sprint(text.FgHiCyan, "STATUS"),
	})
	for _, task := range tasks {
		status := "open"
		if task.Completed() {
			status = "done"
		}
		t.AppendRow(table.Row{
			task.ID,
			truncate(task.Title, 50),
			ticktick.PriorityName(task.Priority),
			task.DueDate,
			status,
		})
	}
	t.Render()
	fmt.Fprintf(w, "%d tasks\n", len(tasks))
}

// RenderTaskDetail writes one task with its content and subtasks.
func RenderTaskDetail(w io.Writer, task *ticktick.Task, opts Options) {
	fmt.Fprintf(w, "%s %s\n", opts.sprint(text.FgHiWhite, "Task:"), task.Title)
	fmt.Fprintf(w, "  ID:       %s\n", task.ID)
	fmt.Fprintf(w, "  Project:  %s\n", task.ProjectID)
	fmt.Fprintf(w, "  Priority: %s\n", ticktick.PriorityName(task.Priority))
	if task.DueDate != "" {
		fmt.Fprintf(w, "  Due:      %s\n", task.DueDate)
	}
	if task.Completed() {
		fmt.Fprintf(w, "  Status:   %s\n", opts.sprint(text.FgGreen, "done"))
	} else {
		fmt.Fprintf(w, "  Status:   open\n")
	}
	if task.Content != "" {
		fmt.Fprintf(w, "\n%s\n", task.Content)
	}
	if len(task.Items) > 0 {
		fmt.Fprintf(w, "\n  Subtasks:\n")
		for _, item := range task.Items {
			mark := "[ ]"
			if item.Status == ticktick.StatusCompleted {
				mark = "[x]"
			}
			fmt.Fprintf(w, "    %s %s\n", mark, item.Title)
		}
	}
}

// RenderStatus writes the authentication status summary.
func RenderStatus(w io.Writer, status oauth.Status, opts Options) {
	switch status.State {
	case oauth.StateAuthenticated:
		fmt.Fprintf(w, "%s authenticated (%s)\n", opts.sprint(text.FgGreen, "●"), status.AccountName)
		if !status.ExpiresAt.IsZero() {
			remaining := time.Until(status.ExpiresAt).Round(time.Second)
			if remaining > 0 {
				fmt.Fprintf(w, "  access token expires in %s\n", remaining)
			} else {
				fmt.Fprintf(w, "  access token expired %s ago\n", -remaining)
			}
		}
		if status.Refreshable {
			fmt.Fprintln(w, "  refresh token present")
		} else {
			fmt.Fprintln(w, "  no refresh token; re-authentication needed at expiry")
		}
	case oauth.StatePendingAuthorization:
		fmt.Fprintf(w, "%s authorization pending\n", opts.sprint(text.FgYellow, "●"))
		fmt.Fprintln(w, "  complete the flow in the browser, or paste the code with: ticktick-mcp auth login --manual")
	default:
		fmt.Fprintf(w, "%s not authenticated\n", opts.sprint(text.FgRed, "●"))
		fmt.Fprintln(w, "  run: ticktick-mcp auth login")
	}

	if status.LastError != "" {
		fmt.Fprintf(w, "  last error: %s\n", status.LastError)
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return strings.TrimSpace(s[:max-1]) + "…"
}
