package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"ticktick-mcp/internal/formatting"
	"ticktick-mcp/internal/ticktick"
)

// newTasksCmd creates the parent command for task operations.
func newTasksCmd() *cobra.Command {
	tasksCmd := &cobra.Command{
		Use:   "tasks",
		Short: "Manage TickTick tasks",
	}

	tasksCmd.AddCommand(newTasksListCmd())
	tasksCmd.AddCommand(newTasksShowCmd())
	tasksCmd.AddCommand(newTasksCreateCmd())
	tasksCmd.AddCommand(newTasksCompleteCmd())
	tasksCmd.AddCommand(newTasksDeleteCmd())

	return tasksCmd
}

func newTasksListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list [project-id]",
		Short: "List undone tasks, either everywhere or in one project",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.manager.Close()

			var projectIDs []string
			if len(args) == 1 {
				projectIDs = args
			} else {
				projects, err := a.client.ListProjects(cmd.Context())
				if err != nil {
					return err
				}
				for _, p := range projects {
					projectIDs = append(projectIDs, p.ID)
				}
			}

			var tasks []ticktick.Task
			for _, projectID := range projectIDs {
				data, err := a.client.GetProjectData(cmd.Context(), projectID)
				if err != nil {
					return err
				}
				tasks = append(tasks, data.Tasks...)
			}

			formatting.RenderTasks(cmd.OutOrStdout(), tasks, outputOptions())
			return nil
		},
	}
}

func newTasksShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <project-id> <task-id>",
		Short: "Show one task with its notes and subtasks",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.manager.Close()

			task, err := a.client.GetTask(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			formatting.RenderTaskDetail(cmd.OutOrStdout(), task, outputOptions())
			return nil
		},
	}
}

func newTasksCreateCmd() *cobra.Command {
	var content, priority, startDate, dueDate string
	var allDay bool

	createCmd := &cobra.Command{
		Use:   "create <project-id> <title>",
		Short: "Create a task",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := ticktick.ParsePriority(priority)
			if err != nil {
				return err
			}

			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.manager.Close()

			created, err := a.client.CreateTask(cmd.Context(), &ticktick.Task{
				ProjectID: args[0],
				Title:     args[1],
				Content:   content,
				Priority:  p,
				StartDate: startDate,
				DueDate:   dueDate,
				IsAllDay:  allDay,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created task %q (%s)\n", created.Title, created.ID)
			return nil
		},
	}

	createCmd.Flags().StringVar(&content, "content", "", "free-form task notes")
	createCmd.Flags().StringVar(&priority, "priority", "none", "priority: none, low, medium, or high")
	createCmd.Flags().StringVar(&startDate, "start", "", "start date, e.g. 2026-09-05T09:00:00+0000")
	createCmd.Flags().StringVar(&dueDate, "due", "", "due date, e.g. 2026-09-05T09:00:00+0000")
	createCmd.Flags().BoolVar(&allDay, "all-day", false, "mark as an all-day task")

	return createCmd
}

func newTasksCompleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "complete <project-id> <task-id>",
		Short: "Mark a task as done",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.manager.Close()

			if err := a.client.CompleteTask(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Completed task %s\n", args[1])
			return nil
		},
	}
}

func newTasksDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <project-id> <task-id>",
		Short: "Delete a task",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.manager.Close()

			if err := a.client.DeleteTask(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted task %s\n", args[1])
			return nil
		},
	}
}
