package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"ticktick-mcp/internal/formatting"
	"ticktick-mcp/internal/ticktick"
)

// newProjectsCmd creates the parent command for project operations.
func newProjectsCmd() *cobra.Command {
	projectsCmd := &cobra.Command{
		Use:   "projects",
		Short: "Manage TickTick projects",
	}

	projectsCmd.AddCommand(newProjectsListCmd())
	projectsCmd.AddCommand(newProjectsShowCmd())
	projectsCmd.AddCommand(newProjectsCreateCmd())
	projectsCmd.AddCommand(newProjectsDeleteCmd())

	return projectsCmd
}

func newProjectsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.manager.Close()

			projects, err := a.client.ListProjects(cmd.Context())
			if err != nil {
				return err
			}
			formatting.RenderProjects(cmd.OutOrStdout(), projects, outputOptions())
			return nil
		},
	}
}

func newProjectsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <project-id>",
		Short: "Show a project with its undone tasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.manager.Close()

			data, err := a.client.GetProjectData(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Project: %s (%s)\n\n", data.Project.Name, data.Project.ID)
			formatting.RenderTasks(out, data.Tasks, outputOptions())
			return nil
		},
	}
}

func newProjectsCreateCmd() *cobra.Command {
	var color, viewMode string

	createCmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.manager.Close()

			created, err := a.client.CreateProject(cmd.Context(), &ticktick.Project{
				Name:     args[0],
				Color:    color,
				ViewMode: viewMode,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created project %q (%s)\n", created.Name, created.ID)
			return nil
		},
	}

	createCmd.Flags().StringVar(&color, "color", "", "project color as a hex string, e.g. #F18181")
	createCmd.Flags().StringVar(&viewMode, "view", "", "view mode: list, kanban, or timeline")

	return createCmd
}

func newProjectsDeleteCmd() *cobra.Command {
	var force bool

	deleteCmd := &cobra.Command{
		Use:   "delete <project-id>",
		Short: "Delete a project and every task in it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force {
				return fmt.Errorf("deleting a project removes all of its tasks; re-run with --force to confirm")
			}

			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.manager.Close()

			if err := a.client.DeleteProject(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted project %s\n", args[0])
			return nil
		},
	}

	deleteCmd.Flags().BoolVar(&force, "force", false, "confirm the deletion")

	return deleteCmd
}
