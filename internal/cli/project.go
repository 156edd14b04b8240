package cli

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/randalmurphal/conductor/internal/client"
)

// newProjectCmd creates the project command group.
func newProjectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "project",
		Aliases: []string{"projects"},
		Short:   "Manage projects",
	}
	cmd.AddCommand(newProjectListCmd())
	cmd.AddCommand(newProjectCreateCmd())
	cmd.AddCommand(newProjectDeleteCmd())
	return cmd
}

func newProjectListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(serverURL)
			projects, err := c.ListProjects(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(projects)
			}
			if len(projects) == 0 {
				fmt.Println("No projects. Create one with: conductor project create <name> <dir>")
				return nil
			}
			rows := make([]table.Row, 0, len(projects))
			for _, p := range projects {
				rows = append(rows, table.Row{shortID(p.ID), p.Name, p.WorkDir, p.CreatedAt.Format("2006-01-02")})
			}
			renderTable(table.Row{"ID", "Name", "Work Dir", "Created"}, rows)
			return nil
		},
	}
}

func newProjectCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create <name> <work-dir>",
		Short: "Register a project",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(serverURL)
			p, err := c.CreateProject(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(p)
			}
			fmt.Printf("Created project %s (%s)\n", p.Name, p.ID)
			return nil
		},
	}
}

func newProjectDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a project and everything it owns",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(serverURL)
			if err := c.DeleteProject(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Println("Deleted", args[0])
			return nil
		},
	}
}
