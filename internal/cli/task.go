package cli

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/randalmurphal/conductor/internal/client"
	"github.com/randalmurphal/conductor/internal/store"
	"github.com/randalmurphal/conductor/internal/tracker"
)

// newTaskCmd creates the task command group.
func newTaskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "task",
		Aliases: []string{"tasks"},
		Short:   "Manage tasks",
	}
	cmd.AddCommand(newTaskListCmd())
	cmd.AddCommand(newTaskCreateCmd())
	cmd.AddCommand(newTaskStatusCmd())
	cmd.AddCommand(newTaskDeleteCmd())
	cmd.AddCommand(newTaskLinkCmd())
	cmd.AddCommand(newTaskUnlinkCmd())
	cmd.AddCommand(newTaskImportCmd())
	return cmd
}

func newTaskListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(serverURL)
			tasks, err := c.ListTasks(cmd.Context(), projectID)
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(tasks)
			}
			if len(tasks) == 0 {
				fmt.Println("No tasks. Create one with: conductor task create \"Your task\"")
				return nil
			}
			rows := make([]table.Row, 0, len(tasks))
			for _, t := range tasks {
				rows = append(rows, table.Row{
					shortID(t.ID), t.Status, t.Priority,
					len(t.SessionIDs), truncate(t.Title, 50),
				})
			}
			renderTable(table.Row{"ID", "Status", "Priority", "Sessions", "Title"}, rows)
			return nil
		},
	}
}

func newTaskCreateCmd() *cobra.Command {
	var (
		description string
		priority    string
		parentID    string
	)
	cmd := &cobra.Command{
		Use:   "create <title>",
		Short: "Create a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if projectID == "" {
				return fmt.Errorf("--project is required")
			}
			c := client.New(serverURL)
			req := map[string]any{
				"project_id": projectID,
				"title":      args[0],
			}
			if description != "" {
				req["description"] = description
			}
			if priority != "" {
				req["priority"] = priority
			}
			if parentID != "" {
				req["parent_id"] = parentID
			}
			t, err := c.CreateTask(cmd.Context(), req)
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(t)
			}
			fmt.Printf("Created task %s: %s\n", t.ID, t.Title)
			return nil
		},
	}
	cmd.Flags().StringVarP(&description, "description", "d", "", "task description")
	cmd.Flags().StringVar(&priority, "priority", "", "low, medium, or high")
	cmd.Flags().StringVar(&parentID, "parent", "", "parent task id (creates a subtask)")
	return cmd
}

func newTaskStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <id> <status>",
		Short: "Set a task's status",
		Long: `Set the user-owned task status: todo, in_progress, in_review,
completed, blocked, or cancelled. Agent sessions never move this field;
their progress lives in per-session work statuses.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(serverURL)
			t, err := c.UpdateTask(cmd.Context(), args[0], map[string]any{"status": args[1]})
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(t)
			}
			fmt.Printf("%s → %s\n", t.Title, t.Status)
			return nil
		},
	}
}

func newTaskDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a task and its subtasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(serverURL)
			if err := c.DeleteTask(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Println("Deleted", args[0])
			return nil
		},
	}
}

func newTaskLinkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "link <task-id> <session-id>",
		Short: "Link a task to a session",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(serverURL)
			if err := c.LinkTask(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			fmt.Printf("Linked %s ↔ %s\n", args[0], args[1])
			return nil
		},
	}
}

func newTaskUnlinkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unlink <task-id> <session-id>",
		Short: "Remove a task ↔ session link",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(serverURL)
			if err := c.UnlinkTask(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			fmt.Printf("Unlinked %s ↔ %s\n", args[0], args[1])
			return nil
		},
	}
}

// newTaskImportCmd imports issues from the configured tracker. It
// works against the local store directly, so it runs with the server
// stopped; run it against a live server's state dir and the changes
// appear on the next client resync.
func newTaskImportCmd() *cobra.Command {
	var (
		provider string
		dryRun   bool
	)
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import issues from GitHub, GitLab, or Jira",
		Long: `Import issues from the project's issue tracker as tasks.

The provider is detected from the project's git remote, or set
explicitly with --provider (Jira always needs the explicit setting plus
tracker configuration in .conductor/config.yaml).

Re-running an import is safe: issues already imported are updated in
place, and tasks you have started are left alone.

Example:
  conductor task import -P PROJECT-ID
  conductor task import -P PROJECT-ID --provider jira --dry-run`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if projectID == "" {
				return fmt.Errorf("--project is required")
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if provider != "" {
				cfg.Tracker.Provider = provider
			}

			st, err := store.Open(cfg.StateDir, nil, nil)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			project, err := st.GetProject(projectID)
			if err != nil {
				return err
			}

			prov, err := tracker.NewProvider(project.WorkDir, cfg.Tracker)
			if err != nil {
				return err
			}

			imp := tracker.NewImporter(st, prov, projectID, dryRun, nil)
			res, err := imp.Run(cmd.Context())
			if err != nil {
				return err
			}

			if jsonOut {
				return printJSON(res)
			}
			verb := "Imported"
			if dryRun {
				verb = "Would import"
			}
			fmt.Printf("%s from %s: %d created, %d updated, %d skipped\n",
				verb, prov.Name(), res.Created, res.Updated, res.Skipped)
			for _, ie := range res.Errors {
				fmt.Printf("  %s: %v\n", ie.Key, ie.Err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&provider, "provider", "", "github, gitlab, or jira (default: auto-detect)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "preview without writing")
	return cmd
}
