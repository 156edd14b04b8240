package cli

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/randalmurphal/conductor/internal/client"
)

// newSessionCmd creates the session command group.
func newSessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "session",
		Aliases: []string{"sessions"},
		Short:   "Manage agent sessions",
	}
	cmd.AddCommand(newSessionListCmd())
	cmd.AddCommand(newSessionSpawnCmd())
	cmd.AddCommand(newSessionStopCmd())
	cmd.AddCommand(newSessionPromptCmd())
	cmd.AddCommand(newSessionCheckCmd())
	return cmd
}

func newSessionListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(serverURL)
			sessions, err := c.ListSessions(cmd.Context(), projectID)
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(sessions)
			}
			if len(sessions) == 0 {
				fmt.Println("No sessions. Start one with: conductor session spawn <task-id>")
				return nil
			}
			rows := make([]table.Row, 0, len(sessions))
			for _, s := range sessions {
				needsInput := ""
				if s.NeedsInput.Active {
					needsInput = "yes"
				}
				tasks := make([]string, 0, len(s.TaskIDs))
				for _, id := range s.TaskIDs {
					tasks = append(tasks, shortID(id))
				}
				rows = append(rows, table.Row{
					shortID(s.ID), s.Status, needsInput,
					strings.Join(tasks, ","), s.CreatedAt.Format("15:04:05"),
				})
			}
			renderTable(table.Row{"ID", "Status", "Needs Input", "Tasks", "Started"}, rows)
			return nil
		},
	}
}

func newSessionSpawnCmd() *cobra.Command {
	var (
		memberID   string
		directives []string
	)
	cmd := &cobra.Command{
		Use:   "spawn <task-id> [task-id...]",
		Short: "Spawn an agent session for one or more tasks",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if projectID == "" {
				return fmt.Errorf("--project is required")
			}
			c := client.New(serverURL)
			s, err := c.Spawn(cmd.Context(), projectID, args, memberID, directives...)
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(s)
			}
			fmt.Printf("Spawned session %s (%s) on %d task(s)\n", s.ID, s.Status, len(s.TaskIDs))
			return nil
		},
	}
	cmd.Flags().StringVar(&memberID, "member", "", "team member to run as (default: the project's builtin worker)")
	cmd.Flags().StringArrayVar(&directives, "directive", nil, "instruction frozen into the session manifest (repeatable)")
	return cmd
}

func newSessionStopCmd() *cobra.Command {
	var message string
	cmd := &cobra.Command{
		Use:   "stop <session-id>",
		Short: "Stop a running session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(serverURL)
			s, err := c.Stop(cmd.Context(), args[0], message)
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(s)
			}
			fmt.Printf("Session %s → %s\n", shortID(s.ID), s.Status)
			return nil
		},
	}
	cmd.Flags().StringVarP(&message, "message", "m", "", "reason recorded on the session timeline")
	return cmd
}

func newSessionCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <session-id> <command...>",
		Short: "Check a command against the session's permission policy",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(serverURL)
			d, err := c.CheckCommand(cmd.Context(), args[0], strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(d)
			}
			verdict := "denied"
			if d.Allowed {
				verdict = "allowed"
			}
			if d.Rule != "" {
				fmt.Printf("%s (rule: %s)\n", verdict, d.Rule)
			} else {
				fmt.Printf("%s (default)\n", verdict)
			}
			return nil
		},
	}
}

func newSessionPromptCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prompt <session-id> <message>",
		Short: "Answer a session that is waiting for input",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(serverURL)
			s, err := c.Prompt(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(s)
			}
			fmt.Printf("Prompt delivered to %s\n", shortID(s.ID))
			return nil
		},
	}
}
