package cli

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/randalmurphal/conductor/internal/client"
)

// newMemberCmd creates the member command group.
func newMemberCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "member",
		Aliases: []string{"members"},
		Short:   "Manage team members (agent personas)",
	}
	cmd.AddCommand(newMemberListCmd())
	cmd.AddCommand(newMemberCreateCmd())
	cmd.AddCommand(newMemberArchiveCmd())
	cmd.AddCommand(newMemberDeleteCmd())
	cmd.AddCommand(newMemberResetCmd())
	return cmd
}

func newMemberListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List team members",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(serverURL)
			members, err := c.ListMembers(cmd.Context(), projectID)
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(members)
			}
			rows := make([]table.Row, 0, len(members))
			for _, m := range members {
				kind := ""
				if m.Builtin {
					kind = "builtin"
				}
				rows = append(rows, table.Row{shortID(m.ID), m.Name, m.Role, m.Mode, m.Status, kind})
			}
			renderTable(table.Row{"ID", "Name", "Role", "Mode", "Status", ""}, rows)
			return nil
		},
	}
}

func newMemberCreateCmd() *cobra.Command {
	var (
		role string
		mode string
	)
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a team member",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if projectID == "" {
				return fmt.Errorf("--project is required")
			}
			c := client.New(serverURL)
			req := map[string]any{
				"project_id": projectID,
				"name":       args[0],
			}
			if role != "" {
				req["role"] = role
			}
			if mode != "" {
				req["mode"] = mode
			}
			m, err := c.CreateMember(cmd.Context(), req)
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(m)
			}
			fmt.Printf("Created member %s (%s)\n", m.Name, m.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&role, "role", "", "member role description")
	cmd.Flags().StringVar(&mode, "mode", "", "execute or coordinate")
	return cmd
}

func newMemberArchiveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "archive <id>",
		Short: "Archive a team member",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(serverURL)
			m, err := c.ArchiveMember(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("Archived %s\n", m.Name)
			return nil
		},
	}
}

func newMemberDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an archived team member",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(serverURL)
			if err := c.DeleteMember(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Println("Deleted", args[0])
			return nil
		},
	}
}

func newMemberResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset <id>",
		Short: "Restore a builtin member to its defaults",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(serverURL)
			m, err := c.ResetMember(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("Reset %s to defaults\n", m.Name)
			return nil
		},
	}
}
