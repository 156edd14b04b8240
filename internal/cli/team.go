package cli

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/randalmurphal/conductor/internal/client"
)

// newTeamCmd creates the team command group.
func newTeamCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "team",
		Aliases: []string{"teams"},
		Short:   "Manage teams",
	}
	cmd.AddCommand(newTeamListCmd())
	cmd.AddCommand(newTeamCreateCmd())
	cmd.AddCommand(newTeamArchiveCmd())
	cmd.AddCommand(newTeamDeleteCmd())
	return cmd
}

func newTeamListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List teams",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(serverURL)
			teams, err := c.ListTeams(cmd.Context(), projectID)
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(teams)
			}
			rows := make([]table.Row, 0, len(teams))
			for _, t := range teams {
				rows = append(rows, table.Row{
					shortID(t.ID), t.Name, shortID(t.LeaderID),
					len(t.MemberIDs), len(t.SubTeamIDs), t.Status,
				})
			}
			renderTable(table.Row{"ID", "Name", "Leader", "Members", "Sub-teams", "Status"}, rows)
			return nil
		},
	}
}

func newTeamCreateCmd() *cobra.Command {
	var (
		leaderID  string
		memberIDs []string
	)
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a team",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if projectID == "" {
				return fmt.Errorf("--project is required")
			}
			c := client.New(serverURL)
			t, err := c.CreateTeam(cmd.Context(), map[string]any{
				"project_id": projectID,
				"name":       args[0],
				"leader_id":  leaderID,
				"member_ids": memberIDs,
			})
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(t)
			}
			fmt.Printf("Created team %s (%s)\n", t.Name, t.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&leaderID, "leader", "", "leader member id (must be in --members)")
	cmd.Flags().StringSliceVar(&memberIDs, "members", nil, "member ids")
	return cmd
}

func newTeamArchiveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "archive <id>",
		Short: "Archive a team",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(serverURL)
			t, err := c.ArchiveTeam(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("Archived %s\n", t.Name)
			return nil
		},
	}
}

func newTeamDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an archived team",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(serverURL)
			if err := c.DeleteTeam(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Println("Deleted", args[0])
			return nil
		},
	}
}
