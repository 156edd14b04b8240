package cli

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/randalmurphal/conductor/internal/client"
)

// newEventsCmd creates the events command.
func newEventsCmd() *cobra.Command {
	var (
		typePrefix string
		limit      int
	)
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Query the persisted event log",
		Long: `Query the server's durable event log, newest first.

Example:
  conductor events                         # Last 50 events
  conductor events --type task:            # Task events only
  conductor events -P PROJECT-ID --limit 200`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(serverURL)
			records, err := c.ListEvents(cmd.Context(), projectID, typePrefix, limit)
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(records)
			}
			if len(records) == 0 {
				fmt.Println("No events recorded.")
				return nil
			}
			rows := make([]table.Row, 0, len(records))
			for _, rec := range records {
				rows = append(rows, table.Row{
					rec.CreatedAt.Format("2006-01-02 15:04:05"),
					rec.EventType,
					shortID(rec.ProjectID),
					truncate(string(rec.Data), 60),
				})
			}
			renderTable(table.Row{"Time", "Event", "Project", "Data"}, rows)
			return nil
		},
	}
	cmd.Flags().StringVar(&typePrefix, "type", "", "event type prefix filter (e.g. task:, session:)")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum events to return")
	return cmd
}
