package cli

import (
	"github.com/spf13/cobra"

	"github.com/randalmurphal/conductor/internal/client"
	"github.com/randalmurphal/conductor/internal/tui"
)

// newWatchCmd creates the watch command.
func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Live dashboard of sessions and tasks",
		Long: `Open a terminal dashboard that follows sessions and tasks in real
time over the server's websocket feed. Scope it to one project with
--project, or watch everything.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(serverURL)
			scope := projectID
			if scope == "" {
				scope = "*"
			}
			return tui.Run(cmd.Context(), c, scope)
		},
	}
}
