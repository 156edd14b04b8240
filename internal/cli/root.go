// Package cli implements the conductor command-line interface.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/randalmurphal/conductor/internal/config"
)

var (
	cfgFile   string
	serverURL string
	projectID string
	verbose   bool
	jsonOut   bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "conductor",
	Short: "Orchestrate AI coding agent sessions",
	Long: `conductor manages tasks, agent sessions, and the links between them.

A session is one agent working one or more tasks. Sessions report
progress back to conductor; every change fans out live over WebSocket
to connected clients.

Quick start:
  conductor serve                         Start the server
  conductor project create "My app" .    Register a project
  conductor task create "Fix the bug"    Create a task
  conductor session spawn TASK-ID        Put an agent on it
  conductor watch                        Follow everything live`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .conductor/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:9171", "conductor server URL")
	rootCmd.PersistentFlags().StringVarP(&projectID, "project", "P", "", "scope commands to one project")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "output as JSON")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newProjectCmd())
	rootCmd.AddCommand(newTaskCmd())
	rootCmd.AddCommand(newSessionCmd())
	rootCmd.AddCommand(newMemberCmd())
	rootCmd.AddCommand(newTeamCmd())
	rootCmd.AddCommand(newEventsCmd())
	rootCmd.AddCommand(newWatchCmd())
	rootCmd.AddCommand(newVersionCmd())
}

// loadConfig loads the file named by --config, falling back to
// defaults when no config file exists.
func loadConfig() (*config.Config, error) {
	return config.Load(cfgFile)
}
