package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/conductor/internal/api"
	"github.com/randalmurphal/conductor/internal/config"
	"github.com/randalmurphal/conductor/internal/db"
	"github.com/randalmurphal/conductor/internal/events"
	"github.com/randalmurphal/conductor/internal/spawn"
	"github.com/randalmurphal/conductor/internal/store"
)

// newServeCmd creates the serve command.
func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the conductor server",
		Long: `Start the REST and WebSocket server.

The server owns the entity store: every task, session, and team change
goes through it, is persisted under the state directory, and fans out
live to WebSocket subscribers.

Example:
  conductor serve                 # Listen on the configured address
  conductor serve --addr :3000    # Listen on a custom address`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.Server.Addr, _ = cmd.Flags().GetString("addr")
			}

			logger := newLogger(cfg)
			slog.SetDefault(logger)

			eventLog, err := db.Open(db.Dialect(cfg.EventLog.Dialect), cfg.EventLogDSN())
			if err != nil {
				return fmt.Errorf("open event log: %w", err)
			}
			defer eventLog.Close()

			pub := events.NewPersistentPublisher(eventLog, "server", logger)
			defer pub.Close()

			st, err := store.Open(cfg.StateDir, pub, logger)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}

			runner := spawn.NewCommandRunner(cfg.Spawn.Command, cfg.Spawn.Args, logger)
			spawner := spawn.New(st, runner, cfg.StateDir, logger)

			server := api.New(api.Config{
				Addr:      cfg.Server.Addr,
				Store:     st,
				Publisher: pub,
				Spawner:   spawner,
				EventLog:  eventLog,
				Logger:    logger,
			})

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			fmt.Printf("conductor listening on %s (state dir %s)\n", cfg.Server.Addr, cfg.StateDir)
			fmt.Println("Press Ctrl+C to stop")
			return server.Run(ctx)
		},
	}

	cmd.Flags().String("addr", "", "listen address (overrides config)")
	return cmd
}

// newLogger builds the slog logger the configured way.
func newLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if verbose {
		opts.Level = slog.LevelDebug
	}
	var handler slog.Handler
	if cfg.Log.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}
