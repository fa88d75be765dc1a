package app

import (
	"context"
	"fmt"
	"log/slog"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/spf13/cobra"

	"realtime-service/internal/config"
)

// NewRootCommand builds the CLI. Running it without a subcommand serves.
func NewRootCommand() *cobra.Command {
	serve := newServeCommand()
	cmd := &cobra.Command{
		Use:           "realtime-service",
		Short:         "Realtime chat, presence and notification gateway",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          serve.RunE,
	}
	cmd.AddCommand(serve, newMigrateCommand())
	return cmd
}

func newServeCommand() *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the /chat and /notify websocket namespaces",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := cfg.NewLogger()
			ctx := cmd.Context()

			if migrate {
				if err := Migrate(ctx, cfg); err != nil {
					return err
				}
			}

			a, err := New(ctx, cfg, logger)
			if err != nil {
				return err
			}

			serveErr := make(chan error, 1)
			go func() { serveErr <- a.Run() }()

			wait := gfshutdown.GracefulShutdown(context.Background(), cfg.ShutdownTimeout, map[string]gfshutdown.Operation{
				"realtime": func(ctx context.Context) error {
					logger.Info("graceful shutdown initiated")
					return a.Shutdown(ctx)
				},
			})

			return awaitShutdown(serveErr, wait, func() { _ = a.Shutdown(context.Background()) }, logger)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "Apply database migrations before serving")
	return cmd
}

// awaitShutdown blocks until the graceful shutdown reports an exit code. A
// server that stops cleanly was stopped by that shutdown, so only a serve
// failure returns early, after running abort.
func awaitShutdown(serveErr <-chan error, wait <-chan int, abort func(), logger *slog.Logger) error {
	select {
	case err := <-serveErr:
		if err != nil {
			abort()
			return fmt.Errorf("serve: %w", err)
		}
	case code := <-wait:
		return exitResult(code, logger)
	}
	return exitResult(<-wait, logger)
}

func exitResult(code int, logger *slog.Logger) error {
	logger.Info("realtime service stopped", "exit_code", code)
	if code != 0 {
		return fmt.Errorf("shutdown finished with exit code %d", code)
	}
	return nil
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			return Migrate(cmd.Context(), cfg)
		},
	}
}
