package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"3tcapital/saftprocessor/internal/infrastructure/config"
	appctx "3tcapital/saftprocessor/internal/infrastructure/context"
	"3tcapital/saftprocessor/internal/infrastructure/database"
	"3tcapital/saftprocessor/internal/infrastructure/logger"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "saftprocessor: %v\n", err)
		os.Exit(1)
	}
}

// env is resolved once per invocation before any subcommand runs.
type env struct {
	cfg config.AppConfig
	log *slog.Logger
}

func newRootCommand() *cobra.Command {
	e := &env{}
	root := &cobra.Command{
		Use:           "saftprocessor",
		Short:         "Ingests SAF-T invoice and credit-note files from SFTP into PostgreSQL",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			e.cfg = cfg
			e.log = logger.New(logger.Options{
				AppName:     cfg.App.Name,
				Level:       cfg.Log.Level,
				Environment: cfg.App.Environment,
			})
			return nil
		},
	}

	root.AddCommand(
		newServeCommand(e),
		newRunOnceCommand(e),
		newOpenGCsCommand(e),
		newMigrateCommand(e),
	)
	return root
}

func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}

func newRunOnceCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "run-once",
		Short: "Run one ingestion cycle synchronously and print the JSON report",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCycleCommand(cmd, e, (*app).runIngestion)
		},
	}
}

func newOpenGCsCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "opengcs",
		Short: "Run one OpenGCs snapshot cycle synchronously and print the JSON report",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCycleCommand(cmd, e, (*app).runOpenGCs)
		},
	}
}

// runCycleCommand writes the report to stdout; logs go to stderr.
func runCycleCommand(cmd *cobra.Command, e *env, run func(*app, context.Context) (any, error)) error {
	ctx, stop := signalContext(cmd)
	defer stop()

	a, err := newApp(ctx, e.cfg, e.log)
	if err != nil {
		return err
	}
	defer a.Close()

	runID := uuid.NewString()
	ctx = appctx.WithCorrelationID(ctx, runID)
	e.log.Info("Synchronous cycle started", "correlation_id", runID, "command", cmd.Name())

	report, err := run(a, ctx)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

func newMigrateCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded SQL migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext(cmd)
			defer stop()

			pool, err := database.NewPool(ctx, databaseConfig(e.cfg.Database))
			if err != nil {
				return fmt.Errorf("connect database: %w", err)
			}
			defer pool.Close()

			if err := database.RunMigrations(ctx, pool, e.log); err != nil {
				return err
			}
			e.log.Info("Migrations applied")
			return nil
		},
	}
}
