package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/operon-dev/operon/examples/signup"
	"github.com/operon-dev/operon/internal/journal"
	"github.com/operon-dev/operon/internal/scheduler"
	"github.com/operon-dev/operon/pkg/mcp"
	"github.com/operon-dev/operon/pkg/operation"
)

var serveSchedules []string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the catalog as MCP tools over stdio",
	Long: `Serve opens the journal, registers the built-in operations, and speaks
MCP over stdin/stdout until the client disconnects. Logs go to stderr.

Scheduled entries run catalog operations on cron expressions:

  operon serve --schedule "signup@0 3 * * *"`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger := newLogger(cfg.LogLevel)

		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}
		j, err := journal.Open("file:" + cfg.DBPath)
		if err != nil {
			return err
		}
		defer j.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := j.Migrate(ctx); err != nil {
			return err
		}

		catalog, err := buildCatalog(j, logger)
		if err != nil {
			return err
		}

		sched := scheduler.New(catalog, logger)
		for _, raw := range serveSchedules {
			entry, err := parseScheduleFlag(raw)
			if err != nil {
				return err
			}
			if err := sched.Add(entry); err != nil {
				return err
			}
		}
		if len(serveSchedules) > 0 {
			if err := sched.Start(ctx); err != nil {
				return err
			}
			defer sched.Stop()
		}

		srv := mcp.NewServer(mcp.ServerDeps{
			Catalog: catalog,
			Journal: j,
			Logger:  logger,
		})
		logger.Info("serving MCP over stdio",
			"operations", catalog.Count(), "db_path", cfg.DBPath)
		return srv.Serve(ctx)
	},
}

func init() {
	serveCmd.Flags().StringArrayVar(&serveSchedules, "schedule", nil,
		`scheduled entry as "operation@cron", repeatable`)
}

// buildCatalog registers the built-in operations with journal-backed
// recording.
func buildCatalog(j *journal.Journal, logger *slog.Logger) (*operation.Catalog, error) {
	catalog := operation.NewCatalog()
	var opts []signup.Option
	if j != nil {
		opts = append(opts, signup.WithRecorder(journal.NewRecorder(j, logger)))
	}
	if logger != nil {
		opts = append(opts, signup.WithLogger(logger))
	}
	if err := signup.Register(catalog, opts...); err != nil {
		return nil, err
	}
	return catalog, nil
}

// parseScheduleFlag splits "operation@cron" into a scheduler entry named
// after the operation.
func parseScheduleFlag(raw string) (scheduler.Entry, error) {
	op, cron, ok := strings.Cut(raw, "@")
	if !ok || op == "" || cron == "" {
		return scheduler.Entry{}, fmt.Errorf(`bad --schedule %q: want "operation@cron"`, raw)
	}
	return scheduler.Entry{Name: op, Operation: op, Cron: cron}, nil
}
