// Command rapo-admin provides operational maintenance commands for the
// control engine: migrations, status inspection and cleanup.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/t3eHawk/rapo/config"
	"github.com/t3eHawk/rapo/internal/bootstrap"
	"github.com/t3eHawk/rapo/internal/data"
	"github.com/t3eHawk/rapo/internal/domain/model"
)

type commandFn func(ctx *commandContext, args []string) error

type command struct {
	name        string
	description string
	run         commandFn
}

type commandContext struct {
	Ctx    context.Context
	Logger *slog.Logger
	Config config.AppConfig
}

const defaultMigrationTimeout = 5 * time.Minute

func main() {
	logger := bootstrap.InitLogger()

	if len(os.Args) < 2 {
		if err := printUsage(); err != nil {
			logger.Error("print usage failed", "error", err)
		}
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when no command is provided
	}

	cmdName := os.Args[1]
	cmd, ok := commands()[cmdName]
	if !ok {
		if err := writef(os.Stderr, "unknown command %q\n\n", cmdName); err != nil {
			logger.Error("print unknown command message failed", "error", err)
		}
		if err := printUsage(); err != nil {
			logger.Error("print usage failed", "error", err)
		}
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when command is unknown
	}

	cfg, warnings, err := bootstrap.LoadConfig()
	if err != nil {
		logger.ErrorContext(context.Background(), "load config", "error", err)
		os.Exit(1) //nolint:forbidigo // CLI must signal configuration load failure to shell scripts
	}
	for _, warning := range warnings {
		logger.Warn(warning)
	}

	cmdCtx := &commandContext{
		Ctx:    context.Background(),
		Logger: logger,
		Config: cfg,
	}
	if runErr := cmd.run(cmdCtx, os.Args[2:]); runErr != nil {
		logger.ErrorContext(cmdCtx.Ctx, "command failed", "command", cmdName, "error", runErr)
		os.Exit(1) //nolint:forbidigo // CLI must propagate command execution failure to callers
	}
}

func commands() map[string]command {
	return map[string]command{
		"migrate": {
			name:        "migrate",
			description: "Run database migrations",
			run:         runMigrateCommand,
		},
		"status": {
			name:        "status",
			description: "Show scheduler and web API owner records plus live runs",
			run:         runStatusCommand,
		},
		"release-scheduler": {
			name:        "release-scheduler",
			description: "Clear the scheduler owner record, stopping a running scheduler",
			run:         runReleaseSchedulerCommand,
		},
		"cleanup-checkpoints": {
			name:        "cleanup-checkpoints",
			description: "Release checkpoints older than a cutoff",
			run:         runCleanupCheckpointsCommand,
		},
	}
}

func printUsage() error {
	if err := writef(os.Stdout, "Usage: rapo-admin <command> [flags]\n\n"); err != nil {
		return err
	}
	if err := writef(os.Stdout, "Available commands:\n"); err != nil {
		return err
	}
	names := make([]string, 0, len(commands()))
	for name := range commands() {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		c := commands()[name]
		if err := writef(os.Stdout, "  %-22s %s\n", c.name, c.description); err != nil {
			return err
		}
	}
	return nil
}

func writef(w io.Writer, format string, args ...any) error {
	_, err := fmt.Fprintf(w, format, args...)
	return err
}

func runMigrateCommand(ctx *commandContext, args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	timeout := fs.Duration("timeout", defaultMigrationTimeout, "migration timeout")
	if err := fs.Parse(args); err != nil {
		return err
	}

	db, err := bootstrap.ConnectDB(ctx.Config.Database, ctx.Logger)
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	defer closeDB(ctx, db)

	migrateCtx, cancel := context.WithTimeout(ctx.Ctx, *timeout)
	defer cancel()
	return bootstrap.RunMigrations(migrateCtx, db, ctx.Logger)
}

func runStatusCommand(ctx *commandContext, args []string) error {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	db, err := bootstrap.ConnectDB(ctx.Config.Database, ctx.Logger)
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	defer closeDB(ctx, db)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)

	scheduler, err := data.NewSchedulerRecordRepo(db).Get(ctx.Ctx)
	if err != nil {
		return fmt.Errorf("read scheduler record: %w", err)
	}
	webAPI, err := data.NewWebAPIRecordRepo(db).Get(ctx.Ctx)
	if err != nil {
		return fmt.Errorf("read web api record: %w", err)
	}
	if err := writef(w, "COMPONENT\tSTATUS\tSERVER\tUSERNAME\tPID\n"); err != nil {
		return err
	}
	for _, row := range []struct {
		name   string
		record *model.ProcessRecord
	}{
		{"scheduler", scheduler},
		{"web api", webAPI},
	} {
		status := "stopped"
		if row.record.Alive() {
			status = "running"
		}
		if err := writef(w, "%s\t%s\t%s\t%s\t%d\n",
			row.name, status, row.record.Server, row.record.Username, row.record.PID); err != nil {
			return err
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}

	live, err := data.NewRunRepo(db).ListWithOptions(ctx.Ctx, model.RunsListOptions{
		Live:  true,
		Limit: 100,
		Sort:  "added",
		Dir:   "asc",
	})
	if err != nil {
		return fmt.Errorf("list live runs: %w", err)
	}
	if err := writef(os.Stdout, "\nlive runs: %d\n", len(live)); err != nil {
		return err
	}
	for _, run := range live {
		if err := writef(os.Stdout, "  process %d\tcontrol %s\tstatus %s\n",
			run.ProcessID, run.ControlName, run.StatusOrCleared()); err != nil {
			return err
		}
	}
	return nil
}

func runReleaseSchedulerCommand(ctx *commandContext, args []string) error {
	fs := flag.NewFlagSet("release-scheduler", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	db, err := bootstrap.ConnectDB(ctx.Config.Database, ctx.Logger)
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	defer closeDB(ctx, db)

	return bootstrap.ReleaseScheduler(ctx.Ctx, db, ctx.Logger)
}

func runCleanupCheckpointsCommand(ctx *commandContext, args []string) error {
	fs := flag.NewFlagSet("cleanup-checkpoints", flag.ContinueOnError)
	maxAge := fs.Duration("max-age", 24*time.Hour, "release checkpoints older than this")
	if err := fs.Parse(args); err != nil {
		return err
	}

	db, err := bootstrap.ConnectDB(ctx.Config.Database, ctx.Logger)
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	defer closeDB(ctx, db)

	cutoff := time.Now().Add(-*maxAge)
	released, err := data.NewCheckpointRepo(db).Sweep(ctx.Ctx, cutoff)
	if err != nil {
		return fmt.Errorf("sweep checkpoints: %w", err)
	}
	return writef(os.Stdout, "released %d checkpoints older than %s\n", released, cutoff.Format(time.RFC3339))
}

func closeDB(ctx *commandContext, db interface{ Close() error }) {
	if err := db.Close(); err != nil {
		ctx.Logger.ErrorContext(ctx.Ctx, "close database failed", "error", err)
	}
}
