package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"syscall"

	"github.com/t3eHawk/rapo/config"
	"github.com/t3eHawk/rapo/internal/adapters/reaper"
	schedrunner "github.com/t3eHawk/rapo/internal/adapters/scheduler"
	"github.com/t3eHawk/rapo/internal/data"
	"github.com/t3eHawk/rapo/internal/observability/statsd"
	"github.com/t3eHawk/rapo/internal/service/runner"
)

// SchedulerRunConfig contains dependencies for the scheduler loop.
type SchedulerRunConfig struct {
	DB      *sql.DB
	Config  config.SchedulerConfig
	Runner  *runner.Runner
	Logger  *slog.Logger
	Metrics statsd.Sink

	// Force seizes the scheduler record even when it reads occupied.
	Force bool
}

// RunScheduler starts the control scheduler and blocks until the
// context is cancelled.
func RunScheduler(ctx context.Context, cfg SchedulerRunConfig) error {
	sched, err := schedrunner.NewRunner(schedrunner.RunnerOptions{
		Config:   cfg.Config,
		Controls: data.NewControlRepo(cfg.DB),
		Record:   data.NewSchedulerRecordRepo(cfg.DB),
		Launcher: cfg.Runner,
		Logger:   cfg.Logger,
		Metrics:  cfg.Metrics,
		DB:       cfg.DB,
		Force:    cfg.Force,
	})
	if err != nil {
		return fmt.Errorf("create scheduler runner: %w", err)
	}

	return sched.Run(ctx)
}

// ReaperRunConfig contains dependencies for the reaper loop.
type ReaperRunConfig struct {
	DB      *sql.DB
	Config  config.ReaperConfig
	Logger  *slog.Logger
	Metrics statsd.Sink
}

// RunReaper starts the cleanup loop and blocks until the context is
// cancelled.
func RunReaper(ctx context.Context, cfg ReaperRunConfig) error {
	rp, err := reaper.NewRunner(reaper.RunnerOptions{
		DB:      cfg.DB,
		Config:  cfg.Config,
		Logger:  cfg.Logger,
		Metrics: cfg.Metrics,
	})
	if err != nil {
		return fmt.Errorf("create reaper runner: %w", err)
	}

	return rp.Run(ctx)
}

// ReleaseScheduler clears the singleton scheduler record and, when the
// record points at this host, sends SIGTERM to the recorded pid. A
// scheduler on another host notices the cleared record through its own
// periodic record check. Also cleans up after a scheduler that died
// without releasing its record.
func ReleaseScheduler(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	record := data.NewSchedulerRecordRepo(db)
	current, err := record.Get(ctx)
	if err != nil {
		return fmt.Errorf("read scheduler record: %w", err)
	}
	if !current.Alive() {
		if logger != nil {
			logger.InfoContext(ctx, "scheduler record already released")
		}
		return nil
	}
	if err := record.Release(ctx, current.PID); err != nil {
		return fmt.Errorf("release scheduler record: %w", err)
	}
	if logger != nil {
		logger.InfoContext(ctx, "scheduler record released",
			"server", current.Server,
			"pid", current.PID,
		)
	}
	signalSchedulerStop(ctx, current.Server, current.PID, logger)
	return nil
}

// signalSchedulerStop delivers SIGTERM to a scheduler on this host.
// Best effort: a pid that is already gone is not an error.
func signalSchedulerStop(ctx context.Context, server string, pid int, logger *slog.Logger) {
	host, err := os.Hostname()
	if err != nil || host != server {
		return
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		return
	}
	if logger != nil {
		logger.InfoContext(ctx, "stop signal sent to scheduler", "pid", pid)
	}
}
