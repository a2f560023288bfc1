// Package reaper provides the adapter running the cleanup loop over
// stale checkpoints, hung runs and orphaned temp tables.
package reaper

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/t3eHawk/rapo/config"
	"github.com/t3eHawk/rapo/internal/core"
	"github.com/t3eHawk/rapo/internal/data"
	"github.com/t3eHawk/rapo/internal/observability/statsd"
	"github.com/t3eHawk/rapo/internal/service"
)

// Runner provides a simple adapter to run the reaper loop.
type Runner struct {
	reaper  *service.ReaperService
	logger  *slog.Logger
	metrics statsd.Sink
}

// RunnerOptions holds the dependencies for creating a Runner.
type RunnerOptions struct {
	DB     *sql.DB
	Config config.ReaperConfig
	Logger *slog.Logger

	// Optional dependency injection for testing/decoupling
	Checkpoints core.CheckpointRepository
	Runs        core.RunRepository
	Executor    core.ControlExecutor
	Tables      core.ReaperRepository
	Metrics     statsd.Sink
}

// NewRunner creates a new reaper runner with the given options.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if err := validateRunnerOptions(&opts); err != nil {
		return nil, err
	}

	reaper, err := wireReaperService(opts)
	if err != nil {
		return nil, fmt.Errorf("wire reaper service: %w", err)
	}

	return &Runner{
		reaper:  reaper,
		logger:  opts.Logger,
		metrics: opts.Metrics,
	}, nil
}

func validateRunnerOptions(opts *RunnerOptions) error {
	if opts.DB == nil &&
		(opts.Checkpoints == nil || opts.Runs == nil || opts.Executor == nil || opts.Tables == nil) {
		return errors.New("database connection is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default().With("component", "reaper")
	}
	return nil
}

// wireReaperService wires up all dependencies for the reaper service,
// constructing the data repositories over the shared pool unless the
// caller injected replacements.
func wireReaperService(opts RunnerOptions) (*service.ReaperService, error) {
	checkpoints := opts.Checkpoints
	if checkpoints == nil {
		checkpoints = data.NewCheckpointRepo(opts.DB)
	}
	runs := opts.Runs
	if runs == nil {
		runs = data.NewRunRepo(opts.DB)
	}
	executor := opts.Executor
	if executor == nil {
		executor = data.NewExecutor(opts.DB)
	}
	tables := opts.Tables
	if tables == nil {
		tables = data.NewReaperRepo(opts.DB)
	}

	return service.NewReaperService(service.ReaperServiceOptions{
		Checkpoints: checkpoints,
		Runs:        runs,
		Executor:    executor,
		Tables:      tables,
		Config:      opts.Config,
		Logger:      opts.Logger,
		Metrics:     opts.Metrics,
	})
}

// Run starts the reaper loop and runs until the context is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting reaper runner")
	return r.reaper.Run(ctx)
}
