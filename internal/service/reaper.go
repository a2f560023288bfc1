package service

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/t3eHawk/rapo/config"
	"github.com/t3eHawk/rapo/internal/core"
	"github.com/t3eHawk/rapo/internal/data"
	"github.com/t3eHawk/rapo/internal/domain/control"
	"github.com/t3eHawk/rapo/internal/domain/model"
	obserrors "github.com/t3eHawk/rapo/internal/observability/errors"
	"github.com/t3eHawk/rapo/internal/observability/metrics"
	"github.com/t3eHawk/rapo/internal/observability/statsd"
)

// ReaperServiceOptions groups dependencies for ReaperService.
type ReaperServiceOptions struct {
	Checkpoints core.CheckpointRepository
	Runs        core.RunRepository
	Executor    core.ControlExecutor
	Tables      core.ReaperRepository
	Config      config.ReaperConfig
	Logger      *slog.Logger
	Metrics     statsd.Sink
}

// ReaperService cleans up after runs that died without finishing:
// it releases stale checkpoints, fails hung runs, and drops orphaned
// temp tables.
type ReaperService struct {
	checkpoints core.CheckpointRepository
	runs        core.RunRepository
	executor    core.ControlExecutor
	tables      core.ReaperRepository
	config      config.ReaperConfig
	logger      *slog.Logger
	metrics     statsd.Sink
}

// NewReaperService constructs a new ReaperService.
func NewReaperService(opts ReaperServiceOptions) (*ReaperService, error) {
	if opts.Checkpoints == nil {
		return nil, errors.New("reaper: checkpoint repository is required")
	}
	if opts.Runs == nil {
		return nil, errors.New("reaper: run repository is required")
	}
	if opts.Executor == nil {
		return nil, errors.New("reaper: executor is required")
	}
	if opts.Tables == nil {
		return nil, errors.New("reaper: reaper repository is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default().With("component", "reaper_service")
	}
	return &ReaperService{
		checkpoints: opts.Checkpoints,
		runs:        opts.Runs,
		executor:    opts.Executor,
		tables:      opts.Tables,
		config:      opts.Config,
		logger:      logger,
		metrics:     opts.Metrics,
	}, nil
}

// Run starts the reaper loop and runs until the context is cancelled.
// Returns nil on graceful shutdown (context.Canceled), error otherwise.
func (s *ReaperService) Run(ctx context.Context) error {
	s.logger.InfoContext(ctx, "starting reaper service", "interval", s.config.Interval)

	// Jitter spreads instances started together.
	s.waitWithJitter(ctx)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	if err := s.runCleanup(ctx); err != nil {
		s.logCleanupError(err, "initial cleanup")
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "reaper service stopping", "reason", ctx.Err())
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()

		case <-ticker.C:
			if err := s.runCleanup(ctx); err != nil {
				s.logCleanupError(err, "cleanup")
			}
		}
	}
}

func (s *ReaperService) waitWithJitter(ctx context.Context) {
	maxJitter := int64(s.config.Interval / 10)
	if maxJitter <= 0 {
		return
	}
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return
	}
	jitter := time.Duration(int64(binary.BigEndian.Uint64(buf[:]) % uint64(maxJitter)))
	select {
	case <-time.After(jitter):
	case <-ctx.Done():
	}
}

type reaperStep struct {
	fn    func(context.Context) (int64, error)
	label string
}

// runCleanup performs one full reaper pass.
func (s *ReaperService) runCleanup(ctx context.Context) error {
	start := time.Now()
	var errs []error

	steps := []reaperStep{
		{fn: s.releaseStaleCheckpoints, label: "release stale checkpoints"},
		{fn: s.failHungRuns, label: "fail hung runs"},
		{fn: s.dropOrphanTempTables, label: "drop orphan temp tables"},
	}

	var total int64
	for _, step := range steps {
		count, err := step.fn(ctx)
		total += count
		s.emitStepMetric(step.label, count, err)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", step.label, err))
			if isContextCancellation(err) {
				break
			}
		}
	}

	s.emitPassMetrics(total, time.Since(start), firstError(errs))

	if len(errs) > 0 {
		joined := errors.Join(errs...)
		if isContextCancellation(joined) {
			return context.Canceled
		}
		return fmt.Errorf("cleanup failed: %w", joined)
	}
	return nil
}

// releaseStaleCheckpoints drops checkpoints older than the configured
// max age. A checkpoint outliving its run means the run died holding
// the lock and no new run of that control can start.
func (s *ReaperService) releaseStaleCheckpoints(ctx context.Context) (int64, error) {
	before := time.Now().Add(-s.config.CheckpointMaxAge)
	count, err := s.checkpoints.Sweep(ctx, before)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		s.logger.InfoContext(ctx, "released stale checkpoints",
			"count", count,
			"max_age", s.config.CheckpointMaxAge,
		)
	}
	return count, nil
}

// failHungRuns marks runs that stayed non-terminal past the max age as
// failed. Their owning process is assumed dead.
func (s *ReaperService) failHungRuns(ctx context.Context) (int64, error) {
	cutoff := time.Now().Add(-s.config.HungRunMaxAge)
	hung, err := s.runs.ListHung(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	var count int64
	for _, run := range hung {
		message := fmt.Sprintf("run abandoned in status %s, failed by reaper", run.StatusOrCleared())
		if err := s.runs.AppendError(ctx, run.ProcessID, message); err != nil {
			s.logger.WarnContext(ctx, "failed to append reaper error",
				"process_id", run.ProcessID, "error", err)
		}
		if err := s.runs.UpdateStatus(ctx, run.ProcessID, model.RunStatusError); err != nil {
			s.logger.ErrorContext(ctx, "failed to fail hung run",
				"process_id", run.ProcessID, "error", err)
			continue
		}
		count++
		if ctx.Err() != nil {
			return count, ctx.Err()
		}
	}
	if count > 0 {
		s.logger.InfoContext(ctx, "failed hung runs",
			"count", count,
			"max_age", s.config.HungRunMaxAge,
		)
	}
	return count, nil
}

// dropOrphanTempTables removes temp tables whose owning run finished or
// vanished. Tables of live runs younger than the max age stay put: the
// run may still need them, or an operator kept them in debug mode.
func (s *ReaperService) dropOrphanTempTables(ctx context.Context) (int64, error) {
	tables, err := s.tables.ListTemporaryTables(ctx)
	if err != nil {
		return 0, err
	}
	var count int64
	for _, table := range tables {
		_, processID, ok := control.ParseTempTableName(table)
		if !ok {
			continue
		}
		orphan, err := s.isOrphan(ctx, processID)
		if err != nil {
			s.logger.WarnContext(ctx, "failed to resolve temp table owner",
				"table", table, "error", err)
			continue
		}
		if !orphan {
			continue
		}
		if err := s.executor.DropTable(ctx, table); err != nil {
			s.logger.ErrorContext(ctx, "failed to drop orphan temp table",
				"table", table, "error", err)
			continue
		}
		count++
		if ctx.Err() != nil {
			return count, ctx.Err()
		}
	}
	if count > 0 {
		s.logger.InfoContext(ctx, "dropped orphan temp tables", "count", count)
	}
	return count, nil
}

func (s *ReaperService) isOrphan(ctx context.Context, processID int64) (bool, error) {
	run, err := s.runs.GetByID(ctx, processID)
	if errors.Is(err, data.ErrRunNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	status := run.StatusOrCleared()
	if status == "" || status.Terminal() {
		return true, nil
	}
	return time.Since(run.Added) > s.config.TempTableMaxAge, nil
}

func (s *ReaperService) emitStepMetric(operation string, count int64, err error) {
	if s.metrics == nil {
		return
	}
	result := metrics.ResultSuccess
	if err != nil {
		result = metrics.ResultError
	} else if count == 0 {
		result = metrics.ResultNoop
	}
	tags := map[string]string{
		"operation": operation,
		"result":    result,
	}
	if err != nil {
		if class := obserrors.Classify(err); class != "" {
			tags["error_class"] = class
		}
	}
	s.metrics.Count("reaper.cleanup_operation", 1, tags)
	if err == nil && count > 0 {
		s.metrics.Count("reaper.rows_processed", count, metrics.CloneTags(tags))
	}
}

func (s *ReaperService) emitPassMetrics(total int64, elapsed time.Duration, err error) {
	if s.metrics == nil {
		return
	}
	result := metrics.ResultSuccess
	if err != nil {
		result = metrics.ResultError
	} else if total == 0 {
		result = metrics.ResultNoop
	}
	tags := map[string]string{"result": result}
	if err != nil {
		if class := obserrors.Classify(err); class != "" {
			tags["error_class"] = class
		}
	}
	s.metrics.Count("reaper.cleanup", 1, tags)
	if elapsed > 0 {
		s.metrics.Timing("reaper.cleanup_duration", elapsed, metrics.CloneTags(tags))
	}
	if err == nil {
		s.metrics.Gauge("reaper.last_success_epoch", float64(time.Now().Unix()), nil)
	}
}

func (s *ReaperService) logCleanupError(err error, label string) {
	if err == nil {
		return
	}
	if isContextCancellation(err) {
		s.logger.Debug(label+" cancelled by context", "error", err)
		return
	}
	s.logger.Error(label+" failed", "error", err)
}

func firstError(errs []error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func isContextCancellation(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
