// Package scheduler provides the adapter running the control scheduler
// loop: a 1 Hz tick over the in-memory schedule snapshot, dispatching
// due controls to a bounded worker pool.
package scheduler

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/user"
	"syscall"
	"time"

	"github.com/t3eHawk/rapo/config"
	"github.com/t3eHawk/rapo/internal/core"
	"github.com/t3eHawk/rapo/internal/data"
	"github.com/t3eHawk/rapo/internal/domain/model"
	"github.com/t3eHawk/rapo/internal/domain/schedule"
	obserrors "github.com/t3eHawk/rapo/internal/observability/errors"
	"github.com/t3eHawk/rapo/internal/observability/metrics"
	"github.com/t3eHawk/rapo/internal/observability/statsd"
	"github.com/t3eHawk/rapo/internal/service/runner"
	"golang.org/x/sync/errgroup"
)

// ControlLauncher starts control runs and maintenance sweeps. Implemented
// by runner.Runner.
type ControlLauncher interface {
	Run(ctx context.Context, req runner.RunRequest) (*model.ControlRun, error)
	Clean(ctx context.Context) (int64, error)
}

// RunnerOptions holds the dependencies for creating a Runner.
type RunnerOptions struct {
	Config   config.SchedulerConfig
	Controls core.ControlRepository
	Record   core.ProcessRecordRepository
	Launcher ControlLauncher
	Logger   *slog.Logger
	Metrics  statsd.Sink

	// DB, when set, feeds the periodic connection pool report.
	DB *sql.DB

	// Server, Username and PID identify this process in the singleton
	// scheduler record. Unset fields are filled from the OS.
	Server   string
	Username string
	PID      int

	// Force seizes the scheduler record even when it reads occupied.
	// Used for taking over after a dead scheduler left its record behind.
	Force bool
}

func (o *RunnerOptions) validate() error {
	if o.Controls == nil {
		return errors.New("scheduler: control repository is required")
	}
	if o.Record == nil {
		return errors.New("scheduler: process record repository is required")
	}
	if o.Launcher == nil {
		return errors.New("scheduler: control launcher is required")
	}
	if o.Server == "" {
		host, err := os.Hostname()
		if err != nil {
			host = "unknown"
		}
		o.Server = host
	}
	if o.Username == "" {
		if u, err := user.Current(); err == nil {
			o.Username = u.Username
		} else {
			o.Username = "unknown"
		}
	}
	if o.PID == 0 {
		o.PID = os.Getpid()
	}
	return nil
}

// Runner owns the scheduler loop. One Runner per process; the singleton
// database record refuses a second one.
type Runner struct {
	cfg      config.SchedulerConfig
	controls core.ControlRepository
	record   core.ProcessRecordRepository
	launcher ControlLauncher
	logger   *slog.Logger
	metrics  statsd.Sink
	db       *sql.DB

	server   string
	username string
	pid      int
	force    bool

	snapshot schedule.Snapshot
}

// NewRunner creates a new scheduler runner with the given options.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default().With("component", "scheduler")
	}
	return &Runner{
		cfg:      opts.Config,
		controls: opts.Controls,
		record:   opts.Record,
		launcher: opts.Launcher,
		logger:   logger,
		metrics:  opts.Metrics,
		db:       opts.DB,
		server:   opts.Server,
		username: opts.Username,
		pid:      opts.PID,
		force:    opts.Force,
	}, nil
}

// dispatchItem is one due control queued for a worker, together with
// the tick moment it matched.
type dispatchItem struct {
	Name   string
	Moment time.Time
}

// Run occupies the scheduler record, then ticks once per second until the
// context is cancelled or the record is cleared externally. The record is
// released on the way out.
func (r *Runner) Run(ctx context.Context) error {
	if err := r.occupy(ctx); err != nil {
		return err
	}
	defer r.release()

	if err := r.refreshSnapshot(ctx); err != nil {
		r.logger.Error("initial schedule load failed", "error", err)
	}
	r.logger.Info("scheduler started",
		"server", r.server,
		"pid", r.pid,
		"controls", len(r.snapshot),
		"parallelism", r.cfg.ControlParallelism,
	)

	dispatch := make(chan dispatchItem, r.cfg.DispatchQueueSize)
	group, groupCtx := errgroup.WithContext(ctx)
	for range r.cfg.ControlParallelism {
		group.Go(func() error {
			r.worker(groupCtx, dispatch)
			return nil
		})
	}

	r.tickLoop(ctx, dispatch)
	close(dispatch)
	_ = group.Wait()

	r.logger.Info("scheduler stopped")
	return nil
}

func (r *Runner) occupy(ctx context.Context) error {
	_, err := r.record.Occupy(ctx, core.OccupyRecordParams{
		Server:   r.server,
		Username: r.username,
		PID:      r.pid,
		Force:    r.force,
	})
	if errors.Is(err, data.ErrRecordOccupied) {
		owner, getErr := r.record.Get(ctx)
		if getErr != nil {
			return fmt.Errorf("occupy scheduler record: %w", err)
		}
		if owner.Alive() && !r.ownerDead(owner) {
			return fmt.Errorf("scheduler already running on %s as pid %d", owner.Server, owner.PID)
		}
		// The recorded owner is gone; seize its record.
		r.logger.Warn("taking over a stale scheduler record",
			"server", owner.Server,
			"pid", owner.PID,
		)
		_, err = r.record.Occupy(ctx, core.OccupyRecordParams{
			Server:   r.server,
			Username: r.username,
			PID:      r.pid,
			Force:    true,
		})
	}
	if err != nil {
		return fmt.Errorf("occupy scheduler record: %w", err)
	}
	return nil
}

// ownerDead reports whether the recorded owner can be proven dead. Only
// a record pointing at this host can be checked; a record from another
// server is always presumed live.
func (r *Runner) ownerDead(owner *model.ProcessRecord) bool {
	if owner.Server != r.server {
		return false
	}
	proc, err := os.FindProcess(owner.PID)
	if err != nil {
		return true
	}
	return proc.Signal(syscall.Signal(0)) != nil
}

func (r *Runner) release() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.record.Release(ctx, r.pid); err != nil &&
		!errors.Is(err, data.ErrRecordNotOccupied) {
		r.logger.Error("failed to release scheduler record", "error", err)
	}
}

// tickLoop fires on whole-second boundaries. Ticks the process could not
// keep up with are skipped rather than replayed: the calendar match is
// against the wall clock, not against a backlog.
func (r *Runner) tickLoop(ctx context.Context, dispatch chan<- dispatchItem) {
	refresh := time.NewTicker(r.cfg.RefreshInterval)
	defer refresh.Stop()
	maintenance := time.NewTicker(r.cfg.MaintenanceInterval)
	defer maintenance.Stop()
	recordCheck := time.NewTicker(r.cfg.RecordCheckInterval)
	defer recordCheck.Stop()

	var report *time.Ticker
	var reportC <-chan time.Time
	if r.db != nil && r.cfg.DatabaseReportInterval > 0 {
		report = time.NewTicker(r.cfg.DatabaseReportInterval)
		defer report.Stop()
		reportC = report.C
	}

	moment := time.Now().Truncate(time.Second)
	for {
		moment = moment.Add(time.Second)
		if wait := time.Until(moment); wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
		} else if wait < -time.Second {
			// Fell behind by more than a tick; resync to the clock.
			r.logger.Warn("scheduler fell behind", "lag", -wait)
			moment = time.Now().Truncate(time.Second)
		}

		select {
		case <-ctx.Done():
			return
		case <-refresh.C:
			if err := r.refreshSnapshot(ctx); err != nil {
				r.logger.Error("schedule refresh failed", "error", err)
			}
		case <-maintenance.C:
			r.runMaintenance(ctx)
		case <-recordCheck.C:
			if !r.ownsRecord(ctx) {
				return
			}
		case <-reportC:
			r.reportDatabaseStats()
		default:
		}

		r.tick(ctx, moment, dispatch)
	}
}

// ownsRecord re-reads the singleton record and reports whether this
// process still owns it. A cleared or reassigned record is the stop
// request of the admin tool.
func (r *Runner) ownsRecord(ctx context.Context) bool {
	current, err := r.record.Get(ctx)
	if err != nil {
		// A transient read failure must not stop a healthy scheduler.
		r.logger.Warn("failed to read scheduler record", "error", err)
		return true
	}
	if current.Alive() && current.PID == r.pid && current.Server == r.server {
		return true
	}
	r.logger.Info("scheduler record released externally, stopping",
		"server", current.Server,
		"pid", current.PID,
		"status", string(current.Status),
	)
	return false
}

// tick matches the snapshot against one moment and queues due controls.
func (r *Runner) tick(ctx context.Context, moment time.Time, dispatch chan<- dispatchItem) {
	started := time.Now()
	due := r.snapshot.Due(moment)
	dispatched := 0
	for _, name := range due {
		select {
		case dispatch <- dispatchItem{Name: name, Moment: moment}:
			dispatched++
		default:
			r.logger.Warn("dispatch queue full, control skipped",
				"control_name", name,
				"moment", moment,
			)
			r.emitSkip(name)
		}
	}
	if dispatched > 0 {
		r.logger.Info("controls dispatched", "count", dispatched, "moment", moment)
	}
	r.emitTickMetrics(dispatched, time.Since(started), ctx.Err())
}

func (r *Runner) worker(ctx context.Context, dispatch <-chan dispatchItem) {
	for item := range dispatch {
		if ctx.Err() != nil {
			return
		}
		run, err := r.launcher.Run(ctx, runner.RunRequest{
			ControlName: item.Name,
			Trigger:     item.Moment,
		})
		if err != nil {
			r.logger.Error("control run failed to start",
				"control_name", item.Name,
				"error", err,
			)
			continue
		}
		r.logger.Info("control run finished",
			"control_name", item.Name,
			"process_id", run.ProcessID,
			"status", string(run.StatusOrCleared()),
		)
	}
}

// refreshSnapshot rebuilds the in-memory schedule from the configuration
// table. Controls with an unparsable schedule are skipped, not fatal.
func (r *Runner) refreshSnapshot(ctx context.Context) error {
	configs, err := r.controls.ListActive(ctx)
	if err != nil {
		return err
	}
	snapshot := make(schedule.Snapshot, len(configs))
	for _, cfg := range configs {
		record, err := schedule.ParseRecord(cfg.ScheduleConfig)
		if err != nil {
			r.logger.Warn("invalid schedule config, control skipped",
				"control_name", cfg.ControlName,
				"error", err,
			)
			continue
		}
		snapshot[cfg.ControlName] = schedule.Entry{
			Name:   cfg.ControlName,
			Active: cfg.Status.Bool(),
			Record: record,
		}
	}
	r.snapshot = snapshot
	r.logger.Debug("schedule snapshot refreshed", "controls", len(snapshot))
	return nil
}

// runMaintenance sweeps expired output records and archives the full
// control configuration into the backup table.
func (r *Runner) runMaintenance(ctx context.Context) {
	deleted, err := r.launcher.Clean(ctx)
	if err != nil {
		r.logger.Error("retention maintenance failed", "error", err)
	} else {
		r.logger.Info("retention maintenance finished", "deleted", deleted)
	}

	archived, err := r.controls.Backup(ctx)
	if err != nil {
		r.logger.Error("configuration backup failed", "error", err)
		return
	}
	r.logger.Info("configuration backup finished", "archived", archived)
}

func (r *Runner) reportDatabaseStats() {
	stats := r.db.Stats()
	r.logger.Info("database pool",
		"open", stats.OpenConnections,
		"in_use", stats.InUse,
		"idle", stats.Idle,
		"wait_count", stats.WaitCount,
		"wait_duration", stats.WaitDuration,
	)
	if r.metrics != nil {
		r.metrics.Gauge("db.pool.open", float64(stats.OpenConnections), nil)
		r.metrics.Gauge("db.pool.in_use", float64(stats.InUse), nil)
	}
}

func (r *Runner) emitSkip(name string) {
	if r.metrics == nil {
		return
	}
	r.metrics.Count("scheduler.dispatch_skipped", 1, map[string]string{
		"control_name": name,
	})
}

func (r *Runner) emitTickMetrics(dispatched int, elapsed time.Duration, err error) {
	if r.metrics == nil {
		return
	}

	result := metrics.ResultSuccess
	if err != nil {
		result = metrics.ResultError
	} else if dispatched == 0 {
		result = metrics.ResultNoop
	}

	tags := map[string]string{"result": result}
	if err != nil {
		if class := obserrors.Classify(err); class != "" {
			tags["error_class"] = class
		}
	}

	r.metrics.Count("scheduler.tick", 1, tags)
	if dispatched > 0 {
		r.metrics.Count("scheduler.controls_dispatched", int64(dispatched), tags)
	}
	if elapsed > 0 {
		r.metrics.Timing("scheduler.tick_duration", elapsed, metrics.CloneTags(tags))
	}
	if err == nil {
		r.metrics.Gauge("scheduler.last_success_epoch", float64(time.Now().Unix()), nil)
	}
}
