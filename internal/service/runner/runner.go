// Package runner drives the lifecycle of a single control run: from the
// initiated log row through fetch, execution and saving of findings to
// one of the terminal states. The scheduler and the web API both launch
// runs through this package; the database log row is the single source
// of truth a run is steered by.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/t3eHawk/rapo/internal/core"
	"github.com/t3eHawk/rapo/internal/data"
	"github.com/t3eHawk/rapo/internal/domain/control"
	"github.com/t3eHawk/rapo/internal/domain/model"
	apperrors "github.com/t3eHawk/rapo/internal/errors"
	"github.com/t3eHawk/rapo/internal/observability/metrics"
	"github.com/t3eHawk/rapo/internal/observability/notify"
	"github.com/t3eHawk/rapo/internal/observability/statsd"
)

// Cancellation causes distinguished by the lifecycle error handler.
var (
	errExternalCancel = errors.New("run canceled by operator")
	errRunTimeout     = errors.New("run timeout exceeded")
)

// FailureNotifier receives terminal failure events. Implemented by
// failurenotifier.Service.
type FailureNotifier interface {
	NotifyRunFailure(ctx context.Context, payload notify.RunFailurePayload)
	Enabled() bool
}

// Options groups dependencies and tuning knobs for the Runner.
type Options struct {
	Controls    core.ControlRepository
	Runs        core.RunRepository
	Checkpoints core.CheckpointRepository
	Executor    core.ControlExecutor
	Notifier    FailureNotifier
	Metrics     statsd.Sink
	Logger      *slog.Logger

	// Debug keeps temp tables after a run for inspection.
	Debug bool

	// SupervisorInterval is how often a live run re-reads its own log
	// row to notice operator cancellation and timeouts.
	SupervisorInterval time.Duration

	// ThrottleMinDelay and ThrottleMaxDelay bound the backoff between
	// checkpoint acquisition attempts while another run holds the lock.
	ThrottleMinDelay time.Duration
	ThrottleMaxDelay time.Duration

	// WaitInterval is how often a run parked behind the instance limit
	// re-checks for a free slot.
	WaitInterval time.Duration
}

func (o *Options) validate() error {
	if o.Controls == nil {
		return errors.New("runner: control repository is required")
	}
	if o.Runs == nil {
		return errors.New("runner: run repository is required")
	}
	if o.Checkpoints == nil {
		return errors.New("runner: checkpoint repository is required")
	}
	if o.Executor == nil {
		return errors.New("runner: executor is required")
	}
	return nil
}

// Runner executes control runs.
type Runner struct {
	controls    core.ControlRepository
	runs        core.RunRepository
	checkpoints core.CheckpointRepository
	executor    core.ControlExecutor
	notifier    FailureNotifier
	metrics     statsd.Sink
	logger      *slog.Logger
	debug       bool

	supervisorInterval time.Duration
	throttleMinDelay   time.Duration
	throttleMaxDelay   time.Duration
	waitInterval       time.Duration

	now func() time.Time
}

// NewRunner constructs a Runner, applying defaults for unset intervals.
func NewRunner(opts Options) (*Runner, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default().With("component", "run_lifecycle")
	}
	r := &Runner{
		controls:           opts.Controls,
		runs:               opts.Runs,
		checkpoints:        opts.Checkpoints,
		executor:           opts.Executor,
		notifier:           opts.Notifier,
		metrics:            opts.Metrics,
		logger:             logger,
		debug:              opts.Debug,
		supervisorInterval: opts.SupervisorInterval,
		throttleMinDelay:   opts.ThrottleMinDelay,
		throttleMaxDelay:   opts.ThrottleMaxDelay,
		waitInterval:       opts.WaitInterval,
		now:                time.Now,
	}
	if r.supervisorInterval <= 0 {
		r.supervisorInterval = 5 * time.Second
	}
	if r.throttleMinDelay <= 0 {
		r.throttleMinDelay = 5 * time.Second
	}
	if r.throttleMaxDelay < r.throttleMinDelay {
		r.throttleMaxDelay = time.Minute
	}
	if r.waitInterval <= 0 {
		r.waitInterval = 5 * time.Second
	}
	return r, nil
}

// MustNewRunner constructs a Runner or panics.
func MustNewRunner(opts Options) *Runner {
	r, err := NewRunner(opts)
	if err != nil {
		panic(err)
	}
	return r
}

// RunRequest describes one run to execute. A zero Trigger means now.
// DateFrom/DateTo, when both set, override the period arithmetic.
// Debug keeps the temp tables of this run for inspection.
type RunRequest struct {
	ControlName string
	Trigger     time.Time
	DateFrom    *time.Time
	DateTo      *time.Time
	IterationID *int64
	Debug       bool
}

func (r *Runner) keepTempTables(req RunRequest) bool {
	return r.debug || req.Debug
}

// Run executes a control run synchronously and returns the final log
// row. The returned error covers infrastructure failures only; a run
// that ends in status E reports its error inside the log row.
func (r *Runner) Run(ctx context.Context, req RunRequest) (*model.ControlRun, error) {
	cfg, run, err := r.initiate(ctx, req)
	if err != nil {
		return nil, err
	}
	r.lifecycle(ctx, cfg, run, req)
	return r.runs.GetByID(context.WithoutCancel(ctx), run.ProcessID)
}

// Launch initiates a run, then executes its lifecycle in the
// background. It returns the process ID as soon as the log row exists,
// which is what the run-control API responds with.
func (r *Runner) Launch(ctx context.Context, req RunRequest) (int64, error) {
	cfg, run, err := r.initiate(ctx, req)
	if err != nil {
		return 0, err
	}
	// The lifecycle must outlive the HTTP request that launched it.
	bg := context.WithoutCancel(ctx)
	go r.lifecycle(bg, cfg, run, req)
	return run.ProcessID, nil
}

func (r *Runner) initiate(ctx context.Context, req RunRequest) (*model.ControlConfig, *model.ControlRun, error) {
	if req.ControlName == "" {
		return nil, nil, apperrors.Validation("control name is required")
	}
	if (req.DateFrom == nil) != (req.DateTo == nil) {
		return nil, nil, apperrors.Validation("date_from and date_to must be provided together")
	}
	cfg, err := r.controls.GetByName(ctx, req.ControlName)
	if err != nil {
		return nil, nil, err
	}
	run, err := r.runs.Initiate(ctx, cfg.ControlID)
	if err != nil {
		return nil, nil, err
	}
	r.logger.InfoContext(ctx, "run initiated",
		"process_id", run.ProcessID,
		"control_name", cfg.ControlName,
		"control_type", cfg.ControlType,
	)
	return cfg, run, nil
}

// lifecycle walks the run through its states. All failures funnel into
// finishWithError; operator cancellation and timeouts arrive through
// the supervised context.
func (r *Runner) lifecycle(ctx context.Context, cfg *model.ControlConfig, run *model.ControlRun, req RunRequest) {
	started := r.now()
	logger := r.logger.With(
		"process_id", run.ProcessID,
		"control_name", cfg.ControlName,
	)

	supCtx, cancel := context.WithCancelCause(ctx)
	supervisorDone := r.superviseRun(supCtx, cancel, cfg, run)
	defer func() {
		cancel(nil)
		<-supervisorDone
	}()

	plan, err := r.executePhases(supCtx, logger, cfg, run, req)
	if err != nil {
		r.finishRun(context.WithoutCancel(ctx), logger, finishParams{
			cfg:     cfg,
			run:     run,
			plan:    plan,
			supCtx:  supCtx,
			runErr:  err,
			started: started,
			keep:    r.keepTempTables(req),
		})
		return
	}

	detached := context.WithoutCancel(ctx)
	if err := r.runs.UpdateStatus(detached, run.ProcessID, model.RunStatusDone); err != nil {
		logger.Error("failed to mark run done", "error", err)
		return
	}
	logger.Info("run done", "duration", r.now().Sub(started))
	r.emitTransition(cfg, "done", metrics.ResultSuccess, r.now().Sub(started), nil)

	if req.IterationID == nil {
		r.runIterations(detached, cfg, plan, req)
	}
}

// executePhases runs every lifecycle phase up to (not including) the
// terminal transition. A declined prerun hook or an unmet prerequisite
// surfaces as errConcludedEarly with the run already marked done.
func (r *Runner) executePhases(
	ctx context.Context,
	logger *slog.Logger,
	cfg *model.ControlConfig,
	run *model.ControlRun,
	req RunRequest,
) (*control.Plan, error) {
	if err := r.waitForSlot(ctx, logger, cfg, run); err != nil {
		return nil, err
	}

	if err := r.acquireCheckpoint(ctx, logger, cfg, run); err != nil {
		return nil, err
	}
	defer r.releaseCheckpoint(context.WithoutCancel(ctx), logger, cfg, run)

	if cfg.NeedPrerunHook.Bool() {
		proceed, message, err := r.executor.PrerunHook(ctx, run.ProcessID)
		if err != nil {
			return nil, fmt.Errorf("prerun hook: %w", err)
		}
		if message != "" {
			if err := r.runs.SetMessage(ctx, run.ProcessID, message); err != nil {
				return nil, err
			}
		}
		if !proceed {
			return nil, r.concludeEarly(ctx, logger, run, "prerun hook declined the run")
		}
	}

	plan, err := r.buildPlan(cfg, run, req)
	if err != nil {
		return nil, fmt.Errorf("parse control configuration: %w", err)
	}

	if plan.PrerequisiteSQL != "" {
		value, err := r.executor.RunPrerequisite(ctx, plan)
		if err != nil {
			return nil, fmt.Errorf("prerequisite: %w", err)
		}
		if value != nil {
			if err := r.runs.SetPrerequisiteValue(ctx, run.ProcessID, *value); err != nil {
				return nil, err
			}
			if *value == 0 {
				return nil, r.concludeEarly(ctx, logger, run, "prerequisite not met")
			}
		}
	}

	if plan.PreparationSQL != "" {
		affected, err := r.executor.RunPreparation(ctx, plan)
		if err != nil {
			return nil, fmt.Errorf("preparation: %w", err)
		}
		r.appendLog(ctx, run.ProcessID, fmt.Sprintf("preparation affected %d rows", affected))
	}

	if err := r.runs.MarkStarted(ctx, run.ProcessID, plan.Window.From, plan.Window.To); err != nil {
		return plan, err
	}
	logger.Info("run started",
		"date_from", plan.Window.From,
		"date_to", plan.Window.To,
	)

	if err := r.runs.UpdateStatus(ctx, run.ProcessID, model.RunStatusProgress); err != nil {
		return plan, err
	}

	fetch, err := r.executor.Fetch(ctx, plan)
	if err != nil {
		return plan, fmt.Errorf("fetch: %w", err)
	}
	if err := r.runs.WriteCounters(ctx, run.ProcessID, fetch.Counters(plan.Kind())); err != nil {
		return plan, err
	}

	counters, err := r.executor.Execute(ctx, plan, fetch)
	if err != nil {
		return plan, fmt.Errorf("execute: %w", err)
	}

	if err := r.executor.SaveFindings(ctx, plan, fetch, counters); err != nil {
		return plan, fmt.Errorf("save findings: %w", err)
	}
	if err := r.runs.WriteCounters(ctx, run.ProcessID, counters); err != nil {
		return plan, err
	}

	if err := r.runs.UpdateStatus(ctx, run.ProcessID, model.RunStatusFinishing); err != nil {
		return plan, err
	}
	if !r.keepTempTables(req) {
		if err := r.executor.DropTemporaryTables(ctx, plan); err != nil {
			return plan, fmt.Errorf("drop temporary tables: %w", err)
		}
	}

	if plan.CompletionSQL != "" {
		affected, err := r.executor.RunCompletion(ctx, plan)
		if err != nil {
			return plan, fmt.Errorf("completion: %w", err)
		}
		r.appendLog(ctx, run.ProcessID, fmt.Sprintf("completion affected %d rows", affected))
	}

	if cfg.NeedPostrunHook.Bool() {
		if err := r.executor.PostrunHook(ctx, run.ProcessID); err != nil {
			return plan, fmt.Errorf("postrun hook: %w", err)
		}
	}

	return plan, nil
}

// errConcludedEarly marks a run that ended in D before touching any
// data: the prerun hook declined it or the prerequisite was not met.
var errConcludedEarly = errors.New("run concluded early")

func (r *Runner) concludeEarly(ctx context.Context, logger *slog.Logger, run *model.ControlRun, reason string) error {
	r.appendLog(ctx, run.ProcessID, reason)
	if err := r.runs.UpdateStatus(ctx, run.ProcessID, model.RunStatusDone); err != nil {
		return err
	}
	logger.Info("run concluded early", "reason", reason)
	return errConcludedEarly
}

func (r *Runner) buildPlan(cfg *model.ControlConfig, run *model.ControlRun, req RunRequest) (*control.Plan, error) {
	trigger := req.Trigger
	if trigger.IsZero() {
		trigger = r.now()
	}
	input := control.PlanInput{
		Config:      *cfg,
		ProcessID:   run.ProcessID,
		Trigger:     trigger,
		IterationID: req.IterationID,
	}
	if req.DateFrom != nil && req.DateTo != nil {
		window := control.WindowBetween(*req.DateFrom, *req.DateTo)
		input.Window = &window
	}
	return control.BuildPlan(input)
}

// waitForSlot parks the run in W while the instance limit is reached.
// The initiated row itself counts toward the limit.
func (r *Runner) waitForSlot(ctx context.Context, logger *slog.Logger, cfg *model.ControlConfig, run *model.ControlRun) error {
	if cfg.InstanceLimit == nil || *cfg.InstanceLimit <= 0 {
		return nil
	}
	limit := int64(*cfg.InstanceLimit)

	active, err := r.runs.CountActive(ctx, cfg.ControlID, time.Time{})
	if err != nil {
		return err
	}
	if active <= limit {
		return nil
	}

	if err := r.runs.UpdateStatus(ctx, run.ProcessID, model.RunStatusWaiting); err != nil {
		return err
	}
	logger.Info("run waiting for a free slot", "instance_limit", limit)

	ticker := time.NewTicker(r.waitInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return context.Cause(ctx)
		case <-ticker.C:
		}
		active, err := r.runs.CountActive(ctx, cfg.ControlID, time.Time{})
		if err != nil {
			return err
		}
		// Waiting runs are excluded from the active count, so this run
		// does not block itself.
		if active < limit {
			return r.runs.UpdateStatus(ctx, run.ProcessID, model.RunStatusInitiated)
		}
	}
}

// acquireCheckpoint takes the per-control lock, backing off while
// another run holds it.
func (r *Runner) acquireCheckpoint(ctx context.Context, logger *slog.Logger, cfg *model.ControlConfig, run *model.ControlRun) error {
	delay := r.throttleMinDelay
	logged := false
	for {
		_, err := r.checkpoints.Acquire(ctx, cfg.ControlID, run.ProcessID)
		if err == nil {
			return nil
		}
		if !errors.Is(err, data.ErrCheckpointHeld) {
			return fmt.Errorf("acquire checkpoint: %w", err)
		}
		if !logged {
			r.appendLog(ctx, run.ProcessID, "waiting for the control checkpoint")
			logger.Info("checkpoint held by another run, backing off")
			logged = true
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return context.Cause(ctx)
		case <-timer.C:
		}
		delay *= 2
		if delay > r.throttleMaxDelay {
			delay = r.throttleMaxDelay
		}
	}
}

func (r *Runner) releaseCheckpoint(ctx context.Context, logger *slog.Logger, cfg *model.ControlConfig, run *model.ControlRun) {
	err := r.checkpoints.Release(ctx, cfg.ControlID, run.ProcessID)
	if err != nil && !errors.Is(err, data.ErrCheckpointNotHeld) {
		logger.Error("failed to release checkpoint", "error", err)
	}
}

type finishParams struct {
	cfg     *model.ControlConfig
	run     *model.ControlRun
	plan    *control.Plan
	supCtx  context.Context
	runErr  error
	started time.Time
	keep    bool
}

// finishRun maps a lifecycle failure onto its terminal state: C for
// operator cancellation and timeouts, E for genuine errors, and a D
// transition for runs concluded before they touched any data.
func (r *Runner) finishRun(ctx context.Context, logger *slog.Logger, p finishParams) {
	cfg, run, runErr, started := p.cfg, p.run, p.runErr, p.started
	if errors.Is(runErr, errConcludedEarly) {
		r.emitTransition(cfg, "done", metrics.ResultNoop, r.now().Sub(started), nil)
		return
	}

	cause := context.Cause(p.supCtx)
	r.dropTempTables(ctx, logger, p.plan, p.keep)

	timedOut := errors.Is(runErr, errRunTimeout) || errors.Is(cause, errRunTimeout)
	if timedOut || errors.Is(runErr, errExternalCancel) || errors.Is(cause, errExternalCancel) {
		note := "run canceled"
		if timedOut {
			note = "run canceled: " + errRunTimeout.Error()
		}
		r.appendLog(ctx, run.ProcessID, note)
		r.deleteOutputRecords(ctx, logger, p.plan)
		if err := r.runs.UpdateStatus(ctx, run.ProcessID, model.RunStatusCanceled); err != nil {
			logger.Error("failed to mark run canceled", "error", err)
		}
		logger.Info("run canceled", "timeout", timedOut, "duration", r.now().Sub(started))
		r.emitTransition(cfg, "canceled", metrics.ResultNoop, r.now().Sub(started), nil)
		return
	}

	message := runErr.Error()
	if err := r.runs.AppendError(ctx, run.ProcessID, message); err != nil {
		logger.Error("failed to append run error", "error", err)
	}
	if err := r.runs.UpdateStatus(ctx, run.ProcessID, model.RunStatusError); err != nil {
		logger.Error("failed to mark run failed", "error", err)
	}
	logger.Error("run failed", "error", runErr, "duration", r.now().Sub(started))
	r.emitTransition(cfg, "error", metrics.ResultError, r.now().Sub(started), runErr)
	r.notifyFailure(ctx, cfg, run.ProcessID, message)
}

// deleteOutputRecords removes the rows a canceled run already saved to
// its result table. A nil plan means nothing was fetched or saved.
func (r *Runner) deleteOutputRecords(ctx context.Context, logger *slog.Logger, plan *control.Plan) {
	if plan == nil {
		return
	}
	if err := r.executor.DeleteOutputRecords(ctx, plan); err != nil {
		logger.Warn("failed to delete output records", "error", err)
	}
}

func (r *Runner) dropTempTables(ctx context.Context, logger *slog.Logger, plan *control.Plan, keep bool) {
	if plan == nil || keep {
		return
	}
	if err := r.executor.DropTemporaryTables(ctx, plan); err != nil {
		logger.Warn("failed to drop temporary tables", "error", err)
	}
}

func (r *Runner) notifyFailure(ctx context.Context, cfg *model.ControlConfig, processID int64, message string) {
	if r.notifier == nil || !r.notifier.Enabled() {
		return
	}
	payload := notify.RunFailurePayload{
		ProcessID:   processID,
		ControlID:   cfg.ControlID,
		ControlName: cfg.ControlName,
		ControlType: string(cfg.ControlType),
		Status:      string(model.RunStatusError),
		Error:       message,
		OccurredAt:  r.now(),
	}
	if run, err := r.runs.GetByID(ctx, processID); err == nil {
		payload.ErrorLevel = run.ErrorLevel
	}
	r.notifier.NotifyRunFailure(ctx, payload)
}

// runIterations executes the active iterations of the control, each as
// its own run with its own log row.
func (r *Runner) runIterations(ctx context.Context, cfg *model.ControlConfig, plan *control.Plan, req RunRequest) {
	for _, iteration := range plan.Iterations {
		if !iteration.Active() {
			continue
		}
		id := iteration.ID
		_, err := r.Run(ctx, RunRequest{
			ControlName: cfg.ControlName,
			Trigger:     req.Trigger,
			IterationID: &id,
			Debug:       req.Debug,
		})
		if err != nil {
			r.logger.Error("iteration run failed to start",
				"control_name", cfg.ControlName,
				"iteration_id", id,
				"error", err,
			)
		}
	}
}

func (r *Runner) appendLog(ctx context.Context, processID int64, text string) {
	if err := r.runs.AppendLog(ctx, processID, text); err != nil {
		r.logger.Warn("failed to append run log", "process_id", processID, "error", err)
	}
}

func (r *Runner) emitTransition(cfg *model.ControlConfig, transition, result string, duration time.Duration, err error) {
	metrics.EmitRunLifecycle(r.metrics, metrics.RunMetric{
		ControlType: string(cfg.ControlType),
		Transition:  transition,
		Result:      result,
		Duration:    duration,
		Err:         err,
	})
}
