package runner

import (
	"context"
	"time"

	"github.com/t3eHawk/rapo/internal/domain/model"
)

// superviseRun watches the log row of a live run and cancels the run
// context when an operator clears the status or the configured timeout
// elapses. The returned channel closes when the supervisor exits.
//
// The log row is the steering wheel of a run: cancel-control does not
// talk to the owning process, it clears the status and relies on this
// watcher to notice.
func (r *Runner) superviseRun(
	ctx context.Context,
	cancel context.CancelCauseFunc,
	cfg *model.ControlConfig,
	run *model.ControlRun,
) <-chan struct{} {
	done := make(chan struct{})

	var deadline time.Time
	if cfg.Timeout != nil && *cfg.Timeout > 0 {
		deadline = run.Added.Add(time.Duration(*cfg.Timeout) * time.Second)
	}

	go func() {
		defer close(done)
		ticker := time.NewTicker(r.supervisorInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			if !deadline.IsZero() && r.now().After(deadline) {
				r.logger.Warn("run exceeded its timeout",
					"process_id", run.ProcessID,
					"control_name", cfg.ControlName,
					"timeout_seconds", *cfg.Timeout,
				)
				cancel(errRunTimeout)
				return
			}

			current, err := r.runs.GetByID(ctx, run.ProcessID)
			if err != nil {
				// Transient read failures must not kill a healthy run.
				r.logger.Warn("supervisor failed to read run row",
					"process_id", run.ProcessID,
					"error", err,
				)
				continue
			}
			if current.Status == nil {
				r.logger.Info("run status cleared by operator",
					"process_id", run.ProcessID,
					"control_name", cfg.ControlName,
				)
				cancel(errExternalCancel)
				return
			}
		}
	}()

	return done
}
