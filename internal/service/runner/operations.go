package runner

import (
	"context"
	"fmt"

	"github.com/t3eHawk/rapo/internal/domain/control"
	"github.com/t3eHawk/rapo/internal/domain/model"
	apperrors "github.com/t3eHawk/rapo/internal/errors"
)

// Cancel requests cancellation of a live run by clearing its status.
// The process owning the run notices the cleared status through its
// supervisor and transitions the run to C.
func (r *Runner) Cancel(ctx context.Context, processID int64) error {
	run, err := r.runs.GetByID(ctx, processID)
	if err != nil {
		return err
	}
	status := run.StatusOrCleared()
	if status == "" {
		return apperrors.Conflictf("run %d is already being canceled", processID)
	}
	if status.Terminal() {
		return apperrors.Conflictf("run %d already finished with status %s", processID, status)
	}
	if err := r.runs.ClearStatus(ctx, processID); err != nil {
		return err
	}
	r.logger.InfoContext(ctx, "run cancellation requested", "process_id", processID)
	return nil
}

// Revoke deletes the saved findings of a finished run and marks it X.
// Only terminal runs can be revoked; a live run must be canceled first.
func (r *Runner) Revoke(ctx context.Context, processID int64) error {
	run, plan, err := r.planForRun(ctx, processID)
	if err != nil {
		return err
	}
	status := run.StatusOrCleared()
	if !status.Terminal() {
		return apperrors.Conflictf("run %d is not finished, cancel it instead", processID)
	}
	if status == model.RunStatusRevoked {
		return apperrors.Conflictf("run %d is already revoked", processID)
	}
	if err := r.executor.DeleteOutputRecords(ctx, plan); err != nil {
		return fmt.Errorf("delete output records: %w", err)
	}
	if err := r.runs.UpdateStatus(ctx, processID, model.RunStatusRevoked); err != nil {
		return err
	}
	r.appendLog(ctx, processID, "run revoked, output records deleted")
	r.logger.InfoContext(ctx, "run revoked", "process_id", processID)
	return nil
}

// DropTemporaryTables removes every temp table a run may have left
// behind. Safe on runs that already cleaned up after themselves.
func (r *Runner) DropTemporaryTables(ctx context.Context, processID int64) error {
	_, plan, err := r.planForRun(ctx, processID)
	if err != nil {
		return err
	}
	return r.executor.DropTemporaryTables(ctx, plan)
}

// Clean applies the retention policy of every configured control and
// returns the total number of deleted output records.
func (r *Runner) Clean(ctx context.Context) (int64, error) {
	controls, err := r.controls.ListWithOptions(ctx, model.ControlsListOptions{Limit: 1000})
	if err != nil {
		return 0, err
	}
	var total int64
	for _, cfg := range controls {
		deleted, err := r.executor.Clean(ctx, *cfg)
		if err != nil {
			r.logger.Error("retention clean failed",
				"control_name", cfg.ControlName,
				"error", err,
			)
			continue
		}
		total += deleted
	}
	return total, nil
}

// planForRun reconstructs the execution plan of an existing run from
// its log row, reusing the stored date window.
func (r *Runner) planForRun(ctx context.Context, processID int64) (*model.ControlRun, *control.Plan, error) {
	run, err := r.runs.GetByID(ctx, processID)
	if err != nil {
		return nil, nil, err
	}
	cfg, err := r.controls.GetByID(ctx, run.ControlID)
	if err != nil {
		return nil, nil, err
	}
	input := control.PlanInput{
		Config:    *cfg,
		ProcessID: run.ProcessID,
		Trigger:   run.Added,
	}
	if run.DateFrom != nil && run.DateTo != nil {
		window := control.WindowBetween(*run.DateFrom, *run.DateTo)
		input.Window = &window
	}
	plan, err := control.BuildPlan(input)
	if err != nil {
		return nil, nil, fmt.Errorf("parse control configuration: %w", err)
	}
	return run, plan, nil
}
