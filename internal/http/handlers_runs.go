// Package httpx provides the HTTP surface of the rapo control engine:
// a token-authenticated JSON API dispatching to the run lifecycle,
// the control configuration service and the read-only projections.
package httpx

import (
	"context"
	"net/http"

	"github.com/t3eHawk/rapo/internal/domain/model"
	apperrors "github.com/t3eHawk/rapo/internal/errors"
	"github.com/t3eHawk/rapo/internal/service"
	"github.com/t3eHawk/rapo/internal/service/runner"
)

// ControlLauncher is the slice of the run lifecycle the API dispatches
// to. Implemented by runner.Runner.
type ControlLauncher interface {
	Launch(ctx context.Context, req runner.RunRequest) (int64, error)
	Cancel(ctx context.Context, processID int64) error
	Revoke(ctx context.Context, processID int64) error
	DropTemporaryTables(ctx context.Context, processID int64) error
}

// RunHandlers provides HTTP handlers for run operations.
type RunHandlers struct {
	Launcher ControlLauncher
	Reader   *service.ReaderService
}

// RunControl launches a run of the named control in the background and
// responds with the process id of its log row.
func (h *RunHandlers) RunControl(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		writeServiceError(w, apperrors.Validation("name is required"))
		return
	}

	trigger, err := parseTimeQuery(r, "date")
	if err != nil {
		writeServiceError(w, err)
		return
	}
	dateFrom, err := parseTimeQuery(r, "date_from")
	if err != nil {
		writeServiceError(w, err)
		return
	}
	dateTo, err := parseTimeQuery(r, "date_to")
	if err != nil {
		writeServiceError(w, err)
		return
	}

	req := runner.RunRequest{
		ControlName: name,
		DateFrom:    dateFrom,
		DateTo:      dateTo,
		Debug:       parseBoolQuery(r, "debug_mode", false),
	}
	if trigger != nil {
		req.Trigger = *trigger
	}

	processID, err := h.Launcher.Launch(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]int64{"process_id": processID})
}

// CancelControl clears the status of a live run; its supervisor notices
// the cleared row and cancels the run.
func (h *RunHandlers) CancelControl(w http.ResponseWriter, r *http.Request) {
	processID, err := parseIDQuery(r, "id")
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if err := h.Launcher.Cancel(r.Context(), processID); err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"process_id": processID, "status": "canceling"})
}

// RevokeControlRun marks a finished run revoked and deletes its output
// records.
func (h *RunHandlers) RevokeControlRun(w http.ResponseWriter, r *http.Request) {
	processID, err := parseIDQuery(r, "id")
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if err := h.Launcher.Revoke(r.Context(), processID); err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"process_id": processID,
		"status":     string(model.RunStatusRevoked),
	})
}

// DeleteControlTemporaryTables drops the temp tables of one run, e.g.
// after a debug_mode launch kept them.
func (h *RunHandlers) DeleteControlTemporaryTables(w http.ResponseWriter, r *http.Request) {
	processID, err := parseIDQuery(r, "id")
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if err := h.Launcher.DropTemporaryTables(r.Context(), processID); err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// GetRunningControls lists the runs currently in progress.
func (h *RunHandlers) GetRunningControls(w http.ResponseWriter, r *http.Request) {
	runs, err := h.Reader.RunningControls(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, runs)
}

const (
	defaultRunsLimit = 100
	maxRunsLimit     = 200
)

// GetControlRuns returns recent run summaries with decoded status
// labels and coalesced counters.
func (h *RunHandlers) GetControlRuns(w http.ResponseWriter, r *http.Request) {
	limit, offset := ParseLimitOffset(r, defaultRunsLimit, maxRunsLimit)
	opts := model.RunsListOptions{
		Limit:  limit,
		Offset: offset,
		Sort:   "added",
		Dir:    "desc",
	}
	if name := r.URL.Query().Get("control_name"); name != "" {
		opts.ControlName = &name
	}
	if status := r.URL.Query().Get("status"); status != "" {
		s := model.RunStatus(status)
		opts.Status = &s
	}

	summaries, err := h.Reader.ControlRuns(r.Context(), opts)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, summaries)
}

// GetControlRun returns the full log row of one run.
func (h *RunHandlers) GetControlRun(w http.ResponseWriter, r *http.Request) {
	processID, err := parseIDQuery(r, "process_id")
	if err != nil {
		writeServiceError(w, err)
		return
	}
	run, err := h.Reader.GetControlRun(r.Context(), processID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, run)
}

// ReadControlLogs returns run log text either for one process
// (process_id) or for the recent runs of a control (control_name, days).
func (h *RunHandlers) ReadControlLogs(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("process_id") != "" {
		processID, err := parseIDQuery(r, "process_id")
		if err != nil {
			writeServiceError(w, err)
			return
		}
		logs, err := h.Reader.ReadControlLogs(r.Context(), processID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, logs)
		return
	}

	name := r.URL.Query().Get("control_name")
	if name == "" {
		writeServiceError(w, apperrors.Validation("control_name or process_id is required"))
		return
	}
	days := parseIntQuery(r, "days", 1)
	logs, err := h.Reader.ControlLogs(r.Context(), name, days)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, logs)
}
