package model

import (
	"time"
)

// RunStatus is the single-character state stored in the run log.
// A cleared (NULL) status means the run was deinitiated or is being
// cancelled by an operator.
type RunStatus string

const (
	// RunStatusInitiated marks a log row created with no side effects yet.
	RunStatusInitiated RunStatus = "I"
	// RunStatusWaiting marks a run parked behind the instance limit.
	RunStatusWaiting RunStatus = "W"
	// RunStatusStarted marks a run with a resolved window and sources.
	RunStatusStarted RunStatus = "S"
	// RunStatusProgress marks fetch/execute/save underway.
	RunStatusProgress RunStatus = "P"
	// RunStatusFinishing marks post-progress temp table cleanup.
	RunStatusFinishing RunStatus = "F"
	// RunStatusDone is the terminal success state.
	RunStatusDone RunStatus = "D"
	// RunStatusError is the terminal failure state.
	RunStatusError RunStatus = "E"
	// RunStatusCanceled is the terminal cancellation state.
	RunStatusCanceled RunStatus = "C"
	// RunStatusRevoked is the terminal state of a run whose results were removed.
	RunStatusRevoked RunStatus = "X"
)

// Valid returns true for a known status code.
func (s RunStatus) Valid() bool {
	switch s {
	case RunStatusInitiated, RunStatusWaiting, RunStatusStarted, RunStatusProgress,
		RunStatusFinishing, RunStatusDone, RunStatusError, RunStatusCanceled, RunStatusRevoked:
		return true
	}
	return false
}

// Terminal reports whether the status admits no further transitions.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunStatusDone, RunStatusError, RunStatusCanceled, RunStatusRevoked:
		return true
	}
	return false
}

// Label renders the operator-facing status name used by run projections.
func (s RunStatus) Label() string {
	switch s {
	case RunStatusInitiated:
		return "Initiated"
	case RunStatusWaiting:
		return "Waiting"
	case RunStatusStarted, RunStatusProgress, RunStatusFinishing:
		return "Running"
	case RunStatusDone:
		return "Success"
	case RunStatusError:
		return "Error"
	case RunStatusCanceled:
		return "Canceled"
	case RunStatusRevoked:
		return "Revoked"
	}
	return string(s)
}

// NonTerminalStatuses are the states a live run moves through.
var NonTerminalStatuses = []RunStatus{
	RunStatusInitiated, RunStatusWaiting, RunStatusStarted,
	RunStatusProgress, RunStatusFinishing,
}

// RunsListOptions controls paging and filtering for listing control runs.
// Notes:
// - Sort supports: "added", "start_date", "end_date" (case-insensitive).
// - Dir supports: "asc", "desc" (case-insensitive); values are normalized internally.
// - ControlID, ControlName and Status match exactly; a nil Status is no filter,
//   while Deinitiated selects runs whose status was cleared.
// - Live selects only non-terminal runs.
type RunsListOptions struct {
	Limit       int
	Offset      int
	ControlID   *int64
	ControlName *string
	Status      *RunStatus
	Deinitiated bool
	Live        bool
	AddedSince  *time.Time
	AddedUntil  *time.Time
	Sort        string
	Dir         string
}

// ControlRun is one row of the run log table.
type ControlRun struct {
	ProcessID         int64      `json:"process_id"                   db:"process_id"`
	ControlID         int64      `json:"control_id"                   db:"control_id"`
	Added             time.Time  `json:"added"                        db:"added"`
	Status            *RunStatus `json:"status,omitempty"             db:"status"`
	StartDate         *time.Time `json:"start_date,omitempty"         db:"start_date"`
	EndDate           *time.Time `json:"end_date,omitempty"           db:"end_date"`
	Updated           *time.Time `json:"updated,omitempty"            db:"updated"`
	DateFrom          *time.Time `json:"date_from,omitempty"          db:"date_from"`
	DateTo            *time.Time `json:"date_to,omitempty"            db:"date_to"`
	FetchedNumber     *int64     `json:"fetched_number,omitempty"     db:"fetched_number"`
	SuccessNumber     *int64     `json:"success_number,omitempty"     db:"success_number"`
	ErrorNumber       *int64     `json:"error_number,omitempty"       db:"error_number"`
	ErrorLevel        *float64   `json:"error_level,omitempty"        db:"error_level"`
	FetchedNumberA    *int64     `json:"fetched_number_a,omitempty"   db:"fetched_number_a"`
	SuccessNumberA    *int64     `json:"success_number_a,omitempty"   db:"success_number_a"`
	ErrorNumberA      *int64     `json:"error_number_a,omitempty"     db:"error_number_a"`
	ErrorLevelA       *float64   `json:"error_level_a,omitempty"      db:"error_level_a"`
	FetchedNumberB    *int64     `json:"fetched_number_b,omitempty"   db:"fetched_number_b"`
	SuccessNumberB    *int64     `json:"success_number_b,omitempty"   db:"success_number_b"`
	ErrorNumberB      *int64     `json:"error_number_b,omitempty"     db:"error_number_b"`
	ErrorLevelB       *float64   `json:"error_level_b,omitempty"      db:"error_level_b"`
	PrerequisiteValue *float64   `json:"prerequisite_value,omitempty" db:"prerequisite_value"`
	TextLog           *string    `json:"text_log,omitempty"           db:"text_log"`
	TextError         *string    `json:"text_error,omitempty"         db:"text_error"`
	TextMessage       *string    `json:"text_message,omitempty"       db:"text_message"`
}

// StatusOrCleared returns the status code or an empty string for NULL.
func (r *ControlRun) StatusOrCleared() RunStatus {
	if r.Status == nil {
		return ""
	}
	return *r.Status
}

// RunWithControl joins a run with the name and kind of its control.
type RunWithControl struct {
	ControlRun
	ControlName string      `json:"control_name" db:"control_name"`
	ControlType ControlType `json:"control_type" db:"control_type"`
}

// RunSummary is the derived per-run projection served to operators.
// Counters from the A side fall back to the B side so two-sided controls
// show a single figure, and a cleared status reads as Canceled.
type RunSummary struct {
	ProcessID       int64      `json:"process_id"                 db:"process_id"`
	ControlID       int64      `json:"control_id"                 db:"control_id"`
	ControlName     string     `json:"control_name"               db:"control_name"`
	ControlType     string     `json:"control_type"               db:"control_type"`
	StatusLabel     string     `json:"status"                     db:"status"`
	Added           time.Time  `json:"added"                      db:"added"`
	StartDate       *time.Time `json:"start_date,omitempty"       db:"start_date"`
	EndDate         *time.Time `json:"end_date,omitempty"         db:"end_date"`
	DateFrom        *time.Time `json:"date_from,omitempty"        db:"date_from"`
	DateTo          *time.Time `json:"date_to,omitempty"          db:"date_to"`
	Fetched         *int64     `json:"fetched,omitempty"          db:"fetched"`
	Success         *int64     `json:"success,omitempty"          db:"success"`
	Errors          *int64     `json:"errors,omitempty"           db:"errors"`
	ErrorLevel      *float64   `json:"error_level,omitempty"      db:"error_level"`
	DurationMinutes *float64   `json:"duration_minutes,omitempty" db:"duration_minutes"`
	TextError       *string    `json:"text_error,omitempty"       db:"text_error"`
}

// RunCounters carries the figures a finished phase writes back to the log.
type RunCounters struct {
	Fetched  *int64
	Success  *int64
	Errors   *int64
	Level    *float64
	FetchedA *int64
	SuccessA *int64
	ErrorsA  *int64
	LevelA   *float64
	FetchedB *int64
	SuccessB *int64
	ErrorsB  *int64
	LevelB   *float64
}

// FetchResult carries the row counts of the fetch stage. One-sided
// kinds fill Fetched, two-sided kinds fill FetchedA and FetchedB.
type FetchResult struct {
	Fetched  int64
	FetchedA int64
	FetchedB int64
}

// Counters converts the fetch figures into run counters for the log.
func (r FetchResult) Counters(controlType ControlType) RunCounters {
	var counters RunCounters
	if controlType.TwoSided() {
		fetchedA, fetchedB := r.FetchedA, r.FetchedB
		counters.FetchedA = &fetchedA
		counters.FetchedB = &fetchedB
		return counters
	}
	fetched := r.Fetched
	counters.Fetched = &fetched
	return counters
}

// ErrorLevel computes errors as a share of the given base in percent.
// A zero base yields nil so the log keeps the counter empty.
func ErrorLevel(errors, base int64) *float64 {
	if base <= 0 {
		return nil
	}
	level := float64(errors) / float64(base) * 100
	return &level
}
