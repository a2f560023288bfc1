package model

import "time"

// ProcessRecord is the singleton row registering a live scheduler or
// web API owner. At most one row per table may carry status Y.
type ProcessRecord struct {
	Server    string     `json:"server"               db:"server"`
	Username  string     `json:"username"             db:"username"`
	PID       int        `json:"pid"                  db:"pid"`
	StartDate *time.Time `json:"start_date,omitempty" db:"start_date"`
	StopDate  *time.Time `json:"stop_date,omitempty"  db:"stop_date"`
	Status    Flag       `json:"status"               db:"status"`
}

// Alive reports whether the record claims a running owner.
func (r *ProcessRecord) Alive() bool {
	return r != nil && r.Status.Bool()
}

// Checkpoint guards one control against concurrent runs. The unique
// constraint on control_id is the actual lock.
type Checkpoint struct {
	ControlID int64     `json:"control_id" db:"control_id"`
	ProcessID int64     `json:"process_id" db:"process_id"`
	Added     time.Time `json:"added"      db:"added"`
}
