package core

import (
	"context"
	"time"

	"github.com/t3eHawk/rapo/internal/domain/control"
	"github.com/t3eHawk/rapo/internal/domain/model"
)

// This file contains repository interface definitions (ports in hexagonal architecture).
// These interfaces define the contracts between the service layer and data layer.
// Service implementations should depend on these interfaces, not concrete implementations.

// ControlRepository defines the interface for control configuration operations.
type ControlRepository interface {
	// Save creates the control or, when the request carries an ID,
	// updates it after archiving the previous revision.
	Save(ctx context.Context, req *model.SaveControlRequest) (*model.ControlConfig, error)
	GetByID(ctx context.Context, id int64) (*model.ControlConfig, error)
	GetByName(ctx context.Context, name string) (*model.ControlConfig, error)
	ListWithOptions(ctx context.Context, opts model.ControlsListOptions) ([]*model.ControlConfig, error)
	// ListActive returns the scheduled controls the scheduler ticks over.
	ListActive(ctx context.Context) ([]*model.ControlConfig, error)
	Versions(ctx context.Context, controlID int64, limit, offset int) ([]*model.ControlVersion, error)
	Delete(ctx context.Context, id int64) (bool, error)
	// Backup archives every control configuration into the backup table
	// and returns the number of archived rows.
	Backup(ctx context.Context) (int64, error)
}

// RunRepository defines the interface for run log operations.
type RunRepository interface {
	Initiate(ctx context.Context, controlID int64) (*model.ControlRun, error)
	GetByID(ctx context.Context, processID int64) (*model.ControlRun, error)
	UpdateStatus(ctx context.Context, processID int64, status model.RunStatus) error
	// ClearStatus nulls the status, deinitiating a run that never started.
	ClearStatus(ctx context.Context, processID int64) error
	MarkStarted(ctx context.Context, processID int64, dateFrom, dateTo time.Time) error
	WriteCounters(ctx context.Context, processID int64, counters model.RunCounters) error
	SetPrerequisiteValue(ctx context.Context, processID int64, value float64) error
	AppendLog(ctx context.Context, processID int64, text string) error
	AppendError(ctx context.Context, processID int64, text string) error
	SetMessage(ctx context.Context, processID int64, text string) error
	CountActive(ctx context.Context, controlID int64, since time.Time) (int64, error)
	ListHung(ctx context.Context, cutoff time.Time) ([]*model.ControlRun, error)
	ListWithOptions(ctx context.Context, opts model.RunsListOptions) ([]*model.RunWithControl, error)
	Summaries(ctx context.Context, opts model.RunsListOptions) ([]*model.RunSummary, error)
}

// OccupyRecordParams identifies the process claiming a singleton record.
type OccupyRecordParams struct {
	Server   string
	Username string
	PID      int
	// Force seizes the record even when it reads occupied, for taking over
	// after the recorded owner is found dead.
	Force bool
}

// ProcessRecordRepository defines the interface for the singleton owner
// records of the scheduler and the web API.
type ProcessRecordRepository interface {
	Get(ctx context.Context) (*model.ProcessRecord, error)
	Occupy(ctx context.Context, params OccupyRecordParams) (*model.ProcessRecord, error)
	Release(ctx context.Context, pid int) error
}

// CheckpointRepository defines the interface for per-control run locks.
type CheckpointRepository interface {
	Acquire(ctx context.Context, controlID, processID int64) (*model.Checkpoint, error)
	Get(ctx context.Context, controlID int64) (*model.Checkpoint, error)
	List(ctx context.Context) ([]*model.Checkpoint, error)
	Release(ctx context.Context, controlID, processID int64) error
	// Sweep drops checkpoints older than the cutoff, releasing locks of
	// runs that died without cleaning up.
	Sweep(ctx context.Context, before time.Time) (int64, error)
}

// CatalogRepository defines the interface for schema introspection,
// serving source pickers and configuration validation.
type CatalogRepository interface {
	List(ctx context.Context) ([]*model.Datasource, error)
	Columns(ctx context.Context, name string) ([]*model.DatasourceColumn, error)
	ColumnNames(ctx context.Context, name string) ([]string, error)
	Exists(ctx context.Context, name string) (bool, error)
	IsTable(ctx context.Context, name string) (bool, error)
	IsView(ctx context.Context, name string) (bool, error)
	IsMaterializedView(ctx context.Context, name string) (bool, error)
}

// ControlExecutor defines the interface for the SQL stages of a control
// run. Implementations work inside the monitored database; everything
// they need arrives in the parsed plan.
type ControlExecutor interface {
	Fetch(ctx context.Context, plan *control.Plan) (model.FetchResult, error)
	Execute(ctx context.Context, plan *control.Plan, fetch model.FetchResult) (model.RunCounters, error)
	SaveFindings(ctx context.Context, plan *control.Plan, fetch model.FetchResult, counters model.RunCounters) error
	DeleteOutputRecords(ctx context.Context, plan *control.Plan) error
	DropTemporaryTables(ctx context.Context, plan *control.Plan) error
	DropTable(ctx context.Context, table string) error
	Clean(ctx context.Context, cfg model.ControlConfig) (int64, error)
	RunPrerequisite(ctx context.Context, plan *control.Plan) (*float64, error)
	RunPreparation(ctx context.Context, plan *control.Plan) (int64, error)
	RunCompletion(ctx context.Context, plan *control.Plan) (int64, error)
	PrerunHook(ctx context.Context, processID int64) (bool, string, error)
	PostrunHook(ctx context.Context, processID int64) error
}
