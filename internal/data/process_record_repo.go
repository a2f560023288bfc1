package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/t3eHawk/rapo/internal/core"
	"github.com/t3eHawk/rapo/internal/data/pgxutil"
	"github.com/t3eHawk/rapo/internal/domain/model"
)

var (
	// ErrRecordOccupied is returned when the singleton record already has a live owner.
	ErrRecordOccupied = errors.New("process record already occupied")
	// ErrRecordNotOccupied is returned when releasing a record the caller does not own.
	ErrRecordNotOccupied = errors.New("process record not occupied")
)

// Singleton tables served by ProcessRecordRepo.
const (
	schedulerRecordTable = "rapo_scheduler"
	webAPIRecordTable    = "rapo_web_api"
)

// ProcessRecordRepo provides database operations for one of the singleton
// owner records. The table name comes from the constructors only and is never
// caller-supplied.
type ProcessRecordRepo struct {
	DB           *sql.DB
	table        string
	timeProvider TimeProvider
}

// NewSchedulerRecordRepo creates a repo over the scheduler owner record.
func NewSchedulerRecordRepo(db *sql.DB) *ProcessRecordRepo {
	return &ProcessRecordRepo{DB: db, table: schedulerRecordTable, timeProvider: &RealTimeProvider{}}
}

// NewWebAPIRecordRepo creates a repo over the web API owner record.
func NewWebAPIRecordRepo(db *sql.DB) *ProcessRecordRepo {
	return &ProcessRecordRepo{DB: db, table: webAPIRecordTable, timeProvider: &RealTimeProvider{}}
}

// NewProcessRecordRepoWithTimeProvider creates a repo over the given record
// table with a custom time provider (useful for tests).
func NewProcessRecordRepoWithTimeProvider(db *sql.DB, forScheduler bool, tp TimeProvider) *ProcessRecordRepo {
	table := webAPIRecordTable
	if forScheduler {
		table = schedulerRecordTable
	}
	return &ProcessRecordRepo{DB: db, table: table, timeProvider: tp}
}

// processRecordColumns defines the column list for record SELECT queries to
// ensure consistent field mapping.
const processRecordColumns = `server, username, pid, start_date, stop_date, status`

// Get retrieves the singleton record.
func (r *ProcessRecordRepo) Get(ctx context.Context) (*model.ProcessRecord, error) {
	query := `SELECT ` + processRecordColumns + ` FROM ` + r.table

	var rec model.ProcessRecord
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query)
		if err != nil {
			return err
		}
		defer rows.Close()
		rec, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.ProcessRecord])
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get %s record: %w", r.table, err)
	}
	return &rec, nil
}

// Occupy claims the singleton record for the given process. Without Force the
// claim only succeeds when the record reads unoccupied; a lost claim returns
// ErrRecordOccupied.
func (r *ProcessRecordRepo) Occupy(ctx context.Context, params core.OccupyRecordParams) (*model.ProcessRecord, error) {
	cond := ""
	if !params.Force {
		cond = ` WHERE status = 'N'`
	}
	query := `UPDATE ` + r.table + `
		SET server = $1, username = $2, pid = $3, start_date = $4, stop_date = NULL, status = 'Y'` +
		cond + ` RETURNING ` + processRecordColumns

	var rec model.ProcessRecord
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query,
			params.Server, params.Username, params.PID, r.timeProvider.Now().UTC())
		if err != nil {
			return err
		}
		defer rows.Close()
		rec, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.ProcessRecord])
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRecordOccupied
		}
		return nil, fmt.Errorf("failed to occupy %s record: %w", r.table, err)
	}
	return &rec, nil
}

// Release marks the record unoccupied. Only the recorded owner pid can
// release; anyone else gets ErrRecordNotOccupied.
func (r *ProcessRecordRepo) Release(ctx context.Context, pid int) error {
	query := `UPDATE ` + r.table + `
		SET stop_date = $1, status = 'N'
		WHERE status = 'Y' AND pid = $2`

	result, err := r.DB.ExecContext(ctx, query, r.timeProvider.Now().UTC(), pid)
	if err != nil {
		return fmt.Errorf("failed to release %s record: %w", r.table, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return ErrRecordNotOccupied
	}
	return nil
}
