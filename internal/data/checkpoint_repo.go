package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/t3eHawk/rapo/internal/data/pgxutil"
	"github.com/t3eHawk/rapo/internal/domain/model"
)

var (
	// ErrCheckpointHeld is returned when another run already holds the control checkpoint.
	ErrCheckpointHeld = errors.New("checkpoint already held")
	// ErrCheckpointNotHeld is returned when releasing a checkpoint the run does not hold.
	ErrCheckpointNotHeld = errors.New("checkpoint not held")
)

// CheckpointRepo provides database operations for the per-control run locks.
// The unique constraint on control_id is the actual mutual exclusion.
type CheckpointRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// NewCheckpointRepo creates a new CheckpointRepo with real time provider.
func NewCheckpointRepo(db *sql.DB) *CheckpointRepo {
	return &CheckpointRepo{DB: db, timeProvider: &RealTimeProvider{}}
}

// NewCheckpointRepoWithTimeProvider creates a new CheckpointRepo with a custom time provider (useful for tests).
func NewCheckpointRepoWithTimeProvider(db *sql.DB, tp TimeProvider) *CheckpointRepo {
	return &CheckpointRepo{DB: db, timeProvider: tp}
}

const checkpointColumns = `control_id, process_id, added`

// Acquire takes the checkpoint of a control for the given run. A held
// checkpoint surfaces as ErrCheckpointHeld.
func (r *CheckpointRepo) Acquire(ctx context.Context, controlID, processID int64) (*model.Checkpoint, error) {
	query := `
		INSERT INTO rapo_checkpoint (control_id, process_id, added)
		VALUES ($1, $2, $3)
		RETURNING ` + checkpointColumns

	var cp model.Checkpoint
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query, controlID, processID, r.timeProvider.Now().UTC())
		if err != nil {
			return err
		}
		defer rows.Close()
		cp, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Checkpoint])
		return err
	})
	if err != nil {
		return nil, r.mapAcquireErr(err)
	}
	return &cp, nil
}

func (r *CheckpointRepo) mapAcquireErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return ErrCheckpointHeld
		case "23503":
			if strings.Contains(pgErr.ConstraintName, "process_id") {
				return ErrRunNotFound
			}
			return ErrControlNotFound
		}
	}
	return fmt.Errorf("failed to acquire checkpoint: %w", err)
}

// Get retrieves the checkpoint of a control, or nil when none is held.
func (r *CheckpointRepo) Get(ctx context.Context, controlID int64) (*model.Checkpoint, error) {
	query := `SELECT ` + checkpointColumns + ` FROM rapo_checkpoint WHERE control_id = $1`

	var cp model.Checkpoint
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query, controlID)
		if err != nil {
			return err
		}
		defer rows.Close()
		cp, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Checkpoint])
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get checkpoint: %w", err)
	}
	return &cp, nil
}

// List retrieves all held checkpoints, oldest first.
func (r *CheckpointRepo) List(ctx context.Context) ([]*model.Checkpoint, error) {
	query := `SELECT ` + checkpointColumns + ` FROM rapo_checkpoint ORDER BY added`

	var rowsOut []model.Checkpoint
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query)
		if err != nil {
			return err
		}
		defer rows.Close()
		rowsOut, err = pgx.CollectRows(rows, pgx.RowToStructByName[model.Checkpoint])
		return err
	}); err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}
	res := make([]*model.Checkpoint, len(rowsOut))
	for i := range rowsOut {
		res[i] = &rowsOut[i]
	}
	return res, nil
}

// Release frees the checkpoint held by the given run.
func (r *CheckpointRepo) Release(ctx context.Context, controlID, processID int64) error {
	result, err := r.DB.ExecContext(ctx,
		`DELETE FROM rapo_checkpoint WHERE control_id = $1 AND process_id = $2`,
		controlID, processID)
	if err != nil {
		return fmt.Errorf("failed to release checkpoint: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return ErrCheckpointNotHeld
	}
	return nil
}

// Sweep deletes checkpoints whose run reached a terminal state or was
// deinitiated, plus any row older than the given cutoff. Returns the number
// of rows removed.
func (r *CheckpointRepo) Sweep(ctx context.Context, before time.Time) (int64, error) {
	query := `
		DELETE FROM rapo_checkpoint cp
		WHERE cp.added < $1
		   OR EXISTS (
			SELECT 1 FROM rapo_log l
			WHERE l.process_id = cp.process_id
			  AND (l.status IS NULL OR l.status IN ('D', 'E', 'C', 'X'))
		)`

	result, err := r.DB.ExecContext(ctx, query, before)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep checkpoints: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected, nil
}
