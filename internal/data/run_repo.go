package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/t3eHawk/rapo/internal/data/pgxutil"
	"github.com/t3eHawk/rapo/internal/domain/model"
)

// ErrRunNotFound is returned when a run log row is not found.
var ErrRunNotFound = errors.New("control run not found")

// RunRepo provides database operations for the control run log.
type RunRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// NewRunRepo creates a new RunRepo with real time provider.
func NewRunRepo(db *sql.DB) *RunRepo {
	return &RunRepo{DB: db, timeProvider: &RealTimeProvider{}}
}

// NewRunRepoWithTimeProvider creates a new RunRepo with a custom time provider (useful for tests).
func NewRunRepoWithTimeProvider(db *sql.DB, tp TimeProvider) *RunRepo {
	return &RunRepo{DB: db, timeProvider: tp}
}

// runColumns defines the column list for run log SELECT queries to ensure
// consistent field mapping.
const runColumns = `process_id, control_id, added, status, start_date, end_date, updated, ` +
	`date_from, date_to, ` +
	`fetched_number, success_number, error_number, error_level, ` +
	`fetched_number_a, success_number_a, error_number_a, error_level_a, ` +
	`fetched_number_b, success_number_b, error_number_b, error_level_b, ` +
	`prerequisite_value, text_log, text_error, text_message`

// runColumnsJoined is the l.-aliased column list plus the joined control name
// and kind, for queries over rapo_log l JOIN rapo_config c.
const runColumnsJoined = `l.process_id, l.control_id, l.added, l.status, l.start_date, l.end_date, l.updated, ` +
	`l.date_from, l.date_to, ` +
	`l.fetched_number, l.success_number, l.error_number, l.error_level, ` +
	`l.fetched_number_a, l.success_number_a, l.error_number_a, l.error_level_a, ` +
	`l.fetched_number_b, l.success_number_b, l.error_number_b, l.error_level_b, ` +
	`l.prerequisite_value, l.text_log, l.text_error, l.text_message, ` +
	`c.control_name, c.control_type`

// runLiveCond selects runs that have not reached a terminal state.
const runLiveCond = `l.status IN ('I', 'W', 'S', 'P', 'F')`

const (
	runInsertQuery = `
		INSERT INTO rapo_log (control_id, added, status)
		VALUES ($1, $2, 'I')
		RETURNING ` + runColumns

	runGetByIDQuery = `
		SELECT ` + runColumns + `
		FROM rapo_log
		WHERE process_id = $1`

	runUpdateStatusQuery = `
		UPDATE rapo_log SET status = $2, updated = $3
		WHERE process_id = $1`

	runFinishQuery = `
		UPDATE rapo_log SET status = $2, updated = $3, end_date = $3
		WHERE process_id = $1`

	runClearStatusQuery = `
		UPDATE rapo_log SET status = NULL, updated = $2
		WHERE process_id = $1`

	runMarkStartedQuery = `
		UPDATE rapo_log
		SET status = 'S', start_date = $2, date_from = $3, date_to = $4, updated = $2
		WHERE process_id = $1`

	runCountActiveQuery = `
		SELECT COUNT(*)
		FROM rapo_log
		WHERE control_id = $1 AND status IN ('I', 'S', 'P', 'F') AND added >= $2`

	runListHungQuery = `
		SELECT ` + runColumns + `
		FROM rapo_log
		WHERE status IN ('I', 'W', 'S', 'P', 'F') AND COALESCE(updated, added) < $1
		ORDER BY process_id`
)

// Initiate inserts a run log row in state I for the given control.
func (r *RunRepo) Initiate(ctx context.Context, controlID int64) (*model.ControlRun, error) {
	added := r.timeProvider.Now().UTC()

	var out model.ControlRun
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, runInsertQuery, controlID, added)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.ControlRun])
		return err
	}); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return nil, ErrControlNotFound
		}
		return nil, fmt.Errorf("failed to initiate run: %w", err)
	}
	return &out, nil
}

// GetByID retrieves a run by process ID.
func (r *RunRepo) GetByID(ctx context.Context, processID int64) (*model.ControlRun, error) {
	var run model.ControlRun
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, runGetByIDQuery, processID)
		if err != nil {
			return err
		}
		defer rows.Close()
		run, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.ControlRun])
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRunNotFound
		}
		return nil, fmt.Errorf("failed to get run by ID: %w", err)
	}
	return &run, nil
}

// UpdateStatus moves a run to the given status, advancing updated. Terminal
// statuses also stamp end_date. Transition legality is the caller's concern.
func (r *RunRepo) UpdateStatus(ctx context.Context, processID int64, status model.RunStatus) error {
	if !status.Valid() {
		return fmt.Errorf("invalid run status: %q", status)
	}
	query := runUpdateStatusQuery
	if status.Terminal() {
		query = runFinishQuery
	}
	return r.execOnRun(ctx, query, processID, status, r.timeProvider.Now().UTC())
}

// ClearStatus sets a run status to NULL, which deinitiates the run.
func (r *RunRepo) ClearStatus(ctx context.Context, processID int64) error {
	return r.execOnRun(ctx, runClearStatusQuery, processID, r.timeProvider.Now().UTC())
}

// MarkStarted moves a run to S with its resolved date window.
func (r *RunRepo) MarkStarted(ctx context.Context, processID int64, dateFrom, dateTo time.Time) error {
	return r.execOnRun(ctx, runMarkStartedQuery, processID,
		r.timeProvider.Now().UTC(), dateFrom, dateTo)
}

// WriteCounters persists the non-nil counters of a finished phase.
func (r *RunRepo) WriteCounters(ctx context.Context, processID int64, counters model.RunCounters) error {
	setParts := make([]string, 0, 8)
	args := make([]any, 0, 8)
	args = append(args, processID)
	set := func(col string, v any) {
		args = append(args, v)
		setParts = append(setParts, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if counters.Fetched != nil {
		set("fetched_number", *counters.Fetched)
	}
	if counters.Success != nil {
		set("success_number", *counters.Success)
	}
	if counters.Errors != nil {
		set("error_number", *counters.Errors)
	}
	if counters.Level != nil {
		set("error_level", *counters.Level)
	}
	if counters.FetchedA != nil {
		set("fetched_number_a", *counters.FetchedA)
	}
	if counters.SuccessA != nil {
		set("success_number_a", *counters.SuccessA)
	}
	if counters.ErrorsA != nil {
		set("error_number_a", *counters.ErrorsA)
	}
	if counters.LevelA != nil {
		set("error_level_a", *counters.LevelA)
	}
	if counters.FetchedB != nil {
		set("fetched_number_b", *counters.FetchedB)
	}
	if counters.SuccessB != nil {
		set("success_number_b", *counters.SuccessB)
	}
	if counters.ErrorsB != nil {
		set("error_number_b", *counters.ErrorsB)
	}
	if counters.LevelB != nil {
		set("error_level_b", *counters.LevelB)
	}
	if len(setParts) == 0 {
		return nil
	}
	set("updated", r.timeProvider.Now().UTC())

	query := "UPDATE rapo_log SET " + strings.Join(setParts, ", ") + " WHERE process_id = $1"
	return r.execOnRunArgs(ctx, query, args)
}

// SetPrerequisiteValue records the scalar produced by the prerequisite statement.
func (r *RunRepo) SetPrerequisiteValue(ctx context.Context, processID int64, value float64) error {
	return r.execOnRun(ctx, `
		UPDATE rapo_log SET prerequisite_value = $2, updated = $3
		WHERE process_id = $1`,
		processID, value, r.timeProvider.Now().UTC())
}

// AppendLog appends a line to the run text log.
func (r *RunRepo) AppendLog(ctx context.Context, processID int64, text string) error {
	return r.appendText(ctx, "text_log", processID, text)
}

// AppendError appends a line to the run error text.
func (r *RunRepo) AppendError(ctx context.Context, processID int64, text string) error {
	return r.appendText(ctx, "text_error", processID, text)
}

// SetMessage sets the free-form run message.
func (r *RunRepo) SetMessage(ctx context.Context, processID int64, text string) error {
	return r.execOnRun(ctx, `
		UPDATE rapo_log SET text_message = $2, updated = $3
		WHERE process_id = $1`,
		processID, text, r.timeProvider.Now().UTC())
}

func (r *RunRepo) appendText(ctx context.Context, column string, processID int64, text string) error {
	// NULL || x is NULL, so an absent value collapses to just the new text.
	query := fmt.Sprintf(`
		UPDATE rapo_log SET %s = COALESCE(%s || E'\n', '') || $2, updated = $3
		WHERE process_id = $1`, column, column)
	return r.execOnRun(ctx, query, processID, text, r.timeProvider.Now().UTC())
}

// CountActive counts runs of a control that occupy an execution slot,
// which excludes parked W runs so waiters cannot starve each other.
func (r *RunRepo) CountActive(ctx context.Context, controlID int64, since time.Time) (int64, error) {
	var count int64
	if err := r.DB.QueryRowContext(ctx, runCountActiveQuery, controlID, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count active runs: %w", err)
	}
	return count, nil
}

// ListHung retrieves non-terminal runs whose last update precedes the cutoff.
func (r *RunRepo) ListHung(ctx context.Context, cutoff time.Time) ([]*model.ControlRun, error) {
	var rowsOut []model.ControlRun
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, runListHungQuery, cutoff)
		if err != nil {
			return err
		}
		defer rows.Close()
		rowsOut, err = pgx.CollectRows(rows, pgx.RowToStructByName[model.ControlRun])
		return err
	}); err != nil {
		return nil, fmt.Errorf("failed to list hung runs: %w", err)
	}
	res := make([]*model.ControlRun, len(rowsOut))
	for i := range rowsOut {
		res[i] = &rowsOut[i]
	}
	return res, nil
}

// ListWithOptions retrieves runs joined with their control name and kind.
func (r *RunRepo) ListWithOptions(
	ctx context.Context,
	opts model.RunsListOptions,
) ([]*model.RunWithControl, error) {
	limit, offset := normalizeRunPagination(opts.Limit, opts.Offset)
	sortCol, sortDir := validateRunSortOptions(opts.Sort, opts.Dir)
	whereClause, args, argIndex := buildRunWhereClause(&opts)

	var queryBuilder strings.Builder
	queryBuilder.WriteString("SELECT ")
	queryBuilder.WriteString(runColumnsJoined)
	queryBuilder.WriteString(" FROM rapo_log l JOIN rapo_config c ON c.control_id = l.control_id ")
	queryBuilder.WriteString(whereClause)
	queryBuilder.WriteString(fmt.Sprintf(" ORDER BY l.%s %s, l.process_id DESC", sortCol, sortDir))
	queryBuilder.WriteString(" LIMIT $")
	queryBuilder.WriteString(strconv.Itoa(argIndex))
	queryBuilder.WriteString(" OFFSET $")
	queryBuilder.WriteString(strconv.Itoa(argIndex + 1))
	query := queryBuilder.String()

	args = append(args, limit, offset)

	var runs []*model.RunWithControl
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		runs, err = pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[model.RunWithControl])
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}

// runSummaryColumns is the operator-facing projection. Single-sided counters
// fall back to the A then B side, and a cleared status reads as Canceled.
const runSummaryColumns = `l.process_id, l.control_id, c.control_name, c.control_type,
		CASE
			WHEN l.status = 'I' THEN 'Initiated'
			WHEN l.status = 'W' THEN 'Waiting'
			WHEN l.status IN ('S', 'P', 'F') THEN 'Running'
			WHEN l.status = 'D' THEN 'Success'
			WHEN l.status = 'E' THEN 'Error'
			WHEN l.status = 'X' THEN 'Revoked'
			ELSE 'Canceled'
		END AS status,
		l.added, l.start_date, l.end_date, l.date_from, l.date_to,
		COALESCE(l.fetched_number, l.fetched_number_a, l.fetched_number_b) AS fetched,
		COALESCE(l.success_number, l.success_number_a, l.success_number_b) AS success,
		COALESCE(l.error_number, l.error_number_a, l.error_number_b) AS errors,
		COALESCE(l.error_level, l.error_level_a, l.error_level_b) AS error_level,
		(EXTRACT(EPOCH FROM (COALESCE(l.end_date, now()) - l.start_date)) / 60)::double precision AS duration_minutes,
		l.text_error`

// Summaries retrieves the derived run projection with the same filters as
// ListWithOptions.
func (r *RunRepo) Summaries(
	ctx context.Context,
	opts model.RunsListOptions,
) ([]*model.RunSummary, error) {
	limit, offset := normalizeRunPagination(opts.Limit, opts.Offset)
	sortCol, sortDir := validateRunSortOptions(opts.Sort, opts.Dir)
	whereClause, args, argIndex := buildRunWhereClause(&opts)

	var queryBuilder strings.Builder
	queryBuilder.WriteString("SELECT ")
	queryBuilder.WriteString(runSummaryColumns)
	queryBuilder.WriteString(" FROM rapo_log l JOIN rapo_config c ON c.control_id = l.control_id ")
	queryBuilder.WriteString(whereClause)
	queryBuilder.WriteString(fmt.Sprintf(" ORDER BY l.%s %s, l.process_id DESC", sortCol, sortDir))
	queryBuilder.WriteString(" LIMIT $")
	queryBuilder.WriteString(strconv.Itoa(argIndex))
	queryBuilder.WriteString(" OFFSET $")
	queryBuilder.WriteString(strconv.Itoa(argIndex + 1))
	query := queryBuilder.String()

	args = append(args, limit, offset)

	var summaries []*model.RunSummary
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		summaries, err = pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[model.RunSummary])
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list run summaries: %w", err)
	}
	return summaries, nil
}

// --- helpers ---

// execOnRun executes a statement keyed by process ID and reports ErrRunNotFound
// when no row was touched.
func (r *RunRepo) execOnRun(ctx context.Context, query string, args ...any) error {
	return r.execOnRunArgs(ctx, query, args)
}

func (r *RunRepo) execOnRunArgs(ctx context.Context, query string, args []any) error {
	result, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return ErrRunNotFound
	}
	return nil
}

func normalizeRunPagination(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 1000 {
		limit = 1000
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// validateRunSortOptions validates and returns safe sort column and direction.
func validateRunSortOptions(sort, dir string) (string, string) {
	switch strings.ToLower(strings.TrimSpace(sort)) {
	case "added", "start_date", "end_date":
		sort = strings.ToLower(strings.TrimSpace(sort))
	default:
		sort = "added"
	}

	if strings.EqualFold(dir, "asc") {
		dir = sortDirAsc
	} else {
		dir = sortDirDesc
	}
	return sort, dir
}

// buildRunWhereClause builds the WHERE clause and arguments for run list
// queries over the aliased join.
func buildRunWhereClause(opts *model.RunsListOptions) (string, []any, int) {
	var conditions []string
	var args []any
	argIndex := 1

	if opts.ControlID != nil {
		conditions = append(conditions, fmt.Sprintf("l.control_id = $%d", argIndex))
		args = append(args, *opts.ControlID)
		argIndex++
	}
	if opts.ControlName != nil {
		conditions = append(conditions, fmt.Sprintf("c.control_name = $%d", argIndex))
		args = append(args, *opts.ControlName)
		argIndex++
	}
	if opts.Status != nil {
		conditions = append(conditions, fmt.Sprintf("l.status = $%d", argIndex))
		args = append(args, *opts.Status)
		argIndex++
	}
	if opts.Deinitiated {
		conditions = append(conditions, "l.status IS NULL")
	}
	if opts.Live {
		conditions = append(conditions, runLiveCond)
	}
	if opts.AddedSince != nil {
		conditions = append(conditions, fmt.Sprintf("l.added >= $%d", argIndex))
		args = append(args, *opts.AddedSince)
		argIndex++
	}
	if opts.AddedUntil != nil {
		conditions = append(conditions, fmt.Sprintf("l.added < $%d", argIndex))
		args = append(args, *opts.AddedUntil)
		argIndex++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}
	return whereClause, args, argIndex
}
