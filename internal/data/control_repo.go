package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/t3eHawk/rapo/internal/data/database"
	"github.com/t3eHawk/rapo/internal/data/pgxutil"
	"github.com/t3eHawk/rapo/internal/domain/model"
)

var (
	// ErrControlNotFound is returned when a control is not found.
	ErrControlNotFound = errors.New("control not found")
	// ErrControlNameExists is returned when attempting to create/update a control with a duplicate name.
	ErrControlNameExists = errors.New("control name already exists")
)

const (
	sortDirAsc  = "ASC"
	sortDirDesc = "DESC"
)

// ControlRepo provides database operations for control configurations.
type ControlRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// NewControlRepo creates a new ControlRepo with real time provider.
func NewControlRepo(db *sql.DB) *ControlRepo {
	return &ControlRepo{DB: db, timeProvider: &RealTimeProvider{}}
}

// NewControlRepoWithTimeProvider creates a new ControlRepo with a custom time provider (useful for tests).
func NewControlRepoWithTimeProvider(db *sql.DB, tp TimeProvider) *ControlRepo {
	return &ControlRepo{DB: db, timeProvider: tp}
}

// controlColumns defines the column list for configuration SELECT queries to
// ensure consistent field mapping.
const controlColumns = `control_id, control_name, control_description, control_group, ` +
	`control_type, control_subtype, control_engine, ` +
	`source_name, source_date_field, source_filter, ` +
	`source_name_a, source_date_field_a, source_filter_a, source_key_field_a, ` +
	`source_name_b, source_date_field_b, source_filter_b, source_key_field_b, ` +
	`rule_config, error_definition, case_config, case_definition, ` +
	`output_table, output_table_a, output_table_b, output_limit, ` +
	`iteration_config, schedule_config, ` +
	`period_back, period_number, period_type, ` +
	`parallelism, days_retention, timeout, instance_limit, ` +
	`need_a, need_b, need_hook, need_prerun_hook, need_postrun_hook, ` +
	`with_deletion, with_drop, status, ` +
	`prerequisite_sql, preparation_sql, completion_sql, ` +
	`created_date, updated_date`

// controlColumnList returns a slice of configuration column names for use with the query builder.
func controlColumnList() []string {
	return strings.Split(strings.ReplaceAll(controlColumns, " ", ""), ",")
}

// SQL query constants for static queries (no dynamic WHERE/ORDER BY).
const (
	controlGetByIDQuery = `
		SELECT ` + controlColumns + `
		FROM rapo_config
		WHERE control_id = $1`

	controlGetByNameQuery = `
		SELECT ` + controlColumns + `
		FROM rapo_config
		WHERE control_name = $1`

	controlListActiveQuery = `
		SELECT ` + controlColumns + `
		FROM rapo_config
		WHERE status = 'Y' AND schedule_config IS NOT NULL
		ORDER BY control_name`

	controlLockForSaveQuery = `
		SELECT ` + controlColumns + `
		FROM rapo_config
		WHERE control_id = $1
		FOR UPDATE`

	// controlBackupQuery copies the current row image into the audit table.
	// audit_date defaults to now() in the schema.
	controlBackupQuery = `
		INSERT INTO rapo_config_bak (audit_action, ` + controlColumns + `)
		SELECT $2, ` + controlColumns + `
		FROM rapo_config
		WHERE control_id = $1`

	// controlBackupAllQuery archives the full configuration table, used
	// by the periodic maintenance sweep.
	controlBackupAllQuery = `
		INSERT INTO rapo_config_bak (audit_action, ` + controlColumns + `)
		SELECT $1, ` + controlColumns + `
		FROM rapo_config`

	controlVersionsQuery = `
		SELECT audit_action, audit_date, ` + controlColumns + `
		FROM rapo_config_bak
		WHERE control_id = $1
		ORDER BY audit_date DESC, revision DESC
		LIMIT $2 OFFSET $3`

	controlInsertQuery = `
		INSERT INTO rapo_config (
			control_name, control_description, control_group,
			control_type, control_subtype, control_engine,
			source_name, source_date_field, source_filter,
			source_name_a, source_date_field_a, source_filter_a, source_key_field_a,
			source_name_b, source_date_field_b, source_filter_b, source_key_field_b,
			rule_config, error_definition, case_config, case_definition,
			output_table, output_table_a, output_table_b, output_limit,
			iteration_config, schedule_config,
			period_back, period_number, period_type,
			parallelism, days_retention, timeout, instance_limit,
			need_a, need_b, need_hook, need_prerun_hook, need_postrun_hook,
			with_deletion, with_drop, status,
			prerequisite_sql, preparation_sql, completion_sql,
			created_date
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18, $19, $20,
			$21, $22, $23, $24, $25, $26, $27, $28, $29, $30,
			$31, $32, $33, $34, $35, $36, $37, $38, $39, $40,
			$41, $42, $43, $44, $45, $46
		) RETURNING ` + controlColumns
)

// Save inserts or updates a control configuration. Presence of ControlID in
// the request selects update; only non-nil fields are written. An update
// copies the prior row image into rapo_config_bak with audit action U inside
// the same transaction.
//
// Clearing semantics for updates: empty strings clear nullable text fields,
// JSON null (or empty) clears JSON fields, and zero or negative values clear
// output_limit, parallelism, timeout and instance_limit.
func (r *ControlRepo) Save(ctx context.Context, req *model.SaveControlRequest) (*model.ControlConfig, error) {
	if req == nil {
		return nil, errors.New("save control request is required")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.ControlID == nil {
		return r.create(ctx, req)
	}
	return r.update(ctx, *req.ControlID, req)
}

// create inserts a new configuration row. Fields left unset fall back to the
// schema defaults resolved here so the returned row matches what a bare
// insert would produce.
func (r *ControlRepo) create(ctx context.Context, req *model.SaveControlRequest) (*model.ControlConfig, error) {
	createdDate := r.timeProvider.Now().UTC()

	periodType := model.PeriodTypeDay
	if req.PeriodType != nil && *req.PeriodType != "" {
		periodType = *req.PeriodType
	}

	var out model.ControlConfig
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, controlInsertQuery,
			strings.TrimSpace(*req.ControlName),
			textArg(req.ControlDescription),
			textArg(req.ControlGroup),
			*req.ControlType,
			textArg(req.ControlSubtype),
			stringOr(req.ControlEngine, "DB"),
			textArg(req.SourceName),
			textArg(req.SourceDateField),
			textArg(req.SourceFilter),
			textArg(req.SourceNameA),
			textArg(req.SourceDateFieldA),
			textArg(req.SourceFilterA),
			textArg(req.SourceKeyFieldA),
			textArg(req.SourceNameB),
			textArg(req.SourceDateFieldB),
			textArg(req.SourceFilterB),
			textArg(req.SourceKeyFieldB),
			jsonArg(req.RuleConfig),
			textArg(req.ErrorDefinition),
			jsonArg(req.CaseConfig),
			textArg(req.CaseDefinition),
			jsonArg(req.OutputTable),
			jsonArg(req.OutputTableA),
			jsonArg(req.OutputTableB),
			positiveInt64Arg(req.OutputLimit),
			jsonArg(req.IterationConfig),
			jsonArg(req.ScheduleConfig),
			intOr(req.PeriodBack, 1),
			intOr(req.PeriodNumber, 1),
			periodType,
			positiveIntArg(req.Parallelism),
			intOr(req.DaysRetention, 365),
			positiveIntArg(req.Timeout),
			positiveIntArg(req.InstanceLimit),
			flagOr(req.NeedA, model.FlagYes),
			flagOr(req.NeedB, model.FlagYes),
			flagOr(req.NeedHook, model.FlagNo),
			flagOr(req.NeedPrerunHook, model.FlagNo),
			flagOr(req.NeedPostrunHook, model.FlagNo),
			flagOr(req.WithDeletion, model.FlagNo),
			flagOr(req.WithDrop, model.FlagNo),
			flagOr(req.Status, model.FlagNo),
			textArg(req.PrerequisiteSQL),
			textArg(req.PreparationSQL),
			textArg(req.CompletionSQL),
			createdDate,
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.ControlConfig])
		return err
	}); err != nil {
		return nil, r.mapWriteErr(err, false)
	}
	return &out, nil
}

// update rewrites the given fields of an existing row. The prior image is
// locked, copied to the audit table, and only then overwritten, so concurrent
// saves of the same control serialize.
func (r *ControlRepo) update(ctx context.Context, id int64, req *model.SaveControlRequest) (*model.ControlConfig, error) {
	var out model.ControlConfig
	err := pgxutil.WithPgxTx(ctx, r.DB, pgxutil.TxConfig{Fn: func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, controlLockForSaveQuery, id)
		if err != nil {
			return err
		}
		prior, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[model.ControlConfig])
		if err != nil {
			return err
		}

		setClause, args := r.buildUpdateClause(req)
		if setClause == "" {
			out = prior
			return nil
		}

		if _, err := tx.Exec(ctx, controlBackupQuery, id, auditActionUpdate); err != nil {
			return err
		}

		args = append(args, id)
		query := "UPDATE rapo_config SET " + setClause +
			" WHERE control_id = $" + strconv.Itoa(len(args)) +
			" RETURNING " + controlColumns
		rows, err = tx.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.ControlConfig])
		return err
	}})
	if err != nil {
		return nil, r.mapWriteErr(err, true)
	}
	return &out, nil
}

// Audit actions recorded in rapo_config_bak.
const (
	auditActionUpdate = "U"
	auditActionDelete = "D"
	auditActionBackup = "B"
)

// buildUpdateClause builds the SQL SET clause and args for updating a control based on the request.
func (r *ControlRepo) buildUpdateClause(req *model.SaveControlRequest) (string, []any) {
	setParts := make([]string, 0, 8)
	args := make([]any, 0, 8)
	nextIdx := func() int { return len(args) + 1 }

	set := func(col string, v any) {
		setParts = append(setParts, fmt.Sprintf("%s = $%d", col, nextIdx()))
		args = append(args, v)
	}
	setText := func(col string, v *string) {
		if v == nil {
			return
		}
		if strings.TrimSpace(*v) == "" {
			setParts = append(setParts, col+" = NULL")
			return
		}
		set(col, strings.TrimSpace(*v))
	}
	setJSON := func(col string, v *json.RawMessage) {
		if v == nil {
			return
		}
		if arg := jsonArg(v); arg == nil {
			setParts = append(setParts, col+" = NULL")
		} else {
			set(col, arg)
		}
	}
	setFlag := func(col string, v *model.Flag) {
		if v != nil {
			set(col, *v)
		}
	}
	setInt := func(col string, v *int) {
		if v != nil {
			set(col, *v)
		}
	}
	setLimit := func(col string, v *int) {
		if v == nil {
			return
		}
		if *v <= 0 {
			setParts = append(setParts, col+" = NULL")
			return
		}
		set(col, *v)
	}

	if req.ControlName != nil {
		set("control_name", strings.TrimSpace(*req.ControlName))
	}
	setText("control_description", req.ControlDescription)
	setText("control_group", req.ControlGroup)
	if req.ControlType != nil {
		set("control_type", *req.ControlType)
	}
	setText("control_subtype", req.ControlSubtype)
	if req.ControlEngine != nil && strings.TrimSpace(*req.ControlEngine) != "" {
		set("control_engine", strings.TrimSpace(*req.ControlEngine))
	}
	setText("source_name", req.SourceName)
	setText("source_date_field", req.SourceDateField)
	setText("source_filter", req.SourceFilter)
	setText("source_name_a", req.SourceNameA)
	setText("source_date_field_a", req.SourceDateFieldA)
	setText("source_filter_a", req.SourceFilterA)
	setText("source_key_field_a", req.SourceKeyFieldA)
	setText("source_name_b", req.SourceNameB)
	setText("source_date_field_b", req.SourceDateFieldB)
	setText("source_filter_b", req.SourceFilterB)
	setText("source_key_field_b", req.SourceKeyFieldB)
	setJSON("rule_config", req.RuleConfig)
	setText("error_definition", req.ErrorDefinition)
	setJSON("case_config", req.CaseConfig)
	setText("case_definition", req.CaseDefinition)
	setJSON("output_table", req.OutputTable)
	setJSON("output_table_a", req.OutputTableA)
	setJSON("output_table_b", req.OutputTableB)
	if req.OutputLimit != nil {
		if *req.OutputLimit <= 0 {
			setParts = append(setParts, "output_limit = NULL")
		} else {
			set("output_limit", *req.OutputLimit)
		}
	}
	setJSON("iteration_config", req.IterationConfig)
	setJSON("schedule_config", req.ScheduleConfig)
	setInt("period_back", req.PeriodBack)
	setInt("period_number", req.PeriodNumber)
	if req.PeriodType != nil && *req.PeriodType != "" {
		set("period_type", *req.PeriodType)
	}
	setLimit("parallelism", req.Parallelism)
	setInt("days_retention", req.DaysRetention)
	setLimit("timeout", req.Timeout)
	setLimit("instance_limit", req.InstanceLimit)
	setFlag("need_a", req.NeedA)
	setFlag("need_b", req.NeedB)
	setFlag("need_hook", req.NeedHook)
	setFlag("need_prerun_hook", req.NeedPrerunHook)
	setFlag("need_postrun_hook", req.NeedPostrunHook)
	setFlag("with_deletion", req.WithDeletion)
	setFlag("with_drop", req.WithDrop)
	setFlag("status", req.Status)
	setText("prerequisite_sql", req.PrerequisiteSQL)
	setText("preparation_sql", req.PreparationSQL)
	setText("completion_sql", req.CompletionSQL)

	if len(setParts) == 0 {
		return "", nil
	}

	set("updated_date", r.timeProvider.Now().UTC())
	return strings.Join(setParts, ", "), args
}

// GetByID retrieves a control by ID.
func (r *ControlRepo) GetByID(ctx context.Context, id int64) (*model.ControlConfig, error) {
	return r.getByQuery(ctx, controlGetByIDQuery, "failed to get control by ID", id)
}

// GetByName retrieves a control by name.
func (r *ControlRepo) GetByName(ctx context.Context, name string) (*model.ControlConfig, error) {
	return r.getByQuery(ctx, controlGetByNameQuery, "failed to get control by name", name)
}

// ListWithOptions retrieves controls with optional filters and sorting.
func (r *ControlRepo) ListWithOptions(
	ctx context.Context,
	opts model.ControlsListOptions,
) ([]*model.ControlConfig, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := max(opts.Offset, 0)

	queryOpts := r.buildControlQueryOptions(opts, limit, offset)
	query, args := database.BuildListQuery(queryOpts)

	var rowsOut []model.ControlConfig
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		rowsOut, err = pgx.CollectRows(rows, pgx.RowToStructByName[model.ControlConfig])
		return err
	}); err != nil {
		return nil, fmt.Errorf("failed to list controls: %w", err)
	}
	res := make([]*model.ControlConfig, len(rowsOut))
	for i := range rowsOut {
		res[i] = &rowsOut[i]
	}
	return res, nil
}

// ListActive retrieves enabled controls that carry a schedule, for the
// scheduler refresh.
func (r *ControlRepo) ListActive(ctx context.Context) ([]*model.ControlConfig, error) {
	var rowsOut []model.ControlConfig
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, controlListActiveQuery)
		if err != nil {
			return err
		}
		defer rows.Close()
		rowsOut, err = pgx.CollectRows(rows, pgx.RowToStructByName[model.ControlConfig])
		return err
	}); err != nil {
		return nil, fmt.Errorf("failed to list active controls: %w", err)
	}
	res := make([]*model.ControlConfig, len(rowsOut))
	for i := range rowsOut {
		res[i] = &rowsOut[i]
	}
	return res, nil
}

// Versions retrieves prior configuration images of a control, newest first.
func (r *ControlRepo) Versions(ctx context.Context, controlID int64, limit, offset int) ([]*model.ControlVersion, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var rowsOut []model.ControlVersion
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, controlVersionsQuery, controlID, limit, offset)
		if err != nil {
			return err
		}
		defer rows.Close()
		rowsOut, err = pgx.CollectRows(rows, pgx.RowToStructByName[model.ControlVersion])
		return err
	}); err != nil {
		return nil, fmt.Errorf("failed to list control versions: %w", err)
	}
	res := make([]*model.ControlVersion, len(rowsOut))
	for i := range rowsOut {
		res[i] = &rowsOut[i]
	}
	return res, nil
}

// Delete removes a control by ID, copying its final image into the audit
// table with audit action D first. Deleting a control that still has run log
// rows fails on the foreign key.
func (r *ControlRepo) Delete(ctx context.Context, id int64) (bool, error) {
	var deleted bool
	err := pgxutil.WithPgxTx(ctx, r.DB, pgxutil.TxConfig{Fn: func(tx pgx.Tx) error {
		ct, err := tx.Exec(ctx, controlBackupQuery, id, auditActionDelete)
		if err != nil {
			return err
		}
		if ct.RowsAffected() == 0 {
			return nil
		}
		if _, err := tx.Exec(ctx, `DELETE FROM rapo_config WHERE control_id = $1`, id); err != nil {
			return err
		}
		deleted = true
		return nil
	}})
	if err != nil {
		return false, fmt.Errorf("failed to delete control: %w", err)
	}
	return deleted, nil
}

// Backup copies every configuration row into rapo_config_bak with audit
// action B. Run periodically by the scheduler maintenance sweep.
func (r *ControlRepo) Backup(ctx context.Context) (int64, error) {
	var archived int64
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		ct, err := conn.Exec(ctx, controlBackupAllQuery, auditActionBackup)
		if err != nil {
			return err
		}
		archived = ct.RowsAffected()
		return nil
	}); err != nil {
		return 0, fmt.Errorf("failed to back up controls: %w", err)
	}
	return archived, nil
}

// --- helpers ---

// buildControlQueryOptions builds query options for control listing with filters and sorting.
func (r *ControlRepo) buildControlQueryOptions(
	opts model.ControlsListOptions,
	limit, offset int,
) *database.ListQueryOptions {
	queryOpts := []database.ListQueryOption{
		database.WithColumns(controlColumnList()...),
		database.WithLimit(limit),
		database.WithOffset(offset),
	}

	if opts.Q != nil && strings.TrimSpace(*opts.Q) != "" {
		queryOpts = append(queryOpts, database.WithCondition(
			database.WhereCond("control_name", database.ILike, "%"+strings.TrimSpace(*opts.Q)+"%"),
		))
	}
	if opts.Type != nil {
		queryOpts = append(queryOpts, database.WithCondition(
			database.WhereCond("control_type", database.Equal, *opts.Type),
		))
	}
	if opts.Group != nil && strings.TrimSpace(*opts.Group) != "" {
		queryOpts = append(queryOpts, database.WithCondition(
			database.WhereCond("control_group", database.Equal, strings.TrimSpace(*opts.Group)),
		))
	}
	if opts.Status != nil {
		queryOpts = append(queryOpts, database.WithCondition(
			database.WhereCond("status", database.Equal, *opts.Status),
		))
	}

	sortCol, sortDir := validateControlSortOptions(opts.Sort, opts.Dir)
	queryOpts = append(queryOpts, database.WithOrderBy(sortCol, sortDir))

	return database.NewListQueryOptions("rapo_config", queryOpts...)
}

// validateControlSortOptions validates and returns safe sort column and direction.
func validateControlSortOptions(sort, dir string) (string, string) {
	sortCol := "control_name"
	sortDir := sortDirAsc

	if sort != "" {
		allowedSorts := map[string]string{
			"control_name": "control_name",
			"control_type": "control_type",
			"created_date": "created_date",
			"updated_date": "updated_date",
		}
		if validSort, ok := allowedSorts[strings.ToLower(strings.TrimSpace(sort))]; ok {
			sortCol = validSort
		}
	}
	if dir != "" {
		allowedDirs := map[string]string{
			"asc":  sortDirAsc,
			"desc": sortDirDesc,
		}
		if validDir, ok := allowedDirs[strings.ToLower(strings.TrimSpace(dir))]; ok {
			sortDir = validDir
		}
	}
	return sortCol, sortDir
}

// getByQuery is a helper function to execute a query and return a single control.
// Uses variadic args to avoid slice allocation at call sites.
func (r *ControlRepo) getByQuery(
	ctx context.Context,
	q string,
	errMsg string,
	args ...any,
) (*model.ControlConfig, error) {
	var control model.ControlConfig
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, q, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		control, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.ControlConfig])
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrControlNotFound
		}
		return nil, fmt.Errorf("%s: %w", errMsg, err)
	}
	return &control, nil
}

func (r *ControlRepo) mapWriteErr(err error, includeNotFound bool) error {
	if err == nil {
		return nil
	}
	if includeNotFound && errors.Is(err, pgx.ErrNoRows) {
		return ErrControlNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrControlNameExists
	}
	return err
}

// Argument helpers shared by the repositories. They resolve optional request
// fields into SQL arguments, mapping absent or cleared values to NULL.

func textArg(v *string) any {
	if v == nil {
		return nil
	}
	s := strings.TrimSpace(*v)
	if s == "" {
		return nil
	}
	return s
}

func jsonArg(v *json.RawMessage) any {
	if v == nil {
		return nil
	}
	s := strings.TrimSpace(string(*v))
	if s == "" || s == "null" {
		return nil
	}
	return []byte(*v)
}

func positiveIntArg(v *int) any {
	if v == nil || *v <= 0 {
		return nil
	}
	return *v
}

func positiveInt64Arg(v *int64) any {
	if v == nil || *v <= 0 {
		return nil
	}
	return *v
}

func stringOr(v *string, def string) string {
	if v == nil || strings.TrimSpace(*v) == "" {
		return def
	}
	return strings.TrimSpace(*v)
}

func intOr(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}

func flagOr(v *model.Flag, def model.Flag) model.Flag {
	if v == nil || *v == "" {
		return def
	}
	return *v
}
