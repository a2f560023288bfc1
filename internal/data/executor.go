package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/t3eHawk/rapo/internal/data/database"
	"github.com/t3eHawk/rapo/internal/domain/control"
	"github.com/t3eHawk/rapo/internal/domain/model"
)

// processIDColumn tags every output row with the run that produced it.
const processIDColumn = "rapo_process_id"

// Executor runs the SQL stages of a control inside the monitored
// database. Every stage materializes into a temp table named after the
// process, so a crashed run leaves droppable leftovers instead of
// half-written output.
//
// The executor stays on database/sql rather than the pgx-native API so
// the generated statements can be exercised against sqlmock.
type Executor struct {
	DB           *sql.DB
	timeProvider TimeProvider

	// Logger, when set, writes every generated statement to the debug
	// log before it runs.
	Logger *slog.Logger
}

// NewExecutor creates a new Executor with real time provider.
func NewExecutor(db *sql.DB) *Executor {
	return &Executor{DB: db, timeProvider: &RealTimeProvider{}}
}

// NewExecutorWithTimeProvider creates a new Executor with a custom time provider (useful for tests).
func NewExecutorWithTimeProvider(db *sql.DB, tp TimeProvider) *Executor {
	return &Executor{DB: db, timeProvider: tp}
}

// Fetch materializes the control's source rows into temp tables. Both
// sides of a two-sided control load in parallel strands. Reconciliation
// sides additionally get an index on the correlation key.
func (x *Executor) Fetch(ctx context.Context, plan *control.Plan) (model.FetchResult, error) {
	var result model.FetchResult
	switch plan.Kind() {
	case model.ControlTypeAnalysis, model.ControlTypeReport:
		fetched, err := x.fetchSide(ctx, plan, plan.Fetch, false)
		if err != nil {
			return result, err
		}
		result.Fetched = fetched
	case model.ControlTypeComparison, model.ControlTypeReconciliation:
		withKey := plan.Kind() == model.ControlTypeReconciliation
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			fetched, err := x.fetchSide(gctx, plan, plan.FetchA, withKey)
			if err != nil {
				return err
			}
			result.FetchedA = fetched
			return nil
		})
		g.Go(func() error {
			fetched, err := x.fetchSide(gctx, plan, plan.FetchB, withKey)
			if err != nil {
				return err
			}
			result.FetchedB = fetched
			return nil
		})
		if err := g.Wait(); err != nil {
			return result, err
		}
	default:
		return result, fmt.Errorf("unsupported control type %q", plan.Kind())
	}
	return result, nil
}

func (x *Executor) fetchSide(ctx context.Context, plan *control.Plan, fetch *control.FetchPlan, withKey bool) (int64, error) {
	withRowID := false
	if withKey && fetch.KeyField != "" {
		isTable, hasColumn, err := x.sourceShape(ctx, fetch.Source, fetch.KeyField)
		if err != nil {
			return 0, err
		}
		withRowID = isTable && !hasColumn
	}
	ctas := "create table " + fetch.TempTable + " as\n" + fetch.SelectSQL(plan.Hint(), withRowID)
	index := ""
	if withKey && fetch.KeyField != "" {
		index = tempIndexDDL(fetch.TempTable, fetch.KeyField)
	}
	x.logStatements(ctx, fetch.TempTable, ctas, index)
	if _, err := x.DB.ExecContext(ctx, ctas); err != nil {
		return 0, fmt.Errorf("create %s: %w", fetch.TempTable, err)
	}
	if index != "" {
		if _, err := x.DB.ExecContext(ctx, index); err != nil {
			return 0, fmt.Errorf("index %s: %w", fetch.TempTable, err)
		}
	}
	return x.countRows(ctx, fetch.TempTable)
}

// Execute runs the control's core stage over the fetched rows and
// returns the counters the stage produced. Counters the stage cannot
// produce, such as error figures on an empty fetch, stay nil.
func (x *Executor) Execute(ctx context.Context, plan *control.Plan, fetch model.FetchResult) (model.RunCounters, error) {
	switch plan.Kind() {
	case model.ControlTypeAnalysis:
		return x.analyze(ctx, plan, fetch)
	case model.ControlTypeReport:
		var counters model.RunCounters
		if fetch.Fetched > 0 {
			err := x.materialize(ctx, plan.TempTable(control.TempErrors), analyzeCTAS(plan))
			if err != nil {
				return counters, err
			}
		}
		return counters, nil
	case model.ControlTypeComparison:
		return x.compare(ctx, plan)
	case model.ControlTypeReconciliation:
		return x.reconcile(ctx, plan, fetch)
	}
	return model.RunCounters{}, fmt.Errorf("unsupported control type %q", plan.Kind())
}

func (x *Executor) analyze(ctx context.Context, plan *control.Plan, fetch model.FetchResult) (model.RunCounters, error) {
	var counters model.RunCounters
	if fetch.Fetched <= 0 {
		return counters, nil
	}
	if err := x.materialize(ctx, plan.TempTable(control.TempErrors), analyzeCTAS(plan)); err != nil {
		return counters, err
	}
	errorCount, err := x.countRows(ctx, plan.TempTable(control.TempErrors))
	if err != nil {
		return counters, err
	}
	success := fetch.Fetched - errorCount
	counters.Errors = &errorCount
	counters.Success = &success
	counters.Level = model.ErrorLevel(errorCount, fetch.Fetched)
	return counters, nil
}

func (x *Executor) compare(ctx context.Context, plan *control.Plan) (model.RunCounters, error) {
	var matched, mismatched int64
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		table := plan.TempTable(control.TempMatched)
		if err := x.materialize(gctx, table, compareCTAS(plan, true)); err != nil {
			return err
		}
		count, err := x.countRows(gctx, table)
		matched = count
		return err
	})
	g.Go(func() error {
		table := plan.TempTable(control.TempMismatched)
		if err := x.materialize(gctx, table, compareCTAS(plan, false)); err != nil {
			return err
		}
		count, err := x.countRows(gctx, table)
		mismatched = count
		return err
	})
	if err := g.Wait(); err != nil {
		return model.RunCounters{}, err
	}
	counters := model.RunCounters{Success: &matched, Errors: &mismatched}
	counters.Level = model.ErrorLevel(mismatched, matched+mismatched)
	return counters, nil
}

func (x *Executor) materialize(ctx context.Context, table, ctas string) error {
	x.logStatements(ctx, table, ctas)
	if _, err := x.DB.ExecContext(ctx, ctas); err != nil {
		return fmt.Errorf("create %s: %w", table, err)
	}
	return nil
}

// logStatements writes the generated statements of one stage to the
// debug log, recased the way they would read in a SQL console.
func (x *Executor) logStatements(ctx context.Context, table string, stmts ...string) {
	if x.Logger == nil {
		return
	}
	x.Logger.DebugContext(ctx, "statement generated",
		"table", table,
		"sql", database.Document(stmts...),
	)
}

func (x *Executor) countRows(ctx context.Context, table string) (int64, error) {
	var count int64
	if err := x.DB.QueryRowContext(ctx, "select count(*) from "+table).Scan(&count); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return count, nil
}

// RunPrerequisite evaluates the prerequisite statement and returns its
// scalar. A nil scalar means the statement returned null; the caller
// decides whether the run resumes.
func (x *Executor) RunPrerequisite(ctx context.Context, plan *control.Plan) (*float64, error) {
	var value sql.NullFloat64
	if err := x.DB.QueryRowContext(ctx, plan.PrerequisiteSQL).Scan(&value); err != nil {
		return nil, fmt.Errorf("prerequisite: %w", err)
	}
	if !value.Valid {
		return nil, nil
	}
	return &value.Float64, nil
}

// RunPreparation executes the preparation statement before the fetch
// stage and reports the touched row count.
func (x *Executor) RunPreparation(ctx context.Context, plan *control.Plan) (int64, error) {
	res, err := x.DB.ExecContext(ctx, plan.PreparationSQL)
	if err != nil {
		return 0, fmt.Errorf("preparation: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("preparation: %w", err)
	}
	return affected, nil
}

// RunCompletion executes the completion statement after the output is
// saved and reports the touched row count.
func (x *Executor) RunCompletion(ctx context.Context, plan *control.Plan) (int64, error) {
	res, err := x.DB.ExecContext(ctx, plan.CompletionSQL)
	if err != nil {
		return 0, fmt.Errorf("completion: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("completion: %w", err)
	}
	return affected, nil
}

// PrerunHook asks the operator-managed go/no-go function whether the
// run may start. A null or OK result code clears the run.
func (x *Executor) PrerunHook(ctx context.Context, processID int64) (bool, string, error) {
	var code sql.NullString
	err := x.DB.QueryRowContext(ctx, "select rapo_prerun_control_hook($1)", processID).Scan(&code)
	if err != nil {
		return false, "", fmt.Errorf("prerun hook: %w", err)
	}
	if !code.Valid || strings.EqualFold(code.String, "OK") {
		return true, code.String, nil
	}
	return false, code.String, nil
}

// PostrunHook invokes the operator-managed post-run procedure.
func (x *Executor) PostrunHook(ctx context.Context, processID int64) error {
	if _, err := x.DB.ExecContext(ctx, "select rapo_postrun_control_hook($1)", processID); err != nil {
		return fmt.Errorf("postrun hook: %w", err)
	}
	return nil
}

// analyzeCTAS materializes the findings of a one-sided control. With
// configured output columns the select narrows to them plus the
// synthesized result columns. A report kind carries no filter, so every
// fetched row lands in the table.
func analyzeCTAS(plan *control.Plan) string {
	var b strings.Builder
	b.WriteString("create table " + plan.TempTable(control.TempErrors) + " as\nselect ")
	if hint := plan.Hint(); hint != "" {
		b.WriteString(hint + " ")
	}
	if len(plan.Output) > 0 {
		names := append(control.Names(plan.Output), control.MandatoryColumns(plan.Kind())...)
		b.WriteString(strings.Join(names, ",\n       "))
	} else {
		b.WriteString("*")
	}
	b.WriteString("\nfrom " + plan.TempTable(control.TempFetched))
	if plan.ErrorExpr != "" {
		b.WriteString("\nwhere " + strings.ReplaceAll(plan.ErrorExpr, "\n", "\n  "))
	}
	return b.String()
}

// compareCTAS joins the two fetched sides on the matching columns and
// keeps the pairs whose error-definition columns all agree (matched) or
// all differ (mismatched).
func compareCTAS(plan *control.Plan, matched bool) string {
	role := control.TempMismatched
	relation := " <> "
	if matched {
		role = control.TempMatched
		relation = " = "
	}
	var b strings.Builder
	b.WriteString("create table " + plan.TempTable(role) + " as\nselect ")
	if hint := plan.Hint(); hint != "" {
		b.WriteString(hint + " ")
	}
	if len(plan.Output) > 0 {
		exprs := make([]string, 0, len(plan.Output))
		for _, column := range plan.Output {
			exprs = append(exprs, column.Expr("a", "b"))
		}
		b.WriteString(strings.Join(exprs, ",\n       "))
	} else {
		b.WriteString("a.*,\n       b.*")
	}
	b.WriteString("\nfrom " + plan.TempTable(control.TempFetchedA) + " a")
	b.WriteString("\njoin " + plan.TempTable(control.TempFetchedB) + " b")
	joins := make([]string, 0, len(plan.MatchPairs))
	for _, pair := range plan.MatchPairs {
		joins = append(joins, "a."+pair.ColumnA+" = b."+pair.ColumnB)
	}
	b.WriteString("\n  on " + strings.Join(joins, "\n and "))
	filters := make([]string, 0, len(plan.ErrorPairs))
	for _, pair := range plan.ErrorPairs {
		filters = append(filters, "a."+pair.ColumnA+relation+"b."+pair.ColumnB)
	}
	b.WriteString("\nwhere " + strings.Join(filters, "\n  and "))
	return b.String()
}

func tempIndexDDL(table, field string) string {
	return "create index " + table + "_ix on " + table + " (" + field + ")"
}

const executorTableExistsQuery = `
SELECT EXISTS (
    SELECT 1
    FROM pg_catalog.pg_class c
    JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
    WHERE n.nspname = current_schema()
      AND c.relname = $1
)`

func (x *Executor) tableExists(ctx context.Context, table string) (bool, error) {
	var exists bool
	if err := x.DB.QueryRowContext(ctx, executorTableExistsQuery, table).Scan(&exists); err != nil {
		return false, fmt.Errorf("check %s: %w", table, err)
	}
	return exists, nil
}

const executorSourceShapeQuery = `
SELECT c.relkind IN ('r', 'p'),
       EXISTS (
           SELECT 1
           FROM pg_catalog.pg_attribute a
           WHERE a.attrelid = c.oid
             AND a.attname = $3
             AND a.attnum > 0
             AND NOT a.attisdropped
       )
FROM pg_catalog.pg_class c
JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
WHERE c.relname = $1
  AND n.nspname = COALESCE($2, current_schema()::text)`

// sourceShape reports whether a fetch source is a physical table and
// whether it already carries the configured key column. The physical
// row address is injected only for tables missing the column; views
// must expose the key themselves.
func (x *Executor) sourceShape(ctx context.Context, source, keyField string) (bool, bool, error) {
	name := source
	var schema any
	if i := strings.IndexByte(source, '.'); i >= 0 {
		schema = source[:i]
		name = source[i+1:]
	}
	var isTable, hasColumn bool
	err := x.DB.QueryRowContext(ctx, executorSourceShapeQuery, name, schema, keyField).Scan(&isTable, &hasColumn)
	if errors.Is(err, sql.ErrNoRows) {
		return false, false, fmt.Errorf("source %s does not exist", source)
	}
	if err != nil {
		return false, false, fmt.Errorf("inspect %s: %w", source, err)
	}
	return isTable, hasColumn, nil
}

const executorTableColumnsQuery = `
SELECT a.attname
FROM pg_catalog.pg_attribute a
JOIN pg_catalog.pg_class c ON c.oid = a.attrelid
JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
WHERE n.nspname = current_schema()
  AND c.relname = $1
  AND a.attnum > 0
  AND NOT a.attisdropped
ORDER BY a.attnum`

func (x *Executor) tableColumns(ctx context.Context, table string) ([]string, error) {
	rows, err := x.DB.QueryContext(ctx, executorTableColumnsQuery, table)
	if err != nil {
		return nil, fmt.Errorf("columns of %s: %w", table, err)
	}
	defer rows.Close()
	var columns []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("columns of %s: %w", table, err)
		}
		columns = append(columns, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("columns of %s: %w", table, err)
	}
	return columns, nil
}
