package data

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/t3eHawk/rapo/internal/domain/control"
	"github.com/t3eHawk/rapo/internal/domain/model"
)

// SaveFindings copies the run's findings into the per-control output
// tables, creating them on first use. Kinds without findings for this
// run save nothing, so a clean run leaves no output rows behind.
func (x *Executor) SaveFindings(ctx context.Context, plan *control.Plan, fetch model.FetchResult, counters model.RunCounters) error {
	switch plan.Kind() {
	case model.ControlTypeAnalysis:
		if counterValue(counters.Errors) > 0 {
			return x.saveOneSided(ctx, plan, plan.TempTable(control.TempErrors))
		}
	case model.ControlTypeReport:
		if fetch.Fetched > 0 {
			return x.saveOneSided(ctx, plan, plan.TempTable(control.TempErrors))
		}
	case model.ControlTypeComparison:
		if counterValue(counters.Errors) > 0 {
			return x.saveOneSided(ctx, plan, plan.TempTable(control.TempMismatched))
		}
	case model.ControlTypeReconciliation:
		return x.saveReconciliation(ctx, plan)
	}
	return nil
}

func counterValue(v *int64) int64 {
	if v == nil {
		return 0
	}
	return *v
}

func (x *Executor) saveOneSided(ctx context.Context, plan *control.Plan, tempTable string) error {
	resultTable := control.ResultTableName(plan.Config.ControlName)
	if err := x.prepareOutputTable(ctx, plan, resultTable, tempTable, nil); err != nil {
		return err
	}
	return x.saveInto(ctx, resultTable, tempTable, plan.ProcessID, plan.OutputLimit())
}

// saveReconciliation writes both sides in parallel strands. Issue rows
// and reconciled rows of one side land in the same output table, told
// apart by the result type column.
func (x *Executor) saveReconciliation(ctx context.Context, plan *control.Plan) error {
	rules := plan.Rules
	g, gctx := errgroup.WithContext(ctx)
	if plan.Config.NeedA.Bool() {
		g.Go(func() error {
			return x.saveReconciliationSide(gctx, plan, recSideA(plan), plan.OutputA, rules.NeedIssuesA, rules.NeedReconsA)
		})
	}
	if plan.Config.NeedB.Bool() {
		g.Go(func() error {
			return x.saveReconciliationSide(gctx, plan, recSideB(plan), plan.OutputB, rules.NeedIssuesB, rules.NeedReconsB)
		})
	}
	return g.Wait()
}

func (x *Executor) saveReconciliationSide(ctx context.Context, plan *control.Plan, side recSide, output []control.OutputColumn, needIssues, needRecons bool) error {
	inputs := make([]string, 0, 2)
	if needIssues {
		inputs = append(inputs, side.issuesTable)
	}
	if needRecons {
		inputs = append(inputs, side.resultsTable)
	}
	if len(inputs) == 0 {
		return nil
	}
	var columns []string
	if len(output) > 0 {
		columns = append(control.Names(output), control.MandatoryColumns(model.ControlTypeReconciliation)...)
	}
	if err := x.prepareOutputTable(ctx, plan, side.outputTable, inputs[0], columns); err != nil {
		return err
	}
	for _, tempTable := range inputs {
		if err := x.saveInto(ctx, side.outputTable, tempTable, plan.ProcessID, plan.OutputLimit()); err != nil {
			return err
		}
	}
	return nil
}

// prepareOutputTable makes sure the result table exists and honors the
// clearing flags. with_deletion truncates an existing table before the
// save, with_drop rebuilds it from scratch. The table is shaped from
// the temp table, so new output columns appear after a drop.
func (x *Executor) prepareOutputTable(ctx context.Context, plan *control.Plan, resultTable, tempTable string, columns []string) error {
	exists, err := x.tableExists(ctx, resultTable)
	if err != nil {
		return err
	}
	if exists && plan.Config.WithDeletion.Bool() {
		if _, err := x.DB.ExecContext(ctx, "truncate table "+resultTable); err != nil {
			return fmt.Errorf("truncate %s: %w", resultTable, err)
		}
	} else if exists && plan.Config.WithDrop.Bool() {
		if _, err := x.DB.ExecContext(ctx, "drop table "+resultTable); err != nil {
			return fmt.Errorf("drop %s: %w", resultTable, err)
		}
		exists = false
	}
	if exists {
		return nil
	}
	ctas, index := outputTableDDL(resultTable, tempTable, columns)
	if _, err := x.DB.ExecContext(ctx, ctas); err != nil {
		return fmt.Errorf("create %s: %w", resultTable, err)
	}
	if _, err := x.DB.ExecContext(ctx, index); err != nil {
		return fmt.Errorf("index %s: %w", resultTable, err)
	}
	return nil
}

// outputTableDDL shapes a result table from a temp table without
// copying rows, plus the process id lookup index.
func outputTableDDL(resultTable, tempTable string, columns []string) (string, string) {
	selectList := "t.*"
	if len(columns) > 0 {
		selectList = strings.Join(columns, ",\n       ")
	}
	ctas := "create table " + resultTable + " as\nselect " + selectList +
		",\n       cast(null as bigint) as " + processIDColumn +
		"\nfrom " + tempTable + " t\nwhere 1 = 0"
	index := "create index " + resultTable + "_" + processIDColumn + "_ix on " +
		resultTable + " (" + processIDColumn + ")"
	return ctas, index
}

// saveInto copies one temp table into a result table over the columns
// the two share. The intersection keeps saves working after either side
// gains or loses columns between runs.
func (x *Executor) saveInto(ctx context.Context, resultTable, tempTable string, processID, limit int64) error {
	resultColumns, err := x.tableColumns(ctx, resultTable)
	if err != nil {
		return err
	}
	tempColumns, err := x.tableColumns(ctx, tempTable)
	if err != nil {
		return err
	}
	columns := intersectColumns(resultColumns, tempColumns)
	if len(columns) == 0 {
		return fmt.Errorf("%s shares no columns with %s", tempTable, resultTable)
	}
	if _, err := x.DB.ExecContext(ctx, saveSQL(resultTable, tempTable, columns, limit), processID); err != nil {
		return fmt.Errorf("save into %s: %w", resultTable, err)
	}
	return nil
}

// intersectColumns keeps the result table columns also present in the
// temp table, in result table order. The process id slot is filled by
// the insert itself.
func intersectColumns(resultColumns, tempColumns []string) []string {
	available := make(map[string]struct{}, len(tempColumns))
	for _, name := range tempColumns {
		available[name] = struct{}{}
	}
	columns := make([]string, 0, len(resultColumns))
	for _, name := range resultColumns {
		if name == processIDColumn {
			continue
		}
		if _, ok := available[name]; ok {
			columns = append(columns, name)
		}
	}
	return columns
}

func saveSQL(resultTable, tempTable string, columns []string, limit int64) string {
	list := strings.Join(columns, ", ")
	var b strings.Builder
	b.WriteString("insert into " + resultTable + " (" + list + ", " + processIDColumn + ")")
	b.WriteString("\nselect " + list + ", $1")
	b.WriteString("\nfrom " + tempTable)
	if limit > 0 {
		b.WriteString("\nlimit " + strconv.FormatInt(limit, 10))
	}
	return b.String()
}

// DeleteOutputRecords removes this run's rows from the output tables.
// Under with_deletion the tables are cleared whole, matching how the
// next run would treat them anyway.
func (x *Executor) DeleteOutputRecords(ctx context.Context, plan *control.Plan) error {
	for _, table := range plan.ResultTables() {
		exists, err := x.tableExists(ctx, table)
		if err != nil {
			return err
		}
		if !exists {
			continue
		}
		if plan.Config.WithDeletion.Bool() {
			if _, err := x.DB.ExecContext(ctx, "truncate table "+table); err != nil {
				return fmt.Errorf("truncate %s: %w", table, err)
			}
			continue
		}
		query := "delete from " + table + " where " + processIDColumn + " = $1"
		if _, err := x.DB.ExecContext(ctx, query, plan.ProcessID); err != nil {
			return fmt.Errorf("delete from %s: %w", table, err)
		}
	}
	return nil
}

// DropTemporaryTables removes every temp table the run may have left,
// present or not.
func (x *Executor) DropTemporaryTables(ctx context.Context, plan *control.Plan) error {
	for _, table := range plan.TempTables() {
		if err := x.DropTable(ctx, table); err != nil {
			return err
		}
	}
	return nil
}

// DropTable removes a table when it exists. Also used by the reaper
// sweeping temp tables of dead runs.
func (x *Executor) DropTable(ctx context.Context, table string) error {
	if _, err := x.DB.ExecContext(ctx, "drop table if exists "+table); err != nil {
		return fmt.Errorf("drop %s: %w", table, err)
	}
	return nil
}

// Clean removes output rows older than the control's retention, keyed
// through the run log so only rows of finished runs age out. A zero
// retention clears the tables whole. Returns the deleted row count,
// zero for the truncate path.
func (x *Executor) Clean(ctx context.Context, cfg model.ControlConfig) (int64, error) {
	tables := control.ResultTableNames(cfg.ControlType, cfg.ControlName)
	if cfg.DaysRetention <= 0 {
		for _, table := range tables {
			exists, err := x.tableExists(ctx, table)
			if err != nil {
				return 0, err
			}
			if !exists {
				continue
			}
			if _, err := x.DB.ExecContext(ctx, "truncate table "+table); err != nil {
				return 0, fmt.Errorf("truncate %s: %w", table, err)
			}
		}
		return 0, nil
	}
	now := x.timeProvider.Now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	horizon := midnight.AddDate(0, 0, -cfg.DaysRetention)
	var deleted int64
	for _, table := range tables {
		exists, err := x.tableExists(ctx, table)
		if err != nil {
			return deleted, err
		}
		if !exists {
			continue
		}
		query := "delete from " + table +
			"\nwhere " + processIDColumn + " in (select l.process_id from rapo_log l where l.control_id = $1 and l.added < $2)"
		res, err := x.DB.ExecContext(ctx, query, cfg.ControlID, horizon)
		if err != nil {
			return deleted, fmt.Errorf("clean %s: %w", table, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return deleted, fmt.Errorf("clean %s: %w", table, err)
		}
		deleted += affected
	}
	return deleted, nil
}
