package data

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/t3eHawk/rapo/internal/domain/control"
	"github.com/t3eHawk/rapo/internal/domain/model"
)

// Synthesized columns of the combination table shared between stages.
const (
	recKeyA      = "rapo_key_a"
	recKeyB      = "rapo_key_b"
	recDateFound = "rapo_date_found"
)

func recDiscrepancyValue(i int) string {
	return fmt.Sprintf("rapo_discrepancy_%d_value", i+1)
}

func recDiscrepancyFound(i int) string {
	return fmt.Sprintf("rapo_discrepancy_%d_found", i+1)
}

// recSide binds the reconciliation scripts of one side to its tables
// and fields.
type recSide struct {
	a             bool
	fetchedTable  string
	keyField      string
	keyColumn     string
	dateField     string
	peerDateField string
	dupTable      string
	notFoundTable string
	issuesTable   string
	resultsTable  string
	outputTable   string
}

func recSideA(plan *control.Plan) recSide {
	return recSide{
		a:             true,
		fetchedTable:  plan.TempTable(control.TempFetchedA),
		keyField:      plan.FetchA.KeyField,
		keyColumn:     recKeyA,
		dateField:     plan.FetchA.DateField,
		peerDateField: plan.FetchB.DateField,
		dupTable:      plan.TempTable(control.TempDuplicatesA),
		notFoundTable: plan.TempTable(control.TempNotFoundA),
		issuesTable:   plan.TempTable(control.TempErrorsA),
		resultsTable:  plan.TempTable(control.TempResultsA),
		outputTable:   control.ResultTableNameA(plan.Config.ControlName),
	}
}

func recSideB(plan *control.Plan) recSide {
	return recSide{
		fetchedTable:  plan.TempTable(control.TempFetchedB),
		keyField:      plan.FetchB.KeyField,
		keyColumn:     recKeyB,
		dateField:     plan.FetchB.DateField,
		peerDateField: plan.FetchA.DateField,
		dupTable:      plan.TempTable(control.TempDuplicatesB),
		notFoundTable: plan.TempTable(control.TempNotFoundB),
		issuesTable:   plan.TempTable(control.TempErrorsB),
		resultsTable:  plan.TempTable(control.TempResultsB),
		outputTable:   control.ResultTableNameB(plan.Config.ControlName),
	}
}

func (s recSide) ruleField(rule control.DiscrepancyRule) string {
	if s.a {
		return rule.FieldA
	}
	return rule.FieldB
}

func (s recSide) peerRuleField(rule control.DiscrepancyRule) string {
	if s.a {
		return rule.FieldB
	}
	return rule.FieldA
}

// reconcile correlates the two fetched sides and classifies every row
// of each needed side as reconciled, discrepant, lost or duplicated.
// The combination and duplicate sweep are shared; the per-side stages
// run in parallel strands.
func (x *Executor) reconcile(ctx context.Context, plan *control.Plan, fetch model.FetchResult) (model.RunCounters, error) {
	var counters model.RunCounters
	if fetch.FetchedA <= 0 && fetch.FetchedB <= 0 {
		return counters, nil
	}
	rules := plan.Rules
	sideA, sideB := recSideA(plan), recSideB(plan)

	limit := rules.CorrelationLimit.Limit(fetch.FetchedA, fetch.FetchedB)
	combined := plan.TempTable(control.TempCombined)
	if err := x.materialize(ctx, combined, recCombineSQL(plan, limit)); err != nil {
		return counters, err
	}

	if !rules.AllowDuplicates {
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return x.materialize(gctx, sideA.dupTable, recDuplicatesSQL(plan, sideA))
		})
		g.Go(func() error {
			return x.materialize(gctx, sideB.dupTable, recDuplicatesSQL(plan, sideB))
		})
		if err := g.Wait(); err != nil {
			return counters, err
		}
		if _, err := x.DB.ExecContext(ctx, recDropDuplicatePairsSQL(plan, sideA, sideB)); err != nil {
			return counters, fmt.Errorf("sweep duplicate pairs: %w", err)
		}
	}

	needA := plan.Config.NeedA.Bool()
	needB := plan.Config.NeedB.Bool()
	g, gctx := errgroup.WithContext(ctx)
	if needA {
		g.Go(func() error { return x.reconcileSide(gctx, plan, sideA, rules.NeedReconsA) })
	}
	if needB {
		g.Go(func() error { return x.reconcileSide(gctx, plan, sideB, rules.NeedReconsB) })
	}
	if err := g.Wait(); err != nil {
		return counters, err
	}

	if needA && fetch.FetchedA > 0 {
		errorCount, err := x.countRows(ctx, sideA.issuesTable)
		if err != nil {
			return counters, err
		}
		success := fetch.FetchedA - errorCount
		counters.ErrorsA = &errorCount
		counters.SuccessA = &success
		counters.LevelA = model.ErrorLevel(errorCount, fetch.FetchedA)
	}
	if needB && fetch.FetchedB > 0 {
		errorCount, err := x.countRows(ctx, sideB.issuesTable)
		if err != nil {
			return counters, err
		}
		success := fetch.FetchedB - errorCount
		counters.ErrorsB = &errorCount
		counters.SuccessB = &success
		counters.LevelB = model.ErrorLevel(errorCount, fetch.FetchedB)
	}
	return counters, nil
}

func (x *Executor) reconcileSide(ctx context.Context, plan *control.Plan, side recSide, needRecons bool) error {
	if err := x.materialize(ctx, side.notFoundTable, recNotFoundSQL(plan, side)); err != nil {
		return err
	}
	if err := x.materialize(ctx, side.issuesTable, recIssuesSQL(plan, side)); err != nil {
		return err
	}
	if needRecons {
		if err := x.materialize(ctx, side.resultsTable, recResultsSQL(plan, side)); err != nil {
			return err
		}
	}
	return nil
}

// recCombineSQL joins the two fetched sides on the correlation fields
// within the configured time window. Next to the row keys the table
// carries one value and found flag per discrepancy rule plus the date
// deviation flag, so the later stages only read flags.
func recCombineSQL(plan *control.Plan, limit int64) string {
	rules := plan.Rules
	dateA := "a." + plan.FetchA.DateField
	dateB := "b." + plan.FetchB.DateField

	var b strings.Builder
	b.WriteString("create table " + plan.TempTable(control.TempCombined) + " as\nselect ")
	if hint := plan.Hint(); hint != "" {
		b.WriteString(hint + " ")
	}
	b.WriteString("a." + plan.FetchA.KeyField + " as " + recKeyA)
	b.WriteString(",\n       b." + plan.FetchB.KeyField + " as " + recKeyB)
	b.WriteString(",\n       " + recDateFoundExpr(rules, dateA, dateB) + " as " + recDateFound)
	for i, rule := range rules.Discrepancy {
		b.WriteString(",\n       (a." + rule.FieldA + " - b." + rule.FieldB + ") as " + recDiscrepancyValue(i))
		b.WriteString(",\n       " + recDiscrepancyFoundExpr(rule) + " as " + recDiscrepancyFound(i))
	}
	b.WriteString("\nfrom " + plan.TempTable(control.TempFetchedA) + " a")
	b.WriteString("\njoin " + plan.TempTable(control.TempFetchedB) + " b")
	b.WriteString("\n  on " + recKeyRules(rules))
	b.WriteString("\n and " + recDateRule(rules, dateA, dateB))
	if limit > 0 {
		b.WriteString("\nlimit " + strconv.FormatInt(limit, 10))
	}
	return b.String()
}

func recKeyRules(rules *control.ReconciliationRules) string {
	parts := make([]string, 0, len(rules.Correlation))
	for _, field := range rules.Correlation {
		a, b := "a."+field.FieldA, "b."+field.FieldB
		if field.AllowNull {
			parts = append(parts, "("+a+" = "+b+" or ("+a+" is null and "+b+" is null))")
		} else {
			parts = append(parts, a+" = "+b)
		}
	}
	return strings.Join(parts, "\n and ")
}

// recDateRule pins the pair dates together, or to the configured shift
// window when the sides are expected to lag each other.
func recDateRule(rules *control.ReconciliationRules, dateA, dateB string) string {
	if rules.TimeShiftFrom == 0 && rules.TimeShiftTo == 0 {
		return dateA + " = " + dateB
	}
	return fmt.Sprintf("%s between %s and %s",
		dateA, recShiftExpr(dateB, rules.TimeShiftFrom), recShiftExpr(dateB, rules.TimeShiftTo))
}

func recShiftExpr(column string, seconds int) string {
	if seconds == 0 {
		return column
	}
	return fmt.Sprintf("%s + interval '1 second' * %d", column, seconds)
}

// recDateFoundExpr flags pairs whose dates drift beyond the tolerance.
// Without a tolerance the correlation join already pins the dates and
// the flag stays zero.
func recDateFoundExpr(rules *control.ReconciliationRules, dateA, dateB string) string {
	if rules.TimeToleranceFrom == 0 && rules.TimeToleranceTo == 0 {
		return "0"
	}
	return fmt.Sprintf("case when %s not between %s and %s then 1 else 0 end",
		dateA, recShiftExpr(dateB, rules.TimeToleranceFrom), recShiftExpr(dateB, rules.TimeToleranceTo))
}

func recDiscrepancyFoundExpr(rule control.DiscrepancyRule) string {
	diff := "(a." + rule.FieldA + " - b." + rule.FieldB + ")"
	low := recToleranceLiteral(rule.ToleranceFrom)
	high := recToleranceLiteral(rule.ToleranceTo)
	if rule.PercentageMode {
		base := "a." + rule.FieldA
		return fmt.Sprintf("case when %s not between %s * %s / 100 and %s * %s / 100 then 1 else 0 end",
			diff, base, low, base, high)
	}
	return fmt.Sprintf("case when %s not between %s and %s then 1 else 0 end", diff, low, high)
}

func recToleranceLiteral(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// recDuplicatesSQL collects the keys of one side that correlate with
// more than one peer row. Such pairings are ambiguous and are swept out
// of the combination before classification.
func recDuplicatesSQL(plan *control.Plan, side recSide) string {
	return "create table " + side.dupTable + " as\nselect " + side.keyColumn +
		"\nfrom " + plan.TempTable(control.TempCombined) +
		"\ngroup by " + side.keyColumn +
		"\nhaving count(*) > 1"
}

func recDropDuplicatePairsSQL(plan *control.Plan, sideA, sideB recSide) string {
	combined := plan.TempTable(control.TempCombined)
	return "delete from " + combined + " c" +
		"\nwhere exists (select 1 from " + sideA.dupTable + " d where d." + recKeyA + " = c." + recKeyA + ")" +
		"\n   or exists (select 1 from " + sideB.dupTable + " d where d." + recKeyB + " = c." + recKeyB + ")"
}

// recNotFoundSQL keeps the fetched rows of one side that never paired
// with the other side. Rows swept for duplicate pairing are excluded,
// they get their own classification.
func recNotFoundSQL(plan *control.Plan, side recSide) string {
	combined := plan.TempTable(control.TempCombined)
	var b strings.Builder
	b.WriteString("create table " + side.notFoundTable + " as\nselect t.*")
	b.WriteString("\nfrom " + side.fetchedTable + " t")
	b.WriteString("\nwhere not exists (select 1 from " + combined + " c where c." + side.keyColumn + " = t." + side.keyField + ")")
	if !plan.Rules.AllowDuplicates {
		b.WriteString("\n  and not exists (select 1 from " + side.dupTable + " d where d." + side.keyColumn + " = t." + side.keyField + ")")
	}
	return b.String()
}

// recIssuesSQL unions the issue classes of one side: correlated pairs
// out of tolerance, rows never correlated, and rows dropped for
// ambiguous pairing.
func recIssuesSQL(plan *control.Plan, side recSide) string {
	branches := []string{
		recDiscrepancyBranch(plan, side),
		recLossBranch(side),
	}
	if !plan.Rules.AllowDuplicates {
		branches = append(branches, recDuplicateBranch(side))
	}
	return "create table " + side.issuesTable + " as\n" + strings.Join(branches, "\nunion all\n")
}

func recDiscrepancyBranch(plan *control.Plan, side recSide) string {
	combined := plan.TempTable(control.TempCombined)
	var b strings.Builder
	b.WriteString("select t.*")
	b.WriteString(",\n       cast('Discrepancy' as varchar(15)) as " + control.ResultTypeColumn)
	b.WriteString(",\n       " + recDiscrepancyIDExpr(plan.Rules, side) + " as " + control.DiscrepancyIDColumn)
	b.WriteString(",\n       " + recDiscrepancyDescriptionExpr(plan.Rules, side) + " as " + control.DiscrepancyDescriptionColumn)
	b.WriteString("\nfrom " + side.fetchedTable + " t")
	b.WriteString("\njoin " + combined + " c on c." + side.keyColumn + " = t." + side.keyField)
	b.WriteString("\nwhere " + recFoundCondition(plan.Rules))
	return b.String()
}

func recLossBranch(side recSide) string {
	var b strings.Builder
	b.WriteString("select t.*")
	b.WriteString(",\n       cast('Loss' as varchar(15)) as " + control.ResultTypeColumn)
	b.WriteString(",\n       cast(null as text) as " + control.DiscrepancyIDColumn)
	b.WriteString(",\n       cast(null as text) as " + control.DiscrepancyDescriptionColumn)
	b.WriteString("\nfrom " + side.notFoundTable + " t")
	return b.String()
}

func recDuplicateBranch(side recSide) string {
	var b strings.Builder
	b.WriteString("select t.*")
	b.WriteString(",\n       cast('Duplicate' as varchar(15)) as " + control.ResultTypeColumn)
	b.WriteString(",\n       cast(null as text) as " + control.DiscrepancyIDColumn)
	b.WriteString(",\n       cast(null as text) as " + control.DiscrepancyDescriptionColumn)
	b.WriteString("\nfrom " + side.fetchedTable + " t")
	b.WriteString("\njoin " + side.dupTable + " d on d." + side.keyColumn + " = t." + side.keyField)
	return b.String()
}

// recResultsSQL keeps the correlated rows of one side with every flag
// clear, labeled as reconciled.
func recResultsSQL(plan *control.Plan, side recSide) string {
	combined := plan.TempTable(control.TempCombined)
	var b strings.Builder
	b.WriteString("create table " + side.resultsTable + " as\nselect t.*")
	b.WriteString(",\n       cast('Success' as varchar(15)) as " + control.ResultTypeColumn)
	b.WriteString(",\n       cast(null as text) as " + control.DiscrepancyIDColumn)
	b.WriteString(",\n       cast(null as text) as " + control.DiscrepancyDescriptionColumn)
	b.WriteString("\nfrom " + side.fetchedTable + " t")
	b.WriteString("\njoin " + combined + " c on c." + side.keyColumn + " = t." + side.keyField)
	b.WriteString("\nwhere " + recCleanCondition(plan.Rules))
	return b.String()
}

func recFoundCondition(rules *control.ReconciliationRules) string {
	parts := make([]string, 0, len(rules.Discrepancy)+1)
	parts = append(parts, "c."+recDateFound+" = 1")
	for i := range rules.Discrepancy {
		parts = append(parts, "c."+recDiscrepancyFound(i)+" = 1")
	}
	return strings.Join(parts, " or ")
}

func recCleanCondition(rules *control.ReconciliationRules) string {
	parts := make([]string, 0, len(rules.Discrepancy)+1)
	parts = append(parts, "c."+recDateFound+" = 0")
	for i := range rules.Discrepancy {
		parts = append(parts, "c."+recDiscrepancyFound(i)+" = 0")
	}
	return strings.Join(parts, " and ")
}

// recDiscrepancyIDExpr names the fields of this side that tripped a
// flag, pipe separated.
func recDiscrepancyIDExpr(rules *control.ReconciliationRules, side recSide) string {
	cases := make([]string, 0, len(rules.Discrepancy)+1)
	cases = append(cases, "case when c."+recDateFound+" = 1 then '"+side.dateField+"' end")
	for i, rule := range rules.Discrepancy {
		cases = append(cases, "case when c."+recDiscrepancyFound(i)+" = 1 then '"+side.ruleField(rule)+"' end")
	}
	return "concat_ws('|', " + strings.Join(cases, ", ") + ")"
}

// recDiscrepancyDescriptionExpr spells out each tripped flag with the
// peer field and the measured difference.
func recDiscrepancyDescriptionExpr(rules *control.ReconciliationRules, side recSide) string {
	cases := make([]string, 0, len(rules.Discrepancy)+1)
	cases = append(cases,
		"case when c."+recDateFound+" = 1 then '"+side.dateField+" outside time tolerance of "+side.peerDateField+"' end")
	for i, rule := range rules.Discrepancy {
		cases = append(cases,
			"case when c."+recDiscrepancyFound(i)+" = 1 then '"+side.ruleField(rule)+" <> "+side.peerRuleField(rule)+" by ' || c."+recDiscrepancyValue(i)+" end")
	}
	return "concat_ws('; ', " + strings.Join(cases, ", ") + ")"
}
