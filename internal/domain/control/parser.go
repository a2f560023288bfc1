package control

import (
	"fmt"
	"strings"
	"time"

	"github.com/t3eHawk/rapo/internal/domain/model"
)

// SQLDateFormat is the to_timestamp mask matching DateTimeFormat.
const SQLDateFormat = "YYYY-MM-DD HH24:MI:SS"

// FetchPlan describes one source fetch materialized into a temp table.
type FetchPlan struct {
	Source    string
	TempTable string
	KeyField  string
	DateField string
	Filter    string
	NotNull   []string
	Literals  []string
	From      time.Time
	To        time.Time
}

// SelectSQL renders the fetch statement. withRowID injects the physical
// row address labeled as the key field, which only works when the source
// is a real table rather than a view.
func (f *FetchPlan) SelectSQL(hint string, withRowID bool) string {
	var b strings.Builder
	b.WriteString("select ")
	if hint != "" {
		b.WriteString(hint + " ")
	}
	b.WriteString("t.*")
	if withRowID && f.KeyField != "" {
		b.WriteString(",\n       t.ctid as " + f.KeyField)
	}
	for _, literal := range f.Literals {
		b.WriteString(",\n       " + literal)
	}
	b.WriteString("\nfrom " + f.Source + " t")
	clauses := make([]string, 0, 3)
	if f.Filter != "" {
		clauses = append(clauses, "("+f.Filter+")")
	}
	for _, field := range f.NotNull {
		clauses = append(clauses, "t."+field+" is not null")
	}
	if f.DateField != "" {
		clauses = append(clauses, fmt.Sprintf(
			"t.%s between to_timestamp('%s', '%s') and to_timestamp('%s', '%s')",
			f.DateField,
			f.From.Format(DateTimeFormat), SQLDateFormat,
			f.To.Format(DateTimeFormat), SQLDateFormat))
	}
	if len(clauses) > 0 {
		b.WriteString("\nwhere " + strings.Join(clauses, "\n  and "))
	}
	return b.String()
}

// Plan is the parsed execution plan of one control run. Everything in it
// is derived from the configuration row before any source data is read.
type Plan struct {
	Config    model.ControlConfig
	ProcessID int64
	Trigger   time.Time
	Window    Window
	Variables Variables

	Cases       map[int64]model.Case
	CaseColumns []string
	HasCases    bool

	ErrorExpr  string
	MatchPairs []ColumnPair
	ErrorPairs []ColumnPair
	Rules      *ReconciliationRules

	Output  []OutputColumn
	OutputA []OutputColumn
	OutputB []OutputColumn

	Fetch  *FetchPlan
	FetchA *FetchPlan
	FetchB *FetchPlan

	Iterations []Iteration
	Iteration  *Iteration

	PrerequisiteSQL string
	PreparationSQL  string
	CompletionSQL   string
}

// Kind is the control type of the planned run.
func (p *Plan) Kind() model.ControlType { return p.Config.ControlType }

// Hint renders the parallel hint put into generated statements, or the
// empty string when no parallelism is configured.
func (p *Plan) Hint() string {
	if p.Config.Parallelism != nil && *p.Config.Parallelism > 1 {
		return fmt.Sprintf("/*+ parallel(%d) */", *p.Config.Parallelism)
	}
	return ""
}

// TempTables lists every temp table name this run may create.
func (p *Plan) TempTables() []string {
	return TempTableNames(p.Kind(), p.ProcessID)
}

// TempTable resolves one role to its physical name for this run.
func (p *Plan) TempTable(role string) string {
	return TempTableName(role, p.ProcessID)
}

// ResultTables lists the output tables this control writes to.
func (p *Plan) ResultTables() []string {
	return ResultTableNames(p.Kind(), p.Config.ControlName)
}

// OutputLimit caps rows copied into output tables. Zero means no cap.
func (p *Plan) OutputLimit() int64 {
	if p.Config.OutputLimit != nil && *p.Config.OutputLimit > 0 {
		return *p.Config.OutputLimit
	}
	return 0
}

// PlanInput carries everything needed to assemble a Plan.
type PlanInput struct {
	Config    model.ControlConfig
	ProcessID int64

	// Trigger anchors the period arithmetic, usually the scheduler
	// moment. Window, when set, overrides the arithmetic entirely.
	Trigger time.Time
	Window  *Window

	// IterationID selects period settings from the iteration config.
	IterationID *int64
}

// BuildPlan validates the configuration and derives the full plan of one
// run. It is pure: no database access happens here.
func BuildPlan(in PlanInput) (*Plan, error) {
	cfg := in.Config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	iterations, err := ParseIterations(cfg.IterationConfig)
	if err != nil {
		return nil, err
	}

	periodBack := cfg.PeriodBack
	periodNumber := cfg.PeriodNumber
	periodType := cfg.PeriodType
	plan := &Plan{
		Config:     cfg,
		ProcessID:  in.ProcessID,
		Trigger:    in.Trigger,
		Iterations: iterations,
	}
	if in.IterationID != nil {
		iteration, err := FindIteration(iterations, *in.IterationID)
		if err != nil {
			return nil, err
		}
		periodBack = iteration.PeriodBack
		periodNumber = iteration.PeriodNumber
		periodType = model.PeriodType(iteration.PeriodType)
		plan.Iteration = &iteration
	}

	if in.Window != nil {
		plan.Window = *in.Window
	} else {
		plan.Window, err = WindowFromTrigger(in.Trigger, periodBack, periodNumber, periodType)
		if err != nil {
			return nil, err
		}
	}
	plan.Variables = NewVariables(cfg.ControlName, in.ProcessID, plan.Window).
		WithTrigger(in.Trigger)

	plan.Cases, err = ParseCases(cfg.CaseConfig)
	if err != nil {
		return nil, err
	}
	plan.HasCases = len(plan.Cases) > 0 &&
		cfg.CaseDefinition != nil && strings.TrimSpace(*cfg.CaseDefinition) != ""

	if plan.PrerequisiteSQL, err = expandStatement(plan.Variables, cfg.PrerequisiteSQL); err != nil {
		return nil, err
	}
	if plan.PreparationSQL, err = expandStatement(plan.Variables, cfg.PreparationSQL); err != nil {
		return nil, err
	}
	if plan.CompletionSQL, err = expandStatement(plan.Variables, cfg.CompletionSQL); err != nil {
		return nil, err
	}

	switch cfg.ControlType {
	case model.ControlTypeAnalysis, model.ControlTypeReport:
		if err := buildOneSided(plan); err != nil {
			return nil, err
		}
	case model.ControlTypeComparison:
		if err := buildComparison(plan); err != nil {
			return nil, err
		}
	case model.ControlTypeReconciliation:
		if err := buildReconciliation(plan); err != nil {
			return nil, err
		}
	}
	return plan, nil
}

func buildOneSided(plan *Plan) error {
	cfg := plan.Config
	var err error
	plan.CaseColumns, err = CaseColumns(cfg.CaseDefinition, plan.Cases)
	if err != nil {
		return err
	}
	plan.Output, err = ParseOutputColumns(cfg.OutputTable)
	if err != nil {
		return err
	}
	if cfg.ControlType == model.ControlTypeAnalysis {
		plan.ErrorExpr, err = AnalysisErrorExpr(cfg.ErrorDefinition, plan.HasCases)
		if err != nil {
			return err
		}
	}
	plan.Fetch, err = buildFetch(plan, fetchSide{
		source:    cfg.SourceName,
		dateField: cfg.SourceDateField,
		filter:    cfg.SourceFilter,
		tempRole:  TempFetched,
		literals:  plan.CaseColumns,
		window:    plan.Window,
	})
	return err
}

func buildComparison(plan *Plan) error {
	cfg := plan.Config
	if cfg.ControlSubtype != nil && *cfg.ControlSubtype != model.SubtypeMatching {
		return fmt.Errorf("unsupported comparison method: %q", *cfg.ControlSubtype)
	}
	var err error
	plan.MatchPairs, err = MatchPairs(cfg.RuleConfig)
	if err != nil {
		return err
	}
	if len(plan.MatchPairs) == 0 {
		return fmt.Errorf("comparison control has no rule columns")
	}
	plan.ErrorPairs, err = ComparisonErrorPairs(cfg.ErrorDefinition)
	if err != nil {
		return err
	}
	if len(plan.ErrorPairs) == 0 {
		return fmt.Errorf("comparison control has no error definition columns")
	}
	plan.Output, err = ParseOutputColumns(cfg.OutputTable)
	if err != nil {
		return err
	}
	plan.FetchA, err = buildFetch(plan, fetchSide{
		source:    cfg.SourceNameA,
		dateField: cfg.SourceDateFieldA,
		filter:    cfg.SourceFilterA,
		tempRole:  TempFetchedA,
		window:    plan.Window,
	})
	if err != nil {
		return err
	}
	plan.FetchB, err = buildFetch(plan, fetchSide{
		source:    cfg.SourceNameB,
		dateField: cfg.SourceDateFieldB,
		filter:    cfg.SourceFilterB,
		tempRole:  TempFetchedB,
		window:    plan.Window,
	})
	return err
}

func buildReconciliation(plan *Plan) error {
	cfg := plan.Config
	rules, err := ParseReconciliationRules(cfg.RuleConfig)
	if err != nil {
		return err
	}
	plan.Rules = rules
	if cfg.SourceKeyFieldA == nil || cfg.SourceKeyFieldB == nil {
		return fmt.Errorf("reconciliation control requires key fields on both sides")
	}
	if cfg.SourceDateFieldA == nil || cfg.SourceDateFieldB == nil {
		return fmt.Errorf("reconciliation control requires date fields on both sides")
	}
	plan.OutputA, err = ParseOutputColumns(cfg.OutputTableA)
	if err != nil {
		return err
	}
	plan.OutputB, err = ParseOutputColumns(cfg.OutputTableB)
	if err != nil {
		return err
	}

	var notNullA, notNullB []string
	for _, field := range rules.Correlation {
		if !field.AllowNull {
			notNullA = append(notNullA, field.FieldA)
			notNullB = append(notNullB, field.FieldB)
		}
	}
	window := plan.Window.Shift(rules.TimeShiftFrom, rules.TimeShiftTo)

	plan.FetchA, err = buildFetch(plan, fetchSide{
		source:    cfg.SourceNameA,
		dateField: cfg.SourceDateFieldA,
		filter:    cfg.SourceFilterA,
		keyField:  cfg.SourceKeyFieldA,
		notNull:   notNullA,
		tempRole:  TempFetchedA,
		window:    window,
	})
	if err != nil {
		return err
	}
	plan.FetchB, err = buildFetch(plan, fetchSide{
		source:    cfg.SourceNameB,
		dateField: cfg.SourceDateFieldB,
		filter:    cfg.SourceFilterB,
		keyField:  cfg.SourceKeyFieldB,
		notNull:   notNullB,
		tempRole:  TempFetchedB,
		window:    window,
	})
	return err
}

type fetchSide struct {
	source    *string
	dateField *string
	filter    *string
	keyField  *string
	notNull   []string
	tempRole  string
	literals  []string
	window    Window
}

func buildFetch(plan *Plan, side fetchSide) (*FetchPlan, error) {
	if side.source == nil {
		return nil, fmt.Errorf("source name is required")
	}
	name, err := plan.Variables.Expand(*side.source)
	if err != nil {
		return nil, err
	}
	source, err := RequireTableName(name)
	if err != nil {
		return nil, err
	}
	fetch := &FetchPlan{
		Source:    source,
		TempTable: plan.TempTable(side.tempRole),
		NotNull:   side.notNull,
		Literals:  side.literals,
		From:      side.window.From,
		To:        side.window.To,
	}
	if side.dateField != nil && strings.TrimSpace(*side.dateField) != "" {
		if fetch.DateField, err = RequireIdentifier(*side.dateField); err != nil {
			return nil, err
		}
	}
	if side.keyField != nil && strings.TrimSpace(*side.keyField) != "" {
		if fetch.KeyField, err = RequireIdentifier(*side.keyField); err != nil {
			return nil, err
		}
	}
	if side.filter != nil {
		fetch.Filter = strings.TrimSpace(*side.filter)
	}
	return fetch, nil
}

func expandStatement(vars Variables, statement *string) (string, error) {
	if statement == nil || strings.TrimSpace(*statement) == "" {
		return "", nil
	}
	return vars.Expand(strings.TrimSpace(*statement))
}
