package control_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/t3eHawk/rapo/internal/domain/control"
	"github.com/t3eHawk/rapo/internal/domain/model"
)

func intPtr(i int) *int       { return &i }
func int64Ptr(i int64) *int64 { return &i }

func analysisConfig() model.ControlConfig {
	return model.ControlConfig{
		ControlID:       10,
		ControlName:     "daily_sales_check",
		ControlType:     model.ControlTypeAnalysis,
		SourceName:      strPtr("Sales_Transactions"),
		SourceDateField: strPtr("created_at"),
		SourceFilter:    strPtr("region = 'EU'"),
		ErrorDefinition: strPtr(`[{"column": "amount", "relation": ">", "value": 1000}]`),
		PeriodBack:      1,
		PeriodNumber:    1,
		PeriodType:      model.PeriodTypeDay,
	}
}

func TestBuildPlanAnalysis(t *testing.T) {
	plan, err := control.BuildPlan(control.PlanInput{
		Config:    analysisConfig(),
		ProcessID: 12345,
		Trigger:   date("2024-03-10 02:00:00"),
	})
	require.NoError(t, err)

	assert.Equal(t, model.ControlTypeAnalysis, plan.Kind())
	assert.Equal(t, "2024-03-09 00:00:00", plan.Window.FromText())
	assert.Equal(t, "2024-03-09 23:59:59", plan.Window.ToText())
	assert.Equal(t, "amount > 1000", plan.ErrorExpr)

	require.NotNil(t, plan.Fetch)
	assert.Equal(t, "sales_transactions", plan.Fetch.Source)
	assert.Equal(t, "rapo_temp_fd_12345", plan.Fetch.TempTable)

	sql := plan.Fetch.SelectSQL("", false)
	assert.Contains(t, sql, "select t.*")
	assert.Contains(t, sql, "cast(null as integer) as rapo_result_key")
	assert.Contains(t, sql, "from sales_transactions t")
	assert.Contains(t, sql, "(region = 'EU')")
	assert.Contains(t, sql,
		"t.created_at between to_timestamp('2024-03-09 00:00:00', 'YYYY-MM-DD HH24:MI:SS') "+
			"and to_timestamp('2024-03-09 23:59:59', 'YYYY-MM-DD HH24:MI:SS')")

	assert.Equal(t, []string{"rapo_temp_fd_12345", "rapo_temp_err_12345"}, plan.TempTables())
	assert.Equal(t, []string{"rapo_rest_daily_sales_check"}, plan.ResultTables())
}

func TestBuildPlanExpandsSourceName(t *testing.T) {
	cfg := analysisConfig()
	cfg.SourceName = strPtr("stage.sales_{control_name}")
	plan, err := control.BuildPlan(control.PlanInput{
		Config:    cfg,
		ProcessID: 7,
		Trigger:   date("2024-03-10 02:00:00"),
	})
	require.NoError(t, err)
	assert.Equal(t, "stage.sales_daily_sales_check", plan.Fetch.Source)
}

func TestBuildPlanRejectsUnknownPlaceholder(t *testing.T) {
	cfg := analysisConfig()
	cfg.SourceName = strPtr("sales_{mystery}")
	_, err := control.BuildPlan(control.PlanInput{
		Config:    cfg,
		ProcessID: 7,
		Trigger:   date("2024-03-10 02:00:00"),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mystery")
}

func TestBuildPlanExpandsHookStatements(t *testing.T) {
	cfg := analysisConfig()
	cfg.PreparationSQL = strPtr("delete from staging where run_id = {process_id}")
	plan, err := control.BuildPlan(control.PlanInput{
		Config:    cfg,
		ProcessID: 99,
		Trigger:   date("2024-03-10 02:00:00"),
	})
	require.NoError(t, err)
	assert.Equal(t, "delete from staging where run_id = 99", plan.PreparationSQL)
}

func TestBuildPlanHint(t *testing.T) {
	cfg := analysisConfig()
	cfg.Parallelism = intPtr(4)
	plan, err := control.BuildPlan(control.PlanInput{
		Config:    cfg,
		ProcessID: 1,
		Trigger:   date("2024-03-10 02:00:00"),
	})
	require.NoError(t, err)
	assert.Equal(t, "/*+ parallel(4) */", plan.Hint())
	assert.Contains(t, plan.Fetch.SelectSQL(plan.Hint(), false), "select /*+ parallel(4) */ t.*")
}

func TestBuildPlanIterationOverride(t *testing.T) {
	cfg := analysisConfig()
	cfg.IterationConfig = json.RawMessage(`[
		{"iteration_id": 2, "period_back": 2, "period_number": 1,
		 "period_type": "D", "status": "Y"}
	]`)
	plan, err := control.BuildPlan(control.PlanInput{
		Config:      cfg,
		ProcessID:   5,
		Trigger:     date("2024-03-10 02:00:00"),
		IterationID: int64Ptr(2),
	})
	require.NoError(t, err)
	assert.Equal(t, "2024-03-08 00:00:00", plan.Window.FromText())
	require.NotNil(t, plan.Iteration)
	assert.EqualValues(t, 2, plan.Iteration.ID)

	_, err = control.BuildPlan(control.PlanInput{
		Config:      cfg,
		ProcessID:   5,
		Trigger:     date("2024-03-10 02:00:00"),
		IterationID: int64Ptr(9),
	})
	require.Error(t, err)
}

func TestBuildPlanExplicitWindow(t *testing.T) {
	window := control.WindowBetween(date("2024-01-01 00:00:00"), date("2024-01-31 23:59:59"))
	plan, err := control.BuildPlan(control.PlanInput{
		Config:    analysisConfig(),
		ProcessID: 5,
		Trigger:   date("2024-03-10 02:00:00"),
		Window:    &window,
	})
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01 00:00:00", plan.Window.FromText())
	assert.Equal(t, "2024-01-31 23:59:59", plan.Window.ToText())
}

func comparisonConfig() model.ControlConfig {
	return model.ControlConfig{
		ControlID:        20,
		ControlName:      "ledger_vs_gateway",
		ControlType:      model.ControlTypeComparison,
		SourceNameA:      strPtr("ledger_entries"),
		SourceDateFieldA: strPtr("posted_at"),
		SourceNameB:      strPtr("gateway_entries"),
		SourceDateFieldB: strPtr("captured_at"),
		RuleConfig:       json.RawMessage(`[{"column_a": "txn_id", "column_b": "ref_id"}]`),
		ErrorDefinition:  strPtr(`[{"column_a": "amount", "column_b": "amt"}]`),
		PeriodBack:       1,
		PeriodNumber:     1,
		PeriodType:       model.PeriodTypeDay,
	}
}

func TestBuildPlanComparison(t *testing.T) {
	plan, err := control.BuildPlan(control.PlanInput{
		Config:    comparisonConfig(),
		ProcessID: 77,
		Trigger:   date("2024-03-10 02:00:00"),
	})
	require.NoError(t, err)

	require.Len(t, plan.MatchPairs, 1)
	require.Len(t, plan.ErrorPairs, 1)
	require.NotNil(t, plan.FetchA)
	require.NotNil(t, plan.FetchB)
	assert.Equal(t, "rapo_temp_fd_a_77", plan.FetchA.TempTable)
	assert.Equal(t, "rapo_temp_fd_b_77", plan.FetchB.TempTable)
	assert.Empty(t, plan.FetchA.Literals)
	assert.Equal(t,
		[]string{"rapo_temp_fd_a_77", "rapo_temp_fd_b_77", "rapo_temp_md_77", "rapo_temp_nmd_77"},
		plan.TempTables())
}

func TestBuildPlanComparisonRequiresRules(t *testing.T) {
	cfg := comparisonConfig()
	cfg.RuleConfig = nil
	_, err := control.BuildPlan(control.PlanInput{
		Config:    cfg,
		ProcessID: 77,
		Trigger:   date("2024-03-10 02:00:00"),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rule columns")

	cfg = comparisonConfig()
	cfg.ErrorDefinition = nil
	_, err = control.BuildPlan(control.PlanInput{
		Config:    cfg,
		ProcessID: 77,
		Trigger:   date("2024-03-10 02:00:00"),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error definition")
}

func reconciliationConfig() model.ControlConfig {
	return model.ControlConfig{
		ControlID:        30,
		ControlName:      "bank_recon",
		ControlType:      model.ControlTypeReconciliation,
		SourceNameA:      strPtr("bank_statement"),
		SourceDateFieldA: strPtr("value_date"),
		SourceKeyFieldA:  strPtr("row_key_a"),
		SourceNameB:      strPtr("internal_ledger"),
		SourceDateFieldB: strPtr("booked_at"),
		SourceKeyFieldB:  strPtr("row_key_b"),
		NeedA:            model.FlagYes,
		NeedB:            model.FlagYes,
		RuleConfig: json.RawMessage(`{
			"need_issues_a": true, "need_issues_b": true,
			"time_shift_from": -60, "time_shift_to": 60,
			"correlation_config": [
				{"field_a": "txn_ref", "field_b": "ext_ref"},
				{"field_a": "currency", "field_b": "currency", "allow_null": true}
			],
			"discrepancy_config": [
				{"field_a": "amount", "field_b": "amount",
				 "numeric_tolerance_from": -0.01, "numeric_tolerance_to": 0.01}
			]
		}`),
		PeriodBack:   1,
		PeriodNumber: 1,
		PeriodType:   model.PeriodTypeDay,
	}
}

func TestBuildPlanReconciliation(t *testing.T) {
	plan, err := control.BuildPlan(control.PlanInput{
		Config:    reconciliationConfig(),
		ProcessID: 555,
		Trigger:   date("2024-03-10 02:00:00"),
	})
	require.NoError(t, err)

	require.NotNil(t, plan.Rules)
	require.NotNil(t, plan.FetchA)
	require.NotNil(t, plan.FetchB)

	// The time shift widens both fetch windows.
	assert.Equal(t, date("2024-03-08 23:59:00"), plan.FetchA.From)
	assert.Equal(t, date("2024-03-10 00:00:59"), plan.FetchA.To)
	assert.Equal(t, plan.FetchA.From, plan.FetchB.From)

	// Correlation fields without allow_null become not-null filters.
	assert.Equal(t, []string{"txn_ref"}, plan.FetchA.NotNull)
	assert.Equal(t, []string{"ext_ref"}, plan.FetchB.NotNull)

	assert.Equal(t, "row_key_a", plan.FetchA.KeyField)
	sql := plan.FetchA.SelectSQL("", true)
	assert.Contains(t, sql, "t.ctid as row_key_a")
	assert.Contains(t, sql, "t.txn_ref is not null")

	assert.Equal(t,
		[]string{"rapo_resa_bank_recon", "rapo_resb_bank_recon"},
		plan.ResultTables())
	assert.Contains(t, plan.TempTables(), "rapo_temp_comb_555")
	assert.Contains(t, plan.TempTables(), "rapo_temp_nf_b_555")
}

func TestBuildPlanReconciliationRequiresKeyFields(t *testing.T) {
	cfg := reconciliationConfig()
	cfg.SourceKeyFieldA = nil
	_, err := control.BuildPlan(control.PlanInput{
		Config:    cfg,
		ProcessID: 555,
		Trigger:   date("2024-03-10 02:00:00"),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "key fields")
}

func TestParseTempTableName(t *testing.T) {
	role, pid, ok := control.ParseTempTableName("rapo_temp_fd_a_991")
	require.True(t, ok)
	assert.Equal(t, "fd_a", role)
	assert.EqualValues(t, 991, pid)

	_, _, ok = control.ParseTempTableName("rapo_rest_daily")
	assert.False(t, ok)

	_, _, ok = control.ParseTempTableName("rapo_temp_fd_")
	assert.False(t, ok)
}
