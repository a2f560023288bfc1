// Package testutil provides testing utilities and helpers for the rapo control engine.
package testutil

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/t3eHawk/rapo/internal/domain/model"
)

// ControlRequestBuilder provides a fluent interface for building SaveControlRequest objects for testing.
type ControlRequestBuilder struct {
	req *model.SaveControlRequest
}

// NewControlRequest creates a new ControlRequestBuilder with sensible defaults.
// The name is unique per call so shared-database tests do not collide.
func NewControlRequest() *ControlRequestBuilder {
	name := fmt.Sprintf("test_control_%d", time.Now().UnixNano())
	ctype := model.ControlTypeAnalysis
	source := "rapo_source_sales"
	dateField := "order_date"
	status := model.FlagNo
	return &ControlRequestBuilder{
		req: &model.SaveControlRequest{
			ControlName:     &name,
			ControlType:     &ctype,
			SourceName:      &source,
			SourceDateField: &dateField,
			Status:          &status,
		},
	}
}

// WithName sets the control name.
func (b *ControlRequestBuilder) WithName(name string) *ControlRequestBuilder {
	b.req.ControlName = &name
	return b
}

// WithID sets the control ID, turning the request into an update.
func (b *ControlRequestBuilder) WithID(id int64) *ControlRequestBuilder {
	b.req.ControlID = &id
	return b
}

// WithType sets the control type.
func (b *ControlRequestBuilder) WithType(ctype model.ControlType) *ControlRequestBuilder {
	b.req.ControlType = &ctype
	return b
}

// WithSource sets the single-source table and its date field.
func (b *ControlRequestBuilder) WithSource(name, dateField string) *ControlRequestBuilder {
	b.req.SourceName = &name
	b.req.SourceDateField = &dateField
	return b
}

// WithSourceA sets the A-side source, date field and key field.
func (b *ControlRequestBuilder) WithSourceA(name, dateField, keyField string) *ControlRequestBuilder {
	b.req.SourceNameA = &name
	b.req.SourceDateFieldA = &dateField
	if keyField != "" {
		b.req.SourceKeyFieldA = &keyField
	}
	return b
}

// WithSourceB sets the B-side source, date field and key field.
func (b *ControlRequestBuilder) WithSourceB(name, dateField, keyField string) *ControlRequestBuilder {
	b.req.SourceNameB = &name
	b.req.SourceDateFieldB = &dateField
	if keyField != "" {
		b.req.SourceKeyFieldB = &keyField
	}
	return b
}

// WithErrorDefinition sets the error definition expression.
func (b *ControlRequestBuilder) WithErrorDefinition(expr string) *ControlRequestBuilder {
	b.req.ErrorDefinition = &expr
	return b
}

// WithCaseDefinition sets the case mapping expression.
func (b *ControlRequestBuilder) WithCaseDefinition(expr string) *ControlRequestBuilder {
	b.req.CaseDefinition = &expr
	return b
}

// WithRuleConfig sets the rule configuration from a JSON string.
func (b *ControlRequestBuilder) WithRuleConfig(raw string) *ControlRequestBuilder {
	msg := json.RawMessage(raw)
	b.req.RuleConfig = &msg
	return b
}

// WithCaseConfig sets the case configuration from a JSON string.
func (b *ControlRequestBuilder) WithCaseConfig(raw string) *ControlRequestBuilder {
	msg := json.RawMessage(raw)
	b.req.CaseConfig = &msg
	return b
}

// WithScheduleConfig sets the schedule configuration from a JSON string.
func (b *ControlRequestBuilder) WithScheduleConfig(raw string) *ControlRequestBuilder {
	msg := json.RawMessage(raw)
	b.req.ScheduleConfig = &msg
	return b
}

// WithPeriod sets the date window geometry.
func (b *ControlRequestBuilder) WithPeriod(back, number int, ptype model.PeriodType) *ControlRequestBuilder {
	b.req.PeriodBack = &back
	b.req.PeriodNumber = &number
	b.req.PeriodType = &ptype
	return b
}

// WithStatus sets the enabled flag.
func (b *ControlRequestBuilder) WithStatus(status model.Flag) *ControlRequestBuilder {
	b.req.Status = &status
	return b
}

// WithOutputLimit caps the number of saved findings.
func (b *ControlRequestBuilder) WithOutputLimit(limit int64) *ControlRequestBuilder {
	b.req.OutputLimit = &limit
	return b
}

// WithInstanceLimit caps concurrently running instances of the control.
func (b *ControlRequestBuilder) WithInstanceLimit(limit int) *ControlRequestBuilder {
	b.req.InstanceLimit = &limit
	return b
}

// WithTimeout sets the run timeout in seconds.
func (b *ControlRequestBuilder) WithTimeout(seconds int) *ControlRequestBuilder {
	b.req.Timeout = &seconds
	return b
}

// WithDaysRetention sets the result retention period in days.
func (b *ControlRequestBuilder) WithDaysRetention(days int) *ControlRequestBuilder {
	b.req.DaysRetention = &days
	return b
}

// WithNeedA sets whether the A-side result table is kept.
func (b *ControlRequestBuilder) WithNeedA(flag model.Flag) *ControlRequestBuilder {
	b.req.NeedA = &flag
	return b
}

// WithNeedB sets whether the B-side result table is kept.
func (b *ControlRequestBuilder) WithNeedB(flag model.Flag) *ControlRequestBuilder {
	b.req.NeedB = &flag
	return b
}

// WithPrerequisiteSQL sets the prerequisite statement.
func (b *ControlRequestBuilder) WithPrerequisiteSQL(sql string) *ControlRequestBuilder {
	b.req.PrerequisiteSQL = &sql
	return b
}

// WithPreparationSQL sets the preparation statement.
func (b *ControlRequestBuilder) WithPreparationSQL(sql string) *ControlRequestBuilder {
	b.req.PreparationSQL = &sql
	return b
}

// WithCompletionSQL sets the completion statement.
func (b *ControlRequestBuilder) WithCompletionSQL(sql string) *ControlRequestBuilder {
	b.req.CompletionSQL = &sql
	return b
}

// Build returns the constructed SaveControlRequest.
func (b *ControlRequestBuilder) Build() *model.SaveControlRequest {
	return b.req
}

// Common test control request presets

// AnalysisControlRequest creates a single-source analysis control with an error definition.
func AnalysisControlRequest() *model.SaveControlRequest {
	return NewControlRequest().
		WithType(model.ControlTypeAnalysis).
		WithErrorDefinition("amount < 0").
		Build()
}

// ReportControlRequest creates a report control where every fetched row is a finding.
func ReportControlRequest() *model.SaveControlRequest {
	return NewControlRequest().
		WithType(model.ControlTypeReport).
		Build()
}

// ReconciliationControlRequest creates a two-source reconciliation control keyed by order_id.
func ReconciliationControlRequest() *model.SaveControlRequest {
	return NewControlRequest().
		WithType(model.ControlTypeReconciliation).
		WithSourceA("rapo_source_orders_a", "order_date", "order_id").
		WithSourceB("rapo_source_orders_b", "order_date", "order_id").
		WithRuleConfig(`{"correlation_config": [{"field_a": "order_id", "field_b": "order_id"}]}`).
		Build()
}

// ComparisonControlRequest creates a two-source comparison control matched on order_id.
func ComparisonControlRequest() *model.SaveControlRequest {
	return NewControlRequest().
		WithType(model.ControlTypeComparison).
		WithSourceA("rapo_source_orders_a", "order_date", "").
		WithSourceB("rapo_source_orders_b", "order_date", "").
		WithRuleConfig(`[{"column_a": "order_id", "column_b": "order_id"}]`).
		WithErrorDefinition(`[{"column_a": "amount", "column_b": "amount"}]`).
		Build()
}

// ScheduledControlRequest creates an enabled control firing every minute.
func ScheduledControlRequest() *model.SaveControlRequest {
	return NewControlRequest().
		WithStatus(model.FlagYes).
		WithScheduleConfig(`{"mday": "*", "hour": "*", "min": "*"}`).
		Build()
}

// DisabledControlRequest creates a control that the scheduler must skip.
func DisabledControlRequest() *model.SaveControlRequest {
	return NewControlRequest().
		WithStatus(model.FlagNo).
		WithScheduleConfig(`{"mday": "*", "hour": "*", "min": "*"}`).
		Build()
}
