// Package model defines the typed rows and enums shared across the rapo engine.
package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ControlType distinguishes the four control kinds.
//
//nolint:recvcheck // UnmarshalText needs pointer receiver, Valid needs value receiver
type ControlType string

// PeriodType selects the unit of the control date window.
type PeriodType string

// Flag is a Y/N switch as stored in the configuration table.
type Flag string

const (
	// ControlTypeAnalysis checks one source against an error definition.
	ControlTypeAnalysis ControlType = "ANL"
	// ControlTypeReconciliation correlates two sources by key fields.
	ControlTypeReconciliation ControlType = "REC"
	// ControlTypeComparison matches two sources column by column.
	ControlTypeComparison ControlType = "CMP"
	// ControlTypeReport treats every fetched row as a finding.
	ControlTypeReport ControlType = "REP"

	// PeriodTypeDay spans whole days.
	PeriodTypeDay PeriodType = "D"
	// PeriodTypeWeek spans whole weeks.
	PeriodTypeWeek PeriodType = "W"
	// PeriodTypeMonth spans whole calendar months.
	PeriodTypeMonth PeriodType = "M"

	// FlagYes enables a Y/N switch.
	FlagYes Flag = "Y"
	// FlagNo disables a Y/N switch.
	FlagNo Flag = "N"
)

// SubtypeMatching is the historical CMP method identifier.
const SubtypeMatching = "MA"

// UnmarshalText implements encoding.TextUnmarshaler for ControlType.
func (t *ControlType) UnmarshalText(text []byte) error {
	v := ControlType(strings.ToUpper(strings.TrimSpace(string(text))))
	if v.Valid() {
		*t = v
		return nil
	}
	return fmt.Errorf("invalid ControlType: %q", string(text))
}

// Valid returns true if the ControlType is one of the four known kinds.
func (t ControlType) Valid() bool {
	return t == ControlTypeAnalysis || t == ControlTypeReconciliation ||
		t == ControlTypeComparison || t == ControlTypeReport
}

// TwoSided reports whether the control fetches both an A and a B source.
func (t ControlType) TwoSided() bool {
	return t == ControlTypeReconciliation || t == ControlTypeComparison
}

// Valid returns true if the PeriodType is a known unit.
func (t PeriodType) Valid() bool {
	return t == PeriodTypeDay || t == PeriodTypeWeek || t == PeriodTypeMonth
}

// Bool reads the flag the way the configuration table stores it: Y means on.
func (f Flag) Bool() bool {
	return strings.EqualFold(strings.TrimSpace(string(f)), string(FlagYes))
}

// ControlsListOptions controls paging and filtering for listing controls.
// Notes:
// - Sort supports: "control_name", "control_type", "created_date", "updated_date" (case-insensitive).
// - Dir supports: "asc", "desc" (case-insensitive); values are normalized internally.
// - Q matches control_name via ILIKE substring.
// - Type, Group and Status match exactly.
type ControlsListOptions struct {
	Limit  int
	Offset int
	Q      *string
	Type   *ControlType
	Group  *string
	Status *Flag
	Sort   string
	Dir    string
}

// ControlConfig is one row of the control configuration table.
type ControlConfig struct {
	ControlID          int64           `json:"control_id"                    db:"control_id"`
	ControlName        string          `json:"control_name"                  db:"control_name"`
	ControlDescription *string         `json:"control_description,omitempty" db:"control_description"`
	ControlGroup       *string         `json:"control_group,omitempty"       db:"control_group"`
	ControlType        ControlType     `json:"control_type"                  db:"control_type"`
	ControlSubtype     *string         `json:"control_subtype,omitempty"     db:"control_subtype"`
	ControlEngine      string          `json:"control_engine"                db:"control_engine"`
	SourceName         *string         `json:"source_name,omitempty"         db:"source_name"`
	SourceDateField    *string         `json:"source_date_field,omitempty"   db:"source_date_field"`
	SourceFilter       *string         `json:"source_filter,omitempty"       db:"source_filter"`
	SourceNameA        *string         `json:"source_name_a,omitempty"       db:"source_name_a"`
	SourceDateFieldA   *string         `json:"source_date_field_a,omitempty" db:"source_date_field_a"`
	SourceFilterA      *string         `json:"source_filter_a,omitempty"     db:"source_filter_a"`
	SourceKeyFieldA    *string         `json:"source_key_field_a,omitempty"  db:"source_key_field_a"`
	SourceNameB        *string         `json:"source_name_b,omitempty"       db:"source_name_b"`
	SourceDateFieldB   *string         `json:"source_date_field_b,omitempty" db:"source_date_field_b"`
	SourceFilterB      *string         `json:"source_filter_b,omitempty"     db:"source_filter_b"`
	SourceKeyFieldB    *string         `json:"source_key_field_b,omitempty"  db:"source_key_field_b"`
	RuleConfig         json.RawMessage `json:"rule_config,omitempty"         db:"rule_config"`
	ErrorDefinition    *string         `json:"error_definition,omitempty"    db:"error_definition"`
	CaseConfig         json.RawMessage `json:"case_config,omitempty"         db:"case_config"`
	CaseDefinition     *string         `json:"case_definition,omitempty"     db:"case_definition"`
	OutputTable        json.RawMessage `json:"output_table,omitempty"        db:"output_table"`
	OutputTableA       json.RawMessage `json:"output_table_a,omitempty"      db:"output_table_a"`
	OutputTableB       json.RawMessage `json:"output_table_b,omitempty"      db:"output_table_b"`
	OutputLimit        *int64          `json:"output_limit,omitempty"        db:"output_limit"`
	IterationConfig    json.RawMessage `json:"iteration_config,omitempty"    db:"iteration_config"`
	ScheduleConfig     json.RawMessage `json:"schedule_config,omitempty"     db:"schedule_config"`
	PeriodBack         int             `json:"period_back"                   db:"period_back"`
	PeriodNumber       int             `json:"period_number"                 db:"period_number"`
	PeriodType         PeriodType      `json:"period_type"                   db:"period_type"`
	Parallelism        *int            `json:"parallelism,omitempty"         db:"parallelism"`
	DaysRetention      int             `json:"days_retention"                db:"days_retention"`
	Timeout            *int            `json:"timeout,omitempty"             db:"timeout"`
	InstanceLimit      *int            `json:"instance_limit,omitempty"      db:"instance_limit"`
	NeedA              Flag            `json:"need_a"                        db:"need_a"`
	NeedB              Flag            `json:"need_b"                        db:"need_b"`
	NeedHook           Flag            `json:"need_hook"                     db:"need_hook"`
	NeedPrerunHook     Flag            `json:"need_prerun_hook"              db:"need_prerun_hook"`
	NeedPostrunHook    Flag            `json:"need_postrun_hook"             db:"need_postrun_hook"`
	WithDeletion       Flag            `json:"with_deletion"                 db:"with_deletion"`
	WithDrop           Flag            `json:"with_drop"                     db:"with_drop"`
	Status             Flag            `json:"status"                        db:"status"`
	PrerequisiteSQL    *string         `json:"prerequisite_sql,omitempty"    db:"prerequisite_sql"`
	PreparationSQL     *string         `json:"preparation_sql,omitempty"     db:"preparation_sql"`
	CompletionSQL      *string         `json:"completion_sql,omitempty"      db:"completion_sql"`
	CreatedDate        *time.Time      `json:"created_date,omitempty"        db:"created_date"`
	UpdatedDate        *time.Time      `json:"updated_date,omitempty"        db:"updated_date"`
}

// Validate checks the fields a runnable configuration must carry.
func (c *ControlConfig) Validate() error {
	if strings.TrimSpace(c.ControlName) == "" {
		return errors.New("control name is required")
	}
	if !c.ControlType.Valid() {
		return fmt.Errorf("invalid control type: %q", c.ControlType)
	}
	if c.PeriodType != "" && !c.PeriodType.Valid() {
		return fmt.Errorf("invalid period type: %q", c.PeriodType)
	}
	if c.ControlType.TwoSided() {
		if c.SourceNameA == nil {
			return errors.New("source name a is required")
		}
		if c.SourceNameB == nil {
			return errors.New("source name b is required")
		}
	} else if c.SourceName == nil {
		return errors.New("source name is required")
	}
	return nil
}

// ControlVersion is an audited prior version of a configuration row.
type ControlVersion struct {
	ControlConfig
	AuditAction string    `json:"audit_action" db:"audit_action"`
	AuditDate   time.Time `json:"audit_date"   db:"audit_date"`
}

// SaveControlRequest carries a partial configuration for insert or update.
// Only non-nil fields are written; presence of ControlID selects update.
type SaveControlRequest struct {
	ControlID          *int64           `json:"control_id,omitempty"`
	ControlName        *string          `json:"control_name,omitempty"`
	ControlDescription *string          `json:"control_description,omitempty"`
	ControlGroup       *string          `json:"control_group,omitempty"`
	ControlType        *ControlType     `json:"control_type,omitempty"`
	ControlSubtype     *string          `json:"control_subtype,omitempty"`
	ControlEngine      *string          `json:"control_engine,omitempty"`
	SourceName         *string          `json:"source_name,omitempty"`
	SourceDateField    *string          `json:"source_date_field,omitempty"`
	SourceFilter       *string          `json:"source_filter,omitempty"`
	SourceNameA        *string          `json:"source_name_a,omitempty"`
	SourceDateFieldA   *string          `json:"source_date_field_a,omitempty"`
	SourceFilterA      *string          `json:"source_filter_a,omitempty"`
	SourceKeyFieldA    *string          `json:"source_key_field_a,omitempty"`
	SourceNameB        *string          `json:"source_name_b,omitempty"`
	SourceDateFieldB   *string          `json:"source_date_field_b,omitempty"`
	SourceFilterB      *string          `json:"source_filter_b,omitempty"`
	SourceKeyFieldB    *string          `json:"source_key_field_b,omitempty"`
	RuleConfig         *json.RawMessage `json:"rule_config,omitempty"`
	ErrorDefinition    *string          `json:"error_definition,omitempty"`
	CaseConfig         *json.RawMessage `json:"case_config,omitempty"`
	CaseDefinition     *string          `json:"case_definition,omitempty"`
	OutputTable        *json.RawMessage `json:"output_table,omitempty"`
	OutputTableA       *json.RawMessage `json:"output_table_a,omitempty"`
	OutputTableB       *json.RawMessage `json:"output_table_b,omitempty"`
	OutputLimit        *int64           `json:"output_limit,omitempty"`
	IterationConfig    *json.RawMessage `json:"iteration_config,omitempty"`
	ScheduleConfig     *json.RawMessage `json:"schedule_config,omitempty"`
	PeriodBack         *int             `json:"period_back,omitempty"`
	PeriodNumber       *int             `json:"period_number,omitempty"`
	PeriodType         *PeriodType      `json:"period_type,omitempty"`
	Parallelism        *int             `json:"parallelism,omitempty"`
	DaysRetention      *int             `json:"days_retention,omitempty"`
	Timeout            *int             `json:"timeout,omitempty"`
	InstanceLimit      *int             `json:"instance_limit,omitempty"`
	NeedA              *Flag            `json:"need_a,omitempty"`
	NeedB              *Flag            `json:"need_b,omitempty"`
	NeedHook           *Flag            `json:"need_hook,omitempty"`
	NeedPrerunHook     *Flag            `json:"need_prerun_hook,omitempty"`
	NeedPostrunHook    *Flag            `json:"need_postrun_hook,omitempty"`
	WithDeletion       *Flag            `json:"with_deletion,omitempty"`
	WithDrop           *Flag            `json:"with_drop,omitempty"`
	Status             *Flag            `json:"status,omitempty"`
	PrerequisiteSQL    *string          `json:"prerequisite_sql,omitempty"`
	PreparationSQL     *string          `json:"preparation_sql,omitempty"`
	CompletionSQL      *string          `json:"completion_sql,omitempty"`
}

// Validate checks that an insert carries a name and a kind.
func (r *SaveControlRequest) Validate() error {
	if r.ControlID == nil {
		if r.ControlName == nil || strings.TrimSpace(*r.ControlName) == "" {
			return errors.New("control name is required")
		}
		if r.ControlType == nil {
			return errors.New("control type is required")
		}
	}
	if r.ControlType != nil && !r.ControlType.Valid() {
		return fmt.Errorf("invalid control type: %q", *r.ControlType)
	}
	if r.PeriodType != nil && *r.PeriodType != "" && !r.PeriodType.Valid() {
		return fmt.Errorf("invalid period type: %q", *r.PeriodType)
	}
	return nil
}

// Datasource is a table or view visible to control configuration.
type Datasource struct {
	Name string `json:"datasource_name" db:"datasource_name"`
	Type string `json:"datasource_type" db:"datasource_type"`
}

// DatasourceColumn describes one column of a datasource.
type DatasourceColumn struct {
	Name     string `json:"column_name" db:"column_name"`
	DataType string `json:"data_type"   db:"data_type"`
	Position int    `json:"position"    db:"position"`
}
