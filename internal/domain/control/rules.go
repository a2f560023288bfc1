package control

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ColumnPair links a column of side A to its peer column on side B.
type ColumnPair struct {
	ColumnA string `json:"column_a"`
	ColumnB string `json:"column_b"`
}

func parseColumnPairs(text string) ([]ColumnPair, error) {
	var pairs []ColumnPair
	if err := json.Unmarshal([]byte(text), &pairs); err != nil {
		return nil, err
	}
	for i := range pairs {
		var err error
		if pairs[i].ColumnA, err = RequireIdentifier(pairs[i].ColumnA); err != nil {
			return nil, fmt.Errorf("pair %d: %w", i+1, err)
		}
		if pairs[i].ColumnB, err = RequireIdentifier(pairs[i].ColumnB); err != nil {
			return nil, fmt.Errorf("pair %d: %w", i+1, err)
		}
	}
	return pairs, nil
}

// MatchPairs decodes the rule configuration of a comparison control,
// the list of column pairs the two sides are joined on.
func MatchPairs(raw json.RawMessage) ([]ColumnPair, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	pairs, err := parseColumnPairs(string(raw))
	if err != nil {
		return nil, fmt.Errorf("parse comparison rule: %w", err)
	}
	return pairs, nil
}

// CorrelationField is one join key of a reconciliation. With AllowNull
// set, two null values on the pair still correlate.
type CorrelationField struct {
	FieldA    string `json:"field_a"`
	FieldB    string `json:"field_b"`
	AllowNull bool   `json:"allow_null"`
}

// DiscrepancyRule compares one numeric pair between correlated rows.
// The tolerances bound the accepted difference, either absolute or, in
// percentage mode, relative to the side A value.
type DiscrepancyRule struct {
	FieldA         string  `json:"field_a"`
	FieldB         string  `json:"field_b"`
	ToleranceFrom  float64 `json:"numeric_tolerance_from"`
	ToleranceTo    float64 `json:"numeric_tolerance_to"`
	PercentageMode bool    `json:"percentage_mode"`
}

// CorrelationLimit caps how many correlated pairs the combination step
// may produce. The JSON form is either a boolean, where true derives the
// cap from the fetched row counts, or a positive row count.
type CorrelationLimit struct {
	Enabled bool
	Rows    int64
}

func (l *CorrelationLimit) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("true")):
		*l = CorrelationLimit{Enabled: true}
		return nil
	case bytes.Equal(data, []byte("false")), bytes.Equal(data, []byte("null")):
		*l = CorrelationLimit{}
		return nil
	}
	var rows int64
	if err := json.Unmarshal(data, &rows); err != nil {
		return fmt.Errorf("correlation limit must be a boolean or a row count: %w", err)
	}
	if rows > 0 {
		*l = CorrelationLimit{Enabled: true, Rows: rows}
	} else {
		*l = CorrelationLimit{}
	}
	return nil
}

// Limit resolves the cap against the fetched row counts of both sides.
// Zero means no cap. The derived form allows two and a half times the
// larger side, enough for legitimate near-duplicates while cutting off
// runaway cross joins on weak keys.
func (l CorrelationLimit) Limit(fetchedA, fetchedB int64) int64 {
	if !l.Enabled {
		return 0
	}
	if l.Rows > 0 {
		return l.Rows
	}
	fetched := fetchedA
	if fetchedB > fetched {
		fetched = fetchedB
	}
	return int64(float64(fetched) * 2.5)
}

// ReconciliationRules is the typed rule configuration of a REC control.
// The need_issues flags decide whether found issues are copied into the
// output tables, the need_recons flags whether reconciled rows are staged
// and copied as well.
type ReconciliationRules struct {
	NeedReconsA       bool               `json:"need_recons_a"`
	NeedReconsB       bool               `json:"need_recons_b"`
	NeedIssuesA       bool               `json:"need_issues_a"`
	NeedIssuesB       bool               `json:"need_issues_b"`
	AllowDuplicates   bool               `json:"allow_duplicates"`
	TimeShiftFrom     int                `json:"time_shift_from"`
	TimeShiftTo       int                `json:"time_shift_to"`
	TimeToleranceFrom int                `json:"time_tolerance_from"`
	TimeToleranceTo   int                `json:"time_tolerance_to"`
	CorrelationLimit  CorrelationLimit   `json:"correlation_limit"`
	Correlation       []CorrelationField `json:"correlation_config"`
	Discrepancy       []DiscrepancyRule  `json:"discrepancy_config"`
}

// ParseReconciliationRules decodes and validates the rule_config of a
// reconciliation control. Field names are lowercased and checked against
// the identifier grammar.
func ParseReconciliationRules(raw json.RawMessage) (*ReconciliationRules, error) {
	rules := &ReconciliationRules{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, rules); err != nil {
			return nil, fmt.Errorf("parse reconciliation rule: %w", err)
		}
	}
	if len(rules.Correlation) == 0 {
		return nil, fmt.Errorf("reconciliation rule has no correlation fields")
	}
	for i := range rules.Correlation {
		var err error
		field := &rules.Correlation[i]
		if field.FieldA, err = RequireIdentifier(field.FieldA); err != nil {
			return nil, fmt.Errorf("correlation field %d: %w", i+1, err)
		}
		if field.FieldB, err = RequireIdentifier(field.FieldB); err != nil {
			return nil, fmt.Errorf("correlation field %d: %w", i+1, err)
		}
	}
	for i := range rules.Discrepancy {
		var err error
		rule := &rules.Discrepancy[i]
		if rule.FieldA, err = RequireIdentifier(rule.FieldA); err != nil {
			return nil, fmt.Errorf("discrepancy field %d: %w", i+1, err)
		}
		if rule.FieldB, err = RequireIdentifier(rule.FieldB); err != nil {
			return nil, fmt.Errorf("discrepancy field %d: %w", i+1, err)
		}
	}
	return rules, nil
}
