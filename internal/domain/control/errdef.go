package control

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Result types that mark a row as a finding when cases are configured
// but no explicit error definition is given.
var errorResultTypes = []string{"Info", "Error", "Warning", "Incident", "Discrepancy"}

// ErrorClause is one predicate of a JSON error definition.
type ErrorClause struct {
	Connexion string
	Column    string
	ColumnA   string
	ColumnB   string
	Relation  string
	Value     string
	HasValue  bool
	IsColumn  bool
}

type errorClauseJSON struct {
	Connexion string          `json:"connexion"`
	Column    string          `json:"column"`
	ColumnA   string          `json:"column_a"`
	ColumnB   string          `json:"column_b"`
	Relation  string          `json:"relation"`
	Value     json.RawMessage `json:"value"`
	IsColumn  bool            `json:"is_column"`
}

// ParseErrorClauses decodes a JSON error definition into clauses.
// Connexion defaults to AND, relation to <>. Column names are lowercased
// and must be plain identifiers. A string value is used verbatim as SQL
// text unless is_column is set, in which case it names a column.
func ParseErrorClauses(text string) ([]ErrorClause, error) {
	var items []errorClauseJSON
	if err := json.Unmarshal([]byte(text), &items); err != nil {
		return nil, fmt.Errorf("parse error definition: %w", err)
	}
	clauses := make([]ErrorClause, 0, len(items))
	for _, item := range items {
		clause := ErrorClause{
			Connexion: strings.ToUpper(defaultString(item.Connexion, "and")),
			Relation:  strings.ToUpper(defaultString(item.Relation, "<>")),
			IsColumn:  item.IsColumn,
		}
		var err error
		if clause.Column, err = optionalIdentifier(item.Column); err != nil {
			return nil, err
		}
		if clause.ColumnA, err = optionalIdentifier(item.ColumnA); err != nil {
			return nil, err
		}
		if clause.ColumnB, err = optionalIdentifier(item.ColumnB); err != nil {
			return nil, err
		}
		if len(item.Value) > 0 && string(item.Value) != "null" {
			clause.HasValue = true
			if item.IsColumn {
				var name string
				if err := json.Unmarshal(item.Value, &name); err != nil {
					return nil, fmt.Errorf("error definition value: %w", err)
				}
				if clause.Value, err = RequireIdentifier(name); err != nil {
					return nil, err
				}
			} else {
				var s string
				if err := json.Unmarshal(item.Value, &s); err == nil {
					clause.Value = s
				} else {
					clause.Value = string(item.Value)
				}
			}
		}
		clauses = append(clauses, clause)
	}
	return clauses, nil
}

// AnalysisErrorExpr renders the boolean filter that selects findings for
// one-sided controls. A JSON definition is composed clause by clause, any
// other non-empty text passes through as SQL, and an absent definition
// with configured cases falls back to the result-type filter. The empty
// string means no filter at all.
func AnalysisErrorExpr(definition *string, hasCases bool) (string, error) {
	text := ""
	if definition != nil {
		text = strings.TrimSpace(*definition)
	}
	if text == "" {
		if hasCases {
			quoted := make([]string, len(errorResultTypes))
			for i, t := range errorResultTypes {
				quoted[i] = quoteLiteral(t)
			}
			return fmt.Sprintf("%s in (%s) or %s is null",
				ResultTypeColumn, strings.Join(quoted, ", "), ResultTypeColumn), nil
		}
		return "", nil
	}
	if !isJSONList(text) {
		return text, nil
	}
	clauses, err := ParseErrorClauses(text)
	if err != nil {
		return "", err
	}
	lines := make([]string, 0, len(clauses))
	for i, clause := range clauses {
		if clause.Column == "" {
			return "", fmt.Errorf("error definition clause %d has no column", i+1)
		}
		parts := []string{}
		if len(lines) > 0 {
			parts = append(parts, clause.Connexion)
		}
		parts = append(parts, clause.Column, clause.Relation)
		if clause.HasValue {
			parts = append(parts, clause.Value)
		}
		lines = append(lines, strings.Join(parts, " "))
	}
	return strings.Join(lines, "\n"), nil
}

// ComparisonErrorPairs decodes the error definition of a two-sided
// comparison, a list of column_a/column_b pairs compared between sides.
func ComparisonErrorPairs(definition *string) ([]ColumnPair, error) {
	if definition == nil || strings.TrimSpace(*definition) == "" {
		return nil, nil
	}
	pairs, err := parseColumnPairs(*definition)
	if err != nil {
		return nil, fmt.Errorf("parse comparison error definition: %w", err)
	}
	return pairs, nil
}

func isJSONList(text string) bool {
	return strings.HasPrefix(text, "[") && json.Valid([]byte(text))
}

func defaultString(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}

func optionalIdentifier(name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", nil
	}
	return RequireIdentifier(name)
}
