package control

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/t3eHawk/rapo/internal/domain/model"
)

// Result column aliases synthesized from the case configuration.
const (
	ResultKeyColumn   = "rapo_result_key"
	ResultValueColumn = "rapo_result_value"
	ResultTypeColumn  = "rapo_result_type"
)

// ParseCases reads the case_config list into a map keyed by case id.
func ParseCases(raw json.RawMessage) (map[int64]model.Case, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var entries []model.Case
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parse case config: %w", err)
	}
	cases := make(map[int64]model.Case, len(entries))
	for _, entry := range entries {
		if entry.Type != "" && !entry.Type.Valid() {
			return nil, fmt.Errorf("unknown case type: %q", entry.Type)
		}
		cases[entry.ID] = entry
	}
	return cases, nil
}

// branchRe finds the numeric case references in a CASE-WHEN definition.
var branchRe = regexp.MustCompile(`(?i)\b(then|else)\s+(\d+)\b`)

// CaseColumns renders the three derived result columns. With a case
// definition, each THEN/ELSE numeric reference becomes the case id, the
// quoted case value, and the quoted case type respectively. Without one,
// the columns are typed nulls.
func CaseColumns(caseDefinition *string, cases map[int64]model.Case) ([]string, error) {
	if caseDefinition == nil || strings.TrimSpace(*caseDefinition) == "" {
		return []string{
			"cast(null as integer) as " + ResultKeyColumn,
			"cast(null as varchar(100)) as " + ResultValueColumn,
			"cast(null as varchar(15)) as " + ResultTypeColumn,
		}, nil
	}

	definition := strings.TrimSpace(*caseDefinition)
	var substituteErr error
	substitute := func(pick func(model.Case) string) string {
		return branchRe.ReplaceAllStringFunc(definition, func(match string) string {
			parts := branchRe.FindStringSubmatch(match)
			id, err := strconv.ParseInt(parts[2], 10, 64)
			if err != nil {
				substituteErr = fmt.Errorf("bad case reference %q: %w", parts[2], err)
				return match
			}
			entry, ok := cases[id]
			if !ok {
				substituteErr = fmt.Errorf("case %d is not configured", id)
				return match
			}
			return parts[1] + " " + pick(entry)
		})
	}

	key := substitute(func(c model.Case) string {
		return strconv.FormatInt(c.ID, 10)
	})
	value := substitute(func(c model.Case) string {
		return quoteLiteral(c.Value)
	})
	typ := substitute(func(c model.Case) string {
		return quoteLiteral(string(c.Type))
	})
	if substituteErr != nil {
		return nil, substituteErr
	}
	return []string{
		key + " as " + ResultKeyColumn,
		value + " as " + ResultValueColumn,
		typ + " as " + ResultTypeColumn,
	}, nil
}

// quoteLiteral renders a single-quoted SQL string literal.
func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
