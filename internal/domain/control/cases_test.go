package control_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/t3eHawk/rapo/internal/domain/control"
	"github.com/t3eHawk/rapo/internal/domain/model"
)

func strPtr(s string) *string { return &s }

func TestParseCases(t *testing.T) {
	raw := json.RawMessage(`[
		{"case_id": 1, "case_value": "OK", "case_type": "Success"},
		{"case_id": 2, "case_value": "Too large", "case_type": "Error", "case_description": "amount over limit"}
	]`)
	cases, err := control.ParseCases(raw)
	require.NoError(t, err)
	require.Len(t, cases, 2)
	assert.Equal(t, "OK", cases[1].Value)
	assert.Equal(t, model.CaseTypeError, cases[2].Type)
	assert.Equal(t, "amount over limit", cases[2].Description)
}

func TestParseCasesRejectsUnknownType(t *testing.T) {
	raw := json.RawMessage(`[{"case_id": 1, "case_value": "x", "case_type": "Bogus"}]`)
	_, err := control.ParseCases(raw)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Bogus")
}

func TestCaseColumnsSubstitution(t *testing.T) {
	cases := map[int64]model.Case{
		1: {ID: 1, Value: "OK", Type: model.CaseTypeSuccess},
		2: {ID: 2, Value: "It's bad", Type: model.CaseTypeError},
	}
	definition := strPtr("case when amount > 100 then 2 else 1 end")

	columns, err := control.CaseColumns(definition, cases)
	require.NoError(t, err)
	require.Len(t, columns, 3)
	assert.Equal(t,
		"case when amount > 100 then 2 else 1 end as rapo_result_key",
		columns[0])
	assert.Equal(t,
		"case when amount > 100 then 'It''s bad' else 'OK' end as rapo_result_value",
		columns[1])
	assert.Equal(t,
		"case when amount > 100 then 'Error' else 'Success' end as rapo_result_type",
		columns[2])
}

func TestCaseColumnsWithoutDefinition(t *testing.T) {
	columns, err := control.CaseColumns(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"cast(null as integer) as rapo_result_key",
		"cast(null as varchar(100)) as rapo_result_value",
		"cast(null as varchar(15)) as rapo_result_type",
	}, columns)
}

func TestCaseColumnsRejectsUnknownReference(t *testing.T) {
	cases := map[int64]model.Case{1: {ID: 1, Value: "OK", Type: model.CaseTypeSuccess}}
	definition := strPtr("case when 1=1 then 7 else 1 end")
	_, err := control.CaseColumns(definition, cases)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "case 7")
}
