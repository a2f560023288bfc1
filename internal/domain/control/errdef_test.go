package control_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/t3eHawk/rapo/internal/domain/control"
)

func TestParseErrorClausesDefaults(t *testing.T) {
	clauses, err := control.ParseErrorClauses(
		`[{"column": "Amount", "value": 1000, "relation": ">"},
		  {"column": "status", "value": "'FAILED'"}]`)
	require.NoError(t, err)
	require.Len(t, clauses, 2)

	assert.Equal(t, "AND", clauses[0].Connexion)
	assert.Equal(t, "amount", clauses[0].Column)
	assert.Equal(t, ">", clauses[0].Relation)
	assert.Equal(t, "1000", clauses[0].Value)

	assert.Equal(t, "<>", clauses[1].Relation)
	assert.Equal(t, "'FAILED'", clauses[1].Value)
}

func TestParseErrorClausesColumnValue(t *testing.T) {
	clauses, err := control.ParseErrorClauses(
		`[{"column": "debit", "relation": "<>", "value": "Credit", "is_column": true}]`)
	require.NoError(t, err)
	require.Len(t, clauses, 1)
	assert.Equal(t, "credit", clauses[0].Value)
	assert.True(t, clauses[0].IsColumn)
}

func TestParseErrorClausesRejectsBadIdentifier(t *testing.T) {
	_, err := control.ParseErrorClauses(
		`[{"column": "amount; drop table x", "value": 1}]`)
	require.Error(t, err)
}

func TestAnalysisErrorExpr(t *testing.T) {
	t.Run("json definition", func(t *testing.T) {
		definition := strPtr(
			`[{"column": "amount", "relation": ">", "value": 1000},
			  {"connexion": "or", "column": "status", "relation": "=", "value": "'FAILED'"}]`)
		expr, err := control.AnalysisErrorExpr(definition, false)
		require.NoError(t, err)
		assert.Equal(t, "amount > 1000\nOR status = 'FAILED'", expr)
	})

	t.Run("plain sql passes through", func(t *testing.T) {
		definition := strPtr("amount > 1000 and status is not null")
		expr, err := control.AnalysisErrorExpr(definition, false)
		require.NoError(t, err)
		assert.Equal(t, "amount > 1000 and status is not null", expr)
	})

	t.Run("cases fallback", func(t *testing.T) {
		expr, err := control.AnalysisErrorExpr(nil, true)
		require.NoError(t, err)
		assert.Equal(t,
			"rapo_result_type in ('Info', 'Error', 'Warning', 'Incident', 'Discrepancy') "+
				"or rapo_result_type is null",
			expr)
	})

	t.Run("empty without cases", func(t *testing.T) {
		expr, err := control.AnalysisErrorExpr(nil, false)
		require.NoError(t, err)
		assert.Empty(t, expr)
	})

	t.Run("clause without column rejected", func(t *testing.T) {
		definition := strPtr(`[{"relation": ">", "value": 5}]`)
		_, err := control.AnalysisErrorExpr(definition, false)
		require.Error(t, err)
	})
}

func TestComparisonErrorPairs(t *testing.T) {
	definition := strPtr(`[{"column_a": "Amount", "column_b": "AMT"}]`)
	pairs, err := control.ComparisonErrorPairs(definition)
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	assert.Equal(t, "amount", pairs[0].ColumnA)
	assert.Equal(t, "amt", pairs[0].ColumnB)

	pairs, err = control.ComparisonErrorPairs(nil)
	require.NoError(t, err)
	assert.Nil(t, pairs)
}
