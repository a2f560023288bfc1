package database

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormat_UppercasesKeywords(t *testing.T) {
	got := Format("select process_id from rapo_log where status = 'P' order by added")
	assert.Equal(t, "SELECT process_id FROM rapo_log WHERE status = 'P' ORDER BY added", got)
}

func TestFormat_LeavesQuotedTextAlone(t *testing.T) {
	got := Format(`select 'select from' as note, "from" from rapo_config`)
	assert.Equal(t, `SELECT 'select from' AS note, "from" FROM rapo_config`, got)
}

func TestFormat_KeepsIdentifiersContainingKeywords(t *testing.T) {
	// from_date embeds a keyword but is one identifier.
	got := Format("select from_date, order_status from rapo_temp_101")
	assert.Equal(t, "SELECT from_date, order_status FROM rapo_temp_101", got)
}

func TestDocument_JoinsWithRuler(t *testing.T) {
	got := Document(
		"create table rapo_temp_101 as select * from usage_data",
		"",
		"create index rapo_temp_101_ix on rapo_temp_101 (key_field)",
	)
	parts := strings.Split(got, "\n"+documentRuler+"\n")
	assert.Len(t, parts, 2)
	assert.Equal(t, "CREATE TABLE rapo_temp_101 AS SELECT * FROM usage_data", parts[0])
	assert.Equal(t, "CREATE INDEX rapo_temp_101_ix ON rapo_temp_101 (key_field)", parts[1])
}

func TestDocument_SingleStatementHasNoRuler(t *testing.T) {
	got := Document("select 1")
	assert.Equal(t, "SELECT 1", got)
	assert.NotContains(t, got, documentRuler)
}
