package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildListQuery_BareTable(t *testing.T) {
	query, args := BuildListQuery(NewListQueryOptions("rapo_config"))

	assert.Equal(t, `SELECT * FROM "rapo_config"`, query)
	assert.Empty(t, args)
}

func TestBuildListQuery_ColumnsAndFilters(t *testing.T) {
	query, args := BuildListQuery(NewListQueryOptions("rapo_config",
		WithColumns("control_id", "control_name", "control_type"),
		WithCondition(WhereCond("control_type", Equal, "ANL")),
		WithCondition(WhereCond("control_name", ILike, "%usage%")),
		WithOrderBy("control_name", "asc"),
		WithLimit(50),
		WithOffset(100),
	))

	assert.Equal(t,
		`SELECT "control_id", "control_name", "control_type" FROM "rapo_config"`+
			` WHERE "control_type" = $1 AND "control_name" ILIKE $2`+
			` ORDER BY "control_name" ASC LIMIT $3 OFFSET $4`,
		query)
	assert.Equal(t, []any{"ANL", "%usage%", 50, 100}, args)
}

func TestBuildListQuery_ConditionsJoinWithAnd(t *testing.T) {
	query, args := BuildListQuery(NewListQueryOptions("rapo_config",
		WithConditions(
			WhereCond("status", Equal, "Y"),
			WhereCond("control_group", NotEqual, "ARCHIVE"),
		),
	))

	assert.Equal(t,
		`SELECT * FROM "rapo_config" WHERE "status" = $1 AND "control_group" != $2`,
		query)
	assert.Equal(t, []any{"Y", "ARCHIVE"}, args)
}

func TestBuildListQuery_OrderDirectionDefaultsToAsc(t *testing.T) {
	query, _ := BuildListQuery(NewListQueryOptions("rapo_config",
		WithOrderBy("created_date", "sideways"),
	))
	assert.Contains(t, query, `ORDER BY "created_date" ASC`)

	query, _ = BuildListQuery(NewListQueryOptions("rapo_config",
		WithOrderBy("created_date", "DESC"),
	))
	assert.Contains(t, query, `ORDER BY "created_date" DESC`)
}

func TestBuildListQuery_NonPositiveLimitOmitted(t *testing.T) {
	query, args := BuildListQuery(NewListQueryOptions("rapo_config",
		WithLimit(0),
		WithOffset(-1),
	))

	assert.Equal(t, `SELECT * FROM "rapo_config"`, query)
	assert.Empty(t, args)
}

func TestBuildListQuery_SanitizesIdentifiers(t *testing.T) {
	query, args := BuildListQuery(NewListQueryOptions(`rapo"; drop table rapo_config; --`,
		WithColumns(`control_name"; --`),
		WithCondition(WhereCond(`status" OR 1=1 --`, Equal, "Y")),
	))

	// Every identifier ends up quoted, embedded quotes doubled.
	assert.Equal(t,
		`SELECT "control_name""; --" FROM "rapo""; drop table rapo_config; --"`+
			` WHERE "status"" OR 1=1 --" = $1`,
		query)
	assert.Equal(t, []any{"Y"}, args)
}
