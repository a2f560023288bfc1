// Package database holds the SQL helpers shared by the repositories:
// a small builder for filtered list queries over the engine tables and
// a formatter for logging generated statements.
package database

import (
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

// ConditionType selects the comparison operator of one condition.
type ConditionType string

const (
	Equal    ConditionType = "="
	NotEqual ConditionType = "!="
	Like     ConditionType = "LIKE"
	ILike    ConditionType = "ILIKE"
)

// Condition is one WHERE predicate. Field names are sanitized at build
// time; values always travel as placeholders.
type Condition struct {
	Field string
	Type  ConditionType
	Value any
}

// WhereCond builds a field comparison condition.
func WhereCond(field string, condType ConditionType, value any) Condition {
	return Condition{Field: field, Type: condType, Value: value}
}

// ListQueryOptions collects the parts of a list query. Build with
// NewListQueryOptions and the With* options, render with
// BuildListQuery.
type ListQueryOptions struct {
	Table      string
	Columns    []string
	Conditions []Condition
	OrderBy    string
	OrderDir   string
	Limit      int
	Offset     int
}

// ListQueryOption mutates ListQueryOptions.
type ListQueryOption func(*ListQueryOptions)

// NewListQueryOptions creates options for the given table and applies
// the given functional options.
func NewListQueryOptions(table string, opts ...ListQueryOption) *ListQueryOptions {
	options := &ListQueryOptions{Table: table}
	for _, opt := range opts {
		opt(options)
	}
	return options
}

// WithColumns selects specific columns instead of *.
func WithColumns(cols ...string) ListQueryOption {
	return func(o *ListQueryOptions) {
		o.Columns = append(o.Columns, cols...)
	}
}

// WithCondition appends one WHERE condition. Conditions combine with AND.
func WithCondition(cond Condition) ListQueryOption {
	return func(o *ListQueryOptions) {
		o.Conditions = append(o.Conditions, cond)
	}
}

// WithConditions appends several WHERE conditions at once.
func WithConditions(conds ...Condition) ListQueryOption {
	return func(o *ListQueryOptions) {
		o.Conditions = append(o.Conditions, conds...)
	}
}

// WithOrderBy sets the sort column and direction. Callers validate both
// against an allowlist first; the column is still sanitized here.
func WithOrderBy(column, direction string) ListQueryOption {
	return func(o *ListQueryOptions) {
		o.OrderBy = column
		o.OrderDir = direction
	}
}

// WithLimit caps the result set. Zero or negative means no LIMIT clause.
func WithLimit(limit int) ListQueryOption {
	return func(o *ListQueryOptions) {
		o.Limit = limit
	}
}

// WithOffset skips leading rows. Zero or negative means no OFFSET clause.
func WithOffset(offset int) ListQueryOption {
	return func(o *ListQueryOptions) {
		o.Offset = offset
	}
}

// sanitizeIdentifier quotes one identifier against injection.
func sanitizeIdentifier(ident string) string {
	return pgx.Identifier{ident}.Sanitize()
}

// BuildListQuery renders the options into a SELECT statement and its
// positional arguments.
func BuildListQuery(options *ListQueryOptions) (string, []any) {
	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(buildSelectClause(options))
	sb.WriteString(" FROM ")
	sb.WriteString(sanitizeIdentifier(options.Table))

	where, args := buildWhereClause(options.Conditions)
	sb.WriteString(where)

	if options.OrderBy != "" {
		dir := "ASC"
		if strings.EqualFold(options.OrderDir, "desc") {
			dir = "DESC"
		}
		sb.WriteString(" ORDER BY ")
		sb.WriteString(sanitizeIdentifier(options.OrderBy))
		sb.WriteString(" ")
		sb.WriteString(dir)
	}
	if options.Limit > 0 {
		args = append(args, options.Limit)
		fmt.Fprintf(&sb, " LIMIT $%d", len(args))
	}
	if options.Offset > 0 {
		args = append(args, options.Offset)
		fmt.Fprintf(&sb, " OFFSET $%d", len(args))
	}
	return sb.String(), args
}

func buildSelectClause(options *ListQueryOptions) string {
	if len(options.Columns) == 0 {
		return "*"
	}
	cols := make([]string, len(options.Columns))
	for i, col := range options.Columns {
		cols[i] = sanitizeIdentifier(col)
	}
	return strings.Join(cols, ", ")
}

func buildWhereClause(conditions []Condition) (string, []any) {
	if len(conditions) == 0 {
		return "", nil
	}
	parts := make([]string, 0, len(conditions))
	args := make([]any, 0, len(conditions))
	for _, cond := range conditions {
		args = append(args, cond.Value)
		parts = append(parts, fmt.Sprintf("%s %s $%d",
			sanitizeIdentifier(cond.Field), cond.Type, len(args)))
	}
	return " WHERE " + strings.Join(parts, " AND "), args
}
