package data

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/t3eHawk/rapo/internal/data/pgxutil"
	"github.com/t3eHawk/rapo/internal/domain/model"
)

// CatalogRepo answers questions about the relations visible to controls:
// what can be a source, what columns it has, and what kind of relation a
// configured name resolves to. All lookups are scoped to the current schema.
type CatalogRepo struct {
	DB *sql.DB
}

// NewCatalogRepo creates a new CatalogRepo.
func NewCatalogRepo(db *sql.DB) *CatalogRepo {
	return &CatalogRepo{DB: db}
}

const (
	catalogListQuery = `
		SELECT c.relname AS datasource_name,
		       CASE c.relkind
		           WHEN 'r' THEN 'TABLE'
		           WHEN 'p' THEN 'TABLE'
		           WHEN 'v' THEN 'VIEW'
		           WHEN 'm' THEN 'MATERIALIZED VIEW'
		           WHEN 'f' THEN 'FOREIGN TABLE'
		       END AS datasource_type
		FROM pg_class c
		JOIN pg_namespace n ON n.oid = c.relnamespace
		WHERE n.nspname = current_schema()
		  AND c.relkind IN ('r', 'p', 'v', 'm', 'f')
		ORDER BY c.relname`

	// catalogColumnsQuery reads pg_attribute rather than
	// information_schema.columns because the latter omits materialized views.
	catalogColumnsQuery = `
		SELECT a.attname AS column_name,
		       format_type(a.atttypid, a.atttypmod) AS data_type,
		       a.attnum::int AS position
		FROM pg_attribute a
		JOIN pg_class c ON c.oid = a.attrelid
		JOIN pg_namespace n ON n.oid = c.relnamespace
		WHERE n.nspname = current_schema()
		  AND c.relname = $1
		  AND a.attnum > 0
		  AND NOT a.attisdropped
		ORDER BY a.attnum`

	catalogKindQuery = `
		SELECT EXISTS (
			SELECT 1
			FROM pg_class c
			JOIN pg_namespace n ON n.oid = c.relnamespace
			WHERE n.nspname = current_schema()
			  AND c.relname = $1
			  AND c.relkind::text = ANY($2::text[])
		)`
)

// List retrieves the relations controls may use as sources.
func (r *CatalogRepo) List(ctx context.Context) ([]*model.Datasource, error) {
	var rowsOut []model.Datasource
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, catalogListQuery)
		if err != nil {
			return err
		}
		defer rows.Close()
		rowsOut, err = pgx.CollectRows(rows, pgx.RowToStructByName[model.Datasource])
		return err
	}); err != nil {
		return nil, fmt.Errorf("failed to list datasources: %w", err)
	}
	res := make([]*model.Datasource, len(rowsOut))
	for i := range rowsOut {
		res[i] = &rowsOut[i]
	}
	return res, nil
}

// Columns retrieves the column layout of a relation in definition order.
// An unknown relation yields an empty slice, not an error.
func (r *CatalogRepo) Columns(ctx context.Context, name string) ([]*model.DatasourceColumn, error) {
	var rowsOut []model.DatasourceColumn
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, catalogColumnsQuery, name)
		if err != nil {
			return err
		}
		defer rows.Close()
		rowsOut, err = pgx.CollectRows(rows, pgx.RowToStructByName[model.DatasourceColumn])
		return err
	}); err != nil {
		return nil, fmt.Errorf("failed to get columns of %s: %w", name, err)
	}
	res := make([]*model.DatasourceColumn, len(rowsOut))
	for i := range rowsOut {
		res[i] = &rowsOut[i]
	}
	return res, nil
}

// ColumnNames retrieves just the column names of a relation in definition order.
func (r *CatalogRepo) ColumnNames(ctx context.Context, name string) ([]string, error) {
	cols, err := r.Columns(ctx, name)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names, nil
}

// Exists reports whether a relation of any usable kind is visible.
func (r *CatalogRepo) Exists(ctx context.Context, name string) (bool, error) {
	return r.hasKind(ctx, name, []string{"r", "p", "v", "m", "f"})
}

// IsTable reports whether the relation is a plain or partitioned table.
func (r *CatalogRepo) IsTable(ctx context.Context, name string) (bool, error) {
	return r.hasKind(ctx, name, []string{"r", "p"})
}

// IsView reports whether the relation is a view.
func (r *CatalogRepo) IsView(ctx context.Context, name string) (bool, error) {
	return r.hasKind(ctx, name, []string{"v"})
}

// IsMaterializedView reports whether the relation is a materialized view.
func (r *CatalogRepo) IsMaterializedView(ctx context.Context, name string) (bool, error) {
	return r.hasKind(ctx, name, []string{"m"})
}

func (r *CatalogRepo) hasKind(ctx context.Context, name string, kinds []string) (bool, error) {
	var exists bool
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		return conn.QueryRow(ctx, catalogKindQuery, name, kinds).Scan(&exists)
	})
	if err != nil {
		return false, fmt.Errorf("failed to check relation %s: %w", name, err)
	}
	return exists, nil
}
