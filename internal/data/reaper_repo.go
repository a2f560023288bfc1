package data

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/t3eHawk/rapo/internal/data/pgxutil"
	"github.com/t3eHawk/rapo/internal/domain/control"
)

// ReaperRepo answers the catalog questions of the reaper sweep. Unlike
// CatalogRepo it looks only at rapo's own working tables.
type ReaperRepo struct {
	DB *sql.DB
}

// NewReaperRepo creates a new ReaperRepo.
func NewReaperRepo(db *sql.DB) *ReaperRepo {
	return &ReaperRepo{DB: db}
}

const tempTablesQuery = `
	SELECT c.relname
	FROM pg_class c
	JOIN pg_namespace n ON n.oid = c.relnamespace
	WHERE n.nspname = current_schema()
	  AND c.relkind IN ('r', 'p')
	  AND c.relname LIKE $1
	ORDER BY c.relname`

// ListTemporaryTables returns every rapo temp table visible in the
// current schema, including tables of runs still underway. Callers
// decide which ones are orphans.
func (r *ReaperRepo) ListTemporaryTables(ctx context.Context) ([]string, error) {
	var names []string
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, tempTablesQuery, control.TempPrefix+"%")
		if err != nil {
			return err
		}
		defer rows.Close()
		names, err = pgx.CollectRows(rows, pgx.RowTo[string])
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list temporary tables: %w", err)
	}
	return names, nil
}
