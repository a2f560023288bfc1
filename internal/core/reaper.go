package core

import "context"

// ReaperRepository defines the catalog lookups of the reaper sweep.
type ReaperRepository interface {
	// ListTemporaryTables returns every rapo temp table in the current
	// schema, live and orphaned alike.
	ListTemporaryTables(ctx context.Context) ([]string, error)
}
