// Package service hosts the application services sitting between the
// HTTP API / scheduler adapters and the data layer.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/t3eHawk/rapo/internal/core"
	"github.com/t3eHawk/rapo/internal/domain/control"
	"github.com/t3eHawk/rapo/internal/domain/model"
	"github.com/t3eHawk/rapo/internal/errors"
)

// ControlServiceOptions groups dependencies for ControlService.
type ControlServiceOptions struct {
	Controls core.ControlRepository
	Catalog  core.CatalogRepository
	Executor core.ControlExecutor
	Cache    core.CacheRepository
	Logger   *slog.Logger
}

// ControlService orchestrates control configuration CRUD. Saves archive
// the previous revision, validate sources against the catalog, and
// invalidate cached projections.
type ControlService struct {
	controls core.ControlRepository
	catalog  core.CatalogRepository
	executor core.ControlExecutor
	cache    core.CacheRepository
	logger   *slog.Logger
}

// NewControlService constructs a new ControlService.
func NewControlService(opts ControlServiceOptions) (*ControlService, error) {
	if opts.Controls == nil {
		return nil, fmt.Errorf("control service: control repository is required")
	}
	if opts.Executor == nil {
		return nil, fmt.Errorf("control service: executor is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default().With("component", "control_service")
	}
	return &ControlService{
		controls: opts.Controls,
		catalog:  opts.Catalog,
		executor: opts.Executor,
		cache:    opts.Cache,
		logger:   logger,
	}, nil
}

// MustNewControlService constructs a ControlService or panics. Use at
// startup where a missing dependency is a programming error.
func MustNewControlService(opts ControlServiceOptions) *ControlService {
	svc, err := NewControlService(opts)
	if err != nil {
		panic(err)
	}
	return svc
}

// Save creates or updates a control configuration. Source names, when
// provided, must exist in the database catalog.
func (s *ControlService) Save(ctx context.Context, req *model.SaveControlRequest) (*model.ControlConfig, error) {
	if req == nil {
		return nil, errors.Validation("request body is required")
	}
	if err := req.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeValidation, err.Error())
	}
	if err := s.validateSources(ctx, req); err != nil {
		return nil, err
	}

	cfg, err := s.controls.Save(ctx, req)
	if err != nil {
		return nil, err
	}
	s.invalidateProjections(ctx)
	s.logger.InfoContext(ctx, "control saved",
		"control_id", cfg.ControlID,
		"control_name", cfg.ControlName,
	)
	return cfg, nil
}

// Delete removes a control configuration. Result tables stay in place;
// use DeleteOutputTables to drop them.
func (s *ControlService) Delete(ctx context.Context, id int64) (bool, error) {
	ok, err := s.controls.Delete(ctx, id)
	if err != nil || !ok {
		return ok, err
	}
	s.invalidateProjections(ctx)
	s.logger.InfoContext(ctx, "control deleted", "control_id", id)
	return ok, nil
}

// GetByID retrieves a control configuration by ID.
func (s *ControlService) GetByID(ctx context.Context, id int64) (*model.ControlConfig, error) {
	return s.controls.GetByID(ctx, id)
}

// GetByName retrieves a control configuration by name.
func (s *ControlService) GetByName(ctx context.Context, name string) (*model.ControlConfig, error) {
	return s.controls.GetByName(ctx, name)
}

// List returns a page of control configurations.
func (s *ControlService) List(ctx context.Context, opts model.ControlsListOptions) ([]*model.ControlConfig, error) {
	return s.controls.ListWithOptions(ctx, normalizeControlListOptions(opts))
}

// Versions returns archived revisions of a control configuration.
func (s *ControlService) Versions(ctx context.Context, controlID int64, limit, offset int) ([]*model.ControlVersion, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.controls.Versions(ctx, controlID, limit, offset)
}

// DeleteOutputTables drops every result table of the control. The
// operation is irreversible and serves decommissioning.
func (s *ControlService) DeleteOutputTables(ctx context.Context, id int64) ([]string, error) {
	cfg, err := s.controls.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	tables := control.ResultTableNames(cfg.ControlType, cfg.ControlName)
	var dropped []string
	for _, table := range tables {
		if err := s.executor.DropTable(ctx, table); err != nil {
			return dropped, fmt.Errorf("drop output table %s: %w", table, err)
		}
		dropped = append(dropped, table)
	}
	s.logger.InfoContext(ctx, "control output tables dropped",
		"control_id", id,
		"control_name", cfg.ControlName,
		"tables", len(dropped),
	)
	return dropped, nil
}

// Clean applies the retention policy of one control, deleting output
// records older than days_retention.
func (s *ControlService) Clean(ctx context.Context, id int64) (int64, error) {
	cfg, err := s.controls.GetByID(ctx, id)
	if err != nil {
		return 0, err
	}
	return s.executor.Clean(ctx, *cfg)
}

func (s *ControlService) validateSources(ctx context.Context, req *model.SaveControlRequest) error {
	if s.catalog == nil {
		return nil
	}
	for _, source := range []*string{req.SourceName, req.SourceNameA, req.SourceNameB} {
		if source == nil || *source == "" {
			continue
		}
		exists, err := s.catalog.Exists(ctx, *source)
		if err != nil {
			return err
		}
		if !exists {
			return errors.Validationf("source %q does not exist in the database", *source)
		}
	}
	return nil
}

func (s *ControlService) invalidateProjections(ctx context.Context) {
	if s.cache == nil {
		return
	}
	for _, key := range projectionCacheKeys {
		if _, err := s.cache.Delete(ctx, key); err != nil {
			s.logger.WarnContext(ctx, "cache invalidation failed", "key", key, "error", err)
		}
	}
}

func normalizeControlListOptions(opts model.ControlsListOptions) model.ControlsListOptions {
	if opts.Limit <= 0 {
		opts.Limit = 50
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}
	return opts
}
