package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/t3eHawk/rapo/internal/core"
	"github.com/t3eHawk/rapo/internal/domain/model"
	"github.com/t3eHawk/rapo/internal/errors"
)

// Cache keys of the read projections. Writers invalidate these when the
// underlying configuration changes; run projections simply expire.
const (
	cacheKeyDatasources     = "rapo:projection:datasources"
	cacheKeyRunningControls = "rapo:projection:running_controls"
)

var projectionCacheKeys = []string{cacheKeyDatasources, cacheKeyRunningControls}

// ReaderServiceOptions groups dependencies for ReaderService.
type ReaderServiceOptions struct {
	Controls core.ControlRepository
	Runs     core.RunRepository
	Catalog  core.CatalogRepository
	Cache    core.CacheRepository
	CacheTTL time.Duration
	Logger   *slog.Logger
}

// ReaderService serves the read-only projections of the web API:
// running controls, run summaries, logs and the datasource catalog.
// A cache, when configured, absorbs repeated reads; every miss falls
// through to the database.
type ReaderService struct {
	controls core.ControlRepository
	runs     core.RunRepository
	catalog  core.CatalogRepository
	cache    core.CacheRepository
	cacheTTL time.Duration
	logger   *slog.Logger
}

// NewReaderService constructs a new ReaderService.
func NewReaderService(opts ReaderServiceOptions) (*ReaderService, error) {
	if opts.Controls == nil {
		return nil, errors.Internal("reader service: control repository is required")
	}
	if opts.Runs == nil {
		return nil, errors.Internal("reader service: run repository is required")
	}
	if opts.Catalog == nil {
		return nil, errors.Internal("reader service: catalog repository is required")
	}
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = time.Minute
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default().With("component", "reader_service")
	}
	return &ReaderService{
		controls: opts.Controls,
		runs:     opts.Runs,
		catalog:  opts.Catalog,
		cache:    opts.Cache,
		cacheTTL: ttl,
		logger:   logger,
	}, nil
}

// MustNewReaderService constructs a ReaderService or panics.
func MustNewReaderService(opts ReaderServiceOptions) *ReaderService {
	svc, err := NewReaderService(opts)
	if err != nil {
		panic(err)
	}
	return svc
}

// RunningControls lists the runs currently in progress joined with
// their control names. Runs parked in earlier states (initiated,
// waiting, started) are not reported.
func (s *ReaderService) RunningControls(ctx context.Context) ([]*model.RunWithControl, error) {
	var cached []*model.RunWithControl
	if s.readCached(ctx, cacheKeyRunningControls, &cached) {
		return cached, nil
	}
	progress := model.RunStatusProgress
	runs, err := s.runs.ListWithOptions(ctx, model.RunsListOptions{
		Status: &progress,
		Limit:  500,
		Sort:   "added",
		Dir:    "asc",
	})
	if err != nil {
		return nil, err
	}
	s.writeCached(ctx, cacheKeyRunningControls, runs)
	return runs, nil
}

// ControlRuns returns run summaries for operators.
func (s *ReaderService) ControlRuns(ctx context.Context, opts model.RunsListOptions) ([]*model.RunSummary, error) {
	return s.runs.Summaries(ctx, normalizeRunListOptions(opts))
}

// GetControlRun returns one full run log row.
func (s *ReaderService) GetControlRun(ctx context.Context, processID int64) (*model.ControlRun, error) {
	return s.runs.GetByID(ctx, processID)
}

// RunLogs carries the three text fields of one run log row.
type RunLogs struct {
	ProcessID   int64   `json:"process_id"`
	TextLog     *string `json:"text_log,omitempty"`
	TextError   *string `json:"text_error,omitempty"`
	TextMessage *string `json:"text_message,omitempty"`
}

// ReadControlLogs returns the accumulated log, error and message text
// of one run.
func (s *ReaderService) ReadControlLogs(ctx context.Context, processID int64) (*RunLogs, error) {
	run, err := s.runs.GetByID(ctx, processID)
	if err != nil {
		return nil, err
	}
	return &RunLogs{
		ProcessID:   run.ProcessID,
		TextLog:     run.TextLog,
		TextError:   run.TextError,
		TextMessage: run.TextMessage,
	}, nil
}

// ControlLogs returns the log text of the recent runs of one control,
// newest first, bounded to the given number of days back.
func (s *ReaderService) ControlLogs(ctx context.Context, controlName string, days int) ([]*RunLogs, error) {
	if controlName == "" {
		return nil, errors.Validation("control name is required")
	}
	if days <= 0 {
		days = 1
	}
	since := time.Now().AddDate(0, 0, -days)
	runs, err := s.runs.ListWithOptions(ctx, model.RunsListOptions{
		ControlName: &controlName,
		AddedSince:  &since,
		Limit:       200,
		Sort:        "added",
		Dir:         "desc",
	})
	if err != nil {
		return nil, err
	}
	logs := make([]*RunLogs, 0, len(runs))
	for _, run := range runs {
		logs = append(logs, &RunLogs{
			ProcessID:   run.ProcessID,
			TextLog:     run.TextLog,
			TextError:   run.TextError,
			TextMessage: run.TextMessage,
		})
	}
	return logs, nil
}

// AllControls lists control configurations.
func (s *ReaderService) AllControls(ctx context.Context, opts model.ControlsListOptions) ([]*model.ControlConfig, error) {
	return s.controls.ListWithOptions(ctx, normalizeControlListOptions(opts))
}

// ControlVersions lists archived revisions of one control.
func (s *ReaderService) ControlVersions(ctx context.Context, controlID int64, limit, offset int) ([]*model.ControlVersion, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.controls.Versions(ctx, controlID, limit, offset)
}

// Datasources lists the tables and views visible to control
// configuration.
func (s *ReaderService) Datasources(ctx context.Context) ([]*model.Datasource, error) {
	var cached []*model.Datasource
	if s.readCached(ctx, cacheKeyDatasources, &cached) {
		return cached, nil
	}
	sources, err := s.catalog.List(ctx)
	if err != nil {
		return nil, err
	}
	s.writeCached(ctx, cacheKeyDatasources, sources)
	return sources, nil
}

// DatasourceColumns describes the columns of one datasource.
func (s *ReaderService) DatasourceColumns(ctx context.Context, name string) ([]*model.DatasourceColumn, error) {
	if name == "" {
		return nil, errors.Validation("datasource name is required")
	}
	columns, err := s.catalog.Columns(ctx, name)
	if err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		return nil, errors.NotFoundf("datasource %q not found", name)
	}
	return columns, nil
}

// readCached loads a cached projection. Cache failures degrade to a
// database read, never to an error.
func (s *ReaderService) readCached(ctx context.Context, key string, dest any) bool {
	if s.cache == nil {
		return false
	}
	raw, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.WarnContext(ctx, "cache read failed", "key", key, "error", err)
		return false
	}
	if len(raw) == 0 {
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		s.logger.WarnContext(ctx, "cache entry corrupt", "key", key, "error", err)
		return false
	}
	return true
}

func (s *ReaderService) writeCached(ctx context.Context, key string, value any) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, raw, s.cacheTTL); err != nil {
		s.logger.WarnContext(ctx, "cache write failed", "key", key, "error", err)
	}
}

func normalizeRunListOptions(opts model.RunsListOptions) model.RunsListOptions {
	if opts.Limit <= 0 {
		opts.Limit = 50
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}
	return opts
}
