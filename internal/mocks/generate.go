// Package mocks provides mock implementations for testing the rapo control engine.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for our repository interfaces.
// The mocks are generated using go:generate directives and provide a fluent API for setting up test expectations.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	defer ctrl.Finish()
//	mockRepo := mocks.NewMockControlRepository(ctrl)
//	mockRepo.EXPECT().GetByName(gomock.Any(), gomock.Any()).Return(cfg, nil)
package mocks

// Generate mock for ControlRepository interface from internal/core package.
// This creates MockControlRepository with methods for all ControlRepository interface methods:
// Save, GetByID, GetByName, ListWithOptions, ListActive, Versions, Delete
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=control_repository_mock.go github.com/t3eHawk/rapo/internal/core ControlRepository

// Generate mock for RunRepository interface from internal/core package.
// This creates MockRunRepository with methods for all RunRepository interface methods:
// Initiate, GetByID, UpdateStatus, ClearStatus, MarkStarted, WriteCounters,
// SetPrerequisiteValue, AppendLog, AppendError, SetMessage, CountActive,
// ListHung, ListWithOptions, Summaries
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=run_repository_mock.go github.com/t3eHawk/rapo/internal/core RunRepository

// Generate mock for ProcessRecordRepository interface from internal/core package.
// This creates MockProcessRecordRepository with methods for all ProcessRecordRepository interface methods:
// Get, Occupy, Release
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=process_record_repository_mock.go github.com/t3eHawk/rapo/internal/core ProcessRecordRepository

// Generate mock for CheckpointRepository interface from internal/core package.
// This creates MockCheckpointRepository with methods for all CheckpointRepository interface methods:
// Acquire, Get, List, Release, Sweep
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=checkpoint_repository_mock.go github.com/t3eHawk/rapo/internal/core CheckpointRepository

// Generate mock for CatalogRepository interface from internal/core package.
// This creates MockCatalogRepository with methods for all CatalogRepository interface methods:
// List, Columns, ColumnNames, Exists, IsTable, IsView, IsMaterializedView
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=catalog_repository_mock.go github.com/t3eHawk/rapo/internal/core CatalogRepository

// Generate mock for ControlExecutor interface from internal/core package.
// This creates MockControlExecutor with methods for all ControlExecutor interface methods:
// Fetch, Execute, SaveFindings, DeleteOutputRecords, DropTemporaryTables,
// DropTable, Clean, RunPrerequisite, RunPreparation, RunCompletion,
// PrerunHook, PostrunHook
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=control_executor_mock.go github.com/t3eHawk/rapo/internal/core ControlExecutor

// Generate mock for ReaperRepository interface from internal/core package.
// This creates MockReaperRepository with methods for all ReaperRepository interface methods:
// ListTemporaryTables
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=reaper_repository_mock.go github.com/t3eHawk/rapo/internal/core ReaperRepository

// Generate mock for CacheRepository interface from internal/core package.
// This creates MockCacheRepository with methods for all CacheRepository interface methods:
// Set, Get, Delete, Exists, Health
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=cache_repository_mock.go github.com/t3eHawk/rapo/internal/core CacheRepository
