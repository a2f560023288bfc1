package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/t3eHawk/rapo/config"
	"github.com/t3eHawk/rapo/internal/data"
	"github.com/t3eHawk/rapo/internal/domain/model"
	"github.com/t3eHawk/rapo/internal/mocks"
	"go.uber.org/mock/gomock"
)

type reaperTestMocks struct {
	checkpoints *mocks.MockCheckpointRepository
	runs        *mocks.MockRunRepository
	executor    *mocks.MockControlExecutor
	tables      *mocks.MockReaperRepository
}

func newTestReaper(t *testing.T) (*ReaperService, reaperTestMocks) {
	t.Helper()
	ctrl := gomock.NewController(t)
	m := reaperTestMocks{
		checkpoints: mocks.NewMockCheckpointRepository(ctrl),
		runs:        mocks.NewMockRunRepository(ctrl),
		executor:    mocks.NewMockControlExecutor(ctrl),
		tables:      mocks.NewMockReaperRepository(ctrl),
	}
	svc, err := NewReaperService(ReaperServiceOptions{
		Checkpoints: m.checkpoints,
		Runs:        m.runs,
		Executor:    m.executor,
		Tables:      m.tables,
		Config: config.ReaperConfig{
			Interval:         5 * time.Minute,
			CheckpointMaxAge: 24 * time.Hour,
			HungRunMaxAge:    24 * time.Hour,
			TempTableMaxAge:  24 * time.Hour,
		},
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	return svc, m
}

func TestNewReaperService_RequiresDependencies(t *testing.T) {
	_, err := NewReaperService(ReaperServiceOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "checkpoint repository")
}

func TestReaperService_ReleaseStaleCheckpoints_UsesConfiguredMaxAge(t *testing.T) {
	svc, m := newTestReaper(t)
	ctx := context.Background()

	m.checkpoints.EXPECT().Sweep(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, before time.Time) (int64, error) {
			assert.WithinDuration(t, time.Now().Add(-24*time.Hour), before, time.Minute)
			return 3, nil
		},
	)

	count, err := svc.releaseStaleCheckpoints(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestReaperService_FailHungRuns_MarksRunsFailed(t *testing.T) {
	svc, m := newTestReaper(t)
	ctx := context.Background()

	progress := model.RunStatusProgress
	hung := []*model.ControlRun{
		{ProcessID: 11, Status: &progress},
		{ProcessID: 12, Status: nil},
	}
	m.runs.EXPECT().ListHung(ctx, gomock.Any()).Return(hung, nil)
	m.runs.EXPECT().AppendError(ctx, int64(11), "run abandoned in status P, failed by reaper").Return(nil)
	m.runs.EXPECT().UpdateStatus(ctx, int64(11), model.RunStatusError).Return(nil)
	m.runs.EXPECT().AppendError(ctx, int64(12), "run abandoned in status , failed by reaper").Return(nil)
	m.runs.EXPECT().UpdateStatus(ctx, int64(12), model.RunStatusError).Return(nil)

	count, err := svc.failHungRuns(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestReaperService_FailHungRuns_ContinuesPastUpdateFailure(t *testing.T) {
	svc, m := newTestReaper(t)
	ctx := context.Background()

	progress := model.RunStatusProgress
	hung := []*model.ControlRun{
		{ProcessID: 11, Status: &progress},
		{ProcessID: 12, Status: &progress},
	}
	m.runs.EXPECT().ListHung(ctx, gomock.Any()).Return(hung, nil)
	m.runs.EXPECT().AppendError(ctx, int64(11), gomock.Any()).Return(nil)
	m.runs.EXPECT().UpdateStatus(ctx, int64(11), model.RunStatusError).
		Return(errors.New("connection reset"))
	m.runs.EXPECT().AppendError(ctx, int64(12), gomock.Any()).Return(nil)
	m.runs.EXPECT().UpdateStatus(ctx, int64(12), model.RunStatusError).Return(nil)

	count, err := svc.failHungRuns(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestReaperService_DropOrphanTempTables(t *testing.T) {
	svc, m := newTestReaper(t)
	ctx := context.Background()

	done := model.RunStatusDone
	progress := model.RunStatusProgress
	m.tables.EXPECT().ListTemporaryTables(ctx).Return([]string{
		"rapo_temp_fd_100",   // run finished, table left behind in debug mode
		"rapo_temp_fd_a_200", // run row vanished entirely
		"rapo_temp_fd_300",   // run still live and fresh
		"customer_billing",   // not ours
	}, nil)
	m.runs.EXPECT().GetByID(ctx, int64(100)).
		Return(&model.ControlRun{ProcessID: 100, Status: &done, Added: time.Now()}, nil)
	m.runs.EXPECT().GetByID(ctx, int64(200)).Return(nil, data.ErrRunNotFound)
	m.runs.EXPECT().GetByID(ctx, int64(300)).
		Return(&model.ControlRun{ProcessID: 300, Status: &progress, Added: time.Now()}, nil)
	m.executor.EXPECT().DropTable(ctx, "rapo_temp_fd_100").Return(nil)
	m.executor.EXPECT().DropTable(ctx, "rapo_temp_fd_a_200").Return(nil)

	count, err := svc.dropOrphanTempTables(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestReaperService_DropOrphanTempTables_AgedLiveRun(t *testing.T) {
	svc, m := newTestReaper(t)
	ctx := context.Background()

	progress := model.RunStatusProgress
	m.tables.EXPECT().ListTemporaryTables(ctx).Return([]string{"rapo_temp_err_400"}, nil)
	m.runs.EXPECT().GetByID(ctx, int64(400)).Return(&model.ControlRun{
		ProcessID: 400,
		Status:    &progress,
		Added:     time.Now().Add(-48 * time.Hour),
	}, nil)
	m.executor.EXPECT().DropTable(ctx, "rapo_temp_err_400").Return(nil)

	count, err := svc.dropOrphanTempTables(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestReaperService_DropOrphanTempTables_KeepsTableOnLookupFailure(t *testing.T) {
	svc, m := newTestReaper(t)
	ctx := context.Background()

	m.tables.EXPECT().ListTemporaryTables(ctx).Return([]string{"rapo_temp_md_500"}, nil)
	m.runs.EXPECT().GetByID(ctx, int64(500)).Return(nil, errors.New("connection refused"))

	count, err := svc.dropOrphanTempTables(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestReaperService_RunCleanup_ContinuesPastStepFailure(t *testing.T) {
	svc, m := newTestReaper(t)
	ctx := context.Background()

	m.checkpoints.EXPECT().Sweep(ctx, gomock.Any()).
		Return(int64(0), errors.New("relation missing"))
	m.runs.EXPECT().ListHung(ctx, gomock.Any()).Return(nil, nil)
	m.tables.EXPECT().ListTemporaryTables(ctx).Return(nil, nil)

	err := svc.runCleanup(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "release stale checkpoints")
}

func TestReaperService_Run_StopsOnContextCancel(t *testing.T) {
	svc, m := newTestReaper(t)
	svc.config.Interval = 10 * time.Millisecond

	m.checkpoints.EXPECT().Sweep(gomock.Any(), gomock.Any()).Return(int64(0), nil).AnyTimes()
	m.runs.EXPECT().ListHung(gomock.Any(), gomock.Any()).Return(nil, nil).AnyTimes()
	m.tables.EXPECT().ListTemporaryTables(gomock.Any()).Return(nil, nil).AnyTimes()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- svc.Run(ctx)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after context cancellation")
	}
}
