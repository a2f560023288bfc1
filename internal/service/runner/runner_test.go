package runner

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/t3eHawk/rapo/internal/data"
	"github.com/t3eHawk/rapo/internal/domain/control"
	"github.com/t3eHawk/rapo/internal/domain/model"
	"github.com/t3eHawk/rapo/internal/mocks"
	"github.com/t3eHawk/rapo/internal/observability/notify"
	"go.uber.org/mock/gomock"
)

const testProcessID int64 = 101

type runnerMocks struct {
	controls    *mocks.MockControlRepository
	runs        *mocks.MockRunRepository
	checkpoints *mocks.MockCheckpointRepository
	executor    *mocks.MockControlExecutor
}

func newTestRunner(t *testing.T, opts Options) (*Runner, runnerMocks) {
	t.Helper()
	ctrl := gomock.NewController(t)
	m := runnerMocks{
		controls:    mocks.NewMockControlRepository(ctrl),
		runs:        mocks.NewMockRunRepository(ctrl),
		checkpoints: mocks.NewMockCheckpointRepository(ctrl),
		executor:    mocks.NewMockControlExecutor(ctrl),
	}
	opts.Controls = m.controls
	opts.Runs = m.runs
	opts.Checkpoints = m.checkpoints
	opts.Executor = m.executor
	opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	if opts.SupervisorInterval == 0 {
		// Keep the supervisor quiet unless a test drives it on purpose.
		opts.SupervisorInterval = time.Hour
	}
	if opts.ThrottleMinDelay == 0 {
		opts.ThrottleMinDelay = time.Millisecond
	}
	if opts.WaitInterval == 0 {
		opts.WaitInterval = time.Millisecond
	}
	r, err := NewRunner(opts)
	require.NoError(t, err)
	return r, m
}

func analysisConfig() *model.ControlConfig {
	source := "usage_data"
	return &model.ControlConfig{
		ControlID:   1,
		ControlName: "daily_usage_check",
		ControlType: model.ControlTypeAnalysis,
		SourceName:  &source,
		PeriodType:  model.PeriodTypeDay,
		PeriodBack:  1,
	}
}

func initiatedRun() *model.ControlRun {
	status := model.RunStatusInitiated
	return &model.ControlRun{
		ProcessID: testProcessID,
		ControlID: 1,
		Added:     time.Now(),
		Status:    &status,
	}
}

func finishedRun(status model.RunStatus) *model.ControlRun {
	run := initiatedRun()
	run.Status = &status
	return run
}

func TestNewRunner_RequiresDependencies(t *testing.T) {
	_, err := NewRunner(Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "control repository")
}

func TestRunner_Run_CompletesSuccessfully(t *testing.T) {
	r, m := newTestRunner(t, Options{})
	ctx := context.Background()
	cfg := analysisConfig()
	run := initiatedRun()

	m.controls.EXPECT().GetByName(gomock.Any(), cfg.ControlName).Return(cfg, nil)
	m.runs.EXPECT().Initiate(gomock.Any(), cfg.ControlID).Return(run, nil)
	m.checkpoints.EXPECT().Acquire(gomock.Any(), cfg.ControlID, run.ProcessID).
		Return(&model.Checkpoint{ControlID: cfg.ControlID, ProcessID: run.ProcessID}, nil)
	m.runs.EXPECT().MarkStarted(gomock.Any(), run.ProcessID, gomock.Any(), gomock.Any()).Return(nil)
	m.runs.EXPECT().UpdateStatus(gomock.Any(), run.ProcessID, model.RunStatusProgress).Return(nil)
	m.executor.EXPECT().Fetch(gomock.Any(), gomock.Any()).
		Return(model.FetchResult{Fetched: 1000}, nil)
	m.runs.EXPECT().WriteCounters(gomock.Any(), run.ProcessID, gomock.Any()).Return(nil).Times(2)
	m.executor.EXPECT().Execute(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(model.RunCounters{}, nil)
	m.executor.EXPECT().SaveFindings(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
	m.runs.EXPECT().UpdateStatus(gomock.Any(), run.ProcessID, model.RunStatusFinishing).Return(nil)
	m.executor.EXPECT().DropTemporaryTables(gomock.Any(), gomock.Any()).Return(nil)
	m.runs.EXPECT().UpdateStatus(gomock.Any(), run.ProcessID, model.RunStatusDone).Return(nil)
	m.checkpoints.EXPECT().Release(gomock.Any(), cfg.ControlID, run.ProcessID).Return(nil)
	m.runs.EXPECT().GetByID(gomock.Any(), run.ProcessID).Return(finishedRun(model.RunStatusDone), nil)

	final, err := r.Run(ctx, RunRequest{ControlName: cfg.ControlName})
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusDone, final.StatusOrCleared())
}

func TestRunner_Run_DebugKeepsTempTables(t *testing.T) {
	r, m := newTestRunner(t, Options{Debug: true})
	ctx := context.Background()
	cfg := analysisConfig()
	run := initiatedRun()

	m.controls.EXPECT().GetByName(gomock.Any(), cfg.ControlName).Return(cfg, nil)
	m.runs.EXPECT().Initiate(gomock.Any(), cfg.ControlID).Return(run, nil)
	m.checkpoints.EXPECT().Acquire(gomock.Any(), cfg.ControlID, run.ProcessID).
		Return(&model.Checkpoint{}, nil)
	m.runs.EXPECT().MarkStarted(gomock.Any(), run.ProcessID, gomock.Any(), gomock.Any()).Return(nil)
	m.runs.EXPECT().UpdateStatus(gomock.Any(), run.ProcessID, model.RunStatusProgress).Return(nil)
	m.executor.EXPECT().Fetch(gomock.Any(), gomock.Any()).Return(model.FetchResult{}, nil)
	m.runs.EXPECT().WriteCounters(gomock.Any(), run.ProcessID, gomock.Any()).Return(nil).Times(2)
	m.executor.EXPECT().Execute(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(model.RunCounters{}, nil)
	m.executor.EXPECT().SaveFindings(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
	m.runs.EXPECT().UpdateStatus(gomock.Any(), run.ProcessID, model.RunStatusFinishing).Return(nil)
	// No DropTemporaryTables expectation: debug mode keeps them.
	m.runs.EXPECT().UpdateStatus(gomock.Any(), run.ProcessID, model.RunStatusDone).Return(nil)
	m.checkpoints.EXPECT().Release(gomock.Any(), cfg.ControlID, run.ProcessID).Return(nil)
	m.runs.EXPECT().GetByID(gomock.Any(), run.ProcessID).Return(finishedRun(model.RunStatusDone), nil)

	_, err := r.Run(ctx, RunRequest{ControlName: cfg.ControlName})
	require.NoError(t, err)
}

func TestRunner_Run_PrerequisiteNotMet_EndsDone(t *testing.T) {
	r, m := newTestRunner(t, Options{})
	ctx := context.Background()
	cfg := analysisConfig()
	prereq := "select count(*) from usage_data"
	cfg.PrerequisiteSQL = &prereq
	run := initiatedRun()
	zero := 0.0

	m.controls.EXPECT().GetByName(gomock.Any(), cfg.ControlName).Return(cfg, nil)
	m.runs.EXPECT().Initiate(gomock.Any(), cfg.ControlID).Return(run, nil)
	m.checkpoints.EXPECT().Acquire(gomock.Any(), cfg.ControlID, run.ProcessID).
		Return(&model.Checkpoint{}, nil)
	m.executor.EXPECT().RunPrerequisite(gomock.Any(), gomock.Any()).Return(&zero, nil)
	m.runs.EXPECT().SetPrerequisiteValue(gomock.Any(), run.ProcessID, 0.0).Return(nil)
	m.runs.EXPECT().AppendLog(gomock.Any(), run.ProcessID, "prerequisite not met").Return(nil)
	m.runs.EXPECT().UpdateStatus(gomock.Any(), run.ProcessID, model.RunStatusDone).Return(nil)
	m.checkpoints.EXPECT().Release(gomock.Any(), cfg.ControlID, run.ProcessID).Return(nil)
	m.runs.EXPECT().GetByID(gomock.Any(), run.ProcessID).Return(finishedRun(model.RunStatusDone), nil)

	final, err := r.Run(ctx, RunRequest{ControlName: cfg.ControlName})
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusDone, final.StatusOrCleared())
}

func TestRunner_Run_PrerunHookDeclines_EndsDone(t *testing.T) {
	r, m := newTestRunner(t, Options{})
	ctx := context.Background()
	cfg := analysisConfig()
	cfg.NeedPrerunHook = model.FlagYes
	run := initiatedRun()

	m.controls.EXPECT().GetByName(gomock.Any(), cfg.ControlName).Return(cfg, nil)
	m.runs.EXPECT().Initiate(gomock.Any(), cfg.ControlID).Return(run, nil)
	m.checkpoints.EXPECT().Acquire(gomock.Any(), cfg.ControlID, run.ProcessID).
		Return(&model.Checkpoint{}, nil)
	m.executor.EXPECT().PrerunHook(gomock.Any(), run.ProcessID).Return(false, "not today", nil)
	m.runs.EXPECT().SetMessage(gomock.Any(), run.ProcessID, "not today").Return(nil)
	m.runs.EXPECT().AppendLog(gomock.Any(), run.ProcessID, "prerun hook declined the run").Return(nil)
	m.runs.EXPECT().UpdateStatus(gomock.Any(), run.ProcessID, model.RunStatusDone).Return(nil)
	m.checkpoints.EXPECT().Release(gomock.Any(), cfg.ControlID, run.ProcessID).Return(nil)
	m.runs.EXPECT().GetByID(gomock.Any(), run.ProcessID).Return(finishedRun(model.RunStatusDone), nil)

	final, err := r.Run(ctx, RunRequest{ControlName: cfg.ControlName})
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusDone, final.StatusOrCleared())
}

func TestRunner_Run_CheckpointHeld_BacksOffAndRetries(t *testing.T) {
	r, m := newTestRunner(t, Options{ThrottleMinDelay: time.Millisecond, ThrottleMaxDelay: 2 * time.Millisecond})
	ctx := context.Background()
	cfg := analysisConfig()
	run := initiatedRun()

	m.controls.EXPECT().GetByName(gomock.Any(), cfg.ControlName).Return(cfg, nil)
	m.runs.EXPECT().Initiate(gomock.Any(), cfg.ControlID).Return(run, nil)
	gomock.InOrder(
		m.checkpoints.EXPECT().Acquire(gomock.Any(), cfg.ControlID, run.ProcessID).
			Return(nil, data.ErrCheckpointHeld),
		m.checkpoints.EXPECT().Acquire(gomock.Any(), cfg.ControlID, run.ProcessID).
			Return(nil, data.ErrCheckpointHeld),
		m.checkpoints.EXPECT().Acquire(gomock.Any(), cfg.ControlID, run.ProcessID).
			Return(&model.Checkpoint{}, nil),
	)
	m.runs.EXPECT().AppendLog(gomock.Any(), run.ProcessID, "waiting for the control checkpoint").Return(nil)
	m.runs.EXPECT().MarkStarted(gomock.Any(), run.ProcessID, gomock.Any(), gomock.Any()).Return(nil)
	m.runs.EXPECT().UpdateStatus(gomock.Any(), run.ProcessID, model.RunStatusProgress).Return(nil)
	m.executor.EXPECT().Fetch(gomock.Any(), gomock.Any()).Return(model.FetchResult{}, nil)
	m.runs.EXPECT().WriteCounters(gomock.Any(), run.ProcessID, gomock.Any()).Return(nil).Times(2)
	m.executor.EXPECT().Execute(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(model.RunCounters{}, nil)
	m.executor.EXPECT().SaveFindings(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
	m.runs.EXPECT().UpdateStatus(gomock.Any(), run.ProcessID, model.RunStatusFinishing).Return(nil)
	m.executor.EXPECT().DropTemporaryTables(gomock.Any(), gomock.Any()).Return(nil)
	m.runs.EXPECT().UpdateStatus(gomock.Any(), run.ProcessID, model.RunStatusDone).Return(nil)
	m.checkpoints.EXPECT().Release(gomock.Any(), cfg.ControlID, run.ProcessID).Return(nil)
	m.runs.EXPECT().GetByID(gomock.Any(), run.ProcessID).Return(finishedRun(model.RunStatusDone), nil)

	_, err := r.Run(ctx, RunRequest{ControlName: cfg.ControlName})
	require.NoError(t, err)
}

func TestRunner_Run_WaitsForFreeSlot(t *testing.T) {
	r, m := newTestRunner(t, Options{WaitInterval: time.Millisecond})
	ctx := context.Background()
	cfg := analysisConfig()
	limit := 1
	cfg.InstanceLimit = &limit
	run := initiatedRun()

	m.controls.EXPECT().GetByName(gomock.Any(), cfg.ControlName).Return(cfg, nil)
	m.runs.EXPECT().Initiate(gomock.Any(), cfg.ControlID).Return(run, nil)
	gomock.InOrder(
		m.runs.EXPECT().CountActive(gomock.Any(), cfg.ControlID, gomock.Any()).Return(int64(2), nil),
		m.runs.EXPECT().UpdateStatus(gomock.Any(), run.ProcessID, model.RunStatusWaiting).Return(nil),
		m.runs.EXPECT().CountActive(gomock.Any(), cfg.ControlID, gomock.Any()).Return(int64(0), nil),
		m.runs.EXPECT().UpdateStatus(gomock.Any(), run.ProcessID, model.RunStatusInitiated).Return(nil),
	)
	m.checkpoints.EXPECT().Acquire(gomock.Any(), cfg.ControlID, run.ProcessID).
		Return(&model.Checkpoint{}, nil)
	m.runs.EXPECT().MarkStarted(gomock.Any(), run.ProcessID, gomock.Any(), gomock.Any()).Return(nil)
	m.runs.EXPECT().UpdateStatus(gomock.Any(), run.ProcessID, model.RunStatusProgress).Return(nil)
	m.executor.EXPECT().Fetch(gomock.Any(), gomock.Any()).Return(model.FetchResult{}, nil)
	m.runs.EXPECT().WriteCounters(gomock.Any(), run.ProcessID, gomock.Any()).Return(nil).Times(2)
	m.executor.EXPECT().Execute(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(model.RunCounters{}, nil)
	m.executor.EXPECT().SaveFindings(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
	m.runs.EXPECT().UpdateStatus(gomock.Any(), run.ProcessID, model.RunStatusFinishing).Return(nil)
	m.executor.EXPECT().DropTemporaryTables(gomock.Any(), gomock.Any()).Return(nil)
	m.runs.EXPECT().UpdateStatus(gomock.Any(), run.ProcessID, model.RunStatusDone).Return(nil)
	m.checkpoints.EXPECT().Release(gomock.Any(), cfg.ControlID, run.ProcessID).Return(nil)
	m.runs.EXPECT().GetByID(gomock.Any(), run.ProcessID).Return(finishedRun(model.RunStatusDone), nil)

	_, err := r.Run(ctx, RunRequest{ControlName: cfg.ControlName})
	require.NoError(t, err)
}

type captureNotifier struct {
	mu       sync.Mutex
	payloads []notify.RunFailurePayload
}

func (c *captureNotifier) NotifyRunFailure(_ context.Context, payload notify.RunFailurePayload) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.payloads = append(c.payloads, payload)
}

func (c *captureNotifier) Enabled() bool { return true }

func (c *captureNotifier) captured() []notify.RunFailurePayload {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]notify.RunFailurePayload(nil), c.payloads...)
}

func TestRunner_Run_ExecuteFails_MarksErrorAndNotifies(t *testing.T) {
	notifier := &captureNotifier{}
	r, m := newTestRunner(t, Options{Notifier: notifier})
	ctx := context.Background()
	cfg := analysisConfig()
	run := initiatedRun()

	m.controls.EXPECT().GetByName(gomock.Any(), cfg.ControlName).Return(cfg, nil)
	m.runs.EXPECT().Initiate(gomock.Any(), cfg.ControlID).Return(run, nil)
	m.checkpoints.EXPECT().Acquire(gomock.Any(), cfg.ControlID, run.ProcessID).
		Return(&model.Checkpoint{}, nil)
	m.runs.EXPECT().MarkStarted(gomock.Any(), run.ProcessID, gomock.Any(), gomock.Any()).Return(nil)
	m.runs.EXPECT().UpdateStatus(gomock.Any(), run.ProcessID, model.RunStatusProgress).Return(nil)
	m.executor.EXPECT().Fetch(gomock.Any(), gomock.Any()).Return(model.FetchResult{Fetched: 10}, nil)
	m.runs.EXPECT().WriteCounters(gomock.Any(), run.ProcessID, gomock.Any()).Return(nil)
	m.executor.EXPECT().Execute(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(model.RunCounters{}, errors.New("division by zero"))
	m.executor.EXPECT().DropTemporaryTables(gomock.Any(), gomock.Any()).Return(nil)
	m.runs.EXPECT().AppendError(gomock.Any(), run.ProcessID, "execute: division by zero").Return(nil)
	m.runs.EXPECT().UpdateStatus(gomock.Any(), run.ProcessID, model.RunStatusError).Return(nil)
	m.checkpoints.EXPECT().Release(gomock.Any(), cfg.ControlID, run.ProcessID).Return(nil)
	failed := finishedRun(model.RunStatusError)
	level := 12.5
	failed.ErrorLevel = &level
	m.runs.EXPECT().GetByID(gomock.Any(), run.ProcessID).Return(failed, nil).Times(2)

	final, err := r.Run(ctx, RunRequest{ControlName: cfg.ControlName})
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusError, final.StatusOrCleared())

	payloads := notifier.captured()
	require.Len(t, payloads, 1)
	assert.Equal(t, run.ProcessID, payloads[0].ProcessID)
	assert.Equal(t, cfg.ControlName, payloads[0].ControlName)
	assert.Equal(t, "execute: division by zero", payloads[0].Error)
	require.NotNil(t, payloads[0].ErrorLevel)
	assert.InDelta(t, 12.5, *payloads[0].ErrorLevel, 0.001)
}

func TestRunner_Run_OperatorCancel_MarksCanceled(t *testing.T) {
	r, m := newTestRunner(t, Options{SupervisorInterval: 5 * time.Millisecond})
	ctx := context.Background()
	cfg := analysisConfig()
	run := initiatedRun()

	cleared := initiatedRun()
	cleared.Status = nil

	m.controls.EXPECT().GetByName(gomock.Any(), cfg.ControlName).Return(cfg, nil)
	m.runs.EXPECT().Initiate(gomock.Any(), cfg.ControlID).Return(run, nil)
	m.checkpoints.EXPECT().Acquire(gomock.Any(), cfg.ControlID, run.ProcessID).
		Return(&model.Checkpoint{}, nil)
	m.runs.EXPECT().MarkStarted(gomock.Any(), run.ProcessID, gomock.Any(), gomock.Any()).Return(nil)
	m.runs.EXPECT().UpdateStatus(gomock.Any(), run.ProcessID, model.RunStatusProgress).Return(nil)
	// The supervisor reads a cleared status while the fetch is underway.
	m.runs.EXPECT().GetByID(gomock.Any(), run.ProcessID).Return(cleared, nil).AnyTimes()
	m.executor.EXPECT().Fetch(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, _ *control.Plan) (model.FetchResult, error) {
			<-ctx.Done()
			return model.FetchResult{}, ctx.Err()
		},
	)
	m.executor.EXPECT().DropTemporaryTables(gomock.Any(), gomock.Any()).Return(nil)
	m.runs.EXPECT().AppendLog(gomock.Any(), run.ProcessID, "run canceled").Return(nil)
	m.executor.EXPECT().DeleteOutputRecords(gomock.Any(), gomock.Any()).Return(nil)
	m.runs.EXPECT().UpdateStatus(gomock.Any(), run.ProcessID, model.RunStatusCanceled).Return(nil)
	m.checkpoints.EXPECT().Release(gomock.Any(), cfg.ControlID, run.ProcessID).Return(nil)

	_, err := r.Run(ctx, RunRequest{ControlName: cfg.ControlName})
	require.NoError(t, err)
}

func TestRunner_Run_Timeout_MarksCanceled(t *testing.T) {
	r, m := newTestRunner(t, Options{SupervisorInterval: 5 * time.Millisecond})
	ctx := context.Background()
	cfg := analysisConfig()
	timeout := 1
	cfg.Timeout = &timeout
	run := initiatedRun()
	run.Added = time.Now().Add(-10 * time.Second)

	m.controls.EXPECT().GetByName(gomock.Any(), cfg.ControlName).Return(cfg, nil)
	m.runs.EXPECT().Initiate(gomock.Any(), cfg.ControlID).Return(run, nil)
	m.checkpoints.EXPECT().Acquire(gomock.Any(), cfg.ControlID, run.ProcessID).
		Return(&model.Checkpoint{}, nil)
	m.runs.EXPECT().MarkStarted(gomock.Any(), run.ProcessID, gomock.Any(), gomock.Any()).Return(nil)
	m.runs.EXPECT().UpdateStatus(gomock.Any(), run.ProcessID, model.RunStatusProgress).Return(nil)
	m.executor.EXPECT().Fetch(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, _ *control.Plan) (model.FetchResult, error) {
			<-ctx.Done()
			return model.FetchResult{}, ctx.Err()
		},
	)
	m.executor.EXPECT().DropTemporaryTables(gomock.Any(), gomock.Any()).Return(nil)
	m.runs.EXPECT().AppendLog(gomock.Any(), run.ProcessID, "run canceled: run timeout exceeded").Return(nil)
	m.executor.EXPECT().DeleteOutputRecords(gomock.Any(), gomock.Any()).Return(nil)
	m.runs.EXPECT().UpdateStatus(gomock.Any(), run.ProcessID, model.RunStatusCanceled).Return(nil)
	m.checkpoints.EXPECT().Release(gomock.Any(), cfg.ControlID, run.ProcessID).Return(nil)
	m.runs.EXPECT().GetByID(gomock.Any(), run.ProcessID).Return(finishedRun(model.RunStatusCanceled), nil)

	final, err := r.Run(ctx, RunRequest{ControlName: cfg.ControlName})
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusCanceled, final.StatusOrCleared())
}

func TestRunner_Run_ValidatesRequest(t *testing.T) {
	r, _ := newTestRunner(t, Options{})
	ctx := context.Background()

	_, err := r.Run(ctx, RunRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "control name is required")

	from := time.Now()
	_, err = r.Run(ctx, RunRequest{ControlName: "daily_usage_check", DateFrom: &from})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "date_from and date_to")
}

func TestRunner_Launch_ReturnsProcessID(t *testing.T) {
	r, m := newTestRunner(t, Options{})
	ctx := context.Background()
	cfg := analysisConfig()
	run := initiatedRun()
	done := make(chan struct{})

	m.controls.EXPECT().GetByName(gomock.Any(), cfg.ControlName).Return(cfg, nil)
	m.runs.EXPECT().Initiate(gomock.Any(), cfg.ControlID).Return(run, nil)
	m.checkpoints.EXPECT().Acquire(gomock.Any(), cfg.ControlID, run.ProcessID).
		Return(&model.Checkpoint{}, nil)
	m.runs.EXPECT().MarkStarted(gomock.Any(), run.ProcessID, gomock.Any(), gomock.Any()).Return(nil)
	m.runs.EXPECT().UpdateStatus(gomock.Any(), run.ProcessID, model.RunStatusProgress).Return(nil)
	m.executor.EXPECT().Fetch(gomock.Any(), gomock.Any()).Return(model.FetchResult{}, nil)
	m.runs.EXPECT().WriteCounters(gomock.Any(), run.ProcessID, gomock.Any()).Return(nil).Times(2)
	m.executor.EXPECT().Execute(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(model.RunCounters{}, nil)
	m.executor.EXPECT().SaveFindings(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
	m.runs.EXPECT().UpdateStatus(gomock.Any(), run.ProcessID, model.RunStatusFinishing).Return(nil)
	m.executor.EXPECT().DropTemporaryTables(gomock.Any(), gomock.Any()).Return(nil)
	m.checkpoints.EXPECT().Release(gomock.Any(), cfg.ControlID, run.ProcessID).Return(nil)
	m.runs.EXPECT().UpdateStatus(gomock.Any(), run.ProcessID, model.RunStatusDone).
		DoAndReturn(func(context.Context, int64, model.RunStatus) error {
			close(done)
			return nil
		})

	processID, err := r.Launch(ctx, RunRequest{ControlName: cfg.ControlName})
	require.NoError(t, err)
	assert.Equal(t, run.ProcessID, processID)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("background lifecycle did not finish")
	}
}
