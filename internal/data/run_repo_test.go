package data

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/t3eHawk/rapo/internal/domain/model"
	"github.com/t3eHawk/rapo/internal/testutil"
)

func TestRunRepo_Lifecycle(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		control := createTestControl(t, db, testutil.AnalysisControlRequest())
		repo := NewRunRepo(db)

		// initiate
		run, err := repo.Initiate(ctx, control.ControlID)
		require.NoError(t, err)
		require.NotZero(t, run.ProcessID)
		assert.Equal(t, control.ControlID, run.ControlID)
		require.NotNil(t, run.Status)
		assert.Equal(t, model.RunStatusInitiated, *run.Status)
		assert.NotZero(t, run.Added)
		assert.Nil(t, run.StartDate)
		assert.Nil(t, run.FetchedNumber)

		// start with a resolved window
		dateFrom := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
		dateTo := time.Date(2024, 5, 1, 23, 59, 59, 0, time.UTC)
		require.NoError(t, repo.MarkStarted(ctx, run.ProcessID, dateFrom, dateTo))

		got, err := repo.GetByID(ctx, run.ProcessID)
		require.NoError(t, err)
		assert.Equal(t, model.RunStatusStarted, *got.Status)
		require.NotNil(t, got.StartDate)
		require.NotNil(t, got.DateFrom)
		assert.True(t, got.DateFrom.Equal(dateFrom))
		require.NotNil(t, got.DateTo)
		assert.True(t, got.DateTo.Equal(dateTo))
		require.NotNil(t, got.Updated)

		// progress and counters
		require.NoError(t, repo.UpdateStatus(ctx, run.ProcessID, model.RunStatusProgress))
		fetched := int64(100)
		errorsN := int64(7)
		success := fetched - errorsN
		require.NoError(t, repo.WriteCounters(ctx, run.ProcessID, model.RunCounters{
			Fetched: &fetched,
			Success: &success,
			Errors:  &errorsN,
			Level:   model.ErrorLevel(errorsN, fetched),
		}))
		require.NoError(t, repo.SetPrerequisiteValue(ctx, run.ProcessID, 1))
		require.NoError(t, repo.AppendLog(ctx, run.ProcessID, "fetch done"))
		require.NoError(t, repo.AppendLog(ctx, run.ProcessID, "save done"))
		require.NoError(t, repo.SetMessage(ctx, run.ProcessID, "all good"))

		got, err = repo.GetByID(ctx, run.ProcessID)
		require.NoError(t, err)
		assert.Equal(t, model.RunStatusProgress, *got.Status)
		require.NotNil(t, got.FetchedNumber)
		assert.Equal(t, fetched, *got.FetchedNumber)
		require.NotNil(t, got.ErrorNumber)
		assert.Equal(t, errorsN, *got.ErrorNumber)
		require.NotNil(t, got.ErrorLevel)
		assert.InDelta(t, 7.0, *got.ErrorLevel, 0.001)
		require.NotNil(t, got.PrerequisiteValue)
		assert.InDelta(t, 1.0, *got.PrerequisiteValue, 0.001)
		require.NotNil(t, got.TextLog)
		assert.Equal(t, "fetch done\nsave done", *got.TextLog)
		require.NotNil(t, got.TextMessage)
		assert.Equal(t, "all good", *got.TextMessage)
		assert.Nil(t, got.EndDate)

		// finish
		require.NoError(t, repo.UpdateStatus(ctx, run.ProcessID, model.RunStatusDone))
		got, err = repo.GetByID(ctx, run.ProcessID)
		require.NoError(t, err)
		assert.Equal(t, model.RunStatusDone, *got.Status)
		require.NotNil(t, got.EndDate)
	})
}

func TestRunRepo_Initiate_UnknownControl(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewRunRepo(db)
		_, err := repo.Initiate(context.Background(), 999999999)
		require.ErrorIs(t, err, ErrControlNotFound)
	})
}

func TestRunRepo_ClearStatus(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		control := createTestControl(t, db, testutil.AnalysisControlRequest())
		repo := NewRunRepo(db)

		run, err := repo.Initiate(ctx, control.ControlID)
		require.NoError(t, err)

		require.NoError(t, repo.ClearStatus(ctx, run.ProcessID))
		got, err := repo.GetByID(ctx, run.ProcessID)
		require.NoError(t, err)
		assert.Nil(t, got.Status)
		assert.Equal(t, model.RunStatus(""), got.StatusOrCleared())

		// unknown process id and bad status are rejected
		require.ErrorIs(t, repo.ClearStatus(ctx, 999999999), ErrRunNotFound)
		require.ErrorIs(t, repo.UpdateStatus(ctx, 999999999, model.RunStatusDone), ErrRunNotFound)
		require.Error(t, repo.UpdateStatus(ctx, run.ProcessID, model.RunStatus("Z")))
	})
}

func TestRunRepo_CountActive(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		control := createTestControl(t, db, testutil.AnalysisControlRequest())
		repo := NewRunRepo(db)
		since := time.Now().Add(-time.Hour)

		_, err := repo.Initiate(ctx, control.ControlID)
		require.NoError(t, err)

		started, err := repo.Initiate(ctx, control.ControlID)
		require.NoError(t, err)
		require.NoError(t, repo.MarkStarted(ctx, started.ProcessID, time.Now(), time.Now()))

		waiting, err := repo.Initiate(ctx, control.ControlID)
		require.NoError(t, err)
		require.NoError(t, repo.UpdateStatus(ctx, waiting.ProcessID, model.RunStatusWaiting))

		done, err := repo.Initiate(ctx, control.ControlID)
		require.NoError(t, err)
		require.NoError(t, repo.UpdateStatus(ctx, done.ProcessID, model.RunStatusDone))

		// I and S occupy slots; W and D do not
		count, err := repo.CountActive(ctx, control.ControlID, since)
		require.NoError(t, err)
		assert.Equal(t, int64(2), count)

		// other controls are not counted
		other := createTestControl(t, db, testutil.AnalysisControlRequest())
		count, err = repo.CountActive(ctx, other.ControlID, since)
		require.NoError(t, err)
		assert.Equal(t, int64(0), count)
	})
}

func TestRunRepo_ListWithOptions(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		first := createTestControl(t, db, testutil.AnalysisControlRequest())
		second := createTestControl(t, db, testutil.ReportControlRequest())
		repo := NewRunRepo(db)

		firstRun, err := repo.Initiate(ctx, first.ControlID)
		require.NoError(t, err)
		secondRun, err := repo.Initiate(ctx, second.ControlID)
		require.NoError(t, err)
		require.NoError(t, repo.UpdateStatus(ctx, secondRun.ProcessID, model.RunStatusError))

		// by control id, with joined name and kind
		runs, err := repo.ListWithOptions(ctx, model.RunsListOptions{ControlID: &first.ControlID})
		require.NoError(t, err)
		require.Len(t, runs, 1)
		assert.Equal(t, firstRun.ProcessID, runs[0].ProcessID)
		assert.Equal(t, first.ControlName, runs[0].ControlName)
		assert.Equal(t, model.ControlTypeAnalysis, runs[0].ControlType)

		// by control name
		runs, err = repo.ListWithOptions(ctx, model.RunsListOptions{ControlName: &second.ControlName})
		require.NoError(t, err)
		require.Len(t, runs, 1)
		assert.Equal(t, secondRun.ProcessID, runs[0].ProcessID)

		// by status
		errStatus := model.RunStatusError
		runs, err = repo.ListWithOptions(ctx, model.RunsListOptions{Status: &errStatus})
		require.NoError(t, err)
		require.Len(t, runs, 1)
		assert.Equal(t, secondRun.ProcessID, runs[0].ProcessID)

		// live only
		runs, err = repo.ListWithOptions(ctx, model.RunsListOptions{Live: true})
		require.NoError(t, err)
		require.Len(t, runs, 1)
		assert.Equal(t, firstRun.ProcessID, runs[0].ProcessID)

		// deinitiated only
		require.NoError(t, repo.ClearStatus(ctx, firstRun.ProcessID))
		runs, err = repo.ListWithOptions(ctx, model.RunsListOptions{Deinitiated: true})
		require.NoError(t, err)
		require.Len(t, runs, 1)
		assert.Equal(t, firstRun.ProcessID, runs[0].ProcessID)

		// newest first by default
		runs, err = repo.ListWithOptions(ctx, model.RunsListOptions{})
		require.NoError(t, err)
		require.Len(t, runs, 2)
		assert.Equal(t, secondRun.ProcessID, runs[0].ProcessID)

		runs, err = repo.ListWithOptions(ctx, model.RunsListOptions{Sort: "added", Dir: "asc"})
		require.NoError(t, err)
		require.Len(t, runs, 2)
		assert.Equal(t, firstRun.ProcessID, runs[0].ProcessID)
	})
}

func TestRunRepo_Summaries(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		control := createTestControl(t, db, testutil.ReconciliationControlRequest())
		repo := NewRunRepo(db)

		run, err := repo.Initiate(ctx, control.ControlID)
		require.NoError(t, err)
		require.NoError(t, repo.MarkStarted(ctx, run.ProcessID, time.Now().Add(-time.Hour), time.Now()))

		// two-sided counters only
		fetchedA := int64(40)
		errorsA := int64(4)
		require.NoError(t, repo.WriteCounters(ctx, run.ProcessID, model.RunCounters{
			FetchedA: &fetchedA,
			ErrorsA:  &errorsA,
			LevelA:   model.ErrorLevel(errorsA, fetchedA),
		}))
		require.NoError(t, repo.UpdateStatus(ctx, run.ProcessID, model.RunStatusDone))

		summaries, err := repo.Summaries(ctx, model.RunsListOptions{ControlID: &control.ControlID})
		require.NoError(t, err)
		require.Len(t, summaries, 1)
		s := summaries[0]
		assert.Equal(t, run.ProcessID, s.ProcessID)
		assert.Equal(t, control.ControlName, s.ControlName)
		assert.Equal(t, string(model.ControlTypeReconciliation), s.ControlType)
		assert.Equal(t, "Success", s.StatusLabel)
		require.NotNil(t, s.Fetched)
		assert.Equal(t, fetchedA, *s.Fetched)
		require.NotNil(t, s.Errors)
		assert.Equal(t, errorsA, *s.Errors)
		require.NotNil(t, s.ErrorLevel)
		assert.InDelta(t, 10.0, *s.ErrorLevel, 0.001)
		require.NotNil(t, s.DurationMinutes)
		assert.Greater(t, *s.DurationMinutes, 0.0)

		// a cleared status reads as Canceled
		cleared, err := repo.Initiate(ctx, control.ControlID)
		require.NoError(t, err)
		require.NoError(t, repo.ClearStatus(ctx, cleared.ProcessID))
		summaries, err = repo.Summaries(ctx, model.RunsListOptions{Deinitiated: true})
		require.NoError(t, err)
		require.Len(t, summaries, 1)
		assert.Equal(t, "Canceled", summaries[0].StatusLabel)
		assert.Nil(t, summaries[0].DurationMinutes)
	})
}

func TestRunRepo_ListHung(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		control := createTestControl(t, db, testutil.AnalysisControlRequest())
		repo := NewRunRepo(db)

		run, err := repo.Initiate(ctx, control.ControlID)
		require.NoError(t, err)
		require.NoError(t, repo.MarkStarted(ctx, run.ProcessID, time.Now(), time.Now()))

		done, err := repo.Initiate(ctx, control.ControlID)
		require.NoError(t, err)
		require.NoError(t, repo.UpdateStatus(ctx, done.ProcessID, model.RunStatusDone))

		// a cutoff in the future catches the live run but not the finished one
		hung, err := repo.ListHung(ctx, time.Now().Add(time.Minute))
		require.NoError(t, err)
		require.Len(t, hung, 1)
		assert.Equal(t, run.ProcessID, hung[0].ProcessID)

		// a cutoff in the past catches nothing
		hung, err = repo.ListHung(ctx, time.Now().Add(-time.Hour))
		require.NoError(t, err)
		assert.Empty(t, hung)
	})
}
