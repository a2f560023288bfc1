package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/t3eHawk/rapo/internal/domain/model"
	"github.com/t3eHawk/rapo/internal/testutil"
)

func createTestControl(t *testing.T, db *sql.DB, req *model.SaveControlRequest) *model.ControlConfig {
	t.Helper()
	repo := NewControlRepo(db)
	c, err := repo.Save(context.Background(), req)
	require.NoError(t, err)
	return c
}

func TestControlRepo_Save_Get_List_Delete(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := NewControlRepo(db)

		// create
		req := testutil.NewControlRequest().
			WithName(fmt.Sprintf("sales_check_%d", time.Now().UnixNano())).
			WithErrorDefinition("amount < 0").
			Build()
		c, err := repo.Save(ctx, req)
		require.NoError(t, err)
		require.NotZero(t, c.ControlID)
		assert.Equal(t, *req.ControlName, c.ControlName)
		assert.Equal(t, model.ControlTypeAnalysis, c.ControlType)
		assert.Equal(t, "DB", c.ControlEngine)
		assert.Equal(t, 1, c.PeriodBack)
		assert.Equal(t, 1, c.PeriodNumber)
		assert.Equal(t, model.PeriodTypeDay, c.PeriodType)
		assert.Equal(t, 365, c.DaysRetention)
		assert.Equal(t, model.FlagYes, c.NeedA)
		assert.Equal(t, model.FlagNo, c.Status)
		require.NotNil(t, c.CreatedDate)
		assert.Nil(t, c.UpdatedDate)

		// get by id
		got, err := repo.GetByID(ctx, c.ControlID)
		require.NoError(t, err)
		assert.Equal(t, c.ControlName, got.ControlName)
		require.NotNil(t, got.ErrorDefinition)
		assert.Equal(t, "amount < 0", *got.ErrorDefinition)

		// get by name
		byName, err := repo.GetByName(ctx, c.ControlName)
		require.NoError(t, err)
		assert.Equal(t, c.ControlID, byName.ControlID)

		// list with name filter
		lst, err := repo.ListWithOptions(ctx, model.ControlsListOptions{
			Q: testutil.StringPtr("sales_check"),
		})
		require.NoError(t, err)
		assert.GreaterOrEqual(t, len(lst), 1)

		// list with type filter excludes other kinds
		rec := model.ControlTypeReconciliation
		lst, err = repo.ListWithOptions(ctx, model.ControlsListOptions{Type: &rec})
		require.NoError(t, err)
		for _, item := range lst {
			assert.Equal(t, model.ControlTypeReconciliation, item.ControlType)
		}

		// update writes the prior image to the audit table
		desc := "negative amounts"
		enabled := model.FlagYes
		updated, err := repo.Save(ctx, &model.SaveControlRequest{
			ControlID:          &c.ControlID,
			ControlDescription: &desc,
			Status:             &enabled,
		})
		require.NoError(t, err)
		assert.Equal(t, c.ControlID, updated.ControlID)
		require.NotNil(t, updated.ControlDescription)
		assert.Equal(t, desc, *updated.ControlDescription)
		assert.Equal(t, model.FlagYes, updated.Status)
		require.NotNil(t, updated.UpdatedDate)
		assert.WithinDuration(t, time.Now(), *updated.UpdatedDate, 5*time.Second)

		versions, err := repo.Versions(ctx, c.ControlID, 0, 0)
		require.NoError(t, err)
		require.Len(t, versions, 1)
		assert.Equal(t, "U", versions[0].AuditAction)
		assert.Equal(t, c.ControlName, versions[0].ControlName)
		assert.Equal(t, model.FlagNo, versions[0].Status)

		// empty update returns the current row without a new version
		same, err := repo.Save(ctx, &model.SaveControlRequest{ControlID: &c.ControlID})
		require.NoError(t, err)
		assert.Equal(t, desc, *same.ControlDescription)
		versions, err = repo.Versions(ctx, c.ControlID, 0, 0)
		require.NoError(t, err)
		assert.Len(t, versions, 1)

		// delete records a final D version
		deleted, err := repo.Delete(ctx, c.ControlID)
		require.NoError(t, err)
		assert.True(t, deleted)

		_, err = repo.GetByID(ctx, c.ControlID)
		require.ErrorIs(t, err, ErrControlNotFound)

		versions, err = repo.Versions(ctx, c.ControlID, 0, 0)
		require.NoError(t, err)
		require.Len(t, versions, 2)
		assert.Equal(t, "D", versions[0].AuditAction)

		// deleting again reports not found
		deleted, err = repo.Delete(ctx, c.ControlID)
		require.NoError(t, err)
		assert.False(t, deleted)
	})
}

func TestControlRepo_Save_ClearsFields(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := NewControlRepo(db)

		req := testutil.NewControlRequest().
			WithErrorDefinition("amount < 0").
			WithOutputLimit(1000).
			WithTimeout(600).
			WithScheduleConfig(`{"hour": "1"}`).
			Build()
		filter := "status = 'NEW'"
		req.SourceFilter = &filter
		c, err := repo.Save(ctx, req)
		require.NoError(t, err)
		require.NotNil(t, c.SourceFilter)
		require.NotNil(t, c.OutputLimit)
		require.NotNil(t, c.Timeout)
		assert.JSONEq(t, `{"hour": "1"}`, string(c.ScheduleConfig))

		// empty string clears text, json null clears json, zero clears limits
		empty := ""
		zero := 0
		var zero64 int64
		nullJSON := json.RawMessage(`null`)
		updated, err := repo.Save(ctx, &model.SaveControlRequest{
			ControlID:      &c.ControlID,
			SourceFilter:   &empty,
			OutputLimit:    &zero64,
			Timeout:        &zero,
			ScheduleConfig: &nullJSON,
		})
		require.NoError(t, err)
		assert.Nil(t, updated.SourceFilter)
		assert.Nil(t, updated.OutputLimit)
		assert.Nil(t, updated.Timeout)
		assert.Empty(t, updated.ScheduleConfig)
	})
}

func TestControlRepo_DuplicateName(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := NewControlRepo(db)

		name := fmt.Sprintf("dup_control_%d", time.Now().UnixNano())
		_, err := repo.Save(ctx, testutil.NewControlRequest().WithName(name).Build())
		require.NoError(t, err)

		_, err = repo.Save(ctx, testutil.NewControlRequest().WithName(name).Build())
		require.ErrorIs(t, err, ErrControlNameExists)

		// renaming another control onto the same name fails the same way
		other := createTestControl(t, db, testutil.NewControlRequest().Build())
		_, err = repo.Save(ctx, &model.SaveControlRequest{
			ControlID:   &other.ControlID,
			ControlName: &name,
		})
		require.ErrorIs(t, err, ErrControlNameExists)
	})
}

func TestControlRepo_Save_ValidationErrors(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := NewControlRepo(db)

		// nil request
		_, err := repo.Save(ctx, nil)
		require.Error(t, err)

		// missing name
		ctype := model.ControlTypeAnalysis
		_, err = repo.Save(ctx, &model.SaveControlRequest{ControlType: &ctype})
		require.Error(t, err)

		// missing type
		name := "no_type"
		_, err = repo.Save(ctx, &model.SaveControlRequest{ControlName: &name})
		require.Error(t, err)

		// unknown type
		bad := model.ControlType("XXX")
		_, err = repo.Save(ctx, &model.SaveControlRequest{ControlName: &name, ControlType: &bad})
		require.Error(t, err)

		// unknown period type
		badPeriod := model.PeriodType("Q")
		_, err = repo.Save(ctx, &model.SaveControlRequest{
			ControlName: &name,
			ControlType: &ctype,
			PeriodType:  &badPeriod,
		})
		require.Error(t, err)

		// updating a control that does not exist
		missing := int64(999999999)
		desc := "nothing"
		_, err = repo.Save(ctx, &model.SaveControlRequest{
			ControlID:          &missing,
			ControlDescription: &desc,
		})
		require.ErrorIs(t, err, ErrControlNotFound)
	})
}

func TestControlRepo_ListActive(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := NewControlRepo(db)

		scheduled := createTestControl(t, db, testutil.ScheduledControlRequest())
		disabled := createTestControl(t, db, testutil.DisabledControlRequest())
		// enabled but without a schedule
		noSchedule := createTestControl(t, db, testutil.NewControlRequest().WithStatus(model.FlagYes).Build())

		active, err := repo.ListActive(ctx)
		require.NoError(t, err)

		names := make(map[string]bool, len(active))
		for _, c := range active {
			names[c.ControlName] = true
			assert.Equal(t, model.FlagYes, c.Status)
			assert.NotEmpty(t, c.ScheduleConfig)
		}
		assert.True(t, names[scheduled.ControlName])
		assert.False(t, names[disabled.ControlName])
		assert.False(t, names[noSchedule.ControlName])
	})
}

func TestControlRepo_Backup_ArchivesEveryControl(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := NewControlRepo(db)

		first := createTestControl(t, db, testutil.NewControlRequest().
			WithName(fmt.Sprintf("backup_first_%d", time.Now().UnixNano())).Build())
		second := createTestControl(t, db, testutil.NewControlRequest().
			WithName(fmt.Sprintf("backup_second_%d", time.Now().UnixNano())).Build())

		archived, err := repo.Backup(ctx)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, archived, int64(2))

		for _, c := range []*model.ControlConfig{first, second} {
			versions, err := repo.Versions(ctx, c.ControlID, 0, 0)
			require.NoError(t, err)
			require.NotEmpty(t, versions)
			assert.Equal(t, "B", versions[0].AuditAction)
			assert.Equal(t, c.ControlName, versions[0].ControlName)
		}
	})
}
