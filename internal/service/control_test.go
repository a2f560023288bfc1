package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/t3eHawk/rapo/internal/domain/model"
	apperrors "github.com/t3eHawk/rapo/internal/errors"
	"github.com/t3eHawk/rapo/internal/mocks"
	"go.uber.org/mock/gomock"
)

func strPtr(s string) *string { return &s }

func controlTypePtr(t model.ControlType) *model.ControlType { return &t }

func TestControlService_Save_CreatesControl(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ctx := context.Background()
	mockControls := mocks.NewMockControlRepository(ctrl)
	mockCatalog := mocks.NewMockCatalogRepository(ctrl)
	mockExecutor := mocks.NewMockControlExecutor(ctrl)
	svc := MustNewControlService(ControlServiceOptions{
		Controls: mockControls,
		Catalog:  mockCatalog,
		Executor: mockExecutor,
	})

	req := &model.SaveControlRequest{
		ControlName: strPtr("daily_usage_check"),
		ControlType: controlTypePtr(model.ControlTypeAnalysis),
		SourceName:  strPtr("usage_data"),
	}
	saved := &model.ControlConfig{
		ControlID:   1,
		ControlName: "daily_usage_check",
		ControlType: model.ControlTypeAnalysis,
		SourceName:  strPtr("usage_data"),
	}

	mockCatalog.EXPECT().Exists(ctx, "usage_data").Return(true, nil)
	mockControls.EXPECT().Save(ctx, req).Return(saved, nil)

	got, err := svc.Save(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, saved, got)
}

func TestControlService_Save_RejectsUnknownSource(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ctx := context.Background()
	mockControls := mocks.NewMockControlRepository(ctrl)
	mockCatalog := mocks.NewMockCatalogRepository(ctrl)
	mockExecutor := mocks.NewMockControlExecutor(ctrl)
	svc := MustNewControlService(ControlServiceOptions{
		Controls: mockControls,
		Catalog:  mockCatalog,
		Executor: mockExecutor,
	})

	req := &model.SaveControlRequest{
		ControlName: strPtr("daily_usage_check"),
		ControlType: controlTypePtr(model.ControlTypeAnalysis),
		SourceName:  strPtr("missing_table"),
	}
	mockCatalog.EXPECT().Exists(ctx, "missing_table").Return(false, nil)

	_, err := svc.Save(ctx, req)
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	assert.Contains(t, err.Error(), "missing_table")
}

func TestControlService_Save_RejectsInvalidRequest(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc := MustNewControlService(ControlServiceOptions{
		Controls: mocks.NewMockControlRepository(ctrl),
		Executor: mocks.NewMockControlExecutor(ctrl),
	})

	_, err := svc.Save(context.Background(), &model.SaveControlRequest{})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))

	_, err = svc.Save(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestControlService_Save_InvalidatesProjectionCache(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ctx := context.Background()
	mockControls := mocks.NewMockControlRepository(ctrl)
	mockCache := mocks.NewMockCacheRepository(ctrl)
	svc := MustNewControlService(ControlServiceOptions{
		Controls: mockControls,
		Executor: mocks.NewMockControlExecutor(ctrl),
		Cache:    mockCache,
	})

	req := &model.SaveControlRequest{
		ControlName: strPtr("daily_usage_check"),
		ControlType: controlTypePtr(model.ControlTypeAnalysis),
	}
	mockControls.EXPECT().Save(ctx, req).Return(&model.ControlConfig{ControlID: 1}, nil)
	for _, key := range projectionCacheKeys {
		mockCache.EXPECT().Delete(ctx, key).Return(true, nil)
	}

	_, err := svc.Save(ctx, req)
	require.NoError(t, err)
}

func TestControlService_DeleteOutputTables_DropsEveryResultTable(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ctx := context.Background()
	mockControls := mocks.NewMockControlRepository(ctrl)
	mockExecutor := mocks.NewMockControlExecutor(ctrl)
	svc := MustNewControlService(ControlServiceOptions{
		Controls: mockControls,
		Executor: mockExecutor,
	})

	cfg := &model.ControlConfig{
		ControlID:   7,
		ControlName: "ledger_recon",
		ControlType: model.ControlTypeReconciliation,
	}
	mockControls.EXPECT().GetByID(ctx, int64(7)).Return(cfg, nil)
	mockExecutor.EXPECT().DropTable(ctx, "rapo_resa_ledger_recon").Return(nil)
	mockExecutor.EXPECT().DropTable(ctx, "rapo_resb_ledger_recon").Return(nil)

	dropped, err := svc.DeleteOutputTables(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, []string{"rapo_resa_ledger_recon", "rapo_resb_ledger_recon"}, dropped)
}

func TestControlService_DeleteOutputTables_StopsOnDropFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ctx := context.Background()
	mockControls := mocks.NewMockControlRepository(ctrl)
	mockExecutor := mocks.NewMockControlExecutor(ctrl)
	svc := MustNewControlService(ControlServiceOptions{
		Controls: mockControls,
		Executor: mockExecutor,
	})

	cfg := &model.ControlConfig{
		ControlID:   3,
		ControlName: "daily_usage_check",
		ControlType: model.ControlTypeAnalysis,
	}
	mockControls.EXPECT().GetByID(ctx, int64(3)).Return(cfg, nil)
	mockExecutor.EXPECT().DropTable(ctx, "rapo_rest_daily_usage_check").
		Return(errors.New("table in use"))

	dropped, err := svc.DeleteOutputTables(ctx, 3)
	require.Error(t, err)
	assert.Empty(t, dropped)
}

func TestControlService_Delete_InvalidatesProjectionCache(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ctx := context.Background()
	mockControls := mocks.NewMockControlRepository(ctrl)
	mockCache := mocks.NewMockCacheRepository(ctrl)
	svc := MustNewControlService(ControlServiceOptions{
		Controls: mockControls,
		Executor: mocks.NewMockControlExecutor(ctrl),
		Cache:    mockCache,
	})

	mockControls.EXPECT().Delete(ctx, int64(5)).Return(true, nil)
	for _, key := range projectionCacheKeys {
		mockCache.EXPECT().Delete(ctx, key).Return(true, nil)
	}

	ok, err := svc.Delete(ctx, 5)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestControlService_List_NormalizesPaging(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ctx := context.Background()
	mockControls := mocks.NewMockControlRepository(ctrl)
	svc := MustNewControlService(ControlServiceOptions{
		Controls: mockControls,
		Executor: mocks.NewMockControlExecutor(ctrl),
	})

	mockControls.EXPECT().
		ListWithOptions(ctx, model.ControlsListOptions{Limit: 50}).
		Return(nil, nil)

	_, err := svc.List(ctx, model.ControlsListOptions{Limit: 0, Offset: -3})
	require.NoError(t, err)
}
