package http_test

import (
	"context"

	"codes-api/internal/gateway/domain/model"

	"github.com/stretchr/testify/mock"
)

// mockDiagnosticsUsecase is a shared mock for usecase.DiagnosticsUsecaseInterface
type mockDiagnosticsUsecase struct {
	mock.Mock
}

func (m *mockDiagnosticsUsecase) CollectionStats(ctx context.Context) (*model.CollectionStats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CollectionStats), args.Error(1)
}

func (m *mockDiagnosticsUsecase) Health(ctx context.Context) *model.HealthReport {
	args := m.Called(ctx)
	return args.Get(0).(*model.HealthReport)
}
