package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"signet/internal/domain"
)

// MockStatsService is a mock implementation of service.StatsService.
type MockStatsService struct {
	mock.Mock
}

func (m *MockStatsService) GetStats(ctx context.Context, owner domain.Owner) (*domain.OwnerStats, error) {
	args := m.Called(ctx, owner)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.OwnerStats), args.Error(1)
}
