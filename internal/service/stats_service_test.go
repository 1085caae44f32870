package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signet/internal/domain"
	"signet/internal/service"
	"signet/mocks"
)

func TestStatsService_GetStats(t *testing.T) {
	repo := new(mocks.MockStatsRepo)
	svc := service.NewStatsService(repo)
	owner := uuidOwner()
	want := &domain.OwnerStats{TotalDocuments: 3, Pending: 2, Completed: 1, AwaitingSignatures: 4}
	repo.On("GetOwnerStats", context.Background(), owner.ID).Return(want, nil).Once()
	repo.On("GetOwnerStats", context.Background(), owner.ID).Return(nil, errBoom).Once()

	got, err := svc.GetStats(context.Background(), owner)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = svc.GetStats(context.Background(), owner)
	assert.ErrorIs(t, err, errBoom)
}
