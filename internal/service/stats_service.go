package service

import (
	"context"

	"signet/internal/domain"
	"signet/internal/port"
)

// StatsService provides aggregate statistics.
type StatsService interface {
	GetStats(ctx context.Context, owner domain.Owner) (*domain.OwnerStats, error)
}

type statsService struct {
	statsRepo port.StatsRepository
}

// NewStatsService creates a new StatsService implementation.
func NewStatsService(statsRepo port.StatsRepository) StatsService {
	return &statsService{statsRepo: statsRepo}
}

func (s *statsService) GetStats(ctx context.Context, owner domain.Owner) (*domain.OwnerStats, error) {
	return s.statsRepo.GetOwnerStats(ctx, owner.ID)
}
