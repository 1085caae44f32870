package port

import (
	"context"

	"github.com/google/uuid"

	"signet/internal/domain"
)

// StatsRepository provides aggregate statistics queries.
type StatsRepository interface {
	GetOwnerStats(ctx context.Context, ownerID uuid.UUID) (*domain.OwnerStats, error)
}
