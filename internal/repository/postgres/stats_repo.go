package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"signet/internal/domain"
	"signet/internal/port"
)

type statsRepo struct {
	db *sqlx.DB
}

// NewStatsRepo creates a new PostgreSQL-backed StatsRepository.
func NewStatsRepo(db *sqlx.DB) port.StatsRepository {
	return &statsRepo{db: db}
}

const ownerDocStatsQuery = `SELECT
	COUNT(*) AS total_documents,
	COUNT(CASE WHEN status = 'draft' THEN 1 END) AS draft,
	COUNT(CASE WHEN status = 'pending' THEN 1 END) AS pending,
	COUNT(CASE WHEN status = 'completed' THEN 1 END) AS completed,
	COUNT(CASE WHEN status = 'cancelled' THEN 1 END) AS cancelled,
	COUNT(CASE WHEN status = 'voided' THEN 1 END) AS voided,
	COUNT(CASE WHEN status = 'deleted' THEN 1 END) AS deleted
FROM documents WHERE owner_id = $1`

const ownerAwaitingQuery = `SELECT COUNT(*)
FROM sign_requests sr
INNER JOIN documents d ON d.id = sr.document_id
WHERE d.owner_id = $1
	AND d.status = 'pending'
	AND sr.status IN ('pending', 'viewed')
	AND sr.sent_at IS NOT NULL`

func (r *statsRepo) GetOwnerStats(ctx context.Context, ownerID uuid.UUID) (*domain.OwnerStats, error) {
	var stats domain.OwnerStats
	if err := conn(ctx, r.db).GetContext(ctx, &stats, ownerDocStatsQuery, ownerID); err != nil {
		return nil, fmt.Errorf("statsRepo.GetOwnerStats docs: %w", err)
	}

	var awaiting int
	if err := conn(ctx, r.db).GetContext(ctx, &awaiting, ownerAwaitingQuery, ownerID); err != nil {
		return nil, fmt.Errorf("statsRepo.GetOwnerStats sign requests: %w", err)
	}
	stats.AwaitingSignatures = awaiting

	return &stats, nil
}
