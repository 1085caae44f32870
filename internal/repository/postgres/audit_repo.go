package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"signet/internal/domain"
	"signet/internal/port"
)

type auditRepo struct {
	db *sqlx.DB
}

// NewAuditRepo creates a new PostgreSQL-backed AuditRepository.
func NewAuditRepo(db *sqlx.DB) port.AuditRepository {
	return &auditRepo{db: db}
}

func (r *auditRepo) Create(ctx context.Context, entry *domain.AuditLog) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	metadata := entry.Metadata
	if len(metadata) == 0 {
		metadata = []byte("{}")
	}
	_, err := conn(ctx, r.db).ExecContext(ctx,
		`INSERT INTO audit_logs (id, document_id, sign_request_id, actor_type, actor_identity, event_type, metadata, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		entry.ID, entry.DocumentID, entry.SignRequestID, entry.ActorType, entry.ActorIdentity,
		entry.EventType, []byte(metadata), entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("auditRepo.Create: %w", err)
	}
	return nil
}

func (r *auditRepo) ListByDocument(ctx context.Context, documentID uuid.UUID, offset, limit int) ([]domain.AuditLog, int, error) {
	var total int
	err := conn(ctx, r.db).GetContext(ctx, &total,
		`SELECT COUNT(*) FROM audit_logs WHERE document_id = $1`, documentID)
	if err != nil {
		return nil, 0, fmt.Errorf("auditRepo.ListByDocument count: %w", err)
	}

	var entries []domain.AuditLog
	err = conn(ctx, r.db).SelectContext(ctx, &entries,
		`SELECT * FROM audit_logs
		 WHERE document_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3`,
		documentID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("auditRepo.ListByDocument: %w", err)
	}
	return entries, total, nil
}

func (r *auditRepo) ListAllByDocument(ctx context.Context, documentID uuid.UUID) ([]domain.AuditLog, error) {
	var entries []domain.AuditLog
	err := conn(ctx, r.db).SelectContext(ctx, &entries,
		`SELECT * FROM audit_logs WHERE document_id = $1 ORDER BY created_at ASC`, documentID)
	if err != nil {
		return nil, fmt.Errorf("auditRepo.ListAllByDocument: %w", err)
	}
	return entries, nil
}
