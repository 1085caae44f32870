package port

import (
	"context"

	"github.com/google/uuid"

	"signet/internal/domain"
)

// DocumentRepository defines the contract for document persistence.
// Status changes are conditional updates: they return domain.ErrStatusConflict
// when the row is no longer in one of the expected statuses.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, docID uuid.UUID) (*domain.Document, error)
	GetByOwner(ctx context.Context, ownerID, docID uuid.UUID) (*domain.Document, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID, offset, limit int) ([]domain.Document, int, error)
	TransitionStatus(ctx context.Context, docID uuid.UUID, from []domain.DocumentStatus, to domain.DocumentStatus) error
	MarkVoided(ctx context.Context, docID uuid.UUID, voidedFileKey string) error
	SoftDelete(ctx context.Context, ownerID, docID uuid.UUID) error
	Restore(ctx context.Context, ownerID, docID uuid.UUID) error
}

// AuditRepository defines the contract for the append-only audit trail.
type AuditRepository interface {
	Create(ctx context.Context, entry *domain.AuditLog) error
	ListByDocument(ctx context.Context, documentID uuid.UUID, offset, limit int) ([]domain.AuditLog, int, error)
	ListAllByDocument(ctx context.Context, documentID uuid.UUID) ([]domain.AuditLog, error)
}

// DocumentLocker serializes work on one document across processes.
type DocumentLocker interface {
	WithDocumentLock(ctx context.Context, docID uuid.UUID, fn func(ctx context.Context) error) error
}
