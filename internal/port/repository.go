package port

import (
	"context"
	"time"

	"github.com/google/uuid"

	"signet/internal/domain"
)

// SignedUpdate is the result of one recipient's completion, persisted atomically.
type SignedUpdate struct {
	SignRequestID   uuid.UUID
	DocumentID      uuid.UUID
	SignedFileKey   string
	SignerIP        string
	SignerUserAgent string
	SignedAt        time.Time
}

// DeclineUpdate records a recipient declining.
type DeclineUpdate struct {
	SignRequestID   uuid.UUID
	SignerIP        string
	SignerUserAgent string
	Reason          string
	DeclinedAt      time.Time
}

// SignRequestRepository defines the contract for sign request persistence.
// Writes that must not touch finished requests only match pending or viewed
// rows and return domain.ErrStatusConflict otherwise.
type SignRequestRepository interface {
	Create(ctx context.Context, req *domain.SignRequest) error
	CreateBatch(ctx context.Context, reqs []domain.SignRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.SignRequest, error)
	GetByToken(ctx context.Context, token string) (*domain.SignRequest, error)
	ListByDocument(ctx context.Context, documentID uuid.UUID) ([]domain.SignRequest, error)
	CountByStatus(ctx context.Context, documentID uuid.UUID) (signed, total int, err error)

	UpdateFields(ctx context.Context, id uuid.UUID, fields domain.Fields) error
	UpdateRecipient(ctx context.Context, id uuid.UUID, email, name string) error
	SaveSignature(ctx context.Context, id uuid.UUID, fieldID *string, payload string) error
	SaveFieldValue(ctx context.Context, id uuid.UUID, fieldID, value string) error
	MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time, expiresAt *time.Time) error
	// ClaimInvitation stamps sent_at on an open request that was never sent.
	// Exactly one concurrent caller wins; the rest get domain.ErrStatusConflict.
	ClaimInvitation(ctx context.Context, id uuid.UUID, sentAt time.Time, expiresAt time.Time) error
	// ReleaseInvitation clears a claim made at sentAt whose delivery failed.
	ReleaseInvitation(ctx context.Context, id uuid.UUID, sentAt time.Time) error
	SetExpiry(ctx context.Context, id uuid.UUID, expiresAt time.Time) error

	// MarkSigned flips the request to signed and repoints the document's
	// working copy in one transaction.
	MarkSigned(ctx context.Context, update SignedUpdate) error
	MarkDeclined(ctx context.Context, update DeclineUpdate) error
}
