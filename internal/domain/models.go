package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Document is an owner-scoped envelope around one PDF.
type Document struct {
	ID                  uuid.UUID       `db:"id" json:"id"`
	OwnerID             uuid.UUID       `db:"owner_id" json:"owner_id"`
	OwnerEmail          string          `db:"owner_email" json:"owner_email"`
	OwnerName           string          `db:"owner_name" json:"owner_name"`
	Title               string          `db:"title" json:"title"`
	Status              DocumentStatus  `db:"status" json:"status"`
	StatusBeforeDelete  *DocumentStatus `db:"status_before_delete" json:"-"`
	OriginalFileKey     string          `db:"original_file_key" json:"-"`
	SignedFileKey       *string         `db:"signed_file_key" json:"-"`
	VoidedFileKey       *string         `db:"voided_file_key" json:"-"`
	SigningOrderEnabled bool            `db:"signing_order_enabled" json:"signing_order_enabled"`
	RenderWidth         float64         `db:"render_width" json:"render_width"`
	RenderHeight        float64         `db:"render_height" json:"render_height"`
	SentAt              *time.Time      `db:"sent_at" json:"sent_at"`
	CompletedAt         *time.Time      `db:"completed_at" json:"completed_at"`
	CreatedAt           time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time       `db:"updated_at" json:"updated_at"`
}

// WorkingFileKey returns the key of the current working copy: the latest
// signed bytes when any recipient has completed, else the original upload.
func (d *Document) WorkingFileKey() string {
	if d.SignedFileKey != nil && *d.SignedFileKey != "" {
		return *d.SignedFileKey
	}
	return d.OriginalFileKey
}

// SignRequest is one recipient's task against one document.
type SignRequest struct {
	ID              uuid.UUID         `db:"id" json:"id"`
	DocumentID      uuid.UUID         `db:"document_id" json:"document_id"`
	RecipientEmail  string            `db:"recipient_email" json:"recipient_email"`
	RecipientName   string            `db:"recipient_name" json:"recipient_name"`
	Token           string            `db:"token" json:"-"`
	SigningOrder    int               `db:"signing_order" json:"signing_order"`
	SentAt          *time.Time        `db:"sent_at" json:"sent_at"`
	ExpiresAt       *time.Time        `db:"expires_at" json:"expires_at"`
	Status          SignRequestStatus `db:"status" json:"status"`
	Fields          Fields            `db:"fields" json:"fields"`
	Signatures      StringMap         `db:"signatures" json:"-"`
	LegacySignature *string           `db:"legacy_signature" json:"-"`
	FieldValues     StringMap         `db:"field_values" json:"field_values"`
	SignerIP        string            `db:"signer_ip" json:"-"`
	SignerUserAgent string            `db:"signer_user_agent" json:"-"`
	SignedAt        *time.Time        `db:"signed_at" json:"signed_at"`
	DeclinedAt      *time.Time        `db:"declined_at" json:"declined_at"`
	DeclineReason   string            `db:"decline_reason" json:"decline_reason,omitempty"`
	CreatedAt       time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time         `db:"updated_at" json:"updated_at"`
}

// IsExpired reports whether the link expired before now. Requests without an
// expiry (draft mode) never expire.
func (r *SignRequest) IsExpired(now time.Time) bool {
	return r.ExpiresAt != nil && now.After(*r.ExpiresAt)
}

// DisplayName returns the recipient name, falling back to the email address.
func (r *SignRequest) DisplayName() string {
	if r.RecipientName != "" {
		return r.RecipientName
	}
	return r.RecipientEmail
}

// SignaturePayload resolves the payload for a signature field: the per-field
// payload first, then the legacy single payload.
func (r *SignRequest) SignaturePayload(fieldID string) (string, bool) {
	if p, ok := r.Signatures[fieldID]; ok && p != "" {
		return p, true
	}
	if r.LegacySignature != nil && *r.LegacySignature != "" {
		return *r.LegacySignature, true
	}
	return "", false
}

// UnsignedRequiredField returns the first required signature or initial field
// with no resolvable payload.
func (r *SignRequest) UnsignedRequiredField() (*Field, bool) {
	for i := range r.Fields {
		f := &r.Fields[i]
		if !f.Type.IsSignatureLike() || !f.Required {
			continue
		}
		if _, ok := r.SignaturePayload(f.ID); !ok {
			return f, true
		}
	}
	return nil, false
}

// AuditLog is an append-only audit trail entry.
type AuditLog struct {
	ID            uuid.UUID       `db:"id" json:"id"`
	DocumentID    uuid.UUID       `db:"document_id" json:"document_id"`
	SignRequestID *uuid.UUID      `db:"sign_request_id" json:"sign_request_id"`
	ActorType     ActorType       `db:"actor_type" json:"actor_type"`
	ActorIdentity string          `db:"actor_identity" json:"actor_identity"`
	EventType     AuditEvent      `db:"event_type" json:"event_type"`
	Metadata      json.RawMessage `db:"metadata" json:"metadata"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
}

// Owner identifies the authenticated owner calling an owner operation.
type Owner struct {
	ID    uuid.UUID
	Email string
	Name  string
}

// Recipient is the addressee of a notification.
type Recipient struct {
	Email string
	Name  string
}

// OwnerStats aggregates an owner's documents for the dashboard.
type OwnerStats struct {
	TotalDocuments int `db:"total_documents" json:"total_documents"`
	Draft          int `db:"draft" json:"draft"`
	Pending        int `db:"pending" json:"pending"`
	Completed      int `db:"completed" json:"completed"`
	Cancelled      int `db:"cancelled" json:"cancelled"`
	Voided         int `db:"voided" json:"voided"`
	Deleted        int `db:"deleted" json:"deleted"`
	// AwaitingSignatures counts sent, unsigned requests on pending documents.
	AwaitingSignatures int `db:"awaiting_signatures" json:"awaiting_signatures"`
}
