package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"signet/internal/auditexport"
	"signet/internal/domain"
	"signet/internal/port"
)

const (
	tokenBytes      = 32
	pdfContentType  = "application/pdf"
	maxReasonLength = 1000
)

// SigningOptions configures both signing services.
type SigningOptions struct {
	Bucket        string
	LinkTTL       time.Duration
	PresignExpiry int64
	MaxFileSize   int64 // bytes
	Now           func() time.Time
}

func (o SigningOptions) now() time.Time {
	if o.Now != nil {
		return o.Now().UTC()
	}
	return time.Now().UTC()
}

// newToken returns 256 bits of crypto randomness, hex encoded.
func newToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating sign request token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func originalFileKey(ownerID, docID uuid.UUID) string {
	return fmt.Sprintf("owners/%s/documents/%s/original.pdf", ownerID, docID)
}

func signedFileKey(doc *domain.Document, reqID uuid.UUID) string {
	return fmt.Sprintf("owners/%s/documents/%s/signed/%s-%s.pdf", doc.OwnerID, doc.ID, reqID, uuid.New())
}

func voidedFileKey(doc *domain.Document) string {
	return fmt.Sprintf("owners/%s/documents/%s/voided/%s.pdf", doc.OwnerID, doc.ID, uuid.New())
}

// viewFileKey is the copy shown to anyone looking at the document: the void
// stamped artifact once voided, else the working copy.
func viewFileKey(doc *domain.Document) string {
	if doc.Status == domain.DocumentStatusVoided && doc.VoidedFileKey != nil && *doc.VoidedFileKey != "" {
		return *doc.VoidedFileKey
	}
	return doc.WorkingFileKey()
}

// artifactMetadata tags a stored PDF with the records it belongs to.
func artifactMetadata(doc *domain.Document, kind string, reqID *uuid.UUID) map[string]string {
	m := map[string]string{
		"document-id": doc.ID.String(),
		"owner-id":    doc.OwnerID.String(),
		"artifact":    kind,
	}
	if reqID != nil {
		m["sign-request-id"] = reqID.String()
	}
	return m
}

// downloadFilename names the owner's copy after the title and its state.
func downloadFilename(doc *domain.Document) string {
	name := auditexport.SanitizeFilename(doc.Title)
	switch {
	case doc.Status == domain.DocumentStatusVoided && doc.VoidedFileKey != nil:
		name += "_voided"
	case doc.SignedFileKey != nil:
		name += "_signed"
	}
	return name + ".pdf"
}

func isOpen(s domain.SignRequestStatus) bool {
	return s == domain.SignRequestStatusPending || s == domain.SignRequestStatusViewed
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateEmail(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return fmt.Errorf("%w: %q is not a valid email address", domain.ErrInvalidRecipient, email)
	}
	return nil
}

// validateFields checks what can be checked without the PDF: ids present
// and unique, known types.
func validateFields(fields domain.Fields) error {
	seen := make(map[string]bool, len(fields))
	for i := range fields {
		f := &fields[i]
		if strings.TrimSpace(f.ID) == "" {
			return fmt.Errorf("%w: field %d has no id", domain.ErrInvalidField, i)
		}
		if seen[f.ID] {
			return fmt.Errorf("%w: duplicate field id %s", domain.ErrInvalidField, f.ID)
		}
		seen[f.ID] = true
		if !f.Type.Valid() {
			return fmt.Errorf("%w: field %s has unknown type %q", domain.ErrInvalidField, f.ID, f.Type)
		}
	}
	return nil
}

// auditor writes audit entries. Failures are logged but never block business logic.
type auditor struct {
	repo port.AuditRepository
	now  func() time.Time
}

func (a auditor) record(ctx context.Context, docID uuid.UUID, reqID *uuid.UUID, actor domain.ActorType, identity string, event domain.AuditEvent, meta map[string]interface{}) {
	if a.repo == nil {
		return
	}
	var metadata json.RawMessage
	if len(meta) > 0 {
		b, err := json.Marshal(meta)
		if err != nil {
			log.Printf("auditor.record: failed to marshal metadata for %s/%s: %v", event, docID, err)
		} else {
			metadata = b
		}
	}
	entry := &domain.AuditLog{
		ID:            uuid.New(),
		DocumentID:    docID,
		SignRequestID: reqID,
		ActorType:     actor,
		ActorIdentity: identity,
		EventType:     event,
		Metadata:      metadata,
		CreatedAt:     a.now(),
	}
	if err := a.repo.Create(ctx, entry); err != nil {
		log.Printf("auditor.record: failed to write audit entry for %s/%s: %v", event, docID, err)
	}
}
