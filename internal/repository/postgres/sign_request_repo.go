package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"signet/internal/domain"
	"signet/internal/port"
)

// openStatuses matches requests that can still be signed or declined.
const openStatuses = "status IN ('pending', 'viewed')"

type signRequestRepo struct {
	db *sqlx.DB
}

// NewSignRequestRepo creates a new PostgreSQL-backed SignRequestRepository.
func NewSignRequestRepo(db *sqlx.DB) port.SignRequestRepository {
	return &signRequestRepo{db: db}
}

const insertSignRequest = `INSERT INTO sign_requests (
	id, document_id, recipient_email, recipient_name, token, signing_order,
	sent_at, expires_at, status, fields, signatures, field_values,
	created_at, updated_at
) VALUES (
	$1, $2, $3, $4, $5, $6,
	$7, $8, $9, $10, $11, $12,
	$13, $14
)`

func insertArgs(req *domain.SignRequest) []interface{} {
	return []interface{}{
		req.ID, req.DocumentID, req.RecipientEmail, req.RecipientName, req.Token, req.SigningOrder,
		req.SentAt, req.ExpiresAt, req.Status, req.Fields, req.Signatures, req.FieldValues,
		req.CreatedAt, req.UpdatedAt,
	}
}

func stampCreated(req *domain.SignRequest, now time.Time) {
	req.CreatedAt = now
	req.UpdatedAt = now
	if req.Signatures == nil {
		req.Signatures = domain.StringMap{}
	}
	if req.FieldValues == nil {
		req.FieldValues = domain.StringMap{}
	}
	if req.Fields == nil {
		req.Fields = domain.Fields{}
	}
}

func mapInsertErr(method string, err error) error {
	if strings.Contains(err.Error(), "duplicate key") && strings.Contains(err.Error(), "recipient") {
		return domain.ErrDuplicateRecipient
	}
	return fmt.Errorf("signRequestRepo.%s: %w", method, err)
}

func (r *signRequestRepo) Create(ctx context.Context, req *domain.SignRequest) error {
	stampCreated(req, time.Now().UTC())
	if _, err := conn(ctx, r.db).ExecContext(ctx, insertSignRequest, insertArgs(req)...); err != nil {
		return mapInsertErr("Create", err)
	}
	return nil
}

func (r *signRequestRepo) CreateBatch(ctx context.Context, reqs []domain.SignRequest) error {
	if len(reqs) == 0 {
		return nil
	}
	now := time.Now().UTC()
	return inTx(ctx, r.db, "signRequestRepo.CreateBatch", func(q querier) error {
		for i := range reqs {
			stampCreated(&reqs[i], now)
			if _, err := q.ExecContext(ctx, insertSignRequest, insertArgs(&reqs[i])...); err != nil {
				return mapInsertErr("CreateBatch", err)
			}
		}
		return nil
	})
}

func (r *signRequestRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.SignRequest, error) {
	var req domain.SignRequest
	err := conn(ctx, r.db).GetContext(ctx, &req, "SELECT * FROM sign_requests WHERE id = $1", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrSignRequestNotFound
		}
		return nil, fmt.Errorf("signRequestRepo.GetByID: %w", err)
	}
	return &req, nil
}

func (r *signRequestRepo) GetByToken(ctx context.Context, token string) (*domain.SignRequest, error) {
	var req domain.SignRequest
	err := conn(ctx, r.db).GetContext(ctx, &req, "SELECT * FROM sign_requests WHERE token = $1", token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrSignRequestNotFound
		}
		return nil, fmt.Errorf("signRequestRepo.GetByToken: %w", err)
	}
	return &req, nil
}

func (r *signRequestRepo) ListByDocument(ctx context.Context, documentID uuid.UUID) ([]domain.SignRequest, error) {
	var reqs []domain.SignRequest
	err := conn(ctx, r.db).SelectContext(ctx, &reqs,
		`SELECT * FROM sign_requests WHERE document_id = $1
		 ORDER BY signing_order ASC, created_at ASC`, documentID)
	if err != nil {
		return nil, fmt.Errorf("signRequestRepo.ListByDocument: %w", err)
	}
	return reqs, nil
}

func (r *signRequestRepo) CountByStatus(ctx context.Context, documentID uuid.UUID) (signed, total int, err error) {
	var counts struct {
		Signed int `db:"signed"`
		Total  int `db:"total"`
	}
	err = conn(ctx, r.db).GetContext(ctx, &counts,
		`SELECT COUNT(*) FILTER (WHERE status = 'signed') AS signed, COUNT(*) AS total
		 FROM sign_requests WHERE document_id = $1`, documentID)
	if err != nil {
		return 0, 0, fmt.Errorf("signRequestRepo.CountByStatus: %w", err)
	}
	return counts.Signed, counts.Total, nil
}

// execOpen runs an update restricted to open requests.
func (r *signRequestRepo) execOpen(ctx context.Context, method, query string, args ...interface{}) error {
	result, err := conn(ctx, r.db).ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("signRequestRepo.%s: %w", method, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrStatusConflict
	}
	return nil
}

func (r *signRequestRepo) UpdateFields(ctx context.Context, id uuid.UUID, fields domain.Fields) error {
	return r.execOpen(ctx, "UpdateFields",
		`UPDATE sign_requests SET fields = $2, updated_at = NOW() WHERE id = $1 AND `+openStatuses,
		id, fields)
}

func (r *signRequestRepo) UpdateRecipient(ctx context.Context, id uuid.UUID, email, name string) error {
	err := r.execOpen(ctx, "UpdateRecipient",
		`UPDATE sign_requests SET recipient_email = $2, recipient_name = $3, updated_at = NOW()
		 WHERE id = $1 AND `+openStatuses,
		id, email, name)
	if err != nil && strings.Contains(err.Error(), "duplicate key") {
		return domain.ErrDuplicateRecipient
	}
	return err
}

func (r *signRequestRepo) SaveSignature(ctx context.Context, id uuid.UUID, fieldID *string, payload string) error {
	if fieldID == nil {
		return r.execOpen(ctx, "SaveSignature",
			`UPDATE sign_requests SET legacy_signature = $2, updated_at = NOW() WHERE id = $1 AND `+openStatuses,
			id, payload)
	}
	return r.execOpen(ctx, "SaveSignature",
		`UPDATE sign_requests SET signatures = signatures || jsonb_build_object($2::text, $3::text), updated_at = NOW()
		 WHERE id = $1 AND `+openStatuses,
		id, *fieldID, payload)
}

func (r *signRequestRepo) SaveFieldValue(ctx context.Context, id uuid.UUID, fieldID, value string) error {
	return r.execOpen(ctx, "SaveFieldValue",
		`UPDATE sign_requests SET field_values = field_values || jsonb_build_object($2::text, $3::text), updated_at = NOW()
		 WHERE id = $1 AND `+openStatuses,
		id, fieldID, value)
}

func (r *signRequestRepo) MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time, expiresAt *time.Time) error {
	return r.execOpen(ctx, "MarkSent",
		`UPDATE sign_requests SET sent_at = $2, expires_at = COALESCE($3, expires_at), updated_at = NOW()
		 WHERE id = $1 AND `+openStatuses,
		id, sentAt, expiresAt)
}

func (r *signRequestRepo) ClaimInvitation(ctx context.Context, id uuid.UUID, sentAt, expiresAt time.Time) error {
	return r.execOpen(ctx, "ClaimInvitation",
		`UPDATE sign_requests SET sent_at = $2, expires_at = $3, updated_at = NOW()
		 WHERE id = $1 AND sent_at IS NULL AND `+openStatuses,
		id, sentAt, expiresAt)
}

func (r *signRequestRepo) ReleaseInvitation(ctx context.Context, id uuid.UUID, sentAt time.Time) error {
	return r.execOpen(ctx, "ReleaseInvitation",
		`UPDATE sign_requests SET sent_at = NULL, updated_at = NOW()
		 WHERE id = $1 AND sent_at = $2 AND `+openStatuses,
		id, sentAt)
}

func (r *signRequestRepo) SetExpiry(ctx context.Context, id uuid.UUID, expiresAt time.Time) error {
	return r.execOpen(ctx, "SetExpiry",
		`UPDATE sign_requests SET expires_at = $2, updated_at = NOW() WHERE id = $1 AND `+openStatuses,
		id, expiresAt)
}

func (r *signRequestRepo) MarkSigned(ctx context.Context, u port.SignedUpdate) error {
	return inTx(ctx, r.db, "signRequestRepo.MarkSigned", func(q querier) error {
		result, err := q.ExecContext(ctx,
			`UPDATE sign_requests
			 SET status = 'signed', signed_at = $2, signer_ip = $3, signer_user_agent = $4, updated_at = NOW()
			 WHERE id = $1 AND `+openStatuses,
			u.SignRequestID, u.SignedAt, u.SignerIP, u.SignerUserAgent)
		if err != nil {
			return fmt.Errorf("signRequestRepo.MarkSigned: %w", err)
		}
		if rows, _ := result.RowsAffected(); rows == 0 {
			return domain.ErrStatusConflict
		}

		result, err = q.ExecContext(ctx,
			`UPDATE documents SET signed_file_key = $2, updated_at = NOW()
			 WHERE id = $1 AND status = 'pending'`,
			u.DocumentID, u.SignedFileKey)
		if err != nil {
			return fmt.Errorf("signRequestRepo.MarkSigned document: %w", err)
		}
		if rows, _ := result.RowsAffected(); rows == 0 {
			return domain.ErrDocumentNotSignable
		}
		return nil
	})
}

func (r *signRequestRepo) MarkDeclined(ctx context.Context, u port.DeclineUpdate) error {
	return r.execOpen(ctx, "MarkDeclined",
		`UPDATE sign_requests
		 SET status = 'declined', declined_at = $2, signer_ip = $3, signer_user_agent = $4, decline_reason = $5, updated_at = NOW()
		 WHERE id = $1 AND `+openStatuses,
		u.SignRequestID, u.DeclinedAt, u.SignerIP, u.SignerUserAgent, u.Reason)
}
