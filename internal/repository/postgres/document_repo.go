package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"signet/internal/domain"
	"signet/internal/port"
)

type documentRepo struct {
	db *sqlx.DB
}

// NewDocumentRepo creates a new PostgreSQL-backed DocumentRepository.
func NewDocumentRepo(db *sqlx.DB) port.DocumentRepository {
	return &documentRepo{db: db}
}

func (r *documentRepo) Create(ctx context.Context, doc *domain.Document) error {
	now := time.Now().UTC()
	doc.CreatedAt = now
	doc.UpdatedAt = now

	query := `INSERT INTO documents (
		id, owner_id, owner_email, owner_name, title, status,
		original_file_key, signing_order_enabled, render_width, render_height,
		created_at, updated_at
	) VALUES (
		$1, $2, $3, $4, $5, $6,
		$7, $8, $9, $10,
		$11, $12
	)`

	_, err := conn(ctx, r.db).ExecContext(ctx, query,
		doc.ID, doc.OwnerID, doc.OwnerEmail, doc.OwnerName, doc.Title, doc.Status,
		doc.OriginalFileKey, doc.SigningOrderEnabled, doc.RenderWidth, doc.RenderHeight,
		doc.CreatedAt, doc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("documentRepo.Create: %w", err)
	}
	return nil
}

func (r *documentRepo) GetByID(ctx context.Context, docID uuid.UUID) (*domain.Document, error) {
	var doc domain.Document
	err := conn(ctx, r.db).GetContext(ctx, &doc, "SELECT * FROM documents WHERE id = $1", docID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, fmt.Errorf("documentRepo.GetByID: %w", err)
	}
	return &doc, nil
}

func (r *documentRepo) GetByOwner(ctx context.Context, ownerID, docID uuid.UUID) (*domain.Document, error) {
	var doc domain.Document
	err := conn(ctx, r.db).GetContext(ctx, &doc,
		"SELECT * FROM documents WHERE id = $1 AND owner_id = $2", docID, ownerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, fmt.Errorf("documentRepo.GetByOwner: %w", err)
	}
	return &doc, nil
}

func (r *documentRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID, offset, limit int) ([]domain.Document, int, error) {
	var total int
	err := conn(ctx, r.db).GetContext(ctx, &total,
		"SELECT COUNT(*) FROM documents WHERE owner_id = $1 AND status <> 'deleted'", ownerID)
	if err != nil {
		return nil, 0, fmt.Errorf("documentRepo.ListByOwner count: %w", err)
	}

	var docs []domain.Document
	err = conn(ctx, r.db).SelectContext(ctx, &docs,
		`SELECT * FROM documents WHERE owner_id = $1 AND status <> 'deleted'
		 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		ownerID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("documentRepo.ListByOwner: %w", err)
	}
	return docs, total, nil
}

func (r *documentRepo) TransitionStatus(ctx context.Context, docID uuid.UUID, from []domain.DocumentStatus, to domain.DocumentStatus) error {
	query, args, err := sqlx.In(`
		UPDATE documents
		SET status = ?,
			sent_at = CASE WHEN ? = 'pending' THEN COALESCE(sent_at, NOW()) ELSE sent_at END,
			completed_at = CASE WHEN ? = 'completed' THEN NOW() ELSE completed_at END,
			updated_at = NOW()
		WHERE id = ? AND status IN (?)`,
		to, string(to), string(to), docID, from)
	if err != nil {
		return fmt.Errorf("documentRepo.TransitionStatus: %w", err)
	}
	result, err := conn(ctx, r.db).ExecContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return fmt.Errorf("documentRepo.TransitionStatus: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrStatusConflict
	}
	return nil
}

func (r *documentRepo) MarkVoided(ctx context.Context, docID uuid.UUID, voidedFileKey string) error {
	result, err := conn(ctx, r.db).ExecContext(ctx,
		`UPDATE documents SET status = 'voided', voided_file_key = $2, updated_at = NOW()
		 WHERE id = $1 AND status = 'pending'`,
		docID, voidedFileKey)
	if err != nil {
		return fmt.Errorf("documentRepo.MarkVoided: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrStatusConflict
	}
	return nil
}

func (r *documentRepo) SoftDelete(ctx context.Context, ownerID, docID uuid.UUID) error {
	result, err := conn(ctx, r.db).ExecContext(ctx,
		`UPDATE documents SET status_before_delete = status, status = 'deleted', updated_at = NOW()
		 WHERE id = $1 AND owner_id = $2 AND status <> 'deleted'`,
		docID, ownerID)
	if err != nil {
		return fmt.Errorf("documentRepo.SoftDelete: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrStatusConflict
	}
	return nil
}

func (r *documentRepo) Restore(ctx context.Context, ownerID, docID uuid.UUID) error {
	result, err := conn(ctx, r.db).ExecContext(ctx,
		`UPDATE documents SET status = COALESCE(status_before_delete, 'draft'), status_before_delete = NULL, updated_at = NOW()
		 WHERE id = $1 AND owner_id = $2 AND status = 'deleted'`,
		docID, ownerID)
	if err != nil {
		return fmt.Errorf("documentRepo.Restore: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrStatusConflict
	}
	return nil
}
