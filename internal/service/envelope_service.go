package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"signet/internal/auditexport"
	"signet/internal/domain"
	"signet/internal/email"
	"signet/internal/geometry"
	"signet/internal/port"
)

const (
	pdfMagic     = "%PDF-"
	voidLabel    = "VOID"
	expiryLayout = "Jan 2, 2006"
)

// CreateDocumentInput is the DTO for uploading a new document.
type CreateDocumentInput struct {
	Owner               domain.Owner
	Title               string
	FileName            string
	File                io.Reader
	Size                int64
	SigningOrderEnabled bool
	RenderWidth         float64
	RenderHeight        float64
}

// RecipientCorrection fixes the address or name of a not-yet-signed recipient.
type RecipientCorrection struct {
	SignRequestID uuid.UUID
	Email         string
	Name          string
}

// DocumentDetail is a document with its sign requests.
type DocumentDetail struct {
	Document     *domain.Document
	SignRequests []domain.SignRequest
}

// EnvelopeService orchestrates a document across all of its recipients.
type EnvelopeService interface {
	CreateDocument(ctx context.Context, input CreateDocumentInput) (*domain.Document, error)
	AddRecipients(ctx context.Context, owner domain.Owner, docID uuid.UUID, inputs []RecipientInput) ([]domain.SignRequest, error)
	UpdateFields(ctx context.Context, owner domain.Owner, docID, reqID uuid.UUID, fields domain.Fields) (*domain.SignRequest, error)
	Send(ctx context.Context, owner domain.Owner, docID uuid.UUID) (*domain.Document, error)
	Resend(ctx context.Context, owner domain.Owner, docID uuid.UUID, corrections []RecipientCorrection) (*domain.Document, error)
	Cancel(ctx context.Context, owner domain.Owner, docID uuid.UUID) (*domain.Document, error)
	Delete(ctx context.Context, owner domain.Owner, docID uuid.UUID) error
	Restore(ctx context.Context, owner domain.Owner, docID uuid.UUID) (*domain.Document, error)
	Get(ctx context.Context, owner domain.Owner, docID uuid.UUID) (*DocumentDetail, error)
	List(ctx context.Context, owner domain.Owner, offset, limit int) ([]domain.Document, int, error)
	DownloadURL(ctx context.Context, owner domain.Owner, docID uuid.UUID) (string, error)
	AuditTrail(ctx context.Context, owner domain.Owner, docID uuid.UUID, offset, limit int) ([]domain.AuditLog, int, error)
	ExportAudit(ctx context.Context, owner domain.Owner, docID uuid.UUID, format auditexport.Format) (*auditexport.File, error)

	// Complete signs on behalf of a recipient and finalizes the document
	// when every recipient has signed.
	Complete(ctx context.Context, token, ip, userAgent string) (*domain.SignRequest, error)
	// Decline records a recipient declining and voids the document.
	Decline(ctx context.Context, token, ip, userAgent, reason string) (*domain.SignRequest, error)
}

type envelopeService struct {
	docRepo  port.DocumentRepository
	reqRepo  port.SignRequestRepository
	auditLog port.AuditRepository
	locker   port.DocumentLocker
	renderer port.DocumentRenderer
	storage  port.ObjectStorage
	notifier port.Notifier
	signing  SignRequestService
	audit    auditor
	opts     SigningOptions
}

// NewEnvelopeService creates a new EnvelopeService implementation.
func NewEnvelopeService(
	docRepo port.DocumentRepository,
	reqRepo port.SignRequestRepository,
	auditRepo port.AuditRepository,
	locker port.DocumentLocker,
	renderer port.DocumentRenderer,
	storage port.ObjectStorage,
	notifier port.Notifier,
	signing SignRequestService,
	opts SigningOptions,
) EnvelopeService {
	return &envelopeService{
		docRepo:  docRepo,
		reqRepo:  reqRepo,
		auditLog: auditRepo,
		locker:   locker,
		renderer: renderer,
		storage:  storage,
		notifier: notifier,
		signing:  signing,
		audit:    auditor{repo: auditRepo, now: opts.now},
		opts:     opts,
	}
}

func (s *envelopeService) CreateDocument(ctx context.Context, input CreateDocumentInput) (*domain.Document, error) {
	if s.opts.MaxFileSize > 0 && input.Size > s.opts.MaxFileSize {
		return nil, domain.ErrFileTooLarge
	}
	limit := s.opts.MaxFileSize
	if limit <= 0 {
		limit = 1 << 62
	}
	data, err := io.ReadAll(io.LimitReader(input.File, limit+1))
	if err != nil {
		return nil, fmt.Errorf("reading upload: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, domain.ErrFileTooLarge
	}
	if !bytes.HasPrefix(data, []byte(pdfMagic)) {
		return nil, domain.ErrInvalidPDF
	}
	pages, err := s.renderer.MeasurePages(data)
	if err != nil {
		return nil, err
	}
	if len(pages) == 0 {
		return nil, domain.ErrInvalidPDF
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(input.FileName), filepath.Ext(input.FileName))
	}
	if title == "" || title == "." {
		title = "Untitled document"
	}

	doc := &domain.Document{
		ID:                  uuid.New(),
		OwnerID:             input.Owner.ID,
		OwnerEmail:          normalizeEmail(input.Owner.Email),
		OwnerName:           input.Owner.Name,
		Title:               title,
		Status:              domain.DocumentStatusDraft,
		SigningOrderEnabled: input.SigningOrderEnabled,
		RenderWidth:         input.RenderWidth,
		RenderHeight:        input.RenderHeight,
	}
	if doc.RenderWidth <= 0 {
		doc.RenderWidth = geometry.LegacyRenderWidth
	}
	doc.OriginalFileKey = originalFileKey(doc.OwnerID, doc.ID)

	log.Printf("envelopeService.CreateDocument: uploading %q (%d pages, %d bytes) for owner %s",
		title, len(pages), len(data), doc.OwnerID)

	if _, err := s.storage.Upload(ctx, port.UploadInput{
		Bucket:      s.opts.Bucket,
		Key:         doc.OriginalFileKey,
		Body:        bytes.NewReader(data),
		ContentType: pdfContentType,
		Size:        int64(len(data)),
		Metadata:    artifactMetadata(doc, "original", nil),
	}); err != nil {
		log.Printf("envelopeService.CreateDocument: S3 upload failed for document %s: %v", doc.ID, err)
		return nil, domain.ErrUploadFailed
	}
	if err := s.docRepo.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("creating document: %w", err)
	}

	s.audit.record(ctx, doc.ID, nil, domain.ActorOwner, doc.OwnerEmail, domain.AuditDocumentCreated,
		map[string]interface{}{"title": title, "pages": len(pages), "size": len(data)})
	return doc, nil
}

func (s *envelopeService) owned(ctx context.Context, owner domain.Owner, docID uuid.UUID) (*domain.Document, error) {
	return s.docRepo.GetByOwner(ctx, owner.ID, docID)
}

func (s *envelopeService) measure(ctx context.Context, doc *domain.Document) ([]geometry.PageSize, error) {
	source, err := s.storage.Download(ctx, s.opts.Bucket, doc.OriginalFileKey)
	if err != nil {
		return nil, fmt.Errorf("downloading original: %w", err)
	}
	return s.renderer.MeasurePages(source)
}

func validatePlacements(fields domain.Fields, pages []geometry.PageSize, renderWidth float64) error {
	for i := range fields {
		if err := geometry.ValidatePlacement(&fields[i].FieldBase, pages, renderWidth); err != nil {
			return err
		}
	}
	return nil
}

func (s *envelopeService) AddRecipients(ctx context.Context, owner domain.Owner, docID uuid.UUID, inputs []RecipientInput) ([]domain.SignRequest, error) {
	if len(inputs) == 0 {
		return nil, domain.ErrNoRecipients
	}
	doc, err := s.owned(ctx, owner, docID)
	if err != nil {
		return nil, err
	}
	if doc.Status != domain.DocumentStatusDraft && doc.Status != domain.DocumentStatusPending {
		return nil, fmt.Errorf("%w: cannot add recipients to a %s document", domain.ErrInvalidTransition, doc.Status)
	}

	pages, err := s.measure(ctx, doc)
	if err != nil {
		return nil, err
	}
	for _, in := range inputs {
		if err := validatePlacements(in.Fields, pages, doc.RenderWidth); err != nil {
			return nil, err
		}
	}

	draft := doc.Status == domain.DocumentStatusDraft
	created, err := s.signing.CreateBatch(ctx, doc, inputs, draft)
	if err != nil {
		return nil, err
	}
	if draft {
		return created, nil
	}

	all, err := s.reqRepo.ListByDocument(ctx, doc.ID)
	if err != nil {
		return nil, fmt.Errorf("listing sign requests: %w", err)
	}
	if err := s.release(ctx, doc, nextBatch(doc, all, false), s.opts.now().Add(s.opts.LinkTTL)); err != nil {
		return nil, err
	}
	return created, nil
}

func (s *envelopeService) UpdateFields(ctx context.Context, owner domain.Owner, docID, reqID uuid.UUID, fields domain.Fields) (*domain.SignRequest, error) {
	doc, err := s.owned(ctx, owner, docID)
	if err != nil {
		return nil, err
	}
	if doc.Status != domain.DocumentStatusDraft {
		return nil, fmt.Errorf("%w: fields can only be edited while the document is a draft", domain.ErrInvalidTransition)
	}
	req, err := s.reqRepo.GetByID(ctx, reqID)
	if err != nil {
		return nil, err
	}
	if req.DocumentID != doc.ID {
		return nil, domain.ErrSignRequestNotFound
	}
	if fields == nil {
		fields = domain.Fields{}
	}
	if err := validateFields(fields); err != nil {
		return nil, err
	}
	pages, err := s.measure(ctx, doc)
	if err != nil {
		return nil, err
	}
	if err := validatePlacements(fields, pages, doc.RenderWidth); err != nil {
		return nil, err
	}
	if err := s.reqRepo.UpdateFields(ctx, req.ID, fields); err != nil {
		return nil, fmt.Errorf("updating fields: %w", err)
	}
	req.Fields = fields
	return req, nil
}

// nextBatch picks the requests to notify. Without a signing order that is
// every open request; with one, the open requests sharing the lowest order.
// includeNotified keeps requests that already received their invitation.
func nextBatch(doc *domain.Document, reqs []domain.SignRequest, includeNotified bool) []domain.SignRequest {
	var open []domain.SignRequest
	for i := range reqs {
		if isOpen(reqs[i].Status) {
			open = append(open, reqs[i])
		}
	}
	if doc.SigningOrderEnabled && len(open) > 0 {
		minOrder := open[0].SigningOrder
		for i := range open {
			if open[i].SigningOrder < minOrder {
				minOrder = open[i].SigningOrder
			}
		}
		var turn []domain.SignRequest
		for i := range open {
			if open[i].SigningOrder == minOrder {
				turn = append(turn, open[i])
			}
		}
		open = turn
	}

	batch := open[:0:0]
	for i := range open {
		if includeNotified || open[i].SentAt == nil {
			batch = append(batch, open[i])
		}
	}
	sort.SliceStable(batch, func(i, j int) bool { return batch[i].CreatedAt.Before(batch[j].CreatedAt) })
	return batch
}

func isOwnerSigner(doc *domain.Document, req *domain.SignRequest) bool {
	return doc.OwnerEmail != "" && normalizeEmail(req.RecipientEmail) == normalizeEmail(doc.OwnerEmail)
}

// release invites each request in batch. A request that was never sent is
// claimed before its email goes out so concurrent callers invite it once; a
// failed delivery gives the claim back. Requests already sent (a resend) are
// re-notified and restamped. The owner signing their own document is
// released without an email. The first delivery failure aborts; requests
// released before it stay sent.
func (s *envelopeService) release(ctx context.Context, doc *domain.Document, batch []domain.SignRequest, expiresAt time.Time) error {
	for i := range batch {
		r := &batch[i]
		now := s.opts.now()
		first := r.SentAt == nil
		if first {
			if err := s.reqRepo.ClaimInvitation(ctx, r.ID, now, expiresAt); err != nil {
				if errors.Is(err, domain.ErrStatusConflict) {
					continue
				}
				return fmt.Errorf("claiming invitation %s: %w", r.ID, err)
			}
		}

		if !isOwnerSigner(doc, r) {
			if err := s.invite(ctx, doc, r, expiresAt); err != nil {
				log.Printf("envelopeService.release: invitation to %s for document %s failed: %v", r.RecipientEmail, doc.ID, err)
				if first {
					if rerr := s.reqRepo.ReleaseInvitation(ctx, r.ID, now); rerr != nil {
						log.Printf("envelopeService.release: releasing claim on %s failed: %v", r.ID, rerr)
					}
				}
				return err
			}
		}

		if !first {
			if err := s.reqRepo.MarkSent(ctx, r.ID, now, &expiresAt); err != nil {
				if errors.Is(err, domain.ErrStatusConflict) {
					continue
				}
				return fmt.Errorf("marking %s sent: %w", r.ID, err)
			}
		}
		r.SentAt = &now
		r.ExpiresAt = &expiresAt
	}
	return nil
}

func (s *envelopeService) invite(ctx context.Context, doc *domain.Document, r *domain.SignRequest, expiresAt time.Time) error {
	return s.notifier.Send(ctx, port.Notification{
		Template: domain.TemplateSignRequest,
		To:       domain.Recipient{Email: r.RecipientEmail, Name: r.RecipientName},
		Params: map[string]string{
			email.ParamDocumentTitle: doc.Title,
			email.ParamSenderName:    senderName(doc),
			email.ParamToken:         r.Token,
			email.ParamExpiresAt:     expiresAt.Format(expiryLayout),
			email.ParamDocumentID:    doc.ID.String(),
		},
	})
}

func senderName(doc *domain.Document) string {
	if doc.OwnerName != "" {
		return doc.OwnerName
	}
	return doc.OwnerEmail
}

func (s *envelopeService) Send(ctx context.Context, owner domain.Owner, docID uuid.UUID) (*domain.Document, error) {
	doc, err := s.owned(ctx, owner, docID)
	if err != nil {
		return nil, err
	}
	if doc.Status != domain.DocumentStatusDraft {
		return nil, fmt.Errorf("%w: only drafts can be sent, document is %s", domain.ErrInvalidTransition, doc.Status)
	}
	reqs, err := s.reqRepo.ListByDocument(ctx, doc.ID)
	if err != nil {
		return nil, fmt.Errorf("listing sign requests: %w", err)
	}
	if len(reqs) == 0 {
		return nil, domain.ErrNoRecipients
	}

	if err := s.docRepo.TransitionStatus(ctx, doc.ID,
		[]domain.DocumentStatus{domain.DocumentStatusDraft}, domain.DocumentStatusPending); err != nil {
		if errors.Is(err, domain.ErrStatusConflict) {
			return nil, fmt.Errorf("%w: document is no longer a draft", domain.ErrInvalidTransition)
		}
		return nil, err
	}
	now := s.opts.now()
	doc.Status = domain.DocumentStatusPending
	doc.SentAt = &now

	s.audit.record(ctx, doc.ID, nil, domain.ActorOwner, doc.OwnerEmail, domain.AuditSentForSignature,
		map[string]interface{}{"recipients": len(reqs), "signing_order": doc.SigningOrderEnabled})
	log.Printf("envelopeService.Send: document %s sent to %d recipients", doc.ID, len(reqs))

	if err := s.release(ctx, doc, nextBatch(doc, reqs, false), now.Add(s.opts.LinkTTL)); err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *envelopeService) Resend(ctx context.Context, owner domain.Owner, docID uuid.UUID, corrections []RecipientCorrection) (*domain.Document, error) {
	doc, err := s.owned(ctx, owner, docID)
	if err != nil {
		return nil, err
	}
	if doc.Status != domain.DocumentStatusPending {
		return nil, fmt.Errorf("%w: only pending documents can be resent, document is %s", domain.ErrInvalidTransition, doc.Status)
	}
	reqs, err := s.reqRepo.ListByDocument(ctx, doc.ID)
	if err != nil {
		return nil, fmt.Errorf("listing sign requests: %w", err)
	}
	byID := make(map[uuid.UUID]*domain.SignRequest, len(reqs))
	for i := range reqs {
		byID[reqs[i].ID] = &reqs[i]
	}

	for _, c := range corrections {
		r, ok := byID[c.SignRequestID]
		if !ok {
			return nil, fmt.Errorf("%w: %s", domain.ErrSignRequestNotFound, c.SignRequestID)
		}
		if !isOpen(r.Status) {
			continue
		}
		addr := r.RecipientEmail
		if c.Email != "" {
			addr = normalizeEmail(c.Email)
			if err := validateEmail(addr); err != nil {
				return nil, err
			}
		}
		name := r.RecipientName
		if strings.TrimSpace(c.Name) != "" {
			name = strings.TrimSpace(c.Name)
		}
		if err := s.reqRepo.UpdateRecipient(ctx, r.ID, addr, name); err != nil {
			if errors.Is(err, domain.ErrStatusConflict) {
				continue
			}
			return nil, fmt.Errorf("correcting recipient %s: %w", r.ID, err)
		}
		r.RecipientEmail, r.RecipientName = addr, name
	}

	expiresAt := s.opts.now().Add(s.opts.LinkTTL)
	batch := nextBatch(doc, reqs, true)
	inBatch := make(map[uuid.UUID]bool, len(batch))
	for i := range batch {
		inBatch[batch[i].ID] = true
	}
	for i := range reqs {
		r := &reqs[i]
		if inBatch[r.ID] || !isOpen(r.Status) || r.SentAt == nil {
			continue
		}
		if err := s.reqRepo.SetExpiry(ctx, r.ID, expiresAt); err != nil && !errors.Is(err, domain.ErrStatusConflict) {
			return nil, fmt.Errorf("extending expiry of %s: %w", r.ID, err)
		}
	}

	s.audit.record(ctx, doc.ID, nil, domain.ActorOwner, doc.OwnerEmail, domain.AuditSentForSignature,
		map[string]interface{}{"resend": true, "recipients": len(batch), "corrections": len(corrections)})

	if err := s.release(ctx, doc, batch, expiresAt); err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *envelopeService) Complete(ctx context.Context, token, ip, userAgent string) (*domain.SignRequest, error) {
	req, already, err := s.signing.Complete(ctx, token, ip, userAgent)
	if err != nil {
		return nil, err
	}
	if !already {
		s.finalize(ctx, req)
	}
	return req, nil
}

// finalize runs after a recipient signs. Counts are re-read from the store
// so concurrent completions agree; only the caller whose conditional update
// moves the document to completed sends the completion notices.
func (s *envelopeService) finalize(ctx context.Context, req *domain.SignRequest) {
	signed, total, err := s.reqRepo.CountByStatus(ctx, req.DocumentID)
	if err != nil {
		log.Printf("envelopeService.finalize: counting sign requests for %s failed: %v", req.DocumentID, err)
		return
	}
	doc, err := s.docRepo.GetByID(ctx, req.DocumentID)
	if err != nil {
		log.Printf("envelopeService.finalize: loading document %s failed: %v", req.DocumentID, err)
		return
	}

	if total > 0 && signed == total {
		err := s.docRepo.TransitionStatus(ctx, doc.ID,
			[]domain.DocumentStatus{domain.DocumentStatusPending}, domain.DocumentStatusCompleted)
		if errors.Is(err, domain.ErrStatusConflict) {
			log.Printf("envelopeService.finalize: document %s already finalized", doc.ID)
			return
		}
		if err != nil {
			log.Printf("envelopeService.finalize: completing document %s failed: %v", doc.ID, err)
			return
		}
		log.Printf("envelopeService.finalize: document %s completed (%d/%d signed)", doc.ID, signed, total)
		s.notifyCompleted(ctx, doc)
		return
	}

	if !isOwnerSigner(doc, req) {
		s.notify(ctx, domain.TemplateWaitingForOthers, domain.Recipient{Email: req.RecipientEmail, Name: req.RecipientName},
			map[string]string{email.ParamDocumentTitle: doc.Title, email.ParamDocumentID: doc.ID.String()})
	}
	if !doc.SigningOrderEnabled {
		return
	}
	reqs, err := s.reqRepo.ListByDocument(ctx, doc.ID)
	if err != nil {
		log.Printf("envelopeService.finalize: listing sign requests for %s failed: %v", doc.ID, err)
		return
	}
	if err := s.release(ctx, doc, nextBatch(doc, reqs, false), s.opts.now().Add(s.opts.LinkTTL)); err != nil {
		log.Printf("envelopeService.finalize: advancing signing order on %s failed: %v", doc.ID, err)
	}
}

func (s *envelopeService) notifyCompleted(ctx context.Context, doc *domain.Document) {
	params := map[string]string{email.ParamDocumentTitle: doc.Title, email.ParamDocumentID: doc.ID.String()}
	reqs, err := s.reqRepo.ListByDocument(ctx, doc.ID)
	if err != nil {
		log.Printf("envelopeService.notifyCompleted: listing sign requests for %s failed: %v", doc.ID, err)
	}
	for i := range reqs {
		if isOwnerSigner(doc, &reqs[i]) {
			continue
		}
		s.notify(ctx, domain.TemplateDocumentCompleted,
			domain.Recipient{Email: reqs[i].RecipientEmail, Name: reqs[i].RecipientName}, params)
	}
	s.notify(ctx, domain.TemplateDocumentCompleted, domain.Recipient{Email: doc.OwnerEmail, Name: doc.OwnerName}, params)
}

// notify sends a best-effort notification; failures are only logged.
func (s *envelopeService) notify(ctx context.Context, tmpl domain.NotificationTemplate, to domain.Recipient, params map[string]string) {
	if to.Email == "" {
		return
	}
	if err := s.notifier.Send(ctx, port.Notification{Template: tmpl, To: to, Params: params}); err != nil {
		log.Printf("envelopeService.notify: %s to %s failed: %v", tmpl, to.Email, err)
	}
}

func (s *envelopeService) Decline(ctx context.Context, token, ip, userAgent, reason string) (*domain.SignRequest, error) {
	req, already, err := s.signing.Decline(ctx, token, ip, userAgent, reason)
	if err != nil {
		return nil, err
	}

	// A repeated decline retries the void when an earlier attempt failed.
	var voided *domain.Document
	err = s.locker.WithDocumentLock(ctx, req.DocumentID, func(ctx context.Context) error {
		doc, err := s.docRepo.GetByID(ctx, req.DocumentID)
		if err != nil {
			return err
		}
		if doc.Status != domain.DocumentStatusPending {
			return nil
		}
		if key, ok := s.voidArtifact(ctx, doc); ok {
			err = s.docRepo.MarkVoided(ctx, doc.ID, key)
		} else {
			err = s.docRepo.TransitionStatus(ctx, doc.ID,
				[]domain.DocumentStatus{domain.DocumentStatusPending}, domain.DocumentStatusVoided)
		}
		if errors.Is(err, domain.ErrStatusConflict) {
			return nil
		}
		if err != nil {
			return err
		}
		voided = doc
		return nil
	})
	if err != nil {
		log.Printf("envelopeService.Decline: voiding document %s failed: %v", req.DocumentID, err)
		return nil, fmt.Errorf("voiding document: %w", err)
	}

	if voided != nil {
		log.Printf("envelopeService.Decline: document %s voided after %s declined (retry=%t)", voided.ID, req.RecipientEmail, already)
		s.notify(ctx, domain.TemplateDocumentDeclined, domain.Recipient{Email: voided.OwnerEmail, Name: voided.OwnerName},
			map[string]string{
				email.ParamDocumentTitle: voided.Title,
				email.ParamSignerName:    req.DisplayName(),
				email.ParamReason:        req.DeclineReason,
				email.ParamDocumentID:    voided.ID.String(),
			})
	}
	return req, nil
}

// voidArtifact stores a void-stamped copy of the working document. A failure
// is logged and the document is voided without the artifact.
func (s *envelopeService) voidArtifact(ctx context.Context, doc *domain.Document) (string, bool) {
	source, err := s.storage.Download(ctx, s.opts.Bucket, doc.WorkingFileKey())
	if err != nil {
		log.Printf("envelopeService.voidArtifact: downloading %s failed: %v", doc.ID, err)
		return "", false
	}
	stamped, err := s.renderer.Void(ctx, source, voidLabel)
	if err != nil {
		log.Printf("envelopeService.voidArtifact: stamping %s failed: %v", doc.ID, err)
		return "", false
	}
	key := voidedFileKey(doc)
	if _, err := s.storage.Upload(ctx, port.UploadInput{
		Bucket:      s.opts.Bucket,
		Key:         key,
		Body:        bytes.NewReader(stamped),
		ContentType: pdfContentType,
		Size:        int64(len(stamped)),
		Metadata:    artifactMetadata(doc, "voided", nil),
	}); err != nil {
		log.Printf("envelopeService.voidArtifact: uploading %s failed: %v", doc.ID, err)
		return "", false
	}
	return key, true
}

func (s *envelopeService) Cancel(ctx context.Context, owner domain.Owner, docID uuid.UUID) (*domain.Document, error) {
	doc, err := s.owned(ctx, owner, docID)
	if err != nil {
		return nil, err
	}
	err = s.docRepo.TransitionStatus(ctx, doc.ID,
		[]domain.DocumentStatus{domain.DocumentStatusDraft, domain.DocumentStatusPending}, domain.DocumentStatusCancelled)
	if errors.Is(err, domain.ErrStatusConflict) {
		return nil, fmt.Errorf("%w: a %s document cannot be cancelled", domain.ErrInvalidTransition, doc.Status)
	}
	if err != nil {
		return nil, err
	}
	log.Printf("envelopeService.Cancel: document %s cancelled by owner %s", doc.ID, owner.ID)
	return s.docRepo.GetByID(ctx, doc.ID)
}

func (s *envelopeService) Delete(ctx context.Context, owner domain.Owner, docID uuid.UUID) error {
	if _, err := s.owned(ctx, owner, docID); err != nil {
		return err
	}
	err := s.docRepo.SoftDelete(ctx, owner.ID, docID)
	if errors.Is(err, domain.ErrStatusConflict) {
		return fmt.Errorf("%w: document is already deleted", domain.ErrInvalidTransition)
	}
	return err
}

func (s *envelopeService) Restore(ctx context.Context, owner domain.Owner, docID uuid.UUID) (*domain.Document, error) {
	if _, err := s.owned(ctx, owner, docID); err != nil {
		return nil, err
	}
	err := s.docRepo.Restore(ctx, owner.ID, docID)
	if errors.Is(err, domain.ErrStatusConflict) {
		return nil, fmt.Errorf("%w: document is not deleted", domain.ErrInvalidTransition)
	}
	if err != nil {
		return nil, err
	}
	return s.owned(ctx, owner, docID)
}

func (s *envelopeService) Get(ctx context.Context, owner domain.Owner, docID uuid.UUID) (*DocumentDetail, error) {
	doc, err := s.owned(ctx, owner, docID)
	if err != nil {
		return nil, err
	}
	reqs, err := s.reqRepo.ListByDocument(ctx, doc.ID)
	if err != nil {
		return nil, fmt.Errorf("listing sign requests: %w", err)
	}
	return &DocumentDetail{Document: doc, SignRequests: reqs}, nil
}

func (s *envelopeService) List(ctx context.Context, owner domain.Owner, offset, limit int) ([]domain.Document, int, error) {
	return s.docRepo.ListByOwner(ctx, owner.ID, offset, limit)
}

func (s *envelopeService) DownloadURL(ctx context.Context, owner domain.Owner, docID uuid.UUID) (string, error) {
	doc, err := s.owned(ctx, owner, docID)
	if err != nil {
		return "", err
	}
	url, err := s.storage.GetPresignedURL(ctx, port.PresignInput{
		Bucket:        s.opts.Bucket,
		Key:           viewFileKey(doc),
		ExpirySeconds: s.opts.PresignExpiry,
		Filename:      downloadFilename(doc),
	})
	if err != nil {
		return "", fmt.Errorf("generating download URL: %w", err)
	}
	return url, nil
}

func (s *envelopeService) AuditTrail(ctx context.Context, owner domain.Owner, docID uuid.UUID, offset, limit int) ([]domain.AuditLog, int, error) {
	if _, err := s.owned(ctx, owner, docID); err != nil {
		return nil, 0, err
	}
	return s.auditLog.ListByDocument(ctx, docID, offset, limit)
}

func (s *envelopeService) ExportAudit(ctx context.Context, owner domain.Owner, docID uuid.UUID, format auditexport.Format) (*auditexport.File, error) {
	doc, err := s.owned(ctx, owner, docID)
	if err != nil {
		return nil, err
	}
	entries, err := s.auditLog.ListAllByDocument(ctx, docID)
	if err != nil {
		return nil, fmt.Errorf("listing audit trail: %w", err)
	}
	return auditexport.Export(format, doc.Title, entries, s.opts.now())
}
