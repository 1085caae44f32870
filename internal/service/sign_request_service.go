package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"signet/internal/domain"
	"signet/internal/port"
	"signet/internal/sigpayload"
)

// RecipientInput describes one recipient to add to a document.
type RecipientInput struct {
	Email        string
	Name         string
	SigningOrder int
	Fields       domain.Fields
}

// SigningInfo is what a recipient sees when opening their link.
type SigningInfo struct {
	DocumentID     uuid.UUID
	DocumentTitle  string
	DocumentStatus domain.DocumentStatus
	OwnerName      string
	OwnerEmail     string
	RenderWidth    float64
	Request        *domain.SignRequest
	// CanSign is false while the document is not pending, the request is
	// finished, or an earlier recipient in the signing order has not signed.
	CanSign bool
}

// SignRequestService is the per-recipient state machine.
type SignRequestService interface {
	Create(ctx context.Context, doc *domain.Document, input RecipientInput, draft bool) (*domain.SignRequest, error)
	CreateBatch(ctx context.Context, doc *domain.Document, inputs []RecipientInput, draft bool) ([]domain.SignRequest, error)
	RecordView(ctx context.Context, token, ip, userAgent string) error
	GetInfo(ctx context.Context, token string) (*SigningInfo, error)
	FileURL(ctx context.Context, token string) (string, error)
	SaveSignature(ctx context.Context, token string, fieldID *string, payload string) (*domain.SignRequest, error)
	SaveFieldValue(ctx context.Context, token, fieldID, value string) (*domain.SignRequest, error)
	// Complete burns the recipient's signatures into the working copy and
	// marks the request signed. alreadySigned is true when the request was
	// signed before this call; the record is then returned unchanged.
	Complete(ctx context.Context, token, ip, userAgent string) (req *domain.SignRequest, alreadySigned bool, err error)
	// Decline marks the request declined. alreadyDeclined is true when it
	// was declined before this call.
	Decline(ctx context.Context, token, ip, userAgent, reason string) (req *domain.SignRequest, alreadyDeclined bool, err error)
}

type signRequestService struct {
	docRepo  port.DocumentRepository
	reqRepo  port.SignRequestRepository
	locker   port.DocumentLocker
	renderer port.DocumentRenderer
	storage  port.ObjectStorage
	audit    auditor
	opts     SigningOptions
}

// NewSignRequestService creates a new SignRequestService implementation.
func NewSignRequestService(
	docRepo port.DocumentRepository,
	reqRepo port.SignRequestRepository,
	auditRepo port.AuditRepository,
	locker port.DocumentLocker,
	renderer port.DocumentRenderer,
	storage port.ObjectStorage,
	opts SigningOptions,
) SignRequestService {
	return &signRequestService{
		docRepo:  docRepo,
		reqRepo:  reqRepo,
		locker:   locker,
		renderer: renderer,
		storage:  storage,
		audit:    auditor{repo: auditRepo, now: opts.now},
		opts:     opts,
	}
}

func (s *signRequestService) build(doc *domain.Document, input RecipientInput, draft bool) (*domain.SignRequest, error) {
	email := normalizeEmail(input.Email)
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validateFields(input.Fields); err != nil {
		return nil, err
	}
	token, err := newToken()
	if err != nil {
		return nil, err
	}
	order := input.SigningOrder
	if order < 1 {
		order = 1
	}
	fields := input.Fields
	if fields == nil {
		fields = domain.Fields{}
	}

	req := &domain.SignRequest{
		ID:             uuid.New(),
		DocumentID:     doc.ID,
		RecipientEmail: email,
		RecipientName:  strings.TrimSpace(input.Name),
		Token:          token,
		SigningOrder:   order,
		Status:         domain.SignRequestStatusPending,
		Fields:         fields,
		Signatures:     domain.StringMap{},
		FieldValues:    domain.StringMap{},
	}
	if !draft {
		expires := s.opts.now().Add(s.opts.LinkTTL)
		req.ExpiresAt = &expires
	}
	return req, nil
}

func (s *signRequestService) Create(ctx context.Context, doc *domain.Document, input RecipientInput, draft bool) (*domain.SignRequest, error) {
	req, err := s.build(doc, input, draft)
	if err != nil {
		return nil, err
	}
	if err := s.reqRepo.Create(ctx, req); err != nil {
		return nil, fmt.Errorf("creating sign request: %w", err)
	}
	log.Printf("signRequestService.Create: sign request %s created for %s on document %s (draft=%t)",
		req.ID, req.RecipientEmail, doc.ID, draft)
	return req, nil
}

func (s *signRequestService) CreateBatch(ctx context.Context, doc *domain.Document, inputs []RecipientInput, draft bool) ([]domain.SignRequest, error) {
	reqs := make([]domain.SignRequest, 0, len(inputs))
	seen := make(map[string]bool, len(inputs))
	for _, input := range inputs {
		req, err := s.build(doc, input, draft)
		if err != nil {
			return nil, err
		}
		if seen[req.RecipientEmail] {
			return nil, fmt.Errorf("%w: %s", domain.ErrDuplicateRecipient, req.RecipientEmail)
		}
		seen[req.RecipientEmail] = true
		reqs = append(reqs, *req)
	}
	if err := s.reqRepo.CreateBatch(ctx, reqs); err != nil {
		return nil, fmt.Errorf("creating sign requests: %w", err)
	}
	log.Printf("signRequestService.CreateBatch: %d sign requests created on document %s (draft=%t)",
		len(reqs), doc.ID, draft)
	return reqs, nil
}

// load fetches the request behind a token and rejects expired links.
func (s *signRequestService) load(ctx context.Context, token string) (*domain.SignRequest, error) {
	if token == "" {
		return nil, domain.ErrSignRequestNotFound
	}
	req, err := s.reqRepo.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if req.IsExpired(s.opts.now()) {
		return nil, domain.ErrLinkExpired
	}
	return req, nil
}

// document returns the request's document; deleted documents are hidden from recipients.
func (s *signRequestService) document(ctx context.Context, req *domain.SignRequest) (*domain.Document, error) {
	doc, err := s.docRepo.GetByID(ctx, req.DocumentID)
	if err != nil {
		return nil, err
	}
	if doc.Status == domain.DocumentStatusDeleted {
		return nil, domain.ErrDocumentNotFound
	}
	return doc, nil
}

func (s *signRequestService) RecordView(ctx context.Context, token, ip, userAgent string) error {
	req, err := s.load(ctx, token)
	if err != nil {
		return err
	}
	s.audit.record(ctx, req.DocumentID, &req.ID, domain.ActorRecipient, req.RecipientEmail, domain.AuditLinkOpened,
		map[string]interface{}{"ip": ip, "user_agent": userAgent})
	return nil
}

func (s *signRequestService) GetInfo(ctx context.Context, token string) (*SigningInfo, error) {
	req, err := s.load(ctx, token)
	if err != nil {
		return nil, err
	}
	doc, err := s.document(ctx, req)
	if err != nil {
		return nil, err
	}

	canSign := doc.Status == domain.DocumentStatusPending && isOpen(req.Status)
	if canSign {
		if err := s.checkTurn(ctx, doc, req); errors.Is(err, domain.ErrNotYourTurn) {
			canSign = false
		} else if err != nil {
			return nil, err
		}
	}

	return &SigningInfo{
		DocumentID:     doc.ID,
		DocumentTitle:  doc.Title,
		DocumentStatus: doc.Status,
		OwnerName:      doc.OwnerName,
		OwnerEmail:     doc.OwnerEmail,
		RenderWidth:    doc.RenderWidth,
		Request:        req,
		CanSign:        canSign,
	}, nil
}

// checkTurn returns domain.ErrNotYourTurn while an earlier recipient in the
// signing order has not signed.
func (s *signRequestService) checkTurn(ctx context.Context, doc *domain.Document, req *domain.SignRequest) error {
	if !doc.SigningOrderEnabled {
		return nil
	}
	all, err := s.reqRepo.ListByDocument(ctx, doc.ID)
	if err != nil {
		return fmt.Errorf("listing sign requests: %w", err)
	}
	if !turnReached(req, all) {
		return fmt.Errorf("%w: %s is recipient %d", domain.ErrNotYourTurn, req.RecipientEmail, req.SigningOrder)
	}
	return nil
}

// editableTurn gates field edits on a pending document by the signing order.
func (s *signRequestService) editableTurn(ctx context.Context, req *domain.SignRequest) error {
	doc, err := s.document(ctx, req)
	if err != nil {
		return err
	}
	if doc.Status != domain.DocumentStatusPending {
		return nil
	}
	return s.checkTurn(ctx, doc, req)
}

// turnReached reports whether every request earlier in the signing order has signed.
func turnReached(req *domain.SignRequest, all []domain.SignRequest) bool {
	for i := range all {
		o := &all[i]
		if o.ID != req.ID && o.SigningOrder < req.SigningOrder && o.Status != domain.SignRequestStatusSigned {
			return false
		}
	}
	return true
}

func (s *signRequestService) FileURL(ctx context.Context, token string) (string, error) {
	req, err := s.load(ctx, token)
	if err != nil {
		return "", err
	}
	doc, err := s.document(ctx, req)
	if err != nil {
		return "", err
	}
	url, err := s.storage.GetPresignedURL(ctx, port.PresignInput{
		Bucket:        s.opts.Bucket,
		Key:           viewFileKey(doc),
		ExpirySeconds: s.opts.PresignExpiry,
	})
	if err != nil {
		return "", fmt.Errorf("generating file URL: %w", err)
	}
	return url, nil
}

// loadForEdit resolves a token for a mutation. Signed requests come back with
// done set so the caller can return them unchanged.
func (s *signRequestService) loadForEdit(ctx context.Context, token string) (req *domain.SignRequest, done bool, err error) {
	req, err = s.reqRepo.GetByToken(ctx, token)
	if err != nil {
		return nil, false, err
	}
	switch req.Status {
	case domain.SignRequestStatusSigned:
		return req, true, nil
	case domain.SignRequestStatusDeclined:
		return nil, false, domain.ErrSignRequestDeclined
	}
	if req.IsExpired(s.opts.now()) {
		return nil, false, domain.ErrLinkExpired
	}
	return req, false, nil
}

// afterConflict re-reads a request whose conditional write matched no open row.
func (s *signRequestService) afterConflict(ctx context.Context, id uuid.UUID) (*domain.SignRequest, error) {
	req, err := s.reqRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Status == domain.SignRequestStatusDeclined {
		return nil, domain.ErrSignRequestDeclined
	}
	return req, nil
}

func (s *signRequestService) SaveSignature(ctx context.Context, token string, fieldID *string, payload string) (*domain.SignRequest, error) {
	req, done, err := s.loadForEdit(ctx, token)
	if err != nil || done {
		return req, err
	}
	if err := s.editableTurn(ctx, req); err != nil {
		return nil, err
	}
	if strings.TrimSpace(payload) == "" {
		return nil, fmt.Errorf("%w: signature payload is empty", domain.ErrInvalidFieldValue)
	}
	if strings.HasPrefix(payload, "data:image/") {
		if _, ok := sigpayload.Decode(payload).(sigpayload.Image); !ok {
			return nil, fmt.Errorf("%w: signature image is not valid base64", domain.ErrInvalidFieldValue)
		}
	}
	if fieldID != nil {
		f, ok := req.Fields.Find(*fieldID)
		if !ok {
			return nil, fmt.Errorf("%w: %s", domain.ErrFieldNotFound, *fieldID)
		}
		if !f.Type.IsSignatureLike() {
			return nil, fmt.Errorf("%w: field %s is a %s field, not a signature", domain.ErrInvalidField, f.ID, f.Type)
		}
	}

	if err := s.reqRepo.SaveSignature(ctx, req.ID, fieldID, payload); err != nil {
		if errors.Is(err, domain.ErrStatusConflict) {
			return s.afterConflict(ctx, req.ID)
		}
		return nil, fmt.Errorf("saving signature: %w", err)
	}
	if fieldID != nil {
		if req.Signatures == nil {
			req.Signatures = domain.StringMap{}
		}
		req.Signatures[*fieldID] = payload
	} else {
		req.LegacySignature = &payload
	}
	return req, nil
}

func (s *signRequestService) SaveFieldValue(ctx context.Context, token, fieldID, value string) (*domain.SignRequest, error) {
	req, done, err := s.loadForEdit(ctx, token)
	if err != nil || done {
		return req, err
	}
	if err := s.editableTurn(ctx, req); err != nil {
		return nil, err
	}
	f, ok := req.Fields.Find(fieldID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrFieldNotFound, fieldID)
	}
	value = strings.TrimSpace(value)
	if err := validateFieldValue(f, value); err != nil {
		return nil, err
	}

	if err := s.reqRepo.SaveFieldValue(ctx, req.ID, fieldID, value); err != nil {
		if errors.Is(err, domain.ErrStatusConflict) {
			return s.afterConflict(ctx, req.ID)
		}
		return nil, fmt.Errorf("saving field value: %w", err)
	}
	if req.FieldValues == nil {
		req.FieldValues = domain.StringMap{}
	}
	req.FieldValues[fieldID] = value
	return req, nil
}

// validateFieldValue applies the field's own constraints to a trimmed value.
// An empty value clears the field.
func validateFieldValue(f *domain.Field, value string) error {
	if f.Type.IsSignatureLike() {
		return fmt.Errorf("%w: field %s takes a signature, not a value", domain.ErrInvalidField, f.ID)
	}
	if format, ok := f.Format(); ok {
		if format.ReadOnly {
			return fmt.Errorf("%w: field %s is read-only", domain.ErrInvalidFieldValue, f.ID)
		}
		if format.MaxChars > 0 && utf8.RuneCountInString(value) > format.MaxChars {
			return fmt.Errorf("%w: field %s accepts at most %d characters", domain.ErrInvalidFieldValue, f.ID, format.MaxChars)
		}
	}
	if value == "" {
		return nil
	}

	switch v := f.Variant.(type) {
	case domain.DropdownVariant:
		if !contains(v.Options, value) {
			return fmt.Errorf("%w: %q is not an option of field %s", domain.ErrInvalidFieldValue, value, f.ID)
		}
	case domain.RadioVariant:
		if len(v.Options) > 0 && !contains(v.Options, value) {
			return fmt.Errorf("%w: %q is not an option of field %s", domain.ErrInvalidFieldValue, value, f.ID)
		}
	case domain.CheckboxVariant:
		if value != "true" && value != "false" {
			return fmt.Errorf("%w: checkbox %s takes true or false", domain.ErrInvalidFieldValue, f.ID)
		}
	}
	return nil
}

func contains(options []string, value string) bool {
	for _, o := range options {
		if o == value {
			return true
		}
	}
	return false
}

func (s *signRequestService) Complete(ctx context.Context, token, ip, userAgent string) (*domain.SignRequest, bool, error) {
	req, done, err := s.loadForEdit(ctx, token)
	if err != nil {
		return nil, false, err
	}
	if done {
		return req, true, nil
	}

	if fp, ok := s.renderer.(port.FontPrefetcher); ok {
		fp.PrefetchFonts(ctx, signaturePayloads(req))
	}

	var (
		result  *domain.SignRequest
		already bool
	)
	err = s.locker.WithDocumentLock(ctx, req.DocumentID, func(ctx context.Context) error {
		cur, err := s.reqRepo.GetByID(ctx, req.ID)
		if err != nil {
			return err
		}
		switch cur.Status {
		case domain.SignRequestStatusSigned:
			result, already = cur, true
			return nil
		case domain.SignRequestStatusDeclined:
			return domain.ErrSignRequestDeclined
		}

		doc, err := s.docRepo.GetByID(ctx, cur.DocumentID)
		if err != nil {
			return err
		}
		if doc.Status != domain.DocumentStatusPending {
			return fmt.Errorf("%w: document %s is %s", domain.ErrDocumentNotSignable, doc.ID, doc.Status)
		}
		if err := s.checkTurn(ctx, doc, cur); err != nil {
			return err
		}
		if f, missing := cur.UnsignedRequiredField(); missing {
			return &domain.FieldsUnsignedError{RecipientEmail: cur.RecipientEmail, FieldID: f.ID, Label: f.DataLabel}
		}

		source, err := s.storage.Download(ctx, s.opts.Bucket, doc.WorkingFileKey())
		if err != nil {
			return fmt.Errorf("downloading working copy: %w", err)
		}
		signed, err := s.renderer.Embed(ctx, port.EmbedInput{
			Source:          source,
			Fields:          cur.Fields,
			Signatures:      cur.Signatures,
			LegacySignature: cur.LegacySignature,
			TextValues:      cur.FieldValues,
			SignerName:      cur.DisplayName(),
			RecordID:        cur.ID.String(),
			RenderWidth:     doc.RenderWidth,
		})
		if err != nil {
			log.Printf("signRequestService.Complete: embedding failed for %s on document %s: %v", cur.ID, doc.ID, err)
			return fmt.Errorf("embedding signatures: %w", err)
		}

		key := signedFileKey(doc, cur.ID)
		if _, err := s.storage.Upload(ctx, port.UploadInput{
			Bucket:      s.opts.Bucket,
			Key:         key,
			Body:        bytes.NewReader(signed),
			ContentType: pdfContentType,
			Size:        int64(len(signed)),
			Metadata:    artifactMetadata(doc, "signed", &cur.ID),
		}); err != nil {
			log.Printf("signRequestService.Complete: upload failed for %s: %v", cur.ID, err)
			return domain.ErrUploadFailed
		}

		now := s.opts.now()
		err = s.reqRepo.MarkSigned(ctx, port.SignedUpdate{
			SignRequestID:   cur.ID,
			DocumentID:      doc.ID,
			SignedFileKey:   key,
			SignerIP:        ip,
			SignerUserAgent: userAgent,
			SignedAt:        now,
		})
		if errors.Is(err, domain.ErrStatusConflict) {
			latest, err := s.afterConflict(ctx, cur.ID)
			if err != nil {
				return err
			}
			result, already = latest, latest.Status == domain.SignRequestStatusSigned
			return nil
		}
		if err != nil {
			return err
		}

		cur.Status = domain.SignRequestStatusSigned
		cur.SignedAt = &now
		cur.SignerIP = ip
		cur.SignerUserAgent = userAgent
		result = cur
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	if !already {
		log.Printf("signRequestService.Complete: sign request %s signed by %s", result.ID, result.RecipientEmail)
		s.audit.record(ctx, result.DocumentID, &result.ID, domain.ActorRecipient, result.RecipientEmail, domain.AuditSigned,
			map[string]interface{}{"ip": ip, "user_agent": userAgent})
	}
	return result, already, nil
}

func signaturePayloads(req *domain.SignRequest) []string {
	out := make([]string, 0, len(req.Signatures)+1)
	for _, p := range req.Signatures {
		out = append(out, p)
	}
	if req.LegacySignature != nil {
		out = append(out, *req.LegacySignature)
	}
	return out
}

func (s *signRequestService) Decline(ctx context.Context, token, ip, userAgent, reason string) (*domain.SignRequest, bool, error) {
	req, err := s.reqRepo.GetByToken(ctx, token)
	if err != nil {
		return nil, false, err
	}
	switch req.Status {
	case domain.SignRequestStatusSigned:
		return nil, false, domain.ErrAlreadySigned
	case domain.SignRequestStatusDeclined:
		return req, true, nil
	}
	if req.IsExpired(s.opts.now()) {
		return nil, false, domain.ErrLinkExpired
	}

	reason = strings.TrimSpace(reason)
	if utf8.RuneCountInString(reason) > maxReasonLength {
		reason = string([]rune(reason)[:maxReasonLength])
	}
	now := s.opts.now()
	err = s.reqRepo.MarkDeclined(ctx, port.DeclineUpdate{
		SignRequestID:   req.ID,
		SignerIP:        ip,
		SignerUserAgent: userAgent,
		Reason:          reason,
		DeclinedAt:      now,
	})
	if errors.Is(err, domain.ErrStatusConflict) {
		latest, err := s.reqRepo.GetByID(ctx, req.ID)
		if err != nil {
			return nil, false, err
		}
		if latest.Status == domain.SignRequestStatusSigned {
			return nil, false, domain.ErrAlreadySigned
		}
		return latest, true, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("declining sign request: %w", err)
	}

	req.Status = domain.SignRequestStatusDeclined
	req.DeclinedAt = &now
	req.DeclineReason = reason
	req.SignerIP = ip
	req.SignerUserAgent = userAgent

	log.Printf("signRequestService.Decline: sign request %s declined by %s", req.ID, req.RecipientEmail)
	s.audit.record(ctx, req.DocumentID, &req.ID, domain.ActorRecipient, req.RecipientEmail, domain.AuditDeclined,
		map[string]interface{}{"ip": ip, "user_agent": userAgent, "reason": reason})
	return req, false, nil
}
