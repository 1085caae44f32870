package mocks

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"signet/internal/domain"
	"signet/internal/port"
)

// MemStore is an in-memory record store with the same conditional-update
// semantics as the Postgres repositories. Use Documents, SignRequests and
// Audit to get the port views.
type MemStore struct {
	mu    sync.Mutex
	docs  map[uuid.UUID]domain.Document
	reqs  map[uuid.UUID]domain.SignRequest
	audit []domain.AuditLog
}

// NewMemStore creates an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{
		docs: make(map[uuid.UUID]domain.Document),
		reqs: make(map[uuid.UUID]domain.SignRequest),
	}
}

// Documents returns the store as a port.DocumentRepository.
func (s *MemStore) Documents() port.DocumentRepository { return memDocs{s} }

// SignRequests returns the store as a port.SignRequestRepository.
func (s *MemStore) SignRequests() port.SignRequestRepository { return memReqs{s} }

// Audit returns the store as a port.AuditRepository.
func (s *MemStore) Audit() port.AuditRepository { return memAudit{s} }

// AuditEvents returns the recorded event types for a document, oldest first.
func (s *MemStore) AuditEvents(docID uuid.UUID) []domain.AuditEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.AuditEvent
	for _, e := range s.audit {
		if e.DocumentID == docID {
			out = append(out, e.EventType)
		}
	}
	return out
}

func copyMap(m domain.StringMap) domain.StringMap {
	out := make(domain.StringMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyReq(r domain.SignRequest) *domain.SignRequest {
	r.Signatures = copyMap(r.Signatures)
	r.FieldValues = copyMap(r.FieldValues)
	r.Fields = append(domain.Fields(nil), r.Fields...)
	return &r
}

func isOpen(s domain.SignRequestStatus) bool {
	return s == domain.SignRequestStatusPending || s == domain.SignRequestStatusViewed
}

type memDocs struct{ s *MemStore }

func (m memDocs) Create(_ context.Context, doc *domain.Document) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	now := time.Now().UTC()
	doc.CreatedAt, doc.UpdatedAt = now, now
	m.s.docs[doc.ID] = *doc
	return nil
}

func (m memDocs) GetByID(_ context.Context, docID uuid.UUID) (*domain.Document, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	doc, ok := m.s.docs[docID]
	if !ok {
		return nil, domain.ErrDocumentNotFound
	}
	return &doc, nil
}

func (m memDocs) GetByOwner(ctx context.Context, ownerID, docID uuid.UUID) (*domain.Document, error) {
	doc, err := m.GetByID(ctx, docID)
	if err != nil {
		return nil, err
	}
	if doc.OwnerID != ownerID {
		return nil, domain.ErrDocumentNotFound
	}
	return doc, nil
}

func (m memDocs) ListByOwner(_ context.Context, ownerID uuid.UUID, offset, limit int) ([]domain.Document, int, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var docs []domain.Document
	for _, d := range m.s.docs {
		if d.OwnerID == ownerID && d.Status != domain.DocumentStatusDeleted {
			docs = append(docs, d)
		}
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].CreatedAt.After(docs[j].CreatedAt) })
	total := len(docs)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return docs[offset:end], total, nil
}

func (m memDocs) TransitionStatus(_ context.Context, docID uuid.UUID, from []domain.DocumentStatus, to domain.DocumentStatus) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	doc, ok := m.s.docs[docID]
	if !ok {
		return domain.ErrStatusConflict
	}
	allowed := false
	for _, f := range from {
		if doc.Status == f {
			allowed = true
		}
	}
	if !allowed {
		return domain.ErrStatusConflict
	}
	now := time.Now().UTC()
	doc.Status = to
	if to == domain.DocumentStatusPending && doc.SentAt == nil {
		doc.SentAt = &now
	}
	if to == domain.DocumentStatusCompleted {
		doc.CompletedAt = &now
	}
	doc.UpdatedAt = now
	m.s.docs[docID] = doc
	return nil
}

func (m memDocs) MarkVoided(_ context.Context, docID uuid.UUID, voidedFileKey string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	doc, ok := m.s.docs[docID]
	if !ok || doc.Status != domain.DocumentStatusPending {
		return domain.ErrStatusConflict
	}
	doc.Status = domain.DocumentStatusVoided
	doc.VoidedFileKey = &voidedFileKey
	m.s.docs[docID] = doc
	return nil
}

func (m memDocs) SoftDelete(_ context.Context, ownerID, docID uuid.UUID) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	doc, ok := m.s.docs[docID]
	if !ok || doc.OwnerID != ownerID || doc.Status == domain.DocumentStatusDeleted {
		return domain.ErrStatusConflict
	}
	prev := doc.Status
	doc.StatusBeforeDelete = &prev
	doc.Status = domain.DocumentStatusDeleted
	m.s.docs[docID] = doc
	return nil
}

func (m memDocs) Restore(_ context.Context, ownerID, docID uuid.UUID) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	doc, ok := m.s.docs[docID]
	if !ok || doc.OwnerID != ownerID || doc.Status != domain.DocumentStatusDeleted {
		return domain.ErrStatusConflict
	}
	doc.Status = domain.DocumentStatusDraft
	if doc.StatusBeforeDelete != nil {
		doc.Status = *doc.StatusBeforeDelete
	}
	doc.StatusBeforeDelete = nil
	m.s.docs[docID] = doc
	return nil
}

type memReqs struct{ s *MemStore }

// insert requires the caller to hold the lock.
func (m memReqs) insert(req domain.SignRequest) error {
	for _, r := range m.s.reqs {
		if r.Token == req.Token {
			return fmt.Errorf("duplicate token")
		}
		if r.DocumentID == req.DocumentID && strings.EqualFold(r.RecipientEmail, req.RecipientEmail) {
			return domain.ErrDuplicateRecipient
		}
	}
	m.s.reqs[req.ID] = *copyReq(req)
	return nil
}

func (m memReqs) Create(_ context.Context, req *domain.SignRequest) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	now := time.Now().UTC()
	req.CreatedAt, req.UpdatedAt = now, now
	return m.insert(*req)
}

func (m memReqs) CreateBatch(_ context.Context, reqs []domain.SignRequest) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	snapshot := make(map[uuid.UUID]domain.SignRequest, len(m.s.reqs))
	for k, v := range m.s.reqs {
		snapshot[k] = v
	}
	now := time.Now().UTC()
	for i := range reqs {
		reqs[i].CreatedAt = now.Add(time.Duration(i) * time.Microsecond)
		reqs[i].UpdatedAt = reqs[i].CreatedAt
		if err := m.insert(reqs[i]); err != nil {
			m.s.reqs = snapshot
			return err
		}
	}
	return nil
}

func (m memReqs) GetByID(_ context.Context, id uuid.UUID) (*domain.SignRequest, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	r, ok := m.s.reqs[id]
	if !ok {
		return nil, domain.ErrSignRequestNotFound
	}
	return copyReq(r), nil
}

func (m memReqs) GetByToken(_ context.Context, token string) (*domain.SignRequest, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, r := range m.s.reqs {
		if r.Token == token {
			return copyReq(r), nil
		}
	}
	return nil, domain.ErrSignRequestNotFound
}

func (m memReqs) ListByDocument(_ context.Context, documentID uuid.UUID) ([]domain.SignRequest, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []domain.SignRequest
	for _, r := range m.s.reqs {
		if r.DocumentID == documentID {
			out = append(out, *copyReq(r))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SigningOrder != out[j].SigningOrder {
			return out[i].SigningOrder < out[j].SigningOrder
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (m memReqs) CountByStatus(_ context.Context, documentID uuid.UUID) (int, int, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	signed, total := 0, 0
	for _, r := range m.s.reqs {
		if r.DocumentID != documentID {
			continue
		}
		total++
		if r.Status == domain.SignRequestStatusSigned {
			signed++
		}
	}
	return signed, total, nil
}

// updateOpen applies fn to an open request, mirroring the conditional updates.
func (m memReqs) updateOpen(id uuid.UUID, fn func(r *domain.SignRequest) error) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	r, ok := m.s.reqs[id]
	if !ok || !isOpen(r.Status) {
		return domain.ErrStatusConflict
	}
	c := copyReq(r)
	if err := fn(c); err != nil {
		return err
	}
	c.UpdatedAt = time.Now().UTC()
	m.s.reqs[id] = *c
	return nil
}

func (m memReqs) UpdateFields(_ context.Context, id uuid.UUID, fields domain.Fields) error {
	return m.updateOpen(id, func(r *domain.SignRequest) error {
		r.Fields = fields
		return nil
	})
}

func (m memReqs) UpdateRecipient(_ context.Context, id uuid.UUID, email, name string) error {
	m.s.mu.Lock()
	r, ok := m.s.reqs[id]
	for _, o := range m.s.reqs {
		if ok && o.ID != id && o.DocumentID == r.DocumentID && strings.EqualFold(o.RecipientEmail, email) {
			m.s.mu.Unlock()
			return domain.ErrDuplicateRecipient
		}
	}
	m.s.mu.Unlock()
	return m.updateOpen(id, func(r *domain.SignRequest) error {
		r.RecipientEmail, r.RecipientName = email, name
		return nil
	})
}

func (m memReqs) SaveSignature(_ context.Context, id uuid.UUID, fieldID *string, payload string) error {
	return m.updateOpen(id, func(r *domain.SignRequest) error {
		if fieldID == nil {
			p := payload
			r.LegacySignature = &p
			return nil
		}
		r.Signatures[*fieldID] = payload
		return nil
	})
}

func (m memReqs) SaveFieldValue(_ context.Context, id uuid.UUID, fieldID, value string) error {
	return m.updateOpen(id, func(r *domain.SignRequest) error {
		r.FieldValues[fieldID] = value
		return nil
	})
}

func (m memReqs) MarkSent(_ context.Context, id uuid.UUID, sentAt time.Time, expiresAt *time.Time) error {
	return m.updateOpen(id, func(r *domain.SignRequest) error {
		r.SentAt = &sentAt
		if expiresAt != nil {
			e := *expiresAt
			r.ExpiresAt = &e
		}
		return nil
	})
}

func (m memReqs) ClaimInvitation(_ context.Context, id uuid.UUID, sentAt, expiresAt time.Time) error {
	return m.updateOpen(id, func(r *domain.SignRequest) error {
		if r.SentAt != nil {
			return domain.ErrStatusConflict
		}
		r.SentAt = &sentAt
		r.ExpiresAt = &expiresAt
		return nil
	})
}

func (m memReqs) ReleaseInvitation(_ context.Context, id uuid.UUID, sentAt time.Time) error {
	return m.updateOpen(id, func(r *domain.SignRequest) error {
		if r.SentAt == nil || !r.SentAt.Equal(sentAt) {
			return domain.ErrStatusConflict
		}
		r.SentAt = nil
		return nil
	})
}

func (m memReqs) SetExpiry(_ context.Context, id uuid.UUID, expiresAt time.Time) error {
	return m.updateOpen(id, func(r *domain.SignRequest) error {
		r.ExpiresAt = &expiresAt
		return nil
	})
}

func (m memReqs) MarkSigned(_ context.Context, u port.SignedUpdate) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	r, ok := m.s.reqs[u.SignRequestID]
	if !ok || !isOpen(r.Status) {
		return domain.ErrStatusConflict
	}
	doc, ok := m.s.docs[u.DocumentID]
	if !ok || doc.Status != domain.DocumentStatusPending {
		return domain.ErrDocumentNotSignable
	}
	signedAt := u.SignedAt
	r.Status = domain.SignRequestStatusSigned
	r.SignedAt = &signedAt
	r.SignerIP = u.SignerIP
	r.SignerUserAgent = u.SignerUserAgent
	m.s.reqs[r.ID] = r

	key := u.SignedFileKey
	doc.SignedFileKey = &key
	m.s.docs[doc.ID] = doc
	return nil
}

func (m memReqs) MarkDeclined(_ context.Context, u port.DeclineUpdate) error {
	return m.updateOpen(u.SignRequestID, func(r *domain.SignRequest) error {
		declinedAt := u.DeclinedAt
		r.Status = domain.SignRequestStatusDeclined
		r.DeclinedAt = &declinedAt
		r.DeclineReason = u.Reason
		r.SignerIP = u.SignerIP
		r.SignerUserAgent = u.SignerUserAgent
		return nil
	})
}

type memAudit struct{ s *MemStore }

func (m memAudit) Create(_ context.Context, entry *domain.AuditLog) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	m.s.audit = append(m.s.audit, *entry)
	return nil
}

func (m memAudit) ListByDocument(ctx context.Context, documentID uuid.UUID, offset, limit int) ([]domain.AuditLog, int, error) {
	all, _ := m.ListAllByDocument(ctx, documentID)
	total := len(all)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (m memAudit) ListAllByDocument(_ context.Context, documentID uuid.UUID) ([]domain.AuditLog, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []domain.AuditLog
	for _, e := range m.s.audit {
		if e.DocumentID == documentID {
			out = append(out, e)
		}
	}
	return out, nil
}

// MemLocker is a per-document mutex implementation of port.DocumentLocker.
type MemLocker struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

// NewMemLocker creates a MemLocker.
func NewMemLocker() *MemLocker {
	return &MemLocker{locks: make(map[uuid.UUID]*sync.Mutex)}
}

func (l *MemLocker) WithDocumentLock(ctx context.Context, docID uuid.UUID, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	m, ok := l.locks[docID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[docID] = m
	}
	l.mu.Unlock()

	m.Lock()
	defer m.Unlock()
	return fn(ctx)
}

// MemObjectStorage is an in-memory implementation of port.ObjectStorage.
type MemObjectStorage struct {
	mu       sync.Mutex
	objects  map[string][]byte
	metadata map[string]map[string]string
}

// NewMemObjectStorage creates an empty MemObjectStorage.
func NewMemObjectStorage() *MemObjectStorage {
	return &MemObjectStorage{
		objects:  make(map[string][]byte),
		metadata: make(map[string]map[string]string),
	}
}

func (s *MemObjectStorage) Upload(_ context.Context, input port.UploadInput) (*port.UploadOutput, error) {
	data, err := io.ReadAll(input.Body)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[input.Bucket+"/"+input.Key] = data
	s.metadata[input.Bucket+"/"+input.Key] = input.Metadata
	return &port.UploadOutput{Location: "mem://" + input.Bucket + "/" + input.Key}, nil
}

func (s *MemObjectStorage) Download(_ context.Context, bucket, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[bucket+"/"+key]
	if !ok {
		return nil, fmt.Errorf("download %s: %w", key, domain.ErrNotFound)
	}
	return bytes.Clone(data), nil
}

func (s *MemObjectStorage) GetPresignedURL(_ context.Context, input port.PresignInput) (string, error) {
	u := "https://storage.test/" + input.Bucket + "/" + input.Key
	if input.Filename != "" {
		u += "?filename=" + url.QueryEscape(input.Filename)
	}
	return u, nil
}

// Metadata returns the metadata stored with key.
func (s *MemObjectStorage) Metadata(bucket, key string) map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.metadata[bucket+"/"+key]
}

// Keys returns the stored object keys in sorted order.
func (s *MemObjectStorage) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
