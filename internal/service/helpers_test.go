package service_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"signet/internal/domain"
	"signet/internal/geometry"
	"signet/internal/port"
	"signet/internal/service"
	"signet/mocks"
)

const (
	testBucket = "signet-test"
	linkTTL    = 72 * time.Hour
)

// stubRenderer marks embeds and voids in the bytes so tests can follow the
// working copy without rendering real PDFs.
type stubRenderer struct {
	mu        sync.Mutex
	embeds    int
	failEmbed error
	events    []string
}

func (r *stubRenderer) PrefetchFonts(_ context.Context, payloads []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range payloads {
		r.events = append(r.events, "prefetch "+p)
	}
}

func (r *stubRenderer) Embed(_ context.Context, in port.EmbedInput) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failEmbed != nil {
		return nil, r.failEmbed
	}
	for i := range in.Fields {
		f := &in.Fields[i]
		if !f.Type.IsSignatureLike() || !f.Required {
			continue
		}
		if p := in.Signatures[f.ID]; p == "" && (in.LegacySignature == nil || *in.LegacySignature == "") {
			return nil, domain.ErrIntegrityViolation
		}
	}
	r.embeds++
	r.events = append(r.events, "embed "+in.RecordID)
	out := append(bytes.Clone(in.Source), []byte("\n%signed "+in.RecordID)...)
	return out, nil
}

func (r *stubRenderer) Void(_ context.Context, source []byte, label string) ([]byte, error) {
	return append(bytes.Clone(source), []byte("\n%"+label)...), nil
}

func (r *stubRenderer) MeasurePages(source []byte) ([]geometry.PageSize, error) {
	if !bytes.HasPrefix(source, []byte("%PDF-")) {
		return nil, domain.ErrInvalidPDF
	}
	return []geometry.PageSize{{Width: 612, Height: 792}, {Width: 612, Height: 792}}, nil
}

func (r *stubRenderer) log() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func (r *stubRenderer) embedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.embeds
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type harness struct {
	store    *mocks.MemStore
	files    *mocks.MemObjectStorage
	notifier *mocks.RecordingNotifier
	renderer *stubRenderer
	clock    *clock
	signing  service.SignRequestService
	env      service.EnvelopeService
	owner    domain.Owner
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWithDocs(t, nil)
}

// newHarnessWithDocs lets a test wrap the document repository the services see.
func newHarnessWithDocs(t *testing.T, wrap func(port.DocumentRepository) port.DocumentRepository) *harness {
	t.Helper()
	h := &harness{
		store:    mocks.NewMemStore(),
		files:    mocks.NewMemObjectStorage(),
		notifier: mocks.NewRecordingNotifier(),
		renderer: &stubRenderer{},
		clock:    &clock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)},
		owner:    domain.Owner{ID: uuid.New(), Email: "owner@example.com", Name: "Olivia Owner"},
	}
	opts := service.SigningOptions{
		Bucket:        testBucket,
		LinkTTL:       linkTTL,
		PresignExpiry: 900,
		MaxFileSize:   1 << 20,
		Now:           h.clock.Now,
	}
	var docs port.DocumentRepository = h.store.Documents()
	if wrap != nil {
		docs = wrap(docs)
	}
	locker := mocks.NewMemLocker()
	h.signing = service.NewSignRequestService(
		docs, h.store.SignRequests(), h.store.Audit(), locker, h.renderer, h.files, opts)
	h.env = service.NewEnvelopeService(
		docs, h.store.SignRequests(), h.store.Audit(), locker, h.renderer, h.files, h.notifier, h.signing, opts)
	return h
}

func pct(v float64) *float64 { return &v }

func signatureField(id string, required bool) domain.Field {
	return domain.Field{
		FieldBase: domain.FieldBase{
			ID: id, Page: 1, Type: domain.FieldSignature, Required: required,
			XPct: pct(10), YPct: pct(70), WPct: pct(30), HPct: pct(8),
		},
		Variant: domain.SignatureVariant{},
	}
}

func textField(id string, format domain.TextFormat) domain.Field {
	return domain.Field{
		FieldBase: domain.FieldBase{
			ID: id, Page: 1, Type: domain.FieldText,
			XPct: pct(10), YPct: pct(20), WPct: pct(40), HPct: pct(4),
		},
		Variant: domain.TextVariant{TextFormat: format},
	}
}

func dropdownField(id string, options ...string) domain.Field {
	return domain.Field{
		FieldBase: domain.FieldBase{
			ID: id, Page: 2, Type: domain.FieldDropdown,
			XPct: pct(10), YPct: pct(30), WPct: pct(20), HPct: pct(4),
		},
		Variant: domain.DropdownVariant{Options: options},
	}
}

func (h *harness) createDocument(t *testing.T, signingOrder bool) *domain.Document {
	t.Helper()
	pdf := []byte("%PDF-1.7\n% fixture\n")
	doc, err := h.env.CreateDocument(context.Background(), service.CreateDocumentInput{
		Owner:               h.owner,
		Title:               "Master Services Agreement",
		FileName:            "msa.pdf",
		File:                bytes.NewReader(pdf),
		Size:                int64(len(pdf)),
		SigningOrderEnabled: signingOrder,
	})
	require.NoError(t, err)
	return doc
}

func recipient(email string, order int) service.RecipientInput {
	name := strings.SplitN(email, "@", 2)[0]
	return service.RecipientInput{
		Email:        email,
		Name:         name,
		SigningOrder: order,
		Fields:       domain.Fields{signatureField("sig-"+name, true)},
	}
}

// sentDocument creates a document with one recipient per email and sends it.
func (h *harness) sentDocument(t *testing.T, signingOrder bool, emails ...string) (*domain.Document, map[string]string) {
	t.Helper()
	ctx := context.Background()
	doc := h.createDocument(t, signingOrder)
	inputs := make([]service.RecipientInput, len(emails))
	for i, e := range emails {
		inputs[i] = recipient(e, i+1)
	}
	_, err := h.env.AddRecipients(ctx, h.owner, doc.ID, inputs)
	require.NoError(t, err)
	_, err = h.env.Send(ctx, h.owner, doc.ID)
	require.NoError(t, err)
	return doc, h.tokens(t, doc.ID)
}

// tokens maps recipient email to sign request token.
func (h *harness) tokens(t *testing.T, docID uuid.UUID) map[string]string {
	t.Helper()
	reqs, err := h.store.SignRequests().ListByDocument(context.Background(), docID)
	require.NoError(t, err)
	out := make(map[string]string, len(reqs))
	for _, r := range reqs {
		out[r.RecipientEmail] = r.Token
	}
	return out
}

// sign saves a typed signature on every signature field and completes.
func (h *harness) sign(t *testing.T, token string) *domain.SignRequest {
	t.Helper()
	ctx := context.Background()
	info, err := h.signing.GetInfo(ctx, token)
	require.NoError(t, err)
	for i := range info.Request.Fields {
		f := info.Request.Fields[i]
		if f.Type.IsSignatureLike() {
			id := f.ID
			_, err := h.signing.SaveSignature(ctx, token, &id, "typed::"+info.Request.DisplayName()+"::Dancing Script::XX::14")
			require.NoError(t, err)
		}
	}
	req, err := h.env.Complete(ctx, token, "203.0.113.7", "test-agent")
	require.NoError(t, err)
	return req
}

func (h *harness) document(t *testing.T, id uuid.UUID) *domain.Document {
	t.Helper()
	doc, err := h.store.Documents().GetByID(context.Background(), id)
	require.NoError(t, err)
	return doc
}

func (h *harness) workingCopy(t *testing.T, id uuid.UUID) string {
	t.Helper()
	doc := h.document(t, id)
	data, err := h.files.Download(context.Background(), testBucket, doc.WorkingFileKey())
	require.NoError(t, err)
	return string(data)
}

var errBoom = errors.New("boom")

func emails(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("signer%d@example.com", i+1)
	}
	return out
}

// failingVoids fails the first n MarkVoided calls.
type failingVoids struct {
	port.DocumentRepository
	mu sync.Mutex
	n  int
}

func (r *failingVoids) MarkVoided(ctx context.Context, id uuid.UUID, voidedKey string) error {
	r.mu.Lock()
	fail := r.n > 0
	if fail {
		r.n--
	}
	r.mu.Unlock()
	if fail {
		return errBoom
	}
	return r.DocumentRepository.MarkVoided(ctx, id, voidedKey)
}
