package handler_test

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"signet/internal/auditexport"
	"signet/internal/domain"
	"signet/internal/handler"
	"signet/internal/service"
	"signet/mocks"
)

func newDocumentRouter() (*gin.Engine, *mocks.MockEnvelopeService) {
	svc := new(mocks.MockEnvelopeService)
	h := handler.NewDocumentHandler(svc, "https://sign.example.com/")

	r := gin.New()
	docs := r.Group("/documents", withOwner)
	docs.POST("", h.Create)
	docs.GET("", h.List)
	docs.GET("/:id", h.GetByID)
	docs.POST("/:id/recipients", h.AddRecipients)
	docs.PUT("/:id/recipients/:requestId/fields", h.UpdateFields)
	docs.POST("/:id/send", h.Send)
	docs.POST("/:id/resend", h.Resend)
	docs.POST("/:id/cancel", h.Cancel)
	docs.DELETE("/:id", h.Delete)
	docs.POST("/:id/restore", h.Restore)
	docs.GET("/:id/download", h.Download)
	docs.GET("/:id/audit", h.AuditTrail)
	docs.GET("/:id/audit/export", h.ExportAudit)
	return r, svc
}

func multipartUpload(t *testing.T, fields map[string]string, fileName string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if fileName != "" {
		fw, err := mw.CreateFormFile("file", fileName)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestDocumentHandler_Create(t *testing.T) {
	r, svc := newDocumentRouter()
	pdf := []byte("%PDF-1.7\n")
	doc := &domain.Document{ID: uuid.New(), Title: "NDA", Status: domain.DocumentStatusDraft}

	svc.On("CreateDocument", mock.Anything, mock.MatchedBy(func(in service.CreateDocumentInput) bool {
		return in.Owner == testOwner && in.Title == "NDA" && in.FileName == "nda.pdf" &&
			in.Size == int64(len(pdf)) && in.SigningOrderEnabled && in.RenderWidth == 816
	})).Return(doc, nil)

	body, ct := multipartUpload(t, map[string]string{
		"title":                 "NDA",
		"signing_order_enabled": "true",
		"render_width":          "816",
	}, "nda.pdf", pdf)
	w := perform(r, http.MethodPost, "/documents", body, ct)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, decode(t, w).Success)
	svc.AssertExpectations(t)
}

func TestDocumentHandler_Create_MissingFile(t *testing.T) {
	r, svc := newDocumentRouter()

	body, ct := multipartUpload(t, map[string]string{"title": "NDA"}, "", nil)
	w := perform(r, http.MethodPost, "/documents", body, ct)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "MISSING_FILE", errorCode(t, w))
	svc.AssertNotCalled(t, "CreateDocument", mock.Anything, mock.Anything)
}

func TestDocumentHandler_Create_NotPDF(t *testing.T) {
	r, svc := newDocumentRouter()
	svc.On("CreateDocument", mock.Anything, mock.Anything).Return(nil, domain.ErrInvalidPDF)

	body, ct := multipartUpload(t, nil, "notes.txt", []byte("hello"))
	w := perform(r, http.MethodPost, "/documents", body, ct)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_PDF", errorCode(t, w))
}

func TestDocumentHandler_NoOwner(t *testing.T) {
	svc := new(mocks.MockEnvelopeService)
	h := handler.NewDocumentHandler(svc, "https://sign.example.com")
	r := gin.New()
	r.GET("/documents", h.List)

	w := perform(r, http.MethodGet, "/documents", nil, "")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestDocumentHandler_List(t *testing.T) {
	r, svc := newDocumentRouter()
	docs := []domain.Document{{ID: uuid.New()}, {ID: uuid.New()}}
	svc.On("List", mock.Anything, testOwner, 10, 20).Return(docs, 42, nil)

	w := perform(r, http.MethodGet, "/documents?offset=10&limit=500", nil, "")

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, handler.PagMeta{Total: 42, Offset: 10, Limit: 20}, *resp.Meta)
}

func TestDocumentHandler_GetByID(t *testing.T) {
	r, svc := newDocumentRouter()
	docID := uuid.New()
	detail := &service.DocumentDetail{
		Document: &domain.Document{ID: docID, Title: "NDA"},
		SignRequests: []domain.SignRequest{
			{ID: uuid.New(), DocumentID: docID, RecipientEmail: "bob@example.com", Token: "tok-bob"},
		},
	}
	svc.On("Get", mock.Anything, testOwner, docID).Return(detail, nil)

	w := perform(r, http.MethodGet, "/documents/"+docID.String(), nil, "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"signing_url":"https://sign.example.com/sign/tok-bob"`)
	assert.Contains(t, w.Body.String(), `"title":"NDA"`)
	assert.NotContains(t, w.Body.String(), `"token"`)
}

func TestDocumentHandler_GetByID_InvalidID(t *testing.T) {
	r, _ := newDocumentRouter()

	w := perform(r, http.MethodGet, "/documents/not-a-uuid", nil, "")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_ID", errorCode(t, w))
}

func TestDocumentHandler_AddRecipients(t *testing.T) {
	r, svc := newDocumentRouter()
	docID := uuid.New()
	created := []domain.SignRequest{{ID: uuid.New(), DocumentID: docID, RecipientEmail: "bob@example.com", Token: "t1"}}

	svc.On("AddRecipients", mock.Anything, testOwner, docID, mock.MatchedBy(func(in []service.RecipientInput) bool {
		return len(in) == 1 && in[0].Email == "bob@example.com" && in[0].SigningOrder == 2 &&
			len(in[0].Fields) == 1 && in[0].Fields[0].Type == domain.FieldSignature && *in[0].Fields[0].XPct == 10
	})).Return(created, nil)

	w := performJSON(r, http.MethodPost, "/documents/"+docID.String()+"/recipients", map[string]interface{}{
		"recipients": []map[string]interface{}{{
			"email":         "bob@example.com",
			"name":          "Bob",
			"signing_order": 2,
			"fields": []map[string]interface{}{{
				"id": "sig-1", "type": "signature", "page": 1, "required": true,
				"xPct": 10, "yPct": 80, "wPct": 30, "hPct": 6,
			}},
		}},
	})

	assert.Equal(t, http.StatusCreated, w.Code)
	svc.AssertExpectations(t)
}

func TestDocumentHandler_AddRecipients_BadBody(t *testing.T) {
	r, svc := newDocumentRouter()
	docID := uuid.New()

	tests := []struct {
		name    string
		payload interface{}
	}{
		{"empty list", map[string]interface{}{"recipients": []interface{}{}}},
		{"unknown field type", map[string]interface{}{"recipients": []map[string]interface{}{{
			"email": "bob@example.com", "fields": []map[string]interface{}{{"id": "f", "type": "hologram"}},
		}}}},
		{"field without id", map[string]interface{}{"recipients": []map[string]interface{}{{
			"email": "bob@example.com", "fields": []map[string]interface{}{{"type": "text"}},
		}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := performJSON(r, http.MethodPost, "/documents/"+docID.String()+"/recipients", tt.payload)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
	svc.AssertNotCalled(t, "AddRecipients", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestDocumentHandler_UpdateFields(t *testing.T) {
	r, svc := newDocumentRouter()
	docID, reqID := uuid.New(), uuid.New()
	svc.On("UpdateFields", mock.Anything, testOwner, docID, reqID, mock.AnythingOfType("domain.Fields")).
		Return(nil, domain.ErrAlreadySigned)

	w := performJSON(r, http.MethodPut, "/documents/"+docID.String()+"/recipients/"+reqID.String()+"/fields",
		map[string]interface{}{"fields": []map[string]interface{}{{"id": "t1", "type": "text", "page": 1}}})

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "ALREADY_SIGNED", errorCode(t, w))
}

func TestDocumentHandler_Send(t *testing.T) {
	r, svc := newDocumentRouter()
	docID := uuid.New()

	svc.On("Send", mock.Anything, testOwner, docID).
		Return(nil, &domain.DeliveryError{Kind: domain.DeliveryBounce, Recipient: "typo@exmaple.com"}).Once()
	w := perform(r, http.MethodPost, "/documents/"+docID.String()+"/send", nil, "")
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "DELIVERY_BOUNCED", errorCode(t, w))

	svc.On("Send", mock.Anything, testOwner, docID).
		Return(&domain.Document{ID: docID, Status: domain.DocumentStatusPending}, nil).Once()
	w = perform(r, http.MethodPost, "/documents/"+docID.String()+"/send", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestDocumentHandler_Resend(t *testing.T) {
	r, svc := newDocumentRouter()
	docID, reqID := uuid.New(), uuid.New()
	doc := &domain.Document{ID: docID, Status: domain.DocumentStatusPending}

	svc.On("Resend", mock.Anything, testOwner, docID, []service.RecipientCorrection{}).Return(doc, nil).Once()
	w := perform(r, http.MethodPost, "/documents/"+docID.String()+"/resend", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)

	svc.On("Resend", mock.Anything, testOwner, docID, []service.RecipientCorrection{
		{SignRequestID: reqID, Email: "bob@example.org"},
	}).Return(doc, nil).Once()
	w = performJSON(r, http.MethodPost, "/documents/"+docID.String()+"/resend", map[string]interface{}{
		"corrections": []map[string]interface{}{{"sign_request_id": reqID, "email": "bob@example.org"}},
	})
	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)
}

func TestDocumentHandler_Lifecycle(t *testing.T) {
	r, svc := newDocumentRouter()
	docID := uuid.New()
	base := "/documents/" + docID.String()

	svc.On("Cancel", mock.Anything, testOwner, docID).Return(nil, domain.ErrInvalidTransition)
	svc.On("Delete", mock.Anything, testOwner, docID).Return(nil)
	svc.On("Restore", mock.Anything, testOwner, docID).Return(&domain.Document{ID: docID, Status: domain.DocumentStatusDraft}, nil)
	svc.On("DownloadURL", mock.Anything, testOwner, docID).Return("https://storage.test/signed.pdf", nil)

	w := perform(r, http.MethodPost, base+"/cancel", nil, "")
	assert.Equal(t, http.StatusConflict, w.Code)

	w = perform(r, http.MethodDelete, base, nil, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = perform(r, http.MethodPost, base+"/restore", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = perform(r, http.MethodGet, base+"/download", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"url":"https://storage.test/signed.pdf"`)
}

func TestDocumentHandler_AuditTrail(t *testing.T) {
	r, svc := newDocumentRouter()
	docID := uuid.New()
	entries := []domain.AuditLog{{ID: uuid.New(), DocumentID: docID, EventType: domain.AuditSigned}}
	svc.On("AuditTrail", mock.Anything, testOwner, docID, 0, 20).Return(entries, 1, nil)

	w := perform(r, http.MethodGet, "/documents/"+docID.String()+"/audit", nil, "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, decode(t, w).Meta.Total)
}

func TestDocumentHandler_ExportAudit(t *testing.T) {
	r, svc := newDocumentRouter()
	docID := uuid.New()
	file := &auditexport.File{Name: "NDA_audit_2025-03-05.csv", ContentType: "text/csv; charset=utf-8", Data: []byte("a,b\n")}
	svc.On("ExportAudit", mock.Anything, testOwner, docID, auditexport.FormatCSV).Return(file, nil)

	w := perform(r, http.MethodGet, "/documents/"+docID.String()+"/audit/export", nil, "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="NDA_audit_2025-03-05.csv"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "a,b\n", w.Body.String())

	w = perform(r, http.MethodGet, "/documents/"+docID.String()+"/audit/export?format=pdf", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "UNSUPPORTED_FORMAT", errorCode(t, w))
}
