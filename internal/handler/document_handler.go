package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"signet/internal/auditexport"
	"signet/internal/domain"
	"signet/internal/email"
	"signet/internal/service"
)

// DocumentHandler handles the owner-facing document endpoints.
type DocumentHandler struct {
	envelopeService service.EnvelopeService
	frontendURL     string
}

// NewDocumentHandler creates a new DocumentHandler.
func NewDocumentHandler(envelopeService service.EnvelopeService, frontendURL string) *DocumentHandler {
	return &DocumentHandler{envelopeService: envelopeService, frontendURL: frontendURL}
}

// SignRequestView is a sign request as the owner sees it.
type SignRequestView struct {
	domain.SignRequest
	SigningURL string `json:"signing_url"`
}

// DocumentView is a document with its recipients.
type DocumentView struct {
	*domain.Document
	SignRequests []SignRequestView `json:"sign_requests"`
}

func (h *DocumentHandler) requestViews(reqs []domain.SignRequest) []SignRequestView {
	views := make([]SignRequestView, len(reqs))
	for i := range reqs {
		views[i] = SignRequestView{SignRequest: reqs[i], SigningURL: email.SignURL(h.frontendURL, reqs[i].Token)}
	}
	return views
}

func parseDocumentID(c *gin.Context) (uuid.UUID, bool) {
	docID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_ID", "invalid document ID")
		return uuid.Nil, false
	}
	return docID, true
}

// Create handles POST /api/v1/documents
// @Summary Upload a document
// @Description Upload a PDF (multipart) and create a draft document
// @Tags documents
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "PDF to sign"
// @Param title formData string false "Document title (defaults to the file name)"
// @Param signing_order_enabled formData bool false "Recipients sign one signing-order group at a time"
// @Param render_width formData number false "Width in pixels the editor rendered page 1 at"
// @Param render_height formData number false "Height in pixels the editor rendered page 1 at"
// @Success 201 {object} Response{data=domain.Document} "Document created"
// @Failure 400 {object} ErrorResponseBody "Missing file or not a PDF"
// @Failure 401 {object} ErrorResponseBody "Unauthorized"
// @Failure 413 {object} ErrorResponseBody "File too large"
// @Security BearerAuth
// @Router /documents [post]
func (h *DocumentHandler) Create(c *gin.Context) {
	owner, ok := extractOwner(c)
	if !ok {
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		RespondError(c, http.StatusBadRequest, "MISSING_FILE", "file field is required")
		return
	}
	defer func() { _ = file.Close() }()

	signingOrder, _ := strconv.ParseBool(c.DefaultPostForm("signing_order_enabled", "false"))
	renderWidth, _ := strconv.ParseFloat(c.PostForm("render_width"), 64)
	renderHeight, _ := strconv.ParseFloat(c.PostForm("render_height"), 64)

	doc, err := h.envelopeService.CreateDocument(c.Request.Context(), service.CreateDocumentInput{
		Owner:               owner,
		Title:               c.PostForm("title"),
		FileName:            header.Filename,
		File:                file,
		Size:                header.Size,
		SigningOrderEnabled: signingOrder,
		RenderWidth:         renderWidth,
		RenderHeight:        renderHeight,
	})
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondCreated(c, doc)
}

// List handles GET /api/v1/documents
// @Summary List documents
// @Description List the caller's documents, newest first
// @Tags documents
// @Produce json
// @Param offset query int false "Offset for pagination" default(0)
// @Param limit query int false "Limit for pagination (max 100)" default(20)
// @Success 200 {object} Response{data=[]domain.Document,meta=PagMeta} "List of documents"
// @Failure 401 {object} ErrorResponseBody "Unauthorized"
// @Security BearerAuth
// @Router /documents [get]
func (h *DocumentHandler) List(c *gin.Context) {
	owner, ok := extractOwner(c)
	if !ok {
		return
	}

	offset, limit := parsePagination(c)
	docs, total, err := h.envelopeService.List(c.Request.Context(), owner, offset, limit)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondPaginated(c, docs, PagMeta{Total: total, Offset: offset, Limit: limit})
}

// GetByID handles GET /api/v1/documents/:id
// @Summary Get document by ID
// @Description Get a document with its recipients and their signing links
// @Tags documents
// @Produce json
// @Param id path string true "Document ID (UUID)"
// @Success 200 {object} Response{data=DocumentView} "Document details"
// @Failure 400 {object} ErrorResponseBody "Invalid ID"
// @Failure 401 {object} ErrorResponseBody "Unauthorized"
// @Failure 404 {object} ErrorResponseBody "Document not found"
// @Security BearerAuth
// @Router /documents/{id} [get]
func (h *DocumentHandler) GetByID(c *gin.Context) {
	owner, ok := extractOwner(c)
	if !ok {
		return
	}
	docID, ok := parseDocumentID(c)
	if !ok {
		return
	}

	detail, err := h.envelopeService.Get(c.Request.Context(), owner, docID)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondOK(c, DocumentView{Document: detail.Document, SignRequests: h.requestViews(detail.SignRequests)})
}

// AddRecipients handles POST /api/v1/documents/:id/recipients
// @Summary Add recipients
// @Description Add recipients with their field placements. Recipients added to a
// @Description pending document are notified when their signing-order group is open.
// @Tags documents
// @Accept json
// @Produce json
// @Param id path string true "Document ID (UUID)"
// @Param request body AddRecipientsRequest true "Recipients"
// @Success 201 {object} Response{data=[]SignRequestView} "Recipients added"
// @Failure 400 {object} ErrorResponseBody "Invalid recipient or field"
// @Failure 401 {object} ErrorResponseBody "Unauthorized"
// @Failure 404 {object} ErrorResponseBody "Document not found"
// @Failure 409 {object} ErrorResponseBody "Duplicate recipient or document closed"
// @Failure 502 {object} ErrorResponseBody "Notification delivery failed"
// @Security BearerAuth
// @Router /documents/{id}/recipients [post]
func (h *DocumentHandler) AddRecipients(c *gin.Context) {
	owner, ok := extractOwner(c)
	if !ok {
		return
	}
	docID, ok := parseDocumentID(c)
	if !ok {
		return
	}

	var req AddRecipientsRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Recipients) == 0 {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "recipients must be a non-empty list of {email, name, signing_order, fields}")
		return
	}

	inputs := make([]service.RecipientInput, len(req.Recipients))
	for i, r := range req.Recipients {
		inputs[i] = service.RecipientInput{
			Email:        r.Email,
			Name:         r.Name,
			SigningOrder: r.SigningOrder,
			Fields:       r.Fields,
		}
	}

	reqs, err := h.envelopeService.AddRecipients(c.Request.Context(), owner, docID, inputs)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondCreated(c, h.requestViews(reqs))
}

// UpdateFields handles PUT /api/v1/documents/:id/recipients/:requestId/fields
// @Summary Replace a recipient's fields
// @Description Replace the field placements of a recipient who has not signed yet
// @Tags documents
// @Accept json
// @Produce json
// @Param id path string true "Document ID (UUID)"
// @Param requestId path string true "Sign request ID (UUID)"
// @Param request body UpdateFieldsRequest true "Fields"
// @Success 200 {object} Response{data=SignRequestView} "Fields updated"
// @Failure 400 {object} ErrorResponseBody "Invalid field"
// @Failure 401 {object} ErrorResponseBody "Unauthorized"
// @Failure 404 {object} ErrorResponseBody "Document or sign request not found"
// @Failure 409 {object} ErrorResponseBody "Recipient already finished"
// @Security BearerAuth
// @Router /documents/{id}/recipients/{requestId}/fields [put]
func (h *DocumentHandler) UpdateFields(c *gin.Context) {
	owner, ok := extractOwner(c)
	if !ok {
		return
	}
	docID, ok := parseDocumentID(c)
	if !ok {
		return
	}
	reqID, err := uuid.Parse(c.Param("requestId"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_ID", "invalid sign request ID")
		return
	}

	var req UpdateFieldsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "fields must be a list of field placements")
		return
	}

	updated, err := h.envelopeService.UpdateFields(c.Request.Context(), owner, docID, reqID, req.Fields)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondOK(c, h.requestViews([]domain.SignRequest{*updated})[0])
}

// Send handles POST /api/v1/documents/:id/send
// @Summary Send a document
// @Description Move a draft to pending and email the first signing-order group
// @Tags documents
// @Produce json
// @Param id path string true "Document ID (UUID)"
// @Success 200 {object} Response{data=domain.Document} "Document sent"
// @Failure 400 {object} ErrorResponseBody "No recipients"
// @Failure 401 {object} ErrorResponseBody "Unauthorized"
// @Failure 404 {object} ErrorResponseBody "Document not found"
// @Failure 409 {object} ErrorResponseBody "Document is not a draft"
// @Failure 502 {object} ErrorResponseBody "Notification delivery failed"
// @Security BearerAuth
// @Router /documents/{id}/send [post]
func (h *DocumentHandler) Send(c *gin.Context) {
	owner, ok := extractOwner(c)
	if !ok {
		return
	}
	docID, ok := parseDocumentID(c)
	if !ok {
		return
	}

	doc, err := h.envelopeService.Send(c.Request.Context(), owner, docID)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondOK(c, doc)
}

// Resend handles POST /api/v1/documents/:id/resend
// @Summary Resend signing links
// @Description Apply optional recipient corrections, extend link expiry, and re-email
// @Description every recipient whose turn it is
// @Tags documents
// @Accept json
// @Produce json
// @Param id path string true "Document ID (UUID)"
// @Param request body ResendRequest false "Recipient corrections"
// @Success 200 {object} Response{data=domain.Document} "Links resent"
// @Failure 400 {object} ErrorResponseBody "Invalid correction"
// @Failure 401 {object} ErrorResponseBody "Unauthorized"
// @Failure 404 {object} ErrorResponseBody "Document not found"
// @Failure 409 {object} ErrorResponseBody "Document is not pending"
// @Failure 502 {object} ErrorResponseBody "Notification delivery failed"
// @Security BearerAuth
// @Router /documents/{id}/resend [post]
func (h *DocumentHandler) Resend(c *gin.Context) {
	owner, ok := extractOwner(c)
	if !ok {
		return
	}
	docID, ok := parseDocumentID(c)
	if !ok {
		return
	}

	var req ResendRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "corrections must be a list of {sign_request_id, email, name}")
			return
		}
	}
	corrections := make([]service.RecipientCorrection, len(req.Corrections))
	for i, cr := range req.Corrections {
		corrections[i] = service.RecipientCorrection{SignRequestID: cr.SignRequestID, Email: cr.Email, Name: cr.Name}
	}

	doc, err := h.envelopeService.Resend(c.Request.Context(), owner, docID, corrections)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondOK(c, doc)
}

// Cancel handles POST /api/v1/documents/:id/cancel
// @Summary Cancel a document
// @Description Cancel a draft or pending document
// @Tags documents
// @Produce json
// @Param id path string true "Document ID (UUID)"
// @Success 200 {object} Response{data=domain.Document} "Document cancelled"
// @Failure 401 {object} ErrorResponseBody "Unauthorized"
// @Failure 404 {object} ErrorResponseBody "Document not found"
// @Failure 409 {object} ErrorResponseBody "Document already finished"
// @Security BearerAuth
// @Router /documents/{id}/cancel [post]
func (h *DocumentHandler) Cancel(c *gin.Context) {
	owner, ok := extractOwner(c)
	if !ok {
		return
	}
	docID, ok := parseDocumentID(c)
	if !ok {
		return
	}

	doc, err := h.envelopeService.Cancel(c.Request.Context(), owner, docID)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondOK(c, doc)
}

// Delete handles DELETE /api/v1/documents/:id
// @Summary Delete a document
// @Description Soft-delete a document; it can be restored later
// @Tags documents
// @Produce json
// @Param id path string true "Document ID (UUID)"
// @Success 200 {object} Response "Document deleted"
// @Failure 401 {object} ErrorResponseBody "Unauthorized"
// @Failure 404 {object} ErrorResponseBody "Document not found"
// @Security BearerAuth
// @Router /documents/{id} [delete]
func (h *DocumentHandler) Delete(c *gin.Context) {
	owner, ok := extractOwner(c)
	if !ok {
		return
	}
	docID, ok := parseDocumentID(c)
	if !ok {
		return
	}

	if err := h.envelopeService.Delete(c.Request.Context(), owner, docID); err != nil {
		HandleError(c, err)
		return
	}

	RespondOK(c, gin.H{"message": "document deleted"})
}

// Restore handles POST /api/v1/documents/:id/restore
// @Summary Restore a deleted document
// @Tags documents
// @Produce json
// @Param id path string true "Document ID (UUID)"
// @Success 200 {object} Response{data=domain.Document} "Document restored"
// @Failure 401 {object} ErrorResponseBody "Unauthorized"
// @Failure 404 {object} ErrorResponseBody "Document not found"
// @Failure 409 {object} ErrorResponseBody "Document is not deleted"
// @Security BearerAuth
// @Router /documents/{id}/restore [post]
func (h *DocumentHandler) Restore(c *gin.Context) {
	owner, ok := extractOwner(c)
	if !ok {
		return
	}
	docID, ok := parseDocumentID(c)
	if !ok {
		return
	}

	doc, err := h.envelopeService.Restore(c.Request.Context(), owner, docID)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondOK(c, doc)
}

// Download handles GET /api/v1/documents/:id/download
// @Summary Get a download URL
// @Description Presigned URL of the current copy: signed when complete, voided when voided
// @Tags documents
// @Produce json
// @Param id path string true "Document ID (UUID)"
// @Success 200 {object} Response{data=URLResponse} "Presigned URL"
// @Failure 401 {object} ErrorResponseBody "Unauthorized"
// @Failure 404 {object} ErrorResponseBody "Document not found"
// @Security BearerAuth
// @Router /documents/{id}/download [get]
func (h *DocumentHandler) Download(c *gin.Context) {
	owner, ok := extractOwner(c)
	if !ok {
		return
	}
	docID, ok := parseDocumentID(c)
	if !ok {
		return
	}

	url, err := h.envelopeService.DownloadURL(c.Request.Context(), owner, docID)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondOK(c, URLResponse{URL: url})
}

// AuditTrail handles GET /api/v1/documents/:id/audit
// @Summary List audit events
// @Tags documents
// @Produce json
// @Param id path string true "Document ID (UUID)"
// @Param offset query int false "Offset for pagination" default(0)
// @Param limit query int false "Limit for pagination (max 100)" default(20)
// @Success 200 {object} Response{data=[]domain.AuditLog,meta=PagMeta} "Audit events, oldest first"
// @Failure 401 {object} ErrorResponseBody "Unauthorized"
// @Failure 404 {object} ErrorResponseBody "Document not found"
// @Security BearerAuth
// @Router /documents/{id}/audit [get]
func (h *DocumentHandler) AuditTrail(c *gin.Context) {
	owner, ok := extractOwner(c)
	if !ok {
		return
	}
	docID, ok := parseDocumentID(c)
	if !ok {
		return
	}

	offset, limit := parsePagination(c)
	entries, total, err := h.envelopeService.AuditTrail(c.Request.Context(), owner, docID, offset, limit)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondPaginated(c, entries, PagMeta{Total: total, Offset: offset, Limit: limit})
}

// ExportAudit handles GET /api/v1/documents/:id/audit/export
// @Summary Export the audit trail
// @Tags documents
// @Produce text/csv
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param id path string true "Document ID (UUID)"
// @Param format query string false "csv or xlsx" default(csv)
// @Success 200 {file} file "Audit trail"
// @Failure 400 {object} ErrorResponseBody "Unsupported format"
// @Failure 401 {object} ErrorResponseBody "Unauthorized"
// @Failure 404 {object} ErrorResponseBody "Document not found"
// @Security BearerAuth
// @Router /documents/{id}/audit/export [get]
func (h *DocumentHandler) ExportAudit(c *gin.Context) {
	owner, ok := extractOwner(c)
	if !ok {
		return
	}
	docID, ok := parseDocumentID(c)
	if !ok {
		return
	}
	format, err := auditexport.ParseFormat(c.Query("format"))
	if err != nil {
		HandleError(c, err)
		return
	}

	file, err := h.envelopeService.ExportAudit(c.Request.Context(), owner, docID, format)
	if err != nil {
		HandleError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+file.Name+`"`)
	c.Data(http.StatusOK, file.ContentType, file.Data)
}

// parsePagination extracts offset and limit from query params with defaults.
func parsePagination(c *gin.Context) (offset, limit int) {
	offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return offset, limit
}
