package handler

import (
	"log"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"signet/internal/domain"
	"signet/internal/service"
)

// SignHandler handles the recipient-facing signing endpoints. Recipients are
// identified by the token in the path; they never hold an account.
type SignHandler struct {
	signingService  service.SignRequestService
	envelopeService service.EnvelopeService
}

// NewSignHandler creates a new SignHandler.
func NewSignHandler(signingService service.SignRequestService, envelopeService service.EnvelopeService) *SignHandler {
	return &SignHandler{signingService: signingService, envelopeService: envelopeService}
}

// RecipientRequestView is a sign request as its recipient sees it.
type RecipientRequestView struct {
	ID             uuid.UUID                `json:"id"`
	RecipientEmail string                   `json:"recipient_email"`
	RecipientName  string                   `json:"recipient_name"`
	Status         domain.SignRequestStatus `json:"status"`
	ExpiresAt      *time.Time               `json:"expires_at"`
	Fields         domain.Fields            `json:"fields"`
	FieldValues    domain.StringMap         `json:"field_values"`
	// SignedFieldIDs lists the signature fields that already hold a payload.
	SignedFieldIDs []string   `json:"signed_field_ids"`
	SignedAt       *time.Time `json:"signed_at"`
	DeclinedAt     *time.Time `json:"declined_at"`
}

// SigningView is what the signing page renders.
type SigningView struct {
	DocumentID     uuid.UUID             `json:"document_id"`
	DocumentTitle  string                `json:"document_title"`
	DocumentStatus domain.DocumentStatus `json:"document_status"`
	OwnerName      string                `json:"owner_name"`
	OwnerEmail     string                `json:"owner_email"`
	RenderWidth    float64               `json:"render_width"`
	CanSign        bool                  `json:"can_sign"`
	Request        RecipientRequestView  `json:"request"`
}

func recipientView(req *domain.SignRequest) RecipientRequestView {
	signed := make([]string, 0, len(req.Fields))
	for i := range req.Fields {
		f := &req.Fields[i]
		if !f.Type.IsSignatureLike() {
			continue
		}
		if _, ok := req.SignaturePayload(f.ID); ok {
			signed = append(signed, f.ID)
		}
	}
	sort.Strings(signed)
	return RecipientRequestView{
		ID:             req.ID,
		RecipientEmail: req.RecipientEmail,
		RecipientName:  req.RecipientName,
		Status:         req.Status,
		ExpiresAt:      req.ExpiresAt,
		Fields:         req.Fields,
		FieldValues:    req.FieldValues,
		SignedFieldIDs: signed,
		SignedAt:       req.SignedAt,
		DeclinedAt:     req.DeclinedAt,
	}
}

// Get handles GET /api/v1/sign/:token
// @Summary Open a signing link
// @Description Document summary, the recipient's fields, and whether it is their turn.
// @Description Opening the link is recorded in the audit trail.
// @Tags signing
// @Produce json
// @Param token path string true "Signing token"
// @Success 200 {object} Response{data=SigningView} "Signing page data"
// @Failure 404 {object} ErrorResponseBody "Unknown link"
// @Failure 410 {object} ErrorResponseBody "Link expired"
// @Router /sign/{token} [get]
func (h *SignHandler) Get(c *gin.Context) {
	token := c.Param("token")
	info, err := h.signingService.GetInfo(c.Request.Context(), token)
	if err != nil {
		HandleError(c, err)
		return
	}
	if err := h.signingService.RecordView(c.Request.Context(), token, c.ClientIP(), c.Request.UserAgent()); err != nil {
		log.Printf("SignHandler.Get: recording view for %s: %v", info.Request.ID, err)
	}

	RespondOK(c, SigningView{
		DocumentID:     info.DocumentID,
		DocumentTitle:  info.DocumentTitle,
		DocumentStatus: info.DocumentStatus,
		OwnerName:      info.OwnerName,
		OwnerEmail:     info.OwnerEmail,
		RenderWidth:    info.RenderWidth,
		CanSign:        info.CanSign,
		Request:        recipientView(info.Request),
	})
}

// FileURL handles GET /api/v1/sign/:token/file-url
// @Summary Get the document to display
// @Description Presigned URL of the current working copy (the voided copy once voided)
// @Tags signing
// @Produce json
// @Param token path string true "Signing token"
// @Success 200 {object} Response{data=URLResponse} "Presigned URL"
// @Failure 404 {object} ErrorResponseBody "Unknown link"
// @Failure 410 {object} ErrorResponseBody "Link expired"
// @Router /sign/{token}/file-url [get]
func (h *SignHandler) FileURL(c *gin.Context) {
	url, err := h.signingService.FileURL(c.Request.Context(), c.Param("token"))
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, URLResponse{URL: url})
}

// SaveSignature handles PUT /api/v1/sign/:token/signature
// @Summary Save a signature
// @Description Store a drawn or typed signature for one field, or for every
// @Description signature field when field_id is omitted.
// @Tags signing
// @Accept json
// @Produce json
// @Param token path string true "Signing token"
// @Param request body SaveSignatureRequest true "Signature payload"
// @Success 200 {object} Response{data=RecipientRequestView} "Signature saved"
// @Failure 400 {object} ErrorResponseBody "Empty or malformed payload"
// @Failure 404 {object} ErrorResponseBody "Unknown link or field"
// @Failure 409 {object} ErrorResponseBody "Request declined"
// @Failure 410 {object} ErrorResponseBody "Link expired"
// @Router /sign/{token}/signature [put]
func (h *SignHandler) SaveSignature(c *gin.Context) {
	var req SaveSignatureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "payload is required")
		return
	}

	updated, err := h.signingService.SaveSignature(c.Request.Context(), c.Param("token"), req.FieldID, req.Payload)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, recipientView(updated))
}

// SaveFieldValue handles PUT /api/v1/sign/:token/fields/:fieldId
// @Summary Fill in a field
// @Description Store the value of a text, date, dropdown, radio, or checkbox field.
// @Description An empty value clears the field.
// @Tags signing
// @Accept json
// @Produce json
// @Param token path string true "Signing token"
// @Param fieldId path string true "Field ID"
// @Param request body SaveFieldValueRequest true "Field value"
// @Success 200 {object} Response{data=RecipientRequestView} "Value saved"
// @Failure 400 {object} ErrorResponseBody "Value not allowed for this field"
// @Failure 404 {object} ErrorResponseBody "Unknown link or field"
// @Failure 409 {object} ErrorResponseBody "Request declined"
// @Failure 410 {object} ErrorResponseBody "Link expired"
// @Router /sign/{token}/fields/{fieldId} [put]
func (h *SignHandler) SaveFieldValue(c *gin.Context) {
	var req SaveFieldValueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "value is required")
		return
	}

	updated, err := h.signingService.SaveFieldValue(c.Request.Context(), c.Param("token"), c.Param("fieldId"), req.Value)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, recipientView(updated))
}

// Complete handles POST /api/v1/sign/:token/complete
// @Summary Finish signing
// @Description Burn the recipient's signatures into the document. Completing an
// @Description already signed request returns it unchanged.
// @Tags signing
// @Produce json
// @Param token path string true "Signing token"
// @Success 200 {object} Response{data=RecipientRequestView} "Signed"
// @Failure 404 {object} ErrorResponseBody "Unknown link"
// @Failure 409 {object} ErrorResponseBody "Declined, or document no longer open"
// @Failure 410 {object} ErrorResponseBody "Link expired"
// @Failure 422 {object} ErrorResponseBody "A required signature field is empty"
// @Router /sign/{token}/complete [post]
func (h *SignHandler) Complete(c *gin.Context) {
	signed, err := h.envelopeService.Complete(c.Request.Context(), c.Param("token"), c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, recipientView(signed))
}

// Decline handles POST /api/v1/sign/:token/decline
// @Summary Decline to sign
// @Description Decline the request; the document is voided and the sender notified.
// @Tags signing
// @Accept json
// @Produce json
// @Param token path string true "Signing token"
// @Param request body DeclineRequest false "Optional reason"
// @Success 200 {object} Response{data=RecipientRequestView} "Declined"
// @Failure 404 {object} ErrorResponseBody "Unknown link"
// @Failure 409 {object} ErrorResponseBody "Already signed"
// @Failure 410 {object} ErrorResponseBody "Link expired"
// @Router /sign/{token}/decline [post]
func (h *SignHandler) Decline(c *gin.Context) {
	var req DeclineRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "reason must be a string")
			return
		}
	}

	declined, err := h.envelopeService.Decline(c.Request.Context(), c.Param("token"), c.ClientIP(), c.Request.UserAgent(), req.Reason)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, recipientView(declined))
}
