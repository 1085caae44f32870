package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"signet/internal/domain"
	"signet/internal/middleware"
)

// APIResponse is the standard envelope for all API responses.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
	Meta    *PagMeta    `json:"meta,omitempty"`
}

// APIError holds error details in the response.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	// FieldID names the offending field for FIELDS_UNSIGNED.
	FieldID string `json:"field_id,omitempty"`
}

// PagMeta holds pagination metadata.
type PagMeta struct {
	Total  int `json:"total"`
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

// RespondOK sends a 200 success response.
func RespondOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, APIResponse{Success: true, Data: data})
}

// RespondCreated sends a 201 success response.
func RespondCreated(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, APIResponse{Success: true, Data: data})
}

// RespondPaginated sends a 200 success response with pagination metadata.
func RespondPaginated(c *gin.Context, data interface{}, meta PagMeta) {
	c.JSON(http.StatusOK, APIResponse{Success: true, Data: data, Meta: &meta})
}

// RespondError sends an error response with the given status code.
func RespondError(c *gin.Context, status int, code, msg string) {
	c.JSON(status, APIResponse{
		Success: false,
		Error:   &APIError{Code: code, Message: msg},
	})
}

// MapDomainError translates domain errors to HTTP status codes and error codes.
func MapDomainError(err error) (status int, code, msg string) {
	var unsigned *domain.FieldsUnsignedError
	var delivery *domain.DeliveryError

	switch {
	case errors.As(err, &unsigned):
		return http.StatusUnprocessableEntity, "FIELDS_UNSIGNED", unsigned.Error()
	case errors.Is(err, domain.ErrFieldsUnsigned):
		return http.StatusUnprocessableEntity, "FIELDS_UNSIGNED", "required fields are not signed"
	case errors.As(err, &delivery):
		if delivery.Kind == domain.DeliveryBounce {
			return http.StatusBadGateway, "DELIVERY_BOUNCED", "the email address " + delivery.Recipient + " was rejected; correct it and resend"
		}
		return http.StatusBadGateway, "DELIVERY_FAILED", "could not deliver the email to " + delivery.Recipient + "; try resending later"
	case errors.Is(err, domain.ErrDeliveryFailed):
		return http.StatusBadGateway, "DELIVERY_FAILED", "notification delivery failed"
	case errors.Is(err, domain.ErrLinkExpired):
		return http.StatusGone, "LINK_EXPIRED", "this signing link has expired; ask the sender to resend it"
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized"
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "FORBIDDEN", "forbidden"
	case errors.Is(err, domain.ErrDocumentNotFound):
		return http.StatusNotFound, "DOCUMENT_NOT_FOUND", "document not found"
	case errors.Is(err, domain.ErrSignRequestNotFound):
		return http.StatusNotFound, "SIGN_REQUEST_NOT_FOUND", "sign request not found"
	case errors.Is(err, domain.ErrFieldNotFound):
		return http.StatusNotFound, "FIELD_NOT_FOUND", "field not found"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND", "resource not found"
	case errors.Is(err, domain.ErrAlreadySigned):
		return http.StatusConflict, "ALREADY_SIGNED", "this request has already been signed"
	case errors.Is(err, domain.ErrSignRequestDeclined):
		return http.StatusConflict, "SIGN_REQUEST_DECLINED", "this request was declined"
	case errors.Is(err, domain.ErrDocumentNotSignable):
		return http.StatusConflict, "DOCUMENT_NOT_SIGNABLE", "this document is no longer open for signing"
	case errors.Is(err, domain.ErrNotYourTurn):
		return http.StatusConflict, "NOT_YOUR_TURN", "earlier recipients must sign before you"
	case errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict, "INVALID_STATUS_TRANSITION", "the document cannot do that in its current status"
	case errors.Is(err, domain.ErrDuplicateRecipient):
		return http.StatusConflict, "DUPLICATE_RECIPIENT", "recipient already added to this document"
	case errors.Is(err, domain.ErrStatusConflict):
		return http.StatusConflict, "STATUS_CONFLICT", "the record changed concurrently; reload and retry"
	case errors.Is(err, domain.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "file exceeds maximum allowed size"
	case errors.Is(err, domain.ErrInvalidPDF):
		return http.StatusBadRequest, "INVALID_PDF", "file is not a readable PDF"
	case errors.Is(err, domain.ErrFieldOutOfPage):
		return http.StatusBadRequest, "FIELD_OUT_OF_PAGE", err.Error()
	case errors.Is(err, domain.ErrInvalidField):
		return http.StatusBadRequest, "INVALID_FIELD", err.Error()
	case errors.Is(err, domain.ErrInvalidFieldValue):
		return http.StatusBadRequest, "INVALID_FIELD_VALUE", err.Error()
	case errors.Is(err, domain.ErrInvalidRecipient):
		return http.StatusBadRequest, "INVALID_RECIPIENT", err.Error()
	case errors.Is(err, domain.ErrNoRecipients):
		return http.StatusBadRequest, "NO_RECIPIENTS", "add at least one recipient before sending"
	case errors.Is(err, domain.ErrUnsupportedFormat):
		return http.StatusBadRequest, "UNSUPPORTED_FORMAT", "unsupported export format; allowed: csv, xlsx"
	case errors.Is(err, domain.ErrUploadFailed):
		return http.StatusInternalServerError, "UPLOAD_FAILED", "file upload to storage failed"
	case errors.Is(err, domain.ErrIntegrityViolation):
		return http.StatusInternalServerError, "INTEGRITY_VIOLATION", "a required signature could not be rendered"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR", "an internal error occurred"
	}
}

// extractOwner extracts the authenticated owner from the request context.
// Returns false if it is missing (error response already written).
func extractOwner(c *gin.Context) (domain.Owner, bool) {
	owner, err := middleware.GetOwner(c)
	if err != nil {
		RespondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "missing owner context")
		return domain.Owner{}, false
	}
	return owner, true
}

// HandleError maps a domain error and sends the appropriate error response.
func HandleError(c *gin.Context, err error) {
	status, code, msg := MapDomainError(err)
	if status >= 500 {
		requestID, _ := c.Get(middleware.ContextKeyRequestID)
		log.Printf("[%s] internal error: %v", requestID, err)
	}
	resp := APIResponse{Success: false, Error: &APIError{Code: code, Message: msg}}
	var unsigned *domain.FieldsUnsignedError
	if errors.As(err, &unsigned) {
		resp.Error.FieldID = unsigned.FieldID
	}
	c.JSON(status, resp)
}
