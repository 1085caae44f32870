package handler_test

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"signet/internal/domain"
	"signet/internal/handler"
)

func TestMapDomainError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"link expired", domain.ErrLinkExpired, http.StatusGone, "LINK_EXPIRED"},
		{"document not found", fmt.Errorf("loading: %w", domain.ErrDocumentNotFound), http.StatusNotFound, "DOCUMENT_NOT_FOUND"},
		{"sign request not found", domain.ErrSignRequestNotFound, http.StatusNotFound, "SIGN_REQUEST_NOT_FOUND"},
		{"field not found", domain.ErrFieldNotFound, http.StatusNotFound, "FIELD_NOT_FOUND"},
		{"fields unsigned", &domain.FieldsUnsignedError{FieldID: "sig-1"}, http.StatusUnprocessableEntity, "FIELDS_UNSIGNED"},
		{"already signed", domain.ErrAlreadySigned, http.StatusConflict, "ALREADY_SIGNED"},
		{"declined", domain.ErrSignRequestDeclined, http.StatusConflict, "SIGN_REQUEST_DECLINED"},
		{"not signable", domain.ErrDocumentNotSignable, http.StatusConflict, "DOCUMENT_NOT_SIGNABLE"},
		{"not your turn", fmt.Errorf("completing: %w", domain.ErrNotYourTurn), http.StatusConflict, "NOT_YOUR_TURN"},
		{"invalid transition", domain.ErrInvalidTransition, http.StatusConflict, "INVALID_STATUS_TRANSITION"},
		{"duplicate recipient", domain.ErrDuplicateRecipient, http.StatusConflict, "DUPLICATE_RECIPIENT"},
		{"bounce", &domain.DeliveryError{Kind: domain.DeliveryBounce, Recipient: "x@y.z", Err: errors.New("rejected")}, http.StatusBadGateway, "DELIVERY_BOUNCED"},
		{"generic delivery", &domain.DeliveryError{Kind: domain.DeliveryGeneric, Recipient: "x@y.z"}, http.StatusBadGateway, "DELIVERY_FAILED"},
		{"integrity", domain.ErrIntegrityViolation, http.StatusInternalServerError, "INTEGRITY_VIOLATION"},
		{"invalid pdf", domain.ErrInvalidPDF, http.StatusBadRequest, "INVALID_PDF"},
		{"field out of page", domain.ErrFieldOutOfPage, http.StatusBadRequest, "FIELD_OUT_OF_PAGE"},
		{"invalid field value", domain.ErrInvalidFieldValue, http.StatusBadRequest, "INVALID_FIELD_VALUE"},
		{"no recipients", domain.ErrNoRecipients, http.StatusBadRequest, "NO_RECIPIENTS"},
		{"unsupported format", domain.ErrUnsupportedFormat, http.StatusBadRequest, "UNSUPPORTED_FORMAT"},
		{"too large", domain.ErrFileTooLarge, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, code, msg := handler.MapDomainError(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, code)
			assert.NotEmpty(t, msg)
		})
	}
}

func TestHandleError_FieldsUnsignedNamesField(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	handler.HandleError(c, fmt.Errorf("completing: %w",
		&domain.FieldsUnsignedError{RecipientEmail: "bob@example.com", FieldID: "sig-2", Label: "Buyer"}))

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	resp := decode(t, w)
	assert.Equal(t, "sig-2", resp.Error.FieldID)
	assert.Contains(t, resp.Error.Message, "Buyer")
}
