package handler

import (
	"github.com/google/uuid"

	"signet/internal/domain"
)

// Swagger type definitions for API documentation.
// These types are used by swag to generate OpenAPI documentation.

// --- Request Types ---

// RecipientRequest describes one recipient and their field placements.
type RecipientRequest struct {
	Email        string        `json:"email" binding:"required" example:"bob@example.com"`
	Name         string        `json:"name" example:"Bob Signer"`
	SigningOrder int           `json:"signing_order" example:"1"`
	Fields       domain.Fields `json:"fields" swaggertype:"array,object"`
}

// AddRecipientsRequest represents the add recipients request body.
type AddRecipientsRequest struct {
	Recipients []RecipientRequest `json:"recipients" binding:"required"`
}

// UpdateFieldsRequest replaces a recipient's field placements.
type UpdateFieldsRequest struct {
	Fields domain.Fields `json:"fields" swaggertype:"array,object"`
}

// RecipientCorrectionRequest fixes the address or name of an unsigned recipient.
type RecipientCorrectionRequest struct {
	SignRequestID uuid.UUID `json:"sign_request_id" binding:"required" example:"550e8400-e29b-41d4-a716-446655440000"`
	Email         string    `json:"email" example:"bob@example.org"`
	Name          string    `json:"name" example:"Bob Signer"`
}

// ResendRequest represents the optional resend request body.
type ResendRequest struct {
	Corrections []RecipientCorrectionRequest `json:"corrections"`
}

// SaveSignatureRequest carries a signature payload. A drawn signature is a
// data URL; a typed one is "typed::name::font::initials::size".
type SaveSignatureRequest struct {
	FieldID *string `json:"field_id" example:"sig-1"`
	Payload string  `json:"payload" binding:"required" example:"typed::Bob Signer::Dancing Script::BS::14"`
}

// SaveFieldValueRequest carries a field value.
type SaveFieldValueRequest struct {
	Value string `json:"value" example:"Acme Corp"`
}

// DeclineRequest carries the optional decline reason.
type DeclineRequest struct {
	Reason string `json:"reason" example:"The payment terms are wrong"`
}

// --- Response Types ---

// URLResponse wraps a presigned URL.
type URLResponse struct {
	URL string `json:"url" example:"https://signet-documents.s3.amazonaws.com/owners/..."`
}

// Response wraps a successful response.
type Response struct {
	Success bool        `json:"success" example:"true"`
	Data    interface{} `json:"data,omitempty"`
	Meta    *PagMeta    `json:"meta,omitempty"`
}

// ErrorResponseBody wraps an error response.
type ErrorResponseBody struct {
	Success bool      `json:"success" example:"false"`
	Error   *APIError `json:"error"`
}
