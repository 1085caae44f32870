package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound            = errors.New("resource not found")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrForbidden           = errors.New("forbidden")
	ErrDocumentNotFound    = errors.New("document not found")
	ErrSignRequestNotFound = errors.New("sign request not found")
	ErrFieldNotFound       = errors.New("field not found")
	ErrInvalidPDF          = errors.New("file is not a readable PDF")
	ErrFileTooLarge        = errors.New("file exceeds maximum allowed size")
	ErrUploadFailed        = errors.New("file upload to storage failed")
	ErrInvalidField        = errors.New("invalid field")
	ErrFieldOutOfPage      = errors.New("field is placed outside every page")
	ErrInvalidFieldValue   = errors.New("invalid field value")
	ErrNoRecipients        = errors.New("document has no recipients")
	ErrDuplicateRecipient  = errors.New("recipient already added to this document")
	ErrInvalidRecipient    = errors.New("invalid recipient")
	ErrUnsupportedFormat   = errors.New("unsupported export format")

	ErrLinkExpired         = errors.New("signing link has expired")
	ErrFieldsUnsigned      = errors.New("required fields are not signed")
	ErrAlreadySigned       = errors.New("sign request is already signed")
	ErrSignRequestDeclined = errors.New("sign request was declined")
	ErrDocumentNotSignable = errors.New("document is not open for signing")
	ErrNotYourTurn         = errors.New("earlier recipients have not signed yet")
	ErrInvalidTransition   = errors.New("invalid document status transition")
	ErrStatusConflict      = errors.New("record status changed concurrently")
	ErrDeliveryFailed      = errors.New("notification delivery failed")
	ErrIntegrityViolation  = errors.New("required signature field has no payload")
)

// FieldsUnsignedError names the first required signature field that has no payload.
type FieldsUnsignedError struct {
	RecipientEmail string
	FieldID        string
	Label          string
}

func (e *FieldsUnsignedError) Error() string {
	if e.Label != "" {
		return fmt.Sprintf("%s: field %q (%s) for %s", ErrFieldsUnsigned, e.FieldID, e.Label, e.RecipientEmail)
	}
	return fmt.Sprintf("%s: field %q for %s", ErrFieldsUnsigned, e.FieldID, e.RecipientEmail)
}

func (e *FieldsUnsignedError) Unwrap() error { return ErrFieldsUnsigned }

// DeliveryErrorKind separates a bad address from a transient delivery failure.
type DeliveryErrorKind string

const (
	DeliveryBounce  DeliveryErrorKind = "bounce"
	DeliveryGeneric DeliveryErrorKind = "generic"
)

// DeliveryError reports a failed notification to one recipient.
type DeliveryError struct {
	Kind      DeliveryErrorKind
	Recipient string
	Err       error
}

func (e *DeliveryError) Error() string {
	if e.Kind == DeliveryBounce {
		return fmt.Sprintf("%s: address %s was rejected: %v", ErrDeliveryFailed, e.Recipient, e.Err)
	}
	return fmt.Sprintf("%s: could not deliver to %s: %v", ErrDeliveryFailed, e.Recipient, e.Err)
}

func (e *DeliveryError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrDeliveryFailed}
	}
	return []error{ErrDeliveryFailed, e.Err}
}
