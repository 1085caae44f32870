package domain

// DocumentStatus represents the lifecycle of an envelope.
type DocumentStatus string

const (
	DocumentStatusDraft     DocumentStatus = "draft"
	DocumentStatusPending   DocumentStatus = "pending"
	DocumentStatusCompleted DocumentStatus = "completed"
	DocumentStatusCancelled DocumentStatus = "cancelled"
	DocumentStatusVoided    DocumentStatus = "voided"
	DocumentStatusDeleted   DocumentStatus = "deleted"
)

// SignRequestStatus represents one recipient's progress.
// Status only moves forward: pending -> viewed -> signed, or pending|viewed -> declined.
type SignRequestStatus string

const (
	SignRequestStatusPending  SignRequestStatus = "pending"
	SignRequestStatusViewed   SignRequestStatus = "viewed"
	SignRequestStatusSigned   SignRequestStatus = "signed"
	SignRequestStatusDeclined SignRequestStatus = "declined"
)

// IsTerminal reports whether no further transitions are possible.
func (s SignRequestStatus) IsTerminal() bool {
	return s == SignRequestStatusSigned || s == SignRequestStatusDeclined
}

// CanTransition reports whether a sign request may move from s to next.
func (s SignRequestStatus) CanTransition(next SignRequestStatus) bool {
	switch s {
	case SignRequestStatusPending:
		return next == SignRequestStatusViewed || next == SignRequestStatusSigned || next == SignRequestStatusDeclined
	case SignRequestStatusViewed:
		return next == SignRequestStatusSigned || next == SignRequestStatusDeclined
	default:
		return false
	}
}

// OpenSignRequestStatuses are the statuses from which signing or declining is allowed.
var OpenSignRequestStatuses = []SignRequestStatus{SignRequestStatusPending, SignRequestStatusViewed}

// ActorType identifies who triggered an audit event.
type ActorType string

const (
	ActorOwner     ActorType = "owner"
	ActorRecipient ActorType = "recipient"
	ActorSystem    ActorType = "system"
)

// AuditEvent is the fixed audit vocabulary.
type AuditEvent string

const (
	AuditDocumentCreated  AuditEvent = "document_created"
	AuditSentForSignature AuditEvent = "sent_for_signature"
	AuditLinkOpened       AuditEvent = "link_opened"
	AuditSigned           AuditEvent = "signed"
	AuditDeclined         AuditEvent = "declined"
)

// NotificationTemplate names an email template known to every notifier.
type NotificationTemplate string

const (
	TemplateSignRequest       NotificationTemplate = "sign_request"
	TemplateDocumentCompleted NotificationTemplate = "document_completed"
	TemplateWaitingForOthers  NotificationTemplate = "waiting_for_others"
	TemplateDocumentDeclined  NotificationTemplate = "document_declined"
)
