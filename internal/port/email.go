package port

import (
	"context"

	"signet/internal/domain"
)

// Notification is one templated message to one recipient.
type Notification struct {
	Template domain.NotificationTemplate
	To       domain.Recipient
	Params   map[string]string
}

// Notifier delivers templated notifications. Failures are returned as
// *domain.DeliveryError so callers can tell a bad address from a transient
// failure; implementations never retry.
type Notifier interface {
	Send(ctx context.Context, n Notification) error
}
