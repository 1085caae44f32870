package mocks

import (
	"context"
	"errors"
	"strings"
	"sync"

	"signet/internal/domain"
	"signet/internal/port"
)

// RecordingNotifier is a port.Notifier that keeps every notification it is
// asked to send. Addresses listed in Bounce fail with a bounce.
type RecordingNotifier struct {
	mu     sync.Mutex
	sent   []port.Notification
	Bounce map[string]bool
	// BeforeSend, when set, runs outside the lock before each delivery.
	// Set it before the notifier is shared between goroutines.
	BeforeSend func(msg port.Notification)
}

// NewRecordingNotifier creates an empty RecordingNotifier.
func NewRecordingNotifier() *RecordingNotifier {
	return &RecordingNotifier{Bounce: make(map[string]bool)}
}

func (n *RecordingNotifier) Send(_ context.Context, msg port.Notification) error {
	if n.BeforeSend != nil {
		n.BeforeSend(msg)
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.Bounce[strings.ToLower(msg.To.Email)] {
		return &domain.DeliveryError{Kind: domain.DeliveryBounce, Recipient: msg.To.Email, Err: errors.New("mailbox unavailable")}
	}
	n.sent = append(n.sent, msg)
	return nil
}

// Sent returns a copy of the delivered notifications.
func (n *RecordingNotifier) Sent() []port.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]port.Notification(nil), n.sent...)
}

// SentTo returns the templates delivered to one address, in order.
func (n *RecordingNotifier) SentTo(email string) []domain.NotificationTemplate {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []domain.NotificationTemplate
	for _, s := range n.sent {
		if strings.EqualFold(s.To.Email, email) {
			out = append(out, s.Template)
		}
	}
	return out
}

// Count returns how many notifications of a template were delivered.
func (n *RecordingNotifier) Count(tmpl domain.NotificationTemplate) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, s := range n.sent {
		if s.Template == tmpl {
			c++
		}
	}
	return c
}

// Reset forgets every recorded notification.
func (n *RecordingNotifier) Reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = nil
}
