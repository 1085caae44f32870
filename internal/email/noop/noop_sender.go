package noop

import (
	"context"
	"log"

	"signet/internal/domain"
	"signet/internal/email"
	"signet/internal/port"
)

type noopNotifier struct {
	frontendURL string
}

// NewNoopNotifier creates a Notifier that logs messages instead of sending them.
func NewNoopNotifier(frontendURL string) port.Notifier {
	return &noopNotifier{frontendURL: frontendURL}
}

func (s *noopNotifier) Send(_ context.Context, n port.Notification) error {
	if err := email.ValidateAddress(n.To); err != nil {
		return err
	}
	msg, err := email.Render(n, s.frontendURL)
	if err != nil {
		return &domain.DeliveryError{Kind: domain.DeliveryGeneric, Recipient: n.To.Email, Err: err}
	}
	if n.Template == domain.TemplateSignRequest {
		log.Printf("[NOOP EMAIL] %s for %s (%s): %s", n.Template, n.To.Name, n.To.Email,
			email.SignURL(s.frontendURL, n.Params[email.ParamToken]))
		return nil
	}
	log.Printf("[NOOP EMAIL] %s for %s (%s): %s", n.Template, n.To.Name, n.To.Email, msg.Subject)
	return nil
}
