// Package email renders notification templates shared by every notifier.
package email

import (
	"fmt"
	"html"
	"net/mail"
	"net/url"
	"strings"

	"signet/internal/domain"
	"signet/internal/port"
)

// Template parameter keys.
const (
	ParamDocumentTitle = "document_title"
	ParamSenderName    = "sender_name"
	ParamToken         = "token"
	ParamExpiresAt     = "expires_at"
	ParamSignerName    = "signer_name"
	ParamReason        = "reason"
	ParamDocumentID    = "document_id"
)

// Message is a rendered notification.
type Message struct {
	Subject string
	HTML    string
	Text    string
}

// ValidateAddress reports a bounce for addresses that cannot be delivered to.
func ValidateAddress(to domain.Recipient) error {
	if _, err := mail.ParseAddress(to.Email); err != nil {
		return &domain.DeliveryError{Kind: domain.DeliveryBounce, Recipient: to.Email, Err: err}
	}
	return nil
}

// SignURL is the recipient-facing link for a sign request token.
func SignURL(frontendURL, token string) string {
	return fmt.Sprintf("%s/sign/%s", strings.TrimRight(frontendURL, "/"), url.PathEscape(token))
}

// Render builds the subject and bodies of a notification.
func Render(n port.Notification, frontendURL string) (Message, error) {
	p := func(key string) string { return n.Params[key] }
	name := n.To.Name
	if name == "" {
		name = n.To.Email
	}
	title := p(ParamDocumentTitle)

	switch n.Template {
	case domain.TemplateSignRequest:
		link := SignURL(frontendURL, p(ParamToken))
		expiry := ""
		if e := p(ParamExpiresAt); e != "" {
			expiry = "This link expires on " + e + "."
		}
		return Message{
			Subject: fmt.Sprintf("%s requests your signature on %q", p(ParamSenderName), title),
			HTML: layout(fmt.Sprintf("Please sign %q", title), name,
				fmt.Sprintf("%s has sent you %q to review and sign.", p(ParamSenderName), title),
				link, "Review and sign", expiry),
			Text: fmt.Sprintf("Hi %s,\n\n%s has sent you %q to review and sign:\n%s\n\n%s\n\nSignet",
				name, p(ParamSenderName), title, link, expiry),
		}, nil

	case domain.TemplateWaitingForOthers:
		return Message{
			Subject: fmt.Sprintf("You signed %q", title),
			HTML: layout("Thanks for signing", name,
				fmt.Sprintf("You have signed %q. We will email you once every other recipient has signed.", title),
				"", "", ""),
			Text: fmt.Sprintf("Hi %s,\n\nYou have signed %q. We will email you once every other recipient has signed.\n\nSignet",
				name, title),
		}, nil

	case domain.TemplateDocumentCompleted:
		return Message{
			Subject: fmt.Sprintf("%q has been signed by everyone", title),
			HTML: layout("Document completed", name,
				fmt.Sprintf("Every recipient has signed %q. The completed document is now available.", title),
				"", "", ""),
			Text: fmt.Sprintf("Hi %s,\n\nEvery recipient has signed %q. The completed document is now available.\n\nSignet",
				name, title),
		}, nil

	case domain.TemplateDocumentDeclined:
		reason := ""
		if r := p(ParamReason); r != "" {
			reason = "Reason given: " + r
		}
		return Message{
			Subject: fmt.Sprintf("%s declined to sign %q", p(ParamSignerName), title),
			HTML: layout("Document declined", name,
				fmt.Sprintf("%s declined to sign %q. The document has been voided.", p(ParamSignerName), title),
				"", "", reason),
			Text: fmt.Sprintf("Hi %s,\n\n%s declined to sign %q. The document has been voided.\n%s\n\nSignet",
				name, p(ParamSignerName), title, reason),
		}, nil
	}
	return Message{}, fmt.Errorf("unknown notification template %q", n.Template)
}

func layout(heading, name, intro, link, button, note string) string {
	var action string
	if link != "" {
		action = fmt.Sprintf(`
  <p style="text-align: center; margin: 30px 0;">
    <a href="%s" style="background-color: #4F46E5; color: white; padding: 12px 24px; text-decoration: none; border-radius: 6px; display: inline-block;">%s</a>
  </p>
  <p>Or copy and paste this link into your browser:</p>
  <p style="word-break: break-all; color: #666;">%s</p>`,
			html.EscapeString(link), html.EscapeString(button), html.EscapeString(link))
	}
	var footnote string
	if note != "" {
		footnote = fmt.Sprintf(`
  <p style="color: #999; font-size: 12px;">%s</p>`, html.EscapeString(note))
	}
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">
  <h2 style="color: #333;">%s</h2>
  <p>Hi %s,</p>
  <p>%s</p>%s%s
  <hr style="border: none; border-top: 1px solid #eee; margin: 20px 0;">
  <p style="color: #999; font-size: 12px;">Signet - Document Signing</p>
</body>
</html>`, html.EscapeString(heading), html.EscapeString(name), html.EscapeString(intro), action, footnote)
}
