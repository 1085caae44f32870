package ses

import (
	"context"
	"errors"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"signet/internal/domain"
	"signet/internal/email"
	"signet/internal/port"
)

// sendEmailAPI is the subset of the SES client used here.
type sendEmailAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

type sesNotifier struct {
	client      sendEmailAPI
	fromAddress string
	fromName    string
	frontendURL string
}

// NewSESNotifier creates a new SES-backed Notifier.
func NewSESNotifier(region, fromAddress, fromName, frontendURL string) (port.Notifier, error) {
	cfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config for SES: %w", err)
	}
	return newSESNotifier(sesv2.NewFromConfig(cfg), fromAddress, fromName, frontendURL), nil
}

func newSESNotifier(client sendEmailAPI, fromAddress, fromName, frontendURL string) *sesNotifier {
	return &sesNotifier{
		client:      client,
		fromAddress: fromAddress,
		fromName:    fromName,
		frontendURL: frontendURL,
	}
}

func (s *sesNotifier) Send(ctx context.Context, n port.Notification) error {
	if err := email.ValidateAddress(n.To); err != nil {
		return err
	}
	msg, err := email.Render(n, s.frontendURL)
	if err != nil {
		return &domain.DeliveryError{Kind: domain.DeliveryGeneric, Recipient: n.To.Email, Err: err}
	}

	from := fmt.Sprintf("%s <%s>", s.fromName, s.fromAddress)

	_, err = s.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: &from,
		Destination: &types.Destination{
			ToAddresses: []string{n.To.Email},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: &msg.Subject},
				Body: &types.Body{
					Html: &types.Content{Data: &msg.HTML},
					Text: &types.Content{Data: &msg.Text},
				},
			},
		},
	})
	if err != nil {
		return &domain.DeliveryError{Kind: classify(err), Recipient: n.To.Email, Err: fmt.Errorf("SES SendEmail: %w", err)}
	}
	return nil
}

// classify maps SES rejections of the message or address to bounces.
func classify(err error) domain.DeliveryErrorKind {
	var rejected *types.MessageRejected
	if errors.As(err, &rejected) {
		return domain.DeliveryBounce
	}
	var badRequest *types.BadRequestException
	if errors.As(err, &badRequest) {
		return domain.DeliveryBounce
	}
	return domain.DeliveryGeneric
}
