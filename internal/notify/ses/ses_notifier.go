package ses

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"invoicer/internal/domain"
	"invoicer/internal/notify"
	"invoicer/internal/port"
)

// EmailAPI is the subset of the SES v2 client used for sending.
type EmailAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

type sesNotifier struct {
	client      EmailAPI
	fromAddress string
	fromName    string
	to          []string
}

// NewSESNotifier creates a Notifier that mails a summary of every finished
// session to the configured recipients.
func NewSESNotifier(ctx context.Context, region, fromAddress, fromName string, to []string) (port.Notifier, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config for SES: %w", err)
	}
	return NewWithClient(sesv2.NewFromConfig(cfg), fromAddress, fromName, to)
}

// NewWithClient creates a Notifier on an existing client.
func NewWithClient(client EmailAPI, fromAddress, fromName string, to []string) (port.Notifier, error) {
	if fromAddress == "" || len(to) == 0 {
		return nil, fmt.Errorf("ses notifier needs a from address and at least one recipient")
	}
	return &sesNotifier{
		client:      client,
		fromAddress: fromAddress,
		fromName:    fromName,
		to:          to,
	}, nil
}

func (s *sesNotifier) SessionFinished(ctx context.Context, sess *domain.Session, archiveURL string) error {
	msg := notify.Build(sess, archiveURL)

	from := s.fromAddress
	if s.fromName != "" {
		from = fmt.Sprintf("%s <%s>", s.fromName, s.fromAddress)
	}

	_, err := s.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: &from,
		Destination: &types.Destination{
			ToAddresses: s.to,
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
		return fmt.Errorf("SES SendEmail: %w", err)
	}
	return nil
}
