package worker

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"go.uber.org/zap"

	"github.com/herald-notify/herald/internal/db"
)

// sesAPI is the slice of the SES client the sender uses.
type sesAPI interface {
	SendTemplatedEmail(ctx context.Context, params *ses.SendTemplatedEmailInput, optFns ...func(*ses.Options)) (*ses.SendTemplatedEmailOutput, error)
}

// SESSender delivers email notifications through AWS SES templated
// sends. SES renders the template server-side from the variables JSON;
// no rendering happens here.
type SESSender struct {
	client    sesAPI
	directory Directory
	from      string
	logger    *zap.Logger
}

type SESConfig struct {
	Region    string
	FromEmail string
}

func NewSESSender(ctx context.Context, cfg SESConfig, directory Directory, logger *zap.Logger) (*SESSender, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load default AWS config: %w", err)
	}
	return &SESSender{
		client:    ses.NewFromConfig(awsCfg),
		directory: directory,
		from:      cfg.FromEmail,
		logger:    logger,
	}, nil
}

// Send resolves the recipient address and hands the template reference
// plus variables to SES.
func (s *SESSender) Send(ctx context.Context, notif *db.Notification) error {
	if notif.Type != db.TypeEmail {
		return fmt.Errorf("SES sender only supports email, got: %s", notif.Type)
	}

	user, err := s.directory.GetUser(ctx, notif.UserID)
	if err != nil {
		return fmt.Errorf("resolving recipient %s: %w", notif.UserID, err)
	}
	if user.Email == "" {
		return fmt.Errorf("user %s has no email address", notif.UserID)
	}

	templateData := "{}"
	if len(notif.Variables) > 0 {
		templateData = string(notif.Variables)
	}

	input := &ses.SendTemplatedEmailInput{
		Source:   aws.String(s.from),
		Template: aws.String(notif.TemplateCode),
		Destination: &types.Destination{
			ToAddresses: []string{user.Email},
		},
		TemplateData: aws.String(templateData),
	}

	result, err := s.client.SendTemplatedEmail(ctx, input)
	if err != nil {
		return &DeliveryError{Channel: "smtp", Err: fmt.Errorf("ses templated send failed: %w", err)}
	}

	s.logger.Info("email sent via SES",
		zap.String("id", notif.ID.String()),
		zap.String("template", notif.TemplateCode),
		zap.String("message_id", aws.ToString(result.MessageId)),
	)

	return nil
}

// SupportsType checks if this sender supports the email type.
func (s *SESSender) SupportsType(notifType string) bool {
	return notifType == db.TypeEmail
}
