package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"go.uber.org/zap"

	"github.com/herald-notify/herald/internal/db"
)

// snsAPI is the slice of the SNS client the sender uses.
type snsAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSSender delivers push notifications by publishing to the user's SNS
// platform endpoint (FCM sits behind the platform application).
type SNSSender struct {
	client    snsAPI
	directory Directory
	logger    *zap.Logger
}

type SNSConfig struct {
	Region string
}

// pushEnvelope is the message body published to the platform endpoint.
type pushEnvelope struct {
	NotificationID string          `json:"notification_id"`
	TemplateCode   string          `json:"template_code"`
	Variables      json.RawMessage `json:"variables,omitempty"`
	Metadata       json.RawMessage `json:"metadata,omitempty"`
}

// NewSNSSender creates a new SNS sender for push notifications.
func NewSNSSender(ctx context.Context, cfg SNSConfig, directory Directory, logger *zap.Logger) (*SNSSender, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load default AWS config for SNS: %w", err)
	}

	return &SNSSender{
		client:    sns.NewFromConfig(awsCfg),
		directory: directory,
		logger:    logger,
	}, nil
}

// Send publishes the notification to the user's registered device endpoint.
func (s *SNSSender) Send(ctx context.Context, notif *db.Notification) error {
	if notif.Type != db.TypePush {
		return fmt.Errorf("SNS sender only supports push, got: %s", notif.Type)
	}

	user, err := s.directory.GetUser(ctx, notif.UserID)
	if err != nil {
		return fmt.Errorf("resolving recipient %s: %w", notif.UserID, err)
	}
	if user.PushEndpointARN == "" {
		return fmt.Errorf("user %s has no registered push endpoint", notif.UserID)
	}

	body, err := json.Marshal(pushEnvelope{
		NotificationID: notif.ID.String(),
		TemplateCode:   notif.TemplateCode,
		Variables:      notif.Variables,
		Metadata:       notif.Metadata,
	})
	if err != nil {
		return fmt.Errorf("marshaling push envelope: %w", err)
	}

	input := &sns.PublishInput{
		TargetArn: aws.String(user.PushEndpointARN),
		Message:   aws.String(string(body)),
	}

	result, err := s.client.Publish(ctx, input)
	if err != nil {
		return &DeliveryError{Channel: "fcm", Err: fmt.Errorf("sns publish failed: %w", err)}
	}

	s.logger.Info("push sent via SNS",
		zap.String("id", notif.ID.String()),
		zap.String("endpoint_arn", user.PushEndpointARN),
		zap.String("message_id", aws.ToString(result.MessageId)),
	)

	return nil
}

// SupportsType checks if this sender supports the push type.
func (s *SNSSender) SupportsType(notifType string) bool {
	return notifType == db.TypePush
}
