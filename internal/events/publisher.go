// Package events fans notification status changes out to subscribers
// through an SNS topic. Downstream systems (analytics, audit, customer
// callbacks) subscribe to the topic instead of polling the API.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// snsAPI is the slice of the SNS client the publisher uses.
type snsAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// StatusChange is the payload published for every committed transition.
type StatusChange struct {
	NotificationID string `json:"notification_id"`
	Status         string `json:"status"`
	Error          string `json:"error,omitempty"`
	OccurredAt     string `json:"occurred_at"`
}

// Publisher publishes status changes to an SNS topic. It implements the
// status notifier contract; publish failures are logged and swallowed,
// the transition itself has already committed.
type Publisher struct {
	client   snsAPI
	topicARN string
	logger   *zap.Logger
}

// NewPublisher creates an SNS publisher for the given topic.
func NewPublisher(ctx context.Context, topicARN, region string, logger *zap.Logger) (*Publisher, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &Publisher{
		client:   sns.NewFromConfig(cfg),
		topicARN: topicARN,
		logger:   logger,
	}, nil
}

// NewPublisherWithEndpoint creates a publisher with a custom endpoint
// (for LocalStack).
func NewPublisherWithEndpoint(ctx context.Context, topicARN, endpoint, region string, logger *zap.Logger) (*Publisher, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := sns.NewFromConfig(cfg, func(o *sns.Options) {
		o.BaseEndpoint = aws.String(endpoint)
	})

	return &Publisher{
		client:   client,
		topicARN: topicARN,
		logger:   logger,
	}, nil
}

// StatusChanged publishes one committed status change to the topic.
func (p *Publisher) StatusChanged(ctx context.Context, id uuid.UUID, status string, errMsg *string) {
	change := StatusChange{
		NotificationID: id.String(),
		Status:         status,
		OccurredAt:     time.Now().UTC().Format(time.RFC3339Nano),
	}
	if errMsg != nil {
		change.Error = *errMsg
	}

	payload, err := json.Marshal(change)
	if err != nil {
		p.logger.Error("failed to marshal status change", zap.Error(err))
		return
	}

	input := &sns.PublishInput{
		TopicArn: aws.String(p.topicARN),
		Message:  aws.String(string(payload)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"status": {
				DataType:    aws.String("String"),
				StringValue: aws.String(status),
			},
		},
	}

	result, err := p.client.Publish(ctx, input)
	if err != nil {
		p.logger.Error("failed to publish status change",
			zap.Error(err),
			zap.String("notification_id", id.String()),
			zap.String("status", status),
		)
		return
	}

	p.logger.Debug("status change published",
		zap.String("notification_id", id.String()),
		zap.String("status", status),
		zap.String("message_id", aws.ToString(result.MessageId)),
	)
}
