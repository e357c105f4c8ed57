// Package sqs adapts an AWS SQS queue to the delivery queue contract.
// Delays ride on SQS DelaySeconds, acks on DeleteMessage, and nacks on
// ChangeMessageVisibility with a zero timeout.
package sqs

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awssqs "github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"go.uber.org/zap"

	"github.com/herald-notify/herald/internal/queue"
)

// maxDelaySeconds is the SQS ceiling for DelaySeconds.
const maxDelaySeconds = 900

// priorityAttribute carries the notification priority as a message
// attribute. SQS does not order by it; consumers that care can filter.
const priorityAttribute = "priority"

// sqsAPI is the slice of the SQS client the queue uses.
type sqsAPI interface {
	SendMessage(ctx context.Context, params *awssqs.SendMessageInput, optFns ...func(*awssqs.Options)) (*awssqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, params *awssqs.ReceiveMessageInput, optFns ...func(*awssqs.Options)) (*awssqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *awssqs.DeleteMessageInput, optFns ...func(*awssqs.Options)) (*awssqs.DeleteMessageOutput, error)
	ChangeMessageVisibility(ctx context.Context, params *awssqs.ChangeMessageVisibilityInput, optFns ...func(*awssqs.Options)) (*awssqs.ChangeMessageVisibilityOutput, error)
}

// Config holds SQS configuration for one logical queue.
type Config struct {
	Region   string
	QueueURL string
}

// Queue is an SQS-backed delivery queue.
type Queue struct {
	client   sqsAPI
	queueURL string
	logger   *zap.Logger
}

// New creates an SQS-backed queue.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Queue, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	logger.Info("sqs queue initialized",
		zap.String("queue_url", cfg.QueueURL),
	)

	return &Queue{
		client:   awssqs.NewFromConfig(awsCfg),
		queueURL: cfg.QueueURL,
		logger:   logger,
	}, nil
}

// Enqueue sends a message, deferring visibility by delay. SQS caps
// DelaySeconds at 15 minutes; longer delays are clamped, which only
// shortens the wait and never loses the message.
func (q *Queue) Enqueue(ctx context.Context, msg *queue.Message, delay time.Duration) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	delaySeconds := int32(delay / time.Second)
	if delaySeconds > maxDelaySeconds {
		delaySeconds = maxDelaySeconds
	}
	if delaySeconds < 0 {
		delaySeconds = 0
	}

	input := &awssqs.SendMessageInput{
		QueueUrl:     aws.String(q.queueURL),
		MessageBody:  aws.String(string(body)),
		DelaySeconds: delaySeconds,
		MessageAttributes: map[string]types.MessageAttributeValue{
			priorityAttribute: {
				DataType:    aws.String("Number"),
				StringValue: aws.String(strconv.Itoa(msg.Priority)),
			},
		},
	}

	result, err := q.client.SendMessage(ctx, input)
	if err != nil {
		q.logger.Error("failed to send message to sqs",
			zap.Error(err),
			zap.String("notification_id", msg.NotificationID.String()),
		)
		return fmt.Errorf("sqs send failed: %w", err)
	}

	q.logger.Debug("message enqueued",
		zap.String("notification_id", msg.NotificationID.String()),
		zap.String("message_id", aws.ToString(result.MessageId)),
		zap.Int32("delay_seconds", delaySeconds),
	)

	return nil
}

// Dequeue retrieves one message with long polling. Returns (nil, "", nil)
// when the queue is empty.
func (q *Queue) Dequeue(ctx context.Context) (*queue.Message, string, error) {
	input := &awssqs.ReceiveMessageInput{
		QueueUrl:            aws.String(q.queueURL),
		MaxNumberOfMessages: 1,
		WaitTimeSeconds:     20,
		VisibilityTimeout:   60,
	}

	result, err := q.client.ReceiveMessage(ctx, input)
	if err != nil {
		return nil, "", fmt.Errorf("sqs receive failed: %w", err)
	}

	if len(result.Messages) == 0 {
		return nil, "", nil
	}

	raw := result.Messages[0]

	var msg queue.Message
	if err := json.Unmarshal([]byte(aws.ToString(raw.Body)), &msg); err != nil {
		q.logger.Error("failed to unmarshal message", zap.Error(err))
		return nil, "", fmt.Errorf("invalid message format: %w", err)
	}

	return &msg, aws.ToString(raw.ReceiptHandle), nil
}

// Ack removes a message after its status transition has committed.
func (q *Queue) Ack(ctx context.Context, receipt string) error {
	input := &awssqs.DeleteMessageInput{
		QueueUrl:      aws.String(q.queueURL),
		ReceiptHandle: aws.String(receipt),
	}

	if _, err := q.client.DeleteMessage(ctx, input); err != nil {
		return fmt.Errorf("sqs delete failed: %w", err)
	}

	return nil
}

// Nack makes a message immediately visible again for redelivery.
func (q *Queue) Nack(ctx context.Context, receipt string) error {
	input := &awssqs.ChangeMessageVisibilityInput{
		QueueUrl:          aws.String(q.queueURL),
		ReceiptHandle:     aws.String(receipt),
		VisibilityTimeout: 0,
	}

	if _, err := q.client.ChangeMessageVisibility(ctx, input); err != nil {
		return fmt.Errorf("sqs change visibility failed: %w", err)
	}

	return nil
}
