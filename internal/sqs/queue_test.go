package sqs

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awssqs "github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/herald-notify/herald/internal/queue"
)

type fakeSQSClient struct {
	sent       []*awssqs.SendMessageInput
	received   *awssqs.ReceiveMessageOutput
	receiveErr error
	deleted    []string
	visibility []struct {
		receipt string
		timeout int32
	}
}

func (f *fakeSQSClient) SendMessage(ctx context.Context, params *awssqs.SendMessageInput, optFns ...func(*awssqs.Options)) (*awssqs.SendMessageOutput, error) {
	f.sent = append(f.sent, params)
	return &awssqs.SendMessageOutput{MessageId: aws.String("m-1")}, nil
}

func (f *fakeSQSClient) ReceiveMessage(ctx context.Context, params *awssqs.ReceiveMessageInput, optFns ...func(*awssqs.Options)) (*awssqs.ReceiveMessageOutput, error) {
	if f.receiveErr != nil {
		return nil, f.receiveErr
	}
	if f.received == nil {
		return &awssqs.ReceiveMessageOutput{}, nil
	}
	return f.received, nil
}

func (f *fakeSQSClient) DeleteMessage(ctx context.Context, params *awssqs.DeleteMessageInput, optFns ...func(*awssqs.Options)) (*awssqs.DeleteMessageOutput, error) {
	f.deleted = append(f.deleted, aws.ToString(params.ReceiptHandle))
	return &awssqs.DeleteMessageOutput{}, nil
}

func (f *fakeSQSClient) ChangeMessageVisibility(ctx context.Context, params *awssqs.ChangeMessageVisibilityInput, optFns ...func(*awssqs.Options)) (*awssqs.ChangeMessageVisibilityOutput, error) {
	f.visibility = append(f.visibility, struct {
		receipt string
		timeout int32
	}{aws.ToString(params.ReceiptHandle), params.VisibilityTimeout})
	return &awssqs.ChangeMessageVisibilityOutput{}, nil
}

func testQueue(client *fakeSQSClient) *Queue {
	return &Queue{
		client:   client,
		queueURL: "https://sqs.us-east-1.amazonaws.com/123/email-queue",
		logger:   zap.NewNop(),
	}
}

func testMessage() *queue.Message {
	return &queue.Message{
		NotificationID: uuid.New(),
		Type:           "email",
		UserID:         uuid.New(),
		TemplateCode:   "welcome_email",
		Variables:      json.RawMessage(`{"name":"Ada"}`),
		Priority:       7,
		RetryCount:     1,
		EnqueuedAt:     time.Now().UnixNano(),
	}
}

func TestQueueEnqueue(t *testing.T) {
	client := &fakeSQSClient{}
	q := testQueue(client)

	msg := testMessage()
	if err := q.Enqueue(context.Background(), msg, 5*time.Second); err != nil {
		t.Fatalf("Enqueue error: %v", err)
	}

	if len(client.sent) != 1 {
		t.Fatalf("sent = %d, want 1", len(client.sent))
	}
	input := client.sent[0]
	if input.DelaySeconds != 5 {
		t.Errorf("DelaySeconds = %d, want 5", input.DelaySeconds)
	}

	var decoded queue.Message
	if err := json.Unmarshal([]byte(aws.ToString(input.MessageBody)), &decoded); err != nil {
		t.Fatalf("failed to unmarshal body: %v", err)
	}
	if decoded.NotificationID != msg.NotificationID {
		t.Errorf("notification id mismatch: got %s, want %s", decoded.NotificationID, msg.NotificationID)
	}
	if decoded.RetryCount != 1 {
		t.Errorf("retry count = %d, want 1", decoded.RetryCount)
	}

	attr, ok := input.MessageAttributes[priorityAttribute]
	if !ok {
		t.Fatal("expected priority message attribute")
	}
	if got := aws.ToString(attr.StringValue); got != "7" {
		t.Errorf("priority attribute = %q, want 7", got)
	}
}

func TestQueueEnqueueClampsDelay(t *testing.T) {
	client := &fakeSQSClient{}
	q := testQueue(client)

	if err := q.Enqueue(context.Background(), testMessage(), time.Hour); err != nil {
		t.Fatalf("Enqueue error: %v", err)
	}
	if got := client.sent[0].DelaySeconds; got != maxDelaySeconds {
		t.Errorf("DelaySeconds = %d, want %d", got, maxDelaySeconds)
	}
}

func TestQueueDequeue(t *testing.T) {
	msg := testMessage()
	body, _ := json.Marshal(msg)
	client := &fakeSQSClient{
		received: &awssqs.ReceiveMessageOutput{
			Messages: []types.Message{
				{
					Body:          aws.String(string(body)),
					ReceiptHandle: aws.String("rh-1"),
				},
			},
		},
	}
	q := testQueue(client)

	got, receipt, err := q.Dequeue(context.Background())
	if err != nil {
		t.Fatalf("Dequeue error: %v", err)
	}
	if receipt != "rh-1" {
		t.Errorf("receipt = %q, want rh-1", receipt)
	}
	if got.NotificationID != msg.NotificationID {
		t.Errorf("notification id mismatch: got %s, want %s", got.NotificationID, msg.NotificationID)
	}
}

func TestQueueDequeueEmpty(t *testing.T) {
	q := testQueue(&fakeSQSClient{})

	msg, receipt, err := q.Dequeue(context.Background())
	if err != nil {
		t.Fatalf("Dequeue error: %v", err)
	}
	if msg != nil || receipt != "" {
		t.Errorf("expected empty result, got %v %q", msg, receipt)
	}
}

func TestQueueDequeueMalformedBody(t *testing.T) {
	client := &fakeSQSClient{
		received: &awssqs.ReceiveMessageOutput{
			Messages: []types.Message{
				{
					Body:          aws.String("not json"),
					ReceiptHandle: aws.String("rh-1"),
				},
			},
		},
	}
	q := testQueue(client)

	if _, _, err := q.Dequeue(context.Background()); err == nil {
		t.Fatal("expected error for malformed body")
	}
}

func TestQueueDequeueReceiveError(t *testing.T) {
	q := testQueue(&fakeSQSClient{receiveErr: fmt.Errorf("throttled")})

	if _, _, err := q.Dequeue(context.Background()); err == nil {
		t.Fatal("expected receive error")
	}
}

func TestQueueAck(t *testing.T) {
	client := &fakeSQSClient{}
	q := testQueue(client)

	if err := q.Ack(context.Background(), "rh-1"); err != nil {
		t.Fatalf("Ack error: %v", err)
	}
	if len(client.deleted) != 1 || client.deleted[0] != "rh-1" {
		t.Errorf("deleted = %v, want [rh-1]", client.deleted)
	}
}

func TestQueueNack(t *testing.T) {
	client := &fakeSQSClient{}
	q := testQueue(client)

	if err := q.Nack(context.Background(), "rh-1"); err != nil {
		t.Fatalf("Nack error: %v", err)
	}
	if len(client.visibility) != 1 {
		t.Fatalf("visibility changes = %d, want 1", len(client.visibility))
	}
	if client.visibility[0].timeout != 0 {
		t.Errorf("visibility timeout = %d, want 0", client.visibility[0].timeout)
	}
}
