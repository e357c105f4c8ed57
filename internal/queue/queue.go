// Package queue provides the logical delivery queues and the router that
// assigns notifications to them. The broker behind a queue is pluggable:
// an in-memory implementation for single-process deployments and tests,
// and an SQS-backed one for production.
package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/herald-notify/herald/internal/db"
)

// Logical queue names.
const (
	QueueEmail  = "email.queue"
	QueuePush   = "push.queue"
	QueueFailed = "failed.queue"
)

// Priority bounds for a notification.
const (
	MinPriority = 1
	MaxPriority = 10
)

// Message is the wire contract for a queued notification. Workers key all
// processing on NotificationID, never on broker message identity, so
// redelivery is harmless.
type Message struct {
	NotificationID uuid.UUID       `json:"notification_id"`
	Type           string          `json:"notification_type"`
	UserID         uuid.UUID       `json:"user_id"`
	TemplateCode   string          `json:"template_code"`
	Variables      json.RawMessage `json:"variables"`
	Priority       int             `json:"priority"`
	Metadata       json.RawMessage `json:"metadata,omitempty"`
	RetryCount     int             `json:"retry_count"`
	EnqueuedAt     int64           `json:"enqueued_at"`
}

// FromNotification builds the queue message for a ledger record.
func FromNotification(n *db.Notification) *Message {
	return &Message{
		NotificationID: n.ID,
		Type:           n.Type,
		UserID:         n.UserID,
		TemplateCode:   n.TemplateCode,
		Variables:      n.Variables,
		Priority:       n.Priority,
		Metadata:       n.Metadata,
		RetryCount:     n.RetryCount,
		EnqueuedAt:     time.Now().UnixNano(),
	}
}

// Queue is one logical destination. Enqueue is at-least-once: a crash
// between enqueue and ack may redeliver. Dequeue returns (nil, "", nil)
// when nothing is ready; workers poll. Ack must be called only after the
// resulting status transition has committed; Nack makes the message
// visible again immediately.
type Queue interface {
	Enqueue(ctx context.Context, msg *Message, delay time.Duration) error
	Dequeue(ctx context.Context) (*Message, string, error)
	Ack(ctx context.Context, receipt string) error
	Nack(ctx context.Context, receipt string) error
}

// Router deterministically maps a notification to its logical queue.
type Router struct{}

// Route returns the queue name for a notification type. Exhausted
// notifications go to the failed queue regardless of type.
func (Router) Route(notifType string, exhausted bool) string {
	if exhausted {
		return QueueFailed
	}
	switch notifType {
	case db.TypePush:
		return QueuePush
	default:
		return QueueEmail
	}
}
