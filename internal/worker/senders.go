package worker

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/herald-notify/herald/internal/db"
)

// Sender is the unified channel send capability. Implementations: email
// via SES, push via an SNS platform endpoint (FCM behind it).
type Sender interface {
	Send(ctx context.Context, notif *db.Notification) error
	SupportsType(notifType string) bool
}

// Directory resolves recipients and templates for senders. Rendering is
// not done here; template content and variables travel to the provider
// as-is.
type Directory interface {
	GetUser(ctx context.Context, id uuid.UUID) (*db.User, error)
	GetTemplate(ctx context.Context, code string) (*db.Template, error)
}

// DeliveryError marks a channel-side rejection, as opposed to breaker
// fail-fasts or local bugs. Retriable up to the policy limit.
type DeliveryError struct {
	Channel string
	Err     error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery failed on %s: %v", e.Channel, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// MultiSender routes a notification to the first sender supporting its type.
type MultiSender struct {
	senders []Sender
	logger  *zap.Logger
}

// NewMultiSender creates a router over the given channel senders.
func NewMultiSender(logger *zap.Logger, senders ...Sender) *MultiSender {
	return &MultiSender{
		senders: senders,
		logger:  logger,
	}
}

// Send routes the notification to the matching sender.
func (m *MultiSender) Send(ctx context.Context, notif *db.Notification) error {
	for _, sender := range m.senders {
		if sender.SupportsType(notif.Type) {
			m.logger.Debug("routing notification to sender",
				zap.String("type", notif.Type),
				zap.String("notification_id", notif.ID.String()),
			)
			return sender.Send(ctx, notif)
		}
	}

	return fmt.Errorf("no sender for notification type: %s", notif.Type)
}

// SupportsType checks if any underlying sender supports the type.
func (m *MultiSender) SupportsType(notifType string) bool {
	for _, sender := range m.senders {
		if sender.SupportsType(notifType) {
			return true
		}
	}
	return false
}

// LogSender logs instead of sending (development mode).
type LogSender struct {
	logger *zap.Logger
}

func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, notif *db.Notification) error {
	s.logger.Info("logging notification (development mode)",
		zap.String("id", notif.ID.String()),
		zap.String("type", notif.Type),
		zap.String("user_id", notif.UserID.String()),
		zap.String("template_code", notif.TemplateCode),
	)
	return nil
}

func (s *LogSender) SupportsType(notifType string) bool {
	return notifType == db.TypeEmail || notifType == db.TypePush
}
