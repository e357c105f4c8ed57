package db

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Notification is the authoritative ledger record for one logical
// delivery request. Status is derived from the most recent status event
// and is only ever written together with it.
type Notification struct {
	ID           uuid.UUID       `json:"id"`
	RequestID    string          `json:"request_id"`
	Type         string          `json:"type"`
	UserID       uuid.UUID       `json:"user_id"`
	TemplateCode string          `json:"template_code"`
	Variables    json.RawMessage `json:"variables"`
	Priority     int             `json:"priority"`
	Metadata     json.RawMessage `json:"metadata,omitempty"`
	Status       string          `json:"status"`
	RetryCount   int             `json:"retry_count"`
	LastError    *string         `json:"last_error,omitempty"`
	Version      int             `json:"-"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// StatusEvent is one append-only entry in a notification's audit trail.
// OccurredAt is the provider-reported time for webhook-driven events;
// CreatedAt is always when the row was recorded.
type StatusEvent struct {
	ID             int64      `json:"id"`
	NotificationID uuid.UUID  `json:"notification_id"`
	Status         string     `json:"status"`
	Event          string     `json:"event"`
	Error          *string    `json:"error,omitempty"`
	OccurredAt     *time.Time `json:"occurred_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// Notification type constants
const (
	TypeEmail = "email"
	TypePush  = "push"
)

// DeadLetterNotification is a snapshot of a permanently failed
// notification, retained for operator inspection.
type DeadLetterNotification struct {
	ID                     uuid.UUID       `json:"id"`
	OriginalNotificationID uuid.UUID       `json:"original_notification_id"`
	Type                   string          `json:"type"`
	UserID                 uuid.UUID       `json:"user_id"`
	TemplateCode           string          `json:"template_code"`
	Variables              json.RawMessage `json:"variables"`
	Metadata               json.RawMessage `json:"metadata,omitempty"`
	Attempts               int             `json:"attempts"`
	LastError              string          `json:"last_error"`
	Status                 string          `json:"status"`
	RetriedNotificationID  *uuid.UUID      `json:"retried_notification_id,omitempty"`
	CreatedAt              time.Time       `json:"created_at"`
	UpdatedAt              time.Time       `json:"updated_at"`
}

// DLQ status constants
const (
	DLQStatusPending   = "pending"
	DLQStatusRetried   = "retried"
	DLQStatusDiscarded = "discarded"
)

// User is a recipient record with per-channel opt-in preferences.
type User struct {
	ID              uuid.UUID `json:"id"`
	Email           string    `json:"email"`
	PushEndpointARN string    `json:"push_endpoint_arn,omitempty"`
	EmailEnabled    bool      `json:"email_enabled"`
	PushEnabled     bool      `json:"push_enabled"`
}

// OptedIn reports whether the user accepts notifications of the given type.
func (u *User) OptedIn(notifType string) bool {
	switch notifType {
	case TypeEmail:
		return u.EmailEnabled
	case TypePush:
		return u.PushEnabled
	}
	return false
}

// Template is a stored message template. Rendering happens at the
// provider edge; the core only carries content and variables through.
type Template struct {
	Code            string          `json:"code"`
	Subject         string          `json:"subject"`
	Content         string          `json:"content"`
	VariablesSchema json.RawMessage `json:"variables_schema,omitempty"`
}
