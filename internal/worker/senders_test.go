package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/herald-notify/herald/internal/db"
)

type fakeDirectory struct {
	users     map[uuid.UUID]*db.User
	templates map[string]*db.Template
	err       error
}

func (f *fakeDirectory) GetUser(ctx context.Context, id uuid.UUID) (*db.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	user, ok := f.users[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	return user, nil
}

func (f *fakeDirectory) GetTemplate(ctx context.Context, code string) (*db.Template, error) {
	if f.err != nil {
		return nil, f.err
	}
	tmpl, ok := f.templates[code]
	if !ok {
		return nil, db.ErrNotFound
	}
	return tmpl, nil
}

type fakeSESClient struct {
	input *ses.SendTemplatedEmailInput
	err   error
}

func (f *fakeSESClient) SendTemplatedEmail(ctx context.Context, params *ses.SendTemplatedEmailInput, optFns ...func(*ses.Options)) (*ses.SendTemplatedEmailOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &ses.SendTemplatedEmailOutput{MessageId: aws.String("msg-1")}, nil
}

type fakeSNSClient struct {
	input *sns.PublishInput
	err   error
}

func (f *fakeSNSClient) Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &sns.PublishOutput{MessageId: aws.String("msg-2")}, nil
}

func emailNotification(userID uuid.UUID) *db.Notification {
	return &db.Notification{
		ID:           uuid.New(),
		Type:         db.TypeEmail,
		UserID:       userID,
		TemplateCode: "welcome_email",
		Variables:    json.RawMessage(`{"name":"Ada"}`),
	}
}

func pushNotification(userID uuid.UUID) *db.Notification {
	return &db.Notification{
		ID:           uuid.New(),
		Type:         db.TypePush,
		UserID:       userID,
		TemplateCode: "order_shipped",
		Variables:    json.RawMessage(`{"order_id":"1234"}`),
	}
}

func TestSESSenderSend(t *testing.T) {
	userID := uuid.New()
	directory := &fakeDirectory{
		users: map[uuid.UUID]*db.User{
			userID: {ID: userID, Email: "ada@example.com"},
		},
	}
	client := &fakeSESClient{}
	sender := &SESSender{
		client:    client,
		directory: directory,
		from:      "noreply@example.com",
		logger:    zap.NewNop(),
	}

	notif := emailNotification(userID)
	if err := sender.Send(context.Background(), notif); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if client.input == nil {
		t.Fatal("expected a templated send call")
	}
	if got := aws.ToString(client.input.Template); got != "welcome_email" {
		t.Errorf("template = %q, want welcome_email", got)
	}
	if got := client.input.Destination.ToAddresses; len(got) != 1 || got[0] != "ada@example.com" {
		t.Errorf("destination = %v, want [ada@example.com]", got)
	}
	if got := aws.ToString(client.input.TemplateData); got != `{"name":"Ada"}` {
		t.Errorf("template data = %q", got)
	}
	if got := aws.ToString(client.input.Source); got != "noreply@example.com" {
		t.Errorf("source = %q", got)
	}
}

func TestSESSenderEmptyVariables(t *testing.T) {
	userID := uuid.New()
	directory := &fakeDirectory{
		users: map[uuid.UUID]*db.User{
			userID: {ID: userID, Email: "ada@example.com"},
		},
	}
	client := &fakeSESClient{}
	sender := &SESSender{client: client, directory: directory, from: "noreply@example.com", logger: zap.NewNop()}

	notif := emailNotification(userID)
	notif.Variables = nil
	if err := sender.Send(context.Background(), notif); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got := aws.ToString(client.input.TemplateData); got != "{}" {
		t.Errorf("template data = %q, want {}", got)
	}
}

func TestSESSenderWrongType(t *testing.T) {
	sender := &SESSender{client: &fakeSESClient{}, directory: &fakeDirectory{}, logger: zap.NewNop()}
	err := sender.Send(context.Background(), pushNotification(uuid.New()))
	if err == nil {
		t.Fatal("expected error for push notification")
	}
}

func TestSESSenderMissingEmail(t *testing.T) {
	userID := uuid.New()
	directory := &fakeDirectory{
		users: map[uuid.UUID]*db.User{
			userID: {ID: userID},
		},
	}
	sender := &SESSender{client: &fakeSESClient{}, directory: directory, logger: zap.NewNop()}

	err := sender.Send(context.Background(), emailNotification(userID))
	if err == nil {
		t.Fatal("expected error for user without email")
	}
}

func TestSESSenderProviderFailure(t *testing.T) {
	userID := uuid.New()
	directory := &fakeDirectory{
		users: map[uuid.UUID]*db.User{
			userID: {ID: userID, Email: "ada@example.com"},
		},
	}
	client := &fakeSESClient{err: fmt.Errorf("throttled")}
	sender := &SESSender{client: client, directory: directory, from: "noreply@example.com", logger: zap.NewNop()}

	err := sender.Send(context.Background(), emailNotification(userID))
	if err == nil {
		t.Fatal("expected error")
	}

	var delivErr *DeliveryError
	if !errors.As(err, &delivErr) {
		t.Fatalf("expected DeliveryError, got %T", err)
	}
	if delivErr.Channel != "smtp" {
		t.Errorf("channel = %q, want smtp", delivErr.Channel)
	}
}

func TestSNSSenderSend(t *testing.T) {
	userID := uuid.New()
	directory := &fakeDirectory{
		users: map[uuid.UUID]*db.User{
			userID: {ID: userID, PushEndpointARN: "arn:aws:sns:us-east-1:123:endpoint/GCM/app/abc"},
		},
	}
	client := &fakeSNSClient{}
	sender := &SNSSender{client: client, directory: directory, logger: zap.NewNop()}

	notif := pushNotification(userID)
	if err := sender.Send(context.Background(), notif); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if client.input == nil {
		t.Fatal("expected a publish call")
	}
	if got := aws.ToString(client.input.TargetArn); !strings.HasSuffix(got, "endpoint/GCM/app/abc") {
		t.Errorf("target arn = %q", got)
	}

	var envelope pushEnvelope
	if err := json.Unmarshal([]byte(aws.ToString(client.input.Message)), &envelope); err != nil {
		t.Fatalf("failed to parse envelope: %v", err)
	}
	if envelope.NotificationID != notif.ID.String() {
		t.Errorf("envelope notification_id = %q, want %q", envelope.NotificationID, notif.ID)
	}
	if envelope.TemplateCode != "order_shipped" {
		t.Errorf("envelope template_code = %q", envelope.TemplateCode)
	}
}

func TestSNSSenderMissingEndpoint(t *testing.T) {
	userID := uuid.New()
	directory := &fakeDirectory{
		users: map[uuid.UUID]*db.User{
			userID: {ID: userID, Email: "ada@example.com"},
		},
	}
	sender := &SNSSender{client: &fakeSNSClient{}, directory: directory, logger: zap.NewNop()}

	err := sender.Send(context.Background(), pushNotification(userID))
	if err == nil {
		t.Fatal("expected error for user without push endpoint")
	}
}

func TestSNSSenderProviderFailure(t *testing.T) {
	userID := uuid.New()
	directory := &fakeDirectory{
		users: map[uuid.UUID]*db.User{
			userID: {ID: userID, PushEndpointARN: "arn:aws:sns:us-east-1:123:endpoint/GCM/app/abc"},
		},
	}
	client := &fakeSNSClient{err: fmt.Errorf("endpoint disabled")}
	sender := &SNSSender{client: client, directory: directory, logger: zap.NewNop()}

	err := sender.Send(context.Background(), pushNotification(userID))
	var delivErr *DeliveryError
	if !errors.As(err, &delivErr) {
		t.Fatalf("expected DeliveryError, got %v", err)
	}
	if delivErr.Channel != "fcm" {
		t.Errorf("channel = %q, want fcm", delivErr.Channel)
	}
}

func TestMultiSenderRouting(t *testing.T) {
	logger := zap.NewNop()
	emailSender := &SESSender{client: &fakeSESClient{}, directory: &fakeDirectory{}, logger: logger}
	pushSender := &SNSSender{client: &fakeSNSClient{}, directory: &fakeDirectory{}, logger: logger}
	multiSender := NewMultiSender(logger, emailSender, pushSender)

	tests := []struct {
		name      string
		notifType string
		should    bool
	}{
		{"email_supported", db.TypeEmail, true},
		{"push_supported", db.TypePush, true},
		{"sms_not_supported", "sms", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			supports := multiSender.SupportsType(tt.notifType)
			if supports != tt.should {
				t.Errorf("SupportsType(%s) = %v, want %v", tt.notifType, supports, tt.should)
			}
		})
	}
}

func TestMultiSenderNoMatch(t *testing.T) {
	multiSender := NewMultiSender(zap.NewNop())
	err := multiSender.Send(context.Background(), emailNotification(uuid.New()))
	if err == nil {
		t.Fatal("expected error when no sender matches")
	}
}

func TestLogSenderSend(t *testing.T) {
	sender := NewLogSender(zap.NewNop())

	for _, notifType := range []string{db.TypeEmail, db.TypePush} {
		notif := emailNotification(uuid.New())
		notif.Type = notifType
		if err := sender.Send(context.Background(), notif); err != nil {
			t.Errorf("expected no error for %s, got %v", notifType, err)
		}
		if !sender.SupportsType(notifType) {
			t.Errorf("LogSender should support %s", notifType)
		}
	}
}

func TestDeliveryErrorUnwrap(t *testing.T) {
	inner := fmt.Errorf("connection reset")
	err := &DeliveryError{Channel: "smtp", Err: inner}

	if !errors.Is(err, inner) {
		t.Error("DeliveryError should unwrap to inner error")
	}
	if !strings.Contains(err.Error(), "smtp") {
		t.Errorf("error string should name the channel: %q", err.Error())
	}
}
