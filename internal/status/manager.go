package status

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/herald-notify/herald/internal/metrics"
)

// Ledger is the slice of the persistence layer the manager needs.
// ApplyTransition must append the status event and update the derived
// status as one atomic unit, guarded by the expected current status.
type Ledger interface {
	CurrentStatus(ctx context.Context, id uuid.UUID) (string, error)
	ApplyTransition(ctx context.Context, id uuid.UUID, from, to, event string, errMsg *string, retryCount *int, occurredAt *time.Time) error
}

// Notifier receives status changes after they have been committed.
// Implementations fan the change out to callers (SNS topic, webhooks).
type Notifier interface {
	StatusChanged(ctx context.Context, id uuid.UUID, status string, errMsg *string)
}

// Manager is the only component allowed to mutate a notification's status.
// It validates every event against the transition table and serializes
// writers per notification, so concurrent failure reports cannot produce
// conflicting status events or retry count drift.
type Manager struct {
	ledger   Ledger
	notifier Notifier
	logger   *zap.Logger

	locks [64]sync.Mutex
}

// NewManager creates a status manager backed by the given ledger.
// notifier may be nil.
func NewManager(ledger Ledger, notifier Notifier, logger *zap.Logger) *Manager {
	return &Manager{
		ledger:   ledger,
		notifier: notifier,
		logger:   logger,
	}
}

// TransitionOption attaches extra data to a transition.
type TransitionOption func(*transitionArgs)

type transitionArgs struct {
	errMsg     *string
	retryCount *int
	occurredAt *time.Time
}

// WithError records the failure message on the notification and its
// status event.
func WithError(msg string) TransitionOption {
	return func(a *transitionArgs) {
		a.errMsg = &msg
	}
}

// WithRetryCount updates retry_count in the same atomic write as the
// transition. Used for failed -> queued.
func WithRetryCount(n int) TransitionOption {
	return func(a *transitionArgs) {
		a.retryCount = &n
	}
}

// WithOccurredAt stamps the status event with the time the provider says
// the change happened, as opposed to when the row is written.
func WithOccurredAt(t time.Time) TransitionOption {
	return func(a *transitionArgs) {
		a.occurredAt = &t
	}
}

// Transition applies event to the notification and returns the new status.
// Illegal events return ErrInvalidTransition and leave the stored status
// untouched.
func (m *Manager) Transition(ctx context.Context, id uuid.UUID, event Event, opts ...TransitionOption) (Status, error) {
	var args transitionArgs
	for _, opt := range opts {
		opt(&args)
	}

	lock := m.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	current, err := m.ledger.CurrentStatus(ctx, id)
	if err != nil {
		return "", fmt.Errorf("read current status: %w", err)
	}

	from := Status(current)
	to, err := Next(from, event)
	if err != nil {
		m.logger.Error("rejected status transition",
			zap.String("notification_id", id.String()),
			zap.String("from", string(from)),
			zap.String("event", string(event)),
		)
		return "", err
	}

	if err := m.ledger.ApplyTransition(ctx, id, string(from), string(to), string(event), args.errMsg, args.retryCount, args.occurredAt); err != nil {
		return "", fmt.Errorf("apply transition: %w", err)
	}

	m.logger.Info("status transition",
		zap.String("notification_id", id.String()),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.String("event", string(event)),
	)
	metrics.RecordStatusTransition(string(from), string(to))

	if m.notifier != nil {
		m.notifier.StatusChanged(ctx, id, string(to), args.errMsg)
	}

	return to, nil
}

// ApplyReported validates a caller-reported status (the webhook surface)
// against the state machine and applies it. The claimed status is never
// trusted blindly; it is mapped to the event that would reach it from the
// current status, then applied through the normal path.
func (m *Manager) ApplyReported(ctx context.Context, id uuid.UUID, reported Status, at time.Time, errMsg *string) (Status, error) {
	if !Valid(reported) {
		return "", fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, reported)
	}

	lock := m.lockFor(id)
	lock.Lock()
	current, err := m.ledger.CurrentStatus(ctx, id)
	lock.Unlock()
	if err != nil {
		return "", fmt.Errorf("read current status: %w", err)
	}

	event, err := EventFor(Status(current), reported)
	if err != nil {
		return "", err
	}

	opts := []TransitionOption{WithOccurredAt(at)}
	if errMsg != nil {
		opts = append(opts, WithError(*errMsg))
	}
	return m.Transition(ctx, id, event, opts...)
}

func (m *Manager) lockFor(id uuid.UUID) *sync.Mutex {
	h := fnv.New32a()
	h.Write(id[:])
	return &m.locks[h.Sum32()%uint32(len(m.locks))]
}
