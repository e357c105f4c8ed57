package worker

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/herald-notify/herald/internal/circuitbreaker"
	"github.com/herald-notify/herald/internal/db"
	"github.com/herald-notify/herald/internal/metrics"
	"github.com/herald-notify/herald/internal/queue"
	"github.com/herald-notify/herald/internal/retry"
	"github.com/herald-notify/herald/internal/status"
)

// Repository is the slice of the persistence layer the worker needs.
type Repository interface {
	GetNotification(ctx context.Context, id uuid.UUID) (*db.Notification, error)
	MoveToDeadLetter(ctx context.Context, notif *db.Notification, lastError string) (*db.DeadLetterNotification, error)
}

// StatusManager applies validated status transitions.
type StatusManager interface {
	Transition(ctx context.Context, id uuid.UUID, event status.Event, opts ...status.TransitionOption) (status.Status, error)
}

// Worker drains one logical queue and drives each message through the
// delivery lifecycle: pick up, send, and on failure either schedule a
// retry back onto the same queue or move the notification to the dead
// letter table.
type Worker struct {
	queueName string
	queue     queue.Queue
	failed    queue.Queue
	repo      Repository
	statuses  StatusManager
	policy    *retry.Policy
	sender    Sender
	config    Config
	logger    *zap.Logger
}

type Config struct {
	PollInterval time.Duration
	SendTimeout  time.Duration
}

func New(queueName string, q, failed queue.Queue, repo Repository, statuses StatusManager, policy *retry.Policy, sender Sender, cfg Config, logger *zap.Logger) *Worker {
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 1 * time.Second
	}
	if cfg.SendTimeout == 0 {
		cfg.SendTimeout = 10 * time.Second
	}

	return &Worker{
		queueName: queueName,
		queue:     q,
		failed:    failed,
		repo:      repo,
		statuses:  statuses,
		policy:    policy,
		sender:    sender,
		config:    cfg,
		logger:    logger.With(zap.String("queue", queueName)),
	}
}

// Start polls the queue until ctx is canceled.
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("worker stopping")
			return
		case <-ticker.C:
			w.drain(ctx)
		}
	}
}

// drain processes everything currently ready on the queue.
func (w *Worker) drain(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		msg, receipt, err := w.queue.Dequeue(ctx)
		if err != nil {
			w.logger.Error("dequeue failed", zap.Error(err))
			return
		}
		if msg == nil {
			return
		}

		w.processMessage(ctx, msg, receipt)
	}
}

// processMessage handles one delivery attempt. All decisions key on the
// notification's ledger state, not on broker message identity, so a
// redelivered message for an already-handled notification is absorbed
// with an ack and no side effects.
func (w *Worker) processMessage(ctx context.Context, msg *queue.Message, receipt string) {
	notif, err := w.repo.GetNotification(ctx, msg.NotificationID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			w.logger.Warn("message for unknown notification, dropping",
				zap.String("notification_id", msg.NotificationID.String()),
			)
			w.ack(ctx, receipt)
			return
		}
		w.logger.Error("failed to load notification", zap.Error(err))
		w.nack(ctx, receipt)
		return
	}

	if notif.Status != string(status.StatusQueued) {
		// Redelivery of something already picked up or finished.
		w.logger.Debug("absorbing redelivery",
			zap.String("notification_id", notif.ID.String()),
			zap.String("status", notif.Status),
		)
		w.ack(ctx, receipt)
		return
	}

	if _, err := w.statuses.Transition(ctx, notif.ID, status.EventPickedUp); err != nil {
		if errors.Is(err, status.ErrInvalidTransition) || errors.Is(err, db.ErrStaleStatus) {
			// Another worker won the pickup race.
			w.ack(ctx, receipt)
			return
		}
		w.logger.Error("failed to mark processing", zap.Error(err))
		w.nack(ctx, receipt)
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, w.config.SendTimeout)
	start := time.Now()
	sendErr := w.sender.Send(sendCtx, notif)
	cancel()
	metrics.RecordDeliveryLatency(notif.Type, time.Since(start))

	if sendErr == nil {
		w.handleSuccess(ctx, notif, receipt)
		return
	}
	w.handleFailure(ctx, notif, msg, receipt, sendErr)
}

func (w *Worker) handleSuccess(ctx context.Context, notif *db.Notification, receipt string) {
	if _, err := w.statuses.Transition(ctx, notif.ID, status.EventChannelAccepted); err != nil {
		w.logger.Error("failed to mark sent", zap.Error(err),
			zap.String("notification_id", notif.ID.String()),
		)
		w.nack(ctx, receipt)
		return
	}

	w.logger.Info("notification sent",
		zap.String("notification_id", notif.ID.String()),
		zap.String("type", notif.Type),
	)
	w.ack(ctx, receipt)
}

func (w *Worker) handleFailure(ctx context.Context, notif *db.Notification, msg *queue.Message, receipt string, sendErr error) {
	w.logger.Error("delivery attempt failed",
		zap.Error(sendErr),
		zap.String("notification_id", notif.ID.String()),
		zap.Int("retry_count", notif.RetryCount),
	)

	errMsg := sendErr.Error()
	if _, err := w.statuses.Transition(ctx, notif.ID, status.EventChannelRejected, status.WithError(errMsg)); err != nil {
		w.logger.Error("failed to mark failed", zap.Error(err))
		w.nack(ctx, receipt)
		return
	}
	notif.Status = string(status.StatusFailed)
	notif.LastError = &errMsg

	cause := retry.CauseDelivery
	if errors.Is(sendErr, circuitbreaker.ErrCircuitOpen) {
		cause = retry.CauseCircuitOpen
	}

	decision := w.policy.Decide(notif.RetryCount, cause)
	if decision.DeadLetter {
		w.deadLetter(ctx, notif, msg, receipt, errMsg)
		return
	}

	newCount := notif.RetryCount + 1
	if _, err := w.statuses.Transition(ctx, notif.ID, status.EventRetryScheduled, status.WithRetryCount(newCount)); err != nil {
		w.logger.Error("failed to schedule retry", zap.Error(err))
		w.nack(ctx, receipt)
		return
	}

	retryMsg := *msg
	retryMsg.RetryCount = newCount
	if err := w.queue.Enqueue(ctx, &retryMsg, decision.Delay); err != nil {
		w.logger.Error("failed to enqueue retry", zap.Error(err))
		w.nack(ctx, receipt)
		return
	}

	metrics.RecordRetryScheduled(w.queueName)
	w.logger.Info("retry scheduled",
		zap.String("notification_id", notif.ID.String()),
		zap.Int("retry_count", newCount),
		zap.Duration("delay", decision.Delay),
	)
	w.ack(ctx, receipt)
}

func (w *Worker) deadLetter(ctx context.Context, notif *db.Notification, msg *queue.Message, receipt string, lastError string) {
	if _, err := w.statuses.Transition(ctx, notif.ID, status.EventRetriesExhausted, status.WithError(lastError)); err != nil {
		w.logger.Error("failed to mark dead lettered", zap.Error(err))
		w.nack(ctx, receipt)
		return
	}
	notif.Status = string(status.StatusDeadLettered)

	if _, err := w.repo.MoveToDeadLetter(ctx, notif, lastError); err != nil {
		w.logger.Error("failed to record dead letter",
			zap.String("notification_id", notif.ID.String()),
			zap.Error(err),
		)
	}

	failedMsg := *msg
	failedMsg.RetryCount = notif.RetryCount
	if err := w.failed.Enqueue(ctx, &failedMsg, 0); err != nil {
		w.logger.Error("failed to enqueue on failed queue", zap.Error(err))
	}

	metrics.RecordDeadLetter(notif.Type)
	w.logger.Warn("notification dead lettered",
		zap.String("notification_id", notif.ID.String()),
		zap.Int("retries", notif.RetryCount),
	)
	w.ack(ctx, receipt)
}

func (w *Worker) ack(ctx context.Context, receipt string) {
	if err := w.queue.Ack(ctx, receipt); err != nil {
		w.logger.Error("ack failed", zap.Error(err))
	}
}

func (w *Worker) nack(ctx context.Context, receipt string) {
	if err := w.queue.Nack(ctx, receipt); err != nil {
		w.logger.Error("nack failed", zap.Error(err))
	}
}
