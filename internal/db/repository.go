package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// ErrNotFound is returned when the requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrStaleStatus is returned when a transition's expected current status
// no longer matches the stored row (another writer won the race).
var ErrStaleStatus = errors.New("stale status: row changed concurrently")

// Repository handles ledger operations for notifications.
type Repository struct {
	db     *DB
	logger *zap.Logger
}

// NewRepository creates a new ledger repository
func NewRepository(db *DB, logger *zap.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

const notificationColumns = `
	id, request_id, type, user_id, template_code, variables,
	priority, metadata, status, retry_count, last_error, version,
	created_at, updated_at
`

func scanNotification(row pgx.Row) (*Notification, error) {
	var n Notification
	err := row.Scan(
		&n.ID,
		&n.RequestID,
		&n.Type,
		&n.UserID,
		&n.TemplateCode,
		&n.Variables,
		&n.Priority,
		&n.Metadata,
		&n.Status,
		&n.RetryCount,
		&n.LastError,
		&n.Version,
		&n.CreatedAt,
		&n.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// CreateNotification inserts a new notification with its initial status
// event. Both writes happen in one transaction so the audit trail starts
// consistent with the derived status.
func (r *Repository) CreateNotification(ctx context.Context, n *Notification) error {
	tx, err := r.db.Pool().Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	query := `
		INSERT INTO notifications (
			id, request_id, type, user_id, template_code, variables,
			priority, metadata, status, retry_count
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
		)
		RETURNING version, created_at, updated_at
	`

	err = tx.QueryRow(
		ctx,
		query,
		n.ID,
		n.RequestID,
		n.Type,
		n.UserID,
		n.TemplateCode,
		n.Variables,
		n.Priority,
		n.Metadata,
		n.Status,
		n.RetryCount,
	).Scan(&n.Version, &n.CreatedAt, &n.UpdatedAt)

	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}

	eventQuery := `
		INSERT INTO status_events (notification_id, status, event)
		VALUES ($1, $2, $3)
	`
	if _, err := tx.Exec(ctx, eventQuery, n.ID, n.Status, "created"); err != nil {
		return fmt.Errorf("insert initial status event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	r.logger.Info("notification created",
		zap.String("notification_id", n.ID.String()),
		zap.String("request_id", n.RequestID),
		zap.String("type", n.Type),
		zap.Int("priority", n.Priority),
	)

	return nil
}

// GetNotification retrieves a notification by ID
func (r *Repository) GetNotification(ctx context.Context, id uuid.UUID) (*Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE id = $1`

	n, err := scanNotification(r.db.Pool().QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: notification %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("query notification: %w", err)
	}

	return n, nil
}

// GetNotificationByRequestID looks a notification up by the client-supplied
// request identifier.
func (r *Repository) GetNotificationByRequestID(ctx context.Context, requestID string) (*Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE request_id = $1`

	n, err := scanNotification(r.db.Pool().QueryRow(ctx, query, requestID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: request %s", ErrNotFound, requestID)
	}
	if err != nil {
		return nil, fmt.Errorf("query notification by request id: %w", err)
	}

	return n, nil
}

// CurrentStatus returns the stored status for a notification.
func (r *Repository) CurrentStatus(ctx context.Context, id uuid.UUID) (string, error) {
	var status string
	err := r.db.Pool().QueryRow(ctx, `SELECT status FROM notifications WHERE id = $1`, id).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("%w: notification %s", ErrNotFound, id)
	}
	if err != nil {
		return "", fmt.Errorf("query status: %w", err)
	}
	return status, nil
}

// ApplyTransition appends a status event and updates the derived status in
// one transaction. The UPDATE is guarded by the expected current status, so
// a concurrent writer loses with ErrStaleStatus instead of overwriting.
// occurredAt carries the provider-reported time for webhook events; nil for
// transitions the core itself drives.
func (r *Repository) ApplyTransition(ctx context.Context, id uuid.UUID, from, to, event string, errMsg *string, retryCount *int, occurredAt *time.Time) error {
	tx, err := r.db.Pool().Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	update := `
		UPDATE notifications
		SET status = $1,
		    last_error = COALESCE($2, last_error),
		    retry_count = COALESCE($3, retry_count),
		    version = version + 1,
		    updated_at = NOW()
		WHERE id = $4 AND status = $5
	`

	result, err := tx.Exec(ctx, update, to, errMsg, retryCount, id, from)
	if err != nil {
		return fmt.Errorf("update notification status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: notification %s expected %s", ErrStaleStatus, id, from)
	}

	insert := `
		INSERT INTO status_events (notification_id, status, event, error, occurred_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := tx.Exec(ctx, insert, id, to, event, errMsg, occurredAt); err != nil {
		return fmt.Errorf("insert status event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// ListStatusEvents returns a notification's full audit trail, oldest first.
func (r *Repository) ListStatusEvents(ctx context.Context, id uuid.UUID) ([]*StatusEvent, error) {
	query := `
		SELECT id, notification_id, status, event, error, occurred_at, created_at
		FROM status_events
		WHERE notification_id = $1
		ORDER BY id ASC
	`

	rows, err := r.db.Pool().Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("query status events: %w", err)
	}
	defer rows.Close()

	var events []*StatusEvent
	for rows.Next() {
		var e StatusEvent
		err := rows.Scan(&e.ID, &e.NotificationID, &e.Status, &e.Event, &e.Error, &e.OccurredAt, &e.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan status event: %w", err)
		}
		events = append(events, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return events, nil
}

// ListNotificationsByUser retrieves notifications for a user with pagination
func (r *Repository) ListNotificationsByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Notification, error) {
	query := `
		SELECT ` + notificationColumns + `
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Pool().Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	var notifications []*Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		notifications = append(notifications, n)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return notifications, nil
}

// MoveToDeadLetter snapshots an exhausted notification into the dead letter
// table. The caller is responsible for the dead_lettered status transition;
// this only records the inspection copy.
func (r *Repository) MoveToDeadLetter(ctx context.Context, n *Notification, lastError string) (*DeadLetterNotification, error) {
	dlq := &DeadLetterNotification{
		ID:                     uuid.New(),
		OriginalNotificationID: n.ID,
		Type:                   n.Type,
		UserID:                 n.UserID,
		TemplateCode:           n.TemplateCode,
		Variables:              n.Variables,
		Metadata:               n.Metadata,
		Attempts:               n.RetryCount,
		LastError:              lastError,
		Status:                 DLQStatusPending,
	}

	query := `
		INSERT INTO dead_letter_notifications (
			id, original_notification_id, type, user_id, template_code,
			variables, metadata, attempts, last_error, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at
	`

	err := r.db.Pool().QueryRow(ctx, query,
		dlq.ID,
		dlq.OriginalNotificationID,
		dlq.Type,
		dlq.UserID,
		dlq.TemplateCode,
		dlq.Variables,
		dlq.Metadata,
		dlq.Attempts,
		dlq.LastError,
		dlq.Status,
	).Scan(&dlq.CreatedAt, &dlq.UpdatedAt)

	if err != nil {
		return nil, fmt.Errorf("insert dead letter: %w", err)
	}

	r.logger.Info("notification moved to dead letter queue",
		zap.String("notification_id", n.ID.String()),
		zap.String("dlq_id", dlq.ID.String()),
		zap.String("last_error", lastError),
	)

	return dlq, nil
}

// ListDeadLetters retrieves DLQ items, newest first.
func (r *Repository) ListDeadLetters(ctx context.Context, limit, offset int) ([]*DeadLetterNotification, error) {
	query := `
		SELECT
			id, original_notification_id, type, user_id, template_code,
			variables, metadata, attempts, last_error, status,
			retried_notification_id, created_at, updated_at
		FROM dead_letter_notifications
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.db.Pool().Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query dead letter notifications: %w", err)
	}
	defer rows.Close()

	var items []*DeadLetterNotification
	for rows.Next() {
		var dlq DeadLetterNotification
		err := rows.Scan(
			&dlq.ID,
			&dlq.OriginalNotificationID,
			&dlq.Type,
			&dlq.UserID,
			&dlq.TemplateCode,
			&dlq.Variables,
			&dlq.Metadata,
			&dlq.Attempts,
			&dlq.LastError,
			&dlq.Status,
			&dlq.RetriedNotificationID,
			&dlq.CreatedAt,
			&dlq.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan dead letter: %w", err)
		}
		items = append(items, &dlq)
	}

	return items, rows.Err()
}

// GetDeadLetter retrieves a single DLQ item by ID
func (r *Repository) GetDeadLetter(ctx context.Context, id uuid.UUID) (*DeadLetterNotification, error) {
	query := `
		SELECT
			id, original_notification_id, type, user_id, template_code,
			variables, metadata, attempts, last_error, status,
			retried_notification_id, created_at, updated_at
		FROM dead_letter_notifications
		WHERE id = $1
	`

	var dlq DeadLetterNotification
	err := r.db.Pool().QueryRow(ctx, query, id).Scan(
		&dlq.ID,
		&dlq.OriginalNotificationID,
		&dlq.Type,
		&dlq.UserID,
		&dlq.TemplateCode,
		&dlq.Variables,
		&dlq.Metadata,
		&dlq.Attempts,
		&dlq.LastError,
		&dlq.Status,
		&dlq.RetriedNotificationID,
		&dlq.CreatedAt,
		&dlq.UpdatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: dead letter %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("query dead letter: %w", err)
	}

	return &dlq, nil
}

// RetryDeadLetter creates a fresh notification from a DLQ item and marks
// the item as retried. The new notification gets a synthetic request_id so
// it cannot collide with the original inside the idempotency window.
func (r *Repository) RetryDeadLetter(ctx context.Context, dlqID uuid.UUID) (*Notification, error) {
	dlq, err := r.GetDeadLetter(ctx, dlqID)
	if err != nil {
		return nil, err
	}

	if dlq.Status != DLQStatusPending {
		return nil, fmt.Errorf("dead letter already processed: %s", dlq.Status)
	}

	tx, err := r.db.Pool().Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	newNotif := &Notification{
		ID:           uuid.New(),
		RequestID:    fmt.Sprintf("dlq-retry-%s", dlqID),
		Type:         dlq.Type,
		UserID:       dlq.UserID,
		TemplateCode: dlq.TemplateCode,
		Variables:    dlq.Variables,
		Priority:     1,
		Metadata:     dlq.Metadata,
		Status:       "pending",
		RetryCount:   0,
	}

	insertQuery := `
		INSERT INTO notifications (
			id, request_id, type, user_id, template_code, variables,
			priority, metadata, status, retry_count
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING version, created_at, updated_at
	`

	err = tx.QueryRow(ctx, insertQuery,
		newNotif.ID,
		newNotif.RequestID,
		newNotif.Type,
		newNotif.UserID,
		newNotif.TemplateCode,
		newNotif.Variables,
		newNotif.Priority,
		newNotif.Metadata,
		newNotif.Status,
		newNotif.RetryCount,
	).Scan(&newNotif.Version, &newNotif.CreatedAt, &newNotif.UpdatedAt)

	if err != nil {
		return nil, fmt.Errorf("insert retry notification: %w", err)
	}

	eventQuery := `
		INSERT INTO status_events (notification_id, status, event)
		VALUES ($1, $2, $3)
	`
	if _, err := tx.Exec(ctx, eventQuery, newNotif.ID, newNotif.Status, "created"); err != nil {
		return nil, fmt.Errorf("insert initial status event: %w", err)
	}

	updateQuery := `
		UPDATE dead_letter_notifications
		SET status = $1, retried_notification_id = $2, updated_at = NOW()
		WHERE id = $3
	`
	if _, err := tx.Exec(ctx, updateQuery, DLQStatusRetried, newNotif.ID, dlqID); err != nil {
		return nil, fmt.Errorf("update dead letter: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	r.logger.Info("dead letter retried",
		zap.String("dlq_id", dlqID.String()),
		zap.String("new_notification_id", newNotif.ID.String()),
	)

	return newNotif, nil
}

// DiscardDeadLetter marks a DLQ item as discarded (won't be retried)
func (r *Repository) DiscardDeadLetter(ctx context.Context, dlqID uuid.UUID) error {
	query := `
		UPDATE dead_letter_notifications
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3
	`

	result, err := r.db.Pool().Exec(ctx, query, DLQStatusDiscarded, dlqID, DLQStatusPending)
	if err != nil {
		return fmt.Errorf("discard dead letter: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: dead letter %s pending", ErrNotFound, dlqID)
	}

	r.logger.Info("dead letter discarded", zap.String("dlq_id", dlqID.String()))

	return nil
}
