package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/herald-notify/herald/internal/circuitbreaker"
	"github.com/herald-notify/herald/internal/db"
	"github.com/herald-notify/herald/internal/metrics"
	"github.com/herald-notify/herald/internal/queue"
	"github.com/herald-notify/herald/internal/redis"
	"github.com/herald-notify/herald/internal/status"
)

// NotificationRepository defines the database operations the API needs.
type NotificationRepository interface {
	CreateNotification(ctx context.Context, notif *db.Notification) error
	GetNotification(ctx context.Context, id uuid.UUID) (*db.Notification, error)
	GetNotificationByRequestID(ctx context.Context, requestID string) (*db.Notification, error)
	ListStatusEvents(ctx context.Context, id uuid.UUID) ([]*db.StatusEvent, error)
	ListNotificationsByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*db.Notification, error)
	GetUser(ctx context.Context, id uuid.UUID) (*db.User, error)
	GetTemplate(ctx context.Context, code string) (*db.Template, error)
	// DLQ methods
	ListDeadLetters(ctx context.Context, limit, offset int) ([]*db.DeadLetterNotification, error)
	GetDeadLetter(ctx context.Context, id uuid.UUID) (*db.DeadLetterNotification, error)
	RetryDeadLetter(ctx context.Context, id uuid.UUID) (*db.Notification, error)
	DiscardDeadLetter(ctx context.Context, id uuid.UUID) error
}

// StatusManager applies validated status transitions.
type StatusManager interface {
	Transition(ctx context.Context, id uuid.UUID, event status.Event, opts ...status.TransitionOption) (status.Status, error)
	ApplyReported(ctx context.Context, id uuid.UUID, reported status.Status, at time.Time, errMsg *string) (status.Status, error)
}

// IdempotencyGuard admits or replays intake requests by request_id.
type IdempotencyGuard interface {
	Admit(ctx context.Context, requestID string) (*redis.AdmitResult, error)
	Bind(ctx context.Context, requestID, notificationID string) error
	Release(ctx context.Context, requestID string) error
}

// NotificationRequest represents the incoming request body
type NotificationRequest struct {
	RequestID    string          `json:"request_id"`
	Type         string          `json:"notification_type"`
	UserID       string          `json:"user_id"`
	TemplateCode string          `json:"template_code"`
	Variables    json.RawMessage `json:"variables"`
	Priority     int             `json:"priority"`
	Metadata     json.RawMessage `json:"metadata,omitempty"`
}

// NotificationResponse is returned after accepting a notification
type NotificationResponse struct {
	NotificationID    string     `json:"notification_id"`
	Status            string     `json:"status"`
	QueuedAt          time.Time  `json:"queued_at"`
	EstimatedDelivery *time.Time `json:"estimated_delivery,omitempty"`
}

// NotificationDetail is the GET response: the record plus its event history.
type NotificationDetail struct {
	*db.Notification
	Events []*db.StatusEvent `json:"events"`
}

// StatusReport is the inbound webhook body for provider callbacks.
type StatusReport struct {
	Status    string  `json:"status"`
	Timestamp string  `json:"timestamp,omitempty"`
	Error     *string `json:"error,omitempty"`
}

// ErrorResponse represents an error in problem+json format
type ErrorResponse struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// Handler holds dependencies for API handlers
type Handler struct {
	logger   *zap.Logger
	repo     NotificationRepository
	statuses StatusManager
	guard    IdempotencyGuard
	router   queue.Router
	queues   map[string]queue.Queue
	breakers map[string]*circuitbreaker.CircuitBreaker
}

// NewHandler creates a new API handler.
func NewHandler(logger *zap.Logger, repo NotificationRepository, statuses StatusManager, guard IdempotencyGuard, queues map[string]queue.Queue, breakers map[string]*circuitbreaker.CircuitBreaker) *Handler {
	return &Handler{
		logger:   logger,
		repo:     repo,
		statuses: statuses,
		guard:    guard,
		queues:   queues,
		breakers: breakers,
	}
}

// CreateNotification handles POST /v1/notifications.
// Duplicate request_ids inside the idempotency window replay the original
// acceptance instead of creating a second notification.
func (h *Handler) CreateNotification(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req NotificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Malformed JSON body", err.Error())
		return
	}

	if req.RequestID == "" || req.UserID == "" || req.Type == "" || req.TemplateCode == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Missing required fields", "request_id, user_id, notification_type, and template_code are required")
		return
	}

	if req.Type != db.TypeEmail && req.Type != db.TypePush {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid notification_type", "notification_type must be email or push")
		return
	}

	if req.Priority == 0 {
		req.Priority = 5
	}
	if req.Priority < queue.MinPriority || req.Priority > queue.MaxPriority {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid priority", "priority must be between 1 and 10")
		return
	}

	if len(req.Variables) > 0 && !json.Valid(req.Variables) {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid variables", "variables must be valid JSON")
		return
	}
	if len(req.Metadata) > 0 && !json.Valid(req.Metadata) {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid metadata", "metadata must be valid JSON")
		return
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid user_id", "user_id must be a valid UUID")
		return
	}

	// All validation happens before any side effect. An invalid request
	// must not burn its request_id.
	user, err := h.repo.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "not_found", "User not found", "")
			return
		}
		h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to resolve user", "")
		return
	}

	if _, err := h.repo.GetTemplate(ctx, req.TemplateCode); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "not_found", "Template not found", "")
			return
		}
		h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to resolve template", "")
		return
	}

	admit, err := h.guard.Admit(ctx, req.RequestID)
	if err != nil {
		switch {
		case errors.Is(err, redis.ErrRequestInFlight):
			// Bind is best-effort, so a crashed or bind-failed intake can
			// leave the reservation marker behind a notification that was
			// in fact created. Check the ledger before reporting conflict.
			if orig, lookupErr := h.repo.GetNotificationByRequestID(ctx, req.RequestID); lookupErr == nil {
				h.replayNotification(w, orig)
				return
			}
			h.writeError(w, http.StatusConflict, "duplicate_request",
				"Request is already being processed",
				"Another request with this request_id is in progress")
		case errors.Is(err, redis.ErrStoreUnavailable):
			// Never accept without dedup protection.
			h.writeError(w, http.StatusServiceUnavailable, "store_unavailable",
				"Idempotency store unavailable", "Retry with the same request_id")
		default:
			h.writeError(w, http.StatusInternalServerError, "internal_error", "Idempotency check failed", "")
		}
		return
	}

	if !admit.New {
		h.replayExisting(w, r, admit.NotificationID)
		return
	}

	notif := &db.Notification{
		ID:           uuid.New(),
		RequestID:    req.RequestID,
		Type:         req.Type,
		UserID:       userID,
		TemplateCode: req.TemplateCode,
		Variables:    req.Variables,
		Priority:     req.Priority,
		Metadata:     req.Metadata,
		Status:       string(status.StatusPending),
	}

	if err := h.repo.CreateNotification(ctx, notif); err != nil {
		if releaseErr := h.guard.Release(ctx, req.RequestID); releaseErr != nil {
			h.logger.Warn("failed to release admission", zap.Error(releaseErr))
		}
		h.logger.Error("failed to create notification",
			zap.Error(err),
			zap.String("request_id", req.RequestID),
		)
		h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to create notification", "")
		return
	}

	if err := h.guard.Bind(ctx, req.RequestID, notif.ID.String()); err != nil {
		h.logger.Warn("failed to bind request_id",
			zap.Error(err),
			zap.String("request_id", req.RequestID),
		)
	}

	metrics.RecordNotificationAccepted(notif.Type)

	if !user.OptedIn(notif.Type) {
		if _, err := h.statuses.Transition(ctx, notif.ID, status.EventOptOut); err != nil {
			h.logger.Error("failed to skip opted-out notification", zap.Error(err))
			h.writeError(w, http.StatusInternalServerError, "internal_error", "Failed to record preference skip", "")
			return
		}
		h.logger.Info("notification skipped by user preference",
			zap.String("notification_id", notif.ID.String()),
			zap.String("user_id", userID.String()),
			zap.String("type", notif.Type),
		)
		h.writeAccepted(w, notif.ID, status.StatusSkipped, notif.Priority, false)
		return
	}

	queueName := h.router.Route(notif.Type, false)
	q, ok := h.queues[queueName]
	if !ok {
		h.logger.Error("no queue configured", zap.String("queue", queueName))
		h.writeError(w, http.StatusInternalServerError, "internal_error", "Queue not configured", "")
		return
	}

	if _, err := h.statuses.Transition(ctx, notif.ID, status.EventEnqueued); err != nil {
		h.logger.Error("failed to mark queued", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "internal_error", "Failed to queue notification", "")
		return
	}

	if err := q.Enqueue(ctx, queue.FromNotification(notif), 0); err != nil {
		h.logger.Error("failed to enqueue notification",
			zap.Error(err),
			zap.String("notification_id", notif.ID.String()),
			zap.String("queue", queueName),
		)
		h.writeError(w, http.StatusInternalServerError, "enqueue_error", "Failed to enqueue notification", "")
		return
	}

	h.logger.Info("notification accepted",
		zap.String("notification_id", notif.ID.String()),
		zap.String("request_id", req.RequestID),
		zap.String("type", notif.Type),
		zap.Int("priority", notif.Priority),
		zap.String("queue", queueName),
	)

	h.writeAccepted(w, notif.ID, status.StatusQueued, notif.Priority, true)
}

// replayExisting answers a duplicate request with the original outcome,
// looked up through the guard's notification binding.
func (h *Handler) replayExisting(w http.ResponseWriter, r *http.Request, notificationID string) {
	id, err := uuid.Parse(notificationID)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "internal_error", "Corrupt idempotency binding", "")
		return
	}

	notif, err := h.repo.GetNotification(r.Context(), id)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to load original notification", "")
		return
	}

	h.replayNotification(w, notif)
}

func (h *Handler) replayNotification(w http.ResponseWriter, notif *db.Notification) {
	metrics.RecordIdempotencyReplay()

	resp := NotificationResponse{
		NotificationID: notif.ID.String(),
		Status:         notif.Status,
		QueuedAt:       notif.CreatedAt,
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Idempotency-Replayed", "true")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}

func (h *Handler) writeAccepted(w http.ResponseWriter, id uuid.UUID, st status.Status, priority int, estimate bool) {
	now := time.Now().UTC()
	resp := NotificationResponse{
		NotificationID: id.String(),
		Status:         string(st),
		QueuedAt:       now,
	}
	if estimate {
		// Rough expectation only: higher priority drains sooner.
		eta := now.Add(time.Duration(queue.MaxPriority-priority+1) * 5 * time.Second)
		resp.EstimatedDelivery = &eta
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(resp)
}

// GetNotification handles GET /v1/notifications/{id}
func (h *Handler) GetNotification(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	idStr := chi.URLParam(r, "id")
	notifID, err := uuid.Parse(idStr)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid notification ID", "ID must be a valid UUID")
		return
	}

	notif, err := h.repo.GetNotification(ctx, notifID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "not_found", "Notification not found", "")
			return
		}
		h.logger.Error("failed to get notification", zap.Error(err), zap.String("id", idStr))
		h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to get notification", "")
		return
	}

	events, err := h.repo.ListStatusEvents(ctx, notifID)
	if err != nil {
		h.logger.Error("failed to list status events", zap.Error(err), zap.String("id", idStr))
		h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to load status history", "")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(NotificationDetail{Notification: notif, Events: events})
}

// ListNotifications handles GET /v1/notifications?user_id=xxx&limit=20&offset=0
func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userIDStr := r.URL.Query().Get("user_id")
	if userIDStr == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Missing user_id", "user_id query parameter is required")
		return
	}

	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid user_id", "user_id must be a valid UUID")
		return
	}

	limit, offset := parsePagination(r)

	notifications, err := h.repo.ListNotificationsByUser(ctx, userID, limit, offset)
	if err != nil {
		h.logger.Error("failed to list notifications",
			zap.Error(err),
			zap.String("user_id", userIDStr),
		)
		h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to list notifications", "")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"data":   notifications,
		"limit":  limit,
		"offset": offset,
		"count":  len(notifications),
	})
}

// ReportStatus handles POST /v1/notifications/{id}/events.
// Providers report statuses, not events; the claimed status is validated
// against the state machine and rejected when unreachable.
func (h *Handler) ReportStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	idStr := chi.URLParam(r, "id")
	notifID, err := uuid.Parse(idStr)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid notification ID", "ID must be a valid UUID")
		return
	}

	var report StatusReport
	if err := json.NewDecoder(r.Body).Decode(&report); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Malformed JSON body", err.Error())
		return
	}
	if report.Status == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Missing status", "status is required")
		return
	}

	at := time.Now().UTC()
	if report.Timestamp != "" {
		parsed, err := time.Parse(time.RFC3339, report.Timestamp)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid timestamp", "timestamp must be RFC3339")
			return
		}
		at = parsed
	}

	if _, err := h.repo.GetNotification(ctx, notifID); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "not_found", "Notification not found", "")
			return
		}
		h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to load notification", "")
		return
	}

	newStatus, err := h.statuses.ApplyReported(ctx, notifID, status.Status(report.Status), at, report.Error)
	if err != nil {
		if errors.Is(err, status.ErrInvalidTransition) {
			h.writeError(w, http.StatusUnprocessableEntity, "invalid_transition",
				"Reported status is not reachable", err.Error())
			return
		}
		h.logger.Error("failed to apply reported status",
			zap.Error(err),
			zap.String("id", idStr),
			zap.String("reported", report.Status),
		)
		h.writeError(w, http.StatusInternalServerError, "internal_error", "Failed to apply status", "")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"notification_id": idStr,
		"status":          string(newStatus),
	})
}

// ListDeadLetterQueue handles GET /v1/dlq?limit=20&offset=0
func (h *Handler) ListDeadLetterQueue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit, offset := parsePagination(r)

	dlqItems, err := h.repo.ListDeadLetters(ctx, limit, offset)
	if err != nil {
		h.logger.Error("failed to list dead letter queue", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to list dead letter queue", "")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"data":   dlqItems,
		"limit":  limit,
		"offset": offset,
		"count":  len(dlqItems),
	})
}

// GetDeadLetterItem handles GET /v1/dlq/{id}
func (h *Handler) GetDeadLetterItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	idStr := chi.URLParam(r, "id")
	dlqID, err := uuid.Parse(idStr)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid DLQ ID", "ID must be a valid UUID")
		return
	}

	dlqItem, err := h.repo.GetDeadLetter(ctx, dlqID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "not_found", "Dead letter item not found", "")
			return
		}
		h.logger.Error("failed to get dead letter item", zap.Error(err), zap.String("id", idStr))
		h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to get dead letter item", "")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(dlqItem)
}

// RetryDeadLetterItem handles POST /v1/dlq/{id}/retry.
// The dead letter stays terminal; a fresh notification is created from
// its snapshot and queued at top priority.
func (h *Handler) RetryDeadLetterItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	idStr := chi.URLParam(r, "id")
	dlqID, err := uuid.Parse(idStr)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid DLQ ID", "ID must be a valid UUID")
		return
	}

	newNotif, err := h.repo.RetryDeadLetter(ctx, dlqID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "not_found", "Dead letter item not found", "")
			return
		}
		h.logger.Error("failed to retry dead letter item", zap.Error(err), zap.String("id", idStr))
		h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to retry dead letter item", "")
		return
	}

	queueName := h.router.Route(newNotif.Type, false)
	q, ok := h.queues[queueName]
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "internal_error", "Queue not configured", "")
		return
	}

	if _, err := h.statuses.Transition(ctx, newNotif.ID, status.EventEnqueued); err != nil {
		h.logger.Error("failed to queue retried notification", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "internal_error", "Failed to queue retried notification", "")
		return
	}

	if err := q.Enqueue(ctx, queue.FromNotification(newNotif), 0); err != nil {
		h.logger.Error("failed to enqueue retried notification", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "enqueue_error", "Failed to enqueue retried notification", "")
		return
	}

	h.logger.Info("dead letter item retried",
		zap.String("dlq_id", idStr),
		zap.String("new_notification_id", newNotif.ID.String()),
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"id":                  idStr,
		"status":              "retried",
		"new_notification_id": newNotif.ID.String(),
	})
}

// DiscardDeadLetterItem handles POST /v1/dlq/{id}/discard
func (h *Handler) DiscardDeadLetterItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	idStr := chi.URLParam(r, "id")
	dlqID, err := uuid.Parse(idStr)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid DLQ ID", "ID must be a valid UUID")
		return
	}

	if err := h.repo.DiscardDeadLetter(ctx, dlqID); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "not_found", "Dead letter item not found", "")
			return
		}
		h.logger.Error("failed to discard dead letter item", zap.Error(err), zap.String("id", idStr))
		h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to discard dead letter item", "")
		return
	}

	h.logger.Info("dead letter item discarded", zap.String("id", idStr))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"id":     idStr,
		"status": "discarded",
	})
}

// ListBreakers handles GET /v1/breakers
func (h *Handler) ListBreakers(w http.ResponseWriter, r *http.Request) {
	stats := make([]circuitbreaker.Stats, 0, len(h.breakers))
	for _, cb := range h.breakers {
		stats = append(stats, cb.Stats())
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"breakers": stats,
	})
}

// ResetBreaker handles POST /v1/breakers/{channel}/reset
func (h *Handler) ResetBreaker(w http.ResponseWriter, r *http.Request) {
	channel := chi.URLParam(r, "channel")

	cb, ok := h.breakers[channel]
	if !ok {
		h.writeError(w, http.StatusNotFound, "not_found", "Unknown channel", "")
		return
	}

	cb.Reset()
	h.logger.Info("circuit breaker manually reset", zap.String("channel", channel))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(cb.Stats())
}

func parsePagination(r *http.Request) (limit, offset int) {
	limit, offset = 20, 0

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 100 {
			limit = l
		}
	}
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			offset = o
		}
	}
	return limit, offset
}

func (h *Handler) writeError(w http.ResponseWriter, statusCode int, errType, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(statusCode)

	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Type:   errType,
		Title:  title,
		Status: statusCode,
		Detail: detail,
	})
}
