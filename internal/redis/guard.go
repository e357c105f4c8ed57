package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// DefaultAdmitTTL is the idempotency window. A request_id reused
	// inside the window returns the notification already created for it;
	// after expiry a reused request_id is treated as a brand-new request.
	// That tradeoff is accepted: duplicate suppression is bounded, not
	// forever.
	DefaultAdmitTTL = 24 * time.Hour

	// reservedMarker occupies a request_id between the atomic reserve and
	// the Bind call that records the created notification ID.
	reservedMarker = "__reserved__"
)

// ErrStoreUnavailable means the idempotency store could not be reached.
// Intake must reject the request rather than bypass dedup: a rejected
// request is retryable, a duplicate delivery is not undoable.
var ErrStoreUnavailable = errors.New("idempotency store unavailable")

// ErrRequestInFlight means another call holds the reservation for this
// request_id but has not yet recorded a notification ID.
var ErrRequestInFlight = errors.New("request with this request_id is in flight")

// AdmitResult is the outcome of an idempotency check.
type AdmitResult struct {
	// New is true for exactly one concurrent caller per request_id.
	New bool
	// NotificationID is the notification already created for this
	// request_id; set only when New is false.
	NotificationID string
}

// Guard provides idempotent intake admission backed by Redis.
// The reserve is a SET NX, so concurrent first arrivals for the same
// request_id race atomically and exactly one wins.
type Guard struct {
	client *Client
	logger *zap.Logger
	ttl    time.Duration
}

// NewGuard creates an idempotency guard. ttl <= 0 uses DefaultAdmitTTL.
func NewGuard(client *Client, logger *zap.Logger, ttl time.Duration) *Guard {
	if ttl <= 0 {
		ttl = DefaultAdmitTTL
	}
	return &Guard{
		client: client,
		logger: logger,
		ttl:    ttl,
	}
}

func (g *Guard) key(requestID string) string {
	return fmt.Sprintf("admit:%s", requestID)
}

// Admit checks whether a request_id has been seen inside the window and,
// if not, atomically reserves it. Exactly one concurrent caller gets
// New=true; the rest observe the existing record or ErrRequestInFlight.
func (g *Guard) Admit(ctx context.Context, requestID string) (*AdmitResult, error) {
	key := g.key(requestID)

	val, err := g.client.rdb.Get(ctx, key).Result()
	if err == nil {
		if val == reservedMarker {
			return nil, ErrRequestInFlight
		}
		return &AdmitResult{New: false, NotificationID: val}, nil
	}
	if !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	set, err := g.client.rdb.SetNX(ctx, key, reservedMarker, g.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if set {
		return &AdmitResult{New: true}, nil
	}

	// Lost the reserve race; the winner either bound an ID already or is
	// still in flight.
	val, err = g.client.rdb.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrRequestInFlight
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if val == reservedMarker {
		return nil, ErrRequestInFlight
	}

	g.logger.Debug("idempotent replay",
		zap.String("request_id", requestID),
		zap.String("notification_id", val),
	)

	return &AdmitResult{New: false, NotificationID: val}, nil
}

// Bind records the notification created for a reserved request_id. The
// record is read-only until expiry.
func (g *Guard) Bind(ctx context.Context, requestID, notificationID string) error {
	key := g.key(requestID)

	if err := g.client.rdb.Set(ctx, key, notificationID, g.ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	return nil
}

// Release drops a reservation when intake fails after Admit, so the
// client can retry the same request_id immediately.
func (g *Guard) Release(ctx context.Context, requestID string) error {
	if err := g.client.rdb.Del(ctx, g.key(requestID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}
