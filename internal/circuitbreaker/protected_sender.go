package circuitbreaker

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/herald-notify/herald/internal/db"
	"github.com/herald-notify/herald/internal/metrics"
)

// Sender mirrors the worker.Sender interface to avoid circular imports.
type Sender interface {
	Send(ctx context.Context, notif *db.Notification) error
	SupportsType(notifType string) bool
}

// ProtectedSender wraps a channel Sender with a CircuitBreaker. The
// breaker wraps exactly the external send call and nothing else; a fail
// fast surfaces as ErrCircuitOpen, which the retry policy treats like a
// delivery failure with a longer backoff floor.
type ProtectedSender struct {
	sender  Sender
	breaker *CircuitBreaker
	logger  *zap.Logger
}

// NewProtectedSender wraps a sender with circuit breaker protection.
func NewProtectedSender(sender Sender, breaker *CircuitBreaker, logger *zap.Logger) *ProtectedSender {
	return &ProtectedSender{
		sender:  sender,
		breaker: breaker,
		logger:  logger,
	}
}

// Send attempts delivery through the circuit breaker. When the circuit is
// open the channel is never invoked.
func (p *ProtectedSender) Send(ctx context.Context, notif *db.Notification) error {
	if !p.breaker.Allow() {
		metrics.RecordBreakerRejection(p.breaker.Channel())
		p.logger.Warn("circuit breaker rejected send",
			zap.String("channel", p.breaker.Channel()),
			zap.String("notification_id", notif.ID.String()),
			zap.String("state", p.breaker.GetState().String()),
		)
		return fmt.Errorf("%w: %s channel unavailable", ErrCircuitOpen, p.breaker.Channel())
	}

	if err := p.sender.Send(ctx, notif); err != nil {
		p.breaker.RecordFailure()
		return err
	}

	p.breaker.RecordSuccess()
	return nil
}

// SupportsType delegates to the underlying sender.
func (p *ProtectedSender) SupportsType(notifType string) bool {
	return p.sender.SupportsType(notifType)
}

// Breaker exposes the underlying breaker for the admin endpoints.
func (p *ProtectedSender) Breaker() *CircuitBreaker {
	return p.breaker
}
