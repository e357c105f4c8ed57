// Package retry decides what happens to a notification after a failed
// delivery attempt: re-enqueue with a computed backoff delay, or give up
// and dead-letter. The delay is a property of the re-enqueued message,
// never a suspended worker.
package retry

import (
	"math/rand"
	"time"
)

// Cause classifies why the attempt failed. An open circuit earns a longer
// backoff floor so workers stop hammering a breaker that is already open.
type Cause int

const (
	CauseDelivery    Cause = iota // channel rejected or timed out
	CauseCircuitOpen              // breaker failed fast, channel never called
)

// Decision is the outcome for one failure.
type Decision struct {
	DeadLetter bool
	Delay      time.Duration
}

// Policy computes exponential backoff with jitter.
// delay = BaseDelay * 2^retryCount, capped at MaxDelay, jittered ±20%.
type Policy struct {
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	CircuitFloor time.Duration
	MaxRetries   int

	// rand source is replaceable for deterministic tests
	jitter func() float64
}

// NewPolicy creates a retry policy. Zero fields get defaults: 1s base,
// 5m cap, 30s circuit floor, 3 retries.
func NewPolicy(base, maxDelay, circuitFloor time.Duration, maxRetries int) *Policy {
	if base <= 0 {
		base = 1 * time.Second
	}
	if maxDelay <= 0 {
		maxDelay = 5 * time.Minute
	}
	if circuitFloor <= 0 {
		circuitFloor = 30 * time.Second
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}

	return &Policy{
		BaseDelay:    base,
		MaxDelay:     maxDelay,
		CircuitFloor: circuitFloor,
		MaxRetries:   maxRetries,
		jitter:       rand.Float64,
	}
}

// Decide returns the action for a notification that has already failed
// retryCount times.
func (p *Policy) Decide(retryCount int, cause Cause) Decision {
	if retryCount >= p.MaxRetries {
		return Decision{DeadLetter: true}
	}
	return Decision{Delay: p.delay(retryCount, cause)}
}

func (p *Policy) delay(retryCount int, cause Cause) time.Duration {
	d := p.BaseDelay
	for i := 0; i < retryCount && d < p.MaxDelay; i++ {
		d *= 2
	}
	if d > p.MaxDelay {
		d = p.MaxDelay
	}

	if cause == CauseCircuitOpen && d < p.CircuitFloor {
		d = p.CircuitFloor
	}

	// ±20% jitter breaks up synchronized retry storms across workers.
	factor := 0.8 + 0.4*p.jitter()
	return time.Duration(float64(d) * factor)
}
