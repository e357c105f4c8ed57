package status

import (
	"errors"
	"fmt"
)

// Status is the lifecycle state of a notification.
//
// Lifecycle:
//
//	pending -> queued -> processing -> sent -> delivered
//	processing -> failed -> queued (retry) | dead_lettered
//	pending -> skipped (user preference opt-out)
//
// delivered, dead_lettered, and skipped are terminal.
type Status string

const (
	StatusPending      Status = "pending"
	StatusQueued       Status = "queued"
	StatusProcessing   Status = "processing"
	StatusSent         Status = "sent"
	StatusDelivered    Status = "delivered"
	StatusFailed       Status = "failed"
	StatusDeadLettered Status = "dead_lettered"
	StatusSkipped      Status = "skipped"
)

// Event names the thing that happened to a notification. Each event is
// legal from exactly one status; anything else is an invalid transition.
type Event string

const (
	EventEnqueued          Event = "enqueued"           // pending -> queued
	EventPickedUp          Event = "picked_up"          // queued -> processing
	EventChannelAccepted   Event = "channel_accepted"   // processing -> sent
	EventProviderConfirmed Event = "provider_confirmed" // sent -> delivered
	EventChannelRejected   Event = "channel_rejected"   // processing -> failed
	EventRetryScheduled    Event = "retry_scheduled"    // failed -> queued
	EventRetriesExhausted  Event = "retries_exhausted"  // failed -> dead_lettered
	EventOptOut            Event = "preference_opt_out" // pending -> skipped
)

// ErrInvalidTransition is returned when an event is not legal from the
// notification's current status. The stored status is never altered.
var ErrInvalidTransition = errors.New("invalid status transition")

// transitions is the authoritative table. A status/event pair absent from
// the table is rejected.
var transitions = map[Status]map[Event]Status{
	StatusPending: {
		EventEnqueued: StatusQueued,
		EventOptOut:   StatusSkipped,
	},
	StatusQueued: {
		EventPickedUp: StatusProcessing,
	},
	StatusProcessing: {
		EventChannelAccepted: StatusSent,
		EventChannelRejected: StatusFailed,
	},
	StatusSent: {
		EventProviderConfirmed: StatusDelivered,
	},
	StatusFailed: {
		EventRetryScheduled:   StatusQueued,
		EventRetriesExhausted: StatusDeadLettered,
	},
}

// Next returns the status reached by applying event from the given status.
func Next(from Status, event Event) (Status, error) {
	to, ok := transitions[from][event]
	if !ok {
		return "", fmt.Errorf("%w: %q on %q", ErrInvalidTransition, event, from)
	}
	return to, nil
}

// IsTerminal reports whether no further transitions are possible.
func IsTerminal(s Status) bool {
	return s == StatusDelivered || s == StatusDeadLettered || s == StatusSkipped
}

// Valid reports whether s is a known status value.
func Valid(s Status) bool {
	switch s {
	case StatusPending, StatusQueued, StatusProcessing, StatusSent,
		StatusDelivered, StatusFailed, StatusDeadLettered, StatusSkipped:
		return true
	}
	return false
}

// EventFor maps a claimed target status to the event that reaches it.
// Used by the status webhook, which reports statuses rather than events.
func EventFor(from, to Status) (Event, error) {
	for event, next := range transitions[from] {
		if next == to {
			return event, nil
		}
	}
	return "", fmt.Errorf("%w: no event from %q to %q", ErrInvalidTransition, from, to)
}
